package serialize

import (
	"errors"
	"sync"
	"testing"
)

// TestEmptyHeader tests that a header without data reads 0 and ignores setters
func TestEmptyHeader(t *testing.T) {
	var h Header
	h.SetID(5)
	h.SetLength(20)
	h.SetVersion(3)
	h.SetChecksum(99)

	if h.HasData() || h.ID() != 0 || h.Length() != 0 || h.Version() != 0 || h.Checksum() != 0 {
		t.Errorf("empty header must read zero, got %s", h.String())
	}

	short := NewHeader(make([]byte, HeaderSize-1))
	if short.HasData() {
		t.Errorf("a slice shorter than the header must be treated as no data")
	}

	clone := h.Clone()
	if clone.HasData() || clone.Owned() {
		t.Errorf("clone of an empty header must be empty")
	}
	if err := h.Release(); err != nil {
		t.Errorf("releasing an empty header failed: %v", err)
	}
}

// TestHeaderAccessors tests the fixed offsets of the header fields
func TestHeaderAccessors(t *testing.T) {
	data := make([]byte, 16)
	h := NewHeader(data)
	h.SetID(0x0535)
	h.SetLength(16)
	h.SetVersion(0x0101)
	h.SetChecksum(0xA1B2C3D4)

	expected := []byte{0x05, 0x35, 0x00, 0x10, 0x01, 0x01, 0x00, 0x00, 0xA1, 0xB2, 0xC3, 0xD4}
	for i, b := range expected {
		if data[i] != b {
			t.Fatalf("byte %d: got %#x want %#x", i, data[i], b)
		}
	}
	if h.ID() != 0x0535 || h.Length() != 16 || h.Version() != 0x0101 || h.Checksum() != 0xA1B2C3D4 {
		t.Errorf("accessors disagree with setters: %s", h.String())
	}
	if h.Owned() {
		t.Errorf("header over caller memory must borrow")
	}
}

// TestHeaderClone tests that Clone deep-copies Length() bytes into an owned buffer
func TestHeaderClone(t *testing.T) {
	data := make([]byte, 20)
	h := NewHeader(data)
	h.SetID(7)
	h.SetLength(14)
	data[12], data[13], data[14] = 0xAA, 0xBB, 0xCC

	clone := h.Clone()
	if !clone.Owned() {
		t.Fatal("clone must own its buffer")
	}
	if len(clone.Bytes()) != 14 {
		t.Errorf("clone should copy %d bytes, copied %d", 14, len(clone.Bytes()))
	}

	data[12] = 0x00
	if clone.Bytes()[12] != 0xAA || clone.ID() != 7 {
		t.Errorf("clone must not alias the original")
	}

	if err := clone.Release(); err != nil {
		t.Errorf("release of owned clone failed: %v", err)
	}
	if clone.HasData() {
		t.Errorf("released header must be detached")
	}

	// releasing the borrowing original only detaches it
	if err := h.Release(); err != nil {
		t.Errorf("release of borrowing header failed: %v", err)
	}
	if data[12] != 0x00 || data[0] != 0x00 || data[1] != 0x07 {
		t.Errorf("borrowed memory must be left untouched")
	}
}

// TestHeaderValidate tests the length checks
func TestHeaderValidate(t *testing.T) {
	data := make([]byte, 20)
	h := NewHeader(data)

	h.SetLength(11)
	if _, err := h.Validate(); !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("expected ErrMalformedHeader, got %v", err)
	}

	h.SetLength(21)
	if _, err := h.Validate(); !errors.Is(err, ErrTruncatedBuffer) {
		t.Errorf("expected ErrTruncatedBuffer, got %v", err)
	}

	h.SetLength(12)
	if n, err := h.Validate(); err != nil || n != 12 {
		t.Errorf("expected 12, nil; got %d, %v", n, err)
	}
}

// TestBufferOwnership tests single-owner release semantics
func TestBufferOwnership(t *testing.T) {
	owned := Allocate(100)
	if !owned.Owned() || owned.Len() != 100 {
		t.Fatalf("unexpected owned buffer: owned=%v len=%d", owned.Owned(), owned.Len())
	}
	for _, b := range owned.Bytes() {
		if b != 0 {
			t.Fatal("allocated buffer must be zeroed")
		}
	}

	if err := owned.Release(); err != nil {
		t.Errorf("first release failed: %v", err)
	}
	if err := owned.Release(); !errors.Is(err, ErrBufferOwnership) {
		t.Errorf("double release must fail with ErrBufferOwnership, got %v", err)
	}

	borrowed := Borrow([]byte{1, 2, 3})
	if err := borrowed.Release(); !errors.Is(err, ErrBufferOwnership) {
		t.Errorf("release of borrowed buffer must fail, got %v", err)
	}
	if borrowed.Len() != 3 {
		t.Errorf("borrowed buffer must stay intact")
	}

	var missing *Buffer
	if err := missing.Release(); !errors.Is(err, ErrBufferOwnership) {
		t.Errorf("release of nil buffer must fail, got %v", err)
	}
}

// TestBufferLargeAllocation tests allocations beyond the pooled size classes
func TestBufferLargeAllocation(t *testing.T) {
	b := Allocate(200 * 1024)
	if b.Len() != 200*1024 {
		t.Errorf("expected %d bytes, got %d", 200*1024, b.Len())
	}
	if err := b.Release(); err != nil {
		t.Errorf("release failed: %v", err)
	}
}

// TestConcurrentRelease tests that exactly one of many racing releases succeeds
func TestConcurrentRelease(t *testing.T) {
	b := Allocate(64)
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Release() == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly one successful release, got %d", successes)
	}
}
