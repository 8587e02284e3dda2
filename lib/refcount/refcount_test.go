package refcount

import (
	"sync"
	"sync/atomic"
	"testing"
)

type tracked struct {
	name string
}

func counter() (*atomic.Int32, func(*tracked)) {
	var n atomic.Int32
	return &n, func(*tracked) { n.Add(1) }
}

// --------------------------------------------------------------------------
// Handle
// --------------------------------------------------------------------------

// TestHandleLifetime tests that the value is released exactly once, on the last drop
func TestHandleLifetime(t *testing.T) {
	released, release := counter()

	a := New(&tracked{name: "x"}, release)
	b := a.Clone()
	if a.Refs() != 2 || !a.Same(b) {
		t.Fatalf("expected two references to one value, got %d", a.Refs())
	}

	a.Drop()
	if released.Load() != 0 {
		t.Fatalf("value released while a handle is alive")
	}
	if a.Valid() {
		t.Errorf("dropped handle must be invalid")
	}
	if b.Refs() != 1 || b.Get().name != "x" {
		t.Errorf("remaining handle must still see the value")
	}

	b.Drop()
	b.Drop() // dropping an invalid handle is a no-op
	if released.Load() != 1 {
		t.Errorf("expected exactly one release, got %d", released.Load())
	}
}

// TestHandleAssign tests assignment between handles
func TestHandleAssign(t *testing.T) {
	releasedA, releaseA := counter()
	releasedB, releaseB := counter()

	a := New(&tracked{name: "a"}, releaseA)
	b := New(&tracked{name: "b"}, releaseB)

	a.Assign(a)
	if a.Refs() != 1 || releasedA.Load() != 0 {
		t.Fatalf("self assignment must not change the count")
	}

	a.Assign(b)
	if releasedA.Load() != 1 {
		t.Errorf("old value must be released once its last handle is reassigned")
	}
	if a.Get().name != "b" || b.Refs() != 2 {
		t.Errorf("assigned handle must share the new value, refs=%d", b.Refs())
	}

	a.Drop()
	b.Drop()
	if releasedB.Load() != 1 {
		t.Errorf("expected one release of b, got %d", releasedB.Load())
	}
}

// TestHandleInvalid tests the zero handle
func TestHandleInvalid(t *testing.T) {
	var h Handle[*tracked]
	if h.Valid() || h.Get() != nil || h.Refs() != 0 {
		t.Errorf("zero handle must be invalid")
	}
	if c := h.Clone(); c.Valid() {
		t.Errorf("clone of zero handle must be invalid")
	}

	live := New(&tracked{}, nil)
	h.Assign(live)
	if live.Refs() != 2 {
		t.Errorf("assigning to an invalid handle must add a reference")
	}
	h.Drop()
	live.Drop()
}

// TestHandleOverDrop tests that dropping a stale copy panics
func TestHandleOverDrop(t *testing.T) {
	h := New(&tracked{}, nil)
	stale := h // struct copy without Clone
	h.Drop()

	defer func() {
		if recover() == nil {
			t.Errorf("expected panic when dropping below zero")
		}
	}()
	stale.Drop()
}

// TestHandleConcurrent tests clone/drop from many goroutines
func TestHandleConcurrent(t *testing.T) {
	released, release := counter()
	root := New(&tracked{}, release)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		c := root.Clone()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				x := c.Clone()
				x.Drop()
			}
			c.Drop()
		}()
	}
	wg.Wait()

	if released.Load() != 0 || root.Refs() != 1 {
		t.Fatalf("expected root to hold the only reference, refs=%d released=%d", root.Refs(), released.Load())
	}
	root.Drop()
	if released.Load() != 1 {
		t.Errorf("expected one release, got %d", released.Load())
	}
}

// --------------------------------------------------------------------------
// Map
// --------------------------------------------------------------------------

// TestMapOperations tests add, find, remove and count
func TestMapOperations(t *testing.T) {
	m := NewMap[string, int]()

	one, two := 1, 2
	tests := []struct {
		name string
		op   func() bool
		want bool
	}{
		{"add nil", func() bool { return m.Add("a", nil) }, false},
		{"add", func() bool { return m.Add("a", &one) }, true},
		{"add existing", func() bool { return m.Add("a", &two) }, false},
		{"find", func() bool { var v int; return m.Find("a", &v) && v == 1 }, true},
		{"find absent", func() bool { var v int; return m.Find("b", &v) }, false},
		{"put new", func() bool { return m.Put("b", 2) }, false},
		{"put replace", func() bool { return m.Put("b", 3) }, true},
		{"contains", func() bool { return m.Contains("b") }, true},
		{"remove", func() bool { return m.Remove("a") }, true},
		{"remove absent", func() bool { return m.Remove("a") }, false},
	}

	for _, tt := range tests {
		if got := tt.op(); got != tt.want {
			t.Errorf("%s: got %v want %v", tt.name, got, tt.want)
		}
	}

	if m.Count() != 1 {
		t.Errorf("expected 1 entry, got %d", m.Count())
	}
	if v, ok := m.Take("b"); !ok || v != 3 || m.Count() != 0 {
		t.Errorf("take returned %d, %v (count %d)", v, ok, m.Count())
	}
}

// TestMapOfHandles tests that readers keep values alive after removal
func TestMapOfHandles(t *testing.T) {
	released, release := counter()
	m := NewMap[uint32, Handle[*tracked]](
		WithCopy[uint32](Handle[*tracked].Clone),
		WithEvict(func(_ uint32, h Handle[*tracked]) { h.Drop() }),
	)

	h := New(&tracked{name: "entry"}, release)
	if !m.Add(1, &h) {
		t.Fatal("add failed")
	}
	h.Drop() // the map holds its own reference

	var reader Handle[*tracked]
	if !m.Find(1, &reader) || reader.Refs() != 2 {
		t.Fatalf("find must hand out a new reference, refs=%d", reader.Refs())
	}

	m.Remove(1)
	if released.Load() != 0 {
		t.Fatalf("value released while a reader holds it")
	}
	if reader.Get().name != "entry" {
		t.Errorf("reader lost its value")
	}
	reader.Drop()
	if released.Load() != 1 {
		t.Errorf("expected one release, got %d", released.Load())
	}

	for i := uint32(0); i < 10; i++ {
		e := New(&tracked{}, release)
		m.Put(i, e)
		e.Drop()
	}
	m.Clear()
	if released.Load() != 11 || m.Count() != 0 {
		t.Errorf("clear must release every entry, released=%d count=%d", released.Load(), m.Count())
	}
}

// TestMapRange tests iteration and early stop
func TestMapRange(t *testing.T) {
	m := NewMap[int, int]()
	for i := 0; i < 10; i++ {
		m.Put(i, i*i)
	}

	sum := 0
	m.Range(func(k, v int) bool {
		sum += v
		return true
	})
	if sum != 285 {
		t.Errorf("expected sum 285, got %d", sum)
	}

	visited := 0
	m.Range(func(int, int) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Errorf("range must stop after false, visited %d", visited)
	}
}

// TestMapConcurrent tests parallel readers and writers
func TestMapConcurrent(t *testing.T) {
	m := NewMap[int, int]()
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(2)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				v := base + i
				m.Add(base+i, &v)
			}
		}(w * 1000)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				var v int
				if m.Find(base+i, &v) && v != base+i {
					t.Errorf("key %d holds %d", base+i, v)
				}
			}
		}(w * 1000)
	}
	wg.Wait()

	if m.Count() != 8*500 {
		t.Errorf("expected %d entries, got %d", 8*500, m.Count())
	}
}
