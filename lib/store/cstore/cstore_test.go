package cstore

import (
	"bytes"
	"context"
	"github.com/ValentinKolb/nps/lib/message"
	"github.com/ValentinKolb/nps/lib/store"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// fakeSource serves statuses for ids below limit and counts loads
type fakeSource struct {
	limit  uint32
	loads  atomic.Int32
	closed atomic.Bool
	mu     sync.Mutex
	banned map[uint32]bool
}

func newFakeSource(limit uint32) *fakeSource {
	return &fakeSource{limit: limit, banned: make(map[uint32]bool)}
}

func (f *fakeSource) LoadUserStatus(_ context.Context, id uint32) (*message.UserStatus, error) {
	f.loads.Add(1)
	if id >= f.limit {
		return nil, store.Errorf(store.RetCNotFound, "customer %d does not exist", id)
	}
	st := message.NewUserStatus(id)
	st.SetPersonaID(id * 10)
	st.SetSessionKey(message.NewSessionKey([]byte{byte(id)}, 1900000000))

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.banned[id] {
		st.SetBan(message.UserAction{IssuedBy: 1, Reason: "test", IssuedAt: 1})
	}
	return st, nil
}

func (f *fakeSource) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeSource) ban(id uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.banned[id] = true
}

func newTestStore(src *fakeSource, cfg Config) (*Store, *time.Time) {
	cfg.SweepInterval = 0
	s := NewStore(src, cfg)
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }
	return s, &now
}

func get(t *testing.T, s *Store, id uint32, op message.Operation) *message.UserStatus {
	t.Helper()
	st, err := s.GetUserStatus(context.Background(), message.NewUserStatusRequest(id, op))
	if err != nil {
		t.Fatalf("get %d (%s) failed: %v", id, op, err)
	}
	return st
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestUseCache tests hits, misses and expiry of cached entries
func TestUseCache(t *testing.T) {
	src := newFakeSource(100)
	s, now := newTestStore(src, Config{TTL: time.Minute})
	defer s.Close()

	first := get(t, s, 1, message.OpUseCache)
	if first.IsCacheHit() || src.loads.Load() != 1 {
		t.Fatalf("first request must load, hit=%v loads=%d", first.IsCacheHit(), src.loads.Load())
	}

	second := get(t, s, 1, message.OpUseCache)
	if !second.IsCacheHit() || src.loads.Load() != 1 {
		t.Errorf("second request must hit, hit=%v loads=%d", second.IsCacheHit(), src.loads.Load())
	}
	if second.PersonaID() != 10 || !bytes.Equal(second.SessionKey().Key(), []byte{1}) {
		t.Errorf("cached status differs from source: %+v", second)
	}

	// callers get private copies
	second.SetPersonaID(999)
	if get(t, s, 1, message.OpUseCache).PersonaID() != 10 {
		t.Errorf("mutating a returned status changed the cache")
	}

	*now = now.Add(2 * time.Minute)
	if get(t, s, 1, message.OpUseCache).IsCacheHit() {
		t.Errorf("expired entry must not be answered from the cache")
	}

	stats := s.Stats()
	if stats.Hits != 2 || stats.Misses != 2 || stats.Loads != 2 || stats.Entries != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

// TestRefreshCache tests that refresh always loads and replaces the entry
func TestRefreshCache(t *testing.T) {
	src := newFakeSource(100)
	s, _ := newTestStore(src, Config{TTL: time.Hour})
	defer s.Close()

	get(t, s, 2, message.OpUseCache)
	src.ban(2)

	if get(t, s, 2, message.OpUseCache).Ban() != nil {
		t.Fatalf("cached status must still be the old one")
	}
	refreshed := get(t, s, 2, message.OpRefreshCache)
	if refreshed.IsCacheHit() || refreshed.Ban() == nil {
		t.Errorf("refresh must load the new status")
	}
	if get(t, s, 2, message.OpUseCache).Ban() == nil {
		t.Errorf("refresh must replace the cached entry")
	}
}

// TestClearOperations tests clearing one and all entries
func TestClearOperations(t *testing.T) {
	src := newFakeSource(100)
	s, _ := newTestStore(src, Config{TTL: time.Hour})
	defer s.Close()

	for id := uint32(0); id < 5; id++ {
		get(t, s, id, message.OpUseCache)
	}
	if s.Stats().Entries != 5 {
		t.Fatalf("expected 5 entries, got %d", s.Stats().Entries)
	}

	if st := get(t, s, 3, message.OpClearCacheEntry); st.IsCacheHit() || st.CustomerID() != 3 {
		t.Errorf("clear entry must return a fresh status")
	}
	if s.Stats().Entries != 4 {
		t.Errorf("expected 4 entries after clearing one, got %d", s.Stats().Entries)
	}

	get(t, s, 4, message.OpClearCache)
	if s.Stats().Entries != 0 {
		t.Errorf("expected empty cache, got %d", s.Stats().Entries)
	}
}

// TestNotFound tests that unknown customers are reported and not cached
func TestNotFound(t *testing.T) {
	src := newFakeSource(10)
	s, _ := newTestStore(src, Config{TTL: time.Hour})
	defer s.Close()

	_, err := s.GetUserStatus(context.Background(), message.NewUserStatusRequest(50, message.OpUseCache))
	if store.CodeOf(err) != store.RetCNotFound {
		t.Errorf("expected RetCNotFound, got %v", err)
	}
	if s.Stats().Entries != 0 {
		t.Errorf("unknown customers must not be cached")
	}

	_, err = s.GetUserStatus(context.Background(), message.NewUserStatusRequest(1, message.Operation(42)))
	if store.CodeOf(err) != store.RetCInvalidOperation {
		t.Errorf("expected RetCInvalidOperation, got %v", err)
	}
}

// TestMaxEntries tests that the size bound evicts the oldest entries
func TestMaxEntries(t *testing.T) {
	src := newFakeSource(100)
	s, now := newTestStore(src, Config{TTL: time.Hour, MaxEntries: 3})
	defer s.Close()

	for id := uint32(0); id < 5; id++ {
		get(t, s, id, message.OpUseCache)
		*now = now.Add(time.Second)
	}

	stats := s.Stats()
	if stats.Entries != 3 || stats.Evictions != 2 {
		t.Errorf("expected 3 entries and 2 evictions, got %+v", stats)
	}
	if get(t, s, 0, message.OpUseCache).IsCacheHit() {
		t.Errorf("oldest entry must have been evicted")
	}
	if !get(t, s, 4, message.OpUseCache).IsCacheHit() {
		t.Errorf("newest entry must still be cached")
	}
}

// TestSweep tests the expiry sweep
func TestSweep(t *testing.T) {
	src := newFakeSource(100)
	s, now := newTestStore(src, Config{TTL: time.Minute})
	defer s.Close()

	get(t, s, 1, message.OpUseCache)
	*now = now.Add(30 * time.Second)
	get(t, s, 2, message.OpUseCache)

	*now = now.Add(45 * time.Second)
	if n := s.Sweep(); n != 1 {
		t.Errorf("expected one expired entry, swept %d", n)
	}
	if s.Stats().Entries != 1 {
		t.Errorf("expected one remaining entry, got %d", s.Stats().Entries)
	}
	if s.released.Get() != 1 {
		t.Errorf("swept entry must be released, released=%d", s.released.Get())
	}
}

// TestClose tests that close drops entries and closes the source
func TestClose(t *testing.T) {
	src := newFakeSource(100)
	s := NewStore(src, Config{TTL: time.Minute, SweepInterval: time.Millisecond})

	get(t, s, 1, message.OpUseCache)
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close must be a no-op, got %v", err)
	}
	if !src.closed.Load() {
		t.Errorf("source must be closed")
	}
	if s.released.Get() != 1 {
		t.Errorf("cached entry must be released on close")
	}

	_, err := s.GetUserStatus(context.Background(), message.NewUserStatusRequest(1, message.OpUseCache))
	if store.CodeOf(err) != store.RetCClosed {
		t.Errorf("expected RetCClosed, got %v", err)
	}
}

// blockingSource holds every load until release is closed
type blockingSource struct {
	*fakeSource
	started chan struct{}
	release chan struct{}
}

func (b *blockingSource) LoadUserStatus(ctx context.Context, id uint32) (*message.UserStatus, error) {
	close(b.started)
	<-b.release
	return b.fakeSource.LoadUserStatus(ctx, id)
}

// TestLoadAfterClose tests that a load finishing after close is not cached
func TestLoadAfterClose(t *testing.T) {
	src := &blockingSource{fakeSource: newFakeSource(100), started: make(chan struct{}), release: make(chan struct{})}
	s := NewStore(src, Config{TTL: time.Minute})

	done := make(chan error, 1)
	go func() {
		_, err := s.GetUserStatus(context.Background(), message.NewUserStatusRequest(1, message.OpUseCache))
		done <- err
	}()

	<-src.started
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	close(src.release)

	if err := <-done; err != nil {
		t.Errorf("in-flight load failed: %v", err)
	}
	if n := s.Stats().Entries; n != 0 {
		t.Errorf("closed store must stay empty, got %d entries", n)
	}
}

// TestConcurrentAccess tests parallel requests with all operations
func TestConcurrentAccess(t *testing.T) {
	src := newFakeSource(1000)
	s := NewStore(src, Config{TTL: time.Second, MaxEntries: 50, SweepInterval: time.Millisecond})
	defer s.Close()

	ops := []message.Operation{message.OpUseCache, message.OpUseCache, message.OpRefreshCache, message.OpClearCacheEntry, message.OpClearCache}
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := uint32((w*31 + i) % 100)
				op := ops[i%len(ops)]
				st, err := s.GetUserStatus(context.Background(), message.NewUserStatusRequest(id, op))
				if err != nil {
					t.Errorf("get %d failed: %v", id, err)
					return
				}
				if st.CustomerID() != id {
					t.Errorf("expected customer %d, got %d", id, st.CustomerID())
				}
			}
		}(w)
	}
	wg.Wait()

	if s.Stats().Entries > 50 {
		t.Errorf("size bound exceeded: %d", s.Stats().Entries)
	}
}

// TestExpiryQueue tests the ordering of the expiry heap
func TestExpiryQueue(t *testing.T) {
	q := newExpiryQueue()
	q.set(1, 300)
	q.set(2, 100)
	q.set(3, 200)
	q.set(1, 50) // move forward

	if !q.remove(3) || q.remove(3) {
		t.Errorf("remove must succeed exactly once")
	}

	due := q.popDue(150)
	if len(due) != 2 || due[0] != 1 || due[1] != 2 {
		t.Errorf("expected [1 2], got %v", due)
	}
	if _, ok := q.popOldest(); ok {
		t.Errorf("queue must be empty")
	}
}
