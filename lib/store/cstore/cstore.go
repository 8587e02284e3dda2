package cstore

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/nps/lib/message"
	"github.com/ValentinKolb/nps/lib/refcount"
	"github.com/ValentinKolb/nps/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the cache parameters.
type Config struct {
	// TTL is how long a loaded status is answered from the cache.
	TTL time.Duration
	// MaxEntries bounds the cache, the entry closest to expiry is evicted
	// first. Zero means unbounded.
	MaxEntries int
	// SweepInterval is the period of the background expiry sweep. Zero
	// disables it; expired entries are then only replaced on access.
	SweepInterval time.Duration
}

// DefaultConfig returns the configuration used by the server by default.
func DefaultConfig() Config {
	return Config{
		TTL:           5 * time.Minute,
		MaxEntries:    100_000,
		SweepInterval: 30 * time.Second,
	}
}

// entry is the shared, read-only cached value
type entry struct {
	status   *message.UserStatus
	deadline time.Time
}

type cacheHandle = refcount.Handle[*entry]

// Store is a caching store.IStatusStore in front of a store.IStatusSource.
type Store struct {
	source store.IStatusSource
	cfg    Config

	entries *refcount.Map[uint32, cacheHandle]

	mu     sync.Mutex // guards expiry and is taken before the entries lock
	expiry *expiryQueue

	now    func() time.Time
	closed atomic.Bool
	stop   chan struct{}
	done   chan struct{}

	set                            *metrics.Set
	hits, misses, loads, evictions *metrics.Counter
	released                       *metrics.Counter
}

// compile time check
var _ store.IStatusStore = (*Store)(nil)

// NewStore creates a cache over source. If the source implements io.Closer
// it is closed by Close.
func NewStore(source store.IStatusSource, cfg Config) *Store {
	s := &Store{
		source: source,
		cfg:    cfg,
		expiry: newExpiryQueue(),
		now:    time.Now,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		set:    metrics.NewSet(),
	}
	s.entries = refcount.NewMap[uint32, cacheHandle](
		refcount.WithCopy[uint32](cacheHandle.Clone),
		refcount.WithEvict(func(_ uint32, h cacheHandle) { h.Drop() }),
	)

	s.hits = s.set.NewCounter("nps_status_cache_hits_total")
	s.misses = s.set.NewCounter("nps_status_cache_misses_total")
	s.loads = s.set.NewCounter("nps_status_cache_loads_total")
	s.evictions = s.set.NewCounter("nps_status_cache_evictions_total")
	s.released = s.set.NewCounter("nps_status_cache_released_total")
	s.set.NewGauge("nps_status_cache_entries", func() float64 {
		return float64(s.entries.Count())
	})

	if cfg.SweepInterval > 0 {
		go s.sweepLoop(cfg.SweepInterval)
	} else {
		close(s.done)
	}
	return s
}

// Metrics returns the metric set of the cache.
func (s *Store) Metrics() *metrics.Set { return s.set }

// --------------------------------------------------------------------------
// IStatusStore
// --------------------------------------------------------------------------

// GetUserStatus answers req according to its operation:
//
//	use-cache          cached status if fresh (cache-hit flag set), else load and cache
//	refresh-cache      load and replace the cached status
//	clear-cache-entry  drop the cached status, return a freshly loaded one
//	clear-cache        drop every cached status, return a freshly loaded one
func (s *Store) GetUserStatus(ctx context.Context, req *message.UserStatusRequest) (*message.UserStatus, error) {
	if s.closed.Load() {
		return nil, store.NewError(store.RetCClosed, "status store is closed")
	}
	id := req.CustomerID

	switch req.Operation {
	case message.OpUseCache:
		if st, ok := s.lookup(id); ok {
			s.hits.Inc()
			return st, nil
		}
		s.misses.Inc()
		return s.load(ctx, id, true)

	case message.OpRefreshCache:
		return s.load(ctx, id, true)

	case message.OpClearCacheEntry:
		s.drop(id)
		return s.load(ctx, id, false)

	case message.OpClearCache:
		s.clear()
		return s.load(ctx, id, false)

	default:
		return nil, store.Errorf(store.RetCInvalidOperation, "unknown cache operation %d", uint32(req.Operation))
	}
}

// Stats returns the cache counters.
func (s *Store) Stats() store.Stats {
	return store.Stats{
		Entries:   s.entries.Count(),
		Hits:      s.hits.Get(),
		Misses:    s.misses.Get(),
		Loads:     s.loads.Get(),
		Evictions: s.evictions.Get(),
	}
}

// Close stops the sweeper, drops every entry and closes the source.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stop)
	<-s.done

	s.clear()
	if c, ok := s.source.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close status source: %w", err)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Cache Operations
// --------------------------------------------------------------------------

// lookup returns a private copy of a fresh cached status
func (s *Store) lookup(id uint32) (*message.UserStatus, bool) {
	var h cacheHandle
	if !s.entries.Find(id, &h) {
		return nil, false
	}
	defer h.Drop()

	e := h.Get()
	if !s.now().Before(e.deadline) {
		return nil, false
	}
	st := e.status.Clone()
	st.SetCacheHit(true)
	return st, true
}

// load fetches the status from the source and optionally caches it
func (s *Store) load(ctx context.Context, id uint32, cache bool) (*message.UserStatus, error) {
	s.loads.Inc()
	st, err := s.source.LoadUserStatus(ctx, id)
	if err != nil {
		if store.CodeOf(err) == store.RetCNotFound {
			s.drop(id)
		}
		return nil, err
	}
	st.SetCacheHit(false)

	if cache {
		s.insert(id, st.Clone())
	}
	return st, nil
}

// insert caches st under id and enforces the size bound. Loads finishing
// after Close are not cached.
func (s *Store) insert(id uint32, st *message.UserStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return
	}
	e := &entry{status: st, deadline: s.now().Add(s.cfg.TTL)}
	h := refcount.New(e, func(*entry) { s.released.Inc() })

	s.entries.Put(id, h)
	h.Drop()
	s.expiry.set(id, e.deadline.UnixNano())

	for s.cfg.MaxEntries > 0 && s.expiry.Len() > s.cfg.MaxEntries {
		oldest, ok := s.expiry.popOldest()
		if !ok {
			break
		}
		s.entries.Remove(oldest)
		s.evictions.Inc()
	}
}

// drop removes one entry
func (s *Store) drop(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expiry.remove(id)
	if s.entries.Remove(id) {
		s.evictions.Inc()
	}
}

// clear removes every entry
func (s *Store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.entries.Count()
	s.expiry.reset()
	s.entries.Clear()
	s.evictions.Add(n)
}

// Sweep removes every expired entry and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := s.expiry.popDue(s.now().UnixNano())
	for _, id := range due {
		s.entries.Remove(id)
	}
	s.evictions.Add(len(due))
	return len(due)
}

func (s *Store) sweepLoop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				store.Logger.Debugf("status cache: swept %d expired entries", n)
			}
		}
	}
}
