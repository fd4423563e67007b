package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/singleflight"

	"harvest_service/internal/domain/model"
	"harvest_service/internal/metrics"
)

// DefaultEvictAfter is how long past expiry a snapshot is kept before it is
// swept from memory and storage.
const DefaultEvictAfter = 30 * 24 * time.Hour

type CacheState string

const (
	CacheFresh  CacheState = "fresh"
	CacheStale  CacheState = "stale"
	CacheAbsent CacheState = "absent"
)

// SnapshotPersister is durable storage behind the in-memory cache.
type SnapshotPersister interface {
	Save(ctx context.Context, key model.CacheKey, snap model.GeospatialSnapshot) error
	LoadActive(ctx context.Context, expiresAfter time.Time) ([]model.CachedSnapshot, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type RefreshResult struct {
	Key      model.CacheKey
	Snapshot model.GeospatialSnapshot
	Err      error
	// PersistErr is set when the snapshot was fetched and cached in memory
	// but the persister write failed.
	PersistErr error
}

type fetched struct {
	snap       model.GeospatialSnapshot
	persistErr error
}

// Lookup is the outcome of a cache read. Refresh is non-nil for stale and
// absent reads and delivers exactly one result.
type Lookup struct {
	State    CacheState
	Key      model.CacheKey
	Snapshot *model.GeospatialSnapshot
	Refresh  <-chan RefreshResult
}

type CacheStoreConfig struct {
	Provider       model.GeospatialProvider
	Persister      SnapshotPersister
	Clock          Clock
	RefreshTimeout time.Duration
	EvictAfter     time.Duration
}

// CacheStore holds geospatial snapshots keyed by quantized location and UTC
// date. Reads are served from memory; stale and absent reads trigger one
// background provider refresh per key.
type CacheStore struct {
	provider       model.GeospatialProvider
	persister      SnapshotPersister
	clock          Clock
	refreshTimeout time.Duration
	evictAfter     time.Duration

	mu      sync.RWMutex
	entries map[model.CacheKey]model.GeospatialSnapshot
	// dates per location, ascending
	dates map[model.LocationKey][]string

	group    singleflight.Group
	inFlight atomic.Int64
	wg       sync.WaitGroup
}

func NewCacheStore(cfg CacheStoreConfig) *CacheStore {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 10 * time.Second
	}
	if cfg.EvictAfter <= 0 {
		cfg.EvictAfter = DefaultEvictAfter
	}
	return &CacheStore{
		provider:       cfg.Provider,
		persister:      cfg.Persister,
		clock:          cfg.Clock,
		refreshTimeout: cfg.RefreshTimeout,
		evictAfter:     cfg.EvictAfter,
		entries:        make(map[model.CacheKey]model.GeospatialSnapshot),
		dates:          make(map[model.LocationKey][]string),
	}
}

// Get is an exact (location, date) lookup.
func (c *CacheStore) Get(key model.CacheKey) (*model.GeospatialSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return &snap, true
}

// Put stores snap under key, replacing any previous value, and writes it
// through to the persister. The in-memory write always succeeds; a returned
// error only reports the persister failure.
func (c *CacheStore) Put(ctx context.Context, key model.CacheKey, snap model.GeospatialSnapshot) error {
	c.store(key, snap)
	if c.persister == nil {
		return nil
	}
	if err := c.persister.Save(ctx, key, snap); err != nil {
		return fmt.Errorf("failed to persist snapshot %s: %w", key, err)
	}
	return nil
}

func (c *CacheStore) IsStale(snap model.GeospatialSnapshot) bool {
	return c.clock.Now().After(snap.ExpiresAt)
}

// Read returns the newest snapshot for the location dated on or before asOf.
// It never blocks on I/O.
func (c *CacheStore) Read(loc model.Location, asOf time.Time) Lookup {
	state, key, snap := c.peek(loc, asOf)
	metrics.CacheLookupsTotal.WithLabelValues(string(state)).Inc()

	lookup := Lookup{State: state, Key: key, Snapshot: snap}
	if state != CacheFresh {
		lookup.Refresh = c.refresh(loc, model.NewCacheKey(loc, asOf))
	}
	return lookup
}

// Peek reports what Read would return without scheduling a refresh.
func (c *CacheStore) Peek(loc model.Location, asOf time.Time) (CacheState, *model.GeospatialSnapshot) {
	state, _, snap := c.peek(loc, asOf)
	return state, snap
}

func (c *CacheStore) peek(loc model.Location, asOf time.Time) (CacheState, model.CacheKey, *model.GeospatialSnapshot) {
	lk := loc.Key()
	date := model.DateOf(asOf)

	c.mu.RLock()
	defer c.mu.RUnlock()

	dates := c.dates[lk]
	// newest date <= asOf's date
	i := sort.SearchStrings(dates, date)
	if i < len(dates) && dates[i] == date {
		i++
	}
	if i == 0 {
		return CacheAbsent, model.CacheKey{Location: lk, Date: date}, nil
	}

	key := model.CacheKey{Location: lk, Date: dates[i-1]}
	snap := c.entries[key]
	if asOf.After(snap.ExpiresAt) {
		return CacheStale, key, &snap
	}
	return CacheFresh, key, &snap
}

// Refresh fetches a new snapshot for today's key in the background. Callers
// asking for the same key while a fetch is in flight share it.
func (c *CacheStore) Refresh(loc model.Location) <-chan RefreshResult {
	return c.refresh(loc, model.NewCacheKey(loc, c.clock.Now()))
}

func (c *CacheStore) refresh(loc model.Location, key model.CacheKey) <-chan RefreshResult {
	out := make(chan RefreshResult, 1)
	shared := c.group.DoChan(key.String(), func() (any, error) {
		return c.fetch(loc, key)
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res := <-shared
		if res.Err != nil {
			out <- RefreshResult{Key: key, Err: res.Err}
			return
		}
		f := res.Val.(fetched)
		out <- RefreshResult{Key: key, Snapshot: f.snap, PersistErr: f.persistErr}
	}()
	return out
}

// fetch runs detached from any request: a consumer giving up must not cancel
// a refresh other readers are waiting on.
func (c *CacheStore) fetch(loc model.Location, key model.CacheKey) (fetched, error) {
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
	defer cancel()

	logger := log.WithField("key", key.String())
	raw, err := c.provider.Fetch(ctx, loc)
	if err != nil {
		metrics.CacheRefreshesTotal.WithLabelValues("error").Inc()
		logger.WithError(err).Warn("Warning: failed to refresh geospatial snapshot")
		return fetched{}, err
	}

	out := fetched{snap: model.NewSnapshot(raw, c.clock.Now())}
	if out.persistErr = c.Put(ctx, key, out.snap); out.persistErr != nil {
		logger.WithError(out.persistErr).Warn("Warning: failed to persist geospatial snapshot")
	}
	metrics.CacheRefreshesTotal.WithLabelValues("ok").Inc()
	logger.Debug("geospatial snapshot refreshed")
	return out, nil
}

func (c *CacheStore) store(key model.CacheKey, snap model.GeospatialSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		dates := c.dates[key.Location]
		i := sort.SearchStrings(dates, key.Date)
		dates = append(dates, "")
		copy(dates[i+1:], dates[i:])
		dates[i] = key.Date
		c.dates[key.Location] = dates
	}
	c.entries[key] = snap
	metrics.CacheEntries.Set(float64(len(c.entries)))
}

// Sweep evicts snapshots that expired more than EvictAfter before now, in
// memory and in the persister. It returns the number evicted from memory.
func (c *CacheStore) Sweep(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-c.evictAfter)

	c.mu.Lock()
	evicted := 0
	for key, snap := range c.entries {
		if snap.ExpiresAt.Before(cutoff) {
			delete(c.entries, key)
			c.removeDateLocked(key)
			evicted++
		}
	}
	metrics.CacheEntries.Set(float64(len(c.entries)))
	c.mu.Unlock()

	if c.persister != nil {
		if n, err := c.persister.DeleteExpired(ctx, cutoff); err != nil {
			log.WithError(err).Warn("Warning: failed to delete expired snapshots")
		} else if n > 0 {
			log.Infof("deleted %d expired snapshots from storage", n)
		}
	}
	return evicted
}

func (c *CacheStore) removeDateLocked(key model.CacheKey) {
	dates := c.dates[key.Location]
	i := sort.SearchStrings(dates, key.Date)
	if i < len(dates) && dates[i] == key.Date {
		dates = append(dates[:i], dates[i+1:]...)
	}
	if len(dates) == 0 {
		delete(c.dates, key.Location)
		return
	}
	c.dates[key.Location] = dates
}

// Run sweeps on every tick until ctx is done.
func (c *CacheStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(ctx, c.clock.Now()); n > 0 {
				log.Infof("evicted %d expired snapshots from memory", n)
			}
		}
	}
}

// Warm loads persisted snapshots that are not yet due for eviction.
func (c *CacheStore) Warm(ctx context.Context) (int, error) {
	if c.persister == nil {
		return 0, nil
	}
	rows, err := c.persister.LoadActive(ctx, c.clock.Now().Add(-c.evictAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to warm cache: %w", err)
	}
	for _, row := range rows {
		c.store(row.Key, row.Snapshot)
	}
	return len(rows), nil
}

// Wait blocks until every background refresh has delivered its result.
func (c *CacheStore) Wait() {
	c.wg.Wait()
}

type CacheStatus struct {
	Entries    int   `json:"entries"`
	Locations  int   `json:"locations"`
	InFlight   int64 `json:"refreshes_in_flight"`
	Persistent bool  `json:"persistent"`
}

func (c *CacheStore) Status() CacheStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStatus{
		Entries:    len(c.entries),
		Locations:  len(c.dates),
		InFlight:   c.inFlight.Load(),
		Persistent: c.persister != nil,
	}
}
