package core

import (
	"context"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"harvest_service/internal/config"
	"harvest_service/internal/domain/model"
)

const sourceDefault = "default"

// GeospatialReport is the geospatial view of one request. It is always
// populated; Defaulted marks the conservative fallback.
type GeospatialReport struct {
	Snapshot   model.GeospatialSnapshot `json:"snapshot"`
	State      CacheState               `json:"cache_state"`
	Quality    model.DataQuality        `json:"data_quality"`
	Storm      StormAssessment          `json:"storm"`
	Conditions model.Conditions         `json:"conditions"`
	Defaulted  bool                     `json:"defaulted"`
	// AgeDays is the snapshot age at resolve time; zero when defaulted.
	AgeDays float64 `json:"age_days"`
}

// GeospatialCollector resolves snapshots through the cache and derives the
// crop-specific signals from them.
type GeospatialCollector struct {
	cache    *CacheStore
	settings *config.EngineSettings
	timeout  time.Duration
	clock    Clock
}

func NewGeospatialCollector(cache *CacheStore, settings *config.EngineSettings, timeout time.Duration, clock Clock) *GeospatialCollector {
	if clock == nil {
		clock = SystemClock()
	}
	return &GeospatialCollector{cache: cache, settings: settings, timeout: timeout, clock: clock}
}

// Resolve never fails. Fresh snapshots return immediately, stale ones return
// immediately while a refresh runs, and absent ones wait up to the collector
// timeout for the refresh before falling back to defaults.
func (g *GeospatialCollector) Resolve(ctx context.Context, loc model.Location, crop string) GeospatialReport {
	now := g.clock.Now()
	lookup := g.cache.Read(loc, now)
	logger := log.WithFields(log.Fields{"key": lookup.Key.String(), "state": string(lookup.State)})

	switch lookup.State {
	case CacheFresh:
		quality := model.QualityExcellent
		if lookup.Snapshot.Age(now) > g.freshFor() {
			quality = model.QualityGood
		}
		return g.derive(*lookup.Snapshot, crop, now, CacheFresh, quality)

	case CacheStale:
		logger.Info("serving stale geospatial snapshot")
		return g.derive(*lookup.Snapshot, crop, now, CacheStale, model.QualityFair)
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case res := <-lookup.Refresh:
		if res.Err == nil {
			quality := model.QualityExcellent
			if res.PersistErr != nil {
				quality = model.QualityGood
			}
			return g.derive(res.Snapshot, crop, now, CacheAbsent, quality)
		}
		logger.WithError(res.Err).Warn("Warning: geospatial refresh failed, using defaults")
	case <-timer.C:
		logger.Warn("Warning: geospatial refresh timed out, using defaults")
	case <-ctx.Done():
	}
	return DefaultGeospatialReport(now)
}

func (g *GeospatialCollector) freshFor() time.Duration {
	return time.Duration(g.settings.FreshSnapshotDays * float64(24*time.Hour))
}

func (g *GeospatialCollector) derive(snap model.GeospatialSnapshot, crop string, now time.Time, state CacheState, quality model.DataQuality) GeospatialReport {
	date := model.DateOf(now)
	cropCfg, _ := g.settings.Crop(crop)

	storm := AssessStorm(snap.Forecast, date, g.settings.Storm)
	snap.CropReady = CropReady(snap.NDVI, snap.SoilMoisture, cropCfg)
	snap.StormWithin48h = storm.Within48h

	return GeospatialReport{
		Snapshot:   snap,
		State:      state,
		Quality:    quality,
		Storm:      storm,
		Conditions: CurrentConditions(snap.Forecast, date),
		AgeDays:    snap.Age(now).Hours() / 24,
	}
}

// DefaultGeospatialReport is the conservative fallback: not ready, no storm,
// default conditions, poor quality.
func DefaultGeospatialReport(now time.Time) GeospatialReport {
	return GeospatialReport{
		Snapshot: model.GeospatialSnapshot{
			Source:     sourceDefault,
			CapturedAt: now,
			ExpiresAt:  now,
		},
		State:      CacheAbsent,
		Quality:    model.QualityPoor,
		Conditions: DefaultConditions(),
		Defaulted:  true,
	}
}

type PrefetchResult struct {
	Location model.Location `json:"location"`
	Key      string         `json:"key"`
	Error    string         `json:"error,omitempty"`
}

// Prefetch refreshes many locations with at most concurrency fetches at a
// time. Failures are reported per location.
func (g *GeospatialCollector) Prefetch(ctx context.Context, locs []model.Location, concurrency int) []PrefetchResult {
	if concurrency <= 0 {
		concurrency = 4
	}
	results := make([]PrefetchResult, len(locs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i, loc := range locs {
		i, loc := i, loc
		eg.Go(func() error {
			results[i] = PrefetchResult{Location: loc, Key: model.NewCacheKey(loc, g.clock.Now()).String()}
			select {
			case res := <-g.cache.Refresh(loc):
				if res.Err != nil {
					results[i].Error = res.Err.Error()
				}
			case <-ctx.Done():
				results[i].Error = ctx.Err().Error()
			}
			return nil
		})
	}
	_ = eg.Wait()
	return results
}
