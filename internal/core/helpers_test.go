package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"harvest_service/internal/config"
	"harvest_service/internal/domain/model"
)

// 2026-10-14 06:00 UTC
var testNow = time.Date(2026, 10, 14, 6, 0, 0, 0, time.UTC)

// farm sits a couple of kilometres from the Amravati market.
var farm = model.Location{Latitude: 20.94, Longitude: 77.76}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeProvider struct {
	mu    sync.Mutex
	raw   model.RawGeospatial
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (p *fakeProvider) Fetch(ctx context.Context, loc model.Location) (model.RawGeospatial, error) {
	p.calls.Add(1)
	p.mu.Lock()
	raw, err, delay := p.raw, p.err, p.delay
	p.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return model.RawGeospatial{}, model.SourceUnavailable("fake", ctx.Err())
		}
	}
	return raw, err
}

func (p *fakeProvider) set(raw model.RawGeospatial, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.raw, p.err = raw, err
}

type fakePriceSource struct {
	name   string
	quotes []model.MarketQuote
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (s *fakePriceSource) Name() string { return s.name }

func (s *fakePriceSource) FetchQuotes(ctx context.Context, crop string) ([]model.MarketQuote, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, model.SourceUnavailable(s.name, ctx.Err())
		}
	}
	return s.quotes, s.err
}

type fakeLocator struct {
	known map[string]model.Location
	err   error
	calls atomic.Int32
}

func (l *fakeLocator) Locate(ctx context.Context, name string) (model.Location, bool, error) {
	l.calls.Add(1)
	if l.err != nil {
		return model.Location{}, false, l.err
	}
	loc, ok := l.known[name]
	return loc, ok, nil
}

type memoryPersister struct {
	mu      sync.Mutex
	saved   map[model.CacheKey]model.GeospatialSnapshot
	saveErr error
	deleted []time.Time
}

func newMemoryPersister() *memoryPersister {
	return &memoryPersister{saved: make(map[model.CacheKey]model.GeospatialSnapshot)}
}

func (p *memoryPersister) Save(ctx context.Context, key model.CacheKey, snap model.GeospatialSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.saved[key] = snap
	return nil
}

func (p *memoryPersister) LoadActive(ctx context.Context, expiresAfter time.Time) ([]model.CachedSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.CachedSnapshot
	for k, s := range p.saved {
		if s.ExpiresAt.After(expiresAfter) {
			out = append(out, model.CachedSnapshot{Key: k, Snapshot: s})
		}
	}
	return out, nil
}

func (p *memoryPersister) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, before)
	var n int64
	for k, s := range p.saved {
		if s.ExpiresAt.Before(before) {
			delete(p.saved, k)
			n++
		}
	}
	return n, nil
}

type recordingRecorder struct {
	mu   sync.Mutex
	recs []model.Recommendation
	err  error
}

func (r *recordingRecorder) Record(ctx context.Context, rec model.Recommendation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return r.err
}

func (r *recordingRecorder) recorded() []model.Recommendation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Recommendation(nil), r.recs...)
}

var errBoom = errors.New("boom")

func testSettings(t *testing.T) *config.EngineSettings {
	t.Helper()
	s, err := config.DefaultEngineSettings()
	require.NoError(t, err)
	return s
}

func testRules(t *testing.T) *RuleStore {
	t.Helper()
	data, err := config.ReadRules("")
	require.NoError(t, err)
	store, err := LoadRuleStore(data)
	require.NoError(t, err)
	return store
}

func testTransport(t *testing.T, s *config.EngineSettings) *TransportCost {
	t.Helper()
	tc, err := NewTransportCost(s.Transport)
	require.NoError(t, err)
	return tc
}

// day builds a forecast record; offset is days after testNow's date.
func day(offset int, tmax, tmin, humidity, pop, mm float64) model.DailyForecast {
	return model.DailyForecast{
		Date:              model.DateOf(testNow.AddDate(0, 0, offset)),
		TempMaxC:          tmax,
		TempMinC:          tmin,
		HumidityPct:       humidity,
		PrecipProbability: pop,
		PrecipAmountMM:    mm,
		Condition:         "Clouds",
	}
}

// readyField is a crop in its harvest window under calm weather at 26°C / 70%.
func readyField() model.RawGeospatial {
	return model.RawGeospatial{
		NDVI:         0.75,
		SoilMoisture: 45,
		RainfallMM:   2,
		Forecast: []model.DailyForecast{
			day(0, 30, 22, 70, 0.1, 0),
			day(1, 31, 23, 65, 0.1, 0),
			day(2, 31, 23, 65, 0.7, 30),
		},
		Source: "satellite+openweathermap",
	}
}

// stormyField is readyField with heavy rain tomorrow.
func stormyField() model.RawGeospatial {
	raw := readyField()
	raw.Forecast[1] = day(1, 29, 22, 85, 0.85, 60)
	return raw
}

// registryQuotes are priced at known markets so no locator is needed.
func registryQuotes(nearPrice, farPrice float64, observed time.Time) []model.MarketQuote {
	return []model.MarketQuote{
		{MarketName: "Amravati", PricePerUnit: nearPrice, ObservedAt: observed, Source: "agmarknet"},
		{MarketName: "Nagpur", PricePerUnit: farPrice, ObservedAt: observed, Source: "agmarknet"},
	}
}
