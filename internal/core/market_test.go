package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"harvest_service/internal/domain/model"
)

func newTestMarket(t *testing.T, primary, fallback model.PriceSource, locator model.MarketLocator) *MarketCollector {
	t.Helper()
	settings := testSettings(t)
	return NewMarketCollector(MarketCollectorConfig{
		Primary:   primary,
		Fallback:  fallback,
		Locator:   locator,
		Transport: testTransport(t, settings),
		Settings:  settings,
		Timeout:   200 * time.Millisecond,
		Clock:     newFakeClock(testNow),
	})
}

func TestMarketCollector_PrimaryQuotes(t *testing.T) {
	primary := &fakePriceSource{name: "agmarknet", quotes: registryQuotes(20, 30, testNow.Add(-12*time.Hour))}
	fallback := &fakePriceSource{name: "quote_feed"}
	m := newTestMarket(t, primary, fallback, nil)

	report := m.Resolve(context.Background(), "tomato", farm, 2)

	assert.Equal(t, model.QualityExcellent, report.Quality)
	assert.Equal(t, "agmarknet", report.Source)
	assert.False(t, report.FallbackUsed)
	assert.False(t, report.Unavailable)
	assert.False(t, report.StaleQuotes)
	assert.Equal(t, int32(0), fallback.calls.Load())

	require.Len(t, report.Quotes, 2)
	assert.Equal(t, "Amravati", report.Quotes[0].MarketName, "quotes are ordered by distance")

	require.NotNil(t, report.NearestMarket)
	require.NotNil(t, report.BestMarket)
	assert.Equal(t, "Amravati", report.NearestMarket.MarketName)
	assert.Equal(t, "Nagpur", report.BestMarket.MarketName)
	assert.Less(t, report.NearestMarket.DistanceFromFarmerKm, 5.0)
	assert.Greater(t, report.BestMarket.DistanceFromFarmerKm, 100.0)

	assert.Equal(t, 10.0, report.PriceDifference)
	assert.Greater(t, report.NetAdvantage, 5.0)
	assert.Less(t, report.NetAdvantage, report.PriceDifference)
	assert.InDelta(t, report.BestMarket.NetValue-report.NearestMarket.NetValue, report.NetAdvantage, 0.011)
	assert.Equal(t, 500000.0, report.EstimatedExtraIncome)
	assert.Equal(t, testNow.Add(-12*time.Hour), report.NewestQuoteAt)

	for _, q := range report.Quotes {
		assert.InDelta(t, q.PricePerUnit-q.TransportCostPerKg, q.NetValue, 0.011)
	}
}

func TestMarketCollector_FallbackTriedOnce(t *testing.T) {
	tests := []struct {
		name    string
		primary *fakePriceSource
	}{
		{"primary error", &fakePriceSource{name: "agmarknet", err: model.SourceUnavailable("agmarknet", errBoom)}},
		{"primary empty", &fakePriceSource{name: "agmarknet", quotes: []model.MarketQuote{}}},
		{"primary timeout", &fakePriceSource{name: "agmarknet", quotes: registryQuotes(1, 1, testNow), delay: time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			fallback := &fakePriceSource{name: "quote_feed", quotes: registryQuotes(22, 28, testNow.Add(-time.Hour))}
			m := newTestMarket(t, tt.primary, fallback, nil)

			report := m.Resolve(context.Background(), "tomato", farm, 1)

			assert.Equal(t, int32(1), tt.primary.calls.Load())
			assert.Equal(t, int32(1), fallback.calls.Load())
			assert.True(t, report.FallbackUsed)
			assert.Equal(t, "quote_feed", report.Source)
			assert.Equal(t, model.QualityGood, report.Quality)
			assert.Equal(t, 6.0, report.PriceDifference)
		})
	}
}

func TestMarketCollector_BothFail(t *testing.T) {
	primary := &fakePriceSource{name: "agmarknet", err: model.SourceUnavailable("agmarknet", errBoom)}
	fallback := &fakePriceSource{name: "quote_feed", err: model.MalformedResponse("quote_feed", errBoom)}
	m := newTestMarket(t, primary, fallback, nil)

	report := m.Resolve(context.Background(), "tomato", farm, 1)

	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, int32(1), fallback.calls.Load())
	assert.True(t, report.Unavailable)
	assert.Equal(t, model.QualityPoor, report.Quality)
	assert.Equal(t, sourceRegistry, report.Source)
	assert.Empty(t, report.Quotes)
	assert.Zero(t, report.NetAdvantage)

	require.NotNil(t, report.NearestMarket)
	assert.Equal(t, "Amravati", report.NearestMarket.MarketName)
	assert.Zero(t, report.NearestMarket.PricePerUnit)
	assert.Equal(t, report.NearestMarket.MarketName, report.BestMarket.MarketName)
}

func TestMarketCollector_StaleQuotes(t *testing.T) {
	primary := &fakePriceSource{name: "agmarknet", quotes: registryQuotes(20, 30, testNow.Add(-49*time.Hour))}
	m := newTestMarket(t, primary, nil, nil)

	report := m.Resolve(context.Background(), "tomato", farm, 1)
	assert.True(t, report.StaleQuotes)
	assert.Equal(t, model.QualityFair, report.Quality)
}

func TestMarketCollector_Locator(t *testing.T) {
	akola := model.Location{Latitude: 20.7002, Longitude: 77.0082}
	locator := &fakeLocator{known: map[string]model.Location{"Akola": akola}}
	primary := &fakePriceSource{name: "agmarknet", quotes: []model.MarketQuote{
		{MarketName: "Akola", PricePerUnit: 24, ObservedAt: testNow, Source: "agmarknet"},
		{MarketName: "Nowhere", PricePerUnit: 99, ObservedAt: testNow, Source: "agmarknet"},
		{MarketName: "mumbai", PricePerUnit: 26, ObservedAt: testNow, Source: "agmarknet"},
	}}
	m := newTestMarket(t, primary, nil, locator)

	report := m.Resolve(context.Background(), "tomato", farm, 1)

	require.Len(t, report.Quotes, 2, "unlocatable quotes are dropped")
	assert.Equal(t, "Akola", report.Quotes[0].MarketName)
	assert.Equal(t, akola, *report.Quotes[0].Location)
	assert.Equal(t, "mumbai", report.Quotes[1].MarketName)
	assert.Equal(t, int32(2), locator.calls.Load(), "registry names skip the locator")
}

func TestMarketCollector_NothingLocatable(t *testing.T) {
	primary := &fakePriceSource{name: "agmarknet", quotes: []model.MarketQuote{
		{MarketName: "Nowhere", PricePerUnit: 99, ObservedAt: testNow},
	}}
	m := newTestMarket(t, primary, nil, &fakeLocator{err: errBoom})

	report := m.Resolve(context.Background(), "tomato", farm, 1)
	assert.True(t, report.Unavailable)
}

func TestMarketCollector_SameMarketHasNoAdvantage(t *testing.T) {
	primary := &fakePriceSource{name: "agmarknet", quotes: registryQuotes(25, 20, testNow)}
	m := newTestMarket(t, primary, nil, nil)

	report := m.Resolve(context.Background(), "tomato", farm, 1)
	assert.Equal(t, "Amravati", report.BestMarket.MarketName)
	assert.Equal(t, "Amravati", report.NearestMarket.MarketName)
	assert.Zero(t, report.NetAdvantage)
	assert.Zero(t, report.EstimatedExtraIncome)
}

func TestFindKnownMarket(t *testing.T) {
	registry := testSettings(t).Markets

	km, ok := findKnownMarket(registry, " MUMBAI ")
	require.True(t, ok)
	assert.Equal(t, "Mumbai APMC", km.Name)

	_, ok = findKnownMarket(registry, "Mum")
	assert.False(t, ok)
	_, ok = findKnownMarket(registry, "")
	assert.False(t, ok)
}
