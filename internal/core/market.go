package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/apex/log"

	"harvest_service/internal/config"
	"harvest_service/internal/domain/model"
)

const sourceRegistry = "registry"

// PricedQuote is a located quote with its transport cost and net value.
type PricedQuote struct {
	model.MarketQuote
	TransportCostPerKg float64 `json:"transport_cost_per_kg"`
	NetValue           float64 `json:"net_value_per_kg"`
}

type MarketReport struct {
	Quotes               []PricedQuote     `json:"quotes"`
	BestMarket           *PricedQuote      `json:"best_market"`
	NearestMarket        *PricedQuote      `json:"nearest_market"`
	PriceDifference      float64           `json:"price_difference"`
	NetAdvantage         float64           `json:"net_advantage"`
	EstimatedExtraIncome float64           `json:"estimated_extra_income"`
	Source               string            `json:"source"`
	FallbackUsed         bool              `json:"fallback_used"`
	Unavailable          bool              `json:"unavailable"`
	StaleQuotes          bool              `json:"stale_quotes"`
	NewestQuoteAt        time.Time         `json:"newest_quote_at"`
	Quality              model.DataQuality `json:"data_quality"`
}

type MarketCollectorConfig struct {
	Primary   model.PriceSource
	Fallback  model.PriceSource
	Locator   model.MarketLocator
	Transport *TransportCost
	Settings  *config.EngineSettings
	Timeout   time.Duration
	Clock     Clock
}

// MarketCollector compares mandi prices net of transport from the farmer's
// location. The fallback source is tried exactly once when the primary fails.
type MarketCollector struct {
	primary   model.PriceSource
	fallback  model.PriceSource
	locator   model.MarketLocator
	transport *TransportCost
	settings  *config.EngineSettings
	registry  []model.KnownMarket
	timeout   time.Duration
	clock     Clock
}

func NewMarketCollector(cfg MarketCollectorConfig) *MarketCollector {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	return &MarketCollector{
		primary:   cfg.Primary,
		fallback:  cfg.Fallback,
		locator:   cfg.Locator,
		transport: cfg.Transport,
		settings:  cfg.Settings,
		registry:  cfg.Settings.Markets,
		timeout:   cfg.Timeout,
		clock:     cfg.Clock,
	}
}

// Resolve never fails; when no source yields usable quotes the report is
// Unavailable and points at the nearest registered market.
func (m *MarketCollector) Resolve(ctx context.Context, crop string, farmer model.Location, fieldSizeHectares float64) MarketReport {
	logger := log.WithField("crop", crop)

	quotes, source, fallbackUsed := m.fetch(ctx, crop, logger)
	if quotes == nil {
		return m.unavailable(farmer)
	}

	priced := m.price(ctx, quotes, farmer, logger)
	if len(priced) == 0 {
		logger.Warn("Warning: no market quote could be located")
		return m.unavailable(farmer)
	}

	report := MarketReport{
		Quotes:       priced,
		Source:       source,
		FallbackUsed: fallbackUsed,
		Quality:      model.QualityExcellent,
	}
	if fallbackUsed {
		report.Quality = model.QualityGood
	}

	best, nearest := &priced[0], &priced[0]
	for i := range priced[1:] {
		q := &priced[i+1]
		if q.NetValue > best.NetValue || (q.NetValue == best.NetValue && nearer(q, best)) {
			best = q
		}
		if nearer(q, nearest) {
			nearest = q
		}
		if q.ObservedAt.After(report.NewestQuoteAt) {
			report.NewestQuoteAt = q.ObservedAt
		}
	}
	if priced[0].ObservedAt.After(report.NewestQuoteAt) {
		report.NewestQuoteAt = priced[0].ObservedAt
	}

	staleAfter := time.Duration(m.settings.StaleQuoteHours * float64(time.Hour))
	if m.clock.Now().Sub(report.NewestQuoteAt) > staleAfter {
		report.StaleQuotes = true
		report.Quality = report.Quality.Worse(model.QualityFair)
	}

	bestCopy, nearestCopy := *best, *nearest
	report.BestMarket = &bestCopy
	report.NearestMarket = &nearestCopy
	report.PriceDifference = round2(best.PricePerUnit - nearest.PricePerUnit)
	report.NetAdvantage = round2(best.NetValue - nearest.NetValue)
	if cropCfg, ok := m.settings.Crop(crop); ok {
		report.EstimatedExtraIncome = round2(report.PriceDifference * cropCfg.YieldKgPerHectare * fieldSizeHectares)
	}
	return report
}

func nearer(a, b *PricedQuote) bool {
	if a.DistanceFromFarmerKm != b.DistanceFromFarmerKm {
		return a.DistanceFromFarmerKm < b.DistanceFromFarmerKm
	}
	return a.MarketName < b.MarketName
}

// fetch tries the primary then the fallback, each under its own timeout. A
// source failing or returning nothing counts as a failure.
func (m *MarketCollector) fetch(ctx context.Context, crop string, logger log.Interface) ([]model.MarketQuote, string, bool) {
	sources := []model.PriceSource{m.primary, m.fallback}
	for i, src := range sources {
		if src == nil {
			continue
		}
		quotes, err := m.call(ctx, src, crop)
		if err == nil && len(quotes) == 0 {
			err = model.SourceUnavailable(src.Name(), errors.New("no quotes returned"))
		}
		if err == nil {
			return quotes, src.Name(), i > 0
		}
		if !model.IsRecoverable(err) {
			logger.WithError(err).Error("market source misconfigured")
		} else {
			logger.WithError(err).Warnf("Warning: failed to fetch quotes from %s", src.Name())
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, "", false
}

// call bounds a source call even if the source ignores its context. The
// call finishes into a buffered channel whose result may be discarded.
func (m *MarketCollector) call(ctx context.Context, src model.PriceSource, crop string) ([]model.MarketQuote, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	type reply struct {
		quotes []model.MarketQuote
		err    error
	}
	done := make(chan reply, 1)
	go func() {
		q, err := src.FetchQuotes(ctx, crop)
		done <- reply{quotes: q, err: err}
	}()

	select {
	case r := <-done:
		return r.quotes, r.err
	case <-ctx.Done():
		return nil, model.SourceUnavailable(src.Name(), fmt.Errorf("timed out after %s: %w", m.timeout, ctx.Err()))
	}
}

func (m *MarketCollector) price(ctx context.Context, quotes []model.MarketQuote, farmer model.Location, logger log.Interface) []PricedQuote {
	priced := make([]PricedQuote, 0, len(quotes))
	for _, q := range quotes {
		if q.Location == nil {
			loc, ok := m.locate(ctx, q.MarketName, logger)
			if !ok {
				logger.WithField("market", q.MarketName).Debug("dropping quote without location")
				continue
			}
			q.Location = &loc
		}
		q.DistanceFromFarmerKm = round2(DistanceKm(farmer, *q.Location))
		cost := m.transport.PerKg(q.DistanceFromFarmerKm)
		priced = append(priced, PricedQuote{
			MarketQuote:        q,
			TransportCostPerKg: round2(cost),
			NetValue:           round2(q.PricePerUnit - cost),
		})
	}
	sort.SliceStable(priced, func(i, j int) bool { return nearer(&priced[i], &priced[j]) })
	return priced
}

func (m *MarketCollector) locate(ctx context.Context, name string, logger log.Interface) (model.Location, bool) {
	if km, ok := findKnownMarket(m.registry, name); ok {
		return km.Location(), true
	}
	if m.locator == nil {
		return model.Location{}, false
	}
	loc, found, err := m.locator.Locate(ctx, name)
	if err != nil {
		logger.WithError(err).WithField("market", name).Warn("Warning: failed to locate market")
		return model.Location{}, false
	}
	return loc, found
}

// findKnownMarket matches case-insensitively, allowing a quote name to be the
// leading word(s) of a registry name ("Mumbai" for "Mumbai APMC").
func findKnownMarket(registry []model.KnownMarket, name string) (model.KnownMarket, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return model.KnownMarket{}, false
	}
	for _, km := range registry {
		if strings.ToLower(km.Name) == want {
			return km, true
		}
	}
	for _, km := range registry {
		if strings.HasPrefix(strings.ToLower(km.Name), want+" ") {
			return km, true
		}
	}
	return model.KnownMarket{}, false
}

func (m *MarketCollector) unavailable(farmer model.Location) MarketReport {
	report := MarketReport{Unavailable: true, Source: sourceRegistry, Quality: model.QualityPoor}

	var nearest *model.KnownMarket
	bestDist := math.Inf(1)
	for i := range m.registry {
		d := DistanceKm(farmer, m.registry[i].Location())
		if d < bestDist {
			nearest, bestDist = &m.registry[i], d
		}
	}
	if nearest == nil {
		return report
	}

	loc := nearest.Location()
	q := &PricedQuote{
		MarketQuote: model.MarketQuote{
			MarketName:           nearest.Name,
			Location:             &loc,
			DistanceFromFarmerKm: round2(bestDist),
			Source:               sourceRegistry,
		},
		TransportCostPerKg: round2(m.transport.PerKg(bestDist)),
	}
	report.BestMarket = q
	nearestCopy := *q
	report.NearestMarket = &nearestCopy
	return report
}

// UnavailableMarketReport is used when the collector did not answer in time.
func (m *MarketCollector) UnavailableMarketReport(farmer model.Location) MarketReport {
	return m.unavailable(farmer)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
