package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"harvest_service/internal/config"
	"harvest_service/internal/domain/model"
	"harvest_service/internal/metrics"
)

const (
	DefaultCeiling = 2 * time.Second
	historyTimeout = 5 * time.Second
)

// ErrInvalidRequest wraps every request validation failure.
var ErrInvalidRequest = errors.New("invalid request")

type GeospatialResolver interface {
	Resolve(ctx context.Context, loc model.Location, crop string) GeospatialReport
}

type MarketResolver interface {
	Resolve(ctx context.Context, crop string, farmer model.Location, fieldSizeHectares float64) MarketReport
	UnavailableMarketReport(farmer model.Location) MarketReport
}

type SynthesizerConfig struct {
	Geospatial GeospatialResolver
	Market     MarketResolver
	Matcher    *RuleMatcher
	Settings   *config.EngineSettings
	// Region restricts accepted locations; nil accepts any valid coordinate.
	Region   *config.Region
	Recorder model.HistoryRecorder
	Clock    Clock
	Ceiling  time.Duration
}

// Synthesizer turns one request into a Recommendation and its ordered
// fragments. Collectors run concurrently on a context detached from the
// caller; whatever has not answered by the ceiling is replaced by its
// degraded default.
type Synthesizer struct {
	geo      GeospatialResolver
	market   MarketResolver
	matcher  *RuleMatcher
	settings *config.EngineSettings
	region   *config.Region
	recorder model.HistoryRecorder
	clock    Clock
	ceiling  time.Duration

	wg sync.WaitGroup
}

func NewSynthesizer(cfg SynthesizerConfig) *Synthesizer {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = DefaultCeiling
	}
	return &Synthesizer{
		geo:      cfg.Geospatial,
		market:   cfg.Market,
		matcher:  cfg.Matcher,
		settings: cfg.Settings,
		region:   cfg.Region,
		recorder: cfg.Recorder,
		clock:    cfg.Clock,
		ceiling:  cfg.Ceiling,
	}
}

// Result is a complete recommendation with the fragments it is streamed as.
type Result struct {
	Recommendation model.Recommendation `json:"recommendation"`
	Fragments      []Fragment           `json:"fragments"`
}

// Recommend synthesizes the full result in one call.
func (s *Synthesizer) Recommend(ctx context.Context, req model.RecommendationRequest) (*Result, error) {
	if err := s.prepare(&req); err != nil {
		return nil, err
	}
	res, err := s.synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	s.record(ctx, res.Recommendation)
	return res, nil
}

// Stream validates the request and returns a channel of fragments in the
// fixed order. The channel is closed after the last fragment, or early when
// ctx is cancelled.
func (s *Synthesizer) Stream(ctx context.Context, req model.RecommendationRequest) (<-chan Fragment, error) {
	if err := s.prepare(&req); err != nil {
		return nil, err
	}

	out := make(chan Fragment)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)

		res, err := s.synthesize(ctx, req)
		if err != nil {
			return
		}
		for _, f := range res.Fragments {
			select {
			case out <- f:
			case <-ctx.Done():
				log.WithField("request_id", res.Recommendation.ID).Info("consumer went away, stream aborted")
				return
			}
		}
		s.record(ctx, res.Recommendation)
	}()
	return out, nil
}

// Wait blocks until streams, collectors and history writes have finished.
func (s *Synthesizer) Wait() {
	s.wg.Wait()
}

func (s *Synthesizer) prepare(req *model.RecommendationRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if s.region != nil && !s.region.Contains(req.Location) {
		return fmt.Errorf("%w: location %s is outside the service region %s", ErrInvalidRequest, req.Location, s.region)
	}
	if _, ok := s.settings.Crop(req.Crop); !ok {
		return model.ConfigurationError("crop %q is not configured", req.Crop)
	}
	if s.matcher == nil || !s.matcher.rules.HasCrop(req.Crop) {
		return model.ConfigurationError("crop %q has no biological rules", req.Crop)
	}
	return nil
}

type collected struct {
	geo      GeospatialReport
	spoilage SpoilageReport
	market   MarketReport
}

func (s *Synthesizer) collect(ctx context.Context, req model.RecommendationRequest) (collected, error) {
	work := context.WithoutCancel(ctx)
	geoCh := make(chan GeospatialReport, 1)
	spoilCh := make(chan SpoilageReport, 1)
	marketCh := make(chan MarketReport, 1)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		geo := s.geo.Resolve(work, req.Location, req.Crop)
		geoCh <- geo
		spoilCh <- AssessSpoilage(s.matcher, req.Crop, geo.Conditions)
	}()
	go func() {
		defer s.wg.Done()
		marketCh <- s.market.Resolve(work, req.Crop, req.Location, req.FieldSizeHectares)
	}()

	timer := time.NewTimer(s.ceiling)
	defer timer.Stop()

	var (
		geo      *GeospatialReport
		spoilage *SpoilageReport
		market   *MarketReport
	)
wait:
	for geo == nil || spoilage == nil || market == nil {
		select {
		case g := <-geoCh:
			geo = &g
		case sp := <-spoilCh:
			spoilage = &sp
		case m := <-marketCh:
			market = &m
		case <-timer.C:
			break wait
		case <-ctx.Done():
			return collected{}, ctx.Err()
		}
	}

	logger := log.WithField("key", req.Location.Key().String())
	if geo == nil {
		logger.Warn("Warning: geospatial data missed the request ceiling, using defaults")
		d := DefaultGeospatialReport(s.clock.Now())
		geo = &d
	}
	if spoilage == nil {
		sp := AssessSpoilage(s.matcher, req.Crop, geo.Conditions)
		spoilage = &sp
	}
	if market == nil {
		logger.Warn("Warning: market data missed the request ceiling, treating market as unavailable")
		m := s.market.UnavailableMarketReport(req.Location)
		market = &m
	}
	return collected{geo: *geo, spoilage: *spoilage, market: *market}, nil
}

func (s *Synthesizer) synthesize(ctx context.Context, req model.RecommendationRequest) (*Result, error) {
	start := s.clock.Now()
	id := uuid.NewString()
	logger := log.WithFields(log.Fields{"request_id": id, "crop": req.Crop, "key": req.Location.Key().String()})

	c, err := s.collect(ctx, req)
	if err != nil {
		logger.WithError(err).Info("request cancelled before synthesis")
		return nil, err
	}

	decision := Decide(PolicyInput{
		CropReady:           c.geo.Snapshot.CropReady,
		StormWithin48h:      c.geo.Storm.Within48h,
		SpoilageSeverity:    c.spoilage.Severity(),
		NetAdvantage:        c.market.NetAdvantage,
		MarketAvailable:     !c.market.Unavailable,
		PriceSpikeThreshold: s.settings.PriceSpikeThreshold,
	})
	confidence := Confidence(decision, map[Branch]model.DataQuality{
		BranchGeospatial: c.geo.Quality,
		BranchSpoilage:   c.spoilage.Quality,
		BranchMarket:     c.market.Quality,
	})
	quality := model.QualityForScore(confidence)

	msgs := NewMessages(req.Language)
	cropCfg, _ := s.settings.Crop(req.Crop)
	ex := Explain(msgs, Evidence{
		Crop:       req.Crop,
		CropName:   cropCfg.Name(req.Crop, msgs.Language()),
		Geo:        c.geo,
		Spoilage:   c.spoilage,
		Market:     c.market,
		Decision:   decision,
		Settings:   EvidenceSettings{StaleQuoteHours: s.settings.StaleQuoteHours},
		ObservedAt: start,
	})

	rec := model.Recommendation{
		ID:                id,
		FarmerID:          req.FarmerID,
		Crop:              req.Crop,
		Location:          req.Location,
		FieldSizeHectares: req.FieldSizeHectares,
		Language:          msgs.Language(),
		Action:            decision.Action,
		Urgency:           decision.Urgency,
		PrimaryFactor:     decision.Factor,
		PrimaryMessage:    ex.Message,
		Summary:           ex.Summary,
		ReasoningChain:    ex.Chain,
		Confidence:        confidence,
		DataQuality:       quality,
		CitedSources:      c.spoilage.Citations,
		CreatedAt:         start,
	}

	payloads := []any{
		ActionFragment{
			RecommendationID: id,
			Action:           rec.Action,
			Urgency:          rec.Urgency,
			PrimaryFactor:    rec.PrimaryFactor,
			Message:          rec.PrimaryMessage,
			Summary:          rec.Summary,
			Confidence:       confidence,
			DataQuality:      quality,
			CropReady:        c.geo.Snapshot.CropReady,
		},
		weatherFragment(c.geo),
		marketFragment(c.market),
		spoilageFragment(msgs, c.spoilage),
		ReasoningFragment{
			Chain:        rec.ReasoningChain,
			Summary:      rec.Summary,
			CitedSources: rec.CitedSources,
			Confidence:   confidence,
			DataQuality:  quality,
		},
	}
	fragments := make([]Fragment, len(FragmentOrder))
	for i, t := range FragmentOrder {
		fragments[i] = Fragment{Type: t, Seq: i + 1, Data: payloads[i]}
	}

	metrics.RecommendationsTotal.WithLabelValues(string(rec.Action), string(quality)).Inc()
	metrics.RecommendationDurationSeconds.Observe(s.clock.Now().Sub(start).Seconds())
	logger.WithFields(log.Fields{
		"action":     rec.Action,
		"urgency":    rec.Urgency,
		"confidence": confidence,
	}).Info("recommendation synthesized")

	return &Result{Recommendation: rec, Fragments: fragments}, nil
}

// record hands the recommendation to the history recorder in the background.
// Failures are logged and counted only.
func (s *Synthesizer) record(ctx context.Context, rec model.Recommendation) {
	if s.recorder == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
		defer cancel()
		if err := s.recorder.Record(hctx, rec); err != nil {
			metrics.HistoryErrorsTotal.Inc()
			log.WithError(err).WithField("request_id", rec.ID).Warn("Warning: failed to record recommendation history")
		}
	}()
}
