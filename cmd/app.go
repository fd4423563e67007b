package main

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/jmoiron/sqlx"

	"harvest_service/internal/config"
	"harvest_service/internal/core"
	"harvest_service/internal/domain/model"
	"harvest_service/internal/domain/repository"
	"harvest_service/internal/infrastructure/messaging"
	"harvest_service/internal/infrastructure/providers"
	"harvest_service/internal/metrics"
)

// app holds the long-lived collaborators built once per process.
type app struct {
	cfg       *config.Config
	settings  *config.EngineSettings
	rules     *core.RuleStore
	db        *sqlx.DB
	cache     *core.CacheStore
	geo       *core.GeospatialCollector
	synth     *core.Synthesizer
	publisher *messaging.HistoryPublisher
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	metrics.Register()

	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var err error
	if cfg.EngineConfigPath != "" {
		a.settings, err = config.LoadEngineSettings(cfg.EngineConfigPath)
	} else {
		a.settings, err = config.DefaultEngineSettings()
	}
	if err != nil {
		return nil, err
	}

	if cfg.PostgresURL != "" {
		if a.db, err = repository.Connect(ctx, cfg.PostgresURL); err != nil {
			return nil, err
		}
		if err := repository.EnsureSchema(ctx, a.db); err != nil {
			return nil, err
		}
	}

	if a.rules, err = a.loadRules(ctx); err != nil {
		return nil, err
	}
	log.Infof("Loaded %s", a.rules)
	if err := a.rules.CheckCoverage(a.settings.CropIDs()); err != nil {
		return nil, err
	}

	transport, err := core.NewTransportCost(a.settings.Transport)
	if err != nil {
		return nil, err
	}

	var region *config.Region
	if cfg.ServiceRegion != "" {
		r, err := config.ParseBBox(cfg.ServiceRegion)
		if err != nil {
			return nil, model.ConfigurationError("invalid SERVICE_REGION: %v", err)
		}
		region = &r
	}

	provider := providers.NewGeospatialProvider(
		providers.NewSatelliteClient(cfg.SatelliteURL, cfg.SatelliteAPIKey, cfg.RefreshTimeout),
		providers.NewWeatherClient(cfg.WeatherURL, cfg.WeatherAPIKey, cfg.RefreshTimeout),
	)
	cacheCfg := core.CacheStoreConfig{Provider: provider, RefreshTimeout: cfg.RefreshTimeout}
	if a.db != nil {
		cacheCfg.Persister = repository.NewSnapshotRepository(a.db)
	}
	a.cache = core.NewCacheStore(cacheCfg)
	if n, err := a.cache.Warm(ctx); err != nil {
		log.WithError(err).Warn("Warning: failed to warm snapshot cache")
	} else if n > 0 {
		log.Infof("Warmed cache with %d snapshots", n)
	}

	a.geo = core.NewGeospatialCollector(a.cache, a.settings, cfg.GeoTimeout, nil)

	marketCfg := core.MarketCollectorConfig{
		Primary:   providers.NewAgmarknetClient(cfg.AgmarknetURL, cfg.AgmarknetResource, cfg.AgmarknetAPIKey, cfg.MarketTimeout),
		Fallback:  providers.NewQuoteFeedClient(cfg.FallbackMarketURL, cfg.MarketTimeout),
		Transport: transport,
		Settings:  a.settings,
		Timeout:   cfg.MarketTimeout,
	}
	if cfg.OverpassURL != "" && region != nil {
		marketCfg.Locator = repository.NewMarketplaceLocator(cfg.OverpassURL, cfg.OverpassTimeout, region.String())
	}

	recorder, err := a.historyRecorder()
	if err != nil {
		return nil, err
	}

	a.synth = core.NewSynthesizer(core.SynthesizerConfig{
		Geospatial: a.geo,
		Market:     core.NewMarketCollector(marketCfg),
		Matcher:    core.NewRuleMatcher(a.rules),
		Settings:   a.settings,
		Region:     region,
		Recorder:   recorder,
		Ceiling:    cfg.RequestCeiling,
	})

	ok = true
	return a, nil
}

// loadRules prefers rules stored in Postgres. An empty table is seeded from
// the YAML rule set so later starts read the same data.
func (a *app) loadRules(ctx context.Context) (*core.RuleStore, error) {
	if a.db != nil && a.cfg.RulesPath == "" {
		repo := repository.NewRulesRepository(a.db)
		sources, rules, err := repo.LoadRules(ctx)
		if err != nil {
			return nil, err
		}
		if len(rules) > 0 {
			return core.NewRuleStore(sources, rules)
		}
	}

	data, err := config.ReadRules(a.cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	store, err := core.LoadRuleStore(data)
	if err != nil {
		return nil, err
	}
	if a.db != nil {
		set := store.RuleSet()
		if err := repository.NewRulesRepository(a.db).ReplaceRules(ctx, set.Sources, set.Rules); err != nil {
			log.WithError(err).Warn("Warning: failed to seed rules into database")
		}
	}
	return store, nil
}

func (a *app) historyRecorder() (model.HistoryRecorder, error) {
	switch a.cfg.HistorySink {
	case "postgres":
		return repository.NewPostgresHistoryRecorder(a.db), nil
	case "amqp":
		pub, err := messaging.NewHistoryPublisher(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPRoutingKey)
		if err != nil {
			return nil, fmt.Errorf("failed to start history publisher: %w", err)
		}
		a.publisher = pub
		return pub, nil
	default:
		return nil, nil
	}
}

// Close waits for background work then releases connections.
func (a *app) Close() {
	if a.synth != nil {
		a.synth.Wait()
	}
	if a.cache != nil {
		a.cache.Wait()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			log.WithError(err).Warn("Warning: failed to close history publisher")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.WithError(err).Warn("Warning: failed to close database")
		}
	}
}
