package providers

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"harvest_service/internal/domain/model"
)

const sourceGeospatial = "satellite+openweathermap"

// GeospatialProvider joins satellite indices and the weather forecast into
// one RawGeospatial. Both calls run concurrently and either failing fails
// the whole fetch.
type GeospatialProvider struct {
	satellite *SatelliteClient
	weather   *WeatherClient
}

func NewGeospatialProvider(satellite *SatelliteClient, weather *WeatherClient) *GeospatialProvider {
	return &GeospatialProvider{satellite: satellite, weather: weather}
}

func (p *GeospatialProvider) Fetch(ctx context.Context, loc model.Location) (model.RawGeospatial, error) {
	var (
		reading  SatelliteReading
		forecast []model.DailyForecast
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reading, err = p.satellite.Indices(gctx, loc)
		return err
	})
	g.Go(func() error {
		var err error
		forecast, err = p.weather.Forecast(gctx, loc)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.RawGeospatial{}, fmt.Errorf("geospatial fetch for %s: %w", loc, err)
	}

	raw := model.RawGeospatial{
		NDVI:         reading.NDVI,
		SoilMoisture: reading.SoilMoisture,
		RainfallMM:   reading.RainfallMM,
		Forecast:     forecast,
		Source:       sourceGeospatial,
	}
	if err := raw.Validate(); err != nil {
		return model.RawGeospatial{}, model.MalformedResponse(sourceGeospatial, err)
	}
	return raw, nil
}
