package core

import (
	"harvest_service/internal/config"
	"harvest_service/internal/domain/model"
)

// TransportCost prices moving one kilogram a given distance with a banded,
// piecewise-linear rate table. Rates are non-negative so cost never
// decreases with distance.
type TransportCost struct {
	base  float64
	bands []config.TransportBand
}

func NewTransportCost(cfg config.TransportSettings) (*TransportCost, error) {
	if len(cfg.Bands) == 0 {
		return nil, model.ConfigurationError("transport rate table has no bands")
	}
	for i, b := range cfg.Bands {
		if b.RatePerKm < 0 {
			return nil, model.ConfigurationError("transport band %d: negative rate", i)
		}
	}
	bands := make([]config.TransportBand, len(cfg.Bands))
	copy(bands, cfg.Bands)
	return &TransportCost{base: cfg.BaseCostPerKg, bands: bands}, nil
}

// PerKg returns the ₹/kg cost for distanceKm.
func (t *TransportCost) PerKg(distanceKm float64) float64 {
	if distanceKm < 0 {
		distanceKm = 0
	}
	cost := t.base
	prev := 0.0
	for _, b := range t.bands {
		if b.UpToKm == 0 || distanceKm <= b.UpToKm {
			return cost + (distanceKm-prev)*b.RatePerKm
		}
		cost += (b.UpToKm - prev) * b.RatePerKm
		prev = b.UpToKm
	}
	// past the last bounded band the last rate continues
	return cost + (distanceKm-prev)*t.bands[len(t.bands)-1].RatePerKm
}
