package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvest_service/internal/config"
	"harvest_service/internal/domain/model"
)

func TestTransportCost_PerKg(t *testing.T) {
	tc := testTransport(t, testSettings(t))

	tests := []struct {
		km   float64
		want float64
	}{
		{0, 0.3},
		{-5, 0.3},
		{10, 0.5},
		{50, 1.3},
		{100, 2.05},
		{200, 3.55},
		{300, 4.55},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, tc.PerKg(tt.km), 1e-9, "km=%v", tt.km)
	}
}

func TestTransportCost_Monotonic(t *testing.T) {
	tc := testTransport(t, testSettings(t))
	prev := tc.PerKg(0)
	for km := 1.0; km <= 1000; km += 7 {
		cur := tc.PerKg(km)
		assert.GreaterOrEqual(t, cur, prev, "km=%v", km)
		prev = cur
	}
}

func TestTransportCost_BoundedLastBand(t *testing.T) {
	tc, err := NewTransportCost(config.TransportSettings{
		BaseCostPerKg: 1,
		Bands:         []config.TransportBand{{UpToKm: 10, RatePerKm: 0.1}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, tc.PerKg(20), 1e-9, "rate carries on past the last limit")
}

func TestNewTransportCost_Rejects(t *testing.T) {
	_, err := NewTransportCost(config.TransportSettings{})
	assert.True(t, model.IsConfigurationError(err))

	_, err = NewTransportCost(config.TransportSettings{Bands: []config.TransportBand{{RatePerKm: -1}}})
	assert.True(t, model.IsConfigurationError(err))
}
