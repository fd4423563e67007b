package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvest_service/internal/domain/model"
)

func TestCropReady(t *testing.T) {
	tomato, ok := testSettings(t).Crop("tomato")
	require.True(t, ok)

	tests := []struct {
		name string
		ndvi float64
		soil float64
		want bool
	}{
		{"in window", 0.75, 45, true},
		{"ndvi at minimum is not enough", 0.6, 45, false},
		{"soil at lower bound", 0.7, 20, true},
		{"soil at upper bound", 0.7, 80, true},
		{"soil too wet", 0.7, 81, false},
		{"soil too dry", 0.7, 19, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CropReady(tt.ndvi, tt.soil, tomato))
		})
	}
}

func TestAssessStorm(t *testing.T) {
	storm := testSettings(t).Storm
	date := model.DateOf(testNow)

	tests := []struct {
		name     string
		forecast []model.DailyForecast
		want     bool
		window   RiskWindow
		impact   StormImpact
	}{
		{"calm", readyField().Forecast, false, WindowNone, ImpactNone},
		{"tomorrow heavy", stormyField().Forecast, true, Window24To48h, ImpactHeavy},
		{"today moderate", []model.DailyForecast{day(0, 28, 22, 90, 0.9, 30)}, true, WindowNext24h, ImpactModerate},
		{"today light", []model.DailyForecast{day(0, 28, 22, 90, 0.9, 12)}, true, WindowNext24h, ImpactLight},
		{"thresholds are strict", []model.DailyForecast{day(0, 28, 22, 90, 0.6, 50), day(1, 28, 22, 90, 0.9, 10)}, false, WindowNone, ImpactNone},
		{"third day is outside 48h", []model.DailyForecast{day(0, 28, 22, 60, 0, 0), day(1, 28, 22, 60, 0, 0), day(2, 28, 22, 90, 0.9, 80)}, false, WindowNone, ImpactNone},
		{"past records are skipped", []model.DailyForecast{day(-1, 28, 22, 90, 0.9, 80), day(0, 28, 22, 60, 0, 0)}, false, WindowNone, ImpactNone},
		{"empty forecast", nil, false, WindowNone, ImpactNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssessStorm(tt.forecast, date, storm)
			assert.Equal(t, tt.want, got.Within48h)
			assert.Equal(t, tt.window, got.Window)
			assert.Equal(t, tt.impact, got.Impact)
			if tt.want {
				require.NotNil(t, got.Day)
			}
		})
	}
}

func TestAssessStorm_StrongWindIsHeavy(t *testing.T) {
	d := day(0, 28, 22, 90, 0.9, 15)
	d.WindSpeedKmh = 55
	got := AssessStorm([]model.DailyForecast{d}, model.DateOf(testNow), testSettings(t).Storm)
	assert.Equal(t, ImpactHeavy, got.Impact)
}

func TestCurrentConditions(t *testing.T) {
	date := model.DateOf(testNow)

	got := CurrentConditions(readyField().Forecast, date)
	assert.Equal(t, model.Conditions{TemperatureC: 26, HumidityPct: 70}, got)

	got = CurrentConditions([]model.DailyForecast{day(-2, 40, 30, 90, 0, 0)}, date)
	assert.Equal(t, DefaultConditions(), got)
	assert.True(t, got.Defaulted)
	assert.Equal(t, 25.0, got.TemperatureC)
	assert.Equal(t, 70.0, got.HumidityPct)
}
