package core

import (
	"harvest_service/internal/config"
	"harvest_service/internal/domain/model"
)

const (
	defaultTemperatureC = 25.0
	defaultHumidityPct  = 70.0
)

// CropReady reports whether vegetation and soil signals put the crop in its
// harvest window: NDVI above the crop's minimum and soil moisture within its
// inclusive range.
func CropReady(ndvi, soilMoisture float64, crop config.CropSettings) bool {
	return ndvi > crop.NDVIMin &&
		soilMoisture >= crop.SoilMoistureMin &&
		soilMoisture <= crop.SoilMoistureMax
}

type RiskWindow string

const (
	WindowNone    RiskWindow = ""
	WindowNext24h RiskWindow = "next_24h"
	Window24To48h RiskWindow = "24_48h"
)

type StormImpact string

const (
	ImpactNone     StormImpact = ""
	ImpactLight    StormImpact = "light"
	ImpactModerate StormImpact = "moderate"
	ImpactHeavy    StormImpact = "heavy"
)

// StormAssessment describes the first qualifying storm day, if any.
type StormAssessment struct {
	Within48h bool                 `json:"storm_within_48h"`
	Window    RiskWindow           `json:"risk_window,omitempty"`
	Impact    StormImpact          `json:"impact,omitempty"`
	Day       *model.DailyForecast `json:"day,omitempty"`
}

// upcoming returns forecast records dated on or after date, in order.
func upcoming(forecast []model.DailyForecast, date string) []model.DailyForecast {
	for i, day := range forecast {
		if day.Date >= date {
			return forecast[i:]
		}
	}
	return nil
}

// AssessStorm flags a storm when any of the next LookaheadDays records has
// precipitation probability and amount strictly above the thresholds.
func AssessStorm(forecast []model.DailyForecast, date string, s config.StormSettings) StormAssessment {
	next := upcoming(forecast, date)
	if len(next) > s.LookaheadDays {
		next = next[:s.LookaheadDays]
	}
	for i, day := range next {
		if day.PrecipProbability > s.PrecipProbability && day.PrecipAmountMM > s.PrecipAmountMM {
			d := day
			window := Window24To48h
			if i == 0 {
				window = WindowNext24h
			}
			return StormAssessment{
				Within48h: true,
				Window:    window,
				Impact:    stormImpact(day, s),
				Day:       &d,
			}
		}
	}
	return StormAssessment{}
}

func stormImpact(day model.DailyForecast, s config.StormSettings) StormImpact {
	switch {
	case day.PrecipAmountMM > s.HeavyAmountMM || (s.StrongWindKmh > 0 && day.WindSpeedKmh > s.StrongWindKmh):
		return ImpactHeavy
	case day.PrecipAmountMM > s.ModerateAmountMM:
		return ImpactModerate
	default:
		return ImpactLight
	}
}

// CurrentConditions takes the first upcoming record's mean temperature and
// humidity, falling back to 25°C / 70% when there is none.
func CurrentConditions(forecast []model.DailyForecast, date string) model.Conditions {
	next := upcoming(forecast, date)
	if len(next) == 0 {
		return DefaultConditions()
	}
	day := next[0]
	return model.Conditions{
		TemperatureC: (day.TempMaxC + day.TempMinC) / 2,
		HumidityPct:  day.HumidityPct,
	}
}

func DefaultConditions() model.Conditions {
	return model.Conditions{
		TemperatureC: defaultTemperatureC,
		HumidityPct:  defaultHumidityPct,
		Defaulted:    true,
	}
}
