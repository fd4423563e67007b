package model

import (
	"fmt"
	"math"
	"time"
)

// SnapshotTTL is fixed: a snapshot expires exactly seven days after capture.
const SnapshotTTL = 7 * 24 * time.Hour

// KeyPrecision is the number of decimal places kept when a location is used
// as a cache key (4 places is roughly 11m at the equator).
const KeyPrecision = 4

const keyScale = 10000.0

const dateLayout = "2006-01-02"

type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

func (l Location) Validate() error {
	if math.IsNaN(l.Latitude) || l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("latitude out of range [-90, 90]: %v", l.Latitude)
	}
	if math.IsNaN(l.Longitude) || l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("longitude out of range [-180, 180]: %v", l.Longitude)
	}
	return nil
}

// Key quantizes the location so that nearby requests share a cache entry.
func (l Location) Key() LocationKey {
	return LocationKey{
		LatE4: int64(math.Round(l.Latitude * keyScale)),
		LonE4: int64(math.Round(l.Longitude * keyScale)),
	}
}

func (l Location) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", l.Latitude, l.Longitude)
}

// LocationKey is a location rounded to KeyPrecision decimal places and
// stored as scaled integers so it is safe to compare and use as a map key.
type LocationKey struct {
	LatE4 int64 `db:"lat_e4"`
	LonE4 int64 `db:"lon_e4"`
}

func (k LocationKey) Location() Location {
	return Location{
		Latitude:  float64(k.LatE4) / keyScale,
		Longitude: float64(k.LonE4) / keyScale,
	}
}

func (k LocationKey) String() string {
	l := k.Location()
	return fmt.Sprintf("%.4f_%.4f", l.Latitude, l.Longitude)
}

// CacheKey identifies one snapshot: a quantized location on a UTC date.
type CacheKey struct {
	Location LocationKey
	Date     string
}

func NewCacheKey(loc Location, date time.Time) CacheKey {
	return CacheKey{Location: loc.Key(), Date: DateOf(date)}
}

func (k CacheKey) String() string {
	return k.Location.String() + "_" + k.Date
}

// DateOf formats t as the UTC calendar date used in cache keys and forecasts.
func DateOf(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

type DailyForecast struct {
	Date              string  `json:"date"`
	TempMaxC          float64 `json:"temp_max"`
	TempMinC          float64 `json:"temp_min"`
	HumidityPct       float64 `json:"humidity"`
	PrecipProbability float64 `json:"precip_probability"`
	PrecipAmountMM    float64 `json:"precip_amount"`
	Condition         string  `json:"condition"`
	WindSpeedKmh      float64 `json:"wind_speed"`
}

// RawGeospatial is what a satellite/weather provider returns for a location.
type RawGeospatial struct {
	NDVI         float64         `json:"ndvi"`
	SoilMoisture float64         `json:"soil_moisture"`
	RainfallMM   float64         `json:"rainfall_mm"`
	Forecast     []DailyForecast `json:"forecast"`
	Source       string          `json:"source"`
}

// Validate rejects provider payloads outside the documented signal ranges.
func (r RawGeospatial) Validate() error {
	if math.IsNaN(r.NDVI) || r.NDVI < 0 || r.NDVI > 1 {
		return fmt.Errorf("ndvi out of range [0, 1]: %v", r.NDVI)
	}
	if math.IsNaN(r.SoilMoisture) || r.SoilMoisture < 0 || r.SoilMoisture > 100 {
		return fmt.Errorf("soil moisture out of range [0, 100]: %v", r.SoilMoisture)
	}
	if math.IsNaN(r.RainfallMM) || r.RainfallMM < 0 {
		return fmt.Errorf("rainfall must be non-negative: %v", r.RainfallMM)
	}
	for i, day := range r.Forecast {
		if _, err := time.Parse(dateLayout, day.Date); err != nil {
			return fmt.Errorf("forecast[%d]: invalid date %q", i, day.Date)
		}
		if day.PrecipProbability < 0 || day.PrecipProbability > 1 {
			return fmt.Errorf("forecast[%d]: precipitation probability out of range: %v", i, day.PrecipProbability)
		}
		if day.PrecipAmountMM < 0 {
			return fmt.Errorf("forecast[%d]: negative precipitation amount: %v", i, day.PrecipAmountMM)
		}
		if day.HumidityPct < 0 || day.HumidityPct > 100 {
			return fmt.Errorf("forecast[%d]: humidity out of range: %v", i, day.HumidityPct)
		}
		if day.TempMinC > day.TempMaxC {
			return fmt.Errorf("forecast[%d]: temp_min above temp_max", i)
		}
	}
	return nil
}

type GeospatialSnapshot struct {
	NDVI           float64         `json:"ndvi"`
	SoilMoisture   float64         `json:"soil_moisture"`
	RainfallMM     float64         `json:"rainfall_mm"`
	CropReady      bool            `json:"crop_ready"`
	StormWithin48h bool            `json:"storm_within_48h"`
	Forecast       []DailyForecast `json:"forecast"`
	Source         string          `json:"source"`
	CapturedAt     time.Time       `json:"captured_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

// NewSnapshot captures raw provider data at capturedAt with the fixed TTL.
func NewSnapshot(raw RawGeospatial, capturedAt time.Time) GeospatialSnapshot {
	forecast := make([]DailyForecast, len(raw.Forecast))
	copy(forecast, raw.Forecast)
	return GeospatialSnapshot{
		NDVI:         raw.NDVI,
		SoilMoisture: raw.SoilMoisture,
		RainfallMM:   raw.RainfallMM,
		Forecast:     forecast,
		Source:       raw.Source,
		CapturedAt:   capturedAt,
		ExpiresAt:    capturedAt.Add(SnapshotTTL),
	}
}

// Conditions are the current temperature and humidity used for rule matching.
type Conditions struct {
	TemperatureC float64 `json:"temperature"`
	HumidityPct  float64 `json:"humidity"`
	Defaulted    bool    `json:"defaulted,omitempty"`
}

// CachedSnapshot pairs a snapshot with the key it was stored under.
type CachedSnapshot struct {
	Key      CacheKey
	Snapshot GeospatialSnapshot
}

// Age is how long ago the snapshot was captured, relative to now.
func (s GeospatialSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CapturedAt)
}
