package model

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities; a larger rank is more severe. Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

type Source struct {
	ID          string  `json:"id" yaml:"id" db:"id"`
	Name        string  `json:"name" yaml:"name" db:"name"`
	Type        string  `json:"type" yaml:"type" db:"type"`
	Credibility float64 `json:"credibility" yaml:"credibility" db:"credibility"`
}

type SpoilageRule struct {
	ID                string   `json:"id" yaml:"id" db:"id"`
	CropID            string   `json:"crop" yaml:"crop" db:"crop_id"`
	Condition         string   `json:"condition" yaml:"condition" db:"condition"`
	TempMin           float64  `json:"temp_min" yaml:"temp_min" db:"temp_min"`
	TempMax           float64  `json:"temp_max" yaml:"temp_max" db:"temp_max"`
	HumidityMin       float64  `json:"humidity_min" yaml:"humidity_min" db:"humidity_min"`
	HumidityMax       float64  `json:"humidity_max" yaml:"humidity_max" db:"humidity_max"`
	SpoilageTimeHours int      `json:"spoilage_time_hours" yaml:"spoilage_time_hours" db:"spoilage_time_hours"`
	Severity          Severity `json:"severity" yaml:"severity" db:"severity"`
	SourceID          string   `json:"source_id" yaml:"source_id" db:"source_id"`
	SourceReference   string   `json:"source_reference" yaml:"source_reference" db:"source_reference"`
}

// Covers reports whether the reading falls inside both inclusive ranges.
func (r SpoilageRule) Covers(tempC, humidityPct float64) bool {
	return tempC >= r.TempMin && tempC <= r.TempMax &&
		humidityPct >= r.HumidityMin && humidityPct <= r.HumidityMax
}

func (r SpoilageRule) Validate() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return fmt.Errorf("rule id is required")
	case strings.TrimSpace(r.CropID) == "":
		return fmt.Errorf("rule %s: crop is required", r.ID)
	case r.TempMin > r.TempMax:
		return fmt.Errorf("rule %s: temp_min %.1f above temp_max %.1f", r.ID, r.TempMin, r.TempMax)
	case r.HumidityMin > r.HumidityMax:
		return fmt.Errorf("rule %s: humidity_min %.1f above humidity_max %.1f", r.ID, r.HumidityMin, r.HumidityMax)
	case r.SpoilageTimeHours <= 0:
		return fmt.Errorf("rule %s: spoilage_time_hours must be positive", r.ID)
	case !r.Severity.Valid():
		return fmt.Errorf("rule %s: unknown severity %q", r.ID, r.Severity)
	case strings.TrimSpace(r.SourceID) == "":
		return fmt.Errorf("rule %s: source_id is required", r.ID)
	}
	return nil
}
