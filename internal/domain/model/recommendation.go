package model

import (
	"fmt"
	"strings"
	"time"
)

type Action string

const (
	ActionHarvestNow Action = "harvest_now"
	ActionWait       Action = "wait"
	ActionSellNow    Action = "sell_now"
)

type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

// Factor names the signal that decided a recommendation.
type Factor string

const (
	FactorStormRisk         Factor = "storm_risk"
	FactorSpoilageRisk      Factor = "spoilage_risk"
	FactorMarketOpportunity Factor = "market_opportunity"
	FactorOptimalTiming     Factor = "optimal_timing"
)

type DataQuality string

const (
	QualityExcellent DataQuality = "excellent"
	QualityGood      DataQuality = "good"
	QualityFair      DataQuality = "fair"
	QualityPoor      DataQuality = "poor"
)

// Score maps a quality tier onto the 0-100 confidence scale.
func (q DataQuality) Score() float64 {
	switch q {
	case QualityExcellent:
		return 100
	case QualityGood:
		return 75
	case QualityFair:
		return 50
	default:
		return 25
	}
}

// Worse returns the lower of two quality tiers.
func (q DataQuality) Worse(other DataQuality) DataQuality {
	if other.Score() < q.Score() {
		return other
	}
	return q
}

// QualityForScore buckets a confidence value back into a tier. Thresholds sit
// halfway between adjacent tier scores.
func QualityForScore(score float64) DataQuality {
	switch {
	case score >= 87.5:
		return QualityExcellent
	case score >= 62.5:
		return QualityGood
	case score >= 37.5:
		return QualityFair
	default:
		return QualityPoor
	}
}

type Citation struct {
	Source      string  `json:"source"`
	Type        string  `json:"type"`
	Reference   string  `json:"reference"`
	Credibility float64 `json:"credibility"`
}

type RecommendationRequest struct {
	FarmerID          string   `json:"farmer_id,omitempty"`
	Location          Location `json:"location"`
	Crop              string   `json:"crop"`
	FieldSizeHectares float64  `json:"field_size"`
	Language          string   `json:"language,omitempty"`
}

func (r *RecommendationRequest) Normalize() {
	r.Crop = strings.ToLower(strings.TrimSpace(r.Crop))
	r.Language = strings.ToLower(strings.TrimSpace(r.Language))
	if r.Language == "" {
		r.Language = "en"
	}
}

func (r RecommendationRequest) Validate() error {
	if err := r.Location.Validate(); err != nil {
		return err
	}
	if r.Crop == "" {
		return fmt.Errorf("crop is required")
	}
	if r.FieldSizeHectares <= 0 || r.FieldSizeHectares > 1000 {
		return fmt.Errorf("field_size must be in (0, 1000] hectares: %v", r.FieldSizeHectares)
	}
	if r.Language != "en" && r.Language != "hi" {
		return fmt.Errorf("unsupported language %q", r.Language)
	}
	return nil
}

type Recommendation struct {
	ID                string      `json:"id"`
	FarmerID          string      `json:"farmer_id,omitempty"`
	Crop              string      `json:"crop"`
	Location          Location    `json:"location"`
	FieldSizeHectares float64     `json:"field_size"`
	Language          string      `json:"language"`
	Action            Action      `json:"action"`
	Urgency           Urgency     `json:"urgency"`
	PrimaryFactor     Factor      `json:"primary_factor"`
	PrimaryMessage    string      `json:"primary_message"`
	Summary           string      `json:"reasoning"`
	ReasoningChain    []string    `json:"reasoning_chain"`
	Confidence        float64     `json:"confidence"`
	DataQuality       DataQuality `json:"data_quality"`
	CitedSources      []Citation  `json:"cited_sources"`
	CreatedAt         time.Time   `json:"created_at"`
}
