package core

import (
	"time"

	"harvest_service/internal/domain/model"
)

type FragmentType string

const (
	FragmentAction    FragmentType = "action"
	FragmentWeather   FragmentType = "weather"
	FragmentMarket    FragmentType = "market"
	FragmentSpoilage  FragmentType = "spoilage"
	FragmentReasoning FragmentType = "reasoning"
)

// FragmentOrder is the fixed emission order of a recommendation stream.
var FragmentOrder = []FragmentType{FragmentAction, FragmentWeather, FragmentMarket, FragmentSpoilage, FragmentReasoning}

// Fragment is one typed piece of a streamed recommendation. Seq starts at 1.
type Fragment struct {
	Type FragmentType `json:"type"`
	Seq  int          `json:"seq"`
	Data any          `json:"data"`
}

type ActionFragment struct {
	RecommendationID string            `json:"recommendation_id"`
	Action           model.Action      `json:"action"`
	Urgency          model.Urgency     `json:"urgency"`
	PrimaryFactor    model.Factor      `json:"primary_factor"`
	Message          string            `json:"message"`
	Summary          string            `json:"summary"`
	Confidence       float64           `json:"confidence"`
	DataQuality      model.DataQuality `json:"data_quality"`
	CropReady        bool              `json:"crop_ready"`
}

type WeatherFragment struct {
	StormWithin48h bool                  `json:"storm_within_48h"`
	RiskWindow     RiskWindow            `json:"risk_window,omitempty"`
	Impact         StormImpact           `json:"impact,omitempty"`
	Forecast       []model.DailyForecast `json:"forecast"`
	NDVI           float64               `json:"ndvi"`
	SoilMoisture   float64               `json:"soil_moisture"`
	RainfallMM     float64               `json:"rainfall_mm"`
	CropReady      bool                  `json:"crop_ready"`
	Conditions     model.Conditions      `json:"conditions"`
	CacheState     CacheState            `json:"cache_state"`
	Source         string                `json:"source"`
	CapturedAt     time.Time             `json:"captured_at"`
	DataQuality    model.DataQuality     `json:"data_quality"`
}

type MarketFragment struct {
	BestMarket           *PricedQuote      `json:"best_market"`
	NearestMarket        *PricedQuote      `json:"nearest_market"`
	Quotes               []PricedQuote     `json:"quotes"`
	PriceDifference      float64           `json:"price_difference"`
	NetAdvantage         float64           `json:"net_advantage"`
	EstimatedExtraIncome float64           `json:"estimated_extra_income"`
	Source               string            `json:"source"`
	FallbackUsed         bool              `json:"fallback_used"`
	Unavailable          bool              `json:"unavailable"`
	DataQuality          model.DataQuality `json:"data_quality"`
}

type SpoilageFragment struct {
	Matched             bool                `json:"matched"`
	Rule                *model.SpoilageRule `json:"rule,omitempty"`
	Approximate         bool                `json:"approximate"`
	RiskLevel           model.Severity      `json:"risk_level,omitempty"`
	TimeToSpoilageHours int                 `json:"time_to_spoilage_hours,omitempty"`
	TimeToSpoilage      string              `json:"time_to_spoilage,omitempty"`
	RiskFactors         []string            `json:"risk_factors"`
	Conditions          model.Conditions    `json:"conditions"`
	Citations           []model.Citation    `json:"citations"`
	DataQuality         model.DataQuality   `json:"data_quality"`
}

type ReasoningFragment struct {
	Chain        []string          `json:"reasoning_chain"`
	Summary      string            `json:"summary"`
	CitedSources []model.Citation  `json:"cited_sources"`
	Confidence   float64           `json:"confidence"`
	DataQuality  model.DataQuality `json:"data_quality"`
}

func weatherFragment(geo GeospatialReport) WeatherFragment {
	forecast := geo.Snapshot.Forecast
	if forecast == nil {
		forecast = []model.DailyForecast{}
	}
	return WeatherFragment{
		StormWithin48h: geo.Storm.Within48h,
		RiskWindow:     geo.Storm.Window,
		Impact:         geo.Storm.Impact,
		Forecast:       forecast,
		NDVI:           geo.Snapshot.NDVI,
		SoilMoisture:   geo.Snapshot.SoilMoisture,
		RainfallMM:     geo.Snapshot.RainfallMM,
		CropReady:      geo.Snapshot.CropReady,
		Conditions:     geo.Conditions,
		CacheState:     geo.State,
		Source:         geo.Snapshot.Source,
		CapturedAt:     geo.Snapshot.CapturedAt,
		DataQuality:    geo.Quality,
	}
}

func marketFragment(mk MarketReport) MarketFragment {
	quotes := mk.Quotes
	if quotes == nil {
		quotes = []PricedQuote{}
	}
	return MarketFragment{
		BestMarket:           mk.BestMarket,
		NearestMarket:        mk.NearestMarket,
		Quotes:               quotes,
		PriceDifference:      mk.PriceDifference,
		NetAdvantage:         mk.NetAdvantage,
		EstimatedExtraIncome: mk.EstimatedExtraIncome,
		Source:               mk.Source,
		FallbackUsed:         mk.FallbackUsed,
		Unavailable:          mk.Unavailable,
		DataQuality:          mk.Quality,
	}
}

func spoilageFragment(msgs *Messages, sp SpoilageReport) SpoilageFragment {
	f := SpoilageFragment{
		Matched:     sp.Match != nil,
		RiskFactors: sp.RiskFactors,
		Conditions:  sp.Conditions,
		Citations:   sp.Citations,
		DataQuality: sp.Quality,
	}
	if f.RiskFactors == nil {
		f.RiskFactors = []string{}
	}
	if sp.Match != nil {
		rule := sp.Match.Rule
		f.Rule = &rule
		f.Approximate = sp.Match.Approximate
		f.RiskLevel = rule.Severity
		f.TimeToSpoilageHours = rule.SpoilageTimeHours
		f.TimeToSpoilage = msgs.Spoilage(rule.SpoilageTimeHours)
	}
	return f
}
