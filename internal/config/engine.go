package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"harvest_service/internal/domain/model"
)

//go:embed defaults/engine.yaml
var defaultEngineYAML []byte

// EngineSettings are the static thresholds and tables the decision engine
// reads. Nothing in here is learned; it is all operator-supplied data.
type EngineSettings struct {
	Storm               StormSettings           `yaml:"storm"`
	PriceSpikeThreshold float64                 `yaml:"price_spike_threshold"`
	StaleQuoteHours     float64                 `yaml:"stale_quote_hours"`
	FreshSnapshotDays   float64                 `yaml:"fresh_snapshot_days"`
	Crops               map[string]CropSettings `yaml:"crops"`
	Transport           TransportSettings       `yaml:"transport"`
	Markets             []model.KnownMarket     `yaml:"markets"`
}

type StormSettings struct {
	PrecipProbability float64 `yaml:"precip_probability"`
	PrecipAmountMM    float64 `yaml:"precip_amount_mm"`
	// LookaheadDays is how many daily records count as "within 48h".
	LookaheadDays    int     `yaml:"lookahead_days"`
	HeavyAmountMM    float64 `yaml:"heavy_amount_mm"`
	ModerateAmountMM float64 `yaml:"moderate_amount_mm"`
	StrongWindKmh    float64 `yaml:"strong_wind_kmh"`
}

type CropSettings struct {
	Names             map[string]string `yaml:"names"`
	NDVIMin           float64           `yaml:"ndvi_min"`
	SoilMoistureMin   float64           `yaml:"soil_moisture_min"`
	SoilMoistureMax   float64           `yaml:"soil_moisture_max"`
	YieldKgPerHectare float64           `yaml:"yield_kg_per_hectare"`
}

// Name returns the crop's display name in lang, falling back to English and
// then to id.
func (c CropSettings) Name(id, lang string) string {
	if n, ok := c.Names[lang]; ok && n != "" {
		return n
	}
	if n, ok := c.Names["en"]; ok && n != "" {
		return n
	}
	return id
}

type TransportSettings struct {
	// BaseCostPerKg is charged once regardless of distance (loading, mandi fee).
	BaseCostPerKg float64         `yaml:"base_cost_per_kg"`
	Bands         []TransportBand `yaml:"bands"`
}

// TransportBand charges RatePerKm (₹/kg/km) for the distance between the
// previous band's limit and UpToKm. UpToKm = 0 marks the open-ended last band.
type TransportBand struct {
	UpToKm    float64 `yaml:"up_to_km"`
	RatePerKm float64 `yaml:"rate_per_km"`
}

// DefaultEngineSettings returns the embedded settings.
func DefaultEngineSettings() (*EngineSettings, error) {
	return ParseEngineSettings(defaultEngineYAML)
}

// LoadEngineSettings reads settings from path, or the embedded defaults when
// path is empty.
func LoadEngineSettings(path string) (*EngineSettings, error) {
	if path == "" {
		return DefaultEngineSettings()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.ConfigurationError("failed to read engine settings %s: %v", path, err)
	}
	return ParseEngineSettings(data)
}

func ParseEngineSettings(data []byte) (*EngineSettings, error) {
	var s EngineSettings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, model.ConfigurationError("failed to parse engine settings: %v", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *EngineSettings) Validate() error {
	if s.Storm.PrecipProbability <= 0 || s.Storm.PrecipProbability > 1 {
		return model.ConfigurationError("storm.precip_probability must be in (0, 1]")
	}
	if s.Storm.PrecipAmountMM < 0 {
		return model.ConfigurationError("storm.precip_amount_mm must be non-negative")
	}
	if s.Storm.LookaheadDays <= 0 {
		return model.ConfigurationError("storm.lookahead_days must be positive")
	}
	if s.PriceSpikeThreshold < 0 {
		return model.ConfigurationError("price_spike_threshold must be non-negative")
	}
	if s.StaleQuoteHours <= 0 || s.FreshSnapshotDays <= 0 {
		return model.ConfigurationError("stale_quote_hours and fresh_snapshot_days must be positive")
	}
	if len(s.Crops) == 0 {
		return model.ConfigurationError("no crops configured")
	}
	for id, c := range s.Crops {
		if c.NDVIMin < 0 || c.NDVIMin > 1 {
			return model.ConfigurationError("crop %s: ndvi_min out of range [0, 1]", id)
		}
		if c.SoilMoistureMin < 0 || c.SoilMoistureMax > 100 || c.SoilMoistureMin > c.SoilMoistureMax {
			return model.ConfigurationError("crop %s: invalid soil moisture range [%v, %v]", id, c.SoilMoistureMin, c.SoilMoistureMax)
		}
		if c.YieldKgPerHectare <= 0 {
			return model.ConfigurationError("crop %s: yield_kg_per_hectare must be positive", id)
		}
	}
	if err := s.Transport.validate(); err != nil {
		return err
	}
	for _, m := range s.Markets {
		if m.Name == "" {
			return model.ConfigurationError("known market without a name")
		}
		if err := m.Location().Validate(); err != nil {
			return model.ConfigurationError("market %s: %v", m.Name, err)
		}
	}
	return nil
}

func (t TransportSettings) validate() error {
	if len(t.Bands) == 0 {
		return model.ConfigurationError("transport rate table has no bands")
	}
	if t.BaseCostPerKg < 0 {
		return model.ConfigurationError("transport base_cost_per_kg must be non-negative")
	}
	prev := 0.0
	for i, b := range t.Bands {
		if b.RatePerKm < 0 {
			return model.ConfigurationError("transport band %d: negative rate", i)
		}
		last := i == len(t.Bands)-1
		if b.UpToKm == 0 && !last {
			return model.ConfigurationError("transport band %d: only the last band may be open-ended", i)
		}
		if b.UpToKm != 0 && b.UpToKm <= prev {
			return model.ConfigurationError("transport band %d: limits must increase", i)
		}
		prev = b.UpToKm
	}
	return nil
}

// Crop looks up a configured crop.
func (s *EngineSettings) Crop(id string) (CropSettings, bool) {
	c, ok := s.Crops[id]
	return c, ok
}

// CropIDs lists configured crops in sorted order.
func (s *EngineSettings) CropIDs() []string {
	ids := make([]string, 0, len(s.Crops))
	for id := range s.Crops {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *EngineSettings) String() string {
	return fmt.Sprintf("crops=%v storm=(p>%.2f, >%.0fmm) spike=₹%.2f/kg bands=%d markets=%d",
		s.CropIDs(), s.Storm.PrecipProbability, s.Storm.PrecipAmountMM,
		s.PriceSpikeThreshold, len(s.Transport.Bands), len(s.Markets))
}
