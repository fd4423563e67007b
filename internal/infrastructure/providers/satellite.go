package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"harvest_service/internal/domain/model"
)

const sourceSatellite = "satellite"

// SatelliteClient reads vegetation and soil indices from the satellite
// analytics service.
type SatelliteClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSatelliteClient(baseURL, apiKey string, timeout time.Duration) *SatelliteClient {
	return &SatelliteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  newHTTPClient(timeout),
	}
}

type SatelliteReading struct {
	NDVI         float64 `json:"ndvi"`
	SoilMoisture float64 `json:"soil_moisture"`
	RainfallMM   float64 `json:"rainfall_mm"`
}

func (c *SatelliteClient) Indices(ctx context.Context, loc model.Location) (SatelliteReading, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(loc.Latitude, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(loc.Longitude, 'f', 6, 64))

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("X-API-Key", c.apiKey)
	}

	var reading SatelliteReading
	if err := getJSON(ctx, c.client, sourceSatellite, fmt.Sprintf("%s/v1/indices?%s", c.baseURL, q.Encode()), header, &reading); err != nil {
		return SatelliteReading{}, err
	}
	return reading, nil
}
