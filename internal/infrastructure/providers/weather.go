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

const (
	sourceWeather = "openweathermap"
	forecastDays  = 8
	msToKmh       = 3.6
)

// WeatherClient fetches the daily forecast from an OpenWeatherMap One Call
// compatible endpoint.
type WeatherClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewWeatherClient(endpoint, apiKey string, timeout time.Duration) *WeatherClient {
	return &WeatherClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   newHTTPClient(timeout),
	}
}

type oneCallResponse struct {
	Daily []struct {
		Dt   int64 `json:"dt"`
		Temp struct {
			Max float64 `json:"max"`
			Min float64 `json:"min"`
		} `json:"temp"`
		Humidity  float64 `json:"humidity"`
		Pop       float64 `json:"pop"`
		Rain      float64 `json:"rain"`
		WindSpeed float64 `json:"wind_speed"`
		Weather   []struct {
			Main string `json:"main"`
		} `json:"weather"`
	} `json:"daily"`
}

func (c *WeatherClient) Forecast(ctx context.Context, loc model.Location) ([]model.DailyForecast, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(loc.Latitude, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(loc.Longitude, 'f', 6, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	q.Set("exclude", "minutely,hourly,alerts")

	var resp oneCallResponse
	if err := getJSON(ctx, c.client, sourceWeather, fmt.Sprintf("%s?%s", c.endpoint, q.Encode()), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Daily) == 0 {
		return nil, model.MalformedResponse(sourceWeather, fmt.Errorf("no daily forecast records"))
	}

	forecast := make([]model.DailyForecast, 0, forecastDays)
	for _, day := range resp.Daily {
		if len(forecast) == forecastDays {
			break
		}
		condition := ""
		if len(day.Weather) > 0 {
			condition = strings.ToLower(day.Weather[0].Main)
		}
		forecast = append(forecast, model.DailyForecast{
			Date:              model.DateOf(time.Unix(day.Dt, 0)),
			TempMaxC:          day.Temp.Max,
			TempMinC:          day.Temp.Min,
			HumidityPct:       day.Humidity,
			PrecipProbability: day.Pop,
			PrecipAmountMM:    day.Rain,
			Condition:         condition,
			WindSpeedKmh:      day.WindSpeed * msToKmh,
		})
	}
	return forecast, nil
}
