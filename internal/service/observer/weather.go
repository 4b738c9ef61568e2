package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const openWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

// OpenWeatherMap condition groups mapped to plain labels.
var weatherConditions = map[string]string{
	"Clear":        "sunny",
	"Clouds":       "cloudy",
	"Rain":         "rainy",
	"Drizzle":      "drizzle",
	"Thunderstorm": "stormy",
	"Snow":         "snowy",
	"Mist":         "misty",
	"Fog":          "foggy",
	"Haze":         "hazy",
	"Dust":         "dusty",
	"Sand":         "dusty",
	"Ash":          "ashy",
	"Squall":       "windy",
	"Tornado":      "tornado",
}

// Weather fetches current conditions from the OpenWeatherMap free tier.
// Without an API key and coordinates it registers disabled.
type Weather struct {
	client  *http.Client
	baseURL string
}

func NewWeather() *Weather {
	return &Weather{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: openWeatherURL,
	}
}

func (w *Weather) Meta() Meta {
	return Meta{
		Name:            "weather",
		IntervalMinutes: 30,
		Enabled:         true,
		RequiresConfig:  []string{"OPENWEATHER_API_KEY", "WEATHER_LAT", "WEATHER_LON"},
	}
}

func (w *Weather) Observe(ctx context.Context, ownerID int64) (Snapshot, error) {
	apiKey := os.Getenv("OPENWEATHER_API_KEY")
	lat := os.Getenv("WEATHER_LAT")
	lon := os.Getenv("WEATHER_LON")
	if apiKey == "" || lat == "" || lon == "" {
		return nil, fmt.Errorf("openweathermap config missing")
	}

	params := url.Values{}
	params.Set("lat", lat)
	params.Set("lon", lon)
	params.Set("appid", apiKey)
	params.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read weather response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather api http %d: %s", resp.StatusCode, body)
	}

	var data struct {
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}

	owmMain, description := "", ""
	if len(data.Weather) > 0 {
		owmMain = data.Weather[0].Main
		description = data.Weather[0].Description
	}
	condition := weatherConditions[owmMain]
	if condition == "" {
		condition = "unknown"
		if owmMain != "" {
			condition = strings.ToLower(owmMain)
		}
	}

	tempC := roundHalf(data.Main.Temp)
	summary := fmt.Sprintf("%.1f°C, %s", tempC, condition)
	if description != "" {
		summary = fmt.Sprintf("%.1f°C, %s", tempC, description)
	}

	return Snapshot{
		"temperature_c": tempC,
		"feels_like_c":  roundHalf(data.Main.FeelsLike),
		"condition":     condition,
		"description":   description,
		"humidity":      data.Main.Humidity,
		"wind_kph":      roundHalf(data.Wind.Speed * 3.6),
		"summary":       summary,
	}, nil
}

// roundHalf rounds to one decimal, half away from zero, so sub-zero
// temperatures round the same way as positive ones.
func roundHalf(v float64) float64 {
	return math.Round(v*10) / 10
}
