package observer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setWeatherEnv(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "test-key")
	t.Setenv("WEATHER_LAT", "31.2304")
	t.Setenv("WEATHER_LON", "121.4737")
}

func TestWeatherObserve(t *testing.T) {
	setWeatherEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		rw.Write([]byte(`{
			"weather": [{"main": "Clouds", "description": "scattered clouds"}],
			"main": {"temp": 21.46, "feels_like": 21.04, "humidity": 40},
			"wind": {"speed": 5.0}
		}`))
	}))
	defer srv.Close()

	w := NewWeather()
	w.baseURL = srv.URL

	snap, err := w.Observe(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 21.5, snap["temperature_c"])
	assert.Equal(t, 21.0, snap["feels_like_c"])
	assert.Equal(t, "cloudy", snap["condition"])
	assert.Equal(t, 40, snap["humidity"])
	assert.Equal(t, 18.0, snap["wind_kph"])
	assert.Equal(t, "21.5°C, scattered clouds", snap["summary"])
}

func TestWeatherUnknownCondition(t *testing.T) {
	setWeatherEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte(`{"weather": [{"main": "Aurora"}], "main": {"temp": -3.27}}`))
	}))
	defer srv.Close()

	w := NewWeather()
	w.baseURL = srv.URL

	snap, err := w.Observe(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "aurora", snap["condition"])
	assert.Equal(t, -3.3, snap["temperature_c"])
	assert.Equal(t, "-3.3°C, aurora", snap["summary"])
}

func TestWeatherMissingConfig(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "")
	t.Setenv("WEATHER_LAT", "")
	t.Setenv("WEATHER_LON", "")

	w := NewWeather()
	_, err := w.Observe(context.Background(), 1)
	assert.Error(t, err)
}

func TestWeatherAPIError(t *testing.T) {
	setWeatherEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusUnauthorized)
		rw.Write([]byte(`{"cod": 401, "message": "Invalid API key"}`))
	}))
	defer srv.Close()

	w := NewWeather()
	w.baseURL = srv.URL

	_, err := w.Observe(context.Background(), 1)
	assert.ErrorContains(t, err, "401")
}

func TestWeatherAutoDisabledWithoutConfig(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "")
	t.Setenv("WEATHER_LAT", "")
	t.Setenv("WEATHER_LON", "")

	reg := NewRegistry(time.UTC)
	reg.Register(context.Background(), NewWeather())

	metas := reg.List()
	require.Len(t, metas, 1)
	assert.False(t, metas[0].Enabled)
}
