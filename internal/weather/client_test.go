package weather

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func mustLoadLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	return loc
}

func newOpenMeteoServer(t *testing.T, forecastBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") == "Nowhere" {
			_, _ = w.Write([]byte(`{"generationtime_ms":0.5}`))
			return
		}
		if got := r.URL.Query().Get("name"); got != "Vigo" {
			t.Errorf("name = %q, want %q", got, "Vigo")
		}
		_, _ = w.Write([]byte(`{"results":[{"name":"Vigo","latitude":42.23282,"longitude":-8.72264}]}`))
	})
	mux.HandleFunc("/v1/forecast", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("latitude") != "42.2328" || q.Get("longitude") != "-8.7226" {
			t.Errorf("coordinates = %s,%s", q.Get("latitude"), q.Get("longitude"))
		}
		if q.Get("timezone") != "Europe/Madrid" {
			t.Errorf("timezone = %q", q.Get("timezone"))
		}
		if q.Get("start_hour") != "2026-03-14T18:00" || q.Get("end_hour") != "2026-03-14T18:00" {
			t.Errorf("hour range = %s..%s", q.Get("start_hour"), q.Get("end_hour"))
		}
		_, _ = w.Write([]byte(forecastBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Fetch_ReturnsReadingForKickoffHour(t *testing.T) {
	madrid := mustLoadLocation(t, "Europe/Madrid")
	srv := newOpenMeteoServer(t, `{"hourly":{
		"time":["2026-03-14T18:00"],
		"temperature_2m":[13.4],
		"precipitation_probability":[65],
		"weather_code":[61],
		"wind_speed_10m":[18.2]}}`)

	var buf bytes.Buffer
	c := NewClient(srv.Client(), newTestLogger(&buf), ClientConfig{
		GeocodingEndpoint: srv.URL + "/v1/search",
		ForecastEndpoint:  srv.URL + "/v1/forecast",
		Location:          madrid,
	})

	// 17:30 UTC = 18:30 CET → 18:00の予報
	kickoff := time.Date(2026, 3, 14, 17, 30, 0, 0, time.UTC)
	r, err := c.Fetch(context.Background(), "Vigo", kickoff)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if r.Time != "2026-03-14T18:00" {
		t.Errorf("Time = %q", r.Time)
	}
	if r.TemperatureC != 13.4 || r.PrecipitationProbability != 65 || r.WeatherCode != 61 || r.WindSpeedKmh != 18.2 {
		t.Errorf("unexpected reading %+v", r)
	}
	if r.Place != "Vigo" || r.Latitude != 42.23282 {
		t.Errorf("place = %q lat = %v", r.Place, r.Latitude)
	}
}

func TestClient_Fetch_NullPrecipitation(t *testing.T) {
	madrid := mustLoadLocation(t, "Europe/Madrid")
	srv := newOpenMeteoServer(t, `{"hourly":{
		"time":["2026-03-14T18:00"],
		"temperature_2m":[13.4],
		"precipitation_probability":[null],
		"weather_code":[3],
		"wind_speed_10m":[5]}}`)

	var buf bytes.Buffer
	c := NewClient(srv.Client(), newTestLogger(&buf), ClientConfig{
		GeocodingEndpoint: srv.URL + "/v1/search",
		ForecastEndpoint:  srv.URL + "/v1/forecast",
		Location:          madrid,
	})

	r, err := c.Fetch(context.Background(), "Vigo", time.Date(2026, 3, 14, 18, 0, 0, 0, madrid))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if r.PrecipitationProbability != 0 {
		t.Errorf("PrecipitationProbability = %d, want 0", r.PrecipitationProbability)
	}
}

func TestClient_Fetch_Errors(t *testing.T) {
	madrid := mustLoadLocation(t, "Europe/Madrid")

	t.Run("place not found", func(t *testing.T) {
		srv := newOpenMeteoServer(t, `{}`)
		var buf bytes.Buffer
		c := NewClient(srv.Client(), newTestLogger(&buf), ClientConfig{
			GeocodingEndpoint: srv.URL + "/v1/search",
			ForecastEndpoint:  srv.URL + "/v1/forecast",
			Location:          madrid,
		})
		_, err := c.Fetch(context.Background(), "Nowhere", time.Now())
		if !errors.Is(err, ErrPlaceNotFound) {
			t.Errorf("error = %v, want ErrPlaceNotFound", err)
		}
	})

	t.Run("hour missing", func(t *testing.T) {
		srv := newOpenMeteoServer(t, `{"hourly":{"time":[],"temperature_2m":[],"weather_code":[],"wind_speed_10m":[]}}`)
		var buf bytes.Buffer
		c := NewClient(srv.Client(), newTestLogger(&buf), ClientConfig{
			GeocodingEndpoint: srv.URL + "/v1/search",
			ForecastEndpoint:  srv.URL + "/v1/forecast",
			Location:          madrid,
		})
		_, err := c.Fetch(context.Background(), "Vigo", time.Date(2026, 3, 14, 18, 0, 0, 0, madrid))
		if !errors.Is(err, ErrNoForecast) {
			t.Errorf("error = %v, want ErrNoForecast", err)
		}
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		t.Cleanup(srv.Close)
		var buf bytes.Buffer
		c := NewClient(srv.Client(), newTestLogger(&buf), ClientConfig{
			GeocodingEndpoint: srv.URL,
			ForecastEndpoint:  srv.URL,
			Location:          madrid,
		})
		if _, err := c.Fetch(context.Background(), "Vigo", time.Now()); err == nil {
			t.Error("expected error")
		}
		if !bytes.Contains(buf.Bytes(), []byte("weather API returned error status")) {
			t.Error("error status should be logged")
		}
	})
}

func TestHourKey_TruncatesToLocalHour(t *testing.T) {
	madrid := mustLoadLocation(t, "Europe/Madrid")

	// 夏時間 (UTC+2)
	got := HourKey(time.Date(2026, 8, 20, 19, 45, 0, 0, time.UTC), madrid)
	if got != "2026-08-20T21:00" {
		t.Errorf("HourKey() = %q, want %q", got, "2026-08-20T21:00")
	}
}
