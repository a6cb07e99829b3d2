// Package weather は試合会場の天気予報の取得とキャッシュを提供する。
// 予報はOpen-Meteoのジオコーディングと時間別予報APIから取得する。
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/heredeirxs/internal/model"
)

const (
	// DefaultGeocodingEndpoint はOpen-Meteoの地名検索APIのエンドポイント。
	DefaultGeocodingEndpoint = "https://geocoding-api.open-meteo.com/v1/search"
	// DefaultForecastEndpoint はOpen-Meteoの予報APIのエンドポイント。
	DefaultForecastEndpoint = "https://api.open-meteo.com/v1/forecast"

	hourLayout      = "2006-01-02T15:04"
	maxResponseSize = 1 << 20
)

// ErrPlaceNotFound は地名検索で候補が見つからない場合に返される。
var ErrPlaceNotFound = errors.New("weather: place not found")

// ErrNoForecast は指定時刻の予報が存在しない場合に返される。
var ErrNoForecast = errors.New("weather: no forecast for the requested hour")

// ClientConfig はClientの設定。
type ClientConfig struct {
	GeocodingEndpoint string
	ForecastEndpoint  string
	Location          *time.Location // 予報の時刻を解釈するタイムゾーン
}

// Client はOpen-Meteo APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	geocoding  string
	forecast   string
	location   *time.Location
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, cfg ClientConfig) *Client {
	if cfg.GeocodingEndpoint == "" {
		cfg.GeocodingEndpoint = DefaultGeocodingEndpoint
	}
	if cfg.ForecastEndpoint == "" {
		cfg.ForecastEndpoint = DefaultForecastEndpoint
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		geocoding:  cfg.GeocodingEndpoint,
		forecast:   cfg.ForecastEndpoint,
		location:   cfg.Location,
	}
}

type geocodingResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Hourly struct {
		Time                     []string  `json:"time"`
		Temperature2m            []float64 `json:"temperature_2m"`
		PrecipitationProbability []*int    `json:"precipitation_probability"`
		WeatherCode              []int     `json:"weather_code"`
		WindSpeed10m             []float64 `json:"wind_speed_10m"`
	} `json:"hourly"`
}

// HourKey は時刻を予報の時間単位の現地時刻文字列に変換する。
func (c *Client) HourKey(t time.Time) string {
	return HourKey(t, c.location)
}

// HourKey は時刻をlocの現地時刻で時間単位に切り捨てた文字列を返す。
func HourKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Truncate(time.Hour).Format(hourLayout)
}

// Fetch は地名と時刻から天気予報を取得する。
func (c *Client) Fetch(ctx context.Context, place string, at time.Time) (*model.WeatherReading, error) {
	lat, lon, err := c.geocode(ctx, place)
	if err != nil {
		return nil, err
	}

	hour := c.HourKey(at)
	reading, err := c.hourly(ctx, lat, lon, hour)
	if err != nil {
		return nil, err
	}
	reading.Place = place
	reading.Latitude = lat
	reading.Longitude = lon
	return reading, nil
}

func (c *Client) geocode(ctx context.Context, place string) (float64, float64, error) {
	q := url.Values{}
	q.Set("name", place)
	q.Set("count", "1")
	q.Set("language", "es")
	q.Set("format", "json")

	var resp geocodingResponse
	if err := c.getJSON(ctx, c.geocoding, q, &resp); err != nil {
		return 0, 0, fmt.Errorf("geocoding %q: %w", place, err)
	}
	if len(resp.Results) == 0 {
		return 0, 0, ErrPlaceNotFound
	}
	return resp.Results[0].Latitude, resp.Results[0].Longitude, nil
}

func (c *Client) hourly(ctx context.Context, lat, lon float64, hour string) (*model.WeatherReading, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("hourly", "temperature_2m,precipitation_probability,weather_code,wind_speed_10m")
	q.Set("timezone", c.location.String())
	q.Set("start_hour", hour)
	q.Set("end_hour", hour)

	var resp forecastResponse
	if err := c.getJSON(ctx, c.forecast, q, &resp); err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}

	h := resp.Hourly
	for i, t := range h.Time {
		if t != hour {
			continue
		}
		if i >= len(h.Temperature2m) || i >= len(h.WeatherCode) || i >= len(h.WindSpeed10m) {
			break
		}
		reading := &model.WeatherReading{
			Time:         hour,
			TemperatureC: h.Temperature2m[i],
			WeatherCode:  h.WeatherCode[i],
			WindSpeedKmh: h.WindSpeed10m[i],
		}
		if i < len(h.PrecipitationProbability) && h.PrecipitationProbability[i] != nil {
			reading.PrecipitationProbability = *h.PrecipitationProbability[i]
		}
		return reading, nil
	}
	return nil, ErrNoForecast
}

// getJSON はGETリクエストを送り、JSONレスポンスをoutにデコードする。
func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, out any) error {
	reqURL, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Heredeirxs/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("weather API call failed",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("weather API returned error status",
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
