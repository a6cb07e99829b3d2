package model

import "time"

// WeatherReading は試合開始時刻の天気予報を表す。
// FetchedAtで鮮度を判定し、TTLを超えたものは存在しないものとして扱う。
type WeatherReading struct {
	Place                    string    `json:"place"`
	Latitude                 float64   `json:"latitude"`
	Longitude                float64   `json:"longitude"`
	Time                     string    `json:"time"` // 現地時刻 (YYYY-MM-DDTHH:00)
	TemperatureC             float64   `json:"temperature_c"`
	PrecipitationProbability int       `json:"precipitation_probability"`
	WeatherCode              int       `json:"weather_code"`
	WindSpeedKmh             float64   `json:"wind_speed_kmh"`
	FetchedAt                time.Time `json:"fetched_at"`
}

// IsFresh はnow時点でttl以内に取得された読み取り値かを返す。
func (w *WeatherReading) IsFresh(now time.Time, ttl time.Duration) bool {
	if w == nil || w.FetchedAt.IsZero() {
		return false
	}
	return now.Sub(w.FetchedAt) < ttl
}

// ClientState は名前付きキーに保存される単一のキャッシュ値を表す。
// 値は常に上書きされ、履歴は保持しない。
type ClientState struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
