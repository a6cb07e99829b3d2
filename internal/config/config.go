package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string        `env:"DATABASE_URL,notEmpty"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"5m"`

	// Auth service (GoTrue)
	AuthURL            string        `env:"AUTH_URL,notEmpty"`
	AuthAnonKey        string        `env:"AUTH_ANON_KEY,notEmpty"`
	AuthJWTSecret      string        `env:"AUTH_JWT_SECRET"`
	AuthJWKSURL        string        `env:"AUTH_JWKS_URL"`
	TokenRefreshMargin time.Duration `env:"TOKEN_REFRESH_MARGIN" envDefault:"60s"`

	// Session
	SessionMaxAge int `env:"SESSION_MAX_AGE" envDefault:"604800"`

	// Weather
	WeatherGeocodingURL      string        `env:"WEATHER_GEOCODING_URL" envDefault:"https://geocoding-api.open-meteo.com/v1/search"`
	WeatherForecastURL       string        `env:"WEATHER_FORECAST_URL" envDefault:"https://api.open-meteo.com/v1/forecast"`
	WeatherCacheTTL          time.Duration `env:"WEATHER_CACHE_TTL" envDefault:"24h"`
	WeatherCacheSize         int           `env:"WEATHER_CACHE_SIZE" envDefault:"256"`
	WeatherTimezone          string        `env:"WEATHER_TIMEZONE" envDefault:"Europe/Madrid"`
	WeatherPrefetchInterval  time.Duration `env:"WEATHER_PREFETCH_INTERVAL" envDefault:"1h"`
	CountdownRefreshInterval time.Duration `env:"COUNTDOWN_REFRESH_INTERVAL" envDefault:"1m"`

	// News
	NewsFeedURL       string        `env:"NEWS_FEED_URL" envDefault:"https://rccelta.es/feed/"`
	NewsFetchInterval time.Duration `env:"NEWS_FETCH_INTERVAL" envDefault:"30m"`

	// Fetch
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`
	FetchMaxSize int64         `env:"FETCH_MAX_SIZE" envDefault:"5242880"`

	// Rate Limit
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitLogin   int `env:"RATE_LIMIT_LOGIN" envDefault:"10"`

	// Retention
	NotificationRetentionDays int           `env:"NOTIFICATION_RETENTION_DAYS" envDefault:"90"`
	CleanupInterval           time.Duration `env:"CLEANUP_INTERVAL" envDefault:"24h"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Server
	ServerPort        string `env:"SERVER_PORT" envDefault:"8080"`
	WorkerMetricsPort string `env:"WORKER_METRICS_PORT" envDefault:"9090"`
	BaseURL           string `env:"BASE_URL,notEmpty"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// トークン検証にはAUTH_JWT_SECRETかAUTH_JWKS_URLのどちらかが必要。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.AuthJWTSecret == "" && cfg.AuthJWKSURL == "" {
		return nil, fmt.Errorf("required environment variables are not set: one of [AUTH_JWT_SECRET AUTH_JWKS_URL]")
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return cfg, nil
}
