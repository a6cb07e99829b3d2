package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hitoshi/heredeirxs/internal/metrics"
	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/repository"
)

// KeyPrefix は永続化キャッシュのキー接頭辞。
const KeyPrefix = "weather:"

// Fetcher は上流APIから天気予報を取得するインターフェース。
type Fetcher interface {
	Fetch(ctx context.Context, place string, at time.Time) (*model.WeatherReading, error)
}

// LookupRecorder は天気の取得元を記録するインターフェース。
type LookupRecorder interface {
	RecordWeatherLookup(source string)
}

// Report は画面に返す天気予報。
// 取得できなかった場合はAvailable=falseのプレースホルダーになる。
type Report struct {
	Available bool `json:"available"`
	*model.WeatherReading
}

// ServiceConfig はServiceの設定。
type ServiceConfig struct {
	TTL       time.Duration  // この期間を過ぎた読み取り値は存在しないものとして扱う
	CacheSize int            // メモリキャッシュの最大エントリ数
	Location  *time.Location // キーの時刻を表すタイムゾーン
}

// Service は天気予報を(地名, 現地時刻)をキーにキャッシュして提供する。
// メモリのLRUと永続化キャッシュの二段構成で、鮮度は保存時刻との比較で判定する。
type Service struct {
	fetcher  Fetcher
	store    repository.ClientStateRepository
	cache    *lru.Cache[string, *model.WeatherReading]
	recorder LookupRecorder
	config   ServiceConfig
	now      func() time.Time
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(fetcher Fetcher, store repository.ClientStateRepository, recorder LookupRecorder, cfg ServiceConfig) (*Service, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	cache, err := lru.New[string, *model.WeatherReading](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create weather cache: %w", err)
	}
	return &Service{
		fetcher:  fetcher,
		store:    store,
		cache:    cache,
		recorder: recorder,
		config:   cfg,
		now:      time.Now,
	}, nil
}

// Key はキャッシュキーを返す。形式は "weather:<place>|<YYYY-MM-DDTHH:00>"。
func (s *Service) Key(place string, at time.Time) string {
	return KeyPrefix + normalizePlace(place) + "|" + HourKey(at, s.config.Location)
}

// ForMatch は試合会場とキックオフ時刻の天気予報を返す。
func (s *Service) ForMatch(ctx context.Context, m *model.Match) Report {
	if m == nil || strings.TrimSpace(m.Venue) == "" {
		s.record(metrics.WeatherSourcePlaceholder)
		return Report{}
	}
	return s.Get(ctx, m.Venue, m.KickoffAt)
}

// Get は天気予報を返す。読み取りエラーはプレースホルダーになり、呼び出し元には伝えない。
// 取得時刻がTTLより古い値は存在しないものとして上流から取得し直す。
func (s *Service) Get(ctx context.Context, place string, at time.Time) Report {
	key := s.Key(place, at)
	now := s.now()

	if r, ok := s.cache.Get(key); ok {
		if r.IsFresh(now, s.config.TTL) {
			s.record(metrics.WeatherSourceMemory)
			return Report{Available: true, WeatherReading: r}
		}
		s.cache.Remove(key)
	}

	if r := s.loadPersisted(ctx, key); r.IsFresh(now, s.config.TTL) {
		s.cache.Add(key, r)
		s.record(metrics.WeatherSourcePersisted)
		return Report{Available: true, WeatherReading: r}
	}

	r, err := s.fetcher.Fetch(ctx, strings.TrimSpace(place), at)
	if err != nil {
		slog.Warn("weather fetch failed",
			slog.String("place", place),
			slog.String("time", HourKey(at, s.config.Location)),
			slog.String("error", err.Error()),
		)
		s.record(metrics.WeatherSourcePlaceholder)
		return Report{}
	}
	r.FetchedAt = now

	s.cache.Add(key, r)
	s.persist(ctx, key, r)
	s.record(metrics.WeatherSourceUpstream)
	return Report{Available: true, WeatherReading: r}
}

func (s *Service) loadPersisted(ctx context.Context, key string) *model.WeatherReading {
	state, err := s.store.Get(ctx, key)
	if err != nil {
		slog.Warn("failed to read cached weather", slog.String("key", key), slog.String("error", err.Error()))
		return nil
	}
	if state == nil {
		return nil
	}
	var r model.WeatherReading
	if err := json.Unmarshal([]byte(state.Value), &r); err != nil {
		slog.Warn("discarding malformed cached weather", slog.String("key", key), slog.String("error", err.Error()))
		return nil
	}
	return &r
}

// persist は永続化キャッシュを上書きする。失敗してもメモリキャッシュは有効。
func (s *Service) persist(ctx context.Context, key string, r *model.WeatherReading) {
	b, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := s.store.Put(ctx, key, string(b)); err != nil {
		slog.Warn("failed to persist weather", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (s *Service) record(source string) {
	if s.recorder != nil {
		s.recorder.RecordWeatherLookup(source)
	}
}

func normalizePlace(place string) string {
	return strings.ToLower(strings.Join(strings.Fields(place), " "))
}
