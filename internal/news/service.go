package news

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/repository"
)

// DefaultLatestLimit はダッシュボードに表示する記事数。
const DefaultLatestLimit = 10

// ErrBackingOff はバックオフ期間中のため取得を見送ったことを示す。
var ErrBackingOff = errors.New("news fetch is backing off")

// Sanitizer は記事HTMLのサニタイズを行うインターフェース。
type Sanitizer interface {
	News(raw string) string
	PlainText(raw string) string
}

// FetchRecorder は取得結果を記録するインターフェース。
type FetchRecorder interface {
	RecordNewsFetchSuccess()
	RecordNewsFetchFailure(reason string)
	RecordNewsParseFailure()
	RecordNewsFetchLatency(duration time.Duration)
	RecordNewsItemsUpserted(count int)
}

// ServiceConfig はServiceの設定。
type ServiceConfig struct {
	FeedURL     string
	MaxBodySize int64
}

// Service はニュースフィードのサービス層。
// 条件付きGETのバリデータとバックオフ状態はプロセス内に保持する。
type Service struct {
	repo      repository.NewsRepository
	client    *http.Client
	sanitizer Sanitizer
	recorder  FetchRecorder
	logger    *slog.Logger
	config    ServiceConfig
	now       func() time.Time

	mu                sync.Mutex
	etag              string
	lastModified      string
	consecutiveErrors int
	nextAttempt       time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// clientにはSSRF防止機能付きのクライアントを渡す。
func NewService(
	repo repository.NewsRepository,
	client *http.Client,
	sanitizer Sanitizer,
	recorder FetchRecorder,
	logger *slog.Logger,
	config ServiceConfig,
) *Service {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = 5 << 20
	}
	return &Service{
		repo:      repo,
		client:    client,
		sanitizer: sanitizer,
		recorder:  recorder,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// Latest は新しい順に記事を返す。読み取りに失敗した場合は空の一覧を返す。
func (s *Service) Latest(ctx context.Context, limit int) []*model.NewsItem {
	if limit <= 0 {
		limit = DefaultLatestLimit
	}
	items, err := s.repo.ListLatest(ctx, limit)
	if err != nil {
		slog.Warn("news read failed", slog.String("error", err.Error()))
		return []*model.NewsItem{}
	}
	if items == nil {
		items = []*model.NewsItem{}
	}
	return items
}

// Refresh はフィードを取得して記事をGUIDキーでアップサートする。
// 保存した記事数を返す。バックオフ期間中はErrBackingOffを返す。
func (s *Service) Refresh(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	if start.Before(s.nextAttempt) {
		return 0, ErrBackingOff
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.FeedURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Heredeirxs/1.0 (+https://heredeirxs.gal)")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
	if s.etag != "" {
		req.Header.Set("If-None-Match", s.etag)
	}
	if s.lastModified != "" {
		req.Header.Set("If-Modified-Since", s.lastModified)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.backoff("request")
		return 0, fmt.Errorf("news request failed: %w", err)
	}
	defer resp.Body.Close()
	s.recordLatency(start)

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case FetchResultNotModified:
		s.succeeded()
		s.logger.Info("news feed not modified", slog.Int("http_status", resp.StatusCode))
		return 0, nil
	case FetchResultBackoff:
		s.backoff("status_" + strconv.Itoa(resp.StatusCode))
		return 0, fmt.Errorf("news feed returned status %d", resp.StatusCode)
	case FetchResultFailed:
		s.fail("status_" + strconv.Itoa(resp.StatusCode))
		return 0, fmt.Errorf("news feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxBodySize))
	if err != nil {
		s.backoff("read")
		return 0, fmt.Errorf("failed to read news feed: %w", err)
	}

	feed, parsed, err := Parse(body)
	if err != nil {
		if s.recorder != nil {
			s.recorder.RecordNewsParseFailure()
		}
		s.fail("parse")
		return 0, err
	}

	upserted := s.store(ctx, feed.Link, parsed)

	s.etag = resp.Header.Get("ETag")
	s.lastModified = resp.Header.Get("Last-Modified")
	s.succeeded()
	if s.recorder != nil {
		s.recorder.RecordNewsItemsUpserted(upserted)
	}

	s.logger.Info("news feed refreshed",
		slog.Int("http_status", resp.StatusCode),
		slog.Int("items_total", len(parsed)),
		slog.Int("items_upserted", upserted),
		slog.Float64("duration_ms", float64(s.now().Sub(start).Milliseconds())),
	)
	return upserted, nil
}

// store は記事をサニタイズしてアップサートする。
// 1件の書き込み失敗で他の記事を諦めない。
func (s *Service) store(ctx context.Context, siteURL string, parsed []model.ParsedNewsItem) int {
	fetchedAt := s.now()
	upserted := 0
	for _, p := range parsed {
		content := s.sanitizer.News(p.Content)
		summary := s.sanitizer.News(p.Summary)
		if summary == "" {
			summary = content
		}

		image := p.ImageURL
		if image == "" {
			base := p.Link
			if base == "" {
				base = siteURL
			}
			image = LeadImage(content, base)
		}

		item := &model.NewsItem{
			ID:          uuid.New().String(),
			GUID:        p.GUID,
			Title:       s.sanitizer.PlainText(p.Title),
			Link:        p.Link,
			Summary:     summary,
			ImageURL:    image,
			PublishedAt: p.PublishedAt,
			FetchedAt:   fetchedAt,
		}
		if err := s.repo.UpsertByGUID(ctx, item); err != nil {
			s.logger.Error("news item upsert failed",
				slog.String("guid", p.GUID),
				slog.String("error", err.Error()),
			)
			continue
		}
		upserted++
	}
	return upserted
}

func (s *Service) recordLatency(start time.Time) {
	if s.recorder != nil {
		s.recorder.RecordNewsFetchLatency(s.now().Sub(start))
	}
}

func (s *Service) succeeded() {
	s.consecutiveErrors = 0
	s.nextAttempt = time.Time{}
	if s.recorder != nil {
		s.recorder.RecordNewsFetchSuccess()
	}
}

func (s *Service) fail(reason string) {
	if s.recorder != nil {
		s.recorder.RecordNewsFetchFailure(reason)
	}
	s.logger.Warn("news fetch failed", slog.String("reason", reason))
}

// backoff は連続エラー回数を増やし、次回の取得を指数的に遅らせる。
func (s *Service) backoff(reason string) {
	delay := CalculateBackoff(s.consecutiveErrors)
	s.consecutiveErrors++
	s.nextAttempt = s.now().Add(delay)
	if s.recorder != nil {
		s.recorder.RecordNewsFetchFailure(reason)
	}
	s.logger.Warn("news fetch backing off",
		slog.String("reason", reason),
		slog.Int("consecutive_errors", s.consecutiveErrors),
		slog.Duration("retry_in", delay),
	)
}
