package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/heredeirxs/internal/countdown"
	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/news"
	"github.com/hitoshi/heredeirxs/internal/weather"
)

// NewsRefresher はニュースフィードを取得するインターフェース。
type NewsRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

// CountdownRefresher はカウントダウン対象を更新するインターフェース。
type CountdownRefresher interface {
	Refresh(ctx context.Context) (*countdown.Target, error)
}

// NextMatchFinder は次の試合を返すインターフェース。
type NextMatchFinder interface {
	Next(ctx context.Context) (*model.Match, error)
}

// WeatherPrefetcher は試合の天気予報を取得してキャッシュするインターフェース。
type WeatherPrefetcher interface {
	ForMatch(ctx context.Context, m *model.Match) weather.Report
}

// NewsTask はニュースフィードを取得するTaskを返す。
// バックオフ期間中の見送りはエラーとして扱わない。
func NewsTask(svc NewsRefresher, interval time.Duration, logger *slog.Logger) Task {
	return Task{
		Name:     "news",
		Interval: interval,
		Run: func(ctx context.Context) error {
			n, err := svc.Refresh(ctx)
			if errors.Is(err, news.ErrBackingOff) {
				logger.Debug("ニュース取得をバックオフ中のため見送りました")
				return nil
			}
			if err != nil {
				return fmt.Errorf("news refresh: %w", err)
			}
			logger.Info("ニュースを取得しました", slog.Int("upserted", n))
			return nil
		},
	}
}

// CountdownTask はカウントダウン対象を再確認するTaskを返す。
func CountdownTask(svc CountdownRefresher, interval time.Duration, logger *slog.Logger) Task {
	return Task{
		Name:     "countdown",
		Interval: interval,
		Run: func(ctx context.Context) error {
			target, err := svc.Refresh(ctx)
			if err != nil {
				return fmt.Errorf("countdown refresh: %w", err)
			}
			if target == nil {
				logger.Debug("予定されている試合はありません")
			}
			return nil
		},
	}
}

// WeatherTask は次の試合の天気予報を先読みするTaskを返す。
// 予報が取得できない場合もキャッシュは次回の読み取りで補われるため失敗にはしない。
func WeatherTask(matches NextMatchFinder, svc WeatherPrefetcher, interval time.Duration, logger *slog.Logger) Task {
	return Task{
		Name:     "weather",
		Interval: interval,
		Run: func(ctx context.Context) error {
			m, err := matches.Next(ctx)
			if err != nil {
				return fmt.Errorf("weather prefetch: %w", err)
			}
			if m == nil {
				return nil
			}
			if r := svc.ForMatch(ctx, m); !r.Available {
				logger.Warn("次の試合の天気予報を取得できませんでした",
					slog.String("match_id", m.ID),
					slog.String("venue", m.Venue),
				)
			}
			return nil
		},
	}
}
