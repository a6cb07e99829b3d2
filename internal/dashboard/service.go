// Package dashboard はログイン直後の画面に表示する情報を集約する。
package dashboard

import (
	"context"
	"log/slog"

	"github.com/hitoshi/heredeirxs/internal/countdown"
	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/weather"
)

// NewsLimit はダッシュボードに表示するニュースの件数。
const NewsLimit = 10

// ProfileReader はプロフィールを読み取るインターフェース。
type ProfileReader interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
}

// NextMatchFinder は次の試合を取得するインターフェース。
type NextMatchFinder interface {
	Next(ctx context.Context) (*model.Match, error)
}

// CountdownReader はキックオフまでのカウントダウンを返すインターフェース。
type CountdownReader interface {
	Get(ctx context.Context) countdown.Countdown
}

// WeatherReader は試合の天気予報を返すインターフェース。
type WeatherReader interface {
	ForMatch(ctx context.Context, m *model.Match) weather.Report
}

// UnreadCounter は未読通知数を返すインターフェース。
type UnreadCounter interface {
	UnreadCount(ctx context.Context, userID string) int
}

// NewsReader は最新ニュースを返すインターフェース。
type NewsReader interface {
	Latest(ctx context.Context, limit int) []*model.NewsItem
}

// Dashboard はダッシュボードの表示内容。
// 各項目は読み取りに失敗しても空の値になるだけで、全体は常に返す。
type Dashboard struct {
	DisplayName string
	NextMatch   *model.Match
	Countdown   countdown.Countdown
	Weather     weather.Report
	Unread      int
	News        []*model.NewsItem
}

// Service はダッシュボードのサービス層。
type Service struct {
	profiles  ProfileReader
	matches   NextMatchFinder
	countdown CountdownReader
	weather   WeatherReader
	unread    UnreadCounter
	news      NewsReader
}

// NewService はServiceを生成する。
func NewService(
	profiles ProfileReader,
	matches NextMatchFinder,
	countdown CountdownReader,
	weather WeatherReader,
	unread UnreadCounter,
	news NewsReader,
) *Service {
	return &Service{
		profiles:  profiles,
		matches:   matches,
		countdown: countdown,
		weather:   weather,
		unread:    unread,
		news:      news,
	}
}

// Get はユーザーのダッシュボードを組み立てる。
func (s *Service) Get(ctx context.Context, userID string) Dashboard {
	d := Dashboard{
		Weather: weather.Report{},
		News:    []*model.NewsItem{},
	}

	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		slog.Warn("dashboard profile unavailable",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	} else if p != nil {
		d.DisplayName = p.DisplayName()
	}

	next, err := s.matches.Next(ctx)
	if err != nil {
		slog.Warn("dashboard next match unavailable", slog.String("error", err.Error()))
	}
	if next != nil {
		d.NextMatch = next
		d.Weather = s.weather.ForMatch(ctx, next)
	}

	d.Countdown = s.countdown.Get(ctx)
	d.Unread = s.unread.UnreadCount(ctx, userID)
	if items := s.news.Latest(ctx, NewsLimit); items != nil {
		d.News = items
	}

	return d
}
