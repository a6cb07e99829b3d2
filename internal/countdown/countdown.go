// Package countdown は次の試合までのカウントダウンを提供する。
// 対象のキックオフ時刻はclient_stateの単一キーにキャッシュし、
// ワーカーのポーリングで定期的に再確認する。
package countdown

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/repository"
)

// Key はカウントダウン対象を保存するclient_stateのキー。
const Key = "countdown_target"

// NextMatchFinder は次の試合を取得するインターフェース。
type NextMatchFinder interface {
	Next(ctx context.Context) (*model.Match, error)
}

// Target はカウントダウンの対象となる試合。
type Target struct {
	MatchID   string    `json:"match_id"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	KickoffAt time.Time `json:"kickoff_at"`
}

// Countdown はnow時点での残り時間を表す。
// 対象がない場合はAvailable=falseのみを返す。
type Countdown struct {
	Available bool `json:"available"`
	*Target
	RemainingSeconds int64 `json:"remaining_seconds,omitempty"`
}

// Service はカウントダウンのサービス層。
type Service struct {
	matches NextMatchFinder
	store   repository.ClientStateRepository
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(matches NextMatchFinder, store repository.ClientStateRepository) *Service {
	return &Service{matches: matches, store: store, now: time.Now}
}

// Get は保存済みの対象から残り時間を計算する。
// 対象が未保存または過去の場合は1回だけ再確認する。
// 読み取りエラーはプレースホルダーとして扱い、エラーを返さない。
func (s *Service) Get(ctx context.Context) Countdown {
	now := s.now()

	target, err := s.load(ctx)
	if err != nil {
		slog.Warn("countdown target read failed", slog.String("error", err.Error()))
	}
	if target == nil || !target.KickoffAt.After(now) {
		target, err = s.Refresh(ctx)
		if err != nil {
			slog.Warn("countdown refresh failed", slog.String("error", err.Error()))
			return Countdown{}
		}
	}
	return s.countdown(target, now)
}

// Refresh は次の試合を取得して対象を上書きする。
// 予定がない場合は保存済みの対象を削除してnilを返す。
func (s *Service) Refresh(ctx context.Context) (*Target, error) {
	m, err := s.matches.Next(ctx)
	if err != nil {
		return nil, err
	}
	if m == nil {
		if err := s.store.Delete(ctx, Key); err != nil {
			return nil, fmt.Errorf("failed to clear countdown target: %w", err)
		}
		return nil, nil
	}

	target := &Target{
		MatchID:   m.ID,
		HomeTeam:  m.HomeTeam,
		AwayTeam:  m.AwayTeam,
		KickoffAt: m.KickoffAt.UTC(),
	}
	b, err := json.Marshal(target)
	if err != nil {
		return nil, fmt.Errorf("failed to encode countdown target: %w", err)
	}
	if err := s.store.Put(ctx, Key, string(b)); err != nil {
		// 保存に失敗しても今回の計算には使える
		slog.Warn("countdown target write failed", slog.String("error", err.Error()))
	}
	return target, nil
}

func (s *Service) load(ctx context.Context) (*Target, error) {
	st, err := s.store.Get(ctx, Key)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, nil
	}
	var t Target
	if err := json.Unmarshal([]byte(st.Value), &t); err != nil {
		return nil, fmt.Errorf("invalid countdown target: %w", err)
	}
	return &t, nil
}

func (s *Service) countdown(t *Target, now time.Time) Countdown {
	if t == nil || !t.KickoffAt.After(now) {
		return Countdown{}
	}
	return Countdown{
		Available:        true,
		Target:           t,
		RemainingSeconds: int64(t.KickoffAt.Sub(now) / time.Second),
	}
}
