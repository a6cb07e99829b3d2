// Package match は試合カレンダーのドメインロジックを提供する。
package match

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/repository"
)

// DefaultListLimit は1回の一覧取得で返す試合数の上限。
const DefaultListLimit = 50

// Service は試合カレンダーのサービス層。
type Service struct {
	repo repository.MatchRepository
	now  func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.MatchRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List はスコープに応じた試合一覧を返す。
// 未知のスコープは外部呼び出しの前に検証エラーとする。
// 読み取りに失敗した場合は空の一覧を返す。
func (s *Service) List(ctx context.Context, scope string) ([]*model.Match, error) {
	sc := model.MatchScope(scope)
	if scope == "" {
		sc = model.MatchScopeUpcoming
	}
	if !sc.IsValid() {
		return nil, model.NewInvalidScopeError(scope)
	}

	var (
		matches []*model.Match
		err     error
	)
	now := s.now()
	switch sc {
	case model.MatchScopeUpcoming:
		matches, err = s.repo.ListUpcoming(ctx, now, DefaultListLimit)
	case model.MatchScopePast:
		matches, err = s.repo.ListPast(ctx, now, DefaultListLimit)
	}
	if err != nil {
		slog.Warn("match list read failed",
			slog.String("scope", string(sc)),
			slog.String("error", err.Error()),
		)
		return []*model.Match{}, nil
	}
	if matches == nil {
		matches = []*model.Match{}
	}
	return matches, nil
}

// Get は試合を取得する。存在しない場合はMatchNotFoundエラーを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Match, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if m == nil {
		return nil, model.NewMatchNotFoundError(id)
	}
	return m, nil
}

// Next は次にキックオフする試合を返す。予定がない場合はnilを返す。
func (s *Service) Next(ctx context.Context) (*model.Match, error) {
	matches, err := s.repo.ListUpcoming(ctx, s.now(), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to get next match: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}
