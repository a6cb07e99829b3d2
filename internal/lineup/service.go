// Package lineup は先発予想ゲームとランキングのドメインロジックを提供する。
package lineup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/heredeirxs/internal/auth"
	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/repository"
)

// MatchFinder は試合を取得するインターフェース。
type MatchFinder interface {
	Get(ctx context.Context, id string) (*model.Match, error)
}

// View はユーザーから見た試合ごとのラインナップ状態。
type View struct {
	MatchID  string
	Locked   bool
	Pick     *model.LineupPick
	Official *model.OfficialLineup
	Score    *int // 予想と公式ラインナップの両方がある場合のみ設定される
}

// Service はラインナップゲームのサービス層。
type Service struct {
	matches MatchFinder
	repo    repository.LineupRepository
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(matches MatchFinder, repo repository.LineupRepository) *Service {
	return &Service{matches: matches, repo: repo, now: time.Now}
}

// Get はユーザーの予想と公式ラインナップを返す。
// 公式ラインナップが公開済みで予想がある場合は得点も返す。
func (s *Service) Get(ctx context.Context, userID, matchID string) (*View, error) {
	m, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}

	v := &View{MatchID: m.ID, Locked: m.HasStarted(s.now())}

	v.Pick, err = s.repo.FindPick(ctx, userID, matchID)
	if err != nil {
		slog.Warn("lineup pick read failed",
			slog.String("user_id", userID),
			slog.String("match_id", matchID),
			slog.String("error", err.Error()),
		)
		v.Pick = nil
	}
	v.Official, err = s.repo.FindOfficial(ctx, matchID)
	if err != nil {
		slog.Warn("official lineup read failed",
			slog.String("match_id", matchID),
			slog.String("error", err.Error()),
		)
		v.Official = nil
	}
	if v.Pick != nil && v.Official != nil {
		score := Score(v.Pick.Players, v.Official.Players)
		v.Score = &score
	}
	return v, nil
}

// Submit はユーザーの予想を保存する。
// 入力検証は外部呼び出しの前に行い、キックオフ後は変更できない。
func (s *Service) Submit(ctx context.Context, userID, matchID string, players []string) (*model.LineupPick, error) {
	normalized, err := ValidatePlayers(players)
	if err != nil {
		return nil, err
	}

	m, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if m.HasStarted(now) {
		return nil, model.NewLineupLockedError()
	}

	pick := &model.LineupPick{
		ID:        uuid.New().String(),
		UserID:    userID,
		MatchID:   matchID,
		Players:   normalized,
		CreatedAt: now,
		UpdatedAt: now,
	}
	existing, err := s.repo.FindPick(ctx, userID, matchID)
	if err == nil && existing != nil {
		pick.ID = existing.ID
		pick.CreatedAt = existing.CreatedAt
	}

	if err := s.repo.UpsertPick(ctx, pick); err != nil {
		slog.Error("lineup pick write failed",
			slog.String("user_id", userID),
			slog.String("match_id", matchID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewWriteFailedError()
	}

	slog.Info("lineup pick saved",
		slog.String("user_id", userID),
		slog.String("match_id", matchID),
	)
	return pick, nil
}

// Publish は公式ラインナップを公開する。管理者のみが呼び出す。
func (s *Service) Publish(ctx context.Context, matchID string, players []string) (*model.OfficialLineup, error) {
	normalized, err := ValidatePlayers(players)
	if err != nil {
		return nil, err
	}

	if _, err := s.matches.Get(ctx, matchID); err != nil {
		return nil, err
	}

	official := &model.OfficialLineup{
		MatchID:     matchID,
		Players:     normalized,
		PublishedAt: s.now(),
	}
	if err := s.repo.UpsertOfficial(ctx, official); err != nil {
		slog.Error("official lineup write failed",
			slog.String("match_id", matchID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewWriteFailedError()
	}

	slog.Info("official lineup published", slog.String("match_id", matchID))
	return official, nil
}

// Rankings は確定済みの予想を集計したランキングを返す。
// 得点の降順、同点は表示名の昇順に並べ、同点には同じ順位を付ける。
// 読み取りに失敗した場合は空のランキングを返す。
func (s *Service) Rankings(ctx context.Context) []model.RankingEntry {
	settled, err := s.repo.ListSettledPicks(ctx)
	if err != nil {
		slog.Warn("rankings read failed", slog.String("error", err.Error()))
		return []model.RankingEntry{}
	}
	return Rank(settled)
}

// Rank は確定済みの予想からランキングを組み立てる。
func Rank(settled []repository.SettledPick) []model.RankingEntry {
	byUser := make(map[string]*model.RankingEntry)
	for _, sp := range settled {
		e, ok := byUser[sp.UserID]
		if !ok {
			e = &model.RankingEntry{UserID: sp.UserID, DisplayName: sp.DisplayName}
			byUser[sp.UserID] = e
		}
		e.Points += Score(sp.Picked, sp.Official)
		e.Picks++
	}

	entries := make([]model.RankingEntry, 0, len(byUser))
	for _, e := range byUser {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		an, bn := strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)
		if an != bn {
			return an < bn
		}
		return a.UserID < b.UserID
	})

	for i := range entries {
		if i > 0 && entries[i].Points == entries[i-1].Points {
			entries[i].Position = entries[i-1].Position
		} else {
			entries[i].Position = i + 1
		}
	}
	return entries
}

// Score は予想と公式ラインナップで一致した選手数を返す。
func Score(picked, official []string) int {
	set := make(map[string]struct{}, len(official))
	for _, p := range official {
		set[playerKey(p)] = struct{}{}
	}
	score := 0
	for _, p := range picked {
		if _, ok := set[playerKey(p)]; ok {
			score++
		}
	}
	return score
}

// ValidatePlayers は選手リストを検証し、前後の空白を除去した一覧を返す。
// ちょうど11人の重複しない選手名が必要。
func ValidatePlayers(players []string) ([]string, error) {
	if len(players) != model.LineupSize {
		return nil, model.NewInvalidLineupError(
			fmt.Sprintf("escolliches %d xogadores, precísanse %d", len(players), model.LineupSize))
	}

	seen := make(map[string]struct{}, len(players))
	normalized := make([]string, 0, len(players))
	for _, p := range players {
		name := strings.TrimSpace(p)
		if name == "" {
			return nil, model.NewInvalidLineupError("hai un xogador sen nome")
		}
		if utf8.RuneCountInString(name) > auth.MaxNameLength {
			return nil, model.NewInvalidLineupError("o nome dun xogador é demasiado longo")
		}
		key := playerKey(name)
		if _, dup := seen[key]; dup {
			return nil, model.NewInvalidLineupError(fmt.Sprintf("%s está repetido", name))
		}
		seen[key] = struct{}{}
		normalized = append(normalized, name)
	}
	return normalized, nil
}

func playerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
