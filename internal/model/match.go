package model

import "time"

// Match はリーグのカレンダーに載る試合を表す。
type Match struct {
	ID          string
	Competition string
	HomeTeam    string
	AwayTeam    string
	Venue       string // 天気予報の地名検索に使用する
	KickoffAt   time.Time
	HomeScore   *int
	AwayScore   *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasStarted はnow時点で試合が開始済みかを返す。
func (m *Match) HasStarted(now time.Time) bool {
	return !now.Before(m.KickoffAt)
}

// MatchScope は試合一覧の範囲を表す。
type MatchScope string

const (
	// MatchScopeUpcoming はこれから行われる試合。
	MatchScopeUpcoming MatchScope = "upcoming"
	// MatchScopePast は終了済みの試合。
	MatchScopePast MatchScope = "past"
)

// IsValid はスコープが既知の値かを返す。
func (s MatchScope) IsValid() bool {
	return s == MatchScopeUpcoming || s == MatchScopePast
}

// LineupSize は1チームの先発人数。
const LineupSize = 11

// LineupPick はユーザーが試合ごとに予想した先発メンバー。
type LineupPick struct {
	ID        string
	UserID    string
	MatchID   string
	Players   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OfficialLineup は管理者が公開する公式の先発メンバー。
type OfficialLineup struct {
	MatchID     string
	Players     []string
	PublishedAt time.Time
}

// RankingEntry はランキングの1行を表す。
type RankingEntry struct {
	Position    int
	UserID      string
	DisplayName string
	Points      int
	Picks       int
}
