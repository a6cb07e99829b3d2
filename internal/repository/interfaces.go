// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/heredeirxs/internal/model"
)

// ErrNotFound は更新・削除対象の行が存在しない場合に返される。
var ErrNotFound = errors.New("repository: not found")

// ProfileRepository はプロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// Upsert はidentity IDをキーにプロフィールを1文で書き込む。
	// roleは書き換えない。
	Upsert(ctx context.Context, profile *model.Profile) error

	// Update はユーザー自身による明示的な編集を書き込む。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, profile *model.Profile) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// UpdateTokens はトークンのリフレッシュ結果を保存する。
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, tokenExpires time.Time) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// MatchRepository は試合データの永続化インターフェース。
type MatchRepository interface {
	// FindByID は指定IDの試合を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Match, error)
	// ListUpcoming はnow以降にキックオフする試合を昇順で返す。
	ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*model.Match, error)
	// ListPast はnowより前にキックオフした試合を降順で返す。
	ListPast(ctx context.Context, now time.Time, limit int) ([]*model.Match, error)
}

// LineupRepository はラインナップ予想と公式ラインナップの永続化インターフェース。
type LineupRepository interface {
	// FindPick はユーザーの試合ごとの予想を取得する。見つからない場合はnilを返す。
	FindPick(ctx context.Context, userID, matchID string) (*model.LineupPick, error)
	// UpsertPick は(user_id, match_id)をキーに予想を書き込む。
	UpsertPick(ctx context.Context, pick *model.LineupPick) error
	// FindOfficial は公式ラインナップを取得する。未公開の場合はnilを返す。
	FindOfficial(ctx context.Context, matchID string) (*model.OfficialLineup, error)
	// UpsertOfficial は公式ラインナップを書き込む。
	UpsertOfficial(ctx context.Context, lineup *model.OfficialLineup) error
	// ListSettledPicks は公式ラインナップが公開済みの試合に対する全予想を返す。
	ListSettledPicks(ctx context.Context) ([]SettledPick, error)
}

// SettledPick は公式ラインナップと突き合わせ可能な予想。
type SettledPick struct {
	UserID      string
	DisplayName string
	MatchID     string
	Picked      []string
	Official    []string
}

// NotificationRepository は通知の永続化インターフェース。
type NotificationRepository interface {
	// Create は通知を作成する。
	Create(ctx context.Context, n *model.Notification) error
	// ListSent は送信済み通知を新しい順に返す。
	ListSent(ctx context.Context, limit int) ([]*model.Notification, error)
	// Delete は通知を削除する。存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
	// ListForUser はユーザー宛て（ブロードキャストを含む）の通知を既読状態付きで返す。
	ListForUser(ctx context.Context, userID string, limit int) ([]model.NotificationWithState, error)
	// CountUnread はユーザーの未読通知数を返す。
	CountUnread(ctx context.Context, userID string) (int, error)
	// MarkRead は通知を既読にする。冪等。
	// ユーザーが閲覧できない通知の場合はErrNotFoundを返す。
	MarkRead(ctx context.Context, id, userID string) error
}

// NewsRepository はニュース記事の永続化インターフェース。
type NewsRepository interface {
	// UpsertByGUID はGUIDをキーに記事を書き込む。
	UpsertByGUID(ctx context.Context, item *model.NewsItem) error
	// ListLatest は公開日時の新しい順に記事を返す。
	ListLatest(ctx context.Context, limit int) ([]*model.NewsItem, error)
}

// ClientStateRepository は名前付きキャッシュ値の永続化インターフェース。
type ClientStateRepository interface {
	// Get はキーの値を取得する。存在しない場合はnilを返す。
	Get(ctx context.Context, key string) (*model.ClientState, error)
	// Put はキーの値を上書きする。
	Put(ctx context.Context, key, value string) error
	// Delete はキーを削除する。存在しなくてもエラーにならない。
	Delete(ctx context.Context, key string) error
}
