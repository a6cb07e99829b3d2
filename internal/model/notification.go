package model

import "time"

// Notification は管理パネルから送信される通知を表す。
// RecipientIDが空の場合は全ユーザー宛てのブロードキャスト。
type Notification struct {
	ID          string
	SenderID    string
	RecipientID string
	Title       string
	Body        string // サニタイズ済みHTML
	Link        string
	CreatedAt   time.Time
}

// IsBroadcast は全ユーザー宛ての通知かを返す。
func (n *Notification) IsBroadcast() bool {
	return n.RecipientID == ""
}

// NotificationWithState は通知とユーザーごとの既読状態を結合したモデル。
type NotificationWithState struct {
	Notification
	ReadAt *time.Time
}

// IsRead は既読かを返す。
func (n *NotificationWithState) IsRead() bool {
	return n.ReadAt != nil
}

// NewsItem はクラブのニュースフィードから取得した記事を表す。
type NewsItem struct {
	ID          string
	GUID        string
	Title       string
	Link        string
	Summary     string // サニタイズ済みHTML
	ImageURL    string
	PublishedAt *time.Time
	FetchedAt   time.Time
}

// ParsedNewsItem はフィードのパース結果を表す。
// 保存前のサニタイズ処理の入力となる。
type ParsedNewsItem struct {
	GUID        string
	Title       string
	Link        string
	Content     string
	Summary     string
	ImageURL    string // フィードのenclosureやmedia要素から取得した画像
	PublishedAt *time.Time
}
