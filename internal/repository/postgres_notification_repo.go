package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/heredeirxs/internal/model"
)

// PostgresNotificationRepo はPostgreSQLを使用した通知リポジトリ。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

// Create は通知を作成する。
func (r *PostgresNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, sender_id, recipient_id, title, body, link, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.SenderID, nullString(n.RecipientID), n.Title, n.Body, n.Link, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("通知の作成に失敗しました: %w", err)
	}
	return nil
}

// ListSent は送信済み通知を新しい順に返す。
func (r *PostgresNotificationRepo) ListSent(ctx context.Context, limit int) ([]*model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sender_id, recipient_id, title, body, link, created_at
		 FROM notifications
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("送信済み通知の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var list []*model.Notification
	for rows.Next() {
		n := &model.Notification{}
		var recipient sql.NullString
		if err := rows.Scan(&n.ID, &n.SenderID, &recipient, &n.Title, &n.Body, &n.Link, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("通知のスキャンに失敗しました: %w", err)
		}
		n.RecipientID = nullStringValue(recipient)
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("通知一覧の走査に失敗しました: %w", err)
	}
	return list, nil
}

// Delete は通知を削除する。既読情報はCASCADE削除される。
func (r *PostgresNotificationRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("通知の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForUser はユーザー宛て（ブロードキャストを含む）の通知を既読状態付きで返す。
func (r *PostgresNotificationRepo) ListForUser(ctx context.Context, userID string, limit int) ([]model.NotificationWithState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT n.id, n.sender_id, n.recipient_id, n.title, n.body, n.link, n.created_at, nr.read_at
		 FROM notifications n
		 LEFT JOIN notification_reads nr ON nr.notification_id = n.id AND nr.user_id = $1
		 WHERE n.recipient_id IS NULL OR n.recipient_id = $1
		 ORDER BY n.created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ユーザー通知の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var list []model.NotificationWithState
	for rows.Next() {
		var ns model.NotificationWithState
		var recipient sql.NullString
		var readAt sql.NullTime
		if err := rows.Scan(
			&ns.ID, &ns.SenderID, &recipient, &ns.Title, &ns.Body, &ns.Link, &ns.CreatedAt, &readAt,
		); err != nil {
			return nil, fmt.Errorf("通知のスキャンに失敗しました: %w", err)
		}
		ns.RecipientID = nullStringValue(recipient)
		ns.ReadAt = nullTimePtr(readAt)
		list = append(list, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("通知一覧の走査に失敗しました: %w", err)
	}
	return list, nil
}

// CountUnread はユーザーの未読通知数を返す。
func (r *PostgresNotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*)
		 FROM notifications n
		 LEFT JOIN notification_reads nr ON nr.notification_id = n.id AND nr.user_id = $1
		 WHERE (n.recipient_id IS NULL OR n.recipient_id = $1) AND nr.read_at IS NULL`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("未読通知数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// MarkRead は通知を既読にする。既読済みの場合は何もしない。
func (r *PostgresNotificationRepo) MarkRead(ctx context.Context, id, userID string) error {
	var visible bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM notifications
		   WHERE id = $1 AND (recipient_id IS NULL OR recipient_id = $2)
		 )`,
		id, userID,
	).Scan(&visible)
	if err != nil {
		return fmt.Errorf("通知の存在確認に失敗しました: %w", err)
	}
	if !visible {
		return ErrNotFound
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO notification_reads (notification_id, user_id, read_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (notification_id, user_id) DO NOTHING`,
		id, userID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("既読の保存に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
