// Package cleanup はデータの自動削除ジョブを提供する。
// 期限切れのセッションと保持期間（デフォルト90日）を超過した通知を
// 日次バッチで削除する。notification_readsはCASCADE削除で自動的に処理される。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は期限切れデータの自動削除ジョブ。
// 冪等な削除処理のみを行う。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int // 通知の保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は90日。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: 90,
	}
}

// Run は期限切れのセッションと保持期間を超過した通知を削除する。
// 片方が失敗してももう片方は実行し、最初のエラーを返す。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sessions, sessionErr := j.exec(ctx, "sessions",
		`DELETE FROM sessions WHERE expires_at < now()`)

	interval := fmt.Sprintf("%d days", j.RetentionDays)
	notifications, notificationErr := j.exec(ctx, "notifications",
		`DELETE FROM notifications WHERE created_at < now() - $1::interval`, interval)

	if sessionErr != nil {
		return sessionErr
	}
	if notificationErr != nil {
		return notificationErr
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessions),
		slog.Int64("deleted_notifications", notifications),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

func (j *CleanupJob) exec(ctx context.Context, table, query string, args ...interface{}) (int64, error) {
	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		j.logger.Error("クリーンアップジョブの実行に失敗しました",
			slog.String("table", table),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("%sのクリーンアップに失敗: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("table", table),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return deleted, nil
}
