package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/heredeirxs/internal/model"
)

// PostgresClientStateRepo はPostgreSQLを使用したキー・バリューリポジトリ。
// カウントダウン目標や天気予報のキャッシュ値を保存する。
type PostgresClientStateRepo struct {
	db *sql.DB
}

// NewPostgresClientStateRepo はPostgresClientStateRepoを生成する。
func NewPostgresClientStateRepo(db *sql.DB) *PostgresClientStateRepo {
	return &PostgresClientStateRepo{db: db}
}

// Get はキーの値を取得する。存在しない場合はnilを返す。
func (r *PostgresClientStateRepo) Get(ctx context.Context, key string) (*model.ClientState, error) {
	s := &model.ClientState{}
	err := r.db.QueryRowContext(ctx,
		`SELECT key, value, updated_at FROM client_state WHERE key = $1`,
		key,
	).Scan(&s.Key, &s.Value, &s.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client state %q: %w", key, err)
	}
	return s, nil
}

// Put はキーの値を上書きする。
func (r *PostgresClientStateRepo) Put(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO client_state (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to put client state %q: %w", key, err)
	}
	return nil
}

// Delete はキーを削除する。
func (r *PostgresClientStateRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM client_state WHERE key = $1`,
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete client state %q: %w", key, err)
	}
	return nil
}

// compile-time interface check
var _ ClientStateRepository = (*PostgresClientStateRepo)(nil)
