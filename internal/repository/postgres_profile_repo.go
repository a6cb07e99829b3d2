package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/heredeirxs/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	p := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, phone, first_name, last_name, full_name, role, updated_at
		 FROM profiles WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Email, &p.Phone, &p.FirstName, &p.LastName, &p.FullName, &p.Role, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by ID: %w", err)
	}

	return p, nil
}

// Upsert はidentity IDをキーにプロフィールを1文で書き込む。
// 同時実行時は後勝ちとなる。roleは管理者が別経路で設定するため更新対象外。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, p *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, phone, first_name, last_name, full_name, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   email = EXCLUDED.email,
		   phone = EXCLUDED.phone,
		   first_name = EXCLUDED.first_name,
		   last_name = EXCLUDED.last_name,
		   full_name = EXCLUDED.full_name,
		   updated_at = EXCLUDED.updated_at`,
		p.ID, p.Email, p.Phone, p.FirstName, p.LastName, p.FullName, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// Update はユーザー自身による明示的な編集を書き込む。
func (r *PostgresProfileRepo) Update(ctx context.Context, p *model.Profile) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles
		 SET phone = $2, first_name = $3, last_name = $4, full_name = $5, updated_at = $6
		 WHERE id = $1`,
		p.ID, p.Phone, p.FirstName, p.LastName, p.FullName, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
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

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
