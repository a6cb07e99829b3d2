package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/heredeirxs/internal/model"
)

// PostgresMatchRepo はPostgreSQLを使用した試合リポジトリ。
type PostgresMatchRepo struct {
	db *sql.DB
}

// NewPostgresMatchRepo はPostgresMatchRepoを生成する。
func NewPostgresMatchRepo(db *sql.DB) *PostgresMatchRepo {
	return &PostgresMatchRepo{db: db}
}

const matchColumns = `id, competition, home_team, away_team, venue, kickoff_at,
		        home_score, away_score, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(s rowScanner) (*model.Match, error) {
	m := &model.Match{}
	var homeScore, awayScore sql.NullInt64
	if err := s.Scan(
		&m.ID, &m.Competition, &m.HomeTeam, &m.AwayTeam, &m.Venue, &m.KickoffAt,
		&homeScore, &awayScore, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.HomeScore = nullIntPtr(homeScore)
	m.AwayScore = nullIntPtr(awayScore)
	return m, nil
}

// FindByID は指定IDの試合を取得する。見つからない場合はnilを返す。
func (r *PostgresMatchRepo) FindByID(ctx context.Context, id string) (*model.Match, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("試合の取得に失敗しました: %w", err)
	}
	return m, nil
}

// ListUpcoming はnow以降にキックオフする試合を昇順で返す。
func (r *PostgresMatchRepo) ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*model.Match, error) {
	return r.list(ctx,
		`SELECT `+matchColumns+` FROM matches
		 WHERE kickoff_at >= $1
		 ORDER BY kickoff_at ASC
		 LIMIT $2`,
		now, limit,
	)
}

// ListPast はnowより前にキックオフした試合を降順で返す。
func (r *PostgresMatchRepo) ListPast(ctx context.Context, now time.Time, limit int) ([]*model.Match, error) {
	return r.list(ctx,
		`SELECT `+matchColumns+` FROM matches
		 WHERE kickoff_at < $1
		 ORDER BY kickoff_at DESC
		 LIMIT $2`,
		now, limit,
	)
}

func (r *PostgresMatchRepo) list(ctx context.Context, query string, args ...any) ([]*model.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("試合一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var matches []*model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("試合のスキャンに失敗しました: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("試合一覧の走査に失敗しました: %w", err)
	}
	return matches, nil
}

// nullIntPtr はsql.NullInt64を*intに変換する。
func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// nullTimePtr はsql.NullTimeを*time.Timeに変換する。
func nullTimePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

// compile-time interface check
var _ MatchRepository = (*PostgresMatchRepo)(nil)
