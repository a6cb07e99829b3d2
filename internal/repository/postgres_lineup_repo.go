package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/heredeirxs/internal/model"
)

// PostgresLineupRepo はPostgreSQLを使用したラインナップリポジトリ。
// 選手リストはtext[]カラムにpq.Arrayで読み書きする。
type PostgresLineupRepo struct {
	db *sql.DB
}

// NewPostgresLineupRepo はPostgresLineupRepoを生成する。
func NewPostgresLineupRepo(db *sql.DB) *PostgresLineupRepo {
	return &PostgresLineupRepo{db: db}
}

// FindPick はユーザーの試合ごとの予想を取得する。見つからない場合はnilを返す。
func (r *PostgresLineupRepo) FindPick(ctx context.Context, userID, matchID string) (*model.LineupPick, error) {
	p := &model.LineupPick{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, match_id, players, created_at, updated_at
		 FROM lineup_picks WHERE user_id = $1 AND match_id = $2`,
		userID, matchID,
	).Scan(&p.ID, &p.UserID, &p.MatchID, pq.Array(&p.Players), &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ラインナップ予想の取得に失敗しました: %w", err)
	}
	return p, nil
}

// UpsertPick は(user_id, match_id)をキーに予想を書き込む。
func (r *PostgresLineupRepo) UpsertPick(ctx context.Context, p *model.LineupPick) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO lineup_picks (id, user_id, match_id, players, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, match_id) DO UPDATE SET
		   players = EXCLUDED.players,
		   updated_at = EXCLUDED.updated_at`,
		p.ID, p.UserID, p.MatchID, pq.Array(p.Players), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ラインナップ予想の保存に失敗しました: %w", err)
	}
	return nil
}

// FindOfficial は公式ラインナップを取得する。未公開の場合はnilを返す。
func (r *PostgresLineupRepo) FindOfficial(ctx context.Context, matchID string) (*model.OfficialLineup, error) {
	l := &model.OfficialLineup{}
	err := r.db.QueryRowContext(ctx,
		`SELECT match_id, players, published_at FROM official_lineups WHERE match_id = $1`,
		matchID,
	).Scan(&l.MatchID, pq.Array(&l.Players), &l.PublishedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("公式ラインナップの取得に失敗しました: %w", err)
	}
	return l, nil
}

// UpsertOfficial は公式ラインナップを書き込む。
func (r *PostgresLineupRepo) UpsertOfficial(ctx context.Context, l *model.OfficialLineup) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO official_lineups (match_id, players, published_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (match_id) DO UPDATE SET
		   players = EXCLUDED.players,
		   published_at = EXCLUDED.published_at`,
		l.MatchID, pq.Array(l.Players), l.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("公式ラインナップの保存に失敗しました: %w", err)
	}
	return nil
}

// ListSettledPicks は公式ラインナップが公開済みの試合に対する全予想を返す。
// 表示名はフルネーム、空ならメールアドレスを使用する。
func (r *PostgresLineupRepo) ListSettledPicks(ctx context.Context) ([]SettledPick, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.user_id, COALESCE(NULLIF(pr.full_name, ''), pr.email), p.match_id, p.players, o.players
		 FROM lineup_picks p
		 INNER JOIN official_lineups o ON o.match_id = p.match_id
		 INNER JOIN profiles pr ON pr.id = p.user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("確定済み予想の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var picks []SettledPick
	for rows.Next() {
		var sp SettledPick
		if err := rows.Scan(&sp.UserID, &sp.DisplayName, &sp.MatchID, pq.Array(&sp.Picked), pq.Array(&sp.Official)); err != nil {
			return nil, fmt.Errorf("確定済み予想のスキャンに失敗しました: %w", err)
		}
		picks = append(picks, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("確定済み予想の走査に失敗しました: %w", err)
	}
	return picks, nil
}

// compile-time interface check
var _ LineupRepository = (*PostgresLineupRepo)(nil)
