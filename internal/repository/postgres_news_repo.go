package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/heredeirxs/internal/model"
)

// PostgresNewsRepo はPostgreSQLを使用したニュース記事リポジトリ。
type PostgresNewsRepo struct {
	db *sql.DB
}

// NewPostgresNewsRepo はPostgresNewsRepoを生成する。
func NewPostgresNewsRepo(db *sql.DB) *PostgresNewsRepo {
	return &PostgresNewsRepo{db: db}
}

// UpsertByGUID はGUIDをキーに記事を書き込む。
// 既存記事は上書き更新し、履歴は保持しない。
func (r *PostgresNewsRepo) UpsertByGUID(ctx context.Context, item *model.NewsItem) error {
	var publishedAt sql.NullTime
	if item.PublishedAt != nil {
		publishedAt = sql.NullTime{Time: *item.PublishedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO news_items (id, guid, title, link, summary, image_url, published_at, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (guid) DO UPDATE SET
		   title = EXCLUDED.title,
		   link = EXCLUDED.link,
		   summary = EXCLUDED.summary,
		   image_url = EXCLUDED.image_url,
		   published_at = EXCLUDED.published_at,
		   fetched_at = EXCLUDED.fetched_at`,
		item.ID, item.GUID, item.Title, item.Link, item.Summary, item.ImageURL, publishedAt, item.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("ニュース記事の保存に失敗しました: %w", err)
	}
	return nil
}

// ListLatest は公開日時の新しい順に記事を返す。
func (r *PostgresNewsRepo) ListLatest(ctx context.Context, limit int) ([]*model.NewsItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, guid, title, link, summary, image_url, published_at, fetched_at
		 FROM news_items
		 ORDER BY published_at DESC NULLS LAST, fetched_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ニュース一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []*model.NewsItem
	for rows.Next() {
		item := &model.NewsItem{}
		var publishedAt sql.NullTime
		if err := rows.Scan(
			&item.ID, &item.GUID, &item.Title, &item.Link, &item.Summary, &item.ImageURL,
			&publishedAt, &item.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("ニュース記事のスキャンに失敗しました: %w", err)
		}
		item.PublishedAt = nullTimePtr(publishedAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ニュース一覧の走査に失敗しました: %w", err)
	}
	return items, nil
}

// compile-time interface check
var _ NewsRepository = (*PostgresNewsRepo)(nil)
