package models

import (
	"context"
	"fmt"
	"time"

	"github.com/arashthr/lodekeep/internal/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FeedArticle is a scored reading suggestion pulled from an RSS source.
type FeedArticle struct {
	Id          int64
	OwnerId     types.OwnerId
	Url         string
	Title       string
	Description *string
	Source      string
	Score       float64
	PublishedAt *time.Time
	CreatedAt   time.Time
}

type FeedArticleModel struct {
	Pool *pgxpool.Pool
}

// ExistingUrls returns the urls already suggested to this owner.
func (model *FeedArticleModel) ExistingUrls(ctx context.Context, owner types.OwnerId) (map[string]bool, error) {
	rows, err := model.Pool.Query(ctx, `
		SELECT url FROM feed_articles WHERE owner_id = $1`, owner)
	if err != nil {
		return nil, fmt.Errorf("query feed urls: %w", err)
	}
	defer rows.Close()

	urls := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan feed url: %w", err)
		}
		urls[url] = true
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterating feed urls: %w", rows.Err())
	}
	return urls, nil
}

// InsertCandidates upserts scored articles. A url already on the list
// keeps its row but picks up the fresh score.
func (model *FeedArticleModel) InsertCandidates(ctx context.Context, owner types.OwnerId, articles []FeedArticle) error {
	batch := &pgx.Batch{}
	for _, article := range articles {
		batch.Queue(`
			INSERT INTO feed_articles (owner_id, url, title, description, source, score, published_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (owner_id, url) DO UPDATE SET score = EXCLUDED.score`,
			owner, article.Url, article.Title, article.Description, article.Source, article.Score, article.PublishedAt)
	}
	results := model.Pool.SendBatch(ctx, batch)
	defer results.Close()
	for range articles {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert feed candidate: %w", err)
		}
	}
	return nil
}

func (model *FeedArticleModel) List(ctx context.Context, owner types.OwnerId, limit int) ([]FeedArticle, error) {
	rows, err := model.Pool.Query(ctx, `
		SELECT id, owner_id, url, title, description, source, score, published_at, created_at
		FROM feed_articles
		WHERE owner_id = $1
		ORDER BY score DESC, published_at DESC NULLS LAST
		LIMIT $2`,
		owner, limit)
	if err != nil {
		return nil, fmt.Errorf("query feed articles: %w", err)
	}
	articles, err := pgx.CollectRows(rows, pgx.RowToStructByName[FeedArticle])
	if err != nil {
		return nil, fmt.Errorf("collect feed articles: %w", err)
	}
	return articles, nil
}

// DeleteStale drops suggestions older than the cutoff so the list stays
// fresh across refreshes.
func (model *FeedArticleModel) DeleteStale(ctx context.Context, owner types.OwnerId, cutoff time.Time) (int64, error) {
	tag, err := model.Pool.Exec(ctx, `
		DELETE FROM feed_articles WHERE owner_id = $1 AND created_at < $2`,
		owner, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale feed articles: %w", err)
	}
	return tag.RowsAffected(), nil
}
