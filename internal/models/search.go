package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arashthr/lodekeep/internal/types"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// SearchQuery is the structured form a search request takes after the
// natural language query has been parsed and embedded.
type SearchQuery struct {
	// Embedding is nil when the query had no semantic part, in which case
	// results are ordered by recency instead of similarity.
	Embedding  *pgvector.Vector
	Threshold  float64
	Limit      int
	Categories []string
	Domain     string
	Reference  string
	From       *time.Time
	To         *time.Time
}

type SearchHit struct {
	Bookmark
	Similarity float64
}

// Search runs a filtered similarity search over the owner's saved
// bookmarks. Ties on similarity break toward newer bookmarks.
func (model *BookmarkModel) Search(ctx context.Context, owner types.OwnerId, query SearchQuery) ([]SearchHit, error) {
	conditions := []string{"owner_id = $1", "state = 'saved'"}
	args := []any{owner}

	if len(query.Categories) > 0 {
		args = append(args, query.Categories)
		conditions = append(conditions, fmt.Sprintf("category = ANY($%d)", len(args)))
	}
	if query.Domain != "" {
		args = append(args, query.Domain)
		conditions = append(conditions, fmt.Sprintf("domain = $%d", len(args)))
	}
	if query.Reference != "" {
		args = append(args, "%"+query.Reference+"%")
		conditions = append(conditions, fmt.Sprintf("reference ILIKE $%d", len(args)))
	}
	if query.From != nil {
		args = append(args, *query.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if query.To != nil {
		args = append(args, *query.To)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}

	similarity := "0::float8 AS similarity"
	orderBy := "created_at DESC"
	if query.Embedding != nil {
		args = append(args, *query.Embedding)
		vecArg := len(args)
		similarity = fmt.Sprintf("1 - (embedding <=> $%d) AS similarity", vecArg)
		conditions = append(conditions, "embedding IS NOT NULL")
		args = append(args, query.Threshold)
		conditions = append(conditions,
			fmt.Sprintf("1 - (embedding <=> $%d) >= $%d", vecArg, len(args)))
		orderBy = "similarity DESC, created_at DESC"
	}

	args = append(args, query.Limit)
	sql := fmt.Sprintf(`
		SELECT %s, %s
		FROM bookmarks
		WHERE %s
		ORDER BY %s
		LIMIT $%d`,
		bookmarkColumns, similarity, strings.Join(conditions, " AND "), orderBy, len(args))

	rows, err := model.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search bookmarks: %w", err)
	}
	hits, err := pgx.CollectRows(rows, pgx.RowToStructByName[SearchHit])
	if err != nil {
		return nil, fmt.Errorf("collect search hits: %w", err)
	}
	return hits, nil
}
