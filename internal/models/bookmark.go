package models

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/arashthr/lodekeep/internal/errors"
	"github.com/arashthr/lodekeep/internal/types"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type Bookmark struct {
	BookmarkId  types.BookmarkId
	OwnerId     types.OwnerId
	Url         string
	Title       *string
	Description *string
	Content     *string
	Domain      string
	Tags        []string
	Category    *string
	Reference   *string
	IsRead      bool
	State       types.BookmarkState
	Embedding   *pgvector.Vector
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

const bookmarkColumns = `bookmark_id, owner_id, url, title, description, content, domain,
		tags, category, reference, is_read, state, embedding, expires_at, created_at, updated_at`

type BookmarkModel struct {
	Pool *pgxpool.Pool
}

func NewBookmarkId() types.BookmarkId {
	return types.BookmarkId(strings.ToLower(rand.Text())[:8])
}

// CreatePending inserts a staged bookmark row. Every preview call gets its
// own row; dedup against saved bookmarks is the caller's concern.
func (model *BookmarkModel) CreatePending(ctx context.Context, bookmark *Bookmark) error {
	tags := bookmark.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := model.Pool.Exec(ctx, `
		INSERT INTO bookmarks (
			bookmark_id, owner_id, url, title, description, content, domain,
			tags, category, reference, state, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, to_jsonb($8::text[]), $9, $10, 'pending', $11)`,
		bookmark.BookmarkId, bookmark.OwnerId, bookmark.Url, bookmark.Title,
		bookmark.Description, bookmark.Content, bookmark.Domain, tags,
		bookmark.Category, bookmark.Reference, bookmark.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create pending bookmark: %w", err)
	}
	return nil
}

// GetPending returns a staged row that has not expired yet.
func (model *BookmarkModel) GetPending(ctx context.Context, owner types.OwnerId, id types.BookmarkId) (*Bookmark, error) {
	rows, err := model.Pool.Query(ctx, `
		SELECT `+bookmarkColumns+`
		FROM bookmarks
		WHERE bookmark_id = $1 AND owner_id = $2 AND state = 'pending' AND expires_at > NOW()`,
		id, owner)
	if err != nil {
		return nil, fmt.Errorf("query pending bookmark: %w", err)
	}
	bookmark, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Bookmark])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrPreviewExpired
		}
		return nil, fmt.Errorf("collect pending bookmark: %w", err)
	}
	return &bookmark, nil
}

// Promote atomically consumes a live pending row and turns it into a saved
// bookmark. The conditional update is what makes two concurrent saves on
// the same preview race safely: exactly one matches the row.
func (model *BookmarkModel) Promote(
	ctx context.Context,
	owner types.OwnerId,
	id types.BookmarkId,
	title string,
	category string,
	reference *string,
	embedding pgvector.Vector,
) (*Bookmark, error) {
	rows, err := model.Pool.Query(ctx, `
		UPDATE bookmarks
		SET state = 'saved',
			title = $3,
			category = $4,
			reference = COALESCE($5, reference),
			embedding = $6,
			expires_at = NULL,
			updated_at = NOW()
		WHERE bookmark_id = $1 AND owner_id = $2 AND state = 'pending' AND expires_at > NOW()
		RETURNING `+bookmarkColumns,
		id, owner, title, category, reference, embedding)
	if err != nil {
		return nil, fmt.Errorf("promote bookmark: %w", err)
	}
	bookmark, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Bookmark])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrPreviewExpired
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, errors.ErrDuplicateBookmark
		}
		return nil, fmt.Errorf("collect promoted bookmark: %w", err)
	}
	return &bookmark, nil
}

// GetSavedByUrl looks up a saved bookmark by its normalized url.
func (model *BookmarkModel) GetSavedByUrl(ctx context.Context, owner types.OwnerId, url string) (*Bookmark, error) {
	rows, err := model.Pool.Query(ctx, `
		SELECT `+bookmarkColumns+`
		FROM bookmarks
		WHERE owner_id = $1 AND url = $2 AND state = 'saved'`,
		owner, url)
	if err != nil {
		return nil, fmt.Errorf("query bookmark by url: %w", err)
	}
	bookmark, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Bookmark])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, fmt.Errorf("bookmark by url: %w", err)
	}
	return &bookmark, nil
}

func (model *BookmarkModel) GetSaved(ctx context.Context, owner types.OwnerId, id types.BookmarkId) (*Bookmark, error) {
	rows, err := model.Pool.Query(ctx, `
		SELECT `+bookmarkColumns+`
		FROM bookmarks
		WHERE bookmark_id = $1 AND owner_id = $2 AND state = 'saved'`,
		id, owner)
	if err != nil {
		return nil, fmt.Errorf("query bookmark by id: %w", err)
	}
	bookmark, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Bookmark])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, fmt.Errorf("bookmark by id: %w", err)
	}
	return &bookmark, nil
}

// ListSaved returns saved bookmarks newest first. Pending rows are never
// listed.
func (model *BookmarkModel) ListSaved(ctx context.Context, owner types.OwnerId, skip, limit int) ([]Bookmark, error) {
	rows, err := model.Pool.Query(ctx, `
		SELECT `+bookmarkColumns+`
		FROM bookmarks
		WHERE owner_id = $1 AND state = 'saved'
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		owner, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("query saved bookmarks: %w", err)
	}
	bookmarks, err := pgx.CollectRows(rows, pgx.RowToStructByName[Bookmark])
	if err != nil {
		return nil, fmt.Errorf("collect saved bookmarks: %w", err)
	}
	return bookmarks, nil
}

type BookmarkPatch struct {
	Title       *string
	Description *string
	Tags        *[]string
	Category    *string
	Reference   *string
	IsRead      *bool
}

// Update applies a partial update to a saved bookmark.
func (model *BookmarkModel) Update(ctx context.Context, owner types.OwnerId, id types.BookmarkId, patch BookmarkPatch) (*Bookmark, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id, owner}

	addSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		addSet("title", *patch.Title)
	}
	if patch.Description != nil {
		addSet("description", *patch.Description)
	}
	if patch.Tags != nil {
		args = append(args, *patch.Tags)
		sets = append(sets, fmt.Sprintf("tags = to_jsonb($%d::text[])", len(args)))
	}
	if patch.Category != nil {
		addSet("category", *patch.Category)
	}
	if patch.Reference != nil {
		addSet("reference", *patch.Reference)
	}
	if patch.IsRead != nil {
		addSet("is_read", *patch.IsRead)
	}

	rows, err := model.Pool.Query(ctx, `
		UPDATE bookmarks
		SET `+strings.Join(sets, ", ")+`
		WHERE bookmark_id = $1 AND owner_id = $2 AND state = 'saved'
		RETURNING `+bookmarkColumns,
		args...)
	if err != nil {
		return nil, fmt.Errorf("update bookmark: %w", err)
	}
	bookmark, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Bookmark])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, fmt.Errorf("collect updated bookmark: %w", err)
	}
	return &bookmark, nil
}

// ReplaceTags swaps the tag set without touching category or embedding.
func (model *BookmarkModel) ReplaceTags(ctx context.Context, owner types.OwnerId, id types.BookmarkId, tags []string) error {
	tag, err := model.Pool.Exec(ctx, `
		UPDATE bookmarks SET tags = to_jsonb($3::text[]), updated_at = NOW()
		WHERE bookmark_id = $1 AND owner_id = $2 AND state = 'saved'`,
		id, owner, tags)
	if err != nil {
		return fmt.Errorf("replace tags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (model *BookmarkModel) Delete(ctx context.Context, owner types.OwnerId, id types.BookmarkId) error {
	tag, err := model.Pool.Exec(ctx, `
		DELETE FROM bookmarks WHERE bookmark_id = $1 AND owner_id = $2`,
		id, owner)
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// DeleteExpiredPending garbage-collects staged rows past their TTL.
func (model *BookmarkModel) DeleteExpiredPending(ctx context.Context) (int64, error) {
	tag, err := model.Pool.Exec(ctx, `
		DELETE FROM bookmarks WHERE state = 'pending' AND expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired pending bookmarks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CategoryCounts aggregates saved bookmarks per category. Rows without a
// category are counted under "Others".
func (model *BookmarkModel) CategoryCounts(ctx context.Context, owner types.OwnerId, isRead *bool, categories []string, tags []string) (map[string]int, error) {
	conditions := []string{"owner_id = $1", "state = 'saved'"}
	args := []any{owner}
	if isRead != nil {
		args = append(args, *isRead)
		conditions = append(conditions, fmt.Sprintf("is_read = $%d", len(args)))
	}
	if len(categories) > 0 {
		args = append(args, categories)
		conditions = append(conditions, fmt.Sprintf("category = ANY($%d)", len(args)))
	}
	for _, tag := range tags {
		args = append(args, tag)
		conditions = append(conditions, fmt.Sprintf("tags @> to_jsonb(ARRAY[$%d::text])", len(args)))
	}

	rows, err := model.Pool.Query(ctx, `
		SELECT COALESCE(NULLIF(category, ''), 'Others') AS category, COUNT(*)
		FROM bookmarks
		WHERE `+strings.Join(conditions, " AND ")+`
		GROUP BY 1`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("query category counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts[category] = count
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterating category counts: %w", rows.Err())
	}
	return counts, nil
}

// ListByCategory returns saved bookmarks in a category in stable id order,
// so batch jobs process and report progress deterministically. "Others"
// selects rows without a category.
func (model *BookmarkModel) ListByCategory(ctx context.Context, owner types.OwnerId, category string) ([]Bookmark, error) {
	condition := "category = $2"
	args := []any{owner, category}
	if category == "Others" {
		condition = "(category IS NULL OR category = '')"
		args = args[:1]
	}

	rows, err := model.Pool.Query(ctx, `
		SELECT `+bookmarkColumns+`
		FROM bookmarks
		WHERE owner_id = $1 AND state = 'saved' AND `+condition+`
		ORDER BY bookmark_id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("query bookmarks by category: %w", err)
	}
	bookmarks, err := pgx.CollectRows(rows, pgx.RowToStructByName[Bookmark])
	if err != nil {
		return nil, fmt.Errorf("collect bookmarks by category: %w", err)
	}
	return bookmarks, nil
}

// SavedUrls returns every saved bookmark url for feed dedup.
func (model *BookmarkModel) SavedUrls(ctx context.Context, owner types.OwnerId) (map[string]bool, error) {
	rows, err := model.Pool.Query(ctx, `
		SELECT url FROM bookmarks WHERE owner_id = $1 AND state = 'saved'`, owner)
	if err != nil {
		return nil, fmt.Errorf("query saved urls: %w", err)
	}
	defer rows.Close()

	urls := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan saved url: %w", err)
		}
		urls[url] = true
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterating saved urls: %w", rows.Err())
	}
	return urls, nil
}

// EmbeddingCentroid averages the owner's saved embeddings. Returns nil
// without error when the owner has no saved bookmarks.
func (model *BookmarkModel) EmbeddingCentroid(ctx context.Context, owner types.OwnerId) (*pgvector.Vector, error) {
	var centroid *pgvector.Vector
	err := model.Pool.QueryRow(ctx, `
		SELECT AVG(embedding)
		FROM bookmarks
		WHERE owner_id = $1 AND state = 'saved' AND embedding IS NOT NULL`,
		owner).Scan(&centroid)
	if err != nil {
		return nil, fmt.Errorf("query embedding centroid: %w", err)
	}
	return centroid, nil
}
