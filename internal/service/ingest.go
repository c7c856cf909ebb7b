package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arashthr/lodekeep/internal/ai"
	"github.com/arashthr/lodekeep/internal/errors"
	"github.com/arashthr/lodekeep/internal/logging/loggercontext"
	"github.com/arashthr/lodekeep/internal/metrics"
	"github.com/arashthr/lodekeep/internal/models"
	"github.com/arashthr/lodekeep/internal/scraper"
	"github.com/arashthr/lodekeep/internal/types"
	"github.com/arashthr/lodekeep/internal/validations"
	"github.com/pgvector/pgvector-go"
)

// embedTextLimit caps how much page text goes into the embedding model.
const embedTextLimit = 8000

type PageFetcher interface {
	Fetch(ctx context.Context, link string) (*scraper.Page, error)
}

// IngestStore is the slice of the bookmark model the ingest pipeline needs.
type IngestStore interface {
	CreatePending(ctx context.Context, bookmark *models.Bookmark) error
	GetPending(ctx context.Context, owner types.OwnerId, id types.BookmarkId) (*models.Bookmark, error)
	Promote(ctx context.Context, owner types.OwnerId, id types.BookmarkId, title, category string, reference *string, embedding pgvector.Vector) (*models.Bookmark, error)
	GetSavedByUrl(ctx context.Context, owner types.OwnerId, url string) (*models.Bookmark, error)
	GetSaved(ctx context.Context, owner types.OwnerId, id types.BookmarkId) (*models.Bookmark, error)
	ReplaceTags(ctx context.Context, owner types.OwnerId, id types.BookmarkId, tags []string) error
}

// IngestService runs the two-phase bookmark creation flow: Preview stages
// a row with generated metadata, Save confirms it with the user's choices.
type IngestService struct {
	Store      IngestStore
	Fetcher    PageFetcher
	Descriptor ai.DescriptorGenerator
	Embedder   ai.Embedder
	PendingTTL time.Duration
}

// Preview fetches and describes a url, stages the result as a pending
// bookmark and returns the generated metadata for the user to confirm.
// Fetch and descriptor failures degrade the preview instead of failing it.
func (s *IngestService) Preview(ctx context.Context, owner types.OwnerId, rawUrl string) (*types.PreviewResponse, error) {
	logger := loggercontext.Logger(ctx)

	if !validations.IsURLValid(rawUrl) {
		return nil, errors.ErrInvalidUrl
	}
	link, err := validations.NormalizeURL(rawUrl)
	if err != nil {
		return nil, errors.ErrInvalidUrl
	}

	if _, err := s.Store.GetSavedByUrl(ctx, owner, link); err == nil {
		metrics.PreviewsTotal.WithLabelValues("duplicate").Inc()
		return nil, errors.ErrDuplicateBookmark
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	domain := validations.ExtractHostname(link)
	page := &scraper.Page{Domain: domain}
	scrapeFailed := false
	if fetched, err := s.Fetcher.Fetch(ctx, link); err != nil {
		if ModeFor(DepPageFetch) == Fail {
			return nil, err
		}
		logger.Infow("page fetch failed, degrading preview", "url", link, "error", err)
		scrapeFailed = true
	} else {
		page = fetched
	}

	descriptor, err := s.describe(ctx, link, page, scrapeFailed)
	if err != nil {
		return nil, err
	}

	bookmark := &models.Bookmark{
		BookmarkId: models.NewBookmarkId(),
		OwnerId:    owner,
		Url:        link,
		Domain:     domain,
		State:      types.BookmarkPending,
		Tags:       descriptor.Tags,
		Category:   &descriptor.Category,
	}
	if title := firstNonEmpty(page.Title, descriptor.Title); title != "" {
		bookmark.Title = &title
	}
	if description := firstNonEmpty(page.Description, descriptor.Description); description != "" {
		bookmark.Description = &description
	}
	if page.Content != "" {
		bookmark.Content = &page.Content
	}
	expiresAt := time.Now().Add(s.PendingTTL)
	bookmark.ExpiresAt = &expiresAt

	if err := s.Store.CreatePending(ctx, bookmark); err != nil {
		return nil, err
	}

	metrics.PreviewsTotal.WithLabelValues("ok").Inc()
	return &types.PreviewResponse{
		Id:                bookmark.BookmarkId,
		Title:             bookmark.Title,
		Description:       bookmark.Description,
		Domain:            domain,
		SuggestedCategory: descriptor.Category,
		Tags:              descriptor.Tags,
		ScrapeFailed:      scrapeFailed,
	}, nil
}

// describe runs the descriptor model and degrades to an empty descriptor
// when it fails. The url and domain always go in; page text goes in when
// the scrape produced any.
func (s *IngestService) describe(ctx context.Context, link string, page *scraper.Page, scrapeFailed bool) (*ai.Descriptor, error) {
	input := ai.DescribeInput{
		URL:    link,
		Domain: page.Domain,
	}
	if !scrapeFailed {
		input.Title = page.Title
		input.Description = page.Description
		input.Content = page.Content
	}
	descriptor, err := s.Descriptor.Describe(ctx, input)
	if err != nil {
		if ModeFor(DepDescriptor) == Fail {
			return nil, err
		}
		loggercontext.Logger(ctx).Infow("descriptor generation failed, degrading",
			"url", link, "error", err)
		return &ai.Descriptor{Tags: []string{}, Category: "Uncategorized"}, nil
	}
	if descriptor.Tags == nil {
		descriptor.Tags = []string{}
	}
	if descriptor.Category == "" {
		descriptor.Category = "Uncategorized"
	}
	return descriptor, nil
}

// Save confirms a staged preview. The embedding is generated here, not at
// preview time, so only confirmed bookmarks cost an embedding call. An
// embedding failure fails the save; the pending row stays consumable until
// its TTL.
func (s *IngestService) Save(ctx context.Context, owner types.OwnerId, req types.SaveRequest) (*types.BookmarkResponse, error) {
	if strings.TrimSpace(req.Category) == "" {
		return nil, errors.ErrEmptyCategory
	}

	pending, err := s.Store.GetPending(ctx, owner, req.Id)
	if err != nil {
		return nil, err
	}

	title := ""
	if pending.Title != nil {
		title = *pending.Title
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		title = strings.TrimSpace(*req.Title)
	}
	if title == "" {
		return nil, errors.ErrMissingTitle
	}

	embedding, err := s.Embedder.EmbedText(ctx, embedInput(title, pending.Description, pending.Content))
	if err != nil {
		metrics.SavesTotal.WithLabelValues("embedding_failed").Inc()
		return nil, errors.Public(fmt.Errorf("%w: %v", errors.ErrEmbeddingFailed, err),
			"Could not index the bookmark for search. Please try again.")
	}

	saved, err := s.Store.Promote(ctx, owner, req.Id, title, strings.TrimSpace(req.Category), req.Reference, pgvector.NewVector(embedding))
	if err != nil {
		return nil, err
	}

	metrics.SavesTotal.WithLabelValues("ok").Inc()
	return ToBookmarkResponse(saved), nil
}

// RegenerateTags rebuilds the tag set of a saved bookmark from its cached
// content, refetching the page when nothing was cached. Category, title
// and embedding are left untouched.
func (s *IngestService) RegenerateTags(ctx context.Context, owner types.OwnerId, id types.BookmarkId) (*types.RegenerateTagsResponse, error) {
	bookmark, err := s.Store.GetSaved(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	page := &scraper.Page{Domain: bookmark.Domain}
	if bookmark.Title != nil {
		page.Title = *bookmark.Title
	}
	if bookmark.Description != nil {
		page.Description = *bookmark.Description
	}
	if bookmark.Content != nil && *bookmark.Content != "" {
		page.Content = *bookmark.Content
	} else if fetched, err := s.Fetcher.Fetch(ctx, bookmark.Url); err == nil {
		page.Content = fetched.Content
	} else {
		loggercontext.Logger(ctx).Infow("refetch for tag regeneration failed, using stored metadata",
			"bookmarkId", id, "error", err)
	}

	descriptor, err := s.Descriptor.Describe(ctx, ai.DescribeInput{
		URL:         bookmark.Url,
		Domain:      bookmark.Domain,
		Title:       page.Title,
		Description: page.Description,
		Content:     page.Content,
	})
	if err != nil {
		return nil, err
	}

	if err := s.Store.ReplaceTags(ctx, owner, id, descriptor.Tags); err != nil {
		return nil, err
	}

	return &types.RegenerateTagsResponse{
		Tags:        descriptor.Tags,
		Title:       page.Title,
		Description: bookmark.Description,
		Domain:      bookmark.Domain,
	}, nil
}

func embedInput(title string, description, content *string) string {
	parts := []string{title}
	if description != nil && *description != "" {
		parts = append(parts, *description)
	}
	if content != nil && *content != "" {
		parts = append(parts, *content)
	}
	return validations.TruncateForModel(strings.Join(parts, "\n"), embedTextLimit)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// ToBookmarkResponse maps a saved bookmark row to its API shape.
func ToBookmarkResponse(bookmark *models.Bookmark) *types.BookmarkResponse {
	title := ""
	if bookmark.Title != nil {
		title = *bookmark.Title
	}
	tags := bookmark.Tags
	if tags == nil {
		tags = []string{}
	}
	return &types.BookmarkResponse{
		Id:          bookmark.BookmarkId,
		Url:         bookmark.Url,
		Title:       title,
		Description: bookmark.Description,
		Domain:      bookmark.Domain,
		Tags:        tags,
		Category:    bookmark.Category,
		Reference:   bookmark.Reference,
		IsRead:      bookmark.IsRead,
		CreatedAt:   bookmark.CreatedAt,
		UpdatedAt:   bookmark.UpdatedAt,
	}
}
