package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arashthr/lodekeep/internal/ai"
	"github.com/arashthr/lodekeep/internal/errors"
	"github.com/arashthr/lodekeep/internal/logging/loggercontext"
	"github.com/arashthr/lodekeep/internal/models"
	"github.com/arashthr/lodekeep/internal/types"
)

type CategoryRefreshParams struct {
	Category string `json:"category"`
}

// CategoryRefreshResult is the result document of a finished refresh.
// Failed items are collected here instead of failing the whole job; one
// dead page should not waste the other ninety-nine regenerations.
type CategoryRefreshResult struct {
	Retagged            int                        `json:"retagged"`
	Failed              []CategoryRefreshItemError `json:"failed"`
	SuggestedCategories map[string]string          `json:"suggested_categories"`
}

type CategoryRefreshItemError struct {
	BookmarkId types.BookmarkId `json:"bookmark_id"`
	Error      string           `json:"error"`
}

type CategoryRefreshStore interface {
	ListByCategory(ctx context.Context, owner types.OwnerId, category string) ([]models.Bookmark, error)
	ReplaceTags(ctx context.Context, owner types.OwnerId, id types.BookmarkId, tags []string) error
}

// CategoryRefreshHandler regenerates tags for every bookmark in one
// category. Categories and embeddings are not rewritten; when the model
// suggests a different category it is reported in the result for the user
// to act on.
type CategoryRefreshHandler struct {
	Store      CategoryRefreshStore
	Descriptor ai.DescriptorGenerator
}

func (h *CategoryRefreshHandler) Type() string {
	return types.JobTypeCategoryRefresh
}

func (h *CategoryRefreshHandler) Title(parameters json.RawMessage) string {
	var params CategoryRefreshParams
	if err := json.Unmarshal(parameters, &params); err != nil || params.Category == "" {
		return "Refresh category"
	}
	return fmt.Sprintf("Refresh category %q", params.Category)
}

func (h *CategoryRefreshHandler) Validate(ctx context.Context, owner types.OwnerId, parameters json.RawMessage) error {
	var params CategoryRefreshParams
	if err := json.Unmarshal(parameters, &params); err != nil {
		return errors.Public(err, "Invalid job parameters.")
	}
	if strings.TrimSpace(params.Category) == "" {
		return errors.ErrEmptyCategory
	}
	return nil
}

func (h *CategoryRefreshHandler) Run(ctx context.Context, job *models.Job, report ProgressFunc) (json.RawMessage, error) {
	logger := loggercontext.Logger(ctx).With("jobId", job.Id)

	var params CategoryRefreshParams
	if err := json.Unmarshal(job.Parameters, &params); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}

	bookmarks, err := h.Store.ListByCategory(ctx, job.OwnerId, params.Category)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks in category: %w", err)
	}
	if len(bookmarks) == 0 {
		return nil, fmt.Errorf("category %q does not exist", params.Category)
	}

	total := len(bookmarks)
	report(0, total, "")

	result := CategoryRefreshResult{
		Failed:              []CategoryRefreshItemError{},
		SuggestedCategories: map[string]string{},
	}
	for i, bookmark := range bookmarks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report(i, total, itemLabel(&bookmark))

		descriptor, err := h.regenerate(ctx, &bookmark)
		if err != nil {
			logger.Infow("tag regeneration failed for bookmark",
				"bookmarkId", bookmark.BookmarkId, "error", err)
			result.Failed = append(result.Failed, CategoryRefreshItemError{
				BookmarkId: bookmark.BookmarkId,
				Error:      err.Error(),
			})
			continue
		}
		if err := h.Store.ReplaceTags(ctx, job.OwnerId, bookmark.BookmarkId, descriptor.Tags); err != nil {
			result.Failed = append(result.Failed, CategoryRefreshItemError{
				BookmarkId: bookmark.BookmarkId,
				Error:      err.Error(),
			})
			continue
		}
		result.Retagged++
		if descriptor.Category != "" && descriptor.Category != params.Category {
			result.SuggestedCategories[string(bookmark.BookmarkId)] = descriptor.Category
		}
	}
	report(total, total, "")

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return encoded, nil
}

// regenerate describes a bookmark from its stored content. The job never
// refetches pages; it runs over what ingestion already cached.
func (h *CategoryRefreshHandler) regenerate(ctx context.Context, bookmark *models.Bookmark) (*ai.Descriptor, error) {
	input := ai.DescribeInput{
		URL:    bookmark.Url,
		Domain: bookmark.Domain,
	}
	if bookmark.Title != nil {
		input.Title = *bookmark.Title
	}
	if bookmark.Description != nil {
		input.Description = *bookmark.Description
	}
	if bookmark.Content != nil {
		input.Content = *bookmark.Content
	}
	return h.Descriptor.Describe(ctx, input)
}

func itemLabel(bookmark *models.Bookmark) string {
	if bookmark.Title != nil && *bookmark.Title != "" {
		return *bookmark.Title
	}
	return bookmark.Url
}
