package service

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/arashthr/lodekeep/internal/errors"
	"github.com/arashthr/lodekeep/internal/jobs"
	"github.com/arashthr/lodekeep/internal/logging/loggercontext"
	"github.com/arashthr/lodekeep/internal/models"
	"github.com/arashthr/lodekeep/internal/types"
	"github.com/go-chi/chi/v5"
)

type Api struct {
	Ingest    *IngestService
	Search    *SearchService
	Bookmarks *models.BookmarkModel
	JobModel  *models.JobModel
	Feed      *models.FeedArticleModel
	Engine    *jobs.Engine
}

type ErrorResponse struct {
	Code    string `json:"errorCode"`
	Message string `json:"errorMessage"`
}

const defaultListLimit = 50

func (a *Api) PreviewBookmark(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	logger := loggercontext.Logger(r.Context())

	var req types.PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "Request body must be JSON with a url field",
		})
		return
	}

	preview, err := a.Ingest.Preview(r.Context(), owner, req.Url)
	if err != nil {
		a.handleError(w, r, err, "preview bookmark")
		return
	}
	if err := writeResponse(w, preview); err != nil {
		logger.Errorw("write response", "error", err)
	}
}

func (a *Api) SaveBookmark(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	logger := loggercontext.Logger(r.Context())

	var req types.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Id == "" {
		writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "Request body must be JSON with id and category fields",
		})
		return
	}

	bookmark, err := a.Ingest.Save(r.Context(), owner, req)
	if err != nil {
		a.handleError(w, r, err, "save bookmark")
		return
	}
	if err := writeResponse(w, bookmark); err != nil {
		logger.Errorw("write response", "error", err)
	}
}

func (a *Api) GetBookmark(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	id := types.BookmarkId(chi.URLParam(r, "id"))

	bookmark, err := a.Bookmarks.GetSaved(r.Context(), owner, id)
	if err != nil {
		a.handleError(w, r, err, "get bookmark")
		return
	}
	if err := writeResponse(w, ToBookmarkResponse(bookmark)); err != nil {
		loggercontext.Logger(r.Context()).Errorw("write response", "error", err)
	}
}

func (a *Api) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)

	skip := intQueryParam(r, "skip", 0)
	limit := intQueryParam(r, "limit", defaultListLimit)
	if limit <= 0 || limit > maxSearchLimit {
		limit = defaultListLimit
	}

	bookmarks, err := a.Bookmarks.ListSaved(r.Context(), owner, skip, limit)
	if err != nil {
		a.handleError(w, r, err, "list bookmarks")
		return
	}

	var data struct {
		Bookmarks []types.BookmarkResponse `json:"bookmarks"`
	}
	data.Bookmarks = make([]types.BookmarkResponse, 0, len(bookmarks))
	for i := range bookmarks {
		data.Bookmarks = append(data.Bookmarks, *ToBookmarkResponse(&bookmarks[i]))
	}
	if err := writeResponse(w, data); err != nil {
		loggercontext.Logger(r.Context()).Errorw("write response", "error", err)
	}
}

func (a *Api) UpdateBookmark(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	id := types.BookmarkId(chi.URLParam(r, "id"))

	var req types.UpdateBookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "Request body must be JSON",
		})
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
			Code:    "MISSING_TITLE",
			Message: "Title cannot be empty",
		})
		return
	}
	if req.Category != nil && strings.TrimSpace(*req.Category) == "" {
		writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
			Code:    "EMPTY_CATEGORY",
			Message: "Category cannot be empty",
		})
		return
	}

	bookmark, err := a.Bookmarks.Update(r.Context(), owner, id, models.BookmarkPatch{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		Category:    req.Category,
		Reference:   req.Reference,
		IsRead:      req.IsRead,
	})
	if err != nil {
		a.handleError(w, r, err, "update bookmark")
		return
	}
	if err := writeResponse(w, ToBookmarkResponse(bookmark)); err != nil {
		loggercontext.Logger(r.Context()).Errorw("write response", "error", err)
	}
}

func (a *Api) UpdateReadStatus(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	id := types.BookmarkId(chi.URLParam(r, "id"))

	var req types.ReadStatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "Request body must be JSON with an is_read field",
		})
		return
	}

	bookmark, err := a.Bookmarks.Update(r.Context(), owner, id, models.BookmarkPatch{IsRead: &req.IsRead})
	if err != nil {
		a.handleError(w, r, err, "update read status")
		return
	}
	if err := writeResponse(w, ToBookmarkResponse(bookmark)); err != nil {
		loggercontext.Logger(r.Context()).Errorw("write response", "error", err)
	}
}

func (a *Api) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	id := types.BookmarkId(chi.URLParam(r, "id"))

	if err := a.Bookmarks.Delete(r.Context(), owner, id); err != nil {
		a.handleError(w, r, err, "delete bookmark")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Api) RegenerateTags(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	id := types.BookmarkId(chi.URLParam(r, "id"))

	regenerated, err := a.Ingest.RegenerateTags(r.Context(), owner, id)
	if err != nil {
		a.handleError(w, r, err, "regenerate tags")
		return
	}
	if err := writeResponse(w, regenerated); err != nil {
		loggercontext.Logger(r.Context()).Errorw("write response", "error", err)
	}
}

func (a *Api) SearchBookmarks(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)

	var req types.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "Request body must be JSON with a query field",
		})
		return
	}
	if strings.TrimSpace(req.Query) == "" && req.Filters == nil {
		writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "Either a query or filters must be provided",
		})
		return
	}

	results, err := a.Search.Search(r.Context(), owner, req)
	if err != nil {
		a.handleError(w, r, err, "search bookmarks")
		return
	}

	var data struct {
		Results []types.SearchResult `json:"results"`
	}
	data.Results = results
	if err := writeResponse(w, data); err != nil {
		loggercontext.Logger(r.Context()).Errorw("write response", "error", err)
	}
}

func (a *Api) ParseSearchQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "Request body must be JSON with a query field",
		})
		return
	}

	parsed, err := a.Search.ParseQuery(r.Context(), req.Query)
	if err != nil {
		a.handleError(w, r, err, "parse search query")
		return
	}
	if err := writeResponse(w, parsed); err != nil {
		loggercontext.Logger(r.Context()).Errorw("write response", "error", err)
	}
}

func (a *Api) ListCategories(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)

	var isRead *bool
	if raw := r.URL.Query().Get("is_read"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
				Code:    "INVALID_REQUEST",
				Message: "is_read must be true or false",
			})
			return
		}
		isRead = &parsed
	}
	var categories []string
	if raw := r.URL.Query().Get("categories"); raw != "" {
		categories = strings.Split(raw, ",")
	}
	var tags []string
	if raw := r.URL.Query().Get("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	counts, err := a.Bookmarks.CategoryCounts(r.Context(), owner, isRead, categories, tags)
	if err != nil {
		a.handleError(w, r, err, "list categories")
		return
	}

	var data struct {
		Categories map[string]int `json:"categories"`
	}
	data.Categories = counts
	if err := writeResponse(w, data); err != nil {
		loggercontext.Logger(r.Context()).Errorw("write response", "error", err)
	}
}

func writeResponse(w http.ResponseWriter, data interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return err
	}
	return nil
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, errResp ErrorResponse) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(errResp); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
		return err
	}
	return nil
}

// handleError maps service errors to their wire shape. Public errors carry
// a user-facing message; everything else gets a generic body and a log
// line with the detail.
func (a *Api) handleError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	logger := loggercontext.Logger(r.Context())

	switch {
	case errors.Is(err, errors.ErrInvalidUrl):
		writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_URL",
			Message: "The provided URL is not a valid http or https address",
		})
	case errors.Is(err, errors.ErrDuplicateBookmark):
		writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
			Code:    "DUPLICATE_BOOKMARK",
			Message: "This URL is already bookmarked",
		})
	case errors.Is(err, errors.ErrPreviewExpired):
		writeErrorResponse(w, http.StatusNotFound, ErrorResponse{
			Code:    "PREVIEW_EXPIRED",
			Message: "The preview has expired. Request a new preview to save this bookmark",
		})
	case errors.Is(err, errors.ErrMissingTitle):
		writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
			Code:    "MISSING_TITLE",
			Message: "A title is required when the page could not be fetched",
		})
	case errors.Is(err, errors.ErrEmptyCategory):
		writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
			Code:    "EMPTY_CATEGORY",
			Message: "A category is required",
		})
	case errors.Is(err, errors.ErrInvalidDateFilter):
		writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_DATE_FILTER",
			Message: "Date filters must be formatted as YYYY-MM-DD",
		})
	case errors.Is(err, errors.ErrUnknownJobType):
		writeErrorResponse(w, http.StatusNotFound, ErrorResponse{
			Code:    "UNKNOWN_JOB_TYPE",
			Message: "No such job type",
		})
	case errors.Is(err, errors.ErrNotFound):
		writeErrorResponse(w, http.StatusNotFound, ErrorResponse{
			Code:    "NOT_FOUND",
			Message: "Not found",
		})
	case errors.Is(err, errors.ErrEmbeddingFailed):
		logger.Errorw(operation, "error", err)
		writeErrorResponse(w, http.StatusBadGateway, ErrorResponse{
			Code:    "UPSTREAM_ERROR",
			Message: publicMessage(err, "An upstream service is unavailable. Please try again."),
		})
	default:
		var pubErr interface{ Public() string }
		if errors.As(err, &pubErr) {
			writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
				Code:    "INVALID_REQUEST",
				Message: pubErr.Public(),
			})
			return
		}
		logger.Errorw(operation, "error", err)
		writeErrorResponse(w, http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Something went wrong",
		})
	}
}

func publicMessage(err error, fallback string) string {
	var pubErr interface{ Public() string }
	if errors.As(err, &pubErr) {
		return pubErr.Public()
	}
	return fallback
}

func intQueryParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
