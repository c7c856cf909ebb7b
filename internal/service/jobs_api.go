package service

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/arashthr/lodekeep/internal/jobs"
	"github.com/arashthr/lodekeep/internal/logging/loggercontext"
	"github.com/arashthr/lodekeep/internal/models"
	"github.com/arashthr/lodekeep/internal/types"
	"github.com/go-chi/chi/v5"
)

func (a *Api) SubmitCategoryRefresh(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)

	category := chi.URLParam(r, "category")
	if unescaped, err := url.PathUnescape(category); err == nil {
		category = unescaped
	}
	params := jobs.CategoryRefreshParams{Category: category}
	encoded, err := json.Marshal(params)
	if err != nil {
		a.handleError(w, r, err, "encode job parameters")
		return
	}

	job, err := a.Engine.Submit(r.Context(), owner, types.JobTypeCategoryRefresh, encoded)
	if err != nil {
		a.handleError(w, r, err, "submit category refresh")
		return
	}

	// Reported size is informational; the job recounts when it runs.
	counts, err := a.Bookmarks.CategoryCounts(r.Context(), owner, nil, nil, nil)
	if err != nil {
		loggercontext.Logger(r.Context()).Errorw("counting category bookmarks", "error", err)
		counts = nil
	}

	if err := writeResponse(w, types.SubmitRefreshResponse{
		JobId:          job.Id,
		Status:         job.Status,
		TotalBookmarks: counts[params.Category],
	}); err != nil {
		loggercontext.Logger(r.Context()).Errorw("write response", "error", err)
	}
}

func (a *Api) SubmitFeedRefresh(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)

	encoded := json.RawMessage(`{}`)
	if r.ContentLength > 0 {
		var params jobs.FeedRefreshParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, ErrorResponse{
				Code:    "INVALID_REQUEST",
				Message: "Request body must be JSON",
			})
			return
		}
		var err error
		encoded, err = json.Marshal(params)
		if err != nil {
			a.handleError(w, r, err, "encode job parameters")
			return
		}
	}

	job, err := a.Engine.Submit(r.Context(), owner, types.JobTypeFeedRefresh, encoded)
	if err != nil {
		a.handleError(w, r, err, "submit feed refresh")
		return
	}

	if err := writeResponse(w, types.SubmitRefreshResponse{
		JobId:  job.Id,
		Status: job.Status,
	}); err != nil {
		loggercontext.Logger(r.Context()).Errorw("write response", "error", err)
	}
}

func (a *Api) GetJob(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	id := types.JobId(chi.URLParam(r, "id"))

	job, err := a.JobModel.GetByID(r.Context(), owner, id)
	if err != nil {
		a.handleError(w, r, err, "get job")
		return
	}
	if err := writeResponse(w, toJobResponse(job)); err != nil {
		loggercontext.Logger(r.Context()).Errorw("write response", "error", err)
	}
}

func (a *Api) ListActiveJobs(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)

	active, err := a.JobModel.ListActive(r.Context(), owner)
	if err != nil {
		a.handleError(w, r, err, "list active jobs")
		return
	}

	var data struct {
		Jobs []types.JobResponse `json:"jobs"`
	}
	data.Jobs = make([]types.JobResponse, 0, len(active))
	for i := range active {
		data.Jobs = append(data.Jobs, *toJobResponse(&active[i]))
	}
	if err := writeResponse(w, data); err != nil {
		loggercontext.Logger(r.Context()).Errorw("write response", "error", err)
	}
}

func (a *Api) ListFeedArticles(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	limit := intQueryParam(r, "limit", defaultListLimit)

	articles, err := a.Feed.List(r.Context(), owner, limit)
	if err != nil {
		a.handleError(w, r, err, "list feed articles")
		return
	}

	type feedArticle struct {
		Url         string     `json:"url"`
		Title       string     `json:"title"`
		Description *string    `json:"description"`
		Source      string     `json:"source"`
		Score       float64    `json:"score"`
		PublishedAt *time.Time `json:"published_at"`
	}
	var data struct {
		Articles []feedArticle `json:"articles"`
	}
	data.Articles = make([]feedArticle, 0, len(articles))
	for _, article := range articles {
		data.Articles = append(data.Articles, feedArticle{
			Url:         article.Url,
			Title:       article.Title,
			Description: article.Description,
			Source:      article.Source,
			Score:       article.Score,
			PublishedAt: article.PublishedAt,
		})
	}
	if err := writeResponse(w, data); err != nil {
		loggercontext.Logger(r.Context()).Errorw("write response", "error", err)
	}
}

func toJobResponse(job *models.Job) *types.JobResponse {
	response := &types.JobResponse{
		Id:              job.Id,
		JobType:         job.JobType,
		Status:          job.Status,
		Title:           job.Title,
		ProgressCurrent: job.ProgressCurrent,
		ProgressTotal:   job.ProgressTotal,
		CurrentItem:     job.CurrentItem,
		ErrorMessage:    job.ErrorMessage,
		CreatedAt:       job.CreatedAt,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
	}
	if job.ProgressTotal > 0 {
		response.ProgressPercentage = 100 * job.ProgressCurrent / job.ProgressTotal
	}
	if job.Status == types.JobCompleted {
		response.ProgressPercentage = 100
	}
	if job.StartedAt != nil {
		end := time.Now()
		if job.CompletedAt != nil {
			end = *job.CompletedAt
		}
		response.DurationSeconds = end.Sub(*job.StartedAt).Seconds()
	}
	if len(job.Parameters) > 0 {
		_ = json.Unmarshal(job.Parameters, &response.Parameters)
	}
	if len(job.Result) > 0 {
		_ = json.Unmarshal(job.Result, &response.Result)
	}
	return response
}
