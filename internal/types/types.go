package types

import "time"

type BookmarkId string

type OwnerId string

type JobId string

// BookmarkState is the lifecycle state of a bookmark row.
type BookmarkState string

const (
	BookmarkPending BookmarkState = "pending"
	BookmarkSaved   BookmarkState = "saved"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

const (
	JobTypeCategoryRefresh = "category_refresh"
	JobTypeFeedRefresh     = "feed_refresh"
)

type PreviewRequest struct {
	Url string `json:"url"`
}

type PreviewResponse struct {
	Id                BookmarkId `json:"id"`
	Title             *string    `json:"title"`
	Description       *string    `json:"description"`
	Domain            string     `json:"domain"`
	SuggestedCategory string     `json:"suggested_category"`
	Tags              []string   `json:"tags"`
	ScrapeFailed      bool       `json:"scrape_failed"`
}

type SaveRequest struct {
	Id        BookmarkId `json:"id"`
	Category  string     `json:"category"`
	Reference *string    `json:"reference,omitempty"`
	Title     *string    `json:"title,omitempty"`
}

type UpdateBookmarkRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Reference   *string   `json:"reference,omitempty"`
	IsRead      *bool     `json:"is_read,omitempty"`
}

type ReadStatusUpdate struct {
	IsRead bool `json:"is_read"`
}

type BookmarkResponse struct {
	Id          BookmarkId `json:"id"`
	Url         string     `json:"url"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Domain      string     `json:"domain"`
	Tags        []string   `json:"tags"`
	Category    *string    `json:"category"`
	Reference   *string    `json:"reference"`
	IsRead      bool       `json:"is_read"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

type SearchFilters struct {
	Category  []string `json:"category,omitempty"`
	Domain    string   `json:"domain,omitempty"`
	Reference string   `json:"reference,omitempty"`
	DateRange string   `json:"date_range,omitempty"`
	DateFrom  *string  `json:"date_from,omitempty"`
	DateTo    *string  `json:"date_to,omitempty"`
}

type SearchRequest struct {
	Query     string         `json:"query"`
	Limit     int            `json:"limit,omitempty"`
	Threshold *float64       `json:"threshold,omitempty"`
	Filters   *SearchFilters `json:"filters,omitempty"`
}

type SearchResult struct {
	BookmarkResponse
	SimilarityScore float64 `json:"similarity_score"`
}

type ParsedQueryResponse struct {
	SemanticQuery string  `json:"semantic_query"`
	Domain        string  `json:"domain,omitempty"`
	Reference     string  `json:"reference,omitempty"`
	DateRange     string  `json:"date_range,omitempty"`
	DateFrom      *string `json:"date_from,omitempty"`
	DateTo        *string `json:"date_to,omitempty"`
}

type RegenerateTagsResponse struct {
	Tags        []string `json:"tags"`
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	Domain      string   `json:"domain"`
}

type JobResponse struct {
	Id                 JobId           `json:"id"`
	JobType            string          `json:"job_type"`
	Status             JobStatus       `json:"status"`
	Title              string          `json:"title"`
	ProgressCurrent    int             `json:"progress_current"`
	ProgressTotal      int             `json:"progress_total"`
	ProgressPercentage int             `json:"progress_percentage"`
	CurrentItem        *string         `json:"current_item"`
	Parameters         map[string]any  `json:"parameters"`
	Result             map[string]any  `json:"result,omitempty"`
	ErrorMessage       *string         `json:"error_message,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	StartedAt          *time.Time      `json:"started_at"`
	CompletedAt        *time.Time      `json:"completed_at"`
	DurationSeconds    float64         `json:"duration_seconds"`
}

type SubmitRefreshResponse struct {
	JobId          JobId     `json:"job_id"`
	Status         JobStatus `json:"status"`
	TotalBookmarks int       `json:"total_bookmarks"`
}
