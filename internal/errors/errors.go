package errors

import "errors"

var (
	ErrNotFound = errors.New("resource could not be found")

	// Ingestion
	ErrInvalidUrl        = errors.New("ingest: url is invalid")
	ErrDuplicateBookmark = errors.New("ingest: a saved bookmark already exists for this url")
	ErrPreviewExpired    = errors.New("ingest: preview is expired or already consumed")
	ErrMissingTitle      = errors.New("ingest: a title is required to save this bookmark")
	ErrEmptyCategory     = errors.New("ingest: category must not be empty")

	// Search
	ErrInvalidDateFilter = errors.New("search: date filters must be formatted as YYYY-MM-DD")

	// ErrEmbeddingFailed marks an upstream embedding outage so handlers can
	// answer with a gateway status instead of a client error.
	ErrEmbeddingFailed = errors.New("ai: embedding generation failed")

	// Jobs
	ErrUnknownJobType = errors.New("jobs: unknown job type")
)

var (
	As  = errors.As
	Is  = errors.Is
	New = errors.New
)
