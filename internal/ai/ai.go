// Package ai defines the external capability boundary: text embedding,
// content description and natural-language query parsing. Implementations
// live in subpackages; callers depend on these interfaces only.
package ai

import (
	"context"
	"errors"
	"fmt"
)

// Embedder generates vector embeddings from text for semantic similarity
// search. Implementations must be safe for concurrent use.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// DescribeInput carries whatever page context is available. When a scrape
// failed, only URL and Domain are set.
type DescribeInput struct {
	URL         string
	Domain      string
	Title       string
	Description string
	Content     string
}

// Descriptor is the generated description of a page: tags, a suggested
// category and, when the input lacked them, an inferred title/description.
type Descriptor struct {
	Tags        []string
	Category    string
	Title       string
	Description string
}

// DescriptorGenerator derives tags, a category and title/description from
// page content, or from the URL alone when no content is available.
type DescriptorGenerator interface {
	Describe(ctx context.Context, input DescribeInput) (*Descriptor, error)
}

// ParsedQuery is a natural-language search query split into a residual
// semantic string and whatever structured filters could be inferred.
type ParsedQuery struct {
	SemanticQuery string
	Domain        string
	Reference     string
	DateRange     string
}

// QueryParser extracts structured filters from free-text search queries.
type QueryParser interface {
	ParseQuery(ctx context.Context, query string) (*ParsedQuery, error)
}

type FailureKind int

const (
	FailureRateLimited FailureKind = iota
	FailureTimeout
	FailureInvalidInput
)

func (k FailureKind) String() string {
	switch k {
	case FailureRateLimited:
		return "rate_limited"
	case FailureTimeout:
		return "timeout"
	case FailureInvalidInput:
		return "invalid_input"
	}
	return "unknown"
}

// CapabilityError is a typed failure from an external capability. The Kind
// drives the retry policy: rate limits and timeouts get one retry, invalid
// input surfaces immediately.
type CapabilityError struct {
	Kind FailureKind
	Err  error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %s: %v", e.Kind, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

func RateLimited(err error) error {
	return &CapabilityError{Kind: FailureRateLimited, Err: err}
}

func Timeout(err error) error {
	return &CapabilityError{Kind: FailureTimeout, Err: err}
}

func InvalidInput(err error) error {
	return &CapabilityError{Kind: FailureInvalidInput, Err: err}
}

// Retryable reports whether err is a capability failure worth one retry.
func Retryable(err error) bool {
	var capErr *CapabilityError
	if !errors.As(err, &capErr) {
		return false
	}
	return capErr.Kind == FailureRateLimited || capErr.Kind == FailureTimeout
}
