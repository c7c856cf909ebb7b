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
	"github.com/arashthr/lodekeep/internal/types"
	"github.com/pgvector/pgvector-go"
)

const (
	maxSearchLimit = 100
	dateLayout     = "2006-01-02"
)

type SearchStore interface {
	Search(ctx context.Context, owner types.OwnerId, query models.SearchQuery) ([]models.SearchHit, error)
}

// SearchService turns a natural language query into a filtered vector
// search: parse out structured filters, embed the semantic residue, rank
// by cosine similarity.
type SearchService struct {
	Store            SearchStore
	Parser           ai.QueryParser
	Embedder         ai.Embedder
	DefaultLimit     int
	DefaultThreshold float64
}

func (s *SearchService) Search(ctx context.Context, owner types.OwnerId, req types.SearchRequest) ([]types.SearchResult, error) {
	start := time.Now()
	defer func() {
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	parsed := s.parse(ctx, req.Query)
	mergeFilters(parsed, req.Filters)

	query := models.SearchQuery{
		Limit:     clampLimit(req.Limit, s.DefaultLimit),
		Threshold: clampThreshold(req.Threshold, s.DefaultThreshold),
	}
	if req.Filters != nil {
		query.Categories = req.Filters.Category
	}
	query.Domain = parsed.Domain
	query.Reference = parsed.Reference

	from, to, err := resolveDates(parsed, req.Filters, time.Now())
	if err != nil {
		return nil, err
	}
	query.From, query.To = from, to

	// An empty semantic residue means the query was pure filters, so
	// results come back newest first instead of by similarity.
	if semantic := strings.TrimSpace(parsed.SemanticQuery); semantic != "" {
		embedding, err := s.Embedder.EmbedText(ctx, semantic)
		if err != nil {
			return nil, errors.Public(fmt.Errorf("%w: %v", errors.ErrEmbeddingFailed, err),
				"Search is temporarily unavailable. Please try again.")
		}
		vec := pgvector.NewVector(embedding)
		query.Embedding = &vec
	}

	hits, err := s.Store.Search(ctx, owner, query)
	if err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, 0, len(hits))
	for i := range hits {
		results = append(results, types.SearchResult{
			BookmarkResponse: *ToBookmarkResponse(&hits[i].Bookmark),
			SimilarityScore:  hits[i].Similarity,
		})
	}
	return results, nil
}

// ParseQuery exposes the parsing step on its own so clients can show the
// user what filters a query would apply before running it.
func (s *SearchService) ParseQuery(ctx context.Context, query string) (*types.ParsedQueryResponse, error) {
	parsed := s.parse(ctx, query)
	response := &types.ParsedQueryResponse{
		SemanticQuery: parsed.SemanticQuery,
		Domain:        parsed.Domain,
		Reference:     parsed.Reference,
		DateRange:     parsed.DateRange,
	}
	from, to, err := resolveDates(parsed, nil, time.Now())
	if err != nil {
		return nil, err
	}
	if from != nil {
		v := from.Format(dateLayout)
		response.DateFrom = &v
	}
	if to != nil {
		v := to.Format(dateLayout)
		response.DateTo = &v
	}
	return response, nil
}

// parse runs the query parser and degrades to a regex fallback when the
// model is unavailable. A search never fails because parsing did.
func (s *SearchService) parse(ctx context.Context, query string) *ai.ParsedQuery {
	parsed, err := s.Parser.ParseQuery(ctx, query)
	if err != nil {
		loggercontext.Logger(ctx).Infow("query parsing failed, using fallback",
			"query", query, "error", err)
		return fallbackParse(query)
	}
	return parsed
}

// dateRangePhrases maps literal phrases the fallback parser recognizes to
// date range buckets, checked longest phrase first.
var dateRangePhrases = []struct {
	phrase string
	bucket string
}{
	{"last 3 months", "last_3_months"},
	{"past 3 months", "last_3_months"},
	{"last month", "last_month"},
	{"past month", "last_month"},
	{"last week", "last_week"},
	{"past week", "last_week"},
	{"last year", "last_year"},
	{"past year", "last_year"},
	{"today", "today"},
}

func fallbackParse(query string) *ai.ParsedQuery {
	parsed := &ai.ParsedQuery{SemanticQuery: strings.TrimSpace(query)}
	lowered := strings.ToLower(parsed.SemanticQuery)
	for _, entry := range dateRangePhrases {
		if idx := strings.Index(lowered, entry.phrase); idx >= 0 {
			parsed.DateRange = entry.bucket
			residue := parsed.SemanticQuery[:idx] + parsed.SemanticQuery[idx+len(entry.phrase):]
			parsed.SemanticQuery = strings.Join(strings.Fields(residue), " ")
			break
		}
	}
	return parsed
}

// mergeFilters overlays explicit request filters on the parsed query.
// Explicit filters always win over inferred ones.
func mergeFilters(parsed *ai.ParsedQuery, filters *types.SearchFilters) {
	if filters == nil {
		return
	}
	if filters.Domain != "" {
		parsed.Domain = filters.Domain
	}
	if filters.Reference != "" {
		parsed.Reference = filters.Reference
	}
	if filters.DateRange != "" {
		parsed.DateRange = filters.DateRange
	}
}

// resolveDates turns a date range bucket or explicit bounds into concrete
// timestamps. Explicit date_from/date_to override the bucket; the upper
// bound is exclusive of the following midnight so the named day is fully
// included.
func resolveDates(parsed *ai.ParsedQuery, filters *types.SearchFilters, now time.Time) (*time.Time, *time.Time, error) {
	if filters != nil && (filters.DateFrom != nil || filters.DateTo != nil) {
		var from, to *time.Time
		if filters.DateFrom != nil {
			t, err := time.Parse(dateLayout, *filters.DateFrom)
			if err != nil {
				return nil, nil, errors.ErrInvalidDateFilter
			}
			from = &t
		}
		if filters.DateTo != nil {
			t, err := time.Parse(dateLayout, *filters.DateTo)
			if err != nil {
				return nil, nil, errors.ErrInvalidDateFilter
			}
			end := t.Add(24 * time.Hour)
			to = &end
		}
		return from, to, nil
	}

	var from time.Time
	switch parsed.DateRange {
	case "", "all_time":
		return nil, nil, nil
	case "today":
		// Midnight in now's location, not a UTC day boundary.
		year, month, day := now.Date()
		from = time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	case "last_week":
		from = now.AddDate(0, 0, -7)
	case "last_month":
		from = now.AddDate(0, -1, 0)
	case "last_3_months":
		from = now.AddDate(0, -3, 0)
	case "last_year":
		from = now.AddDate(-1, 0, 0)
	default:
		// Unknown buckets from explicit filters are ignored rather than
		// rejected; the parser never emits them.
		return nil, nil, nil
	}
	return &from, nil, nil
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxSearchLimit {
		return maxSearchLimit
	}
	return limit
}

func clampThreshold(threshold *float64, fallback float64) float64 {
	if threshold == nil {
		return fallback
	}
	switch {
	case *threshold < 0:
		return 0
	case *threshold > 1:
		return 1
	}
	return *threshold
}
