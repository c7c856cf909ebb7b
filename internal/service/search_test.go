package service

import (
	"context"
	"testing"
	"time"

	"github.com/arashthr/lodekeep/internal/ai"
	"github.com/arashthr/lodekeep/internal/ai/aitest"
	"github.com/arashthr/lodekeep/internal/errors"
	"github.com/arashthr/lodekeep/internal/models"
	"github.com/arashthr/lodekeep/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearchStore struct {
	lastQuery models.SearchQuery
	hits      []models.SearchHit
	err       error
}

func (f *fakeSearchStore) Search(_ context.Context, _ types.OwnerId, query models.SearchQuery) ([]models.SearchHit, error) {
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func newTestSearch(store *fakeSearchStore, parser *aitest.FakeParser, embedder *aitest.FakeEmbedder) *SearchService {
	return &SearchService{
		Store:            store,
		Parser:           parser,
		Embedder:         embedder,
		DefaultLimit:     20,
		DefaultThreshold: 0.3,
	}
}

func TestSearchEmbedsSemanticResidue(t *testing.T) {
	store := &fakeSearchStore{}
	parser := &aitest.FakeParser{Parsed: &ai.ParsedQuery{
		SemanticQuery: "transformer papers",
		Domain:        "arxiv.org",
		DateRange:     "last_week",
	}}
	embedder := &aitest.FakeEmbedder{}
	search := newTestSearch(store, parser, embedder)

	_, err := search.Search(context.Background(), testOwner, types.SearchRequest{
		Query: "transformer papers from arxiv last week",
	})
	require.NoError(t, err)

	require.Len(t, embedder.Calls, 1)
	assert.Equal(t, "transformer papers", embedder.Calls[0])

	assert.NotNil(t, store.lastQuery.Embedding)
	assert.Equal(t, "arxiv.org", store.lastQuery.Domain)
	assert.Equal(t, 20, store.lastQuery.Limit)
	assert.InDelta(t, 0.3, store.lastQuery.Threshold, 1e-9)
	require.NotNil(t, store.lastQuery.From)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -7), *store.lastQuery.From, time.Minute)
	assert.Nil(t, store.lastQuery.To)
}

func TestSearchPureFilterQuerySkipsEmbedding(t *testing.T) {
	store := &fakeSearchStore{}
	parser := &aitest.FakeParser{Parsed: &ai.ParsedQuery{
		SemanticQuery: "",
		Domain:        "github.com",
	}}
	embedder := &aitest.FakeEmbedder{}
	search := newTestSearch(store, parser, embedder)

	_, err := search.Search(context.Background(), testOwner, types.SearchRequest{Query: "from github"})
	require.NoError(t, err)

	assert.Empty(t, embedder.Calls)
	assert.Nil(t, store.lastQuery.Embedding)
	assert.Equal(t, "github.com", store.lastQuery.Domain)
}

func TestSearchDegradesWhenParserFails(t *testing.T) {
	store := &fakeSearchStore{}
	parser := &aitest.FakeParser{Err: ai.RateLimited(errors.New("quota"))}
	embedder := &aitest.FakeEmbedder{}
	search := newTestSearch(store, parser, embedder)

	_, err := search.Search(context.Background(), testOwner, types.SearchRequest{
		Query: "golang talks last week",
	})
	require.NoError(t, err)

	// The fallback parser still recognizes the date phrase.
	require.Len(t, embedder.Calls, 1)
	assert.Equal(t, "golang talks", embedder.Calls[0])
	require.NotNil(t, store.lastQuery.From)
}

func TestSearchExplicitFiltersWin(t *testing.T) {
	store := &fakeSearchStore{}
	parser := &aitest.FakeParser{Parsed: &ai.ParsedQuery{
		SemanticQuery: "rust articles",
		Domain:        "reddit.com",
		DateRange:     "last_year",
	}}
	search := newTestSearch(store, parser, &aitest.FakeEmbedder{})

	from := "2026-01-01"
	to := "2026-03-31"
	_, err := search.Search(context.Background(), testOwner, types.SearchRequest{
		Query: "rust articles",
		Filters: &types.SearchFilters{
			Category: []string{"Programming"},
			Domain:   "lobste.rs",
			DateFrom: &from,
			DateTo:   &to,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "lobste.rs", store.lastQuery.Domain)
	assert.Equal(t, []string{"Programming"}, store.lastQuery.Categories)
	require.NotNil(t, store.lastQuery.From)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *store.lastQuery.From)
	require.NotNil(t, store.lastQuery.To)
	// The upper bound is exclusive of the next midnight.
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), *store.lastQuery.To)
}

func TestSearchRejectsMalformedDateFilter(t *testing.T) {
	search := newTestSearch(&fakeSearchStore{}, &aitest.FakeParser{}, &aitest.FakeEmbedder{})

	bad := "01/02/2026"
	_, err := search.Search(context.Background(), testOwner, types.SearchRequest{
		Query:   "anything",
		Filters: &types.SearchFilters{DateFrom: &bad},
	})
	assert.ErrorIs(t, err, errors.ErrInvalidDateFilter)
}

func TestSearchClampsLimitAndThreshold(t *testing.T) {
	store := &fakeSearchStore{}
	search := newTestSearch(store, &aitest.FakeParser{}, &aitest.FakeEmbedder{})

	over := 1.5
	_, err := search.Search(context.Background(), testOwner, types.SearchRequest{
		Query:     "anything",
		Limit:     1000,
		Threshold: &over,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, store.lastQuery.Limit)
	assert.Equal(t, 1.0, store.lastQuery.Threshold)

	under := -0.5
	_, err = search.Search(context.Background(), testOwner, types.SearchRequest{
		Query:     "anything",
		Threshold: &under,
	})
	require.NoError(t, err)
	assert.Equal(t, 20, store.lastQuery.Limit)
	assert.Equal(t, 0.0, store.lastQuery.Threshold)
}

func TestSearchFailsWhenEmbeddingFails(t *testing.T) {
	embedder := &aitest.FakeEmbedder{Err: ai.Timeout(errors.New("deadline"))}
	search := newTestSearch(&fakeSearchStore{}, &aitest.FakeParser{}, embedder)

	_, err := search.Search(context.Background(), testOwner, types.SearchRequest{Query: "anything"})
	assert.ErrorIs(t, err, errors.ErrEmbeddingFailed)
}

func TestSearchMapsSimilarityScores(t *testing.T) {
	title := "Hit"
	store := &fakeSearchStore{hits: []models.SearchHit{
		{
			Bookmark:   models.Bookmark{BookmarkId: "hit1", Url: "https://example.com/1", Title: &title},
			Similarity: 0.91,
		},
	}}
	search := newTestSearch(store, &aitest.FakeParser{}, &aitest.FakeEmbedder{})

	results, err := search.Search(context.Background(), testOwner, types.SearchRequest{Query: "hits"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, types.BookmarkId("hit1"), results[0].Id)
	assert.InDelta(t, 0.91, results[0].SimilarityScore, 1e-9)
}

func TestParseQueryResolvesDates(t *testing.T) {
	parser := &aitest.FakeParser{Parsed: &ai.ParsedQuery{
		SemanticQuery: "kubernetes posts",
		DateRange:     "last_month",
	}}
	search := newTestSearch(&fakeSearchStore{}, parser, &aitest.FakeEmbedder{})

	parsed, err := search.ParseQuery(context.Background(), "kubernetes posts from last month")
	require.NoError(t, err)

	assert.Equal(t, "kubernetes posts", parsed.SemanticQuery)
	assert.Equal(t, "last_month", parsed.DateRange)
	require.NotNil(t, parsed.DateFrom)
	assert.Nil(t, parsed.DateTo)
}

func TestFallbackParse(t *testing.T) {
	tests := []struct {
		query        string
		wantSemantic string
		wantRange    string
	}{
		{"golang talks last week", "golang talks", "last_week"},
		{"articles from the past month", "articles from the", "last_month"},
		{"last 3 months of papers", "of papers", "last_3_months"},
		{"news today", "news", "today"},
		{"plain semantic query", "plain semantic query", ""},
	}
	for _, tt := range tests {
		parsed := fallbackParse(tt.query)
		assert.Equal(t, tt.wantSemantic, parsed.SemanticQuery, "query %q", tt.query)
		assert.Equal(t, tt.wantRange, parsed.DateRange, "query %q", tt.query)
	}
}

func TestResolveDateBuckets(t *testing.T) {
	now := time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		bucket   string
		wantFrom *time.Time
	}{
		{"all_time", nil},
		{"", nil},
		{"last_week", timePtr(now.AddDate(0, 0, -7))},
		{"last_month", timePtr(now.AddDate(0, -1, 0))},
		{"last_3_months", timePtr(now.AddDate(0, -3, 0))},
		{"last_year", timePtr(now.AddDate(-1, 0, 0))},
	}
	for _, tt := range tests {
		from, to, err := resolveDates(&ai.ParsedQuery{DateRange: tt.bucket}, nil, now)
		require.NoError(t, err, "bucket %q", tt.bucket)
		assert.Nil(t, to, "bucket %q", tt.bucket)
		if tt.wantFrom == nil {
			assert.Nil(t, from, "bucket %q", tt.bucket)
		} else {
			require.NotNil(t, from, "bucket %q", tt.bucket)
			assert.Equal(t, *tt.wantFrom, *from, "bucket %q", tt.bucket)
		}
	}
}

func TestResolveTodayUsesLocalMidnight(t *testing.T) {
	tehran := time.FixedZone("IRST", 3*60*60+30*60)
	now := time.Date(2026, 6, 15, 1, 30, 0, 0, tehran)

	from, to, err := resolveDates(&ai.ParsedQuery{DateRange: "today"}, nil, now)
	require.NoError(t, err)
	assert.Nil(t, to)
	require.NotNil(t, from)
	assert.Equal(t, time.Date(2026, 6, 15, 0, 0, 0, 0, tehran), *from)
	assert.Equal(t, tehran, from.Location())
}

func timePtr(t time.Time) *time.Time {
	return &t
}
