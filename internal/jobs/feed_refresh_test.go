package jobs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arashthr/lodekeep/internal/ai/aitest"
	"github.com/arashthr/lodekeep/internal/models"
	"github.com/arashthr/lodekeep/internal/types"
	"github.com/mmcdole/gofeed"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Fresh Article</title>
      <link>https://blog.example.com/fresh</link>
      <description>Something new to read</description>
      <pubDate>Mon, 24 Aug 2026 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Already Saved</title>
      <link>https://blog.example.com/saved</link>
    </item>
    <item>
      <title>Already Suggested</title>
      <link>https://blog.example.com/suggested</link>
    </item>
  </channel>
</rss>`

type fakeFeedBookmarks struct {
	saved    map[string]bool
	centroid *pgvector.Vector
}

func (f *fakeFeedBookmarks) SavedUrls(context.Context, types.OwnerId) (map[string]bool, error) {
	return f.saved, nil
}

func (f *fakeFeedBookmarks) EmbeddingCentroid(context.Context, types.OwnerId) (*pgvector.Vector, error) {
	return f.centroid, nil
}

type fakeFeedArticles struct {
	existing    map[string]bool
	inserted    []models.FeedArticle
	staleCutoff time.Time
}

func (f *fakeFeedArticles) ExistingUrls(context.Context, types.OwnerId) (map[string]bool, error) {
	return f.existing, nil
}

func (f *fakeFeedArticles) InsertCandidates(_ context.Context, _ types.OwnerId, articles []models.FeedArticle) error {
	f.inserted = append(f.inserted, articles...)
	return nil
}

func (f *fakeFeedArticles) DeleteStale(_ context.Context, _ types.OwnerId, cutoff time.Time) (int64, error) {
	f.staleCutoff = cutoff
	return 2, nil
}

func withTestSources(t *testing.T, sources map[string][]FeedSource) {
	t.Helper()
	original := topicSources
	topicSources = sources
	t.Cleanup(func() { topicSources = original })
}

func feedJob(t *testing.T, topics ...string) *models.Job {
	t.Helper()
	params, err := json.Marshal(FeedRefreshParams{Topics: topics})
	require.NoError(t, err)
	return &models.Job{
		Id:         "job-1",
		OwnerId:    testOwner,
		JobType:    types.JobTypeFeedRefresh,
		Status:     types.JobRunning,
		Parameters: params,
	}
}

func TestFeedRefreshValidate(t *testing.T) {
	handler := &FeedRefreshHandler{}

	assert.NoError(t, handler.Validate(context.Background(), testOwner, nil))
	assert.NoError(t, handler.Validate(context.Background(), testOwner, json.RawMessage(`{"topics":["programming"]}`)))
	assert.Error(t, handler.Validate(context.Background(), testOwner, json.RawMessage(`{"topics":["astrology"]}`)))
}

func TestFeedRefreshCollectsNewArticles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testFeedXML))
	}))
	defer server.Close()
	withTestSources(t, map[string][]FeedSource{
		"test": {{Name: "Test Feed", Url: server.URL}},
	})

	centroid := pgvector.NewVector(aitest.DeterministicVector("reader taste", 8))
	bookmarks := &fakeFeedBookmarks{
		saved:    map[string]bool{"https://blog.example.com/saved": true},
		centroid: &centroid,
	}
	articles := &fakeFeedArticles{
		existing: map[string]bool{"https://blog.example.com/suggested": true},
	}
	handler := &FeedRefreshHandler{
		Bookmarks:  bookmarks,
		Articles:   articles,
		Embedder:   &aitest.FakeEmbedder{},
		Parser:     gofeed.NewParser(),
		StaleAfter: 7 * 24 * time.Hour,
	}

	var calls []progressCall
	result, err := handler.Run(context.Background(), feedJob(t, "test"), recordProgress(&calls))
	require.NoError(t, err)

	var decoded FeedRefreshResult
	require.NoError(t, json.Unmarshal(result, &decoded))
	assert.Equal(t, 1, decoded.SourcesChecked)
	assert.Equal(t, 1, decoded.ArticlesAdded)
	assert.Equal(t, int64(2), decoded.StaleRemoved)
	assert.Empty(t, decoded.FailedSources)

	require.Len(t, articles.inserted, 1)
	article := articles.inserted[0]
	assert.Equal(t, "https://blog.example.com/fresh", article.Url)
	assert.Equal(t, "Fresh Article", article.Title)
	require.NotNil(t, article.Description)
	assert.Equal(t, "Something new to read", *article.Description)
	assert.Equal(t, "Test Feed", article.Source)
	assert.GreaterOrEqual(t, article.Score, -1.0)
	assert.LessOrEqual(t, article.Score, 1.0)
	require.NotNil(t, article.PublishedAt)

	assert.WithinDuration(t, time.Now().Add(-7*24*time.Hour), articles.staleCutoff, time.Minute)
	assert.Equal(t, progressCall{1, 1, ""}, calls[len(calls)-1])
}

func TestFeedRefreshNeutralScoreWithoutEmbeddings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(testFeedXML))
	}))
	defer server.Close()
	withTestSources(t, map[string][]FeedSource{
		"test": {{Name: "Test Feed", Url: server.URL}},
	})

	embedder := &aitest.FakeEmbedder{}
	articles := &fakeFeedArticles{}
	handler := &FeedRefreshHandler{
		Bookmarks:  &fakeFeedBookmarks{},
		Articles:   articles,
		Embedder:   embedder,
		Parser:     gofeed.NewParser(),
		StaleAfter: 7 * 24 * time.Hour,
	}

	var calls []progressCall
	_, err := handler.Run(context.Background(), feedJob(t, "test"), recordProgress(&calls))
	require.NoError(t, err)

	assert.Empty(t, embedder.Calls, "no embedding calls without a centroid")
	require.Len(t, articles.inserted, 3)
	for _, article := range articles.inserted {
		assert.Equal(t, neutralScore, article.Score)
	}
}

func TestFeedRefreshRecordsFailedSources(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()
	withTestSources(t, map[string][]FeedSource{
		"test": {{Name: "Broken Feed", Url: server.URL}},
	})

	handler := &FeedRefreshHandler{
		Bookmarks:  &fakeFeedBookmarks{},
		Articles:   &fakeFeedArticles{},
		Embedder:   &aitest.FakeEmbedder{},
		Parser:     gofeed.NewParser(),
		StaleAfter: 7 * 24 * time.Hour,
	}

	var calls []progressCall
	result, err := handler.Run(context.Background(), feedJob(t, "test"), recordProgress(&calls))
	require.NoError(t, err, "a dead source does not fail the job")

	var decoded FeedRefreshResult
	require.NoError(t, json.Unmarshal(result, &decoded))
	assert.Zero(t, decoded.SourcesChecked)
	require.Len(t, decoded.FailedSources, 1)
	assert.Equal(t, "Broken Feed", decoded.FailedSources[0].Source)
}

func TestResolveSources(t *testing.T) {
	withTestSources(t, map[string][]FeedSource{
		"a": {{Name: "A1", Url: "https://a.example.com/rss"}},
		"b": {{Name: "B1", Url: "https://b.example.com/rss"}, {Name: "B2", Url: "https://b2.example.com/rss"}},
	})

	assert.Len(t, resolveSources(nil), 3)
	assert.Len(t, resolveSources([]string{"b"}), 2)
	assert.Empty(t, resolveSources([]string{"missing"}))
}

func TestResolveSourcesOrderIsStable(t *testing.T) {
	withTestSources(t, map[string][]FeedSource{
		"science":     {{Name: "Quanta", Url: "https://q.example.com/rss"}, {Name: "Nature", Url: "https://n.example.com/rss"}},
		"design":      {{Name: "Smashing", Url: "https://s.example.com/rss"}},
		"programming": {{Name: "Lobsters", Url: "https://l.example.com/rss"}},
	})

	first := resolveSources(nil)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, resolveSources(nil))
	}
	assert.Equal(t, []FeedSource{
		{Name: "Smashing", Url: "https://s.example.com/rss"},
		{Name: "Lobsters", Url: "https://l.example.com/rss"},
		{Name: "Quanta", Url: "https://q.example.com/rss"},
		{Name: "Nature", Url: "https://n.example.com/rss"},
	}, first)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Zero(t, cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}), "length mismatch")
	assert.Zero(t, cosineSimilarity(nil, nil))
}
