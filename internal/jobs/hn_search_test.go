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
	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHNResponse = `{
  "hits": [
    {
      "url": "https://blog.example.com/deep-dive",
      "title": "A Deep Dive",
      "points": 120,
      "num_comments": 45,
      "created_at": "2026-08-20T09:00:00Z"
    },
    {
      "url": "",
      "title": "Ask HN: self post without a url",
      "points": 10,
      "num_comments": 3,
      "created_at": "2026-08-21T09:00:00Z"
    },
    {
      "url": "https://blog.example.com/untitled",
      "title": "",
      "points": 5,
      "num_comments": 0,
      "created_at": "2026-08-22T09:00:00Z"
    }
  ]
}`

func TestHNClientSearch(t *testing.T) {
	var gotQuery, gotTags, gotLimit string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotTags = r.URL.Query().Get("tags")
		gotLimit = r.URL.Query().Get("hitsPerPage")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testHNResponse))
	}))
	defer server.Close()

	client := &HNClient{BaseURL: server.URL}
	stories, err := client.Search(context.Background(), "golang", 5)
	require.NoError(t, err)

	assert.Equal(t, "golang", gotQuery)
	assert.Equal(t, "story", gotTags)
	assert.Equal(t, "5", gotLimit)

	require.Len(t, stories, 1, "self-posts and untitled hits are dropped")
	story := stories[0]
	assert.Equal(t, "https://blog.example.com/deep-dive", story.Url)
	assert.Equal(t, "A Deep Dive", story.Title)
	assert.Equal(t, "120 points and 45 comments on Hacker News", story.Description())
	require.NotNil(t, story.PublishedAt)
	assert.Equal(t, time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC), story.PublishedAt.UTC())
}

func TestHNClientSearchErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := &HNClient{BaseURL: server.URL}
	_, err := client.Search(context.Background(), "golang", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func withTestKeywords(t *testing.T, keywords map[string][]string) {
	t.Helper()
	original := topicKeywords
	topicKeywords = keywords
	t.Cleanup(func() { topicKeywords = original })
}

func TestFeedRefreshIncludesStorySearch(t *testing.T) {
	feedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(testFeedXML))
	}))
	defer feedServer.Close()
	hnServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(testHNResponse))
	}))
	defer hnServer.Close()

	withTestSources(t, map[string][]FeedSource{
		"test": {{Name: "Test Feed", Url: feedServer.URL}},
	})
	withTestKeywords(t, map[string][]string{
		"test": {"golang"},
	})

	articles := &fakeFeedArticles{}
	handler := &FeedRefreshHandler{
		Bookmarks:  &fakeFeedBookmarks{},
		Articles:   articles,
		Embedder:   &aitest.FakeEmbedder{},
		Parser:     gofeed.NewParser(),
		HN:         &HNClient{BaseURL: hnServer.URL},
		StaleAfter: 7 * 24 * time.Hour,
	}

	var calls []progressCall
	result, err := handler.Run(context.Background(), feedJob(t, "test"), recordProgress(&calls))
	require.NoError(t, err)

	var decoded FeedRefreshResult
	require.NoError(t, json.Unmarshal(result, &decoded))
	assert.Equal(t, 2, decoded.SourcesChecked, "feed plus keyword search")
	assert.Equal(t, 4, decoded.ArticlesAdded)

	var story *models.FeedArticle
	for i := range articles.inserted {
		if articles.inserted[i].Source == "Hacker News" {
			story = &articles.inserted[i]
		}
	}
	require.NotNil(t, story, "keyword search contributes a candidate")
	assert.Equal(t, "https://blog.example.com/deep-dive", story.Url)
	require.NotNil(t, story.Description)
	assert.Equal(t, "120 points and 45 comments on Hacker News", *story.Description)

	assert.Equal(t, progressCall{0, 2, ""}, calls[0])
	assert.Equal(t, progressCall{2, 2, ""}, calls[len(calls)-1])
	assert.Contains(t, calls, progressCall{1, 2, "Hacker News: golang"})
}

func TestFeedRefreshRecordsFailedStorySearch(t *testing.T) {
	hnServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer hnServer.Close()

	withTestSources(t, map[string][]FeedSource{"test": nil})
	withTestKeywords(t, map[string][]string{"test": {"golang"}})

	handler := &FeedRefreshHandler{
		Bookmarks:  &fakeFeedBookmarks{},
		Articles:   &fakeFeedArticles{},
		Embedder:   &aitest.FakeEmbedder{},
		Parser:     gofeed.NewParser(),
		HN:         &HNClient{BaseURL: hnServer.URL},
		StaleAfter: 7 * 24 * time.Hour,
	}

	var calls []progressCall
	result, err := handler.Run(context.Background(), feedJob(t, "test"), recordProgress(&calls))
	require.NoError(t, err, "a dead search endpoint does not fail the job")

	var decoded FeedRefreshResult
	require.NoError(t, json.Unmarshal(result, &decoded))
	assert.Zero(t, decoded.SourcesChecked)
	require.Len(t, decoded.FailedSources, 1)
	assert.Equal(t, "Hacker News: golang", decoded.FailedSources[0].Source)
}

func TestResolveKeywordsOrderIsStable(t *testing.T) {
	withTestKeywords(t, map[string][]string{
		"science":     {"physics"},
		"design":      {"typography"},
		"programming": {"golang", "rust"},
	})

	first := resolveKeywords(nil)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, resolveKeywords(nil))
	}
	assert.Equal(t, []string{"typography", "golang", "rust", "physics"}, first)
	assert.Equal(t, []string{"golang", "rust"}, resolveKeywords([]string{"programming"}))
	assert.Empty(t, resolveKeywords([]string{"missing"}))
}
