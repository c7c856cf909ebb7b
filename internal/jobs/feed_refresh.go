package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/arashthr/lodekeep/internal/ai"
	"github.com/arashthr/lodekeep/internal/errors"
	"github.com/arashthr/lodekeep/internal/logging/loggercontext"
	"github.com/arashthr/lodekeep/internal/models"
	"github.com/arashthr/lodekeep/internal/types"
	"github.com/arashthr/lodekeep/internal/validations"
	"github.com/mmcdole/gofeed"
	"github.com/pgvector/pgvector-go"
)

const (
	// articlesPerSource caps how many items of each feed are considered.
	articlesPerSource = 10
	// storiesPerKeyword caps how many Hacker News hits each keyword
	// search contributes.
	storiesPerKeyword = 5
	// neutralScore is assigned when the owner has no embeddings yet to
	// score against.
	neutralScore = 0.5
)

type FeedRefreshParams struct {
	// Topics selects source groups; empty means all registered topics.
	Topics []string `json:"topics,omitempty"`
}

type FeedRefreshResult struct {
	SourcesChecked int               `json:"sources_checked"`
	ArticlesAdded  int               `json:"articles_added"`
	StaleRemoved   int64             `json:"stale_removed"`
	FailedSources  []FeedSourceError `json:"failed_sources"`
}

type FeedSourceError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

type FeedBookmarkStore interface {
	SavedUrls(ctx context.Context, owner types.OwnerId) (map[string]bool, error)
	EmbeddingCentroid(ctx context.Context, owner types.OwnerId) (*pgvector.Vector, error)
}

type FeedArticleStore interface {
	ExistingUrls(ctx context.Context, owner types.OwnerId) (map[string]bool, error)
	InsertCandidates(ctx context.Context, owner types.OwnerId, articles []models.FeedArticle) error
	DeleteStale(ctx context.Context, owner types.OwnerId, cutoff time.Time) (int64, error)
}

// FeedRefreshHandler pulls articles from topic feeds and Hacker News
// keyword searches, drops what the owner already saved or was already
// suggested, and scores the rest against the centroid of the owner's
// bookmark embeddings.
type FeedRefreshHandler struct {
	Bookmarks  FeedBookmarkStore
	Articles   FeedArticleStore
	Embedder   ai.Embedder
	Parser     *gofeed.Parser
	// HN enables keyword searches as an extra source; nil skips them.
	HN         *HNClient
	StaleAfter time.Duration
}

func (h *FeedRefreshHandler) Type() string {
	return types.JobTypeFeedRefresh
}

func (h *FeedRefreshHandler) Title(parameters json.RawMessage) string {
	return "Refresh reading feed"
}

func (h *FeedRefreshHandler) Validate(ctx context.Context, owner types.OwnerId, parameters json.RawMessage) error {
	var params FeedRefreshParams
	if len(parameters) > 0 {
		if err := json.Unmarshal(parameters, &params); err != nil {
			return errors.Public(err, "Invalid job parameters.")
		}
	}
	for _, topic := range params.Topics {
		if _, ok := topicSources[topic]; !ok {
			return errors.Public(fmt.Errorf("unknown topic %q", topic),
				fmt.Sprintf("Unknown topic %q.", topic))
		}
	}
	return nil
}

func (h *FeedRefreshHandler) Run(ctx context.Context, job *models.Job, report ProgressFunc) (json.RawMessage, error) {
	logger := loggercontext.Logger(ctx).With("jobId", job.Id)

	var params FeedRefreshParams
	if len(job.Parameters) > 0 {
		if err := json.Unmarshal(job.Parameters, &params); err != nil {
			return nil, fmt.Errorf("decode parameters: %w", err)
		}
	}
	sources := resolveSources(params.Topics)
	var keywords []string
	if h.HN != nil {
		keywords = resolveKeywords(params.Topics)
	}

	saved, err := h.Bookmarks.SavedUrls(ctx, job.OwnerId)
	if err != nil {
		return nil, fmt.Errorf("load saved urls: %w", err)
	}
	suggested, err := h.Articles.ExistingUrls(ctx, job.OwnerId)
	if err != nil {
		return nil, fmt.Errorf("load suggested urls: %w", err)
	}
	centroid, err := h.Bookmarks.EmbeddingCentroid(ctx, job.OwnerId)
	if err != nil {
		return nil, fmt.Errorf("load embedding centroid: %w", err)
	}

	total := len(sources) + len(keywords)
	report(0, total, "")

	result := FeedRefreshResult{FailedSources: []FeedSourceError{}}
	var candidates []models.FeedArticle
	for i, source := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report(i, total, source.Name)

		feed, err := h.Parser.ParseURLWithContext(source.Url, ctx)
		if err != nil {
			logger.Infow("feed fetch failed", "source", source.Name, "error", err)
			result.FailedSources = append(result.FailedSources, FeedSourceError{
				Source: source.Name,
				Error:  err.Error(),
			})
			continue
		}
		result.SourcesChecked++
		candidates = append(candidates, h.collect(ctx, feed, source, saved, suggested, centroid)...)
	}

	for j, keyword := range keywords {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		label := "Hacker News: " + keyword
		report(len(sources)+j, total, label)

		stories, err := h.HN.Search(ctx, keyword, storiesPerKeyword)
		if err != nil {
			logger.Infow("story search failed", "keyword", keyword, "error", err)
			result.FailedSources = append(result.FailedSources, FeedSourceError{
				Source: label,
				Error:  err.Error(),
			})
			continue
		}
		result.SourcesChecked++
		candidates = append(candidates, h.collectStories(ctx, stories, saved, suggested, centroid)...)
	}
	report(total, total, "")

	if len(candidates) > 0 {
		if err := h.Articles.InsertCandidates(ctx, job.OwnerId, candidates); err != nil {
			return nil, fmt.Errorf("insert candidates: %w", err)
		}
		result.ArticlesAdded = len(candidates)
	}
	removed, err := h.Articles.DeleteStale(ctx, job.OwnerId, time.Now().Add(-h.StaleAfter))
	if err != nil {
		return nil, fmt.Errorf("remove stale articles: %w", err)
	}
	result.StaleRemoved = removed

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return encoded, nil
}

// collect filters and scores one feed's items.
func (h *FeedRefreshHandler) collect(
	ctx context.Context,
	feed *gofeed.Feed,
	source FeedSource,
	saved, suggested map[string]bool,
	centroid *pgvector.Vector,
) []models.FeedArticle {
	var articles []models.FeedArticle
	for _, item := range feed.Items {
		if len(articles) >= articlesPerSource {
			break
		}
		if item.Link == "" || item.Title == "" {
			continue
		}
		link, err := validations.NormalizeURL(item.Link)
		if err != nil {
			continue
		}
		if saved[link] || suggested[link] {
			continue
		}

		var description *string
		if item.Description != "" {
			cleaned := validations.CleanUpText(item.Description)
			if cleaned != "" {
				description = &cleaned
			}
		}

		articles = append(articles, models.FeedArticle{
			Url:         link,
			Title:       strings.TrimSpace(item.Title),
			Description: description,
			Source:      source.Name,
			Score:       h.score(ctx, item.Title, description, link, centroid),
			PublishedAt: item.PublishedParsed,
		})
	}
	return articles
}

// collectStories filters and scores Hacker News search hits the same way
// collect handles feed items. The discussion stats blurb is kept as the
// description but stays out of the scored text.
func (h *FeedRefreshHandler) collectStories(
	ctx context.Context,
	stories []HNStory,
	saved, suggested map[string]bool,
	centroid *pgvector.Vector,
) []models.FeedArticle {
	var articles []models.FeedArticle
	for _, story := range stories {
		link, err := validations.NormalizeURL(story.Url)
		if err != nil {
			continue
		}
		if saved[link] || suggested[link] {
			continue
		}
		description := story.Description()
		articles = append(articles, models.FeedArticle{
			Url:         link,
			Title:       strings.TrimSpace(story.Title),
			Description: &description,
			Source:      "Hacker News",
			Score:       h.score(ctx, story.Title, nil, link, centroid),
			PublishedAt: story.PublishedAt,
		})
	}
	return articles
}

// score embeds the article text and compares it to the centroid. Items
// that fail to embed get the neutral score rather than being dropped.
func (h *FeedRefreshHandler) score(ctx context.Context, title string, description *string, link string, centroid *pgvector.Vector) float64 {
	if centroid == nil {
		return neutralScore
	}
	text := title
	if description != nil {
		text += "\n" + *description
	}
	embedded, err := h.Embedder.EmbedText(ctx, text)
	if err != nil {
		loggercontext.Logger(ctx).Infow("scoring article failed", "url", link, "error", err)
		return neutralScore
	}
	return cosineSimilarity(embedded, centroid.Slice())
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
