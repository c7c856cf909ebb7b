package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultHNSearchURL = "https://hn.algolia.com/api/v1/search"
	hnRequestTimeout   = 30 * time.Second
)

// HNStory is one story returned by the Hacker News search API.
type HNStory struct {
	Url         string
	Title       string
	Points      int
	NumComments int
	PublishedAt *time.Time
}

// Description renders the discussion stats shown alongside the story.
func (s HNStory) Description() string {
	return fmt.Sprintf("%d points and %d comments on Hacker News", s.Points, s.NumComments)
}

// HNClient searches Hacker News stories through the Algolia-backed API
// (https://hn.algolia.com/api). The zero value is ready to use.
type HNClient struct {
	HTTPClient *http.Client
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
}

type hnSearchResponse struct {
	Hits []struct {
		Url         string `json:"url"`
		Title       string `json:"title"`
		Points      int    `json:"points"`
		NumComments int    `json:"num_comments"`
		CreatedAt   string `json:"created_at"`
	} `json:"hits"`
}

// Search returns up to limit stories matching the query, newest API
// ranking first. Self-posts without an external url are skipped.
func (c *HNClient) Search(ctx context.Context, query string, limit int) ([]HNStory, error) {
	base := c.BaseURL
	if base == "" {
		base = defaultHNSearchURL
	}
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: hnRequestTimeout}
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("tags", "story")
	params.Set("hitsPerPage", strconv.Itoa(limit))

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	request.Header.Set("User-Agent", "lodekeep/1.0")

	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("search stories: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search stories: unexpected status %d", response.StatusCode)
	}

	var decoded hnSearchResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	var stories []HNStory
	for _, hit := range decoded.Hits {
		if hit.Url == "" || hit.Title == "" {
			continue
		}
		story := HNStory{
			Url:         hit.Url,
			Title:       hit.Title,
			Points:      hit.Points,
			NumComments: hit.NumComments,
		}
		if parsed, err := time.Parse(time.RFC3339, hit.CreatedAt); err == nil {
			story.PublishedAt = &parsed
		}
		stories = append(stories, story)
	}
	return stories, nil
}
