package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/arashthr/lodekeep/internal/validations"
	"github.com/go-shiori/go-readability"
)

// Page is what could be extracted from a fetched URL. Content is plain
// text, already cleaned up for downstream model calls.
type Page struct {
	Title       string
	Description string
	Content     string
	Domain      string
	WordCount   int
}

type Scraper struct {
	Client *http.Client
}

func New(timeout time.Duration) *Scraper {
	return &Scraper{
		Client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the page at link and extracts title, description and
// body text. Callers treat any error as a degraded scrape, never fatal.
func (s *Scraper) Fetch(ctx context.Context, link string) (*Page, error) {
	resp, err := s.getPage(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	defer resp.Body.Close()
	finalURL := resp.Request.URL

	article, err := readability.FromReader(resp.Body, finalURL)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}

	content := validations.CleanUpText(article.TextContent)
	page := &Page{
		Title:       validations.CleanUpText(article.Title),
		Description: validations.CleanUpText(article.Excerpt),
		Content:     content,
		Domain:      validations.ExtractHostname(link),
		WordCount:   len(strings.Fields(content)),
	}
	if page.Title == "" {
		page.Title = page.Domain
	}
	return page, nil
}

var metaRefreshRe = regexp.MustCompile(`(?i)<meta[^>]+http-equiv=["']?refresh["']?[^>]+content=["']?\d+;\s*url=([^"'>]+)["']?`)

func (s *Scraper) getPage(ctx context.Context, link string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}

	// Accept any 2xx status code
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	body := string(bodyBytes)

	// Some sites "redirect" with a meta refresh instead of a 3xx.
	metaRefresh := metaRefreshRe.FindStringSubmatch(body)
	if len(metaRefresh) > 0 {
		redirectURL, err := url.Parse(metaRefresh[1])
		if err != nil {
			return nil, fmt.Errorf("parse redirect URL: %w", err)
		}
		redirectLink := redirectURL.String()
		if strings.HasPrefix(redirectLink, "/") {
			parsedURL, err := url.Parse(link)
			if err != nil {
				return nil, fmt.Errorf("parse original link: %w", err)
			}
			redirectLink = parsedURL.Scheme + "://" + parsedURL.Host + redirectLink
		}
		return s.getPage(ctx, redirectLink)
	}
	resp.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	return resp, nil
}
