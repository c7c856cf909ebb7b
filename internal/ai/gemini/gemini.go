// Package gemini implements the descriptor generator and the search query
// parser on top of the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arashthr/lodekeep/internal/ai"
	"google.golang.org/genai"
)

type Client struct {
	GenAIClient *genai.Client
	Model       string
}

func New(client *genai.Client, model string) *Client {
	return &Client{GenAIClient: client, Model: model}
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if c.GenAIClient == nil {
		return "", ai.InvalidInput(errors.New("GenAI client not initialized"))
	}
	result, err := c.GenAIClient.Models.GenerateContent(
		ctx,
		c.Model,
		genai.Text(prompt),
		nil,
	)
	if err != nil {
		return "", classifyError(err)
	}
	return result.Text(), nil
}

// classifyError maps transport errors onto the capability taxonomy so the
// shared retry policy can act on them.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ai.Timeout(err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return ai.RateLimited(err)
		case apiErr.Code == 408 || apiErr.Code == 504:
			return ai.Timeout(err)
		case apiErr.Code >= 400 && apiErr.Code < 500:
			return ai.InvalidInput(err)
		}
	}
	return fmt.Errorf("generate content with Gemini: %w", err)
}

func section(name, body string) string {
	return fmt.Sprintf("===%s===\n%s\n===END %s===", name, body, name)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

func cleanTag(tag string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(tag)), " ", "-")
}
