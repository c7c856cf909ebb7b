// Package openai implements ai.Embedder against any OpenAI-compatible
// embeddings endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arashthr/lodekeep/internal/ai"
	"github.com/arashthr/lodekeep/internal/validations"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

const maxEmbeddingInput = 8000

type Config struct {
	BaseURL string
	Token   string
	Model   string
	// Dims is the expected vector width. Vectors of any other width would
	// be rejected by the store's vector column, so a mismatch is reported
	// here with the model name attached. Zero disables the check.
	Dims int
}

type Embedder struct {
	embedder embeddings.Embedder
	model    string
	dims     int
}

func NewEmbedder(cfg Config) (*Embedder, error) {
	token := cfg.Token
	if token == "" {
		// Local OpenAI-compatible services don't require authentication.
		token = "none"
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}
	return &Embedder{embedder: embedder, model: cfg.Model, dims: cfg.Dims}, nil
}

// EmbedText generates a vector embedding for a single text string. Input is
// truncated to keep request size bounded.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ai.InvalidInput(errors.New("text cannot be empty"))
	}
	text = validations.TruncateForModel(text, maxEmbeddingInput)

	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, classifyError(err)
	}
	if len(vectors) == 0 {
		return nil, errors.New("embedder returned empty result")
	}
	if e.dims > 0 && len(vectors[0]) != e.dims {
		return nil, fmt.Errorf("model %s returned a %d-dimensional vector, expected %d",
			e.model, len(vectors[0]), e.dims)
	}
	return vectors[0], nil
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ai.Timeout(err)
	}
	// langchaingo surfaces API errors as formatted strings, not types.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return ai.RateLimited(err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return ai.Timeout(err)
	case strings.Contains(msg, "400") || strings.Contains(msg, "invalid"):
		return ai.InvalidInput(err)
	}
	return err
}
