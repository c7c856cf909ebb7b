package openai

import (
	"context"
	"testing"

	"github.com/arashthr/lodekeep/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vector []float32
}

func (s *stubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return [][]float32{s.vector}, nil
}

func (s *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.vector, nil
}

func TestEmbedTextRejectsEmptyInput(t *testing.T) {
	e := &Embedder{embedder: &stubEmbedder{vector: []float32{1, 2}}}

	_, err := e.EmbedText(context.Background(), "   ")
	require.Error(t, err)
	assert.False(t, ai.Retryable(err))
}

func TestEmbedTextChecksVectorWidth(t *testing.T) {
	e := &Embedder{embedder: &stubEmbedder{vector: []float32{1, 2, 3}}, model: "test-model", dims: 4}

	_, err := e.EmbedText(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test-model")
	assert.Contains(t, err.Error(), "expected 4")
}

func TestEmbedTextWidthCheckDisabledByDefault(t *testing.T) {
	e := &Embedder{embedder: &stubEmbedder{vector: []float32{1, 2, 3}}}

	vec, err := e.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
}
