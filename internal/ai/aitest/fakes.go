// Package aitest provides deterministic fakes of the ai interfaces for use
// in tests.
package aitest

import (
	"context"
	"hash/fnv"

	"github.com/arashthr/lodekeep/internal/ai"
)

// FakeEmbedder returns a deterministic unit vector derived from the input
// text, so identical texts always embed identically. Set Err to simulate a
// capability failure.
type FakeEmbedder struct {
	Err   error
	Calls []string
}

func (f *FakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.Calls = append(f.Calls, text)
	if f.Err != nil {
		return nil, f.Err
	}
	return DeterministicVector(text, 8), nil
}

// DeterministicVector hashes text into a fixed-length pseudo-embedding.
func DeterministicVector(text string, dims int) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dims)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>33))/float32(1<<30) - 1
	}
	return vec
}

// FakeDescriptor answers with a fixed descriptor, or Err when set.
type FakeDescriptor struct {
	Descriptor ai.Descriptor
	Err        error
	Calls      []ai.DescribeInput
}

func (f *FakeDescriptor) Describe(ctx context.Context, input ai.DescribeInput) (*ai.Descriptor, error) {
	f.Calls = append(f.Calls, input)
	if f.Err != nil {
		return nil, f.Err
	}
	d := f.Descriptor
	if d.Category == "" {
		d.Category = "Uncategorized"
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	return &d, nil
}

// FakeParser answers with a fixed parse result, or Err when set. When
// Parsed is nil the whole query is returned as the semantic string.
type FakeParser struct {
	Parsed *ai.ParsedQuery
	Err    error
	Calls  []string
}

func (f *FakeParser) ParseQuery(ctx context.Context, query string) (*ai.ParsedQuery, error) {
	f.Calls = append(f.Calls, query)
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Parsed != nil {
		return f.Parsed, nil
	}
	return &ai.ParsedQuery{SemanticQuery: query}, nil
}
