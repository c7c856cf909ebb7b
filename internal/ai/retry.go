package ai

import (
	"context"
	"time"
)

const defaultRetryBackoff = 2 * time.Second

// retry runs fn, and once more after a backoff if the first attempt failed
// with a retryable capability error. Anything else surfaces as-is. Each
// attempt gets its own deadline when timeout > 0, so one hung upstream call
// cannot hold a caller indefinitely.
func retry(ctx context.Context, backoff, timeout time.Duration, fn func(ctx context.Context) error) error {
	err := attempt(ctx, timeout, fn)
	if err == nil || !Retryable(err) {
		return err
	}
	select {
	case <-ctx.Done():
		return Timeout(ctx.Err())
	case <-time.After(backoff):
	}
	return attempt(ctx, timeout, fn)
}

func attempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(attemptCtx)
	if err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return Timeout(err)
	}
	return err
}

type retryingEmbedder struct {
	inner   Embedder
	backoff time.Duration
	timeout time.Duration
}

// WithEmbedderRetry wraps an embedder with the single-retry policy and a
// per-attempt timeout.
func WithEmbedderRetry(inner Embedder, timeout time.Duration) Embedder {
	return &retryingEmbedder{inner: inner, backoff: defaultRetryBackoff, timeout: timeout}
}

func (r *retryingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := retry(ctx, r.backoff, r.timeout, func(ctx context.Context) error {
		var innerErr error
		vec, innerErr = r.inner.EmbedText(ctx, text)
		return innerErr
	})
	return vec, err
}

type retryingDescriptor struct {
	inner   DescriptorGenerator
	backoff time.Duration
	timeout time.Duration
}

// WithDescriptorRetry wraps a descriptor generator with the single-retry
// policy and a per-attempt timeout.
func WithDescriptorRetry(inner DescriptorGenerator, timeout time.Duration) DescriptorGenerator {
	return &retryingDescriptor{inner: inner, backoff: defaultRetryBackoff, timeout: timeout}
}

func (r *retryingDescriptor) Describe(ctx context.Context, input DescribeInput) (*Descriptor, error) {
	var desc *Descriptor
	err := retry(ctx, r.backoff, r.timeout, func(ctx context.Context) error {
		var innerErr error
		desc, innerErr = r.inner.Describe(ctx, input)
		return innerErr
	})
	return desc, err
}

type retryingParser struct {
	inner   QueryParser
	backoff time.Duration
	timeout time.Duration
}

// WithParserRetry wraps a query parser with the single-retry policy and a
// per-attempt timeout.
func WithParserRetry(inner QueryParser, timeout time.Duration) QueryParser {
	return &retryingParser{inner: inner, backoff: defaultRetryBackoff, timeout: timeout}
}

func (r *retryingParser) ParseQuery(ctx context.Context, query string) (*ParsedQuery, error) {
	var parsed *ParsedQuery
	err := retry(ctx, r.backoff, r.timeout, func(ctx context.Context) error {
		var innerErr error
		parsed, innerErr = r.inner.ParseQuery(ctx, query)
		return innerErr
	})
	return parsed, err
}
