package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	errs  []error
}

func (c *countingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return []float32{0.1, 0.2}, nil
}

func TestRetryOnRateLimit(t *testing.T) {
	inner := &countingEmbedder{errs: []error{RateLimited(errors.New("429"))}}
	e := &retryingEmbedder{inner: inner, backoff: time.Millisecond}

	vec, err := e.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 2)
	assert.Equal(t, 2, inner.calls)
}

func TestRetryOnTimeoutOnce(t *testing.T) {
	inner := &countingEmbedder{errs: []error{
		Timeout(errors.New("deadline")),
		Timeout(errors.New("deadline")),
	}}
	e := &retryingEmbedder{inner: inner, backoff: time.Millisecond}

	_, err := e.EmbedText(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls, "exactly one retry")
	assert.True(t, Retryable(err))
}

func TestNoRetryOnInvalidInput(t *testing.T) {
	inner := &countingEmbedder{errs: []error{InvalidInput(errors.New("empty text"))}}
	e := &retryingEmbedder{inner: inner, backoff: time.Millisecond}

	_, err := e.EmbedText(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.False(t, Retryable(err))
}

func TestNoRetryOnPlainError(t *testing.T) {
	inner := &countingEmbedder{errs: []error{errors.New("boom")}}
	e := &retryingEmbedder{inner: inner, backoff: time.Millisecond}

	_, err := e.EmbedText(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryHonorsContext(t *testing.T) {
	inner := &countingEmbedder{errs: []error{RateLimited(errors.New("429"))}}
	e := &retryingEmbedder{inner: inner, backoff: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.EmbedText(ctx, "hello")
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

type hangingEmbedder struct {
	calls int
}

func (h *hangingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	h.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRetryAppliesPerAttemptTimeout(t *testing.T) {
	inner := &hangingEmbedder{}
	e := &retryingEmbedder{inner: inner, backoff: time.Millisecond, timeout: 10 * time.Millisecond}

	done := make(chan error, 1)
	go func() {
		_, err := e.EmbedText(context.Background(), "hello")
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, Retryable(err), "deadline surfaces as a retryable timeout")
		assert.Equal(t, 2, inner.calls, "timed-out attempt is retried once")
	case <-time.After(2 * time.Second):
		t.Fatal("embed call did not return despite the per-attempt timeout")
	}
}

func TestRetryWithoutTimeoutPassesContextThrough(t *testing.T) {
	inner := &countingEmbedder{}
	e := &retryingEmbedder{inner: inner, backoff: time.Millisecond}

	vec, err := e.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 2)
	assert.Equal(t, 1, inner.calls)
}
