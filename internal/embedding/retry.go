package embedding

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/shiori/internal/apperr"
)

// RetryingEmbedder throttles calls to an Embedder. Batch calls, which come
// from index builds, retry a retryable ServiceError exactly once after an
// exponential backoff delay. Single-text calls serve queries and fail fast.
type RetryingEmbedder struct {
	inner           Embedder
	limiter         *rate.Limiter
	initialInterval time.Duration
	maxRetries      uint64
	logger          *zap.Logger
}

// RetryOption configures a RetryingEmbedder.
type RetryOption func(*RetryingEmbedder)

// WithRateLimit throttles requests to rps per second. rps <= 0 disables throttling.
func WithRateLimit(rps float64) RetryOption {
	return func(r *RetryingEmbedder) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			r.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithBackoff sets the delay before the retry.
func WithBackoff(d time.Duration) RetryOption {
	return func(r *RetryingEmbedder) { r.initialInterval = d }
}

// WithRetryLogger sets a logger for retry events.
func WithRetryLogger(l *zap.Logger) RetryOption {
	return func(r *RetryingEmbedder) { r.logger = l }
}

// NewRetryingEmbedder wraps inner.
func NewRetryingEmbedder(inner Embedder, opts ...RetryOption) *RetryingEmbedder {
	r := &RetryingEmbedder{
		inner:           inner,
		initialInterval: 500 * time.Millisecond,
		maxRetries:      1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Embed embeds one text without retrying.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := r.do(ctx, 0, func() error {
		v, err := r.inner.Embed(ctx, text)
		out = v
		return err
	})
	return out, err
}

// EmbedBatch embeds texts in one provider call.
func (r *RetryingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.do(ctx, r.maxRetries, func() error {
		v, err := r.inner.EmbedBatch(ctx, texts)
		out = v
		return err
	})
	return out, err
}

func (r *RetryingEmbedder) do(ctx context.Context, retries uint64, call func() error) error {
	op := func() error {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		err := call()
		if err != nil && !apperr.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
	return backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		if r.logger != nil {
			r.logger.Warn("embedding call failed, retrying", zap.Duration("wait", wait), zap.Error(err))
		}
	})
}

// Dimensions returns the wrapped embedder's dimension.
func (r *RetryingEmbedder) Dimensions() int {
	return r.inner.Dimensions()
}

// Close closes the wrapped embedder.
func (r *RetryingEmbedder) Close() error {
	return r.inner.Close()
}
