package embedding

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryAttempts bounds how often a failing provider call is repeated
// before the error surfaces to the caller.
const retryAttempts = 3

// Retrying decorates an Embedder with bounded exponential backoff on
// transient provider failures. Context cancellation stops the retry
// loop immediately.
type Retrying struct {
	inner Embedder
}

var _ Embedder = (*Retrying)(nil)

// WithRetry wraps an embedder in the retry policy. The mock never
// fails, so wrapping it is a no-op in practice.
func WithRetry(inner Embedder) *Retrying {
	return &Retrying{inner: inner}
}

func (r *Retrying) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 0 // attempts bound the loop, not wall time
	return backoff.WithContext(backoff.WithMaxRetries(b, retryAttempts-1), ctx)
}

// Embed retries the wrapped Embed until it succeeds or attempts run out.
func (r *Retrying) Embed(ctx context.Context, text string) ([]float32, error) {
	return backoff.RetryWithData(func() ([]float32, error) {
		vec, err := r.inner.Embed(ctx, text)
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return vec, err
	}, r.policy(ctx))
}

// EmbedBatch retries the wrapped EmbedBatch until it succeeds or
// attempts run out.
func (r *Retrying) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return backoff.RetryWithData(func() ([][]float32, error) {
		vecs, err := r.inner.EmbedBatch(ctx, texts)
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return vecs, err
	}, r.policy(ctx))
}

// Model returns the wrapped embedder's model name.
func (r *Retrying) Model() string {
	return r.inner.Model()
}

// Dimension returns the wrapped embedder's dimension.
func (r *Retrying) Dimension() int {
	return r.inner.Dimension()
}

// Health probes once without retrying; a health check should fail fast.
func (r *Retrying) Health(ctx context.Context) error {
	return r.inner.Health(ctx)
}
