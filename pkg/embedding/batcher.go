package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"podcast-brain/pkg/domain"
	"podcast-brain/pkg/logging"
	"podcast-brain/pkg/retry"
)

const (
	// DefaultBatchSize is the number of texts sent per provider call.
	DefaultBatchSize = 100
	// DefaultBatchDelay is the minimum spacing between provider calls.
	DefaultBatchDelay = 100 * time.Millisecond
)

// Batcher embeds texts through a Provider in fixed-size batches.
// It is safe for concurrent use; concurrent callers share the pacing limiter.
type Batcher struct {
	provider  Provider
	batchSize int
	limiter   *rate.Limiter
	policy    retry.Policy
}

// BatcherOption configures a Batcher.
type BatcherOption func(*Batcher)

// WithBatchSize sets the number of texts per provider call.
func WithBatchSize(n int) BatcherOption {
	return func(b *Batcher) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithBatchDelay sets the minimum spacing between provider calls. Zero
// disables pacing.
func WithBatchDelay(d time.Duration) BatcherOption {
	return func(b *Batcher) {
		b.limiter = newLimiter(d)
	}
}

// WithRetryPolicy replaces the default rate-limit retry policy.
func WithRetryPolicy(p retry.Policy) BatcherOption {
	return func(b *Batcher) {
		b.policy = p
	}
}

// NewBatcher creates a Batcher over provider.
func NewBatcher(provider Provider, opts ...BatcherOption) *Batcher {
	b := &Batcher{
		provider:  provider,
		batchSize: DefaultBatchSize,
		limiter:   newLimiter(DefaultBatchDelay),
		policy:    retry.DefaultPolicy("embedding"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func newLimiter(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// Dimensions reports the provider's vector length.
func (b *Batcher) Dimensions() int {
	return b.provider.Dimensions()
}

// EmbedBatch embeds texts and returns one vector per input at the same
// position. Empty or whitespace-only inputs are not sent to the provider
// and map to an empty Vector.
func (b *Batcher) EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	results := make([]domain.Vector, len(texts))

	valid := make([]string, 0, len(texts))
	indices := make([]int, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = domain.Vector{}
			continue
		}
		valid = append(valid, text)
		indices = append(indices, i)
	}
	if len(valid) == 0 {
		return results, nil
	}

	for start := 0; start < len(valid); start += b.batchSize {
		end := start + b.batchSize
		if end > len(valid) {
			end = len(valid)
		}

		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w: %v", start, end, domain.ErrDeadline, err)
		}

		batch := valid[start:end]
		var vectors []domain.Vector
		err := retry.Do(ctx, b.policy, func(ctx context.Context) error {
			var err error
			vectors, err = b.provider.Embed(ctx, batch)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embed batch %d-%d: %w: expected %d vectors, got %d",
				start, end, domain.ErrProvider, len(batch), len(vectors))
		}

		for j, v := range vectors {
			results[indices[start+j]] = v
		}
		logging.Debug("embedded batch %d-%d of %d texts", start, end, len(valid))
	}

	return results, nil
}

// EmbedOne embeds a single text. Empty text is a validation error.
func (b *Batcher) EmbedOne(ctx context.Context, text string) (domain.Vector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: cannot embed empty text", domain.ErrValidation)
	}

	vectors, err := b.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", domain.ErrProvider)
	}
	return vectors[0], nil
}
