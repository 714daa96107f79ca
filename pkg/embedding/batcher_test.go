package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-brain/pkg/domain"
	"podcast-brain/pkg/retry"
)

// fakeProvider returns [len(text)] for each input and can fail a fixed
// number of calls.
type fakeProvider struct {
	mu       sync.Mutex
	calls    [][]string
	failures int
	failWith error
	short    bool
}

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([]domain.Vector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.failures > 0 {
		f.failures--
		return nil, f.failWith
	}
	out := make([]domain.Vector, len(texts))
	for i, t := range texts {
		out[i] = domain.Vector{float32(len(t))}
	}
	if f.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeProvider) Dimensions() int   { return 1 }
func (f *fakeProvider) ModelName() string { return "fake" }

func newTestBatcher(p Provider, opts ...BatcherOption) *Batcher {
	base := []BatcherOption{
		WithBatchDelay(0),
		WithRetryPolicy(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Name: "test"}),
	}
	return NewBatcher(p, append(base, opts...)...)
}

func TestEmbedBatch_PreservesLengthAndOrder(t *testing.T) {
	p := &fakeProvider{}
	b := newTestBatcher(p)

	out, err := b.EmbedBatch(context.Background(), []string{"a", "", "ccc", "   ", "bb"})
	require.NoError(t, err)
	require.Len(t, out, 5)

	assert.Equal(t, domain.Vector{1}, out[0])
	assert.Empty(t, out[1])
	assert.NotNil(t, out[1])
	assert.Equal(t, domain.Vector{3}, out[2])
	assert.Empty(t, out[3])
	assert.Equal(t, domain.Vector{2}, out[4])

	require.Len(t, p.calls, 1)
	assert.Equal(t, []string{"a", "ccc", "bb"}, p.calls[0])
}

func TestEmbedBatch_AllEmptySkipsProvider(t *testing.T) {
	p := &fakeProvider{}
	out, err := newTestBatcher(p).EmbedBatch(context.Background(), []string{"", " "})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Empty(t, p.calls)
}

func TestEmbedBatch_Batches(t *testing.T) {
	p := &fakeProvider{}
	b := newTestBatcher(p, WithBatchSize(100))

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = "x"
	}
	out, err := b.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, out, 250)

	require.Len(t, p.calls, 3)
	assert.Len(t, p.calls[0], 100)
	assert.Len(t, p.calls[1], 100)
	assert.Len(t, p.calls[2], 50)
}

func TestEmbedBatch_RetriesRateLimit(t *testing.T) {
	p := &fakeProvider{failures: 2, failWith: domain.ErrRateLimited}
	out, err := newTestBatcher(p).EmbedBatch(context.Background(), []string{"abc"})
	require.NoError(t, err)
	assert.Equal(t, domain.Vector{3}, out[0])
	assert.Len(t, p.calls, 3)
}

func TestEmbedBatch_RateLimitExhausted(t *testing.T) {
	p := &fakeProvider{failures: 10, failWith: domain.ErrRateLimited}
	_, err := newTestBatcher(p).EmbedBatch(context.Background(), []string{"abc"})
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
	assert.Len(t, p.calls, 3)
}

func TestEmbedBatch_ProviderErrorNotRetried(t *testing.T) {
	p := &fakeProvider{failures: 10, failWith: domain.ErrProvider}
	_, err := newTestBatcher(p).EmbedBatch(context.Background(), []string{"abc"})
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.False(t, domain.IsRetryable(err))
	assert.Len(t, p.calls, 1)
}

func TestEmbedBatch_LengthMismatch(t *testing.T) {
	p := &fakeProvider{short: true}
	_, err := newTestBatcher(p).EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestEmbedBatch_DeadlineBetweenBatches(t *testing.T) {
	p := &fakeProvider{}
	b := newTestBatcher(p, WithBatchSize(1), WithBatchDelay(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := b.EmbedBatch(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrDeadline)
	assert.Len(t, p.calls, 1)
}

func TestEmbedOne(t *testing.T) {
	p := &fakeProvider{}
	b := newTestBatcher(p)

	v, err := b.EmbedOne(context.Background(), "four")
	require.NoError(t, err)
	assert.Equal(t, domain.Vector{4}, v)

	_, err = b.EmbedOne(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Len(t, p.calls, 1)
}

func TestEmbedOne_PropagatesProviderError(t *testing.T) {
	boom := errors.New("boom")
	p := &fakeProvider{failures: 1, failWith: boom}
	_, err := newTestBatcher(p).EmbedOne(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity(domain.Vector{1, 2}, domain.Vector{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity(domain.Vector{1, 0}, domain.Vector{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity(domain.Vector{1, 0}, domain.Vector{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity(domain.Vector{1}, domain.Vector{1, 2}))
	assert.Equal(t, 0.0, CosineSimilarity(domain.Vector{0, 0}, domain.Vector{1, 2}))
}
