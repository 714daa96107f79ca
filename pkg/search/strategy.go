package search

import (
	"context"
	"sort"

	"podcast-brain/pkg/db"
	"podcast-brain/pkg/domain"
)

// Request is one retrieval, already validated and embedded.
type Request struct {
	Query     domain.Vector
	UserID    string
	PodcastID string
	Limit     int
	Threshold float64
}

// Strategy retrieves chunks for a request. Every implementation must scope
// results to Request.UserID.
type Strategy interface {
	Name() string
	Retrieve(ctx context.Context, req Request) ([]domain.SearchResult, error)
}

// Matcher runs a nearest-neighbour query in the store.
type Matcher interface {
	MatchChunks(ctx context.Context, p db.MatchParams) ([]domain.SearchResult, error)
}

// ChunkLister reads a user's chunks without ranking.
type ChunkLister interface {
	ListUserChunks(ctx context.Context, userID, podcastID string, limit int) ([]domain.SearchResult, error)
}

// PrimaryStrategy ranks chunks with the store's similarity function.
type PrimaryStrategy struct {
	store Matcher
}

// NewPrimaryStrategy creates the ranked retrieval path.
func NewPrimaryStrategy(store Matcher) *PrimaryStrategy {
	return &PrimaryStrategy{store: store}
}

// Name identifies the strategy in logs.
func (p *PrimaryStrategy) Name() string { return "primary" }

// Retrieve returns at most req.Limit results above req.Threshold, most
// similar first.
func (p *PrimaryStrategy) Retrieve(ctx context.Context, req Request) ([]domain.SearchResult, error) {
	results, err := p.store.MatchChunks(ctx, db.MatchParams{
		Query:     req.Query,
		UserID:    req.UserID,
		PodcastID: req.PodcastID,
		Limit:     req.Limit,
		Threshold: req.Threshold,
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return results, nil
}

// FallbackStrategy reads the user's chunks directly, without ranking.
// Results carry domain.FallbackSimilarity and are marked Degraded.
type FallbackStrategy struct {
	store ChunkLister
}

// NewFallbackStrategy creates the degraded retrieval path.
func NewFallbackStrategy(store ChunkLister) *FallbackStrategy {
	return &FallbackStrategy{store: store}
}

// Name identifies the strategy in logs.
func (f *FallbackStrategy) Name() string { return "fallback" }

// Retrieve fetches up to twice the limit and keeps the first req.Limit.
func (f *FallbackStrategy) Retrieve(ctx context.Context, req Request) ([]domain.SearchResult, error) {
	results, err := f.store.ListUserChunks(ctx, req.UserID, req.PodcastID, 2*req.Limit)
	if err != nil {
		return nil, err
	}

	if len(results) > req.Limit {
		results = results[:req.Limit]
	}
	for i := range results {
		results[i].Similarity = domain.FallbackSimilarity
		results[i].Degraded = true
	}
	return results, nil
}
