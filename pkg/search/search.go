// Package search retrieves the transcript chunks most similar to a query,
// scoped to one user, with a degraded fallback when ranking is unavailable.
package search

import (
	"context"
	"fmt"
	"strings"

	"podcast-brain/pkg/domain"
	"podcast-brain/pkg/logging"
)

const (
	// DefaultLimit is the number of results returned when none is requested.
	DefaultLimit = 5
	// DefaultThreshold is the minimum similarity for general search.
	DefaultThreshold = 0.7
	// ChatThreshold is the looser minimum used when gathering chat context.
	ChatThreshold = 0.5
)

// Options narrows a search. Zero values select the defaults.
type Options struct {
	PodcastID           string
	Limit               int
	SimilarityThreshold *float64
}

// QueryEmbedder embeds a single query text.
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string) (domain.Vector, error)
}

// Service tries the primary strategy and falls back when it fails or finds
// nothing. It holds no per-call state and is safe for concurrent use.
type Service struct {
	embedder QueryEmbedder
	primary  Strategy
	fallback Strategy
}

// NewService creates a search coordinator. fallback may be nil, in which
// case primary failures are returned.
func NewService(embedder QueryEmbedder, primary, fallback Strategy) (*Service, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if primary == nil {
		return nil, fmt.Errorf("primary strategy is required")
	}
	return &Service{embedder: embedder, primary: primary, fallback: fallback}, nil
}

// Search embeds query and returns up to opts.Limit chunks owned by userID.
//
// When the primary path errors or returns no rows, the fallback path
// answers instead and its results have Degraded set. Validation and
// embedding failures are returned as typed errors; a fallback failure is
// returned only when both paths fail.
func (s *Service) Search(ctx context.Context, query, userID string, opts Options) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrValidation)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	req := Request{UserID: userID, PodcastID: opts.PodcastID, Limit: opts.Limit, Threshold: DefaultThreshold}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if opts.SimilarityThreshold != nil {
		t := *opts.SimilarityThreshold
		if t < 0 || t > 1 {
			return nil, fmt.Errorf("%w: similarity threshold %v outside [0,1]", domain.ErrValidation, t)
		}
		req.Threshold = t
	}

	vector, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	req.Query = vector

	results, err := s.primary.Retrieve(ctx, req)
	switch {
	case err != nil:
		logging.Warn("Search %s path failed, falling back: %v", s.primary.Name(), err)
	case len(results) > 0:
		logging.Debug("Search returned %d results via %s", len(results), s.primary.Name())
		return results, nil
	default:
		logging.Debug("Search %s path returned no rows, falling back", s.primary.Name())
	}

	if s.fallback == nil {
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		return []domain.SearchResult{}, nil
	}

	fallbackResults, ferr := s.fallback.Retrieve(ctx, req)
	if ferr != nil {
		return nil, fmt.Errorf("search %s: %w", s.fallback.Name(), ferr)
	}
	logging.Debug("Search returned %d results via %s", len(fallbackResults), s.fallback.Name())
	if fallbackResults == nil {
		fallbackResults = []domain.SearchResult{}
	}
	return fallbackResults, nil
}
