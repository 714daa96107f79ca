// Package embedding turns chunk and query text into vectors through an
// external provider, batching and pacing calls and retrying rate limits.
package embedding

import (
	"context"

	"podcast-brain/pkg/domain"
)

// DefaultDimensions is the vector length of the default model.
const DefaultDimensions = 1536

// Provider is an external embedding service. Embed returns one vector per
// input, in input order, and reports throttling as domain.ErrRateLimited.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([]domain.Vector, error)
	Dimensions() int
	ModelName() string
}
