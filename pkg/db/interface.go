package db

import (
	"database/sql"
	"fmt"

	"podcast-brain/pkg/domain"
)

// DBProvider is an interface for database clients that provide access to a sql.DB handle.
// This allows both PostgresClient and SupabaseClient to back a PostgresStore.
type DBProvider interface {
	DB() *sql.DB
}

// MatchParams parameterizes a nearest-neighbour chunk query. UserID is
// mandatory; an empty PodcastID searches all of the user's podcasts.
type MatchParams struct {
	Query     domain.Vector
	UserID    string
	PodcastID string
	Limit     int
	Threshold float64
}

// Table and function names shared by the Postgres and Supabase stores.
const (
	podcastsTable      = "podcasts"
	chunksTable        = "podcast_chunks"
	matchChunksFunc    = "match_podcast_chunks"
	defaultVectorWidth = 1536
)

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}
