package db

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-brain/pkg/domain"
)

func TestSchemaDDL(t *testing.T) {
	ddl := schemaDDL(3)
	assert.Contains(t, ddl, "embedding vector(3) NOT NULL")
	assert.Contains(t, ddl, "query_embedding vector(3)")
	assert.Contains(t, ddl, "UNIQUE (podcast_id, chunk_index)")
	assert.Contains(t, ddl, "WHERE p.user_id = filter_user_id")

	assert.True(t, strings.Contains(schemaDDL(0), "vector(1536)"))
}

func TestNewPostgresStore_RequiresClient(t *testing.T) {
	_, err := NewPostgresStore(nil, 3)
	assert.Error(t, err)
}

func TestPostgresStore_NotConnected(t *testing.T) {
	store, err := NewPostgresStore(NewPostgresClient(PostgresConfig{}), 3)
	require.NoError(t, err)

	err = store.DeleteChunksByPodcast(context.Background(), "p1")
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

// newIntegrationStore connects to PODCASTBRAIN_TEST_POSTGRES_DSN, which
// must point at a database with the pgvector extension available.
func newIntegrationStore(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	dsn := os.Getenv("PODCASTBRAIN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PODCASTBRAIN_TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := NewPostgresClient(PostgresConfig{DSN: dsn})
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Failed to connect to Postgres: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewPostgresStore(client, 3)
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func TestPostgresStore_Integration(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	userA, userB := uuid.NewString(), uuid.NewString()
	pa := &domain.Podcast{UserID: userA, Title: "A"}
	pb := &domain.Podcast{UserID: userB, Title: "B"}
	require.NoError(t, store.CreatePodcast(ctx, pa))
	require.NoError(t, store.CreatePodcast(ctx, pb))

	require.NoError(t, store.SaveTranscript(ctx, pa.ID, "hello there", []domain.TranscriptWord{{Text: "hello", Start: 0, End: 0.5}}))
	got, err := store.GetPodcast(ctx, pa.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Transcript)
	assert.Equal(t, "hello there", *got.Transcript)
	assert.Len(t, got.Words, 1)

	start := 1.0
	require.NoError(t, store.InsertChunks(ctx, []domain.Chunk{
		{PodcastID: pa.ID, Content: "a0", ChunkIndex: 0, StartTime: &start, EndTime: &start, Embedding: domain.Vector{1, 0, 0}},
		{PodcastID: pa.ID, Content: "a1", ChunkIndex: 1, Embedding: domain.Vector{0, 1, 0}},
	}))
	require.NoError(t, store.InsertChunks(ctx, []domain.Chunk{
		{PodcastID: pb.ID, Content: "b0", ChunkIndex: 0, Embedding: domain.Vector{1, 0, 0}},
	}))

	res, err := store.MatchChunks(ctx, MatchParams{Query: domain.Vector{1, 0, 0}, UserID: userA, Limit: 5, Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "a0", res[0].Content)
	assert.Equal(t, "A", res[0].PodcastTitle)
	require.NotNil(t, res[0].StartTime)
	assert.InDelta(t, 1.0, res[0].Similarity, 1e-6)

	list, err := store.ListUserChunks(ctx, userA, "", 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, r := range list {
		assert.Equal(t, pa.ID, r.PodcastID)
	}

	err = store.InsertChunks(ctx, []domain.Chunk{{PodcastID: pa.ID, Content: "dup", ChunkIndex: 0, Embedding: domain.Vector{1, 0, 0}}})
	assert.ErrorIs(t, err, domain.ErrPersistence)

	require.NoError(t, store.DeleteChunksByPodcast(ctx, pa.ID))
	n, err := store.CountChunks(ctx, pa.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.ErrorIs(t, store.SetStatus(ctx, pa.ID, domain.StatusReady, ""), domain.ErrInvalidTransition)
	require.NoError(t, store.SetStatus(ctx, pa.ID, domain.StatusError, "failed"))

	podcasts, err := store.ListPodcasts(ctx, userA)
	require.NoError(t, err)
	require.Len(t, podcasts, 1)
	assert.Equal(t, domain.StatusError, podcasts[0].Status)
	assert.Nil(t, podcasts[0].Transcript)
}
