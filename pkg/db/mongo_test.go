package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-brain/pkg/domain"
)

func TestMongoArchive_NotInitialized(t *testing.T) {
	a := &MongoArchive{}
	assert.Error(t, a.Connect(context.Background()))
	assert.Error(t, a.SaveTranscript(context.Background(), &domain.PodcastTranscript{PodcastID: "p1"}))
	assert.NoError(t, a.Close(context.Background()))
}

func TestMongoArchive_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	uri := os.Getenv("PODCASTBRAIN_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("PODCASTBRAIN_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	archive := NewMongoArchive(uri, "podcastbrain_test", "transcripts_"+uuid.NewString()[:8])
	if err := archive.Connect(ctx); err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		_ = archive.collection.Drop(ctx)
		_ = archive.Close(ctx)
	}()

	tr := &domain.PodcastTranscript{
		PodcastID:     "p1",
		UserID:        "u1",
		Title:         "Episode",
		Transcript:    "hello world",
		Words:         []domain.TranscriptWord{{Text: "hello", Start: 0, End: 0.4}},
		TranscribedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, archive.SaveTranscript(ctx, tr))
	tr.Transcript = "hello again"
	require.NoError(t, archive.SaveTranscript(ctx, tr))

	got, err := archive.GetTranscript(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "hello again", got.Transcript)
	assert.Len(t, got.Words, 1)

	_, err = archive.GetTranscript(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := archive.ListTranscripts(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	ids, err := archive.ExistingPodcastIDs(ctx)
	require.NoError(t, err)
	assert.True(t, ids["p1"])
}
