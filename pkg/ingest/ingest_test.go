package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-brain/pkg/db"
	"podcast-brain/pkg/domain"
	"podcast-brain/pkg/feed"
	"podcast-brain/pkg/indexer"
	"podcast-brain/pkg/replication"
	"podcast-brain/pkg/transcription"
)

type staticFeed struct {
	episodes []feed.Episode
	err      error
}

func (f *staticFeed) Episodes(_ context.Context, _ string, max int) ([]feed.Episode, error) {
	if f.err != nil {
		return nil, f.err
	}
	if max > 0 && len(f.episodes) > max {
		return f.episodes[:max], nil
	}
	return f.episodes, nil
}

// scriptedTranscriber returns a short transcript per source URL and fails
// for sources listed in fail.
type scriptedTranscriber struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func newTranscriber(fail ...string) *scriptedTranscriber {
	t := &scriptedTranscriber{calls: map[string]int{}, fail: map[string]bool{}}
	for _, f := range fail {
		t.fail[f] = true
	}
	return t
}

func (s *scriptedTranscriber) Submit(_ context.Context, source string) (*transcription.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[source]++
	if s.fail[source] {
		return nil, fmt.Errorf("%w: audio unreadable", domain.ErrTranscription)
	}
	return &transcription.Result{
		Text:  "Welcome to the show. Today we talk about " + source + ".",
		Words: []domain.TranscriptWord{{Text: "Welcome", Start: 0, End: 0.3}},
	}, nil
}

func (s *scriptedTranscriber) count(source string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[source]
}

type lengthEmbedder struct{}

func (lengthEmbedder) EmbedBatch(_ context.Context, texts []string) ([]domain.Vector, error) {
	out := make([]domain.Vector, len(texts))
	for i, t := range texts {
		out[i] = domain.Vector{float32(len(t)), 1}
	}
	return out, nil
}

type fixture struct {
	store       *db.MemoryStore
	archive     *db.MemoryArchive
	transcriber *scriptedTranscriber
	svc         *Service
}

func newFixture(t *testing.T, episodes []feed.Episode, fail ...string) *fixture {
	t.Helper()
	store := db.NewMemoryStore()
	archive := db.NewMemoryArchive()
	tr := newTranscriber(fail...)

	idx, err := indexer.NewService(indexer.Config{Store: store, Embedder: lengthEmbedder{}})
	require.NoError(t, err)
	rep, err := replication.NewReplicator(replication.Config{Archive: archive, Store: store})
	require.NoError(t, err)

	svc, err := NewService(Config{
		Feed:        &staticFeed{episodes: episodes},
		Transcriber: tr,
		Store:       store,
		Indexer:     idx,
		Archive:     archive,
		Replicator:  rep,
		Workers:     3,
	})
	require.NoError(t, err)
	return &fixture{store: store, archive: archive, transcriber: tr, svc: svc}
}

func episodes(n int) []feed.Episode {
	out := make([]feed.Episode, n)
	for i := range out {
		out[i] = feed.Episode{
			GUID:     fmt.Sprintf("guid-%d", i),
			Title:    fmt.Sprintf("Episode %d", i),
			AudioURL: fmt.Sprintf("https://cdn.example/ep%d.mp3", i),
		}
	}
	return out
}

func TestIngestFeed(t *testing.T) {
	ctx := context.Background()
	eps := episodes(5)
	f := newFixture(t, eps)

	report, err := f.svc.IngestFeed(ctx, "alice", "https://feed.example/rss", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Indexed)
	assert.Equal(t, 5, report.Chunks)
	assert.Zero(t, report.Failed)

	for _, ep := range eps {
		id := PodcastID("alice", ep.GUID)
		p, err := f.store.GetPodcast(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusReady, p.Status)
		assert.Equal(t, ep.Title, p.Title)
		assert.Equal(t, "alice", p.UserID)
		assert.Len(t, f.store.Chunks(id), 1)

		archived, err := f.archive.GetTranscript(ctx, id)
		require.NoError(t, err)
		assert.Contains(t, archived.Transcript, ep.AudioURL)
	}
}

func TestIngestFeedSkipsIndexedEpisodes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, episodes(2))

	_, err := f.svc.IngestFeed(ctx, "alice", "feed", 0)
	require.NoError(t, err)

	report, err := f.svc.IngestFeed(ctx, "alice", "feed", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Skipped)
	assert.Zero(t, report.Indexed)
	assert.Equal(t, 1, f.transcriber.count("https://cdn.example/ep0.mp3"))
}

func TestIngestFeedCountsFailures(t *testing.T) {
	ctx := context.Background()
	eps := episodes(3)
	f := newFixture(t, eps, eps[1].AudioURL)

	report, err := f.svc.IngestFeed(ctx, "alice", "feed", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, 1, report.Failed)

	p, err := f.store.GetPodcast(ctx, PodcastID("alice", eps[1].GUID))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, p.Status)
	assert.Contains(t, p.ErrorMessage, "audio unreadable")

	// A later run retries the failed episode only.
	delete(f.transcriber.fail, eps[1].AudioURL)
	report, err = f.svc.IngestFeed(ctx, "alice", "feed", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)
	assert.Equal(t, 2, report.Skipped)
}

func TestIngestFeedAllFailed(t *testing.T) {
	eps := episodes(2)
	f := newFixture(t, eps, eps[0].AudioURL, eps[1].AudioURL)

	report, err := f.svc.IngestFeed(context.Background(), "alice", "feed", 0)
	require.Error(t, err)
	assert.Equal(t, 2, report.Failed)
}

func TestIngestFeedReusesArchivedTranscript(t *testing.T) {
	ctx := context.Background()
	eps := episodes(1)
	f := newFixture(t, eps)

	id := PodcastID("alice", eps[0].GUID)
	require.NoError(t, f.archive.SaveTranscript(ctx, &domain.PodcastTranscript{
		PodcastID: id, UserID: "alice", Transcript: "Archived words only.",
	}))

	report, err := f.svc.IngestFeed(ctx, "alice", "feed", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)
	assert.Zero(t, f.transcriber.count(eps[0].AudioURL))

	chunks := f.store.Chunks(id)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Archived words only.", chunks[0].Content)
}

func TestIngestFeedErrors(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.IngestFeed(context.Background(), "", "feed", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	f.svc.feed = &staticFeed{err: errors.New("feed down")}
	_, err = f.svc.IngestFeed(context.Background(), "alice", "feed", 0)
	assert.Error(t, err)
}

func TestPodcastIDIsStablePerUser(t *testing.T) {
	assert.Equal(t, PodcastID("alice", "g1"), PodcastID("alice", "g1"))
	assert.NotEqual(t, PodcastID("alice", "g1"), PodcastID("bob", "g1"))
	assert.NotEqual(t, PodcastID("alice", "g1"), PodcastID("alice", "g2"))
}

func TestBackfill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.archive.SaveTranscript(ctx, &domain.PodcastTranscript{
			PodcastID:  fmt.Sprintf("archived-%d", i),
			UserID:     "alice",
			Title:      fmt.Sprintf("Archived %d", i),
			Transcript: fmt.Sprintf("Archived transcript number %d.", i),
		}))
	}
	require.NoError(t, f.archive.SaveTranscript(ctx, &domain.PodcastTranscript{
		PodcastID: "bobs", UserID: "bob", Transcript: "Bob only.",
	}))

	report, err := f.svc.Backfill(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 3, report.Indexed)
	assert.Equal(t, 3, report.Chunks)

	for i := 0; i < 3; i++ {
		p, err := f.store.GetPodcast(ctx, fmt.Sprintf("archived-%d", i))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusReady, p.Status)
	}
	_, err = f.store.GetPodcast(ctx, "bobs")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Running again rebuilds the same chunk sets.
	report, err = f.svc.Backfill(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Indexed)
	assert.Len(t, f.store.Chunks("archived-0"), 1)
}

func TestBackfillRequiresArchive(t *testing.T) {
	store := db.NewMemoryStore()
	idx, err := indexer.NewService(indexer.Config{Store: store, Embedder: lengthEmbedder{}})
	require.NoError(t, err)
	svc, err := NewService(Config{Store: store, Indexer: idx})
	require.NoError(t, err)

	_, err = svc.Backfill(context.Background(), "alice")
	assert.Error(t, err)
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(Config{})
	assert.Error(t, err)
	_, err = NewService(Config{Store: db.NewMemoryStore()})
	assert.Error(t, err)
}
