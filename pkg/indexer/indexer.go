// Package indexer rebuilds a podcast's chunk set: delete, chunk, embed and
// persist, then mark the podcast ready.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"podcast-brain/pkg/chunker"
	"podcast-brain/pkg/domain"
	"podcast-brain/pkg/logging"
)

// Default batch sizes.
const (
	DefaultEmbedBatchSize   = 100
	DefaultPersistBatchSize = 100
)

// ChunkStore is the write side of the chunk store.
type ChunkStore interface {
	DeleteChunksByPodcast(ctx context.Context, podcastID string) error
	InsertChunks(ctx context.Context, chunks []domain.Chunk) error
}

// PodcastStore reads podcasts and records their processing status.
type PodcastStore interface {
	GetPodcast(ctx context.Context, id string) (*domain.Podcast, error)
	SetStatus(ctx context.Context, id string, status domain.Status, message string) error
}

// Store is what the index writer needs from persistence.
type Store interface {
	ChunkStore
	PodcastStore
}

// Embedder converts texts to vectors, one per input in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error)
}

// Chunker splits a transcript into chunks.
type Chunker interface {
	Chunk(transcript string, words []domain.TranscriptWord) []domain.Chunk
}

// Config wires the index writer dependencies.
type Config struct {
	Store    Store
	Embedder Embedder

	// Chunker defaults to chunker.New().
	Chunker Chunker

	EmbedBatchSize   int
	PersistBatchSize int
}

// Service is the index writer. Concurrent reindexes of the same podcast
// are not serialized here; callers gate them through the podcast status.
type Service struct {
	store            Store
	embedder         Embedder
	chunker          Chunker
	embedBatchSize   int
	persistBatchSize int
}

// NewService creates an index writer.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	s := &Service{
		store:            cfg.Store,
		embedder:         cfg.Embedder,
		chunker:          cfg.Chunker,
		embedBatchSize:   cfg.EmbedBatchSize,
		persistBatchSize: cfg.PersistBatchSize,
	}
	if s.chunker == nil {
		s.chunker = chunker.New()
	}
	if s.embedBatchSize <= 0 {
		s.embedBatchSize = DefaultEmbedBatchSize
	}
	if s.persistBatchSize <= 0 {
		s.persistBatchSize = DefaultPersistBatchSize
	}
	return s, nil
}

// Reindex replaces the podcast's chunk set with chunks built from
// transcript and returns how many were written. On success the podcast
// moves to ready with its error message cleared.
//
// Failures are typed: ErrValidation, ErrOwnership, ErrNotFound,
// ErrInvalidTransition and ErrNothingToIndex are returned before anything
// is deleted; later failures wrap ErrIndexing together with the cause
// (ErrPersistence, ErrDeadline, ErrRateLimited, ErrProvider). Batches
// already written are not rolled back; running Reindex again rebuilds the
// set from scratch.
func (s *Service) Reindex(ctx context.Context, userID, podcastID string, transcript *string, words []domain.TranscriptWord) (int, error) {
	if userID == "" || podcastID == "" {
		return 0, fmt.Errorf("%w: user id and podcast id are required", domain.ErrValidation)
	}

	podcast, err := s.store.GetPodcast(ctx, podcastID)
	if err != nil {
		return 0, err
	}
	if !podcast.OwnedBy(userID) {
		return 0, fmt.Errorf("%w: podcast %s", domain.ErrOwnership, podcastID)
	}
	if !podcast.Status.Indexable() {
		return 0, fmt.Errorf("%w: podcast %s is %s, not processing", domain.ErrInvalidTransition, podcastID, podcast.Status)
	}
	if transcript == nil {
		return 0, fmt.Errorf("%w: podcast %s has no transcript", domain.ErrNothingToIndex, podcastID)
	}

	started := time.Now()
	logging.Info("Reindexing podcast %s", podcastID)

	if err := s.store.DeleteChunksByPodcast(ctx, podcastID); err != nil {
		return 0, indexErr("delete existing chunks", err)
	}

	chunks := s.chunker.Chunk(*transcript, words)
	if len(chunks) == 0 {
		logging.Info("Podcast %s has an empty transcript, nothing to index", podcastID)
		if err := s.markReady(ctx, podcastID); err != nil {
			return 0, err
		}
		return 0, nil
	}

	staged, err := s.embed(ctx, podcastID, chunks)
	if err != nil {
		return 0, err
	}

	if err := s.persist(ctx, staged); err != nil {
		return 0, err
	}

	if err := s.markReady(ctx, podcastID); err != nil {
		return 0, err
	}

	logging.Info("Indexed podcast %s: %d chunks in %s", podcastID, len(staged), time.Since(started).Round(time.Millisecond))
	return len(staged), nil
}

// embed vectorizes chunks batch by batch in chunk index order and stages
// the rows to persist.
func (s *Service) embed(ctx context.Context, podcastID string, chunks []domain.Chunk) ([]domain.Chunk, error) {
	staged := make([]domain.Chunk, 0, len(chunks))

	for start := 0; start < len(chunks); start += s.embedBatchSize {
		end := calculateBatchEnd(start, s.embedBatchSize, len(chunks))
		if err := ctx.Err(); err != nil {
			return nil, indexErr(fmt.Sprintf("embed chunks [%d:%d]", start, end), err)
		}

		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, indexErr(fmt.Sprintf("embed chunks [%d:%d]", start, end), err)
		}
		if len(vectors) != len(batch) {
			return nil, indexErr(fmt.Sprintf("embed chunks [%d:%d]", start, end),
				fmt.Errorf("%w: expected %d vectors, got %d", domain.ErrProvider, len(batch), len(vectors)))
		}

		for i, c := range batch {
			if len(vectors[i]) == 0 {
				return nil, indexErr(fmt.Sprintf("embed chunk %d", c.ChunkIndex),
					fmt.Errorf("%w: empty vector", domain.ErrProvider))
			}
			c.ID = uuid.NewString()
			c.PodcastID = podcastID
			c.Embedding = vectors[i]
			staged = append(staged, c)
		}
		logging.Debug("Embedded chunks [%d:%d] of podcast %s", start, end, podcastID)
	}
	return staged, nil
}

// persist writes staged rows in fixed-size batches and stops at the first
// failure.
func (s *Service) persist(ctx context.Context, staged []domain.Chunk) error {
	for start := 0; start < len(staged); start += s.persistBatchSize {
		end := calculateBatchEnd(start, s.persistBatchSize, len(staged))
		op := fmt.Sprintf("persist chunks [%d:%d]", start, end)

		if err := ctx.Err(); err != nil {
			return indexErr(op, err)
		}
		if err := s.store.InsertChunks(ctx, staged[start:end]); err != nil {
			if !errors.Is(err, domain.ErrPersistence) && !isContextErr(err) {
				err = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
			}
			return indexErr(op, err)
		}
		logging.Debug("  Inserted chunks [%d:%d]", start, end)
	}
	return nil
}

func (s *Service) markReady(ctx context.Context, podcastID string) error {
	if err := s.store.SetStatus(ctx, podcastID, domain.StatusReady, ""); err != nil {
		return indexErr("mark ready", err)
	}
	return nil
}

// ReindexPodcast reindexes a podcast from the transcript stored on it.
func (s *Service) ReindexPodcast(ctx context.Context, userID, podcastID string) (int, error) {
	podcast, err := s.store.GetPodcast(ctx, podcastID)
	if err != nil {
		return 0, err
	}
	return s.Reindex(ctx, userID, podcastID, podcast.Transcript, podcast.Words)
}

// Process runs ReindexPodcast and, on failure, moves the podcast to the
// error status with the failure message so it is never left stuck in
// processing. A podcast that is not yet indexable keeps its status.
// The original error is returned.
func (s *Service) Process(ctx context.Context, userID, podcastID string) (int, error) {
	n, err := s.ReindexPodcast(ctx, userID, podcastID)
	if err == nil {
		return n, nil
	}

	logging.Error("Indexing podcast %s failed: %v", podcastID, err)
	// These leave the podcast as it was: it is not ours, missing, or still
	// owned by an earlier pipeline stage.
	if errors.Is(err, domain.ErrOwnership) || errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrInvalidTransition) {
		return 0, err
	}

	// The caller's deadline may be what failed; recording the error still
	// needs a live context.
	statusCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if serr := s.store.SetStatus(statusCtx, podcastID, domain.StatusError, err.Error()); serr != nil {
		logging.Warn("Could not record error status for podcast %s: %v", podcastID, serr)
	}
	return 0, err
}

// calculateBatchEnd calculates the end index for a batch, ensuring it doesn't exceed the total length.
func calculateBatchEnd(start, batchSize, totalLen int) int {
	end := start + batchSize
	if end > totalLen {
		return totalLen
	}
	return end
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// indexErr wraps a failure after deletion started as ErrIndexing. Context
// expiry is reported as ErrDeadline.
func indexErr(op string, err error) error {
	if isContextErr(err) && !errors.Is(err, domain.ErrDeadline) {
		err = fmt.Errorf("%w: %w", domain.ErrDeadline, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrIndexing, op, err)
}
