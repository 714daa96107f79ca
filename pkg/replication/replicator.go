// Package replication restores archived transcripts into the podcast store
// so they can be indexed again without calling the transcription provider.
package replication

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"podcast-brain/pkg/domain"
	"podcast-brain/pkg/logging"
)

const (
	defaultBatchSize = 100
	defaultWorkers   = 5
)

// Archive lists archived transcripts.
type Archive interface {
	ListTranscripts(ctx context.Context, userID string) ([]domain.PodcastTranscript, error)
}

// Store is the podcast store the archive is replicated into.
type Store interface {
	CreatePodcast(ctx context.Context, p *domain.Podcast) error
	GetPodcast(ctx context.Context, id string) (*domain.Podcast, error)
	SetStatus(ctx context.Context, id string, status domain.Status, message string) error
	SaveTranscript(ctx context.Context, id, transcript string, words []domain.TranscriptWord) error
}

// Config wires the replication dependencies.
type Config struct {
	Archive   Archive
	Store     Store
	BatchSize int
	Workers   int
}

// Replicator copies archived transcripts into the podcast store.
type Replicator struct {
	archive   Archive
	store     Store
	batchSize int
	workers   int
}

// Stats summarizes one replication run.
type Stats struct {
	Processed int
	// Created counts podcasts that were missing from the store.
	Created int
	// Updated counts podcasts whose stored transcript was replaced.
	Updated int
	// Skipped counts transcripts whose podcast belongs to another user.
	Skipped int
	// PodcastIDs lists every replicated podcast, each now in an indexable
	// status, in archive order.
	PodcastIDs []string
}

// NewReplicator creates a replicator.
func NewReplicator(cfg Config) (*Replicator, error) {
	if cfg.Archive == nil {
		return nil, fmt.Errorf("transcript archive is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("podcast store is required")
	}
	r := &Replicator{
		archive:   cfg.Archive,
		store:     cfg.Store,
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.workers <= 0 {
		r.workers = defaultWorkers
	}
	return r, nil
}

// Replicate restores every archived transcript of userID into the store.
// Missing podcasts are created, stale transcripts replaced, and every
// replicated podcast is moved to the processing status unless it is
// already indexable. The first batch error stops the run.
func (r *Replicator) Replicate(ctx context.Context, userID string) (*Stats, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	transcripts, err := r.archive.ListTranscripts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list archived transcripts: %w", err)
	}
	logging.Info("Loaded %d archived transcripts for user %s, replicating in batches...", len(transcripts), userID)

	stats, err := r.processBatches(ctx, transcripts)
	if err != nil {
		return stats, err
	}
	logging.Info("Replication complete: processed %d, created %d, updated %d, skipped %d",
		stats.Processed, stats.Created, stats.Updated, stats.Skipped)
	return stats, nil
}

type batchJob struct {
	index int
	batch []domain.PodcastTranscript
}

type batchResult struct {
	index int
	stats Stats
	err   error
}

func (r *Replicator) processBatches(ctx context.Context, transcripts []domain.PodcastTranscript) (*Stats, error) {
	numBatches := (len(transcripts) + r.batchSize - 1) / r.batchSize
	jobs := make(chan batchJob, numBatches)
	results := make(chan batchResult, numBatches)

	for start, i := 0, 0; start < len(transcripts); start, i = start+r.batchSize, i+1 {
		end := min(start+r.batchSize, len(transcripts))
		jobs <- batchJob{index: i, batch: transcripts[start:end]}
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					results <- batchResult{index: job.index, err: ctx.Err()}
					continue
				}
				s, err := r.processBatch(ctx, job.batch)
				results <- batchResult{index: job.index, stats: s, err: err}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Batches finish out of order; IDs are reassembled in archive order.
	ids := make([][]string, numBatches)
	total := &Stats{}
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		total.Processed += res.stats.Processed
		total.Created += res.stats.Created
		total.Updated += res.stats.Updated
		total.Skipped += res.stats.Skipped
		ids[res.index] = res.stats.PodcastIDs
		logging.Debug("Replication progress: %d/%d transcripts", total.Processed, len(transcripts))
	}
	for _, batch := range ids {
		total.PodcastIDs = append(total.PodcastIDs, batch...)
	}
	return total, firstErr
}

func (r *Replicator) processBatch(ctx context.Context, batch []domain.PodcastTranscript) (Stats, error) {
	var s Stats
	for i := range batch {
		t := &batch[i]
		s.Processed++

		created, updated, err := r.replicate(ctx, t)
		switch {
		case errors.Is(err, domain.ErrOwnership):
			logging.Warn("Skipping archived transcript %s: %v", t.PodcastID, err)
			s.Skipped++
			continue
		case err != nil:
			return s, fmt.Errorf("replicate podcast %s: %w", t.PodcastID, err)
		}
		if created {
			s.Created++
		}
		if updated {
			s.Updated++
		}
		s.PodcastIDs = append(s.PodcastIDs, t.PodcastID)
	}
	return s, nil
}

func (r *Replicator) replicate(ctx context.Context, t *domain.PodcastTranscript) (created, updated bool, err error) {
	if t.PodcastID == "" {
		return false, false, fmt.Errorf("%w: archived transcript has no podcast id", domain.ErrValidation)
	}

	p, err := r.store.GetPodcast(ctx, t.PodcastID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		p = &domain.Podcast{
			ID:       t.PodcastID,
			UserID:   t.UserID,
			Title:    t.Title,
			AudioURL: t.AudioURL,
			Status:   domain.StatusUploading,
		}
		if err := r.store.CreatePodcast(ctx, p); err != nil {
			return false, false, err
		}
		created = true
	case err != nil:
		return false, false, err
	case !p.OwnedBy(t.UserID):
		return false, false, fmt.Errorf("%w: podcast %s", domain.ErrOwnership, t.PodcastID)
	}

	if p.Transcript == nil || *p.Transcript != t.Transcript || len(p.Words) != len(t.Words) {
		if err := r.store.SaveTranscript(ctx, t.PodcastID, t.Transcript, t.Words); err != nil {
			return created, false, err
		}
		updated = !created
	}

	return created, updated, r.makeIndexable(ctx, p)
}

// makeIndexable walks the podcast forward through the legal status
// transitions until the index writer may run on it.
func (r *Replicator) makeIndexable(ctx context.Context, p *domain.Podcast) error {
	status := p.Status
	for !status.Indexable() {
		next := domain.StatusProcessing
		if !status.CanTransition(next) {
			next = domain.StatusTranscribing
		}
		if err := r.store.SetStatus(ctx, p.ID, next, ""); err != nil {
			return err
		}
		status = next
	}
	return nil
}
