// Package ingest drives episodes from a feed through transcription and
// indexing, and re-indexes archived transcripts in bulk.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"podcast-brain/pkg/domain"
	"podcast-brain/pkg/feed"
	"podcast-brain/pkg/logging"
	"podcast-brain/pkg/replication"
	"podcast-brain/pkg/transcription"
)

const (
	defaultWorkers       = 4
	defaultBackfillBatch = 100
	statusRecordTimeout  = 10 * time.Second
)

// episodeNamespace scopes deterministic podcast IDs derived from feed GUIDs.
var episodeNamespace = uuid.MustParse("6f1f3c2e-6a43-4d0b-9a0e-0c5b8e2f7a91")

// EpisodeSource lists feed episodes.
type EpisodeSource interface {
	Episodes(ctx context.Context, feedURL string, max int) ([]feed.Episode, error)
}

// PodcastStore creates podcasts and records their transcript and status.
type PodcastStore interface {
	CreatePodcast(ctx context.Context, p *domain.Podcast) error
	GetPodcast(ctx context.Context, id string) (*domain.Podcast, error)
	SetStatus(ctx context.Context, id string, status domain.Status, message string) error
	SaveTranscript(ctx context.Context, id, transcript string, words []domain.TranscriptWord) error
}

// Archive keeps transcription results outside the podcast store.
type Archive interface {
	SaveTranscript(ctx context.Context, t *domain.PodcastTranscript) error
	GetTranscript(ctx context.Context, podcastID string) (*domain.PodcastTranscript, error)
	ExistingPodcastIDs(ctx context.Context) (map[string]bool, error)
}

// Indexer indexes a podcast and records failures on its status.
type Indexer interface {
	Process(ctx context.Context, userID, podcastID string) (int, error)
}

// Replicator restores archived transcripts into the podcast store.
type Replicator interface {
	Replicate(ctx context.Context, userID string) (*replication.Stats, error)
}

// Config wires the ingestion dependencies. Archive and Replicator are
// optional; without them transcripts are not archived and Backfill is
// unavailable.
type Config struct {
	Feed        EpisodeSource
	Transcriber transcription.Provider
	Store       PodcastStore
	Indexer     Indexer
	Archive     Archive
	Replicator  Replicator
	Workers     int
}

// Service runs ingestion with a fixed pool of workers.
type Service struct {
	feed        EpisodeSource
	transcriber transcription.Provider
	store       PodcastStore
	indexer     Indexer
	archive     Archive
	replicator  Replicator
	workers     int
}

// Report summarizes one ingestion or backfill run.
type Report struct {
	Total   int
	Indexed int
	Skipped int
	Failed  int
	Chunks  int
}

// NewService creates an ingestion service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("podcast store is required")
	}
	if cfg.Indexer == nil {
		return nil, fmt.Errorf("indexer is required")
	}
	s := &Service{
		feed:        cfg.Feed,
		transcriber: cfg.Transcriber,
		store:       cfg.Store,
		indexer:     cfg.Indexer,
		archive:     cfg.Archive,
		replicator:  cfg.Replicator,
		workers:     cfg.Workers,
	}
	if s.workers <= 0 {
		s.workers = defaultWorkers
	}
	return s, nil
}

// PodcastID returns the stable podcast ID for a user's feed episode, so
// re-running ingestion finds the podcast created last time.
func PodcastID(userID, episodeGUID string) string {
	return uuid.NewSHA1(episodeNamespace, []byte(userID+"\x00"+episodeGUID)).String()
}

type outcome int

const (
	outcomeIndexed outcome = iota
	outcomeSkipped
	outcomeFailed
)

// IngestFeed transcribes and indexes up to max episodes of feedURL for
// userID. Episodes already indexed are skipped; episodes that failed
// before are retried. Per-episode failures are logged and counted; an
// error is returned only when the feed cannot be read or every attempted
// episode failed.
func (s *Service) IngestFeed(ctx context.Context, userID, feedURL string, max int) (*Report, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if s.feed == nil || s.transcriber == nil {
		return nil, fmt.Errorf("feed ingestion needs a feed reader and a transcriber")
	}

	episodes, err := s.feed.Episodes(ctx, feedURL, max)
	if err != nil {
		return nil, err
	}
	logging.Info("Ingesting %d episodes from %s", len(episodes), feedURL)

	archived := s.archivedIDs(ctx)
	report := s.run(ctx, len(episodes), func(ctx context.Context, i int) (outcome, int) {
		ep := episodes[i]
		n, err := s.IngestEpisode(ctx, userID, ep, archived[PodcastID(userID, ep.GUID)])
		switch {
		case errors.Is(err, errAlreadyIndexed):
			return outcomeSkipped, 0
		case err != nil:
			logging.Error("Episode %q failed: %v", ep.Title, err)
			return outcomeFailed, 0
		}
		return outcomeIndexed, n
	})

	logging.Info("Ingestion finished: %d indexed, %d skipped, %d failed, %d chunks",
		report.Indexed, report.Skipped, report.Failed, report.Chunks)
	if report.Failed > 0 && report.Indexed == 0 && report.Skipped == 0 {
		return report, fmt.Errorf("all %d episodes failed", report.Failed)
	}
	return report, ctx.Err()
}

var errAlreadyIndexed = errors.New("episode already indexed")

// IngestEpisode moves one episode through uploading, transcribing and
// processing, then indexes it. When fromArchive is set the archived
// transcript is reused instead of transcribing again. It returns the
// number of chunks written.
func (s *Service) IngestEpisode(ctx context.Context, userID string, ep feed.Episode, fromArchive bool) (int, error) {
	if s.transcriber == nil {
		return 0, fmt.Errorf("no transcriber configured")
	}
	id := PodcastID(userID, ep.GUID)

	if err := s.prepare(ctx, userID, id, ep); err != nil {
		return 0, err
	}

	var (
		text  string
		words []domain.TranscriptWord
	)
	if fromArchive && s.archive != nil {
		t, err := s.archive.GetTranscript(ctx, id)
		if err == nil && strings.TrimSpace(t.Transcript) != "" {
			logging.Debug("Reusing archived transcript for %s", id)
			text, words = t.Transcript, t.Words
		}
	}
	if text == "" {
		res, err := s.transcriber.Submit(ctx, ep.Source())
		if err != nil {
			return 0, s.fail(ctx, id, err)
		}
		text, words = res.Text, res.Words
		s.archiveTranscript(ctx, userID, id, ep, res)
	}

	if err := s.store.SaveTranscript(ctx, id, text, words); err != nil {
		return 0, s.fail(ctx, id, err)
	}
	if err := s.store.SetStatus(ctx, id, domain.StatusProcessing, ""); err != nil {
		return 0, s.fail(ctx, id, err)
	}
	return s.indexer.Process(ctx, userID, id)
}

// prepare creates the podcast or resumes a failed one, leaving it in the
// transcribing status.
func (s *Service) prepare(ctx context.Context, userID, id string, ep feed.Episode) error {
	p, err := s.store.GetPodcast(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		p = &domain.Podcast{
			ID:       id,
			UserID:   userID,
			Title:    ep.Title,
			AudioURL: ep.Source(),
			Status:   domain.StatusUploading,
		}
		if err := s.store.CreatePodcast(ctx, p); err != nil {
			return err
		}
	case err != nil:
		return err
	case !p.OwnedBy(userID):
		return fmt.Errorf("%w: podcast %s", domain.ErrOwnership, id)
	case p.Status == domain.StatusReady:
		return errAlreadyIndexed
	case p.Status != domain.StatusError && p.Status != domain.StatusUploading:
		return fmt.Errorf("%w: podcast %s is %s", domain.ErrInvalidTransition, id, p.Status)
	}
	return s.store.SetStatus(ctx, id, domain.StatusTranscribing, "")
}

func (s *Service) archiveTranscript(ctx context.Context, userID, id string, ep feed.Episode, res *transcription.Result) {
	if s.archive == nil {
		return
	}
	err := s.archive.SaveTranscript(ctx, &domain.PodcastTranscript{
		PodcastID:     id,
		UserID:        userID,
		Title:         ep.Title,
		AudioURL:      ep.Source(),
		Transcript:    res.Text,
		Words:         res.Words,
		TranscribedAt: time.Now().UTC(),
	})
	if err != nil {
		logging.Warn("Archiving transcript for %s failed: %v", id, err)
	}
}

func (s *Service) archivedIDs(ctx context.Context) map[string]bool {
	if s.archive == nil {
		return nil
	}
	ids, err := s.archive.ExistingPodcastIDs(ctx)
	if err != nil {
		logging.Warn("Listing archived transcripts failed, transcribing everything: %v", err)
		return nil
	}
	return ids
}

// fail records err on the podcast status and returns it.
func (s *Service) fail(ctx context.Context, id string, err error) error {
	statusCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusRecordTimeout)
	defer cancel()
	if serr := s.store.SetStatus(statusCtx, id, domain.StatusError, err.Error()); serr != nil {
		logging.Warn("Could not record error status for podcast %s: %v", id, serr)
	}
	return err
}

// Backfill restores a user's archived transcripts into the podcast store
// and re-indexes each of them, in batches of 100 spread over the worker
// pool. Each podcast is indexed at most once per run.
func (s *Service) Backfill(ctx context.Context, userID string) (*Report, error) {
	if s.replicator == nil {
		return nil, fmt.Errorf("backfill needs a transcript archive")
	}
	stats, err := s.replicator.Replicate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("replicate archive: %w", err)
	}

	ids := dedupe(stats.PodcastIDs)
	report := &Report{Total: len(ids)}
	for start := 0; start < len(ids); start += defaultBackfillBatch {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		batch := ids[start:min(start+defaultBackfillBatch, len(ids))]
		logging.Info("Backfill batch [%d:%d] (%d podcasts)...", start, start+len(batch), len(batch))

		r := s.run(ctx, len(batch), func(ctx context.Context, i int) (outcome, int) {
			n, err := s.indexer.Process(ctx, userID, batch[i])
			if err != nil {
				logging.Error("Backfill of podcast %s failed: %v", batch[i], err)
				return outcomeFailed, 0
			}
			return outcomeIndexed, n
		})
		report.Indexed += r.Indexed
		report.Failed += r.Failed
		report.Chunks += r.Chunks
	}

	logging.Info("Backfill finished: %d indexed, %d failed, %d chunks", report.Indexed, report.Failed, report.Chunks)
	if report.Failed > 0 && report.Indexed == 0 {
		return report, fmt.Errorf("all %d podcasts failed to index", report.Failed)
	}
	return report, nil
}

// run feeds indexes [0,n) to the worker pool and tallies the outcomes.
// A cancelled ctx stops dispatching; in-flight work finishes.
func (s *Service) run(ctx context.Context, n int, work func(ctx context.Context, i int) (outcome, int)) *Report {
	var indexed, skipped, failed, chunks atomic.Int64

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(s.workers, max(n, 1)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				o, c := work(ctx, i)
				switch o {
				case outcomeIndexed:
					indexed.Add(1)
				case outcomeSkipped:
					skipped.Add(1)
				case outcomeFailed:
					failed.Add(1)
				}
				chunks.Add(int64(c))
			}
		}()
	}

dispatch:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return &Report{
		Total:   n,
		Indexed: int(indexed.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
		Chunks:  int(chunks.Load()),
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
