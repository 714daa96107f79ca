package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"podcast-brain/pkg/domain"
	"podcast-brain/pkg/embedding"
)

// MemoryStore is an in-process podcast and chunk store. It ranks with
// cosine similarity in Go and is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	podcasts map[string]*domain.Podcast
	chunks   map[string][]storedChunk
	seq      int64
}

type storedChunk struct {
	chunk domain.Chunk
	seq   int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		podcasts: make(map[string]*domain.Podcast),
		chunks:   make(map[string][]storedChunk),
	}
}

func clonePodcast(p *domain.Podcast) *domain.Podcast {
	c := *p
	if p.Transcript != nil {
		t := *p.Transcript
		c.Transcript = &t
	}
	c.Words = append([]domain.TranscriptWord(nil), p.Words...)
	return &c
}

// CreatePodcast stores a copy of p. An empty ID is filled in.
func (m *MemoryStore) CreatePodcast(_ context.Context, p *domain.Podcast) error {
	if p.UserID == "" {
		return fmt.Errorf("%w: podcast has no owner", domain.ErrValidation)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = domain.StatusUploading
	}
	p.UpdatedAt = time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.podcasts[p.ID]; ok {
		return persistErr("insert podcast", fmt.Errorf("duplicate id %s", p.ID))
	}
	m.podcasts[p.ID] = clonePodcast(p)
	return nil
}

// GetPodcast returns a copy of the stored podcast.
func (m *MemoryStore) GetPodcast(_ context.Context, id string) (*domain.Podcast, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.podcasts[id]
	if !ok {
		return nil, fmt.Errorf("podcast %s: %w", id, domain.ErrNotFound)
	}
	return clonePodcast(p), nil
}

// ListPodcasts returns the user's podcasts, most recently updated first.
func (m *MemoryStore) ListPodcasts(_ context.Context, userID string) ([]domain.Podcast, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Podcast
	for _, p := range m.podcasts {
		if p.UserID == userID {
			c := clonePodcast(p)
			c.Transcript, c.Words = nil, nil
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// SetStatus validates and applies a status transition.
func (m *MemoryStore) SetStatus(_ context.Context, id string, status domain.Status, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.podcasts[id]
	if !ok {
		return fmt.Errorf("podcast %s: %w", id, domain.ErrNotFound)
	}
	if err := p.Status.Transition(status); err != nil {
		return err
	}
	p.Status = status
	p.ErrorMessage = message
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// SaveTranscript stores transcript text and word timings on a podcast.
func (m *MemoryStore) SaveTranscript(_ context.Context, id, transcript string, words []domain.TranscriptWord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.podcasts[id]
	if !ok {
		return fmt.Errorf("podcast %s: %w", id, domain.ErrNotFound)
	}
	p.Transcript = &transcript
	p.Words = append([]domain.TranscriptWord(nil), words...)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteChunksByPodcast removes a podcast's chunk set.
func (m *MemoryStore) DeleteChunksByPodcast(_ context.Context, podcastID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, podcastID)
	return nil
}

// InsertChunks appends chunks. A duplicate chunk index for a podcast is
// rejected, as the unique constraint in Postgres would.
func (m *MemoryStore) InsertChunks(_ context.Context, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	type key struct {
		podcast string
		index   int
	}
	seen := make(map[key]bool)
	loaded := make(map[string]bool)
	for _, c := range chunks {
		if _, ok := m.podcasts[c.PodcastID]; !ok {
			return persistErr("insert chunk", fmt.Errorf("unknown podcast %s", c.PodcastID))
		}
		if !loaded[c.PodcastID] {
			for _, existing := range m.chunks[c.PodcastID] {
				seen[key{c.PodcastID, existing.chunk.ChunkIndex}] = true
			}
			loaded[c.PodcastID] = true
		}
		k := key{c.PodcastID, c.ChunkIndex}
		if seen[k] {
			return persistErr("insert chunk", fmt.Errorf("duplicate chunk index %d for %s", c.ChunkIndex, c.PodcastID))
		}
		seen[k] = true
	}

	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.Embedding = append(domain.Vector(nil), c.Embedding...)
		m.seq++
		m.chunks[c.PodcastID] = append(m.chunks[c.PodcastID], storedChunk{chunk: c, seq: m.seq})
	}
	return nil
}

// Chunks returns a podcast's chunks ordered by chunk index.
func (m *MemoryStore) Chunks(podcastID string) []domain.Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Chunk, 0, len(m.chunks[podcastID]))
	for _, s := range m.chunks[podcastID] {
		out = append(out, s.chunk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out
}

// CountChunks returns the number of chunks stored for a podcast.
func (m *MemoryStore) CountChunks(_ context.Context, podcastID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks[podcastID]), nil
}

func (m *MemoryStore) ownedChunks(userID, podcastID string) []storedChunk {
	var out []storedChunk
	for id, p := range m.podcasts {
		if p.UserID != userID || (podcastID != "" && id != podcastID) {
			continue
		}
		out = append(out, m.chunks[id]...)
	}
	return out
}

// MatchChunks ranks the user's chunks by cosine similarity above the
// threshold, best first.
func (m *MemoryStore) MatchChunks(_ context.Context, p MatchParams) ([]domain.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.SearchResult
	for _, s := range m.ownedChunks(p.UserID, p.PodcastID) {
		sim := embedding.CosineSimilarity(p.Query, s.chunk.Embedding)
		if sim <= p.Threshold {
			continue
		}
		out = append(out, m.result(s.chunk, sim))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

// ListUserChunks returns the user's chunks without ranking, most recently
// inserted podcasts first.
func (m *MemoryStore) ListUserChunks(_ context.Context, userID, podcastID string, limit int) ([]domain.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owned := m.ownedChunks(userID, podcastID)
	sort.Slice(owned, func(i, j int) bool { return owned[i].seq > owned[j].seq })

	out := make([]domain.SearchResult, 0, len(owned))
	for _, s := range owned {
		out = append(out, m.result(s.chunk, 0))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) result(c domain.Chunk, similarity float64) domain.SearchResult {
	title := ""
	if p, ok := m.podcasts[c.PodcastID]; ok {
		title = p.Title
	}
	return domain.SearchResult{
		ChunkID:      c.ID,
		PodcastID:    c.PodcastID,
		PodcastTitle: title,
		Content:      c.Content,
		StartTime:    c.StartTime,
		EndTime:      c.EndTime,
		Similarity:   similarity,
	}
}

// MemoryArchive is an in-process transcript archive.
type MemoryArchive struct {
	mu          sync.RWMutex
	transcripts map[string]domain.PodcastTranscript
}

// NewMemoryArchive creates an empty archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{transcripts: make(map[string]domain.PodcastTranscript)}
}

// SaveTranscript upserts a transcript keyed by podcast ID.
func (a *MemoryArchive) SaveTranscript(_ context.Context, t *domain.PodcastTranscript) error {
	if t.PodcastID == "" {
		return fmt.Errorf("%w: transcript has no podcast id", domain.ErrValidation)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transcripts[t.PodcastID] = *t
	return nil
}

// GetTranscript returns the archived transcript for podcastID.
func (a *MemoryArchive) GetTranscript(_ context.Context, podcastID string) (*domain.PodcastTranscript, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.transcripts[podcastID]
	if !ok {
		return nil, fmt.Errorf("transcript %s: %w", podcastID, domain.ErrNotFound)
	}
	return &t, nil
}

// ListTranscripts returns transcripts owned by userID, or all when empty,
// oldest first.
func (a *MemoryArchive) ListTranscripts(_ context.Context, userID string) ([]domain.PodcastTranscript, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []domain.PodcastTranscript
	for _, t := range a.transcripts {
		if userID == "" || t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TranscribedAt.Equal(out[j].TranscribedAt) {
			return out[i].PodcastID < out[j].PodcastID
		}
		return out[i].TranscribedAt.Before(out[j].TranscribedAt)
	})
	return out, nil
}

// ExistingPodcastIDs returns the set of archived podcast IDs.
func (a *MemoryArchive) ExistingPodcastIDs(_ context.Context) (map[string]bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make(map[string]bool, len(a.transcripts))
	for id := range a.transcripts {
		ids[id] = true
	}
	return ids, nil
}
