package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/supabase-community/postgrest-go"
	supabase "github.com/supabase-community/supabase-go"

	"podcast-brain/pkg/domain"
)

// SupabaseStore keeps podcasts and chunks through the Supabase REST API,
// for deployments without a direct database connection. The schema and the
// match_podcast_chunks function must already exist (see EnsureSchema on
// PostgresStore).
//
// The PostgREST client takes no context; ctx is only checked before each
// request.
type SupabaseStore struct {
	sdk *supabase.Client
}

// NewSupabaseStore creates a store over a connected SupabaseClient.
func NewSupabaseStore(client *SupabaseClient) (*SupabaseStore, error) {
	if client == nil || client.SDK() == nil {
		return nil, fmt.Errorf("supabase SDK client is required (set supabase url and key)")
	}
	return &SupabaseStore{sdk: client.SDK()}, nil
}

type podcastRow struct {
	ID           string                  `json:"id"`
	UserID       string                  `json:"user_id"`
	Title        string                  `json:"title"`
	AudioURL     string                  `json:"audio_url"`
	Status       string                  `json:"status"`
	ErrorMessage string                  `json:"error_message"`
	Transcript   *string                 `json:"transcript,omitempty"`
	Words        []domain.TranscriptWord `json:"words,omitempty"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

func (r podcastRow) toDomain() domain.Podcast {
	return domain.Podcast{
		ID:           r.ID,
		UserID:       r.UserID,
		Title:        r.Title,
		AudioURL:     r.AudioURL,
		Status:       domain.Status(r.Status),
		ErrorMessage: r.ErrorMessage,
		Transcript:   r.Transcript,
		Words:        r.Words,
		UpdatedAt:    r.UpdatedAt,
	}
}

type chunkInsertRow struct {
	ID         string          `json:"id"`
	PodcastID  string          `json:"podcast_id"`
	Content    string          `json:"content"`
	StartTime  *float64        `json:"start_time"`
	EndTime    *float64        `json:"end_time"`
	ChunkIndex int             `json:"chunk_index"`
	Embedding  pgvector.Vector `json:"embedding"`
}

type chunkSelectRow struct {
	ID        string   `json:"id"`
	PodcastID string   `json:"podcast_id"`
	Content   string   `json:"content"`
	StartTime *float64 `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
	Podcast   struct {
		Title string `json:"title"`
	} `json:"podcasts"`
}

type matchRow struct {
	ID           string   `json:"id"`
	PodcastID    string   `json:"podcast_id"`
	PodcastTitle string   `json:"podcast_title"`
	Content      string   `json:"content"`
	StartTime    *float64 `json:"start_time"`
	EndTime      *float64 `json:"end_time"`
	Similarity   float64  `json:"similarity"`
}

const podcastColumns = "id,user_id,title,audio_url,status,error_message,transcript,words,updated_at"

// CreatePodcast inserts a podcast record. An empty ID is filled in.
func (s *SupabaseStore) CreatePodcast(ctx context.Context, p *domain.Podcast) error {
	if err := ctx.Err(); err != nil {
		return err
	}
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

	row := podcastRow{
		ID: p.ID, UserID: p.UserID, Title: p.Title, AudioURL: p.AudioURL,
		Status: string(p.Status), ErrorMessage: p.ErrorMessage,
		Transcript: p.Transcript, Words: p.Words, UpdatedAt: p.UpdatedAt,
	}
	if _, _, err := s.sdk.From(podcastsTable).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return persistErr(fmt.Sprintf("insert podcast %s", p.ID), err)
	}
	return nil
}

// GetPodcast loads a podcast, including its transcript.
func (s *SupabaseStore) GetPodcast(ctx context.Context, id string) (*domain.Podcast, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []podcastRow
	if _, err := s.sdk.From(podcastsTable).Select(podcastColumns, "", false).Eq("id", id).Limit(1, "").ExecuteTo(&rows); err != nil {
		return nil, persistErr("get podcast", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("podcast %s: %w", id, domain.ErrNotFound)
	}
	p := rows[0].toDomain()
	return &p, nil
}

// ListPodcasts returns the user's podcasts without transcripts, most
// recently updated first.
func (s *SupabaseStore) ListPodcasts(ctx context.Context, userID string) ([]domain.Podcast, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []podcastRow
	_, err := s.sdk.From(podcastsTable).
		Select("id,user_id,title,audio_url,status,error_message,updated_at", "", false).
		Eq("user_id", userID).
		Order("updated_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, persistErr("list podcasts", err)
	}

	out := make([]domain.Podcast, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// SetStatus moves a podcast to status after validating the transition.
// The read and the write are separate requests, so concurrent writers are
// not serialized here.
func (s *SupabaseStore) SetStatus(ctx context.Context, id string, status domain.Status, message string) error {
	p, err := s.GetPodcast(ctx, id)
	if err != nil {
		return err
	}
	if err := p.Status.Transition(status); err != nil {
		return err
	}

	update := map[string]any{
		"status":        string(status),
		"error_message": message,
		"updated_at":    time.Now().UTC(),
	}
	if _, _, err := s.sdk.From(podcastsTable).Update(update, "minimal", "").Eq("id", id).Execute(); err != nil {
		return persistErr("update status", err)
	}
	return nil
}

// SaveTranscript stores transcript text and word timings on a podcast.
func (s *SupabaseStore) SaveTranscript(ctx context.Context, id, transcript string, words []domain.TranscriptWord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	update := map[string]any{
		"transcript": transcript,
		"words":      words,
		"updated_at": time.Now().UTC(),
	}
	var rows []podcastRow
	if _, err := s.sdk.From(podcastsTable).Update(update, "representation", "").Eq("id", id).ExecuteTo(&rows); err != nil {
		return persistErr("save transcript", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("podcast %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteChunksByPodcast removes a podcast's whole chunk set.
func (s *SupabaseStore) DeleteChunksByPodcast(ctx context.Context, podcastID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := s.sdk.From(chunksTable).Delete("minimal", "").Eq("podcast_id", podcastID).Execute(); err != nil {
		return persistErr(fmt.Sprintf("delete chunks of %s", podcastID), err)
	}
	return nil
}

// CountChunks returns the number of chunks stored for a podcast, using an
// exact count from a HEAD request.
func (s *SupabaseStore) CountChunks(ctx context.Context, podcastID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	_, count, err := s.sdk.From(chunksTable).Select("id", "exact", true).Eq("podcast_id", podcastID).Execute()
	if err != nil {
		return 0, persistErr("count chunks", err)
	}
	return int(count), nil
}

// InsertChunks inserts a batch of chunk rows in one request.
func (s *SupabaseStore) InsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rows := make([]chunkInsertRow, len(chunks))
	for i, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		rows[i] = chunkInsertRow{
			ID:         id,
			PodcastID:  c.PodcastID,
			Content:    c.Content,
			StartTime:  c.StartTime,
			EndTime:    c.EndTime,
			ChunkIndex: c.ChunkIndex,
			Embedding:  pgvector.NewVector(c.Embedding),
		}
	}

	if _, _, err := s.sdk.From(chunksTable).Insert(rows, false, "", "minimal", "").Execute(); err != nil {
		return persistErr(fmt.Sprintf("insert %d chunks", len(rows)), err)
	}
	return nil
}

// MatchChunks calls the match_podcast_chunks function over RPC.
func (s *SupabaseStore) MatchChunks(ctx context.Context, p MatchParams) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body := map[string]any{
		"query_embedding":   pgvector.NewVector(p.Query),
		"match_threshold":   p.Threshold,
		"match_count":       p.Limit,
		"filter_user_id":    p.UserID,
		"filter_podcast_id": optional(p.PodcastID),
	}
	raw := s.sdk.Rpc(matchChunksFunc, "", body)

	rows, err := decodeRPC(raw)
	if err != nil {
		return nil, persistErr("match chunks", err)
	}

	out := make([]domain.SearchResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.SearchResult{
			ChunkID:      r.ID,
			PodcastID:    r.PodcastID,
			PodcastTitle: r.PodcastTitle,
			Content:      r.Content,
			StartTime:    r.StartTime,
			EndTime:      r.EndTime,
			Similarity:   r.Similarity,
		})
	}
	return out, nil
}

// decodeRPC parses an RPC response. The client returns an empty string when
// the request itself failed and a JSON error object when PostgREST rejected it.
func decodeRPC(raw string) ([]matchRow, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty rpc response")
	}
	if !strings.HasPrefix(raw, "[") {
		var e postgrest.ExecuteError
		if err := json.Unmarshal([]byte(raw), &e); err == nil && e.Message != "" {
			return nil, fmt.Errorf("(%s) %s", e.Code, e.Message)
		}
		return nil, fmt.Errorf("unexpected rpc response: %.200s", raw)
	}

	var rows []matchRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	return rows, nil
}

// ListUserChunks reads chunks of the user's podcasts without ranking. The
// inner join on podcasts applies the owner filter server-side.
func (s *SupabaseStore) ListUserChunks(ctx context.Context, userID, podcastID string, limit int) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := s.sdk.From(chunksTable).
		Select("id,podcast_id,content,start_time,end_time,chunk_index,podcasts!inner(title,user_id)", "", false).
		Eq("podcasts.user_id", userID)
	if podcastID != "" {
		q = q.Eq("podcast_id", podcastID)
	}

	var rows []chunkSelectRow
	_, err := q.Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Order("chunk_index", &postgrest.OrderOpts{Ascending: true}).
		Limit(limit, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, persistErr("list user chunks", err)
	}

	out := make([]domain.SearchResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.SearchResult{
			ChunkID:      r.ID,
			PodcastID:    r.PodcastID,
			PodcastTitle: r.Podcast.Title,
			Content:      r.Content,
			StartTime:    r.StartTime,
			EndTime:      r.EndTime,
		})
	}
	return out, nil
}
