package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"podcast-brain/pkg/domain"
)

// PostgresStore keeps podcasts and their chunk vectors in Postgres with the
// pgvector extension. It works over any DBProvider, so a direct Supabase
// database connection can back it too.
type PostgresStore struct {
	pg         DBProvider
	dimensions int
}

// NewPostgresStore creates a store. dimensions sizes the embedding column
// created by EnsureSchema.
func NewPostgresStore(pg DBProvider, dimensions int) (*PostgresStore, error) {
	if pg == nil {
		return nil, fmt.Errorf("postgres client is required")
	}
	if dimensions <= 0 {
		dimensions = defaultVectorWidth
	}
	return &PostgresStore{pg: pg, dimensions: dimensions}, nil
}

func (s *PostgresStore) db() (*sql.DB, error) {
	if s.pg.DB() == nil {
		return nil, fmt.Errorf("%w: postgres DB not connected", domain.ErrPersistence)
	}
	return s.pg.DB(), nil
}

// EnsureSchema creates the tables and the match function if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, schemaDDL(s.dimensions)); err != nil {
		return persistErr("create schema", err)
	}
	return nil
}

// CreatePodcast inserts a podcast record. An empty ID is filled in.
func (s *PostgresStore) CreatePodcast(ctx context.Context, p *domain.Podcast) error {
	db, err := s.db()
	if err != nil {
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

	words, err := encodeWords(p.Words)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO podcasts (id, user_id, title, audio_url, status, error_message, transcript, words, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := db.ExecContext(ctx, q, p.ID, p.UserID, p.Title, p.AudioURL, string(p.Status),
		p.ErrorMessage, nullString(p.Transcript), words, p.UpdatedAt); err != nil {
		return persistErr(fmt.Sprintf("insert podcast %s", p.ID), err)
	}
	return nil
}

// GetPodcast loads a podcast, including its transcript.
func (s *PostgresStore) GetPodcast(ctx context.Context, id string) (*domain.Podcast, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	const q = `
SELECT id, user_id, title, audio_url, status, error_message, transcript, words, updated_at
FROM podcasts WHERE id = $1`
	p, err := scanPodcast(db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("podcast %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("get podcast", err)
	}
	return p, nil
}

// ListPodcasts returns the user's podcasts without transcripts, most
// recently updated first.
func (s *PostgresStore) ListPodcasts(ctx context.Context, userID string) ([]domain.Podcast, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	const q = `
SELECT id, user_id, title, audio_url, status, error_message, NULL, NULL, updated_at
FROM podcasts WHERE user_id = $1
ORDER BY updated_at DESC`
	rows, err := db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, persistErr("list podcasts", err)
	}
	defer rows.Close()

	var out []domain.Podcast
	for rows.Next() {
		p, err := scanPodcast(rows)
		if err != nil {
			return nil, persistErr("scan podcast", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("rows", err)
	}
	return out, nil
}

// SetStatus moves a podcast to status, validating the transition against
// the stored status inside one transaction.
func (s *PostgresStore) SetStatus(ctx context.Context, id string, status domain.Status, message string) error {
	db, err := s.db()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return persistErr("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM podcasts WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("podcast %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return persistErr("read status", err)
	}

	from, err := domain.ParseStatus(current)
	if err != nil {
		return err
	}
	if err := from.Transition(status); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE podcasts SET status = $2, error_message = $3, updated_at = now() WHERE id = $1`,
		id, string(status), message); err != nil {
		return persistErr("update status", err)
	}

	if err := tx.Commit(); err != nil {
		return persistErr("commit", err)
	}
	return nil
}

// SaveTranscript stores transcript text and word timings on a podcast.
func (s *PostgresStore) SaveTranscript(ctx context.Context, id, transcript string, words []domain.TranscriptWord) error {
	db, err := s.db()
	if err != nil {
		return err
	}

	encoded, err := encodeWords(words)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx,
		`UPDATE podcasts SET transcript = $2, words = $3, updated_at = now() WHERE id = $1`,
		id, transcript, encoded)
	if err != nil {
		return persistErr("save transcript", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("podcast %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteChunksByPodcast removes a podcast's whole chunk set. Deleting an
// empty set is not an error.
func (s *PostgresStore) DeleteChunksByPodcast(ctx context.Context, podcastID string) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM podcast_chunks WHERE podcast_id = $1`, podcastID); err != nil {
		return persistErr(fmt.Sprintf("delete chunks of %s", podcastID), err)
	}
	return nil
}

// InsertChunks inserts a batch of chunk rows within a transaction.
func (s *PostgresStore) InsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	db, err := s.db()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return persistErr("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.executeBatchInsert(ctx, tx, chunks); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return persistErr("commit", err)
	}
	return nil
}

// executeBatchInsert executes the insert statements for a batch of chunks.
func (s *PostgresStore) executeBatchInsert(ctx context.Context, tx *sql.Tx, chunks []domain.Chunk) error {
	const insertQuery = `
INSERT INTO podcast_chunks (id, podcast_id, content, start_time, end_time, chunk_index, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return persistErr("prepare insert", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, id, c.PodcastID, c.Content, nullFloat(c.StartTime),
			nullFloat(c.EndTime), c.ChunkIndex, pgvector.NewVector(c.Embedding)); err != nil {
			return persistErr(fmt.Sprintf("insert chunk %s#%d", c.PodcastID, c.ChunkIndex), err)
		}
	}
	return nil
}

// MatchChunks ranks the user's chunks against the query vector with the
// match_podcast_chunks function.
func (s *PostgresStore) MatchChunks(ctx context.Context, p MatchParams) ([]domain.SearchResult, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	const q = `
SELECT id, podcast_id, podcast_title, content, start_time, end_time, similarity
FROM match_podcast_chunks($1, $2, $3, $4, $5)`
	rows, err := db.QueryContext(ctx, q, pgvector.NewVector(p.Query), p.Threshold, p.Limit,
		p.UserID, nullString(optional(p.PodcastID)))
	if err != nil {
		return nil, persistErr("match chunks", err)
	}
	defer rows.Close()

	var out []domain.SearchResult
	for rows.Next() {
		var (
			r          domain.SearchResult
			start, end sql.NullFloat64
		)
		if err := rows.Scan(&r.ChunkID, &r.PodcastID, &r.PodcastTitle, &r.Content, &start, &end, &r.Similarity); err != nil {
			return nil, persistErr("scan match", err)
		}
		r.StartTime, r.EndTime = floatPtr(start), floatPtr(end)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("rows", err)
	}
	return out, nil
}

// ListUserChunks reads chunks of the user's podcasts without ranking,
// newest podcasts first.
func (s *PostgresStore) ListUserChunks(ctx context.Context, userID, podcastID string, limit int) ([]domain.SearchResult, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	const q = `
SELECT c.id, c.podcast_id, p.title, c.content, c.start_time, c.end_time
FROM podcast_chunks c
JOIN podcasts p ON p.id = c.podcast_id
WHERE p.user_id = $1 AND ($2::text IS NULL OR c.podcast_id = $2)
ORDER BY c.created_at DESC, c.chunk_index ASC
LIMIT $3`
	rows, err := db.QueryContext(ctx, q, userID, nullString(optional(podcastID)), limit)
	if err != nil {
		return nil, persistErr("list user chunks", err)
	}
	defer rows.Close()

	var out []domain.SearchResult
	for rows.Next() {
		var (
			r          domain.SearchResult
			start, end sql.NullFloat64
		)
		if err := rows.Scan(&r.ChunkID, &r.PodcastID, &r.PodcastTitle, &r.Content, &start, &end); err != nil {
			return nil, persistErr("scan chunk", err)
		}
		r.StartTime, r.EndTime = floatPtr(start), floatPtr(end)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("rows", err)
	}
	return out, nil
}

// CountChunks returns the number of chunks stored for a podcast.
func (s *PostgresStore) CountChunks(ctx context.Context, podcastID string) (int, error) {
	db, err := s.db()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM podcast_chunks WHERE podcast_id = $1`, podcastID).Scan(&n); err != nil {
		return 0, persistErr("count chunks", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPodcast(row rowScanner) (*domain.Podcast, error) {
	var (
		p          domain.Podcast
		status     string
		transcript sql.NullString
		words      []byte
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.AudioURL, &status, &p.ErrorMessage,
		&transcript, &words, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = domain.Status(status)
	if transcript.Valid {
		t := transcript.String
		p.Transcript = &t
	}
	if len(words) > 0 {
		if err := json.Unmarshal(words, &p.Words); err != nil {
			return nil, fmt.Errorf("decode words: %w", err)
		}
	}
	return &p, nil
}

func encodeWords(words []domain.TranscriptWord) (any, error) {
	if len(words) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(words)
	if err != nil {
		return nil, fmt.Errorf("encode words: %w", err)
	}
	return string(b), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
