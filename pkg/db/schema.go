package db

import "fmt"

// schemaDDL creates the podcast and chunk tables, the vector extension and
// the nearest-neighbour function. The embedding column width is fixed at
// creation time.
//
// match_podcast_chunks joins through podcasts so only the filtering user's
// chunks are ever ranked.
func schemaDDL(dimensions int) string {
	if dimensions <= 0 {
		dimensions = defaultVectorWidth
	}
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS podcasts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  audio_url TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'uploading',
  error_message TEXT NOT NULL DEFAULT '',
  transcript TEXT,
  words JSONB,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS podcasts_user_id_idx ON podcasts (user_id);

CREATE TABLE IF NOT EXISTS podcast_chunks (
  id TEXT PRIMARY KEY,
  podcast_id TEXT NOT NULL REFERENCES podcasts (id) ON DELETE CASCADE,
  content TEXT NOT NULL,
  start_time DOUBLE PRECISION,
  end_time DOUBLE PRECISION,
  chunk_index INTEGER NOT NULL,
  embedding vector(%[1]d) NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (podcast_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS podcast_chunks_podcast_id_idx ON podcast_chunks (podcast_id);

CREATE OR REPLACE FUNCTION match_podcast_chunks(
  query_embedding vector(%[1]d),
  match_threshold DOUBLE PRECISION,
  match_count INTEGER,
  filter_user_id TEXT,
  filter_podcast_id TEXT DEFAULT NULL
)
RETURNS TABLE (
  id TEXT,
  podcast_id TEXT,
  podcast_title TEXT,
  content TEXT,
  start_time DOUBLE PRECISION,
  end_time DOUBLE PRECISION,
  similarity DOUBLE PRECISION
)
LANGUAGE sql STABLE
AS $$
  SELECT c.id, c.podcast_id, p.title, c.content, c.start_time, c.end_time,
         1 - (c.embedding <=> query_embedding) AS similarity
  FROM podcast_chunks c
  JOIN podcasts p ON p.id = c.podcast_id
  WHERE p.user_id = filter_user_id
    AND (filter_podcast_id IS NULL OR c.podcast_id = filter_podcast_id)
    AND 1 - (c.embedding <=> query_embedding) > match_threshold
  ORDER BY c.embedding <=> query_embedding
  LIMIT match_count;
$$;`, dimensions)
}
