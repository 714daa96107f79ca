package domain

// Vector is an embedding: a fixed-length, model-defined sequence of floats.
// An empty Vector is the placeholder produced for empty input text.
type Vector []float32

// TranscriptWord is a single spoken word with its timing in seconds, as
// returned by the transcription provider.
type TranscriptWord struct {
	Text  string  `bson:"text" json:"text"`
	Start float64 `bson:"start" json:"start"`
	End   float64 `bson:"end" json:"end"`
}

// Chunk is the atomic retrievable unit of a podcast transcript.
//
// ChunkIndex values are contiguous from 0 within one podcast. StartTime and
// EndTime are nil when no word-level timing could be matched.
type Chunk struct {
	ID         string   `json:"id"`
	PodcastID  string   `json:"podcast_id"`
	Content    string   `json:"content"`
	StartTime  *float64 `json:"start_time"`
	EndTime    *float64 `json:"end_time"`
	ChunkIndex int      `json:"chunk_index"`
	Embedding  Vector   `json:"embedding,omitempty"`
}

// FallbackSimilarity is the constant similarity reported by the degraded
// search path. It carries no ranking information.
const FallbackSimilarity = 0.8

// SearchResult is a single retrieved chunk.
type SearchResult struct {
	ChunkID      string   `json:"chunk_id"`
	PodcastID    string   `json:"podcast_id"`
	PodcastTitle string   `json:"podcast_title"`
	Content      string   `json:"content"`
	StartTime    *float64 `json:"start_time"`
	EndTime      *float64 `json:"end_time"`
	Similarity   float64  `json:"similarity"`

	// Degraded is set when the result came from the fallback path and
	// Similarity is the FallbackSimilarity placeholder.
	Degraded bool `json:"degraded,omitempty"`
}
