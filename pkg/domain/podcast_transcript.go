package domain

import "time"

// PodcastTranscript is an archived transcription result for one podcast.
//
// It is kept separately from the chunk store so a podcast can be re-indexed
// without calling the transcription provider again.
type PodcastTranscript struct {
	// PodcastID is the podcast this transcript belongs to.
	PodcastID string `bson:"podcast_id" json:"podcast_id"`

	// UserID owns the podcast.
	UserID string `bson:"user_id" json:"user_id"`

	// Title is the episode title, when available.
	Title string `bson:"title" json:"title"`

	// AudioURL is the audio (or episode page) URL that was transcribed.
	AudioURL string `bson:"audio_url,omitempty" json:"audio_url,omitempty"`

	// Transcript is the transcript plain text.
	Transcript string `bson:"transcript" json:"transcript"`

	// Words holds word-level timings, when the provider returned them.
	Words []TranscriptWord `bson:"words,omitempty" json:"words,omitempty"`

	// TranscribedAt is when the transcript was produced.
	TranscribedAt time.Time `bson:"transcribed_at" json:"transcribed_at"`
}
