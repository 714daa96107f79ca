package domain

import "time"

// Podcast is the owning record of a chunk set. Only the fields the RAG core
// reads or writes are modelled here.
type Podcast struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	Title        string           `json:"title"`
	AudioURL     string           `json:"audio_url,omitempty"`
	Status       Status           `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Transcript   *string          `json:"transcript,omitempty"`
	Words        []TranscriptWord `json:"words,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// OwnedBy reports whether userID owns the podcast.
func (p *Podcast) OwnedBy(userID string) bool {
	return p != nil && userID != "" && p.UserID == userID
}
