package domain

import "fmt"

// Status is a podcast's processing status.
type Status string

const (
	StatusUploading    Status = "uploading"
	StatusTranscribing Status = "transcribing"
	StatusProcessing   Status = "processing"
	StatusReady        Status = "ready"
	StatusError        Status = "error"
)

// transitions lists the legal targets for each status. Moving to
// StatusError is legal from anywhere and is handled in CanTransition.
var transitions = map[Status][]Status{
	StatusUploading:    {StatusTranscribing},
	StatusTranscribing: {StatusProcessing},
	StatusProcessing:   {StatusReady},
	StatusReady:        {StatusProcessing},
	StatusError:        {StatusUploading, StatusTranscribing, StatusProcessing},
}

// ParseStatus converts a stored status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusUploading, StatusTranscribing, StatusProcessing, StatusReady, StatusError:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
}

// CanTransition reports whether moving from s to next is allowed.
// Staying in the same status is allowed.
func (s Status) CanTransition(next Status) bool {
	if next == StatusError || s == next {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates the move from s to next.
func (s Status) Transition(next Status) error {
	if !s.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return nil
}

// Indexable reports whether the index writer may run in this status.
func (s Status) Indexable() bool {
	return s == StatusProcessing || s == StatusReady
}
