package domain

import (
	"errors"
	"fmt"
)

// Errors returned by the RAG core. Callers translate them into user-facing
// status; wrap with fmt.Errorf("...: %w") and match with errors.Is.
var (
	// ErrValidation indicates empty or malformed input, rejected before any external call.
	ErrValidation = errors.New("validation failed")

	// ErrOwnership indicates the caller does not own the podcast.
	ErrOwnership = errors.New("podcast not owned by caller")

	// ErrNotFound indicates a requested podcast or transcript does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNothingToIndex indicates a podcast has no transcript.
	ErrNothingToIndex = errors.New("nothing to index")

	// ErrRateLimited indicates the provider rejected a call for rate limiting.
	// It is retryable.
	ErrRateLimited = errors.New("rate limited")

	// ErrProvider indicates a non-retryable external provider failure.
	ErrProvider = errors.New("provider error")

	// ErrPersistence indicates a chunk store read or write failed.
	ErrPersistence = errors.New("persistence error")

	// ErrIndexing indicates a reindex run aborted part way.
	ErrIndexing = errors.New("indexing failed")

	// ErrDeadline indicates the caller's deadline was reached mid-operation.
	ErrDeadline = errors.New("operation deadline exceeded")

	// ErrInvalidTransition indicates an illegal processing status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTranscription indicates the transcription provider failed.
	ErrTranscription = errors.New("transcription failed")
)

// RetryableError is returned once internal retries are exhausted. An upstream
// caller may re-trigger the whole operation.
type RetryableError struct {
	Attempts int
	Err      error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err may succeed if the operation is re-run.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *RetryableError
	if errors.As(err, &re) {
		return true
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrDeadline)
}
