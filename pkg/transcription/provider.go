// Package transcription turns an episode's audio or web page into
// transcript text, with word timings when the source provides them.
package transcription

import (
	"context"
	"fmt"
	"net/url"

	"podcast-brain/pkg/domain"
)

// Result is a finished transcript. Words is empty when the source has no
// timing information.
type Result struct {
	Text  string
	Words []domain.TranscriptWord
}

// Provider produces a transcript for a source URL. All failures wrap
// domain.ErrTranscription.
type Provider interface {
	Submit(ctx context.Context, sourceURL string) (*Result, error)
}

func failed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrTranscription, fmt.Sprintf(format, args...))
}

func wrapFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrTranscription, err)
}

// parseSourceURL accepts absolute http(s) URLs only.
func parseSourceURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %w: invalid source url %q", domain.ErrTranscription, domain.ErrValidation, raw)
	}
	return u, nil
}
