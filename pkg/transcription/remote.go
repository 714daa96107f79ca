package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"podcast-brain/pkg/domain"
	"podcast-brain/pkg/logging"
	"podcast-brain/pkg/retry"
)

const (
	defaultRemoteBaseURL  = "https://api.assemblyai.com/v2"
	defaultPollInterval   = 3 * time.Second
	defaultRemoteTimeout  = 15 * time.Minute
	defaultRequestTimeout = 30 * time.Second
	statusCompleted       = "completed"
	statusError           = "error"
	millisecondsPerSecond = 1000.0
)

// RemoteConfig configures a RemoteProvider.
type RemoteConfig struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	// Timeout bounds one Submit call from upload to completed transcript.
	Timeout time.Duration
	Retry   retry.Policy
}

// RemoteProvider submits audio to a submit-then-poll transcription API
// (AssemblyAI's /transcript resource) and waits for the result.
type RemoteProvider struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	timeout      time.Duration
	policy       retry.Policy
	client       *http.Client
}

type submitRequest struct {
	AudioURL string `json:"audio_url"`
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
	Words  []struct {
		Text  string `json:"text"`
		Start int64  `json:"start"`
		End   int64  `json:"end"`
	} `json:"words"`
}

// NewRemoteProvider creates a provider. An API key is required.
func NewRemoteProvider(cfg RemoteConfig) (*RemoteProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: transcription api key is required", domain.ErrValidation)
	}
	p := &RemoteProvider{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
		policy:       cfg.Retry,
		client:       &http.Client{Timeout: defaultRequestTimeout},
	}
	if p.baseURL == "" {
		p.baseURL = defaultRemoteBaseURL
	}
	if p.pollInterval <= 0 {
		p.pollInterval = defaultPollInterval
	}
	if p.timeout <= 0 {
		p.timeout = defaultRemoteTimeout
	}
	if p.policy.MaxAttempts <= 0 {
		p.policy = retry.DefaultPolicy("transcription")
	}
	return p, nil
}

// Submit uploads audioURL for transcription and polls until the job
// completes, fails, or the provider timeout passes.
func (p *RemoteProvider) Submit(ctx context.Context, audioURL string) (*Result, error) {
	if _, err := parseSourceURL(audioURL); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var job transcriptResponse
	err := retry.Do(ctx, p.policy, func(ctx context.Context) error {
		var err error
		job, err = p.call(ctx, http.MethodPost, "/transcript", submitRequest{AudioURL: audioURL})
		return err
	})
	if err != nil {
		return nil, wrapFailure("submit", err)
	}
	logging.Info("Submitted transcription job %s for %s", job.ID, audioURL)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		switch job.Status {
		case statusCompleted:
			return job.result(), nil
		case statusError:
			return nil, failed("job %s: %s", job.ID, job.Error)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w: job %s: %v", domain.ErrTranscription, domain.ErrDeadline, job.ID, ctx.Err())
		case <-ticker.C:
		}

		id := job.ID
		err := retry.Do(ctx, p.policy, func(ctx context.Context) error {
			var err error
			job, err = p.call(ctx, http.MethodGet, "/transcript/"+id, nil)
			return err
		})
		if err != nil {
			return nil, wrapFailure("poll", err)
		}
		logging.Debug("Transcription job %s status %s", id, job.Status)
	}
}

func (t transcriptResponse) result() *Result {
	r := &Result{Text: strings.TrimSpace(t.Text)}
	if len(t.Words) > 0 {
		r.Words = make([]domain.TranscriptWord, len(t.Words))
		for i, w := range t.Words {
			r.Words[i] = domain.TranscriptWord{
				Text:  w.Text,
				Start: float64(w.Start) / millisecondsPerSecond,
				End:   float64(w.End) / millisecondsPerSecond,
			}
		}
	}
	return r
}

func (p *RemoteProvider) call(ctx context.Context, method, path string, payload any) (transcriptResponse, error) {
	var out transcriptResponse

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return out, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return out, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", p.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		return out, fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return out, fmt.Errorf("%w: transcription api returned 429", domain.ErrRateLimited)
	case resp.StatusCode >= 300:
		return out, fmt.Errorf("%w: transcription api returned %d: %s", domain.ErrProvider, resp.StatusCode, apiError(data))
	}

	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: decode response: %v", domain.ErrProvider, err)
	}
	if out.ID == "" {
		return out, errors.Join(domain.ErrProvider, errors.New("response has no job id"))
	}
	return out, nil
}

func apiError(data []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(data))
}
