package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"podcast-brain/pkg/domain"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "text-embedding-3-small"
)

// OpenAIConfig configures an OpenAIProvider. Any OpenAI-compatible
// /embeddings endpoint works.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// OpenAIProvider calls an OpenAI-compatible embeddings endpoint.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

type openAIRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewOpenAIProvider creates a provider. An API key is required.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: embedding api key is required", domain.ErrValidation)
	}

	p := &OpenAIProvider{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
	if p.baseURL == "" {
		p.baseURL = defaultOpenAIBaseURL
	}
	if p.model == "" {
		p.model = defaultOpenAIModel
	}
	if p.dimensions <= 0 {
		p.dimensions = DefaultDimensions
	}
	if cfg.Timeout <= 0 {
		p.client.Timeout = 60 * time.Second
	}
	return p, nil
}

// Dimensions returns the configured vector length.
func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

// ModelName returns the configured model.
func (p *OpenAIProvider) ModelName() string { return p.model }

// Embed sends texts in a single request. HTTP 429 maps to
// domain.ErrRateLimited; every other failure maps to domain.ErrProvider.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(openAIRequest{Input: texts, Model: p.model, Dimensions: p.dimensions})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: embedding request: %v", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read embedding response: %v", domain.ErrProvider, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", domain.ErrRateLimited, errorMessage(raw))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrProvider, resp.StatusCode, errorMessage(raw))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse embedding response: %v", domain.ErrProvider, err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", domain.ErrProvider, len(texts), len(parsed.Data))
	}

	vectors := make([]domain.Vector, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%w: invalid embedding index %d", domain.ErrProvider, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func errorMessage(raw []byte) string {
	var e openAIError
	if err := json.Unmarshal(raw, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return string(raw)
}
