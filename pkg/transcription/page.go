package transcription

import (
	"context"
	"net/url"
	"strings"

	"podcast-brain/pkg/httpclient"
	"podcast-brain/pkg/logging"
)

// PageProvider reads the transcript an episode's web page publishes. It
// follows the best transcript link on the page and, when there is none or
// it yields no text, falls back to the page's own main text. Results never
// carry word timings.
type PageProvider struct {
	client *httpclient.Client
}

// NewPageProvider creates a provider. A nil client selects a curl-profile
// client with the default timeout.
func NewPageProvider(client *httpclient.Client) *PageProvider {
	if client == nil {
		client = httpclient.New(httpclient.CurlProfile, 0)
	}
	return &PageProvider{client: client}
}

// Submit fetches pageURL and returns its transcript text.
func (p *PageProvider) Submit(ctx context.Context, pageURL string) (*Result, error) {
	base, err := parseSourceURL(pageURL)
	if err != nil {
		return nil, err
	}

	body, _, err := p.client.Fetch(ctx, pageURL)
	if err != nil {
		return nil, wrapFailure("fetch page", err)
	}
	html := string(body)

	if href, err := FindTranscriptLink(html); err == nil {
		if link, err := base.Parse(href); err == nil {
			text, err := p.document(ctx, link)
			if err == nil {
				logging.Debug("Read transcript for %s from %s", pageURL, link)
				return &Result{Text: text}, nil
			}
			logging.Warn("Transcript link %s on %s unusable, using page text: %v", link, pageURL, err)
		}
	}

	text, err := mainText(html, base)
	if err != nil {
		return nil, wrapFailure("extract page text", err)
	}
	return &Result{Text: text}, nil
}

// document downloads a linked transcript and returns its text. Linked HTML
// pages are reduced to their main text.
func (p *PageProvider) document(ctx context.Context, link *url.URL) (string, error) {
	body, contentType, err := p.client.Fetch(ctx, link.String())
	if err != nil {
		return "", err
	}
	contentType = strings.ToLower(contentType)

	var text string
	switch {
	case documentKind(link.Path) == "pdf" || strings.Contains(contentType, "application/pdf"):
		text, err = pdfText(body)
	case documentKind(link.Path) == "txt" || strings.HasPrefix(contentType, "text/plain"):
		text = strings.TrimSpace(string(body))
	default:
		text, err = mainText(string(body), link)
	}
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", errEmptyDocument
	}
	return text, nil
}
