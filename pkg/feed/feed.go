// Package feed lists podcast episodes from RSS and Atom feeds.
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"podcast-brain/pkg/domain"
	"podcast-brain/pkg/httpclient"
)

// Episode is one feed item that can be transcribed.
type Episode struct {
	GUID        string
	Title       string
	AudioURL    string
	PageURL     string
	PublishedAt *time.Time
}

// Source returns the URL a transcription provider should read: the audio
// enclosure when present, the episode page otherwise.
func (e Episode) Source() string {
	if e.AudioURL != "" {
		return e.AudioURL
	}
	return e.PageURL
}

// Reader fetches and parses feeds.
type Reader struct {
	parser *gofeed.Parser
}

// NewReader creates a reader that fetches through client. A nil client
// selects a browser-profile client, since many podcast hosts reject
// unknown agents.
func NewReader(client *httpclient.Client) *Reader {
	if client == nil {
		client = httpclient.New(httpclient.BrowserProfile, 0)
	}
	p := gofeed.NewParser()
	p.Client = client.HTTP()
	return &Reader{parser: p}
}

// Episodes returns up to max episodes from feedURL in feed order. Items
// with neither an audio enclosure nor a page link are skipped. max <= 0
// returns every episode.
func (r *Reader) Episodes(ctx context.Context, feedURL string, max int) ([]Episode, error) {
	if strings.TrimSpace(feedURL) == "" {
		return nil, fmt.Errorf("%w: feed url is required", domain.ErrValidation)
	}

	f, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	return episodes(f, max), nil
}

func episodes(f *gofeed.Feed, max int) []Episode {
	out := make([]Episode, 0, len(f.Items))
	for _, item := range f.Items {
		if item == nil {
			continue
		}
		ep := Episode{
			GUID:        strings.TrimSpace(item.GUID),
			Title:       strings.TrimSpace(item.Title),
			AudioURL:    audioEnclosure(item),
			PageURL:     strings.TrimSpace(item.Link),
			PublishedAt: item.PublishedParsed,
		}
		if ep.AudioURL == "" && ep.PageURL == "" {
			continue
		}
		if ep.GUID == "" {
			ep.GUID = ep.Source()
		}
		out = append(out, ep)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// audioEnclosure returns the first enclosure with an audio MIME type, or
// the first enclosure at all when none declares a type.
func audioEnclosure(item *gofeed.Item) string {
	var untyped string
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(enc.Type), "audio/") {
			return enc.URL
		}
		if enc.Type == "" && untyped == "" {
			untyped = enc.URL
		}
	}
	return untyped
}
