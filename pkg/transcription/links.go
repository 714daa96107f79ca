package transcription

import (
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var errNoTranscriptLink = errors.New("no transcript link on page")

// Link ranks, best first.
const (
	rankNone = iota
	rankMentionsTranscript
	rankDocument
	rankTranscriptDocument
)

// FindTranscriptLink returns the href on an episode page that most likely
// points at a published transcript. A document link (.pdf or .txt) whose
// anchor text mentions "transcript" beats a bare document link, which beats
// any other link mentioning "transcript". Ties go to the first link on the
// page. The href is returned unresolved.
func FindTranscriptLink(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", errNoTranscriptLink
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	best, bestRank := "", rankNone
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		if r := linkRank(href, a.Text()); r > bestRank {
			best, bestRank = href, r
		}
	})

	if bestRank == rankNone {
		return "", errNoTranscriptLink
	}
	return best, nil
}

func linkRank(href, text string) int {
	document := documentKind(href) != ""
	mentions := strings.Contains(strings.ToLower(text), "transcript")
	switch {
	case document && mentions:
		return rankTranscriptDocument
	case document:
		return rankDocument
	case mentions:
		return rankMentionsTranscript
	}
	return rankNone
}

// documentKind returns "pdf" or "txt" for hrefs naming a transcript file,
// and "" otherwise. Query strings and fragments are ignored.
func documentKind(href string) string {
	p := href
	if u, err := url.Parse(href); err == nil {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".pdf":
		return "pdf"
	case ".txt":
		return "txt"
	}
	return ""
}
