package search

import (
	"fmt"
	"math"
	"strings"

	"podcast-brain/pkg/domain"
)

// BuildContext formats results as a numbered prompt context block, each
// entry headed by its podcast title and time range. Entries that would
// push the block past maxChars are dropped; a single oversized first entry
// is truncated. maxChars <= 0 means no limit.
func BuildContext(results []domain.SearchResult, maxChars int) string {
	var b strings.Builder
	for i, r := range results {
		entry := formatEntry(i+1, r)
		if maxChars > 0 && b.Len()+len(entry) > maxChars {
			if b.Len() == 0 {
				b.WriteString(truncate(entry, maxChars))
			}
			break
		}
		b.WriteString(entry)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatEntry(n int, r domain.SearchResult) string {
	header := fmt.Sprintf("[%d] %s", n, r.PodcastTitle)
	if r.StartTime != nil {
		header += " [" + FormatTimestamp(*r.StartTime)
		if r.EndTime != nil {
			header += "-" + FormatTimestamp(*r.EndTime)
		}
		header += "]"
	}
	return header + "\n" + r.Content + "\n\n"
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && n < len(s) && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}

// FormatTimestamp renders seconds as m:ss, or h:mm:ss from one hour up.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
