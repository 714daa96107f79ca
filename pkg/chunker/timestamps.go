package chunker

import (
	"strings"
	"unicode"

	"podcast-brain/pkg/domain"
)

// searchWindow bounds how far from the estimated position the aligner looks
// for a chunk's first word.
const searchWindow = 64

// aligner maps chunk text back onto word-level timings. Matching starts
// from a position estimated from the chunk's character offset, so each
// lookup scans a bounded window instead of the whole word list.
//
// The match is a heuristic: repeated words near the estimate can align to
// the wrong occurrence.
type aligner struct {
	words   []domain.TranscriptWord
	keys    []string
	textLen int
}

func newAligner(words []domain.TranscriptWord, textLen int) *aligner {
	if len(words) == 0 || textLen == 0 {
		return nil
	}
	keys := make([]string, len(words))
	for i, w := range words {
		keys[i] = wordKey(w.Text)
	}
	return &aligner{words: words, keys: keys, textLen: textLen}
}

// span returns start and end times for a chunk whose content begins at
// byte offset in the normalized transcript. Both are nil when no match is
// found or the word list is too short for the chunk.
func (a *aligner) span(content string, offset int) (*float64, *float64) {
	if a == nil {
		return nil, nil
	}

	fields := strings.Fields(content)
	first := ""
	skipped := 0
	for _, f := range fields {
		if k := wordKey(f); k != "" {
			first = k
			break
		}
		skipped++
	}
	if first == "" {
		return nil, nil
	}

	estimate := int(float64(offset) / float64(a.textLen) * float64(len(a.words)))
	startIdx, ok := a.find(first, estimate)
	if !ok {
		return nil, nil
	}

	endIdx := startIdx + (len(fields) - skipped) - 1
	if endIdx >= len(a.words) || endIdx < startIdx {
		return nil, nil
	}

	start := a.words[startIdx].Start
	end := a.words[endIdx].End
	if end < start {
		return nil, nil
	}
	return &start, &end
}

// find scans outward from estimate for key, nearest candidates first.
func (a *aligner) find(key string, estimate int) (int, bool) {
	if estimate >= len(a.keys) {
		estimate = len(a.keys) - 1
	}
	if estimate < 0 {
		estimate = 0
	}
	for d := 0; d <= searchWindow; d++ {
		if i := estimate + d; i < len(a.keys) && a.keys[i] == key {
			return i, true
		}
		if d == 0 {
			continue
		}
		if i := estimate - d; i >= 0 && a.keys[i] == key {
			return i, true
		}
	}
	return 0, false
}

// wordKey lowercases a token and strips everything but letters and digits.
func wordKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
