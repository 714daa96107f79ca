package chunker

import "strings"

// sentence is a span of the normalized transcript.
type sentence struct {
	text   string
	offset int // byte offset into the normalized transcript
	words  int
}

// splitSentences splits normalized text at '.', '!' or '?' followed by a
// space. Text with no boundary is returned as a single sentence.
func splitSentences(text string) []sentence {
	if text == "" {
		return nil
	}

	var out []sentence
	start := 0
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] != ' ' {
				continue
			}
			out = appendSentence(out, text[start:i+1], start)
			start = i + 2
			i++
		}
	}
	if start < len(text) {
		out = appendSentence(out, text[start:], start)
	}
	return out
}

func appendSentence(out []sentence, s string, offset int) []sentence {
	if strings.TrimSpace(s) == "" {
		return out
	}
	return append(out, sentence{text: s, offset: offset, words: countWords(s)})
}

// splitLong breaks sentences longer than limit words into consecutive
// pieces of at most limit words, keeping offsets exact.
func splitLong(sentences []sentence, limit int) []sentence {
	if limit <= 0 {
		return sentences
	}

	out := make([]sentence, 0, len(sentences))
	for _, s := range sentences {
		if s.words <= limit {
			out = append(out, s)
			continue
		}

		fields := strings.Fields(s.text)
		offset := s.offset
		for i := 0; i < len(fields); i += limit {
			end := i + limit
			if end > len(fields) {
				end = len(fields)
			}
			piece := strings.Join(fields[i:end], " ")
			out = append(out, sentence{text: piece, offset: offset, words: end - i})
			offset += len(piece) + 1
		}
	}
	return out
}

func joinSentences(sentences []sentence) string {
	parts := make([]string, len(sentences))
	for i, s := range sentences {
		parts[i] = s.text
	}
	return strings.Join(parts, " ")
}
