package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-brain/pkg/domain"
)

// buildTranscript returns text made of sentences with the given word
// counts. Every token is unique and fixed-width so offsets track word
// positions exactly.
func buildTranscript(lengths []int) (string, []domain.TranscriptWord) {
	var (
		sentences []string
		words     []domain.TranscriptWord
	)
	n := 0
	for _, l := range lengths {
		tokens := make([]string, l)
		for i := range tokens {
			tokens[i] = fmt.Sprintf("w%04d", n)
			words = append(words, domain.TranscriptWord{
				Text:  tokens[i],
				Start: float64(n) * 0.5,
				End:   float64(n)*0.5 + 0.4,
			})
			n++
		}
		sentences = append(sentences, strings.Join(tokens, " ")+".")
	}
	return strings.Join(sentences, " "), words
}

func repeat(n, words int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = words
	}
	return out
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", " \n\t  ", ""},
		{"collapses whitespace", "  hello\n\n\tworld   again ", "hello world again"},
		{"strips control characters", "a\x00b\x07c", "abc"},
		{"compatibility forms", "ﬁne Ａ", "fine A"},
		{"non-breaking space", "one\u00a0two", "one two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"Plain text.",
		"  Mixed\r\n whitespace\tand   em spaces  ",
		"e\u0301 combining \x01 marks \u200b here",
		"ﬃx ① ½",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestChunk_Empty(t *testing.T) {
	assert.Empty(t, Chunk("", nil))
	assert.Empty(t, Chunk(" \n\t ", nil))
}

func TestChunk_ShortTranscriptIsSingleChunk(t *testing.T) {
	raw := "  Welcome to the show.\n\nToday we talk about Go!  Enjoy  "
	chunks := Chunk(raw, nil)

	require.Len(t, chunks, 1)
	assert.Equal(t, Normalize(raw), chunks[0].Content)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Nil(t, chunks[0].StartTime)
	assert.Nil(t, chunks[0].EndTime)
}

func TestChunk_SingleChunkAtMaxSize(t *testing.T) {
	text, _ := buildTranscript(repeat(40, 20))
	chunks := Chunk(text, nil)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Content)
}

func TestChunk_NormalizedInputIsStable(t *testing.T) {
	text, _ := buildTranscript(repeat(70, 23))
	raw := strings.ReplaceAll(text, ". ", ".\n\n  ")

	assert.Equal(t, Chunk(Normalize(raw), nil), Chunk(Normalize(Normalize(raw)), nil))
}

func TestChunk_ThreeChunkEpisode(t *testing.T) {
	// 62 sentences, 1450 words.
	lengths := append(repeat(20, 20), repeat(42, 25)...)
	text, _ := buildTranscript(lengths)
	require.Equal(t, 1450, countWords(text))

	chunks := Chunk(text, nil)
	require.Len(t, chunks, 3)

	assert.Equal(t, 600, countWords(chunks[0].Content))
	assert.Equal(t, 600, countWords(chunks[1].Content))
	assert.Equal(t, 400, countWords(chunks[2].Content))
	assert.Equal(t, 2, chunks[2].ChunkIndex)

	// Chunk 1 opens with the last three sentences of chunk 0.
	first := splitSentences(chunks[0].Content)
	overlap := joinSentences(first[len(first)-3:])
	assert.True(t, strings.HasPrefix(chunks[1].Content, overlap+" "))

	second := splitSentences(chunks[1].Content)
	overlap = joinSentences(second[len(second)-3:])
	assert.True(t, strings.HasPrefix(chunks[2].Content, overlap+" "))

	assert.True(t, strings.HasPrefix(text, chunks[0].Content))
	assert.True(t, strings.HasSuffix(text, chunks[2].Content))
}

func TestChunk_IndicesAndWordBounds(t *testing.T) {
	lengths := make([]int, 0, 300)
	for i := 0; i < 300; i++ {
		lengths = append(lengths, 3+(i*37)%41)
	}
	text, _ := buildTranscript(lengths)

	chunks := Chunk(text, nil)
	require.Greater(t, len(chunks), 3)

	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		words := countWords(c.Content)
		assert.LessOrEqual(t, words, MaxChunkSize, "chunk %d", i)
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, words, MinChunkSize, "chunk %d", i)
		}
	}
}

func TestChunk_UnpunctuatedTranscript(t *testing.T) {
	tokens := make([]string, 2000)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("w%04d", i)
	}
	text := strings.Join(tokens, " ")

	chunks := Chunk(text, nil)
	require.Len(t, chunks, 3)
	total := 0
	for _, c := range chunks {
		words := countWords(c.Content)
		assert.LessOrEqual(t, words, MaxChunkSize)
		assert.GreaterOrEqual(t, words, MinChunkSize)
		total += words
	}
	assert.Equal(t, 2000, total)
}

func TestChunk_Timestamps(t *testing.T) {
	lengths := append(repeat(20, 20), repeat(42, 25)...)
	text, words := buildTranscript(lengths)

	chunks := Chunk(text, words)
	require.Len(t, chunks, 3)

	var prevStart float64
	for i, c := range chunks {
		require.NotNil(t, c.StartTime, "chunk %d", i)
		require.NotNil(t, c.EndTime, "chunk %d", i)
		assert.LessOrEqual(t, *c.StartTime, *c.EndTime)
		assert.GreaterOrEqual(t, *c.StartTime, prevStart)
		prevStart = *c.StartTime
	}

	assert.Equal(t, 0.0, *chunks[0].StartTime)
	assert.Equal(t, words[599].End, *chunks[0].EndTime)
	// Chunk 1 starts at the first overlap sentence, three 25-word
	// sentences before word 600.
	assert.Equal(t, words[525].Start, *chunks[1].StartTime)
	assert.Equal(t, words[len(words)-1].End, *chunks[2].EndTime)
}

func TestChunk_ShortWordListDegrades(t *testing.T) {
	text, words := buildTranscript(repeat(62, 25))

	chunks := Chunk(text, words[:100])
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Nil(t, c.StartTime)
		assert.Nil(t, c.EndTime)
	}
}

func TestChunk_UnmatchedWordsDegrade(t *testing.T) {
	text, _ := buildTranscript(repeat(5, 10))
	words := []domain.TranscriptWord{{Text: "unrelated", Start: 0, End: 1}}

	chunks := Chunk(text, words)
	require.Len(t, chunks, 1)
	assert.Nil(t, chunks[0].StartTime)
	assert.Nil(t, chunks[0].EndTime)
}

func TestNew_Options(t *testing.T) {
	c := New(WithMinSize(10), WithTargetSize(20), WithMaxSize(30), WithOverlap(1))
	text, _ := buildTranscript(repeat(20, 5))

	chunks := c.Chunk(text, nil)
	require.Greater(t, len(chunks), 1)
	for i, ch := range chunks {
		assert.LessOrEqual(t, countWords(ch.Content), 30)
		if i > 0 {
			prev := splitSentences(chunks[i-1].Content)
			assert.True(t, strings.HasPrefix(ch.Content, prev[len(prev)-1].text+" "))
		}
	}
}

func TestNew_InvalidSizesFallBack(t *testing.T) {
	c := New(WithMinSize(900), WithTargetSize(100))
	assert.Equal(t, MinChunkSize, c.minSize)
	assert.Equal(t, TargetChunkSize, c.targetSize)
	assert.Equal(t, MaxChunkSize, c.maxSize)
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("One two. Three? Four! Five...six end")
	require.Len(t, got, 4)
	assert.Equal(t, "One two.", got[0].text)
	assert.Equal(t, 0, got[0].offset)
	assert.Equal(t, "Three?", got[1].text)
	assert.Equal(t, 9, got[1].offset)
	assert.Equal(t, "Five...six end", got[3].text)
	assert.Equal(t, 2, got[3].words)
}
