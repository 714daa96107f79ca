// Package chunker splits podcast transcripts into sentence-bounded,
// overlapping chunks sized by word count, with optional timestamp alignment.
package chunker

import (
	"podcast-brain/pkg/domain"
)

// Default sizes, in words.
const (
	MaxChunkSize     = 800
	TargetChunkSize  = 600
	MinChunkSize     = 400
	OverlapSentences = 3
)

// Chunker splits transcripts into chunks. The zero value is not usable;
// construct with New.
type Chunker struct {
	targetSize int
	minSize    int
	maxSize    int
	overlap    int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithTargetSize sets the word count at which a chunk is closed.
func WithTargetSize(words int) Option {
	return func(c *Chunker) {
		if words > 0 {
			c.targetSize = words
		}
	}
}

// WithMinSize sets the minimum word count of every chunk but the last.
func WithMinSize(words int) Option {
	return func(c *Chunker) {
		if words > 0 {
			c.minSize = words
		}
	}
}

// WithMaxSize sets the upper word bound of a chunk, and the size under
// which a transcript is kept as a single chunk.
func WithMaxSize(words int) Option {
	return func(c *Chunker) {
		if words > 0 {
			c.maxSize = words
		}
	}
}

// WithOverlap sets how many trailing sentences of a chunk are repeated at
// the start of the next one.
func WithOverlap(sentences int) Option {
	return func(c *Chunker) {
		if sentences >= 0 {
			c.overlap = sentences
		}
	}
}

// New creates a Chunker. Sizes that do not satisfy min <= target <= max
// are reset to the defaults.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		targetSize: TargetChunkSize,
		minSize:    MinChunkSize,
		maxSize:    MaxChunkSize,
		overlap:    OverlapSentences,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.minSize > c.targetSize || c.targetSize > c.maxSize {
		c.targetSize = TargetChunkSize
		c.minSize = MinChunkSize
		c.maxSize = MaxChunkSize
	}
	return c
}

var defaultChunker = New()

// Chunk splits transcript with the default sizes. See Chunker.Chunk.
func Chunk(transcript string, words []domain.TranscriptWord) []domain.Chunk {
	return defaultChunker.Chunk(transcript, words)
}

// Chunk normalizes transcript and splits it into chunks with ChunkIndex
// assigned from 0 in emission order. When words are supplied each chunk
// gets start and end times where its text can be aligned, nil otherwise.
//
// Chunk never fails: empty input yields an empty slice.
func (c *Chunker) Chunk(transcript string, words []domain.TranscriptWord) []domain.Chunk {
	text := Normalize(transcript)
	if text == "" {
		return []domain.Chunk{}
	}

	align := newAligner(words, len(text))

	if countWords(text) <= c.maxSize {
		start, end := align.span(text, 0)
		return []domain.Chunk{{Content: text, StartTime: start, EndTime: end, ChunkIndex: 0}}
	}

	groups := c.group(splitLong(splitSentences(text), c.maxSize-c.minSize))

	chunks := make([]domain.Chunk, 0, len(groups))
	for i, g := range groups {
		content := joinSentences(g)
		start, end := align.span(content, g[0].offset)
		chunks = append(chunks, domain.Chunk{
			Content:    content,
			StartTime:  start,
			EndTime:    end,
			ChunkIndex: i,
		})
	}
	return chunks
}

// group accumulates sentences greedily. Every group after the first opens
// with the trailing sentences of the previous one, and those overlap words
// count toward its size. A group closes once it reaches the target size,
// at the last sentence if it has reached the minimum size, or before a
// sentence that would push it past the maximum size. Leftover sentences
// form a final, possibly short, group.
func (c *Chunker) group(sentences []sentence) [][]sentence {
	var (
		groups [][]sentence
		buf    []sentence
		count  int
		fresh  int
	)
	closeGroup := func() {
		groups = append(groups, buf)
		buf = c.overlapFrom(buf)
		count = 0
		for _, s := range buf {
			count += s.words
		}
		fresh = 0
	}

	for i, s := range sentences {
		if fresh > 0 && count >= c.minSize && count+s.words > c.maxSize {
			closeGroup()
		}

		buf = append(buf, s)
		count += s.words
		fresh++

		last := i == len(sentences)-1
		if count >= c.targetSize || (last && count >= c.minSize) {
			closeGroup()
		}
	}
	if fresh > 0 {
		groups = append(groups, buf)
	}
	return groups
}

// overlapFrom copies the last overlap sentences of a closed group. Leading
// sentences are dropped while the overlap would reach the minimum size, so
// every group holds at least one sentence of its own.
func (c *Chunker) overlapFrom(prev []sentence) []sentence {
	n := c.overlap
	if n > len(prev) {
		n = len(prev)
	}
	tail := prev[len(prev)-n:]

	words := 0
	for _, s := range tail {
		words += s.words
	}
	for len(tail) > 0 && words >= c.minSize {
		words -= tail[0].words
		tail = tail[1:]
	}

	out := make([]sentence, len(tail))
	copy(out, tail)
	return out
}
