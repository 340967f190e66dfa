// Package processor splits extracted page text into overlapping chunks.
package processor

import (
	"strings"

	"github.com/google/uuid"

	"github.com/docsetai/askdocs/internal/models"
)

const (
	// DefaultChunkSize is the window size in characters.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the number of trailing characters carried
	// into the next chunk so retrieval does not lose context at chunk
	// boundaries.
	DefaultChunkOverlap = 100
)

type ChunkerConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// Chunker splits page text into windows of roughly ChunkSize characters,
// preferring sentence boundaries and falling back to hard truncation for
// sentences longer than the window. Sizes are approximate, not exact.
type Chunker struct {
	config ChunkerConfig
}

func NewWithConfig(config ChunkerConfig) Chunker {
	if config.ChunkSize == 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = DefaultChunkOverlap
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 4
	}

	return Chunker{config: config}
}

// ChunkPages chunks each page of one document. Positions are ordinal per
// document, page order is preserved.
func (c *Chunker) ChunkPages(source string, pages []models.Page) []models.Chunk {
	var chunks []models.Chunk

	position := 0
	for _, page := range pages {
		for _, text := range c.split(page.Text) {
			chunks = append(chunks, models.Chunk{
				ID:       uuid.New().String(),
				Source:   source,
				Page:     page.Number,
				Position: position,
				Text:     text,
			})
			position++
		}
	}

	return chunks
}

func (c *Chunker) split(text string) []string {
	if text == "" {
		return nil
	}

	var chunks []string
	current := strings.Builder{}
	appended := false // whether current holds more than carried overlap

	emit := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			chunks = append(chunks, s)
		}
		// Carry the window tail into the next chunk
		if c.config.ChunkOverlap > 0 && current.Len() > c.config.ChunkOverlap {
			tail := current.String()[current.Len()-c.config.ChunkOverlap:]
			current.Reset()
			current.WriteString(tail)
		} else {
			current.Reset()
		}
		appended = false
	}

	for _, sentence := range splitIntoSentences(text) {
		// whitespace is collapsed after sentence splitting so newline
		// enders still match
		sentence = cleanText(sentence)
		if sentence == "" {
			continue
		}
		for _, piece := range hardSplit(sentence, c.config.ChunkSize) {
			// A full window carried over only an overlap tail is not a
			// chunk of its own; keep accumulating into it instead.
			if appended && current.Len()+len(piece)+1 > c.config.ChunkSize {
				emit()
			}
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(piece)
			appended = true
		}
	}

	if appended {
		s := strings.TrimSpace(current.String())
		if s != "" {
			chunks = append(chunks, s)
		}
	}

	return chunks
}

func splitIntoSentences(text string) []string {
	sentenceEnders := []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}
	var sentences []string

	current := strings.Builder{}

	for i := 0; i < len(text); i++ {
		current.WriteByte(text[i])

		for _, ender := range sentenceEnders {
			if strings.HasSuffix(current.String(), ender) {
				sentences = append(sentences, strings.TrimSpace(current.String()))
				current.Reset()
				break
			}
		}
	}

	if current.Len() > 0 {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
	}

	return sentences
}

// hardSplit truncates a sentence that does not fit any window into
// max-sized slices.
func hardSplit(s string, max int) []string {
	if len(s) <= max {
		return []string{s}
	}
	var pieces []string
	for len(s) > max {
		pieces = append(pieces, s[:max])
		s = s[max:]
	}
	if s != "" {
		pieces = append(pieces, s)
	}
	return pieces
}

func cleanText(text string) string {
	// Collapse runs of whitespace; case is preserved so that answer
	// attribution can compare chunk text against model output.
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}
