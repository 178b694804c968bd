package chunker

import (
	"fmt"

	"github.com/scopeworks/kbcore/internal/core/domain"
)

// Config configures the chunker behavior.
type Config struct {
	// Size is the characters per chunk
	Size int

	// Overlap is the character overlap between consecutive chunks.
	// Must be strictly less than Size so every chunk advances.
	Overlap int

	// MinTextLength rejects documents too short to embed meaningfully
	MinTextLength int

	// PreviewLength truncates chunk text for the vector payload
	PreviewLength int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Size:          1000,
		Overlap:       200,
		MinTextLength: 50,
		PreviewLength: 1000,
	}
}

// Chunker splits extracted text into overlapping fixed-size windows.
// Chunking is deterministic: the same text and parameters always produce the
// same boundaries, which the composite vector ID scheme relies on.
type Chunker struct {
	config Config
}

// New creates a chunker, validating that overlap < size.
func New(config Config) (*Chunker, error) {
	if config.Size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.Size)
	}
	if config.Overlap < 0 || config.Overlap >= config.Size {
		return nil, fmt.Errorf("overlap must satisfy 0 <= overlap < size, got overlap=%d size=%d", config.Overlap, config.Size)
	}
	if config.MinTextLength <= 0 {
		config.MinTextLength = DefaultConfig().MinTextLength
	}
	if config.PreviewLength <= 0 {
		config.PreviewLength = DefaultConfig().PreviewLength
	}
	return &Chunker{config: config}, nil
}

// Chunk splits text into chunks for documentID. Offsets count runes, not
// bytes, so a window edge never splits a multi-byte UTF-8 sequence and every
// chunk is valid UTF-8. Chunk k starts at k*(size-overlap); the final chunk
// ends exactly at the text length. Text shorter than MinTextLength is
// rejected with ExtractionTooShort rather than being chunked into one tiny
// piece.
func (c *Chunker) Chunk(documentID, text string) ([]domain.Chunk, error) {
	runes := []rune(text)
	if len(runes) < c.config.MinTextLength {
		return nil, &domain.ExtractionError{
			Kind: domain.ExtractionTooShort,
			Err:  fmt.Errorf("%d chars extracted, minimum is %d", len(runes), c.config.MinTextLength),
		}
	}

	stride := c.config.Size - c.config.Overlap
	var chunks []domain.Chunk

	for k := 0; ; k++ {
		start := k * stride
		if start >= len(runes) {
			break
		}
		end := start + c.config.Size
		if end >= len(runes) {
			end = len(runes)
		}

		chunkText := string(runes[start:end])
		chunks = append(chunks, domain.Chunk{
			DocumentID: documentID,
			Ordinal:    k,
			Start:      start,
			End:        end,
			Text:       chunkText,
			Preview:    preview(runes[start:end], c.config.PreviewLength),
		})

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

// preview truncates a chunk to at most n runes.
func preview(runes []rune, n int) string {
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n])
}
