package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/scopeworks/kbcore/internal/core/domain"
)

func mustNew(t *testing.T, cfg Config) *Chunker {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestNew_InvalidOverlap(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
		{"negative overlap", 100, -1},
		{"zero size", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{Size: tt.size, Overlap: tt.overlap})
			if err == nil {
				t.Errorf("expected error for size=%d overlap=%d", tt.size, tt.overlap)
			}
		})
	}
}

func TestChunk_Boundaries(t *testing.T) {
	c := mustNew(t, DefaultConfig())

	text := strings.Repeat("a", 2500)
	chunks, err := c.Chunk("doc-1", text)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	want := []struct{ start, end int }{
		{0, 1000},
		{800, 1800},
		{1600, 2500},
	}
	for i, w := range want {
		if chunks[i].Start != w.start || chunks[i].End != w.end {
			t.Errorf("chunk %d: got [%d,%d), want [%d,%d)", i, chunks[i].Start, chunks[i].End, w.start, w.end)
		}
		if chunks[i].Ordinal != i {
			t.Errorf("chunk %d: ordinal %d", i, chunks[i].Ordinal)
		}
		if chunks[i].DocumentID != "doc-1" {
			t.Errorf("chunk %d: document ID %q", i, chunks[i].DocumentID)
		}
		if len(chunks[i].Text) != w.end-w.start {
			t.Errorf("chunk %d: text length %d, want %d", i, len(chunks[i].Text), w.end-w.start)
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	c := mustNew(t, DefaultConfig())

	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 120)
	first, err := c.Chunk("doc-1", text)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	second, err := c.Chunk("doc-1", text)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestChunk_TooShort(t *testing.T) {
	c := mustNew(t, DefaultConfig())

	chunks, err := c.Chunk("doc-1", strings.Repeat("x", 49))
	if err == nil {
		t.Fatal("expected error for text below minimum length")
	}
	if !domain.IsExtractionTooShort(err) {
		t.Errorf("expected ExtractionTooShort, got %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected zero chunks, got %d", len(chunks))
	}
}

func TestChunk_ExactMinimumLength(t *testing.T) {
	c := mustNew(t, DefaultConfig())

	chunks, err := c.Chunk("doc-1", strings.Repeat("x", 50))
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Start != 0 || chunks[0].End != 50 {
		t.Errorf("got [%d,%d), want [0,50)", chunks[0].Start, chunks[0].End)
	}
}

func TestChunk_TextEndsOnChunkBoundary(t *testing.T) {
	c := mustNew(t, DefaultConfig())

	// 1800 = second chunk's natural end; no third chunk should appear.
	chunks, err := c.Chunk("doc-1", strings.Repeat("a", 1800))
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].End != 1800 {
		t.Errorf("final chunk end %d, want 1800", chunks[1].End)
	}
}

func TestChunk_SmallStrideTerminates(t *testing.T) {
	c := mustNew(t, Config{Size: 60, Overlap: 59, MinTextLength: 50})

	chunks, err := c.Chunk("doc-1", strings.Repeat("b", 200))
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	// stride 1: chunks start at 0,1,2,... and the last one ends at 200.
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	last := chunks[len(chunks)-1]
	if last.End != 200 {
		t.Errorf("final chunk end %d, want 200", last.End)
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Start <= chunks[i-1].Start {
			t.Fatalf("chunk %d does not advance: start %d after %d", i, chunks[i].Start, chunks[i-1].Start)
		}
	}
}

func TestChunk_MultiByteRunes(t *testing.T) {
	c := mustNew(t, Config{Size: 10, Overlap: 2, MinTextLength: 10})

	// 40 three-byte runes. Byte-based windows would cut inside a rune at
	// every boundary; rune-based windows must not.
	text := strings.Repeat("€", 40)
	chunks, err := c.Chunk("doc-1", text)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}

	for i, chunk := range chunks {
		if !utf8.ValidString(chunk.Text) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, chunk.Text)
		}
		if !utf8.ValidString(chunk.Preview) {
			t.Errorf("chunk %d preview is not valid UTF-8: %q", i, chunk.Preview)
		}
	}

	first := chunks[0]
	if first.Start != 0 || first.End != 10 {
		t.Errorf("chunk 0: got [%d,%d), want [0,10)", first.Start, first.End)
	}
	if got := len([]rune(first.Text)); got != 10 {
		t.Errorf("chunk 0: %d runes, want 10", got)
	}

	last := chunks[len(chunks)-1]
	if last.End != 40 {
		t.Errorf("final chunk end %d, want 40 runes", last.End)
	}
}

func TestPreview_RuneSafe(t *testing.T) {
	c := mustNew(t, Config{Size: 1000, Overlap: 200, MinTextLength: 10, PreviewLength: 5})

	// é is 2 bytes in UTF-8; the preview must not split it.
	chunks, err := c.Chunk("doc-1", "héllo world")
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	for _, r := range chunks[0].Preview {
		if r == '�' {
			t.Errorf("preview contains replacement rune: %q", chunks[0].Preview)
		}
	}
}
