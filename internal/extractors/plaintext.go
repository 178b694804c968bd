package extractors

import (
	"context"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Extractor = (*PlainText)(nil)

// plainTextExtensions are formats whose bytes are already readable text.
var plainTextExtensions = map[string]struct{}{
	".txt":  {},
	".md":   {},
	".csv":  {},
	".log":  {},
	".json": {},
	".yaml": {},
	".yml":  {},
}

// PlainText extracts text-family formats by normalising line endings and
// validating the bytes are UTF-8.
type PlainText struct{}

// NewPlainText creates the plain-text extractor.
func NewPlainText() *PlainText {
	return &PlainText{}
}

// Supports reports whether the file has a plain-text extension.
func (p *PlainText) Supports(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	_, ok := plainTextExtensions[ext]
	return ok
}

// Extract returns the file content as text.
func (p *PlainText) Extract(ctx context.Context, data []byte, fileName string) (string, error) {
	if !utf8.Valid(data) {
		return "", &domain.ExtractionError{
			Kind:     domain.ExtractionCorrupt,
			FileName: fileName,
		}
	}

	text := string(data)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text), nil
}

// Name identifies the extractor in logs.
func (p *PlainText) Name() string {
	return "plaintext"
}
