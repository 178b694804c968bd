package driven

import "context"

// Extractor converts a raw document into plain text. One implementation per
// format family; selection happens in the registry, keeping the pipeline
// format-agnostic.
type Extractor interface {
	// Supports reports whether this extractor handles the named file
	Supports(fileName string) bool

	// Extract converts raw bytes to plain text. Failures are reported as
	// *domain.ExtractionError.
	Extract(ctx context.Context, data []byte, fileName string) (string, error)

	// Name identifies the extractor in logs
	Name() string
}

// ExtractorRegistry selects an extractor for a file.
type ExtractorRegistry interface {
	// Register adds an extractor
	Register(e Extractor)

	// Get returns the extractor for the file, or nil if none supports it
	Get(fileName string) Extractor

	// Extract selects an extractor and runs it. Returns
	// *domain.ExtractionError with kind unsupported_format when no
	// extractor matches.
	Extract(ctx context.Context, data []byte, fileName string) (string, error)
}
