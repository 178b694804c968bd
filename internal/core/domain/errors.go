package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrScanInProgress indicates a scan is already running
	ErrScanInProgress = errors.New("scan already in progress")

	// ErrAlreadyResolved indicates the pending approval was already
	// approved or rejected; resolving it again must not re-apply effects
	ErrAlreadyResolved = errors.New("approval already resolved")

	// ErrEmbeddingFailed indicates the embedding service returned an error
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrServiceUnavailable indicates an external service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ExtractionErrorKind distinguishes extraction failure modes.
type ExtractionErrorKind string

const (
	// ExtractionTooShort: the extracted text is below the minimum length
	// worth embedding; the document is rejected, not chunked into one
	// tiny piece.
	ExtractionTooShort ExtractionErrorKind = "too_short"
	// ExtractionUnsupported: no extractor is registered for the format.
	ExtractionUnsupported ExtractionErrorKind = "unsupported_format"
	// ExtractionCorrupt: the extractor could not parse the file.
	ExtractionCorrupt ExtractionErrorKind = "corrupt"
)

// ExtractionError is a fatal, per-document extraction failure. It marks the
// document's job failed and leaves its registry hash untouched so the next
// scan retries it.
type ExtractionError struct {
	Kind     ExtractionErrorKind
	FileName string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed for %s (%s): %v", e.FileName, e.Kind, e.Err)
	}
	return fmt.Sprintf("extraction failed for %s (%s)", e.FileName, e.Kind)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IsExtractionTooShort reports whether err is a too-short extraction failure.
func IsExtractionTooShort(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee) && ee.Kind == ExtractionTooShort
}

// DimensionMismatchError signals a configuration error between the embedding
// service and the vector index: the embedder produced a vector whose length
// differs from the index's configured dimension. It is fatal for the job and
// must never be worked around by truncating or padding.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: index expects %d, embedder returned %d", e.Want, e.Got)
}

// IsDimensionMismatch reports whether err is a dimension mismatch.
func IsDimensionMismatch(err error) bool {
	var de *DimensionMismatchError
	return errors.As(err, &de)
}
