package driven

import (
	"context"

	"github.com/scopeworks/kbcore/internal/core/domain"
)

// DocumentStore is the external store holding the raw source documents
// (blob storage, filesystem). The pipeline only lists and reads; uploads
// happen outside this subsystem.
type DocumentStore interface {
	// List returns all files under prefix
	List(ctx context.Context, prefix string) ([]domain.FileInfo, error)

	// Read returns the raw bytes of one file
	Read(ctx context.Context, path string) ([]byte, error)
}

// DocumentStoreWatcher is implemented by document stores that can report
// change events, used to trigger on-upload scans.
type DocumentStoreWatcher interface {
	// Watch sends the path of each created or modified file on events
	// until ctx is cancelled
	Watch(ctx context.Context, events chan<- string) error
}
