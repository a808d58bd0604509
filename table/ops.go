package table

import (
	"context"

	"github.com/florinutz/icefloe/storage"
)

// Operations is the metadata persistence collaborator. Commit performs the
// compare-and-swap of metadata pointers; implementations return
// *icefloeerr.CommitFailedError on a lost race, *icefloeerr.CommitStateUnknownError
// when the outcome cannot be determined, and any other error for terminal
// failures.
type Operations interface {
	// Current returns the last metadata this instance observed.
	Current() *TableMetadata

	// Refresh re-reads the latest metadata from the catalog.
	Refresh(ctx context.Context) (*TableMetadata, error)

	// Commit atomically replaces base with updated.
	Commit(ctx context.Context, base, updated *TableMetadata) error

	// IO returns the object store for table files.
	IO() storage.Storage

	// Encryption returns the manager wrapping output files.
	Encryption() EncryptionManager

	// MetadataFileLocation resolves a metadata file name to a full path.
	MetadataFileLocation(name string) string

	// NewSnapshotID returns a candidate snapshot id. Callers must check it
	// against existing snapshots.
	NewSnapshotID() int64

	// RequireStrictCleanup disables cleanup for failures not known to be
	// cleanable.
	RequireStrictCleanup() bool
}

// EncryptionManager wraps file bytes before they reach storage.
type EncryptionManager interface {
	Encrypt(data []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

// PlaintextEncryption is the no-op EncryptionManager.
type PlaintextEncryption struct{}

func (PlaintextEncryption) Encrypt(data []byte) ([]byte, error) { return data, nil }
func (PlaintextEncryption) Decrypt(data []byte) ([]byte, error) { return data, nil }
