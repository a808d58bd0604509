package commit

import (
	"context"

	"github.com/florinutz/icefloe/table"
)

// Operation names recorded on snapshots.
const (
	OpAppend    = "append"
	OpReplace   = "replace"
	OpOverwrite = "overwrite"
	OpDelete    = "delete"
)

// Producer is the variation point concrete operations implement. A producer
// must be deterministic modulo its inputs and must never mutate base
// metadata; it may reuse manifests it wrote on earlier attempts as long as it
// honors the committed set passed to CleanUncommitted.
type Producer interface {
	// Operation names the action that produced the snapshot.
	Operation() string

	// Apply writes whatever manifests the operation needs against the
	// refreshed base and returns the full ordered manifest list for the new
	// snapshot.
	Apply(ctx context.Context, base *table.TableMetadata, parent *table.Snapshot) ([]*table.ManifestFile, error)

	// Summary returns the operation's delta summary, or nil.
	Summary() map[string]string

	// CleanUncommitted removes manifests this producer wrote that are not in
	// the committed set (keyed by manifest path).
	CleanUncommitted(ctx context.Context, committed map[string]struct{})

	// Validate checks the operation's preconditions against the refreshed
	// metadata and the ending snapshot of the target lineage.
	Validate(ctx context.Context, base *table.TableMetadata, parent *table.Snapshot) error
}

// cleanupPolicy lets a producer suppress post-commit cleanup.
type cleanupPolicy interface {
	CleanupAfterCommit() bool
}

// eventProducer lets a producer replace the default CreateSnapshotEvent.
type eventProducer interface {
	UpdateEvent(committed *table.Snapshot) any
}
