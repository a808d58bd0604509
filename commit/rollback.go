package commit

import (
	"context"
	"fmt"

	"github.com/florinutz/icefloe/icefloeerr"
	"github.com/florinutz/icefloe/manifest"
	"github.com/florinutz/icefloe/table"
)

// RollbackTo moves the target branch back to an existing snapshot. The
// snapshot id is pinned up front, so the commit driver recognizes it as
// already present and only moves the ref; nothing is re-added.
type RollbackTo struct {
	*SnapshotProducer

	targetID int64
}

// NewRollbackTo creates a rollback to the given snapshot id.
func NewRollbackTo(ops table.Operations, tableName string, snapshotID int64) *RollbackTo {
	r := &RollbackTo{targetID: snapshotID}
	r.SnapshotProducer = newSnapshotProducer(ops, r, tableName)
	r.setSnapshotID(snapshotID)
	return r
}

func (r *RollbackTo) Operation() string {
	if target := r.ops.Current().Snapshot(r.targetID); target != nil && target.Operation != "" {
		return target.Operation
	}
	return OpAppend
}

func (r *RollbackTo) Validate(_ context.Context, base *table.TableMetadata, _ *table.Snapshot) error {
	if base.Snapshot(r.targetID) == nil {
		return &icefloeerr.ValidationError{
			Operation: "rollback",
			Reason:    fmt.Sprintf("cannot roll back to unknown snapshot id %d", r.targetID),
		}
	}
	return nil
}

func (r *RollbackTo) Summary() map[string]string {
	return nil
}

// Apply returns the target snapshot's own manifests; the candidate built
// from them is discarded in favor of the existing snapshot at commit time.
func (r *RollbackTo) Apply(ctx context.Context, base *table.TableMetadata, _ *table.Snapshot) ([]*table.ManifestFile, error) {
	target := base.Snapshot(r.targetID)
	return manifest.ReadList(ctx, r.ops.IO(), r.ops.Encryption(), target.ManifestList)
}

func (r *RollbackTo) CleanUncommitted(context.Context, map[string]struct{}) {}
