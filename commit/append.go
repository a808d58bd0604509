package commit

import (
	"context"

	"github.com/florinutz/icefloe/icefloeerr"
	"github.com/florinutz/icefloe/manifest"
	"github.com/florinutz/icefloe/table"
)

// Append adds data files to the table without touching existing ones.
// Manifests written for the new files are kept across retries; only the ones
// that never commit are cleaned up.
type Append struct {
	*SnapshotProducer

	spec    table.PartitionSpec
	files   []*table.DataFile
	summary *SummaryBuilder

	newManifests []*table.ManifestFile
}

// NewAppend creates an append operation against the table.
func NewAppend(ops table.Operations, tableName string) *Append {
	a := &Append{summary: NewSummaryBuilder()}
	a.SnapshotProducer = newSnapshotProducer(ops, a, tableName)
	a.spec = ops.Current().DefaultSpec()
	return a
}

// AppendFile schedules a data file for addition.
func (a *Append) AppendFile(f *table.DataFile) error {
	if f.IsDeleteFile() {
		return &icefloeerr.ValidationError{Operation: OpAppend, Reason: "cannot append a delete file"}
	}
	a.files = append(a.files, f)
	a.summary.AddFile(f)
	return nil
}

func (a *Append) Operation() string {
	return OpAppend
}

func (a *Append) Validate(context.Context, *table.TableMetadata, *table.Snapshot) error {
	return nil
}

func (a *Append) Summary() map[string]string {
	return a.summary.Build()
}

// Apply writes manifests for the new files (reusing ones from earlier
// attempts) and carries the parent's manifests forward unchanged.
func (a *Append) Apply(ctx context.Context, base *table.TableMetadata, parent *table.Snapshot) ([]*table.ManifestFile, error) {
	if a.newManifests == nil && len(a.files) > 0 {
		written, err := a.WriteDataManifests(ctx, a.files, a.spec, base.NextSequenceNumber(), nil)
		if err != nil {
			return nil, err
		}
		a.newManifests = written
	}

	out := append([]*table.ManifestFile(nil), a.newManifests...)
	if parent != nil {
		carried, err := manifest.ReadList(ctx, a.ops.IO(), a.ops.Encryption(), parent.ManifestList)
		if err != nil {
			return nil, err
		}
		out = append(out, carried...)
	}
	return out, nil
}

func (a *Append) CleanUncommitted(ctx context.Context, committed map[string]struct{}) {
	var kept []*table.ManifestFile
	for _, mf := range a.newManifests {
		if _, ok := committed[mf.Path]; ok {
			kept = append(kept, mf)
		} else {
			a.deleteFile(ctx, mf.Path)
		}
	}
	a.newManifests = kept
}
