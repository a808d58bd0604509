package commit

import (
	"context"
	"fmt"
	"sort"

	"github.com/florinutz/icefloe/icefloeerr"
	"github.com/florinutz/icefloe/table"
)

// Overwrite atomically replaces specific data files: the named paths are
// removed from the table and the added files take their place in the same
// snapshot.
type Overwrite struct {
	*SnapshotProducer

	spec        table.PartitionSpec
	addedFiles  []*table.DataFile
	deletePaths map[string]struct{}

	summary      *SummaryBuilder
	newManifests []*table.ManifestFile
	written      []*table.ManifestFile
}

// NewOverwrite creates an overwrite operation against the table.
func NewOverwrite(ops table.Operations, tableName string) *Overwrite {
	o := &Overwrite{
		deletePaths: map[string]struct{}{},
		summary:     NewSummaryBuilder(),
	}
	o.SnapshotProducer = newSnapshotProducer(ops, o, tableName)
	o.spec = ops.Current().DefaultSpec()
	return o
}

// AddFile schedules a data file for addition.
func (o *Overwrite) AddFile(f *table.DataFile) error {
	if f.IsDeleteFile() {
		return &icefloeerr.ValidationError{Operation: OpOverwrite, Reason: "cannot overwrite with a delete file; use a row delta"}
	}
	o.addedFiles = append(o.addedFiles, f)
	return nil
}

// DeleteFilePath schedules a currently-live data file for removal.
func (o *Overwrite) DeleteFilePath(path string) {
	o.deletePaths[path] = struct{}{}
}

func (o *Overwrite) Operation() string {
	return OpOverwrite
}

func (o *Overwrite) Validate(context.Context, *table.TableMetadata, *table.Snapshot) error {
	return nil
}

func (o *Overwrite) Summary() map[string]string {
	return o.summary.Build()
}

func (o *Overwrite) Apply(ctx context.Context, base *table.TableMetadata, parent *table.Snapshot) ([]*table.ManifestFile, error) {
	seq := base.NextSequenceNumber()

	// Removal counts depend on the refreshed parent; recompute per attempt.
	o.summary.Clear()
	for _, f := range o.addedFiles {
		o.summary.AddFile(f)
	}

	if o.newManifests == nil && len(o.addedFiles) > 0 {
		written, err := o.WriteDataManifests(ctx, o.addedFiles, o.spec, seq, nil)
		if err != nil {
			return nil, err
		}
		o.newManifests = written
	}

	res, err := o.filterParentManifests(ctx, base, parent, seq, o.deletePaths, false, o.summary)
	if err != nil {
		return nil, err
	}
	if len(res.missing) > 0 {
		sort.Strings(res.missing)
		return nil, &icefloeerr.ValidationError{
			Operation: OpOverwrite,
			Reason:    fmt.Sprintf("files to delete are not live in the table: %v", res.missing),
		}
	}
	o.written = append(o.written, res.written...)

	out := append([]*table.ManifestFile(nil), o.newManifests...)
	out = append(out, res.manifests...)
	return out, nil
}

func (o *Overwrite) CleanUncommitted(ctx context.Context, committed map[string]struct{}) {
	o.newManifests = o.cleanWritten(ctx, o.newManifests, committed)
	o.written = o.cleanWritten(ctx, o.written, committed)
}
