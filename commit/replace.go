package commit

import (
	"context"

	"github.com/florinutz/icefloe/icefloeerr"
	"github.com/florinutz/icefloe/table"
)

// Replace swaps the table's entire file set for the given files in one
// snapshot. Records may only disappear: the commit is rejected when the
// replacement adds more records than it removes.
type Replace struct {
	*SnapshotProducer

	spec  table.PartitionSpec
	files []*table.DataFile

	summary      *SummaryBuilder
	newManifests []*table.ManifestFile
	written      []*table.ManifestFile
}

// NewReplace creates a replace operation against the table.
func NewReplace(ops table.Operations, tableName string) *Replace {
	r := &Replace{summary: NewSummaryBuilder()}
	r.SnapshotProducer = newSnapshotProducer(ops, r, tableName)
	r.spec = ops.Current().DefaultSpec()
	return r
}

// AddFile schedules a data file for the replacement file set.
func (r *Replace) AddFile(f *table.DataFile) error {
	if f.IsDeleteFile() {
		return &icefloeerr.ValidationError{Operation: OpReplace, Reason: "cannot replace with a delete file"}
	}
	r.files = append(r.files, f)
	return nil
}

func (r *Replace) Operation() string {
	return OpReplace
}

func (r *Replace) Validate(context.Context, *table.TableMetadata, *table.Snapshot) error {
	return nil
}

func (r *Replace) Summary() map[string]string {
	return r.summary.Build()
}

func (r *Replace) Apply(ctx context.Context, base *table.TableMetadata, parent *table.Snapshot) ([]*table.ManifestFile, error) {
	seq := base.NextSequenceNumber()

	r.summary.Clear()
	for _, f := range r.files {
		r.summary.AddFile(f)
	}

	if r.newManifests == nil && len(r.files) > 0 {
		written, err := r.WriteDataManifests(ctx, r.files, r.spec, seq, nil)
		if err != nil {
			return nil, err
		}
		r.newManifests = written
	}

	res, err := r.filterParentManifests(ctx, base, parent, seq, nil, true, r.summary)
	if err != nil {
		return nil, err
	}
	r.written = append(r.written, res.written...)

	out := append([]*table.ManifestFile(nil), r.newManifests...)
	out = append(out, res.manifests...)
	return out, nil
}

func (r *Replace) CleanUncommitted(ctx context.Context, committed map[string]struct{}) {
	r.newManifests = r.cleanWritten(ctx, r.newManifests, committed)
	r.written = r.cleanWritten(ctx, r.written, committed)
}
