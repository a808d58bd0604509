package commit

import (
	"context"

	"github.com/florinutz/icefloe/icefloeerr"
	"github.com/florinutz/icefloe/manifest"
	"github.com/florinutz/icefloe/table"
)

// RowDelta commits data files and delete files together in one snapshot,
// the shape produced by engines encoding row-level changes as positional or
// equality deletes.
type RowDelta struct {
	*SnapshotProducer

	spec        table.PartitionSpec
	dataFiles   []*table.DataFile
	deleteFiles []*table.DataFile
	summary     *SummaryBuilder

	newManifests []*table.ManifestFile
}

// NewRowDelta creates a row-delta operation against the table.
func NewRowDelta(ops table.Operations, tableName string) *RowDelta {
	d := &RowDelta{summary: NewSummaryBuilder()}
	d.SnapshotProducer = newSnapshotProducer(ops, d, tableName)
	d.spec = ops.Current().DefaultSpec()
	return d
}

// AddRows schedules a data file for addition.
func (d *RowDelta) AddRows(f *table.DataFile) error {
	if f.IsDeleteFile() {
		return &icefloeerr.ValidationError{Operation: OpOverwrite, Reason: "AddRows takes a data file"}
	}
	d.dataFiles = append(d.dataFiles, f)
	d.summary.AddFile(f)
	return nil
}

// AddDeletes schedules a positional or equality delete file.
func (d *RowDelta) AddDeletes(f *table.DataFile) error {
	if !f.IsDeleteFile() {
		return &icefloeerr.ValidationError{Operation: OpOverwrite, Reason: "AddDeletes takes a delete file"}
	}
	d.deleteFiles = append(d.deleteFiles, f)
	d.summary.AddFile(f)
	return nil
}

func (d *RowDelta) Operation() string {
	return OpOverwrite
}

func (d *RowDelta) Validate(_ context.Context, base *table.TableMetadata, _ *table.Snapshot) error {
	if len(d.deleteFiles) > 0 && base.FormatVersion < 2 {
		return &icefloeerr.ValidationError{
			Operation: OpOverwrite,
			Reason:    "delete files require table format version 2 or later",
		}
	}
	return nil
}

func (d *RowDelta) Summary() map[string]string {
	return d.summary.Build()
}

func (d *RowDelta) Apply(ctx context.Context, base *table.TableMetadata, parent *table.Snapshot) ([]*table.ManifestFile, error) {
	seq := base.NextSequenceNumber()

	if d.newManifests == nil && (len(d.dataFiles) > 0 || len(d.deleteFiles) > 0) {
		dataManifests, err := d.WriteDataManifests(ctx, d.dataFiles, d.spec, seq, nil)
		if err != nil {
			return nil, err
		}
		deleteManifests, err := d.WriteDeleteManifests(ctx, d.deleteFiles, d.spec, seq)
		if err != nil {
			return nil, err
		}
		d.newManifests = append(dataManifests, deleteManifests...)
	}

	out := append([]*table.ManifestFile(nil), d.newManifests...)
	if parent != nil {
		carried, err := manifest.ReadList(ctx, d.ops.IO(), d.ops.Encryption(), parent.ManifestList)
		if err != nil {
			return nil, err
		}
		out = append(out, carried...)
	}
	return out, nil
}

func (d *RowDelta) CleanUncommitted(ctx context.Context, committed map[string]struct{}) {
	d.newManifests = d.cleanWritten(ctx, d.newManifests, committed)
}
