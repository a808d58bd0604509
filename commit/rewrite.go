package commit

import (
	"context"
	"fmt"
	"sort"

	"github.com/florinutz/icefloe/icefloeerr"
	"github.com/florinutz/icefloe/table"
)

// Rewrite compacts the table: it replaces specific data files with new ones
// holding the same records (snapshots produced this way use the replace
// operation, so the added-records bound applies).
type Rewrite struct {
	*SnapshotProducer

	spec        table.PartitionSpec
	addedFiles  []*table.DataFile
	deletePaths map[string]struct{}

	summary      *SummaryBuilder
	newManifests []*table.ManifestFile
	written      []*table.ManifestFile
}

// NewRewrite creates a rewrite (compaction) operation against the table.
func NewRewrite(ops table.Operations, tableName string) *Rewrite {
	r := &Rewrite{
		deletePaths: map[string]struct{}{},
		summary:     NewSummaryBuilder(),
	}
	r.SnapshotProducer = newSnapshotProducer(ops, r, tableName)
	r.spec = ops.Current().DefaultSpec()
	return r
}

// RewriteFiles schedules the swap: deletePaths are removed, addedFiles take
// their place.
func (r *Rewrite) RewriteFiles(deletePaths []string, addedFiles []*table.DataFile) error {
	for _, f := range addedFiles {
		if f.IsDeleteFile() {
			return &icefloeerr.ValidationError{Operation: OpReplace, Reason: "cannot rewrite to a delete file"}
		}
	}
	for _, path := range deletePaths {
		r.deletePaths[path] = struct{}{}
	}
	r.addedFiles = append(r.addedFiles, addedFiles...)
	return nil
}

func (r *Rewrite) Operation() string {
	return OpReplace
}

func (r *Rewrite) Validate(_ context.Context, _ *table.TableMetadata, parent *table.Snapshot) error {
	if len(r.deletePaths) == 0 {
		return &icefloeerr.ValidationError{Operation: OpReplace, Reason: "rewrite requires files to delete"}
	}
	if parent == nil {
		return &icefloeerr.ValidationError{Operation: OpReplace, Reason: "cannot rewrite files in an empty table"}
	}
	return nil
}

func (r *Rewrite) Summary() map[string]string {
	return r.summary.Build()
}

func (r *Rewrite) Apply(ctx context.Context, base *table.TableMetadata, parent *table.Snapshot) ([]*table.ManifestFile, error) {
	seq := base.NextSequenceNumber()

	r.summary.Clear()
	for _, f := range r.addedFiles {
		r.summary.AddFile(f)
	}

	if r.newManifests == nil && len(r.addedFiles) > 0 {
		written, err := r.WriteDataManifests(ctx, r.addedFiles, r.spec, seq, nil)
		if err != nil {
			return nil, err
		}
		r.newManifests = written
	}

	res, err := r.filterParentManifests(ctx, base, parent, seq, r.deletePaths, false, r.summary)
	if err != nil {
		return nil, err
	}
	if len(res.missing) > 0 {
		sort.Strings(res.missing)
		return nil, &icefloeerr.ValidationError{
			Operation: OpReplace,
			Reason:    fmt.Sprintf("files to rewrite are not live in the table: %v", res.missing),
		}
	}
	r.written = append(r.written, res.written...)

	out := append([]*table.ManifestFile(nil), r.newManifests...)
	out = append(out, res.manifests...)
	return out, nil
}

func (r *Rewrite) CleanUncommitted(ctx context.Context, committed map[string]struct{}) {
	r.newManifests = r.cleanWritten(ctx, r.newManifests, committed)
	r.written = r.cleanWritten(ctx, r.written, committed)
}
