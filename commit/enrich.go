package commit

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/florinutz/icefloe/manifest"
	"github.com/florinutz/icefloe/table"
)

// enrichAll resolves owner attribution and statistics for every manifest,
// in parallel on the worker pool. Output order matches input order.
func (p *SnapshotProducer) enrichAll(ctx context.Context, manifests []*table.ManifestFile) ([]*table.ManifestFile, error) {
	results := make([]*table.ManifestFile, len(manifests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workerPoolSize)
	for i, mf := range manifests {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := p.withMetadata(gctx, mf)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// withMetadata enriches one manifest, memoizing per producer instance so
// retries do not re-read manifests. Manifests that already carry their owner
// snapshot id pass through unchanged.
func (p *SnapshotProducer) withMetadata(ctx context.Context, mf *table.ManifestFile) (*table.ManifestFile, error) {
	if mf.SnapshotID != nil {
		return mf, nil
	}
	if cached, ok := p.enrichCache.Load(mf.Path); ok {
		return cached.(*table.ManifestFile), nil
	}
	enriched, err := p.enrich(ctx, mf)
	if err != nil {
		return nil, err
	}
	actual, _ := p.enrichCache.LoadOrStore(mf.Path, enriched)
	return actual.(*table.ManifestFile), nil
}

// enrich re-reads a manifest's entries to compute file and row counts,
// per-partition summaries, and the owning snapshot id. The inferred id is
// the first ADDED or DELETED entry's snapshot id; a manifest of only
// EXISTING entries falls back to the largest id it contains.
func (p *SnapshotProducer) enrich(ctx context.Context, mf *table.ManifestFile) (*table.ManifestFile, error) {
	entries, err := manifest.ReadEntries(ctx, p.ops.IO(), p.ops.Encryption(), mf)
	if err != nil {
		return nil, err
	}

	spec, ok := p.base.SpecByID(mf.SpecID)
	if !ok {
		spec = table.UnpartitionedSpec()
	}
	stats := manifest.NewPartitionSummary(spec)

	var addedFiles, existingFiles, deletedFiles int
	var addedRows, existingRows, deletedRows int64
	var snapshotID *int64
	maxSnapshotID := int64(math.MinInt64)

	for _, e := range entries {
		if e.SnapshotID != nil && *e.SnapshotID > maxSnapshotID {
			maxSnapshotID = *e.SnapshotID
		}
		switch e.Status {
		case table.EntryAdded:
			addedFiles++
			addedRows += e.File.RecordCount
			if snapshotID == nil {
				snapshotID = e.SnapshotID
			}
		case table.EntryExisting:
			existingFiles++
			existingRows += e.File.RecordCount
		case table.EntryDeleted:
			deletedFiles++
			deletedRows += e.File.RecordCount
			if snapshotID == nil {
				snapshotID = e.SnapshotID
			}
		}
		stats.Update(e.File.Partition)
	}

	if snapshotID == nil && maxSnapshotID != math.MinInt64 {
		snapshotID = &maxSnapshotID
	}
	if snapshotID == nil {
		// Empty manifest or entries deferring to snapshot inheritance: it
		// belongs to this commit.
		id := p.SnapshotID()
		snapshotID = &id
	}

	out := *mf
	out.SnapshotID = snapshotID
	out.AddedFilesCount = addedFiles
	out.ExistingFiles = existingFiles
	out.DeletedFiles = deletedFiles
	out.AddedRowsCount = addedRows
	out.ExistingRowsCount = existingRows
	out.DeletedRowsCount = deletedRows
	out.Partitions = stats.Summaries()
	return &out, nil
}
