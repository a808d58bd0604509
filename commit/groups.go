package commit

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/florinutz/icefloe/metrics"
	"github.com/florinutz/icefloe/table"
)

// MinFileGroupSize is the smallest file count worth a dedicated manifest
// writer; below it, extra parallelism only produces tiny manifests.
const MinFileGroupSize = 10_000

// WriteDataManifests writes the files as data manifests, in parallel groups
// when the collection is large enough. dataSeq pins all entries to an
// explicit data sequence number; when nil, entries inherit the commit's.
func (p *SnapshotProducer) WriteDataManifests(ctx context.Context, files []*table.DataFile, spec table.PartitionSpec, sequenceNumber int64, dataSeq *int64) ([]*table.ManifestFile, error) {
	return p.writeManifestGroups(ctx, files, func(ctx context.Context, group []*table.DataFile) ([]*table.ManifestFile, error) {
		w := p.NewRollingManifestWriter(spec, sequenceNumber)
		for _, f := range group {
			var err error
			if dataSeq != nil {
				err = w.AddWithSequence(ctx, f, *dataSeq)
			} else {
				err = w.Add(ctx, f)
			}
			if err != nil {
				return nil, err
			}
		}
		if err := w.Close(ctx); err != nil {
			return nil, err
		}
		return w.ToManifestFiles(), nil
	})
}

// WriteDeleteManifests writes delete files as delete manifests. Files
// carrying their own data sequence number keep it.
func (p *SnapshotProducer) WriteDeleteManifests(ctx context.Context, files []*table.DataFile, spec table.PartitionSpec, sequenceNumber int64) ([]*table.ManifestFile, error) {
	return p.writeManifestGroups(ctx, files, func(ctx context.Context, group []*table.DataFile) ([]*table.ManifestFile, error) {
		w := p.NewRollingDeleteManifestWriter(spec, sequenceNumber)
		for _, f := range group {
			var err error
			if f.DataSequenceNumber != nil {
				err = w.AddWithSequence(ctx, f, *f.DataSequenceNumber)
			} else {
				err = w.Add(ctx, f)
			}
			if err != nil {
				return nil, err
			}
		}
		if err := w.Close(ctx); err != nil {
			return nil, err
		}
		return w.ToManifestFiles(), nil
	})
}

// writeManifestGroups partitions the files into contiguous groups, writes
// each group on the worker pool, and concatenates the results in group
// order, so output order always matches input order. The first failure
// cancels the remaining groups.
func (p *SnapshotProducer) writeManifestGroups(ctx context.Context, files []*table.DataFile, write func(context.Context, []*table.DataFile) ([]*table.ManifestFile, error)) ([]*table.ManifestFile, error) {
	if len(files) == 0 {
		return nil, nil
	}

	groups := divide(files, manifestWriterCount(p.workerPoolSize, len(files)))
	results := make([][]*table.ManifestFile, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workerPoolSize)
	for i, group := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := write(gctx, group)
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

	var out []*table.ManifestFile
	for _, r := range results {
		out = append(out, r...)
	}
	metrics.ManifestsWritten.Add(float64(len(out)))
	return out, nil
}

// manifestWriterCount computes how many writers can run concurrently for the
// given file count without producing too-small manifests:
//
//	max(1, min(poolSize, ceil(fileCount / MinFileGroupSize)))
func manifestWriterCount(poolSize, fileCount int) int {
	limit := (fileCount + MinFileGroupSize - 1) / MinFileGroupSize
	if limit < 1 {
		limit = 1
	}
	if poolSize < limit {
		limit = poolSize
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// divide splits files into groupCount contiguous groups of ceil(n/groups)
// elements.
func divide(files []*table.DataFile, groupCount int) [][]*table.DataFile {
	groupSize := (len(files) + groupCount - 1) / groupCount
	var groups [][]*table.DataFile
	for start := 0; start < len(files); start += groupSize {
		end := start + groupSize
		if end > len(files) {
			end = len(files)
		}
		groups = append(groups, files[start:end])
	}
	return groups
}
