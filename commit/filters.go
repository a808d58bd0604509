package commit

import (
	"context"

	"github.com/florinutz/icefloe/manifest"
	"github.com/florinutz/icefloe/metrics"
	"github.com/florinutz/icefloe/table"
)

// rewriteResult is the outcome of filtering a parent snapshot's manifests
// against a set of file paths to remove.
type rewriteResult struct {
	// manifests is the full list for the new snapshot: rewritten manifests
	// where files were dropped, untouched ones carried forward.
	manifests []*table.ManifestFile

	// written are the manifests this filter pass created; they are
	// uncommitted until the snapshot lands.
	written []*table.ManifestFile

	// missing are requested paths that no live entry matched.
	missing []string
}

// filterParentManifests walks the parent's data manifests, rewriting any
// manifest that still tracks a path in deletePaths: surviving files become
// EXISTING entries, dropped ones DELETED entries. Delete manifests are
// carried forward unchanged. With deleteAll set, every live file (data and
// delete alike) is dropped instead.
func (p *SnapshotProducer) filterParentManifests(ctx context.Context, base *table.TableMetadata, parent *table.Snapshot, seq int64, deletePaths map[string]struct{}, deleteAll bool, summary *SummaryBuilder) (*rewriteResult, error) {
	res := &rewriteResult{}
	if parent == nil {
		for path := range deletePaths {
			res.missing = append(res.missing, path)
		}
		return res, nil
	}

	remaining := make(map[string]struct{}, len(deletePaths))
	for path := range deletePaths {
		remaining[path] = struct{}{}
	}

	parentManifests, err := manifest.ReadList(ctx, p.ops.IO(), p.ops.Encryption(), parent.ManifestList)
	if err != nil {
		return nil, err
	}

	for _, mf := range parentManifests {
		if mf.Content == table.ManifestContentDeletes && !deleteAll {
			res.manifests = append(res.manifests, mf)
			continue
		}

		live, err := manifest.LiveFiles(ctx, p.ops.IO(), p.ops.Encryption(), mf)
		if err != nil {
			return nil, err
		}

		drops := 0
		for _, lf := range live {
			if deleteAll {
				drops++
				continue
			}
			if _, ok := remaining[lf.File.FilePath]; ok {
				drops++
			}
		}
		if drops == 0 {
			res.manifests = append(res.manifests, mf)
			continue
		}

		spec, ok := base.SpecByID(mf.SpecID)
		if !ok {
			spec = table.UnpartitionedSpec()
		}
		var w *manifest.Writer
		if mf.Content == table.ManifestContentDeletes {
			w, err = p.NewDeleteManifestWriter(spec, seq)
		} else {
			w, err = p.NewManifestWriter(spec, seq)
		}
		if err != nil {
			return nil, err
		}

		for _, lf := range live {
			f := lf.File
			drop := deleteAll
			if !drop {
				_, drop = remaining[f.FilePath]
			}
			if drop {
				if err := w.Delete(&f, lf.SnapshotID, lf.SequenceNumber); err != nil {
					return nil, err
				}
				summary.RemoveFile(&f)
				delete(remaining, f.FilePath)
			} else {
				if err := w.Existing(&f, lf.SnapshotID, lf.SequenceNumber); err != nil {
					return nil, err
				}
			}
		}
		if err := w.Close(ctx); err != nil {
			return nil, err
		}
		metrics.ManifestsWritten.Inc()
		rewritten := w.ToManifestFile()
		res.manifests = append(res.manifests, rewritten)
		res.written = append(res.written, rewritten)
	}

	for path := range remaining {
		res.missing = append(res.missing, path)
	}
	return res, nil
}

// cleanWritten deletes uncommitted manifests from the given set, returning
// the ones that committed.
func (p *SnapshotProducer) cleanWritten(ctx context.Context, written []*table.ManifestFile, committed map[string]struct{}) []*table.ManifestFile {
	var kept []*table.ManifestFile
	for _, mf := range written {
		if _, ok := committed[mf.Path]; ok {
			kept = append(kept, mf)
		} else {
			p.deleteFile(ctx, mf.Path)
		}
	}
	return kept
}
