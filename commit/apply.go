package commit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/florinutz/icefloe/icefloeerr"
	"github.com/florinutz/icefloe/manifest"
	"github.com/florinutz/icefloe/metrics"
	"github.com/florinutz/icefloe/table"
)

// Apply runs one commit attempt up to (but not including) the metadata swap:
// refresh, validate, run the operation, enrich its manifests in parallel,
// write the manifest list, and assemble the candidate snapshot.
func (p *SnapshotProducer) Apply(ctx context.Context) (*table.Snapshot, error) {
	base, err := p.refresh(ctx)
	if err != nil {
		return nil, err
	}

	parent := base.BranchHead(p.targetBranch)
	var parentID *int64
	if parent != nil {
		id := parent.SnapshotID
		parentID = &id
	}
	sequenceNumber := base.NextSequenceNumber()

	if err := p.op.Validate(ctx, base, parent); err != nil {
		return nil, err
	}

	manifests, err := p.op.Apply(ctx, base, parent)
	if err != nil {
		return nil, err
	}

	listPath := p.manifestListPath()
	writer, err := manifest.NewListWriter(p.ops.IO(), p.ops.Encryption(), base.FormatVersion,
		listPath, p.SnapshotID(), parentID, sequenceNumber, base.NextRowID)
	if err != nil {
		return nil, err
	}

	// Track the list before writing so a failed attempt still gets cleaned.
	p.mu.Lock()
	p.manifestLists = append(p.manifestLists, listPath)
	p.mu.Unlock()

	enriched, err := p.enrichAll(ctx, manifests)
	if err != nil {
		return nil, err
	}

	for _, mf := range enriched {
		if err := writer.Append(p.retargetSequence(mf, sequenceNumber)); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(ctx); err != nil {
		return nil, err
	}
	metrics.ManifestListsWritten.Inc()

	var firstRowID, assignedRows *int64
	if base.FormatVersion >= 3 {
		first := base.NextRowID
		assigned := writer.NextRowID() - base.NextRowID
		if assigned < 0 {
			return nil, &icefloeerr.ValidationError{
				Operation: p.op.Operation(),
				Reason:    fmt.Sprintf("assigned rows must be non-negative, got %d", assigned),
			}
		}
		firstRowID = &first
		assignedRows = &assigned
	}

	delta := p.op.Summary()
	operation := p.op.Operation()

	if delta != nil && operation == OpReplace {
		added := propertyAsInt64(delta, AddedRecordsProp)
		replaced := propertyAsInt64(delta, DeletedRecordsProp)
		// added may legitimately be lower when records were already removed
		// by delete files; it can never be higher.
		if added > replaced {
			return nil, &icefloeerr.ValidationError{
				Operation: operation,
				Reason:    fmt.Sprintf("%d added records > %d replaced records", added, replaced),
			}
		}
	}

	return &table.Snapshot{
		SnapshotID:       p.SnapshotID(),
		ParentSnapshotID: parentID,
		SequenceNumber:   sequenceNumber,
		TimestampMS:      time.Now().UnixMilli(),
		Operation:        operation,
		Summary:          p.summary(base),
		SchemaID:         base.CurrentSchemaID,
		ManifestList:     listPath,
		FirstRowID:       firstRowID,
		AddedRows:        assignedRows,
	}, nil
}

// summary aggregates the producer delta with the previous totals on the
// target branch.
func (p *SnapshotProducer) summary(previous *table.TableMetadata) map[string]string {
	var prevSummary map[string]string
	if head := previous.BranchHead(p.targetBranch); head != nil {
		prevSummary = head.Summary
		if prevSummary == nil {
			prevSummary = map[string]string{}
		}
	} else {
		prevSummary = zeroTotals()
	}
	return aggregateSummary(p.op.Summary(), prevSummary, p.env)
}

// retargetSequence re-stamps a producer-owned manifest with the current
// attempt's sequence number. Manifests reused across retries were written
// with an earlier sequence; carried-forward manifests from other snapshots
// keep theirs.
func (p *SnapshotProducer) retargetSequence(mf *table.ManifestFile, seq int64) *table.ManifestFile {
	owned := mf.SnapshotID == nil || *mf.SnapshotID == p.SnapshotID()
	if !owned || mf.SequenceNumber == seq {
		return mf
	}
	out := *mf
	if out.MinSequenceNumber == out.SequenceNumber {
		out.MinSequenceNumber = seq
	}
	out.SequenceNumber = seq
	return &out
}

func propertyAsInt64(props map[string]string, key string) int64 {
	v, ok := props[key]
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
