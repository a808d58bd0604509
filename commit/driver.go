package commit

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/florinutz/icefloe/events"
	"github.com/florinutz/icefloe/icefloeerr"
	"github.com/florinutz/icefloe/internal/backoff"
	"github.com/florinutz/icefloe/manifest"
	"github.com/florinutz/icefloe/metrics"
	"github.com/florinutz/icefloe/table"
)

// Commit runs the optimistic-concurrency loop for one logical commit and
// returns the snapshot it installed: the new head of the target branch, or
// the staged snapshot for a stage-only commit. Only commit
// conflicts are retried; unknown-state errors pass through untouched so the
// caller can reconcile out of band; every other terminal error triggers
// cleanup of the attempts' uncommitted files (unless strict cleanup forbids
// it).
func (p *SnapshotProducer) Commit(ctx context.Context) (*table.Snapshot, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "icefloe.commit",
		trace.WithAttributes(attribute.String("operation", p.op.Operation())))
	defer span.End()

	maxRetries := p.base.PropertyAsInt(table.CommitNumRetries, table.CommitNumRetriesDefault)
	minWait := time.Duration(p.base.PropertyAsInt64(table.CommitMinRetryWaitMS, table.CommitMinRetryWaitMSDefault)) * time.Millisecond
	maxWait := time.Duration(p.base.PropertyAsInt64(table.CommitMaxRetryWaitMS, table.CommitMaxRetryWaitMSDefault)) * time.Millisecond
	totalBudget := time.Duration(p.base.PropertyAsInt64(table.CommitTotalRetryTimeMS, table.CommitTotalRetryTimeMSDefault)) * time.Millisecond

	var committed *table.Snapshot
	var changed bool
	var err error
	var slept time.Duration
	attempts := 0

	for {
		attempts++
		metrics.CommitAttempts.Inc()

		_, attemptSpan := p.tracer.Start(ctx, "icefloe.commit.attempt",
			trace.WithAttributes(attribute.Int("attempt", attempts)))
		committed, changed, err = p.tryCommit(ctx)
		attemptSpan.End()

		if err == nil {
			break
		}
		if !icefloeerr.IsCommitFailed(err) {
			break
		}
		if attempts > maxRetries {
			break
		}
		delay := backoff.Delay(attempts-1, minWait, maxWait, 2.0)
		if slept+delay > totalBudget {
			break
		}
		p.logger.Warn("commit conflict, retrying",
			"operation", p.op.Operation(),
			"attempt", attempts,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(delay):
			slept += delay
			continue
		}
		break
	}

	duration := time.Since(start)
	metrics.CommitDuration.Observe(duration.Seconds())

	if err != nil {
		metrics.Commits.WithLabelValues(p.op.Operation(), "failure").Inc()
		if icefloeerr.IsCommitStateUnknown(err) {
			// The commit may have gone through; deleting anything now could
			// corrupt the table. Surface verbatim.
			return nil, err
		}
		if !p.strictCleanup || isCleanableFailure(err) {
			p.cleanAll(ctx)
		}
		return nil, err
	}

	metrics.Commits.WithLabelValues(p.op.Operation(), "success").Inc()
	p.logger.Info("committed snapshot",
		"operation", p.op.Operation(),
		"snapshot_id", committed.SnapshotID,
		"sequence_number", committed.SequenceNumber,
		"attempts", attempts,
	)

	p.postCommitCleanup(ctx, committed)

	if changed {
		p.notifyListeners(committed, attempts, duration)
	}
	return committed, nil
}

// tryCommit runs one attempt. The returned snapshot is the candidate (set as
// the branch head, or only added when stage-only), or the pre-existing
// snapshot the branch is moved to when the candidate's id already exists
// (rollback). changed is false when the
// metadata would be identical and the CAS was skipped.
func (p *SnapshotProducer) tryCommit(ctx context.Context) (*table.Snapshot, bool, error) {
	snap, err := p.Apply(ctx)
	if err != nil {
		return nil, false, err
	}

	committed := snap
	b := table.BuildFrom(p.base)
	if existing := p.base.Snapshot(snap.SnapshotID); existing != nil {
		// Rollback: reuse the existing snapshot on the target branch.
		b.SetBranchSnapshotID(snap.SnapshotID, p.targetBranch)
		committed = existing
	} else if p.stageOnly {
		b.AddSnapshot(snap)
	} else {
		b.SetBranchSnapshot(snap, p.targetBranch)
	}

	if len(b.Changes()) == 0 {
		// Nothing effectively changed (e.g. rolling back to the snapshot the
		// branch already points at). Skip the CAS silently.
		return committed, false, nil
	}

	// A missing table UUID is minted fresh on every attempt so a concurrent
	// assignment cannot fail us.
	if err := p.ops.Commit(ctx, p.base, b.Build().WithUUID()); err != nil {
		return nil, false, err
	}
	return committed, true, nil
}

// postCommitCleanup drops this producer's uncommitted manifests and the
// manifest lists of failed attempts. Errors never fail the commit.
func (p *SnapshotProducer) postCommitCleanup(ctx context.Context, committed *table.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("post-commit cleanup panicked, skipping further cleanup", "panic", r)
		}
	}()

	if c, ok := p.op.(cleanupPolicy); !ok || c.CleanupAfterCommit() {
		committedSet := map[string]struct{}{}
		manifests, err := manifest.ReadList(ctx, p.ops.IO(), p.ops.Encryption(), committed.ManifestList)
		if err != nil {
			p.logger.Warn("failed to load committed manifest list, skipping further cleanup", "error", err)
			return
		}
		for _, mf := range manifests {
			committedSet[mf.Path] = struct{}{}
		}
		p.op.CleanUncommitted(ctx, committedSet)
	}

	p.mu.Lock()
	lists := append([]string(nil), p.manifestLists...)
	p.mu.Unlock()
	for _, path := range lists {
		if path != committed.ManifestList {
			p.deleteFile(ctx, path)
			metrics.OrphansDeleted.Inc()
		}
	}
}

// notifyListeners broadcasts the update event and hands the commit report to
// the reporter. Errors are logged and dropped.
func (p *SnapshotProducer) notifyListeners(committed *table.Snapshot, attempts int, duration time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("failed to notify listeners", "panic", r)
		}
	}()

	var event any
	if ep, ok := p.op.(eventProducer); ok {
		event = ep.UpdateEvent(committed)
	} else {
		event = events.CreateSnapshotEvent{
			TableName:      p.tableName,
			Operation:      committed.Operation,
			SnapshotID:     committed.SnapshotID,
			SequenceNumber: committed.SequenceNumber,
			Summary:        committed.Summary,
		}
	}
	if event == nil {
		return
	}
	events.Notify(event)

	if cse, ok := event.(events.CreateSnapshotEvent); ok {
		p.reporter.Report(events.CommitReport{
			TableName:      cse.TableName,
			SnapshotID:     cse.SnapshotID,
			Operation:      cse.Operation,
			SequenceNumber: cse.SequenceNumber,
			Metadata:       p.env,
			Metrics: events.CommitMetrics{
				Attempts:        attempts,
				TotalDurationMS: duration.Milliseconds(),
			},
		})
	}
}

// isCleanableFailure reports whether the error is safe to clean up after
// even under strict cleanup: the commit definitively did not happen.
func isCleanableFailure(err error) bool {
	if icefloeerr.IsCommitFailed(err) {
		return true
	}
	var ve *icefloeerr.ValidationError
	return errors.As(err, &ve)
}
