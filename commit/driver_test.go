package commit

import (
	"context"
	"testing"

	"github.com/florinutz/icefloe/events"
	"github.com/florinutz/icefloe/icefloeerr"
	"github.com/florinutz/icefloe/table"
)

type captureReporter struct {
	reports []events.CommitReport
}

func (r *captureReporter) Report(report events.CommitReport) {
	r.reports = append(r.reports, report)
}

func TestCommitReportEmitted(t *testing.T) {
	meta := testMetadata(2)
	meta.Properties[table.CommitNumRetries] = "2"
	ops := newFakeOps(meta)
	ops.commitErrs = []error{&icefloeerr.CommitFailedError{Location: "db.t"}, nil}

	rep := &captureReporter{}
	op := NewAppend(ops, "db.t")
	op.ReportWith(rep)
	op.SetEnvironment(map[string]string{"engine-name": "icefloe"})
	if err := op.AppendFile(dataFile("data/a.parquet", 3)); err != nil {
		t.Fatalf("append file: %v", err)
	}

	snap, err := op.Commit(context.Background())
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	if len(rep.reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(rep.reports))
	}
	report := rep.reports[0]
	if report.TableName != "db.t" {
		t.Errorf("table = %q, want db.t", report.TableName)
	}
	if report.SnapshotID != snap.SnapshotID {
		t.Errorf("snapshot id = %d, want %d", report.SnapshotID, snap.SnapshotID)
	}
	if report.Operation != OpAppend {
		t.Errorf("operation = %q, want %q", report.Operation, OpAppend)
	}
	if report.SequenceNumber != snap.SequenceNumber {
		t.Errorf("sequence = %d, want %d", report.SequenceNumber, snap.SequenceNumber)
	}
	if report.Metrics.Attempts != 2 {
		t.Errorf("attempts = %d, want 2 (one conflict, one success)", report.Metrics.Attempts)
	}
	if report.Metadata["engine-name"] != "icefloe" {
		t.Errorf("environment metadata missing from report")
	}
	if snap.Summary["engine-name"] != "icefloe" {
		t.Errorf("environment metadata missing from summary")
	}
}

func TestNoReportOnNoopCommit(t *testing.T) {
	ops := newFakeOps(testMetadata(2))
	snapA := mustAppend(t, ops, dataFile("data/a.parquet", 1))

	rep := &captureReporter{}
	op := NewRollbackTo(ops, "db.t", snapA.SnapshotID)
	op.ReportWith(rep)
	if _, err := op.Commit(context.Background()); err != nil {
		t.Fatalf("noop rollback: %v", err)
	}
	if len(rep.reports) != 0 {
		t.Fatalf("reports = %d, want 0 for a no-op commit", len(rep.reports))
	}
}
