package commit

import (
	"context"
	"errors"
	"testing"

	"github.com/florinutz/icefloe/icefloeerr"
	"github.com/florinutz/icefloe/manifest"
	"github.com/florinutz/icefloe/table"
)

func TestOverwriteReplacesNamedFiles(t *testing.T) {
	ops := newFakeOps(testMetadata(2))
	mustAppend(t, ops, dataFile("data/a.parquet", 10), dataFile("data/b.parquet", 20))

	op := NewOverwrite(ops, "db.t")
	op.DeleteFilePath("data/a.parquet")
	if err := op.AddFile(dataFile("data/a2.parquet", 12)); err != nil {
		t.Fatalf("add file: %v", err)
	}
	snap, err := op.Commit(context.Background())
	if err != nil {
		t.Fatalf("commit overwrite: %v", err)
	}

	for k, want := range map[string]string{
		AddedRecordsProp:   "12",
		DeletedRecordsProp: "10",
		TotalRecordsProp:   "32",
		TotalDataFilesProp: "2",
	} {
		if got := snap.Summary[k]; got != want {
			t.Errorf("summary[%s] = %q, want %q", k, got, want)
		}
	}

	// The surviving file must still be live, the overwritten one gone.
	live := liveDataFiles(t, ops, snap)
	if _, ok := live["data/b.parquet"]; !ok {
		t.Errorf("data/b.parquet dropped by overwrite of data/a.parquet")
	}
	if _, ok := live["data/a.parquet"]; ok {
		t.Errorf("data/a.parquet still live after overwrite")
	}
	if _, ok := live["data/a2.parquet"]; !ok {
		t.Errorf("data/a2.parquet not live after overwrite")
	}
}

func TestOverwriteMissingFileFails(t *testing.T) {
	ops := newFakeOps(testMetadata(2))
	mustAppend(t, ops, dataFile("data/a.parquet", 10))

	op := NewOverwrite(ops, "db.t")
	op.DeleteFilePath("data/ghost.parquet")
	_, err := op.Commit(context.Background())
	var ve *icefloeerr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want validation error for missing file", err)
	}
}

func TestRowDeltaWritesDeleteManifests(t *testing.T) {
	ops := newFakeOps(testMetadata(2))
	mustAppend(t, ops, dataFile("data/a.parquet", 100))

	op := NewRowDelta(ops, "db.t")
	if err := op.AddRows(dataFile("data/new.parquet", 10)); err != nil {
		t.Fatalf("add rows: %v", err)
	}
	del := dataFile("deletes/d1.parquet", 4)
	del.Content = table.ContentPositionDeletes
	if err := op.AddDeletes(del); err != nil {
		t.Fatalf("add deletes: %v", err)
	}

	snap, err := op.Commit(context.Background())
	if err != nil {
		t.Fatalf("commit row delta: %v", err)
	}

	if snap.Operation != OpOverwrite {
		t.Errorf("operation = %q, want %q", snap.Operation, OpOverwrite)
	}
	for k, want := range map[string]string{
		AddedDeleteFilesProp: "1",
		AddedPosDeletesProp:  "4",
		TotalDeleteFilesProp: "1",
		TotalPosDeletesProp:  "4",
		TotalRecordsProp:     "110",
	} {
		if got := snap.Summary[k]; got != want {
			t.Errorf("summary[%s] = %q, want %q", k, got, want)
		}
	}

	manifests, err := manifest.ReadList(context.Background(), ops.IO(), ops.Encryption(), snap.ManifestList)
	if err != nil {
		t.Fatalf("read manifest list: %v", err)
	}
	var deletes int
	for _, mf := range manifests {
		if mf.Content == table.ManifestContentDeletes {
			deletes++
		}
	}
	if deletes != 1 {
		t.Errorf("delete manifests = %d, want 1", deletes)
	}
}

func TestRowDeltaRejectsDeletesOnV1(t *testing.T) {
	ops := newFakeOps(testMetadata(1))
	op := NewRowDelta(ops, "db.t")
	del := dataFile("deletes/d1.parquet", 1)
	del.Content = table.ContentEqualityDeletes
	if err := op.AddDeletes(del); err != nil {
		t.Fatalf("add deletes: %v", err)
	}
	_, err := op.Commit(context.Background())
	var ve *icefloeerr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want validation error on v1 table", err)
	}
}

func TestRewriteCompaction(t *testing.T) {
	ops := newFakeOps(testMetadata(2))
	mustAppend(t, ops, dataFile("data/a.parquet", 10), dataFile("data/b.parquet", 20))

	op := NewRewrite(ops, "db.t")
	if err := op.RewriteFiles([]string{"data/a.parquet", "data/b.parquet"},
		[]*table.DataFile{dataFile("data/compact.parquet", 30)}); err != nil {
		t.Fatalf("rewrite files: %v", err)
	}
	snap, err := op.Commit(context.Background())
	if err != nil {
		t.Fatalf("commit rewrite: %v", err)
	}

	if snap.Operation != OpReplace {
		t.Errorf("operation = %q, want %q", snap.Operation, OpReplace)
	}
	if got := snap.Summary[TotalRecordsProp]; got != "30" {
		t.Errorf("summary[%s] = %q, want 30", TotalRecordsProp, got)
	}
	live := liveDataFiles(t, ops, snap)
	if len(live) != 1 {
		t.Fatalf("live files = %d, want 1", len(live))
	}
	if _, ok := live["data/compact.parquet"]; !ok {
		t.Errorf("compacted file not live")
	}
}

func TestRewriteRequiresDeletes(t *testing.T) {
	ops := newFakeOps(testMetadata(2))
	mustAppend(t, ops, dataFile("data/a.parquet", 10))

	op := NewRewrite(ops, "db.t")
	_, err := op.Commit(context.Background())
	var ve *icefloeerr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

// liveDataFiles resolves the data files visible through a snapshot.
func liveDataFiles(t *testing.T, ops *fakeOps, snap *table.Snapshot) map[string]int64 {
	t.Helper()
	ctx := context.Background()
	manifests, err := manifest.ReadList(ctx, ops.IO(), ops.Encryption(), snap.ManifestList)
	if err != nil {
		t.Fatalf("read manifest list: %v", err)
	}
	out := map[string]int64{}
	for _, mf := range manifests {
		if mf.Content != table.ManifestContentData {
			continue
		}
		live, err := manifest.LiveFiles(ctx, ops.IO(), ops.Encryption(), mf)
		if err != nil {
			t.Fatalf("live files of %s: %v", mf.Path, err)
		}
		for _, lf := range live {
			out[lf.File.FilePath] = lf.File.RecordCount
		}
	}
	return out
}
