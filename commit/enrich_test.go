package commit

import (
	"context"
	"testing"

	"github.com/florinutz/icefloe/manifest"
	"github.com/florinutz/icefloe/table"
)

// writeRawManifest writes a manifest directly, bypassing the producer, so
// tests control entry statuses and snapshot ids precisely.
func writeRawManifest(t *testing.T, ops *fakeOps, path string, writerSnapshotID *int64, write func(w *manifest.Writer)) *table.ManifestFile {
	t.Helper()
	w, err := manifest.NewWriter(ops.IO(), ops.Encryption(), 2, table.UnpartitionedSpec(),
		table.ManifestContentData, path, writerSnapshotID, 1)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	write(w)
	if err := w.Close(context.Background()); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	mf := w.ToManifestFile()
	mf.SnapshotID = nil // force enrichment
	return mf
}

func TestEnrichInfersSnapshotIDFromAdded(t *testing.T) {
	ops := newFakeOps(testMetadata(2))
	op := NewAppend(ops, "db.t")

	owner := int64(888)
	mf := writeRawManifest(t, ops, "warehouse/db/t/metadata/raw1.avro", &owner, func(w *manifest.Writer) {
		if err := w.Existing(dataFile("data/old.parquet", 5), 77, 1); err != nil {
			t.Fatal(err)
		}
		if err := w.AddWithSequence(dataFile("data/new.parquet", 7), 2); err != nil {
			t.Fatal(err)
		}
	})
	enriched, err := op.withMetadata(context.Background(), mf)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}

	if enriched.AddedFilesCount != 1 || enriched.ExistingFiles != 1 || enriched.DeletedFiles != 0 {
		t.Errorf("counts = %d/%d/%d, want 1/1/0",
			enriched.AddedFilesCount, enriched.ExistingFiles, enriched.DeletedFiles)
	}
	if enriched.AddedRowsCount != 7 || enriched.ExistingRowsCount != 5 {
		t.Errorf("rows = %d/%d, want 7/5", enriched.AddedRowsCount, enriched.ExistingRowsCount)
	}
	if enriched.SnapshotID == nil || *enriched.SnapshotID != owner {
		t.Fatalf("snapshot id = %v, want %d (first added entry's owner)", enriched.SnapshotID, owner)
	}
}

func TestEnrichExistingOnlyUsesMaxSnapshotID(t *testing.T) {
	ops := newFakeOps(testMetadata(2))
	op := NewAppend(ops, "db.t")

	mf := writeRawManifest(t, ops, "warehouse/db/t/metadata/raw2.avro", nil, func(w *manifest.Writer) {
		if err := w.Existing(dataFile("data/a.parquet", 1), 11, 1); err != nil {
			t.Fatal(err)
		}
		if err := w.Existing(dataFile("data/b.parquet", 2), 99, 1); err != nil {
			t.Fatal(err)
		}
		if err := w.Existing(dataFile("data/c.parquet", 3), 40, 1); err != nil {
			t.Fatal(err)
		}
	})

	enriched, err := op.withMetadata(context.Background(), mf)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if enriched.SnapshotID == nil || *enriched.SnapshotID != 99 {
		t.Fatalf("snapshot id = %v, want 99 (max of existing entries)", enriched.SnapshotID)
	}
}

func TestEnrichIdentityWhenSnapshotIDSet(t *testing.T) {
	ops := newFakeOps(testMetadata(2))
	op := NewAppend(ops, "db.t")

	id := int64(123)
	mf := &table.ManifestFile{Path: "warehouse/db/t/metadata/never-read.avro", SnapshotID: &id}
	out, err := op.withMetadata(context.Background(), mf)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if out != mf {
		t.Fatalf("manifest with snapshot id should pass through unchanged")
	}
}

func TestEnrichCachedAcrossRetries(t *testing.T) {
	ops := newFakeOps(testMetadata(2))
	op := NewAppend(ops, "db.t")
	ctx := context.Background()

	mf := writeRawManifest(t, ops, "warehouse/db/t/metadata/raw3.avro", nil, func(w *manifest.Writer) {
		if err := w.Existing(dataFile("data/a.parquet", 1), 11, 1); err != nil {
			t.Fatal(err)
		}
	})

	first, err := op.withMetadata(ctx, mf)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}

	// Remove the underlying file: a second enrichment must come from the
	// cache, not a re-read.
	if err := ops.IO().Delete(ctx, mf.Path); err != nil {
		t.Fatalf("delete: %v", err)
	}
	second, err := op.withMetadata(ctx, mf)
	if err != nil {
		t.Fatalf("cached enrich: %v", err)
	}
	if first != second {
		t.Fatalf("enrichment was not memoized")
	}
}
