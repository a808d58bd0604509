package manifest

import (
	"context"
	"fmt"
	"testing"

	"github.com/florinutz/icefloe/storage"
	"github.com/florinutz/icefloe/table"
)

var plaintext = table.PlaintextEncryption{}

func testFile(path string, rows int64) *table.DataFile {
	return &table.DataFile{
		Content:       table.ContentData,
		FilePath:      path,
		FileFormat:    "PARQUET",
		RecordCount:   rows,
		FileSizeBytes: rows * 8,
		Partition:     map[string]string{"day": "2026-08-05"},
	}
}

func TestWriterRoundtrip(t *testing.T) {
	ctx := context.Background()
	io := storage.NewMemory()
	owner := int64(42)

	w, err := NewWriter(io, plaintext, 2, table.UnpartitionedSpec(), table.ManifestContentData,
		"metadata/m0.avro", &owner, 3)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.Add(testFile("data/new.parquet", 10)); err != nil {
		t.Fatal(err)
	}
	if err := w.Existing(testFile("data/old.parquet", 5), 7, 1); err != nil {
		t.Fatal(err)
	}
	if err := w.Delete(testFile("data/gone.parquet", 3), 7, 2); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	mf := w.ToManifestFile()
	if mf.AddedFilesCount != 1 || mf.ExistingFiles != 1 || mf.DeletedFiles != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", mf.AddedFilesCount, mf.ExistingFiles, mf.DeletedFiles)
	}
	if mf.SequenceNumber != 3 {
		t.Errorf("sequence = %d, want 3", mf.SequenceNumber)
	}
	if mf.MinSequenceNumber != 1 {
		t.Errorf("min sequence = %d, want 1 (lowest explicit entry)", mf.MinSequenceNumber)
	}
	if mf.Length <= 0 {
		t.Errorf("length = %d, want > 0", mf.Length)
	}

	entries, err := ReadEntries(ctx, io, plaintext, mf)
	if err != nil {
		t.Fatalf("read entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}

	added := entries[0]
	if added.Status != table.EntryAdded {
		t.Errorf("entry 0 status = %d, want ADDED", added.Status)
	}
	if added.SequenceNumber != nil {
		t.Errorf("added entry sequence = %v, want nil (inherited)", *added.SequenceNumber)
	}
	if added.SnapshotID == nil || *added.SnapshotID != owner {
		t.Errorf("added entry snapshot id = %v, want %d", added.SnapshotID, owner)
	}
	if added.File.Partition["day"] != "2026-08-05" {
		t.Errorf("partition lost in roundtrip: %v", added.File.Partition)
	}

	deleted := entries[2]
	if deleted.Status != table.EntryDeleted {
		t.Errorf("entry 2 status = %d, want DELETED", deleted.Status)
	}
	if deleted.SequenceNumber == nil || *deleted.SequenceNumber != 2 {
		t.Errorf("deleted entry sequence = %v, want 2", deleted.SequenceNumber)
	}
}

func TestRollingWriterRollsAtTarget(t *testing.T) {
	ctx := context.Background()
	io := storage.NewMemory()

	n := 0
	factory := func() (*Writer, error) {
		n++
		return NewWriter(io, plaintext, 2, table.UnpartitionedSpec(), table.ManifestContentData,
			fmt.Sprintf("metadata/m%d.avro", n), nil, 1)
	}

	// A 1-byte target forces a roll before every add after the first.
	rw := NewRollingWriter(factory, 1)
	for i := 0; i < 4; i++ {
		if err := rw.Add(ctx, testFile(fmt.Sprintf("data/f%d.parquet", i), 1)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := rw.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	files := rw.ToManifestFiles()
	if len(files) != 4 {
		t.Fatalf("manifests = %d, want 4 (one per entry at a 1-byte target)", len(files))
	}
	for i, mf := range files {
		if want := fmt.Sprintf("metadata/m%d.avro", i+1); mf.Path != want {
			t.Errorf("manifest[%d] = %s, want %s (append order)", i, mf.Path, want)
		}
		if mf.AddedFilesCount != 1 {
			t.Errorf("manifest[%d] added files = %d, want 1", i, mf.AddedFilesCount)
		}
	}
}

func TestRollingWriterLargeTargetKeepsOneManifest(t *testing.T) {
	ctx := context.Background()
	io := storage.NewMemory()

	factory := func() (*Writer, error) {
		return NewWriter(io, plaintext, 2, table.UnpartitionedSpec(), table.ManifestContentData,
			"metadata/m0.avro", nil, 1)
	}

	rw := NewRollingWriter(factory, 8*1024*1024)
	for i := 0; i < 100; i++ {
		if err := rw.Add(ctx, testFile(fmt.Sprintf("data/f%d.parquet", i), 1)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := rw.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(rw.ToManifestFiles()); got != 1 {
		t.Fatalf("manifests = %d, want 1", got)
	}
}

func TestListWriterRoundtrip(t *testing.T) {
	ctx := context.Background()
	io := storage.NewMemory()
	owner := int64(9)

	w, err := NewListWriter(io, plaintext, 2, "metadata/snap-9-1-u.avro", 9, nil, 4, 0)
	if err != nil {
		t.Fatalf("new list writer: %v", err)
	}
	in := []*table.ManifestFile{
		{Path: "metadata/m0.avro", Length: 100, Content: table.ManifestContentData, SequenceNumber: 4, MinSequenceNumber: 4, SnapshotID: &owner, AddedFilesCount: 2, AddedRowsCount: 20},
		{Path: "metadata/m1.avro", Length: 50, Content: table.ManifestContentDeletes, SequenceNumber: 4, MinSequenceNumber: 4, SnapshotID: &owner, AddedFilesCount: 1, AddedRowsCount: 5},
	}
	if err := w.AddAll(in); err != nil {
		t.Fatalf("add all: %v", err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	out, err := ReadList(ctx, io, plaintext, "metadata/snap-9-1-u.avro")
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("entries = %d, want 2", len(out))
	}
	if out[0].Path != "metadata/m0.avro" || out[1].Path != "metadata/m1.avro" {
		t.Errorf("order lost in roundtrip: %s, %s", out[0].Path, out[1].Path)
	}
	if out[0].SnapshotID == nil || *out[0].SnapshotID != owner {
		t.Errorf("snapshot id lost: %v", out[0].SnapshotID)
	}
	if out[1].Content != table.ManifestContentDeletes {
		t.Errorf("content kind lost: %d", out[1].Content)
	}
}

func TestListWriterAssignsRowIDsOnV3(t *testing.T) {
	ctx := context.Background()
	io := storage.NewMemory()
	owner := int64(9)

	w, err := NewListWriter(io, plaintext, 3, "metadata/snap-9-1-u.avro", 9, nil, 4, 1000)
	if err != nil {
		t.Fatalf("new list writer: %v", err)
	}

	assigned := int64(500)
	in := []*table.ManifestFile{
		{Path: "metadata/m0.avro", Content: table.ManifestContentData, SnapshotID: &owner, AddedRowsCount: 20},
		{Path: "metadata/del.avro", Content: table.ManifestContentDeletes, SnapshotID: &owner, AddedRowsCount: 5},
		{Path: "metadata/m1.avro", Content: table.ManifestContentData, SnapshotID: &owner, AddedRowsCount: 30},
		{Path: "metadata/old.avro", Content: table.ManifestContentData, SnapshotID: &owner, AddedRowsCount: 10, FirstRowID: &assigned},
	}
	if err := w.AddAll(in); err != nil {
		t.Fatalf("add all: %v", err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Row ids advance monotonically across data manifests; delete manifests
	// and manifests with ids already assigned do not consume the counter.
	if got := w.NextRowID(); got != 1050 {
		t.Fatalf("next row id = %d, want 1050", got)
	}

	out, err := ReadList(ctx, io, plaintext, "metadata/snap-9-1-u.avro")
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	if out[0].FirstRowID == nil || *out[0].FirstRowID != 1000 {
		t.Errorf("manifest 0 first row id = %v, want 1000", out[0].FirstRowID)
	}
	if out[1].FirstRowID != nil {
		t.Errorf("delete manifest got a first row id: %v", *out[1].FirstRowID)
	}
	if out[2].FirstRowID == nil || *out[2].FirstRowID != 1020 {
		t.Errorf("manifest 2 first row id = %v, want 1020", out[2].FirstRowID)
	}
	if out[3].FirstRowID == nil || *out[3].FirstRowID != 500 {
		t.Errorf("carried manifest first row id = %v, want 500 (untouched)", out[3].FirstRowID)
	}
}
