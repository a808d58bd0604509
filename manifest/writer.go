package manifest

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/hamba/avro/v2/ocf"

	"github.com/florinutz/icefloe/storage"
	"github.com/florinutz/icefloe/table"
)

// Writer serializes manifest entries for one output file. Entries are Avro
// OCF rows; the file is stored (after encryption) on Close.
type Writer struct {
	io      storage.Storage
	enc     table.EncryptionManager
	path    string
	spec    table.PartitionSpec
	content int

	buf bytes.Buffer
	ocf *ocf.Encoder

	snapshotID *int64
	seqNumber  int64
	minSeq     int64

	addedFiles, existingFiles, deletedFiles int
	addedRows, existingRows, deletedRows    int64
	partitions                              *PartitionSummary

	closed    bool
	finalSize int64
}

// NewWriter creates a manifest writer. snapshotID may be nil when the table
// format lets readers inherit the owning snapshot; sequenceNumber is the
// commit sequence the manifest will be committed at.
func NewWriter(io storage.Storage, enc table.EncryptionManager, formatVersion int, spec table.PartitionSpec, content int, path string, snapshotID *int64, sequenceNumber int64) (*Writer, error) {
	w := &Writer{
		io:         io,
		enc:        enc,
		path:       path,
		spec:       spec,
		content:    content,
		snapshotID: snapshotID,
		seqNumber:  sequenceNumber,
		minSeq:     sequenceNumber,
		partitions: NewPartitionSummary(spec),
	}

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal partition spec: %w", err)
	}

	contentMeta := "data"
	if content == table.ManifestContentDeletes {
		contentMeta = "deletes"
	}

	w.ocf, err = ocf.NewEncoder(entryAvroSchema, &w.buf,
		ocf.WithMetadata(map[string][]byte{
			"partition-spec":    specJSON,
			"partition-spec-id": encodeIntBytes(spec.SpecID),
			"format-version":    []byte(fmt.Sprintf("%d", formatVersion)),
			"content":           []byte(contentMeta),
		}),
		ocf.WithCodec(ocf.Deflate),
	)
	if err != nil {
		return nil, fmt.Errorf("create manifest encoder: %w", err)
	}
	return w, nil
}

// Add writes an ADDED entry with no explicit sequence number; readers infer
// it from the committing snapshot.
func (w *Writer) Add(f *table.DataFile) error {
	return w.write(table.ManifestEntry{
		Status:     table.EntryAdded,
		SnapshotID: w.snapshotID,
		File:       *f,
	})
}

// AddWithSequence writes an ADDED entry pinned to an explicit data sequence
// number.
func (w *Writer) AddWithSequence(f *table.DataFile, seq int64) error {
	if seq < w.minSeq {
		w.minSeq = seq
	}
	return w.write(table.ManifestEntry{
		Status:         table.EntryAdded,
		SnapshotID:     w.snapshotID,
		SequenceNumber: &seq,
		File:           *f,
	})
}

// Existing writes an EXISTING entry carried forward from a prior snapshot.
func (w *Writer) Existing(f *table.DataFile, snapshotID, seq int64) error {
	if seq < w.minSeq {
		w.minSeq = seq
	}
	return w.write(table.ManifestEntry{
		Status:         table.EntryExisting,
		SnapshotID:     &snapshotID,
		SequenceNumber: &seq,
		File:           *f,
	})
}

// Delete writes a DELETED entry removing a file from the table.
func (w *Writer) Delete(f *table.DataFile, snapshotID, seq int64) error {
	if seq < w.minSeq {
		w.minSeq = seq
	}
	return w.write(table.ManifestEntry{
		Status:         table.EntryDeleted,
		SnapshotID:     &snapshotID,
		SequenceNumber: &seq,
		File:           *f,
	})
}

func (w *Writer) write(e table.ManifestEntry) error {
	if w.closed {
		return fmt.Errorf("manifest writer for %s already closed", w.path)
	}
	switch e.Status {
	case table.EntryAdded:
		w.addedFiles++
		w.addedRows += e.File.RecordCount
	case table.EntryExisting:
		w.existingFiles++
		w.existingRows += e.File.RecordCount
	case table.EntryDeleted:
		w.deletedFiles++
		w.deletedRows += e.File.RecordCount
	}
	w.partitions.Update(e.File.Partition)
	if err := w.ocf.Encode(toEntryAvro(e)); err != nil {
		return fmt.Errorf("encode manifest entry: %w", err)
	}
	return nil
}

// Length flushes buffered blocks and returns the bytes written so far. Used
// by the rolling writer to decide when to roll.
func (w *Writer) Length() int64 {
	if w.closed {
		return w.finalSize
	}
	if err := w.ocf.Flush(); err != nil {
		return int64(w.buf.Len())
	}
	return int64(w.buf.Len())
}

// Close finalizes the Avro file and stores it.
func (w *Writer) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.ocf.Close(); err != nil {
		return fmt.Errorf("close manifest encoder: %w", err)
	}
	data, err := w.enc.Encrypt(w.buf.Bytes())
	if err != nil {
		return fmt.Errorf("encrypt manifest %s: %w", w.path, err)
	}
	w.finalSize = int64(len(data))
	if err := w.io.Write(ctx, w.path, data); err != nil {
		return fmt.Errorf("store manifest %s: %w", w.path, err)
	}
	return nil
}

// ToManifestFile returns the manifest-list entry for the closed writer.
func (w *Writer) ToManifestFile() *table.ManifestFile {
	return &table.ManifestFile{
		Path:              w.path,
		Length:            w.finalSize,
		SpecID:            w.spec.SpecID,
		Content:           w.content,
		SequenceNumber:    w.seqNumber,
		MinSequenceNumber: w.minSeq,
		SnapshotID:        w.snapshotID,
		AddedFilesCount:   w.addedFiles,
		ExistingFiles:     w.existingFiles,
		DeletedFiles:      w.deletedFiles,
		AddedRowsCount:    w.addedRows,
		ExistingRowsCount: w.existingRows,
		DeletedRowsCount:  w.deletedRows,
		Partitions:        w.partitions.Summaries(),
	}
}

func encodeIntBytes(v int) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}
