package manifest

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/hamba/avro/v2/ocf"

	"github.com/florinutz/icefloe/storage"
	"github.com/florinutz/icefloe/table"
)

// ListWriter serializes the manifest list for one snapshot attempt. On
// format v3 tables it also assigns first-row-ids: the counter starts at the
// table's next row id and advances monotonically by each data manifest's
// added rows, across rolls and manifests alike.
type ListWriter struct {
	io  storage.Storage
	enc table.EncryptionManager

	path          string
	formatVersion int

	buf bytes.Buffer
	ocf *ocf.Encoder

	nextRowID int64
	closed    bool
}

// NewListWriter creates a manifest-list writer for the snapshot being
// committed. firstRowID is the table's next row id (ignored below format 3).
func NewListWriter(io storage.Storage, enc table.EncryptionManager, formatVersion int, path string, snapshotID int64, parentSnapshotID *int64, sequenceNumber, firstRowID int64) (*ListWriter, error) {
	w := &ListWriter{
		io:            io,
		enc:           enc,
		path:          path,
		formatVersion: formatVersion,
		nextRowID:     firstRowID,
	}

	meta := map[string][]byte{
		"snapshot-id":     []byte(strconv.FormatInt(snapshotID, 10)),
		"sequence-number": []byte(strconv.FormatInt(sequenceNumber, 10)),
		"format-version":  []byte(strconv.Itoa(formatVersion)),
	}
	if parentSnapshotID != nil {
		meta["parent-snapshot-id"] = []byte(strconv.FormatInt(*parentSnapshotID, 10))
	}
	if formatVersion >= 3 {
		meta["first-row-id"] = []byte(strconv.FormatInt(firstRowID, 10))
	}

	var err error
	w.ocf, err = ocf.NewEncoder(listAvroSchema, &w.buf,
		ocf.WithMetadata(meta),
		ocf.WithCodec(ocf.Deflate),
	)
	if err != nil {
		return nil, fmt.Errorf("create manifest list encoder: %w", err)
	}
	return w, nil
}

// Append writes one manifest entry. Format v3 data manifests without a
// first-row-id are assigned the current counter.
func (w *ListWriter) Append(mf *table.ManifestFile) error {
	if w.closed {
		return fmt.Errorf("manifest list writer for %s already closed", w.path)
	}
	entry := *mf
	if w.formatVersion >= 3 && entry.Content == table.ManifestContentData {
		if entry.FirstRowID == nil {
			first := w.nextRowID
			entry.FirstRowID = &first
			w.nextRowID += entry.AddedRowsCount
		}
	}
	if err := w.ocf.Encode(toListEntryAvro(&entry)); err != nil {
		return fmt.Errorf("encode manifest list entry: %w", err)
	}
	return nil
}

// AddAll appends manifests in order.
func (w *ListWriter) AddAll(manifests []*table.ManifestFile) error {
	for _, mf := range manifests {
		if err := w.Append(mf); err != nil {
			return err
		}
	}
	return nil
}

// NextRowID returns the first row id not assigned by this list.
func (w *ListWriter) NextRowID() int64 {
	return w.nextRowID
}

// Close finalizes the Avro file and stores it.
func (w *ListWriter) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.ocf.Close(); err != nil {
		return fmt.Errorf("close manifest list encoder: %w", err)
	}
	data, err := w.enc.Encrypt(w.buf.Bytes())
	if err != nil {
		return fmt.Errorf("encrypt manifest list %s: %w", w.path, err)
	}
	if err := w.io.Write(ctx, w.path, data); err != nil {
		return fmt.Errorf("store manifest list %s: %w", w.path, err)
	}
	return nil
}

// ReadList decodes a manifest list file.
func ReadList(ctx context.Context, io storage.Storage, enc table.EncryptionManager, path string) ([]*table.ManifestFile, error) {
	raw, err := io.Read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read manifest list %s: %w", path, err)
	}
	data, err := enc.Decrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("decrypt manifest list %s: %w", path, err)
	}

	dec, err := ocf.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open manifest list %s: %w", path, err)
	}

	var out []*table.ManifestFile
	for dec.HasNext() {
		var e listEntryAvro
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode manifest list entry in %s: %w", path, err)
		}
		out = append(out, fromListEntryAvro(e))
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("scan manifest list %s: %w", path, err)
	}
	return out, nil
}
