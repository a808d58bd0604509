package manifest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/hamba/avro/v2/ocf"

	"github.com/florinutz/icefloe/storage"
	"github.com/florinutz/icefloe/table"
)

// ReadEntries decodes all entries of a manifest file.
func ReadEntries(ctx context.Context, io storage.Storage, enc table.EncryptionManager, mf *table.ManifestFile) ([]table.ManifestEntry, error) {
	raw, err := io.Read(ctx, mf.Path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", mf.Path, err)
	}
	data, err := enc.Decrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("decrypt manifest %s: %w", mf.Path, err)
	}

	dec, err := ocf.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", mf.Path, err)
	}

	var out []table.ManifestEntry
	for dec.HasNext() {
		var e entryAvro
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode manifest entry in %s: %w", mf.Path, err)
		}
		out = append(out, fromEntryAvro(e))
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("scan manifest %s: %w", mf.Path, err)
	}
	return out, nil
}

// LiveFiles returns the data files a manifest still tracks (ADDED and
// EXISTING entries), with the sequence number each entry resolves to.
func LiveFiles(ctx context.Context, io storage.Storage, enc table.EncryptionManager, mf *table.ManifestFile) ([]LiveFile, error) {
	entries, err := ReadEntries(ctx, io, enc, mf)
	if err != nil {
		return nil, err
	}
	var out []LiveFile
	for _, e := range entries {
		if e.Status == table.EntryDeleted {
			continue
		}
		lf := LiveFile{File: e.File, SequenceNumber: mf.SequenceNumber}
		if e.SequenceNumber != nil {
			lf.SequenceNumber = *e.SequenceNumber
		}
		if e.SnapshotID != nil {
			lf.SnapshotID = *e.SnapshotID
		} else if mf.SnapshotID != nil {
			lf.SnapshotID = *mf.SnapshotID
		}
		out = append(out, lf)
	}
	return out, nil
}

// LiveFile is a data file plus the lineage it was committed with.
type LiveFile struct {
	File           table.DataFile
	SnapshotID     int64
	SequenceNumber int64
}
