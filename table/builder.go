package table

import (
	"time"

	"github.com/google/uuid"
)

// MetadataBuilder accumulates changes on top of a base TableMetadata. Build
// returns new metadata; the base is never mutated. Changes records what was
// applied so callers can detect a no-op commit (identity semantics: setting a
// branch to the snapshot it already points at records nothing).
type MetadataBuilder struct {
	base    *TableMetadata
	meta    *TableMetadata
	changes []string
}

// BuildFrom starts a builder on a copy of base.
func BuildFrom(base *TableMetadata) *MetadataBuilder {
	return &MetadataBuilder{base: base, meta: copyMetadata(base)}
}

// AddSnapshot adds a staged snapshot without moving any ref.
func (b *MetadataBuilder) AddSnapshot(snap *Snapshot) *MetadataBuilder {
	b.addSnapshot(snap)
	b.changes = append(b.changes, "add-snapshot")
	return b
}

// SetBranchSnapshot adds the snapshot and moves the branch head to it.
func (b *MetadataBuilder) SetBranchSnapshot(snap *Snapshot, branch string) *MetadataBuilder {
	b.addSnapshot(snap)
	b.meta.Refs[branch] = SnapshotRef{SnapshotID: snap.SnapshotID, Type: BranchRef}
	if branch == MainBranch {
		b.meta.SnapshotLog = append(b.meta.SnapshotLog, SnapshotLogEntry{
			TimestampMS: snap.TimestampMS,
			SnapshotID:  snap.SnapshotID,
		})
	}
	b.changes = append(b.changes, "set-branch-snapshot")
	return b
}

// SetBranchSnapshotID moves the branch head to an existing snapshot without
// re-adding it (rollback). A no-op when the branch already points there.
func (b *MetadataBuilder) SetBranchSnapshotID(id int64, branch string) *MetadataBuilder {
	if ref, ok := b.meta.Refs[branch]; ok && ref.SnapshotID == id {
		return b
	}
	b.meta.Refs[branch] = SnapshotRef{SnapshotID: id, Type: BranchRef}
	if branch == MainBranch {
		b.meta.SnapshotLog = append(b.meta.SnapshotLog, SnapshotLogEntry{
			TimestampMS: time.Now().UnixMilli(),
			SnapshotID:  id,
		})
	}
	b.changes = append(b.changes, "set-branch-snapshot-id")
	return b
}

// Changes returns what the builder applied so far.
func (b *MetadataBuilder) Changes() []string {
	return b.changes
}

// Build returns the updated metadata. With no changes it still returns a
// valid copy; callers use Changes to decide whether to commit it.
func (b *MetadataBuilder) Build() *TableMetadata {
	b.meta.LastUpdatedMS = time.Now().UnixMilli()
	return b.meta
}

func (b *MetadataBuilder) addSnapshot(snap *Snapshot) {
	b.meta.Snapshots = append(b.meta.Snapshots, snap)
	if snap.SequenceNumber > b.meta.LastSeqNumber {
		b.meta.LastSeqNumber = snap.SequenceNumber
	}
	if b.meta.FormatVersion >= 3 && snap.AddedRows != nil {
		b.meta.NextRowID += *snap.AddedRows
	}
}

// WithUUID returns metadata with a table UUID, minting one when missing.
func (m *TableMetadata) WithUUID() *TableMetadata {
	if m.TableUUID != "" {
		return m
	}
	out := copyMetadata(m)
	out.TableUUID = uuid.New().String()
	return out
}

// copyMetadata clones the mutable parts of the metadata; snapshots themselves
// are immutable and shared.
func copyMetadata(m *TableMetadata) *TableMetadata {
	out := *m
	out.Refs = make(map[string]SnapshotRef, len(m.Refs))
	for k, v := range m.Refs {
		out.Refs[k] = v
	}
	out.Snapshots = append([]*Snapshot(nil), m.Snapshots...)
	out.SnapshotLog = append([]SnapshotLogEntry(nil), m.SnapshotLog...)
	out.Properties = make(map[string]string, len(m.Properties))
	for k, v := range m.Properties {
		out.Properties[k] = v
	}
	return &out
}
