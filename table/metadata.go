package table

import (
	"time"

	"github.com/google/uuid"
)

// MainBranch is the branch a producer targets when none is named.
const MainBranch = "main"

// RefType distinguishes mutable branches from immutable tags.
type RefType string

const (
	BranchRef RefType = "branch"
	TagRef    RefType = "tag"
)

// SnapshotRef is a named pointer to a snapshot.
type SnapshotRef struct {
	SnapshotID int64   `json:"snapshot-id"`
	Type       RefType `json:"type"`
}

// IsBranch reports whether the ref can be a commit target.
func (r SnapshotRef) IsBranch() bool {
	return r.Type == BranchRef
}

// Snapshot records an immutable point-in-time state of the table's file set.
type Snapshot struct {
	SnapshotID       int64             `json:"snapshot-id"`
	ParentSnapshotID *int64            `json:"parent-snapshot-id,omitempty"`
	SequenceNumber   int64             `json:"sequence-number"`
	TimestampMS      int64             `json:"timestamp-ms"`
	Operation        string            `json:"operation"`
	Summary          map[string]string `json:"summary"`
	SchemaID         int               `json:"schema-id"`
	ManifestList     string            `json:"manifest-list"`

	// Format v3 row lineage.
	FirstRowID *int64 `json:"first-row-id,omitempty"`
	AddedRows  *int64 `json:"added-rows,omitempty"`
}

// SnapshotLogEntry records when a snapshot became the head of main.
type SnapshotLogEntry struct {
	TimestampMS int64 `json:"timestamp-ms"`
	SnapshotID  int64 `json:"snapshot-id"`
}

// TableMetadata is the top-level table state (format versions 1-3).
type TableMetadata struct {
	FormatVersion   int                    `json:"format-version"`
	TableUUID       string                 `json:"table-uuid"`
	Location        string                 `json:"location"`
	LastSeqNumber   int64                  `json:"last-sequence-number"`
	LastUpdatedMS   int64                  `json:"last-updated-ms"`
	LastColumnID    int                    `json:"last-column-id"`
	Schemas         []Schema               `json:"schemas"`
	CurrentSchemaID int                    `json:"current-schema-id"`
	PartitionSpecs  []PartitionSpec        `json:"partition-specs"`
	DefaultSpecID   int                    `json:"default-spec-id"`
	LastPartitionID int                    `json:"last-partition-id"`
	Refs            map[string]SnapshotRef `json:"refs,omitempty"`
	Snapshots       []*Snapshot            `json:"snapshots"`
	SnapshotLog     []SnapshotLogEntry     `json:"snapshot-log"`
	Properties      map[string]string      `json:"properties,omitempty"`

	// NextRowID is the first unassigned row id on format v3 tables.
	NextRowID int64 `json:"next-row-id,omitempty"`
}

// NewTableMetadata creates initial table metadata for the given schema and
// partition spec at the given location.
func NewTableMetadata(formatVersion int, location string, schema Schema, spec PartitionSpec) *TableMetadata {
	return &TableMetadata{
		FormatVersion:   formatVersion,
		TableUUID:       uuid.New().String(),
		Location:        location,
		LastUpdatedMS:   time.Now().UnixMilli(),
		LastColumnID:    lastFieldID(schema),
		Schemas:         []Schema{schema},
		CurrentSchemaID: schema.SchemaID,
		PartitionSpecs:  []PartitionSpec{spec},
		DefaultSpecID:   spec.SpecID,
		LastPartitionID: lastPartFieldID(spec),
		Refs:            map[string]SnapshotRef{},
		Snapshots:       []*Snapshot{},
		SnapshotLog:     []SnapshotLogEntry{},
		Properties:      map[string]string{},
	}
}

// Snapshot returns the snapshot with the given id, or nil.
func (m *TableMetadata) Snapshot(id int64) *Snapshot {
	for _, s := range m.Snapshots {
		if s.SnapshotID == id {
			return s
		}
	}
	return nil
}

// Ref returns the named ref and whether it exists.
func (m *TableMetadata) Ref(name string) (SnapshotRef, bool) {
	r, ok := m.Refs[name]
	return r, ok
}

// BranchHead returns the latest snapshot on the named branch, or nil when the
// branch does not exist yet.
func (m *TableMetadata) BranchHead(branch string) *Snapshot {
	ref, ok := m.Refs[branch]
	if !ok {
		return nil
	}
	return m.Snapshot(ref.SnapshotID)
}

// CurrentSnapshot returns the head of main, or nil.
func (m *TableMetadata) CurrentSnapshot() *Snapshot {
	return m.BranchHead(MainBranch)
}

// NextSequenceNumber returns the sequence number the next snapshot will use.
// Format v1 tables do not track sequence numbers.
func (m *TableMetadata) NextSequenceNumber() int64 {
	if m.FormatVersion > 1 {
		return m.LastSeqNumber + 1
	}
	return 0
}

// SpecByID returns the partition spec with the given id and whether it exists.
func (m *TableMetadata) SpecByID(id int) (PartitionSpec, bool) {
	for _, s := range m.PartitionSpecs {
		if s.SpecID == id {
			return s, true
		}
	}
	return PartitionSpec{}, false
}

// DefaultSpec returns the table's default partition spec.
func (m *TableMetadata) DefaultSpec() PartitionSpec {
	spec, ok := m.SpecByID(m.DefaultSpecID)
	if !ok {
		return UnpartitionedSpec()
	}
	return spec
}

// CurrentSchema returns the table's current schema.
func (m *TableMetadata) CurrentSchema() Schema {
	for _, s := range m.Schemas {
		if s.SchemaID == m.CurrentSchemaID {
			return s
		}
	}
	return Schema{}
}

func lastFieldID(schema Schema) int {
	max := 0
	for _, f := range schema.Fields {
		if f.ID > max {
			max = f.ID
		}
	}
	return max
}

// lastPartFieldID returns the highest partition field ID in the spec.
// Partition field ids start at 1000.
func lastPartFieldID(spec PartitionSpec) int {
	max := 999
	for _, f := range spec.Fields {
		if f.FieldID > max {
			max = f.FieldID
		}
	}
	return max
}
