package table

// Data file content kinds.
const (
	ContentData            = 0
	ContentPositionDeletes = 1
	ContentEqualityDeletes = 2
)

// Manifest content kinds, stored on the manifest-list entry.
const (
	ManifestContentData    = 0
	ManifestContentDeletes = 1
)

// DataFile describes a single data or delete file tracked by the table.
// Content distinguishes plain data from positional and equality deletes.
type DataFile struct {
	Content         int               `json:"content"`
	FilePath        string            `json:"file-path"`
	FileFormat      string            `json:"file-format"` // "PARQUET"
	Partition       map[string]string `json:"partition,omitempty"`
	RecordCount     int64             `json:"record-count"`
	FileSizeBytes   int64             `json:"file-size-in-bytes"`
	ColumnSizes     map[int]int64     `json:"column-sizes,omitempty"`
	ValueCounts     map[int]int64     `json:"value-counts,omitempty"`
	NullValueCounts map[int]int64     `json:"null-value-counts,omitempty"`
	LowerBounds     map[int][]byte    `json:"lower-bounds,omitempty"`
	UpperBounds     map[int][]byte    `json:"upper-bounds,omitempty"`
	EqualityIDs     []int             `json:"equality-ids,omitempty"`
	SortOrderID     *int              `json:"sort-order-id,omitempty"`

	// DataSequenceNumber is set on delete files that apply at a specific
	// sequence number rather than the committing snapshot's.
	DataSequenceNumber *int64 `json:"-"`
}

// IsDeleteFile reports whether the file carries deletes rather than data.
func (f *DataFile) IsDeleteFile() bool {
	return f.Content != ContentData
}

// ManifestEntry statuses.
const (
	EntryExisting = 0
	EntryAdded    = 1
	EntryDeleted  = 2
)

// ManifestEntry is a row in a manifest file: a data file plus its status and
// the snapshot that last changed it. Sequence numbers are optional; when nil
// the reader inherits them from the containing snapshot.
type ManifestEntry struct {
	Status             int      `avro:"status"`
	SnapshotID         *int64   `avro:"snapshot_id"`
	SequenceNumber     *int64   `avro:"sequence_number"`
	FileSequenceNumber *int64   `avro:"file_sequence_number"`
	File               DataFile `avro:"-"` // serialized field by field
}

// FieldSummary aggregates per-partition-field bounds across a manifest.
type FieldSummary struct {
	ContainsNull bool   `avro:"contains_null"`
	LowerBound   []byte `avro:"lower_bound"`
	UpperBound   []byte `avro:"upper_bound"`
}

// ManifestFile describes one manifest in a manifest list. SnapshotID is nil
// until the manifest is attributed to its owning snapshot (either at write
// time or by the enricher on first commit attempt).
type ManifestFile struct {
	Path              string         `avro:"manifest_path"`
	Length            int64          `avro:"manifest_length"`
	SpecID            int            `avro:"partition_spec_id"`
	Content           int            `avro:"content"` // ManifestContentData or ManifestContentDeletes
	SequenceNumber    int64          `avro:"sequence_number"`
	MinSequenceNumber int64          `avro:"min_sequence_number"`
	SnapshotID        *int64         `avro:"added_snapshot_id"`
	AddedFilesCount   int            `avro:"added_data_files_count"`
	ExistingFiles     int            `avro:"existing_data_files_count"`
	DeletedFiles      int            `avro:"deleted_data_files_count"`
	AddedRowsCount    int64          `avro:"added_rows_count"`
	ExistingRowsCount int64          `avro:"existing_rows_count"`
	DeletedRowsCount  int64          `avro:"deleted_rows_count"`
	Partitions        []FieldSummary `avro:"partitions"`

	// FirstRowID is assigned by the manifest-list writer on format v3 tables.
	FirstRowID *int64 `avro:"first_row_id"`
}
