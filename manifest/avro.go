package manifest

import (
	"sort"

	"github.com/florinutz/icefloe/table"
)

// Avro schema for manifest entries (format v2+).
// Partition values are carried as string key/value pairs so the schema stays
// static across partition specs.
const entryAvroSchema = `{
	"type": "record",
	"name": "manifest_entry",
	"fields": [
		{"name": "status", "type": "int"},
		{"name": "snapshot_id", "type": ["null", "long"], "default": null},
		{"name": "sequence_number", "type": ["null", "long"], "default": null},
		{"name": "file_sequence_number", "type": ["null", "long"], "default": null},
		{"name": "data_file", "type": {
			"type": "record",
			"name": "r2",
			"fields": [
				{"name": "content", "type": "int"},
				{"name": "file_path", "type": "string"},
				{"name": "file_format", "type": "string"},
				{"name": "partition", "type": ["null", {"type": "array", "items": {
					"type": "record", "name": "partition_kv",
					"fields": [
						{"name": "key", "type": "string"},
						{"name": "value", "type": "string"}
					]
				}}], "default": null},
				{"name": "record_count", "type": "long"},
				{"name": "file_size_in_bytes", "type": "long"},
				{"name": "column_sizes", "type": ["null", {"type": "array", "items": {
					"type": "record", "name": "k117_v118",
					"fields": [
						{"name": "key", "type": "int"},
						{"name": "value", "type": "long"}
					]
				}, "logicalType": "map"}], "default": null},
				{"name": "value_counts", "type": ["null", {"type": "array", "items": {
					"type": "record", "name": "k119_v120",
					"fields": [
						{"name": "key", "type": "int"},
						{"name": "value", "type": "long"}
					]
				}, "logicalType": "map"}], "default": null},
				{"name": "null_value_counts", "type": ["null", {"type": "array", "items": {
					"type": "record", "name": "k121_v122",
					"fields": [
						{"name": "key", "type": "int"},
						{"name": "value", "type": "long"}
					]
				}, "logicalType": "map"}], "default": null},
				{"name": "lower_bounds", "type": ["null", {"type": "array", "items": {
					"type": "record", "name": "k126_v127",
					"fields": [
						{"name": "key", "type": "int"},
						{"name": "value", "type": "bytes"}
					]
				}, "logicalType": "map"}], "default": null},
				{"name": "upper_bounds", "type": ["null", {"type": "array", "items": {
					"type": "record", "name": "k128_v129",
					"fields": [
						{"name": "key", "type": "int"},
						{"name": "value", "type": "bytes"}
					]
				}, "logicalType": "map"}], "default": null},
				{"name": "equality_ids", "type": ["null", {"type": "array", "items": "int"}], "default": null},
				{"name": "sort_order_id", "type": ["null", "int"], "default": null}
			]
		}}
	]
}`

// Avro schema for manifest lists.
const listAvroSchema = `{
	"type": "record",
	"name": "manifest_file",
	"fields": [
		{"name": "manifest_path", "type": "string"},
		{"name": "manifest_length", "type": "long"},
		{"name": "partition_spec_id", "type": "int"},
		{"name": "content", "type": "int"},
		{"name": "sequence_number", "type": "long"},
		{"name": "min_sequence_number", "type": "long"},
		{"name": "added_snapshot_id", "type": ["null", "long"], "default": null},
		{"name": "added_data_files_count", "type": "int"},
		{"name": "existing_data_files_count", "type": "int"},
		{"name": "deleted_data_files_count", "type": "int"},
		{"name": "added_rows_count", "type": "long"},
		{"name": "existing_rows_count", "type": "long"},
		{"name": "deleted_rows_count", "type": "long"},
		{"name": "partitions", "type": ["null", {"type": "array", "items": {
			"type": "record", "name": "field_summary",
			"fields": [
				{"name": "contains_null", "type": "boolean"},
				{"name": "lower_bound", "type": ["null", "bytes"], "default": null},
				{"name": "upper_bound", "type": ["null", "bytes"], "default": null}
			]
		}}], "default": null},
		{"name": "first_row_id", "type": ["null", "long"], "default": null}
	]
}`

// entryAvro is the Avro-serializable form of a manifest entry.
type entryAvro struct {
	Status             int          `avro:"status"`
	SnapshotID         *int64       `avro:"snapshot_id"`
	SequenceNumber     *int64       `avro:"sequence_number"`
	FileSequenceNumber *int64       `avro:"file_sequence_number"`
	DataFile           dataFileAvro `avro:"data_file"`
}

type dataFileAvro struct {
	Content         int           `avro:"content"`
	FilePath        string        `avro:"file_path"`
	FileFormat      string        `avro:"file_format"`
	Partition       []stringKV    `avro:"partition"`
	RecordCount     int64         `avro:"record_count"`
	FileSizeBytes   int64         `avro:"file_size_in_bytes"`
	ColumnSizes     []intLongKV   `avro:"column_sizes"`
	ValueCounts     []intLongKV   `avro:"value_counts"`
	NullValueCounts []intLongKV   `avro:"null_value_counts"`
	LowerBounds     []intBytesKV  `avro:"lower_bounds"`
	UpperBounds     []intBytesKV  `avro:"upper_bounds"`
	EqualityIDs     []int         `avro:"equality_ids"`
	SortOrderID     *int          `avro:"sort_order_id"`
}

type stringKV struct {
	Key   string `avro:"key"`
	Value string `avro:"value"`
}

type intLongKV struct {
	Key   int   `avro:"key"`
	Value int64 `avro:"value"`
}

type intBytesKV struct {
	Key   int    `avro:"key"`
	Value []byte `avro:"value"`
}

type fieldSummaryAvro struct {
	ContainsNull bool   `avro:"contains_null"`
	LowerBound   []byte `avro:"lower_bound"`
	UpperBound   []byte `avro:"upper_bound"`
}

type listEntryAvro struct {
	Path              string             `avro:"manifest_path"`
	Length            int64              `avro:"manifest_length"`
	SpecID            int                `avro:"partition_spec_id"`
	Content           int                `avro:"content"`
	SequenceNumber    int64              `avro:"sequence_number"`
	MinSequenceNumber int64              `avro:"min_sequence_number"`
	SnapshotID        *int64             `avro:"added_snapshot_id"`
	AddedFilesCount   int                `avro:"added_data_files_count"`
	ExistingFiles     int                `avro:"existing_data_files_count"`
	DeletedFiles      int                `avro:"deleted_data_files_count"`
	AddedRowsCount    int64              `avro:"added_rows_count"`
	ExistingRowsCount int64              `avro:"existing_rows_count"`
	DeletedRowsCount  int64              `avro:"deleted_rows_count"`
	Partitions        []fieldSummaryAvro `avro:"partitions"`
	FirstRowID        *int64             `avro:"first_row_id"`
}

func toEntryAvro(e table.ManifestEntry) entryAvro {
	f := e.File
	return entryAvro{
		Status:             e.Status,
		SnapshotID:         e.SnapshotID,
		SequenceNumber:     e.SequenceNumber,
		FileSequenceNumber: e.FileSequenceNumber,
		DataFile: dataFileAvro{
			Content:         f.Content,
			FilePath:        f.FilePath,
			FileFormat:      f.FileFormat,
			Partition:       mapToStringKV(f.Partition),
			RecordCount:     f.RecordCount,
			FileSizeBytes:   f.FileSizeBytes,
			ColumnSizes:     mapToIntLongKV(f.ColumnSizes),
			ValueCounts:     mapToIntLongKV(f.ValueCounts),
			NullValueCounts: mapToIntLongKV(f.NullValueCounts),
			LowerBounds:     mapToIntBytesKV(f.LowerBounds),
			UpperBounds:     mapToIntBytesKV(f.UpperBounds),
			EqualityIDs:     f.EqualityIDs,
			SortOrderID:     f.SortOrderID,
		},
	}
}

func fromEntryAvro(e entryAvro) table.ManifestEntry {
	df := e.DataFile
	return table.ManifestEntry{
		Status:             e.Status,
		SnapshotID:         e.SnapshotID,
		SequenceNumber:     e.SequenceNumber,
		FileSequenceNumber: e.FileSequenceNumber,
		File: table.DataFile{
			Content:         df.Content,
			FilePath:        df.FilePath,
			FileFormat:      df.FileFormat,
			Partition:       stringKVToMap(df.Partition),
			RecordCount:     df.RecordCount,
			FileSizeBytes:   df.FileSizeBytes,
			ColumnSizes:     intLongKVToMap(df.ColumnSizes),
			ValueCounts:     intLongKVToMap(df.ValueCounts),
			NullValueCounts: intLongKVToMap(df.NullValueCounts),
			LowerBounds:     intBytesKVToMap(df.LowerBounds),
			UpperBounds:     intBytesKVToMap(df.UpperBounds),
			EqualityIDs:     df.EqualityIDs,
			SortOrderID:     df.SortOrderID,
		},
	}
}

func toListEntryAvro(mf *table.ManifestFile) listEntryAvro {
	out := listEntryAvro{
		Path:              mf.Path,
		Length:            mf.Length,
		SpecID:            mf.SpecID,
		Content:           mf.Content,
		SequenceNumber:    mf.SequenceNumber,
		MinSequenceNumber: mf.MinSequenceNumber,
		SnapshotID:        mf.SnapshotID,
		AddedFilesCount:   mf.AddedFilesCount,
		ExistingFiles:     mf.ExistingFiles,
		DeletedFiles:      mf.DeletedFiles,
		AddedRowsCount:    mf.AddedRowsCount,
		ExistingRowsCount: mf.ExistingRowsCount,
		DeletedRowsCount:  mf.DeletedRowsCount,
		FirstRowID:        mf.FirstRowID,
	}
	for _, p := range mf.Partitions {
		out.Partitions = append(out.Partitions, fieldSummaryAvro{
			ContainsNull: p.ContainsNull,
			LowerBound:   p.LowerBound,
			UpperBound:   p.UpperBound,
		})
	}
	return out
}

func fromListEntryAvro(e listEntryAvro) *table.ManifestFile {
	out := &table.ManifestFile{
		Path:              e.Path,
		Length:            e.Length,
		SpecID:            e.SpecID,
		Content:           e.Content,
		SequenceNumber:    e.SequenceNumber,
		MinSequenceNumber: e.MinSequenceNumber,
		SnapshotID:        e.SnapshotID,
		AddedFilesCount:   e.AddedFilesCount,
		ExistingFiles:     e.ExistingFiles,
		DeletedFiles:      e.DeletedFiles,
		AddedRowsCount:    e.AddedRowsCount,
		ExistingRowsCount: e.ExistingRowsCount,
		DeletedRowsCount:  e.DeletedRowsCount,
		FirstRowID:        e.FirstRowID,
	}
	for _, p := range e.Partitions {
		out.Partitions = append(out.Partitions, table.FieldSummary{
			ContainsNull: p.ContainsNull,
			LowerBound:   p.LowerBound,
			UpperBound:   p.UpperBound,
		})
	}
	return out
}

// mapToStringKV sorts keys so manifest bytes are deterministic for identical
// inputs.
func mapToStringKV(m map[string]string) []stringKV {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]stringKV, 0, len(m))
	for _, k := range keys {
		out = append(out, stringKV{Key: k, Value: m[k]})
	}
	return out
}

func stringKVToMap(kvs []stringKV) map[string]string {
	if len(kvs) == 0 {
		return nil
	}
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out
}

func mapToIntLongKV(m map[int]int64) []intLongKV {
	if len(m) == 0 {
		return nil
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]intLongKV, 0, len(m))
	for _, k := range keys {
		out = append(out, intLongKV{Key: k, Value: m[k]})
	}
	return out
}

func intLongKVToMap(kvs []intLongKV) map[int]int64 {
	if len(kvs) == 0 {
		return nil
	}
	out := make(map[int]int64, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out
}

func mapToIntBytesKV(m map[int][]byte) []intBytesKV {
	if len(m) == 0 {
		return nil
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]intBytesKV, 0, len(m))
	for _, k := range keys {
		out = append(out, intBytesKV{Key: k, Value: m[k]})
	}
	return out
}

func intBytesKVToMap(kvs []intBytesKV) map[int][]byte {
	if len(kvs) == 0 {
		return nil
	}
	out := make(map[int][]byte, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out
}
