package table

// Iceberg-style table format type definitions.
// See: https://iceberg.apache.org/spec/

// Schema defines the columns of a table.
type Schema struct {
	SchemaID int     `json:"schema-id"`
	Fields   []Field `json:"fields"`
}

// Field is a single column in a schema.
type Field struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"` // "string", "long", "boolean", "double", "timestamptz"
	Required bool   `json:"required"`
	Doc      string `json:"doc,omitempty"`
}

// PartitionSpec defines how data is partitioned.
type PartitionSpec struct {
	SpecID int              `json:"spec-id"`
	Fields []PartitionField `json:"fields"`
}

// PartitionField maps a source column to a partition transform.
type PartitionField struct {
	SourceID  int    `json:"source-id"`
	FieldID   int    `json:"field-id"`
	Name      string `json:"name"`
	Transform string `json:"transform"` // "identity", "day", "month", "year", "hour"
}

// UnpartitionedSpec is the spec used by tables without partitioning.
func UnpartitionedSpec() PartitionSpec {
	return PartitionSpec{SpecID: 0, Fields: []PartitionField{}}
}
