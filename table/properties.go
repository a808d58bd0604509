package table

import "strconv"

// Commit tuning properties, read from table metadata.
const (
	CommitNumRetries        = "commit.retry.num-retries"
	CommitMinRetryWaitMS    = "commit.retry.min-wait-ms"
	CommitMaxRetryWaitMS    = "commit.retry.max-wait-ms"
	CommitTotalRetryTimeMS  = "commit.retry.total-timeout-ms"
	ManifestTargetSizeBytes = "commit.manifest.target-size-bytes"

	// SnapshotIDInheritance lets format v1 tables defer snapshot-id
	// assignment to readers. Always on for v2 and later.
	SnapshotIDInheritance = "commit.manifest.snapshot-id-inheritance.enabled"
)

// Defaults for the commit tuning properties.
const (
	CommitNumRetriesDefault        = 4
	CommitMinRetryWaitMSDefault    = 100
	CommitMaxRetryWaitMSDefault    = 60 * 1000
	CommitTotalRetryTimeMSDefault  = 30 * 60 * 1000
	ManifestTargetSizeBytesDefault = 8 * 1024 * 1024
)

// PropertyAsInt parses the named property, falling back to def when the
// property is missing or malformed.
func (m *TableMetadata) PropertyAsInt(key string, def int) int {
	v, ok := m.Properties[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// PropertyAsInt64 parses the named property as a 64-bit integer.
func (m *TableMetadata) PropertyAsInt64(key string, def int64) int64 {
	v, ok := m.Properties[key]
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// PropertyAsBool parses the named property as a boolean.
func (m *TableMetadata) PropertyAsBool(key string, def bool) bool {
	v, ok := m.Properties[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
