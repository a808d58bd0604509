package commit

import (
	"strconv"

	"github.com/florinutz/icefloe/table"
)

// Snapshot summary property names.
const (
	AddedDataFilesProp   = "added-data-files"
	DeletedDataFilesProp = "deleted-data-files"
	TotalDataFilesProp   = "total-data-files"

	AddedDeleteFilesProp   = "added-delete-files"
	RemovedDeleteFilesProp = "removed-delete-files"
	TotalDeleteFilesProp   = "total-delete-files"

	AddedRecordsProp   = "added-records"
	DeletedRecordsProp = "deleted-records"
	TotalRecordsProp   = "total-records"

	AddedFileSizeProp   = "added-files-size"
	RemovedFileSizeProp = "removed-files-size"
	TotalFileSizeProp   = "total-files-size"

	AddedPosDeletesProp   = "added-position-deletes"
	RemovedPosDeletesProp = "removed-position-deletes"
	TotalPosDeletesProp   = "total-position-deletes"

	AddedEqDeletesProp   = "added-equality-deletes"
	RemovedEqDeletesProp = "removed-equality-deletes"
	TotalEqDeletesProp   = "total-equality-deletes"
)

// cumulativeProps pairs each running total with the delta keys that move it.
var cumulativeProps = []struct {
	total, added, removed string
}{
	{TotalRecordsProp, AddedRecordsProp, DeletedRecordsProp},
	{TotalFileSizeProp, AddedFileSizeProp, RemovedFileSizeProp},
	{TotalDataFilesProp, AddedDataFilesProp, DeletedDataFilesProp},
	{TotalDeleteFilesProp, AddedDeleteFilesProp, RemovedDeleteFilesProp},
	{TotalPosDeletesProp, AddedPosDeletesProp, RemovedPosDeletesProp},
	{TotalEqDeletesProp, AddedEqDeletesProp, RemovedEqDeletesProp},
}

// zeroTotals starts running totals at zero for branches with no predecessor.
func zeroTotals() map[string]string {
	return map[string]string{
		TotalRecordsProp:     "0",
		TotalFileSizeProp:    "0",
		TotalDataFilesProp:   "0",
		TotalDeleteFilesProp: "0",
		TotalPosDeletesProp:  "0",
		TotalEqDeletesProp:   "0",
	}
}

// aggregateSummary combines the producer's delta with the previous snapshot's
// running totals and the ambient environment context. Delta keys win over
// computed totals; environment keys only fill gaps. A nil delta yields an
// empty summary.
func aggregateSummary(delta, previous map[string]string, env map[string]string) map[string]string {
	if delta == nil {
		return map[string]string{}
	}

	out := make(map[string]string, len(delta)+len(cumulativeProps)+len(env))
	for k, v := range delta {
		out[k] = v
	}

	for _, p := range cumulativeProps {
		if _, set := delta[p.total]; set {
			continue
		}
		if total, ok := updateTotal(previous[p.total], delta[p.added], delta[p.removed]); ok {
			out[p.total] = total
		}
	}

	for k, v := range env {
		if _, set := out[k]; !set {
			out[k] = v
		}
	}
	return out
}

// updateTotal computes previous + added - removed. The total is dropped when
// the previous value is missing or non-numeric, or when the result would go
// negative at any step.
func updateTotal(prevStr, addedStr, removedStr string) (string, bool) {
	if prevStr == "" {
		return "", false
	}
	total, err := strconv.ParseInt(prevStr, 10, 64)
	if err != nil {
		return "", false
	}
	if total >= 0 && addedStr != "" {
		added, err := strconv.ParseInt(addedStr, 10, 64)
		if err != nil {
			return "", false
		}
		total += added
	}
	if total >= 0 && removedStr != "" {
		removed, err := strconv.ParseInt(removedStr, 10, 64)
		if err != nil {
			return "", false
		}
		total -= removed
	}
	if total < 0 {
		return "", false
	}
	return strconv.FormatInt(total, 10), true
}

// SummaryBuilder accumulates a producer's delta summary from the files it
// adds and removes.
type SummaryBuilder struct {
	counts map[string]int64
	props  map[string]string
}

// NewSummaryBuilder creates an empty builder.
func NewSummaryBuilder() *SummaryBuilder {
	return &SummaryBuilder{
		counts: map[string]int64{},
		props:  map[string]string{},
	}
}

// AddFile records a file added by the operation.
func (b *SummaryBuilder) AddFile(f *table.DataFile) {
	b.counts[AddedFileSizeProp] += f.FileSizeBytes
	switch f.Content {
	case table.ContentData:
		b.counts[AddedDataFilesProp]++
		b.counts[AddedRecordsProp] += f.RecordCount
	case table.ContentPositionDeletes:
		b.counts[AddedDeleteFilesProp]++
		b.counts[AddedPosDeletesProp] += f.RecordCount
	case table.ContentEqualityDeletes:
		b.counts[AddedDeleteFilesProp]++
		b.counts[AddedEqDeletesProp] += f.RecordCount
	}
}

// RemoveFile records a file removed by the operation.
func (b *SummaryBuilder) RemoveFile(f *table.DataFile) {
	b.counts[RemovedFileSizeProp] += f.FileSizeBytes
	switch f.Content {
	case table.ContentData:
		b.counts[DeletedDataFilesProp]++
		b.counts[DeletedRecordsProp] += f.RecordCount
	case table.ContentPositionDeletes:
		b.counts[RemovedDeleteFilesProp]++
		b.counts[RemovedPosDeletesProp] += f.RecordCount
	case table.ContentEqualityDeletes:
		b.counts[RemovedDeleteFilesProp]++
		b.counts[RemovedEqDeletesProp] += f.RecordCount
	}
}

// Set adds an explicit summary property, overriding any computed value.
func (b *SummaryBuilder) Set(key, value string) {
	b.props[key] = value
}

// Clear drops accumulated file counts, keeping explicit properties.
func (b *SummaryBuilder) Clear() {
	b.counts = map[string]int64{}
}

// Build returns the delta summary. Zero counters are omitted.
func (b *SummaryBuilder) Build() map[string]string {
	out := make(map[string]string, len(b.counts)+len(b.props))
	for k, v := range b.counts {
		if v != 0 {
			out[k] = strconv.FormatInt(v, 10)
		}
	}
	for k, v := range b.props {
		out[k] = v
	}
	return out
}
