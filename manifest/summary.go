package manifest

import (
	"bytes"

	"github.com/florinutz/icefloe/table"
)

// PartitionSummary aggregates per-partition-field bounds across the entries
// of one manifest. Bounds are lexicographic over the identity-transformed
// string values carried in DataFile.Partition.
type PartitionSummary struct {
	fields []table.PartitionField
	stats  []fieldStats
}

type fieldStats struct {
	containsNull bool
	lower, upper []byte
	seen         bool
}

// NewPartitionSummary creates an aggregator for the given spec.
func NewPartitionSummary(spec table.PartitionSpec) *PartitionSummary {
	return &PartitionSummary{
		fields: spec.Fields,
		stats:  make([]fieldStats, len(spec.Fields)),
	}
}

// Update folds one file's partition tuple into the summary.
func (p *PartitionSummary) Update(partition map[string]string) {
	for i, f := range p.fields {
		v, ok := partition[f.Name]
		if !ok {
			p.stats[i].containsNull = true
			continue
		}
		b := []byte(v)
		st := &p.stats[i]
		if !st.seen {
			st.seen = true
			st.lower = b
			st.upper = b
			continue
		}
		if bytes.Compare(b, st.lower) < 0 {
			st.lower = b
		}
		if bytes.Compare(b, st.upper) > 0 {
			st.upper = b
		}
	}
}

// Summaries returns one FieldSummary per partition field, in spec order.
func (p *PartitionSummary) Summaries() []table.FieldSummary {
	if len(p.fields) == 0 {
		return nil
	}
	out := make([]table.FieldSummary, len(p.fields))
	for i, st := range p.stats {
		out[i] = table.FieldSummary{
			ContainsNull: st.containsNull,
			LowerBound:   st.lower,
			UpperBound:   st.upper,
		}
	}
	return out
}
