package events

import "log/slog"

// CommitMetrics summarizes the cost of one logical commit.
type CommitMetrics struct {
	Attempts        int
	TotalDurationMS int64
}

// CommitReport is handed to the metrics reporter after a successful commit.
type CommitReport struct {
	TableName      string
	SnapshotID     int64
	Operation      string
	SequenceNumber int64
	Metadata       map[string]string
	Metrics        CommitMetrics
}

// Reporter consumes commit reports.
type Reporter interface {
	Report(report CommitReport)
}

// LoggingReporter writes commit reports to a slog logger. It is the default
// reporter.
type LoggingReporter struct {
	Logger *slog.Logger
}

func (r LoggingReporter) Report(report CommitReport) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("commit report",
		"table", report.TableName,
		"snapshot_id", report.SnapshotID,
		"operation", report.Operation,
		"sequence_number", report.SequenceNumber,
		"attempts", report.Metrics.Attempts,
		"duration_ms", report.Metrics.TotalDurationMS,
	)
}
