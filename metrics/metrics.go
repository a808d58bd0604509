package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommitAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "icefloe_commit_attempts_total",
		Help: "Total number of snapshot commit attempts, including retries.",
	})

	Commits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "icefloe_commits_total",
		Help: "Total number of finished snapshot commits by outcome.",
	}, []string{"operation", "outcome"})

	CommitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "icefloe_commit_duration_seconds",
		Help:    "End-to-end duration of snapshot commits, retries included.",
		Buckets: prometheus.DefBuckets,
	})

	ManifestsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "icefloe_manifests_written_total",
		Help: "Total number of manifest files written.",
	})

	ManifestListsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "icefloe_manifest_lists_written_total",
		Help: "Total number of manifest list files written.",
	})

	OrphansDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "icefloe_orphan_files_deleted_total",
		Help: "Total number of orphan manifest lists removed after successful commits.",
	})
)
