package commit

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/florinutz/icefloe/events"
	"github.com/florinutz/icefloe/icefloeerr"
	"github.com/florinutz/icefloe/manifest"
	"github.com/florinutz/icefloe/table"
)

// SnapshotProducer drives one logical commit: it turns a concrete operation's
// pending changes into a candidate snapshot and installs it on the target
// branch with optimistic retries. State split:
//
//   - stable across retries: commitUUID, snapshotID, the enrichment cache
//   - per-attempt scratch: attempt counter, manifestLists accumulator
//
// Concrete producers embed this struct and implement Producer.
type SnapshotProducer struct {
	ops       table.Operations
	op        Producer
	tableName string

	logger   *slog.Logger
	tracer   trace.Tracer
	reporter events.Reporter
	env      map[string]string

	strictCleanup        bool
	canInheritSnapshotID bool
	targetSizeBytes      int64
	workerPoolSize       int

	commitUUID   string
	targetBranch string
	stageOnly    bool

	deleteFunc       func(ctx context.Context, path string)
	deleteOverridden bool

	base *table.TableMetadata

	mu            sync.Mutex
	snapshotIDVal *int64
	manifestCount int
	attempt       int
	manifestLists []string

	enrichCache sync.Map // manifest path -> *table.ManifestFile
}

func newSnapshotProducer(ops table.Operations, op Producer, tableName string) *SnapshotProducer {
	base := ops.Current()
	p := &SnapshotProducer{
		ops:           ops,
		op:            op,
		tableName:     tableName,
		logger:        slog.Default().With("component", "commit"),
		tracer:        otel.Tracer("icefloe/commit"),
		reporter:      events.LoggingReporter{},
		env:           map[string]string{},
		strictCleanup: ops.RequireStrictCleanup(),
		commitUUID:    uuid.New().String(),
		targetBranch:  table.MainBranch,
		base:          base,
	}
	p.deleteFunc = func(ctx context.Context, path string) {
		if err := ops.IO().Delete(ctx, path); err != nil {
			p.logger.Warn("failed to delete file", "path", path, "error", err)
		}
	}
	p.targetSizeBytes = base.PropertyAsInt64(table.ManifestTargetSizeBytes, table.ManifestTargetSizeBytesDefault)
	inheritance := base.PropertyAsBool(table.SnapshotIDInheritance, false)
	p.canInheritSnapshotID = base.FormatVersion > 1 || inheritance
	p.workerPoolSize = runtime.GOMAXPROCS(0)
	return p
}

// SetLogger replaces the default logger.
func (p *SnapshotProducer) SetLogger(logger *slog.Logger) {
	if logger != nil {
		p.logger = logger.With("component", "commit")
	}
}

// ReportWith replaces the default commit-report sink.
func (p *SnapshotProducer) ReportWith(r events.Reporter) {
	if r != nil {
		p.reporter = r
	}
}

// SetEnvironment injects the ambient environment context merged into every
// snapshot summary and commit report (engine name, version, and the like).
func (p *SnapshotProducer) SetEnvironment(env map[string]string) {
	p.env = map[string]string{}
	for k, v := range env {
		p.env[k] = v
	}
}

// StageOnly adds the snapshot without moving any branch ref.
func (p *SnapshotProducer) StageOnly() {
	p.stageOnly = true
}

// WorkerPoolSize fixes the parallelism for manifest writing and enrichment.
func (p *SnapshotProducer) WorkerPoolSize(n int) {
	if n > 0 {
		p.workerPoolSize = n
	}
}

// TargetBranch sets the branch the commit lands on. Names resolving to tags
// are rejected before any I/O happens.
func (p *SnapshotProducer) TargetBranch(branch string) error {
	if branch == "" {
		return &icefloeerr.ValidationError{Operation: p.op.Operation(), Reason: "invalid branch name: empty"}
	}
	if ref, ok := p.base.Ref(branch); ok && !ref.IsBranch() {
		return &icefloeerr.ValidationError{
			Operation: p.op.Operation(),
			Reason:    fmt.Sprintf("%s is a tag, not a branch; tags cannot be targets for producing snapshots", branch),
		}
	}
	p.targetBranch = branch
	return nil
}

// DeleteWith overrides the callback used to delete uncommitted files. It can
// be set at most once.
func (p *SnapshotProducer) DeleteWith(fn func(ctx context.Context, path string)) error {
	if p.deleteOverridden {
		return fmt.Errorf("cannot set delete callback more than once")
	}
	p.deleteOverridden = true
	p.deleteFunc = fn
	return nil
}

// Current returns the base metadata of the current attempt.
func (p *SnapshotProducer) Current() *table.TableMetadata {
	return p.base
}

func (p *SnapshotProducer) refresh(ctx context.Context) (*table.TableMetadata, error) {
	base, err := p.ops.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh table metadata: %w", err)
	}
	p.base = base
	return base, nil
}

// SnapshotID returns the producer's snapshot id, assigning it on first use.
// The id is stable across retries and never collides with an existing
// snapshot.
func (p *SnapshotProducer) SnapshotID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snapshotIDVal == nil {
		id := p.ops.NewSnapshotID()
		for p.ops.Current().Snapshot(id) != nil {
			id = p.ops.NewSnapshotID()
		}
		p.snapshotIDVal = &id
	}
	return *p.snapshotIDVal
}

// setSnapshotID pins the snapshot id; used by rollback, which intentionally
// reuses an existing id.
func (p *SnapshotProducer) setSnapshotID(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshotIDVal = &id
}

// manifestListPath allocates the output path for this attempt's manifest
// list. The attempt counter makes the name unique across retries.
func (p *SnapshotProducer) manifestListPath() string {
	p.mu.Lock()
	p.attempt++
	attempt := p.attempt
	p.mu.Unlock()
	return p.ops.MetadataFileLocation(fmt.Sprintf("snap-%d-%d-%s.avro", p.SnapshotID(), attempt, p.commitUUID))
}

// newManifestPath allocates the next manifest output path. Numbering is
// process-internal and not dense across retries.
func (p *SnapshotProducer) newManifestPath() string {
	p.mu.Lock()
	n := p.manifestCount
	p.manifestCount++
	p.mu.Unlock()
	return p.ops.MetadataFileLocation(fmt.Sprintf("%s-m%d.avro", p.commitUUID, n))
}

// writerSnapshotID returns the id stamped on written manifest entries, or
// nil when readers inherit it from the committing snapshot.
func (p *SnapshotProducer) writerSnapshotID() *int64 {
	if p.canInheritSnapshotID {
		return nil
	}
	id := p.SnapshotID()
	return &id
}

// NewManifestWriter creates a writer for data manifests.
func (p *SnapshotProducer) NewManifestWriter(spec table.PartitionSpec, sequenceNumber int64) (*manifest.Writer, error) {
	return manifest.NewWriter(p.ops.IO(), p.ops.Encryption(), p.base.FormatVersion, spec,
		table.ManifestContentData, p.newManifestPath(), p.writerSnapshotID(), sequenceNumber)
}

// NewDeleteManifestWriter creates a writer for delete manifests.
func (p *SnapshotProducer) NewDeleteManifestWriter(spec table.PartitionSpec, sequenceNumber int64) (*manifest.Writer, error) {
	return manifest.NewWriter(p.ops.IO(), p.ops.Encryption(), p.base.FormatVersion, spec,
		table.ManifestContentDeletes, p.newManifestPath(), p.writerSnapshotID(), sequenceNumber)
}

// NewRollingManifestWriter wraps a data manifest writer factory with the
// configured roll threshold.
func (p *SnapshotProducer) NewRollingManifestWriter(spec table.PartitionSpec, sequenceNumber int64) *manifest.RollingWriter {
	return manifest.NewRollingWriter(func() (*manifest.Writer, error) {
		return p.NewManifestWriter(spec, sequenceNumber)
	}, p.targetSizeBytes)
}

// NewRollingDeleteManifestWriter is the delete-manifest counterpart.
func (p *SnapshotProducer) NewRollingDeleteManifestWriter(spec table.PartitionSpec, sequenceNumber int64) *manifest.RollingWriter {
	return manifest.NewRollingWriter(func() (*manifest.Writer, error) {
		return p.NewDeleteManifestWriter(spec, sequenceNumber)
	}, p.targetSizeBytes)
}

// deleteFile invokes the delete callback.
func (p *SnapshotProducer) deleteFile(ctx context.Context, path string) {
	p.deleteFunc(ctx, path)
}

// cleanAll removes every manifest list written by this producer and tells
// the operation to drop all of its uncommitted manifests.
func (p *SnapshotProducer) cleanAll(ctx context.Context) {
	p.mu.Lock()
	lists := append([]string(nil), p.manifestLists...)
	p.manifestLists = nil
	p.mu.Unlock()
	for _, path := range lists {
		p.deleteFile(ctx, path)
	}
	p.op.CleanUncommitted(ctx, map[string]struct{}{})
}
