package manifest

import (
	"context"
	"fmt"

	"github.com/florinutz/icefloe/table"
)

// RollingWriter wraps a writer factory, starting a fresh manifest whenever
// the current one crosses the target byte size. Completed manifests are
// returned by ToManifestFiles in append order.
type RollingWriter struct {
	newWriter func() (*Writer, error)
	target    int64

	current   *Writer
	completed []*table.ManifestFile
	closed    bool
}

// NewRollingWriter creates a rolling writer with the given roll threshold.
func NewRollingWriter(factory func() (*Writer, error), targetSizeBytes int64) *RollingWriter {
	return &RollingWriter{newWriter: factory, target: targetSizeBytes}
}

// Add appends an ADDED entry, rolling first if the current file is full.
func (r *RollingWriter) Add(ctx context.Context, f *table.DataFile) error {
	w, err := r.writer(ctx)
	if err != nil {
		return err
	}
	return w.Add(f)
}

// AddWithSequence appends an ADDED entry pinned to an explicit sequence.
func (r *RollingWriter) AddWithSequence(ctx context.Context, f *table.DataFile, seq int64) error {
	w, err := r.writer(ctx)
	if err != nil {
		return err
	}
	return w.AddWithSequence(f, seq)
}

// Existing appends an EXISTING entry.
func (r *RollingWriter) Existing(ctx context.Context, f *table.DataFile, snapshotID, seq int64) error {
	w, err := r.writer(ctx)
	if err != nil {
		return err
	}
	return w.Existing(f, snapshotID, seq)
}

// Delete appends a DELETED entry.
func (r *RollingWriter) Delete(ctx context.Context, f *table.DataFile, snapshotID, seq int64) error {
	w, err := r.writer(ctx)
	if err != nil {
		return err
	}
	return w.Delete(f, snapshotID, seq)
}

func (r *RollingWriter) writer(ctx context.Context) (*Writer, error) {
	if r.closed {
		return nil, fmt.Errorf("rolling manifest writer already closed")
	}
	if r.current != nil && r.current.Length() >= r.target {
		if err := r.rollover(ctx); err != nil {
			return nil, err
		}
	}
	if r.current == nil {
		w, err := r.newWriter()
		if err != nil {
			return nil, fmt.Errorf("start manifest: %w", err)
		}
		r.current = w
	}
	return r.current, nil
}

func (r *RollingWriter) rollover(ctx context.Context) error {
	if err := r.current.Close(ctx); err != nil {
		return err
	}
	r.completed = append(r.completed, r.current.ToManifestFile())
	r.current = nil
	return nil
}

// Close finishes the current manifest, if any.
func (r *RollingWriter) Close(ctx context.Context) error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.current == nil {
		return nil
	}
	if err := r.current.Close(ctx); err != nil {
		return err
	}
	r.completed = append(r.completed, r.current.ToManifestFile())
	r.current = nil
	return nil
}

// ToManifestFiles returns the completed manifests in append order.
func (r *RollingWriter) ToManifestFiles() []*table.ManifestFile {
	return r.completed
}
