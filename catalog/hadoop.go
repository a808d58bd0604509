package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/florinutz/icefloe/storage"
	"github.com/florinutz/icefloe/table"
)

// Hadoop stores table metadata as versioned JSON files on an object store.
// No catalog server required. Table location: {warehouse}/{namespace}/{table}/
type Hadoop struct {
	warehouse string
	storage   storage.Storage
}

// NewHadoop creates a hadoop-style catalog backed by the given storage.
func NewHadoop(warehouse string, store storage.Storage) *Hadoop {
	return &Hadoop{warehouse: warehouse, storage: store}
}

func (c *Hadoop) tablePath(ns []string, name string) string {
	parts := append([]string{c.warehouse}, ns...)
	parts = append(parts, name)
	return path.Join(parts...)
}

func (c *Hadoop) metadataDir(ns []string, name string) string {
	return path.Join(c.tablePath(ns, name), "metadata")
}

// CreateTable writes the initial metadata as v1.metadata.json and returns
// operations bound to the new table.
func (c *Hadoop) CreateTable(ctx context.Context, ns []string, name string, meta *table.TableMetadata) (*TableOps, error) {
	metaDir := c.metadataDir(ns, name)

	version, err := c.latestVersion(ctx, metaDir)
	if err != nil {
		return nil, err
	}
	if version > 0 {
		return nil, fmt.Errorf("table %s.%s already exists", strings.Join(ns, "."), name)
	}

	meta.Location = c.tablePath(ns, name)
	if err := c.writeVersion(ctx, metaDir, 1, meta); err != nil {
		return nil, err
	}

	return c.ops(ns, name, meta, 1), nil
}

// LoadTable reads the latest versioned metadata file. Returns nil when the
// table does not exist.
func (c *Hadoop) LoadTable(ctx context.Context, ns []string, name string) (*TableOps, error) {
	metaDir := c.metadataDir(ns, name)

	version, err := c.latestVersion(ctx, metaDir)
	if err != nil {
		return nil, err
	}
	if version < 1 {
		return nil, nil
	}

	meta, err := c.readVersion(ctx, metaDir, version)
	if err != nil {
		return nil, err
	}
	return c.ops(ns, name, meta, version), nil
}

func (c *Hadoop) ops(ns []string, name string, meta *table.TableMetadata, version int) *TableOps {
	return &TableOps{
		catalog:   c,
		namespace: ns,
		name:      name,
		current:   meta,
		version:   version,
	}
}

func (c *Hadoop) readVersion(ctx context.Context, metaDir string, version int) (*table.TableMetadata, error) {
	p := path.Join(metaDir, fmt.Sprintf("v%d.metadata.json", version))
	data, err := c.storage.Read(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("read metadata v%d: %w", version, err)
	}
	var meta table.TableMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata v%d: %w", version, err)
	}
	return &meta, nil
}

func (c *Hadoop) writeVersion(ctx context.Context, metaDir string, version int, meta *table.TableMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	p := path.Join(metaDir, fmt.Sprintf("v%d.metadata.json", version))
	if err := c.storage.Write(ctx, p, data); err != nil {
		return fmt.Errorf("write metadata v%d: %w", version, err)
	}

	// Write version-hint.text for other readers.
	hintPath := path.Join(metaDir, "version-hint.text")
	if err := c.storage.Write(ctx, hintPath, []byte(strconv.Itoa(version))); err != nil {
		return fmt.Errorf("write version hint: %w", err)
	}
	return nil
}

// latestVersion finds the highest version number in the metadata directory.
// Returns 0 if no metadata files exist.
func (c *Hadoop) latestVersion(ctx context.Context, metaDir string) (int, error) {
	// Try reading version-hint.text first.
	hintPath := path.Join(metaDir, "version-hint.text")
	hintData, err := c.storage.Read(ctx, hintPath)
	if err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(string(hintData))); err == nil && v > 0 {
			// The hint may trail the truth; scan forward from it.
			for {
				p := path.Join(metaDir, fmt.Sprintf("v%d.metadata.json", v+1))
				exists, err := c.storage.Exists(ctx, p)
				if err != nil {
					return 0, fmt.Errorf("scan versions: %w", err)
				}
				if !exists {
					return v, nil
				}
				v++
			}
		}
	}

	// Fallback: scan for v*.metadata.json files from the start.
	for v := 1; ; v++ {
		p := path.Join(metaDir, fmt.Sprintf("v%d.metadata.json", v))
		exists, err := c.storage.Exists(ctx, p)
		if err != nil {
			return 0, fmt.Errorf("scan versions: %w", err)
		}
		if !exists {
			return v - 1, nil
		}
	}
}
