// Package inventory defines the consumed inventory boundary of spec.md §6:
// a read-only snapshot the Manager pulls once per tick. The HTTP
// configuration API that owns Groups/Nodes in production is out of scope;
// this package ships reference providers for tests and standalone
// operation, grounded on the teacher's yaml.v3-based config loading.
package inventory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"netwatch/engine/models"
)

// Provider is the inventory boundary the Manager calls once per tick; the
// provider owns its own caching (spec.md §6).
type Provider interface {
	Snapshot(ctx context.Context) (models.Inventory, error)
}

// StaticProvider returns a fixed, in-memory snapshot — useful for tests and
// for embedding the engine behind a caller that already has inventory data.
type StaticProvider struct {
	mu  sync.RWMutex
	inv models.Inventory
}

// NewStaticProvider constructs a StaticProvider from an initial snapshot.
func NewStaticProvider(inv models.Inventory) *StaticProvider {
	return &StaticProvider{inv: inv}
}

// Snapshot returns the current in-memory inventory.
func (p *StaticProvider) Snapshot(ctx context.Context) (models.Inventory, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.inv, nil
}

// Replace atomically swaps the in-memory snapshot, letting a caller push a
// fresh inventory without recreating the provider.
func (p *StaticProvider) Replace(inv models.Inventory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inv = inv
}

// FileProvider loads and caches an Inventory from a YAML file on disk,
// grounded on the teacher's RuntimeConfigManager load/save pattern
// (engine/internal/runtime/runtime.go) applied to inventory data instead of
// engine configuration.
type FileProvider struct {
	mu   sync.RWMutex
	path string
	inv  models.Inventory
}

// NewFileProvider loads path immediately so construction fails fast on a
// malformed file.
func NewFileProvider(path string) (*FileProvider, error) {
	p := &FileProvider{path: path}
	if err := p.reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Snapshot returns the most recently loaded inventory.
func (p *FileProvider) Snapshot(ctx context.Context) (models.Inventory, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.inv, nil
}

// Reload re-reads the backing file, replacing the cached snapshot on
// success. A parse failure leaves the previous snapshot in place.
func (p *FileProvider) Reload() error {
	return p.reload()
}

func (p *FileProvider) reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read inventory file: %w", err)
	}
	var inv models.Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return fmt.Errorf("parse inventory file: %w", err)
	}
	backfillIDs(&inv)
	p.mu.Lock()
	p.inv = inv
	p.mu.Unlock()
	return nil
}

// backfillIDs assigns a fresh identifier to any entity an operator hand-edits
// the inventory file without one, so a YAML author can add a node or metric
// binding without inventing an ID up front.
func backfillIDs(inv *models.Inventory) {
	for i := range inv.Groups {
		if inv.Groups[i].ID == "" {
			inv.Groups[i].ID = uuid.NewString()
		}
	}
	for i := range inv.Nodes {
		if inv.Nodes[i].ID == "" {
			inv.Nodes[i].ID = uuid.NewString()
		}
	}
	for i := range inv.NodeMetrics {
		if inv.NodeMetrics[i].ID == "" {
			inv.NodeMetrics[i].ID = uuid.NewString()
		}
	}
	for i := range inv.NodeInterfaces {
		if inv.NodeInterfaces[i].ID == "" {
			inv.NodeInterfaces[i].ID = uuid.NewString()
		}
	}
}
