package inventory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netwatch/engine/models"
)

func TestStaticProviderSnapshotAndReplace(t *testing.T) {
	p := NewStaticProvider(models.Inventory{Nodes: []models.Node{{ID: "n1"}}})

	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Nodes, 1)

	p.Replace(models.Inventory{Nodes: []models.Node{{ID: "n1"}, {ID: "n2"}}})
	snap, err = p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Nodes, 2)
}

const sampleInventoryYAML = `
groups:
  - id: g1
    name: core
    interval_seconds: 60
    max_retries: 3
    enabled: true
nodes:
  - id: n1
    name: router1
    ip: 10.0.0.1
    group_id: g1
    enabled: true
`

func TestFileProviderLoadsOnConstruction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleInventoryYAML), 0o644))

	p, err := NewFileProvider(path)
	require.NoError(t, err)

	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, "router1", snap.Nodes[0].Name)
}

func TestFileProviderConstructionFailsOnMissingFile(t *testing.T) {
	_, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// A failed Reload leaves the previously loaded snapshot in place.
func TestFileProviderReloadKeepsPreviousSnapshotOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleInventoryYAML), 0o644))

	p, err := NewFileProvider(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("not: [valid yaml"), 0o644))
	err = p.Reload()
	assert.Error(t, err)

	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 1, "previous snapshot should survive a failed reload")
}

// Entities left without an explicit id in the YAML file get one assigned
// on load, so an operator can hand-add a node without inventing an ID.
func TestFileProviderBackfillsMissingIDs(t *testing.T) {
	const noIDYAML = `
groups:
  - name: core
    interval_seconds: 60
    enabled: true
nodes:
  - name: router1
    ip: 10.0.0.1
    group_id: g1
    enabled: true
`
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(noIDYAML), 0o644))

	p, err := NewFileProvider(path)
	require.NoError(t, err)

	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Groups, 1)
	require.Len(t, snap.Nodes, 1)
	assert.NotEmpty(t, snap.Groups[0].ID)
	assert.NotEmpty(t, snap.Nodes[0].ID)
}

func TestFileProviderReloadPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleInventoryYAML), 0o644))

	p, err := NewFileProvider(path)
	require.NoError(t, err)

	updated := sampleInventoryYAML + `  - id: n2
    name: router2
    ip: 10.0.0.2
    group_id: g1
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, p.Reload())

	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Nodes, 2)
}
