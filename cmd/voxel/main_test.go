package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/voxel-go/engine/config"
	"github.com/Carmen-Shannon/voxel-go/engine/voxel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headlessConfig = `
grid:
  dim: 16
  seed: 7
compute:
  backend: cpu
  workers: 2
window:
  width: 32
  height: 24
simulation:
  tick_rate: 500
  physics_rate: 1000
`

func loadHeadless(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voxel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(headlessConfig), 0o600))
	t.Setenv(config.EnvBackend, "")
	t.Setenv(config.EnvMetricsAddr, "")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestRunHeadlessStopsAfterTicks(t *testing.T) {
	cfg := loadHeadless(t)
	want := voxel.NewGrid(cfg.Grid.Dim, voxel.WithFill(voxel.SphereFill(voxel.SandColor, 0, nil))).Occupied()
	require.Positive(t, want)

	out, err := run(context.Background(), cfg, 5)
	require.NoError(t, err)

	assert.Equal(t, uint64(5), out.Stats.Ticks)
	assert.Zero(t, out.Stats.Skipped)
	assert.Equal(t, out.Stats.PhysicsUpdates, out.Stats.Swaps)
	// no window means no brush input, so every grain survives the physics steps
	assert.Equal(t, want, out.Occupied)
	assert.NotZero(t, out.Checksum)
}

func TestRunHeadlessQuitsOnCancel(t *testing.T) {
	cfg := loadHeadless(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	var out summary
	var err error
	go func() {
		defer close(done)
		out, err = run(ctx, cfg, 0)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after the context was cancelled")
	}
	require.NoError(t, err)
	assert.Positive(t, out.Stats.Ticks)
}
