package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/voxel-go/engine/compute"
	"github.com/Carmen-Shannon/voxel-go/engine/voxel"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sand  = voxel.NewVoxel(voxel.TypeSand, 0.5, 0.3, 0.1)
	solid = voxel.NewVoxel(voxel.TypeSolid, 0.2, 0.2, 0.2)
)

func newTestBackend(t *testing.T, options ...compute.BackendBuilderOption) compute.Backend {
	t.Helper()
	b, err := compute.NewBackend(compute.BackendTypeCPU, append([]compute.BackendBuilderOption{compute.WithWorkers(4)}, options...)...)
	require.NoError(t, err)
	t.Cleanup(b.Release)
	return b
}

func newTestCoordinator(t *testing.T, b compute.Backend, g *voxel.Grid, options ...CoordinatorBuilderOption) Coordinator {
	t.Helper()
	opts := append([]CoordinatorBuilderOption{WithScreenSize(9, 9), WithWorkGroupSize(8)}, options...)
	c, err := NewCoordinator(b, g, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Release)
	return c
}

// lookAt returns input for a 9x9 output looking from eye at target.
func lookAt(eye, target mgl32.Vec3) FrameInput {
	view := mgl32.LookAtV(eye, target, mgl32.Vec3{0, 1, 0})
	proj := mgl32.Perspective(mgl32.DegToRad(45), 1, 0.1, 100)
	return FrameInput{
		CameraToWorld:     view.Inv(),
		InverseProjection: proj.Inv(),
	}
}

// wallGrid is a 4³ grid with a solid wall filling the z=1 plane.
func wallGrid() *voxel.Grid {
	g := voxel.NewGrid(4)
	for x := range uint32(4) {
		for y := range uint32(4) {
			g.Set(x, y, 1, solid)
		}
	}
	return g
}

func TestIdentityTickPreservesGrid(t *testing.T) {
	g := voxel.NewGrid(10, voxel.WithFill(voxel.DiagonalFill(sand)))
	require.Equal(t, 10, g.Occupied())

	c := newTestCoordinator(t, newTestBackend(t), g,
		WithUpdateKernel(UpdateKernelIdentity),
		WithPhysicsTrigger(0),
	)

	report, err := c.Tick(time.Millisecond, lookAt(mgl32.Vec3{5, 5, -20}, mgl32.Vec3{5, 5, 5}))
	require.NoError(t, err)
	assert.True(t, report.Updated)
	assert.False(t, report.Skipped)
	assert.Equal(t, []string{PassUpdate, PassSwap, PassConsumer}, report.Passes)
	assert.Equal(t, []State{StateUpdating, StateSwapping, StateIdle}, report.Transitions)
	assert.Equal(t, StateIdle, report.State)
	assert.Equal(t, StateIdle, c.State())

	got, err := c.ReadCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, g.Checksum(), got.Checksum())
	assert.Equal(t, 10, got.Occupied())
}

func TestSandSettlesAcrossTicks(t *testing.T) {
	g := voxel.NewGrid(8)
	g.Set(3, 5, 3, sand)

	c := newTestCoordinator(t, newTestBackend(t), g, WithPhysicsTrigger(0))
	in := lookAt(mgl32.Vec3{4, 4, -20}, mgl32.Vec3{4, 4, 4})

	for range 10 {
		_, err := c.Tick(time.Millisecond, in)
		require.NoError(t, err)
	}

	got, err := c.ReadCurrent(context.Background())
	require.NoError(t, err)
	v, _ := got.Get(3, 0, 3)
	assert.Equal(t, sand, v)
	assert.Equal(t, 1, got.Occupied())
	assert.Equal(t, uint64(10), c.Stats().PhysicsUpdates)
	assert.Equal(t, uint64(10), c.Stats().Swaps)
}

func TestTimerGatesUpdatePass(t *testing.T) {
	g := voxel.NewGrid(4)
	g.Set(1, 3, 1, sand)
	c := newTestCoordinator(t, newTestBackend(t), g, WithPhysicsTrigger(50*time.Millisecond))
	in := lookAt(mgl32.Vec3{2, 2, -10}, mgl32.Vec3{2, 2, 2})

	report, err := c.Tick(10*time.Millisecond, in)
	require.NoError(t, err)
	assert.False(t, report.Updated)
	assert.Equal(t, []string{PassConsumer}, report.Passes)
	assert.Empty(t, report.Transitions)

	got, err := c.ReadCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, g.Checksum(), got.Checksum())

	report, err = c.Tick(40*time.Millisecond, in)
	require.NoError(t, err)
	assert.True(t, report.Updated)
	assert.Equal(t, []string{PassUpdate, PassSwap, PassConsumer}, report.Passes)

	got, err = c.ReadCurrent(context.Background())
	require.NoError(t, err)
	v, _ := got.Get(1, 2, 1)
	assert.Equal(t, sand, v)

	// the triggered timer resets on the following tick
	report, err = c.Tick(10*time.Millisecond, in)
	require.NoError(t, err)
	assert.False(t, report.Updated)
	assert.Equal(t, 10*time.Millisecond, c.Timer().Elapsed())
}

func TestSkippedTickIsRetried(t *testing.T) {
	fail := true
	b := newTestBackend(t, compute.WithFrameAcquirer(func() error {
		if fail {
			return errors.New("surface lost")
		}
		return nil
	}))

	g := voxel.NewGrid(4)
	g.Set(2, 3, 2, sand)
	c := newTestCoordinator(t, b, g, WithPhysicsTrigger(20*time.Millisecond))
	in := lookAt(mgl32.Vec3{2, 2, -10}, mgl32.Vec3{2, 2, 2})

	report, err := c.Tick(30*time.Millisecond, in)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.False(t, report.Updated)
	assert.Empty(t, report.Passes)
	assert.Equal(t, StateIdle, report.State)
	assert.Equal(t, time.Duration(0), c.Timer().Elapsed())

	got, err := c.ReadCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, g.Checksum(), got.Checksum())

	fail = false
	report, err = c.Tick(0, in)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.True(t, report.Updated, "dt of the skipped tick should carry over")

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Ticks)
	assert.Equal(t, uint64(1), stats.Skipped)
	assert.Equal(t, uint64(1), stats.PhysicsUpdates)
}

func TestBrushEditsThroughSelection(t *testing.T) {
	c := newTestCoordinator(t, newTestBackend(t), wallGrid(), WithPhysicsTrigger(0))
	in := lookAt(mgl32.Vec3{2.5, 2.5, -10}, mgl32.Vec3{2.5, 2.5, 0})
	ctx := context.Background()

	sel, err := c.ReadSelection(ctx)
	require.NoError(t, err)
	assert.Equal(t, compute.NoSelection(), sel)

	_, err = c.Tick(time.Millisecond, in)
	require.NoError(t, err)

	sel, err = c.ReadSelection(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(1), sel.Hit)
	assert.Equal(t, [3]float32{2, 2, 1}, sel.Selected)
	assert.Equal(t, [3]float32{0, 0, -1}, sel.Normal)

	paint := in
	paint.MouseClick = compute.ClickPaint
	_, err = c.Tick(time.Millisecond, paint)
	require.NoError(t, err)

	got, err := c.ReadCurrent(ctx)
	require.NoError(t, err)
	v, _ := got.Get(2, 2, 0)
	assert.Equal(t, voxel.TypeSand, v.Type(), "paint fills the cell in front of the hit face")
	assert.Equal(t, mgl32.Vec3{2, 2, 1}, got.Selected())
	assert.Equal(t, mgl32.Vec3{0, 0, -1}, got.Normal())

	erase := in
	erase.MouseClick = compute.ClickErase
	erase.BrushSize = 1
	before := got.Occupied()
	_, err = c.Tick(time.Millisecond, erase)
	require.NoError(t, err)

	got, err = c.ReadCurrent(ctx)
	require.NoError(t, err)
	v, _ = got.Get(2, 2, 1)
	assert.True(t, v.Empty())
	assert.Less(t, got.Occupied(), before)
}

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := newTestBackend(t)
	c := newTestCoordinator(t, b, voxel.NewGrid(4), WithRegistry(reg), WithPhysicsTrigger(0))

	_, err := c.Tick(time.Millisecond, lookAt(mgl32.Vec3{2, 2, -10}, mgl32.Vec3{2, 2, 2}))
	require.NoError(t, err)

	impl := c.(*coordinator)
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.metrics.ticks))
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.metrics.physicsUpdates))
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.metrics.swaps))
	assert.Equal(t, float64(0), testutil.ToFloat64(impl.metrics.skipped))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	_, err = NewCoordinator(b, voxel.NewGrid(4), WithRegistry(reg))
	assert.Error(t, err, "a second coordinator on the same registry collides")
}

func TestNewCoordinatorRejectsBadInput(t *testing.T) {
	b := newTestBackend(t)

	_, err := NewCoordinator(nil, voxel.NewGrid(4))
	assert.Error(t, err)

	_, err = NewCoordinator(b, nil)
	assert.Error(t, err)

	_, err = NewCoordinator(b, voxel.NewGrid(0))
	assert.Error(t, err)

	_, err = NewCoordinator(b, voxel.NewGrid(4), WithScreenSize(0, 10))
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "updating", StateUpdating.String())
	assert.Equal(t, "swapping", StateSwapping.String())
}

func TestResetReplacesGrid(t *testing.T) {
	g := voxel.NewGrid(4)
	g.Set(0, 3, 0, sand)
	c := newTestCoordinator(t, newTestBackend(t), g, WithPhysicsTrigger(0))
	in := lookAt(mgl32.Vec3{2, 2, -10}, mgl32.Vec3{2, 2, 2})

	_, err := c.Tick(time.Millisecond, in)
	require.NoError(t, err)

	require.NoError(t, c.Reset(wallGrid()))
	got, err := c.ReadCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wallGrid().Checksum(), got.Checksum())

	// scratch was reset too, so the next update starts from the wall
	_, err = c.Tick(time.Millisecond, in)
	require.NoError(t, err)
	got, err = c.ReadCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16, got.Occupied())

	assert.ErrorIs(t, c.Reset(voxel.NewGrid(5)), voxel.ErrInvalidLayout)
	assert.ErrorIs(t, c.Reset(nil), voxel.ErrInvalidLayout)
}

func TestResetClearsSelectionAndHeldTime(t *testing.T) {
	fail := false
	b := newTestBackend(t, compute.WithFrameAcquirer(func() error {
		if fail {
			return errors.New("surface lost")
		}
		return nil
	}))
	c := newTestCoordinator(t, b, wallGrid(), WithPhysicsTrigger(time.Second))
	in := lookAt(mgl32.Vec3{2.5, 2.5, -10}, mgl32.Vec3{2.5, 2.5, 0})

	_, err := c.Tick(time.Millisecond, in)
	require.NoError(t, err)
	sel, err := c.ReadSelection(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(1), sel.Hit)

	fail = true
	report, err := c.Tick(2*time.Second, in)
	require.NoError(t, err)
	require.True(t, report.Skipped)

	require.NoError(t, c.Reset(wallGrid()))
	sel, err = c.ReadSelection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, compute.NoSelection(), sel)

	// the held back time of the skipped tick belongs to the old world
	fail = false
	report, err = c.Tick(time.Millisecond, in)
	require.NoError(t, err)
	assert.False(t, report.Updated)
	assert.Equal(t, time.Millisecond, c.Timer().Elapsed())
}

func TestPausedPhysicsOnlyRunsConsumer(t *testing.T) {
	g := voxel.NewGrid(4)
	g.Set(1, 3, 1, sand)
	c := newTestCoordinator(t, newTestBackend(t), g, WithPhysicsTrigger(0))
	in := lookAt(mgl32.Vec3{2, 2, -10}, mgl32.Vec3{2, 2, 2})

	c.SetPhysicsEnabled(false)
	assert.False(t, c.PhysicsEnabled())

	report, err := c.Tick(time.Second, in)
	require.NoError(t, err)
	assert.False(t, report.Updated)
	assert.Equal(t, []string{PassConsumer}, report.Passes)
	assert.Equal(t, time.Duration(0), c.Timer().Elapsed())

	got, err := c.ReadCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, g.Checksum(), got.Checksum())

	c.SetPhysicsEnabled(true)
	report, err = c.Tick(time.Millisecond, in)
	require.NoError(t, err)
	assert.True(t, report.Updated)
}
