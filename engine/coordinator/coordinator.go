package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Carmen-Shannon/voxel-go/common"
	"github.com/Carmen-Shannon/voxel-go/engine/compute"
	"github.com/Carmen-Shannon/voxel-go/engine/compute/bind_group_provider"
	"github.com/Carmen-Shannon/voxel-go/engine/compute/pipeline"
	"github.com/Carmen-Shannon/voxel-go/engine/compute/shader"
	"github.com/Carmen-Shannon/voxel-go/engine/voxel"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
)

const skipLogInterval = time.Second

// State is the coordinator's position in the per-tick update cycle.
type State int

const (
	// StateIdle means no pass is recorded; current is the published grid.
	StateIdle State = iota

	// StateUpdating means the update pass is recorded and scratch is being written.
	StateUpdating

	// StateSwapping means scratch is being copied back into current.
	StateSwapping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUpdating:
		return "updating"
	case StateSwapping:
		return "swapping"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FrameInput is the host input for one tick.
type FrameInput struct {
	CameraToWorld     mgl32.Mat4
	InverseProjection mgl32.Mat4

	// MouseClick holds compute.ClickPaint and compute.ClickErase bits.
	MouseClick uint32
	BrushSize  uint32

	// BrushVoxel is painted by ClickPaint; the zero value paints sand.
	BrushVoxel voxel.Voxel
}

// TickReport describes what one Tick recorded.
type TickReport struct {
	Updated     bool
	Skipped     bool
	Passes      []string
	State       State
	Transitions []State
}

// coordinator is the implementation of the Coordinator interface.
type coordinator struct {
	backend compute.Backend
	dim     uint32

	timer     *PhysicsTimer
	pendingDT time.Duration
	state     State
	paused    bool

	workGroupSize uint32
	screenWidth   int
	screenHeight  int
	updateKernel  UpdateKernel
	registry      prometheus.Registerer
	metrics       *metrics

	current   compute.Buffer
	scratch   compute.Buffer
	constants compute.Buffer
	selection compute.Buffer
	output    compute.Image

	updatePipeline   pipeline.Pipeline
	consumerPipeline pipeline.Pipeline
	updateProvider   bind_group_provider.BindGroupProvider
	consumerProvider bind_group_provider.BindGroupProvider

	skipsSinceLog int
	lastSkipLog   time.Time
}

// Coordinator owns the double-buffered grid on a compute backend and records, each tick, the
// update pass into scratch, the copy of scratch back into current and the consumer pass that
// renders current into the output image. Consumers only ever read current.
//
// A Coordinator is driven by a single goroutine.
type Coordinator interface {
	// Tick advances the physics timer by dt and records one frame.
	//
	// Parameters:
	//   - dt: host time since the previous call
	//   - in: camera and brush input for this frame
	//
	// Returns:
	//   - TickReport: the passes recorded, or Skipped if no frame could be acquired
	//   - error: a pass hazard, or a backend failure other than frame acquisition
	Tick(dt time.Duration, in FrameInput) (TickReport, error)

	// State returns the current update cycle state. It is StateIdle between ticks.
	State() State

	// Current returns the published grid buffer.
	Current() compute.Buffer

	// Output returns the image written by the consumer pass.
	Output() compute.Image

	// ReadCurrent copies the published grid back to the host.
	//
	// Parameters:
	//   - ctx: bounds the wait for submitted work
	//
	// Returns:
	//   - *voxel.Grid: the decoded grid
	//   - error: if the read or decode fails
	ReadCurrent(ctx context.Context) (*voxel.Grid, error)

	// ReadSelection copies the consumer pass's selection back to the host.
	ReadSelection(ctx context.Context) (compute.GPUSelection, error)

	// Reset replaces the contents of current and scratch with grid. Call it between ticks
	// from the goroutine that drives Tick.
	//
	// Parameters:
	//   - grid: the new contents; its dim must match the coordinator's
	//
	// Returns:
	//   - error: voxel.ErrInvalidLayout (wrapped) on a dim mismatch, or a backend write error
	Reset(grid *voxel.Grid) error

	// SetPhysicsEnabled pauses or resumes the update pass. While paused only the consumer
	// pass runs and the physics timer does not advance.
	SetPhysicsEnabled(enabled bool)

	// PhysicsEnabled reports whether the update pass runs when the timer triggers.
	PhysicsEnabled() bool

	// Stats returns a snapshot of the tick counters.
	Stats() Stats

	// Timer returns the physics timer.
	Timer() *PhysicsTimer

	// Release frees the coordinator's buffers, pipelines and bind groups. The backend is not released.
	Release()
}

var _ Coordinator = &coordinator{}

// NewCoordinator uploads grid into current and scratch, creates the constants, selection and
// output resources, and registers the update and consumer pipelines on backend.
//
// Parameters:
//   - backend: the compute backend the coordinator records on
//   - grid: the initial grid contents
//   - options: functional options configuring the coordinator
//
// Returns:
//   - Coordinator: the ready coordinator
//   - error: if any resource, pipeline or bind group could not be created
func NewCoordinator(backend compute.Backend, grid *voxel.Grid, options ...CoordinatorBuilderOption) (Coordinator, error) {
	if backend == nil {
		return nil, errors.New("coordinator needs a compute backend")
	}
	if grid == nil || grid.Dim() == 0 {
		return nil, errors.New("coordinator needs a non-empty grid")
	}

	c := &coordinator{
		backend:       backend,
		dim:           grid.Dim(),
		timer:         NewPhysicsTimer(DefaultPhysicsTrigger),
		workGroupSize: 8,
		screenWidth:   1920,
		screenHeight:  1080,
		updateKernel:  UpdateKernelSand,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.screenWidth <= 0 || c.screenHeight <= 0 {
		return nil, fmt.Errorf("invalid screen size %dx%d", c.screenWidth, c.screenHeight)
	}

	m, err := newMetrics(c.registry)
	if err != nil {
		return nil, err
	}
	c.metrics = m

	if err := c.createResources(grid); err != nil {
		c.Release()
		return nil, err
	}
	if err := c.createPipelines(); err != nil {
		c.Release()
		return nil, err
	}

	log.Printf("[Coordinator] ready: dim=%d workgroup=%d output=%dx%d backend=%s physics=%s",
		c.dim, c.workGroupSize, c.screenWidth, c.screenHeight, backend.Type(), c.timer.Trigger())
	return c, nil
}

func (c *coordinator) createResources(grid *voxel.Grid) error {
	data := grid.Marshal()
	var err error

	if c.current, err = c.backend.CreateBufferInit("Voxel Grid Current", data); err != nil {
		return fmt.Errorf("failed to create current buffer: %w", err)
	}
	if c.scratch, err = c.backend.CreateBufferInit("Voxel Grid Scratch", data); err != nil {
		return fmt.Errorf("failed to create scratch buffer: %w", err)
	}
	if c.constants, err = c.backend.CreateUniformBuffer("Frame Constants", compute.GPUFrameConstantsSize); err != nil {
		return fmt.Errorf("failed to create frame constants buffer: %w", err)
	}
	sel := compute.NoSelection()
	if c.selection, err = c.backend.CreateBufferInit("Selection", sel.Marshal()); err != nil {
		return fmt.Errorf("failed to create selection buffer: %w", err)
	}
	if c.output, err = c.backend.CreateStorageImage("Output", c.screenWidth, c.screenHeight); err != nil {
		return fmt.Errorf("failed to create output image: %w", err)
	}
	return nil
}

func (c *coordinator) createPipelines() error {
	n := c.workGroupSize
	gridSize := [3]uint32{n, n, n}

	var (
		asset  string
		kernel pipeline.KernelFunc
	)
	switch c.updateKernel {
	case UpdateKernelIdentity:
		asset, kernel = "identity.wgsl", compute.IdentityKernel
		c.updateProvider = bind_group_provider.NewBindGroupProvider("Identity",
			bind_group_provider.WithBuffer(compute.IdentityBindingSrc, c.current),
			bind_group_provider.WithBuffer(compute.IdentityBindingDst, c.scratch),
		)
	default:
		asset, kernel = "physics.wgsl", compute.SandKernel
		c.updateProvider = bind_group_provider.NewBindGroupProvider("Physics",
			bind_group_provider.WithBuffer(compute.PhysicsBindingCurrent, c.current),
			bind_group_provider.WithBuffer(compute.PhysicsBindingScratch, c.scratch),
			bind_group_provider.WithBuffer(compute.PhysicsBindingConstants, c.constants),
			bind_group_provider.WithBuffer(compute.PhysicsBindingSelection, c.selection),
		)
	}

	updateShader, err := shader.LoadComputeShader(PassUpdate, asset, gridSize)
	if err != nil {
		return err
	}
	c.updatePipeline = pipeline.NewPipeline(PassUpdate, pipeline.PipelineTypeCompute,
		pipeline.WithShader(updateShader),
		pipeline.WithKernel(kernel),
		pipeline.WithWorkGroupSize(gridSize),
	)

	screenSize := [3]uint32{n, n, 1}
	consumerShader, err := shader.LoadComputeShader(PassConsumer, "raycast.wgsl", screenSize)
	if err != nil {
		return err
	}
	c.consumerPipeline = pipeline.NewPipeline(PassConsumer, pipeline.PipelineTypeCompute,
		pipeline.WithShader(consumerShader),
		pipeline.WithKernel(compute.RaycastKernel),
		pipeline.WithWorkGroupSize(screenSize),
	)
	c.consumerProvider = bind_group_provider.NewBindGroupProvider("Raycast",
		bind_group_provider.WithBuffer(compute.RaycastBindingGrid, c.current),
		bind_group_provider.WithBuffer(compute.RaycastBindingConstants, c.constants),
		bind_group_provider.WithBuffer(compute.RaycastBindingSelection, c.selection),
		bind_group_provider.WithImage(compute.RaycastBindingOutput, c.output),
	)

	for _, p := range []pipeline.Pipeline{c.updatePipeline, c.consumerPipeline} {
		if err := c.backend.RegisterComputePipeline(p); err != nil {
			return fmt.Errorf("failed to register %s pipeline: %w", p.PipelineKey(), err)
		}
	}
	if err := c.backend.InitBindGroup(c.updatePipeline, c.updateProvider); err != nil {
		return fmt.Errorf("failed to create %s bind group: %w", PassUpdate, err)
	}
	if err := c.backend.InitBindGroup(c.consumerPipeline, c.consumerProvider); err != nil {
		return fmt.Errorf("failed to create %s bind group: %w", PassConsumer, err)
	}
	return nil
}

// passes builds the ordered pass list for one tick.
func (c *coordinator) passes(update bool) []Pass {
	var passes []Pass
	if update {
		reads := []Resource{ResourceCurrent}
		if c.updateKernel == UpdateKernelSand {
			reads = append(reads, ResourceConstants, ResourceSelection)
		}
		groups := common.CeilDiv(c.dim, c.workGroupSize)
		passes = append(passes,
			Pass{
				Name:       PassUpdate,
				Kind:       PassKindDispatch,
				Pipeline:   c.updatePipeline,
				Provider:   c.updateProvider,
				Workgroups: [3]uint32{groups, groups, groups},
				Reads:      reads,
				Writes:     []Resource{ResourceScratch},
			},
			Pass{
				Name:   PassSwap,
				Kind:   PassKindCopy,
				Src:    c.scratch,
				Dst:    c.current,
				Size:   c.current.Size(),
				Reads:  []Resource{ResourceScratch},
				Writes: []Resource{ResourceCurrent},
			},
		)
	}

	passes = append(passes, Pass{
		Name:     PassConsumer,
		Kind:     PassKindDispatch,
		Pipeline: c.consumerPipeline,
		Provider: c.consumerProvider,
		Workgroups: [3]uint32{
			common.CeilDiv(uint32(c.screenWidth), c.workGroupSize),
			common.CeilDiv(uint32(c.screenHeight), c.workGroupSize),
			1,
		},
		Reads:  []Resource{ResourceCurrent, ResourceConstants},
		Writes: []Resource{ResourceOutput, ResourceSelection},
	})
	return passes
}

func (c *coordinator) frameConstants(in FrameInput) compute.GPUFrameConstants {
	brush := in.BrushVoxel
	if brush == 0 {
		brush = voxel.NewVoxel(voxel.TypeSand, voxel.SandColor[0], voxel.SandColor[1], voxel.SandColor[2])
	}
	return compute.GPUFrameConstants{
		CameraToWorld:     in.CameraToWorld,
		InverseProjection: in.InverseProjection,
		MouseClick:        in.MouseClick,
		BrushSize:         in.BrushSize,
		ScreenWidth:       uint32(c.screenWidth),
		ScreenHeight:      uint32(c.screenHeight),
		BrushVoxel:        uint32(brush),
	}
}

func (c *coordinator) Tick(dt time.Duration, in FrameInput) (TickReport, error) {
	start := time.Now()
	defer func() { c.metrics.tickDuration(time.Since(start)) }()
	c.metrics.tick()

	// dt of skipped ticks is held back so a skip never drops a due update
	c.pendingDT += dt

	if err := c.backend.BeginComputeFrame(); err != nil {
		if !errors.Is(err, compute.ErrFrameUnavailable) {
			return TickReport{State: c.state}, fmt.Errorf("failed to begin compute frame: %w", err)
		}
		c.skipped(err)
		return TickReport{Skipped: true, State: c.state}, nil
	}

	update := false
	if !c.paused {
		c.timer.Tick(c.pendingDT)
		update = c.timer.Triggered()
	}
	c.pendingDT = 0

	report := TickReport{Updated: update}
	steps, err := Schedule(c.passes(update))
	if err != nil {
		c.endFrame()
		return report, err
	}
	report.Passes = Names(steps)

	constants := c.frameConstants(in)
	if err := c.backend.WriteBuffers([]bind_group_provider.BufferWrite{{
		Provider: c.consumerProvider,
		Binding:  compute.RaycastBindingConstants,
		Data:     constants.Marshal(),
	}}); err != nil {
		c.endFrame()
		return report, fmt.Errorf("failed to write frame constants: %w", err)
	}

	for _, step := range steps {
		if step.BarrierBefore {
			c.backend.Barrier()
		}
		if next := stateFor(step.Pass.Name); next != c.state {
			c.state = next
			report.Transitions = append(report.Transitions, next)
		}
		if err := c.record(step.Pass); err != nil {
			c.endFrame()
			report.State = c.state
			return report, err
		}
	}

	if err := c.backend.EndComputeFrame(); err != nil {
		c.state = StateIdle
		report.State = c.state
		return report, fmt.Errorf("failed to submit compute frame: %w", err)
	}
	if c.state != StateIdle {
		c.state = StateIdle
		report.Transitions = append(report.Transitions, StateIdle)
	}
	report.State = c.state

	if update {
		c.metrics.update()
		c.metrics.swap()
	}

	if err := c.backend.Present(c.output); err != nil {
		return report, fmt.Errorf("failed to present output: %w", err)
	}
	return report, nil
}

// stateFor returns the state the coordinator is in while the named pass runs.
func stateFor(pass string) State {
	switch pass {
	case PassUpdate:
		return StateUpdating
	case PassSwap:
		return StateSwapping
	default:
		return StateIdle
	}
}

func (c *coordinator) record(p Pass) error {
	switch p.Kind {
	case PassKindCopy:
		if err := c.backend.CopyBufferToBuffer(p.Src, p.Dst, p.Size); err != nil {
			return fmt.Errorf("failed to record %s: %w", p.Name, err)
		}
	default:
		if err := c.backend.DispatchCompute(p.Pipeline, p.Provider, p.Workgroups); err != nil {
			return fmt.Errorf("failed to record %s: %w", p.Name, err)
		}
	}
	return nil
}

// endFrame closes a frame abandoned mid-recording so the next tick can begin a new one.
func (c *coordinator) endFrame() {
	if err := c.backend.EndComputeFrame(); err != nil {
		log.Printf("[Coordinator] failed to close abandoned frame: %v", err)
	}
	c.state = StateIdle
}

func (c *coordinator) skipped(err error) {
	c.metrics.skip()
	c.skipsSinceLog++
	if now := time.Now(); now.Sub(c.lastSkipLog) >= skipLogInterval {
		log.Printf("[Coordinator] skipped %d tick(s): %v", c.skipsSinceLog, err)
		c.skipsSinceLog = 0
		c.lastSkipLog = now
	}
}

func (c *coordinator) State() State {
	return c.state
}

func (c *coordinator) Current() compute.Buffer {
	return c.current
}

func (c *coordinator) Output() compute.Image {
	return c.output
}

func (c *coordinator) ReadCurrent(ctx context.Context) (*voxel.Grid, error) {
	data, err := c.backend.ReadBuffer(ctx, c.current)
	if err != nil {
		return nil, fmt.Errorf("failed to read current grid: %w", err)
	}
	g := voxel.NewGrid(c.dim)
	if err := g.Unmarshal(data); err != nil {
		return nil, err
	}
	return g, nil
}

func (c *coordinator) ReadSelection(ctx context.Context) (compute.GPUSelection, error) {
	data, err := c.backend.ReadBuffer(ctx, c.selection)
	if err != nil {
		return compute.GPUSelection{}, fmt.Errorf("failed to read selection: %w", err)
	}
	return compute.UnmarshalSelection(data)
}

func (c *coordinator) Reset(grid *voxel.Grid) error {
	if grid == nil || grid.Dim() != c.dim {
		return fmt.Errorf("%w: reset grid must have dim %d", voxel.ErrInvalidLayout, c.dim)
	}
	data := grid.Marshal()
	noSelection := compute.NoSelection()
	// both update kernels bind current at 0 and scratch at 1
	err := c.backend.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: c.updateProvider, Binding: compute.PhysicsBindingCurrent, Data: data},
		{Provider: c.updateProvider, Binding: compute.PhysicsBindingScratch, Data: data},
		{Provider: c.consumerProvider, Binding: compute.RaycastBindingSelection, Data: noSelection.Marshal()},
	})
	if err != nil {
		return fmt.Errorf("failed to reset grid: %w", err)
	}
	c.timer.Reset()
	c.pendingDT = 0
	log.Printf("[Coordinator] grid reset: %d occupied", grid.Occupied())
	return nil
}

func (c *coordinator) SetPhysicsEnabled(enabled bool) {
	c.paused = !enabled
}

func (c *coordinator) PhysicsEnabled() bool {
	return !c.paused
}

func (c *coordinator) Stats() Stats {
	return c.metrics.stats()
}

func (c *coordinator) Timer() *PhysicsTimer {
	return c.timer
}

func (c *coordinator) Release() {
	for _, p := range []bind_group_provider.BindGroupProvider{c.updateProvider, c.consumerProvider} {
		if p != nil {
			p.Release()
		}
	}
	for _, p := range []pipeline.Pipeline{c.updatePipeline, c.consumerPipeline} {
		if p != nil {
			p.Release()
		}
	}
	for _, b := range []compute.Buffer{c.current, c.scratch, c.constants, c.selection} {
		if b != nil {
			b.Release()
		}
	}
	if c.output != nil {
		c.output.Release()
	}
}
