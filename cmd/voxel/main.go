package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Carmen-Shannon/voxel-go/common"
	"github.com/Carmen-Shannon/voxel-go/engine"
	"github.com/Carmen-Shannon/voxel-go/engine/camera"
	"github.com/Carmen-Shannon/voxel-go/engine/compute"
	"github.com/Carmen-Shannon/voxel-go/engine/config"
	"github.com/Carmen-Shannon/voxel-go/engine/coordinator"
	"github.com/Carmen-Shannon/voxel-go/engine/spatial/octree"
	"github.com/Carmen-Shannon/voxel-go/engine/voxel"
	"github.com/Carmen-Shannon/voxel-go/engine/window"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBrushSize = 32

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to $"+config.EnvConfigPath+")")
	maxTicks := flag.Uint64("ticks", 0, "stop after this many ticks (0 runs until the window closes or SIGINT)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[Main] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := run(ctx, cfg, *maxTicks); err != nil {
		log.Fatalf("[Main] %v", err)
	}
}

// summary describes the grid left behind by a run.
type summary struct {
	Stats    coordinator.Stats
	Occupied int
	Checksum uint64
}

// run wires config, window, backend, grid, octree, coordinator and engine, then blocks until
// the engine stops: the window closes, ctx is done, or maxTicks ticks have run. Only the wgpu
// backend opens a window.
//
// Parameters:
//   - ctx: cancelling it quits the engine
//   - cfg: a validated configuration
//   - maxTicks: tick limit, 0 for none
//
// Returns:
//   - summary: counters and the final grid's occupancy and checksum
//   - error: if setup or the final read back fails
func run(ctx context.Context, cfg *config.Config, maxTicks uint64) (summary, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// ── Grid ────────────────────────────────────────────────────────────
	sand := mgl32.Vec3{cfg.Grid.SandColor[0], cfg.Grid.SandColor[1], cfg.Grid.SandColor[2]}
	rng := rand.New(rand.NewSource(cfg.Grid.Seed))
	grid := voxel.NewGrid(cfg.Grid.Dim, voxel.WithFill(voxel.SphereFill(sand, cfg.Grid.ColorVariance, rng)))
	initial := grid.Clone()
	log.Printf("[Main] grid %d^3: %d occupied of %d", grid.Dim(), grid.Occupied(), grid.Total())

	if cfg.Grid.Octree {
		start := time.Now()
		tree, skipped := octree.FromGrid(grid)
		log.Printf("[Main] octree: depth %d, %d nodes, %d skipped (%s)", tree.Depth(), tree.Nodes(), skipped, time.Since(start))
	}

	// ── Window + Backend ────────────────────────────────────────────────
	var win window.Window
	backendOptions := []compute.BackendBuilderOption{
		compute.WithPresentMode(cfg.PresentMode()),
		compute.WithWorkers(cfg.Compute.Workers),
	}
	if cfg.BackendType() == compute.BackendTypeWGPU {
		win = window.NewWindow(
			window.WithTitle(common.Coalesce(cfg.Window.Title, "voxel-go")),
			window.WithWidth(cfg.Window.Width),
			window.WithHeight(cfg.Window.Height),
		)
		backendOptions = append(backendOptions, compute.WithSurfaceDescriptor(win.SurfaceDescriptor(), win.Width(), win.Height()))
	}
	defer closeWindow(win)

	backend, err := compute.NewBackend(cfg.BackendType(), backendOptions...)
	if err != nil {
		return summary{}, err
	}
	defer backend.Release()

	// ── Camera ──────────────────────────────────────────────────────────
	half := float32(grid.Dim()) / 2
	cam := camera.NewCamera(
		camera.WithFov(float32(45.0*math.Pi/180.0)),
		camera.WithAspect(float32(cfg.Window.Width)/float32(cfg.Window.Height)),
		camera.WithClipPlanes(0.1, float32(grid.Dim())*8),
		camera.WithController(camera.NewOrbitController(
			camera.WithTarget(mgl32.Vec3{half, half, half}),
			camera.WithRadius(float32(grid.Dim())*2),
			camera.WithRadiusBounds(2, float32(grid.Dim())*6),
			camera.WithElevation(0.4),
			camera.WithAzimuth(0.6),
			camera.WithMouseSensitivity(0.005),
		)),
	)

	// ── Coordinator ─────────────────────────────────────────────────────
	c, err := coordinator.NewCoordinator(backend, grid,
		coordinator.WithPhysicsRate(cfg.Simulation.PhysicsRate),
		coordinator.WithWorkGroupSize(cfg.Compute.WorkGroupSize),
		coordinator.WithScreenSize(cfg.Window.Width, cfg.Window.Height),
		coordinator.WithRegistry(reg),
	)
	if err != nil {
		return summary{}, err
	}
	defer c.Release()

	// ── Input ───────────────────────────────────────────────────────────
	var (
		brushSize     atomic.Uint32
		togglePhysics atomic.Bool
		resetWorld    atomic.Bool
	)
	brushSize.Store(cfg.Simulation.BrushSize)

	input := func() coordinator.FrameInput {
		cam.Update()
		in := coordinator.FrameInput{
			CameraToWorld:     cam.CameraToWorld(),
			InverseProjection: cam.InverseProjection(),
			BrushSize:         brushSize.Load(),
			BrushVoxel:        voxel.NewVoxel(voxel.TypeSand, sand[0], sand[1], sand[2]),
		}
		if win != nil {
			buttons := win.MouseButtons()
			if buttons&window.MouseButtonLeft != 0 {
				in.MouseClick |= compute.ClickPaint
			}
			if buttons&window.MouseButtonRight != 0 {
				in.MouseClick |= compute.ClickErase
			}
		}
		return in
	}

	if win != nil {
		ctrl := cam.Controller()
		win.SetScrollCallback(func(delta float32) {
			ctrl.Zoom(delta)
		})

		var lastX, lastY int32
		win.SetMouseButtonCallback(func(button window.MouseButton, pressed bool, x, y int32) {
			if button == window.MouseButtonMiddle && pressed {
				lastX, lastY = x, y
			}
		})
		win.SetMouseMoveCallback(func(x, y int32) {
			if win.MouseButtons()&window.MouseButtonMiddle != 0 {
				ctrl.Drag(float32(x-lastX), float32(y-lastY))
			}
			lastX, lastY = x, y
		})

		win.SetKeyDownCallback(func(keyCode uint32) {
			switch keyCode {
			case common.KeyLeft:
				ctrl.OrbitLeft()
			case common.KeyRight:
				ctrl.OrbitRight()
			case common.KeyUp:
				ctrl.OrbitUp()
			case common.KeyDown:
				ctrl.OrbitDown()
			case common.KeyEqual:
				if n := brushSize.Load(); n < maxBrushSize {
					brushSize.Store(n + 1)
				}
			case common.KeyMinus:
				if n := brushSize.Load(); n > 1 {
					brushSize.Store(n - 1)
				}
			case common.KeyP:
				togglePhysics.Store(true)
			case common.KeyR:
				resetWorld.Store(true)
			}
		})
	}

	// ── Engine ──────────────────────────────────────────────────────────
	engineOptions := []engine.EngineBuilderOption{
		engine.WithTickRate(cfg.Simulation.TickRate),
		engine.WithProfiling(cfg.Profiling),
		engine.WithInputSource(input),
		engine.WithMaxTicks(maxTicks),
	}
	if win != nil {
		engineOptions = append(engineOptions, engine.WithWindow(win))
	}
	eng := engine.NewEngine(c, engineOptions...)

	// Coordinator mutations stay on the tick goroutine.
	eng.SetTickCallback(func(report coordinator.TickReport) {
		if togglePhysics.Swap(false) {
			c.SetPhysicsEnabled(!c.PhysicsEnabled())
			log.Printf("[Main] physics enabled: %v", c.PhysicsEnabled())
		}
		if resetWorld.Swap(false) {
			if err := c.Reset(initial); err != nil {
				log.Printf("[Main] reset failed: %v", err)
			}
		}
	})

	if cfg.MetricsAddr != "" {
		go func() {
			log.Printf("[Main] serving metrics on %s/metrics", cfg.MetricsAddr)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[Main] metrics server stopped: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			eng.Quit()
		case <-done:
		}
	}()

	eng.Run()

	// ── Shutdown ────────────────────────────────────────────────────────
	readCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := c.ReadCurrent(readCtx)
	if err != nil {
		return summary{}, fmt.Errorf("final read back failed: %w", err)
	}

	out := summary{Stats: c.Stats(), Occupied: final.Occupied(), Checksum: final.Checksum()}
	log.Printf("[Main] stopped after %d ticks (%d physics updates, %d skipped): %d occupied, checksum %016x",
		out.Stats.Ticks, out.Stats.PhysicsUpdates, out.Stats.Skipped, out.Occupied, out.Checksum)
	return out, nil
}

// closeWindow destroys the window, if one was opened.
func closeWindow(win window.Window) {
	if win == nil {
		return
	}
	if err := win.Close(); err != nil {
		log.Printf("[Main] %v", err)
	}
}
