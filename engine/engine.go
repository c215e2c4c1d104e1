package engine

import (
	"log"
	"sync"
	"time"

	"github.com/Carmen-Shannon/voxel-go/engine/coordinator"
	"github.com/Carmen-Shannon/voxel-go/engine/profiler"
	"github.com/Carmen-Shannon/voxel-go/engine/window"
)

// InputSource produces the frame input for the next coordinator tick.
type InputSource func() coordinator.FrameInput

// engine implements the Engine interface.
// Coordinates the tick goroutine with the window thread.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window      window.Window
	coordinator coordinator.Coordinator
	input       InputSource

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(report coordinator.TickReport)

	// maxTicks stops the engine after that many ticks; 0 runs until quit
	maxTicks uint64
	ticks    uint64
}

// Engine is the main entry point for the viewer.
// It runs the fixed-rate tick loop that drives the update coordinator, next to the window
// message loop when a window is attached.
type Engine interface {
	// Window returns the attached window, or nil when headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Coordinator returns the coordinator ticked by the engine.
	//
	// Returns:
	//   - coordinator.Coordinator: the coordinator instance
	Coordinator() coordinator.Coordinator

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	//
	// Parameters:
	//   - tps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(tps float64)

	// SetTickCallback registers the function called after each coordinator tick.
	//
	// Parameters:
	//   - callback: function receiving the tick report
	SetTickCallback(callback func(report coordinator.TickReport))

	// Run starts the tick loop. With a window it runs the message loop on the calling
	// goroutine; headless it blocks until Quit or the tick limit. Returns after the tick
	// goroutine has stopped.
	Run()

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
//
// Parameters:
//   - c: the coordinator to tick
//   - options: functional options for engine configuration (window, profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(c coordinator.Coordinator, options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		coordinator:     c,
		input:           func() coordinator.FrameInput { return coordinator.FrameInput{} },
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.profiler == nil && c != nil {
		e.profiler = profiler.NewProfiler(profiler.WithStatsSource(c.Stats))
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Coordinator() coordinator.Coordinator {
	return e.coordinator
}

func (e *engine) Run() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.handleEngine()

	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	} else {
		<-e.quitChannel
	}
	e.wg.Wait()
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		close(e.quitChannel)
		if e.window != nil {
			e.window.RequestClose()
		}
	})
}

// handleEngine runs the fixed-rate tick loop in its own goroutine.
// Ticks the coordinator at the configured rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed. Recovers from panics so a
// backend failure stops the engine instead of the process.
func (e *engine) handleEngine() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] tick goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := now.Sub(lastTick)
			lastTick = now

			if !e.tick(dt) {
				e.signalQuit()
				return
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// tick runs one coordinator tick and reports whether the loop should continue.
func (e *engine) tick(dt time.Duration) bool {
	report, err := e.coordinator.Tick(dt, e.input())
	if err != nil {
		log.Printf("[Engine] tick failed: %v", err)
		return false
	}

	if e.tickCallback != nil {
		e.tickCallback(report)
	}

	if e.profilingEnabled && e.profiler != nil {
		e.profiler.Tick()
	}

	e.ticks++
	return e.maxTicks == 0 || e.ticks < e.maxTicks
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in ticks per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(tps float64) {
	newRate := tickInterval(tps)

	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	if running {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called after each coordinator tick.
func (e *engine) SetTickCallback(callback func(report coordinator.TickReport)) {
	e.tickCallback = callback
}

// tickInterval converts a rate in Hz to a ticker interval, defaulting to 60 Hz.
func tickInterval(tps float64) time.Duration {
	if tps <= 0 {
		tps = 60
	}
	return time.Duration(float64(time.Second) / tps)
}
