package engine

import (
	"github.com/Carmen-Shannon/voxel-go/engine/profiler"
	"github.com/Carmen-Shannon/voxel-go/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfiler replaces the default profiler.
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithTickRate sets the engine tick rate in ticks per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - tps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(tps float64) EngineBuilderOption {
	return func(e *engine) {
		e.engineTickRate = tickInterval(tps)
	}
}

// WithWindow attaches a window. Run then drives the window message loop and stops when
// the window closes.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithInputSource sets the function polled for camera and brush input before every tick.
//
// Parameters:
//   - input: the input source
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithInputSource(input InputSource) EngineBuilderOption {
	return func(e *engine) {
		if input != nil {
			e.input = input
		}
	}
}

// WithMaxTicks stops the engine after n ticks. 0 runs until Quit or the window closes.
func WithMaxTicks(n uint64) EngineBuilderOption {
	return func(e *engine) {
		e.maxTicks = n
	}
}
