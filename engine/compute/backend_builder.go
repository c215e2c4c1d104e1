package compute

import (
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
)

// FrameAcquirer is called by BeginComputeFrame on the CPU backend. A non-nil error makes the
// frame unavailable for that tick.
type FrameAcquirer func() error

// backendConfig collects the options shared by the backend implementations.
type backendConfig struct {
	surfaceDescriptor    *wgpu.SurfaceDescriptor
	surfaceWidth         int
	surfaceHeight        int
	forceFallbackAdapter bool
	presentMode          PresentMode
	workers              int
	frameAcquirer        FrameAcquirer
}

func defaultBackendConfig() *backendConfig {
	return &backendConfig{
		presentMode: PresentModeVSync,
		workers:     runtime.NumCPU(),
	}
}

// BackendBuilderOption is a functional option used to configure a Backend during construction.
type BackendBuilderOption func(*backendConfig)

// WithSurfaceDescriptor sets the window surface the wgpu backend presents to. Without it the
// wgpu backend runs headless and Present is a no-op.
//
// Parameters:
//   - descriptor: the surface descriptor produced by the window
//   - width, height: the initial surface size in pixels
//
// Returns:
//   - BackendBuilderOption: a function that sets the surface for the backend
func WithSurfaceDescriptor(descriptor *wgpu.SurfaceDescriptor, width, height int) BackendBuilderOption {
	return func(c *backendConfig) {
		c.surfaceDescriptor = descriptor
		c.surfaceWidth = width
		c.surfaceHeight = height
	}
}

// WithForceFallbackAdapter requests the software fallback adapter from wgpu.
func WithForceFallbackAdapter(force bool) BackendBuilderOption {
	return func(c *backendConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithPresentMode sets how the wgpu backend presents frames.
func WithPresentMode(mode PresentMode) BackendBuilderOption {
	return func(c *backendConfig) {
		c.presentMode = mode
	}
}

// WithWorkers sets the worker count the CPU backend fans dispatches out over.
//
// Parameters:
//   - n: number of workers; values below 1 are treated as 1
//
// Returns:
//   - BackendBuilderOption: a function that sets the worker count
func WithWorkers(n int) BackendBuilderOption {
	return func(c *backendConfig) {
		c.workers = max(n, 1)
	}
}

// WithFrameAcquirer installs the frame acquisition hook of the CPU backend.
func WithFrameAcquirer(acquire FrameAcquirer) BackendBuilderOption {
	return func(c *backendConfig) {
		c.frameAcquirer = acquire
	}
}
