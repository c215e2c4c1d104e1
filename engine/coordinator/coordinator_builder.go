package coordinator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UpdateKernel selects the program run by the update pass.
type UpdateKernel int

const (
	// UpdateKernelSand runs the falling sand step with brush editing.
	UpdateKernelSand UpdateKernel = iota

	// UpdateKernelIdentity copies current into scratch unchanged.
	UpdateKernelIdentity
)

// CoordinatorBuilderOption is a functional option used to configure a Coordinator during construction.
type CoordinatorBuilderOption func(*coordinator)

// WithPhysicsTrigger sets the interval between update passes.
//
// Parameters:
//   - trigger: the interval; non-positive values update on every tick
//
// Returns:
//   - CoordinatorBuilderOption: a function that sets the physics interval
func WithPhysicsTrigger(trigger time.Duration) CoordinatorBuilderOption {
	return func(c *coordinator) {
		c.timer = NewPhysicsTimer(trigger)
	}
}

// WithPhysicsRate sets the update pass rate in Hz. Values <= 0 are treated as 30.
func WithPhysicsRate(hz float64) CoordinatorBuilderOption {
	if hz <= 0 {
		hz = 30
	}
	return WithPhysicsTrigger(time.Duration(float64(time.Second) / hz))
}

// WithWorkGroupSize sets the per-axis workgroup size of every pass. Grid passes use it on all
// three axes, the consumer pass on x and y.
//
// Parameters:
//   - n: workgroup edge length; 0 is treated as 1
//
// Returns:
//   - CoordinatorBuilderOption: a function that sets the workgroup size
func WithWorkGroupSize(n uint32) CoordinatorBuilderOption {
	return func(c *coordinator) {
		c.workGroupSize = max(n, 1)
	}
}

// WithScreenSize sets the output image size the consumer pass renders.
//
// Parameters:
//   - width, height: the image size in pixels
//
// Returns:
//   - CoordinatorBuilderOption: a function that sets the screen size
func WithScreenSize(width, height int) CoordinatorBuilderOption {
	return func(c *coordinator) {
		c.screenWidth = width
		c.screenHeight = height
	}
}

// WithRegistry registers the coordinator's metrics on reg.
func WithRegistry(reg prometheus.Registerer) CoordinatorBuilderOption {
	return func(c *coordinator) {
		c.registry = reg
	}
}

// WithUpdateKernel selects the program run by the update pass.
func WithUpdateKernel(k UpdateKernel) CoordinatorBuilderOption {
	return func(c *coordinator) {
		c.updateKernel = k
	}
}
