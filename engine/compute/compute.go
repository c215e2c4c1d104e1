package compute

import (
	"context"
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/voxel-go/engine/compute/bind_group_provider"
	"github.com/Carmen-Shannon/voxel-go/engine/compute/pipeline"
)

// BackendType identifies the compute backend implementation.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based backend.
	BackendTypeWGPU BackendType = iota

	// BackendTypeCPU selects the host reference backend. Kernels run as Go functions over a worker pool.
	BackendTypeCPU
)

// String returns the config name of the backend type.
func (t BackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeCPU:
		return "cpu"
	default:
		return fmt.Sprintf("BackendType(%d)", int(t))
	}
}

// ParseBackendType maps a config name ("wgpu" or "cpu") to its BackendType.
func ParseBackendType(name string) (BackendType, error) {
	switch name {
	case "wgpu", "":
		return BackendTypeWGPU, nil
	case "cpu":
		return BackendTypeCPU, nil
	default:
		return 0, fmt.Errorf("unknown compute backend %q", name)
	}
}

// PresentMode controls how presented frames are delivered to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	PresentModeUncapped
)

var (
	// ErrFrameUnavailable is returned by BeginComputeFrame when no frame could be acquired this tick.
	// The caller may retry on the next tick.
	ErrFrameUnavailable = errors.New("compute frame unavailable")

	// ErrUnknownResource is returned when a buffer, image or pipeline was not created by this backend.
	ErrUnknownResource = errors.New("resource does not belong to this backend")

	// ErrNoFrame is returned when a frame command is issued outside BeginComputeFrame/EndComputeFrame.
	ErrNoFrame = errors.New("no compute frame in progress")
)

// Buffer is a backend-owned storage or uniform buffer.
type Buffer = bind_group_provider.Buffer

// Image is a backend-owned 2D RGBA image written by compute passes and read for presentation.
type Image = bind_group_provider.Image

// Backend is the data-parallel compute capability set the coordinator drives each tick.
// Frame commands recorded between BeginComputeFrame and EndComputeFrame execute in order,
// and a dispatch observes every write made by the commands recorded before it.
type Backend interface {
	// Type returns which implementation this backend is.
	Type() BackendType

	// CreateBufferInit creates a read/write storage buffer filled with data.
	//
	// Parameters:
	//   - label: debug label for the buffer
	//   - data: initial contents; the buffer size is len(data)
	//
	// Returns:
	//   - Buffer: the created buffer
	//   - error: if the buffer could not be created
	CreateBufferInit(label string, data []byte) (Buffer, error)

	// CreateBuffer creates a zeroed read/write storage buffer.
	//
	// Parameters:
	//   - label: debug label for the buffer
	//   - size: the buffer size in bytes
	//
	// Returns:
	//   - Buffer: the created buffer
	//   - error: if the buffer could not be created
	CreateBuffer(label string, size uint64) (Buffer, error)

	// CreateUniformBuffer creates a small constants block written from the host before dispatch.
	//
	// Parameters:
	//   - label: debug label for the buffer
	//   - size: the buffer size in bytes
	//
	// Returns:
	//   - Buffer: the created buffer
	//   - error: if the buffer could not be created
	CreateUniformBuffer(label string, size uint64) (Buffer, error)

	// CreateStorageImage creates an RGBA8 image that compute passes write and presentation reads.
	//
	// Parameters:
	//   - label: debug label for the image
	//   - width, height: the image size in pixels
	//
	// Returns:
	//   - Image: the created image
	//   - error: if the image could not be created
	CreateStorageImage(label string, width, height int) (Image, error)

	// WriteBuffers writes host data into buffers. Writes are visible to every dispatch recorded afterwards.
	//
	// Parameters:
	//   - writes: each write targets a provider binding at a byte offset
	//
	// Returns:
	//   - error: ErrUnknownResource if a target buffer is foreign, or if a write is out of range
	WriteBuffers(writes []bind_group_provider.BufferWrite) error

	// ReadBuffer copies a buffer's contents back to the host, waiting for all submitted work.
	//
	// Parameters:
	//   - ctx: bounds the wait
	//   - buf: the buffer to read
	//
	// Returns:
	//   - []byte: a copy of the buffer contents
	//   - error: if the read fails or ctx is done first
	ReadBuffer(ctx context.Context, buf Buffer) ([]byte, error)

	// RegisterComputePipeline prepares a pipeline for dispatch on this backend.
	//
	// Parameters:
	//   - p: the pipeline; the wgpu backend needs its shader, the CPU backend its kernel
	//
	// Returns:
	//   - error: if the pipeline lacks what the backend needs or could not be created
	RegisterComputePipeline(p pipeline.Pipeline) error

	// InitBindGroup builds the backend bind group for provider against p's layout.
	//
	// Parameters:
	//   - p: a registered pipeline
	//   - provider: the resources to bind
	//
	// Returns:
	//   - error: if a binding the pipeline needs is missing or foreign
	InitBindGroup(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider) error

	// BeginComputeFrame acquires a frame and starts recording commands.
	//
	// Returns:
	//   - error: ErrFrameUnavailable (wrapped) if no frame could be acquired this tick
	BeginComputeFrame() error

	// DispatchCompute records a dispatch of p over the given number of workgroups.
	//
	// Parameters:
	//   - p: a registered pipeline
	//   - provider: a provider initialised with InitBindGroup for p
	//   - workGroupCount: workgroups per axis
	//
	// Returns:
	//   - error: ErrNoFrame outside a frame
	DispatchCompute(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error

	// CopyBufferToBuffer records a copy of the first size bytes of src into dst.
	//
	// Returns:
	//   - error: ErrNoFrame outside a frame, ErrUnknownResource for foreign buffers, or a size error
	CopyBufferToBuffer(src, dst Buffer, size uint64) error

	// Barrier records a point after which every later command observes all earlier writes.
	Barrier()

	// EndComputeFrame submits the recorded commands and waits until the host may issue the next frame.
	//
	// Returns:
	//   - error: if submission failed
	EndComputeFrame() error

	// Present shows img on the backend's surface, if it has one.
	//
	// Returns:
	//   - error: ErrUnknownResource if img is foreign, or a presentation error
	Present(img Image) error

	// Release frees every resource held by the backend.
	Release()
}

// NewBackend creates a compute backend of the given type.
//
// Parameters:
//   - backendType: which implementation to create
//   - options: functional options configuring the backend
//
// Returns:
//   - Backend: the created backend
//   - error: if backendType is unknown
func NewBackend(backendType BackendType, options ...BackendBuilderOption) (Backend, error) {
	cfg := defaultBackendConfig()
	for _, opt := range options {
		opt(cfg)
	}

	switch backendType {
	case BackendTypeWGPU:
		return newWGPUBackend(cfg), nil
	case BackendTypeCPU:
		return newCPUBackend(cfg), nil
	default:
		return nil, fmt.Errorf("unknown compute backend %v", backendType)
	}
}
