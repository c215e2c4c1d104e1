package bind_group_provider

import "sort"

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// bindGroup is the backend bind group created for this provider, or nil until the backend
	// initializes it. Its concrete type is backend specific (*wgpu.BindGroup on the GPU path).
	bindGroup any

	// buffers holds the buffers bound by this provider, keyed by binding index.
	buffers map[int]Buffer
	// images holds the images bound by this provider, keyed by binding index.
	images map[int]Image
}

// BindGroupProvider describes the resources one compute pass binds, keyed by binding index.
// A pass builds a provider with the buffers and images it needs, then hands it to the
// backend which creates the matching bind group.
//
// Usage pattern:
//  1. Create the buffers/images through the backend
//  2. NewBindGroupProvider(label, WithBuffer(0, a), WithBuffer(1, b), ...)
//  3. backend.InitBindGroup(pipeline, provider)
//  4. backend.DispatchCompute(pipeline, provider, workgroups) each frame
type BindGroupProvider interface {
	// Release releases the bind group. Buffers and images are owned by their creator
	// and are not released here.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the backend bind group, or nil if not initialized.
	//
	// Returns:
	//   - any: the backend-specific bind group
	BindGroup() any

	// SetBindGroup stores the backend bind group.
	//
	// Parameters:
	//   - bg: the backend-specific bind group
	SetBindGroup(bg any)

	// Buffer returns the buffer at a binding index, or nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - Buffer: the buffer or nil
	Buffer(binding int) Buffer

	// SetBuffer binds a buffer at a binding index.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer to bind
	SetBuffer(binding int, buf Buffer)

	// Image returns the image at a binding index, or nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - Image: the image or nil
	Image(binding int) Image

	// SetImage binds an image at a binding index.
	//
	// Parameters:
	//   - binding: the binding index
	//   - img: the image to bind
	SetImage(binding int, img Image)

	// Bindings returns every bound index in ascending order.
	//
	// Returns:
	//   - []int: sorted binding indices
	Bindings() []int
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a provider with the given label and options.
//
// Parameters:
//   - label: debug label used for backend resources
//   - options: functional options binding buffers and images
//
// Returns:
//   - BindGroupProvider: the new provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:   label,
		buffers: make(map[int]Buffer),
		images:  make(map[int]Image),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Release() {
	if r, ok := p.bindGroup.(interface{ Release() }); ok {
		r.Release()
	}
	p.bindGroup = nil
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() any {
	return p.bindGroup
}

func (p *bindGroupProvider) SetBindGroup(bg any) {
	p.bindGroup = bg
}

func (p *bindGroupProvider) Buffer(binding int) Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) SetBuffer(binding int, buf Buffer) {
	p.buffers[binding] = buf
}

func (p *bindGroupProvider) Image(binding int) Image {
	return p.images[binding]
}

func (p *bindGroupProvider) SetImage(binding int, img Image) {
	p.images[binding] = img
}

func (p *bindGroupProvider) Bindings() []int {
	out := make([]int, 0, len(p.buffers)+len(p.images))
	for b := range p.buffers {
		out = append(out, b)
	}
	for b := range p.images {
		out = append(out, b)
	}
	sort.Ints(out)
	return out
}
