package bind_group_provider

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBuffer sets a buffer for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the specified binding
func WithBuffer(binding int, buf Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[binding] = buf
	}
}

// WithImage sets an image for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this image
//   - img: the image to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the image for the specified binding
func WithImage(binding int, img Image) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.images[binding] = img
	}
}
