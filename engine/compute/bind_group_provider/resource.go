package bind_group_provider

// Buffer is a backend-owned storage or uniform buffer.
// The concrete type depends on the backend that created it.
type Buffer interface {
	// Label returns the debug label the buffer was created with.
	Label() string

	// Size returns the buffer size in bytes.
	Size() uint64

	// Release frees the backend resources held by the buffer.
	Release()
}

// Image is a backend-owned 2D RGBA image that compute kernels write and presentation reads.
type Image interface {
	// Label returns the debug label the image was created with.
	Label() string

	// Width returns the image width in pixels.
	Width() int

	// Height returns the image height in pixels.
	Height() int

	// Release frees the backend resources held by the image.
	Release()
}
