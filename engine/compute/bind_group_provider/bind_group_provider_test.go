package bind_group_provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeBuffer struct{ label string }

func (f *fakeBuffer) Label() string { return f.label }
func (f *fakeBuffer) Size() uint64  { return 4 }
func (f *fakeBuffer) Release()      {}

type fakeImage struct{}

func (fakeImage) Label() string { return "img" }
func (fakeImage) Width() int    { return 1 }
func (fakeImage) Height() int   { return 1 }
func (fakeImage) Release()      {}

type releaseCounter struct{ n int }

func (r *releaseCounter) Release() { r.n++ }

func TestProviderBindings(t *testing.T) {
	a, b := &fakeBuffer{"a"}, &fakeBuffer{"b"}
	p := NewBindGroupProvider("pass", WithBuffer(2, b), WithBuffer(0, a), WithImage(3, fakeImage{}))

	assert.Equal(t, "pass", p.Label())
	assert.Same(t, a, p.Buffer(0))
	assert.Same(t, b, p.Buffer(2))
	assert.Nil(t, p.Buffer(1))
	assert.NotNil(t, p.Image(3))
	assert.Equal(t, []int{0, 2, 3}, p.Bindings())

	p.SetBuffer(1, a)
	assert.Equal(t, []int{0, 1, 2, 3}, p.Bindings())
}

func TestProviderReleaseReleasesBindGroup(t *testing.T) {
	p := NewBindGroupProvider("pass")
	rc := &releaseCounter{}
	p.SetBindGroup(rc)
	p.Release()
	assert.Equal(t, 1, rc.n)
	assert.Nil(t, p.BindGroup())

	p.Release()
	assert.Equal(t, 1, rc.n)
}
