package voxel

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridBounds(t *testing.T) {
	const d = 6
	g := NewGrid(d)
	assert.Equal(t, d*d*d, g.Total())

	for x := range uint32(d) {
		for y := range uint32(d) {
			for z := range uint32(d) {
				_, ok := g.Get(x, y, z)
				assert.True(t, ok)
			}
		}
	}

	outside := [][3]uint32{
		{d, 0, 0}, {0, d, 0}, {0, 0, d},
		{d + 10, 1, 1}, {^uint32(0), 0, 0}, {0, 0, ^uint32(0)},
	}
	for _, c := range outside {
		_, ok := g.Get(c[0], c[1], c[2])
		assert.False(t, ok, "coordinate %v", c)
		p, ok := g.GetMut(c[0], c[1], c[2])
		assert.False(t, ok)
		assert.Nil(t, p)
	}
}

func TestGridRowMajorIndex(t *testing.T) {
	g := NewGrid(4)
	require.True(t, g.Set(1, 2, 3, NewVoxel(9, 0, 0, 0)))
	assert.Equal(t, uint8(9), g.Voxels()[1*16+2*4+3].Type())

	p, ok := g.GetMut(3, 0, 1)
	require.True(t, ok)
	p.SetType(4)
	v, _ := g.Get(3, 0, 1)
	assert.Equal(t, uint8(4), v.Type())
}

func TestGridDefaults(t *testing.T) {
	g := NewGrid(2)
	assert.Equal(t, NoSelection, g.Selected())
	assert.Equal(t, mgl32.Vec3{}, g.Position())
	assert.Equal(t, 0, g.Occupied())
}

func TestMarshalLayout(t *testing.T) {
	g := NewGrid(3,
		WithPosition(mgl32.Vec3{1, 2, 3}),
		WithNormal(mgl32.Vec3{0, 1, 0}),
		WithFill(DiagonalFill(NewVoxel(TypeSolid, 0, 0, 0))),
	)
	buf := g.Marshal()
	require.Len(t, buf, GridHeaderSize+4*27)
	assert.Zero(t, GridHeaderSize%16, "voxel array must start on a 16-byte boundary")

	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(buf[0:]))
	assert.Equal(t, make([]byte, 12), buf[4:16], "dim padding")
	assert.Equal(t, make([]byte, 4), buf[28:32], "pos padding")

	// first voxel is (0,0,0) which is on the diagonal
	assert.Equal(t, uint32(TypeSolid), binary.LittleEndian.Uint32(buf[GridHeaderSize:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[GridHeaderSize+4:]))

	dim, err := DimFromLayout(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), dim)
}

func TestUnmarshalRestoresGrid(t *testing.T) {
	src := NewGrid(5,
		WithPosition(mgl32.Vec3{-4, 0, 2}),
		WithFill(SphereFill(SandColor, 0.02, rand.New(rand.NewSource(1)))),
	)
	src.SetSelected(mgl32.Vec3{1, 2, 3})

	dst := NewGrid(5)
	require.NoError(t, dst.Unmarshal(src.Marshal()))
	assert.Equal(t, src.Position(), dst.Position())
	assert.Equal(t, src.Selected(), dst.Selected())
	assert.Equal(t, src.Voxels(), dst.Voxels())
	assert.Equal(t, src.Checksum(), dst.Checksum())
}

func TestUnmarshalRejectsMismatchedLayout(t *testing.T) {
	g := NewGrid(4)
	assert.ErrorIs(t, g.Unmarshal(make([]byte, 10)), ErrInvalidLayout)
	assert.ErrorIs(t, g.Unmarshal(NewGrid(3).Marshal()), ErrInvalidLayout)

	buf := g.Marshal()
	assert.ErrorIs(t, g.Unmarshal(buf[:len(buf)-4]), ErrInvalidLayout)

	_, err := DimFromLayout(buf[:len(buf)-4])
	assert.ErrorIs(t, err, ErrInvalidLayout)
}

func TestSphereFill(t *testing.T) {
	g := NewGrid(8, WithFill(SphereFill(SandColor, 0, nil)))
	center, ok := g.Get(4, 4, 4)
	require.True(t, ok)
	assert.Equal(t, TypeSand, center.Type())

	corner, _ := g.Get(0, 0, 0)
	assert.True(t, corner.Empty())

	r, gr, b := center.Color()
	assert.InDelta(t, SandColor[0], r, 1.0/31)
	assert.InDelta(t, SandColor[1], gr, 1.0/63)
	assert.InDelta(t, SandColor[2], b, 1.0/31)
}

func TestChecksumChangesWithContent(t *testing.T) {
	g := NewGrid(4)
	before := g.Checksum()
	g.Set(0, 0, 0, NewVoxel(TypeSand, 1, 1, 1))
	assert.NotEqual(t, before, g.Checksum())

	c := g.Clone()
	assert.Equal(t, g.Checksum(), c.Checksum())
	c.Set(1, 1, 1, NewVoxel(TypeSand, 0, 0, 0))
	assert.NotEqual(t, g.Checksum(), c.Checksum())
}

func TestForEachOccupied(t *testing.T) {
	g := NewGrid(10, WithFill(DiagonalFill(NewVoxel(TypeSolid, 0, 0, 0))))
	assert.Equal(t, 10, g.Occupied())

	var seen [][3]uint32
	g.ForEachOccupied(func(x, y, z uint32, v Voxel) {
		seen = append(seen, [3]uint32{x, y, z})
		assert.Equal(t, TypeSolid, v.Type())
	})
	require.Len(t, seen, 10)
	for i, c := range seen {
		u := uint32(i)
		assert.Equal(t, [3]uint32{u, u, u}, c)
	}
}

func TestCoordinateInvertsIndexBeyond32Bits(t *testing.T) {
	const dim = 2048
	x, y, z := uint32(2047), uint32(1500), uint32(7)
	i := uint64(x)*dim*dim + uint64(y)*dim + uint64(z)
	require.Greater(t, i, uint64(1<<32))

	gx, gy, gz := coordinate(i, dim)
	assert.Equal(t, [3]uint32{x, y, z}, [3]uint32{gx, gy, gz})

	g := NewGrid(7)
	for _, c := range [][3]uint32{{0, 0, 0}, {6, 5, 4}, {3, 0, 6}} {
		idx, ok := g.index(c[0], c[1], c[2])
		require.True(t, ok)
		cx, cy, cz := coordinate(uint64(idx), 7)
		assert.Equal(t, c, [3]uint32{cx, cy, cz})
	}
}
