package compute

import (
	"encoding/binary"
	"image"
	"testing"

	"github.com/Carmen-Shannon/voxel-go/engine/compute/pipeline"
	"github.com/Carmen-Shannon/voxel-go/engine/voxel"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBindings struct {
	words  map[int][]uint32
	images map[int]*image.RGBA
}

func (b *testBindings) Words(binding int) []uint32    { return b.words[binding] }
func (b *testBindings) Image(binding int) *image.RGBA { return b.images[binding] }

func toWords(data []byte) []uint32 {
	w := make([]uint32, (len(data)+3)/4)
	for i := range w {
		w[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return w
}

func toBytes(w []uint32) []byte {
	out := make([]byte, len(w)*4)
	for i, v := range w {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// runKernel invokes k for every id in [0, n) on each axis, the way a dispatch would.
func runKernel(k pipeline.KernelFunc, n [3]uint32, b pipeline.Bindings) {
	for x := range n[0] {
		for y := range n[1] {
			for z := range n[2] {
				k([3]uint32{x, y, z}, b)
			}
		}
	}
}

func gridFromWords(t *testing.T, dim uint32, w []uint32) *voxel.Grid {
	t.Helper()
	g := voxel.NewGrid(dim)
	require.NoError(t, g.Unmarshal(toBytes(w)))
	return g
}

var sand = voxel.NewVoxel(voxel.TypeSand, 0.5, 0.3, 0.1)
var solid = voxel.NewVoxel(voxel.TypeSolid, 0.2, 0.2, 0.2)

func physicsStep(t *testing.T, g *voxel.Grid, frame GPUFrameConstants, sel GPUSelection) *voxel.Grid {
	t.Helper()
	b := &testBindings{words: map[int][]uint32{
		PhysicsBindingCurrent:   toWords(g.Marshal()),
		PhysicsBindingScratch:   make([]uint32, g.Size()/4),
		PhysicsBindingConstants: toWords(frame.Marshal()),
		PhysicsBindingSelection: toWords(sel.Marshal()),
	}}
	runKernel(SandKernel, [3]uint32{g.Dim() + 1, g.Dim() + 1, g.Dim() + 1}, b)
	return gridFromWords(t, g.Dim(), b.words[PhysicsBindingScratch])
}

func TestIdentityKernelCopiesGrid(t *testing.T) {
	g := voxel.NewGrid(10, voxel.WithFill(voxel.DiagonalFill(sand)), voxel.WithPosition(mgl32.Vec3{1, 2, 3}))
	b := &testBindings{words: map[int][]uint32{
		IdentityBindingSrc: toWords(g.Marshal()),
		IdentityBindingDst: make([]uint32, g.Size()/4),
	}}

	runKernel(IdentityKernel, [3]uint32{16, 16, 16}, b)

	out := gridFromWords(t, 10, b.words[IdentityBindingDst])
	assert.Equal(t, g.Checksum(), out.Checksum())
	assert.Equal(t, 10, out.Occupied())
}

func TestSandFallsOneCellPerStep(t *testing.T) {
	g := voxel.NewGrid(4)
	g.Set(1, 3, 2, sand)

	sel := NoSelection()
	for y := 2; y >= 0; y-- {
		g = physicsStep(t, g, GPUFrameConstants{}, sel)
		v, _ := g.Get(1, uint32(y), 2)
		assert.Equal(t, sand, v, "sand should be at y=%d", y)
		assert.Equal(t, 1, g.Occupied())
	}

	// resting on the floor
	g = physicsStep(t, g, GPUFrameConstants{}, sel)
	v, _ := g.Get(1, 0, 2)
	assert.Equal(t, sand, v)
}

func TestSandStacksAndSolidStays(t *testing.T) {
	g := voxel.NewGrid(4)
	g.Set(0, 0, 0, sand)
	g.Set(0, 1, 0, sand)
	g.Set(2, 3, 2, solid)

	next := physicsStep(t, g, GPUFrameConstants{}, NoSelection())

	assert.Equal(t, g.Checksum(), next.Checksum())
}

func TestSandIsConservedWithoutBrush(t *testing.T) {
	g := voxel.NewGrid(8, voxel.WithFill(voxel.SphereFill(voxel.SandColor, 0, nil)))
	before := g.Occupied()
	require.Positive(t, before)

	for range 10 {
		g = physicsStep(t, g, GPUFrameConstants{}, NoSelection())
		assert.Equal(t, before, g.Occupied())
	}
}

func TestPhysicsHeaderTakesSelection(t *testing.T) {
	g := voxel.NewGrid(4, voxel.WithPosition(mgl32.Vec3{5, 6, 7}))
	sel := GPUSelection{Selected: [3]float32{1, 2, 3}, Hit: 1, Normal: [3]float32{0, 1, 0}}

	next := physicsStep(t, g, GPUFrameConstants{}, sel)

	assert.Equal(t, mgl32.Vec3{5, 6, 7}, next.Position())
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, next.Selected())
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, next.Normal())
}

func TestBrushPaintAndErase(t *testing.T) {
	g := voxel.NewGrid(4, voxel.WithFill(voxel.FloorFill(1, solid)))
	sel := GPUSelection{Selected: [3]float32{1, 0, 1}, Hit: 1, Normal: [3]float32{0, 1, 0}}
	brushVoxel := voxel.NewVoxel(voxel.TypeSolid, 1, 0, 0)

	painted := physicsStep(t, g, GPUFrameConstants{MouseClick: ClickPaint, BrushVoxel: uint32(brushVoxel)}, sel)
	v, _ := painted.Get(1, 1, 1)
	assert.Equal(t, brushVoxel, v)
	assert.Equal(t, g.Occupied()+1, painted.Occupied())

	erased := physicsStep(t, g, GPUFrameConstants{MouseClick: ClickErase, BrushSize: 1}, sel)
	for _, c := range [][3]uint32{{1, 0, 1}, {0, 0, 1}, {2, 0, 1}, {1, 0, 0}, {1, 0, 2}} {
		v, _ := erased.Get(c[0], c[1], c[2])
		assert.True(t, v.Empty(), "cell %v should be erased", c)
	}
	assert.Equal(t, g.Occupied()-5, erased.Occupied())

	// without a selection the brush does nothing
	idle := physicsStep(t, g, GPUFrameConstants{MouseClick: ClickPaint | ClickErase, BrushSize: 3}, NoSelection())
	assert.Equal(t, g.Checksum(), idle.Checksum())
}

func TestPaintUnderSandKeepsGrain(t *testing.T) {
	g := voxel.NewGrid(4, voxel.WithFill(voxel.FloorFill(1, solid)))
	g.Set(1, 2, 1, sand)
	sel := GPUSelection{Selected: [3]float32{1, 0, 1}, Hit: 1, Normal: [3]float32{0, 1, 0}}
	brushVoxel := voxel.NewVoxel(voxel.TypeSolid, 1, 0, 0)

	next := physicsStep(t, g, GPUFrameConstants{MouseClick: ClickPaint, BrushVoxel: uint32(brushVoxel)}, sel)

	painted, _ := next.Get(1, 1, 1)
	assert.Equal(t, brushVoxel, painted)
	grain, _ := next.Get(1, 2, 1)
	assert.Equal(t, sand, grain, "sand above the painted cell should stay put")
	assert.Equal(t, g.Occupied()+1, next.Occupied())
}

func TestEraseFallingSandDoesNotReappear(t *testing.T) {
	g := voxel.NewGrid(4, voxel.WithFill(voxel.FloorFill(1, solid)))
	g.Set(1, 2, 1, sand)
	sel := GPUSelection{Selected: [3]float32{1, 2, 1}, Hit: 1, Normal: [3]float32{0, 1, 0}}

	next := physicsStep(t, g, GPUFrameConstants{MouseClick: ClickErase}, sel)

	erased, _ := next.Get(1, 2, 1)
	assert.True(t, erased.Empty())
	below, _ := next.Get(1, 1, 1)
	assert.True(t, below.Empty(), "erased sand should not fall into the cell below")
	assert.Equal(t, g.Occupied()-1, next.Occupied())
}

func TestBrushOutsideColumnLeavesFallAlone(t *testing.T) {
	g := voxel.NewGrid(4, voxel.WithFill(voxel.FloorFill(1, solid)))
	g.Set(3, 3, 3, sand)
	sel := GPUSelection{Selected: [3]float32{0, 0, 0}, Hit: 1, Normal: [3]float32{0, 1, 0}}

	next := physicsStep(t, g, GPUFrameConstants{MouseClick: ClickErase}, sel)

	fallen, _ := next.Get(3, 2, 3)
	assert.Equal(t, sand, fallen)
	assert.Equal(t, g.Occupied()-1, next.Occupied())
}

func testFrame(eye, target mgl32.Vec3, width, height uint32) GPUFrameConstants {
	view := mgl32.LookAtV(eye, target, mgl32.Vec3{0, 1, 0})
	proj := mgl32.Perspective(mgl32.DegToRad(45), float32(width)/float32(height), 0.1, 100)
	return GPUFrameConstants{
		CameraToWorld:     view.Inv(),
		InverseProjection: proj.Inv(),
		ScreenWidth:       width,
		ScreenHeight:      height,
	}
}

func TestRaycastSelectsCenterHit(t *testing.T) {
	g := voxel.NewGrid(4)
	for x := range uint32(4) {
		for y := range uint32(4) {
			g.Set(x, y, 1, solid)
		}
	}
	frame := testFrame(mgl32.Vec3{2.5, 2.5, -10}, mgl32.Vec3{2.5, 2.5, 0}, 9, 9)
	out := image.NewRGBA(image.Rect(0, 0, 9, 9))
	b := &testBindings{
		words: map[int][]uint32{
			RaycastBindingGrid:      toWords(g.Marshal()),
			RaycastBindingConstants: toWords(frame.Marshal()),
			RaycastBindingSelection: toWords((&GPUSelection{}).Marshal()),
		},
		images: map[int]*image.RGBA{RaycastBindingOutput: out},
	}

	runKernel(RaycastKernel, [3]uint32{9, 9, 1}, b)

	sel, err := UnmarshalSelection(toBytes(b.words[RaycastBindingSelection]))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), sel.Hit)
	assert.Equal(t, [3]float32{2, 2, 1}, sel.Selected)
	assert.Equal(t, [3]float32{0, 0, -1}, sel.Normal)

	center := out.RGBAAt(4, 4)
	assert.NotEqual(t, backgroundColor, [4]uint8{center.R, center.G, center.B, center.A})
	assert.Equal(t, uint8(255), center.A)
}

func TestRaycastMissClearsSelection(t *testing.T) {
	g := voxel.NewGrid(4)
	frame := testFrame(mgl32.Vec3{2, 2, -10}, mgl32.Vec3{2, 2, 0}, 8, 8)
	out := image.NewRGBA(image.Rect(0, 0, 8, 8))
	prior := GPUSelection{Selected: [3]float32{1, 1, 1}, Hit: 1}
	b := &testBindings{
		words: map[int][]uint32{
			RaycastBindingGrid:      toWords(g.Marshal()),
			RaycastBindingConstants: toWords(frame.Marshal()),
			RaycastBindingSelection: toWords(prior.Marshal()),
		},
		images: map[int]*image.RGBA{RaycastBindingOutput: out},
	}

	runKernel(RaycastKernel, [3]uint32{8, 8, 1}, b)

	sel, err := UnmarshalSelection(toBytes(b.words[RaycastBindingSelection]))
	require.NoError(t, err)
	assert.Equal(t, NoSelection(), sel)

	px := out.RGBAAt(0, 0)
	assert.Equal(t, backgroundColor, [4]uint8{px.R, px.G, px.B, px.A})
}

func TestFrameConstantsLayout(t *testing.T) {
	frame := GPUFrameConstants{MouseClick: ClickErase, BrushSize: 3, ScreenWidth: 640, ScreenHeight: 480, BrushVoxel: 7}
	frame.CameraToWorld[12] = 2.5

	data := frame.Marshal()
	require.Len(t, data, GPUFrameConstantsSize)
	assert.Equal(t, GPUFrameConstantsSize, frame.Size())
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[128:]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(data[132:]))
	assert.Equal(t, uint32(640), binary.LittleEndian.Uint32(data[136:]))
	assert.Equal(t, uint32(480), binary.LittleEndian.Uint32(data[140:]))
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(data[144:]))

	assert.Equal(t, frame, frameConstantsFromWords(toWords(data)))
}

func TestSelectionLayout(t *testing.T) {
	sel := GPUSelection{Selected: [3]float32{1, 2, 3}, Hit: 1, Normal: [3]float32{0, -1, 0}}
	data := sel.Marshal()
	require.Len(t, data, GPUSelectionSize)
	assert.Equal(t, GPUSelectionSize, sel.Size())

	back, err := UnmarshalSelection(data)
	require.NoError(t, err)
	assert.Equal(t, sel, back)

	_, err = UnmarshalSelection(data[:8])
	assert.Error(t, err)
}
