package compute

import (
	"image"
	"math"

	"github.com/Carmen-Shannon/voxel-go/engine/compute/pipeline"
	"github.com/Carmen-Shannon/voxel-go/engine/voxel"
	"github.com/go-gl/mathgl/mgl32"
)

// Word offsets of the grid header fields (see voxel.GridHeaderSize).
const (
	gridDimWord      = 0
	gridPosWord      = 4
	gridSelectedWord = 8
	gridNormalWord   = 12
	gridHeaderWords  = voxel.GridHeaderSize / 4
)

// Host kernel bindings, matching the @binding indices of the WGSL assets.
const (
	PhysicsBindingCurrent   = 0
	PhysicsBindingScratch   = 1
	PhysicsBindingConstants = 2
	PhysicsBindingSelection = 3

	RaycastBindingGrid      = 0
	RaycastBindingConstants = 1
	RaycastBindingSelection = 2
	RaycastBindingOutput    = 3

	IdentityBindingSrc = 0
	IdentityBindingDst = 1
)

var (
	backgroundColor = [4]uint8{13, 13, 20, 255}
	lightDirection  = mgl32.Vec3{0.4, 1, 0.3}.Normalize()
)

// gridWords is a grid upload buffer seen as words.
type gridWords []uint32

func (g gridWords) dim() uint32 {
	if len(g) < gridHeaderWords {
		return 0
	}
	return g[gridDimWord]
}

func (g gridWords) vec3(word int) mgl32.Vec3 {
	return mgl32.Vec3{
		math.Float32frombits(g[word]),
		math.Float32frombits(g[word+1]),
		math.Float32frombits(g[word+2]),
	}
}

func (g gridWords) putVec3(word int, v mgl32.Vec3) {
	for i := range 3 {
		g[word+i] = math.Float32bits(v[i])
	}
}

// cell returns the word index of voxel (x, y, z).
func (g gridWords) cell(x, y, z, dim uint32) int {
	return gridHeaderWords + int(x)*int(dim)*int(dim) + int(y)*int(dim) + int(z)
}

// inBounds reports whether id lies inside a grid of edge dim whose voxel array fits in g.
func (g gridWords) inBounds(id [3]uint32, dim uint32) bool {
	if id[0] >= dim || id[1] >= dim || id[2] >= dim {
		return false
	}
	return len(g) >= gridHeaderWords+int(dim)*int(dim)*int(dim)
}

func selectionFromWords(w []uint32) GPUSelection {
	if len(w) < GPUSelectionSize/4 {
		return NoSelection()
	}
	s := GPUSelection{Hit: w[selectionHitWord]}
	for i := range 3 {
		s.Selected[i] = math.Float32frombits(w[selectionSelectedWord+i])
		s.Normal[i] = math.Float32frombits(w[selectionNormalWord+i])
	}
	return s
}

// IdentityKernel copies every word of the grid at binding 0 into binding 1. Invocation
// (0, 0, 0) also copies the header.
func IdentityKernel(id [3]uint32, b pipeline.Bindings) {
	src := gridWords(b.Words(IdentityBindingSrc))
	dst := gridWords(b.Words(IdentityBindingDst))
	dim := src.dim()
	if !src.inBounds(id, dim) || !dst.inBounds(id, dim) {
		return
	}
	if id == [3]uint32{} {
		copy(dst[:gridHeaderWords], src[:gridHeaderWords])
	}
	w := src.cell(id[0], id[1], id[2], dim)
	dst[w] = src[w]
}

// SandKernel computes the next value of one cell from the current snapshot and writes it to
// the scratch grid. Sand falls one cell per step into empty space; other types stay put.
// With a selection present, the paint bit fills empty cells within brush_size of the face
// adjacent to the selection and the erase bit clears cells within brush_size of it.
// Invocation (0, 0, 0) writes the scratch header, taking the selection from binding 3.
func SandKernel(id [3]uint32, b pipeline.Bindings) {
	current := gridWords(b.Words(PhysicsBindingCurrent))
	scratch := gridWords(b.Words(PhysicsBindingScratch))
	dim := current.dim()
	if !current.inBounds(id, dim) || !scratch.inBounds(id, dim) {
		return
	}

	frame := frameConstantsFromWords(b.Words(PhysicsBindingConstants))
	sel := selectionFromWords(b.Words(PhysicsBindingSelection))

	if id == [3]uint32{} {
		scratch[gridDimWord] = dim
		copy(scratch[gridPosWord:gridPosWord+4], current[gridPosWord:gridPosWord+4])
		scratch.putVec3(gridSelectedWord, sel.Selected)
		scratch.putVec3(gridNormalWord, sel.Normal)
	}

	scratch[scratch.cell(id[0], id[1], id[2], dim)] = uint32(nextSandValue(current, id, dim, frame, sel))
}

func isSand(v voxel.Voxel) bool {
	return !v.Empty() && v.Type() == voxel.TypeSand
}

// nextSandValue is a pure function of the snapshot. A cell the brush touches this step takes
// the brush result and does not take part in falling, so a grain only moves when both its cell
// and the cell below are left alone by the brush.
func nextSandValue(current gridWords, id [3]uint32, dim uint32, frame GPUFrameConstants, sel GPUSelection) voxel.Voxel {
	at := func(x, y, z uint32) voxel.Voxel {
		return voxel.Voxel(current[current.cell(x, y, z, dim)])
	}
	brushed := func(x, y, z uint32) (voxel.Voxel, bool) {
		if sel.Hit == 0 {
			return 0, false
		}
		cell := mgl32.Vec3{float32(x), float32(y), float32(z)}
		brush := float32(frame.BrushSize)
		selected := mgl32.Vec3(sel.Selected)
		if frame.MouseClick&ClickPaint != 0 && at(x, y, z).Empty() && cell.Sub(selected.Add(sel.Normal)).Len() <= brush {
			return voxel.Voxel(frame.BrushVoxel), true
		}
		if frame.MouseClick&ClickErase != 0 && cell.Sub(selected).Len() <= brush {
			return 0, true
		}
		return 0, false
	}

	if v, ok := brushed(id[0], id[1], id[2]); ok {
		return v
	}
	cur := at(id[0], id[1], id[2])

	if !cur.Empty() {
		if isSand(cur) && id[1] > 0 && at(id[0], id[1]-1, id[2]).Empty() {
			if _, below := brushed(id[0], id[1]-1, id[2]); !below {
				return 0
			}
		}
		return cur
	}

	if id[1]+1 < dim {
		if above := at(id[0], id[1]+1, id[2]); isSand(above) {
			if _, erased := brushed(id[0], id[1]+1, id[2]); !erased {
				return above
			}
		}
	}
	return 0
}

// rayHit is the first occupied cell along a ray.
type rayHit struct {
	cell   [3]int
	normal mgl32.Vec3
	voxel  voxel.Voxel
}

// RaycastKernel shades one pixel of the output image by marching a camera ray through the grid.
// The center pixel writes the hit cell and face normal to the selection buffer, or NoSelection
// on a miss.
func RaycastKernel(id [3]uint32, b pipeline.Bindings) {
	grid := gridWords(b.Words(RaycastBindingGrid))
	frame := frameConstantsFromWords(b.Words(RaycastBindingConstants))
	out := b.Image(RaycastBindingOutput)
	width, height := frame.ScreenWidth, frame.ScreenHeight
	if id[0] >= width || id[1] >= height {
		return
	}

	origin, dir := cameraRay(frame, id[0], id[1])
	hit, found := march(grid, origin, dir)

	if id[0] == width/2 && id[1] == height/2 {
		if w := b.Words(RaycastBindingSelection); len(w) >= GPUSelectionSize/4 {
			s := NoSelection()
			if found {
				s = GPUSelection{
					Selected: [3]float32{float32(hit.cell[0]), float32(hit.cell[1]), float32(hit.cell[2])},
					Hit:      1,
					Normal:   hit.normal,
				}
			}
			for i := range 3 {
				w[selectionSelectedWord+i] = math.Float32bits(s.Selected[i])
				w[selectionNormalWord+i] = math.Float32bits(s.Normal[i])
			}
			w[selectionHitWord] = s.Hit
		}
	}

	if out == nil || !(image.Point{X: int(id[0]), Y: int(id[1])}).In(out.Rect) {
		return
	}
	color := backgroundColor
	if found {
		color = shade(grid, hit, frame.BrushSize)
	}
	off := out.PixOffset(int(id[0]), int(id[1]))
	copy(out.Pix[off:off+4], color[:])
}

// cameraRay returns the world-space origin and direction of the ray through pixel (x, y).
func cameraRay(frame GPUFrameConstants, x, y uint32) (mgl32.Vec3, mgl32.Vec3) {
	u := (float32(x) + 0.5) / float32(frame.ScreenWidth)
	v := (float32(y) + 0.5) / float32(frame.ScreenHeight)
	ndc := mgl32.Vec4{u*2 - 1, 1 - v*2, 1, 1}

	view := mgl32.Mat4(frame.InverseProjection).Mul4x1(ndc)
	viewDir := view.Vec3().Mul(1 / view.W()).Normalize()

	cameraToWorld := mgl32.Mat4(frame.CameraToWorld)
	dir := cameraToWorld.Mul4x1(viewDir.Vec4(0)).Vec3().Normalize()
	origin := cameraToWorld.Col(3).Vec3()
	return origin, dir
}

func safeInverse(d mgl32.Vec3) mgl32.Vec3 {
	var inv mgl32.Vec3
	for i := range 3 {
		if float32(math.Abs(float64(d[i]))) < 1e-8 {
			inv[i] = 1e30
		} else {
			inv[i] = 1 / d[i]
		}
	}
	return inv
}

func sign(f float32) int {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	default:
		return 0
	}
}

// march walks the grid cell by cell (Amanatides-Woo DDA) from where the ray enters the grid box.
func march(grid gridWords, origin, dir mgl32.Vec3) (rayHit, bool) {
	dim := grid.dim()
	if dim == 0 || len(grid) < gridHeaderWords+int(dim)*int(dim)*int(dim) {
		return rayHit{}, false
	}
	pos := grid.vec3(gridPosWord)
	invDir := safeInverse(dir)

	// slab test
	near, far := float32(math.Inf(-1)), float32(math.Inf(1))
	axis := -1
	for i := range 3 {
		t0 := (pos[i] - origin[i]) * invDir[i]
		t1 := (pos[i] + float32(dim) - origin[i]) * invDir[i]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > near {
			near = t0
			axis = i
		}
		far = min(far, t1)
	}
	if near < 0 {
		near = 0
		axis = -1
	}
	if near > far {
		return rayHit{}, false
	}

	var step [3]int
	var normal mgl32.Vec3
	for i := range 3 {
		step[i] = sign(dir[i])
	}
	if axis >= 0 {
		normal[axis] = -float32(step[axis])
	}

	entry := origin.Add(dir.Mul(near)).Sub(pos)
	var cell [3]int
	var side, delta mgl32.Vec3
	for i := range 3 {
		cell[i] = min(max(int(math.Floor(float64(entry[i]))), 0), int(dim)-1)
		delta[i] = float32(math.Abs(float64(invDir[i])))
		boundary := float32(cell[i])
		if step[i] > 0 {
			boundary++
		}
		side[i] = (boundary - entry[i]) * invDir[i]
		if step[i] == 0 {
			side[i] = 1e30
		}
	}

	for range dim * 3 {
		if cell[0] < 0 || cell[1] < 0 || cell[2] < 0 || cell[0] >= int(dim) || cell[1] >= int(dim) || cell[2] >= int(dim) {
			break
		}
		v := voxel.Voxel(grid[grid.cell(uint32(cell[0]), uint32(cell[1]), uint32(cell[2]), dim)])
		if !v.Empty() {
			return rayHit{cell: cell, normal: normal, voxel: v}, true
		}

		i := 2
		if side[0] < side[1] && side[0] < side[2] {
			i = 0
		} else if side[1] < side[2] {
			i = 1
		}
		cell[i] += step[i]
		side[i] += delta[i]
		normal = mgl32.Vec3{}
		normal[i] = -float32(step[i])
	}
	return rayHit{}, false
}

// shade lights the hit voxel's color by its face normal and tints cells inside the brush.
func shade(grid gridWords, hit rayHit, brushSize uint32) [4]uint8 {
	r, g, b := hit.voxel.Color()
	lambert := float32(0.6 + 0.4*math.Abs(float64(hit.normal.Dot(lightDirection))))
	rgb := mgl32.Vec3{r, g, b}.Mul(lambert)

	selected := grid.vec3(gridSelectedWord)
	cell := mgl32.Vec3{float32(hit.cell[0]), float32(hit.cell[1]), float32(hit.cell[2])}
	if selected[0] >= 0 && cell.Sub(selected).Len() <= float32(brushSize) {
		rgb = rgb.Add(mgl32.Vec3{0.25, 0.25, 0.25})
	}

	var out [4]uint8
	for i := range 3 {
		out[i] = uint8(min(max(rgb[i], 0), 1)*255 + 0.5)
	}
	out[3] = 255
	return out
}
