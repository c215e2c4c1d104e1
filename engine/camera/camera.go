package camera

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

type cameraImpl struct {
	mu *sync.Mutex

	up mgl32.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	viewMatrix        mgl32.Mat4
	projectionMatrix  mgl32.Mat4
	cameraToWorld     mgl32.Mat4
	inverseProjection mgl32.Mat4

	controller CameraController
}

// Camera holds perspective settings and computes the matrices the raycast pass consumes
// from an attached CameraController each frame via Update().
type Camera interface {
	// Up returns the camera's up vector.
	Up() mgl32.Vec3

	// Fov returns the field of view in radians.
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// ViewMatrix returns the current world-to-camera matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the view matrix
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the current perspective projection.
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix
	ProjectionMatrix() mgl32.Mat4

	// CameraToWorld returns the inverse of the view matrix. Its translation column is the
	// world-space eye position that rays start from.
	//
	// Returns:
	//   - mgl32.Mat4: the camera-to-world matrix
	CameraToWorld() mgl32.Mat4

	// InverseProjection returns the inverse of the projection matrix, used to turn
	// normalized device coordinates into camera-space ray directions.
	//
	// Returns:
	//   - mgl32.Mat4: the inverse projection matrix
	InverseProjection() mgl32.Mat4

	// Controller returns the attached CameraController, or nil.
	Controller() CameraController

	// Update reads position/target from the controller and recomputes matrices.
	// Should be called once per tick. Does nothing without a controller.
	Update()

	// SetFov sets the field of view in radians and recomputes matrices.
	SetFov(fov float32)

	// SetAspect sets the aspect ratio (width / height) and recomputes matrices.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetController attaches a CameraController to the camera.
	SetController(ctrl CameraController)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with default perspective settings.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:                &sync.Mutex{},
		up:                mgl32.Vec3{0, 1, 0},
		fov:               45.0 * (math.Pi / 180.0),
		aspect:            1.0,
		near:              0.1,
		far:               1000.0,
		viewMatrix:        mgl32.Ident4(),
		projectionMatrix:  mgl32.Ident4(),
		cameraToWorld:     mgl32.Ident4(),
		inverseProjection: mgl32.Ident4(),
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Up() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) CameraToWorld() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cameraToWorld
}

func (c *cameraImpl) InverseProjection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseProjection
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return
	}
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if aspect <= 0 || math.IsNaN(float64(aspect)) {
		return
	}
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
	c.updateMatrices()
}

// updateMatrices recalculates the projection pair always and the view pair when a controller
// is attached. Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	c.projectionMatrix = mgl32.Perspective(c.fov, c.aspect, c.near, c.far)
	c.inverseProjection = c.projectionMatrix.Inv()

	if c.controller == nil {
		return
	}
	c.viewMatrix = mgl32.LookAtV(c.controller.Position(), c.controller.Target(), c.up)
	c.cameraToWorld = c.viewMatrix.Inv()
}
