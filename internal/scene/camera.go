package scene

import "math"

const (
	cameraDistance = 5.0
	cameraDrift    = 0.5
	nearPlane      = 0.1
)

// camera is a perspective camera looking at the origin.
type camera struct {
	pos            Vec3
	right, up, fwd Vec3
	focal          float64 // pixels per unit at depth 1
	cx, cy         float64
}

// fovFor returns the vertical field of view in degrees. Portrait frames get
// a wider view so the mesh fits horizontally.
func fovFor(w, h int) float64 {
	if w < h {
		return 90
	}
	return 75
}

// newCamera positions the camera for time t (seconds) on a small circle in
// front of the scene.
func newCamera(w, h int, t float64) camera {
	pos := Vec3{
		math.Sin(t*0.5) * cameraDrift,
		math.Cos(t*0.5) * cameraDrift,
		cameraDistance,
	}
	fwd := pos.Scale(-1).Normalize()
	right := fwd.Cross(Vec3{0, 1, 0}).Normalize()
	up := right.Cross(fwd)

	half := fovFor(w, h) * math.Pi / 360
	return camera{
		pos:   pos,
		right: right,
		up:    up,
		fwd:   fwd,
		focal: float64(h) / 2 / math.Tan(half),
		cx:    float64(w) / 2,
		cy:    float64(h) / 2,
	}
}

// project maps a world point to pixel coordinates. ok is false for points
// behind the near plane.
func (c camera) project(p Vec3) (x, y, depth float64, ok bool) {
	d := p.Sub(c.pos)
	depth = d.Dot(c.fwd)
	if depth < nearPlane {
		return 0, 0, depth, false
	}
	s := c.focal / depth
	return c.cx + d.Dot(c.right)*s, c.cy - d.Dot(c.up)*s, depth, true
}
