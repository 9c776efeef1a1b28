// Package scene renders the animated background: a wireframe icosahedron
// around a subdivided inner core, floating in a cloud of debris. It is a
// small software renderer driven entirely by visualizer.FrameState.
package scene

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/zaytoolit/flightdeck/internal/visualizer"
)

// Renderer is what the engine needs from a scene.
type Renderer interface {
	Resize(w, h int)
	SetColor(c color.Color)
	Render(st visualizer.FrameState)
	Frame() *image.RGBA
	Size() (w, h int)
}

const (
	outerRadius   = 2.0
	innerRadius   = 1.0
	innerDetail   = 1
	debrisSide    = 25.0
	debrisSeed    = 1
	referenceSide = 1080.0 // sizes below are in pixels at this width

	outerAlpha    = 0.35
	innerAlpha    = 0.15
	particleAlpha = 0.6
)

// Scene is the software renderer. Not safe for concurrent use.
type Scene struct {
	w, h       int
	frame      *image.RGBA
	accent     color.NRGBA
	background color.Color

	outer     Mesh
	inner     Mesh
	particles []Vec3
	pts       []screenPoint

	stroke *stroker
	post   *post
}

var _ Renderer = (*Scene)(nil)

// New builds a scene rendering w×h frames in the accent color.
func New(w, h int, accent color.Color) *Scene {
	w, h = max(1, w), max(1, h)
	s := &Scene{
		w:          w,
		h:          h,
		frame:      image.NewRGBA(image.Rect(0, 0, w, h)),
		background: color.Black,
		outer:      Icosahedron(outerRadius, 0),
		inner:      Icosahedron(innerRadius, innerDetail),
		stroke:     newStroker(w, h),
		post:       newPost(w, h),
	}
	s.SetColor(accent)
	s.SetDebris(350)
	return s
}

// Resize reallocates the frame. The next Frame is exactly w×h.
func (s *Scene) Resize(w, h int) {
	w, h = max(1, w), max(1, h)
	if w == s.w && h == s.h {
		return
	}
	s.w, s.h = w, h
	s.frame = image.NewRGBA(image.Rect(0, 0, w, h))
	s.stroke.reset(w, h)
	s.post = newPost(w, h)
}

// Size returns the frame dimensions.
func (s *Scene) Size() (int, int) { return s.w, s.h }

// SetColor recolors every layer.
func (s *Scene) SetColor(c color.Color) {
	s.accent = color.NRGBAModel.Convert(c).(color.NRGBA)
}

// SetDebris regenerates the particle cloud when the count changes. The
// cloud is seeded so a given count always looks the same.
func (s *Scene) SetDebris(n int) {
	n = max(0, n)
	if n == len(s.particles) && s.particles != nil {
		return
	}
	s.particles = Particles(n, debrisSide, debrisSeed)
}

// Frame returns the last rendered frame. It is overwritten by Render.
func (s *Scene) Frame() *image.RGBA { return s.frame }

// Render draws one frame.
func (s *Scene) Render(st visualizer.FrameState) {
	xdraw.Draw(s.frame, s.frame.Bounds(), image.NewUniform(s.background), image.Point{}, xdraw.Src)

	cam := newCamera(s.w, s.h, st.Time)
	unit := float64(s.w) / referenceSide
	lineWidth := max(1, 1.5*unit)

	// Outer shell: displaced along the normal, bass-scaled.
	s.drawMesh(cam, s.outer, lineWidth, s.tint(outerAlpha), func(i int, v Vec3) Vec3 {
		wobble := st.Displacement * math.Sin(3*st.Time+float64(i)*0.7)
		v = v.Add(v.Normalize().Scale(wobble)).Scale(st.MeshScale)
		return v.Rotate(st.GroupRotX, st.GroupRotY, 0)
	})

	// Inner core spins on its own axes inside the group.
	s.drawMesh(cam, s.inner, lineWidth, s.tint(innerAlpha), func(_ int, v Vec3) Vec3 {
		v = v.Scale(st.InnerScale).Rotate(0, st.InnerRotY, st.InnerRotZ)
		return v.Rotate(st.GroupRotX, st.GroupRotY, 0)
	})

	size := st.ParticleSize * unit
	for _, p := range s.particles {
		p = p.Rotate(0, st.ParticleSpin, 0).Rotate(st.GroupRotX, st.GroupRotY, 0)
		x, y, depth, ok := cam.project(p)
		if !ok {
			continue
		}
		// Perspective attenuation relative to the mesh distance.
		d := max(0.5, min(size*4, size*cameraDistance/depth))
		s.stroke.dot(x, y, d)
	}
	s.stroke.flush(s.frame, s.tint(particleAlpha))

	s.post.bloom(s.frame, st.Bloom)
	s.post.pixelate(s.frame, pixelBlock(st.Pixel, s.w))
}

func (s *Scene) drawMesh(cam camera, m Mesh, width float64, c color.Color, xf func(int, Vec3) Vec3) {
	s.pts = s.pts[:0]
	for i, v := range m.Verts {
		x, y, _, ok := cam.project(xf(i, v))
		s.pts = append(s.pts, screenPoint{x, y, ok})
	}
	for _, e := range m.Edges {
		a, b := s.pts[e[0]], s.pts[e[1]]
		if a.ok && b.ok {
			s.stroke.line(a.x, a.y, b.x, b.y, width)
		}
	}
	s.stroke.flush(s.frame, c)
}

type screenPoint struct {
	x, y float64
	ok   bool
}

func (s *Scene) tint(alpha float64) color.NRGBA {
	c := s.accent
	c.A = uint8(alpha * 255)
	return c
}

// pixelBlock converts a pixel size in reference pixels to a block size for
// a frame of width w.
func pixelBlock(pixel float64, w int) int {
	return int(math.Round(pixel * float64(w) / referenceSide))
}
