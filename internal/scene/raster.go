package scene

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"
)

// stroker batches thin quads into one vector path so each layer costs a
// single coverage pass. All quads share the same winding, so overlaps add
// instead of cancelling.
type stroker struct {
	z     *vector.Rasterizer
	count int
}

func newStroker(w, h int) *stroker {
	return &stroker{z: vector.NewRasterizer(w, h)}
}

func (s *stroker) reset(w, h int) {
	s.z.Reset(w, h)
	s.count = 0
}

// line adds a segment of the given pixel width.
func (s *stroker) line(x0, y0, x1, y1, width float64) {
	dx, dy := x1-x0, y1-y0
	l := math.Hypot(dx, dy)
	if l < 1e-6 {
		s.dot(x0, y0, width)
		return
	}
	nx, ny := -dy/l*width/2, dx/l*width/2
	s.quad(x0+nx, y0+ny, x1+nx, y1+ny, x1-nx, y1-ny, x0-nx, y0-ny)
}

// dot adds a square of side size centered on (x, y).
func (s *stroker) dot(x, y, size float64) {
	h := size / 2
	s.quad(x-h, y-h, x+h, y-h, x+h, y+h, x-h, y+h)
}

func (s *stroker) quad(ax, ay, bx, by, cx, cy, dx, dy float64) {
	s.z.MoveTo(float32(ax), float32(ay))
	s.z.LineTo(float32(bx), float32(by))
	s.z.LineTo(float32(cx), float32(cy))
	s.z.LineTo(float32(dx), float32(dy))
	s.z.ClosePath()
	s.count++
}

// flush composites the accumulated path onto dst in c and resets.
func (s *stroker) flush(dst *image.RGBA, c color.Color) {
	if s.count > 0 {
		s.z.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{})
	}
	b := dst.Bounds()
	s.reset(b.Dx(), b.Dy())
}
