package overlay

import (
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	xdraw "golang.org/x/image/draw"
)

// DefaultScale is the supersampling factor used for export overlays.
const DefaultScale = 2

// Rasterize renders nodes onto a transparent w×h image. Drawing happens at
// scale× and is downsampled with Catmull-Rom so text edges stay smooth.
func Rasterize(nodes []Node, w, h, scale int) (*image.RGBA, error) {
	w, h, scale = max(1, w), max(1, h), max(1, scale)
	big := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	z := vector.NewRasterizer(w*scale, h*scale)

	for _, n := range nodes {
		switch n.Kind {
		case KindRect:
			drawRect(big, z, n, float64(scale))
		case KindText:
			if err := drawText(big, n, float64(scale)); err != nil {
				return nil, err
			}
		}
	}
	if scale == 1 {
		return big, nil
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(out, out.Bounds(), big, big.Bounds(), xdraw.Src, nil)
	return out, nil
}

func scaleRect(r image.Rectangle, s float64) (x0, y0, x1, y1 float64) {
	return float64(r.Min.X) * s, float64(r.Min.Y) * s, float64(r.Max.X) * s, float64(r.Max.Y) * s
}

func drawRect(dst *image.RGBA, z *vector.Rasterizer, n Node, s float64) {
	x0, y0, x1, y1 := scaleRect(n.Box, s)
	if x1 <= x0 || y1 <= y0 {
		return
	}
	b := dst.Bounds()
	r := n.Radius * s

	if n.Fill.A > 0 {
		z.Reset(b.Dx(), b.Dy())
		roundedRect(z, x0, y0, x1, y1, r, false)
		z.Draw(dst, b, image.NewUniform(n.Fill), image.Point{})
	}
	if n.Border.A > 0 {
		bw := s
		z.Reset(b.Dx(), b.Dy())
		roundedRect(z, x0, y0, x1, y1, r, false)
		// Opposite winding cuts the inside out.
		roundedRect(z, x0+bw, y0+bw, x1-bw, y1-bw, max(0, r-bw), true)
		z.Draw(dst, b, image.NewUniform(n.Border), image.Point{})
	}
}

// roundedRect adds a closed rounded rectangle. reverse flips the winding.
func roundedRect(z *vector.Rasterizer, x0, y0, x1, y1, r float64, reverse bool) {
	if x1 <= x0 || y1 <= y0 {
		return
	}
	r = min(r, (x1-x0)/2, (y1-y0)/2)
	f := func(v float64) float32 { return float32(v) }

	z.MoveTo(f(x0+r), f(y0))
	if !reverse {
		z.LineTo(f(x1-r), f(y0))
		z.QuadTo(f(x1), f(y0), f(x1), f(y0+r))
		z.LineTo(f(x1), f(y1-r))
		z.QuadTo(f(x1), f(y1), f(x1-r), f(y1))
		z.LineTo(f(x0+r), f(y1))
		z.QuadTo(f(x0), f(y1), f(x0), f(y1-r))
		z.LineTo(f(x0), f(y0+r))
		z.QuadTo(f(x0), f(y0), f(x0+r), f(y0))
	} else {
		z.QuadTo(f(x0), f(y0), f(x0), f(y0+r))
		z.LineTo(f(x0), f(y1-r))
		z.QuadTo(f(x0), f(y1), f(x0+r), f(y1))
		z.LineTo(f(x1-r), f(y1))
		z.QuadTo(f(x1), f(y1), f(x1), f(y1-r))
		z.LineTo(f(x1), f(y0+r))
		z.QuadTo(f(x1), f(y0), f(x1-r), f(y0))
	}
	z.ClosePath()
}

func drawText(dst *image.RGBA, n Node, s float64) error {
	if n.Text == "" || n.Size <= 0 {
		return nil
	}

	typeset.mu.Lock()
	defer typeset.mu.Unlock()

	face, err := faceLocked(n.Style, n.Size*s)
	if err != nil {
		return err
	}

	x0, y0, x1, y1 := scaleRect(n.Box, s)
	met := face.Metrics()
	adv := fixedToFloat(font.MeasureString(face, n.Text))
	ascent, descent := fixedToFloat(met.Ascent), fixedToFloat(met.Descent)
	dotX := x0 + (x1-x0-adv)/2
	baseline := y0 + (y1-y0+ascent-descent)/2

	glowR := 0
	if n.Glow.A > 0 {
		glowR = int(math.Ceil(n.Size * s * 0.15))
	}
	area := image.Rect(
		int(math.Floor(min(x0, dotX))), int(math.Floor(y0)),
		int(math.Ceil(max(x1, dotX+adv))), int(math.Ceil(y1)),
	).Inset(-glowR - 2).Intersect(dst.Bounds())
	if area.Empty() {
		return nil
	}

	mask := image.NewAlpha(area)
	d := font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(dotX * 64), Y: fixed.Int26_6(baseline * 64)},
	}
	d.DrawString(n.Text)

	if glowR > 0 {
		halo := blurMask(mask, glowR)
		xdraw.DrawMask(dst, area, image.NewUniform(n.Glow), image.Point{}, halo, area.Min, xdraw.Over)
	}

	var src image.Image = image.NewUniform(n.Fill)
	if n.To.A > 0 {
		src = newGradient(n.Fill, n.To, int(y0), int(y1))
	}
	xdraw.DrawMask(dst, area, src, area.Min, mask, area.Min, xdraw.Over)
	return nil
}

// blurMask returns a soft copy of mask: a box blur run on a downscaled
// copy, scaled back up bilinearly.
func blurMask(mask *image.Alpha, radius int) *image.Alpha {
	b := mask.Bounds()
	k := max(1, radius/3)
	small := image.NewAlpha(image.Rect(0, 0, max(1, b.Dx()/k), max(1, b.Dy()/k)))
	xdraw.ApproxBiLinear.Scale(small, small.Bounds(), mask, b, xdraw.Src, nil)

	r := max(1, radius/k)
	tmp := make([]uint8, len(small.Pix))
	sw, sh := small.Bounds().Dx(), small.Bounds().Dy()
	boxPass(small.Pix, tmp, sh, sw, small.Stride, 1, r)
	boxPass(tmp, small.Pix, sw, sh, 1, small.Stride, r)

	out := image.NewAlpha(b)
	xdraw.ApproxBiLinear.Scale(out, b, small, small.Bounds(), xdraw.Src, nil)
	return out
}

// boxPass is a 1D running-sum box filter over single-channel lines.
func boxPass(src, dst []uint8, lines, n, next, step, r int) {
	win := 2*r + 1
	at := func(i int) int { return max(0, min(n-1, i)) }
	for l := range lines {
		base := l * next
		sum := 0
		for i := -r; i <= r; i++ {
			sum += int(src[base+at(i)*step])
		}
		for i := range n {
			dst[base+i*step] = uint8(sum / win)
			sum += int(src[base+at(i+r+1)*step])
			sum -= int(src[base+at(i-r)*step])
		}
	}
}

// gradient is a vertical two-stop gradient between rows y0 and y1,
// blended in RGB like a CSS linear-gradient.
type gradient struct {
	y0   int
	rows []color.NRGBA
}

func newGradient(from, to color.NRGBA, y0, y1 int) *gradient {
	n := max(1, y1-y0)
	a := colorful.Color{R: float64(from.R) / 255, G: float64(from.G) / 255, B: float64(from.B) / 255}
	b := colorful.Color{R: float64(to.R) / 255, G: float64(to.G) / 255, B: float64(to.B) / 255}
	g := &gradient{y0: y0, rows: make([]color.NRGBA, n)}
	for i := range g.rows {
		t := float64(i) / float64(max(1, n-1))
		r, gg, bb := a.BlendRgb(b, t).RGB255()
		alpha := float64(from.A) + (float64(to.A)-float64(from.A))*t
		g.rows[i] = color.NRGBA{r, gg, bb, uint8(alpha + 0.5)}
	}
	return g
}

func (g *gradient) ColorModel() color.Model { return color.NRGBAModel }

func (g *gradient) Bounds() image.Rectangle {
	return image.Rect(-1<<30, -1<<30, 1<<30, 1<<30)
}

func (g *gradient) At(_, y int) color.Color {
	i := max(0, min(len(g.rows)-1, y-g.y0))
	return g.rows[i]
}
