// Package export turns rendered frames into files: a compositor that
// layers the scene and the overlay, PNG snapshots, and recording sessions
// that stream frames into an ffmpeg encoder.
package export

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Compositor owns the offscreen W×H frame that export reads from. The frame
// is reused across calls to Compose.
type Compositor struct {
	frame *image.RGBA
}

// NewCompositor allocates a w×h frame.
func NewCompositor(w, h int) *Compositor {
	c := &Compositor{}
	c.Resize(w, h)
	return c
}

// Resize reallocates the frame if the size changed.
func (c *Compositor) Resize(w, h int) {
	w, h = max(1, w), max(1, h)
	if c.frame != nil && c.frame.Bounds().Dx() == w && c.frame.Bounds().Dy() == h {
		return
	}
	c.frame = image.NewRGBA(image.Rect(0, 0, w, h))
}

// Size returns the frame dimensions.
func (c *Compositor) Size() (int, int) {
	b := c.frame.Bounds()
	return b.Dx(), b.Dy()
}

// Frame returns the last composited frame.
func (c *Compositor) Frame() *image.RGBA { return c.frame }

// Compose clears the frame, draws scene over the full area (scaled if its
// size differs) and blends overlay on top. Either layer may be nil.
func (c *Compositor) Compose(scene, overlay image.Image) *image.RGBA {
	clear(c.frame.Pix)
	if scene != nil {
		place(c.frame, scene, xdraw.Src)
	}
	if overlay != nil {
		place(c.frame, overlay, xdraw.Over)
	}
	return c.frame
}

// place draws src over the whole of dst.
func place(dst *image.RGBA, src image.Image, op xdraw.Op) {
	db, sb := dst.Bounds(), src.Bounds()
	if db.Size() == sb.Size() {
		xdraw.Draw(dst, db, src, sb.Min, op)
		return
	}
	xdraw.ApproxBiLinear.Scale(dst, db, src, sb, op, nil)
}
