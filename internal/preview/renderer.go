// Package preview draws rendered frames into the terminal with half-block
// characters, or a brightness ramp when the terminal has no color.
package preview

import (
	"image"
	"strings"

	"github.com/muesli/termenv"
)

// Renderer converts RGBA frames into terminal strings.
//   - Color (half-block): "▀" with fg/bg colors packs 2 pixel rows per terminal row.
//   - ASCII (no color): each pixel maps to a brightness character.
type Renderer struct {
	pal *palette
	sb  strings.Builder
}

// NewRenderer creates a renderer for the color profile the environment
// advertises.
func NewRenderer() *Renderer {
	return NewRendererWithProfile(termenv.EnvColorProfile())
}

// NewRendererWithProfile creates a renderer for a fixed profile.
func NewRendererWithProfile(p termenv.Profile) *Renderer {
	return &Renderer{pal: newPalette(p)}
}

// Color reports whether half-block rendering is active.
func (r *Renderer) Color() bool { return r.pal.colored() }

// Render scales img to cols x rows terminal cells with nearest-neighbor
// sampling.
func (r *Renderer) Render(img *image.RGBA, cols, rows int) string {
	if img == nil || cols <= 0 || rows <= 0 || img.Bounds().Empty() {
		return ""
	}

	r.sb.Reset()
	r.sb.Grow(cols * rows * 24)

	if r.pal.colored() {
		r.renderHalfBlock(img, cols, rows)
	} else {
		r.renderASCII(img, cols, rows)
	}
	return r.sb.String()
}

func (r *Renderer) renderHalfBlock(img *image.RGBA, cols, rows int) {
	pixelRows := rows * 2
	var lastFg, lastBg string

	for row := range rows {
		for col := range cols {
			tr, tg, tb := sample(img, col, cols, row*2, pixelRows)
			br, bg, bb := sample(img, col, cols, row*2+1, pixelRows)

			fg := r.pal.seq(tr, tg, tb, false)
			bgc := r.pal.seq(br, bg, bb, true)
			if fg != lastFg {
				r.sb.WriteString(fg)
				lastFg = fg
			}
			if bgc != lastBg {
				r.sb.WriteString(bgc)
				lastBg = bgc
			}
			r.sb.WriteString("▀")
		}

		r.sb.WriteString(ansiReset)
		lastFg, lastBg = "", ""
		if row < rows-1 {
			r.sb.WriteByte('\n')
		}
	}
}

func (r *Renderer) renderASCII(img *image.RGBA, cols, rows int) {
	for row := range rows {
		for col := range cols {
			pr, pg, pb := sample(img, col, cols, row, rows)
			r.sb.WriteByte(brightnessChar(luminance(pr, pg, pb)))
		}
		if row < rows-1 {
			r.sb.WriteByte('\n')
		}
	}
}

// sample reads the pixel under cell (col, row) of a cols x rows grid.
func sample(img *image.RGBA, col, cols, row, rows int) (uint8, uint8, uint8) {
	b := img.Bounds()
	x := b.Min.X + col*b.Dx()/cols
	y := b.Min.Y + row*b.Dy()/rows
	off := img.PixOffset(x, y)
	return img.Pix[off], img.Pix[off+1], img.Pix[off+2]
}

// Fit computes the terminal cell grid and the pixel size to render at so
// that an aspect-correct preview of srcW x srcH fits in termW x termH
// cells. Cells are taken to be twice as tall as wide.
func Fit(termW, termH, srcW, srcH int, color bool) (cols, rows, pixW, pixH int) {
	if srcW <= 0 || srcH <= 0 || termW <= 0 || termH <= 0 {
		return 0, 0, 0, 0
	}

	perRow := 1
	if color {
		perRow = 2
	}
	aspect := float64(srcW) / float64(srcH)

	// On screen a pixel is perRow/2 as wide as it is tall.
	pw := float64(perRow) / 2

	cols = termW
	pixH = int(float64(cols) * pw / aspect)
	if maxH := termH * perRow; pixH > maxH {
		pixH = maxH
		cols = int(float64(pixH) * aspect / pw)
	}
	rows = (pixH + perRow - 1) / perRow

	cols = max(cols, 4)
	rows = max(rows, 2)
	return cols, rows, cols, rows * perRow
}
