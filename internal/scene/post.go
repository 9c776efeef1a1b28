package scene

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

const (
	bloomDownscale = 4
	bloomRadius    = 2
)

// post owns the scratch buffers for the screen-space passes.
type post struct {
	small *image.RGBA // downscaled frame for bloom
	tmp   *image.RGBA
	glow  *image.RGBA // full size
	block *image.RGBA // pixelation grid, reallocated when the block size changes
}

func newPost(w, h int) *post {
	sw, sh := max(1, w/bloomDownscale), max(1, h/bloomDownscale)
	return &post{
		small: image.NewRGBA(image.Rect(0, 0, sw, sh)),
		tmp:   image.NewRGBA(image.Rect(0, 0, sw, sh)),
		glow:  image.NewRGBA(image.Rect(0, 0, w, h)),
	}
}

// bloom adds a blurred copy of the bright content back onto dst.
func (p *post) bloom(dst *image.RGBA, strength float64) {
	if strength <= 0 {
		return
	}
	xdraw.ApproxBiLinear.Scale(p.small, p.small.Bounds(), dst, dst.Bounds(), xdraw.Src, nil)
	boxBlur(p.small, p.tmp, bloomRadius)
	xdraw.ApproxBiLinear.Scale(p.glow, p.glow.Bounds(), p.small, p.small.Bounds(), xdraw.Src, nil)

	k := int(strength * 256)
	for i := 0; i < len(dst.Pix); i += 4 {
		for c := range 3 {
			v := int(dst.Pix[i+c]) + int(p.glow.Pix[i+c])*k>>8
			dst.Pix[i+c] = uint8(min(255, v))
		}
	}
}

// pixelate averages dst into size×size blocks.
func (p *post) pixelate(dst *image.RGBA, size int) {
	if size <= 1 {
		return
	}
	b := dst.Bounds()
	gw := (b.Dx() + size - 1) / size
	gh := (b.Dy() + size - 1) / size
	if p.block == nil || p.block.Bounds().Dx() != gw || p.block.Bounds().Dy() != gh {
		p.block = image.NewRGBA(image.Rect(0, 0, gw, gh))
	}

	xdraw.ApproxBiLinear.Scale(p.block, p.block.Bounds(), dst, b, xdraw.Src, nil)
	// Scale back onto a grid-aligned rectangle so every block is square.
	full := image.Rect(0, 0, gw*size, gh*size)
	xdraw.NearestNeighbor.Scale(dst, full, p.block, p.block.Bounds(), xdraw.Src, nil)
}

// boxBlur blurs img in place with a separable box of the given radius,
// using tmp as scratch of the same size.
func boxBlur(img, tmp *image.RGBA, r int) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	blurPass(img.Pix, tmp.Pix, h, w, img.Stride, 4, r)
	blurPass(tmp.Pix, img.Pix, w, h, 4, img.Stride, r)
}

// blurPass runs a 1D box filter along lines of n pixels. next is the byte
// distance between lines and step the distance between neighbors on a line.
func blurPass(src, dst []uint8, lines, n, next, step, r int) {
	win := 2*r + 1
	for l := range lines {
		base := l * next
		for c := range 4 {
			sum := 0
			for i := -r; i <= r; i++ {
				sum += int(src[base+clampIdx(i, n)*step+c])
			}
			for i := range n {
				dst[base+i*step+c] = uint8(sum / win)
				sum += int(src[base+clampIdx(i+r+1, n)*step+c])
				sum -= int(src[base+clampIdx(i-r, n)*step+c])
			}
		}
	}
}

func clampIdx(i, n int) int {
	return max(0, min(n-1, i))
}
