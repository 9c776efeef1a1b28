package preview

import (
	"image/color"

	"github.com/muesli/termenv"
)

// ASCII brightness ramp from darkest to brightest.
const asciiRamp = " .:-=+*#%@"

const ansiReset = termenv.CSI + termenv.ResetSeq + "m"

// maxCached bounds the escape cache; a busy frame has a few thousand
// distinct colors.
const maxCached = 8192

// palette turns pixel colors into escape sequences for one terminal
// profile, remembering recent conversions.
type palette struct {
	profile termenv.Profile
	fg, bg  map[uint32]string
}

func newPalette(p termenv.Profile) *palette {
	return &palette{
		profile: p,
		fg:      make(map[uint32]string),
		bg:      make(map[uint32]string),
	}
}

func (p *palette) colored() bool { return p.profile != termenv.Ascii }

func (p *palette) seq(r, g, b uint8, bg bool) string {
	key := uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	cache := p.fg
	if bg {
		cache = p.bg
	}
	if s, ok := cache[key]; ok {
		return s
	}
	if len(cache) >= maxCached {
		clear(cache)
	}

	c := p.profile.FromColor(color.RGBA{R: r, G: g, B: b, A: 255})
	s := ""
	if code := c.Sequence(bg); code != "" {
		s = termenv.CSI + code + "m"
	}
	cache[key] = s
	return s
}

// luminance computes perceived brightness (ITU-R BT.601).
func luminance(r, g, b uint8) uint8 {
	return uint8((299*int(r) + 587*int(g) + 114*int(b)) / 1000)
}

// brightnessChar maps a 0-255 luminance to an ASCII character.
func brightnessChar(lum uint8) byte {
	idx := int(lum) * (len(asciiRamp) - 1) / 255
	return asciiRamp[idx]
}
