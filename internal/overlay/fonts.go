package overlay

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Style selects a typeface.
type Style int

const (
	Regular Style = iota
	Bold
	BoldItalic
)

var styleTTF = map[Style][]byte{
	Regular:    goregular.TTF,
	Bold:       gobold.TTF,
	BoldItalic: gobolditalic.TTF,
}

type faceKey struct {
	style Style
	size  int // 1/64 px
}

// typeset owns the parsed fonts and a face cache. opentype faces are not
// safe for concurrent use, so every access holds mu.
var typeset = struct {
	mu    sync.Mutex
	fonts map[Style]*opentype.Font
	faces map[faceKey]font.Face
}{
	fonts: make(map[Style]*opentype.Font),
	faces: make(map[faceKey]font.Face),
}

// faceLocked returns a face for style at size pixels. Caller holds mu.
func faceLocked(style Style, size float64) (font.Face, error) {
	key := faceKey{style, int(size * 64)}
	if f, ok := typeset.faces[key]; ok {
		return f, nil
	}

	fnt, ok := typeset.fonts[style]
	if !ok {
		var err error
		fnt, err = opentype.Parse(styleTTF[style])
		if err != nil {
			return nil, fmt.Errorf("parsing font: %w", err)
		}
		typeset.fonts[style] = fnt
	}

	f, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %.0fpx face: %w", size, err)
	}
	typeset.faces[key] = f
	return f, nil
}

// Measure returns the advance width of text in pixels. If the font cannot
// be loaded it falls back to an average glyph width estimate.
func Measure(text string, style Style, size float64) float64 {
	typeset.mu.Lock()
	defer typeset.mu.Unlock()

	f, err := faceLocked(style, size)
	if err != nil {
		return 0.6 * size * float64(len([]rune(text)))
	}
	return fixedToFloat(font.MeasureString(f, text))
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
