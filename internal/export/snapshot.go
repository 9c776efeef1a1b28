package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	xdraw "golang.org/x/image/draw"
)

// ComposeOpaque layers scene and overlay over opaque black at w×h.
func ComposeOpaque(scene, overlay image.Image, w, h int) *image.RGBA {
	w, h = max(1, w), max(1, h)
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(out, out.Bounds(), image.Black, image.Point{}, xdraw.Src)
	for _, layer := range []image.Image{scene, overlay} {
		if layer != nil {
			place(out, layer, xdraw.Over)
		}
	}
	return out
}

// Snapshot writes a PNG of the composited frame to dir and returns its
// path. The file is named "<AppName>-<epoch-millis>.png".
func Snapshot(scene, overlay image.Image, w, h int, dir string, now time.Time) (string, error) {
	img := ComposeOpaque(scene, overlay, w, h)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, Filename(AppName, "png", now))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	return path, nil
}
