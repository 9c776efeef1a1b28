package config

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownPreset = errors.New("unknown preset")

// Preset is a named export resolution matching a social-media aspect ratio.
type Preset struct {
	Key    string
	Name   string
	Width  int
	Height int
	Label  string
}

var presets = []Preset{
	{Key: "tiktok", Name: "TikTok", Width: 1080, Height: 1920, Label: "9:16"},
	{Key: "instagram", Name: "Instagram", Width: 1080, Height: 1080, Label: "1:1"},
	{Key: "portrait", Name: "Portrait", Width: 1080, Height: 1350, Label: "4:5"},
	{Key: "landscape", Name: "Landscape", Width: 1920, Height: 1080, Label: "16:9"},
	{Key: "hd", Name: "HD", Width: 1280, Height: 720, Label: "16:9"},
}

// Presets returns the built-in presets in display order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// DefaultPreset is the 9:16 vertical format.
func DefaultPreset() Preset {
	return presets[0]
}

// LookupPreset finds a preset by key or display name, case-insensitively.
func LookupPreset(key string) (Preset, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, p := range presets {
		if p.Key == key || strings.ToLower(p.Name) == key {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, key)
}

// Aspect returns width / height.
func (p Preset) Aspect() float64 {
	if p.Height == 0 {
		return 0
	}
	return float64(p.Width) / float64(p.Height)
}

// Fit scales the preset down to fit within maxW×maxH keeping its aspect
// ratio. The display size never exceeds the export size.
func (p Preset) Fit(maxW, maxH int) (int, int) {
	if p.Width <= 0 || p.Height <= 0 || maxW <= 0 || maxH <= 0 {
		return 0, 0
	}
	if maxW >= p.Width && maxH >= p.Height {
		return p.Width, p.Height
	}
	var w, h int
	if maxW*p.Height <= maxH*p.Width {
		w, h = maxW, maxW*p.Height/p.Width
	} else {
		w, h = maxH*p.Width/p.Height, maxH
	}
	return max(1, w), max(1, h)
}

func (p Preset) String() string {
	return fmt.Sprintf("%s %dx%d (%s)", p.Name, p.Width, p.Height, p.Label)
}
