package config

import (
	"errors"
	"fmt"
	"image/color"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	MinSections = 1
	MaxSections = 6
)

var (
	ErrSectionLimit = errors.New("section limit reached")
	ErrBadColor     = errors.New("invalid accent color")
	ErrUnknownField = errors.New("unknown field")
)

// Section is one service card on the flyer.
type Section struct {
	Title    string   `yaml:"title"`
	Price    string   `yaml:"price"`
	Features []string `yaml:"features"`
}

// Flyer is the branding text shown over the background.
type Flyer struct {
	Title    string    `yaml:"title"`
	Subtitle string    `yaml:"subtitle"`
	Contact  string    `yaml:"contact"`
	Accent   string    `yaml:"accent"`
	Sections []Section `yaml:"sections"`
}

// DefaultFlyer returns the starter content.
func DefaultFlyer() Flyer {
	return Flyer{
		Title:    "ZAYTOOLIT",
		Subtitle: "SERVICES & PRICING",
		Contact:  "@zaytoolit",
		Accent:   "#a855f7",
		Sections: []Section{
			{Title: "ABLETON LESSONS", Price: "$40 / hr", Features: []string{"Workflow", "Sound Design"}},
			{Title: "BEAT LEASES", Price: "$20 - $60", Features: []string{"Instant DL", "WAV + Stems"}},
			{Title: "MIXING", Price: "$80 / track", Features: []string{"Pro Sound", "Quick Turnaround"}},
		},
	}
}

// Flyer field names accepted by SetField.
const (
	FieldTitle    = "title"
	FieldSubtitle = "subtitle"
	FieldContact  = "contact"
	FieldAccent   = "accent"
)

// SetField stores user input. Text fields are upper-cased; the accent must
// be a hex color.
func (f *Flyer) SetField(field, value string) error {
	switch field {
	case FieldTitle:
		f.Title = strings.ToUpper(value)
	case FieldSubtitle:
		f.Subtitle = strings.ToUpper(value)
	case FieldContact:
		f.Contact = strings.ToUpper(value)
	case FieldAccent:
		if _, err := ParseColor(value); err != nil {
			return err
		}
		f.Accent = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// AddSection appends a placeholder card.
func (f *Flyer) AddSection() error {
	if len(f.Sections) >= MaxSections {
		return fmt.Errorf("%w: at most %d sections", ErrSectionLimit, MaxSections)
	}
	f.Sections = append(f.Sections, Section{Title: "NEW", Price: "$0", Features: []string{"Info"}})
	return nil
}

// RemoveSection deletes the card at i, keeping at least one.
func (f *Flyer) RemoveSection(i int) error {
	if len(f.Sections) <= MinSections {
		return fmt.Errorf("%w: at least %d section", ErrSectionLimit, MinSections)
	}
	if i < 0 || i >= len(f.Sections) {
		return fmt.Errorf("section %d out of range", i)
	}
	f.Sections = append(f.Sections[:i:i], f.Sections[i+1:]...)
	return nil
}

// ParseFeatures splits a comma-separated feature list.
func ParseFeatures(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// AccentColor returns the parsed accent, falling back to the default purple.
func (f Flyer) AccentColor() color.RGBA {
	c, err := ParseColor(f.Accent)
	if err != nil {
		c, _ = ParseColor(DefaultFlyer().Accent)
	}
	return c
}

// Clone returns a deep copy.
func (f Flyer) Clone() Flyer {
	out := f
	out.Sections = make([]Section, len(f.Sections))
	for i, s := range f.Sections {
		s.Features = append([]string(nil), s.Features...)
		out.Sections[i] = s
	}
	return out
}

// Validate checks the section count and accent color.
func (f Flyer) Validate() error {
	if n := len(f.Sections); n < MinSections || n > MaxSections {
		return fmt.Errorf("%w: have %d, want %d..%d", ErrSectionLimit, n, MinSections, MaxSections)
	}
	_, err := ParseColor(f.Accent)
	return err
}

// ParseColor parses #rgb or #rrggbb.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if len(s) == 4 && s[0] == '#' {
		s = "#" + strings.Repeat(s[1:2], 2) + strings.Repeat(s[2:3], 2) + strings.Repeat(s[3:4], 2)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
