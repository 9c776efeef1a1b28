// Package config holds the typed editor state: visual parameters, export
// presets and flyer content, plus loading of flyer documents.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrUnknownParam = errors.New("unknown parameter")
	ErrOutOfRange   = errors.New("value out of range")
)

// Params are the user-tunable knobs of the animated background.
type Params struct {
	Sensitivity   float64 `yaml:"sensitivity"`
	Debris        int     `yaml:"debris"`
	Bitcrush      float64 `yaml:"bitcrush"`
	Bloom         float64 `yaml:"bloom"`
	Displacement  float64 `yaml:"displacement"`
	RotationSpeed float64 `yaml:"rotation_speed"`
}

// Range documents the accepted interval of one parameter.
type Range struct {
	Name  string
	Label string
	Min   float64
	Max   float64
	Step  float64
}

// Parameter names accepted by Set and Get.
const (
	ParamSensitivity   = "sensitivity"
	ParamDebris        = "debris"
	ParamBitcrush      = "bitcrush"
	ParamBloom         = "bloom"
	ParamDisplacement  = "displacement"
	ParamRotationSpeed = "rotation_speed"
)

var paramRanges = []Range{
	{Name: ParamSensitivity, Label: "sensitivity", Min: 0, Max: 3, Step: 0.1},
	{Name: ParamDebris, Label: "debris", Min: 0, Max: 1000, Step: 25},
	{Name: ParamBitcrush, Label: "bitcrush", Min: 1, Max: 32, Step: 1},
	{Name: ParamBloom, Label: "bloom", Min: 0, Max: 3, Step: 0.1},
	{Name: ParamDisplacement, Label: "displace", Min: 0, Max: 2, Step: 0.05},
	{Name: ParamRotationSpeed, Label: "rotation", Min: 0, Max: 3, Step: 0.1},
}

// DefaultParams returns the idle look of the background.
func DefaultParams() Params {
	return Params{
		Sensitivity:   1.0,
		Debris:        350,
		Bitcrush:      1,
		Bloom:         0.6,
		Displacement:  0.25,
		RotationSpeed: 0.5,
	}
}

// Ranges returns the parameter ranges in display order.
func Ranges() []Range {
	out := make([]Range, len(paramRanges))
	copy(out, paramRanges)
	return out
}

// LookupRange returns the range for a parameter name.
func LookupRange(name string) (Range, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, r := range paramRanges {
		if r.Name == name {
			return r, nil
		}
	}
	return Range{}, fmt.Errorf("%w: %q", ErrUnknownParam, name)
}

// Get returns a parameter value by name.
func (p Params) Get(name string) (float64, error) {
	r, err := LookupRange(name)
	if err != nil {
		return 0, err
	}
	switch r.Name {
	case ParamSensitivity:
		return p.Sensitivity, nil
	case ParamDebris:
		return float64(p.Debris), nil
	case ParamBitcrush:
		return p.Bitcrush, nil
	case ParamBloom:
		return p.Bloom, nil
	case ParamDisplacement:
		return p.Displacement, nil
	default:
		return p.RotationSpeed, nil
	}
}

// Set validates v against the parameter's range and stores it.
func (p *Params) Set(name string, v float64) error {
	r, err := LookupRange(name)
	if err != nil {
		return err
	}
	if math.IsNaN(v) || v < r.Min || v > r.Max {
		return fmt.Errorf("%w: %s=%g (want %g..%g)", ErrOutOfRange, r.Name, v, r.Min, r.Max)
	}
	switch r.Name {
	case ParamSensitivity:
		p.Sensitivity = v
	case ParamDebris:
		p.Debris = int(math.Round(v))
	case ParamBitcrush:
		p.Bitcrush = v
	case ParamBloom:
		p.Bloom = v
	case ParamDisplacement:
		p.Displacement = v
	case ParamRotationSpeed:
		p.RotationSpeed = v
	}
	return nil
}

// Nudge moves a parameter by steps increments, clamped to its range.
func (p *Params) Nudge(name string, steps int) error {
	r, err := LookupRange(name)
	if err != nil {
		return err
	}
	cur, _ := p.Get(r.Name)
	v := cur + float64(steps)*r.Step
	v = math.Round(v/r.Step) * r.Step
	v = math.Max(r.Min, math.Min(r.Max, v))
	return p.Set(r.Name, v)
}

// Validate checks every field against its range.
func (p Params) Validate() error {
	for _, r := range paramRanges {
		v, _ := p.Get(r.Name)
		if math.IsNaN(v) || v < r.Min || v > r.Max {
			return fmt.Errorf("%w: %s=%g (want %g..%g)", ErrOutOfRange, r.Name, v, r.Min, r.Max)
		}
	}
	return nil
}

// Fraction returns v's position within the parameter range as 0..1.
func (r Range) Fraction(v float64) float64 {
	if r.Max <= r.Min {
		return 0
	}
	f := (v - r.Min) / (r.Max - r.Min)
	return math.Max(0, math.Min(1, f))
}
