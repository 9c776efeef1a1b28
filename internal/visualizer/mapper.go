package visualizer

import (
	"time"

	"github.com/zaytoolit/flightdeck/internal/config"
)

// MapperConfig holds the band-to-property weights. Which band drives which
// property is fixed by Map; the weights only set how strongly.
type MapperConfig struct {
	BassScaleWeight    float64 // mesh scale pulses on bass
	MidScaleWeight     float64 // inner core breathes on mid
	DisplacementWeight float64 // vertex wobble grows with bass
	MidRotationWeight  float64 // group spins faster on mid
	HighSpinWeight     float64 // inner core and debris spin on high
	HighSizeWeight     float64 // debris grows on high
	BloomWeight        float64 // glow follows mid

	ParticleSize float64 // idle debris size in pixels at 1080 px width

	TransientThreshold float64 // bass delta that counts as a hit
	TransientGain      float64 // pixel size added per unit of delta
	Release            float64 // lerp factor back to the base pixel size
}

// DefaultMapperConfig returns the stock art direction.
func DefaultMapperConfig() MapperConfig {
	return MapperConfig{
		BassScaleWeight:    0.5,
		MidScaleWeight:     0.3,
		DisplacementWeight: 2.0,
		MidRotationWeight:  1.5,
		HighSpinWeight:     3.0,
		HighSizeWeight:     1.5,
		BloomWeight:        1.0,
		ParticleSize:       3.0,
		TransientThreshold: 0.1,
		TransientGain:      24,
		Release:            0.2,
	}
}

// Base angular rates in radians per second at RotationSpeed 1.
const (
	groupRateY    = 0.5
	groupRateX    = 0.2
	innerRateY    = -1.0
	innerRateZ    = 0.5
	particleRateY = 0.05
)

// FrameState is what the renderer needs for one frame. Angles only ever
// accumulate.
type FrameState struct {
	Time float64 // seconds since start

	GroupRotX    float64
	GroupRotY    float64
	InnerRotY    float64
	InnerRotZ    float64
	ParticleSpin float64

	MeshScale    float64
	InnerScale   float64
	Displacement float64
	ParticleSize float64
	Bloom        float64
	Pixel        float64
}

// Mapper derives FrameState from band energy.
type Mapper struct {
	cfg MapperConfig
}

// NewMapper creates a mapper.
func NewMapper(cfg MapperConfig) Mapper {
	return Mapper{cfg: cfg}
}

// Idle returns the state before any frame has been mapped.
func (m Mapper) Idle(p config.Params) FrameState {
	return FrameState{
		MeshScale:    1,
		InnerScale:   1,
		Displacement: p.Displacement,
		ParticleSize: m.cfg.ParticleSize,
		Bloom:        p.Bloom,
		Pixel:        p.Bitcrush,
	}
}

// Map computes the next frame from the current energy, the previous frame
// and the elapsed time. It has no other inputs.
func (m Mapper) Map(e BandEnergy, p config.Params, prev FrameState, dt time.Duration) FrameState {
	c := m.cfg
	sec := dt.Seconds()
	if sec < 0 {
		sec = 0
	}

	groupBoost := 1 + e.Mid*c.MidRotationWeight
	spinBoost := 1 + e.High*c.HighSpinWeight

	next := FrameState{
		Time: prev.Time + sec,

		GroupRotY:    prev.GroupRotY + sec*p.RotationSpeed*groupRateY*groupBoost,
		GroupRotX:    prev.GroupRotX + sec*p.RotationSpeed*groupRateX*groupBoost,
		InnerRotY:    prev.InnerRotY + sec*p.RotationSpeed*innerRateY*spinBoost,
		InnerRotZ:    prev.InnerRotZ + sec*p.RotationSpeed*innerRateZ*spinBoost,
		ParticleSpin: prev.ParticleSpin + sec*p.RotationSpeed*particleRateY*spinBoost,

		MeshScale:    1 * (1 + e.Bass*c.BassScaleWeight),
		InnerScale:   1 * (1 + e.Mid*c.MidScaleWeight),
		Displacement: p.Displacement * (1 + e.Bass*c.DisplacementWeight),
		ParticleSize: c.ParticleSize * (1 + e.High*c.HighSizeWeight),
		Bloom:        p.Bloom * (1 + e.Mid*c.BloomWeight),
	}

	// Instant attack, exponential release.
	if e.Delta > c.TransientThreshold {
		next.Pixel = p.Bitcrush + e.Delta*c.TransientGain
	} else {
		next.Pixel = lerp(prev.Pixel, p.Bitcrush, c.Release)
	}
	return next
}
