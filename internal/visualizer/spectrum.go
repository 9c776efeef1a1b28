// Package visualizer turns live audio into the numbers that drive the
// animated background: a byte frequency snapshot, smoothed band energies
// and the per-frame visual state derived from them.
package visualizer

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	defaultFFTSize   = 512
	defaultTimeDecay = 0.8
	defaultMinDB     = -100.0
	defaultMaxDB     = -30.0
)

// Snapshot is one frame of frequency magnitudes in 0..255, lowest bin
// first. It is replaced wholesale every frame and never mutated by readers.
type Snapshot []byte

// Spectrum converts interleaved PCM into byte snapshots the way a browser
// analyser node does: mono mix, window, FFT, time smoothing, dB scaling.
type Spectrum struct {
	fftSize  int
	channels int
	decay    float64
	minDB    float64
	maxDB    float64

	win      []float64
	buf      []float64
	smoothed []float64
}

// NewSpectrum creates a spectrum with the default 512-point window, which
// yields 256 bins.
func NewSpectrum(channels int) *Spectrum {
	if channels < 1 {
		channels = 1
	}
	return &Spectrum{
		fftSize:  defaultFFTSize,
		channels: channels,
		decay:    defaultTimeDecay,
		minDB:    defaultMinDB,
		maxDB:    defaultMaxDB,
		win:      window.Hann(defaultFFTSize),
		buf:      make([]float64, defaultFFTSize),
		smoothed: make([]float64, defaultFFTSize/2),
	}
}

// Bins returns the snapshot length.
func (s *Spectrum) Bins() int { return s.fftSize / 2 }

// WindowSamples returns how many interleaved int16 values one snapshot reads.
func (s *Spectrum) WindowSamples() int { return s.fftSize * s.channels }

// Snapshot analyses the most recent window of samples. Short input is
// zero-padded at the front.
func (s *Spectrum) Snapshot(samples []int16) Snapshot {
	frames := len(samples) / s.channels
	if frames > s.fftSize {
		samples = samples[(frames-s.fftSize)*s.channels:]
		frames = s.fftSize
	}
	pad := s.fftSize - frames

	for i := range s.buf {
		if i < pad {
			s.buf[i] = 0
			continue
		}
		off := (i - pad) * s.channels
		var sum float64
		for ch := 0; ch < s.channels; ch++ {
			sum += float64(samples[off+ch])
		}
		s.buf[i] = sum / float64(s.channels) / 32768.0 * s.win[i]
	}

	coeffs := fft.FFTReal(s.buf)

	out := make(Snapshot, len(s.smoothed))
	scale := 255.0 / (s.maxDB - s.minDB)
	for k := range s.smoothed {
		mag := cmplx.Abs(coeffs[k]) / float64(s.fftSize)
		s.smoothed[k] = s.decay*s.smoothed[k] + (1-s.decay)*mag

		v := s.smoothed[k]
		if v <= 0 {
			continue
		}
		db := 20 * math.Log10(v)
		b := (db - s.minDB) * scale
		switch {
		case b <= 0:
			out[k] = 0
		case b >= 255:
			out[k] = 255
		default:
			out[k] = byte(b)
		}
	}
	return out
}

// Reset clears the time smoothing, e.g. when a new audio source starts.
func (s *Spectrum) Reset() {
	for i := range s.smoothed {
		s.smoothed[i] = 0
	}
}
