package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParamsAreValid(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
}

func TestParamsSetRejectsUnknownAndOutOfRange(t *testing.T) {
	p := DefaultParams()

	err := p.Set("warp", 1)
	require.ErrorIs(t, err, ErrUnknownParam)

	err = p.Set(ParamSensitivity, 3.5)
	require.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, 1.0, p.Sensitivity, "rejected value must not be stored")

	require.NoError(t, p.Set("Sensitivity", 2.5))
	assert.Equal(t, 2.5, p.Sensitivity)
}

func TestParamsSetRoundsDebris(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Set(ParamDebris, 100.6))
	assert.Equal(t, 101, p.Debris)
}

func TestParamsNudgeClamps(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Nudge(ParamBloom, 100))
	assert.Equal(t, 3.0, p.Bloom)

	require.NoError(t, p.Nudge(ParamBitcrush, -5))
	assert.Equal(t, 1.0, p.Bitcrush)

	require.NoError(t, p.Nudge(ParamSensitivity, 2))
	assert.InDelta(t, 1.2, p.Sensitivity, 1e-9)
}

func TestParamsValidate(t *testing.T) {
	p := DefaultParams()
	p.Debris = -1
	require.ErrorIs(t, p.Validate(), ErrOutOfRange)
}

func TestRangeFraction(t *testing.T) {
	r, err := LookupRange(ParamSensitivity)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Fraction(-1))
	assert.InDelta(t, 0.5, r.Fraction(1.5), 1e-9)
	assert.Equal(t, 1.0, r.Fraction(9))
}

func TestPresetFitKeepsAspectAndNeverUpscales(t *testing.T) {
	p, err := LookupPreset("tiktok")
	require.NoError(t, err)

	w, h := p.Fit(200, 200)
	assert.Equal(t, 112, w)
	assert.Equal(t, 200, h)

	w, h = p.Fit(5000, 5000)
	assert.Equal(t, 1080, w)
	assert.Equal(t, 1920, h)
}

func TestLookupPresetByName(t *testing.T) {
	p, err := LookupPreset("Instagram")
	require.NoError(t, err)
	assert.Equal(t, 1080, p.Width)
	assert.Equal(t, 1080, p.Height)

	_, err = LookupPreset("vhs")
	require.ErrorIs(t, err, ErrUnknownPreset)
}
