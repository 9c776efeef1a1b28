package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaytoolit/flightdeck/internal/testutil"
)

func TestSetFieldUppercasesTextButNotColor(t *testing.T) {
	f := DefaultFlyer()
	require.NoError(t, f.SetField(FieldTitle, "night shift"))
	require.NoError(t, f.SetField(FieldAccent, "#0fa"))

	assert.Equal(t, "NIGHT SHIFT", f.Title)
	assert.Equal(t, "#0fa", f.Accent)
	assert.Equal(t, color.RGBA{R: 0, G: 0xff, B: 0xaa, A: 0xff}, f.AccentColor())

	require.ErrorIs(t, f.SetField(FieldAccent, "purple"), ErrBadColor)
	require.ErrorIs(t, f.SetField("footer", "x"), ErrUnknownField)
}

func TestSectionLimits(t *testing.T) {
	f := DefaultFlyer()
	for len(f.Sections) < MaxSections {
		require.NoError(t, f.AddSection())
	}
	require.ErrorIs(t, f.AddSection(), ErrSectionLimit)

	for len(f.Sections) > MinSections {
		require.NoError(t, f.RemoveSection(0))
	}
	require.ErrorIs(t, f.RemoveSection(0), ErrSectionLimit)
}

func TestRemoveSectionDoesNotAliasClone(t *testing.T) {
	f := DefaultFlyer()
	c := f.Clone()
	require.NoError(t, f.RemoveSection(0))
	assert.Equal(t, "ABLETON LESSONS", c.Sections[0].Title)
	assert.Equal(t, "BEAT LEASES", f.Sections[0].Title)
}

func TestParseFeatures(t *testing.T) {
	assert.Equal(t, []string{"Instant DL", "WAV + Stems"}, ParseFeatures(" Instant DL, ,WAV + Stems ,"))
	assert.Nil(t, ParseFeatures(" , "))
}

func TestParseDocumentKeepsDefaultsForMissingFields(t *testing.T) {
	doc, err := ParseDocument([]byte("preset: portrait\nparams:\n  bloom: 1.5\nflyer:\n  title: LATE SET\n"))
	require.NoError(t, err)

	assert.Equal(t, "portrait", doc.Preset)
	assert.Equal(t, 1.5, doc.Params.Bloom)
	assert.Equal(t, DefaultParams().Sensitivity, doc.Params.Sensitivity)
	assert.Equal(t, "LATE SET", doc.Flyer.Title)
	assert.Len(t, doc.Flyer.Sections, 3)
}

func TestParseDocumentValidates(t *testing.T) {
	_, err := ParseDocument([]byte("params:\n  sensitivity: 9\n"))
	require.ErrorIs(t, err, ErrOutOfRange)

	_, err = ParseDocument([]byte("preset: vhs\n"))
	require.ErrorIs(t, err, ErrUnknownPreset)

	_, err = ParseDocument([]byte("flyer:\n  sections: []\n"))
	require.ErrorIs(t, err, ErrSectionLimit)
}

func TestSaveLoadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flyer.yaml")
	doc := DefaultDocument()
	doc.Flyer.Contact = "@SOMEONE"
	require.NoError(t, SaveDocument(path, doc))

	got, err := LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	path := filepath.Join(t.TempDir(), "flyer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flyer:\n  title: ONE\n"), 0o644))

	w, err := NewWatcher(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("flyer:\n  title: TWO\n"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case r := <-w.Updates():
			if r.Err == nil && r.Doc.Flyer.Title == "TWO" {
				require.NoError(t, w.Close())
				return
			}
		case <-deadline:
			w.Close()
			t.Fatal("timed out waiting for reload")
		}
	}
}
