package engine

import (
	"context"
	"errors"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaytoolit/flightdeck/internal/config"
	"github.com/zaytoolit/flightdeck/internal/export"
	"github.com/zaytoolit/flightdeck/internal/logger"
	"github.com/zaytoolit/flightdeck/internal/player"
	"github.com/zaytoolit/flightdeck/internal/testutil"
)

const frameStep = time.Second / export.FPS

var testPreset = config.Preset{Key: "test", Name: "Test", Width: 64, Height: 96}

type stubEncoder struct {
	mu      sync.Mutex
	cfg     export.EncoderConfig
	onChunk func([]byte)
	frames  int
	failAt  int
}

func (s *stubEncoder) Start(cfg export.EncoderConfig, onChunk func([]byte)) error {
	s.cfg = cfg
	s.onChunk = onChunk
	return nil
}

func (s *stubEncoder) WriteFrame(frame *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && s.frames >= s.failAt {
		return errors.New("encoder died")
	}
	if frame.Bounds().Dx() != s.cfg.Width || frame.Bounds().Dy() != s.cfg.Height {
		return export.ErrFrameSize
	}
	s.frames++
	s.onChunk([]byte{byte(s.frames)})
	return nil
}

func (s *stubEncoder) Close() error     { return nil }
func (s *stubEncoder) MimeType() string { return "video/webm;codecs=vp9" }
func (s *stubEncoder) Ext() string      { return "webm" }

func encoderOf(enc export.Encoder) func(context.Context) (export.Encoder, error) {
	return func(context.Context) (export.Encoder, error) { return enc, nil }
}

// bassCycle repeats 20 windows of a 110 Hz tone with a rising envelope.
type bassCycle struct {
	k int
}

func (b *bassCycle) Samples(n int) []int16 {
	amp := 2000 + 1500*float64(b.k%20)
	b.k++
	out := make([]int16, n)
	for i := 0; i < n/2; i++ {
		v := int16(amp * math.Sin(2*math.Pi*110*float64(i)/player.SampleRate))
		out[2*i], out[2*i+1] = v, v
	}
	return out
}

func newTestEngine(t *testing.T, src SnapshotSource) (*Engine, *State) {
	t.Helper()
	state := &State{
		Params:         config.DefaultParams(),
		Flyer:          config.DefaultFlyer(),
		Preset:         testPreset,
		Display:        image.Pt(40, 30),
		PreviewVisible: true,
	}
	state.Params.Sensitivity = 1.0
	return New(state, src, logger.NewTestLogger()), state
}

func fixedNow() time.Time { return time.UnixMilli(42) }

func TestExportTwoSeconds(t *testing.T) {
	e, state := newTestEngine(t, &bassCycle{})
	dir := t.TempDir()

	h, err := e.StartExport(context.Background(), ExportOptions{
		OutDir:     dir,
		NewEncoder: encoderOf(&stubEncoder{}),
		Now:        fixedNow,
	})
	require.NoError(t, err)
	assert.False(t, state.PreviewVisible)
	assert.True(t, e.Exporting())

	for k := range 2 * export.FPS {
		frame := e.Frame(time.Duration(k) * frameStep)
		require.NotNil(t, frame)
		assert.Equal(t, image.Pt(64, 96), frame.Bounds().Size())
	}
	assert.Greater(t, e.Energy().Bass, e.Energy().High)

	res, err := h.Stop()
	require.NoError(t, err)
	assert.InDelta(t, 120, res.Frames, 1)
	assert.Positive(t, res.Bytes)
	assert.Equal(t, "video/webm;codecs=vp9", res.MimeType)
	assert.Equal(t, filepath.Join(dir, "FlightDeck-42.webm"), res.Path)

	info, err := os.Stat(res.Path)
	require.NoError(t, err)
	assert.Equal(t, res.Bytes, info.Size())

	assert.True(t, state.PreviewVisible)
	assert.False(t, e.Exporting())
	assert.Equal(t, image.Pt(40, 30), e.Frame(2*time.Second).Bounds().Size())

	_, err = h.Stop()
	require.NoError(t, err)
}

func TestExportSetupFailureRestoresView(t *testing.T) {
	e, state := newTestEngine(t, nil)
	dir := t.TempDir()

	_, err := e.StartExport(context.Background(), ExportOptions{
		OutDir: dir,
		NewEncoder: func(context.Context) (export.Encoder, error) {
			return nil, export.ErrEncoderUnavailable
		},
	})
	require.ErrorIs(t, err, export.ErrEncoderUnavailable)
	assert.False(t, e.Exporting())
	assert.True(t, state.PreviewVisible)
	assert.Equal(t, image.Pt(40, 30), e.Frame(0).Bounds().Size())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExportRejectsSecondRecording(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	h, err := e.StartExport(context.Background(), ExportOptions{
		OutDir:     t.TempDir(),
		NewEncoder: encoderOf(&stubEncoder{}),
	})
	require.NoError(t, err)

	_, err = e.StartExport(context.Background(), ExportOptions{NewEncoder: encoderOf(&stubEncoder{})})
	require.ErrorIs(t, err, ErrExporting)
	require.ErrorIs(t, e.SetPreset("hd"), ErrExporting)

	e.Frame(0)
	_, err = h.Stop()
	require.NoError(t, err)
}

func TestCaptureFailureEndsRecording(t *testing.T) {
	e, state := newTestEngine(t, &bassCycle{})
	h, err := e.StartExport(context.Background(), ExportOptions{
		OutDir:     t.TempDir(),
		NewEncoder: encoderOf(&stubEncoder{failAt: 3}),
	})
	require.NoError(t, err)

	for k := range 10 {
		e.Frame(time.Duration(k) * frameStep)
	}
	assert.False(t, e.Exporting())
	assert.False(t, h.Active())
	assert.True(t, state.PreviewVisible)

	_, err = h.Stop()
	require.Error(t, err)
}

func TestInactiveEngineSkipsFrames(t *testing.T) {
	e, _ := newTestEngine(t, &bassCycle{})
	require.NotNil(t, e.Frame(0))

	e.SetActive(false)
	assert.Nil(t, e.Frame(frameStep))
	before := e.FrameState()

	e.SetActive(true)
	require.NotNil(t, e.Frame(2*frameStep))
	assert.Greater(t, e.FrameState().Time, before.Time)
}

func TestSilenceKeepsIdleEnergy(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	for k := range 10 {
		e.Frame(time.Duration(k) * frameStep)
	}
	assert.Zero(t, e.Energy().Bass)
	assert.Zero(t, e.Energy().Mid)
	assert.Zero(t, e.Energy().High)
}

func TestSnapshotAtPresetSize(t *testing.T) {
	e, _ := newTestEngine(t, &bassCycle{})
	e.Frame(0)

	path, err := e.Snapshot(t.TempDir(), fixedNow())
	require.NoError(t, err)
	assert.Equal(t, "FlightDeck-42.png", filepath.Base(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(64, 96), img.Bounds().Size())

	assert.Equal(t, image.Pt(40, 30), e.Frame(frameStep).Bounds().Size())
}

func TestSetColorAndPreset(t *testing.T) {
	e, state := newTestEngine(t, nil)
	require.NoError(t, e.SetColor("#22c55e"))
	assert.Equal(t, "#22c55e", state.Flyer.Accent)
	require.ErrorIs(t, e.SetColor("green"), config.ErrBadColor)

	require.NoError(t, e.SetPreset("hd"))
	assert.Equal(t, 1280, state.Preset.Width)
	require.Error(t, e.SetPreset("nope"))
}

func TestSetDisplayDuringExport(t *testing.T) {
	e, state := newTestEngine(t, nil)
	h, err := e.StartExport(context.Background(), ExportOptions{
		OutDir:     t.TempDir(),
		NewEncoder: encoderOf(&stubEncoder{}),
	})
	require.NoError(t, err)

	e.SetDisplay(20, 10)
	assert.Equal(t, image.Pt(64, 96), e.Frame(0).Bounds().Size())
	assert.Equal(t, image.Pt(20, 10), state.Display)

	_, err = h.Stop()
	require.NoError(t, err)
	assert.Equal(t, image.Pt(20, 10), e.Frame(frameStep).Bounds().Size())
}

func writeTone(t *testing.T, d time.Duration) string {
	t.Helper()
	n := int(d.Seconds() * player.SampleRate)
	data := make([]int, 2*n)
	for i := range n {
		v := int(8000 * math.Sin(2*math.Pi*110*float64(i)/player.SampleRate))
		data[2*i], data[2*i+1] = v, v
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	enc := wav.NewEncoder(f, player.SampleRate, 16, player.Channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: player.Channels, SampleRate: player.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	return path
}

func TestRenderFile(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	path := writeTone(t, 500*time.Millisecond)
	state, err := NewState(config.DefaultDocument(), image.Point{})
	require.NoError(t, err)
	state.Preset = testPreset

	enc := &stubEncoder{}
	var ticks int
	res, err := RenderFile(context.Background(), path, RenderOptions{
		State:      state,
		OutDir:     t.TempDir(),
		NewEncoder: encoderOf(enc),
		Now:        fixedNow,
		Logger:     logger.NewTestLogger(),
		Progress:   func(done, total time.Duration) { ticks++ },
	})
	require.NoError(t, err)
	assert.InDelta(t, 30, res.Frames, 1)
	assert.Equal(t, 1, ticks)
	assert.Equal(t, path, enc.cfg.Audio.Path)
	assert.Equal(t, 64, enc.cfg.Width)
	assert.True(t, state.PreviewVisible, "caller state is not mutated")
}

func TestRenderFileLimit(t *testing.T) {
	path := writeTone(t, time.Second)
	state, err := NewState(config.DefaultDocument(), image.Point{})
	require.NoError(t, err)
	state.Preset = testPreset

	res, err := RenderFile(context.Background(), path, RenderOptions{
		State:      state,
		OutDir:     t.TempDir(),
		Limit:      250 * time.Millisecond,
		NewEncoder: encoderOf(&stubEncoder{}),
	})
	require.NoError(t, err)
	assert.InDelta(t, 15, res.Frames, 1)
}

func TestRenderFileCancelled(t *testing.T) {
	path := writeTone(t, 200*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RenderFile(ctx, path, RenderOptions{
		OutDir:     t.TempDir(),
		NewEncoder: encoderOf(&stubEncoder{}),
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRenderFileCancelledMidwayLeavesNoFile(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	path := writeTone(t, 3*time.Second)
	state, err := NewState(config.DefaultDocument(), image.Point{})
	require.NoError(t, err)
	state.Preset = testPreset

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	enc := &stubEncoder{}
	_, err = RenderFile(ctx, path, RenderOptions{
		State:      state,
		OutDir:     dir,
		NewEncoder: encoderOf(enc),
		Now:        fixedNow,
		Progress: func(done, total time.Duration) {
			if done >= time.Second {
				cancel()
			}
		},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Greater(t, enc.frames, 60, "frames were encoded before the cancel")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPreviewComposesOverlay(t *testing.T) {
	e, state := newTestEngine(t, nil)
	e.Frame(0)

	p := e.Preview()
	require.NotNil(t, p)
	assert.Equal(t, image.Pt(40, 30), p.Bounds().Size())

	e.SetDisplay(30, 20)
	e.Frame(frameStep)
	assert.Equal(t, image.Pt(30, 20), e.Preview().Bounds().Size())

	h, err := e.StartExport(context.Background(), ExportOptions{
		OutDir:     t.TempDir(),
		NewEncoder: encoderOf(&stubEncoder{}),
	})
	require.NoError(t, err)
	assert.False(t, state.PreviewVisible)
	assert.Nil(t, e.Preview())
	_, _ = h.Stop()
}

func TestPreparedExportStopsOffLoop(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	e, state := newTestEngine(t, &bassCycle{})
	p, err := PrepareExport(context.Background(), state.Flyer, state.Preset, ExportOptions{
		OutDir:     t.TempDir(),
		NewEncoder: encoderOf(&stubEncoder{}),
	})
	require.NoError(t, err)

	h, err := e.BeginExport(p)
	require.NoError(t, err)
	for k := range 6 {
		e.Frame(time.Duration(k) * frameStep)
	}

	h.Cancel()
	assert.False(t, h.Active())
	assert.True(t, state.PreviewVisible)

	done := make(chan export.Result)
	go func() {
		res, err := h.Stop()
		assert.NoError(t, err)
		done <- res
	}()
	res := <-done
	assert.Equal(t, 6, res.Frames)
}

func TestReloadAppliesDocument(t *testing.T) {
	e, state := newTestEngine(t, nil)
	doc := config.DefaultDocument()
	doc.Preset = "instagram"
	doc.Params.Debris = 100
	doc.Flyer.Title = "NEW"

	require.NoError(t, e.Reload(doc))
	assert.Equal(t, 1080, state.Preset.Height)
	assert.Equal(t, 100, state.Params.Debris)
	assert.Equal(t, "NEW", state.Flyer.Title)

	bad := config.DefaultDocument()
	bad.Flyer.Sections = nil
	require.ErrorIs(t, e.Reload(bad), config.ErrSectionLimit)
	assert.Equal(t, "NEW", state.Flyer.Title)
}
