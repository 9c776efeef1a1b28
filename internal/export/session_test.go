package export

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaytoolit/flightdeck/internal/logger"
	"github.com/zaytoolit/flightdeck/internal/testutil"
)

const frameStep = time.Second / FPS

func startSession(t *testing.T, enc Encoder) (*Session, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Start(Options{
		Width:   4,
		Height:  2,
		OutDir:  dir,
		Encoder: enc,
		Now:     func() time.Time { return time.UnixMilli(42) },
		Logger:  logger.NewTestLogger(),
	})
	require.NoError(t, err)
	return s, dir
}

func TestSessionTwoSecondsAtSixtyFPS(t *testing.T) {
	enc := &fakeEncoder{}
	s, dir := startSession(t, enc)
	frame := solid(4, 2, blue)

	for k := range 2 * FPS {
		require.NoError(t, s.Capture(time.Duration(k)*frameStep, frame))
	}
	require.True(t, s.Active())

	res, err := s.Stop()
	require.NoError(t, err)
	assert.InDelta(t, 120, res.Frames, 1)
	assert.Equal(t, 2*time.Second, res.Duration)
	assert.Equal(t, "video/webm;codecs=vp9", res.MimeType)
	assert.Equal(t, filepath.Join(dir, "FlightDeck-42.webm"), res.Path)
	assert.Positive(t, res.Bytes)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, res.Bytes, int64(len(data)))
	assert.Equal(t, "HDR", string(data[:3]))
	assert.False(t, s.Active())
}

func TestSessionCatchUpAndSkip(t *testing.T) {
	enc := &fakeEncoder{}
	s, _ := startSession(t, enc)
	frame := solid(4, 2, blue)

	require.NoError(t, s.Capture(0, frame))
	assert.Equal(t, 1, s.Frames())

	// The loop stalled for 100 ms: six more frames are due.
	require.NoError(t, s.Capture(100*time.Millisecond, frame))
	assert.Equal(t, 7, s.Frames())

	// Called again before the next frame is due: nothing is written.
	require.NoError(t, s.Capture(105*time.Millisecond, frame))
	assert.Equal(t, 7, s.Frames())
	assert.Equal(t, 7, enc.frames)
}

func TestSessionStopIsIdempotent(t *testing.T) {
	enc := &fakeEncoder{}
	s, _ := startSession(t, enc)
	require.NoError(t, s.Capture(0, solid(4, 2, blue)))

	first, err := s.Stop()
	require.NoError(t, err)
	second, err := s.Stop()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, enc.closed)

	assert.ErrorIs(t, s.Capture(time.Second, solid(4, 2, blue)), ErrNotActive)
}

func TestSessionAbortWritesNothing(t *testing.T) {
	enc := &fakeEncoder{}
	s, dir := startSession(t, enc)
	for i := range 10 {
		require.NoError(t, s.Capture(time.Duration(i)*frameStep, solid(4, 2, blue)))
	}

	require.NoError(t, s.Abort())
	require.NoError(t, s.Abort())
	assert.Equal(t, 1, enc.closed)
	assert.False(t, s.Active())

	_, err := s.Stop()
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, s.Capture(time.Second, solid(4, 2, blue)), ErrNotActive)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSessionStartFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Start(Options{
		Width: 4, Height: 2, OutDir: dir,
		Encoder: &fakeEncoder{startErr: ErrEncoderUnavailable},
	})
	require.ErrorIs(t, err, ErrEncoderUnavailable)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = Start(Options{Width: 4, Height: 2, OutDir: dir})
	assert.ErrorIs(t, err, ErrEncoderUnavailable, "no encoder at all")

	_, err = Start(Options{Width: 0, Height: 2, OutDir: dir, Encoder: &fakeEncoder{}})
	assert.Error(t, err)
}

func TestSessionWriteFailureEndsRecording(t *testing.T) {
	enc := &fakeEncoder{failAt: 3, writeErr: errBrokenPipe}
	s, dir := startSession(t, enc)

	err := s.Capture(time.Second, solid(4, 2, blue))
	require.ErrorIs(t, err, errBrokenPipe)
	assert.False(t, s.Active())
	assert.ErrorIs(t, s.Capture(2*time.Second, solid(4, 2, blue)), ErrNotActive)

	_, err = s.Stop()
	assert.ErrorIs(t, err, errBrokenPipe)
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestSessionWrongFrameSize(t *testing.T) {
	s, _ := startSession(t, &fakeEncoder{})
	err := s.Capture(0, solid(5, 5, blue))
	assert.ErrorIs(t, err, ErrFrameSize)
}

// useCat swaps ffmpeg for cat, which echoes raw frames back as "container"
// bytes.
func useCat(t *testing.T) {
	t.Helper()
	cat, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not available")
	}
	origLook, origCmd := ffmpegLookPath, encoderCommand
	ffmpegLookPath = func(string) (string, error) { return cat, nil }
	encoderCommand = func(string, ...string) *exec.Cmd { return exec.Command(cat) }
	t.Cleanup(func() {
		ffmpegLookPath, encoderCommand = origLook, origCmd
	})
}

func TestFFmpegEncoderPipesFrames(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	useCat(t)

	s, _ := startSession(t, NewFFmpegEncoder(Codecs[0]))
	frame := solid(4, 2, blue)
	for k := range 3 {
		require.NoError(t, s.Capture(time.Duration(k)*frameStep, frame))
	}

	res, err := s.Stop()
	require.NoError(t, err)
	assert.Equal(t, 3, res.Frames)
	assert.Equal(t, int64(3*4*2*4), res.Bytes)
	assert.Equal(t, "video/webm;codecs=vp9", res.MimeType)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, frame.Pix, data[:len(frame.Pix)])
}

func TestFFmpegEncoderRejectsWrongSize(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	useCat(t)

	enc := NewFFmpegEncoder(Codecs[2])
	require.NoError(t, enc.Start(EncoderConfig{Width: 4, Height: 2, FPS: FPS}, func([]byte) {}))
	assert.ErrorIs(t, enc.WriteFrame(solid(2, 2, blue)), ErrFrameSize)
	require.NoError(t, enc.Close())
	require.NoError(t, enc.Close())
	assert.ErrorIs(t, enc.WriteFrame(solid(4, 2, blue)), ErrNotActive)
}

func TestFFmpegEncoderMissingBinary(t *testing.T) {
	orig := ffmpegLookPath
	ffmpegLookPath = func(string) (string, error) { return "", errors.New("not found") }
	t.Cleanup(func() { ffmpegLookPath = orig })

	err := NewFFmpegEncoder(Codecs[0]).Start(EncoderConfig{Width: 1, Height: 1}, func([]byte) {})
	assert.ErrorIs(t, err, ErrEncoderUnavailable)

	_, err = DetectEncoder(context.Background())
	assert.ErrorIs(t, err, ErrEncoderUnavailable)
}
