package export

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zaytoolit/flightdeck/internal/logger"
)

// AppName prefixes every exported file name.
const AppName = "FlightDeck"

var (
	// ErrEmptyRecording means the encoder produced no bytes.
	ErrEmptyRecording = errors.New("recording produced no data")
	// ErrAborted is what Stop reports after Abort.
	ErrAborted = errors.New("recording aborted")
)

// Filename returns "<app>-<epoch-millis>.<ext>".
func Filename(app, ext string, t time.Time) string {
	return fmt.Sprintf("%s-%d.%s", app, t.UnixMilli(), ext)
}

// Options configures a recording.
type Options struct {
	Width, Height int
	OutDir        string
	Encoder       Encoder
	Audio         *AudioTrack
	FPS           int              // 0 means FPS
	Bitrate       int              // 0 means Bitrate
	Now           func() time.Time // file name clock; nil means time.Now
	Logger        *slog.Logger
}

// Result describes a finished recording.
type Result struct {
	Path     string
	Bytes    int64
	Frames   int
	Duration time.Duration
	MimeType string
}

// Session records composited frames on a fixed clock. Frames are pushed
// by Capture from the render loop; encoded chunks arrive on the encoder's
// reader goroutine and are collected until Stop.
type Session struct {
	opts Options
	enc  Encoder
	log  *slog.Logger

	mu     sync.Mutex
	chunks [][]byte
	size   int64

	active  bool
	frames  int
	failure error

	stopOnce sync.Once
	result   Result
	stopErr  error
}

// Start begins a recording. On error nothing is left running and no file
// is written.
func Start(opts Options) (*Session, error) {
	if opts.Encoder == nil {
		return nil, ErrEncoderUnavailable
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid export size %dx%d", opts.Width, opts.Height)
	}
	if opts.FPS <= 0 {
		opts.FPS = FPS
	}
	if opts.Bitrate <= 0 {
		opts.Bitrate = Bitrate
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.OutDir == "" {
		opts.OutDir = "."
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	s := &Session{opts: opts, enc: opts.Encoder, log: opts.Logger}
	cfg := EncoderConfig{
		Width:   opts.Width,
		Height:  opts.Height,
		FPS:     opts.FPS,
		Bitrate: opts.Bitrate,
		Audio:   opts.Audio,
	}
	if err := s.enc.Start(cfg, s.appendChunk); err != nil {
		return nil, fmt.Errorf("starting encoder: %w", err)
	}
	s.active = true

	s.log.Info("export started",
		"width", opts.Width, "height", opts.Height,
		"fps", opts.FPS, "mime", s.enc.MimeType())
	return s, nil
}

func (s *Session) appendChunk(b []byte) {
	if len(b) == 0 {
		return
	}
	s.mu.Lock()
	s.chunks = append(s.chunks, b)
	s.size += int64(len(b))
	s.mu.Unlock()
}

// Active reports whether the session still accepts frames.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// MimeType returns the container/codec being written.
func (s *Session) MimeType() string { return s.enc.MimeType() }

// Frames returns the number of frames written so far.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// due returns how many frames the fixed clock expects after elapsed. Frame
// k is due once elapsed reaches (k - 1/2) frame intervals.
func (s *Session) due(elapsed time.Duration) int {
	if elapsed < 0 {
		return 1
	}
	fps := time.Duration(s.opts.FPS)
	return int((elapsed*fps+time.Second/2)/time.Second) + 1
}

// Capture writes frame as many times as the clock requires at elapsed:
// repeated when the caller fell behind, not at all when already caught
// up. A write failure ends the session; Stop then reports it.
func (s *Session) Capture(elapsed time.Duration, frame *image.RGBA) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrNotActive
	}
	n := s.due(elapsed) - s.frames
	s.mu.Unlock()

	for range n {
		if err := s.enc.WriteFrame(frame); err != nil {
			s.mu.Lock()
			s.active = false
			s.failure = err
			s.mu.Unlock()
			return err
		}
		s.mu.Lock()
		s.frames++
		s.mu.Unlock()
	}
	return nil
}

// Stop finalizes the recording and writes the file. Later calls return the
// same result.
func (s *Session) Stop() (Result, error) {
	s.stopOnce.Do(func() {
		s.result, s.stopErr = s.finish()
	})
	return s.result, s.stopErr
}

// Abort ends the recording and discards everything encoded so far. No file
// is written and a later Stop returns ErrAborted.
func (s *Session) Abort() error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.active = false
		frames := s.frames
		s.mu.Unlock()

		err = s.enc.Close()

		s.mu.Lock()
		s.chunks, s.size = nil, 0
		s.mu.Unlock()

		s.result, s.stopErr = Result{}, ErrAborted
		s.log.Info("export aborted", "frames", frames)
	})
	return err
}

func (s *Session) finish() (Result, error) {
	s.mu.Lock()
	s.active = false
	failure := s.failure
	s.mu.Unlock()

	closeErr := s.enc.Close()
	if failure != nil {
		return Result{}, failure
	}
	if closeErr != nil {
		return Result{}, closeErr
	}

	s.mu.Lock()
	chunks, size, frames := s.chunks, s.size, s.frames
	s.chunks = nil
	s.mu.Unlock()

	if size == 0 {
		return Result{}, ErrEmptyRecording
	}

	data := make([]byte, 0, size)
	for _, c := range chunks {
		data = append(data, c...)
	}

	path := filepath.Join(s.opts.OutDir, Filename(AppName, s.enc.Ext(), s.opts.Now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Result{}, fmt.Errorf("writing recording: %w", err)
	}

	res := Result{
		Path:     path,
		Bytes:    size,
		Frames:   frames,
		Duration: time.Duration(frames) * time.Second / time.Duration(s.opts.FPS),
		MimeType: s.enc.MimeType(),
	}
	s.log.Info("export finished", "path", res.Path, "bytes", res.Bytes, "frames", res.Frames)
	return res, nil
}
