package export

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Recording defaults.
const (
	FPS     = 60
	Bitrate = 25_000_000
)

var (
	// ErrEncoderUnavailable means no usable video encoder was found.
	ErrEncoderUnavailable = errors.New("no video encoder available")
	// ErrNotActive is returned when capturing into a stopped session.
	ErrNotActive = errors.New("export session is not active")
	// ErrFrameSize is returned when a frame does not match the encoder size.
	ErrFrameSize = errors.New("frame size does not match encoder")
)

// AudioTrack muxes audio from a file into the recording, starting at
// Offset into the file.
type AudioTrack struct {
	Path   string
	Offset time.Duration
}

// EncoderConfig describes the stream an Encoder produces.
type EncoderConfig struct {
	Width, Height int
	FPS           int
	Bitrate       int
	Audio         *AudioTrack
}

// Encoder turns RGBA frames into container bytes. onChunk is called
// serially with each piece of output; every chunk has been delivered by
// the time Close returns.
type Encoder interface {
	Start(cfg EncoderConfig, onChunk func([]byte)) error
	WriteFrame(frame *image.RGBA) error
	Close() error
	MimeType() string
	Ext() string
}

// Codec is one entry in the preference list.
type Codec struct {
	MimeType string
	Ext      string
	Encoder  string // ffmpeg encoder name
	Format   string // ffmpeg muxer
	Args     []string
}

// Codecs in preference order: VP9, then H.264, then plain WebM (VP8).
var Codecs = []Codec{
	{
		MimeType: "video/webm;codecs=vp9",
		Ext:      "webm",
		Encoder:  "libvpx-vp9",
		Format:   "webm",
		Args:     []string{"-deadline", "realtime", "-cpu-used", "8", "-row-mt", "1"},
	},
	{
		// The WebM muxer rejects H.264, so this falls back to Matroska.
		MimeType: "video/webm;codecs=h264",
		Ext:      "mkv",
		Encoder:  "libx264",
		Format:   "matroska",
		Args:     []string{"-preset", "veryfast"},
	},
	{
		MimeType: "video/webm",
		Ext:      "webm",
		Encoder:  "libvpx",
		Format:   "webm",
		Args:     []string{"-deadline", "realtime", "-cpu-used", "8"},
	},
}

// SelectCodec returns the first codec whose encoder is available.
func SelectCodec(available map[string]bool) (Codec, error) {
	for _, c := range Codecs {
		if available[c.Encoder] {
			return c, nil
		}
	}
	return Codec{}, ErrEncoderUnavailable
}

// Seams for tests.
var (
	ffmpegLookPath = exec.LookPath
	encoderCommand = exec.Command
)

// ListEncoders asks ffmpeg which video encoders it was built with.
func ListEncoders(ctx context.Context) (map[string]bool, error) {
	ffmpeg, err := ffmpegLookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found", ErrEncoderUnavailable)
	}
	out, err := exec.CommandContext(ctx, ffmpeg, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, fmt.Errorf("listing ffmpeg encoders: %w", err)
	}
	return parseEncoders(out), nil
}

// parseEncoders reads `ffmpeg -encoders` output. Lines look like
// " V....D libvpx-vp9           libvpx VP9".
func parseEncoders(out []byte) map[string]bool {
	found := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || len(fields[0]) != 6 || fields[0][0] != 'V' || fields[1] == "=" {
			continue
		}
		found[fields[1]] = true
	}
	return found
}

// DetectEncoder picks the best available codec and returns an ffmpeg
// encoder for it.
func DetectEncoder(ctx context.Context) (*FFmpegEncoder, error) {
	available, err := ListEncoders(ctx)
	if err != nil {
		return nil, err
	}
	codec, err := SelectCodec(available)
	if err != nil {
		return nil, err
	}
	return NewFFmpegEncoder(codec), nil
}

// FFmpegEncoder pipes raw RGBA frames into an ffmpeg subprocess and reads
// the muxed container back from its stdout.
type FFmpegEncoder struct {
	codec Codec

	mu      sync.Mutex
	cfg     EncoderConfig
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  *tailBuffer
	done    chan struct{}
	readErr error
	closed  bool
}

var _ Encoder = (*FFmpegEncoder)(nil)

// NewFFmpegEncoder creates an encoder for codec. Nothing runs until Start.
func NewFFmpegEncoder(codec Codec) *FFmpegEncoder {
	return &FFmpegEncoder{codec: codec}
}

func (e *FFmpegEncoder) MimeType() string { return e.codec.MimeType }
func (e *FFmpegEncoder) Ext() string      { return e.codec.Ext }

// encodeArgs builds the ffmpeg command line for cfg.
func encodeArgs(cfg EncoderConfig, c Codec) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-framerate", strconv.Itoa(cfg.FPS),
		"-i", "pipe:0",
	}
	if cfg.Audio != nil {
		if cfg.Audio.Offset > 0 {
			args = append(args, "-ss", strconv.FormatFloat(cfg.Audio.Offset.Seconds(), 'f', 3, 64))
		}
		args = append(args, "-i", cfg.Audio.Path, "-map", "0:v:0", "-map", "1:a:0?",
			"-c:a", "libopus", "-b:a", "128k", "-shortest")
	}
	args = append(args, "-c:v", c.Encoder, "-b:v", strconv.Itoa(cfg.Bitrate))
	args = append(args, c.Args...)
	return append(args, "-pix_fmt", "yuv420p", "-f", c.Format, "pipe:1")
}

// Start launches ffmpeg. The stdout reader runs until ffmpeg exits.
func (e *FFmpegEncoder) Start(cfg EncoderConfig, onChunk func([]byte)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd != nil {
		return errors.New("encoder already started")
	}

	ffmpeg, err := ffmpegLookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("%w: ffmpeg not found", ErrEncoderUnavailable)
	}

	cmd := encoderCommand(ffmpeg, encodeArgs(cfg, e.codec)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	e.stderr = &tailBuffer{max: 4096}
	cmd.Stderr = e.stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting ffmpeg encoder: %w", err)
	}

	e.cfg = cfg
	e.cmd = cmd
	e.stdin = stdin
	e.done = make(chan struct{})
	go e.readLoop(stdout, onChunk)
	return nil
}

func (e *FFmpegEncoder) readLoop(r io.Reader, onChunk func([]byte)) {
	defer close(e.done)
	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			onChunk(bytes.Clone(buf[:n]))
		}
		if err != nil {
			if err != io.EOF {
				e.readErr = err
			}
			return
		}
	}
}

// WriteFrame sends one frame. The frame must match the configured size.
func (e *FFmpegEncoder) WriteFrame(frame *image.RGBA) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd == nil || e.closed {
		return ErrNotActive
	}

	b := frame.Bounds()
	if b.Dx() != e.cfg.Width || b.Dy() != e.cfg.Height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrFrameSize, b.Dx(), b.Dy(), e.cfg.Width, e.cfg.Height)
	}

	row := b.Dx() * 4
	if frame.Stride == row {
		_, err := e.stdin.Write(frame.Pix[:row*b.Dy()])
		return e.writeErr(err)
	}
	for y := range b.Dy() {
		off := y * frame.Stride
		if _, err := e.stdin.Write(frame.Pix[off : off+row]); err != nil {
			return e.writeErr(err)
		}
	}
	return nil
}

func (e *FFmpegEncoder) writeErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("writing frame to ffmpeg: %w%s", err, e.stderr.suffix())
}

// Close flushes the encoder and waits for all output. Safe to call twice.
func (e *FFmpegEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd == nil || e.closed {
		return nil
	}
	e.closed = true

	_ = e.stdin.Close()
	<-e.done
	err := e.cmd.Wait()
	if err != nil {
		return fmt.Errorf("ffmpeg encoder: %w%s", err, e.stderr.suffix())
	}
	if e.readErr != nil {
		return fmt.Errorf("reading ffmpeg output: %w", e.readErr)
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}

func (t *tailBuffer) suffix() string {
	if t == nil {
		return ""
	}
	if s := t.String(); s != "" {
		return ": " + s
	}
	return ""
}
