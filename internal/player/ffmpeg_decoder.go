package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// Seams for tests.
var (
	ffmpegLookPath  = exec.LookPath
	ffprobeLookPath = exec.LookPath
)

var errFFmpegNotFound = errors.New("ffmpeg not found (required for non-native audio formats)")

// ffmpegDecoder decodes any container ffmpeg understands, resampled to the
// shared output format. Seek restarts the process with -ss.
type ffmpegDecoder struct {
	path       string
	totalBytes int64

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc
	pos    int64
	closed bool
}

type ffprobeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func newFFmpegDecoder(path string) (*ffmpegDecoder, error) {
	dur, err := probeDuration(path)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", path, err)
	}

	d := &ffmpegDecoder{
		path:       path,
		totalBytes: int64(dur.Seconds() * bytesPerSec),
	}
	d.totalBytes -= d.totalBytes % frameBytes
	if err := d.startProcess(0); err != nil {
		return nil, err
	}
	return d, nil
}

// probeDuration asks ffprobe for the first audio stream and the container
// duration. A missing duration is reported as zero.
func probeDuration(path string) (time.Duration, error) {
	ffprobe, err := ffprobeLookPath("ffprobe")
	if err != nil {
		return 0, errors.New("ffprobe not found")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		"-select_streams", "a:0",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (time.Duration, error) {
	var res ffprobeResult
	if err := json.Unmarshal(out, &res); err != nil {
		return 0, fmt.Errorf("parsing ffprobe output: %w", err)
	}
	if len(res.Streams) == 0 {
		return 0, fmt.Errorf("%w: no audio stream", ErrUnsupportedFormat)
	}
	sec, err := strconv.ParseFloat(res.Format.Duration, 64)
	if err != nil || sec < 0 {
		sec = 0
	}
	return time.Duration(sec * float64(time.Second)), nil
}

func decodeArgs(path string, from time.Duration) []string {
	args := []string{"-v", "quiet"}
	if from > 0 {
		args = append(args, "-ss", formatSeekTime(from.Seconds()))
	}
	return append(args,
		"-i", path,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"pipe:1",
	)
}

func (d *ffmpegDecoder) startProcess(from int64) error {
	ffmpeg, err := ffmpegLookPath("ffmpeg")
	if err != nil {
		return errFFmpegNotFound
	}
	d.stopProcess()

	ctx, cancel := context.WithCancel(context.Background())
	offset := time.Duration(float64(from) / bytesPerSec * float64(time.Second))
	cmd := exec.CommandContext(ctx, ffmpeg, decodeArgs(d.path, offset)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("setting up ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("starting ffmpeg: %w", err)
	}

	d.cmd = cmd
	d.stdout = stdout
	d.cancel = cancel
	d.pos = from
	return nil
}

func (d *ffmpegDecoder) stopProcess() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.cmd != nil {
		_ = d.cmd.Wait()
		d.cmd = nil
	}
	d.stdout = nil
}

func (d *ffmpegDecoder) Read(p []byte) (int, error) {
	d.mu.Lock()
	if d.closed || d.stdout == nil {
		d.mu.Unlock()
		return 0, io.EOF
	}
	stdout := d.stdout
	d.mu.Unlock()

	n, err := stdout.Read(p)

	d.mu.Lock()
	d.pos += int64(n)
	d.mu.Unlock()
	return n, err
}

func (d *ffmpegDecoder) Seek(offset int64, whence int) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur := pcmCursor{pos: d.pos, totalBytes: d.totalBytes, channels: Channels}
	pos := cur.target(offset, whence)
	if err := d.startProcess(pos); err != nil {
		return d.pos, err
	}
	return pos, nil
}

func (d *ffmpegDecoder) Length() int64     { return d.totalBytes }
func (d *ffmpegDecoder) SampleRate() int   { return SampleRate }
func (d *ffmpegDecoder) ChannelCount() int { return Channels }

// Close stops the subprocess. Safe to call twice.
func (d *ffmpegDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.stopProcess()
	return nil
}

// formatSeekTime formats seconds as HH:MM:SS.mmm for ffmpeg -ss.
func formatSeekTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := seconds - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}

func hasFFmpeg() bool {
	_, err := ffmpegLookPath("ffmpeg")
	return err == nil
}
