package engine

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/zaytoolit/flightdeck/internal/config"
	"github.com/zaytoolit/flightdeck/internal/export"
	"github.com/zaytoolit/flightdeck/internal/player"
)

// PCMSource reads windows from a fully decoded track at a settable
// position.
type PCMSource struct {
	pcm *player.PCM
	at  time.Duration
}

// NewPCMSource returns a source positioned at the start of pcm.
func NewPCMSource(pcm *player.PCM) *PCMSource { return &PCMSource{pcm: pcm} }

// Seek moves the read position.
func (s *PCMSource) Seek(at time.Duration) { s.at = at }

// Samples returns the n samples ending at the read position.
func (s *PCMSource) Samples(n int) []int16 { return s.pcm.Window(s.at, n) }

// RenderOptions configures RenderFile.
type RenderOptions struct {
	State      *State
	OutDir     string
	Limit      time.Duration // 0 renders the whole track
	NewEncoder func(ctx context.Context) (export.Encoder, error)
	Now        func() time.Time
	Logger     *slog.Logger
	Progress   func(done, total time.Duration)
}

// RenderFile records a video for an audio file without a terminal. Frames
// are produced on a synthetic clock as fast as the encoder accepts them,
// and the source audio is muxed in. Cancelling ctx discards the partial
// recording.
func RenderFile(ctx context.Context, path string, opts RenderOptions) (export.Result, error) {
	pcm, err := player.DecodeAll(path)
	if err != nil {
		return export.Result{}, fmt.Errorf("decoding %s: %w", path, err)
	}

	total := pcm.Duration()
	if opts.Limit > 0 && opts.Limit < total {
		total = opts.Limit
	}
	if total <= 0 {
		return export.Result{}, fmt.Errorf("decoding %s: %w", path, export.ErrEmptyRecording)
	}

	if opts.State == nil {
		st, err := NewState(config.DefaultDocument(), image.Point{})
		if err != nil {
			return export.Result{}, err
		}
		opts.State = st
	}
	state := *opts.State
	state.Display = image.Pt(state.Preset.Width, state.Preset.Height)

	src := NewPCMSource(pcm)
	e := New(&state, src, opts.Logger)

	h, err := e.StartExport(ctx, ExportOptions{
		OutDir:     opts.OutDir,
		Audio:      &export.AudioTrack{Path: path},
		NewEncoder: opts.NewEncoder,
		Now:        opts.Now,
	})
	if err != nil {
		return export.Result{}, err
	}

	step := time.Second / export.FPS
	for now := time.Duration(0); now < total; now += step {
		if err := ctx.Err(); err != nil {
			if abortErr := h.Abort(); abortErr != nil {
				e.log.Warn("closing encoder after cancel", "error", abortErr)
			}
			return export.Result{}, err
		}
		src.Seek(now)
		e.Frame(now)
		if !h.Active() {
			break
		}
		if opts.Progress != nil && now%time.Second < step {
			opts.Progress(now, total)
		}
	}
	return h.Stop()
}
