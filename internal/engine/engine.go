// Package engine runs the per-frame pipeline: audio snapshot, band
// analysis, parameter mapping, scene render and, while recording, the
// composite capture. It holds no goroutines; the caller drives Frame from
// its own loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/zaytoolit/flightdeck/internal/config"
	"github.com/zaytoolit/flightdeck/internal/export"
	"github.com/zaytoolit/flightdeck/internal/logger"
	"github.com/zaytoolit/flightdeck/internal/overlay"
	"github.com/zaytoolit/flightdeck/internal/scene"
	"github.com/zaytoolit/flightdeck/internal/visualizer"
)

// ErrExporting is returned when a second recording is requested.
var ErrExporting = errors.New("export already in progress")

// SnapshotSource supplies the most recent interleaved stereo PCM.
type SnapshotSource interface {
	Samples(n int) []int16
}

// State is the application state shared by the UI and the engine. Each
// subsystem reads only the part it needs.
type State struct {
	Params         config.Params
	Flyer          config.Flyer
	Preset         config.Preset
	Display        image.Point // live render size
	PreviewVisible bool
}

// NewState returns the startup state for doc with a live render of display.
func NewState(doc config.Document, display image.Point) (*State, error) {
	preset, err := config.LookupPreset(doc.Preset)
	if err != nil {
		return nil, err
	}
	return &State{
		Params:         doc.Params,
		Flyer:          doc.Flyer,
		Preset:         preset,
		Display:        display,
		PreviewVisible: true,
	}, nil
}

// Engine is not safe for concurrent use.
type Engine struct {
	state  *State
	source SnapshotSource
	log    *slog.Logger

	spectrum *visualizer.Spectrum
	analyzer *visualizer.Analyzer
	mapper   visualizer.Mapper
	frame    visualizer.FrameState
	energy   visualizer.BandEnergy
	scene    *scene.Scene

	active  bool
	ticked  bool
	lastNow time.Duration

	previewComp    *export.Compositor
	previewOverlay *image.RGBA // nil when stale

	export *ExportHandle
}

// New creates an engine rendering at state.Display. source may be nil,
// which reads as silence.
func New(state *State, source SnapshotSource, log *slog.Logger) *Engine {
	if log == nil {
		log = logger.Discard()
	}
	mapper := visualizer.NewMapper(visualizer.DefaultMapperConfig())
	e := &Engine{
		state:    state,
		source:   source,
		log:      log,
		spectrum: visualizer.NewSpectrum(2),
		analyzer: visualizer.NewAnalyzer(visualizer.DefaultAnalyzerConfig()),
		mapper:   mapper,
		frame:    mapper.Idle(state.Params),
		scene:    scene.New(state.Display.X, state.Display.Y, state.Flyer.AccentColor()),
		active:   true,
	}
	e.scene.SetDebris(state.Params.Debris)
	return e
}

// SetSource switches the audio the analyser reads. Smoothing restarts.
func (e *Engine) SetSource(src SnapshotSource) {
	e.source = src
	e.spectrum.Reset()
	e.analyzer.Reset()
}

// SetActive pauses or resumes rendering while the view is hidden.
func (e *Engine) SetActive(active bool) { e.active = active }

// Active reports whether Frame renders.
func (e *Engine) Active() bool { return e.active }

// Energy returns the latest band energy.
func (e *Engine) Energy() visualizer.BandEnergy { return e.energy }

// FrameState returns the latest mapper output.
func (e *Engine) FrameState() visualizer.FrameState { return e.frame }

// Frame advances the pipeline to now (time since the loop started) and
// returns the scene frame. It returns nil while inactive. When a recording
// is running the composite is captured too; a capture failure ends the
// recording and restores the live view.
func (e *Engine) Frame(now time.Duration) *image.RGBA {
	if !e.active {
		return nil
	}
	var dt time.Duration
	if e.ticked {
		dt = max(0, now-e.lastNow)
	}
	e.ticked = true
	e.lastNow = now

	var samples []int16
	if e.source != nil {
		samples = e.source.Samples(e.spectrum.WindowSamples())
	}
	snap := e.spectrum.Snapshot(samples)
	p := e.state.Params
	e.energy = e.analyzer.Update(snap, p.Sensitivity)
	e.frame = e.mapper.Map(e.energy, p, e.frame, dt)

	e.scene.SetDebris(p.Debris)
	e.scene.Render(e.frame)

	if h := e.export; h != nil {
		e.capture(h, now)
	}
	return e.scene.Frame()
}

func (e *Engine) capture(h *ExportHandle, now time.Duration) {
	if !h.started {
		h.started = true
		h.origin = now
	}
	composite := h.comp.Compose(e.scene.Frame(), h.overlay)
	if err := h.session.Capture(now-h.origin, composite); err != nil {
		e.log.Error("export capture failed", "error", err)
		e.endExport(h)
	}
}

// SetDisplay changes the live render size. Ignored for the scene while
// recording; the new size applies when the recording ends.
func (e *Engine) SetDisplay(w, h int) {
	e.state.Display = image.Pt(max(1, w), max(1, h))
	e.previewOverlay = nil
	if e.export == nil {
		e.scene.Resize(e.state.Display.X, e.state.Display.Y)
	}
}

// SetPreset selects the export resolution by key or name.
func (e *Engine) SetPreset(key string) error {
	p, err := config.LookupPreset(key)
	if err != nil {
		return err
	}
	if e.export != nil {
		return ErrExporting
	}
	e.state.Preset = p
	return nil
}

// SetColor changes the accent color of both the scene and the overlay.
func (e *Engine) SetColor(hex string) error {
	if err := e.state.Flyer.SetField(config.FieldAccent, hex); err != nil {
		return err
	}
	e.scene.SetColor(e.state.Flyer.AccentColor())
	e.ContentChanged()
	return nil
}

// Reload applies a document read from disk. The preset is kept while a
// recording runs.
func (e *Engine) Reload(doc config.Document) error {
	if err := doc.Params.Validate(); err != nil {
		return err
	}
	if err := doc.Flyer.Validate(); err != nil {
		return err
	}
	if e.export == nil && doc.Preset != "" {
		if err := e.SetPreset(doc.Preset); err != nil {
			return err
		}
	}
	e.state.Params = doc.Params
	e.state.Flyer = doc.Flyer.Clone()
	e.scene.SetColor(e.state.Flyer.AccentColor())
	e.ContentChanged()
	return nil
}

// ContentChanged re-rasterizes the overlay of a running recording after
// the flyer text changed. The preview overlay is rebuilt on next use.
func (e *Engine) ContentChanged() {
	e.previewOverlay = nil
	h := e.export
	if h == nil {
		return
	}
	img, err := rasterize(e.state.Flyer, h.width, h.height)
	if err != nil {
		e.log.Warn("overlay refresh failed", "error", err)
		return
	}
	h.overlay = img
}

// Preview composes the latest scene frame with the flyer overlay at the
// live render size. It returns nil while the preview is hidden.
func (e *Engine) Preview() *image.RGBA {
	if !e.state.PreviewVisible || e.export != nil {
		return nil
	}
	w, h := e.state.Display.X, e.state.Display.Y
	if e.previewComp == nil {
		e.previewComp = export.NewCompositor(w, h)
	}
	if e.previewOverlay == nil {
		img, err := rasterize(e.state.Flyer, w, h)
		if err != nil {
			e.log.Warn("preview overlay failed", "error", err)
			return e.scene.Frame()
		}
		e.previewOverlay = img
		e.previewComp.Resize(w, h)
	}
	return e.previewComp.Compose(e.scene.Frame(), e.previewOverlay)
}

func rasterize(f config.Flyer, w, h int) (*image.RGBA, error) {
	img, err := overlay.Rasterize(overlay.Layout(f, w, h), w, h, overlay.DefaultScale)
	if err != nil {
		return nil, fmt.Errorf("rasterizing overlay: %w", err)
	}
	return img, nil
}

// Snapshot renders the current frame at the preset resolution and writes
// a PNG to dir.
func (e *Engine) Snapshot(dir string, now time.Time) (string, error) {
	w, h := e.state.Preset.Width, e.state.Preset.Height
	ov, err := rasterize(e.state.Flyer, w, h)
	if err != nil {
		return "", err
	}

	prevW, prevH := e.scene.Size()
	e.scene.Resize(w, h)
	e.scene.Render(e.frame)
	path, err := export.Snapshot(e.scene.Frame(), ov, w, h, dir, now)
	e.scene.Resize(prevW, prevH)
	if err != nil {
		return "", err
	}
	e.log.Info("snapshot saved", "path", path)
	return path, nil
}

// ExportOptions configures a recording.
type ExportOptions struct {
	OutDir     string
	Audio      *export.AudioTrack
	NewEncoder func(ctx context.Context) (export.Encoder, error) // nil means export.DetectEncoder
	Now        func() time.Time
}

// PreparedExport holds the slow, state-independent part of a recording
// setup: the rasterized overlay and a ready encoder.
type PreparedExport struct {
	opts    ExportOptions
	enc     export.Encoder
	overlay *image.RGBA
	width   int
	height  int
}

// PrepareExport rasterizes the overlay for flyer at the preset resolution
// and finds an encoder. It touches no engine state, so it may run off the
// frame loop.
func PrepareExport(ctx context.Context, flyer config.Flyer, preset config.Preset, opts ExportOptions) (*PreparedExport, error) {
	w, h := preset.Width, preset.Height
	ov, err := rasterize(flyer, w, h)
	if err != nil {
		return nil, err
	}

	newEncoder := opts.NewEncoder
	if newEncoder == nil {
		newEncoder = func(ctx context.Context) (export.Encoder, error) {
			return export.DetectEncoder(ctx)
		}
	}
	enc, err := newEncoder(ctx)
	if err != nil {
		return nil, err
	}
	return &PreparedExport{opts: opts, enc: enc, overlay: ov, width: w, height: h}, nil
}

// ExportHandle is a running recording.
type ExportHandle struct {
	engine  *Engine
	session *export.Session
	comp    *export.Compositor
	overlay *image.RGBA
	width   int
	height  int

	started  bool
	origin   time.Duration
	detached bool
}

// StartExport prepares and begins a recording in one step.
func (e *Engine) StartExport(ctx context.Context, opts ExportOptions) (*ExportHandle, error) {
	if e.export != nil {
		return nil, ErrExporting
	}
	p, err := PrepareExport(ctx, e.state.Flyer.Clone(), e.state.Preset, opts)
	if err != nil {
		return nil, err
	}
	return e.BeginExport(p)
}

// BeginExport switches the scene to the recording resolution, hides the
// preview and starts the session. On failure the live view is restored
// and no file is written.
func (e *Engine) BeginExport(p *PreparedExport) (*ExportHandle, error) {
	if e.export != nil {
		_ = p.enc.Close()
		return nil, ErrExporting
	}

	e.scene.Resize(p.width, p.height)
	e.state.PreviewVisible = false

	sess, err := export.Start(export.Options{
		Width:   p.width,
		Height:  p.height,
		OutDir:  p.opts.OutDir,
		Encoder: p.enc,
		Audio:   p.opts.Audio,
		Now:     p.opts.Now,
		Logger:  e.log,
	})
	if err != nil {
		e.restoreDisplay()
		return nil, err
	}

	h := &ExportHandle{
		engine:  e,
		session: sess,
		comp:    export.NewCompositor(p.width, p.height),
		overlay: p.overlay,
		width:   p.width,
		height:  p.height,
	}
	e.export = h
	e.log.Info("recording", "width", p.width, "height", p.height, "mime", sess.MimeType())
	return h, nil
}

func (e *Engine) restoreDisplay() {
	e.scene.Resize(e.state.Display.X, e.state.Display.Y)
	e.state.PreviewVisible = true
}

func (e *Engine) endExport(h *ExportHandle) {
	if h.detached {
		return
	}
	h.detached = true
	if e.export == h {
		e.export = nil
		e.restoreDisplay()
	}
}

// Exporting reports whether a recording is running.
func (e *Engine) Exporting() bool { return e.export != nil }

// Cancel stops capturing and restores the live view. The recording is
// finalized by Stop, which may then run off the frame loop.
func (h *ExportHandle) Cancel() { h.engine.endExport(h) }

// Stop ends the recording, restores the live view and writes the file.
// Safe to call more than once. A capture failure is reported here.
func (h *ExportHandle) Stop() (export.Result, error) {
	h.Cancel()
	return h.session.Stop()
}

// Abort ends the recording without writing a file.
func (h *ExportHandle) Abort() error {
	h.Cancel()
	return h.session.Abort()
}

// Active reports whether frames are still being captured.
func (h *ExportHandle) Active() bool { return !h.detached && h.session.Active() }

// Frames returns how many frames have been written.
func (h *ExportHandle) Frames() int { return h.session.Frames() }

// MimeType returns the container/codec of the recording.
func (h *ExportHandle) MimeType() string { return h.session.MimeType() }

// Size returns the recording resolution.
func (h *ExportHandle) Size() (int, int) { return h.width, h.height }
