package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"

	"github.com/zaytoolit/flightdeck/internal/config"
	"github.com/zaytoolit/flightdeck/internal/engine"
	"github.com/zaytoolit/flightdeck/internal/export"
	"github.com/zaytoolit/flightdeck/internal/logger"
	"github.com/zaytoolit/flightdeck/internal/media"
	"github.com/zaytoolit/flightdeck/internal/player"
	"github.com/zaytoolit/flightdeck/internal/ui"
	"github.com/zaytoolit/flightdeck/internal/util"
	"github.com/zaytoolit/flightdeck/internal/visualizer"
)

// ringBytes holds about a third of a second of stereo PCM, far more than
// one analysis window.
const ringBytes = 64 << 10

type cliOptions struct {
	preset      string
	flyer       string
	outDir      string
	render      bool
	seconds     float64
	sensitivity float64
	logLevel    string
	logFile     string
	audio       string
}

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseArgs(args []string, stderr io.Writer) (cliOptions, error) {
	var o cliOptions
	fs := flag.NewFlagSet("flightdeck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: flightdeck [flags] [audio-file]\n\nformats: %s\n\n", media.SupportedExtsList())
		fs.PrintDefaults()
	}
	fs.StringVar(&o.preset, "preset", "", "export format: tiktok, instagram, portrait, landscape, hd")
	fs.StringVar(&o.flyer, "flyer", "", "flyer document (YAML), reloaded on change")
	fs.StringVar(&o.outDir, "out", ".", "directory for snapshots and recordings")
	fs.BoolVar(&o.render, "render", false, "render the audio file to video without the editor")
	fs.Float64Var(&o.seconds, "seconds", 0, "with -render, stop after this many seconds")
	fs.Float64Var(&o.sensitivity, "sensitivity", -1, "audio sensitivity 0..3")
	fs.StringVar(&o.logLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR (default $FLIGHTDECK_LOG_LEVEL or INFO)")
	fs.StringVar(&o.logFile, "log-file", filepath.Join(os.TempDir(), "flightdeck.log"), "log destination while the editor runs")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	switch fs.NArg() {
	case 0:
	case 1:
		o.audio = fs.Arg(0)
	default:
		return o, fmt.Errorf("expected at most one audio file, got %d arguments", fs.NArg())
	}
	if o.render && o.audio == "" {
		return o, errors.New("-render needs an audio file")
	}
	if o.seconds < 0 {
		return o, fmt.Errorf("-seconds must not be negative")
	}
	return o, nil
}

// loadDocument builds the startup document: defaults, then the flyer file,
// then flags.
func loadDocument(o cliOptions) (config.Document, error) {
	doc := config.DefaultDocument()
	if o.flyer != "" {
		d, err := config.LoadDocument(o.flyer)
		switch {
		case err == nil:
			doc = d
		case errors.Is(err, os.ErrNotExist):
			// Created on first save.
		default:
			return doc, err
		}
	}
	if o.preset != "" {
		p, err := config.LookupPreset(o.preset)
		if err != nil {
			return doc, err
		}
		doc.Preset = p.Key
	}
	if o.sensitivity >= 0 {
		if err := doc.Params.Set(config.ParamSensitivity, o.sensitivity); err != nil {
			return doc, err
		}
	}
	return doc, nil
}

func checkAudio(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if media.Classify(path) != media.KindAudio {
		return fmt.Errorf("unsupported format %s (supported: %s)", filepath.Ext(path), media.SupportedExtsList())
	}
	return nil
}

func newLogger(level string, out io.Writer) *slog.Logger {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.ParseLevel(level, cfg.Level)
	cfg.Output = out
	return logger.NewLogger(cfg)
}

func run(args []string, stderr io.Writer) error {
	o, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}
	doc, err := loadDocument(o)
	if err != nil {
		return err
	}
	if o.audio != "" {
		if err := checkAudio(o.audio); err != nil {
			return err
		}
	}

	if o.render {
		return renderOffline(o, doc, stderr)
	}
	return runEditor(o, doc)
}

func renderOffline(o cliOptions, doc config.Document, stderr io.Writer) error {
	log := newLogger(o.logLevel, stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	state, err := engine.NewState(doc, image.Point{})
	if err != nil {
		return err
	}
	res, err := engine.RenderFile(ctx, o.audio, engine.RenderOptions{
		State:  state,
		OutDir: o.outDir,
		Limit:  time.Duration(o.seconds * float64(time.Second)),
		Logger: log,
		Progress: func(done, total time.Duration) {
			fmt.Fprintf(stderr, "\rrendering %s / %s", util.FormatDuration(done), util.FormatDuration(total))
		},
	})
	fmt.Fprintln(stderr)
	if err != nil {
		return err
	}

	if probe, err := export.ProbeOutput(ctx, res.Path); err != nil {
		log.Debug("probe skipped", "error", err)
	} else {
		log.Info("probe", "codec", probe.Codec, "size", fmt.Sprintf("%dx%d", probe.Width, probe.Height),
			"duration", probe.Duration, "audio", probe.HasAudio)
	}
	fmt.Fprintf(stderr, "Saved %s (%s, %d frames)\n", res.Path, util.FormatBytes(res.Bytes), res.Frames)
	return nil
}

func runEditor(o cliOptions, doc config.Document) error {
	logOut := io.Discard
	if o.logFile != "" {
		f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	log := newLogger(o.logLevel, logOut)

	ring := visualizer.NewRingBuffer(ringBytes)
	state, err := engine.NewState(doc, image.Pt(64, 64))
	if err != nil {
		return err
	}
	eng := engine.New(state, ring, log)

	opts := ui.Options{
		OutDir:  o.outDir,
		DocPath: o.flyer,
		Profile: termenv.EnvColorProfile(),
		Logger:  log,
	}

	if o.audio != "" {
		p, err := player.New(o.audio, ring)
		if err != nil {
			return fmt.Errorf("creating player: %w", err)
		}
		defer p.Close()
		opts.Player = p
		opts.Metadata = player.ReadMetadata(o.audio)
	}

	if o.flyer != "" {
		w, err := config.NewWatcher(o.flyer)
		if err != nil {
			log.Warn("flyer hot reload disabled", "path", o.flyer, "error", err)
		} else {
			defer w.Close()
			opts.Watcher = w
		}
	}

	log.Info("starting editor", "preset", state.Preset.Key, "audio", o.audio, "flyer", o.flyer)
	_, err = tea.NewProgram(ui.New(eng, state, ring, opts), tea.WithAltScreen()).Run()
	return err
}
