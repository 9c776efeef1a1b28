// Package player decodes audio files and plays them through the system
// output. Every decoded byte passing to the device is also copied to a tap
// so the visualizer can analyse what is audible.
package player

import (
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// countingReader tracks how far the device has pulled and copies each read
// to the tap.
type countingReader struct {
	reader io.Reader
	pos    int64
	mu     sync.Mutex
}

func newCountingReader(dec io.Reader, tap io.Writer) *countingReader {
	if tap != nil {
		dec = io.TeeReader(dec, tap)
	}
	return &countingReader{reader: dec}
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.reader.Read(p)
	cr.mu.Lock()
	cr.pos += int64(n)
	cr.mu.Unlock()
	return n, err
}

func (cr *countingReader) Pos() int64 {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.pos
}

func (cr *countingReader) SetPos(pos int64) {
	cr.mu.Lock()
	cr.pos = pos
	cr.mu.Unlock()
}

// Player plays one audio file. Load a new file by closing this one and
// creating another.
type Player struct {
	path      string
	decoder   audioDecoder
	closer    io.Closer
	counter   *countingReader
	otoCtx    *oto.Context
	otoPlayer *oto.Player
	duration  time.Duration
	volume    float64
	paused    bool
	done      chan struct{}
	mu        sync.Mutex
	closed    bool
}

var (
	globalOtoCtx *oto.Context
	otoOnce      sync.Once
	otoInitErr   error
)

func initOto() (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   SampleRate,
			ChannelCount: Channels,
			Format:       oto.FormatSignedInt16LE,
		}
		var ready chan struct{}
		globalOtoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr == nil {
			<-ready
		}
	})
	return globalOtoCtx, otoInitErr
}

// New opens path and starts playback. Decoded PCM is copied to tap, which
// may be nil.
func New(path string, tap io.Writer) (*Player, error) {
	dec, closer, err := openDecoder(path)
	if err != nil {
		return nil, err
	}

	ctx, err := initOto()
	if err != nil {
		closer.Close()
		return nil, err
	}

	p := &Player{
		path:     path,
		decoder:  dec,
		closer:   closer,
		counter:  newCountingReader(dec, tap),
		otoCtx:   ctx,
		duration: bytesToDuration(dec.Length()),
		volume:   0.8,
		done:     make(chan struct{}),
	}

	p.otoPlayer = ctx.NewPlayer(p.counter)
	p.otoPlayer.SetVolume(p.volume)
	p.otoPlayer.Play()

	go p.monitor(p.done)
	return p, nil
}

func (p *Player) monitor(done chan struct{}) {
	for {
		p.mu.Lock()
		if p.closed || p.done != done {
			p.mu.Unlock()
			return
		}
		pos := p.counter.Pos()
		total := p.decoder.Length()
		paused := p.paused
		p.mu.Unlock()

		if !paused && total > 0 && pos >= total {
			close(done)
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// Path returns the file being played.
func (p *Player) Path() string { return p.path }

// Done returns a channel that closes when playback reaches the end.
func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Restart seeks to the beginning and resumes. Done is renewed.
func (p *Player) Restart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	if _, err := p.decoder.Seek(0, io.SeekStart); err != nil {
		return
	}
	p.counter.SetPos(0)
	p.resetOutput(true)

	p.done = make(chan struct{})
	p.paused = false
	go p.monitor(p.done)
}

// resetOutput replaces the oto player so buffered audio is dropped.
func (p *Player) resetOutput(play bool) {
	old := p.otoPlayer
	old.Pause()
	p.otoPlayer = p.otoCtx.NewPlayer(p.counter)
	p.otoPlayer.SetVolume(p.volume)
	if play {
		p.otoPlayer.Play()
	}
	_ = old.Close()
}

// TogglePause toggles between play and pause.
func (p *Player) TogglePause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.paused {
		p.otoPlayer.Play()
	} else {
		p.otoPlayer.Pause()
	}
	p.paused = !p.paused
}

// Paused reports whether playback is paused.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Position returns how much audio has been handed to the device.
func (p *Player) Position() time.Duration {
	return bytesToDuration(p.counter.Pos())
}

// Duration returns the track length, or zero when unknown.
func (p *Player) Duration() time.Duration {
	return p.duration
}

// Seek moves playback by delta from the current position.
func (p *Player) Seek(delta time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	target := p.counter.Pos() + durationToBytes(delta)
	pos, err := p.decoder.Seek(target, io.SeekStart)
	if err != nil {
		return
	}
	p.counter.SetPos(pos)
	p.resetOutput(!p.paused)
}

// SetVolume sets the output volume, clamped to 0..1.
func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = max(0, min(1, v))
	if !p.closed {
		p.otoPlayer.SetVolume(p.volume)
	}
}

// Volume returns the output volume.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Close stops playback and releases the decoder. Safe to call twice.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.otoPlayer.Pause()
	p.otoPlayer.Close()
	p.closer.Close()
}

func bytesToDuration(n int64) time.Duration {
	return time.Duration(float64(n) / bytesPerSec * float64(time.Second))
}

func durationToBytes(d time.Duration) int64 {
	n := int64(d.Seconds() * bytesPerSec)
	return n - n%frameBytes
}
