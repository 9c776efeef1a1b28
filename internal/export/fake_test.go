package export

import (
	"errors"
	"image"
	"sync"
)

// fakeEncoder emits a few bytes per frame through onChunk.
type fakeEncoder struct {
	mu       sync.Mutex
	cfg      EncoderConfig
	onChunk  func([]byte)
	frames   int
	closed   int
	startErr error
	writeErr error
	failAt   int // WriteFrame fails once frames reaches this; 0 disables
}

func (f *fakeEncoder) Start(cfg EncoderConfig, onChunk func([]byte)) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.cfg = cfg
	f.onChunk = onChunk
	onChunk([]byte("HDR"))
	return nil
}

func (f *fakeEncoder) WriteFrame(frame *image.RGBA) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt > 0 && f.frames >= f.failAt {
		return f.writeErr
	}
	if frame.Bounds().Dx() != f.cfg.Width || frame.Bounds().Dy() != f.cfg.Height {
		return ErrFrameSize
	}
	f.frames++
	f.onChunk([]byte{byte(f.frames), frame.Pix[0]})
	return nil
}

func (f *fakeEncoder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeEncoder) MimeType() string { return "video/webm;codecs=vp9" }
func (f *fakeEncoder) Ext() string      { return "webm" }

var errBrokenPipe = errors.New("broken pipe")
