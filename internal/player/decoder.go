package player

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// Output format shared by every decoder, the oto context and the analyser.
const (
	SampleRate   = 44100
	Channels     = 2
	bytesPerSamp = 2
	frameBytes   = Channels * bytesPerSamp
	bytesPerSec  = SampleRate * frameBytes
)

// ErrUnsupportedFormat is returned when no decoder can handle a file.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// audioDecoder yields signed 16-bit LE interleaved PCM.
type audioDecoder interface {
	io.ReadSeeker
	Length() int64
	SampleRate() int
	ChannelCount() int
}

// openDecoder picks a native decoder by extension. Files the native decoders
// cannot produce in the shared output format go through ffmpeg.
func openDecoder(path string) (audioDecoder, io.Closer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if canDecodeNatively(ext) {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		dec, err := newNativeDecoder(f, ext)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
		}
		if dec.SampleRate() == SampleRate && dec.ChannelCount() == Channels {
			return dec, f, nil
		}
		f.Close()
	}

	if !hasFFmpeg() {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	dec, err := newFFmpegDecoder(path)
	if err != nil {
		return nil, nil, err
	}
	return dec, dec, nil
}

func newNativeDecoder(f *os.File, ext string) (audioDecoder, error) {
	switch ext {
	case ".mp3":
		return newMP3Decoder(f)
	case ".wav":
		return newWAVDecoder(f)
	case ".flac":
		return newFLACDecoder(f)
	case ".ogg":
		return newOGGDecoder(f)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

// canDecodeNatively reports whether ext has a pure Go decoder.
func canDecodeNatively(ext string) bool {
	switch strings.ToLower(ext) {
	case ".mp3", ".wav", ".flac", ".ogg":
		return true
	}
	return false
}

// pcmCursor is the bookkeeping shared by the block-based decoders: leftover
// converted bytes from the last block plus the output position.
type pcmCursor struct {
	buf        []byte
	pos        int64
	totalBytes int64
	channels   int
}

// drain copies pending bytes into p.
func (c *pcmCursor) drain(p []byte) int {
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	c.pos += int64(n)
	return n
}

// emit hands a freshly converted block to p, keeping the remainder.
func (c *pcmCursor) emit(p, raw []byte) int {
	n := copy(p, raw)
	if n < len(raw) {
		c.buf = raw[n:]
	}
	c.pos += int64(n)
	return n
}

// target resolves a Seek request to a clamped output byte offset.
func (c *pcmCursor) target(offset int64, whence int) int64 {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = c.pos + offset
	case io.SeekEnd:
		pos = c.totalBytes + offset
	}
	pos = max(0, min(pos, c.totalBytes))
	return pos - pos%int64(c.channels*bytesPerSamp)
}

func (c *pcmCursor) moved(pos int64) {
	c.buf = nil
	c.pos = pos
}

func (c *pcmCursor) frame(pos int64) int64 {
	return pos / int64(c.channels*bytesPerSamp)
}

func putSample(dst []byte, v int) {
	binary.LittleEndian.PutUint16(dst, uint16(int16(max(-32768, min(32767, v)))))
}

// mp3

type mp3Decoder struct {
	dec *mp3.Decoder
}

func newMP3Decoder(f *os.File) (*mp3Decoder, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, err
	}
	return &mp3Decoder{dec: dec}, nil
}

func (d *mp3Decoder) Read(p []byte) (int, error) { return d.dec.Read(p) }
func (d *mp3Decoder) Seek(offset int64, whence int) (int64, error) {
	return d.dec.Seek(offset, whence)
}
func (d *mp3Decoder) Length() int64     { return d.dec.Length() }
func (d *mp3Decoder) SampleRate() int   { return d.dec.SampleRate() }
func (d *mp3Decoder) ChannelCount() int { return 2 }

// wav

type wavDecoder struct {
	pcmCursor
	file       *os.File
	pcmStart   int64
	sampleRate int
	srcDepth   int
}

func newWAVDecoder(f *os.File) (*wavDecoder, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	channels := int(dec.NumChans)
	depth := int(dec.BitDepth)
	switch depth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported WAV bit depth %d", depth)
	}
	srcFrame := int64(channels * depth / 8)

	pcmStart, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("locating WAV PCM data: %w", err)
	}

	return &wavDecoder{
		pcmCursor: pcmCursor{
			totalBytes: dec.PCMLen() / srcFrame * int64(channels*bytesPerSamp),
			channels:   channels,
		},
		file:       f,
		pcmStart:   pcmStart,
		sampleRate: int(dec.SampleRate),
		srcDepth:   depth,
	}, nil
}

func (d *wavDecoder) Read(p []byte) (int, error) {
	if len(d.buf) > 0 {
		return d.drain(p), nil
	}
	if d.pos >= d.totalBytes {
		return 0, io.EOF
	}

	srcSize := d.srcDepth / 8
	want := max(1, len(p)/bytesPerSamp)
	if left := int((d.totalBytes - d.pos) / bytesPerSamp); want > left {
		want = left
	}
	src := make([]byte, want*srcSize)
	n, err := io.ReadFull(d.file, src)
	count := n / srcSize
	if count == 0 {
		if err == nil || err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return 0, err
	}

	raw := make([]byte, count*bytesPerSamp)
	for i := range count {
		b := src[i*srcSize:]
		var v int
		switch d.srcDepth {
		case 8:
			v = (int(b[0]) - 128) << 8
		case 16:
			v = int(int16(binary.LittleEndian.Uint16(b)))
		case 24:
			s := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if s&0x800000 != 0 {
				s |= ^0xFFFFFF
			}
			v = int(s >> 8)
		case 32:
			v = int(int32(binary.LittleEndian.Uint32(b)) >> 16)
		}
		putSample(raw[i*bytesPerSamp:], v)
	}

	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return d.emit(p, raw), err
}

func (d *wavDecoder) Seek(offset int64, whence int) (int64, error) {
	pos := d.target(offset, whence)
	src := d.frame(pos) * int64(d.channels*d.srcDepth/8)
	if _, err := d.file.Seek(d.pcmStart+src, io.SeekStart); err != nil {
		return d.pos, err
	}
	d.moved(pos)
	return pos, nil
}

func (d *wavDecoder) Length() int64     { return d.totalBytes }
func (d *wavDecoder) SampleRate() int   { return d.sampleRate }
func (d *wavDecoder) ChannelCount() int { return d.channels }

// flac

type flacDecoder struct {
	pcmCursor
	stream     *flac.Stream
	sampleRate int
	bps        int
}

func newFLACDecoder(f *os.File) (*flacDecoder, error) {
	stream, err := flac.NewSeek(f)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}
	info := stream.Info
	channels := int(info.NChannels)
	return &flacDecoder{
		pcmCursor: pcmCursor{
			totalBytes: int64(info.NSamples) * int64(channels*bytesPerSamp),
			channels:   channels,
		},
		stream:     stream,
		sampleRate: int(info.SampleRate),
		bps:        int(info.BitsPerSample),
	}, nil
}

func (d *flacDecoder) Read(p []byte) (int, error) {
	if len(d.buf) > 0 {
		return d.drain(p), nil
	}

	frame, err := d.stream.ParseNext()
	if err != nil {
		return 0, err
	}

	n := int(frame.Subframes[0].NSamples)
	raw := make([]byte, n*d.channels*bytesPerSamp)
	for i := range n {
		for ch := range d.channels {
			v := int(frame.Subframes[ch].Samples[i])
			if d.bps > 16 {
				v >>= d.bps - 16
			} else if d.bps < 16 {
				v <<= 16 - d.bps
			}
			putSample(raw[(i*d.channels+ch)*bytesPerSamp:], v)
		}
	}
	return d.emit(p, raw), nil
}

func (d *flacDecoder) Seek(offset int64, whence int) (int64, error) {
	pos := d.target(offset, whence)
	if _, err := d.stream.Seek(uint64(d.frame(pos))); err != nil {
		return d.pos, err
	}
	d.moved(pos)
	return pos, nil
}

func (d *flacDecoder) Length() int64     { return d.totalBytes }
func (d *flacDecoder) SampleRate() int   { return d.sampleRate }
func (d *flacDecoder) ChannelCount() int { return d.channels }

// ogg vorbis

type oggDecoder struct {
	pcmCursor
	reader *oggvorbis.Reader
}

func newOGGDecoder(f *os.File) (*oggDecoder, error) {
	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	channels := reader.Channels()
	return &oggDecoder{
		pcmCursor: pcmCursor{
			totalBytes: reader.Length() * int64(channels*bytesPerSamp),
			channels:   channels,
		},
		reader: reader,
	}, nil
}

func (d *oggDecoder) Read(p []byte) (int, error) {
	if len(d.buf) > 0 {
		return d.drain(p), nil
	}

	samples := make([]float32, max(d.channels, len(p)/bytesPerSamp))
	n, err := d.reader.Read(samples)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	raw := make([]byte, n*bytesPerSamp)
	for i, s := range samples[:n] {
		putSample(raw[i*bytesPerSamp:], int(max(-1, min(1, s))*32767))
	}
	return d.emit(p, raw), err
}

func (d *oggDecoder) Seek(offset int64, whence int) (int64, error) {
	pos := d.target(offset, whence)
	if err := d.reader.SetPosition(d.frame(pos)); err != nil {
		return d.pos, err
	}
	d.moved(pos)
	return pos, nil
}

func (d *oggDecoder) Length() int64     { return d.totalBytes }
func (d *oggDecoder) SampleRate() int   { return d.reader.SampleRate() }
func (d *oggDecoder) ChannelCount() int { return d.channels }
