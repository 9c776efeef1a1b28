package player

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// PCM is a fully decoded file in the shared output format.
type PCM struct {
	Samples []int16 // interleaved
}

// DecodeAll decodes path into memory for offline rendering.
func DecodeAll(path string) (*PCM, error) {
	dec, closer, err := openDecoder(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return pcmFromBytes(raw), nil
}

func pcmFromBytes(raw []byte) *PCM {
	raw = raw[:len(raw)-len(raw)%frameBytes]
	out := make([]int16, len(raw)/bytesPerSamp)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*bytesPerSamp:]))
	}
	return &PCM{Samples: out}
}

// Duration returns the decoded length.
func (p *PCM) Duration() time.Duration {
	return bytesToDuration(int64(len(p.Samples) * bytesPerSamp))
}

// Window returns up to n interleaved samples ending at offset at. It mirrors
// what a live tap would hold at that playback position.
func (p *PCM) Window(at time.Duration, n int) []int16 {
	end := int(durationToBytes(at) / bytesPerSamp)
	end = max(0, min(end, len(p.Samples)))
	start := max(0, end-n)
	return p.Samples[start:end]
}
