package visualizer

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func pcm(vals ...int16) []byte {
	b := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

func TestRingBufferReturnsMostRecentSamples(t *testing.T) {
	rb := NewRingBuffer(8)
	rb.Write(pcm(1, 2, 3))
	rb.Write(pcm(4, -5, 6))

	assert.Equal(t, []int16{-5, 6}, rb.Samples(2))
	assert.Equal(t, []int16{3, 4, -5, 6}, rb.Samples(10))
}

func TestRingBufferSkipsHalfSample(t *testing.T) {
	rb := NewRingBuffer(16)
	b := pcm(7, 8)
	rb.Write(b[:3])
	assert.Equal(t, []int16{7}, rb.Samples(4))

	rb.Write(b[3:])
	assert.Equal(t, []int16{7, 8}, rb.Samples(4))
}

func TestRingBufferClear(t *testing.T) {
	rb := NewRingBuffer(8)
	rb.Write(pcm(1, 2))
	rb.Clear()
	assert.Nil(t, rb.Samples(2))
}
