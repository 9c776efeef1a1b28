package visualizer

import (
	"encoding/binary"
	"sync"
)

// RingBuffer is a thread-safe circular buffer of signed 16-bit LE PCM.
// The playback goroutine writes through it; the frame loop reads the most
// recent window.
type RingBuffer struct {
	buf   []byte
	size  int
	w     int   // write position
	len   int   // current fill level
	total int64 // bytes ever written, for sample alignment
	mu    sync.Mutex
}

// NewRingBuffer creates a ring buffer with the given capacity in bytes.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{
		buf:  make([]byte, size),
		size: size,
	}
}

// Write appends data, overwriting the oldest bytes when full.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for _, b := range p {
		rb.buf[rb.w] = b
		rb.w = (rb.w + 1) % rb.size
	}
	rb.len += len(p)
	if rb.len > rb.size {
		rb.len = rb.size
	}
	rb.total += int64(len(p))
	return len(p), nil
}

// Samples returns up to n of the most recent int16 samples.
func (rb *RingBuffer) Samples(n int) []int16 {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	// A half-written sample at the head is skipped.
	skip := int(rb.total % 2)
	avail := (rb.len - skip) / 2
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return nil
	}

	out := make([]int16, n)
	start := (rb.w - skip - n*2 + 2*rb.size) % rb.size
	var pair [2]byte
	for i := range n {
		pair[0] = rb.buf[(start+i*2)%rb.size]
		pair[1] = rb.buf[(start+i*2+1)%rb.size]
		out[i] = int16(binary.LittleEndian.Uint16(pair[:]))
	}
	return out
}

// Clear resets the buffer.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.w = 0
	rb.len = 0
	rb.total = 0
}
