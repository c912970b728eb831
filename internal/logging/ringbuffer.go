package logging

import (
	"os"
	"sync"
)

// RingBuffer keeps the most recent log bytes in memory so they can be
// dumped for diagnosis after a crash or on SIGUSR1. It implements io.Writer
// and overwrites the oldest data once full.
type RingBuffer struct {
	mu      sync.Mutex
	buf     []byte
	cursor  int
	wrapped bool
}

// NewRingBuffer creates a ring buffer holding up to size bytes.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1024 * 1024
	}
	return &RingBuffer{buf: make([]byte, size)}
}

// Write implements io.Writer and never fails; old bytes fall off the front.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(p)
	if n >= len(rb.buf) {
		// Oversized write: only the trailing window survives.
		copy(rb.buf, p[n-len(rb.buf):])
		rb.cursor = 0
		rb.wrapped = true
		return n, nil
	}

	overflow := rb.cursor + n - len(rb.buf)
	if overflow <= 0 {
		copy(rb.buf[rb.cursor:], p)
		rb.cursor += n
		if rb.cursor == len(rb.buf) {
			rb.cursor = 0
			rb.wrapped = true
		}
		return n, nil
	}

	head := n - overflow
	copy(rb.buf[rb.cursor:], p[:head])
	copy(rb.buf, p[head:])
	rb.cursor = overflow
	rb.wrapped = true
	return n, nil
}

// Bytes returns the retained bytes, oldest first.
func (rb *RingBuffer) Bytes() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.wrapped {
		out := make([]byte, rb.cursor)
		copy(out, rb.buf[:rb.cursor])
		return out
	}
	out := make([]byte, len(rb.buf))
	copy(out, rb.buf[rb.cursor:])
	copy(out[len(rb.buf)-rb.cursor:], rb.buf[:rb.cursor])
	return out
}

// DumpToFile writes the retained bytes to path, oldest first.
func (rb *RingBuffer) DumpToFile(path string) error {
	return os.WriteFile(path, rb.Bytes(), 0o644)
}
