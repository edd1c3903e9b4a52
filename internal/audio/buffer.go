package audio

import (
	"sync"
)

// RingBuffer is a thread-safe byte ring used to smooth PCM delivery between
// the playback scheduler and the speaker device callback.
type RingBuffer struct {
	mu    sync.RWMutex
	buf   []byte
	size  int
	read  int
	write int
	count int
}

// NewRingBuffer creates a ring buffer holding up to size bytes.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{buf: make([]byte, size), size: size}
}

// Write copies data into the ring. Returns the number of bytes written,
// which is less than len(data) when the ring fills up.
func (rb *RingBuffer) Write(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for written < len(data) && rb.count < rb.size {
		n := len(data) - written
		if free := rb.size - rb.count; n > free {
			n = free
		}
		if tail := rb.size - rb.write; n > tail {
			n = tail
		}
		copy(rb.buf[rb.write:], data[written:written+n])
		rb.write = (rb.write + n) % rb.size
		rb.count += n
		written += n
	}
	return written
}

// Read copies up to len(data) bytes out of the ring and returns the count.
func (rb *RingBuffer) Read(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for read < len(data) && rb.count > 0 {
		n := len(data) - read
		if n > rb.count {
			n = rb.count
		}
		if tail := rb.size - rb.read; n > tail {
			n = tail
		}
		copy(data[read:read+n], rb.buf[rb.read:rb.read+n])
		rb.read = (rb.read + n) % rb.size
		rb.count -= n
		read += n
	}
	return read
}

// Available returns the number of buffered bytes.
func (rb *RingBuffer) Available() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Space returns the number of bytes that can be written without dropping.
func (rb *RingBuffer) Space() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size - rb.count
}

// Clear discards all buffered bytes.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.read = 0
	rb.write = 0
	rb.count = 0
}

// IsEmpty reports whether no bytes are buffered.
func (rb *RingBuffer) IsEmpty() bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count == 0
}
