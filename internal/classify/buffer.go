package classify

// DefaultBufferCapacity is the default trailing window size in characters.
const DefaultBufferCapacity = 500

// SlidingBuffer retains the most recent characters of raw terminal output,
// up to a fixed capacity. When full, the oldest characters are evicted so
// only a trailing window remains. Not safe for concurrent use; the owning
// classifier serializes access.
type SlidingBuffer struct {
	runes []rune
	cap   int
}

// NewSlidingBuffer creates a buffer with the given capacity in characters.
// Non-positive capacities fall back to DefaultBufferCapacity.
func NewSlidingBuffer(capacity int) *SlidingBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &SlidingBuffer{
		runes: make([]rune, 0, capacity),
		cap:   capacity,
	}
}

// Append adds raw output to the buffer, evicting the oldest characters when
// the capacity is exceeded. Appends do not inspect or transform content;
// escape-sequence stripping happens at evaluation time.
func (b *SlidingBuffer) Append(chunk string) {
	if chunk == "" {
		return
	}
	in := []rune(chunk)
	if len(in) >= b.cap {
		// Chunk alone fills the window: keep only its tail.
		b.runes = append(b.runes[:0], in[len(in)-b.cap:]...)
		return
	}
	overflow := len(b.runes) + len(in) - b.cap
	if overflow > 0 {
		b.runes = append(b.runes[:0], b.runes[overflow:]...)
	}
	b.runes = append(b.runes, in...)
}

// String returns the buffered content, oldest first.
func (b *SlidingBuffer) String() string {
	return string(b.runes)
}

// Len returns the number of buffered characters.
func (b *SlidingBuffer) Len() int {
	return len(b.runes)
}

// Cap returns the configured capacity.
func (b *SlidingBuffer) Cap() int {
	return b.cap
}

// Clear discards all buffered content.
func (b *SlidingBuffer) Clear() {
	b.runes = b.runes[:0]
}

// tail returns the trailing n characters of s.
func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
