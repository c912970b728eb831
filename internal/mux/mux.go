// Package mux fans each session's raw output stream out to the presentation
// surface and to that session's prompt-wait classifier. Chunks pass through
// unmodified and in arrival order per session; the multiplexer never
// transforms, filters, or re-buffers them.
package mux

import (
	"log/slog"
	"sync"

	"github.com/HarikaMhae/claude-terminal-panel/internal/logging"
)

// Sink receives the lossless passthrough copy of every chunk, tagged with
// its session id. A slow sink queues behind its own writer; the source rate
// is human-interactive, so the queue is left unbounded by design.
type Sink interface {
	Output(sessionID string, data []byte)
}

// Tap receives the classifier-bound copy of a session's chunks.
type Tap func(chunk []byte)

// Multiplexer routes per-session output. Writes for one session must come
// from a single goroutine (the session's PTY read loop), which is what
// preserves per-session ordering; the multiplexer itself adds no
// reordering.
type Multiplexer struct {
	mu   sync.RWMutex
	sink Sink
	taps map[string]Tap
}

// New creates a multiplexer delivering passthrough copies to sink.
func New(sink Sink) *Multiplexer {
	return &Multiplexer{
		sink: sink,
		taps: make(map[string]Tap),
	}
}

// Register installs the classifier tap for a session. Registering again for
// the same id replaces the previous tap.
func (m *Multiplexer) Register(sessionID string, tap Tap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taps[sessionID] = tap
}

// Unregister removes a session's tap. Chunks arriving afterwards still reach
// the sink (final output is flushed to the presentation surface even during
// teardown) but are no longer classified.
func (m *Multiplexer) Unregister(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.taps, sessionID)
}

// Write routes one chunk: an unmodified copy to the sink, an unmodified copy
// to the session's tap. Both deliveries happen synchronously on the caller's
// goroutine, so per-session arrival order is preserved end to end.
func (m *Multiplexer) Write(sessionID string, chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	m.mu.RLock()
	sink := m.sink
	tap := m.taps[sessionID]
	m.mu.RUnlock()

	logging.Aggregate(logging.CompMux, "output_chunk",
		slog.String("session_id", sessionID),
		slog.Int("last_len", len(chunk)))

	if sink != nil {
		sink.Output(sessionID, chunk)
	}
	if tap != nil {
		tap(chunk)
	}
}
