package session

import (
	"sync"
	"time"

	"github.com/HarikaMhae/claude-terminal-panel/internal/classify"
)

// ProcessHandle is the registry's view of the pseudo-terminal process
// adapter. Spawning lives elsewhere; the registry only owns teardown and
// forwarding.
type ProcessHandle interface {
	// Write sends user input bytes to the process.
	Write(p []byte) error

	// Resize changes the pseudo-terminal dimensions.
	Resize(cols, rows int) error

	// Kill terminates the process and releases the terminal. It must be
	// idempotent; the registry calls it during cascading removal.
	Kill() error
}

// Session is one logical interactive process with its classification and
// display state. A session exclusively owns its process handle and its
// classifier (sliding buffer plus debounce timer); both are created with the
// session and torn down with it, never shared.
type Session struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time

	handle     ProcessHandle
	classifier *classify.Classifier

	// Guarded by the owning registry's lock.
	active bool

	// mu serializes input and resize delivery for this session.
	mu sync.Mutex

	// lastCols/lastRows dedupe repeated resize deliveries: the transport is
	// not exactly-once, and a repeated resize with identical dimensions must
	// be a no-op.
	lastCols, lastRows int
}

// Classifier returns the session's prompt-wait classifier.
func (s *Session) Classifier() *classify.Classifier {
	return s.classifier
}

// IsActive reports whether this session is foregrounded.
func (s *Session) IsActive() bool {
	return s.active
}

// WaitState returns the classifier's current belief for this session.
func (s *Session) WaitState() classify.WaitState {
	return s.classifier.State()
}

// Write forwards user input verbatim to the process and reports it to the
// classifier, which hides any active wait notification immediately and
// clears its buffer.
func (s *Session) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.handle.Write(p); err != nil {
		return err
	}
	s.classifier.OnUserInput()
	return nil
}

// Resize changes the terminal dimensions. Identical repeated dimensions are
// ignored without touching the process.
func (s *Session) Resize(cols, rows int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cols == s.lastCols && rows == s.lastRows {
		return nil
	}
	if err := s.handle.Resize(cols, rows); err != nil {
		return err
	}
	s.lastCols, s.lastRows = cols, rows
	return nil
}
