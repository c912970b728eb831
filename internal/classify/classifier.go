package classify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/HarikaMhae/claude-terminal-panel/internal/logging"
)

var classifyLog = logging.ForComponent(logging.CompClassify)

// DefaultShowDelay is the settle period before an Idle session is declared
// Waiting. Hiding is never delayed: new output or user input flips the state
// back to Idle immediately.
const DefaultShowDelay = 2 * time.Second

// WaitState is the classifier's current belief about whether the observed
// process is blocked awaiting human input.
type WaitState string

const (
	StateIdle    WaitState = "idle"
	StateWaiting WaitState = "waiting"
)

// Options configures a Classifier. The zero value is usable; unset fields
// take defaults.
type Options struct {
	// Enabled turns evaluation on. When false, output is still buffered but
	// no timers are scheduled and the state stays Idle.
	Enabled bool

	// ShowDelay is the quiet period after the last output before the buffer
	// tail is evaluated (default DefaultShowDelay).
	ShowDelay time.Duration

	// CustomPatterns are user-supplied pattern strings unioned with the
	// built-in defaults. Invalid patterns are dropped silently.
	CustomPatterns []string

	// BufferCapacity bounds the sliding window (default DefaultBufferCapacity).
	BufferCapacity int
}

// Classifier watches one session's output stream and decides, with debounce
// on show and instant hide, whether the process is waiting for input.
//
// All methods are safe for concurrent use; events for the same session are
// strictly serialized by the internal mutex. The notify callback is invoked
// synchronously with state transitions and must not call back into the
// Classifier.
type Classifier struct {
	sessionID string
	notify    func(waiting bool)

	mu       sync.Mutex
	buf      *SlidingBuffer
	patterns *PatternSet
	enabled  bool
	delay    time.Duration

	state  WaitState
	timer  *time.Timer
	gen    uint64
	closed bool
}

// New creates a classifier for one session. notify receives exactly one call
// per state transition (true = Waiting, false = Idle); it is never called
// twice in a row with the same value, and never after Close returns.
func New(sessionID string, opts Options, notify func(waiting bool)) *Classifier {
	if opts.ShowDelay <= 0 {
		opts.ShowDelay = DefaultShowDelay
	}
	return &Classifier{
		sessionID: sessionID,
		notify:    notify,
		buf:       NewSlidingBuffer(opts.BufferCapacity),
		patterns:  NewPatternSet(opts.CustomPatterns),
		enabled:   opts.Enabled,
		delay:     opts.ShowDelay,
		state:     StateIdle,
	}
}

// OnOutput feeds a raw output chunk to the classifier. The chunk is appended
// verbatim (stripping is deferred to evaluation), any pending evaluation is
// superseded, and a fresh settle timer is scheduled. If the state was
// Waiting it flips to Idle immediately: new output is itself proof the
// process is unblocked.
func (c *Classifier) OnOutput(chunk string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.buf.Append(chunk)
	c.cancelTimerLocked()

	if c.state == StateWaiting {
		c.transitionLocked(StateIdle)
	}
	if !c.enabled {
		return
	}
	c.scheduleLocked()
}

// OnUserInput reports that the user sent input to the session. Any pending
// evaluation is cancelled, the state is forced to Idle, and the buffer is
// cleared so stale content cannot re-trigger a match against unrelated
// future output.
func (c *Classifier) OnUserInput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.cancelTimerLocked()
	c.buf.Clear()
	if c.state == StateWaiting {
		c.transitionLocked(StateIdle)
	}
}

// UpdateConfig atomically replaces the pattern set and timing configuration.
// No evaluation ever observes a partially replaced set. Invalid custom
// patterns are dropped, never reported.
func (c *Classifier) UpdateConfig(opts Options) {
	if opts.ShowDelay <= 0 {
		opts.ShowDelay = DefaultShowDelay
	}
	set := NewPatternSet(opts.CustomPatterns)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.patterns = set
	c.delay = opts.ShowDelay
	wasEnabled := c.enabled
	c.enabled = opts.Enabled

	if !opts.Enabled {
		c.cancelTimerLocked()
		if c.state == StateWaiting {
			c.transitionLocked(StateIdle)
		}
		return
	}
	// Newly enabled with buffered output: evaluate after a fresh settle period.
	if !wasEnabled && c.buf.Len() > 0 {
		c.scheduleLocked()
	}
}

// State returns the current wait state.
func (c *Classifier) State() WaitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close cancels any pending timer and discards state. After Close returns,
// no notify callback will ever fire for this session, even if a timer was
// pending when Close was called.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancelTimerLocked()
	c.buf.Clear()
}

// cancelTimerLocked supersedes any pending evaluation. Bumping the
// generation counter makes an already-fired callback a no-op even when
// Timer.Stop loses the race.
func (c *Classifier) cancelTimerLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// scheduleLocked starts a fresh settle timer. At most one timer is pending
// at any instant: scheduling always supersedes the previous timer.
func (c *Classifier) scheduleLocked() {
	c.gen++
	g := c.gen
	c.timer = time.AfterFunc(c.delay, func() {
		c.evaluate(g)
	})
}

// evaluate runs when the settle timer fires. The generation check rejects
// stale callbacks from superseded or cancelled timers, including any timer
// outstanding at Close.
func (c *Classifier) evaluate(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}
	c.timer = nil

	next := StateIdle
	if c.patterns.Matches(c.buf.String()) {
		next = StateWaiting
	}
	if next != c.state {
		c.transitionLocked(next)
	}
}

// transitionLocked flips the state and emits exactly one notification.
// Callers only invoke it when the state actually changes, which keeps the
// no-duplicates invariant: consecutive evaluations computing the same state
// never notify twice.
func (c *Classifier) transitionLocked(next WaitState) {
	c.state = next
	classifyLog.Debug("wait_state_changed",
		slog.String("session_id", c.sessionID),
		slog.String("state", string(next)))
	if c.notify != nil {
		c.notify(next == StateWaiting)
	}
}
