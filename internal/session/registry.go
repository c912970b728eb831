package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HarikaMhae/claude-terminal-panel/internal/classify"
	"github.com/HarikaMhae/claude-terminal-panel/internal/logging"
)

var regLog = logging.ForComponent(logging.CompSession)

// Registry is the single authority for session creation and destruction.
// Removal cascades teardown synchronously: the classifier's pending timer is
// cancelled and the process handle released before Remove returns, so
// nothing can observe a removed session afterwards.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string // creation order, stable during ForEach
	activeID string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session owning the given process handle and
// classifier. An empty id is replaced with a generated one. Returns
// ErrDuplicateSession if the id is already live; the caller keeps ownership
// of handle and classifier in that case.
func (r *Registry) Create(id, name string, handle ProcessHandle, cls *classify.Classifier) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if name == "" {
		name = fmt.Sprintf("session-%s", shortID(id))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return nil, fmt.Errorf("create %q: %w", id, ErrDuplicateSession)
	}

	s := &Session{
		ID:          id,
		DisplayName: name,
		CreatedAt:   time.Now(),
		handle:      handle,
		classifier:  cls,
	}
	r.sessions[id] = s
	r.order = append(r.order, id)

	regLog.Info("session_created",
		slog.String("session_id", id),
		slog.String("name", name),
		slog.Int("live_sessions", len(r.sessions)))
	return s, nil
}

// Get returns the live session for id, if any.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove tears down a session and reports whether it existed. The cascade —
// classifier close (cancels any pending timer), process kill, record
// deletion — completes before Remove returns. Unknown ids are a no-op.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.activeID == id {
		r.activeID = ""
	}
	r.mu.Unlock()

	// Teardown outside the registry lock: Close and Kill take per-session
	// locks of their own and must not hold up unrelated sessions. The
	// record is already unreachable, so ordering stays correct.
	s.classifier.Close()
	if err := s.handle.Kill(); err != nil {
		regLog.Warn("process_kill_failed",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
	}

	regLog.Info("session_removed", slog.String("session_id", id))
	return true
}

// SetActive foregrounds the given session; at most one session is active at
// a time. Returns ErrUnknownSession for missing ids.
func (r *Registry) SetActive(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("set active %q: %w", id, ErrUnknownSession)
	}
	if prev, ok := r.sessions[r.activeID]; ok {
		prev.active = false
	}
	next.active = true
	r.activeID = id
	return nil
}

// ActiveID returns the id of the foregrounded session, or "".
func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

// ForEach applies fn to all live sessions in creation order. The iteration
// order is stable for the duration of the call; fn must not create or
// remove sessions.
func (r *Registry) ForEach(fn func(*Session)) {
	r.mu.RLock()
	snapshot := make([]*Session, 0, len(r.order))
	for _, id := range r.order {
		if s, ok := r.sessions[id]; ok {
			snapshot = append(snapshot, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range snapshot {
		fn(s)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
