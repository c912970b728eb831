// Package web exposes the panel over a websocket endpoint: it owns the
// session registry, spawns processes, fans output out to connected
// presentation surfaces, and relays prompt-wait transitions.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/HarikaMhae/claude-terminal-panel/internal/classify"
	"github.com/HarikaMhae/claude-terminal-panel/internal/config"
	"github.com/HarikaMhae/claude-terminal-panel/internal/logging"
	"github.com/HarikaMhae/claude-terminal-panel/internal/mux"
	"github.com/HarikaMhae/claude-terminal-panel/internal/proto"
	"github.com/HarikaMhae/claude-terminal-panel/internal/pty"
	"github.com/HarikaMhae/claude-terminal-panel/internal/session"
	"github.com/HarikaMhae/claude-terminal-panel/internal/statedb"
)

var webLog = logging.ForComponent(logging.CompTransport)

// listUpdateInterval bounds how often full session lists are broadcast;
// bursts of lifecycle events coalesce into one trailing update.
const listUpdateInterval = 200 * time.Millisecond

// SpawnFunc starts one session process. onData receives output chunks in
// order from a single goroutine; onExit fires once after the last chunk.
type SpawnFunc func(onData func(chunk []byte), onExit func(code int, signal string)) (session.ProcessHandle, error)

// Config defines runtime options for the panel server.
type Config struct {
	ListenAddr string
	Token      string

	// Session is the command configuration for new sessions.
	Session config.SessionSettings

	// Detection seeds classifier options for new sessions; ApplyDetection
	// changes them at runtime.
	Detection classify.Options

	// DB, when set, persists session records across restarts.
	DB *statedb.StateDB

	// Spawn overrides process creation, used by tests. Defaults to a PTY
	// spawn of the configured session command.
	Spawn SpawnFunc
}

// Server wires the registry, multiplexer, and websocket surface together.
type Server struct {
	cfg        Config
	httpServer *http.Server

	registry *session.Registry
	output   *mux.Multiplexer

	connsMu sync.Mutex
	conns   map[*wsConnWriter]struct{}

	detectMu  sync.Mutex
	detection classify.Options

	listMu      sync.Mutex
	listLimiter *rate.Limiter
	listPending bool
}

// NewServer creates a panel server with its own registry and multiplexer.
func NewServer(cfg Config) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8787"
	}

	s := &Server{
		cfg:         cfg,
		registry:    session.NewRegistry(),
		conns:       make(map[*wsConnWriter]struct{}),
		detection:   cfg.Detection,
		listLimiter: rate.NewLimiter(rate.Every(listUpdateInterval), 1),
	}
	s.output = mux.New(s)

	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/ws", s.handlePanelWS)
	httpMux.HandleFunc("/healthz", s.handleHealthz)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Registry exposes the session registry for lifecycle callers.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	webLog.Info("server_listening", slog.String("addr", s.cfg.ListenAddr))
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener, then tears down every live session.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		// Long-lived websocket connections can block graceful shutdown.
		// Force close as a fallback so Ctrl+C exits promptly.
		if closeErr := s.httpServer.Close(); closeErr != nil {
			return fmt.Errorf("graceful shutdown timed out and force close failed: %w", closeErr)
		}
		err = nil
	}

	var ids []string
	s.registry.ForEach(func(sess *session.Session) {
		ids = append(ids, sess.ID)
	})
	for _, id := range ids {
		s.output.Unregister(id)
		s.registry.Remove(id)
	}
	return err
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"ok":true,"sessions":%d,"time":%q}`,
		s.registry.Len(), time.Now().UTC().Format(time.RFC3339))
}

// Output implements mux.Sink: the lossless passthrough copy of every chunk
// goes to all connected surfaces.
func (s *Server) Output(sessionID string, data []byte) {
	s.broadcast(proto.Output(sessionID, data))
}

// ApplyDetection swaps classifier options on every live session and makes
// them the seed for future sessions. Used by config hot reload.
func (s *Server) ApplyDetection(opts classify.Options) {
	s.detectMu.Lock()
	s.detection = opts
	s.detectMu.Unlock()

	s.registry.ForEach(func(sess *session.Session) {
		sess.Classifier().UpdateConfig(opts)
	})
	webLog.Info("detection_config_applied", slog.Bool("enabled", opts.Enabled))
}

func (s *Server) currentDetection() classify.Options {
	s.detectMu.Lock()
	defer s.detectMu.Unlock()
	return s.detection
}

// createSession spawns a process, wires its classifier and output routing,
// and registers it. The new session becomes active.
func (s *Server) createSession(name string) (*session.Session, error) {
	id := uuid.NewString()

	onData := func(chunk []byte) {
		s.output.Write(id, chunk)
	}
	onExit := func(code int, signal string) {
		s.onProcessExit(id, code, signal)
	}

	spawn := s.cfg.Spawn
	if spawn == nil {
		spawn = s.spawnPTY
	}
	handle, err := spawn(onData, onExit)
	if err != nil {
		return nil, fmt.Errorf("spawn session process: %w", err)
	}

	cls := classify.New(id, s.currentDetection(), func(waiting bool) {
		s.broadcast(proto.WaitStateChanged(id, waiting))
	})

	sess, err := s.registry.Create(id, name, handle, cls)
	if err != nil {
		cls.Close()
		_ = handle.Kill()
		return nil, err
	}

	s.output.Register(id, func(chunk []byte) {
		cls.OnOutput(string(chunk))
	})

	if err := s.registry.SetActive(id); err != nil {
		webLog.Warn("set_active_failed", slog.String("session_id", id), slog.String("error", err.Error()))
	}

	if s.cfg.DB != nil {
		now := time.Now()
		if err := s.cfg.DB.Upsert(&statedb.SessionRow{
			ID:           id,
			Name:         sess.DisplayName,
			Command:      s.cfg.Session.Command,
			CreatedAt:    now,
			LastAccessed: now,
		}); err != nil {
			webLog.Warn("session_persist_failed", slog.String("session_id", id), slog.String("error", err.Error()))
		}
	}
	return sess, nil
}

func (s *Server) spawnPTY(onData func([]byte), onExit func(int, string)) (session.ProcessHandle, error) {
	return pty.Spawn(s.cfg.Session.Command, s.cfg.Session.Args, pty.SpawnOptions{
		Cols:   uint16(s.cfg.Session.Cols),
		Rows:   uint16(s.cfg.Session.Rows),
		OnData: onData,
		OnExit: onExit,
	})
}

// onProcessExit handles a session process ending on its own. The PTY read
// loop delivers the final chunks before calling this, so buffered output has
// already reached the surfaces.
func (s *Server) onProcessExit(id string, code int, signal string) {
	webLog.Info("session_process_exited",
		slog.String("session_id", id),
		slog.Int("exit_code", code),
		slog.String("signal", signal))
	s.removeSession(id)
}

// removeSession tears down a session and announces it. No-op for unknown
// ids, so process exit racing a client closeSession resolves cleanly.
func (s *Server) removeSession(id string) {
	wasActive := s.registry.ActiveID() == id
	s.output.Unregister(id)
	if !s.registry.Remove(id) {
		return
	}
	if s.cfg.DB != nil {
		if err := s.cfg.DB.Delete(id); err != nil {
			webLog.Warn("session_unpersist_failed", slog.String("session_id", id), slog.String("error", err.Error()))
		}
	}

	s.broadcast(proto.SessionRemoved(id))

	if wasActive {
		var next string
		s.registry.ForEach(func(sess *session.Session) {
			if next == "" {
				next = sess.ID
			}
		})
		if next != "" {
			if err := s.registry.SetActive(next); err == nil {
				s.broadcast(proto.SessionSwitched(next))
			}
		}
	}
	s.notifySessionsChanged()
}

// sessionList snapshots the registry into protocol form.
func (s *Server) sessionList() []proto.SessionInfo {
	var list []proto.SessionInfo
	s.registry.ForEach(func(sess *session.Session) {
		list = append(list, proto.SessionInfo{
			ID:        sess.ID,
			Name:      sess.DisplayName,
			IsActive:  sess.ID == s.registry.ActiveID(),
			WaitState: string(sess.WaitState()),
		})
	})
	return list
}

// notifySessionsChanged broadcasts the session list, coalescing bursts into
// at most one update per listUpdateInterval with a trailing edge.
func (s *Server) notifySessionsChanged() {
	s.listMu.Lock()
	if s.listPending {
		s.listMu.Unlock()
		return
	}
	delay := s.listLimiter.Reserve().Delay()
	if delay > 0 {
		s.listPending = true
		time.AfterFunc(delay, func() {
			s.listMu.Lock()
			s.listPending = false
			s.listMu.Unlock()
			s.broadcast(proto.SessionListUpdate(s.sessionList()))
		})
		s.listMu.Unlock()
		return
	}
	s.listMu.Unlock()
	s.broadcast(proto.SessionListUpdate(s.sessionList()))
}

func (s *Server) addConn(w *wsConnWriter) {
	s.connsMu.Lock()
	s.conns[w] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) removeConn(w *wsConnWriter) {
	s.connsMu.Lock()
	delete(s.conns, w)
	s.connsMu.Unlock()
}

// broadcast sends one message to every connected surface. Write errors are
// left to each connection's read loop to notice and clean up.
func (s *Server) broadcast(msg proto.ServerMessage) {
	s.connsMu.Lock()
	writers := make([]*wsConnWriter, 0, len(s.conns))
	for w := range s.conns {
		writers = append(writers, w)
	}
	s.connsMu.Unlock()

	for _, w := range writers {
		_ = w.WriteJSON(msg)
	}
}
