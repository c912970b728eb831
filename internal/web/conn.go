package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HarikaMhae/claude-terminal-panel/internal/proto"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     allowWSOrigin,
}

func allowWSOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return false
	}

	return strings.EqualFold(originURL.Host, r.Host)
}

// wsConnWriter serializes writes to one websocket connection. Gorilla
// connections allow a single concurrent writer; broadcasts and per-session
// output arrive from many goroutines.
type wsConnWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newWSConnWriter(conn *websocket.Conn) *wsConnWriter {
	return &wsConnWriter{conn: conn}
}

func (w *wsConnWriter) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteJSON(v)
}

func (s *Server) handlePanelWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.authorizeRequest(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	writer := newWSConnWriter(conn)
	s.addConn(writer)
	defer s.removeConn(writer)

	handler := &connHandler{srv: s, writer: writer}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				webLog.Warn("websocket_closed_unexpectedly", slog.String("error", err.Error()))
			}
			return
		}

		var msg proto.ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			webLog.Warn("invalid_client_payload", slog.String("error", err.Error()))
			continue
		}
		if err := proto.DispatchClient(msg, handler); err != nil {
			webLog.Warn("unknown_client_message", slog.String("type", msg.Type))
		}
	}
}

// connHandler applies one connection's inbound messages to the server.
// Handlers tolerate duplicates and unknown session ids: delivery is not
// exactly-once and sessions can vanish between a surface's view and its
// request.
type connHandler struct {
	srv    *Server
	writer *wsConnWriter
}

// Ready sends the current session list to the connecting surface so it can
// render before any lifecycle event fires.
func (h *connHandler) Ready() {
	_ = h.writer.WriteJSON(proto.SessionListUpdate(h.srv.sessionList()))
}

// Input forwards user keystrokes verbatim to the session's process.
// Duplicated input messages are forwarded again; the core does not guess at
// intent.
func (h *connHandler) Input(sessionID, data string) {
	sess, ok := h.srv.registry.Get(sessionID)
	if !ok {
		webLog.Warn("input_for_unknown_session", slog.String("session_id", sessionID))
		return
	}
	if err := sess.Write([]byte(data)); err != nil {
		webLog.Warn("input_write_failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
}

func (h *connHandler) Resize(sessionID string, cols, rows int) {
	sess, ok := h.srv.registry.Get(sessionID)
	if !ok {
		return
	}
	if err := sess.Resize(cols, rows); err != nil {
		webLog.Warn("resize_failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
}

func (h *connHandler) NewSession(name string) {
	sess, err := h.srv.createSession(name)
	if err != nil {
		webLog.Error("session_create_failed", slog.String("error", err.Error()))
		return
	}
	h.srv.broadcast(proto.SessionCreated(sess.ID, sess.DisplayName))
	h.srv.broadcast(proto.SessionSwitched(sess.ID))
	h.srv.notifySessionsChanged()
}

func (h *connHandler) CloseSession(sessionID string) {
	h.srv.removeSession(sessionID)
}

// SwitchSession foregrounds another session. The surface gets a clear so it
// can repaint from the switched-to session's subsequent output.
func (h *connHandler) SwitchSession(sessionID string) {
	if err := h.srv.registry.SetActive(sessionID); err != nil {
		webLog.Warn("switch_to_unknown_session", slog.String("session_id", sessionID))
		return
	}
	if h.srv.cfg.DB != nil {
		_ = h.srv.cfg.DB.Touch(sessionID)
	}
	h.srv.broadcast(proto.Clear(sessionID))
	h.srv.broadcast(proto.SessionSwitched(sessionID))
	h.srv.notifySessionsChanged()
}
