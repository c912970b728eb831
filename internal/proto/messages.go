// Package proto defines the message contract between the core and the
// presentation surface. Each direction is a typed tagged union dispatched by
// its Type field; the package holds no state and makes no transport
// assumptions. Delivery is not exactly-once: consumers of inbound messages
// must stay idempotent to duplicates.
package proto

import "fmt"

// Inbound message types (presentation surface → core).
const (
	TypeReady         = "ready"
	TypeInput         = "input"
	TypeResize        = "resize"
	TypeNewSession    = "newSession"
	TypeCloseSession  = "closeSession"
	TypeSwitchSession = "switchSession"
)

// Outbound message types (core → presentation surface).
const (
	TypeOutput            = "output"
	TypeClear             = "clear"
	TypeSessionListUpdate = "sessionListUpdate"
	TypeSessionCreated    = "sessionCreated"
	TypeSessionSwitched   = "sessionSwitched"
	TypeSessionRemoved    = "sessionRemoved"
	TypeWaitStateChanged  = "waitStateChanged"
)

// ClientMessage is one inbound message from the presentation surface.
// Fields beyond Type are populated per tag.
type ClientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      string `json:"data,omitempty"`
	Cols      int    `json:"cols,omitempty"`
	Rows      int    `json:"rows,omitempty"`
	Name      string `json:"name,omitempty"`
}

// SessionInfo is one entry of a sessionListUpdate.
type SessionInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsActive  bool   `json:"isActive"`
	WaitState string `json:"waitState"`
}

// ServerMessage is one outbound message to the presentation surface.
type ServerMessage struct {
	Type      string        `json:"type"`
	SessionID string        `json:"sessionId,omitempty"`
	Data      string        `json:"data,omitempty"`
	Name      string        `json:"name,omitempty"`
	IsWaiting bool          `json:"isWaiting,omitempty"`
	Sessions  []SessionInfo `json:"sessions,omitempty"`
}

// Output wraps a raw passthrough chunk for one session.
func Output(sessionID string, data []byte) ServerMessage {
	return ServerMessage{Type: TypeOutput, SessionID: sessionID, Data: string(data)}
}

// Clear tells the surface to reset one session's terminal view.
func Clear(sessionID string) ServerMessage {
	return ServerMessage{Type: TypeClear, SessionID: sessionID}
}

// SessionListUpdate carries the full current session list.
func SessionListUpdate(sessions []SessionInfo) ServerMessage {
	return ServerMessage{Type: TypeSessionListUpdate, Sessions: sessions}
}

// SessionCreated announces a new session.
func SessionCreated(sessionID, name string) ServerMessage {
	return ServerMessage{Type: TypeSessionCreated, SessionID: sessionID, Name: name}
}

// SessionSwitched announces the new foreground session.
func SessionSwitched(sessionID string) ServerMessage {
	return ServerMessage{Type: TypeSessionSwitched, SessionID: sessionID}
}

// SessionRemoved announces a session's removal, after its final buffered
// output has been flushed.
func SessionRemoved(sessionID string) ServerMessage {
	return ServerMessage{Type: TypeSessionRemoved, SessionID: sessionID}
}

// WaitStateChanged announces a prompt-wait transition for one session.
func WaitStateChanged(sessionID string, isWaiting bool) ServerMessage {
	return ServerMessage{Type: TypeWaitStateChanged, SessionID: sessionID, IsWaiting: isWaiting}
}

// ClientHandler receives dispatched inbound messages.
type ClientHandler interface {
	Ready()
	Input(sessionID, data string)
	Resize(sessionID string, cols, rows int)
	NewSession(name string)
	CloseSession(sessionID string)
	SwitchSession(sessionID string)
}

// DispatchClient routes one inbound message to the handler by tag. Unknown
// tags are an error; everything else is forwarded as-is, leaving idempotency
// decisions to the handler.
func DispatchClient(msg ClientMessage, h ClientHandler) error {
	switch msg.Type {
	case TypeReady:
		h.Ready()
	case TypeInput:
		h.Input(msg.SessionID, msg.Data)
	case TypeResize:
		h.Resize(msg.SessionID, msg.Cols, msg.Rows)
	case TypeNewSession:
		h.NewSession(msg.Name)
	case TypeCloseSession:
		h.CloseSession(msg.SessionID)
	case TypeSwitchSession:
		h.SwitchSession(msg.SessionID)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}
