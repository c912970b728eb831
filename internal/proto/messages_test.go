package proto

import (
	"encoding/json"
	"testing"
)

type recordingHandler struct {
	calls []string
}

func (r *recordingHandler) Ready()                   { r.calls = append(r.calls, "ready") }
func (r *recordingHandler) Input(id, data string)    { r.calls = append(r.calls, "input:"+id+":"+data) }
func (r *recordingHandler) NewSession(name string)   { r.calls = append(r.calls, "new:"+name) }
func (r *recordingHandler) CloseSession(id string)   { r.calls = append(r.calls, "close:"+id) }
func (r *recordingHandler) SwitchSession(id string)  { r.calls = append(r.calls, "switch:"+id) }
func (r *recordingHandler) Resize(id string, cols, rows int) {
	r.calls = append(r.calls, "resize:"+id)
}

func TestDispatchClient(t *testing.T) {
	h := &recordingHandler{}
	msgs := []ClientMessage{
		{Type: TypeReady},
		{Type: TypeInput, SessionID: "s1", Data: "ls\n"},
		{Type: TypeResize, SessionID: "s1", Cols: 80, Rows: 24},
		{Type: TypeNewSession, Name: "build"},
		{Type: TypeCloseSession, SessionID: "s1"},
		{Type: TypeSwitchSession, SessionID: "s2"},
	}
	for _, m := range msgs {
		if err := DispatchClient(m, h); err != nil {
			t.Fatalf("dispatch %s: %v", m.Type, err)
		}
	}
	want := []string{"ready", "input:s1:ls\n", "resize:s1", "new:build", "close:s1", "switch:s2"}
	if len(h.calls) != len(want) {
		t.Fatalf("calls = %v", h.calls)
	}
	for i := range want {
		if h.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, h.calls[i], want[i])
		}
	}
}

func TestDispatchClientUnknownType(t *testing.T) {
	h := &recordingHandler{}
	if err := DispatchClient(ClientMessage{Type: "teleport"}, h); err == nil {
		t.Error("expected error for unknown tag")
	}
	if len(h.calls) != 0 {
		t.Error("handler invoked for unknown tag")
	}
}

func TestServerMessageJSONShape(t *testing.T) {
	msg := WaitStateChanged("s1", true)
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"waitStateChanged","sessionId":"s1","isWaiting":true}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}

	// The false case drops the flag via omitempty; consumers key off the
	// tag plus sessionId and read IsWaiting with its zero default.
	msg = WaitStateChanged("s1", false)
	data, _ = json.Marshal(msg)
	var decoded ServerMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.IsWaiting {
		t.Error("round-trip corrupted isWaiting=false")
	}
}

func TestSessionListUpdate(t *testing.T) {
	msg := SessionListUpdate([]SessionInfo{
		{ID: "a", Name: "alpha", IsActive: true, WaitState: "idle"},
		{ID: "b", Name: "beta", WaitState: "waiting"},
	})
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded ServerMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Sessions) != 2 || decoded.Sessions[1].WaitState != "waiting" {
		t.Errorf("decoded = %+v", decoded)
	}
}
