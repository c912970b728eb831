package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/HarikaMhae/claude-terminal-panel/internal/classify"
	"github.com/HarikaMhae/claude-terminal-panel/internal/proto"
	"github.com/HarikaMhae/claude-terminal-panel/internal/session"
)

// fakeProcess stands in for a PTY-backed process. Tests drive output and
// exit through the callbacks captured at spawn time.
type fakeProcess struct {
	mu      sync.Mutex
	inputs  []string
	resizes [][2]int
	killed  bool
}

func (f *fakeProcess) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, string(p))
	return nil
}

func (f *fakeProcess) Resize(cols, rows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, [2]int{cols, rows})
	return nil
}

func (f *fakeProcess) Kill() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = true
	return nil
}

func (f *fakeProcess) inputLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

func (f *fakeProcess) wasKilled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.killed
}

type spawned struct {
	proc   *fakeProcess
	onData func([]byte)
	onExit func(int, string)
}

// fakeSpawner records every spawned process so tests can emit output and
// exits on demand.
type fakeSpawner struct {
	mu    sync.Mutex
	procs []*spawned
}

func (fs *fakeSpawner) spawn(onData func([]byte), onExit func(int, string)) (session.ProcessHandle, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	sp := &spawned{proc: &fakeProcess{}, onData: onData, onExit: onExit}
	fs.procs = append(fs.procs, sp)
	return sp.proc, nil
}

func (fs *fakeSpawner) last(t *testing.T) *spawned {
	t.Helper()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	require.NotEmpty(t, fs.procs, "no process spawned")
	return fs.procs[len(fs.procs)-1]
}

// testClient wraps a websocket connection and collects server messages.
type testClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
	msgs []proto.ServerMessage
}

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(cfg)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return srv, ts
}

func dialClient(t *testing.T, ts *httptest.Server, query string) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &testClient{conn: conn}
	go func() {
		for {
			var msg proto.ServerMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			c.mu.Lock()
			c.msgs = append(c.msgs, msg)
			c.mu.Unlock()
		}
	}()
	return c
}

func (c *testClient) send(t *testing.T, msg proto.ClientMessage) {
	t.Helper()
	require.NoError(t, c.conn.WriteJSON(msg))
}

// waitFor polls until a message of the given type arrives and returns it.
func (c *testClient) waitFor(t *testing.T, msgType string) proto.ServerMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		for _, m := range c.msgs {
			if m.Type == msgType {
				c.mu.Unlock()
				return m
			}
		}
		c.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no %q message within deadline", msgType)
	return proto.ServerMessage{}
}

func (c *testClient) countOf(msgType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.msgs {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

func TestNewSessionAnnouncesAndActivates(t *testing.T) {
	fs := &fakeSpawner{}
	srv, ts := newTestServer(t, Config{Spawn: fs.spawn})

	c := dialClient(t, ts, "")
	c.send(t, proto.ClientMessage{Type: proto.TypeNewSession, Name: "work"})

	created := c.waitFor(t, proto.TypeSessionCreated)
	require.Equal(t, "work", created.Name)
	require.NotEmpty(t, created.SessionID)

	switched := c.waitFor(t, proto.TypeSessionSwitched)
	require.Equal(t, created.SessionID, switched.SessionID)

	list := c.waitFor(t, proto.TypeSessionListUpdate)
	require.Len(t, list.Sessions, 1)
	require.True(t, list.Sessions[0].IsActive)
	require.Equal(t, created.SessionID, srv.Registry().ActiveID())
}

func TestReadySendsSessionList(t *testing.T) {
	fs := &fakeSpawner{}
	srv, ts := newTestServer(t, Config{Spawn: fs.spawn})
	_, err := srv.createSession("pre-existing")
	require.NoError(t, err)

	c := dialClient(t, ts, "")
	c.send(t, proto.ClientMessage{Type: proto.TypeReady})

	list := c.waitFor(t, proto.TypeSessionListUpdate)
	require.Len(t, list.Sessions, 1)
	require.Equal(t, "pre-existing", list.Sessions[0].Name)
}

func TestInputForwardedVerbatimIncludingDuplicates(t *testing.T) {
	fs := &fakeSpawner{}
	srv, ts := newTestServer(t, Config{Spawn: fs.spawn})
	sess, err := srv.createSession("s")
	require.NoError(t, err)

	c := dialClient(t, ts, "")
	c.send(t, proto.ClientMessage{Type: proto.TypeInput, SessionID: sess.ID, Data: "ls\r"})
	c.send(t, proto.ClientMessage{Type: proto.TypeInput, SessionID: sess.ID, Data: "ls\r"})

	proc := fs.last(t).proc
	require.Eventually(t, func() bool {
		return len(proc.inputLog()) == 2
	}, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"ls\r", "ls\r"}, proc.inputLog())
}

func TestInputForUnknownSessionIsIgnored(t *testing.T) {
	fs := &fakeSpawner{}
	_, ts := newTestServer(t, Config{Spawn: fs.spawn})

	c := dialClient(t, ts, "")
	c.send(t, proto.ClientMessage{Type: proto.TypeInput, SessionID: "ghost", Data: "x"})
	c.send(t, proto.ClientMessage{Type: proto.TypeReady})
	// The connection survives; ready still answers.
	c.waitFor(t, proto.TypeSessionListUpdate)
}

func TestProcessOutputReachesClient(t *testing.T) {
	fs := &fakeSpawner{}
	srv, ts := newTestServer(t, Config{Spawn: fs.spawn})
	sess, err := srv.createSession("s")
	require.NoError(t, err)

	c := dialClient(t, ts, "")
	fs.last(t).onData([]byte("hello from shell"))

	out := c.waitFor(t, proto.TypeOutput)
	require.Equal(t, sess.ID, out.SessionID)
	require.Equal(t, "hello from shell", out.Data)
}

func TestProcessExitRemovesSessionAfterFinalOutput(t *testing.T) {
	fs := &fakeSpawner{}
	srv, ts := newTestServer(t, Config{Spawn: fs.spawn})
	sess, err := srv.createSession("s")
	require.NoError(t, err)

	c := dialClient(t, ts, "")
	sp := fs.last(t)
	sp.onData([]byte("goodbye"))
	sp.onExit(0, "")

	removed := c.waitFor(t, proto.TypeSessionRemoved)
	require.Equal(t, sess.ID, removed.SessionID)
	out := c.waitFor(t, proto.TypeOutput)
	require.Equal(t, "goodbye", out.Data)
	_, ok := srv.Registry().Get(sess.ID)
	require.False(t, ok)
}

func TestCloseSessionKillsProcess(t *testing.T) {
	fs := &fakeSpawner{}
	srv, ts := newTestServer(t, Config{Spawn: fs.spawn})
	sess, err := srv.createSession("s")
	require.NoError(t, err)

	c := dialClient(t, ts, "")
	c.send(t, proto.ClientMessage{Type: proto.TypeCloseSession, SessionID: sess.ID})

	removed := c.waitFor(t, proto.TypeSessionRemoved)
	require.Equal(t, sess.ID, removed.SessionID)
	require.Eventually(t, func() bool {
		return fs.last(t).proc.wasKilled()
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRemovingActiveSessionPromotesNext(t *testing.T) {
	fs := &fakeSpawner{}
	srv, ts := newTestServer(t, Config{Spawn: fs.spawn})
	first, err := srv.createSession("first")
	require.NoError(t, err)
	second, err := srv.createSession("second")
	require.NoError(t, err)
	require.Equal(t, second.ID, srv.Registry().ActiveID())

	c := dialClient(t, ts, "")
	c.send(t, proto.ClientMessage{Type: proto.TypeCloseSession, SessionID: second.ID})

	switched := c.waitFor(t, proto.TypeSessionSwitched)
	require.Equal(t, first.ID, switched.SessionID)
	require.Equal(t, first.ID, srv.Registry().ActiveID())
}

func TestSwitchSessionClearsAndAnnounces(t *testing.T) {
	fs := &fakeSpawner{}
	srv, ts := newTestServer(t, Config{Spawn: fs.spawn})
	first, err := srv.createSession("first")
	require.NoError(t, err)
	_, err = srv.createSession("second")
	require.NoError(t, err)

	c := dialClient(t, ts, "")
	c.send(t, proto.ClientMessage{Type: proto.TypeSwitchSession, SessionID: first.ID})

	clearMsg := c.waitFor(t, proto.TypeClear)
	require.Equal(t, first.ID, clearMsg.SessionID)
	switched := c.waitFor(t, proto.TypeSessionSwitched)
	require.Equal(t, first.ID, switched.SessionID)
}

func TestWaitStateRelayedToClient(t *testing.T) {
	fs := &fakeSpawner{}
	srv, ts := newTestServer(t, Config{
		Spawn:     fs.spawn,
		Detection: classify.Options{Enabled: true, ShowDelay: 25 * time.Millisecond},
	})
	sess, err := srv.createSession("s")
	require.NoError(t, err)

	c := dialClient(t, ts, "")
	fs.last(t).onData([]byte("Do you want to proceed? (y/n): "))

	wait := c.waitFor(t, proto.TypeWaitStateChanged)
	require.Equal(t, sess.ID, wait.SessionID)
	require.True(t, wait.IsWaiting)
}

func TestListUpdatesCoalesceUnderBurst(t *testing.T) {
	fs := &fakeSpawner{}
	srv, ts := newTestServer(t, Config{Spawn: fs.spawn})

	c := dialClient(t, ts, "")
	for i := 0; i < 10; i++ {
		_, err := srv.createSession("s")
		require.NoError(t, err)
		srv.notifySessionsChanged()
	}

	c.waitFor(t, proto.TypeSessionListUpdate)
	// Trailing-edge coalescing: far fewer updates than notifications.
	time.Sleep(500 * time.Millisecond)
	require.LessOrEqual(t, c.countOf(proto.TypeSessionListUpdate), 4)
}

func TestAuthTokenRequired(t *testing.T) {
	fs := &fakeSpawner{}
	_, ts := newTestServer(t, Config{Spawn: fs.spawn, Token: "secret"})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	dialClient(t, ts, "?token=secret")
}

func TestHealthz(t *testing.T) {
	fs := &fakeSpawner{}
	_, ts := newTestServer(t, Config{Spawn: fs.spawn})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
