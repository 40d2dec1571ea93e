package realtime

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/messenjrali/msgr/internal/bus"
	"github.com/messenjrali/msgr/internal/session"
	"github.com/messenjrali/msgr/internal/status"
	"go.uber.org/zap"
)

type wsServer struct {
	*httptest.Server
	upgrades atomic.Int32
	lastAuth atomic.Value // string
	frames   chan string
}

// newWSServer runs a websocket endpoint that records upgrades and relays
// frames queued on s.frames to the connected client.
func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{frames: make(chan string, 16)}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lastAuth.Store(r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.upgrades.Add(1)
		go func() {
			for frame := range s.frames {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
					return
				}
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func testManager(t *testing.T, url string, withToken bool) (*Manager, *bus.Bus, *status.Machine) {
	t.Helper()
	creds, err := session.NewStore(filepath.Join(t.TempDir(), "credentials.json"))
	if err != nil {
		t.Fatal(err)
	}
	if withToken {
		if err := creds.Save(&session.Credentials{AccessToken: "at-1", User: session.User{ID: "u1"}}); err != nil {
			t.Fatal(err)
		}
	}
	b := bus.New()
	machine := status.NewMachine(b)
	m := NewManager(url, creds, b, machine, zap.NewNop())
	t.Cleanup(m.Stop)
	return m, b, machine
}

func TestConnectIdempotent(t *testing.T) {
	srv := newWSServer(t)
	m, _, machine := testManager(t, srv.wsURL(), true)

	if err := m.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := m.Connect(); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}

	if !m.IsConnected() {
		t.Error("IsConnected() = false")
	}
	if got := srv.upgrades.Load(); got != 1 {
		t.Errorf("server saw %d connections, want exactly 1", got)
	}
	if machine.Current() != status.Connected {
		t.Errorf("state = %s, want CONNECTED", machine.Current())
	}
	if auth, _ := srv.lastAuth.Load().(string); auth != "Bearer at-1" {
		t.Errorf("auth header = %q", auth)
	}
}

func TestConnectWithoutTokenIsNoop(t *testing.T) {
	srv := newWSServer(t)
	m, _, machine := testManager(t, srv.wsURL(), false)

	if err := m.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if m.IsConnected() {
		t.Error("connected without a token")
	}
	if srv.upgrades.Load() != 0 {
		t.Error("server saw a connection attempt without a token")
	}
	if machine.Current() != status.AuthRequired {
		t.Errorf("state = %s, want AUTH_REQUIRED", machine.Current())
	}
}

func TestConnectFailureIsNotFatal(t *testing.T) {
	m, _, machine := testManager(t, "ws://127.0.0.1:1/ws", true)

	if err := m.Connect(); err == nil {
		t.Fatal("Connect() expected dial error")
	}
	if m.IsConnected() {
		t.Error("IsConnected() = true after failed dial")
	}
	if machine.Current() != status.Reconnecting {
		t.Errorf("state = %s, want RECONNECTING", machine.Current())
	}
	// A later Connect still works; no poisoned state.
	srv := newWSServer(t)
	m.url = srv.wsURL()
	if err := m.Connect(); err != nil {
		t.Fatalf("recovery Connect() error = %v", err)
	}
}

func TestInboundFramePublished(t *testing.T) {
	srv := newWSServer(t)
	m, b, _ := testManager(t, srv.wsURL(), true)

	ch, unsub := b.Subscribe("rt.", 16)
	defer unsub()

	if err := m.Connect(); err != nil {
		t.Fatal(err)
	}
	srv.frames <- `{"event":"receive_message","data":{"chat_id":"c1","sender_id":"u2","content":"hi"}}`

	select {
	case evt := <-ch:
		if evt.Kind != "rt.message" {
			t.Fatalf("Kind = %q", evt.Kind)
		}
		msg := evt.Payload.(*MessageEvent)
		if msg.ConversationID != "c1" {
			t.Errorf("ConversationID = %q", msg.ConversationID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for rt.message")
	}
}

func TestDisconnectSafeWhenDown(t *testing.T) {
	srv := newWSServer(t)
	m, _, _ := testManager(t, srv.wsURL(), true)

	m.Disconnect() // never connected

	if err := m.Connect(); err != nil {
		t.Fatal(err)
	}
	m.Disconnect()
	m.Disconnect() // twice is fine
	if m.IsConnected() {
		t.Error("still connected after Disconnect")
	}
}

func TestReconnectCountsGenerations(t *testing.T) {
	srv := newWSServer(t)
	m, _, _ := testManager(t, srv.wsURL(), true)

	if err := m.Connect(); err != nil {
		t.Fatal(err)
	}
	m.Disconnect()
	if err := m.Connect(); err != nil {
		t.Fatal(err)
	}

	if srv.upgrades.Load() != 2 {
		t.Errorf("server saw %d connections, want 2", srv.upgrades.Load())
	}
	if m.Reconnects() != 1 {
		t.Errorf("Reconnects() = %d, want 1", m.Reconnects())
	}
}
