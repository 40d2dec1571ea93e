package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/messenjrali/msgr/internal/api"
	"github.com/messenjrali/msgr/internal/bus"
	"github.com/messenjrali/msgr/internal/config"
	"github.com/messenjrali/msgr/internal/lock"
	"github.com/messenjrali/msgr/internal/notify"
	"github.com/messenjrali/msgr/internal/outbox"
	"github.com/messenjrali/msgr/internal/realtime"
	"github.com/messenjrali/msgr/internal/rest"
	"github.com/messenjrali/msgr/internal/roster"
	"github.com/messenjrali/msgr/internal/session"
	"github.com/messenjrali/msgr/internal/status"
	"github.com/messenjrali/msgr/internal/store"
	"go.uber.org/zap"
)

// buildServer wires the daemon components by hand, the way the fx module
// does, against a throwaway profile directory.
func buildServer(t *testing.T, socketPath string) (*Server, *store.DB) {
	t.Helper()

	profileDir := filepath.Dir(socketPath)

	db, err := store.Open(filepath.Join(profileDir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	creds, err := session.NewStore(filepath.Join(profileDir, "credentials.json"))
	if err != nil {
		t.Fatal(err)
	}

	logger := zap.NewNop()
	b := bus.New()
	machine := status.NewMachine(b)
	client := rest.NewClient("http://127.0.0.1:1", creds, logger)
	rt := realtime.NewManager("ws://127.0.0.1:1/ws", creds, b, machine, logger)
	rec := roster.New(client, creds, db, b, logger)
	notifications := notify.NewStore(client, db, b, logger)
	sender := outbox.NewSender(db, client, b, logger)

	handler := api.NewHandler(api.Params{
		Profile: "test",
		Machine: machine,
		Creds:   creds,
		Rest:    client,
		Rt:      rt,
		Roster:  rec,
		Notify:  notifications,
		Outbox:  sender,
		Config:  config.Default(),
		Logger:  logger,
	})

	srv, err := NewServer(
		Params{ProfileName: "test", SocketPath: socketPath},
		logger, handler, rt, b, notifications,
	)
	if err != nil {
		t.Fatal(err)
	}
	return srv, db
}

func socketClient(socketPath string) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
		Timeout: 5 * time.Second,
	}
}

func TestDaemonLifecycle(t *testing.T) {
	// Use a short path to avoid the 104-char Unix socket limit.
	tmpDir, err := os.MkdirTemp("/tmp", "msgr-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	socketPath := filepath.Join(tmpDir, "d.sock")

	lk, err := lock.Acquire(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	srv, db := buildServer(t, socketPath)
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	time.Sleep(50 * time.Millisecond)

	// Socket must be private to the user.
	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket perm = %o, want 0600", perm)
	}

	client := socketClient(socketPath)

	resp, err := client.Get("http://msgr/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz code = %d, want 200", resp.StatusCode)
	}

	resp, err = client.Get("http://msgr/v1/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var st struct {
		Profile   string `json:"profile"`
		State     string `json:"state"`
		Connected bool   `json:"connected"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if st.Profile != "test" {
		t.Errorf("profile = %q, want %q", st.Profile, "test")
	}
	if st.State != string(status.Booting) {
		t.Errorf("state = %q, want %q", st.State, status.Booting)
	}
	if st.Connected {
		t.Error("connected = true, want false")
	}

	// Conversations come from the cache even with the backend unreachable.
	if err := db.ReplaceConversations([]store.Conversation{
		{ID: "A", Kind: store.KindGroup, DisplayName: "Cached", LastMessageAt: 100},
	}); err != nil {
		t.Fatal(err)
	}

	resp, err = client.Get("http://msgr/v1/conversations")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("conversations code = %d, want 200", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "msgr-metrics-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	socketPath := filepath.Join(tmpDir, "d.sock")
	srv, _ := buildServer(t, socketPath)
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	time.Sleep(50 * time.Millisecond)

	resp, err := socketClient(socketPath).Get("http://msgr/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics code = %d, want 200", resp.StatusCode)
	}
	for _, name := range []string{
		"msgr_realtime_connected",
		"msgr_realtime_reconnects_total",
		"msgr_bus_dropped_events_total",
		"msgr_notifications_unread",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestServerRemovesStaleSocket(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "msgr-stale-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	socketPath := filepath.Join(tmpDir, "d.sock")

	// Leave a dead socket behind, as a crashed daemon would.
	l, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	_ = l.Close()
	if _, err := os.Stat(socketPath); err == nil {
		// Some platforms unlink on close; recreate a plain file to be sure.
		_ = os.Remove(socketPath)
	}
	if err := os.WriteFile(socketPath, nil, 0600); err != nil {
		t.Fatal(err)
	}

	srv, _ := buildServer(t, socketPath)
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	time.Sleep(50 * time.Millisecond)

	resp, err := socketClient(socketPath).Get("http://msgr/healthz")
	if err != nil {
		t.Fatalf("healthz after stale socket: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz code = %d, want 200", resp.StatusCode)
	}
}
