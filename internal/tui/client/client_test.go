package client

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

// serveSocket runs a handler on a throwaway Unix socket and returns the path.
func serveSocket(t *testing.T, handler http.Handler) string {
	t.Helper()
	tmpDir, err := os.MkdirTemp("/tmp", "msgr-client-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	socketPath := filepath.Join(tmpDir, "d.sock")
	l, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	srv := &http.Server{Handler: handler}
	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() { _ = srv.Close() })
	return socketPath
}

func TestStatusRoundTrip(t *testing.T) {
	socketPath := serveSocket(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/status" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(Status{
			Profile: "main", State: "CONNECTED", Connected: true,
			User: &User{ID: "u2", DisplayName: "Ada Lovelace"},
		})
	}))

	c := New(socketPath)
	st, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Profile != "main" || !st.Connected {
		t.Errorf("status = %+v, want connected main", st)
	}
	if st.User == nil || st.User.DisplayName != "Ada Lovelace" {
		t.Errorf("user = %+v, want Ada Lovelace", st.User)
	}
}

func TestSendPostsBody(t *testing.T) {
	var gotPath, gotBody string
	socketPath := serveSocket(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req struct {
			Body string `json:"body"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotBody = req.Body
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"client_msg_id": "c-1"})
	}))

	c := New(socketPath)
	id, err := c.Send(context.Background(), "conv 1", "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id != "c-1" {
		t.Errorf("client msg id = %q, want %q", id, "c-1")
	}
	if gotPath != "/v1/conversations/conv%201/messages" {
		t.Errorf("path = %q, want escaped conversation id", gotPath)
	}
	if gotBody != "hello" {
		t.Errorf("body = %q, want %q", gotBody, "hello")
	}
}

func TestErrorSurfacesDaemonMessage(t *testing.T) {
	socketPath := serveSocket(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "not logged in"})
	}))

	c := New(socketPath)
	if _, err := c.Conversations(context.Background()); err == nil {
		t.Fatal("expected error")
	} else if got := err.Error(); got != "daemon returned 401: not logged in" {
		t.Errorf("error = %q, want daemon message surfaced", got)
	}
}

func TestDaemonDown(t *testing.T) {
	c := New("/tmp/does-not-exist/msgr.sock")
	if _, err := c.Status(context.Background()); err == nil {
		t.Fatal("expected error when the daemon socket is missing")
	}
}
