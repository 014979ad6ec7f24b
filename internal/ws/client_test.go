package ws

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taskboard/dashboard/internal/hub"
)

// dialTestWS creates a test HTTP server that upgrades to WebSocket and
// returns the server-side connection.
func dialTestWS(t *testing.T) (*httptest.Server, *websocket.Conn) {
	t.Helper()

	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCh <- c
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	_ = clientConn.Close()

	select {
	case serverConn := <-connCh:
		return srv, serverConn
	case <-time.After(2 * time.Second):
		srv.Close()
		t.Fatal("timed out waiting for server-side WebSocket connection")
		return nil, nil
	}
}

func TestWritePumpDropsSessionOnWriteError(t *testing.T) {
	srv, serverConn := dialTestWS(t)
	defer srv.Close()

	reg := hub.NewRegistry(hub.Options{})
	s := NewServer(reg, Options{})
	sess := hub.NewSession(8)
	if err := reg.Register(sess); err != nil {
		t.Fatal(err)
	}
	c := s.newClient(serverConn, sess)

	// Any write on a closed connection fails immediately.
	serverConn.Close()
	reg.Send(sess, hub.NewEvent(hub.Pong{}))

	go c.writePump()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reg.ConnectedCount() == 0 {
			if !sess.Closed() {
				t.Fatal("session still open after drop")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session not dropped after write error; ConnectedCount = %d", reg.ConnectedCount())
}

func TestWritePumpDropsSessionOnMarshalError(t *testing.T) {
	srv, serverConn := dialTestWS(t)
	defer srv.Close()

	reg := hub.NewRegistry(hub.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	s := NewServer(reg, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	sess := hub.NewSession(8)
	if err := reg.Register(sess); err != nil {
		t.Fatal(err)
	}
	c := s.newClient(serverConn, sess)

	done := make(chan struct{})
	go func() {
		c.writePump()
		close(done)
	}()

	// An event without a payload cannot be encoded.
	reg.Send(sess, hub.Event{})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writePump still running after marshal error")
	}
	if n := reg.ConnectedCount(); n != 0 {
		t.Fatalf("ConnectedCount = %d after marshal error, want 0", n)
	}
	if !sess.Closed() {
		t.Error("session still open after marshal error")
	}
}

func TestWritePumpExitsWhenSessionUnregistered(t *testing.T) {
	srv, serverConn := dialTestWS(t)
	defer srv.Close()

	reg := hub.NewRegistry(hub.Options{})
	s := NewServer(reg, Options{})
	sess := hub.NewSession(8)
	reg.Register(sess)
	c := s.newClient(serverConn, sess)

	done := make(chan struct{})
	go func() {
		c.writePump()
		close(done)
	}()
	reg.Unregister(sess)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writePump still running after Unregister")
	}
}
