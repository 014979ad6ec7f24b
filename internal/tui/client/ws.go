package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/taskboard/dashboard/internal/hub"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// WSClient manages the WebSocket connection to the dashboard server.
type WSClient struct {
	url string

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	seq     uint64
	pingCtx context.CancelFunc
}

// NewWSClient creates a client for the given ws:// URL.
func NewWSClient(url string) *WSClient {
	return &WSClient{url: url}
}

// WebSocketURL derives the /ws endpoint from an http(s) base URL.
func WebSocketURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("client: unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), nil
}

// --- Bubble Tea messages ---

// WSConnectedMsg is sent when the WebSocket connects.
type WSConnectedMsg struct{}

// WSDisconnectedMsg is sent when the connection drops.
type WSDisconnectedMsg struct{ Err error }

// DatabaseUpdateMsg is sent when the server saw the database change.
type DatabaseUpdateMsg struct {
	Update hub.DatabaseUpdate
	Seq    uint64
}

// ConnectionCountMsg reports how many clients the server has.
type ConnectionCountMsg struct{ Count int }

// WSErrorMsg wraps a server-side error event.
type WSErrorMsg struct{ Message string }

// WSEventMsg carries any other event, e.g. pong or keepalive pings.
type WSEventMsg struct{ Event hub.Event }

// Listen returns a command that connects, retrying with exponential
// backoff until it succeeds or ctx is done.
func (c *WSClient) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		delay := reconnectBaseDelay
		for {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
			if err == nil {
				c.mu.Lock()
				if c.pingCtx != nil {
					c.pingCtx()
				}
				pingCtx, pingCancel := context.WithCancel(ctx)
				c.conn = conn
				c.seq = 0
				c.pingCtx = pingCancel
				c.mu.Unlock()

				go c.pingLoop(pingCtx, conn)
				return WSConnectedMsg{}
			}

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			delay = min(delay*2, reconnectMaxDelay)
		}
	}
}

// ReadLoop returns a command that reads until the next event worth
// reporting. Re-issue it after handling each message.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return WSDisconnectedMsg{Err: fmt.Errorf("no connection")}
		}

		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})
		conn.SetReadDeadline(time.Now().Add(pongTimeout))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.mu.Lock()
				if c.conn == conn {
					c.conn = nil
				}
				c.mu.Unlock()
				conn.Close()
				if ctx.Err() != nil {
					return nil
				}
				return WSDisconnectedMsg{Err: err}
			}
			conn.SetReadDeadline(time.Now().Add(pongTimeout))

			var ev hub.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				continue
			}
			c.mu.Lock()
			c.seq = ev.Seq
			c.mu.Unlock()

			if msg := dispatch(ev); msg != nil {
				return msg
			}
		}
	}
}

// pingLoop sends the text "ping" the server answers with a pong event.
func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cc := c.conn
			c.mu.Unlock()
			if cc != conn {
				return
			}
			if err := c.write(conn, []byte("ping")); err != nil {
				return
			}
		}
	}
}

// Ping sends one text ping now.
func (c *WSClient) Ping() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	return c.write(conn, []byte("ping"))
}

func (c *WSClient) write(conn *websocket.Conn, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close drops the current connection without reconnecting.
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pingCtx != nil {
		c.pingCtx()
		c.pingCtx = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Seq returns the last seen sequence number.
func (c *WSClient) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

func dispatch(ev hub.Event) tea.Msg {
	switch p := ev.Payload.(type) {
	case hub.DatabaseUpdate:
		return DatabaseUpdateMsg{Update: p, Seq: ev.Seq}
	case hub.ConnectionCount:
		return ConnectionCountMsg{Count: p.Count}
	case hub.ConnectionEstablished:
		return ConnectionCountMsg{Count: p.Connections}
	case hub.Ping:
		return ConnectionCountMsg{Count: p.Connections}
	case hub.Error:
		return WSErrorMsg{Message: p.Message}
	case nil:
		return nil
	default:
		return WSEventMsg{Event: ev}
	}
}
