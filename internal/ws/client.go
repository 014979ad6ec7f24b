package ws

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/taskboard/dashboard/internal/hub"
)

// maxMessageSize bounds inbound frames. Clients only ever send "ping".
const maxMessageSize = 4096

type client struct {
	conn    *websocket.Conn
	sess    *hub.Session
	srv     *Server
	limiter *rate.Limiter

	dropOnce sync.Once
}

func (s *Server) newClient(conn *websocket.Conn, sess *hub.Session) *client {
	return &client{
		conn:    conn,
		sess:    sess,
		srv:     s,
		limiter: rate.NewLimiter(s.opts.messageLimit(), s.opts.MessageBurst),
	}
}

// writePump drains the session queue onto the socket and sends ping
// frames. It owns every write to conn.
func (c *client) writePump() {
	ticker := time.NewTicker(c.srv.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.sess.Events():
			if !ok {
				// Unregistered, either by disconnect or for falling behind.
				c.conn.SetWriteDeadline(time.Now().Add(c.srv.opts.WriteTimeout))
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				// The session cannot be trusted to have seen every event.
				c.srv.log.Error("ws: marshal event", "session", c.sess.ID(), "kind", ev.Kind(), "err", err)
				c.srv.drop(c)
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(c.srv.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.srv.log.Debug("ws: write failed", "session", c.sess.ID(), "err", err)
				c.srv.drop(c)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.srv.opts.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.srv.drop(c)
				return
			}
		}
	}
}

// readPump consumes inbound frames until the peer goes away or stops
// answering pings.
func (c *client) readPump() {
	defer c.srv.drop(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.srv.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.sess.Touch()
		return c.conn.SetReadDeadline(time.Now().Add(c.srv.opts.PongTimeout))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.srv.log.Debug("ws: read failed", "session", c.sess.ID(), "err", err)
			}
			return
		}
		c.sess.Touch()
		c.conn.SetReadDeadline(time.Now().Add(c.srv.opts.PongTimeout))

		if !c.limiter.Allow() {
			c.srv.reg.Send(c.sess, hub.NewEvent(hub.Error{Message: "rate limit exceeded"}))
			continue
		}
		if strings.EqualFold(strings.TrimSpace(string(msg)), "ping") {
			c.srv.reg.Send(c.sess, hub.NewEvent(hub.Pong{}))
		}
	}
}
