package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"playground-go/internal/playground"
)

const consoleWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Clients authenticate with the auth_token query parameter.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Console message types.
const (
	MessageOutput = "output"
	MessageReady  = "ready"
	MessageError  = "error"
)

// ConsoleMessage is one frame sent over the console websocket.
type ConsoleMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type readyPayload struct {
	Port int    `json:"port"`
	URL  string `json:"url"`
}

// consoleConn serializes writes to a websocket. Once a write fails or the
// connection is closed every later write fails.
type consoleConn struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func (c *consoleConn) send(typ string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("console closed")
	}
	c.conn.SetWriteDeadline(time.Now().Add(consoleWriteWait))
	if err := c.conn.WriteJSON(ConsoleMessage{Type: typ, Payload: raw}); err != nil {
		c.closed = true
		return err
	}
	return nil
}

// Write sends process output as an output message.
func (c *consoleConn) Write(b []byte) (int, error) {
	if err := c.send(MessageOutput, string(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *consoleConn) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.conn.Close()
}

// handleConsole upgrades to a websocket, sets the project's sandbox up and
// streams its console until the client goes away. The sandbox server keeps
// running afterwards so the next connection reconnects to it.
func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	p, sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if s.sandboxes == nil {
		writeError(w, http.StatusServiceUnavailable, "sandbox is not configured")
		return
	}
	pipe, err := s.sandboxes.Pipeline(p.ID, p.Template)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("console upgrade failed", "project", p.ID, "error", err)
		return
	}
	conn := &consoleConn{conn: ws}
	defer conn.close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain incoming frames so close and ping frames are handled.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ready, err := pipe.Run(ctx, sess.Tree(), conn)
	if err != nil {
		if errors.Is(err, playground.ErrSetupInProgress) {
			s.logger.Debug("console attached while setup runs", "project", p.ID)
		}
		conn.send(MessageError, err.Error())
		return
	}
	conn.send(MessageReady, readyPayload{Port: ready.Port, URL: ready.URL})

	<-ctx.Done()
	s.logger.Debug("console disconnected", "project", p.ID)
}
