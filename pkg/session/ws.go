package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// wsConn serializes writes to one WebSocket connection. Gorilla allows only
// one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(out Outbound) error {
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// HandleWS upgrades the request and runs the chat loop until the client
// disconnects. Each inbound message is processed in its own goroutine so a
// slow tool call never blocks the next message; responses are emitted as
// their requests finish processing.
func (s *Service) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed: %v", err)
		return
	}

	if s.observer != nil {
		s.observer.SessionOpened()
	}
	s.logger.Info("session connected from %s", r.RemoteAddr)

	client := &wsConn{conn: conn}
	// Deliberately not tied to the request context: a client disconnect
	// does not abort an in-flight tool call, the call runs to completion
	// and its result is discarded.
	ctx := context.Background()
	var inflight sync.WaitGroup

	defer func() {
		inflight.Wait()
		_ = conn.Close()
		if s.observer != nil {
			s.observer.SessionClosed()
		}
		s.logger.Info("session from %s closed", r.RemoteAddr)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error: %v", err)
			}
			return
		}

		inflight.Add(1)
		go func(raw []byte) {
			defer inflight.Done()
			out := s.HandleRaw(ctx, raw)
			if err := client.send(out); err != nil {
				s.logger.Debug("websocket write failed: %v", err)
			}
		}(raw)
	}
}
