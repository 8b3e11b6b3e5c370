package relay

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// Identity is what the transport knows about a connection before it joins
// a room. Both fields may be empty for anonymous connections.
type Identity struct {
	UserID   string
	UserName string
}

// Conn is one participant connection. Send is closed by the hub when the
// connection is removed.
type Conn struct {
	ID       string
	Identity Identity
	Send     chan []byte

	ws      *websocket.Conn
	limiter *rate.Limiter
}

func (h *Hub) newConn(identity Identity, ws *websocket.Conn) *Conn {
	limit := rate.Inf
	if h.opts.RateLimit > 0 {
		limit = rate.Limit(h.opts.RateLimit)
	}
	return &Conn{
		ID:       uuid.NewString(),
		Identity: identity,
		Send:     make(chan []byte, h.opts.SendBuffer),
		ws:       ws,
		limiter:  rate.NewLimiter(limit, h.opts.RateBurst),
	}
}

// Serve runs a websocket connection until it closes.
func (h *Hub) Serve(ws *websocket.Conn, identity Identity) {
	c := h.newConn(identity, ws)
	if !h.attach(c) {
		_ = ws.Close()
		return
	}
	go c.writePump()
	c.readPump(h)
}

func (c *Conn) readPump(h *Hub) {
	defer func() {
		h.Detach(c)
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Conn.readPump - connection %s closed: %v", c.ID, err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		h.Receive(c, message)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Conn.writePump - error writing to %s: %v", c.ID, err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
