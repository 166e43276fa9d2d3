package dispatch

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mindhaven/crisis-api/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024

	// sendQueueSize bounds the per-connection outbound buffer. A client that
	// falls this far behind is disconnected, not buffered indefinitely.
	sendQueueSize = 64
)

// Client wraps one websocket connection and implements Subscriber. Events are
// pushed through a bounded queue drained by WritePump; a full queue means the
// hub drops this client without stalling anyone else.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan models.Event
	done chan struct{}

	closeOnce sync.Once

	mu    sync.Mutex
	rooms map[string]struct{}
}

// NewClient wraps an upgraded websocket connection. Callers must start
// ReadPump and WritePump on their own goroutines.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:   hub,
		conn:  conn,
		send:  make(chan models.Event, sendQueueSize),
		done:  make(chan struct{}),
		rooms: make(map[string]struct{}),
	}
}

// Join subscribes the client to a room and remembers it for teardown.
func (c *Client) Join(roomID string) {
	c.mu.Lock()
	c.rooms[roomID] = struct{}{}
	c.mu.Unlock()
	c.hub.Subscribe(roomID, c)
}

// Leave unsubscribes the client from a room.
func (c *Client) Leave(roomID string) {
	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()
	c.hub.Unsubscribe(roomID, c)
}

// Enqueue implements Subscriber. It never blocks; false signals overflow.
func (c *Client) Enqueue(ev models.Event) bool {
	select {
	case <-c.done:
		// already closing, swallow silently
		return true
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Close tears down the connection and every room subscription. Safe to call
// from multiple goroutines; only the first call does work.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		rooms := make([]string, 0, len(c.rooms))
		for r := range c.rooms {
			rooms = append(rooms, r)
		}
		c.rooms = make(map[string]struct{})
		c.mu.Unlock()

		for _, r := range rooms {
			c.hub.Unsubscribe(r, c)
		}
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// WritePump drains the send queue onto the wire and keeps the connection
// alive with pings. Runs until Close or a write error.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// ReadPump reads inbound frames and hands them to onMessage. It owns the read
// side of the connection and triggers teardown when the peer goes away.
func (c *Client) ReadPump(onMessage func(data []byte)) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.S().Debugw("websocket read error", "error", err)
			}
			return
		}
		if onMessage != nil {
			onMessage(data)
		}
	}
}
