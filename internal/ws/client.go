package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"

	"github.com/scriptflow/gateway/internal/model"
)

const (
	sendBuffer   = 256
	pingInterval = 30 * time.Second
)

var (
	ErrSlowConsumer = errors.New("subscriber send buffer full")
	ErrClosed       = errors.New("connection closed")
)

// Client adapts one websocket connection to the registry's Sender interface.
// Sends go through a buffered channel drained by a single writer goroutine,
// which keeps per-connection delivery ordered and keeps a slow subscriber
// from blocking the publisher: a full buffer fails the send and the registry
// prunes the connection.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	log  zerolog.Logger
}

func NewClient(conn *websocket.Conn, log zerolog.Logger) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		log:  log.With().Str("component", "ws").Logger(),
	}
}

// Send implements registry.Sender.
func (c *Client) Send(message []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- message:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close releases the writer goroutine. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// WritePump drains the send buffer onto the wire and keeps the connection
// alive with periodic pings. Runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadLoop blocks until the connection closes. Client-initiated keepalive
// pings get an immediate pong reply; everything else is ignored.
func (c *Client) ReadLoop() {
	defer c.Close()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			_ = c.Send(pong)
		}
	}
}
