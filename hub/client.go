package hub

import (
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const sendBuffer = 64

// Transport is the subset of *websocket.Conn the hub needs. Tests substitute
// their own.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one live push connection: an id, a transport, and a buffered
// outbound channel drained by a single writer goroutine.
type Client struct {
	Id   string
	hub  *Hub
	conn Transport
	send chan []byte
}

func NewClient(h *Hub, conn Transport) *Client {
	return &Client{
		Id:   uuid.New().String(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

// WritePump drains the outbound channel onto the transport. The single reader
// of c.send, so events go out in broadcast-call order. A failed write
// unregisters the connection; unregistration closes the channel and ends the
// loop.
func (c *Client) WritePump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	for raw := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			return
		}
	}
}

// ReadPump relays every inbound message to the other connections and
// unregisters on transport error (the disconnect signal).
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.hub.Relay(c, msg)
	}
}
