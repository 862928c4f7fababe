package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait = 10 * time.Second

	// pongWait bounds the silence tolerated from a subscriber; pings go out at 90% of it
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Subscribers only send control frames
	maxMessageSize = 512

	// sendBufferSize is how many events may queue before the subscriber is dropped as too slow
	sendBufferSize = 64
)

// Close reasons sent to subscribers in the close frame
const (
	CloseReasonGroupDeleted = "group deleted"
	CloseReasonTooSlow      = "subscriber too slow"
)

// ErrSendBufferFull is returned when a subscriber cannot keep up with its group's events
var ErrSendBufferFull = errors.New("client send buffer is full")

// outbound is one queued frame. A final frame ends the subscription once written.
type outbound struct {
	data  []byte
	final bool
}

// Client is one WebSocket subscription to a single expense group
type Client struct {
	id        string
	groupID   string
	conn      *websocket.Conn
	hub       *Hub
	send      chan outbound
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a subscriber for groupID
func NewClient(conn *websocket.Conn, groupID string, hub *Hub) *Client {
	return &Client{
		id:      uuid.New().String(),
		groupID: groupID,
		conn:    conn,
		hub:     hub,
		send:    make(chan outbound, sendBufferSize),
		done:    make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) GroupID() string {
	return c.groupID
}

// Send queues an event frame
func (c *Client) Send(data []byte) error {
	return c.enqueue(outbound{data: data})
}

// SendFinal queues the last frame of the subscription. After it is written
// the connection is closed with CloseReasonGroupDeleted.
func (c *Client) SendFinal(data []byte) error {
	return c.enqueue(outbound{data: data, final: true})
}

func (c *Client) enqueue(msg outbound) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		c.closeWith(websocket.CloseTryAgainLater, CloseReasonTooSlow)
		return ErrSendBufferFull
	}
}

// Close tears down the connection. Safe to call more than once.
func (c *Client) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		close(c.done)
		closeErr = c.conn.Close()
	})
	return closeErr
}

// closeWith tells the peer why the subscription ended, then closes.
// WriteControl may run concurrently with WritePump.
func (c *Client) closeWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.Close()
}

// IsClosed reports whether the subscription has ended
func (c *Client) IsClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// ReadPump services pongs and close frames until the peer goes away.
// Run it in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if !c.IsClosed() && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().
					Err(err).
					Str("client_id", c.id).
					Str("group_id", c.groupID).
					Msg("WebSocket unexpected close")
			}
			return
		}
	}
}

// WritePump writes queued frames and keepalive pings.
// Run it in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				log.Warn().
					Err(err).
					Str("client_id", c.id).
					Str("group_id", c.groupID).
					Msg("WebSocket write error")
				return
			}
			if msg.final {
				log.Debug().
					Str("client_id", c.id).
					Str("group_id", c.groupID).
					Msg("Closing subscription to deleted group")
				c.closeWith(websocket.CloseNormalClosure, CloseReasonGroupDeleted)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
