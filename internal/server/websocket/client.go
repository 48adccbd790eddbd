// Package websocket implements the event gateway: WebSocket clients
// subscribe to the hub and receive daemon events as JSON frames.
//
// Each Client manages:
//   - A goroutine for reading incoming messages (readPump)
//   - A goroutine for writing outgoing messages (writePump)
//   - Automatic ping/pong for connection health monitoring
//   - Graceful shutdown handling
//
// Message Flow:
//   - Incoming: WebSocket → readPump → CommandHandler → filter update
//   - Outgoing: Event Hub → ClientSubscriber → SendRaw → writePump → WebSocket
//
// Thread Safety:
//   - SendRaw() is safe to call from any goroutine
//   - Close() is safe to call multiple times
package websocket

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/workspaced/internal/server/common"
)

// CommandHandler is a function that handles incoming client messages.
type CommandHandler func(clientID string, message []byte)

// Client represents one WebSocket connection to the event gateway.
type Client struct {
	id             string
	conn           *websocket.Conn
	buf            *common.SendBuffer
	commandHandler CommandHandler
	onClose        func(id string)
}

// NewClient creates a new WebSocket client.
func NewClient(conn *websocket.Conn, commandHandler CommandHandler, onClose func(id string)) *Client {
	id := uuid.New().String()
	return &Client{
		id:             id,
		conn:           conn,
		buf:            common.NewSendBuffer(id, common.SendBufferSize),
		commandHandler: commandHandler,
		onClose:        onClose,
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() string {
	return c.id
}

// Start starts the client's read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// SendRaw queues a message to be sent to the client. A full buffer
// drops the message rather than blocking the caller.
func (c *Client) SendRaw(data []byte) error {
	return c.buf.Send(data)
}

// Close closes the client connection.
func (c *Client) Close() error {
	c.buf.Close()
	return nil
}

// Done returns a channel that's closed when the client is done.
func (c *Client) Done() <-chan struct{} {
	return c.buf.Done()
}

// IsClosed returns whether the client has been closed.
func (c *Client) IsClosed() bool {
	return c.buf.IsClosed()
}

// readPump pumps messages from the WebSocket connection to the command handler.
func (c *Client) readPump() {
	defer func() {
		_ = c.Close()
		_ = c.conn.Close()
		if c.onClose != nil {
			c.onClose(c.id)
		}
	}()

	c.conn.SetReadLimit(common.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(common.PongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(common.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("client_id", c.id).Msg("websocket read error")
			}
			return
		}

		if c.commandHandler != nil {
			c.commandHandler(c.id, message)
		}
	}
}

// writePump pumps messages from the send buffer to the WebSocket
// connection. Each message goes out as its own frame so clients never
// see concatenated JSON.
func (c *Client) writePump() {
	ticker := time.NewTicker(common.PingPeriod)
	defer func() {
		ticker.Stop()
		// Close frame with a deadline so a laggy peer cannot block shutdown
		_ = c.conn.SetWriteDeadline(time.Now().Add(common.WriteWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.buf.Done():
			return

		case message, ok := <-c.buf.Channel():
			if !ok {
				return
			}

			_ = c.conn.SetWriteDeadline(time.Now().Add(common.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("client_id", c.id).Msg("write error")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(common.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("client_id", c.id).Msg("ping error")
				return
			}
		}
	}
}

// Ensure Client implements common.Client.
var _ common.Client = (*Client)(nil)
