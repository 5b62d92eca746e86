package websocket

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/imuhira/backend/internal/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// The feed is server to client; peers only send control frames
	maxMessageSize = 512
)

// Client is one live feed subscriber
type Client struct {
	id          uuid.UUID
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	connectedAt time.Time
	log         *logger.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, log *logger.Logger) *Client {
	id := uuid.New()
	return &Client{
		id:          id,
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		connectedAt: time.Now(),
		log:         log.With("client_id", id),
	}
}

// ReadPump keeps the read side alive for pongs and close frames. The feed is
// one-way, so data frames from the peer are discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("Live feed read failed", "error", err)
			}
			return
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One event per frame so browsers can JSON.parse each message
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
