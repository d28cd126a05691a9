package server

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const sendBufferSize = 256

// Client is one websocket connection. A client is anonymous until it logs
// in, and unattached until it joins or watches a match.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	sessionID  string
	playerName string
	matchID    string
	spectator  bool
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// readPump consumes inbound messages until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.dropClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error",
					zap.String("player", c.playerName),
					zap.Error(err),
				)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("malformed message")
			continue
		}
		c.hub.handleMessage(c, msg)
	}
}

// writePump drains the send channel onto the connection, interleaving pings.
func (c *Client) writePump() {
	pingInterval := c.hub.cfg.PongTimeout * 9 / 10
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue queues a message without blocking; a client that cannot keep up
// loses frames rather than stalling the hub.
func (c *Client) enqueue(message []byte) bool {
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) sendJSON(msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("failed to marshal message",
			zap.String("type", msg.Type),
			zap.Error(err),
		)
		return
	}
	c.enqueue(payload)
}

func (c *Client) sendError(message string) {
	c.sendJSON(WSMessage{Type: "error", Data: mustRaw(map[string]string{"message": message})})
}
