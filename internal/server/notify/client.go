package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/internal/logging"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Authorizer decides whether the member may listen on a conversation key.
type Authorizer func(ctx context.Context, memberID, conversationKey string) error

// controlFrame is what a connected client sends to manage its subscription
// set.
type controlFrame struct {
	Action string   `json:"action"`
	Keys   []string `json:"keys"`
}

// Client binds one websocket connection to a hub subscriber and runs the
// read/write pumps.
type Client struct {
	hub       *Hub
	sub       *Subscriber
	conn      *websocket.Conn
	authorize Authorizer
	logger    logging.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, memberID string, authorize Authorizer, logger logging.Logger) *Client {
	return &Client{
		hub:       hub,
		sub:       hub.Subscribe(memberID),
		conn:      conn,
		authorize: authorize,
		logger:    logger,
	}
}

// ReadPump consumes control frames until the connection dies, then
// unsubscribes. Must run in its own goroutine.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unsubscribe(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn(ctx, "websocket read", "member", c.sub.MemberID(), "error", err)
			}
			return
		}

		var frame controlFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.logger.Warn(ctx, "malformed control frame", "member", c.sub.MemberID(), "error", err)
			continue
		}
		c.handleControl(ctx, frame)
	}
}

func (c *Client) handleControl(ctx context.Context, frame controlFrame) {
	switch frame.Action {
	case "subscribe":
		for _, key := range frame.Keys {
			if err := c.authorize(ctx, c.sub.MemberID(), key); err != nil {
				c.logger.Warn(ctx, "subscribe rejected", "member", c.sub.MemberID(), "key", key, "error", err)
				continue
			}
			c.sub.Listen(key)
		}
	case "unsubscribe":
		c.sub.Mute(frame.Keys...)
	default:
		c.logger.Warn(ctx, "unknown control action", "member", c.sub.MemberID(), "action", frame.Action)
	}
}

// WritePump drains the subscriber queue onto the wire and keeps the
// connection alive with pings. Must run in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sub.Out():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
