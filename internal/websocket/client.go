package websocket

import (
	"net/http"
	"slices"
	"time"

	"gator-social/internal/presence"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// NewUpgrader accepts upgrades from the given origins; "*" accepts any.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(allowedOrigins, "*") {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}
}

// Client streams one room subscription to a websocket connection.
type Client struct {
	Sub    *presence.Subscription
	Conn   *websocket.Conn
	logger zerolog.Logger
}

func NewClient(conn *websocket.Conn, sub *presence.Subscription, logger zerolog.Logger) *Client {
	return &Client{
		Sub:  sub,
		Conn: conn,
		logger: logger.With().
			Str("room_id", sub.RoomID.String()).
			Str("user_id", sub.UserID.String()).
			Logger(),
	}
}

// Run blocks until the peer goes away or the subscription ends, and then
// releases both.
func (c *Client) Run() {
	go c.ReadPump()
	c.WritePump()
}

// ReadPump discards inbound frames; its job is to notice the peer leaving and
// to keep the read deadline moving on pongs.
func (c *Client) ReadPump() {
	defer c.Sub.Close()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}
	}
}

// WritePump forwards room updates as JSON text frames, one message per frame.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Sub.Close()
		c.Conn.Close()
		c.logger.Debug().Msg("websocket stream stopped")
	}()

	for {
		select {
		case msg, ok := <-c.Sub.Events():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteJSON(msg); err != nil {
				c.logger.Warn().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		}
	}
}
