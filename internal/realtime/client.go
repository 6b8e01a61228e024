package realtime

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/HammerMeetNail/nearby/internal/logging"
)

// ClientConfig bounds a single websocket connection.
type ClientConfig struct {
	SendQueueSize   int
	WriteTimeout    time.Duration
	PongWait        time.Duration
	PingInterval    time.Duration
	MaxMessageBytes int64
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 64
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 16 * 1024
	}
	return c
}

// Client is one websocket session. It is the presence handle for its user:
// events reach the socket only through Send, which never blocks.
type Client struct {
	id     uuid.UUID
	userID uuid.UUID
	conn   *websocket.Conn
	cfg    ClientConfig
	logger *logging.Logger

	send chan []byte
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, userID uuid.UUID, cfg ClientConfig, logger *logging.Logger) *Client {
	cfg = cfg.withDefaults()
	id := uuid.New()
	return &Client{
		id:     id,
		userID: userID,
		conn:   conn,
		cfg:    cfg,
		logger: logger.WithFields(map[string]interface{}{
			"user_id": userID.String(),
			"conn_id": id.String(),
		}),
		send: make(chan []byte, cfg.SendQueueSize),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() uuid.UUID {
	return c.id
}

func (c *Client) UserID() uuid.UUID {
	return c.userID
}

// Send queues payload for the write pump. It reports false when the client
// is closed or its queue is full.
func (c *Client) Send(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close stops delivery and makes the write pump close the socket. Safe to
// call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// readLoop passes each text frame to handle until the peer goes away or
// the client is closed.
func (c *Client) readLoop(handle func(payload []byte)) {
	defer c.Close()

	c.conn.SetReadLimit(c.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		handle(data)
	}
}

func (c *Client) logReadError(err error) {
	var ne net.Error
	switch {
	case c.isClosed():
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.logger.Debug("Websocket closed by peer")
	case errors.As(err, &ne) && ne.Timeout():
		c.logger.Info("Websocket read timeout")
	default:
		c.logger.Warn("Websocket read error", map[string]interface{}{"error": err.Error()})
	}
}

// writePump is the only writer on the socket. It exits, closing the
// socket, once the client is closed or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("Websocket write failed", map[string]interface{}{"error": err.Error()})
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteTimeout))
			return
		}
	}
}
