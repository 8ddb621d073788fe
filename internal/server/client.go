package server

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gorelay/internal/config"
	"github.com/Tyrowin/gorelay/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ConnState is the lifecycle state of a connection.
type ConnState int

const (
	StateAccepted ConnState = iota
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is one relay connection. It owns the WebSocket, the outbound queue
// drained by its write pump, and its per-connection rate limiter.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan outboundMessage
	relay          *Relay
	addr           string
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      config.RateLimitConfig
	log            *logger.Logger

	// mu guards state and the send channel close.
	mu    sync.Mutex
	state ConnState

	// closeErr is set by the read pump before it unregisters; nil means the
	// peer closed normally.
	closeErr error
}

// NewClient creates a Client in the accepted state for conn. conn may be nil
// in tests that drive the relay without a network.
func NewClient(conn *websocket.Conn, relay *Relay, addr string) *Client {
	cfg := relay.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	id := uuid.NewString()
	return &Client{
		id:             id,
		conn:           conn,
		send:           make(chan outboundMessage, cfg.SendBufferSize),
		relay:          relay,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit),
		rateLimit:      cfg.RateLimit,
		log:            relay.log.With("conn_id", id, "remote_addr", addr),
		state:          StateAccepted,
	}
}

// ID returns the generated connection id.
func (c *Client) ID() string {
	return c.id
}

// RemoteAddr returns the peer address the connection was accepted from.
func (c *Client) RemoteAddr() string {
	return c.addr
}

// State returns the current lifecycle state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// markOpen moves an accepted client to the open state.
func (c *Client) markOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAccepted {
		return false
	}
	c.state = StateOpen
	return true
}

// markClosed moves the client to the closed state and closes its outbound
// queue so the write pump sends a close frame and exits. It reports whether
// this call performed the transition.
func (c *Client) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return false
	}
	c.state = StateClosed
	close(c.send)
	return true
}

// enqueue queues msg for the write pump without blocking.
func (c *Client) enqueue(msg outboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		return ErrClientClosed
	}

	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("Error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// classifyReadError logs the read error and returns the error to record as
// the close cause, or nil for an orderly close by the peer.
func (c *Client) classifyReadError(err error) error {
	if errors.Is(err, websocket.ErrReadLimit) {
		c.log.Warn("Message exceeded maximum size", "max_bytes", c.maxMessageSize)
		return err
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		c.log.Debug("Peer closed connection", "reason", err)
		return nil
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		c.log.Debug("Connection closed", "reason", err)
		return nil
	}

	if websocket.IsUnexpectedCloseError(err) {
		c.log.Warn("Unexpected WebSocket close", "error", err)
		return err
	}

	c.log.Warn("WebSocket read error", "error", err)
	return err
}

func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.log.Warn("Rate limit exceeded; discarding message",
			"burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// processMessage parses a raw frame and hands it to the relay. A malformed
// frame is logged and dropped; the connection stays open. It returns false
// only when the relay has stopped.
func (c *Client) processMessage(messageType int, raw []byte) bool {
	env, err := ParseEnvelope(raw)
	if err != nil {
		c.log.Warn("Dropping malformed message", "error", err, "bytes", len(raw))
		return true
	}

	return c.relay.submit(inboundMessage{
		sender:      c,
		envelope:    env,
		messageType: messageType,
	})
}

func (c *Client) readPump() {
	defer func() {
		c.relay.unregisterClient(c)
		c.closeConnection()
	}()

	c.setupReadConnection()

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.closeErr = c.classifyReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		if !c.processMessage(messageType, raw) {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case msg, ok := <-c.send:
		return c.handleMessage(msg, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Debug("Error closing connection", "error", err)
	}
}

// handleMessage writes one queued frame and returns false if the connection
// should be closed.
func (c *Client) handleMessage(msg outboundMessage, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline", "error", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	// One frame per forwarded message so payloads reach peers byte-identical.
	if err := c.conn.WriteMessage(msg.messageType, msg.payload); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Peer send failed", "error", err)
		}
		return false
	}
	return true
}

func (c *Client) writeCloseMessage() bool {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil && !isExpectedCloseError(err) {
		c.log.Debug("Error writing close message", "error", err)
	}
	return false
}

func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing ping", "error", err)
		}
		return false
	}
	return true
}
