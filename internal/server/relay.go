package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gorelay/internal/config"
	"github.com/Tyrowin/gorelay/internal/logger"
	"github.com/Tyrowin/gorelay/internal/registry"
)

// inboundMessage is a parsed frame read from sender.
type inboundMessage struct {
	sender      *Client
	envelope    Envelope
	messageType int
}

// Stats is a point-in-time view of the relay.
type Stats struct {
	Connections int `json:"connections"`
	Identifiers int `json:"identifiers"`
}

// Relay owns the set of open connections and the app_id registry. Both are
// guarded by mutex as a single unit; every mutation happens on the Run loop.
type Relay struct {
	clients    map[*Client]struct{}
	registry   *registry.Registry[*Client]
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	// started is claimed by the first Run, or by Shutdown when Run never ran.
	started atomic.Bool

	cfg      config.RelayConfig
	log      *logger.Logger
	origins  *originPolicy
	upgrader websocket.Upgrader
}

// NewRelay creates a Relay ready to Run. A nil logger discards output.
func NewRelay(cfg config.RelayConfig, log *logger.Logger) *Relay {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("component", "relay")
	cfg = sanitizeRelayConfig(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		clients:    make(map[*Client]struct{}),
		registry:   registry.New[*Client](),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundMessage),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		cfg:        cfg,
		log:        log,
		origins:    newOriginPolicy(cfg.AllowedOrigins, log),
	}
	r.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     r.origins.check,
	}
	return r
}

func sanitizeRelayConfig(cfg config.RelayConfig) config.RelayConfig {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = config.DefaultMaxMessageSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = config.DefaultSendBufferSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = config.DefaultRateBurst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = config.DefaultRefillInterval
	}
	return cfg
}

// Register hands an accepted client to the relay loop.
func (r *Relay) Register(c *Client) error {
	select {
	case r.register <- c:
		return nil
	case <-r.ctx.Done():
		return ErrRelayStopped
	}
}

func (r *Relay) unregisterClient(c *Client) {
	select {
	case r.unregister <- c:
	case <-r.ctx.Done():
	}
}

// submit passes an inbound message to the relay loop. Messages from one
// client are submitted by its single read pump, so they keep their order.
func (r *Relay) submit(msg inboundMessage) bool {
	select {
	case r.inbound <- msg:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// Run is the relay's event loop. It returns after Shutdown, or at once if
// the relay is already running or has been shut down.
func (r *Relay) Run() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	defer close(r.done)
	r.log.Info("Relay started and ready to accept connections")

	for {
		select {
		case <-r.ctx.Done():
			r.shutdownClients()
			return

		case c := <-r.register:
			r.handleRegister(c)

		case c := <-r.unregister:
			r.handleUnregister(c)

		case msg := <-r.inbound:
			r.handleInbound(msg)
		}
	}
}

func (r *Relay) handleRegister(c *Client) {
	if c == nil {
		r.log.Warn("Received nil client registration; skipping")
		return
	}

	r.mutex.Lock()
	if !c.markOpen() {
		r.mutex.Unlock()
		r.log.Warn("Ignoring registration of client that is not in accepted state",
			"conn_id", c.id, "state", c.State().String())
		return
	}
	r.clients[c] = struct{}{}
	count := len(r.clients)
	r.mutex.Unlock()

	c.log.Info("Client connected", "open_connections", count)

	if c.conn == nil {
		return
	}

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		c.writePump()
	}()
	go func() {
		defer r.wg.Done()
		c.readPump()
	}()
}

func (r *Relay) handleUnregister(c *Client) {
	r.mutex.Lock()
	if _, ok := r.clients[c]; !ok {
		r.mutex.Unlock()
		return
	}
	delete(r.clients, c)
	appID, _ := r.registry.IdentifierOf(c)
	r.registry.Remove(c)
	c.markClosed()
	count := len(r.clients)
	r.mutex.Unlock()

	if c.closeErr != nil {
		c.log.Warn("Client disconnected with error",
			"error", c.closeErr, "app_id", appID, "open_connections", count)
		return
	}
	c.log.Info("Client disconnected", "app_id", appID, "open_connections", count)
}

func (r *Relay) handleInbound(msg inboundMessage) {
	sender := msg.sender

	r.mutex.Lock()
	if _, open := r.clients[sender]; !open {
		r.mutex.Unlock()
		sender.log.Debug("Dropping message from connection that is no longer open")
		return
	}

	if msg.envelope.HasAppID() {
		id := msg.envelope.AppID
		if prev, ok := r.registry.Lookup(id); ok && prev != sender {
			sender.log.Info("app_id taken over from another connection", "app_id", id, "previous_conn_id", prev.id)
		} else if !ok {
			sender.log.Info("app_id associated", "app_id", id)
		}
		r.registry.Associate(id, sender)
	}

	peers := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		if c != sender {
			peers = append(peers, c)
		}
	}
	r.mutex.Unlock()

	r.fanOut(sender, peers, outboundMessage{
		messageType: msg.messageType,
		payload:     msg.envelope.Raw,
	})
}

// fanOut enqueues msg to every peer. Each attempt is independent and never
// blocks; a failed attempt only affects that peer.
func (r *Relay) fanOut(sender *Client, peers []*Client, msg outboundMessage) {
	delivered := 0
	for _, peer := range peers {
		err := peer.enqueue(msg)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrClientClosed):
			// Peer is closing; its cleanup is already on the way.
		default:
			peer.log.Warn("Peer send failed; message dropped for this peer", "error", err, "from_conn_id", sender.id)
		}
	}
	sender.log.Debug("Broadcast message", "peers", len(peers), "delivered", delivered, "bytes", len(msg.payload))
}

// Lookup returns the connection currently associated with appID.
func (r *Relay) Lookup(appID string) (*Client, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.registry.Lookup(appID)
}

// IdentifierOf returns the app_id currently associated with c.
func (r *Relay) IdentifierOf(c *Client) (string, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.registry.IdentifierOf(c)
}

// ConnectionCount returns the number of open connections.
func (r *Relay) ConnectionCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.clients)
}

// Stats returns the current connection and identifier counts.
func (r *Relay) Stats() Stats {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return Stats{
		Connections: len(r.clients),
		Identifiers: r.registry.Len(),
	}
}

// shutdownClients closes every open connection and clears the registry.
func (r *Relay) shutdownClients() {
	r.log.Info("Shutting down all client connections...")

	r.mutex.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
		delete(r.clients, c)
		c.markClosed()
	}
	r.registry.Reset()
	r.mutex.Unlock()

	for _, c := range clients {
		if c.conn != nil {
			c.closeConnection()
		}
	}

	r.log.Info("Closed client connections", "count", len(clients))
}

// Shutdown stops the relay loop, closes all connections, and waits for the
// connection goroutines to finish or for timeout to elapse.
func (r *Relay) Shutdown(timeout time.Duration) error {
	r.log.Info("Initiating relay shutdown...")
	r.cancel()

	if r.started.CompareAndSwap(false, true) {
		// Run never started, so no client was ever registered.
		close(r.done)
		r.log.Info("Relay shutdown completed; loop was not running")
		return nil
	}

	deadline := time.After(timeout)

	select {
	case <-r.done:
	case <-deadline:
		r.log.Warn("Relay loop did not stop before timeout")
		return context.DeadlineExceeded
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info("Relay shutdown completed successfully")
		return nil
	case <-deadline:
		r.log.Warn("Relay shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

// Done is closed when the relay loop has exited.
func (r *Relay) Done() <-chan struct{} {
	return r.done
}
