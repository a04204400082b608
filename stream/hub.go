// Package stream fans processed batches out to websocket clients for live
// charting. Delivery is lossy end to end; a slow client loses frames rather
// than stalling the pipeline or its peers.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sandrayoe/mms-version2/ingest"
	"github.com/sandrayoe/mms-version2/internal/log"
	"github.com/sandrayoe/mms-version2/internal/wallclock"
)

const (
	defaultSendBuffer   = 16
	defaultPingInterval = 30 * time.Second
	defaultWriteTimeout = 10 * time.Second

	// Clients never send application data, so anything beyond control frame
	// size is a protocol violation.
	maxReadBytes = 512
)

type hubLogger struct{ log.Logger }

func (l hubLogger) debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.Log(ctx, slog.LevelDebug, msg, attrs...)
}

func (l hubLogger) info(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.Log(ctx, slog.LevelInfo, msg, attrs...)
}

func (l hubLogger) warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.Log(ctx, slog.LevelWarn, msg, attrs...)
}

// client is one connected websocket consumer. Frames are queued on send and
// written by a dedicated goroutine; a full queue loses the frame.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub accepts websocket upgrades and broadcasts batch envelopes to every
// connected client. It implements http.Handler for the upgrade endpoint.
type Hub struct {
	log hubLogger

	upgrader     websocket.Upgrader
	sendBuffer   int
	pingInterval time.Duration
	writeTimeout time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	seq     uint64

	statsMu       sync.Mutex
	framesSent    uint64
	framesDropped uint64
}

// Stats is a point-in-time copy of the hub's counters.
type Stats struct {
	// Clients is the number of currently connected stream clients.
	Clients int

	// FramesSent counts envelopes queued to a client. FramesDropped counts
	// envelopes lost to a full client queue.
	FramesSent    uint64
	FramesDropped uint64
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger for the hub.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.log = hubLogger{log.Wrap(logger)}
	}
}

// WithSendBuffer sets the per-client frame queue size.
func WithSendBuffer(size int) Option {
	return func(h *Hub) {
		h.sendBuffer = size
	}
}

// WithPingInterval sets the keepalive ping cadence.
func WithPingInterval(interval time.Duration) Option {
	return func(h *Hub) {
		h.pingInterval = interval
	}
}

// WithWriteTimeout sets the per-write deadline on client connections.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(h *Hub) {
		h.writeTimeout = timeout
	}
}

// NewHub returns a hub ready to accept clients. Broadcasting starts when Run
// is called.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		sendBuffer:   defaultSendBuffer,
		pingInterval: defaultPingInterval,
		writeTimeout: defaultWriteTimeout,
		clients:      make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Browser origin is not checked; access control happens upstream.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return h
}

// Run consumes batches until ctx is done or the channel closes, broadcasting
// each one to every connected client. On return all clients are disconnected
// and further upgrades are refused.
func (h *Hub) Run(ctx context.Context, batches <-chan ingest.Batch) {
	defer h.shutdown(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-batches:
			if !ok {
				return
			}
			h.broadcast(ctx, b)
		}
	}
}

// broadcast queues one envelope on every client. The fan-out stays under
// h.mu so a queue is never closed while a send to it is in flight; the sends
// are non-blocking, so the section is short.
func (h *Hub) broadcast(ctx context.Context, b ingest.Batch) {
	h.mu.Lock()
	h.seq++
	seq := h.seq
	if len(h.clients) == 0 {
		h.mu.Unlock()
		return
	}

	data, err := json.Marshal(newEnvelope(seq, wallclock.Instance.Now(), b))
	if err != nil {
		h.mu.Unlock()
		h.log.warn(ctx, "dropping unmarshalable frame", slog.String("error", err.Error()))
		return
	}

	var sent, dropped uint64
	for c := range h.clients {
		select {
		case c.send <- data:
			sent++
		default:
			dropped++
		}
	}
	h.mu.Unlock()

	h.statsMu.Lock()
	h.framesSent += sent
	h.framesDropped += dropped
	h.statsMu.Unlock()

	if dropped > 0 {
		h.log.debug(ctx, "slow stream clients lost a frame",
			slog.Uint64("seq", seq),
			slog.Uint64("dropped", dropped))
	}
}

// ServeHTTP upgrades the request to a websocket and streams envelopes until
// the client goes away or the hub shuts down.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.log.warn(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.log.info(r.Context(), "stream client connected",
		slog.String("remote", r.RemoteAddr),
		slog.Int("clients", count))

	go h.writeLoop(c)
	h.readLoop(c)

	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count = len(h.clients)
	h.mu.Unlock()
	conn.Close()

	h.log.info(r.Context(), "stream client disconnected",
		slog.String("remote", r.RemoteAddr),
		slog.Int("clients", count))
}

// writeLoop owns all writes on the connection, interleaving queued frames
// with keepalive pings. It exits when the frame queue closes or a write
// fails, closing the connection so readLoop unblocks.
func (h *Hub) writeLoop(c *client) {
	ticker := wallclock.Instance.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.Close()
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.conn.Close()
				return
			}
		case <-ticker.C():
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

// readLoop consumes the client side of the connection so control frames are
// processed. Application data from clients is discarded.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(maxReadBytes)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// shutdown refuses new clients and closes every current connection. The
// per-connection handlers unregister themselves as their read loops unblock.
func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.writeTimeout))
		c.conn.Close()
	}

	if len(clients) > 0 {
		h.log.info(ctx, "stream hub stopped", slog.Int("clients", len(clients)))
	}
}

// Stats returns a copy of the hub's counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	clients := len(h.clients)
	h.mu.Unlock()

	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	return Stats{
		Clients:       clients,
		FramesSent:    h.framesSent,
		FramesDropped: h.framesDropped,
	}
}
