package api

import (
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"asteroid-arena/internal/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// HubConfig bounds connections and per-connection traffic.
type HubConfig struct {
	MaxConnections      int
	MaxConnectionsPerIP int
	AllowedOrigins      []string

	InputsPerSecond float64 // playerMove, playerShoot and ping share this budget
	ChatPerSecond   float64
	MaxChatLength   int

	// BroadcastOnInput pushes a fresh gameState after every applied move or
	// shot on top of the per-tick broadcast.
	BroadcastOnInput bool

	// TrustProxyHeaders keys the per-IP limit on X-Forwarded-For / X-Real-IP.
	TrustProxyHeaders bool

	SendBuffer int // frames queued per client before it counts as slow
}

// DefaultHubConfig returns production defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		MaxConnections:      500,
		MaxConnectionsPerIP: 10,
		AllowedOrigins:      DefaultAllowedOrigins,
		InputsPerSecond:     120,
		ChatPerSecond:       2,
		MaxChatLength:       200,
		BroadcastOnInput:    true,
		SendBuffer:          256,
	}
}

// outboundMsg is a frame waiting for the hub loop. A nil target means everyone.
type outboundMsg struct {
	event  string
	data   any
	target *wsClient
}

// WebSocketHub owns every client connection. Only Run touches the client set
// and the clients' send channels.
type WebSocketHub struct {
	engine   EngineInterface
	cfg      HubConfig
	upgrader websocket.Upgrader

	clients    map[*wsClient]struct{}
	register   chan *wsClient
	unregister chan *wsClient
	outbound   chan outboundMsg
	quit       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	started    atomic.Bool

	count     atomic.Int64
	wsLimiter *ConnLimiter
}

// NewWebSocketHub creates a hub. Call Run before accepting connections.
func NewWebSocketHub(engine EngineInterface, cfg HubConfig) *WebSocketHub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultHubConfig().SendBuffer
	}
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = DefaultAllowedOrigins
	}

	h := &WebSocketHub{
		engine:     engine,
		cfg:        cfg,
		clients:    make(map[*wsClient]struct{}),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		outbound:   make(chan outboundMsg, 256),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		wsLimiter:  NewConnLimiter(cfg.MaxConnectionsPerIP),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if IsAllowedOrigin(origin, h.cfg.AllowedOrigins) {
				return true
			}
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run is the hub loop. It returns after Stop, closing every client.
func (h *WebSocketHub) Run() {
	if !h.started.CompareAndSwap(false, true) {
		return
	}
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			// fresh buffer, cannot block
			if frame, err := c.codec.Encode(protocol.EventPlayerID, c.id); err == nil {
				c.send <- frame
			}
			n := len(h.clients)
			log.Printf("📱 Client %s connected from %s via %s (%d total)", c.id, c.ip, c.codec.Name(), n)
			UpdateWSConnections(n)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.remove(c)
				n := len(h.clients)
				log.Printf("📱 Client %s disconnected (%d remaining)", c.id, n)
				UpdateWSConnections(n)
			}

		case msg := <-h.outbound:
			h.deliver(msg)

		case <-h.quit:
			for c := range h.clients {
				h.remove(c)
			}
			UpdateWSConnections(0)
			return
		}
	}
}

// deliver encodes msg at most once per codec and queues it on each target.
func (h *WebSocketHub) deliver(msg outboundMsg) {
	if msg.target != nil {
		if _, ok := h.clients[msg.target]; ok {
			h.sendFrame(msg.target, msg, nil)
		}
		return
	}

	frames := make(map[string][]byte, 2)
	for c := range h.clients {
		h.sendFrame(c, msg, frames)
	}
}

func (h *WebSocketHub) sendFrame(c *wsClient, msg outboundMsg, cache map[string][]byte) {
	frame, ok := cache[c.codec.Name()]
	if !ok {
		var err error
		frame, err = c.codec.Encode(msg.event, msg.data)
		if err != nil {
			log.Printf("⚠️ Failed to encode %s for %s: %v", msg.event, c.codec.Name(), err)
			return
		}
		if cache != nil {
			cache[c.codec.Name()] = frame
		}
	}

	select {
	case c.send <- frame:
		IncrementWSMessages(1)
	default:
		// Slow consumer: drop the connection rather than stall everyone
		log.Printf("⚠️ Client %s send buffer full, disconnecting", c.id)
		RecordSlowClient()
		h.remove(c)
		UpdateWSConnections(len(h.clients))
	}
}

// remove must only be called from Run.
func (h *WebSocketHub) remove(c *wsClient) {
	delete(h.clients, c)
	close(c.send)
	h.wsLimiter.Release(c.ip)
	h.count.Add(-1)
}

// Stop closes every connection and ends Run. Safe to call when Run never
// started.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
	if h.started.Load() {
		<-h.done
	}
}

// Broadcast queues an event for every client. When the queue is full the
// event is dropped; the next tick carries newer state anyway.
func (h *WebSocketHub) Broadcast(event string, data any) {
	h.enqueue(outboundMsg{event: event, data: data})
}

// BroadcastState pushes the current world to every client.
func (h *WebSocketHub) BroadcastState() {
	h.Broadcast(protocol.EventGameState, h.engine.Snapshot())
}

func (h *WebSocketHub) sendTo(c *wsClient, event string, data any) {
	h.enqueue(outboundMsg{event: event, data: data, target: c})
}

func (h *WebSocketHub) enqueue(msg outboundMsg) {
	select {
	case h.outbound <- msg:
	case <-h.quit:
	default:
		// Channel full, skip (backpressure)
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	return int(h.count.Load())
}

// HandleWebSocket upgrades the request, joins a ship for it and starts the
// connection pumps.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := ClientIP(r, h.cfg.TrustProxyHeaders)

	// Reserve a slot against the total connection limit
	if total := h.count.Add(1); h.cfg.MaxConnections > 0 && total > int64(h.cfg.MaxConnections) {
		h.count.Add(-1)
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", h.cfg.MaxConnections)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	// Check per-IP connection limit
	if !h.wsLimiter.Acquire(ip) {
		h.count.Add(-1)
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	release := func() {
		h.count.Add(-1)
		h.wsLimiter.Release(ip)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		release()
		return
	}

	id := uuid.NewString()
	if !h.engine.Join(id) {
		RecordConnectionRejected("arena_full")
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "arena full"))
		conn.Close()
		release()
		return
	}

	c := newClient(h, conn, id, ip, protocol.Lookup(r.URL.Query().Get("codec")))

	select {
	case h.register <- c:
	case <-h.quit:
		h.engine.Leave(id)
		conn.Close()
		release()
		return
	}

	h.BroadcastState()

	go c.writePump()
	go c.readPump()
}

// disconnect runs once per client when its read pump ends.
func (h *WebSocketHub) disconnect(c *wsClient) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
	if h.engine.Leave(c.id) {
		h.BroadcastState()
	}
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
}
