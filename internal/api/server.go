package api

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"asteroid-arena/internal/game"
	"asteroid-arena/internal/protocol"

	"github.com/go-chi/chi/v5"
)

// ServerConfig groups everything NewServer needs besides the engine.
type ServerConfig struct {
	Hub            HubConfig
	RateLimit      RateLimitConfig
	CORSOrigins    []string
	StaticFilesDir string
	Renderer       FrameRenderer
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the WebSocket hub for real-time updates.
type Server struct {
	engine      *game.Engine
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer creates the API server.
//
// Background workers do NOT start until Start() is called, so tests can
// construct the server and use Router() without goroutines running.
func NewServer(engine *game.Engine, cfg ServerConfig) *Server {
	s := &Server{
		engine:      engine,
		wsHub:       NewWebSocketHub(engine, cfg.Hub),
		rateLimiter: NewIPRateLimiter(cfg.RateLimit),
	}

	s.router = NewRouter(RouterConfig{
		Engine:         engine,
		Renderer:       cfg.Renderer,
		RateLimiter:    s.rateLimiter,
		CORSOrigins:    cfg.CORSOrigins,
		StaticFilesDir: cfg.StaticFilesDir,
	})

	s.setupWebSocketRoutes()
	return s
}

// setupWebSocketRoutes adds routes that need the hub instance.
func (s *Server) setupWebSocketRoutes() {
	// Browser clients historically connected on the Socket.IO path
	s.router.Get("/socket.io/", s.handleSocketIO)
	s.router.Get("/ws", s.wsHub.HandleWebSocket)
}

// Start runs the hub, wires the tick broadcast and serves HTTP on ln.
// It blocks until the server is shut down.
func (s *Server) Start(ln net.Listener) error {
	go s.wsHub.Run()

	s.engine.SetTickHook(func(result game.TickResult) {
		RecordTick(result)
		if s.wsHub.ClientCount() > 0 {
			s.wsHub.Broadcast(protocol.EventGameState, result.State)
		}
	})

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("🌐 API server listening on %s", ln.Addr())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub exposes the WebSocket hub.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops accepting requests, detaches from the engine and closes every
// WebSocket connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.engine.SetTickHook(nil)

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.wsHub.Stop()
	s.rateLimiter.Stop()

	httpStats := s.rateLimiter.Stats()
	log.Printf("🛡️ HTTP rate limiter: %d allowed, %d rejected", httpStats.Allowed, httpStats.Rejected)
	log.Printf("🛡️ WebSocket per-IP limiter: %d rejected", s.wsHub.wsLimiter.Stats().Rejected)
	return err
}

func (s *Server) handleSocketIO(w http.ResponseWriter, r *http.Request) {
	if websocketUpgrade(r) {
		s.wsHub.HandleWebSocket(w, r)
		return
	}

	// No long-polling fallback
	writeError(w, "use websocket", http.StatusNotFound)
}

func websocketUpgrade(r *http.Request) bool {
	for _, v := range r.Header.Values("Upgrade") {
		if v == "websocket" || v == "WebSocket" {
			return true
		}
	}
	return false
}
