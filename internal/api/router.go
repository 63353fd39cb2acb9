package api

import (
	"net/http"
	"time"

	"asteroid-arena/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface defines the game engine methods used by the API.
// This interface enables mocking for tests without spinning up the game loop.
type EngineInterface interface {
	Join(id string) bool
	Leave(id string) bool
	SetInput(id string, rotation float64) bool
	Fire(id string) bool
	Snapshot() game.WorldState
	PlayerCount() int
	TickCount() uint64
	Uptime() time.Duration
}

// FrameRenderer draws a spectator image of a snapshot.
type FrameRenderer interface {
	PNG(ws game.WorldState) ([]byte, error)
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine: engine,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the game engine (required)
	Engine EngineInterface

	// Renderer backs /api/frame.png. The route is not mounted when nil.
	Renderer FrameRenderer

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, every origin is allowed.
	CORSOrigins []string

	// StaticFilesDir serves the browser client. Nothing is served when empty.
	StaticFilesDir string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine   EngineInterface
	renderer FrameRenderer
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// NewRouter is pure: it starts no goroutines besides the rate limiter's
// cleanup loop and opens no listeners, so it is safe to use with
// httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = DefaultAllowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	h := &routerHandlers{
		engine:   cfg.Engine,
		renderer: cfg.Renderer,
	}

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleGetState)
		r.Get("/leaderboard", h.handleGetLeaderboard)
		if cfg.Renderer != nil {
			r.Get("/frame.png", h.handleGetFrame)
		}
	})

	// Browser client
	if cfg.StaticFilesDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticFilesDir)))
	}

	return r
}
