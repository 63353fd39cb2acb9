package api

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"asteroid-arena/internal/game"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-player labels to prevent DoS)
var (
	// Simulation metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Time spent in game tick, including the state snapshot",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025},
	})

	playerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_player_count",
		Help: "Current number of ships in the arena",
	})

	projectileCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_projectile_count",
		Help: "Current number of projectiles in flight",
	})

	obstacleCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_obstacle_count",
		Help: "Current number of asteroids",
	})

	obstaclesDestroyed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_obstacles_destroyed_total",
		Help: "Asteroids destroyed by projectiles",
	})

	respawnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_respawns_total",
		Help: "Ships destroyed by asteroid contact and respawned",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter, origin check or capacity",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit", "arena_full"

	inboundDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_inbound_dropped_total",
		Help: "Inbound client messages dropped before reaching the simulation",
	}, []string{"reason"}) // Bounded: "malformed", "rate_limit", "invalid", "unknown_event", "too_large"

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})

	wsSlowClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_slow_clients_total",
		Help: "Clients disconnected because their send buffer was full",
	})
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // keep on loopback, pprof must not be public
	AllowExternal bool   // bind ListenAddr even when it is not loopback
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// bindAddr is ListenAddr, or the default loopback address when ListenAddr
// would expose pprof and external binding was not requested.
func (cfg ObservabilityConfig) bindAddr() string {
	if cfg.AllowExternal || isLoopback(cfg.ListenAddr) {
		return cfg.ListenAddr
	}
	return DefaultObservabilityConfig().ListenAddr
}

// DebugServer serves pprof and Prometheus metrics on a private listener.
type DebugServer struct {
	srv *http.Server
}

// StartDebugServer starts the internal observability server.
// It returns a nil server when disabled.
func StartDebugServer(cfg ObservabilityConfig) (*DebugServer, error) {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil, nil
	}

	addr := cfg.bindAddr()
	if addr != cfg.ListenAddr {
		log.Printf("⚠️ Debug server address %q is not loopback, forcing %s", cfg.ListenAddr, addr)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	ds := &DebugServer{srv: &http.Server{
		Handler:           debugMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}}

	go func() {
		log.Printf("📊 Debug server starting on %s", ln.Addr())
		log.Printf("   - pprof:   http://%s/debug/pprof/", ln.Addr())
		log.Printf("   - metrics: http://%s/metrics", ln.Addr())

		if err := ds.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return ds, nil
}

// Shutdown stops the debug server. Safe on a nil server.
func (ds *DebugServer) Shutdown(ctx context.Context) error {
	if ds == nil {
		return nil
	}
	return ds.srv.Shutdown(ctx)
}

func debugMux() *http.ServeMux {
	mux := http.NewServeMux()

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// RecordTick records the outcome of one simulation tick
func RecordTick(result game.TickResult) {
	tickDuration.Observe(result.Duration.Seconds())
	playerCount.Set(float64(len(result.State.Players)))
	projectileCount.Set(float64(len(result.State.Bullets)))
	obstacleCount.Set(float64(len(result.State.Asteroids)))
	if n := len(result.Report.Hits); n > 0 {
		obstaclesDestroyed.Add(float64(n))
	}
	if n := len(result.Report.Respawns); n > 0 {
		respawnsTotal.Add(float64(n))
	}
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordInboundDropped counts a client message that never reached the engine
func RecordInboundDropped(reason string) {
	inboundDropped.WithLabelValues(reason).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages(n int) {
	wsMessagesTotal.Add(float64(n))
}

// RecordSlowClient counts a client dropped for backpressure
func RecordSlowClient() {
	wsSlowClients.Inc()
}
