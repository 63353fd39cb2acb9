package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"asteroid-arena/internal/api"
	"asteroid-arena/internal/config"
	"asteroid-arena/internal/game"
	"asteroid-arena/internal/render"

	"github.com/joho/godotenv"
	"github.com/sasha-s/go-deadlock"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🚀 ================================")
	log.Println("🚀  ASTEROID ARENA - GO ENGINE")
	log.Println("🚀 ================================")

	appConfig := config.Load()

	deadlock.Opts.Disable = !appConfig.Debug.DeadlockDetection
	if deadlock.Opts.Disable {
		log.Println("🔓 Deadlock detection disabled")
	}

	rules := buildRules(appConfig)
	engine, err := game.NewEngine(game.EngineConfig{
		TickRate: appConfig.Sim.TickRate,
		Seed:     appConfig.Sim.Seed,
		Rules:    rules,
		EventLog: game.DefaultEventLogConfig,
	})
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("🎮 Config: %d TPS, %gx%g arena, %d asteroids (cap %d), seed %d",
		engine.TickRate(), rules.Width, rules.Height, rules.InitialObstacles, rules.ObstacleCap, engine.Seed())
	log.Printf("🛡️ Resource limits: %d players, %d projectiles, %.0f inputs/s per connection",
		rules.MaxPlayers, rules.MaxProjectiles, appConfig.Limits.InputsPerSecond)

	// Start event log
	if path := appConfig.EventLog.Path; path != "" {
		if err := engine.StartEventLog(path); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", path)
		}
	}

	// Start debug server
	obsCfg := api.DefaultObservabilityConfig()
	obsCfg.Enabled = appConfig.Debug.Enabled
	if appConfig.Debug.ListenAddr != "" {
		obsCfg.ListenAddr = appConfig.Debug.ListenAddr
	}
	obsCfg.AllowExternal = appConfig.Debug.AllowExternal
	debugServer, err := api.StartDebugServer(obsCfg)
	if err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	serverCfg := appConfig.Server
	rateLimit := api.DefaultRateLimitConfig
	rateLimit.TrustProxyHeaders = serverCfg.TrustProxyHeaders
	if rateLimit.TrustProxyHeaders {
		log.Println("🛡️ Trusting X-Forwarded-For / X-Real-IP for client IPs")
	}
	server := api.NewServer(engine, api.ServerConfig{
		Hub: api.HubConfig{
			MaxConnections:      serverCfg.MaxConnections,
			MaxConnectionsPerIP: serverCfg.MaxConnectionsPerIP,
			AllowedOrigins:      serverCfg.CORSOrigins,
			InputsPerSecond:     appConfig.Limits.InputsPerSecond,
			ChatPerSecond:       appConfig.Limits.ChatPerSecond,
			MaxChatLength:       appConfig.Limits.MaxChatLength,
			BroadcastOnInput:    serverCfg.BroadcastOnInput,
			TrustProxyHeaders:   serverCfg.TrustProxyHeaders,
		},
		RateLimit:      rateLimit,
		CORSOrigins:    serverCfg.CORSOrigins,
		StaticFilesDir: serverCfg.StaticDir,
		Renderer:       render.NewRenderer(engine.Rules()),
	})

	addr := fmt.Sprintf(":%d", serverCfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("❌ Failed to listen on %s: %v", addr, err)
	}

	engine.Start()
	log.Println("✅ Game Engine started")

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("🌐 API server on http://localhost%s", addr)
		log.Printf("🔌 WebSocket: ws://localhost%s/ws", addr)
		serveErr <- server.Start(ln)
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			log.Printf("❌ Server error: %v", err)
		}
	}

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	if err := debugServer.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Debug server shutdown: %v", err)
	}
	engine.Stop()
	engine.StopEventLog()

	stats := engine.EventLogStats()
	if stats.Total > 0 {
		log.Printf("📝 Event log: %d written, %d dropped", stats.Written, stats.Dropped)
	}
	log.Println("👋 Goodbye!")
}

// buildRules applies the configured arena and limits on top of the default tuning.
func buildRules(cfg config.AppConfig) game.Rules {
	rules := game.DefaultRules()
	rules.Width = cfg.Arena.Width
	rules.Height = cfg.Arena.Height
	rules.InitialObstacles = cfg.Sim.InitialObstacles
	rules.ObstacleCap = cfg.Sim.ObstacleCap
	rules.MaxPlayers = cfg.Limits.MaxPlayers
	rules.MaxProjectiles = cfg.Limits.MaxProjectiles
	return rules
}
