// Package config provides centralized configuration management.
// Every tunable of the server is read here; other packages receive plain
// structs and never look at the environment themselves.
package config

import (
	"os"
	"strconv"
	"strings"
)

// =============================================================================
// ARENA CONFIGURATION
// =============================================================================

// ArenaConfig holds the playfield size shared by the simulation and clients.
type ArenaConfig struct {
	Width  float64
	Height float64
}

// DefaultArena returns the classic 800x600 arena.
func DefaultArena() ArenaConfig {
	return ArenaConfig{
		Width:  800,
		Height: 600,
	}
}

// ArenaFromEnv returns arena configuration with environment variable overrides.
func ArenaFromEnv() ArenaConfig {
	cfg := DefaultArena()

	if w := getEnvFloat("ARENA_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvFloat("ARENA_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}

	return cfg
}

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimConfig holds the game loop and asteroid field settings.
type SimConfig struct {
	TickRate         int   // ticks per second
	Seed             int64 // 0 = time-based
	InitialObstacles int
	ObstacleCap      int
}

// DefaultSim returns the default simulation configuration.
func DefaultSim() SimConfig {
	return SimConfig{
		TickRate:         60,
		InitialObstacles: 5,
		ObstacleCap:      8,
	}
}

// SimFromEnv returns simulation configuration with environment variable overrides.
func SimFromEnv() SimConfig {
	cfg := DefaultSim()

	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if v := os.Getenv("SIM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = seed
		}
	}
	if n := getEnvInt("INITIAL_OBSTACLES", -1); n >= 0 {
		cfg.InitialObstacles = n
	}
	if n := getEnvInt("OBSTACLE_CAP", -1); n >= 0 {
		cfg.ObstacleCap = n
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                int
	StaticDir           string
	CORSOrigins         []string
	BroadcastOnInput    bool
	MaxConnections      int
	MaxConnectionsPerIP int

	// Only set behind a reverse proxy that rewrites X-Forwarded-For
	TrustProxyHeaders bool
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:                10000,
		StaticDir:           "./public",
		CORSOrigins:         []string{"*"},
		BroadcastOnInput:    true,
		MaxConnections:      500,
		MaxConnectionsPerIP: 10,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if v, ok := os.LookupEnv("STATIC_DIR"); ok {
		cfg.StaticDir = v
	}
	if origins := getEnvList("CORS_ORIGINS"); len(origins) > 0 {
		cfg.CORSOrigins = origins
	}
	if os.Getenv("BROADCAST_ON_INPUT") == "false" {
		cfg.BroadcastOnInput = false
	}
	if os.Getenv("TRUST_PROXY_HEADERS") == "true" {
		cfg.TrustProxyHeaders = true
	}
	if n := getEnvInt("MAX_CONNECTIONS", 0); n > 0 {
		cfg.MaxConnections = n
	}
	if n := getEnvInt("MAX_CONNECTIONS_PER_IP", 0); n > 0 {
		cfg.MaxConnectionsPerIP = n
	}

	return cfg
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// LimitsConfig controls DoS protection.
type LimitsConfig struct {
	MaxPlayers      int     // Hard cap on ships in the arena
	MaxProjectiles  int     // Hard cap on bullets in flight
	InputsPerSecond float64 // Per-connection move/shoot/ping budget
	ChatPerSecond   float64 // Per-connection chat budget
	MaxChatLength   int     // Chat messages are cut to this many characters
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() LimitsConfig {
	return LimitsConfig{
		MaxPlayers:      100,
		MaxProjectiles:  500,
		InputsPerSecond: 120,
		ChatPerSecond:   2,
		MaxChatLength:   200,
	}
}

// LimitsFromEnv returns resource limits with environment variable overrides.
func LimitsFromEnv() LimitsConfig {
	cfg := DefaultLimits()

	if n := getEnvInt("MAX_PLAYERS", 0); n > 0 {
		cfg.MaxPlayers = n
	}
	if n := getEnvInt("MAX_PROJECTILES", 0); n > 0 {
		cfg.MaxProjectiles = n
	}
	if v := getEnvFloat("INPUTS_PER_SECOND", 0); v > 0 {
		cfg.InputsPerSecond = v
	}
	if v := getEnvFloat("CHAT_PER_SECOND", 0); v > 0 {
		cfg.ChatPerSecond = v
	}
	if n := getEnvInt("MAX_CHAT_LENGTH", 0); n > 0 {
		cfg.MaxChatLength = n
	}

	return cfg
}

// =============================================================================
// OBSERVABILITY
// =============================================================================

// DebugConfig holds the pprof/metrics listener settings.
type DebugConfig struct {
	Enabled           bool
	ListenAddr        string
	AllowExternal     bool // permit a non-loopback ListenAddr
	DeadlockDetection bool
}

// DefaultDebug returns the default debug configuration.
func DefaultDebug() DebugConfig {
	return DebugConfig{
		Enabled:           true,
		ListenAddr:        "127.0.0.1:6060",
		DeadlockDetection: true,
	}
}

// DebugFromEnv returns debug configuration with environment variable overrides.
func DebugFromEnv() DebugConfig {
	cfg := DefaultDebug()

	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.Enabled = false
	}
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if os.Getenv("DEBUG_ALLOW_EXTERNAL") == "true" {
		cfg.AllowExternal = true
	}
	if os.Getenv("DISABLE_DEADLOCK_DETECTION") == "true" {
		cfg.DeadlockDetection = false
	}

	return cfg
}

// EventLogConfig holds the audit trail settings. An empty Path disables it.
type EventLogConfig struct {
	Path string
}

// EventLogFromEnv returns event log configuration from the environment.
func EventLogFromEnv() EventLogConfig {
	return EventLogConfig{Path: os.Getenv("EVENT_LOG_PATH")}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Arena    ArenaConfig
	Sim      SimConfig
	Server   ServerConfig
	Limits   LimitsConfig
	Debug    DebugConfig
	EventLog EventLogConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Arena:    ArenaFromEnv(),
		Sim:      SimFromEnv(),
		Server:   ServerFromEnv(),
		Limits:   LimitsFromEnv(),
		Debug:    DebugFromEnv(),
		EventLog: EventLogFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
