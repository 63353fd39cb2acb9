package game

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// EngineConfig configures the fixed-rate driver around a Simulation.
type EngineConfig struct {
	TickRate int   // ticks per second, defaults to 60
	Seed     int64 // 0 picks a time-based seed
	Rules    Rules
	EventLog EventLogConfig
}

// TickResult is handed to the tick hook after every tick, outside the lock.
type TickResult struct {
	Report   TickReport
	State    WorldState
	Duration time.Duration
}

// Engine owns the single Simulation of the process. Every public method takes
// the same mutex, so the Simulation only ever sees one call at a time.
type Engine struct {
	mu  deadlock.Mutex
	sim *Simulation

	tickRate int
	seed     int64
	running  bool
	stopChan chan struct{}
	done     chan struct{}

	startedAt time.Time

	onTick func(TickResult)

	// Event sourcing for replay and debugging
	eventLog *EventLog
}

// NewEngine builds the world. The game loop does not run until Start.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 60
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	sim, err := NewSimulation(cfg.Rules, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}

	return &Engine{
		sim:       sim,
		tickRate:  cfg.TickRate,
		seed:      seed,
		startedAt: time.Now(),
		eventLog:  NewEventLog(cfg.EventLog),
	}, nil
}

// Start begins the game loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.done = make(chan struct{})
	stop, done := e.stopChan, e.done
	e.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Second / time.Duration(e.tickRate))
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.Tick()
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎮 Game engine started at %d TPS (seed %d)", e.tickRate, e.seed)
}

// Stop halts the game loop and waits for the in-flight tick to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopChan)
	done := e.done
	e.mu.Unlock()

	<-done
	log.Println("🛑 Game engine stopped")
}

// Tick advances the world once and runs the tick hook.
// The game loop calls it; tests may call it directly.
func (e *Engine) Tick() TickReport {
	start := time.Now()

	e.mu.Lock()
	report := e.sim.Tick()
	e.logTick(report)
	state := e.sim.Snapshot()
	hook := e.onTick
	e.mu.Unlock()

	if hook != nil {
		hook(TickResult{Report: report, State: state, Duration: time.Since(start)})
	}
	return report
}

func (e *Engine) logTick(report TickReport) {
	for _, hit := range report.Hits {
		e.eventLog.EmitSimple(EventTypeObstacleDestroyed, report.Tick, "",
			ObstacleDestroyedPayload{
				ObstacleID:   hit.ObstacleID,
				ProjectileID: hit.ProjectileID,
				OwnerID:      hit.OwnerID,
				Credited:     hit.Credited,
				Replacement:  hit.Replacement,
				X:            hit.X,
				Y:            hit.Y,
			})
	}
	for _, r := range report.Respawns {
		e.eventLog.EmitSimple(EventTypeRespawn, report.Tick, "",
			RespawnPayload{PlayerID: r.PlayerID, SpawnX: r.X, SpawnY: r.Y, Score: r.Score})
	}
	e.eventLog.EmitSimple(EventTypeTick, report.Tick, "",
		TickPayload{
			Players:     e.sim.PlayerCount(),
			Projectiles: e.sim.ProjectileCount(),
			Obstacles:   e.sim.ObstacleCount(),
			Expired:     report.Expired,
			Impacts:     report.Impacts,
		})
}

// Join adds a ship for a new connection.
func (e *Engine) Join(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.sim.Join(id) {
		log.Printf("⚠️ Join rejected for %s (duplicate id or arena full)", id)
		return false
	}

	p := e.sim.players[id]
	e.eventLog.EmitSimple(EventTypePlayerJoin, e.sim.TickCount(), id,
		PlayerJoinPayload{PlayerID: id, Name: p.Name, Color: p.Color, SpawnX: p.X, SpawnY: p.Y})

	log.Printf("👾 Player %s joined as %s. Total players: %d", id, p.Name, e.sim.PlayerCount())
	return true
}

// Leave removes a connection's ship. Unknown ids are ignored.
func (e *Engine) Leave(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.sim.players[id]
	if !ok {
		return false
	}
	score := p.Score
	e.sim.Leave(id)

	e.eventLog.EmitSimple(EventTypePlayerLeave, e.sim.TickCount(), id,
		PlayerLeavePayload{PlayerID: id, Score: score})

	log.Printf("👋 Player %s left. Total players: %d", id, e.sim.PlayerCount())
	return true
}

// SetInput steers a ship one step.
func (e *Engine) SetInput(id string, rotation float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.SetInput(id, rotation)
}

// Fire launches a projectile from a ship.
func (e *Engine) Fire(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.sim.Fire(id) {
		return false
	}
	p := e.sim.players[id]
	e.eventLog.EmitSimple(EventTypeFire, e.sim.TickCount(), id,
		FirePayload{PlayerID: id, X: p.X, Y: p.Y, Rotation: p.Rotation})
	return true
}

// Snapshot returns a deep copy of the world.
func (e *Engine) Snapshot() WorldState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.Snapshot()
}

// PlayerCount returns the number of ships in the arena.
func (e *Engine) PlayerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.PlayerCount()
}

// Uptime returns how long the engine has existed.
func (e *Engine) Uptime() time.Duration {
	return time.Since(e.startedAt)
}

// Seed returns the seed the world's random source was built from.
func (e *Engine) Seed() int64 {
	return e.seed
}

// Rules returns the rules the world was built with.
func (e *Engine) Rules() Rules {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.Rules()
}

// TickRate returns the configured ticks per second.
func (e *Engine) TickRate() int {
	return e.tickRate
}

// SetTickHook registers fn to run after every tick. fn runs on the game loop
// goroutine without the engine lock held, so it may call back into the engine.
func (e *Engine) SetTickHook(fn func(TickResult)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTick = fn
}

// StartEventLog initializes the event logging system
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog gracefully stops the event logging system
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// EventLogStats returns event log statistics for monitoring
func (e *Engine) EventLogStats() EventLogStats {
	return e.eventLog.Stats()
}

// TickCount returns the number of completed ticks.
func (e *Engine) TickCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.TickCount()
}
