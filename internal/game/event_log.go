package game

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// EventLogConfig bounds the audit log so a flood of inputs cannot turn into
// a flood of disk writes.
type EventLogConfig struct {
	BufferSize         int           // ring capacity, oldest events are dropped when full
	MaxEventsPerSec    float64       // global rate limit
	MaxEventsPerPlayer float64       // per-player rate limit per second
	FlushInterval      time.Duration // how often the writer drains the ring
	LimiterIdle        time.Duration // per-player limiters unused this long are dropped
}

// DefaultEventLogConfig covers a 60 Hz tick plus a busy arena.
var DefaultEventLogConfig = EventLogConfig{
	BufferSize:         1024,
	MaxEventsPerSec:    10000,
	MaxEventsPerPlayer: 100,
	FlushInterval:      100 * time.Millisecond,
	LimiterIdle:        5 * time.Minute,
}

// EventLog is a bounded, rate-limited JSONL audit trail written asynchronously.
type EventLog struct {
	cfg EventLogConfig

	mu    sync.Mutex
	ring  []Event
	head  int // next slot to read
	count int
	seq   uint64

	globalLimiter  *rate.Limiter
	playerLimiters sync.Map // map[string]*playerLimiterEntry

	out     io.WriteCloser
	running atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup

	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
	writtenCount atomic.Uint64
}

type playerLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nano
}

// NewEventLog creates a stopped event log. Emit is a no-op until Start.
func NewEventLog(cfg EventLogConfig) *EventLog {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultEventLogConfig.BufferSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultEventLogConfig.FlushInterval
	}
	if cfg.LimiterIdle <= 0 {
		cfg.LimiterIdle = DefaultEventLogConfig.LimiterIdle
	}
	if cfg.MaxEventsPerSec <= 0 {
		cfg.MaxEventsPerSec = DefaultEventLogConfig.MaxEventsPerSec
	}
	if cfg.MaxEventsPerPlayer <= 0 {
		cfg.MaxEventsPerPlayer = DefaultEventLogConfig.MaxEventsPerPlayer
	}
	burst := max(1, int(cfg.MaxEventsPerSec/10))
	return &EventLog{
		cfg:           cfg,
		ring:          make([]Event, cfg.BufferSize),
		globalLimiter: rate.NewLimiter(rate.Limit(cfg.MaxEventsPerSec), burst),
	}
}

// Start opens filePath for append and begins the writer goroutine.
func (el *EventLog) Start(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("event log: empty path")
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("event log: %w", err)
	}
	return el.StartWriter(file)
}

// StartWriter begins draining events into w, which is closed on Stop.
func (el *EventLog) StartWriter(w io.WriteCloser) error {
	if !el.running.CompareAndSwap(false, true) {
		return fmt.Errorf("event log: already running")
	}
	el.out = w
	el.stop = make(chan struct{})
	el.wg.Add(1)
	go el.writerLoop()
	return nil
}

// Stop flushes pending events and closes the output.
func (el *EventLog) Stop() {
	if !el.running.CompareAndSwap(true, false) {
		return
	}
	close(el.stop)
	el.wg.Wait()
	el.out.Close()
}

// Emit queues an event. Returns false when the log is stopped or the event was
// rate limited. A full ring drops its oldest entry.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}
	if !el.globalLimiter.Allow() {
		el.droppedCount.Add(1)
		return false
	}
	if event.PlayerID != "" && !el.playerLimiter(event.PlayerID).Allow() {
		el.droppedCount.Add(1)
		return false
	}

	el.mu.Lock()
	el.seq++
	event.Sequence = el.seq
	if el.count == len(el.ring) {
		el.head = (el.head + 1) % len(el.ring)
		el.count--
		el.droppedCount.Add(1)
	}
	el.ring[(el.head+el.count)%len(el.ring)] = event
	el.count++
	el.mu.Unlock()

	el.totalCount.Add(1)
	return true
}

// EmitSimple builds and queues an event in one call.
func (el *EventLog) EmitSimple(eventType EventType, tickNum uint64, playerID string, payload interface{}) bool {
	if !el.running.Load() {
		return false
	}
	return el.Emit(NewEvent(eventType, tickNum, playerID, payload))
}

func (el *EventLog) playerLimiter(playerID string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := el.playerLimiters.Load(playerID); ok {
		entry := v.(*playerLimiterEntry)
		entry.lastUsed.Store(now)
		return entry.limiter
	}

	burst := max(1, int(el.cfg.MaxEventsPerPlayer/10))
	entry := &playerLimiterEntry{limiter: rate.NewLimiter(rate.Limit(el.cfg.MaxEventsPerPlayer), burst)}
	entry.lastUsed.Store(now)
	actual, _ := el.playerLimiters.LoadOrStore(playerID, entry)
	return actual.(*playerLimiterEntry).limiter
}

func (el *EventLog) writerLoop() {
	defer el.wg.Done()

	ticker := time.NewTicker(el.cfg.FlushInterval)
	defer ticker.Stop()

	w := bufio.NewWriter(el.out)
	enc := json.NewEncoder(w)
	lastSweep := time.Now()

	for {
		select {
		case <-el.stop:
			el.drain(enc)
			w.Flush()
			return
		case now := <-ticker.C:
			el.drain(enc)
			w.Flush()
			if now.Sub(lastSweep) >= el.cfg.LimiterIdle {
				el.sweepLimiters(now)
				lastSweep = now
			}
		}
	}
}

// drain writes everything queued so far as newline-delimited JSON.
func (el *EventLog) drain(enc *json.Encoder) {
	el.mu.Lock()
	batch := make([]Event, 0, el.count)
	for el.count > 0 {
		batch = append(batch, el.ring[el.head])
		el.ring[el.head] = Event{}
		el.head = (el.head + 1) % len(el.ring)
		el.count--
	}
	el.mu.Unlock()

	for _, event := range batch {
		if err := enc.Encode(event); err != nil {
			el.droppedCount.Add(1)
			continue
		}
		el.writtenCount.Add(1)
	}
}

func (el *EventLog) sweepLimiters(now time.Time) {
	cutoff := now.Add(-el.cfg.LimiterIdle).UnixNano()
	el.playerLimiters.Range(func(key, value interface{}) bool {
		if value.(*playerLimiterEntry).lastUsed.Load() < cutoff {
			el.playerLimiters.Delete(key)
		}
		return true
	})
}

// EventLogStats is a point-in-time view of the log counters.
type EventLogStats struct {
	Total   uint64 `json:"total"`
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Pending int    `json:"pending"`
	Running bool   `json:"running"`
}

// Stats returns counters for monitoring.
func (el *EventLog) Stats() EventLogStats {
	el.mu.Lock()
	pending := el.count
	el.mu.Unlock()

	return EventLogStats{
		Total:   el.totalCount.Load(),
		Written: el.writtenCount.Load(),
		Dropped: el.droppedCount.Load(),
		Pending: pending,
		Running: el.running.Load(),
	}
}
