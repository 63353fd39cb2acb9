package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"asteroid-arena/internal/protocol"

	"github.com/gorilla/websocket"
)

// botConfig drives one simulated player.
type botConfig struct {
	URL       string
	Codec     protocol.Codec
	InputRate int // playerMove messages per second
	FireEvery int // fire after every N moves, 0 never fires
	TurnRate  float64
}

// botResult is what a bot observed during its run.
type botResult struct {
	PlayerID    string
	Frames      int64 // gameState frames received
	Moves       int
	Shots       int
	LastScore   int
	LastHealth  int
	Disconnects int
}

// runBot connects, steers and fires until ctx is done.
func runBot(ctx context.Context, cfg botConfig) (botResult, error) {
	var res botResult

	url := cfg.URL
	if cfg.Codec.Name() != protocol.JSONName {
		url += "?codec=" + cfg.Codec.Name()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return res, fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	// The server speaks first with our id
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		return res, fmt.Errorf("read player id: %w", err)
	}
	msg, err := cfg.Codec.Decode(frame)
	if err != nil || msg.Event != protocol.EventPlayerID {
		return res, fmt.Errorf("expected %s, got %q: %v", protocol.EventPlayerID, msg.Event, err)
	}
	if err := msg.Bind(&res.PlayerID); err != nil {
		return res, err
	}
	conn.SetReadDeadline(time.Time{})

	var frames atomic.Int64
	var score, health atomic.Int64
	readDone := make(chan error, 1)
	go func() {
		readDone <- readStates(conn, cfg.Codec, res.PlayerID, &frames, &score, &health)
	}()

	interval := time.Second / time.Duration(max(1, cfg.InputRate))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rotation := 0.0
	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-readDone:
			res.Disconnects++
			runErr = err
			break loop
		case <-ticker.C:
			rotation = math.Mod(rotation+cfg.TurnRate, 2*math.Pi)
			if err := writeEvent(conn, cfg.Codec, protocol.EventPlayerMove, map[string]float64{"rotation": rotation}); err != nil {
				runErr = err
				break loop
			}
			res.Moves++
			if cfg.FireEvery > 0 && res.Moves%cfg.FireEvery == 0 {
				if err := writeEvent(conn, cfg.Codec, protocol.EventPlayerShoot, nil); err != nil {
					runErr = err
					break loop
				}
				res.Shots++
			}
		}
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))

	res.Frames = frames.Load()
	res.LastScore = int(score.Load())
	res.LastHealth = int(health.Load())
	return res, runErr
}

type botState struct {
	Players map[string]struct {
		Score  int `json:"score"`
		Health int `json:"health"`
	} `json:"players"`
}

func readStates(conn *websocket.Conn, codec protocol.Codec, id string, frames, score, health *atomic.Int64) error {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		msg, err := codec.Decode(frame)
		if err != nil || msg.Event != protocol.EventGameState {
			continue
		}
		frames.Add(1)

		var st botState
		if err := msg.Bind(&st); err != nil {
			continue
		}
		if me, ok := st.Players[id]; ok {
			score.Store(int64(me.Score))
			health.Store(int64(me.Health))
		}
	}
}

func writeEvent(conn *websocket.Conn, codec protocol.Codec, event string, data any) error {
	frame, err := codec.Encode(event, data)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(codec.FrameType(), frame); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	}
	return nil
}
