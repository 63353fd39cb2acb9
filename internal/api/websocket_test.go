package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"asteroid-arena/internal/protocol"

	"github.com/gorilla/websocket"
)

func startTestHub(t *testing.T, engine EngineInterface, cfg HubConfig) (*WebSocketHub, string) {
	t.Helper()
	hub := NewWebSocketHub(engine, cfg)
	go hub.Run()

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		hub.Stop()
		ts.Close()
	})
	return hub, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("Dial failed (status %d): %v", status, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEvent reads frames until one carries event, skipping everything else.
func readEvent(t *testing.T, conn *websocket.Conn, codec protocol.Codec, event string) protocol.Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	conn.SetReadDeadline(deadline)
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Waiting for %s: %v", event, err)
		}
		msg, err := codec.Decode(frame)
		if err != nil {
			t.Fatalf("Undecodable frame %q: %v", frame, err)
		}
		if msg.Event == event {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, codec protocol.Codec, event string, data any) {
	t.Helper()
	frame, err := codec.Encode(event, data)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := conn.WriteMessage(codec.FrameType(), frame); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func playerID(t *testing.T, conn *websocket.Conn, codec protocol.Codec) string {
	t.Helper()
	var id string
	if err := readEvent(t, conn, codec, protocol.EventPlayerID).Bind(&id); err != nil {
		t.Fatalf("Bad playerId payload: %v", err)
	}
	return id
}

// TestWebSocketConnectLifecycle covers playerId, the join broadcast and leave on disconnect
func TestWebSocketConnectLifecycle(t *testing.T) {
	engine := NewMockEngine()
	hub, url := startTestHub(t, engine, DefaultHubConfig())

	conn := dial(t, url, nil)
	id := playerID(t, conn, protocol.JSON)
	if id == "" {
		t.Fatal("Expected a non-empty player id")
	}

	var state struct {
		Players map[string]any `json:"players"`
	}
	if err := readEvent(t, conn, protocol.JSON, protocol.EventGameState).Bind(&state); err != nil {
		t.Fatalf("Bad gameState payload: %v", err)
	}
	if _, ok := state.Players[id]; !ok {
		t.Errorf("Joined player %s missing from gameState", id)
	}
	if hub.ClientCount() != 1 {
		t.Errorf("Expected 1 client, got %d", hub.ClientCount())
	}

	conn.Close()
	waitFor(t, "leave", func() bool { return engine.PlayerCount() == 0 })
	waitFor(t, "unregister", func() bool { return hub.ClientCount() == 0 })
}

// TestWebSocketInputs verifies moves and shots reach the engine
func TestWebSocketInputs(t *testing.T) {
	engine := NewMockEngine()
	_, url := startTestHub(t, engine, DefaultHubConfig())

	conn := dial(t, url, nil)
	id := playerID(t, conn, protocol.JSON)

	send(t, conn, protocol.JSON, protocol.EventPlayerMove, map[string]float64{"rotation": 1.5})
	send(t, conn, protocol.JSON, protocol.EventPlayerMove, map[string]string{"heading": "north"})
	send(t, conn, protocol.JSON, protocol.EventPlayerShoot, nil)
	send(t, conn, protocol.JSON, "teleport", nil)

	waitFor(t, "inputs", func() bool {
		moves, shots := engine.counts(id)
		return moves == 1 && shots == 1
	})
	if rot := engine.Snapshot().Players[id].Rotation; rot != 1.5 {
		t.Errorf("Expected rotation 1.5, got %f", rot)
	}
}

// TestWebSocketPingPong verifies pong goes to the sender only
func TestWebSocketPingPong(t *testing.T) {
	_, url := startTestHub(t, NewMockEngine(), DefaultHubConfig())

	conn := dial(t, url, nil)
	playerID(t, conn, protocol.JSON)

	send(t, conn, protocol.JSON, protocol.EventPing, nil)
	readEvent(t, conn, protocol.JSON, protocol.EventPong)
}

// TestWebSocketChatRelay verifies chat is relayed to everyone with the sender id
func TestWebSocketChatRelay(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.MaxChatLength = 5
	_, url := startTestHub(t, NewMockEngine(), cfg)

	sender := dial(t, url, nil)
	senderID := playerID(t, sender, protocol.JSON)
	listener := dial(t, url, nil)
	playerID(t, listener, protocol.JSON)

	send(t, sender, protocol.JSON, protocol.EventChatMessage, "hello world")

	var relay struct {
		PlayerID string `json:"playerId"`
		Message  string `json:"message"`
	}
	if err := readEvent(t, listener, protocol.JSON, protocol.EventChatMessage).Bind(&relay); err != nil {
		t.Fatalf("Bad chat payload: %v", err)
	}
	if relay.PlayerID != senderID {
		t.Errorf("Expected sender %s, got %s", senderID, relay.PlayerID)
	}
	if relay.Message != "hello" {
		t.Errorf("Expected trimmed message 'hello', got %q", relay.Message)
	}
}

// TestWebSocketMsgpack verifies binary frames for msgpack clients
func TestWebSocketMsgpack(t *testing.T) {
	engine := NewMockEngine()
	_, url := startTestHub(t, engine, DefaultHubConfig())

	conn := dial(t, url+"?codec=msgpack", nil)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("Expected a binary frame, got type %d", kind)
	}
	msg, err := protocol.Msgpack.Decode(frame)
	if err != nil || msg.Event != protocol.EventPlayerID {
		t.Fatalf("Expected msgpack playerId, got %v %v", msg.Event, err)
	}
	var id string
	msg.Bind(&id)

	send(t, conn, protocol.Msgpack, protocol.EventPlayerMove, map[string]float64{"rotation": 0.25})
	waitFor(t, "msgpack move", func() bool {
		moves, _ := engine.counts(id)
		return moves == 1
	})
}

// TestWebSocketInputRateLimit verifies floods are dropped
func TestWebSocketInputRateLimit(t *testing.T) {
	engine := NewMockEngine()
	cfg := DefaultHubConfig()
	cfg.InputsPerSecond = 5
	_, url := startTestHub(t, engine, cfg)

	conn := dial(t, url, nil)
	id := playerID(t, conn, protocol.JSON)

	for i := 0; i < 50; i++ {
		send(t, conn, protocol.JSON, protocol.EventPlayerShoot, nil)
	}
	// Frames on one connection are handled in order, so once the chat echo
	// arrives every shot has been processed
	send(t, conn, protocol.JSON, protocol.EventChatMessage, "done")
	readEvent(t, conn, protocol.JSON, protocol.EventChatMessage)

	_, shots := engine.counts(id)
	if shots == 0 || shots >= 50 {
		t.Errorf("Expected the flood to be throttled, %d/50 shots applied", shots)
	}
}

// TestWebSocketArenaFull verifies a rejected join closes the connection
func TestWebSocketArenaFull(t *testing.T) {
	engine := NewMockEngine()
	engine.full = true
	hub, url := startTestHub(t, engine, DefaultHubConfig())

	conn := dial(t, url, nil)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		t.Errorf("Expected try-again-later close, got %v", err)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("Rejected connection should not be counted, got %d", hub.ClientCount())
	}
}

// TestWebSocketConnectionLimits verifies total and per-IP caps
func TestWebSocketConnectionLimits(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.MaxConnectionsPerIP = 1
	_, url := startTestHub(t, NewMockEngine(), cfg)

	dial(t, url, nil)
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Second connection from the same IP should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %v", resp)
	}

	cfg = DefaultHubConfig()
	cfg.MaxConnections = 1
	_, url = startTestHub(t, NewMockEngine(), cfg)

	dial(t, url, nil)
	_, resp, err = websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Connection past the total cap should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %v", resp)
	}
}

// TestWebSocketPerIPLimitIgnoresForwardedFor verifies a spoofed header cannot
// buy extra connections unless proxy headers are trusted
func TestWebSocketPerIPLimitIgnoresForwardedFor(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.MaxConnectionsPerIP = 1
	hub, url := startTestHub(t, NewMockEngine(), cfg)

	dial(t, url, http.Header{"X-Forwarded-For": []string{"203.0.113.1"}})
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"X-Forwarded-For": []string{"203.0.113.2"}})
	if err == nil {
		t.Fatal("Spoofed X-Forwarded-For should not bypass the per-IP limit")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %v", resp)
	}
	if got := hub.wsLimiter.Stats().Tracked; got != 1 {
		t.Errorf("Expected 1 tracked IP, got %d", got)
	}

	cfg.TrustProxyHeaders = true
	_, url = startTestHub(t, NewMockEngine(), cfg)
	dial(t, url, http.Header{"X-Forwarded-For": []string{"203.0.113.1"}})
	dial(t, url, http.Header{"X-Forwarded-For": []string{"203.0.113.2"}})
}

// TestWebSocketReleasesPerIPState verifies closed connections leave no limiter state
func TestWebSocketReleasesPerIPState(t *testing.T) {
	hub, url := startTestHub(t, NewMockEngine(), DefaultHubConfig())

	for i := 0; i < 3; i++ {
		conn := dial(t, url, nil)
		playerID(t, conn, protocol.JSON)
		conn.Close()
		waitFor(t, "unregister", func() bool { return hub.ClientCount() == 0 })
	}
	waitFor(t, "per-IP release", func() bool { return hub.wsLimiter.Stats().Tracked == 0 })
}

// TestWebSocketBroadcastOnInput verifies an applied move pushes fresh state
func TestWebSocketBroadcastOnInput(t *testing.T) {
	engine := NewMockEngine()
	_, url := startTestHub(t, engine, DefaultHubConfig())

	conn := dial(t, url, nil)
	id := playerID(t, conn, protocol.JSON)
	readEvent(t, conn, protocol.JSON, protocol.EventGameState)

	send(t, conn, protocol.JSON, protocol.EventPlayerMove, map[string]float64{"rotation": 2.5})
	for {
		var state struct {
			Players map[string]struct {
				Rotation float64 `json:"rotation"`
			} `json:"players"`
		}
		if err := readEvent(t, conn, protocol.JSON, protocol.EventGameState).Bind(&state); err != nil {
			t.Fatalf("Bad gameState payload: %v", err)
		}
		if state.Players[id].Rotation == 2.5 {
			return
		}
	}
}

// TestWebSocketOriginCheck verifies disallowed browser origins are refused
func TestWebSocketOriginCheck(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.AllowedOrigins = []string{"https://game.example"}
	engine := NewMockEngine()
	_, url := startTestHub(t, engine, cfg)

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("Disallowed origin should be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}
	if engine.PlayerCount() != 0 {
		t.Error("Refused connection must not join")
	}

	header.Set("Origin", "https://game.example")
	dial(t, url, header)
}

// TestWebSocketHubStop verifies Stop closes clients
func TestWebSocketHubStop(t *testing.T) {
	engine := NewMockEngine()
	hub, url := startTestHub(t, engine, DefaultHubConfig())

	conn := dial(t, url, nil)
	playerID(t, conn, protocol.JSON)

	hub.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	waitFor(t, "leave after stop", func() bool { return engine.PlayerCount() == 0 })
}
