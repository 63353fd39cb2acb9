package api

import (
	"errors"
	"log"
	"time"

	"asteroid-arena/internal/protocol"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// wsClient is one connected player.
type wsClient struct {
	hub   *WebSocketHub
	conn  *websocket.Conn
	id    string
	ip    string
	codec protocol.Codec

	// closed by the hub loop only
	send chan []byte

	inputs *rate.Limiter
	chat   *rate.Limiter
}

func newClient(h *WebSocketHub, conn *websocket.Conn, id, ip string, codec protocol.Codec) *wsClient {
	return &wsClient{
		hub:    h,
		conn:   conn,
		id:     id,
		ip:     ip,
		codec:  codec,
		send:   make(chan []byte, h.cfg.SendBuffer),
		inputs: newLimiter(h.cfg.InputsPerSecond),
		chat:   newLimiter(h.cfg.ChatPerSecond),
	}
}

// readPump feeds inbound frames to the engine until the connection fails.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("⚠️ Client %s: unexpected close: %v", c.id, err)
			}
			return
		}
		c.handle(frame)
	}
}

// writePump is the only writer on the connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(c.codec.FrameType(), frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle dispatches one inbound frame. Nothing here can fail the connection;
// bad frames are counted and dropped.
func (c *wsClient) handle(frame []byte) {
	msg, err := c.codec.Decode(frame)
	if err != nil {
		RecordInboundDropped("malformed")
		return
	}

	switch msg.Event {
	case protocol.EventPlayerMove:
		if !c.inputs.Allow() {
			RecordInboundDropped("rate_limit")
			return
		}
		var mv protocol.MovePayload
		if err := msg.Bind(&mv); err != nil || !mv.Valid() {
			RecordInboundDropped("invalid")
			return
		}
		if c.hub.engine.SetInput(c.id, *mv.Rotation) && c.hub.cfg.BroadcastOnInput {
			c.hub.BroadcastState()
		}

	case protocol.EventPlayerShoot:
		if !c.inputs.Allow() {
			RecordInboundDropped("rate_limit")
			return
		}
		if c.hub.engine.Fire(c.id) && c.hub.cfg.BroadcastOnInput {
			c.hub.BroadcastState()
		}

	case protocol.EventPing:
		if !c.inputs.Allow() {
			RecordInboundDropped("rate_limit")
			return
		}
		c.hub.sendTo(c, protocol.EventPong, nil)

	case protocol.EventChatMessage:
		if !c.chat.Allow() {
			RecordInboundDropped("rate_limit")
			return
		}
		text, err := c.chatText(msg)
		if err != nil {
			RecordInboundDropped("invalid")
			return
		}
		c.hub.Broadcast(protocol.EventChatMessage, protocol.ChatRelay{PlayerID: c.id, Message: text})

	default:
		RecordInboundDropped("unknown_event")
	}
}

var errChatTooLarge = errors.New("chat payload too large")

// chatText relays strings trimmed to the chat limit. Other payloads are
// relayed untouched when their encoded size fits the limit.
func (c *wsClient) chatText(msg protocol.Message) (any, error) {
	var v any
	if err := msg.Bind(&v); err != nil {
		return nil, err
	}
	if s, ok := v.(string); ok {
		return protocol.TrimChat(s, c.hub.cfg.MaxChatLength), nil
	}
	if limit := c.hub.cfg.MaxChatLength; limit > 0 && len(msg.Data) > limit {
		return nil, errChatTooLarge
	}
	return v, nil
}
