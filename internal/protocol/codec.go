// Package protocol defines the client wire format: an {event, data} envelope
// carried as JSON text frames or msgpack binary frames.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrMalformed is wrapped by every decode failure.
var ErrMalformed = errors.New("malformed message")

// Message is a decoded inbound frame. Data stays in the codec's encoding until
// Bind is called with a concrete target.
type Message struct {
	Event string
	Data  []byte

	codec Codec
}

// Bind decodes the payload into v.
func (m Message) Bind(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrMalformed, m.Event)
	}
	if err := m.codec.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, m.Event, err)
	}
	return nil
}

// Codec encodes outbound envelopes and decodes inbound ones.
type Codec interface {
	Name() string
	// FrameType is the websocket message type frames are sent with.
	FrameType() int
	Encode(event string, data any) ([]byte, error)
	Decode(frame []byte) (Message, error)
	Unmarshal(data []byte, v any) error
}

// Lookup returns the codec registered under name. Unknown and empty names get
// the JSON codec.
func Lookup(name string) Codec {
	if name == MsgpackName {
		return Msgpack
	}
	return JSON
}

const (
	JSONName    = "json"
	MsgpackName = "msgpack"
)

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type jsonCodec struct{}

func (jsonCodec) Name() string   { return JSONName }
func (jsonCodec) FrameType() int { return websocket.TextMessage }

func (jsonCodec) Encode(event string, data any) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: data})
}

func (jsonCodec) Decode(frame []byte) (Message, error) {
	var in struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(frame, &in); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if in.Event == "" {
		return Message{}, fmt.Errorf("%w: missing event", ErrMalformed)
	}
	data := []byte(in.Data)
	if bytes.Equal(data, []byte("null")) {
		data = nil
	}
	return Message{Event: in.Event, Data: data, codec: JSON}, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// msgpackCodec reuses the json struct tags so both codecs share field names.
type msgpackCodec struct{}

func (msgpackCodec) Name() string   { return MsgpackName }
func (msgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (msgpackCodec) Encode(event string, data any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(outbound{Event: event, Data: data}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c msgpackCodec) Decode(frame []byte) (Message, error) {
	var in struct {
		Event string             `json:"event"`
		Data  msgpack.RawMessage `json:"data"`
	}
	if err := c.Unmarshal(frame, &in); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if in.Event == "" {
		return Message{}, fmt.Errorf("%w: missing event", ErrMalformed)
	}
	data := []byte(in.Data)
	if len(data) == 1 && data[0] == 0xc0 { // nil
		data = nil
	}
	return Message{Event: in.Event, Data: data, codec: Msgpack}, nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
