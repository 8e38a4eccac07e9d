// Package protocol defines the kitten-ipc wire messages and their line framing.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Type tags a wire message.
type Type int

const (
	TypeCall     Type = 1
	TypeResponse Type = 2
)

func (t Type) String() string {
	switch t {
	case TypeCall:
		return "call"
	case TypeResponse:
		return "response"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Message is the decoded form of one wire line. Call messages use Method and
// Params; Response messages use Result or Error.
type Message struct {
	Type   Type   `json:"type"`
	ID     uint64 `json:"id"`
	Method string `json:"method,omitempty"`
	Params []any  `json:"params,omitempty"`
	Result []any  `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type callWire struct {
	Type   Type   `json:"type"`
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type responseWire struct {
	Type   Type   `json:"type"`
	ID     uint64 `json:"id"`
	Result []any  `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewCall builds a Call message.
func NewCall(id uint64, method string, params []any) Message {
	if params == nil {
		params = []any{}
	}
	return Message{Type: TypeCall, ID: id, Method: method, Params: params}
}

// NewResult builds a successful Response carrying a single value.
func NewResult(id uint64, value any) Message {
	return Message{Type: TypeResponse, ID: id, Result: []any{value}}
}

// NewError builds a failed Response.
func NewError(id uint64, err error) Message {
	msg := Message{Type: TypeResponse, ID: id, Error: "unknown error"}
	if err != nil && err.Error() != "" {
		msg.Error = err.Error()
	}
	return msg
}

// Failed reports whether a Response carries an error.
func (m Message) Failed() bool {
	return m.Error != ""
}

// Encode serializes one message as a single newline-terminated line.
func Encode(msg Message) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch msg.Type {
	case TypeCall:
		params := msg.Params
		if params == nil {
			params = []any{}
		}
		data, err = json.Marshal(callWire{Type: msg.Type, ID: msg.ID, Method: msg.Method, Params: params})
	case TypeResponse:
		wire := responseWire{Type: msg.Type, ID: msg.ID, Error: msg.Error}
		if msg.Error == "" {
			wire.Result = msg.Result
			if wire.Result == nil {
				wire.Result = []any{nil}
			}
		}
		data, err = json.Marshal(wire)
	default:
		return nil, fmt.Errorf("encode message: unknown type %s", msg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses one line into a Message.
func Decode(line []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	switch msg.Type {
	case TypeCall:
		if msg.Params == nil {
			msg.Params = []any{}
		}
	case TypeResponse:
	default:
		return msg, fmt.Errorf("decode message: unknown type %s", msg.Type)
	}
	return msg, nil
}
