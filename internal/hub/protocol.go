package hub

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// recordSeparator terminates every JSON hub protocol message.
const recordSeparator byte = 0x1e

// Message types of the JSON hub protocol.
const (
	TypeInvocation       = 1
	TypeStreamItem       = 2
	TypeCompletion       = 3
	TypeStreamInvocation = 4
	TypeCancelInvocation = 5
	TypePing             = 6
	TypeClose            = 7
)

// ProtocolName and ProtocolVersion are sent in the handshake.
const (
	ProtocolName    = "json"
	ProtocolVersion = 1
)

// HandshakeRequest is the first record a client sends.
type HandshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

// HandshakeResponse is the server's answer; an empty object means success.
type HandshakeResponse struct {
	Error string `json:"error,omitempty"`
}

// Message is the envelope for every record after the handshake.
// Type discriminates which of the remaining fields are meaningful.
type Message struct {
	Type int `json:"type"`

	// Invocation / completion fields
	InvocationID string            `json:"invocationId,omitempty"`
	Target       string            `json:"target,omitempty"`
	Arguments    []json.RawMessage `json:"arguments,omitempty"`

	// Completion fields
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`

	// Close fields
	AllowReconnect bool `json:"allowReconnect,omitempty"`
}

// NewInvocation builds an invocation record. An empty id means the caller
// does not expect a completion.
func NewInvocation(id, target string, args ...any) (Message, error) {
	raw := make([]json.RawMessage, 0, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return Message{}, fmt.Errorf("encoding argument %d of %s: %w", i, target, err)
		}
		raw = append(raw, b)
	}
	return Message{
		Type:         TypeInvocation,
		InvocationID: id,
		Target:       target,
		Arguments:    raw,
	}, nil
}

// NewCompletion builds a completion record for id.
func NewCompletion(id string, result any, errMsg string) (Message, error) {
	m := Message{Type: TypeCompletion, InvocationID: id, Error: errMsg}
	if errMsg == "" && result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return Message{}, err
		}
		m.Result = b
	}
	return m, nil
}

// PingMessage keeps idle connections alive.
var PingMessage = Message{Type: TypePing}

// encodeRecord marshals v and appends the record separator.
func encodeRecord(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, recordSeparator), nil
}

var errIncompleteRecord = errors.New("hub: message is missing the record separator")

// splitRecords splits a frame into its records. The final record must be
// terminated; a websocket frame never carries a partial record.
func splitRecords(frame []byte) ([][]byte, error) {
	if len(frame) == 0 {
		return nil, nil
	}
	if frame[len(frame)-1] != recordSeparator {
		return nil, errIncompleteRecord
	}
	parts := bytes.Split(frame[:len(frame)-1], []byte{recordSeparator})
	out := parts[:0]
	for _, p := range parts {
		if len(p) > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

// parseMessage decodes one record.
func parseMessage(record []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(record, &m); err != nil {
		return Message{}, fmt.Errorf("hub: invalid message: %w", err)
	}
	if m.Type == 0 {
		return Message{}, fmt.Errorf("hub: message without type: %s", record)
	}
	return m, nil
}
