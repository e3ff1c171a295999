package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errTransportClosed = errors.New("hub: transport closed")

// transport is one live websocket after a successful handshake.
// Writes are serialized; reads happen on a single goroutine.
type transport struct {
	connectionID string
	socket       *websocket.Conn

	// records received in the handshake frame after the handshake response
	backlog [][]byte

	mu     sync.Mutex
	closed bool
}

func (t *transport) write(m Message) error {
	b, err := encodeRecord(m)
	if err != nil {
		return err
	}
	return t.writeRaw(b)
}

func (t *transport) writeRaw(b []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errTransportClosed
	}
	return t.socket.WriteMessage(websocket.TextMessage, b)
}

// readFrame reads the next frame and splits it into records. A zero timeout
// disables the read deadline.
func (t *transport) readFrame(timeout time.Duration) ([][]byte, error) {
	if timeout > 0 {
		if err := t.socket.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
	}
	_, frame, err := t.socket.ReadMessage()
	if err != nil {
		return nil, err
	}
	return splitRecords(frame)
}

// handshake sends the protocol request and waits for the response record.
func (t *transport) handshake(timeout time.Duration) error {
	b, err := encodeRecord(HandshakeRequest{Protocol: ProtocolName, Version: ProtocolVersion})
	if err != nil {
		return err
	}
	if err := t.writeRaw(b); err != nil {
		return fmt.Errorf("hub: sending handshake: %w", err)
	}
	records, err := t.readFrame(timeout)
	if err != nil {
		return fmt.Errorf("hub: reading handshake: %w", err)
	}
	if len(records) == 0 {
		return errors.New("hub: empty handshake response")
	}
	var resp HandshakeResponse
	if err := json.Unmarshal(records[0], &resp); err != nil {
		return fmt.Errorf("hub: invalid handshake response: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("hub: handshake rejected: %s", resp.Error)
	}
	t.backlog = records[1:]
	return nil
}

// close sends a close frame and closes the socket. Safe to call more than once.
func (t *transport) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	_ = t.socket.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return t.socket.Close()
}
