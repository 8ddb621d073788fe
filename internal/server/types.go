// Package server defines the relay's message envelope, sentinel errors, and
// small helpers shared by client and relay logic.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedEnvelope is returned when an inbound payload is not a JSON object.
	ErrMalformedEnvelope = errors.New("malformed envelope")
	// ErrClientClosed is returned when enqueuing to a connection that is not open.
	ErrClientClosed = errors.New("client is not open")
	// ErrSendBufferFull is returned when a peer's outbound queue has no room.
	ErrSendBufferFull = errors.New("client send buffer full")
	// ErrRelayStopped is returned when the relay loop is no longer running.
	ErrRelayStopped = errors.New("relay stopped")
)

// appIDField is the only envelope field the relay interprets.
const appIDField = "app_id"

// Envelope is the parsed view of an inbound payload. Raw keeps the exact
// bytes received; they are what gets forwarded.
type Envelope struct {
	AppID string
	Raw   []byte
}

// HasAppID reports whether the envelope names an identifier.
func (e Envelope) HasAppID() bool {
	return e.AppID != ""
}

// ParseEnvelope checks that raw is a JSON object and extracts app_id when
// it is a non-empty string. Other app_id types are left as opaque payload.
func ParseEnvelope(raw []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, fmt.Errorf("%w: payload is not a JSON object", ErrMalformedEnvelope)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	env := Envelope{Raw: raw}
	if value, ok := fields[appIDField]; ok {
		var id string
		if err := json.Unmarshal(value, &id); err == nil {
			env.AppID = id
		}
	}
	return env, nil
}

// outboundMessage is one frame queued for a peer. The frame type of the
// inbound message is preserved.
type outboundMessage struct {
	messageType int
	payload     []byte
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
