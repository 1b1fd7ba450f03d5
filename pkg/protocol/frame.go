package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Known broadcast events.
const (
	EventOverlayConfig         = "OverlayConfig"
	EventLegacyOverlay         = "LegacyOverlay"
	EventOverlayCycle          = "OverlayCycle"
	EventOverlayGroupTransform = "OverlayGroupTransform"
	EventOverlayGroupReset     = "OverlayGroupReset"
)

// Acknowledgement statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	// ErrNoAck is returned when a request sees no acknowledgement within its read budget.
	ErrNoAck = errors.New("no acknowledgement received")

	// ErrNotConnected is returned by Request while the client has no live connection.
	ErrNotConnected = errors.New("not connected to broadcaster")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("client closed")
)

// Frame is one decoded line from the broadcaster.
type Frame struct {
	Raw    []byte
	Fields map[string]any
}

// DecodeFrame parses a single line. Surrounding whitespace is ignored.
// The line must hold a JSON object.
func DecodeFrame(line []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return Frame{}, fmt.Errorf("empty frame")
	}

	var fields map[string]any
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	if fields == nil {
		return Frame{}, fmt.Errorf("frame is not a JSON object")
	}

	raw := make([]byte, len(trimmed))
	copy(raw, trimmed)
	return Frame{Raw: raw, Fields: fields}, nil
}

// Event returns the broadcast event name, or "" if the frame has none.
func (f Frame) Event() string {
	event, _ := f.Fields["event"].(string)
	return event
}

// IsAck reports whether the frame is an acknowledgement.
func (f Frame) IsAck() bool {
	_, ok := f.Fields["status"]
	return ok
}

// Ack converts an acknowledgement frame.
func (f Frame) Ack() Ack {
	status, _ := f.Fields["status"].(string)
	msg, _ := f.Fields["error"].(string)
	return Ack{Status: status, Error: msg}
}

// Ack is the broadcaster's reply to a request.
type Ack struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// OK reports whether the request succeeded.
func (a Ack) OK() bool {
	return a.Status == StatusOK
}

// Err returns nil for a successful ack and an *AckError otherwise.
func (a Ack) Err() error {
	if a.OK() {
		return nil
	}
	return &AckError{Status: a.Status, Message: a.Error}
}

// AckError is a request the broadcaster answered with a non-ok status.
type AckError struct {
	Status  string
	Message string
}

func (e *AckError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("broadcaster returned status %q", e.Status)
	}
	return fmt.Sprintf("broadcaster returned status %q: %s", e.Status, e.Message)
}

// Request is a command sent to the broadcaster.
type Request struct {
	CLI     string `json:"cli"`
	Payload any    `json:"payload"`
}

// WriteFrame encodes v as one JSON line.
func WriteFrame(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}
