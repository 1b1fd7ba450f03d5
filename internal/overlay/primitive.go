package overlay

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dyluth/overlay/internal/transform"
)

// PrimitiveKind identifies a draw primitive.
type PrimitiveKind string

const (
	PrimitiveText     PrimitiveKind = "text"
	PrimitiveQuad     PrimitiveKind = "quad"
	PrimitivePolyline PrimitiveKind = "polyline"
	PrimitiveMarker   PrimitiveKind = "marker"
)

// Primitive is ready-to-draw physical geometry for one item or one part of
// an item. Coordinates are device pixels.
type Primitive struct {
	Kind   PrimitiveKind     `json:"kind"`
	ID     string            `json:"id"`
	Points []transform.Point `json:"points"`
	Color  string            `json:"color,omitempty"`

	// Colors holds per-vertex colors for polylines with point overrides.
	Colors []string `json:"colors,omitempty"`

	Fill      string  `json:"fill,omitempty"`
	Text      string  `json:"text,omitempty"`
	Marker    string  `json:"marker,omitempty"`
	FontPoint float64 `json:"font_point,omitempty"`
}

// Frame is one render pass.
type Frame struct {
	Seq        uint64      `json:"seq"`
	Time       time.Time   `json:"time"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Primitives []Primitive `json:"primitives"`
}

// Renderer draws frames. Implementations live outside the core.
type Renderer interface {
	Render(ctx context.Context, frame Frame) error
}

// JSONRenderer writes each frame as a single JSON line, for out-of-process
// renderers reading stdout.
type JSONRenderer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONRenderer creates a renderer writing to w.
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

// Render encodes frame followed by a newline.
func (r *JSONRenderer) Render(_ context.Context, frame Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if frame.Primitives == nil {
		frame.Primitives = []Primitive{}
	}
	if err := r.enc.Encode(frame); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", frame.Seq, err)
	}
	return nil
}

// MsgpackRenderer writes each frame as a 4-byte big-endian length followed
// by the MessagePack encoding of the frame. Field names match the JSON form.
type MsgpackRenderer struct {
	mu  sync.Mutex
	w   io.Writer
	buf bytes.Buffer
	enc *msgpack.Encoder
}

// NewMsgpackRenderer creates a length-prefixed MessagePack renderer writing to w.
func NewMsgpackRenderer(w io.Writer) *MsgpackRenderer {
	r := &MsgpackRenderer{w: w}
	r.enc = msgpack.NewEncoder(&r.buf)
	r.enc.SetCustomStructTag("json")
	return r
}

// Render encodes frame and writes it with its length prefix.
func (r *MsgpackRenderer) Render(_ context.Context, frame Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if frame.Primitives == nil {
		frame.Primitives = []Primitive{}
	}

	r.buf.Reset()
	if err := r.enc.Encode(frame); err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", frame.Seq, err)
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(r.buf.Len()))
	if _, err := r.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := r.w.Write(r.buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", frame.Seq, err)
	}
	return nil
}

// NewRenderer returns the renderer for an output format: "json" or "msgpack".
func NewRenderer(format string, w io.Writer) (Renderer, error) {
	switch format {
	case "", "json":
		return NewJSONRenderer(w), nil
	case "msgpack":
		return NewMsgpackRenderer(w), nil
	default:
		return nil, fmt.Errorf("unknown frame format: %s", format)
	}
}
