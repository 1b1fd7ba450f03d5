// Package classify turns raw decoded payloads into validated store items.
//
// Payloads arrive as untyped JSON objects from the broadcaster. Classify is the
// only place where those maps are read; everything downstream works on the
// typed variants in package store.
package classify

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dyluth/overlay/internal/store"
	"github.com/dyluth/overlay/internal/timespec"
)

// Default values applied to message payloads that omit geometry or styling.
const (
	DefaultColor = "white"
	DefaultSize  = "normal"
)

// RejectError reports why a payload was not accepted.
type RejectError struct {
	ID     string
	Reason string
}

func (e *RejectError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("payload rejected: %s", e.Reason)
	}
	return fmt.Sprintf("payload %q rejected: %s", e.ID, e.Reason)
}

// IsRejected returns true if err is a payload rejection.
func IsRejected(err error) bool {
	var re *RejectError
	return errors.As(err, &re)
}

func reject(id, format string, a ...any) error {
	return &RejectError{ID: id, Reason: fmt.Sprintf(format, a...)}
}

// Classify validates raw and builds the item it describes.
// now is the moment of receipt and anchors the TTL conversion.
func Classify(raw map[string]any, now time.Time) (store.Item, error) {
	id, _ := raw["id"].(string)
	if id == "" {
		return store.Item{}, reject("", "missing id")
	}

	kind, err := kindOf(raw)
	if err != nil {
		return store.Item{}, reject(id, "%v", err)
	}

	item := store.Item{ID: id, Kind: kind}
	switch kind {
	case store.KindMessage:
		item.Message, err = parseMessage(raw)
	case store.KindRect:
		item.Rect, err = parseRect(raw)
	case store.KindVector:
		item.Vector, err = parseVector(raw)
	}
	if err != nil {
		return store.Item{}, reject(id, "%v", err)
	}

	expiry, err := expiryFor(raw, now)
	if err != nil {
		return store.Item{}, reject(id, "%v", err)
	}
	item.Expiry = expiry

	return item, nil
}

// kindOf reads the type/shape discriminators.
func kindOf(raw map[string]any) (store.Kind, error) {
	typ, _ := raw["type"].(string)
	switch typ {
	case "message":
		return store.KindMessage, nil
	case "shape":
		shape, _ := raw["shape"].(string)
		switch shape {
		case "rect":
			return store.KindRect, nil
		case "vect", "vector":
			return store.KindVector, nil
		case "":
			return "", fmt.Errorf("shape payload without shape field")
		default:
			return "", fmt.Errorf("unsupported shape %q", shape)
		}
	case "":
		return "", fmt.Errorf("missing type field")
	default:
		return "", fmt.Errorf("unsupported type %q", typ)
	}
}

func parseMessage(raw map[string]any) (*store.Message, error) {
	text, ok := raw["text"].(string)
	if !ok {
		return nil, fmt.Errorf("message without text")
	}

	msg := &store.Message{
		Text:  text,
		Color: stringField(raw, "color", DefaultColor),
		Size:  stringField(raw, "size", DefaultSize),
	}

	// Geometry falls back to the canvas origin.
	if x, present, ok := numberField(raw, "x"); present && ok {
		msg.X = x
	}
	if y, present, ok := numberField(raw, "y"); present && ok {
		msg.Y = y
	}
	return msg, nil
}

func parseRect(raw map[string]any) (*store.Rect, error) {
	var geom [4]float64
	for i, key := range []string{"x", "y", "w", "h"} {
		v, present, ok := numberField(raw, key)
		if !present {
			return nil, fmt.Errorf("rect missing %s", key)
		}
		if !ok {
			return nil, fmt.Errorf("rect %s is not numeric: %v", key, raw[key])
		}
		geom[i] = v
	}

	return &store.Rect{
		X:     geom[0],
		Y:     geom[1],
		W:     geom[2],
		H:     geom[3],
		Color: stringField(raw, "color", DefaultColor),
		Fill:  stringField(raw, "fill", ""),
	}, nil
}

func parseVector(raw map[string]any) (*store.Vector, error) {
	list, ok := raw["vector"].([]any)
	if !ok {
		return nil, fmt.Errorf("vector payload without point list")
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("vector has no points")
	}

	points := make([]store.VectorPoint, 0, len(list))
	for i, entry := range list {
		p, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("vector point %d is not an object", i)
		}
		x, xPresent, xOK := numberField(p, "x")
		y, yPresent, yOK := numberField(p, "y")
		if !xPresent || !yPresent || !xOK || !yOK {
			return nil, fmt.Errorf("vector point %d has non-numeric coordinates", i)
		}
		points = append(points, store.VectorPoint{
			X:      x,
			Y:      y,
			Color:  stringField(p, "color", ""),
			Marker: stringField(p, "marker", ""),
			Text:   stringField(p, "text", ""),
		})
	}

	// A lone point is only meaningful as a marker or label.
	if len(points) == 1 && points[0].Marker == "" && points[0].Text == "" {
		return nil, fmt.Errorf("single-point vector without marker or text")
	}

	return &store.Vector{
		BaseColor: stringField(raw, "color", DefaultColor),
		Points:    points,
	}, nil
}

// expiryFor converts the payload ttl (seconds) to an absolute expiry.
// Absent ttl never expires; ttl <= 0 expires at the moment of receipt.
// Huge TTLs saturate rather than wrapping into the past.
func expiryFor(raw map[string]any, now time.Time) (*time.Time, error) {
	ttl, present, ok := numberField(raw, "ttl")
	if !present {
		return nil, nil
	}
	if !ok {
		return nil, fmt.Errorf("ttl is not numeric: %v", raw["ttl"])
	}

	expiry := timespec.ExpiryAt(now, ttl)
	return &expiry, nil
}

// Classifier applies payloads to a store, logging rejections.
type Classifier struct {
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock overrides the receipt clock. Tests use it to pin TTL arithmetic.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) {
		c.now = now
	}
}

// New creates a classifier. A nil logger discards rejection logs.
func New(logger *slog.Logger, opts ...Option) *Classifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Classifier{
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Process classifies raw and upserts the result into s.
// Returns false, leaving s untouched, when the payload is rejected.
func (c *Classifier) Process(s *store.Store, raw map[string]any) bool {
	item, err := c.Classify(raw)
	if err != nil {
		c.logger.Debug("classify: payload dropped", "error", err)
		return false
	}
	s.Upsert(item)
	return true
}

// Classify runs Classify against the classifier clock.
func (c *Classifier) Classify(raw map[string]any) (store.Item, error) {
	return Classify(raw, c.now())
}
