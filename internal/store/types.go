package store

import (
	"fmt"
	"time"
)

// Kind identifies which payload variant an Item carries.
type Kind string

const (
	// KindMessage is a text annotation anchored at a single point
	KindMessage Kind = "message"

	// KindRect is an axis-aligned rectangle in virtual coordinates
	KindRect Kind = "rect"

	// KindVector is an ordered polyline, possibly a single marker point
	KindVector Kind = "vector"
)

// Validate checks that the kind is one of the defined values.
func (k Kind) Validate() error {
	switch k {
	case KindMessage, KindRect, KindVector:
		return nil
	default:
		return fmt.Errorf("invalid kind: %q (must be message, rect or vector)", string(k))
	}
}

// Item is one annotation on the overlay canvas.
// Exactly one of Message, Rect or Vector is set, matching Kind.
// Items are never mutated in place; updates replace the whole value.
type Item struct {
	ID      string
	Kind    Kind
	Message *Message
	Rect    *Rect
	Vector  *Vector

	// Expiry is the moment after which the item is stale. nil never expires.
	Expiry *time.Time
}

// Message is a text annotation. X and Y are the text origin in virtual units.
type Message struct {
	Text  string
	Color string
	X     float64
	Y     float64
	Size  string // legacy size token: small, normal, large, huge
}

// Rect is a rectangle in virtual units. Fill is empty when the rect is outline-only.
type Rect struct {
	X     float64
	Y     float64
	W     float64
	H     float64
	Color string
	Fill  string
}

// Vector is an ordered sequence of points drawn in BaseColor unless a point overrides it.
type Vector struct {
	BaseColor string
	Points    []VectorPoint
}

// VectorPoint is one vertex of a vector. Color, Marker and Text are optional overrides.
type VectorPoint struct {
	X      float64
	Y      float64
	Color  string
	Marker string
	Text   string
}

// Expired reports whether the item is stale at now.
// An item expires strictly after its expiry moment, so an item whose expiry
// equals now is still live.
func (i Item) Expired(now time.Time) bool {
	return i.Expiry != nil && i.Expiry.Before(now)
}
