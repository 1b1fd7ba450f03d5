package transform

import "math"

// Point is a 2D point in either virtual or physical units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is a convenience constructor for Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p-q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Mul returns p scaled by s.
func (p Point) Mul(s float64) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}

// Finite reports whether both coordinates are finite numbers.
func (p Point) Finite() bool {
	return finite(p.X) && finite(p.Y)
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Bounds returns the bounding box of pts. An empty slice yields the zero Rect.
func Bounds(pts []Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	r := Rect{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		r.MinX = math.Min(r.MinX, p.X)
		r.MinY = math.Min(r.MinY, p.Y)
		r.MaxX = math.Max(r.MaxX, p.X)
		r.MaxY = math.Max(r.MaxY, p.Y)
	}
	return r
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// AxisFunc remaps one axis of a virtual coordinate.
type AxisFunc func(float64) float64

// AxisRemap carries optional per-axis remapping applied before the linear
// mapping, for mirrored or rotated display setups. A nil axis is the identity.
type AxisRemap struct {
	X AxisFunc
	Y AxisFunc
}

// Apply remaps p.
func (r AxisRemap) Apply(p Point) Point {
	if r.X != nil {
		p.X = r.X(p.X)
	}
	if r.Y != nil {
		p.Y = r.Y(p.Y)
	}
	return p
}

// Mirror returns an AxisFunc reflecting values across [0, extent].
func Mirror(extent float64) AxisFunc {
	return func(v float64) float64 {
		return extent - v
	}
}
