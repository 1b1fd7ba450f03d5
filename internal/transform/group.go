package transform

import (
	"fmt"
	"strings"

	"github.com/dyluth/overlay/internal/viewport"
)

// Anchor names the point of a band that stays fixed while its group scales.
type Anchor string

const (
	AnchorNW     Anchor = "nw"
	AnchorN      Anchor = "n"
	AnchorNE     Anchor = "ne"
	AnchorW      Anchor = "w"
	AnchorCenter Anchor = "center"
	AnchorE      Anchor = "e"
	AnchorSW     Anchor = "sw"
	AnchorS      Anchor = "s"
	AnchorSE     Anchor = "se"
)

// ParseAnchor normalises an anchor token. Edge labels (top, bottom, left,
// right) and their corner combinations are accepted. Empty means nw.
func ParseAnchor(token string) (Anchor, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	t = strings.NewReplacer("-", "", "_", "", " ", "").Replace(t)
	switch t {
	case "", "nw", "topleft":
		return AnchorNW, nil
	case "n", "top", "topcenter":
		return AnchorN, nil
	case "ne", "topright":
		return AnchorNE, nil
	case "w", "left", "middleleft":
		return AnchorW, nil
	case "center", "centre", "middle", "c":
		return AnchorCenter, nil
	case "e", "right", "middleright":
		return AnchorE, nil
	case "sw", "bottomleft":
		return AnchorSW, nil
	case "s", "bottom", "bottomcenter":
		return AnchorS, nil
	case "se", "bottomright":
		return AnchorSE, nil
	default:
		return "", fmt.Errorf("invalid anchor %q", token)
	}
}

// fractions returns where the anchor sits across and down its band, in [0, 1].
func (a Anchor) fractions() (float64, float64) {
	fx, fy := 0.0, 0.0
	switch a {
	case AnchorN, AnchorCenter, AnchorS:
		fx = 0.5
	case AnchorNE, AnchorE, AnchorSE:
		fx = 1
	}
	switch a {
	case AnchorW, AnchorCenter, AnchorE:
		fy = 0.5
	case AnchorSW, AnchorS, AnchorSE:
		fy = 1
	}
	return fx, fy
}

// Group is the transform shared by every item assigned to one band.
// Band coordinates are virtual units. Scale 0 is treated as 1.
type Group struct {
	Name     string
	Prefixes []string

	BandMinX float64
	BandMinY float64
	BandMaxX float64
	BandMaxY float64

	// BandAnchorX and BandAnchorY pin the anchor explicitly; when nil the
	// anchor is resolved from Anchor against the band rectangle.
	BandAnchorX *float64
	BandAnchorY *float64
	Anchor      Anchor

	DX    float64
	DY    float64
	Scale float64
}

// Validate checks band ordering and that every number is finite.
func (g *Group) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("group name is required")
	}
	for _, v := range []float64{g.BandMinX, g.BandMinY, g.BandMaxX, g.BandMaxY, g.DX, g.DY, g.Scale} {
		if !finite(v) {
			return fmt.Errorf("group '%s': non-finite value", g.Name)
		}
	}
	if g.BandMaxX < g.BandMinX || g.BandMaxY < g.BandMinY {
		return fmt.Errorf("group '%s': band max must not be less than band min", g.Name)
	}
	if g.Scale < 0 {
		return fmt.Errorf("group '%s': scale must be >= 0, got %v", g.Name, g.Scale)
	}
	if _, err := ParseAnchor(string(g.Anchor)); err != nil {
		return fmt.Errorf("group '%s': %w", g.Name, err)
	}
	return nil
}

// Matches reports whether an item id belongs to this group.
// It returns the length of the longest matching prefix, or -1.
func (g *Group) Matches(id string) int {
	best := -1
	for _, prefix := range g.Prefixes {
		if strings.HasPrefix(id, prefix) && len(prefix) > best {
			best = len(prefix)
		}
	}
	return best
}

// EffectiveScale returns the scale applied around the anchor.
func (g *Group) EffectiveScale() float64 {
	if g.Scale == 0 {
		return 1
	}
	return g.Scale
}

// AnchorPoint returns the declared anchor in virtual units, before remapping
// and translation.
func (g *Group) AnchorPoint() Point {
	anchor, err := ParseAnchor(string(g.Anchor))
	if err != nil {
		anchor = AnchorNW
	}
	fx, fy := anchor.fractions()
	p := Point{
		X: g.BandMinX + (g.BandMaxX-g.BandMinX)*fx,
		Y: g.BandMinY + (g.BandMaxY-g.BandMinY)*fy,
	}
	if g.BandAnchorX != nil {
		p.X = *g.BandAnchorX
	}
	if g.BandAnchorY != nil {
		p.Y = *g.BandAnchorY
	}
	return p
}

// AnchorFractionX returns how far across the band the anchor sits, in [0, 1].
func (g *Group) AnchorFractionX() float64 {
	anchor, err := ParseAnchor(string(g.Anchor))
	if err != nil {
		return 0
	}
	fx, _ := anchor.fractions()
	return fx
}

// groupResult carries every intermediate of one point through a group.
type groupResult struct {
	Virtual   Point // remapped and translated item point
	Anchor    Point // remapped and translated anchor, virtual units
	AnchorPx  Point // anchor under the legacy mapping
	ItemPx    Point // item under the legacy mapping
	Final     Point
	GroupUsed bool
}

// apply runs p through the group pipeline. overrideX, when set, replaces the
// anchor x (in virtual units) and skips the dx offset on that axis.
func (g *Group) apply(m viewport.Mapping, remap AxisRemap, p Point, overrideX *float64) groupResult {
	translate := Point{X: g.DX, Y: g.DY}

	anchor := remap.Apply(g.AnchorPoint()).Add(translate)
	if overrideX != nil {
		anchor.X = *overrideX
	}
	item := remap.Apply(p).Add(translate)

	ax, ay := m.Apply(anchor.X, anchor.Y)
	ix, iy := m.Apply(item.X, item.Y)
	anchorPx := Point{X: ax, Y: ay}
	itemPx := Point{X: ix, Y: iy}

	// Scale around the physical anchor so the anchor itself never moves.
	final := anchorPx.Add(itemPx.Sub(anchorPx).Mul(g.EffectiveScale()))

	return groupResult{
		Virtual:   item,
		Anchor:    anchor,
		AnchorPx:  anchorPx,
		ItemPx:    itemPx,
		Final:     final,
		GroupUsed: true,
	}
}
