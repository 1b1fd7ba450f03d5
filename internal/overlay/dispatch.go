package overlay

import (
	"encoding/json"
	"fmt"

	"github.com/dyluth/overlay/internal/transform"
	"github.com/dyluth/overlay/internal/viewport"
	"github.com/dyluth/overlay/pkg/protocol"
)

// Payload type that clears every item.
const typeLegacyClear = "legacy_clear"

// Cycle actions.
const (
	CycleNext  = "next"
	CyclePrev  = "prev"
	CycleClear = "clear"
)

// Dispatch applies one broadcast frame. It returns true when the overlay
// state changed. Malformed frames are logged and dropped.
func (e *Engine) Dispatch(frame protocol.Frame) bool {
	fields := payloadOf(frame.Fields)

	switch event := frame.Event(); event {
	case protocol.EventLegacyOverlay, "":
		if _, typed := fields["type"]; !typed && event == "" {
			e.logger.Debug("overlay: ignoring frame without event or type")
			return false
		}
		return e.applyLegacy(fields)

	case protocol.EventOverlayConfig:
		return e.applyConfig(fields)

	case protocol.EventOverlayGroupTransform:
		return e.applyGroupTransform(fields)

	case protocol.EventOverlayGroupReset:
		return e.applyGroupReset(fields)

	case protocol.EventOverlayCycle:
		action, _ := fields["action"].(string)
		return e.Cycle(action)

	default:
		e.logger.Debug("overlay: ignoring unknown event", "event", event)
		return false
	}
}

// payloadOf returns the nested "payload" object when the broadcaster wrapped
// the producer's payload, and the frame itself otherwise.
func payloadOf(fields map[string]any) map[string]any {
	if nested, ok := fields["payload"].(map[string]any); ok {
		return nested
	}
	return fields
}

func (e *Engine) applyLegacy(fields map[string]any) bool {
	if typ, _ := fields["type"].(string); typ == typeLegacyClear {
		if e.store.Len() == 0 {
			return false
		}
		e.store.Clear()
		e.selected = ""
		e.markDirty()
		return true
	}

	if !e.classifier.Process(e.store, fields) {
		return false
	}
	e.markDirty()
	return true
}

func (e *Engine) applyConfig(fields map[string]any) bool {
	raw, ok := fields["scale_mode"]
	if !ok {
		return false
	}
	mode, _ := raw.(string)
	if mode == string(e.resolver.Mode()) {
		return false
	}
	if err := e.resolver.SetMode(viewport.ScaleMode(mode)); err != nil {
		e.logger.Warn("overlay: rejected config update", "error", err)
		return false
	}
	e.logger.Info("overlay: scale mode changed", "mode", mode)
	e.markDirty()
	return true
}

// groupPayload is the wire form of OverlayGroupTransform.
type groupPayload struct {
	Name        string   `json:"group"`
	Prefixes    []string `json:"prefixes"`
	BandMinX    float64  `json:"band_min_x"`
	BandMinY    float64  `json:"band_min_y"`
	BandMaxX    float64  `json:"band_max_x"`
	BandMaxY    float64  `json:"band_max_y"`
	BandAnchorX *float64 `json:"band_anchor_x"`
	BandAnchorY *float64 `json:"band_anchor_y"`
	Anchor      string   `json:"anchor"`
	DX          float64  `json:"dx"`
	DY          float64  `json:"dy"`
	Scale       float64  `json:"scale"`
}

func decodeGroup(fields map[string]any) (transform.Group, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return transform.Group{}, fmt.Errorf("failed to encode group payload: %w", err)
	}
	var p groupPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return transform.Group{}, fmt.Errorf("failed to decode group payload: %w", err)
	}
	if p.Name == "" {
		p.Name, _ = fields["name"].(string)
	}

	anchor, err := transform.ParseAnchor(p.Anchor)
	if err != nil {
		return transform.Group{}, err
	}
	return transform.Group{
		Name:        p.Name,
		Prefixes:    p.Prefixes,
		BandMinX:    p.BandMinX,
		BandMinY:    p.BandMinY,
		BandMaxX:    p.BandMaxX,
		BandMaxY:    p.BandMaxY,
		BandAnchorX: p.BandAnchorX,
		BandAnchorY: p.BandAnchorY,
		Anchor:      anchor,
		DX:          p.DX,
		DY:          p.DY,
		Scale:       p.Scale,
	}, nil
}

func (e *Engine) applyGroupTransform(fields map[string]any) bool {
	group, err := decodeGroup(fields)
	if err == nil {
		err = e.groups.Set(group)
	}
	if err != nil {
		e.logger.Warn("overlay: rejected group transform", "error", err)
		return false
	}
	e.markDirty()
	return true
}

func (e *Engine) applyGroupReset(fields map[string]any) bool {
	name, _ := fields["group"].(string)
	if name == "" {
		if e.groups.Len() == 0 {
			return false
		}
		e.groups.Reset()
		e.markDirty()
		return true
	}
	if !e.groups.Remove(name) {
		return false
	}
	e.markDirty()
	return true
}

// Cycle moves the debug selection over live item ids in store order.
// next and prev wrap around; clear drops the selection.
func (e *Engine) Cycle(action string) bool {
	prev := e.selected
	ids := e.store.IDs()

	switch action {
	case CycleClear:
		e.selected = ""
	case CycleNext, CyclePrev:
		if len(ids) == 0 {
			e.selected = ""
			break
		}
		idx := -1
		for i, id := range ids {
			if id == e.selected {
				idx = i
				break
			}
		}
		switch {
		case idx < 0 && action == CycleNext:
			idx = 0
		case idx < 0:
			idx = len(ids) - 1
		case action == CycleNext:
			idx = (idx + 1) % len(ids)
		default:
			idx = (idx - 1 + len(ids)) % len(ids)
		}
		e.selected = ids[idx]
	default:
		e.logger.Debug("overlay: unknown cycle action", "action", action)
		return false
	}

	if e.selected != prev {
		e.logger.Info("overlay: trace selection", "id", e.selected)
		e.dirty = true
		return true
	}
	return false
}
