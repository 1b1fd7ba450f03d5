package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/overlay/pkg/protocol"
)

// OutputFormat selects how StreamFrames renders broadcasts.
type OutputFormat string

const (
	// OutputFormatDefault is human-readable, one line per broadcast with a timestamp
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is the raw broadcast line, suitable for jq
	OutputFormatJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// StreamFrames writes every frame to w until ctx is done or frames closes.
// now stamps default-format lines; nil means time.Now.
func StreamFrames(ctx context.Context, frames <-chan protocol.Frame, format OutputFormat, w io.Writer, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			var line string
			if format == OutputFormatJSON {
				line = string(frame.Raw)
			} else {
				line = fmt.Sprintf("[%s] %s", now().Format("15:04:05"), Describe(frame))
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return fmt.Errorf("failed to write broadcast: %w", err)
			}
		}
	}
}

// Describe renders a broadcast as a short human-readable summary.
func Describe(frame protocol.Frame) string {
	fields := frame.Fields
	if nested, ok := fields["payload"].(map[string]any); ok {
		fields = nested
	}

	switch frame.Event() {
	case protocol.EventOverlayConfig:
		return fmt.Sprintf("⚙️  config %s", summarize(fields, "event"))
	case protocol.EventOverlayCycle:
		return fmt.Sprintf("🔁 cycle %v", fields["action"])
	case protocol.EventOverlayGroupTransform:
		return fmt.Sprintf("🧭 group %v %s", groupName(fields), summarize(fields, "event", "group", "name"))
	case protocol.EventOverlayGroupReset:
		if name := groupName(fields); name != "" {
			return fmt.Sprintf("🧹 group reset %s", name)
		}
		return "🧹 group reset (all)"
	case protocol.EventLegacyOverlay, "":
		return describePayload(fields)
	default:
		return fmt.Sprintf("❔ %s %s", frame.Event(), summarize(fields, "event"))
	}
}

func describePayload(fields map[string]any) string {
	typ, _ := fields["type"].(string)
	id, _ := fields["id"].(string)
	switch typ {
	case "message":
		return fmt.Sprintf("💬 message %s %q", id, fields["text"])
	case "shape":
		shape, _ := fields["shape"].(string)
		if points, ok := fields["vector"].([]any); ok {
			return fmt.Sprintf("📐 %s %s (%d points)", shape, id, len(points))
		}
		return fmt.Sprintf("📐 %s %s", shape, id)
	case "legacy_clear":
		return "🧹 clear"
	default:
		return fmt.Sprintf("❔ %s", summarize(fields, "event"))
	}
}

func groupName(fields map[string]any) string {
	if name, ok := fields["group"].(string); ok {
		return name
	}
	name, _ := fields["name"].(string)
	return name
}

// summarize lists key=value pairs in key order, skipping the given keys.
func summarize(fields map[string]any, skip ...string) string {
	keys := make([]string, 0, len(fields))
outer:
	for k := range fields {
		for _, s := range skip {
			if k == s {
				continue outer
			}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, fields[k])
	}
	return strings.Join(parts, " ")
}

// PollForPortFile polls until the broadcaster has published a usable port
// file at path. Returns the port or an error if timeout occurs.
// Polls every 200ms for the specified timeout duration.
func PollForPortFile(ctx context.Context, path string, timeout time.Duration) (int, error) {
	if port, err := protocol.ReadPortFile(path); err == nil {
		return port, nil
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()

		case <-timeoutCh:
			return 0, fmt.Errorf("timeout waiting for port file %s after %v", path, timeout)

		case <-ticker.C:
			port, err := protocol.ReadPortFile(path)
			if err != nil {
				if errors.Is(err, protocol.ErrPortFile) {
					// Not published yet, continue polling
					continue
				}
				return 0, err
			}
			return port, nil
		}
	}
}
