package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dyluth/overlay/internal/config"
	"github.com/dyluth/overlay/internal/printer"
	"github.com/dyluth/overlay/internal/relay"
	"github.com/dyluth/overlay/internal/timespec"
	"github.com/dyluth/overlay/pkg/protocol"
)

// legacyOverlayCLI is the broadcaster command that fans a payload out to consumers.
const legacyOverlayCLI = "legacy_overlay"

const (
	viaSocket = "socket"
	viaRedis  = "redis"
)

var (
	sendID      string
	sendTTL     string
	sendColor   string
	sendVia     string
	sendTimeout time.Duration

	msgText string
	msgX    float64
	msgY    float64
	msgSize string

	rectX    float64
	rectY    float64
	rectW    float64
	rectH    float64
	rectFill string

	vectPoints []string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send an overlay payload",
	Long: `Send a single payload to the overlay consumers and wait for the
broadcaster's acknowledgement.

Coordinates are in the 1280x960 virtual canvas. --ttl accepts seconds
("2.5") or a duration ("90s", "2m"); omit it for items that never expire.

Examples:
  overlay send message --text "Boss incoming" --x 40 --y 60 --ttl 5s
  overlay send rect --id box --x 100 --y 100 --w 200 --h 50 --fill "#3300ff00"
  overlay send vect --id path --point 10,10 --point 200,40,circle
  overlay send clear
  overlay send message --text hi --via redis`,
}

var sendMessageCmd = &cobra.Command{
	Use:   "message",
	Short: "Show a text message",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := messagePayload(sendID, msgText, msgX, msgY, sendColor, msgSize)
		if err != nil {
			return err
		}
		return sendPayload(cmd.Context(), payload)
	},
}

var sendRectCmd = &cobra.Command{
	Use:   "rect",
	Short: "Draw a rectangle",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := rectPayload(sendID, rectX, rectY, rectW, rectH, sendColor, rectFill)
		return sendPayload(cmd.Context(), payload)
	},
}

var sendVectCmd = &cobra.Command{
	Use:   "vect",
	Short: "Draw a polyline or markers",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := vectorPayload(sendID, sendColor, vectPoints)
		if err != nil {
			return printer.Error(
				"invalid vector",
				err.Error(),
				[]string{"Points are written x,y or x,y,marker", "A single point needs a marker"},
			)
		}
		return sendPayload(cmd.Context(), payload)
	},
}

var sendClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every item from the overlay",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendPayload(cmd.Context(), map[string]any{"type": "legacy_clear"})
	},
}

func init() {
	sendCmd.PersistentFlags().StringVar(&sendID, "id", "", "Item id (random when omitted; reuse an id to replace an item)")
	sendCmd.PersistentFlags().StringVar(&sendTTL, "ttl", "", "Time to live in seconds or as a duration (never expires when omitted)")
	sendCmd.PersistentFlags().StringVar(&sendColor, "color", "", "Color name or hex value")
	sendCmd.PersistentFlags().StringVar(&sendVia, "via", viaSocket, "Transport: socket or redis")
	sendCmd.PersistentFlags().DurationVar(&sendTimeout, "timeout", 10*time.Second, "Time to wait for the acknowledgement")

	sendMessageCmd.Flags().StringVar(&msgText, "text", "", "Message text")
	sendMessageCmd.Flags().Float64Var(&msgX, "x", 0, "Left edge")
	sendMessageCmd.Flags().Float64Var(&msgY, "y", 0, "Top edge")
	sendMessageCmd.Flags().StringVar(&msgSize, "size", "", "Font size: small, normal, large or huge")

	sendRectCmd.Flags().Float64Var(&rectX, "x", 0, "Left edge")
	sendRectCmd.Flags().Float64Var(&rectY, "y", 0, "Top edge")
	sendRectCmd.Flags().Float64Var(&rectW, "w", 0, "Width")
	sendRectCmd.Flags().Float64Var(&rectH, "h", 0, "Height")
	sendRectCmd.Flags().StringVar(&rectFill, "fill", "", "Fill color")

	sendVectCmd.Flags().StringArrayVar(&vectPoints, "point", nil, "Point as x,y[,marker] (repeatable)")
	_ = sendVectCmd.MarkFlagRequired("point")

	sendCmd.AddCommand(sendMessageCmd, sendRectCmd, sendVectCmd, sendClearCmd)
	rootCmd.AddCommand(sendCmd)
}

func itemID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func messagePayload(id, text string, x, y float64, color, size string) (map[string]any, error) {
	switch size {
	case "", "small", "normal", "large", "huge":
	default:
		return nil, printer.Error(
			"invalid size",
			fmt.Sprintf("Unknown size: %s", size),
			[]string{"Valid sizes: small, normal, large, huge"},
		)
	}
	payload := map[string]any{
		"type": "message",
		"id":   itemID(id),
		"text": text,
		"x":    x,
		"y":    y,
	}
	setIf(payload, "color", color)
	setIf(payload, "size", size)
	return payload, nil
}

func rectPayload(id string, x, y, w, h float64, color, fill string) map[string]any {
	payload := map[string]any{
		"type":  "shape",
		"shape": "rect",
		"id":    itemID(id),
		"x":     x,
		"y":     y,
		"w":     w,
		"h":     h,
	}
	setIf(payload, "color", color)
	setIf(payload, "fill", fill)
	return payload
}

func vectorPayload(id, color string, specs []string) (map[string]any, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no points given")
	}
	points := make([]any, 0, len(specs))
	for _, spec := range specs {
		p, err := parsePoint(spec)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if len(points) == 1 {
		if _, ok := points[0].(map[string]any)["marker"]; !ok {
			return nil, fmt.Errorf("single point %q has no marker", specs[0])
		}
	}

	payload := map[string]any{
		"type":   "shape",
		"shape":  "vect",
		"id":     itemID(id),
		"vector": points,
	}
	setIf(payload, "color", color)
	return payload, nil
}

// parsePoint reads "x,y" or "x,y,marker".
func parsePoint(spec string) (map[string]any, error) {
	parts := strings.Split(spec, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("point %q must be x,y or x,y,marker", spec)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("point %q has invalid x: %w", spec, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("point %q has invalid y: %w", spec, err)
	}
	p := map[string]any{"x": x, "y": y}
	if len(parts) == 3 {
		setIf(p, "marker", strings.TrimSpace(parts[2]))
	}
	return p, nil
}

func setIf(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// applyTTL sets the payload ttl from a --ttl value.
func applyTTL(payload map[string]any, spec string) error {
	if spec == "" {
		return nil
	}
	ttl, err := timespec.ParseTTL(spec)
	if err != nil {
		return printer.Error(
			"invalid ttl",
			err.Error(),
			[]string{"Use seconds (2.5) or a duration (90s, 2m)"},
		)
	}
	payload["ttl"] = ttl
	return nil
}

func sendPayload(parent context.Context, payload map[string]any) error {
	if payload["type"] != "legacy_clear" {
		if err := applyTTL(payload, sendTTL); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, sendTimeout)
	defer cancel()

	switch sendVia {
	case viaSocket:
		return sendViaSocket(ctx, cfg.Broadcaster, payload)
	case viaRedis:
		return sendViaRedis(ctx, cfg.Relay, payload)
	default:
		return printer.Error(
			"invalid transport",
			fmt.Sprintf("Unknown transport: %s", sendVia),
			[]string{"Valid transports: socket, redis"},
		)
	}
}

func sendViaSocket(ctx context.Context, bc *config.BroadcasterConfig, payload map[string]any) error {
	addr, err := protocol.ResolveAddress(bc.Host, bc.PortFile)
	if err != nil {
		return printer.ErrorWithContext(
			"broadcaster not found",
			err.Error(),
			map[string]string{"Port file": bc.PortFile},
			[]string{
				"Start the broadcaster first",
				fmt.Sprintf("Point %s at the broadcaster's port file", config.PortFileEnv),
			},
		)
	}

	req := protocol.Request{CLI: legacyOverlayCLI, Payload: payload}
	if _, err := protocol.Send(ctx, addr, req, bc.MaxAckAttempts, nil); err != nil {
		return printer.ErrorWithContext(
			"payload not acknowledged",
			err.Error(),
			map[string]string{"Address": addr},
			[]string{"Check the broadcaster is healthy", "Run 'overlay watch' to see what it broadcasts"},
		)
	}
	printer.Success("Sent %s %v\n", payload["type"], idOrAll(payload))
	printExpiry(payload)
	return nil
}

func sendViaRedis(ctx context.Context, rc *config.RelayConfig, payload map[string]any) error {
	if rc == nil {
		return printer.Error(
			"relay not configured",
			"--via redis needs a relay section in the config.",
			[]string{"Add relay.redis_url to overlay.yml"},
		)
	}
	client, err := relay.NewClientFromURL(rc.RedisURL, rc.Channel)
	if err != nil {
		return fmt.Errorf("failed to create relay client: %w", err)
	}
	defer client.Close()

	frame := map[string]any{"event": protocol.EventLegacyOverlay, "payload": payload}
	envID, err := client.Publish(ctx, frame)
	if err != nil {
		return printer.ErrorWithContext(
			"publish failed",
			err.Error(),
			map[string]string{"Redis": rc.RedisURL, "Channel": relay.PayloadEventsChannel(rc.Channel)},
			[]string{"Check Redis is running"},
		)
	}
	printer.Success("Published %s %v (envelope %s)\n", payload["type"], idOrAll(payload), envID)
	printExpiry(payload)
	return nil
}

func idOrAll(payload map[string]any) any {
	if id, ok := payload["id"]; ok {
		return id
	}
	return "(all)"
}

func printExpiry(payload map[string]any) {
	if _, ok := payload["ttl"]; !ok {
		return
	}
	expiry, err := timespec.ParseExpiry(sendTTL, time.Now())
	if err != nil {
		return
	}
	printer.Info("  expires at %s\n", expiry.Format("15:04:05"))
}
