package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/overlay/internal/config"
	"github.com/dyluth/overlay/internal/health"
	"github.com/dyluth/overlay/internal/overlay"
	"github.com/dyluth/overlay/internal/printer"
	"github.com/dyluth/overlay/internal/relay"
	"github.com/dyluth/overlay/internal/transform"
	"github.com/dyluth/overlay/internal/viewport"
	"github.com/dyluth/overlay/pkg/protocol"
)

var (
	runWidth          float64
	runHeight         float64
	runDPR            float64
	runAnchorToBounds bool
	runMirrorX        bool
	runMirrorY        bool
	runFormat         string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the overlay consumer",
	Long: `Connect to the broadcaster, apply incoming payloads and controller
signals, and write one JSON frame of draw primitives to stdout whenever the
overlay changes.

The connection is re-established with exponential backoff if the
broadcaster restarts. When relay is configured, payloads published to Redis
are applied as well.

Examples:
  # Run against the default port file
  overlay run

  # Render for a 4K surface at 2x
  overlay run --width 1920 --height 1080 --dpr 2 | my-renderer`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Float64Var(&runWidth, "width", 1920, "Surface width in logical pixels")
	runCmd.Flags().Float64Var(&runHeight, "height", 1080, "Surface height in logical pixels")
	runCmd.Flags().Float64Var(&runDPR, "dpr", 1, "Device pixel ratio")
	runCmd.Flags().BoolVar(&runAnchorToBounds, "anchor-to-bounds", false, "Pin group anchors to rendered vector bounds")
	runCmd.Flags().StringVar(&runFormat, "format", "json", "Frame encoding on stdout: json or msgpack (length-prefixed)")
	runCmd.Flags().BoolVar(&runMirrorX, "mirror-x", false, "Mirror the virtual canvas horizontally")
	runCmd.Flags().BoolVar(&runMirrorY, "mirror-y", false, "Mirror the virtual canvas vertically")
	rootCmd.AddCommand(runCmd)
}

// consumerHealth reports the consumer's state to the health endpoint.
type consumerHealth struct {
	client *protocol.Client
	engine *overlay.Engine
}

func (h consumerHealth) Connected() bool { return h.client.Connected() }
func (h consumerHealth) ItemCount() int  { return h.engine.ItemCount() }

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	renderer, err := overlay.NewRenderer(runFormat, os.Stdout)
	if err != nil {
		return printer.Error("invalid frame format", err.Error(), []string{"Valid formats: json, msgpack"})
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		printer.Warning("No %s found, running with defaults\n", configPath)
	}

	groups, err := seedGroups(cfg)
	if err != nil {
		return printer.Error("invalid group definition", err.Error(), nil)
	}

	engine, err := overlay.NewEngine(overlay.Options{
		Logger:         logger,
		ScaleMode:      cfg.ScaleMode,
		Font:           cfg.Font.Transform(),
		Groups:         groups,
		Remap:          axisRemap(runMirrorX, runMirrorY),
		AnchorToBounds: runAnchorToBounds,
	})
	if err != nil {
		return fmt.Errorf("failed to create overlay engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := protocol.NewClient(cfg.Broadcaster.ClientConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to create broadcaster client: %w", err)
	}
	client.Start(ctx)
	defer client.Close()

	go func() {
		for err := range client.Errors() {
			logger.Debug("run: broadcaster error", "error", err)
		}
	}()

	var relayed <-chan protocol.Frame
	if cfg.Relay != nil {
		sub, closeRelay, err := startRelay(ctx, cfg.Relay)
		if err != nil {
			return printer.ErrorWithContext(
				"relay unavailable",
				err.Error(),
				map[string]string{"Redis": cfg.Relay.RedisURL},
				[]string{"Check Redis is running, or remove the relay section from the config"},
			)
		}
		defer closeRelay()
		relayed = sub.Events()
	}

	if cfg.Health != nil && cfg.Health.Port > 0 {
		hs := health.NewServer(consumerHealth{client: client, engine: engine}, cfg.Health.Port, logger)
		if err := hs.Start(); err != nil {
			return printer.Error("health endpoint unavailable", err.Error(), []string{"Choose another health.port"})
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			hs.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("run: overlay consumer starting",
		"port_file", cfg.Broadcaster.PortFile,
		"scale_mode", string(cfg.ScaleMode),
		"groups", len(groups),
	)

	loop := &overlay.Loop{
		Engine:   engine,
		Renderer: renderer,
		Surface:  overlay.FixedSurface(runWidth, runHeight, runDPR),
		Tick:     cfg.Render.Tick,
		Frames:   client.Frames(),
		Relay:    relayed,
	}
	err = loop.Run(ctx)
	if errors.Is(err, overlay.ErrSourceClosed) && ctx.Err() == nil {
		return printer.ErrorWithContext(
			"broadcaster unreachable",
			"Gave up reconnecting to the broadcaster.",
			map[string]string{"Port file": cfg.Broadcaster.PortFile},
			[]string{"Start the broadcaster, or raise broadcaster.reconnect.max_elapsed (0 retries forever)"},
		)
	}
	if err != nil && !errors.Is(err, overlay.ErrSourceClosed) {
		return err
	}
	logger.Info("run: shut down")
	return nil
}

// axisRemap builds the remap for mirrored display setups.
func axisRemap(mirrorX, mirrorY bool) transform.AxisRemap {
	var remap transform.AxisRemap
	if mirrorX {
		remap.X = transform.Mirror(viewport.BaseWidth)
	}
	if mirrorY {
		remap.Y = transform.Mirror(viewport.BaseHeight)
	}
	return remap
}

func seedGroups(cfg *config.OverlayConfig) ([]transform.Group, error) {
	groups := make([]transform.Group, 0, len(cfg.Groups))
	for _, gc := range cfg.Groups {
		g, err := gc.Group()
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func startRelay(ctx context.Context, rc *config.RelayConfig) (*relay.Subscription, func(), error) {
	rclient, err := relay.NewClientFromURL(rc.RedisURL, rc.Channel)
	if err != nil {
		return nil, nil, err
	}
	if err := rclient.Ping(ctx); err != nil {
		rclient.Close()
		return nil, nil, fmt.Errorf("redis not reachable: %w", err)
	}
	sub, err := rclient.Subscribe(ctx)
	if err != nil {
		rclient.Close()
		return nil, nil, err
	}
	return sub, func() {
		sub.Close()
		rclient.Close()
	}, nil
}
