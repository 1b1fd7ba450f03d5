package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/overlay/internal/printer"
	"github.com/dyluth/overlay/internal/watch"
	"github.com/dyluth/overlay/pkg/protocol"
)

var (
	watchOutput string
	watchWait   time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream broadcasts from the broadcaster",
	Long: `Connect to the broadcaster and print every broadcast it sends.

The default output is one human-readable line per broadcast. Use
--output json for the raw lines, suitable for piping to jq.

Examples:
  overlay watch
  overlay watch --output json | jq 'select(.event == "OverlayCycle")'
  overlay watch --wait 30s`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", string(watch.OutputFormatDefault), "Output format: default or json")
	watchCmd.Flags().DurationVar(&watchWait, "wait", 0, "Wait up to this long for the broadcaster to publish its port file")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := watch.ParseOutputFormat(watchOutput)
	if err != nil {
		return printer.Error(
			"invalid output format",
			err.Error(),
			[]string{"Valid formats: default, json"},
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if watchWait > 0 {
		printer.Step("Waiting for broadcaster port file %s...\n", cfg.Broadcaster.PortFile)
		port, err := watch.PollForPortFile(ctx, cfg.Broadcaster.PortFile, watchWait)
		if err != nil {
			return printer.ErrorWithContext(
				"broadcaster not found",
				err.Error(),
				map[string]string{"Port file": cfg.Broadcaster.PortFile},
				[]string{"Start the broadcaster, or raise --wait"},
			)
		}
		logger.Debug("watch: port file published", "port", port)
	}

	client, err := protocol.NewClient(cfg.Broadcaster.ClientConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to create broadcaster client: %w", err)
	}
	client.Start(ctx)
	defer client.Close()

	go func() {
		for err := range client.Errors() {
			logger.Warn("watch: broadcaster error", "error", err)
		}
	}()

	if format == watch.OutputFormatDefault {
		printer.Info("Watching broadcasts (Ctrl+C to stop)...\n")
	}
	return watch.StreamFrames(ctx, client.Frames(), format, os.Stdout, nil)
}
