package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/overlay/internal/config"
	"github.com/dyluth/overlay/internal/printer"
)

var (
	version string
	commit  string
	date    string
)

var (
	configPath string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "overlay",
	Short: "Overlay - transient annotations on a shared canvas",
	Long: `Overlay paints transient annotations (messages, rectangles, vectors)
onto a shared canvas addressed in a fixed 1280x960 virtual space.

Producers send payloads to the broadcaster; the overlay consumer keeps a
TTL-keyed item store, maps the virtual canvas onto the physical surface
and emits draw primitives for the renderer.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to overlay.yml (defaults apply when missing)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

// loadConfig loads the config file, reporting failures through the printer.
func loadConfig() (*config.OverlayConfig, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": configPath},
			[]string{"Fix the file, or remove it to run with defaults"},
		)
	}
	return cfg, nil
}

// newLogger builds the structured logger used by long-running commands.
// Logs go to stderr so stdout stays free for primitives and broadcasts.
func newLogger() (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, printer.Error(
			"invalid log level",
			fmt.Sprintf("Unknown level: %s", logLevel),
			[]string{"Valid levels: debug, info, warn, error"},
		)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}
