package commands

import (
	"github.com/spf13/cobra"

	"github.com/dyluth/overlay/internal/config"
	"github.com/dyluth/overlay/internal/printer"
	"github.com/dyluth/overlay/pkg/protocol"
)

var portCmd = &cobra.Command{
	Use:   "port",
	Short: "Show where the broadcaster is listening",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr, err := protocol.ResolveAddress(cfg.Broadcaster.Host, cfg.Broadcaster.PortFile)
		if err != nil {
			return printer.ErrorWithContext(
				"broadcaster not found",
				err.Error(),
				map[string]string{"Port file": cfg.Broadcaster.PortFile},
				[]string{"Start the broadcaster first", "Override the location with " + config.PortFileEnv},
			)
		}
		printer.Fields(map[string]string{
			"port file": cfg.Broadcaster.PortFile,
			"address":   addr,
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portCmd)
}
