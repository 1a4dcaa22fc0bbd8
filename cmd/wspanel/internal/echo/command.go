package echo

import (
	"github.com/spf13/cobra"
)

func NewEchoCommand() *cobra.Command {
	var (
		addr           string
		path           string
		allowAnyOrigin bool
		debug          bool
	)

	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Run a local WebSocket echo server",
		Args:  cobra.NoArgs,
		Example: `  wspanel echo
  wspanel echo --addr :9000 --path /socket`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return echoCmd(cmd.Context(), cmd.OutOrStdout(), addr, path, allowAnyOrigin, debug)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Listen address")
	cmd.Flags().StringVar(&path, "path", "/ws", "WebSocket endpoint path")
	cmd.Flags().BoolVar(&allowAnyOrigin, "any-origin", false, "Accept browser connections from any Origin")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}
