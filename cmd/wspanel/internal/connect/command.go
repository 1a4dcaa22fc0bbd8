package connect

import (
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	message     string
	wait        time.Duration
	noReconnect bool
	debug       bool
}

func NewConnectCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "connect [url]",
		Short: "Open an interactive panel on a WebSocket",
		Args:  cobra.MaximumNArgs(1),
		Example: `  wspanel connect ws://localhost:8080/ws
  wspanel connect                        # uses socket.url from config
  wspanel connect wss://echo.example -m ping --wait 3s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := ""
			if len(args) == 1 {
				url = args[0]
			}
			return connectCmd(cmd.Context(), url, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.message, "message", "m", "",
		"Send one message, print replies until --wait elapses, then exit")
	cmd.Flags().DurationVar(&opts.wait, "wait", 2*time.Second,
		"How long to collect replies in --message mode")
	cmd.Flags().BoolVar(&opts.noReconnect, "no-reconnect", false,
		"Disable automatic reconnection")
	cmd.Flags().BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging")

	return cmd
}
