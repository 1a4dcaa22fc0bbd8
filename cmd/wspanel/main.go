// wspanel - interactive WebSocket test panel
// License: MIT

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/wspanel/cmd/wspanel/internal"
	"github.com/tinyland-inc/wspanel/cmd/wspanel/internal/auth"
	"github.com/tinyland-inc/wspanel/cmd/wspanel/internal/connect"
	"github.com/tinyland-inc/wspanel/cmd/wspanel/internal/echo"
	"github.com/tinyland-inc/wspanel/cmd/wspanel/internal/history"
	"github.com/tinyland-inc/wspanel/cmd/wspanel/internal/migrate"
	"github.com/tinyland-inc/wspanel/cmd/wspanel/internal/version"
)

func NewWspanelCommand() *cobra.Command {
	short := fmt.Sprintf("%s wspanel - WebSocket test panel v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "wspanel",
		Short:   short,
		Example: "wspanel connect ws://localhost:8080/ws",
	}

	cmd.AddCommand(
		connect.NewConnectCommand(),
		auth.NewAuthCommand(),
		echo.NewEchoCommand(),
		history.NewHistoryCommand(),
		migrate.NewMigrateCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewWspanelCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
