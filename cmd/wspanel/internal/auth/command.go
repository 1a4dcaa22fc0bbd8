package auth

import (
	"github.com/spf13/cobra"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the bearer token sent when connecting",
		Example: `  wspanel auth login
  echo "$TOKEN" | wspanel auth login
  wspanel auth status
  wspanel auth logout`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "login",
			Short: "Store a bearer token in the config file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return loginCmd(cmd.InOrStdin(), cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "logout",
			Short: "Remove the stored bearer token",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return logoutCmd(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show whether a bearer token is configured",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return statusCmd(cmd.OutOrStdout())
			},
		},
	)

	return cmd
}
