package history

import (
	"github.com/spf13/cobra"
)

func NewHistoryCommand() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history [prefix]",
		Short: "List previously used socket addresses",
		Args:  cobra.MaximumNArgs(1),
		Example: `  wspanel history
  wspanel history wss://
  wspanel history ws://localhost --limit 5 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			return historyCmd(cmd.Context(), cmd.OutOrStdout(), prefix, limit, asJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")

	return cmd
}
