package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/tinyland-inc/wspanel/cmd/wspanel/internal"
	"github.com/tinyland-inc/wspanel/pkg/history"
)

var errNotListable = errors.New("history backend cannot list entries")

func historyCmd(ctx context.Context, out io.Writer, prefix string, limit int, asJSON bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	store, closeStore, err := internal.OpenHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	return listEntries(ctx, store, out, prefix, limit, asJSON)
}

func listEntries(ctx context.Context, store history.Store, out io.Writer, prefix string, limit int, asJSON bool) error {
	lister, ok := store.(history.Lister)
	if !ok {
		return errNotListable
	}
	entries, err := lister.List(ctx, prefix, limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No history yet.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tCOUNT\tLAST USED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", e.URL, e.Count, e.LastUsed.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
