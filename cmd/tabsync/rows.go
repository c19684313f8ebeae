package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/b/tabsync/pkg/daemon"
)

func newRowsCmd(app *App) *cobra.Command {
	var (
		follow  bool
		asJSON  bool
		maxCols int
	)
	cmd := &cobra.Command{
		Use:   "rows",
		Short: "Print the rows a running daemon publishes",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := daemon.Dial(app.Session, fmt.Sprintf("rows-%d", os.Getpid()))
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			for {
				rows, err := c.NextRows()
				if err != nil {
					return err
				}
				if asJSON {
					if err := json.NewEncoder(out).Encode(rows); err != nil {
						return err
					}
				} else {
					printRows(out, rows, maxCols)
				}
				if !follow {
					return nil
				}
			}
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing updates")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON frames")
	cmd.Flags().IntVar(&maxCols, "width", 40, "Truncate titles to this many columns")
	return cmd
}

// printRows writes one line per row: selection marker, attention marker,
// row id, title.
func printRows(w io.Writer, rows *daemon.RowsPayload, maxCols int) {
	fmt.Fprintf(w, "# seq=%d mode=%s rows=%d\n", rows.SequenceNum, rows.Mode, len(rows.Rows))
	for _, r := range rows.Rows {
		sel := " "
		if r.Selected {
			sel = "*"
		}
		attn := " "
		if r.NeedsAttention {
			attn = "!"
		}
		title := r.Title
		if maxCols > 0 {
			title = runewidth.Truncate(title, maxCols, "~")
		}
		fmt.Fprintf(w, "%s%s %-6s %s\n", sel, attn, r.TabID, title)
	}
}

func newActionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action <select|close|new_tab> [row-id]",
		Short: "Send a user action to a running daemon",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rowID := ""
			if len(args) == 2 {
				rowID = args[1]
			}
			c, err := daemon.Dial(app.Session, fmt.Sprintf("action-%d", os.Getpid()))
			if err != nil {
				return err
			}
			defer c.Close()
			// Wait for the first frame so the subscription is registered
			// before the action arrives.
			if _, err := c.NextRows(); err != nil {
				return err
			}
			return c.Act(args[0], rowID)
		},
	}
	return cmd
}
