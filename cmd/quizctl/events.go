package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List event log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		after, _ := cmd.Flags().GetInt64("after")
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		conn, _, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		evs, err := syncx.NewEventRepo(cfg.SiteID).Since(cmd.Context(), conn, after, limit)
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(evs) == 0 {
			fmt.Fprintln(out, "No events found.")
			return nil
		}

		fmt.Fprintf(out, "%-6s  %-19s  %-16s  %-38s  %s\n", "Seq", "Time", "Type", "Key", "Data")
		fmt.Fprintln(out, strings.Repeat("─", 100))
		for _, e := range evs {
			ts := time.Unix(e.CreatedAt, 0).Format("2006-01-02 15:04:05")
			fmt.Fprintf(out, "%-6d  %-19s  %-16s  %-38s  %s\n", e.Seq, ts, e.Type, e.Key, e.DataJSON)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().Int64("after", 0, "Only events with a sequence number above this")
	eventsCmd.Flags().Int("limit", 50, "Maximum number of events")
}
