package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/govern/internal/events"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show recent activity log entries",
	Long: `Display recent entries from the activity log.

Entries are read from the SQLite index when it is enabled, otherwise from the
JSONL log itself.

Examples:
  govern activity                          # Show last 20 entries
  govern activity -n 50                    # Show last 50 entries
  govern activity --phase self-correction  # Only lesson processing
  govern activity --status FAILURE         # Only failures
  govern activity --session <id>           # One writer session`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		session, _ := cmd.Flags().GetString("session")
		phase, _ := cmd.Flags().GetString("phase")
		status, _ := cmd.Flags().GetString("status")
		task, _ := cmd.Flags().GetString("task")
		since, _ := cmd.Flags().GetDuration("since")

		filter := events.EntryFilter{
			SessionID: session,
			Phase:     phase,
			Status:    events.Status(status),
			TaskID:    task,
			Limit:     limit,
		}
		if since > 0 {
			filter.AfterTime = time.Now().Add(-since)
		}

		entries, err := queryActivity(cmd.Context(), filter, flagString(cmd, "log-path"))
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s No entries found matching the criteria\n\n", yellow("✨"))
			return nil
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("\n%s Recent Activity (%d entries):\n\n", cyan("📋"), len(entries))
		// Oldest first so the list reads top to bottom.
		for i := len(entries) - 1; i >= 0; i-- {
			displayLogEntry(entries[i])
		}
		fmt.Println()
		return nil
	},
}

// queryActivity returns matching entries newest first.
func queryActivity(ctx context.Context, filter events.EntryFilter, logPath string) ([]*events.LogEntry, error) {
	if idx := openIndex(ctx); idx != nil {
		defer idx.Close()
		return idx.RecentEntries(ctx, filter)
	}

	all, err := events.ReadEntries(pick(logPath, cfg.Activity.LogPath))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	matched := events.Filter(all, filter)
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched, nil
}

var activityPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old entries from the activity index",
	Long: `Delete indexed entries older than --older-than. The JSONL activity log is
never modified; the index can be rebuilt from it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		vacuum, _ := cmd.Flags().GetBool("vacuum")
		ctx := cmd.Context()

		idx := openIndex(ctx)
		if idx == nil {
			return fmt.Errorf("activity index is disabled or unavailable")
		}
		defer idx.Close()

		deleted, err := idx.PruneEntries(ctx, time.Now().Add(-olderThan), batchSize)
		if err != nil {
			return err
		}
		if vacuum && deleted > 0 {
			if err := idx.Vacuum(ctx); err != nil {
				return err
			}
		}
		fmt.Printf("%s pruned %d entr(ies) older than %s\n", color.GreenString("✓"), deleted, olderThan)
		return nil
	},
}

var activityReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Load every JSONL log entry into the activity index",
	Long: `Load every JSONL log entry into the activity index. Entries already
indexed are replaced by log_id.

With --rebuild the index schema is rolled back and re-created first, so the
index holds exactly what the log holds. Lesson transitions recorded by
self-correction runs live only in the index and are dropped by a rebuild.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		idx := openIndex(ctx)
		if idx == nil {
			return fmt.Errorf("activity index is disabled or unavailable")
		}
		defer idx.Close()

		all, err := events.ReadEntries(pick(flagString(cmd, "log-path"), cfg.Activity.LogPath))
		if err != nil {
			return err
		}
		if rebuild, _ := cmd.Flags().GetBool("rebuild"); rebuild {
			if err := idx.Reset(ctx); err != nil {
				return fmt.Errorf("resetting activity index: %w", err)
			}
		}
		for _, e := range all {
			if err := idx.StoreLogEntry(ctx, e); err != nil {
				return err
			}
		}
		version, err := idx.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s indexed %d entr(ies) (schema v%d)\n", color.GreenString("✓"), len(all), version)
		return nil
	},
}

func init() {
	activityCmd.PersistentFlags().String("log-path", "", "Activity log JSONL file (default from config)")
	activityCmd.Flags().IntP("limit", "n", 20, "Number of recent entries to show")
	activityCmd.Flags().String("session", "", "Filter by session ID")
	activityCmd.Flags().StringP("phase", "p", "", "Filter by phase (validation, execution, self-correction, compilation, extraction)")
	activityCmd.Flags().StringP("status", "s", "", "Filter by outcome status (SUCCESS, FAILURE)")
	activityCmd.Flags().StringP("task", "t", "", "Filter by task ID")
	activityCmd.Flags().Duration("since", 0, "Only entries newer than this (e.g. 2h)")

	activityPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "Delete entries older than this")
	activityPruneCmd.Flags().Int("batch-size", 1000, "Rows deleted per batch")
	activityPruneCmd.Flags().Bool("vacuum", false, "Reclaim space after pruning")

	activityReindexCmd.Flags().Bool("rebuild", false, "Drop and re-create the index before loading")

	activityCmd.AddCommand(activityPruneCmd)
	activityCmd.AddCommand(activityReindexCmd)
	rootCmd.AddCommand(activityCmd)
}
