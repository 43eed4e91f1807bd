package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steveyegge/govern/internal/ai"
	"github.com/steveyegge/govern/internal/events"
	"github.com/steveyegge/govern/internal/lessons"
	"github.com/steveyegge/govern/internal/storage"
)

var lessonsCmd = &cobra.Command{
	Use:   "lessons",
	Short: "Extract and inspect lessons learned from post-mortems",
}

var lessonsExtractCmd = &cobra.Command{
	Use:   "extract <postmortem-path>",
	Short: "Append the corrective actions of a post-mortem to the lesson journal",
	Long: `Read a post-mortem report, translate each item of its corrective-actions
section into a machine-executable action, and append the lessons to the
journal as pending.

Actions that match no built-in pattern are sent to the AI translator when
ai.enabled is set and ANTHROPIC_API_KEY is available; otherwise they become
placeholder lessons.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		journal := lessons.NewJournal(pick(flagString(cmd, "journal-path"), cfg.Lessons.JournalPath))

		opts := []lessons.ExtractorOption{lessons.WithLogger(logger)}
		if cfg.AI.Enabled {
			tr, err := ai.NewTranslator(ai.Config{
				Model:          cfg.AI.Model,
				CallsPerMinute: cfg.AI.CallsPerMinute,
				Retry:          aiRetry(),
				Budget: ai.BudgetConfig{
					MaxTokensPerHour: cfg.AI.MaxTokensPerHour,
					StatePath:        resolve(cfg.AI.BudgetStatePath),
				},
				Logger: logger,
			})
			if err != nil {
				logger.Warn("AI translation disabled", zap.Error(err))
			} else {
				opts = append(opts, lessons.WithTranslator(tr))
			}
		}

		w, _, cleanup, err := openActivity(ctx, activityFlags(cmd))
		if err != nil {
			return err
		}
		defer cleanup()

		extracted, err := lessons.NewExtractor(opts...).ExtractFile(ctx, args[0])
		taskID := ""
		if len(extracted) > 0 {
			taskID = extracted[0].TaskID
		}
		logActivity(ctx, w, events.NewExtractionRecord(args[0], taskID, len(extracted), err))
		if err != nil {
			return err
		}

		if err := appendLessons(journal, extracted); err != nil {
			return err
		}
		for _, l := range extracted {
			fmt.Printf("%s %s  %s\n", color.GreenString("+"), l.LessonID, l.Action.Label())
		}
		fmt.Printf("appended %d lesson(s) to %s\n", len(extracted), journal.Path())
		return nil
	},
}

var lessonsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List lessons in the journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		all, err := lessons.NewJournal(pick(flagString(cmd, "journal-path"), cfg.Lessons.JournalPath)).ReadAll()
		if err != nil {
			return err
		}

		shown := 0
		for _, l := range all {
			if status != "" && string(l.Status) != status {
				continue
			}
			shown++
			fmt.Printf("%s  %-8s %s  %s\n", l.LessonID, statusColor(l.Status).Sprint(l.Status), l.TaskID, l.Action.Label())
			fmt.Printf("    %s\n", color.New(color.FgHiBlack).Sprint(truncateString(l.Insight, 100)))
		}
		if shown == 0 {
			fmt.Println("No lessons.")
		}
		return nil
	},
}

var lessonsHistoryCmd = &cobra.Command{
	Use:   "history <lesson-id>",
	Short: "Show a lesson's recorded status transitions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx := openIndex(cmd.Context())
		if idx == nil {
			return fmt.Errorf("activity index is disabled or unavailable")
		}
		defer idx.Close()

		history, err := idx.LessonHistory(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(history) == 0 {
			fmt.Printf("No transitions recorded for %s.\n", args[0])
			return nil
		}
		for _, t := range history {
			fmt.Printf("[%s] %s -> %s  %s\n", t.At.Local().Format("2006-01-02 15:04:05"),
				t.From, statusColor(t.To).Sprint(t.To), t.Reason)
		}
		return nil
	},
}

// appendLessons appends under the journal's exclusive lock so it cannot race
// a self-correction pass rewriting the journal.
func appendLessons(journal *lessons.Journal, extracted []*lessons.Lesson) (err error) {
	lockPath, err := storage.AcquireExclusiveLock(journal.Path(), "govern lessons extract")
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, storage.ReleaseExclusiveLock(lockPath))
	}()
	return journal.Append(extracted...)
}

func statusColor(s lessons.Status) *color.Color {
	switch s {
	case lessons.StatusApplied:
		return color.New(color.FgGreen)
	case lessons.StatusFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}

func aiRetry() ai.RetryConfig {
	retry := ai.DefaultRetryConfig()
	if cfg.AI.MaxConcurrentCalls > 0 {
		retry.MaxConcurrentCalls = cfg.AI.MaxConcurrentCalls
	}
	return retry
}

func init() {
	lessonsCmd.PersistentFlags().String("journal-path", "", "Lesson journal JSONL file (default from config)")
	addActivityFlags(lessonsExtractCmd)
	lessonsListCmd.Flags().String("status", "", "Filter by status (pending, applied, failed)")

	lessonsCmd.AddCommand(lessonsExtractCmd)
	lessonsCmd.AddCommand(lessonsListCmd)
	lessonsCmd.AddCommand(lessonsHistoryCmd)
	rootCmd.AddCommand(lessonsCmd)
}
