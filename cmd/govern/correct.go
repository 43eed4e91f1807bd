package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/govern/internal/correction"
	"github.com/steveyegge/govern/internal/lessons"
)

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Apply pending lessons to protocols and propose code changes",
	Long: `Run one self-correction pass over the lesson journal.

Each pending lesson is applied in journal order: protocol edits go through the
protocol store, code changes become single-step plans whose paths are printed
to stdout for the caller to run. The status table goes to stderr. Lessons this version cannot apply stay pending. The
journal is rewritten once at the end, and the protocol document is recompiled
when any protocol changed. Running it again is safe.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		paths := protocolPaths{
			sourceDir:  flagString(cmd, "protocols-dir"),
			outputFile: flagString(cmd, "output-file"),
		}
		store := newStore(paths)
		comp, err := newCompiler(store, paths)
		if err != nil {
			return err
		}

		w, idx, cleanup, err := openActivity(ctx, activityFlags(cmd))
		if err != nil {
			return err
		}
		defer cleanup()

		ocfg := correction.Config{
			Journal:   lessons.NewJournal(pick(flagString(cmd, "journal-path"), cfg.Lessons.JournalPath)),
			Store:     store,
			Compiler:  comp,
			Suggester: correction.NewSuggester(resolve(cfg.Lessons.PlanDir), logger),
			Activity:  w,
			Logger:    logger,
		}
		if idx != nil {
			ocfg.Recorder = idx
		}
		orch, err := correction.New(ocfg)
		if err != nil {
			return err
		}

		report, err := orch.Run(ctx)
		if report != nil {
			printCorrectionReport(cmd.OutOrStdout(), cmd.ErrOrStderr(), report)
		}
		return err
	},
}

// printCorrectionReport writes the status table to status and only the plan
// paths to out, so a caller can pipe the plans straight into a runner.
func printCorrectionReport(out, status io.Writer, r *correction.Report) {
	for _, o := range r.Outcomes {
		line := fmt.Sprintf("%s  %-8s %s", o.LessonID, statusColor(o.Status).Sprint(o.Status), o.Action)
		if o.Err != nil {
			line += "  " + color.New(color.FgHiBlack).Sprint(o.Err)
		}
		fmt.Fprintln(status, line)
	}
	fmt.Fprintf(status, "applied %d, failed %d, left pending %d\n", r.Applied, r.Failed, r.Skipped)

	switch {
	case r.CompileErr != nil:
		fmt.Fprintf(status, "%s protocol recompilation failed: %v\n", color.RedString("✗"), r.CompileErr)
	case r.Compile != nil && r.Compile.UsedFallback:
		fmt.Fprintf(status, "%s wrote safe fallback to %s\n", color.YellowString("warning:"), r.Compile.OutputFile)
	case r.Compile != nil:
		fmt.Fprintf(status, "%s recompiled %s\n", color.GreenString("✓"), r.Compile.OutputFile)
	}

	for _, p := range r.PlanPaths() {
		fmt.Fprintln(out, p)
	}
}

func init() {
	correctCmd.Flags().String("journal-path", "", "Lesson journal JSONL file (default from config)")
	correctCmd.Flags().String("protocols-dir", "", "Protocol source directory (default from config)")
	correctCmd.Flags().String("output-file", "", "Compiled protocol document (default from config)")
	addActivityFlags(correctCmd)
	rootCmd.AddCommand(correctCmd)
}
