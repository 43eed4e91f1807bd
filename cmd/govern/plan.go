package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/govern/internal/events"
	"github.com/steveyegge/govern/internal/planning"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Parse, validate, and run agent plans",
}

var planParseCmd = &cobra.Command{
	Use:   "parse <plan-file>",
	Short: "Parse a plan and print its commands as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := planning.ParseFile(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(plan.Commands)
	},
}

var planValidateCmd = &cobra.Command{
	Use:   "validate <plan-file>",
	Short: "Check a plan against the validation rules of a model",
	Long: `Validate a plan against the whole-plan rules of model A or B.

Exit status is 0 when the plan is valid and 1 when a rule rejects it; the
rejection message names the rule. Warnings, such as an empty plan, go to
stderr and never reject. The verdict is recorded in the activity log.

Examples:
  govern plan validate plan.txt
  govern plan validate plan.txt --model B`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		taskID, _ := cmd.Flags().GetString("task-id")
		if model == "" {
			model = cfg.Plans.Model
		}

		plan, err := planning.ParseFile(args[0])
		if err != nil {
			return err
		}
		ok, msg := validatePlan(cmd.Context(), cmd.ErrOrStderr(), plan, model)

		w, _, cleanup, err := openActivity(cmd.Context(), activityFlags(cmd))
		if err != nil {
			return err
		}
		defer cleanup()
		logActivity(cmd.Context(), w, events.NewValidationRecord(taskID, args[0], model, ok, msg))

		if !ok {
			return errors.New(msg)
		}
		fmt.Printf("%s %s\n", color.GreenString("✓"), msg)
		return nil
	},
}

var planRunCmd = &cobra.Command{
	Use:   "run <plan-file>",
	Short: "Validate a plan, then step through it with the dry-run executor",
	Long: `Validate a plan and, if it passes, execute its commands in order.

Tool execution belongs to the agent runtime; this command drives the
dry-run executor, which echoes each command. Every step is written to the
activity log.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		taskID, _ := cmd.Flags().GetString("task-id")
		if model == "" {
			model = cfg.Plans.Model
		}
		ctx := cmd.Context()

		plan, err := planning.ParseFile(args[0])
		if err != nil {
			return err
		}

		w, _, cleanup, err := openActivity(ctx, activityFlags(cmd))
		if err != nil {
			return err
		}
		defer cleanup()

		ok, msg := validatePlan(ctx, cmd.ErrOrStderr(), plan, model)
		logActivity(ctx, w, events.NewValidationRecord(taskID, args[0], model, ok, msg))
		if !ok {
			return errors.New(msg)
		}

		results, err := planning.Run(ctx, plan, planning.DryRunExecutor{}, w, planning.RunOptions{TaskID: taskID})
		for _, r := range results {
			fmt.Printf("%s %d. %s\n", color.CyanString("→"), r.Step, r.Output)
		}
		return err
	},
}

// validatePlan runs the default validators under model and prints their
// warnings to warn. A rejection's message is the first error's.
func validatePlan(ctx context.Context, warn io.Writer, plan *planning.Plan, model string) (bool, string) {
	result := planning.DefaultRegistry().ValidateAll(ctx, plan, &planning.ValidationContext{Model: model})
	for _, w := range result.Warnings {
		fmt.Fprintf(warn, "%s %s (%s, %s)\n", color.YellowString("!"), w.Message, w.Code, w.Location)
	}
	return result.Verdict(model)
}

// addActivityFlags registers the activity log overrides on cmd.
func addActivityFlags(cmd *cobra.Command) {
	cmd.Flags().String("schema-path", "", "Logging schema Markdown file (default from config)")
	cmd.Flags().String("log-path", "", "Activity log JSONL file (default from config)")
}

func activityFlags(cmd *cobra.Command) activityPaths {
	schemaPath, _ := cmd.Flags().GetString("schema-path")
	logPath, _ := cmd.Flags().GetString("log-path")
	return activityPaths{schemaPath: schemaPath, logPath: logPath}
}

func init() {
	for _, c := range []*cobra.Command{planValidateCmd, planRunCmd} {
		c.Flags().String("model", "", "Plan model, A or B (default from config)")
		c.Flags().String("task-id", "", "Task the plan belongs to")
		addActivityFlags(c)
	}

	planCmd.AddCommand(planParseCmd)
	planCmd.AddCommand(planValidateCmd)
	planCmd.AddCommand(planRunCmd)
	rootCmd.AddCommand(planCmd)
}
