package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/govern/internal/events"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Append one entry to the activity log",
	Long: `Append a schema-validated entry to the activity log and print its log_id.

An entry that violates the logging schema is rejected and nothing is written
(exit 1). When the schema file is missing the entry is written unvalidated and
a warning is logged.

Example:
  govern log --phase execution --action run_tests --task T-12 --step 3 \
    --status SUCCESS --message "tests passed" --evidence ci/run/881 \
    --details '{"passed": 212}'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		phase, _ := cmd.Flags().GetString("phase")
		action, _ := cmd.Flags().GetString("action")
		task, _ := cmd.Flags().GetString("task")
		step, _ := cmd.Flags().GetInt("step")
		status, _ := cmd.Flags().GetString("status")
		message, _ := cmd.Flags().GetString("message")
		errText, _ := cmd.Flags().GetString("error")
		evidence, _ := cmd.Flags().GetString("evidence")
		detailsJSON, _ := cmd.Flags().GetString("details")

		var details map[string]interface{}
		if detailsJSON != "" {
			if err := json.Unmarshal([]byte(detailsJSON), &details); err != nil {
				return fmt.Errorf("--details must be a JSON object: %w", err)
			}
		}

		rec := events.Record{
			Phase:            phase,
			TaskID:           task,
			PlanStep:         step,
			ActionType:       action,
			Details:          details,
			Status:           events.Status(status),
			Message:          message,
			EvidenceCitation: evidence,
		}
		if errText != "" {
			rec.Err = errors.New(errText)
		}

		w, _, cleanup, err := openActivity(cmd.Context(), activityFlags(cmd))
		if err != nil {
			return err
		}
		defer cleanup()

		entry, err := w.Log(cmd.Context(), rec)
		if err != nil {
			return err
		}
		fmt.Println(entry.LogID)
		return nil
	},
}

func init() {
	logCmd.Flags().String("phase", "", "Phase (validation, execution, self-correction, compilation, extraction)")
	logCmd.Flags().String("action", "", "Action type")
	logCmd.Flags().String("task", "", "Task ID")
	logCmd.Flags().Int("step", 0, "Plan step")
	logCmd.Flags().String("status", "", "Outcome status, SUCCESS or FAILURE (default from --error)")
	logCmd.Flags().String("message", "", "Outcome message")
	logCmd.Flags().String("error", "", "Error text; implies FAILURE")
	logCmd.Flags().String("evidence", "", "Evidence citation")
	logCmd.Flags().String("details", "", "Action details as a JSON object")
	addActivityFlags(logCmd)
	rootCmd.AddCommand(logCmd)
}
