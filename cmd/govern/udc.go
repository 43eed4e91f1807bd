package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/govern/internal/config"
	"github.com/steveyegge/govern/internal/repl"
	"github.com/steveyegge/govern/internal/udc"
)

var udcCmd = &cobra.Command{
	Use:   "udc",
	Short: "Analyze and run UDC tape-machine plans",
}

var udcAnalyzeCmd = &cobra.Command{
	Use:   "analyze <plan-path>",
	Short: "Estimate the termination risk of a UDC plan",
	Long: `Print a JSON report estimating whether each loop in a UDC plan terminates.

The analysis is advisory. Risk is LOW, MEDIUM, HIGH, UNKNOWN, or ERROR when the
plan cannot be read or parsed (exit 1).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report := udc.Analyze(args[0])
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		if report.EstimatedRisk == udc.RiskError {
			return fmt.Errorf("analysis failed: %s", report.Reason)
		}
		return nil
	},
}

var udcRunCmd = &cobra.Command{
	Use:   "run <plan-path>",
	Short: "Execute a UDC plan on the bounded virtual machine",
	Long: `Run a UDC plan and print the final machine state as JSON.

Exit status is 2 when the run exceeds --max-instructions, --max-memory, or
--max-time. Reaching the end of the program without HALT is a warning.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prog, err := udc.ParseFile(args[0])
		if err != nil {
			return err
		}

		vm := udc.NewVM(prog, udcLimits(cmd), udc.WithLogger(logger))
		res, runErr := vm.Run(cmd.Context())

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Status  udc.Status `json:"status"`
			Warning string     `json:"warning,omitempty"`
			udc.State
		}{res.Status, res.Warning, res.State}); err != nil {
			return err
		}
		if res.Warning != "" {
			fmt.Fprintf(os.Stderr, "%s %s\n", color.YellowString("warning:"), res.Warning)
		}
		return runErr
	},
}

var udcReplCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive UDC machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		history := filepath.Join(projectRoot, config.ConfigDir, "udc_history")
		if err := os.MkdirAll(filepath.Dir(history), 0755); err != nil {
			history = ""
		}
		return repl.New(repl.Config{
			Limits:      udcLimits(cmd),
			HistoryFile: history,
			Logger:      logger,
		}).Run(cmd.Context())
	},
}

// udcLimits merges the bound flags over the configured bounds.
func udcLimits(cmd *cobra.Command) udc.Limits {
	limits := udc.Limits{
		MaxInstructions: cfg.UDC.MaxInstructions,
		MaxMemoryCells:  cfg.UDC.MaxMemory,
		MaxTime:         cfg.UDC.MaxTime,
	}
	if cmd.Flags().Changed("max-instructions") {
		limits.MaxInstructions, _ = cmd.Flags().GetInt("max-instructions")
	}
	if cmd.Flags().Changed("max-memory") {
		limits.MaxMemoryCells, _ = cmd.Flags().GetInt("max-memory")
	}
	if cmd.Flags().Changed("max-time") {
		limits.MaxTime, _ = cmd.Flags().GetDuration("max-time")
	}
	return limits
}

func init() {
	def := udc.DefaultLimits()
	for _, c := range []*cobra.Command{udcRunCmd, udcReplCmd} {
		c.Flags().Int("max-instructions", def.MaxInstructions, "Instruction budget")
		c.Flags().Int("max-memory", def.MaxMemoryCells, "Tape cell budget")
		c.Flags().Duration("max-time", def.MaxTime, "Wall-clock budget")
	}

	udcCmd.AddCommand(udcAnalyzeCmd)
	udcCmd.AddCommand(udcRunCmd)
	udcCmd.AddCommand(udcReplCmd)
	rootCmd.AddCommand(udcCmd)
}
