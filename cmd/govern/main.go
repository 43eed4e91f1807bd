package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steveyegge/govern/internal/config"
	"github.com/steveyegge/govern/internal/logging"
	"github.com/steveyegge/govern/internal/udc"
)

// Exit codes.
const (
	exitOK            = 0
	exitFailure       = 1
	exitResourceLimit = 2
)

var (
	verbose     bool
	projectRoot string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "govern",
	Short: "Plan validation, protocol governance, and self-correction for coding agents",
	Long: `govern checks agent plans before they run, keeps the agent protocol document
in sync with its sources, records what the agent did in an activity log, and
turns post-mortem lessons into protocol edits and code-change plans.

Configuration is read from .govern/config.yaml under --root, then GOVERN_*
environment variables; flags on each command override both.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return err
		}
		cfg, err = config.Load(projectRoot)
		if err != nil {
			return err
		}
		logger.Debug("configuration loaded", zap.String("root", projectRoot), zap.Stringer("config", cfg))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", ".", "Project root holding .govern/config.yaml")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps a command error onto the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var limitErr *udc.ResourceLimitError
	if errors.As(err, &limitErr) {
		return exitResourceLimit
	}
	return exitFailure
}

// resolve makes a configured path relative to the project root.
func resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectRoot, path)
}

// pick returns the flag value when set, else the configured value, resolved.
func pick(flag, configured string) string {
	if flag != "" {
		return flag
	}
	return resolve(configured)
}
