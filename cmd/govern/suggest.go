package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/govern/internal/correction"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <filepath> <diff>",
	Short: "Write a single-step plan that applies a diff to a file",
	Long: `Write a temporary plan file with one replace_with_git_merge_diff step and
print its path. Literal \n sequences in the diff become newlines.

Example:
  govern plan run "$(govern suggest src/app.go '-old\n+new')" --task-id T-7`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("plan-dir")
		if dir == "" {
			dir = resolve(cfg.Lessons.PlanDir)
		}
		path, err := correction.NewSuggester(dir, logger).Suggest(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	suggestCmd.Flags().String("plan-dir", "", "Directory for the plan file (default from config, else the system temp dir)")
	rootCmd.AddCommand(suggestCmd)
}
