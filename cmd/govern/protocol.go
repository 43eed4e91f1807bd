package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/govern/internal/events"
	"github.com/steveyegge/govern/internal/protocol"
)

var protocolCmd = &cobra.Command{
	Use:   "protocol",
	Short: "Manage protocol sources and the compiled protocol document",
}

var protocolCompileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Render every protocol source into the agent protocol document",
	Long: `Compile all *.protocol.json sources under the source directory into one
Markdown document.

A source that violates the protocol schema aborts compilation and leaves the
output untouched (exit 1). Any other failure writes the safe fallback document
instead and exits 0 with a warning; if the fallback cannot be written the exit
status is 1.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		paths := protocolFlags(cmd)
		comp, err := newCompiler(newStore(paths), paths)
		if err != nil {
			return err
		}

		w, _, cleanup, err := openActivity(ctx, activityFlags(cmd))
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := comp.Compile(ctx)
		if err != nil {
			rec := events.NewCompileRecord(pick(paths.outputFile, cfg.Protocols.OutputFile), 0, false, err)
			rec.Message = "protocol compilation aborted"
			logActivity(ctx, w, rec)
			return err
		}
		logActivity(ctx, w, events.NewCompileRecord(res.OutputFile, res.Protocols, res.UsedFallback, res.Cause))

		if res.UsedFallback {
			fmt.Printf("%s wrote safe fallback to %s: %v\n", color.YellowString("warning:"), res.OutputFile, res.Cause)
			return nil
		}
		fmt.Printf("%s compiled %d protocol(s) to %s\n", color.GreenString("✓"), res.Protocols, res.OutputFile)
		return nil
	},
}

var protocolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List protocols in the source directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		protocols, err := newStore(protocolFlags(cmd)).Load(cmd.Context())
		if err != nil {
			return err
		}
		printProtocols(protocols)
		return nil
	},
}

var protocolShowCmd = &cobra.Command{
	Use:   "show <protocol-id>",
	Short: "Render one protocol as it appears in the compiled document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")
		paths := protocolFlags(cmd)
		store := newStore(paths)

		p, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		comp, err := newCompiler(store, paths)
		if err != nil {
			return err
		}
		md, err := comp.Render([]*protocol.Protocol{p})
		if err != nil {
			return err
		}
		if raw {
			fmt.Print(string(md))
			return nil
		}

		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return fmt.Errorf("creating markdown renderer: %w", err)
		}
		out, err := renderer.Render(string(md))
		if err != nil {
			return fmt.Errorf("rendering protocol: %w", err)
		}
		fmt.Print(out)
		return nil
	},
}

var protocolApplicableCmd = &cobra.Command{
	Use:   "applicable",
	Short: "List protocols whose applicability matches the given paths and tools",
	Long: `List the protocols that apply to a task touching the given paths with the
given tools. Protocols without an applicability predicate always apply.

Examples:
  govern protocol applicable --path internal/api/server.go --tool run_tests`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, _ := cmd.Flags().GetStringSlice("path")
		tools, _ := cmd.Flags().GetStringSlice("tool")

		protocols, err := newStore(protocolFlags(cmd)).Applicable(cmd.Context(), protocol.Context{
			TargetPaths: paths,
			Tools:       tools,
		})
		if err != nil {
			return err
		}
		printProtocols(protocols)
		return nil
	},
}

var protocolAddToolCmd = &cobra.Command{
	Use:   "add-tool <protocol-id> <tool>",
	Short: "Add a tool to a protocol's associated tools",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		added, err := newStore(protocolFlags(cmd)).AddTool(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if !added {
			fmt.Printf("%s already lists %s\n", args[0], args[1])
			return nil
		}
		fmt.Printf("%s added %s to %s\n", color.GreenString("✓"), args[1], args[0])
		return nil
	},
}

var protocolUpdateRuleCmd = &cobra.Command{
	Use:   "update-rule <protocol-id> <rule-id> <description>",
	Short: "Replace a rule's description",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newStore(protocolFlags(cmd)).UpdateRule(cmd.Context(), args[0], args[1], args[2]); err != nil {
			return err
		}
		fmt.Printf("%s updated %s/%s\n", color.GreenString("✓"), args[0], args[1])
		return nil
	},
}

func printProtocols(protocols []*protocol.Protocol) {
	if len(protocols) == 0 {
		fmt.Println("No protocols.")
		return
	}
	cyan := color.New(color.FgCyan).SprintFunc()
	for _, p := range protocols {
		version := ""
		if p.Version != "" {
			version = " v" + strings.TrimPrefix(p.Version, "v")
		}
		fmt.Printf("%s%s  %s\n", cyan(p.ProtocolID), version, p.Description)
		fmt.Printf("    rules: %d  tools: %s\n", len(p.Rules), strings.Join(p.AssociatedTools, ", "))
	}
}

func protocolFlags(cmd *cobra.Command) protocolPaths {
	return protocolPaths{
		sourceDir:    flagString(cmd, "source-dir"),
		outputFile:   flagString(cmd, "output-file"),
		safeFallback: flagString(cmd, "safe-fallback-path"),
		templatePath: flagString(cmd, "template"),
	}
}

// flagString returns the named flag's value, or "" when cmd lacks the flag.
func flagString(cmd *cobra.Command, name string) string {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}

func init() {
	protocolCmd.PersistentFlags().String("source-dir", "", "Protocol source directory (default from config)")
	protocolCmd.PersistentFlags().String("output-file", "", "Compiled document path (default from config)")

	protocolCompileCmd.Flags().String("safe-fallback-path", "", "Known-good document copied on failure (default from config)")
	protocolCompileCmd.Flags().String("template", "", "Custom text/template for the document")
	addActivityFlags(protocolCompileCmd)

	protocolShowCmd.Flags().Bool("raw", false, "Print Markdown without terminal styling")

	protocolApplicableCmd.Flags().StringSlice("path", nil, "Path the task touches (repeatable)")
	protocolApplicableCmd.Flags().StringSlice("tool", nil, "Tool the task uses (repeatable)")

	protocolCmd.AddCommand(protocolCompileCmd)
	protocolCmd.AddCommand(protocolListCmd)
	protocolCmd.AddCommand(protocolShowCmd)
	protocolCmd.AddCommand(protocolApplicableCmd)
	protocolCmd.AddCommand(protocolAddToolCmd)
	protocolCmd.AddCommand(protocolUpdateRuleCmd)
	rootCmd.AddCommand(protocolCmd)
}
