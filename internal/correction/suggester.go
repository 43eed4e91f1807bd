package correction

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/steveyegge/govern/internal/logging"
)

// MergeDiffTool is the plan tool that applies a git merge diff to one file.
const MergeDiffTool = "replace_with_git_merge_diff"

// Suggester turns a code-change lesson into a single-step plan file. Running
// the plan is left to the caller.
type Suggester struct {
	dir    string
	logger *zap.Logger
}

// NewSuggester writes plans into dir, or the system temp dir when dir is "".
func NewSuggester(dir string, logger *zap.Logger) *Suggester {
	return &Suggester{dir: dir, logger: logging.OrNop(logger)}
}

// Suggest writes a fresh plan-*.txt holding one MergeDiffTool step for path and
// returns the plan's path. Literal "\n" sequences in diff become newlines.
func (s *Suggester) Suggest(path, diff string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("code suggestion needs a file path")
	}
	if strings.TrimSpace(diff) == "" {
		return "", fmt.Errorf("code suggestion for %s has an empty diff", path)
	}

	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create plan directory: %w", err)
		}
	}
	f, err := os.CreateTemp(s.dir, "plan-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create plan file: %w", err)
	}

	content := MergeDiffTool + "\n" + path + "\n" + unescapeNewlines(diff) + "\n"
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write plan file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to close plan file: %w", err)
	}

	s.logger.Info("wrote code-change plan", zap.String("plan", f.Name()), zap.String("file", path))
	return f.Name(), nil
}

func unescapeNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
