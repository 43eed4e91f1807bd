package correction

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/govern/internal/planning"
)

func TestSuggestWritesSingleStepPlan(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plans")
	s := NewSuggester(dir, nil)

	path, err := s.Suggest("internal/app.go", `<<<<<<< SEARCH\nold()\n=======\nnew()\n>>>>>>> REPLACE`)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "plan-"))
	assert.True(t, strings.HasSuffix(path, ".txt"))

	plan, err := planning.ParseFile(path)
	require.NoError(t, err)
	require.Len(t, plan.Commands, 1)
	assert.Equal(t, MergeDiffTool, plan.Commands[0].ToolName)
	assert.Equal(t, "internal/app.go\n<<<<<<< SEARCH\nold()\n=======\nnew()\n>>>>>>> REPLACE", plan.Commands[0].ArgsText)
}

func TestSuggestFreshFileEachTime(t *testing.T) {
	s := NewSuggester(t.TempDir(), nil)
	a, err := s.Suggest("a.go", "-x\n+y")
	require.NoError(t, err)
	b, err := s.Suggest("a.go", "-x\n+y")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSuggestRejectsEmptyInput(t *testing.T) {
	s := NewSuggester(t.TempDir(), nil)
	_, err := s.Suggest("", "-x")
	assert.Error(t, err)
	_, err = s.Suggest("a.go", "  ")
	assert.Error(t, err)

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
