package protocol

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const p1Source = `{
  "protocol_id": "p1",
  "version": "1.0.0",
  "description": "Core safety protocol",
  "x-owner": "governance",
  "rules": [
    {"rule_id": "r1", "description": "Read before writing", "enforcement": "validator"},
    {"rule_id": "r2", "description": "Never force-push", "enforcement": "review"}
  ],
  "associated_tools": ["a"]
}
`

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return NewStore(dir, nil), dir
}

func TestStore_LoadSortsByID(t *testing.T) {
	store, dir := newTestStore(t)
	writeSource(t, dir, "z.protocol.json", `{"protocol_id":"alpha","description":"A","rules":[]}`)
	writeSource(t, dir, "nested/a.protocol.json", `{"protocol_id":"beta","description":"B","rules":[]}`)
	writeSource(t, dir, "nested/a.protocol.md", "## Why\nBecause.\n")
	writeSource(t, dir, "notes.json", `{"ignored": true}`)

	protocols, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, protocols, 2)

	assert.Equal(t, "alpha", protocols[0].ProtocolID)
	assert.Equal(t, "beta", protocols[1].ProtocolID)
	assert.Equal(t, "## Why\nBecause.\n", protocols[1].Narrative)
	assert.Empty(t, protocols[0].Narrative)
	assert.Equal(t, filepath.Join(dir, "nested", "a.protocol.json"), protocols[1].Source)
}

func TestStore_LoadRejectsDuplicateIDs(t *testing.T) {
	store, dir := newTestStore(t)
	writeSource(t, dir, "a.protocol.json", `{"protocol_id":"same","description":"A","rules":[]}`)
	writeSource(t, dir, "b.protocol.json", `{"protocol_id":"same","description":"B","rules":[]}`)

	_, err := store.Load(context.Background())
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr), "got %v", err)
	assert.Contains(t, schemaErr.Reason, "already defined")
}

func TestStore_LoadMissingRoot(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent"), nil)
	_, err := store.Load(context.Background())
	require.Error(t, err)

	var schemaErr *SchemaError
	assert.False(t, errors.As(err, &schemaErr), "I/O failures are not schema errors")
}

func TestStore_AddTool(t *testing.T) {
	store, dir := newTestStore(t)
	path := writeSource(t, dir, "p1.protocol.json", p1Source)
	ctx := context.Background()

	changed, err := store.AddTool(ctx, "p1", "b")
	require.NoError(t, err)
	assert.True(t, changed)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, gjson.GetBytes(raw, "associated_tools").Raw)
	assert.Equal(t, "governance", gjson.GetBytes(raw, "x-owner").String(), "unknown fields survive")

	// Adding again is a no-op and leaves the file untouched.
	changed, err = store.AddTool(ctx, "p1", "b")
	require.NoError(t, err)
	assert.False(t, changed)
	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, raw, again)
}

func TestStore_AddToolCreatesList(t *testing.T) {
	store, dir := newTestStore(t)
	path := writeSource(t, dir, "p.protocol.json", `{"protocol_id":"p","description":"d","rules":[]}`)

	changed, err := store.AddTool(context.Background(), "p", "git_push")
	require.NoError(t, err)
	assert.True(t, changed)

	p, err := store.Get(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"git_push"}, p.AssociatedTools)
	assert.Equal(t, path, p.Source)
}

func TestStore_AddToolPreservesMode(t *testing.T) {
	store, dir := newTestStore(t)
	path := writeSource(t, dir, "p1.protocol.json", p1Source)
	require.NoError(t, os.Chmod(path, 0600))

	_, err := store.AddTool(context.Background(), "p1", "b")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestStore_UpdateRule(t *testing.T) {
	store, dir := newTestStore(t)
	path := writeSource(t, dir, "p1.protocol.json", p1Source)
	ctx := context.Background()

	require.NoError(t, store.UpdateRule(ctx, "p1", "r2", "Never force-push to main"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Never force-push to main", gjson.GetBytes(raw, "rules.1.description").String())
	assert.Equal(t, "Read before writing", gjson.GetBytes(raw, "rules.0.description").String())
	assert.Equal(t, "review", gjson.GetBytes(raw, "rules.1.enforcement").String())
}

func TestStore_ReferentialErrors(t *testing.T) {
	store, dir := newTestStore(t)
	writeSource(t, dir, "p1.protocol.json", p1Source)
	ctx := context.Background()

	var refErr *ReferentialError

	_, err := store.AddTool(ctx, "missing", "b")
	require.True(t, errors.As(err, &refErr), "got %v", err)
	assert.Equal(t, "missing", refErr.ProtocolID)
	assert.Empty(t, refErr.RuleID)

	err = store.UpdateRule(ctx, "p1", "r9", "x")
	require.True(t, errors.As(err, &refErr), "got %v", err)
	assert.Equal(t, "r9", refErr.RuleID)
	assert.Equal(t, "rule 'r9' not found in protocol 'p1'", err.Error())

	err = store.UpdateRule(ctx, "missing", "r1", "x")
	require.True(t, errors.As(err, &refErr))
}

func TestStore_Applicable(t *testing.T) {
	store, dir := newTestStore(t)
	writeSource(t, dir, "always.protocol.json", `{"protocol_id":"always","description":"d","rules":[]}`)
	writeSource(t, dir, "legacy.protocol.json", `{
		"protocol_id":"legacy","description":"d","rules":[],
		"applicability": {"any_path_prefix": ["legacy/"]}
	}`)
	writeSource(t, dir, "deploy.protocol.json", `{
		"protocol_id":"deploy","description":"d","rules":[],
		"applicability": {"any": [{"any_tool": ["deploy"]}, {"any_path_prefix": ["ops/"]}], "not": {"any_tool": ["dry_run"]}}
	}`)

	ids := func(c Context) []string {
		ps, err := store.Applicable(context.Background(), c)
		require.NoError(t, err)
		out := []string{}
		for _, p := range ps {
			out = append(out, p.ProtocolID)
		}
		return out
	}

	assert.Equal(t, []string{"always"}, ids(Context{}))
	assert.Equal(t, []string{"always", "legacy"}, ids(Context{TargetPaths: []string{"src/a.go", "legacy/b.go"}}))
	assert.Equal(t, []string{"always", "deploy"}, ids(Context{Tools: []string{"deploy"}}))
	assert.Equal(t, []string{"always"}, ids(Context{Tools: []string{"deploy", "dry_run"}}))
	assert.Equal(t, []string{"always", "deploy"}, ids(Context{TargetPaths: []string{"./ops/run.sh"}}))
}
