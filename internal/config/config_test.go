package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, root, body string) {
	t.Helper()
	dir := filepath.Join(root, ConfigDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(body), 0o644))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	defaults := Default()
	assert.Equal(t, defaults, cfg)
	assert.Equal(t, 10000, cfg.UDC.MaxInstructions)
	assert.Equal(t, 1000, cfg.UDC.MaxMemory)
	assert.Equal(t, 5*time.Second, cfg.UDC.MaxTime)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	root := t.TempDir()
	writeConfigFile(t, root, `
plans:
  model: b
protocols:
  source_dir: gov/protocols
udc:
  max_instructions: 50
  max_time: 250ms
lessons:
  journal_path: k/l.jsonl
`)

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, "b", cfg.Plans.Model)
	assert.Equal(t, "gov/protocols", cfg.Protocols.SourceDir)
	assert.Equal(t, "AGENTS.md", cfg.Protocols.OutputFile, "unset fields keep defaults")
	assert.Equal(t, 50, cfg.UDC.MaxInstructions)
	assert.Equal(t, 250*time.Millisecond, cfg.UDC.MaxTime)
	assert.Equal(t, "k/l.jsonl", cfg.Lessons.JournalPath)
}

func TestLoad_InvalidYAML(t *testing.T) {
	root := t.TempDir()
	writeConfigFile(t, root, "plans: [unterminated")

	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_EnvOverrides(t *testing.T) {
	root := t.TempDir()
	writeConfigFile(t, root, "udc:\n  max_memory: 10\n")

	t.Setenv("GOVERN_UDC_MAX_MEMORY", "20")
	t.Setenv("GOVERN_UDC_MAX_TIME", "2s")
	t.Setenv("GOVERN_LOG_PATH", "custom/activity.jsonl")
	t.Setenv("GOVERN_AI_ENABLED", "true")
	t.Setenv("GOVERN_AI_MAX_TOKENS_PER_HOUR", "5000")

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.UDC.MaxMemory)
	assert.Equal(t, 2*time.Second, cfg.UDC.MaxTime)
	assert.Equal(t, "custom/activity.jsonl", cfg.Activity.LogPath)
	assert.True(t, cfg.AI.Enabled)
	assert.Equal(t, int64(5000), cfg.AI.MaxTokensPerHour)
}

func TestLoad_InvalidEnv(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad int", "GOVERN_UDC_MAX_INSTRUCTIONS", "lots"},
		{"bad duration", "GOVERN_UDC_MAX_TIME", "forever"},
		{"bad bool", "GOVERN_AI_ENABLED", "maybe"},
		{"bad int64", "GOVERN_AI_MAX_TOKENS_PER_HOUR", "1e9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load(t.TempDir())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"lower case model", func(c *Config) { c.Plans.Model = "a" }, ""},
		{"unknown model", func(c *Config) { c.Plans.Model = "C" }, "plans.model"},
		{"missing source dir", func(c *Config) { c.Protocols.SourceDir = "" }, "protocols.source_dir"},
		{"missing output", func(c *Config) { c.Protocols.OutputFile = "" }, "protocols.output_file"},
		{"missing log path", func(c *Config) { c.Activity.LogPath = "" }, "activity.log_path"},
		{"missing journal", func(c *Config) { c.Lessons.JournalPath = "" }, "lessons.journal_path"},
		{"zero instructions", func(c *Config) { c.UDC.MaxInstructions = 0 }, "udc.max_instructions"},
		{"zero memory", func(c *Config) { c.UDC.MaxMemory = 0 }, "udc.max_memory"},
		{"zero time", func(c *Config) { c.UDC.MaxTime = 0 }, "udc.max_time"},
		{"negative concurrency", func(c *Config) { c.AI.MaxConcurrentCalls = -1 }, "ai.max_concurrent_calls"},
		{"negative token budget", func(c *Config) { c.AI.MaxTokensPerHour = -1 }, "ai.max_tokens_per_hour"},
		{"ai without model", func(c *Config) { c.AI.Enabled = true; c.AI.Model = "" }, "ai.model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestString(t *testing.T) {
	s := Default().String()
	assert.Contains(t, s, "Model: A")
	assert.Contains(t, s, "10000 instr")
}
