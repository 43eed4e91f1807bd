// Package config loads govern's configuration: defaults, then .govern/config.yaml,
// then GOVERN_* environment variables. Command-line flags override the result.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigDir is the per-project directory holding config.yaml and local state.
const ConfigDir = ".govern"

// ConfigFileName is the name of the YAML config file inside ConfigDir.
const ConfigFileName = "config.yaml"

// Config is the complete configuration for every component.
type Config struct {
	Plans     PlansConfig     `yaml:"plans"`
	Protocols ProtocolsConfig `yaml:"protocols"`
	Activity  ActivityConfig  `yaml:"activity"`
	UDC       UDCConfig       `yaml:"udc"`
	Lessons   LessonsConfig   `yaml:"lessons"`
	AI        AIConfig        `yaml:"ai"`
}

// PlansConfig configures plan validation.
type PlansConfig struct {
	// Model is the LBA plan model, "A" or "B".
	Model string `yaml:"model"`
}

// ProtocolsConfig configures the protocol store and compiler.
type ProtocolsConfig struct {
	SourceDir        string `yaml:"source_dir"`
	OutputFile       string `yaml:"output_file"`
	SafeFallbackPath string `yaml:"safe_fallback_path"`
}

// ActivityConfig configures the activity log writer and its optional SQLite index.
type ActivityConfig struct {
	SchemaPath string `yaml:"schema_path"`
	LogPath    string `yaml:"log_path"`
	// IndexPath is the SQLite index mirroring the journal. Empty disables the index.
	IndexPath string `yaml:"index_path"`
}

// UDCConfig holds the UDC virtual machine bounds.
type UDCConfig struct {
	MaxInstructions int           `yaml:"max_instructions"`
	MaxMemory       int           `yaml:"max_memory"`
	MaxTime         time.Duration `yaml:"max_time"`
}

// LessonsConfig configures the lesson journal and the code suggester.
type LessonsConfig struct {
	JournalPath string `yaml:"journal_path"`
	// PlanDir is where suggested plans are written. Empty means os.TempDir().
	PlanDir string `yaml:"plan_dir"`
}

// AIConfig configures the optional AI action translator.
type AIConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Model              string `yaml:"model"`
	MaxConcurrentCalls int    `yaml:"max_concurrent_calls"`
	CallsPerMinute     int    `yaml:"calls_per_minute"`
	// MaxTokensPerHour caps translator spend. 0 disables the cap.
	MaxTokensPerHour int64 `yaml:"max_tokens_per_hour"`
	// BudgetStatePath persists token usage between runs. Empty keeps it in memory.
	BudgetStatePath string `yaml:"budget_state_path"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Plans: PlansConfig{Model: "A"},
		Protocols: ProtocolsConfig{
			SourceDir:        "protocols",
			OutputFile:       "AGENTS.md",
			SafeFallbackPath: filepath.Join("protocols", "SAFE_AGENTS.md"),
		},
		Activity: ActivityConfig{
			SchemaPath: filepath.Join("docs", "logging_schema.md"),
			LogPath:    filepath.Join("logs", "activity.jsonl"),
			IndexPath:  filepath.Join(ConfigDir, "activity.db"),
		},
		UDC: UDCConfig{
			MaxInstructions: 10000,
			MaxMemory:       1000,
			MaxTime:         5 * time.Second,
		},
		Lessons: LessonsConfig{
			JournalPath: filepath.Join("knowledge", "lessons.jsonl"),
		},
		AI: AIConfig{
			Enabled:            false,
			Model:              "claude-sonnet-4-5-20250929",
			MaxConcurrentCalls: 2,
			CallsPerMinute:     30,
			MaxTokensPerHour:   200000,
			BudgetStatePath:    filepath.Join(ConfigDir, "ai_budget.json"),
		},
	}
}

// Load reads .govern/config.yaml under projectRoot over the defaults, applies
// environment overrides and validates the result. A missing file is not an error.
func Load(projectRoot string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(projectRoot, ConfigDir, ConfigFileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
//
// Environment variables:
//   - GOVERN_PLAN_MODEL
//   - GOVERN_PROTOCOLS_DIR, GOVERN_PROTOCOLS_OUTPUT, GOVERN_PROTOCOLS_SAFE_FALLBACK
//   - GOVERN_LOG_SCHEMA, GOVERN_LOG_PATH, GOVERN_LOG_INDEX
//   - GOVERN_UDC_MAX_INSTRUCTIONS, GOVERN_UDC_MAX_MEMORY, GOVERN_UDC_MAX_TIME (duration)
//   - GOVERN_LESSONS_JOURNAL, GOVERN_LESSONS_PLAN_DIR
//   - GOVERN_AI_ENABLED, GOVERN_AI_MODEL, GOVERN_AI_MAX_TOKENS_PER_HOUR
func (c *Config) ApplyEnv() error {
	strs := []struct {
		key  string
		dest *string
	}{
		{"GOVERN_PLAN_MODEL", &c.Plans.Model},
		{"GOVERN_PROTOCOLS_DIR", &c.Protocols.SourceDir},
		{"GOVERN_PROTOCOLS_OUTPUT", &c.Protocols.OutputFile},
		{"GOVERN_PROTOCOLS_SAFE_FALLBACK", &c.Protocols.SafeFallbackPath},
		{"GOVERN_LOG_SCHEMA", &c.Activity.SchemaPath},
		{"GOVERN_LOG_PATH", &c.Activity.LogPath},
		{"GOVERN_LOG_INDEX", &c.Activity.IndexPath},
		{"GOVERN_LESSONS_JOURNAL", &c.Lessons.JournalPath},
		{"GOVERN_LESSONS_PLAN_DIR", &c.Lessons.PlanDir},
		{"GOVERN_AI_MODEL", &c.AI.Model},
	}
	for _, s := range strs {
		parseEnvString(s.key, s.dest)
	}

	if err := parseEnvInt("GOVERN_UDC_MAX_INSTRUCTIONS", &c.UDC.MaxInstructions); err != nil {
		return err
	}
	if err := parseEnvInt("GOVERN_UDC_MAX_MEMORY", &c.UDC.MaxMemory); err != nil {
		return err
	}
	if err := parseEnvDuration("GOVERN_UDC_MAX_TIME", &c.UDC.MaxTime); err != nil {
		return err
	}
	if err := parseEnvBool("GOVERN_AI_ENABLED", &c.AI.Enabled); err != nil {
		return err
	}
	if err := parseEnvInt64("GOVERN_AI_MAX_TOKENS_PER_HOUR", &c.AI.MaxTokensPerHour); err != nil {
		return err
	}
	return nil
}

// Validate checks if the configuration has valid values.
func (c *Config) Validate() error {
	switch strings.ToUpper(c.Plans.Model) {
	case "A", "B":
	default:
		return fmt.Errorf("plans.model must be 'A' or 'B' (got %q)", c.Plans.Model)
	}

	if c.Protocols.SourceDir == "" {
		return fmt.Errorf("protocols.source_dir is required")
	}
	if c.Protocols.OutputFile == "" {
		return fmt.Errorf("protocols.output_file is required")
	}
	if c.Activity.LogPath == "" {
		return fmt.Errorf("activity.log_path is required")
	}
	if c.Lessons.JournalPath == "" {
		return fmt.Errorf("lessons.journal_path is required")
	}

	if c.UDC.MaxInstructions < 1 {
		return fmt.Errorf("udc.max_instructions must be at least 1 (got %d)", c.UDC.MaxInstructions)
	}
	if c.UDC.MaxMemory < 1 {
		return fmt.Errorf("udc.max_memory must be at least 1 (got %d)", c.UDC.MaxMemory)
	}
	if c.UDC.MaxTime <= 0 {
		return fmt.Errorf("udc.max_time must be positive (got %s)", c.UDC.MaxTime)
	}

	if c.AI.MaxConcurrentCalls < 0 {
		return fmt.Errorf("ai.max_concurrent_calls cannot be negative (got %d)", c.AI.MaxConcurrentCalls)
	}
	if c.AI.CallsPerMinute < 0 {
		return fmt.Errorf("ai.calls_per_minute cannot be negative (got %d)", c.AI.CallsPerMinute)
	}
	if c.AI.MaxTokensPerHour < 0 {
		return fmt.Errorf("ai.max_tokens_per_hour cannot be negative (got %d)", c.AI.MaxTokensPerHour)
	}
	if c.AI.Enabled && c.AI.Model == "" {
		return fmt.Errorf("ai.model is required when ai.enabled is true")
	}
	return nil
}

// String returns a human-readable representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Model: %s, Protocols: %s -> %s (safe: %s), Log: %s (schema: %s, index: %s), "+
			"UDC: %d instr/%d cells/%s, Journal: %s, AI: %t}",
		c.Plans.Model, c.Protocols.SourceDir, c.Protocols.OutputFile, c.Protocols.SafeFallbackPath,
		c.Activity.LogPath, c.Activity.SchemaPath, c.Activity.IndexPath,
		c.UDC.MaxInstructions, c.UDC.MaxMemory, c.UDC.MaxTime,
		c.Lessons.JournalPath, c.AI.Enabled,
	)
}
