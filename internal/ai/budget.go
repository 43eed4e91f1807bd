package ai

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/steveyegge/govern/internal/logging"
	"github.com/steveyegge/govern/internal/storage"
)

// BudgetConfig bounds how many tokens the translator may spend per window.
type BudgetConfig struct {
	// MaxTokensPerHour caps input plus output tokens per window. 0 disables the budget.
	MaxTokensPerHour int64
	// ResetInterval is the window length. Defaults to one hour.
	ResetInterval time.Duration
	// StatePath persists usage across runs when set.
	StatePath string
}

// budgetState is the persisted usage record.
type budgetState struct {
	WindowTokens    int64     `json:"window_tokens"`
	WindowStartTime time.Time `json:"window_start_time"`
	TotalTokens     int64     `json:"total_tokens"`
	LastUpdated     time.Time `json:"last_updated"`
}

// Budget tracks translator token usage against an hourly cap.
type Budget struct {
	cfg    BudgetConfig
	now    func() time.Time
	logger *zap.Logger

	mu    sync.Mutex
	state budgetState
}

// BudgetExceededError is returned instead of calling the API once the window's
// tokens are spent. It is never retried.
type BudgetExceededError struct {
	Used  int64
	Limit int64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("hourly token budget exceeded (%d/%d tokens used)", e.Used, e.Limit)
}

// NewBudget creates a budget, loading persisted usage when cfg.StatePath
// exists. A state file that cannot be read is logged and ignored.
func NewBudget(cfg BudgetConfig, logger *zap.Logger) *Budget {
	if cfg.ResetInterval <= 0 {
		cfg.ResetInterval = time.Hour
	}
	b := &Budget{cfg: cfg, now: time.Now, logger: logging.OrNop(logger)}
	b.state.WindowStartTime = b.now()

	if cfg.StatePath != "" {
		if err := b.load(); err != nil && !os.IsNotExist(err) {
			b.logger.Warn("failed to load token budget state; starting fresh",
				zap.String("path", cfg.StatePath), zap.Error(err))
		}
	}
	return b
}

// Check returns a BudgetExceededError when the current window is spent.
func (b *Budget) Check() error {
	if b == nil || b.cfg.MaxTokensPerHour <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetWindowLocked()
	if b.state.WindowTokens >= b.cfg.MaxTokensPerHour {
		return &BudgetExceededError{Used: b.state.WindowTokens, Limit: b.cfg.MaxTokensPerHour}
	}
	return nil
}

// Record adds one call's usage and persists the state when configured.
func (b *Budget) Record(inputTokens, outputTokens int64) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetWindowLocked()

	n := inputTokens + outputTokens
	b.state.WindowTokens += n
	b.state.TotalTokens += n
	b.state.LastUpdated = b.now()

	if limit := b.cfg.MaxTokensPerHour; limit > 0 && b.state.WindowTokens >= limit*8/10 {
		b.logger.Warn("token budget nearly spent",
			zap.Int64("used", b.state.WindowTokens), zap.Int64("limit", limit))
	}
	if b.cfg.StatePath != "" {
		if err := b.persistLocked(); err != nil {
			b.logger.Warn("failed to persist token budget state", zap.Error(err))
		}
	}
}

// Used returns the tokens spent in the current window and in total.
func (b *Budget) Used() (window, total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetWindowLocked()
	return b.state.WindowTokens, b.state.TotalTokens
}

func (b *Budget) resetWindowLocked() {
	now := b.now()
	if now.Sub(b.state.WindowStartTime) >= b.cfg.ResetInterval {
		b.state.WindowTokens = 0
		b.state.WindowStartTime = now
	}
}

func (b *Budget) load() error {
	data, err := os.ReadFile(b.cfg.StatePath)
	if err != nil {
		return err
	}
	var s budgetState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding token budget state: %w", err)
	}
	b.state = s
	return nil
}

func (b *Budget) persistLocked() error {
	data, err := json.MarshalIndent(b.state, "", "  ")
	if err != nil {
		return err
	}
	return storage.WriteFileAtomic(b.cfg.StatePath, data, 0644)
}
