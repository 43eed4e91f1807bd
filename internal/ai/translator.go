// Package ai translates free-form corrective-action text into structured
// lesson actions using the Anthropic Messages API.
package ai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/steveyegge/govern/internal/lessons"
	"github.com/steveyegge/govern/internal/logging"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "claude-sonnet-4-5-20250929"

// messenger is the part of the Anthropic client the translator uses.
type messenger interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Config holds translator configuration.
type Config struct {
	APIKey string // Anthropic API key (if empty, reads from ANTHROPIC_API_KEY env var)
	Model  string
	Retry  RetryConfig
	// CallsPerMinute paces requests; 0 means unpaced.
	CallsPerMinute int
	Budget         BudgetConfig
	Logger         *zap.Logger
}

// Translator implements lessons.ActionTranslator.
type Translator struct {
	messages       messenger
	model          string
	retry          RetryConfig
	concurrencySem *semaphore.Weighted
	limiter        *rate.Limiter
	budget         *Budget
	logger         *zap.Logger
}

var _ lessons.ActionTranslator = (*Translator)(nil)

// NewTranslator creates a translator backed by the Anthropic API.
func NewTranslator(cfg Config) (*Translator, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newTranslator(cfg, &client.Messages), nil
}

func newTranslator(cfg Config, messages messenger) *Translator {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialBackoff == 0 {
		retry = DefaultRetryConfig()
	}

	t := &Translator{
		messages: messages,
		model:    model,
		retry:    retry,
		logger:   logging.OrNop(cfg.Logger),
	}
	if retry.MaxConcurrentCalls > 0 {
		t.concurrencySem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}
	if cfg.Budget.MaxTokensPerHour > 0 {
		t.budget = NewBudget(cfg.Budget, t.logger)
	}
	if cfg.CallsPerMinute > 0 {
		t.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.CallsPerMinute)), 1)
	}
	return t
}

// TranslateAction asks the model to map text onto a lesson action. The reply
// must parse into an action that passes Validate.
func (t *Translator) TranslateAction(ctx context.Context, text string) (*lessons.Action, error) {
	if err := t.budget.Check(); err != nil {
		return nil, err
	}
	prompt := buildActionPrompt(text)

	var reply string
	err := t.retryWithBackoff(ctx, "action translation", func(attemptCtx context.Context) error {
		resp, apiErr := t.messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(t.model),
			MaxTokens: 1024,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		var sb strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		reply = sb.String()
		t.budget.Record(resp.Usage.InputTokens, resp.Usage.OutputTokens)
		t.logger.Debug("action translation call",
			zap.Int64("input_tokens", resp.Usage.InputTokens),
			zap.Int64("output_tokens", resp.Usage.OutputTokens))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	action, err := ParseAction(reply)
	if err != nil {
		return nil, err
	}
	if err := action.Validate(); err != nil {
		return nil, fmt.Errorf("model proposed an invalid action: %w", err)
	}
	return action, nil
}
