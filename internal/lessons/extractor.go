package lessons

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/steveyegge/govern/internal/logging"
	"go.uber.org/zap"
)

// ErrNoCorrectiveSection is returned when a report has no corrective-actions
// section to extract from.
var ErrNoCorrectiveSection = errors.New("no corrective actions section found")

// Defaults used when the report preamble lacks metadata.
const (
	UnknownTaskID = "Unknown"
	DateLayout    = "2006-01-02"
)

var (
	sectionHeading = regexp.MustCompile(`(?m)^[#\s]*\**\s*(?:3\.\s*Corrective Actions\s*&\s*Lessons Learned|5\.\s*Proposed Corrective Actions)\b.*$`)
	horizontalRule = regexp.MustCompile(`(?m)^---\s*$`)
	numberedItem   = regexp.MustCompile(`(?m)^\d+\.\s`)

	taskIDField         = regexp.MustCompile(`(?im)^[\s*\-]*Task ID[\s*]*:[\s*]*(.+?)\s*$`)
	completionDateField = regexp.MustCompile(`(?im)^[\s*\-]*Completion Date[\s*]*:[\s*]*(.+?)\s*$`)
)

const (
	actionMarker = "**Action:**"
	lessonMarker = "**Lesson:**"
)

// q matches one quoted argument. Straight, double, and backtick quotes are
// accepted; the closing quote must match the opening one.
const q = "(?:'([^']*)'|\"([^\"]*)\"|`([^`]*)`)"

var (
	addToolPattern       = regexp.MustCompile(`(?i)add\s+tool\s+` + q + `\s+to\s+protocol\s+` + q)
	deprecateToolPattern = regexp.MustCompile(`(?i)deprecate\s+tool\s+` + q + `\s+from\s+protocol\s+` + q)
	// A rule description ends at the first closing quote not followed by a
	// word character, so apostrophes inside it survive.
	updateRulePattern = regexp.MustCompile(`(?is)update\s+rule\s+` + q + `\s+in\s+protocol\s+` + q + `\s+to\s+(?:'(.*?)'|"(.*?)")(?:\W|$)`)
	codeChangePattern = regexp.MustCompile(`(?i)propose\s+(?:a\s+)?code\s+change\s+to\s+` + q)
	inlineDiffPattern = regexp.MustCompile(`(?is)with\s+diff\s+(?:'(.*)'|"(.*)")`)
)

// ActionTranslator turns free-form action text into an Action when no
// built-in pattern matches. Implementations may call an LLM.
type ActionTranslator interface {
	TranslateAction(ctx context.Context, text string) (*Action, error)
}

// Extractor parses post-mortem reports into pending lessons.
type Extractor struct {
	now        func() time.Time
	newID      func() string
	translator ActionTranslator
	logger     *zap.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithClock replaces time.Now for the default completion date.
func WithClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) { e.now = now }
}

// WithIDGenerator replaces the lesson id generator.
func WithIDGenerator(newID func() string) ExtractorOption {
	return func(e *Extractor) { e.newID = newID }
}

// WithTranslator sets a fallback translator for unmatched actions.
func WithTranslator(t ActionTranslator) ExtractorOption {
	return func(e *Extractor) { e.translator = t }
}

// WithLogger sets the extractor's logger.
func WithLogger(l *zap.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = logging.OrNop(l) }
}

// NewExtractor creates an extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractFile reads and extracts the report at path.
func (e *Extractor) ExtractFile(ctx context.Context, path string) ([]*Lesson, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading post-mortem: %w", err)
	}
	return e.Extract(ctx, string(data))
}

// Extract returns one pending lesson per numbered item in the report's
// corrective-actions section.
func (e *Extractor) Extract(ctx context.Context, report string) ([]*Lesson, error) {
	report = strings.ReplaceAll(report, "\r\n", "\n")

	loc := sectionHeading.FindStringIndex(report)
	if loc == nil {
		return nil, ErrNoCorrectiveSection
	}
	preamble := report[:loc[0]]
	section := report[loc[1]:]
	if rule := horizontalRule.FindStringIndex(section); rule != nil {
		section = section[:rule[0]]
	}

	taskID, date := e.metadata(preamble)

	lessons := []*Lesson{}
	for _, item := range splitItems(section) {
		insight, actionText := splitItem(item)
		if actionText == "" {
			continue
		}
		action := e.translate(ctx, actionText)
		lessons = append(lessons, &Lesson{
			LessonID: e.newID(),
			TaskID:   taskID,
			Date:     date,
			Insight:  insight,
			Action:   action,
			Status:   StatusPending,
		})
	}

	e.logger.Debug("extracted lessons", zap.String("task_id", taskID), zap.Int("count", len(lessons)))
	return lessons, nil
}

func (e *Extractor) metadata(preamble string) (taskID, date string) {
	taskID = UnknownTaskID
	if m := taskIDField.FindStringSubmatch(preamble); m != nil {
		if v := cleanValue(m[1]); v != "" {
			taskID = v
		}
	}
	date = e.now().Format(DateLayout)
	if m := completionDateField.FindStringSubmatch(preamble); m != nil {
		if v := cleanValue(m[1]); v != "" {
			date = v
		}
	}
	return taskID, date
}

func cleanValue(s string) string {
	return strings.Trim(strings.TrimSpace(s), "*`_ ")
}

// splitItems cuts the section at each numbered-item line. Text before the
// first item is ignored.
func splitItems(section string) []string {
	starts := numberedItem.FindAllStringIndex(section, -1)
	items := make([]string, 0, len(starts))
	for i, s := range starts {
		end := len(section)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		items = append(items, strings.TrimSpace(section[s[1]:end]))
	}
	return items
}

// splitItem separates an item into its lesson text and its action text.
func splitItem(item string) (insight, action string) {
	idx := strings.Index(item, actionMarker)
	if idx < 0 {
		action = strings.TrimSpace(item)
		return defaultInsight(action), action
	}

	before := item[:idx]
	action = strings.TrimSpace(item[idx+len(actionMarker):])
	if li := strings.Index(before, lessonMarker); li >= 0 {
		before = before[li+len(lessonMarker):]
	}
	insight = strings.TrimSpace(before)
	if insight == "" {
		insight = defaultInsight(action)
	}
	return insight, action
}

func defaultInsight(action string) string {
	return "A corrective action was proposed: " + action
}

// translate maps action text to an Action: built-in patterns first, then the
// optional translator, then a placeholder.
func (e *Extractor) translate(ctx context.Context, text string) Action {
	if a, ok := TranslateAction(text); ok {
		return a
	}

	if e.translator != nil {
		a, err := e.translator.TranslateAction(ctx, text)
		switch {
		case err != nil:
			e.logger.Warn("action translation failed; using placeholder", zap.Error(err))
		case a == nil:
		case a.Validate() != nil:
			e.logger.Warn("translator returned an unusable action; using placeholder",
				zap.String("action", a.Label()), zap.Error(a.Validate()))
		case a.Type == ActionUpdateProtocol && a.Command == CommandPlaceholder:
		default:
			return *a
		}
	}
	return PlaceholderAction(text)
}

// TranslateAction applies the built-in translation patterns. It reports false
// when none matches.
func TranslateAction(text string) (Action, bool) {
	if loc := codeChangePattern.FindStringSubmatchIndex(text); loc != nil {
		m := codeChangePattern.FindStringSubmatch(text)
		path := pick(m, 1, 2, 3)
		rest := text[loc[1]:]
		if diff, ok := fencedBlock(rest); ok {
			return CodeChangeAction(path, diff), true
		}
		if dm := inlineDiffPattern.FindStringSubmatch(rest); dm != nil {
			return CodeChangeAction(path, pick(dm, 1, 2)), true
		}
	}

	if m := updateRulePattern.FindStringSubmatch(text); m != nil {
		return UpdateRuleAction(pick(m, 4, 5, 6), pick(m, 1, 2, 3), pick(m, 7, 8)), true
	}
	if m := addToolPattern.FindStringSubmatch(text); m != nil {
		return AddToolAction(pick(m, 4, 5, 6), pick(m, 1, 2, 3)), true
	}
	if m := deprecateToolPattern.FindStringSubmatch(text); m != nil {
		return DeprecateToolAction(pick(m, 4, 5, 6), pick(m, 1, 2, 3)), true
	}
	return Action{}, false
}

// pick returns the first non-empty submatch among groups.
func pick(m []string, groups ...int) string {
	for _, g := range groups {
		if g < len(m) && m[g] != "" {
			return m[g]
		}
	}
	return ""
}

// fencedBlock returns the body of the first fenced code block in s.
func fencedBlock(s string) (string, bool) {
	lines := strings.Split(s, "\n")
	start := -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if start < 0 {
			if strings.HasPrefix(trimmed, "```") {
				start = i + 1
			}
			continue
		}
		if strings.HasPrefix(trimmed, "```") {
			return strings.Join(lines[start:i], "\n"), true
		}
	}
	return "", false
}
