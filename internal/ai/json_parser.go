package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/steveyegge/govern/internal/lessons"
)

var (
	// Matches ```json\n{...}\n```, ```{...}```, ``` json{...}``` and so on.
	codeFenceRegex = regexp.MustCompile("(?s)`{3}(?:json|javascript|js)?\\s*\\n?(.*?)\\n?`{3}")
	objectRegex    = regexp.MustCompile(`(?s)\{.*\}`)
)

// ParseAction extracts a lesson action from a model reply. Code fences and
// prose around the JSON object are tolerated.
func ParseAction(reply string) (*lessons.Action, error) {
	raw := extractJSON(reply)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in model reply: %q", truncate(reply, 200))
	}
	if !gjson.Get(raw, "type").Exists() {
		return nil, fmt.Errorf("model reply has no action type: %q", truncate(raw, 200))
	}

	var action lessons.Action
	if err := json.Unmarshal([]byte(raw), &action); err != nil {
		return nil, fmt.Errorf("failed to decode action: %w", err)
	}
	if action.Parameters == nil {
		action.Parameters = map[string]string{}
	}
	return &action, nil
}

// extractJSON returns the first candidate that is a valid JSON object, or "".
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	candidates := []string{trimmed}
	if m := codeFenceRegex.FindStringSubmatch(trimmed); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if m := objectRegex.FindString(trimmed); m != "" {
		candidates = append(candidates, m)
	}
	for _, c := range candidates {
		if gjson.Valid(c) && gjson.Parse(c).IsObject() {
			return c
		}
	}
	return ""
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
