package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/govern/internal/lessons"
)

func TestParseAction(t *testing.T) {
	want := lessons.UpdateRuleAction("p1", "r1", "Always run tests")

	tests := []struct {
		name  string
		reply string
	}{
		{"bare", `{"type":"UPDATE_PROTOCOL","command":"update-rule","parameters":{"protocol_id":"p1","rule_id":"r1","description":"Always run tests"}}`},
		{"fenced", "```json\n{\"type\":\"UPDATE_PROTOCOL\",\"command\":\"update-rule\",\"parameters\":{\"protocol_id\":\"p1\",\"rule_id\":\"r1\",\"description\":\"Always run tests\"}}\n```"},
		{"prose", "Sure. {\"type\":\"UPDATE_PROTOCOL\",\"command\":\"update-rule\",\"parameters\":{\"protocol_id\":\"p1\",\"rule_id\":\"r1\",\"description\":\"Always run tests\"}} Done."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAction(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, want, *got)
		})
	}
}

func TestParseActionErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"empty", "", "no JSON object"},
		{"prose only", "I cannot help with that.", "no JSON object"},
		{"no type", `{"command":"add-tool"}`, "no action type"},
		{"bad parameters", `{"type":"UPDATE_PROTOCOL","parameters":["x"]}`, "failed to decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAction(tt.reply)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseActionDefaultsParameters(t *testing.T) {
	got, err := ParseAction(`{"type":"UPDATE_PROTOCOL","command":"placeholder"}`)
	require.NoError(t, err)
	assert.NotNil(t, got.Parameters)
	assert.Equal(t, lessons.CommandPlaceholder, got.Command)
}
