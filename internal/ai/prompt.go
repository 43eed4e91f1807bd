package ai

import (
	"fmt"

	"github.com/steveyegge/govern/internal/lessons"
)

func buildActionPrompt(text string) string {
	return fmt.Sprintf(`You convert a corrective action written in a post-mortem report into a structured lesson action.

Corrective action:
%s

Respond with a single JSON object and nothing else. Use one of these shapes:

{"type": "%s", "command": "%s", "parameters": {"%s": "...", "%s": "..."}}
{"type": "%s", "command": "%s", "parameters": {"%s": "...", "%s": "...", "%s": "..."}}
{"type": "%s", "command": "%s", "parameters": {"%s": "...", "%s": "..."}}
{"type": "%s", "parameters": {"%s": "...", "%s": "..."}}

Use the code change shape only when the action gives a file path and a unified diff.
If the action fits none of these, respond with {"type": "%s", "command": "%s", "parameters": {}}.`,
		text,
		lessons.ActionUpdateProtocol, lessons.CommandAddTool, lessons.ParamProtocolID, lessons.ParamToolName,
		lessons.ActionUpdateProtocol, lessons.CommandUpdateRule, lessons.ParamProtocolID, lessons.ParamRuleID, lessons.ParamDescription,
		lessons.ActionUpdateProtocol, lessons.CommandDeprecateTool, lessons.ParamProtocolID, lessons.ParamToolName,
		lessons.ActionProposeCodeChange, lessons.ParamFilepath, lessons.ParamDiff,
		lessons.ActionUpdateProtocol, lessons.CommandPlaceholder,
	)
}
