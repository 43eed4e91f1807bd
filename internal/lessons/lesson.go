// Package lessons models lessons learned from post-mortems: extraction from
// reports, the pending/applied/failed lifecycle, and the JSONL journal that
// carries them to the self-correction pass.
package lessons

import (
	"fmt"
)

// Status is a lesson's lifecycle state.
type Status string

const (
	StatusPending Status = "pending"
	StatusApplied Status = "applied"
	StatusFailed  Status = "failed"
)

// ActionType tags the variant of an Action.
type ActionType string

const (
	ActionUpdateProtocol    ActionType = "UPDATE_PROTOCOL"
	ActionProposeCodeChange ActionType = "PROPOSE_CODE_CHANGE"
)

// UPDATE_PROTOCOL commands.
const (
	CommandAddTool       = "add-tool"
	CommandUpdateRule    = "update-rule"
	CommandDeprecateTool = "deprecate-tool"
	CommandPlaceholder   = "placeholder"
)

// Parameter keys.
const (
	ParamProtocolID  = "protocol_id"
	ParamToolName    = "tool_name"
	ParamRuleID      = "rule_id"
	ParamDescription = "description"
	ParamFilepath    = "filepath"
	ParamDiff        = "diff"
)

// Action is a machine-executable corrective action. Command is set only for
// UPDATE_PROTOCOL actions.
type Action struct {
	Type       ActionType        `json:"type"`
	Command    string            `json:"command,omitempty"`
	Parameters map[string]string `json:"parameters"`
}

// Lesson is one insight from a post-mortem with the action that applies it.
type Lesson struct {
	LessonID string `json:"lesson_id"`
	TaskID   string `json:"task_id"`
	Date     string `json:"date"`
	Insight  string `json:"insight"`
	Action   Action `json:"action"`
	Status   Status `json:"status"`
}

// AddToolAction associates tool with a protocol.
func AddToolAction(protocolID, tool string) Action {
	return Action{
		Type:       ActionUpdateProtocol,
		Command:    CommandAddTool,
		Parameters: map[string]string{ParamProtocolID: protocolID, ParamToolName: tool},
	}
}

// UpdateRuleAction replaces a rule's description.
func UpdateRuleAction(protocolID, ruleID, description string) Action {
	return Action{
		Type:    ActionUpdateProtocol,
		Command: CommandUpdateRule,
		Parameters: map[string]string{
			ParamProtocolID:  protocolID,
			ParamRuleID:      ruleID,
			ParamDescription: description,
		},
	}
}

// DeprecateToolAction marks a tool as deprecated within a protocol.
func DeprecateToolAction(protocolID, tool string) Action {
	return Action{
		Type:       ActionUpdateProtocol,
		Command:    CommandDeprecateTool,
		Parameters: map[string]string{ParamProtocolID: protocolID, ParamToolName: tool},
	}
}

// PlaceholderAction records an action no translation rule understood.
func PlaceholderAction(description string) Action {
	return Action{
		Type:       ActionUpdateProtocol,
		Command:    CommandPlaceholder,
		Parameters: map[string]string{ParamDescription: description},
	}
}

// CodeChangeAction proposes a diff against a file.
func CodeChangeAction(filepath, diff string) Action {
	return Action{
		Type:       ActionProposeCodeChange,
		Parameters: map[string]string{ParamFilepath: filepath, ParamDiff: diff},
	}
}

// requiredParams lists the non-empty parameters each known command needs.
// A rule description may legitimately be cleared, so it is not listed.
var requiredParams = map[string][]string{
	CommandAddTool:       {ParamProtocolID, ParamToolName},
	CommandUpdateRule:    {ParamProtocolID, ParamRuleID},
	CommandDeprecateTool: {ParamProtocolID, ParamToolName},
	CommandPlaceholder:   {},
}

// Validate checks that the action is a known variant with its parameters.
func (a Action) Validate() error {
	var required []string
	switch a.Type {
	case ActionUpdateProtocol:
		req, ok := requiredParams[a.Command]
		if !ok {
			return fmt.Errorf("unknown UPDATE_PROTOCOL command %q", a.Command)
		}
		required = req
	case ActionProposeCodeChange:
		required = []string{ParamFilepath, ParamDiff}
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	for _, key := range required {
		if a.Parameters[key] == "" {
			return fmt.Errorf("%s action is missing parameter %q", a.Label(), key)
		}
	}
	return nil
}

// Label is the action's short name, e.g. "UPDATE_PROTOCOL/add-tool".
func (a Action) Label() string {
	if a.Command == "" {
		return string(a.Type)
	}
	return string(a.Type) + "/" + a.Command
}
