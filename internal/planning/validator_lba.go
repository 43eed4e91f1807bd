package planning

import (
	"context"
	"fmt"
	"strings"
)

// Tool names constrained by the plan models.
const (
	ToolDefineSetOfNames              = "define_set_of_names"
	ToolDefineDiagonalizationFunction = "define_diagonalization_function"
)

// Plan models.
const (
	ModelA = "A"
	ModelB = "B"
)

// LBAValidator enforces the whole-plan co-occurrence rules that separate Model A
// from Model B. The rules depend on the entire command sequence, so the
// validator always inspects the full parsed plan.
//
//   - Model A forbids define_diagonalization_function.
//   - Model B forbids define_set_of_names.
//   - In any model, the two tools may not appear in the same plan.
type LBAValidator struct{}

// Name returns the validator identifier.
func (v *LBAValidator) Name() string {
	return "lba_model"
}

// Priority returns 1 (structural check, runs first).
func (v *LBAValidator) Priority() int {
	return 1
}

// Validate applies the model rules. Model-specific rules are reported before the
// co-occurrence rule so a plan breaking both names the model rule first.
func (v *LBAValidator) Validate(ctx context.Context, plan *Plan, vctx *ValidationContext) ValidationResult {
	result := ValidationResult{}

	tag := ""
	if vctx != nil {
		tag = vctx.Model
	}
	model := strings.ToUpper(strings.TrimSpace(tag))

	var forbidden string
	switch model {
	case ModelA:
		forbidden = ToolDefineDiagonalizationFunction
	case ModelB:
		forbidden = ToolDefineSetOfNames
	default:
		result.Errors = append(result.Errors, ValidationError{
			Code:     "UNKNOWN_MODEL",
			Message:  fmt.Sprintf("Validation Error: unknown model '%s'.", tag),
			Location: "plan",
			Details:  map[string]interface{}{"model": tag},
		})
		return result
	}

	for i, c := range plan.Commands {
		if c.ToolName == forbidden {
			result.Errors = append(result.Errors, ValidationError{
				Code:     "FORBIDDEN_TOOL",
				Message:  fmt.Sprintf("Validation Error: `%s` is forbidden in Model %s.", forbidden, model),
				Location: fmt.Sprintf("step-%d", i+1),
				Details:  map[string]interface{}{"model": model, "tool": forbidden},
			})
			break
		}
	}

	if plan.Contains(ToolDefineSetOfNames) && plan.Contains(ToolDefineDiagonalizationFunction) {
		result.Errors = append(result.Errors, ValidationError{
			Code: "FORBIDDEN_COOCCURRENCE",
			Message: fmt.Sprintf("Validation Error: `%s` and `%s` cannot co-occur in one plan.",
				ToolDefineSetOfNames, ToolDefineDiagonalizationFunction),
			Location: "plan",
			Details: map[string]interface{}{
				"tools": []string{ToolDefineSetOfNames, ToolDefineDiagonalizationFunction},
			},
		})
	}

	return result
}

// ValidateModel checks plan against the given model and returns whether it is
// valid together with a message. On rejection the message names the first rule
// that triggered.
func ValidateModel(plan *Plan, model string) (bool, string) {
	result := (&LBAValidator{}).Validate(context.Background(), plan, &ValidationContext{Model: model})
	return result.Verdict(model)
}
