package planning

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Validator is the interface for pluggable plan validation.
type Validator interface {
	// Name returns a unique identifier for this validator.
	Name() string

	// Priority determines execution order (lower values run first).
	Priority() int

	// Validate checks the whole plan and returns any errors or warnings found.
	Validate(ctx context.Context, plan *Plan, vctx *ValidationContext) ValidationResult
}

// ValidationContext carries the settings a plan is validated under.
type ValidationContext struct {
	// Model is the plan model tag ("A" or "B", case-insensitive).
	Model string
}

// ValidationResult contains errors and warnings from validation.
type ValidationResult struct {
	// Errors are blocking issues; a plan with errors must not run.
	Errors []ValidationError

	// Warnings are advisory.
	Warnings []ValidationWarning
}

// ValidationError represents a blocking validation failure.
type ValidationError struct {
	// Code is a machine-readable error identifier (e.g., "FORBIDDEN_TOOL").
	Code string

	// Message is a human-readable error description.
	Message string

	// Location indicates where in the plan the error occurs (e.g., "step-3", "plan").
	Location string

	// Details provides additional context as key-value pairs.
	Details map[string]interface{}
}

// ValidationWarning represents an advisory finding that doesn't block execution.
type ValidationWarning struct {
	Code     string
	Message  string
	Location string
}

// ValidatorRegistry manages a collection of validators and orchestrates validation.
type ValidatorRegistry struct {
	validators []Validator
}

// NewValidatorRegistry creates a new empty registry.
func NewValidatorRegistry() *ValidatorRegistry {
	return &ValidatorRegistry{
		validators: make([]Validator, 0),
	}
}

// DefaultRegistry returns a registry holding the built-in validators.
func DefaultRegistry() *ValidatorRegistry {
	r := NewValidatorRegistry()
	r.Register(&LBAValidator{})
	r.Register(&EmptyPlanValidator{})
	return r
}

// Register adds a validator to the registry.
// Validators are automatically sorted by priority after registration.
func (r *ValidatorRegistry) Register(v Validator) {
	r.validators = append(r.validators, v)
	sort.SliceStable(r.validators, func(i, j int) bool {
		return r.validators[i].Priority() < r.validators[j].Priority()
	})
}

// ValidateAll runs all registered validators against the plan.
// Validators run in priority order (lowest first).
// All validators run even if earlier ones fail (collect all issues).
func (r *ValidatorRegistry) ValidateAll(ctx context.Context, plan *Plan, vctx *ValidationContext) ValidationResult {
	result := ValidationResult{
		Errors:   make([]ValidationError, 0),
		Warnings: make([]ValidationWarning, 0),
	}

	for _, v := range r.validators {
		vr := v.Validate(ctx, plan, vctx)
		result.Errors = append(result.Errors, vr.Errors...)
		result.Warnings = append(result.Warnings, vr.Warnings...)
	}

	return result
}

// HasErrors returns true if the validation result contains any errors.
func (r ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if the validation result contains any warnings.
func (r ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// IsValid returns true if there are no errors (warnings are acceptable).
func (r ValidationResult) IsValid() bool {
	return !r.HasErrors()
}

// Verdict reduces the result to a pass/fail message for model. A rejection
// carries the first error's message; warnings never reject.
func (r ValidationResult) Verdict(model string) (bool, string) {
	if r.HasErrors() {
		return false, r.Errors[0].Message
	}
	return true, fmt.Sprintf("Plan is valid for Model %s.", strings.ToUpper(strings.TrimSpace(model)))
}

// EmptyPlanValidator warns when a plan has no commands.
type EmptyPlanValidator struct{}

// Name returns the validator identifier.
func (v *EmptyPlanValidator) Name() string { return "empty_plan" }

// Priority returns 50.
func (v *EmptyPlanValidator) Priority() int { return 50 }

// Validate warns on an empty plan.
func (v *EmptyPlanValidator) Validate(ctx context.Context, plan *Plan, vctx *ValidationContext) ValidationResult {
	result := ValidationResult{}
	if len(plan.Commands) == 0 {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Code:     "EMPTY_PLAN",
			Message:  "Plan contains no commands",
			Location: "plan",
		})
	}
	return result
}
