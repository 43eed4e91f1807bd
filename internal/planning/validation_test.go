package planning

import (
	"context"
	"testing"
)

// mockValidator is a simple test validator.
type mockValidator struct {
	name     string
	priority int
	errors   []ValidationError
	warnings []ValidationWarning
}

func (m *mockValidator) Name() string  { return m.name }
func (m *mockValidator) Priority() int { return m.priority }
func (m *mockValidator) Validate(ctx context.Context, plan *Plan, vctx *ValidationContext) ValidationResult {
	return ValidationResult{
		Errors:   m.errors,
		Warnings: m.warnings,
	}
}

func TestValidatorRegistry_Register(t *testing.T) {
	registry := NewValidatorRegistry()

	// Register validators in random order
	v3 := &mockValidator{name: "third", priority: 100}
	v1 := &mockValidator{name: "first", priority: 1}
	v2 := &mockValidator{name: "second", priority: 10}

	registry.Register(v3)
	registry.Register(v1)
	registry.Register(v2)

	if len(registry.validators) != 3 {
		t.Fatalf("expected 3 validators, got %d", len(registry.validators))
	}

	for i, want := range []string{"first", "second", "third"} {
		if got := registry.validators[i].Name(); got != want {
			t.Errorf("validator %d = %q, want %q", i, got, want)
		}
	}
}

func TestValidatorRegistry_ValidateAll(t *testing.T) {
	registry := NewValidatorRegistry()
	registry.Register(&mockValidator{
		name:     "v1",
		priority: 1,
		errors:   []ValidationError{{Code: "E1", Message: "first error"}},
	})
	registry.Register(&mockValidator{
		name:     "v2",
		priority: 2,
		errors:   []ValidationError{{Code: "E2", Message: "second error"}},
		warnings: []ValidationWarning{{Code: "W1", Message: "a warning"}},
	})

	result := registry.ValidateAll(context.Background(), &Plan{}, &ValidationContext{Model: "A"})

	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(result.Errors))
	}
	if result.Errors[0].Code != "E1" || result.Errors[1].Code != "E2" {
		t.Errorf("errors out of priority order: %+v", result.Errors)
	}
	if !result.HasWarnings() {
		t.Error("expected warnings")
	}
	if result.IsValid() {
		t.Error("result with errors must not be valid")
	}
}

func TestDefaultRegistry_EmptyPlanWarning(t *testing.T) {
	result := DefaultRegistry().ValidateAll(context.Background(), &Plan{}, &ValidationContext{Model: "B"})

	if !result.IsValid() {
		t.Fatalf("empty plan should be valid, got errors: %+v", result.Errors)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Code != "EMPTY_PLAN" {
		t.Errorf("expected EMPTY_PLAN warning, got %+v", result.Warnings)
	}
}

func TestValidationResult_Verdict(t *testing.T) {
	ok, msg := DefaultRegistry().ValidateAll(context.Background(), &Plan{}, &ValidationContext{Model: "b"}).Verdict("b")
	if !ok || msg != "Plan is valid for Model B." {
		t.Errorf("warnings must not reject: got %v %q", ok, msg)
	}

	plan := planOf(ToolDefineSetOfNames, ToolDefineDiagonalizationFunction)
	ok, msg = DefaultRegistry().ValidateAll(context.Background(), plan, &ValidationContext{Model: "A"}).Verdict("A")
	if ok || msg != "Validation Error: `define_diagonalization_function` is forbidden in Model A." {
		t.Errorf("expected the model rule as verdict, got %v %q", ok, msg)
	}
}
