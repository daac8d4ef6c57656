package substitute

import (
	"testing"

	"github.com/olereon/automaton/internal/models"
)

func newCtx(vars map[string]any) *models.ExecutionContext {
	ctx := models.NewExecutionContext()
	for k, v := range vars {
		ctx.SetVariable(k, v)
	}
	return ctx
}

func TestInSubstitutesKnownVariable(t *testing.T) {
	ctx := newCtx(map[string]any{"name": "gallery"})

	got := In("open ${name} view", ctx)
	want := "open gallery view"
	if got != want {
		t.Errorf("In() = %q, want %q", got, want)
	}
}

func TestInMultipleOccurrences(t *testing.T) {
	ctx := newCtx(map[string]any{"a": "1", "b": "2"})

	got := In("${a}-${b}-${a}", ctx)
	want := "1-2-1"
	if got != want {
		t.Errorf("In() = %q, want %q", got, want)
	}
}

func TestInMissingVariableBecomesEmpty(t *testing.T) {
	ctx := newCtx(nil)

	got := In("x=${missing}y", ctx)
	want := "x=y"
	if got != want {
		t.Errorf("In() = %q, want %q", got, want)
	}
}

func TestInNoPlaceholdersReturnsUnchanged(t *testing.T) {
	ctx := newCtx(nil)

	got := In("plain text", ctx)
	if got != "plain text" {
		t.Errorf("In() = %q, want unchanged string", got)
	}
}

func TestInUnterminatedPlaceholderEmittedVerbatim(t *testing.T) {
	ctx := newCtx(map[string]any{"a": "1"})

	got := In("value=${a", ctx)
	want := "value=${a"
	if got != want {
		t.Errorf("In() = %q, want %q", got, want)
	}
}

// TESTABLE PROPERTY 8: SUBSTITUTING TWICE MUST EQUAL SUBSTITUTING ONCE —
// THE REPLACEMENT TEXT OF ONE VARIABLE IS NEVER RE-SCANNED FOR `${...}`.
func TestInDoesNotReSubstituteReplacementText(t *testing.T) {
	ctx := newCtx(map[string]any{"tpl": "${inner}", "inner": "leaked"})

	got := In("${tpl}", ctx)
	want := "${inner}"
	if got != want {
		t.Errorf("In() = %q, want %q (replacement text must not be re-scanned)", got, want)
	}

	again := In(got, ctx)
	if again != In(got, ctx) {
		t.Errorf("substituting twice is not idempotent: %q != %q", again, In(got, ctx))
	}
}

func TestActionSubstitutesSelectorDescriptionAndNestedValue(t *testing.T) {
	ctx := newCtx(map[string]any{"sel": "#go", "label": "Go"})

	act := models.Action{
		Kind:        models.ClickButton,
		Selector:    "${sel}",
		Description: "click ${label}",
		Value: map[string]any{
			"force": true,
			"text":  "say ${label}",
			"nested": []any{"${sel}", 42},
		},
	}

	out := Action(act, ctx)

	if out.Selector != "#go" {
		t.Errorf("Selector = %q, want #go", out.Selector)
	}
	if out.Description != "click Go" {
		t.Errorf("Description = %q, want %q", out.Description, "click Go")
	}

	value := out.Value.(map[string]any)
	if value["text"] != "say Go" {
		t.Errorf("value.text = %v, want %q", value["text"], "say Go")
	}
	if value["force"] != true {
		t.Errorf("value.force = %v, want true (non-string fields untouched)", value["force"])
	}

	nested := value["nested"].([]any)
	if nested[0] != "#go" {
		t.Errorf("nested[0] = %v, want #go", nested[0])
	}
	if nested[1] != 42 {
		t.Errorf("nested[1] = %v, want 42 (non-string fields untouched)", nested[1])
	}
}
