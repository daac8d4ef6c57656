package condition

import (
	"testing"

	"github.com/olereon/automaton/internal/models"
)

func ctxWithVars(vars map[string]any) *models.ExecutionContext {
	ctx := models.NewExecutionContext()
	for k, v := range vars {
		ctx.SetVariable(k, v)
	}
	return ctx
}

func TestEvaluateCheckPassedFailed(t *testing.T) {
	ctx := models.NewExecutionContext()
	ctx.LastCheck = models.LastCheck{Success: true}

	got, err := Evaluate(TypeCheckPassed, ctx)
	if err != nil || !got {
		t.Errorf("check_passed = %v, %v; want true, nil", got, err)
	}

	got, err = Evaluate(TypeCheckFailed, ctx)
	if err != nil || got {
		t.Errorf("check_failed = %v, %v; want false, nil", got, err)
	}
}

func TestEvaluateMapComparisons(t *testing.T) {
	ctx := ctxWithVars(map[string]any{"count": 5})

	cases := []struct {
		kind    string
		literal any
		want    bool
	}{
		{TypeEquals, 5, true},
		{TypeEquals, 6, false},
		{TypeNotEquals, 6, true},
		{TypeGreater, 3, true},
		{TypeGreater, 10, false},
		{TypeLess, 10, true},
		{TypeLess, 3, false},
	}

	for _, c := range cases {
		got, err := Evaluate(map[string]any{"type": c.kind, "name": "count", "literal": c.literal}, ctx)
		if err != nil {
			t.Fatalf("Evaluate(%s) error = %v", c.kind, err)
		}
		if got != c.want {
			t.Errorf("Evaluate(%s, count=5, literal=%v) = %v, want %v", c.kind, c.literal, got, c.want)
		}
	}
}

func TestEvaluateContains(t *testing.T) {
	ctx := ctxWithVars(map[string]any{"title": "the quick fox"})

	got, err := Evaluate(map[string]any{"type": "contains", "name": "title", "literal": "quick"}, ctx)
	if err != nil || !got {
		t.Errorf("contains = %v, %v; want true, nil", got, err)
	}
}

func TestEvaluateLexicalFallbackForNonNumeric(t *testing.T) {
	ctx := ctxWithVars(map[string]any{"name": "banana"})

	got, err := Evaluate(map[string]any{"type": TypeGreater, "name": "name", "literal": "apple"}, ctx)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !got {
		t.Errorf("lexical greater: \"banana\" > \"apple\" = %v, want true", got)
	}
}

func TestEvaluateExprShorthand(t *testing.T) {
	ctx := ctxWithVars(map[string]any{"retries": 3})

	cases := map[string]bool{
		"retries == 3": true,
		"retries != 3": false,
		"retries > 1":  true,
		"retries < 1":  false,
	}

	for expr, want := range cases {
		got, err := Evaluate(expr, ctx)
		if err != nil {
			t.Fatalf("Evaluate(%q) error = %v", expr, err)
		}
		if got != want {
			t.Errorf("Evaluate(%q) = %v, want %v", expr, got, want)
		}
	}
}

func TestEvaluateExprContains(t *testing.T) {
	ctx := ctxWithVars(map[string]any{"status": "queued for download"})

	got, err := Evaluate("status contains download", ctx)
	if err != nil || !got {
		t.Errorf("expr contains = %v, %v; want true, nil", got, err)
	}
}

func TestEvaluateRejectsNilCondition(t *testing.T) {
	_, err := Evaluate(nil, models.NewExecutionContext())
	if err == nil {
		t.Fatal("expected error for nil condition, got nil")
	}
}

func TestEvaluateRejectsUnparseableExpr(t *testing.T) {
	_, err := Evaluate("this is not an expression", models.NewExecutionContext())
	if err == nil {
		t.Fatal("expected error for unparseable expression, got nil")
	}
}

func TestEvaluateMissingVariableComparesAsEmpty(t *testing.T) {
	ctx := models.NewExecutionContext()

	got, err := Evaluate(map[string]any{"type": TypeEquals, "name": "missing", "literal": ""}, ctx)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !got {
		t.Errorf("missing variable should compare equal to empty literal, got %v", got)
	}
}
