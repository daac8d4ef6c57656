// Package condition evaluates the restricted condition vocabulary IF_BEGIN,
// ELIF, WHILE_BEGIN, CONDITIONAL_WAIT, and SKIP_IF read from an action's
// value (§4.2, condition vocabulary). There is no general expression
// language: a condition is either a reference to the last CHECK_ELEMENT
// result, a named-variable comparison against a literal, or a restricted
// "var op literal" string.
package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olereon/automaton/internal/autoerr"
	"github.com/olereon/automaton/internal/models"
)

// KNOWN CONDITION "type" DISCRIMINATORS.
const (
	TypeCheckPassed = "check_passed"
	TypeCheckFailed = "check_failed"
	TypeEquals      = "equals"
	TypeNotEquals   = "not_equals"
	TypeGreater     = "greater"
	TypeLess        = "less"
	TypeExpr        = "expr"
)

// EVALUATE INTERPRETS value (AN ACTION'S condition FIELD) AGAINST ectx.
// ACCEPTS EITHER A STRING SHORTHAND ("check_passed", "check_failed", OR A
// RESTRICTED "var op literal" EXPRESSION) OR A map[string]any WITH A "type"
// KEY MATCHING ONE OF THE CONSTANTS ABOVE OR "contains".
func Evaluate(value any, ectx *models.ExecutionContext) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, autoerr.New(autoerr.KindInvalidCondition, "condition is empty")
	case string:
		return evaluateString(v, ectx)
	case map[string]any:
		return evaluateMap(v, ectx)
	default:
		return false, autoerr.New(autoerr.KindInvalidCondition, fmt.Sprintf("unsupported condition shape %T", value))
	}
}

func evaluateString(s string, ectx *models.ExecutionContext) (bool, error) {
	switch strings.TrimSpace(s) {
	case TypeCheckPassed:
		return ectx.LastCheck.Success, nil
	case TypeCheckFailed:
		return !ectx.LastCheck.Success, nil
	}
	return evaluateExpr(s, ectx)
}

func evaluateMap(m map[string]any, ectx *models.ExecutionContext) (bool, error) {
	kind, _ := m["type"].(string)
	switch kind {
	case TypeCheckPassed:
		return ectx.LastCheck.Success, nil
	case TypeCheckFailed:
		return !ectx.LastCheck.Success, nil
	case TypeEquals, TypeNotEquals, TypeGreater, TypeLess, "contains":
		name, _ := m["name"].(string)
		literal := m["literal"]
		return compareNamed(kind, name, literal, ectx)
	case TypeExpr:
		expr, _ := m["expr"].(string)
		return evaluateExpr(expr, ectx)
	default:
		return false, autoerr.New(autoerr.KindInvalidCondition, fmt.Sprintf("unknown condition type %q", kind))
	}
}

// EVALUATEEXPR PARSES THE RESTRICTED "var op literal" FORM — A SINGLE
// COMPARISON, NO BOOLEAN COMBINATORS (§4.2: "NO ARBITRARY EXPRESSION
// LANGUAGE").
func evaluateExpr(expr string, ectx *models.ExecutionContext) (bool, error) {
	for _, op := range []string{"==", "!=", ">=", "<=", ">", "<", "contains"} {
		idx := strings.Index(expr, " "+op+" ")
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(expr[:idx])
		literal := strings.TrimSpace(expr[idx+len(op)+2:])
		return compareNamed(opToType(op), name, literal, ectx)
	}
	return false, autoerr.New(autoerr.KindInvalidCondition, fmt.Sprintf("unparseable condition expression %q", expr))
}

func opToType(op string) string {
	switch op {
	case "==":
		return TypeEquals
	case "!=":
		return TypeNotEquals
	case ">", ">=":
		return TypeGreater
	case "<", "<=":
		return TypeLess
	case "contains":
		return "contains"
	}
	return TypeExpr
}

// COMPARENAMED COMPARES variables[name] AGAINST literal. NUMERIC COMPARISON
// IS ATTEMPTED FIRST FOR greater/less; EVERYTHING ELSE FALLS BACK TO LEXICAL
// COMPARISON (§4.2: "LEXICAL FOR NON-NUMERIC").
func compareNamed(kind, name string, literal any, ectx *models.ExecutionContext) (bool, error) {
	actual, ok := ectx.GetVariable(name)
	if !ok {
		actual = ""
	}

	switch kind {
	case TypeEquals:
		return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", literal), nil
	case TypeNotEquals:
		return fmt.Sprintf("%v", actual) != fmt.Sprintf("%v", literal), nil
	case "contains":
		return strings.Contains(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", literal)), nil
	case TypeGreater, TypeLess:
		af, aErr := toFloat(actual)
		lf, lErr := toFloat(literal)
		if aErr == nil && lErr == nil {
			if kind == TypeGreater {
				return af > lf, nil
			}
			return af < lf, nil
		}
		as, ls := fmt.Sprintf("%v", actual), fmt.Sprintf("%v", literal)
		if kind == TypeGreater {
			return as > ls, nil
		}
		return as < ls, nil
	default:
		return false, autoerr.New(autoerr.KindInvalidCondition, fmt.Sprintf("unknown comparison %q", kind))
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("not numeric")
	}
}
