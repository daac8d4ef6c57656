// Package substitute resolves ${identifier} placeholders in action string
// fields against the execution context's variable store (§4.5).
package substitute

import (
	"fmt"
	"strings"

	"github.com/olereon/automaton/internal/autolog"
	"github.com/olereon/automaton/internal/models"
)

// IN SCANS S FOR `${identifier}` OCCURRENCES AND REPLACES EACH WITH THE
// STRING FORM OF THE NAMED VARIABLE. A MISSING VARIABLE BECOMES THE EMPTY
// STRING AND IS LOGGED AT DEBUG. SUBSTITUTION IS SINGLE-PASS: THE REPLACEMENT
// TEXT IS NEVER RE-SCANNED FOR FURTHER `${...}` OCCURRENCES (TESTABLE
// PROPERTY 8 DEPENDS ON THIS — SUBSTITUTING TWICE MUST EQUAL SUBSTITUTING ONCE).
func In(s string, ctx *models.ExecutionContext) string {
	if !strings.Contains(s, "${") {
		return s
	}

	var b strings.Builder
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "${")
		if start == -1 {
			b.WriteString(s[i:])
			break
		}
		start += i
		b.WriteString(s[i:start])

		end := strings.Index(s[start:], "}")
		if end == -1 {
			// UNTERMINATED PLACEHOLDER: EMIT VERBATIM AND STOP.
			b.WriteString(s[start:])
			break
		}
		end += start

		name := s[start+2 : end]
		value, ok := ctx.GetVariable(name)
		if !ok {
			autolog.Default().Debug("variable substitution missed", map[string]any{"name": name})
			b.WriteString("")
		} else {
			b.WriteString(fmt.Sprintf("%v", value))
		}
		i = end + 1
	}
	return b.String()
}

// ACTION RETURNS A COPY OF ACT WITH `${...}` RESOLVED IN EVERY STRING FIELD
// (SELECTOR, DESCRIPTION, AND ANY STRING FOUND INSIDE VALUE).
func Action(act models.Action, ctx *models.ExecutionContext) models.Action {
	out := act
	out.Selector = In(act.Selector, ctx)
	out.Description = In(act.Description, ctx)
	out.Value = inValue(act.Value, ctx)
	return out
}

func inValue(v any, ctx *models.ExecutionContext) any {
	switch val := v.(type) {
	case string:
		return In(val, ctx)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			out[k] = inValue(nested, ctx)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for idx, nested := range val {
			out[idx] = inValue(nested, ctx)
		}
		return out
	default:
		return v
	}
}
