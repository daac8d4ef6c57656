package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olereon/automaton/internal/autoerr"
	"github.com/olereon/automaton/internal/browser"
	"github.com/olereon/automaton/internal/models"
)

func init() {
	Register(models.CheckElement, checkElementHandler{})
}

// CHECK_ELEMENT(selector, value:{check, value, attribute}) — WRITES
// ExecutionContext.LastCheck AND NEVER FAILS ON ABSENCE (§4.6).

type checkElementHandler struct{}

func (checkElementHandler) InputSchema() map[string]string {
	return map[string]string{
		"selector":        "string (css)",
		"value.check":     "equals|not_equals|greater|less|contains|not_zero",
		"value.value":     "string|number (expected literal)",
		"value.attribute": "text|value|<attr-name>",
	}
}

func (checkElementHandler) Validate(a models.Action) error {
	if a.Selector == "" {
		return fmt.Errorf("%w: selector is required", ErrInvalidSelector)
	}
	m, err := asMap(a.Value)
	if err != nil {
		return err
	}
	check, ok := stringField(m, "check")
	if !ok {
		return fmt.Errorf("%w: value.check is required", ErrMissingRequiredInput)
	}
	switch check {
	case "equals", "not_equals", "greater", "less", "contains", "not_zero":
	default:
		return fmt.Errorf("%w: unknown check operator %q", ErrInvalidValue, check)
	}
	return nil
}

func (checkElementHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	cctx, cancel := browser.EffectiveContext(ctx, a.EffectiveTimeout())
	defer cancel()
	m, _ := asMap(a.Value)
	check, _ := stringField(m, "check")
	attribute, _ := stringField(m, "attribute")
	if attribute == "" {
		attribute = "text"
	}
	literal := m["value"]

	read, found, err := readAttribute(cctx, drv, a.Selector, attribute)
	if err != nil {
		var ae *autoerr.Error
		if errors.As(err, &ae) && ae.Kind == autoerr.KindElementNotFound {
			ectx.LastCheck = models.LastCheck{Success: false, Selector: a.Selector, AttributeRead: attribute, EvaluatedAt: now()}
			return nil
		}
		return err
	}
	if !found {
		ectx.LastCheck = models.LastCheck{Success: false, Selector: a.Selector, AttributeRead: attribute, EvaluatedAt: now()}
		return nil
	}

	success := evaluateCheck(check, read, literal)
	ectx.LastCheck = models.LastCheck{
		Success:       success,
		Value:         read,
		AttributeRead: attribute,
		Selector:      a.Selector,
		EvaluatedAt:   now(),
	}
	return nil
}

// READATTRIBUTE DISPATCHES attribute TO THE RIGHT FACADE CALL: "text" READS
// innerText, "value" READS THE value DOM PROPERTY, ANYTHING ELSE IS A RAW
// getAttribute(name) (§4.6).
func readAttribute(ctx context.Context, drv browser.Driver, selector, attribute string) (string, bool, error) {
	switch attribute {
	case "text":
		v, err := drv.TextContent(ctx, selector)
		if err != nil {
			return "", false, err
		}
		return v, true, nil
	case "value":
		return drv.Attribute(ctx, selector, "value")
	default:
		return drv.Attribute(ctx, selector, attribute)
	}
}

// EVALUATECHECK APPLIES THE FIXED CHECK_ELEMENT OPERATOR SET. greater/less/
// not_zero COERCE TO NUMBER; EQUALS/NOT_EQUALS/CONTAINS COMPARE AS STRINGS
// (§4.6).
func evaluateCheck(check, actual string, literal any) bool {
	litStr := fmt.Sprintf("%v", literal)
	switch check {
	case "equals":
		return actual == litStr
	case "not_equals":
		return actual != litStr
	case "contains":
		return strings.Contains(actual, litStr)
	case "not_zero":
		n, err := strconv.ParseFloat(strings.TrimSpace(actual), 64)
		return err == nil && n != 0
	case "greater", "less":
		an, aErr := strconv.ParseFloat(strings.TrimSpace(actual), 64)
		ln, lErr := strconv.ParseFloat(strings.TrimSpace(litStr), 64)
		if aErr != nil || lErr != nil {
			if check == "greater" {
				return actual > litStr
			}
			return actual < litStr
		}
		if check == "greater" {
			return an > ln
		}
		return an < ln
	default:
		return false
	}
}

func now() time.Time { return time.Now() }
