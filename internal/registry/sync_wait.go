package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/olereon/automaton/internal/browser"
	"github.com/olereon/automaton/internal/models"
)

func init() {
	Register(models.Wait, waitHandler{})
	Register(models.WaitForElement, waitForElementHandler{})
}

// WAIT(value:ms) — A PLAIN SLEEP, CANCELLABLE BY THE RUN'S CONTEXT.

type waitHandler struct{}

func (waitHandler) InputSchema() map[string]string {
	return map[string]string{"value": "int (milliseconds)"}
}

func (waitHandler) Validate(a models.Action) error {
	if ms, ok := asMs(a.Value); !ok || ms < 0 {
		return fmt.Errorf("%w: value must be a non-negative millisecond count", ErrInvalidValue)
	}
	return nil
}

func (waitHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	ms, _ := asMs(a.Value)
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func asMs(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// WAIT_FOR_ELEMENT(selector, timeout) — BLOCKS UNTIL selector IS VISIBLE OR
// THE EFFECTIVE TIMEOUT ELAPSES, THEN FAILS WITH ErrorKind.Timeout (§4.6:
// "ONLY AFTER THEIR OWN TIMEOUT ELAPSES").

type waitForElementHandler struct{}

func (waitForElementHandler) InputSchema() map[string]string {
	return map[string]string{"selector": "string (css)", "timeoutMs": "int (optional)"}
}

func (waitForElementHandler) Validate(a models.Action) error {
	if a.Selector == "" {
		return fmt.Errorf("%w: selector is required", ErrInvalidSelector)
	}
	return nil
}

func (waitForElementHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	cctx, cancel := browser.EffectiveContext(ctx, a.EffectiveTimeout())
	defer cancel()
	return drv.WaitForSelector(cctx, a.Selector, browser.StateVisible)
}
