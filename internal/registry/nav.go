package registry

import (
	"context"
	"fmt"

	"github.com/olereon/automaton/internal/browser"
	"github.com/olereon/automaton/internal/models"
)

func init() {
	Register(models.NavigateTo, navigateToHandler{})
	Register(models.RefreshPage, refreshPageHandler{})
	Register(models.SwitchPanel, switchPanelHandler{})
	Register(models.ExpandDialog, expandDialogHandler{})
}

// NAVIGATE_TO(value=url)

type navigateToHandler struct{}

func (navigateToHandler) InputSchema() map[string]string {
	return map[string]string{"value": "string (url)"}
}

func (navigateToHandler) Validate(a models.Action) error {
	url, ok := a.Value.(string)
	if !ok || url == "" {
		return fmt.Errorf("%w: value must be a non-empty url string", ErrMissingRequiredInput)
	}
	return nil
}

func (navigateToHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	cctx, cancel := browser.EffectiveContext(ctx, a.EffectiveTimeout())
	defer cancel()
	return drv.Navigate(cctx, a.Value.(string))
}

// REFRESH_PAGE — NO VALUE, NAVIGATES BACK TO THE SAME URL IMPLICITLY VIA
// evaluate(location.reload()).

type refreshPageHandler struct{}

func (refreshPageHandler) InputSchema() map[string]string { return map[string]string{} }
func (refreshPageHandler) Validate(models.Action) error   { return nil }

func (refreshPageHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	cctx, cancel := browser.EffectiveContext(ctx, a.EffectiveTimeout())
	defer cancel()
	var discard any
	return drv.Evaluate(cctx, "location.reload()", &discard)
}

// SWITCH_PANEL(selector) — CLICK THE TAB/PANEL SELECTOR.

type switchPanelHandler struct{}

func (switchPanelHandler) InputSchema() map[string]string {
	return map[string]string{"selector": "string (css)"}
}

func (switchPanelHandler) Validate(a models.Action) error {
	if a.Selector == "" {
		return fmt.Errorf("%w: selector is required", ErrInvalidSelector)
	}
	return nil
}

func (switchPanelHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	cctx, cancel := browser.EffectiveContext(ctx, a.EffectiveTimeout())
	defer cancel()
	return drv.Click(cctx, a.Selector, false)
}

// EXPAND_DIALOG(selector) — CLICK TO OPEN, THEN WAIT FOR IT TO BECOME VISIBLE.

type expandDialogHandler struct{}

func (expandDialogHandler) InputSchema() map[string]string {
	return map[string]string{"selector": "string (css)"}
}

func (expandDialogHandler) Validate(a models.Action) error {
	if a.Selector == "" {
		return fmt.Errorf("%w: selector is required", ErrInvalidSelector)
	}
	return nil
}

func (expandDialogHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	cctx, cancel := browser.EffectiveContext(ctx, a.EffectiveTimeout())
	defer cancel()
	if err := drv.Click(cctx, a.Selector, false); err != nil {
		return err
	}
	return drv.WaitForSelector(cctx, a.Selector, browser.StateVisible)
}
