package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/olereon/automaton/internal/browser"
	"github.com/olereon/automaton/internal/models"
)

func init() {
	Register(models.ClickButton, clickButtonHandler{})
	Register(models.InputText, inputTextHandler{})
	Register(models.ToggleSetting, toggleSettingHandler{})
	Register(models.UploadImage, uploadImageHandler{})
	Register(models.DownloadFile, downloadFileHandler{})
}

// CLICK_BUTTON(selector). value MAY OPTIONALLY CARRY {"force": true} TO
// REQUEST A JS-DISPATCHED CLICK WHEN A NATIVE CLICK WOULD BE INTERCEPTED.

type clickButtonHandler struct{}

func (clickButtonHandler) InputSchema() map[string]string {
	return map[string]string{"selector": "string (css)", "value.force": "bool (optional)"}
}

func (clickButtonHandler) Validate(a models.Action) error {
	if a.Selector == "" {
		return fmt.Errorf("%w: selector is required", ErrInvalidSelector)
	}
	return nil
}

func (clickButtonHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	cctx, cancel := browser.EffectiveContext(ctx, a.EffectiveTimeout())
	defer cancel()
	force := false
	if m, ok := a.Value.(map[string]any); ok {
		if f, ok := m["force"].(bool); ok {
			force = f
		}
	}
	return drv.Click(cctx, a.Selector, force)
}

// INPUT_TEXT(selector, value:string)

type inputTextHandler struct{}

func (inputTextHandler) InputSchema() map[string]string {
	return map[string]string{"selector": "string (css)", "value": "string"}
}

func (inputTextHandler) Validate(a models.Action) error {
	if a.Selector == "" {
		return fmt.Errorf("%w: selector is required", ErrInvalidSelector)
	}
	if _, ok := a.Value.(string); !ok {
		return fmt.Errorf("%w: value must be a string", ErrInvalidValue)
	}
	return nil
}

func (inputTextHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	cctx, cancel := browser.EffectiveContext(ctx, a.EffectiveTimeout())
	defer cancel()
	return drv.Fill(cctx, a.Selector, a.Value.(string))
}

// TOGGLE_SETTING(selector, value:bool) — CLICKS ONLY IF THE CURRENT STATE
// DISAGREES WITH THE REQUESTED ONE, READ VIA THE "checked" DOM PROPERTY.

type toggleSettingHandler struct{}

func (toggleSettingHandler) InputSchema() map[string]string {
	return map[string]string{"selector": "string (css)", "value": "bool"}
}

func (toggleSettingHandler) Validate(a models.Action) error {
	if a.Selector == "" {
		return fmt.Errorf("%w: selector is required", ErrInvalidSelector)
	}
	if _, ok := a.Value.(bool); !ok {
		return fmt.Errorf("%w: value must be a bool", ErrInvalidValue)
	}
	return nil
}

func (toggleSettingHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	cctx, cancel := browser.EffectiveContext(ctx, a.EffectiveTimeout())
	defer cancel()
	want := a.Value.(bool)
	script := fmt.Sprintf(`(function(){var e=document.querySelector(%s);return !!(e&&e.checked);})()`, strconv.Quote(a.Selector))
	var have bool
	if err := drv.Evaluate(cctx, script, &have); err != nil {
		return err
	}
	if have != want {
		return drv.Click(cctx, a.Selector, false)
	}
	return nil
}

// UPLOAD_IMAGE(selector, value:path)

type uploadImageHandler struct{}

func (uploadImageHandler) InputSchema() map[string]string {
	return map[string]string{"selector": "string (css)", "value": "string (absolute path)"}
}

func (uploadImageHandler) Validate(a models.Action) error {
	if a.Selector == "" {
		return fmt.Errorf("%w: selector is required", ErrInvalidSelector)
	}
	path, ok := a.Value.(string)
	if !ok || path == "" {
		return fmt.Errorf("%w: value must be a non-empty path", ErrMissingRequiredInput)
	}
	return nil
}

func (uploadImageHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	cctx, cancel := browser.EffectiveContext(ctx, a.EffectiveTimeout())
	defer cancel()
	path := a.Value.(string)
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err == nil {
			path = abs
		}
	}
	return drv.Upload(cctx, a.Selector, path)
}

// DOWNLOAD_FILE(selector, value:{download_dir, filename}) — CLICKING
// selector TRIGGERS THE DOWNLOAD; THE FACADE CAPTURES IT AND MOVES THE FILE
// INTO download_dir, OPTIONALLY RENAMED TO filename.

type downloadFileHandler struct{}

func (downloadFileHandler) InputSchema() map[string]string {
	return map[string]string{
		"selector":        "string (css)",
		"value.download_dir": "string",
		"value.filename":     "string (optional)",
	}
}

func (downloadFileHandler) Validate(a models.Action) error {
	if a.Selector == "" {
		return fmt.Errorf("%w: selector is required", ErrInvalidSelector)
	}
	m, err := asMap(a.Value)
	if err != nil {
		return err
	}
	if dir, ok := stringField(m, "download_dir"); !ok || dir == "" {
		return fmt.Errorf("%w: value.download_dir is required", ErrMissingRequiredInput)
	}
	return nil
}

func (downloadFileHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	cctx, cancel := browser.EffectiveContext(ctx, a.EffectiveTimeout())
	defer cancel()
	m, _ := asMap(a.Value)
	dir, _ := stringField(m, "download_dir")

	result, err := drv.DownloadNext(cctx, func(triggerCtx context.Context) error {
		return drv.Click(triggerCtx, a.Selector, false)
	}, dir)
	if err != nil {
		return err
	}

	finalPath := result.Path
	if filename, ok := stringField(m, "filename"); ok && filename != "" {
		renamed := filepath.Join(dir, filename)
		if err := os.Rename(result.Path, renamed); err == nil {
			finalPath = renamed
		}
	}
	ectx.SetVariable("_last_download_path", finalPath)
	return nil
}
