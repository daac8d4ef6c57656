package registry

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olereon/automaton/internal/autolog"
	"github.com/olereon/automaton/internal/browser"
	"github.com/olereon/automaton/internal/models"
)

func init() {
	Register(models.SetVariable, setVariableHandler{})
	Register(models.IncrementVariable, incrementVariableHandler{})
	Register(models.LogMessage, logMessageHandler{})
}

// SET_VARIABLE(value:{name,value})

type setVariableHandler struct{}

func (setVariableHandler) InputSchema() map[string]string {
	return map[string]string{"value.name": "string", "value.value": "string|number"}
}

func (setVariableHandler) Validate(a models.Action) error {
	m, err := asMap(a.Value)
	if err != nil {
		return err
	}
	if name, ok := stringField(m, "name"); !ok || name == "" {
		return fmt.Errorf("%w: value.name is required", ErrMissingRequiredInput)
	}
	return nil
}

func (setVariableHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	m, _ := asMap(a.Value)
	name, _ := stringField(m, "name")
	ectx.SetVariable(name, m["value"])
	return nil
}

// INCREMENT_VARIABLE(value:{name,increment})

type incrementVariableHandler struct{}

func (incrementVariableHandler) InputSchema() map[string]string {
	return map[string]string{"value.name": "string", "value.increment": "number"}
}

func (incrementVariableHandler) Validate(a models.Action) error {
	m, err := asMap(a.Value)
	if err != nil {
		return err
	}
	if name, ok := stringField(m, "name"); !ok || name == "" {
		return fmt.Errorf("%w: value.name is required", ErrMissingRequiredInput)
	}
	return nil
}

func (incrementVariableHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	m, _ := asMap(a.Value)
	name, _ := stringField(m, "name")
	inc := toFloat(m["increment"])

	current, _ := ectx.GetVariable(name)
	ectx.SetVariable(name, toFloat(current)+inc)
	return nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f
	default:
		return 0
	}
}

// LOG_MESSAGE(value:{text, logFile?, level?})

type logMessageHandler struct{}

func (logMessageHandler) InputSchema() map[string]string {
	return map[string]string{
		"value.text":     "string",
		"value.logFile":  "string (optional)",
		"value.level":    "debug|info|warn|error (optional, default info)",
	}
}

func (logMessageHandler) Validate(a models.Action) error {
	m, err := asMap(a.Value)
	if err != nil {
		return err
	}
	if text, ok := stringField(m, "text"); !ok || text == "" {
		return fmt.Errorf("%w: value.text is required", ErrMissingRequiredInput)
	}
	return nil
}

func (logMessageHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	m, _ := asMap(a.Value)
	text, _ := stringField(m, "text")
	level, _ := stringField(m, "level")

	logger := autolog.Default()
	switch strings.ToLower(level) {
	case "debug":
		logger.Debug(text, nil)
	case "warn", "warning":
		logger.Warn(text, nil)
	case "error":
		logger.Error(text, nil)
	default:
		logger.Info(text, nil)
	}

	if logFile, ok := stringField(m, "logFile"); ok && logFile != "" {
		appendLine(logFile, fmt.Sprintf("[%s] %s", time.Now().Format(time.RFC3339), text))
	}
	return nil
}

func appendLine(path, line string) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		autolog.Default().Warn("could not append to log file", map[string]any{"path": path, "error": err.Error()})
		return
	}
	defer f.Close()
	fmt.Fprintln(f, line)
}
