// Package registry implements the Action Registry & Dispatcher: one Handler
// per models.ActionKind, each exposing the teacher's GetInputSchema /
// ValidateConfig / Execute trio (internal/scraper/tasks.go in the teacher),
// generalized to run against the browser.Driver facade and
// models.ExecutionContext instead of playwright-go and a job resource
// manager.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/olereon/automaton/internal/browser"
	"github.com/olereon/automaton/internal/models"
)

// COMMON VALIDATION ERRORS, MIRRORING THE TEACHER'S SENTINEL-ERROR STYLE.
var (
	ErrMissingRequiredInput = errors.New("missing required input")
	ErrInvalidSelector      = errors.New("invalid selector")
	ErrInvalidValue         = errors.New("invalid value shape")
	ErrUnknownActionKind    = errors.New("unknown action kind")
)

// HANDLER IS IMPLEMENTED ONCE PER ACTION KIND.
type Handler interface {
	// INPUTSCHEMA DESCRIBES THE EXPECTED value SHAPE, SURFACED BY THE
	// `list-actions` CLI COMMAND. KEYS ARE FIELD NAMES, VALUES ARE A SHORT
	// TYPE HINT (E.G. "string", "bool", "int", "object").
	InputSchema() map[string]string

	// VALIDATE CHECKS a's SHAPE AT LOAD TIME, BEFORE ANY BROWSER EXISTS.
	Validate(a models.Action) error

	// EXECUTE RUNS THE ACTION. IMPLEMENTATIONS MAY MUTATE ectx (VARIABLES,
	// LASTCHECK, BLOCKSTACK, INSTRUCTIONPOINTER, SHOULDINCREMENT) AND MUST
	// LEAVE ShouldIncrement=true UNLESS THEY TOOK OWNERSHIP OF THE JUMP.
	Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error
}

var handlers = make(map[models.ActionKind]Handler)

// REGISTER BINDS kind TO h. CALLED FROM init() IN EACH HANDLER FILE SO THE
// REGISTRY IS FULLY POPULATED BY THE TIME ANY PACKAGE IMPORTS registry.
func Register(kind models.ActionKind, h Handler) {
	handlers[kind] = h
}

// LOOKUP RETURNS THE HANDLER FOR kind, IF ANY.
func Lookup(kind models.ActionKind) (Handler, bool) {
	h, ok := handlers[kind]
	return h, ok
}

// VALIDATEALL RUNS EVERY ACTION'S Validate METHOD, USED BY THE LOADER AND BY
// `automaton validate`. RETURNS THE FIRST ErrUnknownActionKind OR SHAPE ERROR
// ENCOUNTERED, ANNOTATED WITH ITS ACTION INDEX.
func ValidateAll(actions []models.Action) error {
	for i, a := range actions {
		h, ok := Lookup(a.Kind)
		if !ok {
			return fmt.Errorf("action %d (%s): %w", i, a.Kind, ErrUnknownActionKind)
		}
		if err := h.Validate(a); err != nil {
			return fmt.Errorf("action %d (%s): %w", i, a.Kind, err)
		}
	}
	return nil
}

// SCHEMAS RETURNS EVERY REGISTERED KIND'S INPUT SCHEMA, USED BY THE
// `list-actions` CLI COMMAND.
func Schemas() map[models.ActionKind]map[string]string {
	out := make(map[models.ActionKind]map[string]string, len(handlers))
	for k, h := range handlers {
		out[k] = h.InputSchema()
	}
	return out
}

// ASMAP IS A SMALL HELPER HANDLERS USE TO COERCE value INTO A MAP, RETURNING
// ErrInvalidValue OTHERWISE.
func asMap(v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrInvalidValue
	}
	return m, nil
}

func stringField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
