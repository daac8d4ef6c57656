// Package interpreter implements the Action Interpreter main loop (§4.4):
// resolve, substitute, dispatch, and the STOP_AUTOMATION / TRY-CATCH /
// continue_on_error propagation rules of §7.
package interpreter

import (
	"context"
	"errors"
	"fmt"

	"github.com/olereon/automaton/internal/autoerr"
	"github.com/olereon/automaton/internal/autolog"
	"github.com/olereon/automaton/internal/browser"
	"github.com/olereon/automaton/internal/models"
	"github.com/olereon/automaton/internal/registry"
	"github.com/olereon/automaton/internal/substitute"
)

// RUNRESULT IS THE OUTCOME OF ONE INTERPRETER RUN.
type RunResult struct {
	Success       bool
	FailureReason string
	ErrorKind     string
}

// INTERPRETER RUNS A RESOLVED ACTION LIST AGAINST A SINGLE DRIVER AND
// EXECUTION CONTEXT. NOT SAFE FOR CONCURRENT USE (§5: SINGLE-THREADED
// COOPERATIVE MODEL).
type Interpreter struct {
	Actions []models.Action
	Drv     browser.Driver
	Ectx    *models.ExecutionContext
}

// NEW BUILDS AN INTERPRETER OVER AN ALREADY-RESOLVED ACTION LIST (SEE
// internal/interpreter/loader.go).
func New(actions []models.Action, drv browser.Driver) *Interpreter {
	return &Interpreter{
		Actions: actions,
		Drv:     drv,
		Ectx:    models.NewExecutionContext(),
	}
}

// RUN EXECUTES THE ACTION LIST FROM INSTRUCTION ZERO, RETURNING ONCE THE
// PROGRAM COMPLETES, STOPS, OR FAILS (§4.4).
func (in *Interpreter) Run(ctx context.Context) RunResult {
	for in.Ectx.InstructionPointer < len(in.Actions) && !in.Ectx.Cancelled {
		if ctx.Err() != nil {
			in.Ectx.Cancelled = true
			return RunResult{Success: false, FailureReason: ctx.Err().Error(), ErrorKind: string(autoerr.KindCancelled)}
		}

		ip := in.Ectx.InstructionPointer
		raw := in.Actions[ip]
		action := substitute.Action(raw, in.Ectx)

		handler, ok := registry.Lookup(action.Kind)
		if !ok {
			return RunResult{
				Success:       false,
				FailureReason: fmt.Sprintf("action %d: unregistered action kind %q", ip, action.Kind),
				ErrorKind:     string(autoerr.KindMalformed),
			}
		}

		in.Ectx.ShouldIncrement = true
		err := handler.Execute(ctx, in.Ectx, in.Drv, action)

		if err != nil {
			if result, handled := in.handleError(ip, raw, err); handled {
				if result != nil {
					return *result
				}
				continue
			}
		}

		if in.Ectx.ShouldIncrement {
			in.Ectx.InstructionPointer = ip + 1
		}
	}

	return RunResult{Success: true}
}

// HANDLEERROR IMPLEMENTS §4.4 STEP 3 IN ORDER: STOP_AUTOMATION FIRST (IT IS
// THE ONLY WAY TO TERMINATE A RUN FROM INSIDE THE PROGRAM, EVEN FROM WITHIN
// AN OPEN TRY), THEN AN ENCLOSING TRY FRAME, THEN continue_on_error, THEN
// TERMINAL FAILURE. RETURNS (non-nil RunResult, true) WHEN THE RUN MUST
// STOP, (nil, true) WHEN THE LOOP SHOULD CONTINUE, OR (nil, false) NEVER —
// KEPT AS A BOOL FOR CALLSITE CLARITY.
func (in *Interpreter) handleError(ip int, raw models.Action, err error) (*RunResult, bool) {
	var ae *autoerr.Error
	isAutoerr := errors.As(err, &ae)

	if isAutoerr && ae.Kind == autoerr.KindStopRequested {
		return &RunResult{Success: false, FailureReason: ae.Message, ErrorKind: string(autoerr.KindStopRequested)}, true
	}

	if frame, ok := nearestTryFrame(in.Ectx); ok {
		frame.TakenBranch = true
		in.Ectx.Errors = append(in.Ectx.Errors, fmt.Sprintf("action %d: %s", ip, err.Error()))
		in.Ectx.InstructionPointer = frame.CatchIP
		autolog.Default().Debug("error caught by enclosing TRY", map[string]any{"actionIndex": ip, "error": err.Error(), "catchIp": frame.CatchIP})
		return nil, true
	}

	if raw.ContinueOnError {
		in.Ectx.Errors = append(in.Ectx.Errors, fmt.Sprintf("action %d: %s", ip, err.Error()))
		in.Ectx.InstructionPointer = ip + 1
		autolog.Default().Warn("action failed, continuing (continue_on_error)", map[string]any{"actionIndex": ip, "error": err.Error()})
		return nil, true
	}

	kind := string(autoerr.KindInternal)
	if isAutoerr {
		kind = string(ae.Kind)
	}
	return &RunResult{Success: false, FailureReason: err.Error(), ErrorKind: kind}, true
}

// NEARESTTRYFRAME SEARCHES THE BLOCK STACK TOP-DOWN FOR THE INNERMOST OPEN
// TRY FRAME, DISCARDING ANY FRAMES ABOVE IT (THE ABANDONED NESTED
// IF/WHILE/TRY CONSTRUCTS THE ERROR JUMPED OUT OF).
func nearestTryFrame(ectx *models.ExecutionContext) (*models.BlockFrame, bool) {
	for i := len(ectx.BlockStack) - 1; i >= 0; i-- {
		if ectx.BlockStack[i].Kind == models.BlockTry {
			ectx.BlockStack = ectx.BlockStack[:i+1]
			return &ectx.BlockStack[i], true
		}
	}
	return nil, false
}
