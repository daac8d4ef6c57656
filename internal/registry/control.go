package registry

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olereon/automaton/internal/autoerr"
	"github.com/olereon/automaton/internal/browser"
	"github.com/olereon/automaton/internal/condition"
	"github.com/olereon/automaton/internal/models"
)

func init() {
	Register(models.IfBegin, ifBeginHandler{})
	Register(models.Elif, elifHandler{})
	Register(models.Else, elseHandler{})
	Register(models.IfEnd, ifEndHandler{})
	Register(models.WhileBegin, whileBeginHandler{})
	Register(models.WhileEnd, whileEndHandler{})
	Register(models.Break, breakHandler{})
	Register(models.Continue, continueHandler{})
	Register(models.ConditionalWait, conditionalWaitHandler{})
	Register(models.SkipIf, skipIfHandler{})
	Register(models.TryBegin, tryBeginHandler{})
	Register(models.CatchBegin, catchBeginHandler{})
	Register(models.CatchEnd, catchEndHandler{})
	Register(models.StopAutomation, stopAutomationHandler{})
}

func noSchema() map[string]string { return map[string]string{} }

// --- IF / ELIF / ELSE / IF_END -------------------------------------------
//
// IF_BEGIN pushes a BlockFrame whose EndIP is the matching IF_END (stamped
// onto the IF_BEGIN action's MatchOpen by the resolver). ELIF/ELSE reuse
// BlockFrame.TakenBranch to remember whether an earlier branch already ran:
// if so they jump straight to EndIP without evaluating anything further.

type ifBeginHandler struct{}

func (ifBeginHandler) InputSchema() map[string]string { return map[string]string{"value": "condition"} }
func (ifBeginHandler) Validate(models.Action) error    { return nil }

func (ifBeginHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	ok, err := condition.Evaluate(a.Value, ectx)
	if err != nil {
		return err
	}
	ectx.PushBlock(models.BlockFrame{Kind: models.BlockIf, BeginIP: ectx.InstructionPointer, EndIP: a.MatchOpen, TakenBranch: ok})
	if ok {
		ectx.ShouldIncrement = true
		return nil
	}
	ectx.InstructionPointer = a.JumpTarget
	ectx.ShouldIncrement = false
	return nil
}

type elifHandler struct{}

func (elifHandler) InputSchema() map[string]string { return map[string]string{"value": "condition"} }
func (elifHandler) Validate(models.Action) error    { return nil }

func (elifHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	frame := ectx.CurrentBlock()
	if frame == nil || frame.Kind != models.BlockIf {
		return autoerr.New(autoerr.KindMalformed, "ELIF reached with no open IF frame")
	}
	if frame.TakenBranch {
		ectx.InstructionPointer = frame.EndIP
		ectx.ShouldIncrement = false
		return nil
	}
	ok, err := condition.Evaluate(a.Value, ectx)
	if err != nil {
		return err
	}
	if ok {
		frame.TakenBranch = true
		ectx.ShouldIncrement = true
		return nil
	}
	ectx.InstructionPointer = a.JumpTarget
	ectx.ShouldIncrement = false
	return nil
}

type elseHandler struct{}

func (elseHandler) InputSchema() map[string]string { return noSchema() }
func (elseHandler) Validate(models.Action) error    { return nil }

func (elseHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	frame := ectx.CurrentBlock()
	if frame == nil || frame.Kind != models.BlockIf {
		return autoerr.New(autoerr.KindMalformed, "ELSE reached with no open IF frame")
	}
	if frame.TakenBranch {
		ectx.InstructionPointer = frame.EndIP
		ectx.ShouldIncrement = false
		return nil
	}
	frame.TakenBranch = true
	ectx.ShouldIncrement = true
	return nil
}

type ifEndHandler struct{}

func (ifEndHandler) InputSchema() map[string]string { return noSchema() }
func (ifEndHandler) Validate(models.Action) error    { return nil }

func (ifEndHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	frame := ectx.CurrentBlock()
	if frame == nil || frame.Kind != models.BlockIf {
		return autoerr.New(autoerr.KindMalformed, "IF_END reached with no open IF frame")
	}
	ectx.PopBlock()
	ectx.ShouldIncrement = true
	return nil
}

// --- WHILE_BEGIN / WHILE_END / BREAK / CONTINUE ---------------------------

type whileBeginHandler struct{}

func (whileBeginHandler) InputSchema() map[string]string {
	return map[string]string{"value": "condition"}
}
func (whileBeginHandler) Validate(models.Action) error { return nil }

func (whileBeginHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	ip := ectx.InstructionPointer
	frame := ectx.CurrentBlock()
	if frame == nil || frame.Kind != models.BlockWhile || frame.BeginIP != ip {
		ectx.PushBlock(models.BlockFrame{Kind: models.BlockWhile, BeginIP: ip, EndIP: a.MatchOpen})
		frame = ectx.CurrentBlock()
	}

	ok, err := condition.Evaluate(a.Value, ectx)
	if err != nil {
		return err
	}
	if ok {
		frame.IterationCount++
		ectx.ShouldIncrement = true
		return nil
	}
	ectx.PopBlock()
	ectx.InstructionPointer = a.JumpTarget // STAMPED TO WHILE_END+1 BY THE RESOLVER
	ectx.ShouldIncrement = false
	return nil
}

type whileEndHandler struct{}

func (whileEndHandler) InputSchema() map[string]string { return noSchema() }
func (whileEndHandler) Validate(models.Action) error    { return nil }

func (whileEndHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	ectx.InstructionPointer = a.JumpTarget // BACK TO WHILE_BEGIN FOR RE-EVALUATION
	ectx.ShouldIncrement = false
	return nil
}

type breakHandler struct{}

func (breakHandler) InputSchema() map[string]string { return noSchema() }
func (breakHandler) Validate(models.Action) error    { return nil }

func (breakHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	popUntilWhile(ectx, true)
	ectx.InstructionPointer = a.JumpTarget // BOUNDS-CHECKED AGAINST ACTION-LIST LENGTH AT LOAD TIME
	ectx.ShouldIncrement = false
	return nil
}

type continueHandler struct{}

func (continueHandler) InputSchema() map[string]string { return noSchema() }
func (continueHandler) Validate(models.Action) error    { return nil }

func (continueHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	popUntilWhile(ectx, false)
	ectx.InstructionPointer = a.JumpTarget // BACK TO WHILE_BEGIN
	ectx.ShouldIncrement = false
	return nil
}

// POPUNTILWHILE DISCARDS ANY IF/TRY FRAMES NESTED INSIDE THE INNERMOST WHILE.
// WHEN leaveLoop IS TRUE (BREAK) THE WHILE FRAME ITSELF IS ALSO POPPED, SINCE
// CONTROL IS LEAVING THE LOOP ENTIRELY; CONTINUE LEAVES IT IN PLACE SO
// WHILE_BEGIN CAN RE-EVALUATE IT.
func popUntilWhile(ectx *models.ExecutionContext, leaveLoop bool) {
	for {
		frame := ectx.CurrentBlock()
		if frame == nil {
			return
		}
		if frame.Kind == models.BlockWhile {
			if leaveLoop {
				ectx.PopBlock()
			}
			return
		}
		ectx.PopBlock()
	}
}

// --- CONDITIONAL_WAIT / SKIP_IF -------------------------------------------

type conditionalWaitHandler struct{}

func (conditionalWaitHandler) InputSchema() map[string]string {
	return map[string]string{
		"value.condition":   "condition",
		"value.maxRetries":  "int",
		"value.delayMs":     "int",
		"value.backoff":     "fixed|exponential (optional, default fixed)",
	}
}

func (conditionalWaitHandler) Validate(a models.Action) error {
	m, err := asMap(a.Value)
	if err != nil {
		return err
	}
	if _, ok := m["condition"]; !ok {
		return fmt.Errorf("%w: value.condition is required", ErrMissingRequiredInput)
	}
	return nil
}

func (conditionalWaitHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	m, _ := asMap(a.Value)
	cond := m["condition"]
	maxRetries := intField(m, "maxRetries", 1)
	delayMs := intField(m, "delayMs", 500)
	exponential := false
	if b, ok := stringField(m, "backoff"); ok && b == "exponential" {
		exponential = true
	}

	delay := time.Duration(delayMs) * time.Millisecond
	for attempt := 0; attempt < maxRetries; attempt++ {
		ok, err := condition.Evaluate(cond, ectx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if attempt == maxRetries-1 {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		if exponential {
			delay *= 2
		}
	}
	return autoerr.New(autoerr.KindTimeout, "condition never became true within max_retries").WithMetadata("maxRetries", maxRetries)
}

func intField(m map[string]any, key string, def int) int {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}

// SKIP_IF(condition) — WHEN TRUE, SKIPS EXACTLY THE NEXT ACTION.

type skipIfHandler struct{}

func (skipIfHandler) InputSchema() map[string]string { return map[string]string{"value": "condition"} }
func (skipIfHandler) Validate(models.Action) error    { return nil }

func (skipIfHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	ok, err := condition.Evaluate(a.Value, ectx)
	if err != nil {
		return err
	}
	ectx.ShouldIncrement = false
	if ok {
		ectx.InstructionPointer += 2
	} else {
		ectx.InstructionPointer += 1
	}
	return nil
}

// --- TRY_BEGIN / CATCH_BEGIN / CATCH_END ----------------------------------
//
// TRY_BEGIN.MatchOpen is stamped by the resolver to CATCH_END's IP; reused
// here as BlockFrame.EndIP so CATCH_BEGIN can skip straight past an untaken
// catch body. The interpreter's own error-propagation step (§4.4 step 3) is
// what flips BlockFrame.TakenBranch to true when it jumps here after an
// error — from CATCH_BEGIN's own point of view that's indistinguishable
// from "a catch is in progress".

type tryBeginHandler struct{}

func (tryBeginHandler) InputSchema() map[string]string { return noSchema() }
func (tryBeginHandler) Validate(models.Action) error    { return nil }

func (tryBeginHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	ectx.PushBlock(models.BlockFrame{Kind: models.BlockTry, BeginIP: ectx.InstructionPointer, EndIP: a.MatchOpen, CatchIP: a.CatchTarget})
	ectx.ShouldIncrement = true
	return nil
}

type catchBeginHandler struct{}

func (catchBeginHandler) InputSchema() map[string]string { return noSchema() }
func (catchBeginHandler) Validate(models.Action) error    { return nil }

func (catchBeginHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	frame := ectx.CurrentBlock()
	if frame == nil || frame.Kind != models.BlockTry {
		return autoerr.New(autoerr.KindMalformed, "CATCH_BEGIN reached with no open TRY frame")
	}
	if frame.TakenBranch {
		// ENTERED VIA THE INTERPRETER'S ERROR JUMP: RUN THE CATCH BODY.
		ectx.ShouldIncrement = true
		return nil
	}
	// TRY BODY COMPLETED WITHOUT ERROR: SKIP THE CATCH BODY ENTIRELY.
	ectx.InstructionPointer = frame.EndIP
	ectx.ShouldIncrement = false
	return nil
}

type catchEndHandler struct{}

func (catchEndHandler) InputSchema() map[string]string { return noSchema() }
func (catchEndHandler) Validate(models.Action) error    { return nil }

func (catchEndHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	frame := ectx.CurrentBlock()
	if frame == nil || frame.Kind != models.BlockTry {
		return autoerr.New(autoerr.KindMalformed, "CATCH_END reached with no open TRY frame")
	}
	ectx.PopBlock()
	ectx.ShouldIncrement = true
	return nil
}

// --- STOP_AUTOMATION -------------------------------------------------------

type stopAutomationHandler struct{}

func (stopAutomationHandler) InputSchema() map[string]string {
	return map[string]string{"value.reason": "string", "value.logFile": "string (optional)"}
}

func (stopAutomationHandler) Validate(a models.Action) error {
	m, err := asMap(a.Value)
	if err != nil {
		return err
	}
	if reason, ok := stringField(m, "reason"); !ok || reason == "" {
		return fmt.Errorf("%w: value.reason is required", ErrMissingRequiredInput)
	}
	return nil
}

// EXECUTE ALWAYS RETURNS A KindStopRequested ERROR: THE ONLY ERROR THAT ENDS
// A RUN AS FAILED EVEN INSIDE AN OPEN TRY FRAME OR ON A continueOnError
// ACTION (§4.4), SINCE THE INTERPRETER CHECKS FOR IT BEFORE CONSULTING EITHER.
func (stopAutomationHandler) Execute(ctx context.Context, ectx *models.ExecutionContext, drv browser.Driver, a models.Action) error {
	m, _ := asMap(a.Value)
	reason, _ := stringField(m, "reason")
	if logFile, ok := stringField(m, "logFile"); ok && logFile != "" {
		appendStopLine(logFile, reason)
	}
	return autoerr.New(autoerr.KindStopRequested, reason)
}

func appendStopLine(path, reason string) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "[%s] STOP_AUTOMATION: %s\n", time.Now().Format(time.RFC3339), reason)
}
