package interpreter

import (
	"context"
	"os"
	"testing"

	"github.com/olereon/automaton/internal/autoerr"
	"github.com/olereon/automaton/internal/browser"
	"github.com/olereon/automaton/internal/models"
	"github.com/olereon/automaton/internal/resolver"

	_ "github.com/olereon/automaton/internal/registry" // TRIGGER HANDLER init() REGISTRATION
)

// FAKEDRIVER IS A MINIMAL browser.Driver TEST DOUBLE LETTING EACH TEST SCRIPT
// EXACTLY ONE FAILING CALL WITHOUT A REAL BROWSER.
type fakeDriver struct {
	browser.Driver // EMBEDS A NIL INTERFACE; ONLY WaitForSelector IS EXERCISED HERE

	waitErr error
}

func (f *fakeDriver) WaitForSelector(ctx context.Context, selector string, state browser.WaitState) error {
	return f.waitErr
}

func setVarAction(name string, value any) models.Action {
	return models.Action{Kind: models.SetVariable, Value: map[string]any{"name": name, "value": value}}
}

func incrementVarAction(name string, by float64) models.Action {
	return models.Action{Kind: models.IncrementVariable, Value: map[string]any{"name": name, "increment": by}}
}

func waitForSelectorAction(continueOnError bool) models.Action {
	return models.Action{Kind: models.WaitForElement, Selector: "#missing", ContinueOnError: continueOnError}
}

func mustResolve(t *testing.T, actions []models.Action) {
	t.Helper()
	if err := resolver.Resolve(actions); err != nil {
		t.Fatalf("resolver.Resolve() error = %v", err)
	}
}

func TestRunExecutesSequentialActionsAndSetsVariables(t *testing.T) {
	actions := []models.Action{
		setVarAction("count", 0),
		incrementVarAction("count", 3),
		incrementVarAction("count", 2),
	}
	mustResolve(t, actions)

	in := New(actions, &fakeDriver{})
	result := in.Run(context.Background())

	if !result.Success {
		t.Fatalf("Run() = %+v, want success", result)
	}
	got, _ := in.Ectx.GetVariable("count")
	if got != float64(5) {
		t.Errorf("count = %v, want 5", got)
	}
}

func TestRunUncaughtErrorFailsRunWithDriverErrorKind(t *testing.T) {
	actions := []models.Action{
		waitForSelectorAction(false),
		setVarAction("unreached", true),
	}
	mustResolve(t, actions)

	drv := &fakeDriver{waitErr: autoerr.New(autoerr.KindElementNotFound, "no such element").WithSelector("#missing")}
	in := New(actions, drv)
	result := in.Run(context.Background())

	if result.Success {
		t.Fatal("Run() succeeded, want failure")
	}
	if result.ErrorKind != string(autoerr.KindElementNotFound) {
		t.Errorf("ErrorKind = %q, want %q", result.ErrorKind, autoerr.KindElementNotFound)
	}
	if _, ok := in.Ectx.GetVariable("unreached"); ok {
		t.Error("action after an uncaught terminal failure must not run")
	}
}

func TestRunContinueOnErrorRecordsAndAdvances(t *testing.T) {
	actions := []models.Action{
		waitForSelectorAction(true),
		setVarAction("after", true),
	}
	mustResolve(t, actions)

	drv := &fakeDriver{waitErr: autoerr.New(autoerr.KindTimeout, "timed out")}
	in := New(actions, drv)
	result := in.Run(context.Background())

	if !result.Success {
		t.Fatalf("Run() = %+v, want success (continue_on_error must not fail the run)", result)
	}
	if len(in.Ectx.Errors) != 1 {
		t.Errorf("Errors = %v, want 1 recorded error", in.Ectx.Errors)
	}
	if got, _ := in.Ectx.GetVariable("after"); got != true {
		t.Error("action following a continue_on_error failure must still run")
	}
}

func TestRunTryCatchHandlesErrorAndContinues(t *testing.T) {
	actions := []models.Action{
		{Kind: models.TryBegin},
		waitForSelectorAction(false),
		{Kind: models.CatchBegin},
		setVarAction("caught", true),
		{Kind: models.CatchEnd},
		setVarAction("after", true),
	}
	mustResolve(t, actions)

	drv := &fakeDriver{waitErr: autoerr.New(autoerr.KindElementNotFound, "no such element")}
	in := New(actions, drv)
	result := in.Run(context.Background())

	if !result.Success {
		t.Fatalf("Run() = %+v, want success (TRY must catch the error)", result)
	}
	if got, _ := in.Ectx.GetVariable("caught"); got != true {
		t.Error("CATCH body must run when the TRY body fails")
	}
	if got, _ := in.Ectx.GetVariable("after"); got != true {
		t.Error("action after CATCH_END must run once the catch body completes")
	}
	if len(in.Ectx.Errors) != 1 {
		t.Errorf("Errors = %v, want 1 recorded error", in.Ectx.Errors)
	}
}

func TestRunTryBodySuccessSkipsCatchBody(t *testing.T) {
	actions := []models.Action{
		{Kind: models.TryBegin},
		setVarAction("tried", true),
		{Kind: models.CatchBegin},
		setVarAction("caught", true),
		{Kind: models.CatchEnd},
	}
	mustResolve(t, actions)

	in := New(actions, &fakeDriver{})
	result := in.Run(context.Background())

	if !result.Success {
		t.Fatalf("Run() = %+v, want success", result)
	}
	if _, ok := in.Ectx.GetVariable("caught"); ok {
		t.Error("CATCH body must not run when the TRY body succeeds")
	}
}

// STOP_AUTOMATION MUST WIN OVER AN ENCLOSING TRY EVEN THOUGH IT RAISES AN
// ERROR FROM WITHIN THE TRY BODY (§4.4 STEP 3 PRIORITY ORDER).
func TestRunStopAutomationWinsOverEnclosingTry(t *testing.T) {
	actions := []models.Action{
		{Kind: models.TryBegin},
		{Kind: models.StopAutomation, Value: map[string]any{"reason": "operator requested stop"}},
		{Kind: models.CatchBegin},
		setVarAction("caught", true),
		{Kind: models.CatchEnd},
	}
	mustResolve(t, actions)

	in := New(actions, &fakeDriver{})
	result := in.Run(context.Background())

	if result.Success {
		t.Fatal("Run() succeeded, want failure (STOP_AUTOMATION must not be caught)")
	}
	if result.ErrorKind != string(autoerr.KindStopRequested) {
		t.Errorf("ErrorKind = %q, want %q", result.ErrorKind, autoerr.KindStopRequested)
	}
	if _, ok := in.Ectx.GetVariable("caught"); ok {
		t.Error("CATCH body must not run for a STOP_AUTOMATION error")
	}
}

func TestRunIfElseTakesOnlyOneBranch(t *testing.T) {
	build := func(cond bool) []models.Action {
		actions := []models.Action{
			{Kind: models.IfBegin, Value: map[string]any{"type": "equals", "name": "flag", "literal": true}},
			setVarAction("branch", "then"),
			{Kind: models.Else},
			setVarAction("branch", "else"),
			{Kind: models.IfEnd},
		}
		mustResolve(t, actions)
		return actions
	}

	for _, tc := range []struct {
		flag bool
		want string
	}{{true, "then"}, {false, "else"}} {
		actions := build(tc.flag)
		in := New(actions, &fakeDriver{})
		in.Ectx.SetVariable("flag", tc.flag)
		result := in.Run(context.Background())
		if !result.Success {
			t.Fatalf("Run() = %+v, want success", result)
		}
		got, _ := in.Ectx.GetVariable("branch")
		if got != tc.want {
			t.Errorf("flag=%v: branch = %v, want %q", tc.flag, got, tc.want)
		}
	}
}

func TestRunWhileLoopIteratesUntilConditionFalse(t *testing.T) {
	actions := []models.Action{
		setVarAction("count", float64(0)),
		{Kind: models.WhileBegin, Value: map[string]any{"type": "less", "name": "count", "literal": 3}},
		incrementVarAction("count", 1),
		{Kind: models.WhileEnd},
	}
	mustResolve(t, actions)

	in := New(actions, &fakeDriver{})
	result := in.Run(context.Background())

	if !result.Success {
		t.Fatalf("Run() = %+v, want success", result)
	}
	if got, _ := in.Ectx.GetVariable("count"); got != float64(3) {
		t.Errorf("count = %v, want 3", got)
	}
}

func TestRunCancelledContextStopsBeforeNextAction(t *testing.T) {
	actions := []models.Action{
		setVarAction("never", true),
	}
	mustResolve(t, actions)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := New(actions, &fakeDriver{})
	result := in.Run(ctx)

	if result.Success {
		t.Fatal("Run() succeeded, want failure on a pre-cancelled context")
	}
	if result.ErrorKind != string(autoerr.KindCancelled) {
		t.Errorf("ErrorKind = %q, want %q", result.ErrorKind, autoerr.KindCancelled)
	}
	if _, ok := in.Ectx.GetVariable("never"); ok {
		t.Error("no action should run once the context is already cancelled")
	}
}

func TestRunUnregisteredActionKindFailsAsMalformed(t *testing.T) {
	actions := []models.Action{
		{Kind: models.ActionKind("NOT_A_REAL_KIND")},
	}

	in := New(actions, &fakeDriver{})
	result := in.Run(context.Background())

	if result.Success {
		t.Fatal("Run() succeeded, want failure for an unregistered action kind")
	}
	if result.ErrorKind != string(autoerr.KindMalformed) {
		t.Errorf("ErrorKind = %q, want %q", result.ErrorKind, autoerr.KindMalformed)
	}
}

func TestLoadChainsResolveAndValidate(t *testing.T) {
	// A BREAK OUTSIDE ANY WHILE IS A RESOLVER-LEVEL MALFORMED ERROR; Load
	// MUST SURFACE IT BEFORE ANY BROWSER WOULD HAVE LAUNCHED.
	path := t.TempDir() + "/bad.yaml"
	yaml := "name: bad\nurl: https://example.com\nactions:\n  - kind: BREAK\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("os.WriteFile() error = %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Load() succeeded, want error for a BREAK outside any WHILE")
	}
}
