package resolver

import (
	"errors"
	"testing"

	"github.com/olereon/automaton/internal/autoerr"
	"github.com/olereon/automaton/internal/models"
)

func act(kind models.ActionKind) models.Action {
	return models.Action{Kind: kind}
}

func TestResolveIfElifElse(t *testing.T) {
	actions := []models.Action{
		act(models.IfBegin),     // 0
		act(models.ClickButton), // 1
		act(models.Elif),        // 2
		act(models.ClickButton), // 3
		act(models.Else),        // 4
		act(models.ClickButton), // 5
		act(models.IfEnd),       // 6
	}

	if err := Resolve(actions); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if actions[0].JumpTarget != 2 {
		t.Errorf("IF_BEGIN jump = %d, want 2", actions[0].JumpTarget)
	}
	if actions[2].JumpTarget != 4 {
		t.Errorf("ELIF jump = %d, want 4", actions[2].JumpTarget)
	}
	if actions[4].JumpTarget != 6 {
		t.Errorf("ELSE jump = %d, want 6", actions[4].JumpTarget)
	}
	if actions[0].MatchOpen != 6 || actions[6].MatchOpen != 0 {
		t.Errorf("IF_BEGIN/IF_END MatchOpen not paired: %d / %d", actions[0].MatchOpen, actions[6].MatchOpen)
	}
}

func TestResolveWhileBreakContinue(t *testing.T) {
	actions := []models.Action{
		act(models.WhileBegin), // 0
		act(models.Break),      // 1
		act(models.Continue),   // 2
		act(models.WhileEnd),   // 3
	}

	if err := Resolve(actions); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if actions[0].JumpTarget != 4 {
		t.Errorf("WHILE_BEGIN false-jump = %d, want 4 (past WHILE_END)", actions[0].JumpTarget)
	}
	if actions[3].JumpTarget != 0 {
		t.Errorf("WHILE_END jump = %d, want 0", actions[3].JumpTarget)
	}
	if actions[1].JumpTarget != 4 {
		t.Errorf("BREAK jump = %d, want 4", actions[1].JumpTarget)
	}
	if actions[2].JumpTarget != 0 {
		t.Errorf("CONTINUE jump = %d, want 0", actions[2].JumpTarget)
	}
}

func TestResolveTryCatch(t *testing.T) {
	actions := []models.Action{
		act(models.TryBegin),   // 0
		act(models.ClickButton),// 1
		act(models.CatchBegin), // 2
		act(models.ClickButton),// 3
		act(models.CatchEnd),   // 4
	}

	if err := Resolve(actions); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if actions[0].CatchTarget != 2 {
		t.Errorf("TRY_BEGIN CatchTarget = %d, want 2", actions[0].CatchTarget)
	}
	if actions[0].MatchOpen != 4 || actions[4].MatchOpen != 0 {
		t.Errorf("TRY_BEGIN/CATCH_END MatchOpen not paired: %d / %d", actions[0].MatchOpen, actions[4].MatchOpen)
	}
}

func TestResolveRejectsOrphanElif(t *testing.T) {
	actions := []models.Action{act(models.Elif)}

	err := Resolve(actions)
	if err == nil {
		t.Fatal("expected error for orphan ELIF, got nil")
	}
	assertMalformed(t, err)
}

func TestResolveRejectsUnterminatedBlock(t *testing.T) {
	actions := []models.Action{act(models.IfBegin), act(models.ClickButton)}

	err := Resolve(actions)
	if err == nil {
		t.Fatal("expected error for unterminated IF, got nil")
	}
	assertMalformed(t, err)
}

func TestResolveRejectsBreakOutsideWhile(t *testing.T) {
	err := Resolve([]models.Action{act(models.Break)})
	if err == nil {
		t.Fatal("expected error for BREAK outside WHILE, got nil")
	}
	assertMalformed(t, err)
}

func TestResolveRejectsMismatchedTerminator(t *testing.T) {
	actions := []models.Action{act(models.IfBegin), act(models.WhileEnd)}

	err := Resolve(actions)
	if err == nil {
		t.Fatal("expected error for mismatched terminator, got nil")
	}
	assertMalformed(t, err)
}

func TestResolveNestedWhileInnermostBinding(t *testing.T) {
	actions := []models.Action{
		act(models.WhileBegin), // 0 outer
		act(models.WhileBegin), // 1 inner
		act(models.Break),      // 2 binds to inner
		act(models.WhileEnd),   // 3 inner end
		act(models.Break),      // 4 binds to outer
		act(models.WhileEnd),   // 5 outer end
	}

	if err := Resolve(actions); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if actions[2].JumpTarget != 4 {
		t.Errorf("inner BREAK jump = %d, want 4 (past inner WHILE_END)", actions[2].JumpTarget)
	}
	if actions[4].JumpTarget != 6 {
		t.Errorf("outer BREAK jump = %d, want 6 (past outer WHILE_END)", actions[4].JumpTarget)
	}
}

func assertMalformed(t *testing.T, err error) {
	t.Helper()
	var ae *autoerr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("error is not *autoerr.Error: %v", err)
	}
	if ae.Kind != autoerr.KindMalformed {
		t.Errorf("error kind = %v, want KindMalformed", ae.Kind)
	}
}
