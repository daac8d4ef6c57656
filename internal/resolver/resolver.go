// Package resolver implements the load-time control-flow pass (§4.3):
// pairing IF_BEGIN/ELIF/ELSE/IF_END, WHILE_BEGIN/WHILE_END, and
// TRY_BEGIN/CATCH_BEGIN/CATCH_END, and annotating BREAK/CONTINUE with their
// enclosing WHILE's jump targets. Grounded structurally on the teacher's
// single forward-scan validation style in internal/scraper/tasks.go's
// ValidateConfig methods, generalized to a program-wide pass.
package resolver

import (
	"fmt"

	"github.com/olereon/automaton/internal/autoerr"
	"github.com/olereon/automaton/internal/models"
)

type openFrame struct {
	kind       models.BlockKind
	beginIP    int
	elifIPs    []int // IF: INDEX OF EACH ELIF/ELSE SEEN SO FAR, IN ORDER
	hasElse    bool
}

// RESOLVE WALKS ACTIONS ONCE, VALIDATING BLOCK BALANCE AND STAMPING JUMP
// TARGETS DIRECTLY ONTO THE ACTION SLICE. RETURNS ErrorKind.Malformed ON ANY
// UNBALANCED OR ORPHAN CONSTRUCT (§4.3, TESTABLE PROPERTY 1).
func Resolve(actions []models.Action) error {
	var stack []openFrame

	for ip := range actions {
		kind := actions[ip].Kind

		switch kind {
		case models.IfBegin:
			stack = append(stack, openFrame{kind: models.BlockIf, beginIP: ip})

		case models.Elif:
			top, err := peekIf(stack, ip)
			if err != nil {
				return err
			}
			// THE PRECEDING BRANCH (IF_BEGIN OR PRIOR ELIF) JUMPS HERE ON FALSE.
			actions[precedingBranch(actions, top.beginIP, top.elifIPs)].JumpTarget = ip
			top.elifIPs = append(top.elifIPs, ip)
			stack[len(stack)-1] = top

		case models.Else:
			top, err := peekIf(stack, ip)
			if err != nil {
				return err
			}
			if top.hasElse {
				return malformed(ip, "duplicate ELSE in the same IF")
			}
			actions[precedingBranch(actions, top.beginIP, top.elifIPs)].JumpTarget = ip
			top.elifIPs = append(top.elifIPs, ip)
			top.hasElse = true
			stack[len(stack)-1] = top

		case models.IfEnd:
			top, err := popExpect(&stack, models.BlockIf, ip)
			if err != nil {
				return err
			}
			// THE LAST OPEN BRANCH (WHETHER IF_BEGIN, AN ELIF, OR AN ELSE) FALLS
			// THROUGH TO IF_END WHEN ITS CONDITION IS FALSE / AFTER ITS BODY RUNS.
			actions[precedingBranch(actions, top.beginIP, top.elifIPs)].JumpTarget = ip
			actions[top.beginIP].MatchOpen = ip
			actions[ip].MatchOpen = top.beginIP

		case models.WhileBegin:
			stack = append(stack, openFrame{kind: models.BlockWhile, beginIP: ip})

		case models.WhileEnd:
			top, err := popExpect(&stack, models.BlockWhile, ip)
			if err != nil {
				return err
			}
			actions[top.beginIP].JumpTarget = ip + 1 // CONDITION FALSE: SKIP PAST WHILE_END
			actions[ip].JumpTarget = top.beginIP      // LOOP BACK TO RE-EVALUATE
			actions[top.beginIP].MatchOpen = ip
			actions[ip].MatchOpen = top.beginIP

		case models.TryBegin:
			stack = append(stack, openFrame{kind: models.BlockTry, beginIP: ip})

		case models.CatchBegin:
			top, err := peekTry(stack, ip)
			if err != nil {
				return err
			}
			actions[top.beginIP].CatchTarget = ip
			stack[len(stack)-1] = top

		case models.CatchEnd:
			top, err := popExpect(&stack, models.BlockTry, ip)
			if err != nil {
				return err
			}
			actions[top.beginIP].MatchOpen = ip
			actions[ip].MatchOpen = top.beginIP
			if actions[top.beginIP].CatchTarget <= top.beginIP {
				return malformed(top.beginIP, "TRY_BEGIN has no matching CATCH_BEGIN")
			}

		case models.Break, models.Continue:
			frame, ok := innermostWhile(stack)
			if !ok {
				return malformed(ip, fmt.Sprintf("%s outside any WHILE", kind))
			}
			// TARGETS ARE RESOLVED AFTER WHILE_END IS SEEN; RECORD THE WHILE'S
			// BEGIN IP HERE AND FIX UP ONCE WHILE_END CLOSES (SECOND PASS BELOW).
			actions[ip].MatchOpen = frame.beginIP
		}
	}

	if len(stack) != 0 {
		return malformed(stack[len(stack)-1].beginIP, "unterminated block")
	}

	return fixupBreakContinue(actions)
}

// FIXUPBREAKCONTINUE RUNS A SECOND PASS (THE ENCLOSING WHILE'S END IP ISN'T
// KNOWN UNTIL THE FIRST PASS CLOSES IT) TO POINT BREAK AT WHILE_END+1 AND
// CONTINUE AT THE WHILE_BEGIN, WITH A BOUNDS CHECK AGAINST THE ACTION LIST
// LENGTH (THE SPEC'S CALLED-OUT OFF-BY-ONE FIX, §4.4).
func fixupBreakContinue(actions []models.Action) error {
	for ip := range actions {
		switch actions[ip].Kind {
		case models.Break:
			whileBeginIP := actions[ip].MatchOpen
			whileEndIP := actions[whileBeginIP].MatchOpen
			target := whileEndIP + 1
			if target > len(actions) {
				return malformed(ip, "BREAK target exceeds program length")
			}
			actions[ip].JumpTarget = target
		case models.Continue:
			whileBeginIP := actions[ip].MatchOpen
			actions[ip].JumpTarget = whileBeginIP
		}
	}
	return nil
}

func precedingBranch(actions []models.Action, beginIP int, elifIPs []int) int {
	if len(elifIPs) == 0 {
		return beginIP
	}
	return elifIPs[len(elifIPs)-1]
}

func peekIf(stack []openFrame, ip int) (openFrame, error) {
	if len(stack) == 0 || stack[len(stack)-1].kind != models.BlockIf {
		return openFrame{}, malformed(ip, "ELIF/ELSE outside any IF")
	}
	return stack[len(stack)-1], nil
}

func peekTry(stack []openFrame, ip int) (openFrame, error) {
	if len(stack) == 0 || stack[len(stack)-1].kind != models.BlockTry {
		return openFrame{}, malformed(ip, "CATCH_BEGIN outside any TRY")
	}
	return stack[len(stack)-1], nil
}

func innermostWhile(stack []openFrame) (openFrame, bool) {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].kind == models.BlockWhile {
			return stack[i], true
		}
	}
	return openFrame{}, false
}

func popExpect(stack *[]openFrame, kind models.BlockKind, ip int) (openFrame, error) {
	s := *stack
	if len(s) == 0 {
		return openFrame{}, malformed(ip, fmt.Sprintf("unmatched terminator for %s", kind))
	}
	top := s[len(s)-1]
	if top.kind != kind {
		return openFrame{}, malformed(ip, fmt.Sprintf("expected terminator for %s, found one for %s", top.kind, kind))
	}
	*stack = s[:len(s)-1]
	return top, nil
}

func malformed(ip int, reason string) error {
	return autoerr.New(autoerr.KindMalformed, fmt.Sprintf("action %d: %s", ip, reason)).
		WithMetadata("action_index", ip)
}
