package genmanager

import (
	"context"

	"github.com/olereon/automaton/internal/browser"
)

// FAKEDRIVER IS A MINIMAL browser.Driver TEST DOUBLE. SCROLLPOSITION WALKS
// positions IN ORDER ON EACH CALL (ONE CALL PER Advance() INVOCATION PAIR),
// LETTING TESTS SCRIPT EXACT BEFORE/AFTER DISPLACEMENT WITHOUT A REAL BROWSER.
type fakeDriver struct {
	browser.Driver // EMBEDS A NIL INTERFACE; ONLY THE METHODS BELOW ARE EXERCISED BY THESE TESTS

	positions    []int
	posIdx       int
	containerIDs []string

	// CONTAINERIDSSEQ, WHEN SET, OVERRIDES containerIDs: EACH CALL TO
	// EVALUATE CONSUMES THE NEXT ENTRY, CLAMPING TO THE LAST ONE ONCE
	// EXHAUSTED — LETS A TEST SCRIPT "CONTAINERS RENDERED" THEN "SCROLLED
	// PAST THE END, NOTHING NEW" ACROSS SUCCESSIVE SnapshotContainerIDs CALLS.
	containerIDsSeq [][]string
	idsIdx          int

	// CONTAINERTEXT MAPS A CONTAINER SELECTOR (E.G. "#a__0") TO THE TWO-LINE
	// "datetime\nprompt" TEXT TextContent RETURNS FOR IT.
	containerText map[string]string
	clicked       []string
}

func (f *fakeDriver) ScrollPosition(ctx context.Context, containerSelector string) (int, error) {
	if f.posIdx >= len(f.positions) {
		return f.positions[len(f.positions)-1], nil
	}
	p := f.positions[f.posIdx]
	f.posIdx++
	return p, nil
}

func (f *fakeDriver) ScrollIntoView(ctx context.Context, selector string) error {
	return nil
}

func (f *fakeDriver) SetScrollTop(ctx context.Context, containerSelector string, top int) error {
	return nil
}

func (f *fakeDriver) Evaluate(ctx context.Context, script string, out any) error {
	if ptr, ok := out.(*[]string); ok {
		if len(f.containerIDsSeq) > 0 {
			i := f.idsIdx
			if i >= len(f.containerIDsSeq) {
				i = len(f.containerIDsSeq) - 1
			}
			*ptr = f.containerIDsSeq[i]
			f.idsIdx++
			return nil
		}
		*ptr = f.containerIDs
	}
	return nil
}

func (f *fakeDriver) TextContent(ctx context.Context, selector string) (string, error) {
	return f.containerText[selector], nil
}

func (f *fakeDriver) Click(ctx context.Context, selector string, force bool) error {
	f.clicked = append(f.clicked, selector)
	return nil
}
