package genmanager

import (
	"context"
	"fmt"
	"strings"

	"github.com/olereon/automaton/internal/autolog"
	"github.com/olereon/automaton/internal/browser"
	"github.com/olereon/automaton/internal/models"
)

// CONTAINERWINDOW IS HOW MANY id-SUFFIX SLOTS A SINGLE SCAN OR SNAPSHOT
// QUERIES AT ONCE, MATCHING §4.8's "AT MINIMUM `__0`..`__49`" CONTRACT.
const ContainerWindow = 50

// CONTAINERSELECTOR BUILDS THE id$='__N' SELECTOR FAMILY §4.7.3 AND §4.8
// BOTH REQUIRE — A HISTORIC BUG USED A DIFFERENT, GENERIC SELECTOR HERE AND
// FOUND ZERO CONTAINERS EVEN AS SCROLLING SUCCEEDED.
func ContainerSelector(fromIndex, window int) string {
	parts := make([]string, 0, window)
	for i := fromIndex; i < fromIndex+window; i++ {
		parts = append(parts, fmt.Sprintf("div[id$='__%d']", i))
	}
	return strings.Join(parts, ", ")
}

// SNAPSHOTCONTAINERIDS READS THE CURRENTLY RENDERED CONTAINER IDS IN
// fromIndex..fromIndex+window.
func SnapshotContainerIDs(ctx context.Context, drv browser.Driver, fromIndex, window int) ([]string, error) {
	script := fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).map(function(el){ return el.id; })`, ContainerSelector(fromIndex, window))
	var ids []string
	if err := drv.Evaluate(ctx, script, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// SCROLLER DRIVES THE BOUNDARY SCROLL MANAGER (§4.8): TWO RANKED STRATEGIES
// — scrollIntoView ON THE LAST-OBSERVED CONTAINER, THEN scrollTop ON THE
// IDENTIFIED SCROLL CONTAINER — REPEATED UNTIL THE VIEWPORT HAS ADVANCED AT
// LEAST State.MinScrollDistancePx OR max_attempts IS EXHAUSTED.
type Scroller struct {
	State             *models.BoundaryScrollState
	ScrollContainerSel string
}

// NEWSCROLLER HONORS configuredMinDistancePx VERBATIM (§ DESIGN.MD OPEN
// QUESTION (A)): IT NEVER SILENTLY CLAMPS, BUT WARNS WHEN BELOW
// models.BoundaryScrollWarnThresholdPx.
func NewScroller(configuredMinDistancePx, maxAttempts int, scrollContainerSel string) *Scroller {
	if configuredMinDistancePx > 0 && configuredMinDistancePx < models.BoundaryScrollWarnThresholdPx {
		autolog.Default().Warn("configured scroll_amount_px is below the safe threshold; honoring it verbatim", map[string]any{
			"configuredPx": configuredMinDistancePx,
			"thresholdPx":  models.BoundaryScrollWarnThresholdPx,
		})
	}
	return &Scroller{
		State:             models.NewBoundaryScrollState(configuredMinDistancePx, maxAttempts),
		ScrollContainerSel: scrollContainerSel,
	}
}

// ADVANCE RUNS ONE SCROLL ATTEMPT AND REPORTS WHETHER THE CONTAINER SET
// CHANGED. lastContainerSelector IS THE ELEMENT scrollIntoView() TARGETS.
func (s *Scroller) Advance(ctx context.Context, drv browser.Driver, lastContainerSelector string, fromIndex int) (bool, []string, error) {
	before, err := drv.ScrollPosition(ctx, s.ScrollContainerSel)
	if err != nil {
		before = 0
	}

	if lastContainerSelector != "" {
		_ = drv.ScrollIntoView(ctx, lastContainerSelector)
	}

	after, err := drv.ScrollPosition(ctx, s.ScrollContainerSel)
	if err != nil {
		after = before
	}
	displacement := after - before

	if displacement < s.State.MinScrollDistancePx {
		target := before + s.State.MinScrollDistancePx
		if err := drv.SetScrollTop(ctx, s.ScrollContainerSel, target); err == nil {
			if pos, err := drv.ScrollPosition(ctx, s.ScrollContainerSel); err == nil {
				displacement = pos - before
			}
		}
	}

	newIDs, err := SnapshotContainerIDs(ctx, drv, fromIndex, ContainerWindow)
	if err != nil {
		return false, nil, err
	}

	gotNewContainers := containerSetChanged(s.State.LastContainerSet, newIDs)
	success := displacement >= s.State.MinScrollDistancePx && (gotNewContainers || displacement > 0)

	if success {
		s.State.ConsecutiveFailures = 0
	} else {
		s.State.ConsecutiveFailures++
	}
	s.State.LastContainerSet = newIDs

	return success, newIDs, nil
}

func containerSetChanged(prev, next []string) bool {
	prevSet := make(map[string]struct{}, len(prev))
	for _, id := range prev {
		prevSet[id] = struct{}{}
	}
	for _, id := range next {
		if _, ok := prevSet[id]; !ok {
			return true
		}
	}
	return len(next) != len(prev)
}
