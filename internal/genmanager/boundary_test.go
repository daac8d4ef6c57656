package genmanager

import (
	"context"
	"testing"

	"github.com/olereon/automaton/internal/models"
)

func TestContainerSelectorBuildsIDSuffixFamily(t *testing.T) {
	got := ContainerSelector(8, 3)
	want := `div[id$='__8'], div[id$='__9'], div[id$='__10']`
	if got != want {
		t.Errorf("ContainerSelector() = %q, want %q", got, want)
	}
}

func TestNewScrollerHonorsLowConfiguredDistanceVerbatim(t *testing.T) {
	s := NewScroller(500, 2, "#scroll")
	if s.State.MinScrollDistancePx != 500 {
		t.Errorf("MinScrollDistancePx = %d, want 500 (never silently clamped)", s.State.MinScrollDistancePx)
	}
}

func TestNewScrollerDefaultsWhenUnconfigured(t *testing.T) {
	s := NewScroller(0, 2, "#scroll")
	if s.State.MinScrollDistancePx != models.BoundaryScrollDefaultMinDistancePx {
		t.Errorf("MinScrollDistancePx = %d, want default %d", s.State.MinScrollDistancePx, models.BoundaryScrollDefaultMinDistancePx)
	}
}

func TestAdvanceSucceedsWhenDisplacementMeetsMinimum(t *testing.T) {
	drv := &fakeDriver{positions: []int{0, 3000}, containerIDs: []string{"a__0", "a__1"}}
	s := NewScroller(2500, 2, "#scroll")

	ok, ids, err := s.Advance(context.Background(), drv, "", 0)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if !ok {
		t.Error("Advance() = false, want true (displacement exceeds minimum)")
	}
	if len(ids) != 2 {
		t.Errorf("Advance() returned %d ids, want 2", len(ids))
	}
	if s.State.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0 after success", s.State.ConsecutiveFailures)
	}
}

func TestAdvanceFailsWhenNoDisplacementAndSameContainers(t *testing.T) {
	drv := &fakeDriver{positions: []int{1000, 1000}, containerIDs: []string{"a__0"}}
	s := NewScroller(2500, 2, "#scroll")
	s.State.LastContainerSet = []string{"a__0"}

	ok, _, err := s.Advance(context.Background(), drv, "", 0)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if ok {
		t.Error("Advance() = true, want false (no displacement, no new containers)")
	}
	if s.State.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1 after failure", s.State.ConsecutiveFailures)
	}
}

func TestExitScanCompleteAfterMaxConsecutiveFailures(t *testing.T) {
	drv := &fakeDriver{positions: []int{0, 0}, containerIDs: []string{"a__0"}}
	s := NewScroller(2500, 2, "#scroll")
	s.State.LastContainerSet = []string{"a__0"}

	for i := 0; i < 2; i++ {
		drv.posIdx = 0
		if _, _, err := s.Advance(context.Background(), drv, "", 0); err != nil {
			t.Fatalf("Advance() error = %v", err)
		}
	}

	if !s.State.ExitScanComplete() {
		t.Error("ExitScanComplete() = false, want true after MaxScrollAttempts consecutive failures")
	}
}
