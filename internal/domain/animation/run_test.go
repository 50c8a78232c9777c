package animation

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to RunState
		ok       bool
	}{
		{RunStateStarting, RunStatePreviewing, true},
		{RunStateStarting, RunStateAwaitingMapping, true},
		{RunStateAwaitingMapping, RunStateStarting, true},
		{RunStatePreviewing, RunStateRendering, true},
		{RunStateRendering, RunStateCompleted, true},
		{RunStateCompleted, RunStateExporting, true},
		{RunStateExporting, RunStateCompleted, true},
		{RunStateRendering, RunStateRendering, true},
		{RunStateCompleted, RunStateFailed, false},
		{RunStateFailed, RunStateStarting, false},
		{RunStateCanceled, RunStatePreviewing, false},
		{RunStatePreviewing, RunStateCompleted, false},
		{RunStateAwaitingMapping, RunStatePreviewing, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: want=%v got=%v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestEveryNonTerminalStateCanFail(t *testing.T) {
	for _, s := range AllRunStates {
		if s.Terminal() {
			continue
		}
		if !CanTransition(s, RunStateFailed) {
			t.Fatalf("%s cannot reach FAILED", s)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	if !RunStateCompleted.Terminal() || !RunStateFailed.Terminal() || !RunStateCanceled.Terminal() {
		t.Fatalf("completed/failed/canceled must be terminal")
	}
	if RunStateExporting.Terminal() || RunStateAwaitingMapping.Terminal() {
		t.Fatalf("exporting/awaiting mapping are not terminal")
	}
	if RunStateCompleted.Cancelable() {
		t.Fatalf("completed runs cannot be canceled")
	}
}
