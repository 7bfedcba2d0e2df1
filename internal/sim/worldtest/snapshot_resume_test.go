package worldtest

import (
	"testing"
)

func TestSnapshotResume_MatchesUninterruptedRun(t *testing.T) {
	tu := SmallTuning(99)
	orig := NewHarness(t, "resume", tu)
	orig.StepFor(140)

	resumed := orig.Resume(tu)
	if resumed.W.CurrentTick() != orig.W.CurrentTick() {
		t.Fatalf("resume tick %d, want %d", resumed.W.CurrentTick(), orig.W.CurrentTick())
	}
	if resumed.W.Registry().Len() != orig.W.Registry().Len() {
		t.Fatalf("chains %d, want %d", resumed.W.Registry().Len(), orig.W.Registry().Len())
	}

	orig.StepFor(100)
	resumed.StepFor(100)

	base := len(orig.Trace) - 100
	for i := 0; i < 100; i++ {
		want := Reproducible(orig.Trace[base+i])
		got := Reproducible(resumed.Trace[i])
		if got != want {
			t.Fatalf("tick %d diverged after resume:\n got=%+v\nwant=%+v", want.Tick, got, want)
		}
	}
}

func TestSnapshotResume_ChainCodesSurvive(t *testing.T) {
	tu := SmallTuning(5)
	orig := NewHarness(t, "codes", tu)
	orig.StepFor(80)

	want := map[uint64]string{}
	for _, c := range orig.W.Registry().GetAll() {
		want[c.ID()] = c.CodeString()
	}
	resumed := orig.Resume(tu)
	for _, c := range resumed.W.Registry().GetAll() {
		code, ok := want[c.ID()]
		if !ok {
			t.Fatalf("chain %d appeared on resume", c.ID())
		}
		if c.CodeString() != code {
			t.Fatalf("chain %d code %q, want %q", c.ID(), c.CodeString(), code)
		}
		delete(want, c.ID())
	}
	if len(want) != 0 {
		t.Fatalf("chains lost on resume: %v", want)
	}
}
