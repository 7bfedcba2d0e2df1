// Package worldtest drives worlds through their exported API only, for
// black-box tests that span several packages (world, persistence).
package worldtest

import (
	"fmt"
	"path/filepath"
	"testing"

	"codechem.ai/internal/persistence/snapshot"
	"codechem.ai/internal/sim/spatial"
	"codechem.ai/internal/sim/tuning"
	"codechem.ai/internal/sim/world"
)

// Harness owns one world and records the statistics of every tick it steps.
type Harness struct {
	T *testing.T
	W *world.World

	Trace []world.Stats
}

func NewHarness(t *testing.T, id string, tu tuning.Tuning) *Harness {
	t.Helper()
	w, err := world.New(world.Config{ID: id, Tuning: tu}, nil, nil)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return &Harness{T: t, W: w}
}

// SmallTuning is a busy but small soup: frequent vent bursts, damage on,
// several bonding workers.
func SmallTuning(seed int64) tuning.Tuning {
	tu := tuning.Defaults()
	tu.Seed = seed
	tu.WorldSize = []int{6, 6, 24}
	tu.Vent.EveryTicks = 1
	tu.Vent.Burst = 3
	tu.Vent.Energy = 20
	tu.Bonding.MinStrength = 0.2
	tu.Bonding.Workers = 4
	tu.Registry.PruneEveryTicks = 25
	tu.Registry.PruneMaxAge = 60
	return tu
}

// StepFor advances n ticks.
func (h *Harness) StepFor(n int) {
	for i := 0; i < n; i++ {
		h.W.StepOnce()
		h.Trace = append(h.Trace, h.W.Metrics().Stats)
	}
}

// LastTick is the most recently simulated tick.
func (h *Harness) LastTick() uint64 {
	h.T.Helper()
	next := h.W.CurrentTick()
	if next == 0 {
		h.T.Fatalf("no tick simulated yet")
	}
	return next - 1
}

// Resume writes a snapshot of the last tick to disk, reads it back and
// imports it into a fresh world built from tu.
func (h *Harness) Resume(tu tuning.Tuning) *Harness {
	h.T.Helper()
	tick := h.LastTick()
	path := filepath.Join(h.T.TempDir(), fmt.Sprintf("%d.snap.zst", tick))
	if err := snapshot.WriteSnapshot(path, h.W.ExportSnapshot(tick)); err != nil {
		h.T.Fatalf("write snapshot: %v", err)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		h.T.Fatalf("read snapshot: %v", err)
	}
	next := NewHarness(h.T, h.W.ID(), tu)
	if err := next.W.ImportSnapshot(snap); err != nil {
		h.T.Fatalf("import snapshot: %v", err)
	}
	return next
}

// Reproducible strips the fields a resumed world cannot match: stability
// scores age with their cache, spatial counters restart on import.
func Reproducible(s world.Stats) world.Stats {
	s.AvgStability = 0
	s.Spatial = spatial.Stats{}
	return s
}
