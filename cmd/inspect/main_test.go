package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"codechem.ai/internal/persistence/indexdb"
	persistlog "codechem.ai/internal/persistence/log"
	"codechem.ai/internal/sim/tuning"
	"codechem.ai/internal/sim/world"
)

func TestRebuildWorldAndPrintSnapshot(t *testing.T) {
	tu := tuning.Defaults()
	tu.WorldSize = []int{8, 8, 16}
	src, err := world.New(world.Config{ID: "soup", Tuning: tu}, nil, nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	for i := 0; i < 12; i++ {
		src.StepOnce()
	}
	snap := src.ExportSnapshot(11)

	w, err := rebuildWorld(snap, "", "")
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if w.CurrentTick() != 12 || w.Size() != [3]int{8, 8, 16} {
		t.Fatalf("tick=%d size=%v", w.CurrentTick(), w.Size())
	}

	var buf bytes.Buffer
	printSnapshot(&buf, snap, w, 5)
	out := buf.String()
	if !strings.Contains(out, "world=soup tick=11") || !strings.Contains(out, "size=8x8x16") {
		t.Fatalf("summary:\n%s", out)
	}
}

func TestPrintTicks_Range(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewTickLogger(dir)
	for _, tick := range []uint64{0, 10, 20, 30} {
		if err := l.WriteTick(world.TickLogEntry{Tick: tick, Stats: world.Stats{Tick: tick, Tokens: int(tick) + 1}}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var buf bytes.Buffer
	if err := printTicks(&buf, dir, 10, 20); err != nil {
		t.Fatalf("print: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "10") || !strings.HasPrefix(lines[2], "20") {
		t.Fatalf("rows:\n%s", buf.String())
	}

	if err := printTicks(&buf, t.TempDir(), 0, 0); err == nil {
		t.Fatalf("expected error for an empty log")
	}
}

func TestDiffStats(t *testing.T) {
	a := world.Stats{Tokens: 3, Chains: 1, BondsFormed: 4}
	b := a
	b.Spatial.Rebuilds = 7
	if d := diffStats(a, b); d != "" {
		t.Fatalf("spatial counters should be ignored: %s", d)
	}
	b.BondsFormed = 5
	if d := diffStats(a, b); d != "bonds_formed got=4 want=5" {
		t.Fatalf("diff = %q", d)
	}
}

func TestPrintIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = idx.WriteTick(world.TickLogEntry{
		Tick:      40,
		Stats:     world.Stats{Tick: 40, Chains: 1},
		TopChains: []world.ChainSummary{{ID: 3, Length: 4, Stability: 0.8, Valid: true, Code: "return x + y"}},
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var buf bytes.Buffer
	if err := printIndex(&buf, path, 5); err != nil {
		t.Fatalf("print: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "latest_tick=40") || !strings.Contains(out, "return x + y") {
		t.Fatalf("index output:\n%s", out)
	}
}
