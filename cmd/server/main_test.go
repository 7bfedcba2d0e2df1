package main

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codechem.ai/internal/persistence/indexdb"
	"codechem.ai/internal/persistence/snapshot"
	"codechem.ai/internal/sim/tuning"
	"codechem.ai/internal/sim/world"
)

func TestLatestSnapshot(t *testing.T) {
	dir := t.TempDir()
	if got := latestSnapshot(dir); got != "" {
		t.Fatalf("empty dir: %q", got)
	}
	snaps := filepath.Join(dir, "snapshots")
	if err := os.MkdirAll(filepath.Join(snaps, "900.snap.zst"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"30.snap.zst", "120.snap.zst", "99.snap.zst", "abc.snap.zst", "500.snap.zst.tmp"} {
		if err := os.WriteFile(filepath.Join(snaps, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if got := latestSnapshot(dir); filepath.Base(got) != "120.snap.zst" {
		t.Fatalf("latest = %q", got)
	}
}

type countingLogger struct{ n int }

func (c *countingLogger) WriteTick(world.TickLogEntry) error { c.n++; return nil }

func TestMultiTickLogger_ToleratesNil(t *testing.T) {
	a := &countingLogger{}
	m := multiTickLogger{a: a}
	if err := m.WriteTick(world.TickLogEntry{Tick: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if a.n != 1 {
		t.Fatalf("a.n = %d", a.n)
	}
}

func TestOpenRuntimeIndex(t *testing.T) {
	idx, err := openRuntimeIndex(t.TempDir(), true)
	if err != nil || idx != nil {
		t.Fatalf("disabled index = %v %v", idx, err)
	}

	t.Setenv("CC_INDEX_BACKEND", "bogus")
	if _, err := openRuntimeIndex(t.TempDir(), false); err == nil {
		t.Fatalf("expected unsupported backend error")
	}

	t.Setenv("CC_INDEX_BACKEND", "")
	dir := t.TempDir()
	idx, err = openRuntimeIndex(dir, false)
	if err != nil || idx == nil {
		t.Fatalf("sqlite index = %v %v", idx, err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(indexPath(dir)); err != nil {
		t.Fatalf("index file: %v", err)
	}
}

func TestSnapshotWriter_FinalSnapshotResumes(t *testing.T) {
	tu := tuning.Defaults()
	tu.WorldSize = []int{8, 8, 16}
	w, err := world.New(world.Config{ID: "w", Tuning: tu}, nil, nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	dir := t.TempDir()
	sw := newSnapshotWriter(dir, nil, log.New(io.Discard, "", 0))

	sw.writeFinal(w)
	if latestSnapshot(dir) != "" {
		t.Fatalf("no snapshot expected before the first tick")
	}

	for i := 0; i < 7; i++ {
		w.StepOnce()
	}
	sw.writeFinal(w)
	path := latestSnapshot(dir)
	if filepath.Base(path) != "6.snap.zst" {
		t.Fatalf("final snapshot = %q", path)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	w2, err := world.New(world.Config{ID: "w", Tuning: tu}, nil, nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	if err := w2.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if w2.CurrentTick() != w.CurrentTick() {
		t.Fatalf("resume tick %d, want %d", w2.CurrentTick(), w.CurrentTick())
	}
}

func TestWriteMetrics(t *testing.T) {
	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "i.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	m := world.Metrics{Tick: 42, StepMS: 1.5, Stats: world.Stats{Tokens: 9, Chains: 2, BondsFormed: 5}}
	var buf bytes.Buffer
	writeMetrics(&buf, "soup", m, idx)
	out := buf.String()
	for _, want := range []string{
		`codechem_world_tick{world="soup"} 42`,
		`codechem_world_step_ms{world="soup"} 1.500000`,
		`codechem_tokens{world="soup"} 9`,
		`# TYPE codechem_bonds_formed_total counter`,
		`codechem_bonds_formed_total{world="soup"} 5`,
		`codechem_index_queue_depth{world="soup"}`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	writeMetrics(&buf, "soup", m, nil)
	if strings.Contains(buf.String(), "index_") {
		t.Fatalf("index metrics without an index")
	}
}

func TestOrDefault(t *testing.T) {
	if orDefault("  ", "d") != "d" || orDefault(" x ", "d") != "x" {
		t.Fatalf("orDefault")
	}
}
