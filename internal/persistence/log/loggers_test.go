package log

import (
	"path/filepath"
	"testing"
	"time"

	"codechem.ai/internal/sim/world"
)

func TestTickLogger_RoundTripAcrossRotation(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	for tick := uint64(0); tick < 3; tick++ {
		e := world.TickLogEntry{Tick: tick * 10, Stats: world.Stats{Tick: tick * 10, Tokens: int(tick)}}
		if tick == 2 {
			clock = clock.Add(2 * time.Minute)
			e.TopChains = []world.ChainSummary{{ID: 7, Length: 3, Code: "int x ;"}}
		}
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(EventsDir(dir), "events")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "events-2026-03-01-10.jsonl.zst" {
		t.Fatalf("files = %v", files)
	}

	var got []world.TickLogEntry
	if err := ReadTicks(dir, func(e world.TickLogEntry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 || got[2].Tick != 20 || got[1].Stats.Tokens != 1 {
		t.Fatalf("entries = %+v", got)
	}
	if len(got[2].TopChains) != 1 || got[2].TopChains[0].Code != "int x ;" {
		t.Fatalf("top chains = %+v", got[2].TopChains)
	}
}

func TestJSONLZstdWriter_AppendsAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	fixed := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	for i := 0; i < 2; i++ {
		w := NewJSONLZstdWriter(dir, "events")
		w.now = fixed
		if err := w.Write(map[string]int{"n": i}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	files, _ := Files(dir, "events")
	if len(files) != 1 {
		t.Fatalf("files = %v", files)
	}
	n := 0
	if err := ReadLines(files[0], func([]byte) error { n++; return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 2 {
		t.Fatalf("lines = %d, want one per session", n)
	}
}
