package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codechem.ai/internal/persistence/snapshot"
	"codechem.ai/internal/sim/world"
)

type snapshotWriter struct {
	dir string
	idx runtimeIndex
	log *log.Logger
}

func newSnapshotWriter(worldDir string, idx runtimeIndex, logger *log.Logger) *snapshotWriter {
	return &snapshotWriter{dir: filepath.Join(worldDir, "snapshots"), idx: idx, log: logger}
}

// run drains the world's snapshot sink until ctx is done.
func (s *snapshotWriter) run(ctx context.Context, ch <-chan snapshot.SnapshotV1) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			s.write(snap)
		}
	}
}

func (s *snapshotWriter) write(snap snapshot.SnapshotV1) string {
	path := filepath.Join(s.dir, fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		s.log.Printf("snapshot write: %v", err)
		return ""
	}
	if s.idx != nil {
		s.idx.RecordSnapshot(path, snap)
	}
	return path
}

// writeFinal snapshots the last simulated tick. Call only once the world
// loop has stopped.
func (s *snapshotWriter) writeFinal(w *world.World) {
	next := w.CurrentTick()
	if next == 0 {
		return
	}
	if path := s.write(w.ExportSnapshot(next - 1)); path != "" {
		s.log.Printf("final snapshot %s", filepath.Base(path))
	}
}

// latestSnapshot returns the highest-tick <tick>.snap.zst under worldDir.
func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
