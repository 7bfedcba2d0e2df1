// Command inspect summarises a soup from its persisted artifacts: a
// snapshot, the compressed tick log, or the sqlite chain-history index.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"codechem.ai/internal/persistence/indexdb"
	persistlog "codechem.ai/internal/persistence/log"
	"codechem.ai/internal/persistence/snapshot"
	"codechem.ai/internal/sim/grammar"
	"codechem.ai/internal/sim/tuning"
	"codechem.ai/internal/sim/world"
)

func main() {
	var (
		snapPath    = flag.String("snapshot", "", "path to .snap.zst")
		worldDir    = flag.String("events", "", "world data dir whose events/ holds events-*.jsonl.zst")
		dbPath      = flag.String("db", "", "path to the sqlite index (world.sqlite)")
		tuningPath  = flag.String("tuning", "", "tuning.yaml used to rebuild the world (default: built-in)")
		grammarPath = flag.String("grammar", "", "grammar.json used to rebuild the world (default: built-in)")
		top         = flag.Int("top", 10, "how many chains to list")
		verify      = flag.Bool("verify", false, "with -snapshot and -events: re-simulate from the snapshot and compare against the tick log")
		fromTick    = flag.Uint64("from_tick", 0, "first tick to print from the tick log (inclusive)")
		toTick      = flag.Uint64("to_tick", 0, "last tick to print or verify (inclusive, 0: all)")
	)
	flag.Parse()

	if *snapPath == "" && *worldDir == "" && *dbPath == "" {
		fmt.Fprintln(os.Stderr, "need at least one of -snapshot, -events, -db")
		os.Exit(2)
	}
	out := os.Stdout

	var w *world.World
	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fail("read snapshot", err)
		}
		w, err = rebuildWorld(snap, *tuningPath, *grammarPath)
		if err != nil {
			fail("rebuild world", err)
		}
		printSnapshot(out, snap, w, *top)
	}

	if *worldDir != "" {
		if *verify {
			if w == nil {
				fmt.Fprintln(os.Stderr, "-verify needs -snapshot")
				os.Exit(2)
			}
			checked, err := verifyTicks(w, *worldDir, *toTick)
			if err != nil {
				fail("verify", err)
			}
			fmt.Fprintf(out, "verify ok: checked=%d recorded ticks\n", checked)
		} else if err := printTicks(out, *worldDir, *fromTick, *toTick); err != nil {
			fail("read tick log", err)
		}
	}

	if *dbPath != "" {
		if err := printIndex(out, *dbPath, *top); err != nil {
			fail("read index", err)
		}
	}
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}

// rebuildWorld imports snap into a world whose shape matches the snapshot.
func rebuildWorld(snap snapshot.SnapshotV1, tuningPath, grammarPath string) (*world.World, error) {
	tune := tuning.Defaults()
	if tuningPath != "" {
		t, err := tuning.Load(tuningPath)
		if err != nil {
			return nil, err
		}
		tune = t
	}
	tune.Seed = snap.Seed
	tune.TickRateHz = snap.TickRate
	tune.WorldSize = []int{snap.Size[0], snap.Size[1], snap.Size[2]}
	if snap.StatsEveryTicks > 0 {
		tune.StatsEveryTicks = snap.StatsEveryTicks
	}
	if snap.SnapshotEveryTicks > 0 {
		tune.SnapshotEveryTicks = snap.SnapshotEveryTicks
	}

	rules, _, err := grammar.LoadOrDefault(grammarPath)
	if err != nil {
		return nil, err
	}
	w, err := world.New(world.Config{ID: snap.Header.WorldID, Tuning: tune}, rules, nil)
	if err != nil {
		return nil, err
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return nil, err
	}
	w.Registry().UpdateAllStabilities(snap.Header.Tick)
	return w, nil
}

func printSnapshot(out io.Writer, snap snapshot.SnapshotV1, w *world.World, top int) {
	var damaged, bonds int
	for _, t := range snap.Tokens {
		if t.Damaged {
			damaged++
		}
		bonds += len(t.Bonds)
	}
	fmt.Fprintf(out, "snapshot v%d world=%s tick=%d seed=%d size=%dx%dx%d grammar=%.12s\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed,
		snap.Size[0], snap.Size[1], snap.Size[2], snap.GrammarDigest)
	fmt.Fprintf(out, "tokens=%d damaged=%d bonds=%d chains=%d bonds_formed=%d bonds_broken=%d spawned=%d deactivated=%d\n",
		len(snap.Tokens), damaged, bonds, len(snap.Chains),
		snap.Counters.BondsFormed, snap.Counters.BondsBroken, snap.Counters.Spawned, snap.Counters.Deactivated)
	printChains(out, w.TopChains(top))
}

func printChains(out io.Writer, chains []world.ChainSummary) {
	if len(chains) == 0 {
		fmt.Fprintln(out, "no chains")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLEN\tSTABILITY\tVALID\tCODE")
	for _, c := range chains {
		fmt.Fprintf(tw, "%d\t%d\t%.3f\t%v\t%s\n", c.ID, c.Length, c.Stability, c.Valid, c.Code)
	}
	_ = tw.Flush()
}

func printTicks(out io.Writer, worldDir string, from, to uint64) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICK\tTOKENS\tCHAINS\tVALID\tMAXLEN\tFORMED\tBROKEN\tEVENTS")
	var rows int
	err := persistlog.ReadTicks(worldDir, func(e world.TickLogEntry) error {
		if e.Tick < from {
			return nil
		}
		if to != 0 && e.Tick > to {
			return errStop
		}
		rows++
		s := e.Stats
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			e.Tick, s.Tokens, s.Chains, s.ValidChains, s.MaxChainLen, s.BondsFormed, s.BondsBroken, len(e.Events))
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("no tick entries under %s", persistlog.EventsDir(worldDir))
	}
	return tw.Flush()
}

var errStop = errors.New("stop")

// verifyTicks steps w forward and compares its statistics with every tick
// log entry recorded after the snapshot.
func verifyTicks(w *world.World, worldDir string, to uint64) (int, error) {
	start := w.CurrentTick()
	checked := 0
	err := persistlog.ReadTicks(worldDir, func(e world.TickLogEntry) error {
		if e.Tick < start {
			return nil
		}
		if to != 0 && e.Tick > to {
			return errStop
		}
		for w.CurrentTick() <= e.Tick {
			w.StepOnce()
		}
		got := w.Metrics().Stats
		if d := diffStats(got, e.Stats); d != "" {
			return fmt.Errorf("tick %d: %s", e.Tick, d)
		}
		checked++
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return checked, err
	}
	return checked, nil
}

// diffStats compares the fields that must be reproducible from a snapshot.
// Spatial counters restart on import and are ignored.
func diffStats(got, want world.Stats) string {
	type field struct {
		name      string
		got, want uint64
	}
	fields := []field{
		{"tokens", uint64(got.Tokens), uint64(want.Tokens)},
		{"total_mass", uint64(got.TotalMass), uint64(want.TotalMass)},
		{"total_energy", uint64(got.TotalEnergy), uint64(want.TotalEnergy)},
		{"chains", uint64(got.Chains), uint64(want.Chains)},
		{"valid_chains", uint64(got.ValidChains), uint64(want.ValidChains)},
		{"bonds_formed", got.BondsFormed, want.BondsFormed},
		{"bonds_broken", got.BondsBroken, want.BondsBroken},
		{"spawned", got.Spawned, want.Spawned},
		{"deactivated", got.Deactivated, want.Deactivated},
	}
	for _, f := range fields {
		if f.got != f.want {
			return fmt.Sprintf("%s got=%d want=%d", f.name, f.got, f.want)
		}
	}
	return ""
}

func printIndex(out io.Writer, path string, top int) error {
	r, err := indexdb.OpenReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	tick, ok, err := r.LatestTick()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "index: no ticks recorded")
		return nil
	}
	grammarDigest, err := r.ConfigDigest("grammar")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "index latest_tick=%d grammar=%.12s\n", tick, grammarDigest)
	if s, ok, err := r.LatestSnapshot(); err != nil {
		return err
	} else if ok {
		fmt.Fprintf(out, "latest snapshot tick=%d tokens=%d chains=%d path=%s\n", s.Tick, s.Tokens, s.Chains, s.Path)
	}

	rows, err := r.TopChains(tick, top)
	if err != nil {
		return err
	}
	chains := make([]world.ChainSummary, 0, len(rows))
	for _, c := range rows {
		chains = append(chains, world.ChainSummary{ID: c.ChainID, Length: c.Length, Stability: c.Stability, Valid: c.Valid, Code: c.Code})
	}
	printChains(out, chains)
	return nil
}
