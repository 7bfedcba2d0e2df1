package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "codechem.ai/internal/persistence/log"
	"codechem.ai/internal/persistence/snapshot"
	"codechem.ai/internal/sim/grammar"
	"codechem.ai/internal/sim/tuning"
	"codechem.ai/internal/sim/world"
	"codechem.ai/internal/transport/observer"
)

func main() {
	var (
		addr        = flag.String("addr", "127.0.0.1:8080", "http listen address")
		worldID     = flag.String("world", "soup_1", "world id")
		seed        = flag.Int64("seed", 0, "world seed (overrides tuning; fresh worlds only)")
		configDir   = flag.String("configs", "./configs", "config directory")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		grammarPath = flag.String("grammar", "", "path to grammar.json (default: <configs>/grammar.json)")
		ticks       = flag.Uint64("ticks", 0, "simulate this many ticks as fast as possible, snapshot, and exit (0: serve)")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite chain-history index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	seedSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			seedSet = true
		}
	})

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	tune, err := loadTuning(orDefault(*tuningPath, filepath.Join(*configDir, "tuning.yaml")), logger)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	rules, builtin, err := grammar.LoadOrDefault(orDefault(*grammarPath, filepath.Join(*configDir, "grammar.json")))
	if err != nil {
		logger.Fatalf("load grammar: %v", err)
	}
	if builtin {
		logger.Printf("grammar file not found; using built-in rules %q", rules.Name)
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}

	var snap *snapshot.SnapshotV1
	if snapshotToLoad != "" {
		s, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if s.Header.WorldID != "" && s.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, s.Header.WorldID)
		}
		// The soup's shape comes from the snapshot, behaviour from tuning.
		tune.Seed = s.Seed
		tune.TickRateHz = s.TickRate
		tune.WorldSize = []int{s.Size[0], s.Size[1], s.Size[2]}
		snap = &s
	} else if seedSet {
		tune.Seed = *seed
	}

	w, err := world.New(world.Config{ID: *worldID, Tuning: tune}, rules, log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	if snap != nil {
		if err := w.ImportSnapshot(*snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	}

	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertConfigs(rules, tune); err != nil {
			logger.Printf("index: upsert configs: %v", err)
		}
	}

	tickLog := persistlog.NewTickLogger(worldDir)
	defer tickLog.Close()
	w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})

	ctx, cancel := signalContext()
	defer cancel()

	snaps := newSnapshotWriter(worldDir, idx, logger)
	if *ticks > 0 {
		runBatch(ctx, w, *ticks, logger)
		snaps.writeFinal(w)
		return
	}

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		snaps.run(ctx, snapCh)
	}()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, *worldID, w.Metrics(), idx)
	})
	observer.NewServer(w, log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lmicroseconds)).Register(mux)
	if envBool("CC_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (world=%s tick=%d)", *addr, *worldID, w.CurrentTick())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
		cancel()
	}

	<-runDone
	<-snapDone
	snaps.writeFinal(w)
}

// runBatch steps the world without pacing until n ticks ran or ctx ends.
func runBatch(ctx context.Context, w *world.World, n uint64, logger *log.Logger) {
	start := time.Now()
	for i := uint64(0); i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		w.StepOnce()
	}
	m := w.Metrics()
	logger.Printf("batch: tick=%d tokens=%d chains=%d valid=%d longest=%d in %s",
		w.CurrentTick(), m.Stats.Tokens, m.Stats.Chains, m.Stats.ValidChains, m.Stats.MaxChainLen,
		time.Since(start).Round(time.Millisecond))
}

func loadTuning(path string, logger *log.Logger) (tuning.Tuning, error) {
	tune, err := tuning.Load(path)
	if err == nil {
		return tune, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		logger.Printf("tuning not found (%s); using defaults", path)
		return tuning.Defaults(), nil
	}
	return tuning.Tuning{}, err
}

func orDefault(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}
