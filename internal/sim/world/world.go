package world

import (
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"codechem.ai/internal/persistence/snapshot"
	"codechem.ai/internal/sim/bonding"
	"codechem.ai/internal/sim/chain"
	"codechem.ai/internal/sim/geom"
	"codechem.ai/internal/sim/grammar"
	"codechem.ai/internal/sim/spatial"
	"codechem.ai/internal/sim/token"
	"codechem.ai/internal/sim/tuning"
)

type Config struct {
	ID     string
	Tuning tuning.Tuning
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// TickLogEntry is written every StatsEveryTicks ticks. Events cover every
// tick since the previous entry.
type TickLogEntry struct {
	Tick      uint64          `json:"tick"`
	Stats     Stats           `json:"stats"`
	Events    []bonding.Event `json:"events,omitempty"`
	TopChains []ChainSummary  `json:"top_chains,omitempty"`
}

type ChainSummary struct {
	ID        uint64  `json:"id"`
	Length    int     `json:"length"`
	Mass      int     `json:"mass"`
	Energy    int     `json:"energy"`
	Stability float64 `json:"stability"`
	Valid     bool    `json:"valid"`
	Code      string  `json:"code"`
}

const topChainsLogged = 10

// World runs the token soup. Everything except the read-only accessors must
// be used from the goroutine running Run (or calling StepOnce).
type World struct {
	cfg   Config
	tune  tuning.Tuning
	size  [3]int
	rules *grammar.RuleSet
	log   *log.Logger

	tick atomic.Uint64

	pool     *token.Pool
	index    *spatial.Index
	registry *chain.Registry
	engine   *bonding.Engine
	manager  *bonding.Manager
	params   chain.Params

	ventPos     geom.Vec3i
	spawned     uint64
	deactivated uint64

	pendingEvents []bonding.Event

	stop          chan struct{}
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	observers     map[string]*observerClient

	// Optional (may be nil).
	tickLogger   TickLogger
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value // Metrics
}

// New builds an empty world. rules falls back to the built-in grammar and a
// nil logger discards output.
func New(cfg Config, rules *grammar.RuleSet, logger *log.Logger) (*World, error) {
	tu := cfg.Tuning
	if len(tu.WorldSize) == 0 {
		tu = tuning.Defaults()
	}
	if err := tu.Validate(); err != nil {
		return nil, err
	}
	if len(tu.WorldSize) != 3 {
		return nil, fmt.Errorf("world_size needs 3 dimensions, got %d", len(tu.WorldSize))
	}
	if tu.TickRateHz <= 0 {
		return nil, fmt.Errorf("tick_rate_hz must be positive, got %d", tu.TickRateHz)
	}
	if rules == nil {
		rules = grammar.Default()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	cfg.Tuning = tu

	size := [3]int{tu.WorldSize[0], tu.WorldSize[1], tu.WorldSize[2]}
	ventPos := geom.Vec3i{X: size[0] / 2, Y: size[1] / 2, Z: 0}
	if len(tu.Vent.Position) == 3 {
		ventPos = geom.Vec3i{X: tu.Vent.Position[0], Y: tu.Vent.Position[1], Z: tu.Vent.Position[2]}
	}

	w := &World{
		cfg:           cfg,
		tune:          tu,
		size:          size,
		rules:         rules,
		log:           logger,
		params:        chainParams(tu.Chain),
		ventPos:       ventPos,
		stop:          make(chan struct{}),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 64),
		observerLeave: make(chan string, 16),
		observers:     map[string]*observerClient{},
	}
	w.index = spatial.New(spatial.Config{
		SizeX:        size[0],
		SizeY:        size[1],
		SizeZ:        size[2],
		MaxOccupancy: tu.Spatial.MaxOccupancy,
		MaxDepth:     tu.Spatial.MaxDepth,
		RebuildEvery: tu.Spatial.RebuildEvery,
		CellCapacity: tu.Spatial.CellCapacity,
	})
	if !w.index.InBounds(ventPos) {
		return nil, fmt.Errorf("vent position %v outside world %v", ventPos, size)
	}
	w.install(token.NewPool(), w.index, chain.NewRegistry())
	return w, nil
}

// install swaps in a pool, index and registry and rebuilds the bonding
// manager around them. Counters start from zero.
func (w *World) install(pool *token.Pool, index *spatial.Index, registry *chain.Registry) {
	w.pool, w.index, w.registry = pool, index, registry
	w.engine = bonding.NewEngine(w.rules, bondingConfig(w.tune.Bonding))
	w.manager = bonding.NewManager(w.engine, registry, index, pool, w.params)
	w.spawned, w.deactivated = 0, 0
	w.pendingEvents = nil
}

func bondingConfig(b tuning.Bonding) bonding.Config {
	c := bonding.DefaultConfig()
	c.GrammarWeight = b.GrammarWeight
	c.ElectroWeight = b.ElectroWeight
	c.MinStrength = b.MinStrength
	c.ReverseFactor = b.ReverseFactor
	c.MinCost = b.MinCost
	c.MaxCost = b.MaxCost
	c.CostCovalent = b.CostCovalent
	c.CostIonic = b.CostIonic
	c.CostVanDerWaals = b.CostVanDerWaals
	c.Workers = b.Workers
	return c
}

func chainParams(c tuning.Chain) chain.Params {
	return chain.Params{
		StabilityWindow: uint64(c.StabilityWindow),
		WeightLength:    c.WeightLength,
		WeightBond:      c.WeightBond,
		WeightValidity:  c.WeightValidity,
		WeightAge:       c.WeightAge,
		AgeSaturation:   uint64(c.AgeSaturation),
	}
}

func (w *World) SetTickLogger(l TickLogger) { w.tickLogger = l }

func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() Config { return w.cfg }

func (w *World) TickRateHz() int { return w.tune.TickRateHz }

func (w *World) Size() [3]int { return w.size }

func (w *World) VentPos() geom.Vec3i { return w.ventPos }

func (w *World) Rules() *grammar.RuleSet { return w.rules }

// CurrentTick is the next tick to simulate.
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// The components below tolerate concurrent readers while the loop runs.

func (w *World) Pool() *token.Pool { return w.pool }

func (w *World) Index() *spatial.Index { return w.index }

func (w *World) Registry() *chain.Registry { return w.registry }

func (w *World) Manager() *bonding.Manager { return w.manager }

// TopChains summarises the n most stable chains.
func (w *World) TopChains(n int) []ChainSummary {
	if n <= 0 {
		return nil
	}
	ranked := w.registry.GetByStability()
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]ChainSummary, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, summarize(c))
	}
	return out
}

func summarize(c *chain.Chain) ChainSummary {
	return ChainSummary{
		ID:        c.ID(),
		Length:    c.Len(),
		Mass:      c.Mass(),
		Energy:    c.Energy(),
		Stability: c.CachedStability(),
		Valid:     c.IsValid(),
		Code:      c.CodeString(),
	}
}
