package bonding

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"codechem.ai/internal/sim/chain"
	"codechem.ai/internal/sim/geom"
	"codechem.ai/internal/sim/spatial"
	"codechem.ai/internal/sim/token"
)

type EventKind string

const (
	EventBondFormed  EventKind = "BOND_FORMED"
	EventBondBroken  EventKind = "BOND_BROKEN"
	EventChainMerged EventKind = "CHAIN_MERGED"
	EventChainSplit  EventKind = "CHAIN_SPLIT"
	EventChainPruned EventKind = "CHAIN_PRUNED"
)

type Event struct {
	Tick     uint64         `json:"tick"`
	Kind     EventKind      `json:"kind"`
	A        token.ID       `json:"a,omitempty"`
	B        token.ID       `json:"b,omitempty"`
	BondType token.BondType `json:"bond_type,omitempty"`
	Strength float64        `json:"strength,omitempty"`
	Cost     int            `json:"cost,omitempty"`
	ChainID  uint64         `json:"chain_id,omitempty"`
	OtherID  uint64         `json:"other_id,omitempty"`
}

// Manager applies bonds between tokens and keeps chains in step with the
// bonded sets: every bond joins two consecutive members of one chain, and
// only unchained tokens or chain edges can take a new bond.
//
// Mutating methods must be called from a single goroutine (the tick loop).
// Reads of the registry and the index may happen concurrently.
type Manager struct {
	engine   *Engine
	registry *chain.Registry
	index    *spatial.Index
	pool     *token.Pool
	params   chain.Params

	mu     sync.Mutex
	events []Event

	formed atomic.Uint64
	broken atomic.Uint64
}

// NewManager wires the engine to the registry. index is needed for the cell
// passes and pool for resolving bond partners; either may be nil in tests
// that only call AttemptBond and BreakBond.
func NewManager(engine *Engine, registry *chain.Registry, index *spatial.Index, pool *token.Pool, params chain.Params) *Manager {
	return &Manager{
		engine:   engine,
		registry: registry,
		index:    index,
		pool:     pool,
		params:   params,
	}
}

func (m *Manager) Engine() *Engine           { return m.engine }
func (m *Manager) Registry() *chain.Registry { return m.registry }

// BondsFormed and BondsBroken are cumulative counters.
func (m *Manager) BondsFormed() uint64 { return m.formed.Load() }
func (m *Manager) BondsBroken() uint64 { return m.broken.Load() }

// SetCounters restores cumulative counters from a snapshot.
func (m *Manager) SetCounters(formed, broken uint64) {
	m.formed.Store(formed)
	m.broken.Store(broken)
}

// Events drains the events recorded since the previous call.
func (m *Manager) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.events
	m.events = nil
	return out
}

func (m *Manager) emit(e Event) {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
}

// GetTokenChain resolves t's back-reference through the registry.
func (m *Manager) GetTokenChain(t *token.Token) (*chain.Chain, bool) {
	id, _, ok := t.ChainRef()
	if !ok {
		return nil, false
	}
	c, ok := m.registry.Get(id)
	if !ok || !c.Contains(t) {
		return nil, false
	}
	return c, true
}

// GetActiveChains returns chains with at least two members, ordered by id.
func (m *Manager) GetActiveChains() []*chain.Chain {
	all := m.registry.GetAll()
	out := all[:0]
	for _, c := range all {
		if c.Len() >= 2 {
			out = append(out, c)
		}
	}
	return out
}

// AttemptBond bonds a and b if the engine allows it, the pair can pay the
// energy cost and the bond keeps chains linear. On failure nothing changes.
func (m *Manager) AttemptBond(a, b *token.Token, tick uint64) bool {
	as, ok := m.engine.evaluate(a, b)
	if !ok {
		return false
	}
	if a.Energy+b.Energy < as.Cost {
		return false
	}
	ca, okA := m.attachable(a)
	cb, okB := m.attachable(b)
	if !okA || !okB {
		return false
	}
	if ca != nil && ca == cb {
		return false
	}

	if !token.Link(a, b, token.Bond{Strength: as.Strength, Type: as.Type, FormedAt: tick}) {
		return false
	}
	ea, eb := a.Energy, b.Energy
	da, db := splitCost(as.Cost, ea, eb)
	a.Energy -= da
	b.Energy -= db

	id, ok := m.incorporate(a, b, ca, cb, as.Forward, tick)
	if !ok {
		token.Unlink(a, b)
		a.Energy, b.Energy = ea, eb
		return false
	}
	m.formed.Add(1)
	m.emit(Event{
		Tick: tick, Kind: EventBondFormed, A: a.ID, B: b.ID,
		BondType: as.Type, Strength: as.Strength, Cost: as.Cost, ChainID: id,
	})
	return true
}

// attachable reports whether t may take a new bond, returning its chain if
// it has one. Only chain edges can grow.
func (m *Manager) attachable(t *token.Token) (*chain.Chain, bool) {
	if !t.InChain() {
		return nil, t.BondCount() == 0
	}
	c, ok := m.GetTokenChain(t)
	if !ok {
		return nil, false
	}
	return c, c.IsEdge(t)
}

// splitCost divides cost between the endpoints in proportion to their
// energy; the rounding remainder goes to the richer one.
func splitCost(cost, ea, eb int) (int, int) {
	total := ea + eb
	if total <= 0 {
		return 0, 0
	}
	da := cost * ea / total
	db := cost * eb / total
	if rem := cost - da - db; rem > 0 {
		if ea >= eb {
			da += rem
		} else {
			db += rem
		}
	}
	return da, db
}

func (m *Manager) incorporate(a, b *token.Token, ca, cb *chain.Chain, forward bool, tick uint64) (uint64, bool) {
	switch {
	case ca == nil && cb == nil:
		first, second := a, b
		if !forward && (m.engine.Assess(b, a).Forward || b.ID < a.ID) {
			first, second = b, a
		}
		c := chain.New(m.engine.Rules(), m.params, tick, first)
		if c == nil || !c.Add(second, true, tick) {
			if c != nil {
				c.Release(tick)
			}
			return 0, false
		}
		return m.registry.Register(c), true
	case ca != nil && cb == nil:
		return ca.ID(), m.extend(ca, a, b, tick)
	case ca == nil && cb != nil:
		return cb.ID(), m.extend(cb, b, a, tick)
	}

	keep, gone := ca, cb
	if cb.Len() > ca.Len() || (cb.Len() == ca.Len() && cb.ID() < ca.ID()) {
		keep, gone = cb, ca
	}
	goneID := gone.ID()
	if !keep.Join(gone, tick) {
		return 0, false
	}
	m.registry.Unregister(goneID)
	m.emit(Event{Tick: tick, Kind: EventChainMerged, ChainID: keep.ID(), OtherID: goneID})
	return keep.ID(), true
}

// extend attaches t to c at the edge where anchor sits.
func (m *Manager) extend(c *chain.Chain, anchor, t *token.Token, tick uint64) bool {
	atTail := c.Tail() == anchor
	if c.Len() == 1 {
		atTail = m.engine.Assess(anchor, t).Forward || !m.engine.Assess(t, anchor).Forward
	}
	return c.Add(t, atTail, tick)
}

// BreakBond removes the bond between a and b and splits their chain between
// them. The head side keeps the chain identity; one-member leftovers are
// released.
func (m *Manager) BreakBond(a, b *token.Token, tick uint64) bool {
	if a == nil || b == nil || !a.Bonded(b.ID) {
		return false
	}
	c, inChain := m.GetTokenChain(a)
	token.Unlink(a, b)
	m.broken.Add(1)
	ev := Event{Tick: tick, Kind: EventBondBroken, A: a.ID, B: b.ID}

	if inChain && c.Contains(b) {
		ia, _ := c.IndexOf(a)
		ib, _ := c.IndexOf(b)
		k := ia
		if ib < k {
			k = ib
		}
		ev.ChainID = c.ID()
		if tail, ok := c.SplitAfter(k, tick); ok {
			m.settle(tail, tick)
		}
		m.settle(c, tick)
	}
	m.emit(ev)
	return true
}

// settle registers c if it still forms a chain, or releases it.
func (m *Manager) settle(c *chain.Chain, tick uint64) {
	id := c.ID()
	if c.Len() >= 2 {
		if id == 0 {
			id = m.registry.Register(c)
			m.emit(Event{Tick: tick, Kind: EventChainSplit, ChainID: id})
		}
		return
	}
	c.Release(tick)
	if id != 0 {
		m.registry.Unregister(id)
	}
}

// DetachEntity breaks every bond t holds and removes it from its chain, for
// example when t is damaged or deactivated. It reports whether t had bonds.
func (m *Manager) DetachEntity(t *token.Token, tick uint64) bool {
	if t == nil {
		return false
	}
	partners := t.BondedIDs()
	c, inChain := m.GetTokenChain(t)
	if inChain {
		members := c.Members()
		idx, _ := c.IndexOf(t)
		var neighbors []*token.Token
		if idx > 0 {
			neighbors = append(neighbors, members[idx-1])
		}
		if idx+1 < len(members) {
			neighbors = append(neighbors, members[idx+1])
		}
		parts, _ := c.Remove(t, tick)
		for _, n := range neighbors {
			if token.Unlink(t, n) {
				m.broken.Add(1)
				m.emit(Event{Tick: tick, Kind: EventBondBroken, A: t.ID, B: n.ID, ChainID: c.ID()})
			}
		}
		if len(parts) == 2 {
			m.settle(parts[1], tick)
		}
		m.settle(c, tick)
	}
	// Bonds outside any chain should not exist; drop them if they do.
	for _, id := range t.BondedIDs() {
		if other := m.pool.Get(id); other != nil {
			token.Unlink(t, other)
			m.broken.Add(1)
			m.emit(Event{Tick: tick, Kind: EventBondBroken, A: t.ID, B: id})
		}
	}
	return len(partners) > 0
}

// EnforceGrammar breaks the first invalid bond of every chain that fails
// validation. It returns the number of bonds broken.
func (m *Manager) EnforceGrammar(tick uint64) int {
	n := 0
	for _, c := range m.registry.GetAll() {
		v := c.Validate()
		if v.Valid || len(v.InvalidPairs) == 0 {
			continue
		}
		members := c.Members()
		i := v.InvalidPairs[0]
		if i+1 >= len(members) {
			continue
		}
		if m.BreakBond(members[i], members[i+1], tick) {
			n++
		}
	}
	return n
}

// PruneStale dissolves chains left unmodified for more than maxAge ticks,
// breaking the bonds between their members.
func (m *Manager) PruneStale(tick, maxAge uint64) int {
	pruned := m.registry.PruneStale(tick, maxAge)
	for _, c := range pruned {
		id := c.ID()
		members := c.Release(tick)
		for i := 0; i+1 < len(members); i++ {
			if token.Unlink(members[i], members[i+1]) {
				m.broken.Add(1)
			}
		}
		m.emit(Event{Tick: tick, Kind: EventChainPruned, ChainID: id})
	}
	return len(pruned)
}

type candidate struct {
	a, b     *token.Token
	strength float64
}

// plan lists legal pairs among the tokens of cell and between them and the
// cell directly below, strongest first. It only reads token state.
func (m *Manager) plan(cell geom.Vec3i) []candidate {
	here := m.index.CellTokens(cell)
	if len(here) == 0 {
		return nil
	}
	below := m.index.CellTokens(geom.Vec3i{X: cell.X, Y: cell.Y, Z: cell.Z - 1})

	var out []candidate
	try := func(a, b *token.Token) {
		if as, ok := m.engine.evaluate(a, b); ok && a.Energy+b.Energy >= as.Cost {
			out = append(out, candidate{a: a, b: b, strength: as.Strength})
		}
	}
	for i := 0; i < len(here); i++ {
		for j := i + 1; j < len(here); j++ {
			try(here[i], here[j])
		}
		for _, o := range below {
			try(here[i], o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].strength != out[j].strength {
			return out[i].strength > out[j].strength
		}
		if out[i].a.ID != out[j].a.ID {
			return out[i].a.ID < out[j].a.ID
		}
		return out[i].b.ID < out[j].b.ID
	})
	return out
}

func (m *Manager) commit(cands []candidate, tick uint64) int {
	n := 0
	for _, c := range cands {
		if m.AttemptBond(c.a, c.b, tick) {
			n++
		}
	}
	return n
}

// ProcessCellBonding attempts bonds among the tokens of one active cell and
// the cell below it, returning the number formed.
func (m *Manager) ProcessCellBonding(cell geom.Vec3i, tick uint64) int {
	if m.index == nil {
		return 0
	}
	return m.commit(m.plan(cell), tick)
}

// ProcessActiveCells runs the bonding pass over every active cell. Candidate
// lists are planned concurrently, then committed in cell order on the
// calling goroutine so results do not depend on scheduling.
func (m *Manager) ProcessActiveCells(ctx context.Context, tick uint64) (int, error) {
	if m.index == nil {
		return 0, nil
	}
	cells := m.index.ActiveCells()
	plans := make([][]candidate, len(cells))

	workers := m.engine.cfg.Workers
	if workers <= 1 || len(cells) < 2 {
		for i, c := range cells {
			plans[i] = m.plan(c)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, c := range cells {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				plans[i] = m.plan(c)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
	}

	n := 0
	for _, p := range plans {
		n += m.commit(p, tick)
	}
	return n, nil
}
