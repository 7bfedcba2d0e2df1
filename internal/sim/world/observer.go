package world

import (
	"encoding/json"
	"sort"

	"codechem.ai/internal/observerproto"
	"codechem.ai/internal/sim/bonding"
)

// ObserverJoinRequest registers a read-only observer session that receives
// one TICK message per tick on TickOut.
//
// All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID string
	TickOut   chan []byte

	TopChains int
	Events    bool
}

// ObserverSubscribeRequest updates an existing observer session subscription settings.
type ObserverSubscribeRequest struct {
	SessionID string

	TopChains int
	Events    bool
}

type observerClient struct {
	id      string
	tickOut chan []byte

	topChains int
	events    bool
}

func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }

func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }

func (w *World) ObserverLeave() chan<- string { return w.observerLeave }

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil {
		return
	}
	w.observers[req.SessionID] = &observerClient{
		id:        req.SessionID,
		tickOut:   req.TickOut,
		topChains: req.TopChains,
		events:    req.Events,
	}
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := w.observers[req.SessionID]
	if c == nil {
		return
	}
	c.topChains = req.TopChains
	c.events = req.Events
}

func (w *World) handleObserverLeave(id string) {
	delete(w.observers, id)
}

func (w *World) stepObservers(nowTick uint64, stats Stats, events []bonding.Event) {
	if len(w.observers) == 0 {
		return
	}
	ids := make([]string, 0, len(w.observers))
	maxTop := 0
	for id, c := range w.observers {
		ids = append(ids, id)
		if c.topChains > maxTop {
			maxTop = c.topChains
		}
	}
	sort.Strings(ids)

	ranked := w.TopChains(maxTop)
	top := make([]observerproto.ChainInfo, len(ranked))
	for i, c := range ranked {
		top[i] = observerproto.ChainInfo(c)
	}
	evs := make([]observerproto.BondEvent, 0, len(events))
	for _, e := range events {
		evs = append(evs, observerproto.BondEvent{
			Kind:     string(e.Kind),
			A:        uint64(e.A),
			B:        uint64(e.B),
			BondType: string(e.BondType),
			Strength: e.Strength,
			ChainID:  e.ChainID,
			OtherID:  e.OtherID,
		})
	}
	ps := protoStats(stats)

	for _, id := range ids {
		c := w.observers[id]
		msg := observerproto.TickMsg{
			Type:            "TICK",
			ProtocolVersion: observerproto.Version,
			Tick:            nowTick,
			Stats:           ps,
		}
		n := c.topChains
		if n > len(top) {
			n = len(top)
		}
		msg.TopChains = top[:n]
		if c.events {
			msg.Events = evs
		}
		b, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		sendLatest(c.tickOut, b)
	}
}

func protoStats(s Stats) observerproto.Stats {
	return observerproto.Stats{
		Tokens:        s.Tokens,
		TotalMass:     s.TotalMass,
		TotalEnergy:   s.TotalEnergy,
		Rising:        s.Rising,
		Sinking:       s.Sinking,
		Damaged:       s.Damaged,
		Chains:        s.Chains,
		ValidChains:   s.ValidChains,
		AvgChainLen:   s.AvgChainLen,
		MaxChainLen:   s.MaxChainLen,
		BondsFormed:   s.BondsFormed,
		BondsBroken:   s.BondsBroken,
		Spawned:       s.Spawned,
		Deactivated:   s.Deactivated,
		ActiveCells:   s.Spatial.ActiveCells,
		OctreeNodes:   s.Spatial.Nodes,
		OctreeDepth:   s.Spatial.MaxDepth,
		BondsThisTick: s.BondsThisTick,
	}
}
