package world

import (
	"fmt"

	"codechem.ai/internal/persistence/snapshot"
	"codechem.ai/internal/sim/chain"
	"codechem.ai/internal/sim/geom"
	"codechem.ai/internal/sim/spatial"
	"codechem.ai/internal/sim/token"
)

// ExportSnapshot captures the state at the end of nowTick.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
		},
		Seed:               w.tune.Seed,
		TickRate:           w.tune.TickRateHz,
		Size:               w.size,
		GrammarDigest:      w.rules.Digest,
		SnapshotEveryTicks: w.tune.SnapshotEveryTicks,
		StatsEveryTicks:    w.tune.StatsEveryTicks,
		Counters: snapshot.CountersV1{
			NextToken:   w.pool.NextID(),
			NextChain:   w.registry.NextID(),
			BondsFormed: w.manager.BondsFormed(),
			BondsBroken: w.manager.BondsBroken(),
			Spawned:     w.spawned,
			Deactivated: w.deactivated,
		},
	}

	for _, t := range w.pool.All() {
		tv := snapshot.TokenV1{
			ID:                uint64(t.ID),
			Value:             t.Value,
			Type:              string(t.Type),
			Pos:               [3]int{t.Pos.X, t.Pos.Y, t.Pos.Z},
			Mass:              t.Mass,
			Energy:            t.Energy,
			Electronegativity: t.Meta.Electronegativity,
			Capacity:          t.Meta.Capacity,
			Syntax:            t.Meta.Syntax,
			Semantic:          t.Meta.Semantic,
			Active:            t.Active,
			Damaged:           t.Damaged,
		}
		for _, other := range t.BondedIDs() {
			if other < t.ID {
				continue
			}
			b, _ := t.BondWith(other)
			tv.Bonds = append(tv.Bonds, snapshot.BondV1{
				Other:    uint64(other),
				Strength: b.Strength,
				Type:     string(b.Type),
				FormedAt: b.FormedAt,
			})
		}
		snap.Tokens = append(snap.Tokens, tv)
	}

	for _, c := range w.registry.GetAll() {
		ids := c.MemberIDs()
		members := make([]uint64, len(ids))
		for i, id := range ids {
			members[i] = uint64(id)
		}
		snap.Chains = append(snap.Chains, snapshot.ChainV1{
			ID:           c.ID(),
			Members:      members,
			CreatedAt:    c.CreatedAt(),
			LastModified: c.LastModified(),
		})
	}
	return snap
}

// ImportSnapshot replaces the current in-memory world state with the snapshot.
// It sets the world's tick to snapshotTick+1 (the next tick to simulate).
//
// The snapshot is rebuilt aside and swapped in only when it is fully
// consistent; on error the world is left as it was.
//
// This must be called only when the world is stopped or from the world loop goroutine.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if s.Size != w.size {
		return fmt.Errorf("snapshot size mismatch: cfg=%v snap=%v", w.size, s.Size)
	}
	if s.GrammarDigest != "" && w.rules.Digest != "" && s.GrammarDigest != w.rules.Digest {
		w.log.Printf("snapshot grammar digest %s differs from loaded grammar %s; chains will be revalidated", s.GrammarDigest, w.rules.Digest)
	}

	pool := token.NewPool()
	index := spatial.New(w.index.Config())
	registry := chain.NewRegistry()

	byID := make(map[token.ID]*token.Token, len(s.Tokens))
	for _, tv := range s.Tokens {
		t := &token.Token{
			ID:     token.ID(tv.ID),
			Type:   token.Type(tv.Type),
			Value:  tv.Value,
			Pos:    geom.Vec3i{X: tv.Pos[0], Y: tv.Pos[1], Z: tv.Pos[2]},
			Mass:   tv.Mass,
			Energy: tv.Energy,
			Meta: token.Metadata{
				Electronegativity: tv.Electronegativity,
				Capacity:          tv.Capacity,
				Syntax:            tv.Syntax,
				Semantic:          tv.Semantic,
			},
			Active:  tv.Active,
			Damaged: tv.Damaged,
		}
		if !pool.Add(t) {
			return fmt.Errorf("snapshot token %d: duplicate or zero id", tv.ID)
		}
		if !index.Insert(t) {
			return fmt.Errorf("snapshot token %d: position %v not indexable", tv.ID, tv.Pos)
		}
		byID[t.ID] = t
	}
	for _, tv := range s.Tokens {
		a := byID[token.ID(tv.ID)]
		for _, bv := range tv.Bonds {
			b := byID[token.ID(bv.Other)]
			if b == nil {
				return fmt.Errorf("snapshot token %d: bond to unknown token %d", tv.ID, bv.Other)
			}
			token.Link(a, b, token.Bond{Strength: bv.Strength, Type: token.BondType(bv.Type), FormedAt: bv.FormedAt})
		}
	}

	for _, cv := range s.Chains {
		members := make([]*token.Token, 0, len(cv.Members))
		for _, id := range cv.Members {
			t := byID[token.ID(id)]
			if t == nil {
				return fmt.Errorf("snapshot chain %d: unknown member %d", cv.ID, id)
			}
			members = append(members, t)
		}
		c, ok := chain.FromMembers(w.rules, w.params, cv.ID, cv.CreatedAt, cv.LastModified, members)
		if !ok {
			return fmt.Errorf("snapshot chain %d: members are not bonded in order", cv.ID)
		}
		registry.Register(c)
	}
	pool.SetNextID(s.Counters.NextToken)
	registry.SetNextID(s.Counters.NextChain)

	w.install(pool, index, registry)
	w.manager.SetCounters(s.Counters.BondsFormed, s.Counters.BondsBroken)
	w.spawned = s.Counters.Spawned
	w.deactivated = s.Counters.Deactivated

	// Resume on the next tick.
	w.tick.Store(s.Header.Tick + 1)
	return nil
}
