package world

import (
	"codechem.ai/internal/sim/geom"
	"codechem.ai/internal/sim/mathx"
	"codechem.ai/internal/sim/token"
)

var jitterDirs = [4]geom.Vec3i{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}

// sideDirs are the eight horizontal neighbours, in the order diversions try them.
var sideDirs = [8]geom.Vec3i{
	{X: -1, Y: -1}, {X: -1}, {X: -1, Y: 1},
	{Y: -1}, {Y: 1},
	{X: 1, Y: -1}, {X: 1}, {X: 1, Y: 1},
}

// systemDrift moves every token one step: up while it has energy, down
// otherwise, with an occasional sideways step.
//
// A rising token pushes sinking tokens out of the cell it enters and pays
// CollisionCost for each. A token lighter than a mutually exclusive token
// in the target cell is repelled, and a full target cell spills over; both
// divert the move to a horizontal neighbour with room. With no such
// neighbour the token stays put. RiseCost is charged only for a completed
// upward move.
func (w *World) systemDrift(nowTick uint64) {
	for _, t := range w.pool.All() {
		if !t.Active {
			continue
		}
		old := t.Pos
		rising := t.Energy > 0
		next := old
		if rising {
			next.Z++
		} else {
			next.Z--
		}

		h := mathx.Hash3(w.tune.Seed, nowTick, uint64(t.ID), saltJitter)
		if mathx.Unit(h) < w.tune.Physics.JitterChance {
			next = next.Add(jitterDirs[mathx.Pick(h>>16, len(jitterDirs))])
		}
		next.X = mathx.ClampInt(next.X, 0, w.size[0]-1)
		next.Y = mathx.ClampInt(next.Y, 0, w.size[1]-1)
		if next.Z >= w.size[2] {
			next.Z = w.size[2] - 1
		}

		if next.Z < w.tune.Physics.DeactivateBelow {
			w.deactivate(t, nowTick)
			continue
		}
		if next == old {
			continue
		}
		if rising && next.Z > old.Z {
			w.pushSinkersAside(t, next, nowTick)
		}

		dest, ok := w.destination(t, next)
		if !ok {
			continue
		}
		t.Pos = dest
		if !w.index.Update(t, old) {
			t.Pos = old
			continue
		}
		if rising && dest.Z > old.Z {
			t.Energy = max(t.Energy-w.tune.Physics.RiseCost, 0)
		}
	}
}

// destination resolves where t lands when it heads for next.
func (w *World) destination(t *token.Token, next geom.Vec3i) (geom.Vec3i, bool) {
	if w.fits(t, next) {
		return next, true
	}
	return w.sideCell(t, next)
}

// fits reports whether t may enter p: the cell has room for its mass and no
// heavier mutually exclusive token repels it.
func (w *World) fits(t *token.Token, p geom.Vec3i) bool {
	if !w.index.CanAccept(p, t.Mass) {
		return false
	}
	mass := w.chainMass(t)
	for _, o := range w.index.CellTokens(p) {
		if o.ID != t.ID && token.MutuallyExclusive(t, o) && mass < w.chainMass(o) {
			return false
		}
	}
	return true
}

// sideCell returns the first horizontal neighbour of p that t fits into,
// never t's own cell.
func (w *World) sideCell(t *token.Token, p geom.Vec3i) (geom.Vec3i, bool) {
	for _, d := range sideDirs {
		q := p.Add(d)
		if q == t.Pos || !w.index.InBounds(q) {
			continue
		}
		if w.fits(t, q) {
			return q, true
		}
	}
	return geom.Vec3i{}, false
}

// pushSinkersAside moves every sinking token in cell p to a random
// horizontal neighbour with room, charging the riser per collision.
func (w *World) pushSinkersAside(riser *token.Token, p geom.Vec3i, nowTick uint64) {
	for _, o := range w.index.CellTokens(p) {
		if o.ID == riser.ID || o.Energy > 0 {
			continue
		}
		riser.Energy = max(riser.Energy-w.tune.Physics.CollisionCost, 0)

		var open []geom.Vec3i
		for _, d := range sideDirs {
			q := p.Add(d)
			if w.index.InBounds(q) && w.index.CanAccept(q, o.Mass) {
				open = append(open, q)
			}
		}
		if len(open) == 0 {
			continue
		}
		h := mathx.Hash3(w.tune.Seed, nowTick, uint64(o.ID), saltPush)
		prev := o.Pos
		o.Pos = open[mathx.Pick(h, len(open))]
		if !w.index.Update(o, prev) {
			o.Pos = prev
		}
	}
}

// chainMass is the mass of t's chain, or t's own mass when unchained.
func (w *World) chainMass(t *token.Token) int {
	if c, ok := w.manager.GetTokenChain(t); ok {
		return c.Mass()
	}
	return t.Mass
}

// deactivate takes t out of the simulation: its bonds are broken, its chain
// adjusts and it leaves the index and the pool.
func (w *World) deactivate(t *token.Token, nowTick uint64) {
	w.manager.DetachEntity(t, nowTick)
	w.index.Remove(t)
	t.Active = false
	w.pool.Remove(t.ID)
	w.deactivated++
}
