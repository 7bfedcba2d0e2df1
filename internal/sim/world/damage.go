package world

import (
	"math"

	"codechem.ai/internal/sim/mathx"
	"codechem.ai/internal/sim/token"
)

// damageProbability grows with altitude as (z/height)^exp * maxP, capped at maxP.
func damageProbability(z, height int, maxP, exp float64) float64 {
	if z <= 0 || height <= 0 {
		return 0
	}
	n := float64(z) / float64(height)
	if n > 1 {
		n = 1
	}
	return math.Min(math.Pow(n, exp)*maxP, maxP)
}

// repairProbability falls linearly from chance at z=0 to zero at maxZ.
func repairProbability(z, maxZ int, chance float64) float64 {
	if z >= maxZ || maxZ <= 0 {
		return 0
	}
	if z < 0 {
		z = 0
	}
	return (1 - float64(z)/float64(maxZ)) * chance
}

// systemDamage rolls altitude damage for every token. A first hit marks the
// token damaged, may corrupt its type and may tear it out of its chain; a
// hit on an already damaged token deactivates it.
func (w *World) systemDamage(nowTick uint64) {
	d := w.tune.Damage
	if !d.Enabled {
		return
	}
	for _, t := range w.pool.All() {
		if !t.Active {
			continue
		}
		p := damageProbability(t.Pos.Z, w.size[2], d.MaxProbability, d.Exponent)
		if p == 0 {
			continue
		}
		id := uint64(t.ID)
		if mathx.Unit(mathx.Hash3(w.tune.Seed, nowTick, id, saltDamage)) >= p {
			continue
		}
		if t.Damaged {
			w.deactivate(t, nowTick)
			continue
		}
		t.Damaged = true
		if mathx.Unit(mathx.Hash3(w.tune.Seed, nowTick, id, saltCorrupt)) < d.CorruptChance {
			t.Type = token.TypeUnknown
			if c, ok := w.manager.GetTokenChain(t); ok {
				c.Invalidate(nowTick)
			}
		}
		if t.BondCount() > 0 && mathx.Unit(mathx.Hash3(w.tune.Seed, nowTick, id, saltDetach)) < d.DetachChance {
			w.manager.DetachEntity(t, nowTick)
		}
	}
}

// systemRepair heals damaged tokens that sank low enough and restores the
// type their value implies.
func (w *World) systemRepair(nowTick uint64) {
	d := w.tune.Damage
	for _, t := range w.pool.All() {
		if !t.Active || !t.Damaged {
			continue
		}
		p := repairProbability(t.Pos.Z, d.RepairMaxZ, d.RepairChance)
		if p == 0 || mathx.Unit(mathx.Hash3(w.tune.Seed, nowTick, uint64(t.ID), saltRepair)) >= p {
			continue
		}
		t.Damaged = false
		if typ := token.Classify(t.Value); typ != t.Type {
			t.Type = typ
			if c, ok := w.manager.GetTokenChain(t); ok {
				c.Invalidate(nowTick)
			}
		}
	}
}
