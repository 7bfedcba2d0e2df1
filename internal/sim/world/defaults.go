package world

import (
	"codechem.ai/internal/sim/mathx"
	"codechem.ai/internal/sim/token"
)

var defaultLiterals = []string{"0", "1", "2", "5", "10"}

const defaultLiteralEnergy = 10

// systemDefaultValues drops a small literal at every "=" that is directly
// followed by punctuation in a chain, so assignments like "x = ;" can pick
// up a value. The literal is a free token; it joins only if it bonds later.
func (w *World) systemDefaultValues(nowTick uint64) int {
	added := 0
	for _, c := range w.registry.GetAll() {
		members := c.Members()
		for i := 0; i+1 < len(members); i++ {
			cur, next := members[i], members[i+1]
			if cur.Value != "=" || cur.Type != token.TypeOperator || next.Type != token.TypePunctuation {
				continue
			}
			if w.pool.Len() >= w.tune.Physics.MaxTokens {
				return added
			}
			h := mathx.Hash3(w.tune.Seed, nowTick, uint64(cur.ID), saltDefault)
			value := defaultLiterals[mathx.Pick(h, len(defaultLiterals))]
			if !w.index.CanAccept(cur.Pos, len(value)) {
				continue
			}
			t := w.pool.Spawn(value, cur.Pos, defaultLiteralEnergy)
			if !w.index.Insert(t) {
				w.pool.Remove(t.ID)
				continue
			}
			w.spawned++
			added++
		}
	}
	return added
}
