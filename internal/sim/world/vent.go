package world

import (
	"codechem.ai/internal/sim/mathx"
)

// Hash salts keep the per-system random streams independent.
const (
	saltVent uint64 = iota + 1
	saltJitter
	saltDamage
	saltCorrupt
	saltDetach
	saltRepair
	saltPush
	saltDefault
)

// ventTokens is the C vocabulary the vent emits.
var ventTokens = []string{
	// keywords
	"if", "else", "for", "while", "return", "int", "float", "char", "void",
	"struct", "typedef", "sizeof", "const", "static", "break", "continue",
	// operators
	"+", "-", "*", "/", "=", "==", "!=", "<", ">", "<=", ">=", "&&", "||",
	"++", "--", "+=", "-=", "*=", "/=", "&", "|", "^", "~", "<<", ">>",
	// punctuation
	"(", ")", "{", "}", "[", "]", ";", ",", ".", "->", "%",
	// identifiers
	"main", "printf", "scanf", "malloc", "free", "NULL", "argc", "argv",
	"i", "j", "k", "x", "y", "z", "n", "count", "sum", "temp", "result",
	// literals
	"0", "1", "2", "10", "100", "0x00", "0xFF",
}

func (w *World) systemVent(nowTick uint64) {
	if nowTick%uint64(w.tune.Vent.EveryTicks) != 0 {
		return
	}
	for i := 0; i < w.tune.Vent.Burst; i++ {
		if w.pool.Len() >= w.tune.Physics.MaxTokens {
			return
		}
		h := mathx.Hash3(w.tune.Seed, nowTick, uint64(i), saltVent)
		value := ventTokens[mathx.Pick(h, len(ventTokens))]
		if !w.index.CanAccept(w.ventPos, len(value)) {
			return
		}
		t := w.pool.Spawn(value, w.ventPos, w.tune.Vent.Energy)
		if !w.index.Insert(t) {
			w.pool.Remove(t.ID)
			continue
		}
		w.spawned++
	}
}
