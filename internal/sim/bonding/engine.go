// Package bonding decides which token pairs may bond and applies bonds to
// tokens and chains.
package bonding

import (
	"math"

	"codechem.ai/internal/sim/grammar"
	"codechem.ai/internal/sim/mathx"
	"codechem.ai/internal/sim/token"
)

type Config struct {
	GrammarWeight float64 // w1
	ElectroWeight float64 // w2
	MinStrength   float64

	// ReverseFactor scales the score of a rule matched in reverse order (b, a).
	ReverseFactor float64

	CovalentThreshold float64
	IonicThreshold    float64

	MinCost         int
	MaxCost         int
	CostCovalent    int
	CostIonic       int
	CostVanDerWaals int

	Workers int // parallel candidate planning; <=1 plans inline
}

func DefaultConfig() Config {
	return Config{
		GrammarWeight:     0.75,
		ElectroWeight:     0.25,
		MinStrength:       0.3,
		ReverseFactor:     0.8,
		CovalentThreshold: 0.8,
		IonicThreshold:    0.5,
		MinCost:           5,
		MaxCost:           20,
		CostCovalent:      15,
		CostIonic:         10,
		CostVanDerWaals:   5,
		Workers:           4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.GrammarWeight <= 0 && c.ElectroWeight <= 0 {
		c.GrammarWeight, c.ElectroWeight = d.GrammarWeight, d.ElectroWeight
	}
	if c.MinStrength <= 0 {
		c.MinStrength = d.MinStrength
	}
	if c.ReverseFactor <= 0 {
		c.ReverseFactor = d.ReverseFactor
	}
	if c.CovalentThreshold <= 0 {
		c.CovalentThreshold = d.CovalentThreshold
	}
	if c.IonicThreshold <= 0 {
		c.IonicThreshold = d.IonicThreshold
	}
	if c.MinCost <= 0 {
		c.MinCost = d.MinCost
	}
	if c.MaxCost < c.MinCost {
		c.MaxCost = d.MaxCost
		if c.MaxCost < c.MinCost {
			c.MaxCost = c.MinCost
		}
	}
	if c.CostCovalent <= 0 {
		c.CostCovalent = d.CostCovalent
	}
	if c.CostIonic <= 0 {
		c.CostIonic = d.CostIonic
	}
	if c.CostVanDerWaals <= 0 {
		c.CostVanDerWaals = d.CostVanDerWaals
	}
	return c
}

// Engine scores token pairs against a grammar rule set. It never mutates
// tokens and is safe for concurrent use.
type Engine struct {
	rules *grammar.RuleSet
	cfg   Config
}

func NewEngine(rules *grammar.RuleSet, cfg Config) *Engine {
	if rules == nil {
		rules = grammar.Default()
	}
	return &Engine{rules: rules, cfg: cfg.withDefaults()}
}

func (e *Engine) Rules() *grammar.RuleSet { return e.rules }
func (e *Engine) Config() Config          { return e.cfg }

// Assessment is the full evaluation of an ordered pair.
type Assessment struct {
	Strength float64
	Type     token.BondType
	Cost     int
	Rule     string // matched rule id, empty when none matched
	Forward  bool   // the rule matched in (a, b) order
}

// Assess scores the pair regardless of legality.
func (e *Engine) Assess(a, b *token.Token) Assessment {
	var as Assessment
	if a == nil || b == nil {
		return as
	}
	score, rule, forward := e.grammarScore(a, b)
	en := 1 - math.Abs(a.Meta.Electronegativity-b.Meta.Electronegativity)
	as.Strength = mathx.Clamp01(e.cfg.GrammarWeight*score + e.cfg.ElectroWeight*mathx.Clamp01(en))
	as.Forward = forward

	cost := 0
	if rule != nil {
		as.Rule = rule.ID
		as.Type = rule.BondType
		cost = rule.EnergyCost
	}
	if as.Type == "" {
		as.Type = e.typeFor(as.Strength)
	}
	if cost <= 0 {
		cost = e.costFor(as.Type)
	}
	as.Cost = mathx.ClampInt(cost, e.cfg.MinCost, e.cfg.MaxCost)
	return as
}

// grammarScore returns the strongest rule strength matching the pair in
// either order; reverse matches are discounted.
func (e *Engine) grammarScore(a, b *token.Token) (float64, *grammar.Rule, bool) {
	var (
		best    float64
		rule    *grammar.Rule
		forward bool
	)
	if m, ok := e.rules.MatchPair(a, b); ok {
		best, rule, forward = m.Rule.Strength, m.Rule, true
	}
	if m, ok := e.rules.MatchPair(b, a); ok {
		if s := m.Rule.Strength * e.cfg.ReverseFactor; s > best {
			best, rule, forward = s, m.Rule, false
		}
	}
	return mathx.Clamp01(best), rule, forward
}

func (e *Engine) typeFor(strength float64) token.BondType {
	switch {
	case strength >= e.cfg.CovalentThreshold:
		return token.BondCovalent
	case strength >= e.cfg.IonicThreshold:
		return token.BondIonic
	default:
		return token.BondVanDerWaals
	}
}

func (e *Engine) costFor(t token.BondType) int {
	switch t {
	case token.BondCovalent:
		return e.cfg.CostCovalent
	case token.BondIonic:
		return e.cfg.CostIonic
	default:
		return e.cfg.CostVanDerWaals
	}
}

func (e *Engine) BondStrength(a, b *token.Token) float64 { return e.Assess(a, b).Strength }

func (e *Engine) BondType(a, b *token.Token) token.BondType { return e.Assess(a, b).Type }

func (e *Engine) EnergyCost(a, b *token.Token) int { return e.Assess(a, b).Cost }

// CanBond reports whether the pair may bond: both active and undamaged,
// distinct, not yet bonded, with spare capacity and enough strength.
func (e *Engine) CanBond(a, b *token.Token) bool {
	_, ok := e.evaluate(a, b)
	return ok
}

func (e *Engine) evaluate(a, b *token.Token) (Assessment, bool) {
	if a == nil || b == nil || a.ID == b.ID {
		return Assessment{}, false
	}
	if !a.Active || !b.Active || a.Damaged || b.Damaged {
		return Assessment{}, false
	}
	if a.Bonded(b.ID) || !a.HasCapacity() || !b.HasCapacity() {
		return Assessment{}, false
	}
	as := e.Assess(a, b)
	if as.Strength < e.cfg.MinStrength {
		return as, false
	}
	return as, true
}
