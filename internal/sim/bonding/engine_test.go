package bonding

import (
	"testing"

	"codechem.ai/internal/sim/geom"
	"codechem.ai/internal/sim/grammar"
	"codechem.ai/internal/sim/token"
)

func tk(id int, v string) *token.Token {
	return token.New(token.ID(id), v, geom.Vec3i{}, 50)
}

func TestEngine_StrengthTypeAndCost(t *testing.T) {
	e := NewEngine(grammar.Default(), DefaultConfig())
	cases := []struct {
		a, b     string
		strength float64
		typ      token.BondType
		cost     int
	}{
		{"(", ")", 1.0, token.BondCovalent, 20},
		{")", "(", 0.85, token.BondCovalent, 20},
		{"x", "+", 0.725, token.BondIonic, 10},
		{"foo", "bar", 0.25, token.BondVanDerWaals, 5},
	}
	for _, tc := range cases {
		a, b := tk(1, tc.a), tk(2, tc.b)
		as := e.Assess(a, b)
		if diff := as.Strength - tc.strength; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("%s %s: strength %v want %v", tc.a, tc.b, as.Strength, tc.strength)
		}
		if as.Type != tc.typ || e.BondType(a, b) != tc.typ {
			t.Fatalf("%s %s: type %s want %s", tc.a, tc.b, as.Type, tc.typ)
		}
		if as.Cost != tc.cost || e.EnergyCost(a, b) != tc.cost {
			t.Fatalf("%s %s: cost %d want %d", tc.a, tc.b, as.Cost, tc.cost)
		}
	}
}

func TestEngine_ElectronegativityAloneCannotBond(t *testing.T) {
	e := NewEngine(grammar.Default(), DefaultConfig())
	if e.CanBond(tk(1, "foo"), tk(2, "bar")) {
		t.Fatalf("identifiers with no rule must not bond")
	}
	if !e.CanBond(tk(1, "("), tk(2, ")")) {
		t.Fatalf("paren pair should bond")
	}
}

func TestEngine_ThresholdTypesWithoutRule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GrammarWeight = 0.01
	cfg.ElectroWeight = 1
	e := NewEngine(grammar.NewRuleSet("empty"), cfg)

	a, b := tk(1, "foo"), tk(2, "bar")
	if got := e.BondType(a, b); got != token.BondCovalent {
		t.Fatalf("equal electronegativity: %s", got)
	}
	if got := e.EnergyCost(a, b); got != 15 {
		t.Fatalf("covalent cost: %d", got)
	}
	// identifier .45 vs punctuation .90 gives 0.55
	if got := e.BondType(a, tk(3, ";")); got != token.BondIonic {
		t.Fatalf("mid strength: %s", got)
	}
	// literal .35 vs punctuation .90 gives 0.45
	if got := e.BondType(tk(4, "7"), tk(3, ";")); got != token.BondVanDerWaals {
		t.Fatalf("weak strength: %s", got)
	}
}

func TestEngine_CostIsClamped(t *testing.T) {
	rules := grammar.NewRuleSet("costly",
		grammar.Rule{ID: "big", Pattern: []grammar.Slot{{Values: []string{"a"}}, {Values: []string{"b"}}}, BondType: token.BondIonic, Strength: 1, EnergyCost: 100},
		grammar.Rule{ID: "small", Pattern: []grammar.Slot{{Values: []string{"c"}}, {Values: []string{"d"}}}, BondType: token.BondIonic, Strength: 1, EnergyCost: 1},
	)
	e := NewEngine(rules, DefaultConfig())
	if got := e.EnergyCost(tk(1, "a"), tk(2, "b")); got != 20 {
		t.Fatalf("high cost: %d", got)
	}
	if got := e.EnergyCost(tk(1, "c"), tk(2, "d")); got != 5 {
		t.Fatalf("low cost: %d", got)
	}
}

func TestEngine_Legality(t *testing.T) {
	e := NewEngine(grammar.Default(), DefaultConfig())
	a, b := tk(1, "("), tk(2, ")")
	if e.CanBond(a, a) {
		t.Fatalf("self bond")
	}
	if e.CanBond(a, nil) || e.CanBond(nil, b) {
		t.Fatalf("nil bond")
	}

	d := tk(3, ")")
	d.Damaged = true
	if e.CanBond(a, d) {
		t.Fatalf("damaged token must not bond")
	}
	in := tk(4, ")")
	in.Active = false
	if e.CanBond(a, in) {
		t.Fatalf("inactive token must not bond")
	}

	token.Link(a, b, token.Bond{Strength: 1})
	if e.CanBond(a, b) {
		t.Fatalf("already bonded")
	}
	token.Link(a, tk(5, ")"), token.Bond{Strength: 1})
	if e.CanBond(a, tk(6, ")")) {
		t.Fatalf("capacity exhausted")
	}
}
