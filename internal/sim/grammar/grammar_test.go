package grammar

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codechem.ai/internal/sim/geom"
	"codechem.ai/internal/sim/token"
)

func toks(vals ...string) []*token.Token {
	out := make([]*token.Token, 0, len(vals))
	for i, v := range vals {
		out = append(out, token.New(token.ID(i+1), v, geom.Vec3i{}, 10))
	}
	return out
}

func TestMatchPair_PicksStrongestForwardRule(t *testing.T) {
	rs := Default()
	ts := toks("(", ")")
	m, ok := rs.MatchPair(ts[0], ts[1])
	if !ok || m.Rule.ID != "paren_pair" || m.Rule.BondType != token.BondCovalent {
		t.Fatalf("unexpected match: ok=%v %+v", ok, m.Rule)
	}
	if _, ok := rs.MatchPair(ts[1], ts[0]); ok {
		t.Fatalf(") ( must not match in that order")
	}

	ts = toks("x", "+")
	m, ok = rs.MatchPair(ts[0], ts[1])
	if !ok || m.Rule.ID != "binary_expr" || m.Slot != 0 {
		t.Fatalf("x + : got ok=%v match=%+v", ok, m)
	}
}

func TestValidate(t *testing.T) {
	rs := Default()

	if res := rs.Validate(nil); res.Valid {
		t.Fatalf("empty sequence must be invalid")
	}

	res := rs.Validate(toks("int", "x", "=", "1", ";"))
	if !res.Valid || len(res.InvalidPairs) != 0 {
		t.Fatalf("declaration should be valid: %+v", res)
	}
	found := false
	for _, id := range res.Complete {
		if id == "declaration" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected complete declaration, got %v", res.Complete)
	}

	res = rs.Validate(toks("x", "if", ";"))
	if res.Valid || len(res.InvalidPairs) == 0 || res.InvalidPairs[0] != 0 {
		t.Fatalf("expected pair 0 invalid: %+v", res)
	}

	if !rs.Validate(toks("x")).Valid {
		t.Fatalf("single accepted token should be valid")
	}
}

func TestParse_DefaultRoundTripsThroughSchema(t *testing.T) {
	b, err := Encode(Default())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	rs, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rs.Rules) != len(Default().Rules) || rs.Digest == "" {
		t.Fatalf("unexpected parse result: rules=%d digest=%q", len(rs.Rules), rs.Digest)
	}
}

func TestParse_RejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"bad bond type": `{"name":"g","rules":[{"id":"r","pattern":[{},{}],"bond_type":"METALLIC","strength":0.5}]}`,
		"short pattern": `{"name":"g","rules":[{"id":"r","pattern":[{}],"bond_type":"IONIC","strength":0.5}]}`,
		"strength > 1":  `{"name":"g","rules":[{"id":"r","pattern":[{},{}],"bond_type":"IONIC","strength":1.5}]}`,
		"unknown type":  `{"name":"g","rules":[{"id":"r","pattern":[{"types":["verb"]},{}],"bond_type":"IONIC","strength":0.5}]}`,
		"duplicate id":  `{"name":"g","rules":[{"id":"r","pattern":[{},{}],"bond_type":"IONIC","strength":0.5},{"id":"r","pattern":[{},{}],"bond_type":"IONIC","strength":0.5}]}`,
		"not json":      `{`,
		"missing rules": `{"name":"g"}`,
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()

	rs, usedDefault, err := LoadOrDefault(filepath.Join(dir, "missing.json"))
	if err != nil || !usedDefault || rs.Name != "c-default" || rs.Digest == "" {
		t.Fatalf("missing file: rs=%v default=%v err=%v", rs, usedDefault, err)
	}

	path := filepath.Join(dir, "grammar.json")
	doc := `{"name":"tiny","rules":[{"id":"pair","pattern":[{"values":["("]},{"values":[")"]}],"bond_type":"COVALENT","strength":1,"energy_cost":20}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	rs, usedDefault, err = LoadOrDefault(path)
	if err != nil || usedDefault || rs.Name != "tiny" || len(rs.Rules) != 1 {
		t.Fatalf("file: rs=%+v default=%v err=%v", rs, usedDefault, err)
	}

	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte(`{"name":"x","rules":[]}`), 0o644)
	if _, _, err := LoadOrDefault(bad); err == nil || !strings.Contains(err.Error(), "bad.json") {
		t.Fatalf("expected wrapped schema error, got %v", err)
	}
}

func TestShippedGrammarMatchesDefault(t *testing.T) {
	rs, err := Load(filepath.Join("..", "..", "..", "configs", "grammar.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Default()
	if rs.Name != def.Name || len(rs.Rules) != len(def.Rules) {
		t.Fatalf("name=%q rules=%d, want %q/%d", rs.Name, len(rs.Rules), def.Name, len(def.Rules))
	}
	for i, r := range rs.Rules {
		d := def.Rules[i]
		if r.ID != d.ID || r.BondType != d.BondType || r.Strength != d.Strength || r.EnergyCost != d.EnergyCost || len(r.Pattern) != len(d.Pattern) {
			t.Fatalf("rule %d = %+v, want %+v", i, r, d)
		}
	}
}
