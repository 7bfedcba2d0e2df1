package grammar

import (
	"codechem.ai/internal/sim/token"
)

// Slot accepts a token when its type or its exact value is listed.
// An empty slot accepts anything. Corrupted (unknown) tokens never match by
// value.
type Slot struct {
	Types  []token.Type `json:"types,omitempty"`
	Values []string     `json:"values,omitempty"`
}

func (s Slot) Matches(t *token.Token) bool {
	if t == nil {
		return false
	}
	if len(s.Types) == 0 && len(s.Values) == 0 {
		return true
	}
	for _, typ := range s.Types {
		if t.Type == typ {
			return true
		}
	}
	if t.Type == token.TypeUnknown {
		return false
	}
	for _, v := range s.Values {
		if t.Value == v {
			return true
		}
	}
	return false
}

// Rule is an ordered pattern of accepted token kinds with the bond it produces.
type Rule struct {
	ID         string         `json:"id"`
	Pattern    []Slot         `json:"pattern"`
	BondType   token.BondType `json:"bond_type"`
	Strength   float64        `json:"strength"`
	EnergyCost int            `json:"energy_cost"`
}

// pairAt reports whether a, b fill slots i and i+1.
func (r *Rule) pairAt(i int, a, b *token.Token) bool {
	return r.Pattern[i].Matches(a) && r.Pattern[i+1].Matches(b)
}

// Match is the best rule found for an ordered pair.
type Match struct {
	Rule *Rule
	Slot int // index of the slot taken by the first token
}

// RuleSet is read-only after construction and safe for concurrent use.
type RuleSet struct {
	Name   string
	Rules  []Rule
	Digest string
}

func NewRuleSet(name string, rules ...Rule) *RuleSet {
	return &RuleSet{Name: name, Rules: rules}
}

// MatchPair finds the strongest rule in which a directly precedes b.
// Ties go to the rule listed first.
func (rs *RuleSet) MatchPair(a, b *token.Token) (Match, bool) {
	if rs == nil || a == nil || b == nil {
		return Match{}, false
	}
	var best Match
	found := false
	for ri := range rs.Rules {
		r := &rs.Rules[ri]
		for i := 0; i+1 < len(r.Pattern); i++ {
			if !r.pairAt(i, a, b) {
				continue
			}
			if !found || r.Strength > best.Rule.Strength {
				best = Match{Rule: r, Slot: i}
				found = true
			}
			break
		}
	}
	return best, found
}

// Accepts reports whether any rule has a slot for t.
func (rs *RuleSet) Accepts(t *token.Token) bool {
	if rs == nil || t == nil {
		return false
	}
	for ri := range rs.Rules {
		for _, s := range rs.Rules[ri].Pattern {
			if s.Matches(t) {
				return true
			}
		}
	}
	return false
}

type ValidationResult struct {
	Valid bool
	// InvalidPairs holds i for every pair (i, i+1) that no rule accepts in order.
	InvalidPairs []int
	// Complete lists rules whose whole pattern occurs as a contiguous run.
	Complete []string
}

// Validate matches an ordered token sequence against the rule set. An empty
// sequence is never valid; a single token is valid when some rule accepts it.
func (rs *RuleSet) Validate(seq []*token.Token) ValidationResult {
	var res ValidationResult
	if rs == nil || len(seq) == 0 {
		return res
	}
	if len(seq) == 1 {
		res.Valid = rs.Accepts(seq[0])
		return res
	}
	for i := 0; i+1 < len(seq); i++ {
		if _, ok := rs.MatchPair(seq[i], seq[i+1]); !ok {
			res.InvalidPairs = append(res.InvalidPairs, i)
		}
	}
	res.Valid = len(res.InvalidPairs) == 0
	for ri := range rs.Rules {
		if r := &rs.Rules[ri]; containsPattern(r.Pattern, seq) {
			res.Complete = append(res.Complete, r.ID)
		}
	}
	return res
}

func containsPattern(p []Slot, seq []*token.Token) bool {
	if len(p) == 0 || len(p) > len(seq) {
		return false
	}
outer:
	for start := 0; start+len(p) <= len(seq); start++ {
		for k, s := range p {
			if !s.Matches(seq[start+k]) {
				continue outer
			}
		}
		return true
	}
	return false
}
