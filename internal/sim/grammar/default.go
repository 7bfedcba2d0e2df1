package grammar

import "codechem.ai/internal/sim/token"

func types(ts ...token.Type) Slot { return Slot{Types: ts} }
func values(vs ...string) Slot    { return Slot{Values: vs} }

var operand = types(token.TypeIdentifier, token.TypeLiteral)

// Default is the built-in C-like rule set. Strengths follow the bonding table
// of the token chemistry: bracket pairs bond hardest, trailing separators weakest.
func Default() *RuleSet {
	binaryOps := []string{"+", "-", "*", "/", "%", "==", "!=", "<", ">", "<=", ">=", "&&", "||", "&", "|", "^", "<<", ">>"}
	return NewRuleSet("c-default",
		Rule{ID: "paren_pair", Pattern: []Slot{values("("), values(")")}, BondType: token.BondCovalent, Strength: 1.0, EnergyCost: 20},
		Rule{ID: "brace_pair", Pattern: []Slot{values("{"), values("}")}, BondType: token.BondCovalent, Strength: 1.0, EnergyCost: 20},
		Rule{ID: "bracket_pair", Pattern: []Slot{values("["), values("]")}, BondType: token.BondCovalent, Strength: 1.0, EnergyCost: 20},
		Rule{ID: "control_head", Pattern: []Slot{values("if", "while", "for"), values("("), operand, values(")"), values("{")}, BondType: token.BondCovalent, Strength: 0.9, EnergyCost: 18},
		Rule{ID: "declaration", Pattern: []Slot{values("int", "float", "char", "var", "let", "const"), types(token.TypeIdentifier), values("=", ";"), operand, values(";")}, BondType: token.BondCovalent, Strength: 0.85, EnergyCost: 16},
		Rule{ID: "return_stmt", Pattern: []Slot{values("return"), operand, values(";")}, BondType: token.BondCovalent, Strength: 0.8, EnergyCost: 15},
		Rule{ID: "assignment", Pattern: []Slot{types(token.TypeIdentifier), values("=", "+=", "-=", "*=", "/="), operand, values(";")}, BondType: token.BondIonic, Strength: 0.8, EnergyCost: 12},
		Rule{ID: "binary_expr", Pattern: []Slot{operand, values(binaryOps...), operand}, BondType: token.BondIonic, Strength: 0.75, EnergyCost: 10},
		Rule{ID: "increment", Pattern: []Slot{types(token.TypeIdentifier), values("++", "--"), values(";", ")")}, BondType: token.BondIonic, Strength: 0.7, EnergyCost: 10},
		Rule{ID: "call_args", Pattern: []Slot{types(token.TypeIdentifier), values("("), types(token.TypeIdentifier, token.TypeLiteral, token.TypeKeyword), values(",", ")")}, BondType: token.BondIonic, Strength: 0.7, EnergyCost: 10},
		Rule{ID: "arg_list", Pattern: []Slot{values(","), operand}, BondType: token.BondVanDerWaals, Strength: 0.6, EnergyCost: 6},
		Rule{ID: "statement_end", Pattern: []Slot{operand, values(";", ")", ",")}, BondType: token.BondVanDerWaals, Strength: 0.5, EnergyCost: 5},
	)
}
