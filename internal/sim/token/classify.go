package token

import (
	"strconv"
	"unicode"
)

var keywords = setOf(
	"if", "else", "for", "while", "do", "function", "class", "return", "break", "continue",
	"int", "float", "char", "void", "var", "let", "const", "struct", "typedef", "sizeof", "static",
)

var operators = setOf(
	"+", "-", "*", "/", "%", "=", "==", "!=", "<", ">", "<=", ">=", "&&", "||", "!",
	"++", "--", "+=", "-=", "*=", "/=", "&", "|", "^", "~", "<<", ">>", "->",
)

var punctuation = setOf("(", ")", "{", "}", "[", "]", ";", ",", ".")

var semantic = map[string]string{
	"if": "control", "else": "control", "for": "control", "while": "control", "do": "control",
	"return": "control", "break": "control", "continue": "control",
	"int": "declaration", "float": "declaration", "char": "declaration", "void": "declaration",
	"var": "declaration", "let": "declaration", "const": "declaration", "struct": "declaration",
	"typedef": "declaration", "static": "declaration", "function": "declaration", "class": "declaration",
	"sizeof": "builtin",
	"=":      "assign", "+=": "assign", "-=": "assign", "*=": "assign", "/=": "assign",
	"==": "compare", "!=": "compare", "<": "compare", ">": "compare", "<=": "compare", ">=": "compare",
	"&&": "logic", "||": "logic", "!": "logic",
	"&": "bitwise", "|": "bitwise", "^": "bitwise", "~": "bitwise", "<<": "bitwise", ">>": "bitwise",
	"->": "access", ".": "access",
	"(": "group", ")": "group", "{": "group", "}": "group", "[": "group", "]": "group",
	";": "separator", ",": "separator",
}

// Electronegativity per type. Punctuation and operators pull hardest, which
// makes them the usual anchors for bonds with identifiers and literals.
var electronegativity = map[Type]float64{
	TypeKeyword:     0.55,
	TypeOperator:    0.80,
	TypePunctuation: 0.90,
	TypeIdentifier:  0.45,
	TypeLiteral:     0.35,
	TypeUnknown:     0.50,
}

func setOf(vals ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

// Classify derives the lexical type of a token value.
func Classify(value string) Type {
	if _, ok := keywords[value]; ok {
		return TypeKeyword
	}
	if _, ok := operators[value]; ok {
		return TypeOperator
	}
	if _, ok := punctuation[value]; ok {
		return TypePunctuation
	}
	if isIdentifier(value) {
		return TypeIdentifier
	}
	if isNumber(value) {
		return TypeLiteral
	}
	return TypeUnknown
}

// DefaultMetadata returns the chemistry attributes for a token of the given type.
func DefaultMetadata(typ Type, value string) Metadata {
	en, ok := electronegativity[typ]
	if !ok {
		en = electronegativity[TypeUnknown]
	}
	capacity := 2
	if typ == TypeUnknown {
		capacity = 1
	}
	sem := semantic[value]
	switch {
	case sem != "":
	case typ == TypeIdentifier:
		sem = "name"
	case typ == TypeLiteral:
		sem = "number"
	case typ == TypeOperator:
		sem = "arith"
	default:
		sem = "none"
	}
	return Metadata{
		Electronegativity: en,
		Capacity:          capacity,
		Syntax:            string(typ),
		Semantic:          sem,
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	// Hex literals such as 0xFF.
	_, err := strconv.ParseInt(s, 0, 64)
	return err == nil
}

// exclusiveGroups hold values that fill the same slot and repel each other.
var exclusiveGroups = []map[string]struct{}{
	setOf("if", "while", "for"),
	setOf("int", "float", "var"),
	setOf("++", "--"),
	setOf("&&", "||"),
}

// MutuallyExclusive reports whether a and b are distinct members of one
// exclusive group. Equal values never repel.
func MutuallyExclusive(a, b *Token) bool {
	if a == nil || b == nil || a.Value == b.Value {
		return false
	}
	for _, g := range exclusiveGroups {
		_, okA := g[a.Value]
		_, okB := g[b.Value]
		if okA && okB {
			return true
		}
	}
	return false
}
