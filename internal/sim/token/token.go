package token

import (
	"sort"

	"codechem.ai/internal/sim/geom"
)

// ID identifies a token for its whole lifetime. Zero is never assigned.
type ID uint64

// Type is the lexical category of a token.
type Type string

const (
	TypeKeyword     Type = "keyword"
	TypeOperator    Type = "operator"
	TypePunctuation Type = "punctuation"
	TypeIdentifier  Type = "identifier"
	TypeLiteral     Type = "literal"
	TypeUnknown     Type = "unknown"
)

// BondType classifies the strength class of a bond.
type BondType string

const (
	BondCovalent    BondType = "COVALENT"
	BondIonic       BondType = "IONIC"
	BondVanDerWaals BondType = "VAN_DER_WAALS"
)

// Bond annotates one side of a bonded pair. Both endpoints hold an equal copy.
type Bond struct {
	Strength float64
	Type     BondType
	FormedAt uint64
}

type Metadata struct {
	Electronegativity float64 // 0..1
	Capacity          int     // max bonded partners
	Syntax            string
	Semantic          string
}

// Token is a lexical unit drifting in the volume.
//
// The bonded set is only changed through Link and Unlink so that it stays
// symmetric. The chain back-reference is a non-owning (chain id, index) pair
// resolved through the chain registry.
type Token struct {
	ID     ID
	Type   Type
	Value  string
	Pos    geom.Vec3i
	Mass   int
	Energy int
	Meta   Metadata

	Active  bool
	Damaged bool

	bonds     map[ID]Bond
	chainID   uint64
	chainSlot int
}

// New builds an active token; type, mass and metadata are derived from value.
func New(id ID, value string, pos geom.Vec3i, energy int) *Token {
	typ := Classify(value)
	return &Token{
		ID:     id,
		Type:   typ,
		Value:  value,
		Pos:    pos,
		Mass:   len(value),
		Energy: energy,
		Meta:   DefaultMetadata(typ, value),
		Active: true,
	}
}

func (t *Token) Bonded(other ID) bool {
	if t == nil || t.bonds == nil {
		return false
	}
	_, ok := t.bonds[other]
	return ok
}

func (t *Token) BondWith(other ID) (Bond, bool) {
	if t == nil || t.bonds == nil {
		return Bond{}, false
	}
	b, ok := t.bonds[other]
	return b, ok
}

func (t *Token) BondCount() int {
	if t == nil {
		return 0
	}
	return len(t.bonds)
}

// HasCapacity reports whether t can take one more bond.
func (t *Token) HasCapacity() bool {
	return t != nil && len(t.bonds) < t.Meta.Capacity
}

// BondedIDs returns partner ids in ascending order.
func (t *Token) BondedIDs() []ID {
	if t == nil || len(t.bonds) == 0 {
		return nil
	}
	out := make([]ID, 0, len(t.bonds))
	for id := range t.bonds {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ChainRef returns the chain back-reference. ok is false while the token
// belongs to no registered chain. slot is the chain's internal buffer slot,
// not the 0-based position: it stays valid across prepends, and the
// position is slot minus the head's slot (Chain.IndexOf).
func (t *Token) ChainRef() (chainID uint64, slot int, ok bool) {
	if t == nil {
		return 0, 0, false
	}
	return t.chainID, t.chainSlot, t.chainID != 0
}

func (t *Token) InChain() bool { return t != nil && t.chainID != 0 }

func (t *Token) SetChainRef(chainID uint64, slot int) {
	t.chainID = chainID
	t.chainSlot = slot
}

func (t *Token) ClearChainRef() {
	t.chainID = 0
	t.chainSlot = 0
}

// Link records a bond on both endpoints. It refuses self-bonds and duplicates.
func Link(a, b *Token, bond Bond) bool {
	if a == nil || b == nil || a.ID == b.ID {
		return false
	}
	if a.Bonded(b.ID) || b.Bonded(a.ID) {
		return false
	}
	if a.bonds == nil {
		a.bonds = make(map[ID]Bond, 2)
	}
	if b.bonds == nil {
		b.bonds = make(map[ID]Bond, 2)
	}
	a.bonds[b.ID] = bond
	b.bonds[a.ID] = bond
	return true
}

// Unlink removes the bond from both endpoints.
func Unlink(a, b *Token) bool {
	if a == nil || b == nil || !a.Bonded(b.ID) {
		return false
	}
	delete(a.bonds, b.ID)
	delete(b.bonds, a.ID)
	return true
}
