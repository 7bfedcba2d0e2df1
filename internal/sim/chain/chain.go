// Package chain maintains ordered sequences of bonded tokens and the registry
// that owns them.
//
// Members are stored in a slot buffer with slack on both ends, so growing or
// shrinking either edge is amortized O(1). Each member carries a weak
// (chain id, slot) back-reference; IndexOf converts the slot into a 0-based
// position.
package chain

import (
	"strings"
	"sync"

	"codechem.ai/internal/sim/grammar"
	"codechem.ai/internal/sim/token"
)

type Chain struct {
	mu sync.RWMutex

	id     uint64
	rules  *grammar.RuleSet
	params Params

	buf    []*token.Token
	lo, hi int
	mass   int

	createdAt    uint64
	lastModified uint64

	code       string
	codeOK     bool
	validation grammar.ValidationResult
	validOK    bool

	stability   float64
	stabilityAt uint64
	stabilityOK bool
}

// New starts a chain holding a single token. It returns nil when first cannot
// join a chain.
func New(rules *grammar.RuleSet, p Params, tick uint64, first *token.Token) *Chain {
	if first == nil || !first.Active || first.InChain() {
		return nil
	}
	c := &Chain{
		rules:        rules,
		params:       p.withDefaults(),
		createdAt:    tick,
		lastModified: tick,
	}
	c.pushBack(first)
	return c
}

// FromMembers rebuilds a chain from an ordered member list, e.g. when
// restoring a snapshot. Consecutive members must be bonded.
func FromMembers(rules *grammar.RuleSet, p Params, id uint64, createdAt, lastModified uint64, members []*token.Token) (*Chain, bool) {
	if len(members) == 0 {
		return nil, false
	}
	for i, t := range members {
		if t == nil {
			return nil, false
		}
		if i > 0 && !members[i-1].Bonded(t.ID) {
			return nil, false
		}
	}
	c := &Chain{
		id:           id,
		rules:        rules,
		params:       p.withDefaults(),
		createdAt:    createdAt,
		lastModified: lastModified,
	}
	for _, t := range members {
		c.pushBack(t)
	}
	return c, true
}

func (c *Chain) ID() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hi - c.lo
}

func (c *Chain) Head() *token.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.hi == c.lo {
		return nil
	}
	return c.buf[c.lo]
}

func (c *Chain) Tail() *token.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.hi == c.lo {
		return nil
	}
	return c.buf[c.hi-1]
}

// Members returns the ordered members, head first.
func (c *Chain) Members() []*token.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*token.Token(nil), c.buf[c.lo:c.hi]...)
}

func (c *Chain) MemberIDs() []token.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]token.ID, 0, c.hi-c.lo)
	for _, t := range c.buf[c.lo:c.hi] {
		out = append(out, t.ID)
	}
	return out
}

// IndexOf returns the 0-based position of t.
func (c *Chain) IndexOf(t *token.Token) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	slot, ok := c.slotOf(t)
	if !ok {
		return 0, false
	}
	return slot - c.lo, true
}

func (c *Chain) Contains(t *token.Token) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.slotOf(t)
	return ok
}

// IsEdge reports whether t is the head or the tail.
func (c *Chain) IsEdge(t *token.Token) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	slot, ok := c.slotOf(t)
	return ok && (slot == c.lo || slot == c.hi-1)
}

func (c *Chain) Mass() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mass
}

// Energy sums member energies at call time.
func (c *Chain) Energy() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e := 0
	for _, t := range c.buf[c.lo:c.hi] {
		e += t.Energy
	}
	return e
}

func (c *Chain) CreatedAt() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.createdAt
}

func (c *Chain) LastModified() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastModified
}

// Add attaches t at the tail or the head. t must be active, unchained and
// bonded to the edge it attaches to.
func (c *Chain) Add(t *token.Token, atTail bool, tick uint64) bool {
	if t == nil || !t.Active || t.InChain() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.slotOf(t); ok {
		return false
	}
	if c.hi > c.lo {
		edge := c.buf[c.lo]
		if atTail {
			edge = c.buf[c.hi-1]
		}
		if !edge.Bonded(t.ID) {
			return false
		}
	}
	if atTail {
		c.pushBack(t)
	} else {
		c.pushFront(t)
	}
	c.touch(tick)
	return true
}

// Remove takes t out of the chain. Removing an edge member shrinks the chain
// and returns no chains; removing the sole member leaves it empty. Removing
// an interior member splits it: this chain keeps the head side and a new,
// unregistered chain holding the tail side is returned after it.
func (c *Chain) Remove(t *token.Token, tick uint64) ([]*Chain, bool) {
	if t == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, ok := c.slotOf(t)
	if !ok {
		return nil, false
	}
	switch slot {
	case c.lo:
		c.popFront()
		c.touch(tick)
		return nil, true
	case c.hi - 1:
		c.popBack()
		c.touch(tick)
		return nil, true
	}

	tail := c.cutAfter(slot, tick)
	c.popBack()
	c.touch(tick)
	return []*Chain{c, tail}, true
}

// SplitAfter cuts the chain between positions k and k+1. This chain keeps
// the head side; the tail side is returned as a new, unregistered chain.
func (c *Chain) SplitAfter(k int, tick uint64) (*Chain, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if k < 0 || c.lo+k+1 >= c.hi {
		return nil, false
	}
	tail := c.cutAfter(c.lo+k, tick)
	c.touch(tick)
	return tail, true
}

// cutAfter moves members after slot into a new chain.
func (c *Chain) cutAfter(slot int, tick uint64) *Chain {
	tail := &Chain{
		rules:        c.rules,
		params:       c.params,
		createdAt:    c.createdAt,
		lastModified: tick,
	}
	for i := slot + 1; i < c.hi; i++ {
		m := c.buf[i]
		c.buf[i] = nil
		c.mass -= m.Mass
		m.ClearChainRef()
		tail.pushBack(m)
	}
	c.hi = slot + 1
	return tail
}

// Join absorbs other's members. One edge of other must be bonded to one edge
// of c; other is reversed as needed so the bonded edges become adjacent, and
// is left empty for the caller to unregister.
func (c *Chain) Join(other *Chain, tick uint64) bool {
	if other == nil || other == c {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	other.mu.Lock()
	defer other.mu.Unlock()
	if c.hi == c.lo || other.hi == other.lo {
		return false
	}

	head, tail := c.buf[c.lo], c.buf[c.hi-1]
	oHead, oTail := other.buf[other.lo], other.buf[other.hi-1]
	moved := append([]*token.Token(nil), other.buf[other.lo:other.hi]...)

	var atTail, fromEnd bool
	switch {
	case tail.Bonded(oHead.ID):
		atTail = true
	case tail.Bonded(oTail.ID):
		atTail, fromEnd = true, true
	case head.Bonded(oTail.ID):
		fromEnd = true
	case head.Bonded(oHead.ID):
	default:
		return false
	}

	other.clear()
	if atTail {
		for i := range moved {
			m := moved[i]
			if fromEnd {
				m = moved[len(moved)-1-i]
			}
			c.pushBack(m)
		}
	} else {
		for i := range moved {
			m := moved[i]
			if fromEnd {
				m = moved[len(moved)-1-i]
			}
			c.pushFront(m)
		}
	}
	c.touch(tick)
	other.touch(tick)
	return true
}

// Invalidate drops cached derived values after a member changed in place
// (for example a corrupted type).
func (c *Chain) Invalidate(tick uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch(tick)
}

// CodeString renders member values joined by single spaces.
func (c *Chain) CodeString() string {
	c.mu.RLock()
	if c.codeOK {
		s := c.code
		c.mu.RUnlock()
		return s
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.codeOK {
		var b strings.Builder
		for i, t := range c.buf[c.lo:c.hi] {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(t.Value)
		}
		c.code, c.codeOK = b.String(), true
	}
	return c.code
}

// Validate matches the ordered member types against the rule set. An empty
// chain is never valid.
func (c *Chain) Validate() grammar.ValidationResult {
	c.mu.RLock()
	if c.validOK {
		v := c.validation
		c.mu.RUnlock()
		return v
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.validOK {
		c.validation = c.rules.Validate(c.buf[c.lo:c.hi])
		c.validOK = true
	}
	return c.validation
}

func (c *Chain) IsValid() bool { return c.Validate().Valid }

// setID is called by the registry; it rewrites member back-references.
func (c *Chain) setID(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
	c.relink()
}

func (c *Chain) slotOf(t *token.Token) (int, bool) {
	if t == nil {
		return 0, false
	}
	id, slot, _ := t.ChainRef()
	if id != c.id || slot < c.lo || slot >= c.hi || c.buf[slot] != t {
		return 0, false
	}
	return slot, true
}

func (c *Chain) touch(tick uint64) {
	if tick > c.lastModified {
		c.lastModified = tick
	}
	c.codeOK = false
	c.validOK = false
	c.stabilityOK = false
}

func (c *Chain) pushBack(t *token.Token) {
	if c.hi == len(c.buf) {
		c.regrow()
	}
	c.buf[c.hi] = t
	t.SetChainRef(c.id, c.hi)
	c.hi++
	c.mass += t.Mass
}

func (c *Chain) pushFront(t *token.Token) {
	if c.lo == 0 {
		c.regrow()
	}
	c.lo--
	c.buf[c.lo] = t
	t.SetChainRef(c.id, c.lo)
	c.mass += t.Mass
}

func (c *Chain) popFront() {
	t := c.buf[c.lo]
	c.buf[c.lo] = nil
	c.lo++
	c.mass -= t.Mass
	t.ClearChainRef()
}

func (c *Chain) popBack() {
	c.hi--
	t := c.buf[c.hi]
	c.buf[c.hi] = nil
	c.mass -= t.Mass
	t.ClearChainRef()
}

// regrow recenters members in a larger buffer. Slots change, so
// back-references are rewritten; doubling keeps this amortized.
func (c *Chain) regrow() {
	n := c.hi - c.lo
	slack := n + 4
	nb := make([]*token.Token, n+2*slack)
	copy(nb[slack:], c.buf[c.lo:c.hi])
	c.buf, c.lo, c.hi = nb, slack, slack+n
	c.relink()
}

func (c *Chain) relink() {
	for i := c.lo; i < c.hi; i++ {
		c.buf[i].SetChainRef(c.id, i)
	}
}

func (c *Chain) clear() {
	for i := c.lo; i < c.hi; i++ {
		c.buf[i] = nil
	}
	c.buf, c.lo, c.hi, c.mass = nil, 0, 0, 0
}

// Release empties the chain and clears every member's back-reference. It
// returns the former members in order.
func (c *Chain) Release(tick uint64) []*token.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	members := append([]*token.Token(nil), c.buf[c.lo:c.hi]...)
	for _, t := range members {
		if id, _, _ := t.ChainRef(); id == c.id {
			t.ClearChainRef()
		}
	}
	c.clear()
	c.touch(tick)
	return members
}
