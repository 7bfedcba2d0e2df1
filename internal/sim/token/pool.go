package token

import (
	"sort"
	"sync"
	"sync/atomic"

	"codechem.ai/internal/sim/geom"
)

// Pool owns the live tokens. Reads may run concurrently with the tick goroutine;
// token fields themselves are only mutated from the tick goroutine.
type Pool struct {
	mu     sync.RWMutex
	tokens map[ID]*Token
	nextID atomic.Uint64
}

func NewPool() *Pool {
	return &Pool{tokens: make(map[ID]*Token)}
}

// Spawn allocates an id and adds a new token.
func (p *Pool) Spawn(value string, pos geom.Vec3i, energy int) *Token {
	t := New(ID(p.nextID.Add(1)), value, pos, energy)
	p.mu.Lock()
	p.tokens[t.ID] = t
	p.mu.Unlock()
	return t
}

// Add inserts an existing token (e.g. restored from a snapshot). It fails on
// a zero or duplicate id and keeps the id allocator ahead of restored ids.
func (p *Pool) Add(t *Token) bool {
	if t == nil || t.ID == 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.tokens[t.ID]; ok {
		return false
	}
	p.tokens[t.ID] = t
	for {
		cur := p.nextID.Load()
		if uint64(t.ID) <= cur || p.nextID.CompareAndSwap(cur, uint64(t.ID)) {
			break
		}
	}
	return true
}

func (p *Pool) Get(id ID) *Token {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tokens[id]
}

func (p *Pool) Remove(id ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.tokens[id]; !ok {
		return false
	}
	delete(p.tokens, id)
	return true
}

func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tokens)
}

// All returns the live tokens ordered by id.
func (p *Pool) All() []*Token {
	p.mu.RLock()
	out := make([]*Token, 0, len(p.tokens))
	for _, t := range p.tokens {
		out = append(out, t)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NextID reports the last allocated id.
func (p *Pool) NextID() uint64 { return p.nextID.Load() }

// SetNextID moves the allocator forward; it never moves it back.
func (p *Pool) SetNextID(n uint64) {
	for {
		cur := p.nextID.Load()
		if n <= cur || p.nextID.CompareAndSwap(cur, n) {
			return
		}
	}
}
