package chain

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Registry owns every live chain. Identities come from an atomic counter and
// are never reused, even across Clear.
type Registry struct {
	mu     sync.RWMutex
	chains map[uint64]*Chain
	nextID atomic.Uint64
}

func NewRegistry() *Registry {
	return &Registry{chains: make(map[uint64]*Chain)}
}

// Register assigns c an identity if it has none, or replaces the entry under
// its existing identity. Member back-references are rewritten either way.
func (r *Registry) Register(c *Chain) uint64 {
	if c == nil {
		return 0
	}
	id := c.ID()
	if id == 0 {
		id = r.nextID.Add(1)
	} else {
		r.observeID(id)
	}
	c.setID(id)

	r.mu.Lock()
	r.chains[id] = c
	r.mu.Unlock()
	return id
}

func (r *Registry) observeID(id uint64) {
	for {
		cur := r.nextID.Load()
		if id <= cur || r.nextID.CompareAndSwap(cur, id) {
			return
		}
	}
}

func (r *Registry) Unregister(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chains[id]; !ok {
		return false
	}
	delete(r.chains, id)
	return true
}

func (r *Registry) Get(id uint64) (*Chain, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chains[id]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chains)
}

// GetAll returns every chain ordered by identity.
func (r *Registry) GetAll() []*Chain {
	r.mu.RLock()
	out := make([]*Chain, 0, len(r.chains))
	for _, c := range r.chains {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// UpdateAllStabilities recomputes scores that are stale at tick.
func (r *Registry) UpdateAllStabilities(tick uint64) {
	for _, c := range r.GetAll() {
		c.Stability(tick)
	}
}

// PruneStale unregisters chains unmodified for more than maxAge ticks and
// returns them, ordered by identity, so the caller can dissolve their bonds.
func (r *Registry) PruneStale(tick, maxAge uint64) []*Chain {
	r.mu.Lock()
	var pruned []*Chain
	for id, c := range r.chains {
		lm := c.LastModified()
		if tick > lm && tick-lm > maxAge {
			pruned = append(pruned, c)
			delete(r.chains, id)
		}
	}
	r.mu.Unlock()
	sort.Slice(pruned, func(i, j int) bool { return pruned[i].ID() < pruned[j].ID() })
	return pruned
}

// GetByStability orders chains by their last computed stability, highest
// first, ties by identity. It never recomputes: a chain mutated since the
// last UpdateAllStabilities ranks by its previous score until the next one.
func (r *Registry) GetByStability() []*Chain {
	all := r.GetAll()
	score := make(map[*Chain]float64, len(all))
	for _, c := range all {
		score[c] = c.CachedStability()
	}
	sort.SliceStable(all, func(i, j int) bool { return score[all[i]] > score[all[j]] })
	return all
}

// GetByLength orders chains longest first, ties by identity.
func (r *Registry) GetByLength() []*Chain {
	all := r.GetAll()
	n := make(map[*Chain]int, len(all))
	for _, c := range all {
		n[c] = c.Len()
	}
	sort.SliceStable(all, func(i, j int) bool { return n[all[i]] > n[all[j]] })
	return all
}

type Statistics struct {
	Chains       int     `json:"chains"`
	Members      int     `json:"members"`
	Valid        int     `json:"valid"`
	AvgLength    float64 `json:"avg_length"`
	MaxLength    int     `json:"max_length"`
	AvgStability float64 `json:"avg_stability"`
	MaxStability float64 `json:"max_stability"`
	NextID       uint64  `json:"next_id"`
}

func (r *Registry) Statistics() Statistics {
	all := r.GetAll()
	s := Statistics{Chains: len(all), NextID: r.nextID.Load()}
	var stab float64
	for _, c := range all {
		n := c.Len()
		s.Members += n
		if n > s.MaxLength {
			s.MaxLength = n
		}
		if c.IsValid() {
			s.Valid++
		}
		cs := c.CachedStability()
		stab += cs
		if cs > s.MaxStability {
			s.MaxStability = cs
		}
	}
	if len(all) > 0 {
		s.AvgLength = float64(s.Members) / float64(len(all))
		s.AvgStability = stab / float64(len(all))
	}
	return s
}

// Clear drops every chain. The identity counter keeps running.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains = make(map[uint64]*Chain)
}

// NextID returns the last identity handed out.
func (r *Registry) NextID() uint64 { return r.nextID.Load() }

// SetNextID advances the counter when restoring state; it never moves back.
func (r *Registry) SetNextID(n uint64) { r.observeID(n) }
