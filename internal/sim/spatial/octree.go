package spatial

import (
	"container/heap"
	"sort"

	"codechem.ai/internal/sim/geom"
	"codechem.ai/internal/sim/token"
)

type entry struct {
	tok *token.Token
	pos geom.Vec3i
}

type node struct {
	box      geom.Box
	depth    int
	items    []entry
	children *[8]*node
}

func (n *node) leaf() bool { return n.children == nil }

// childFor returns the octant holding p, or nil when no child region contains
// it. Such entries stay in the parent.
func (n *node) childFor(p geom.Vec3i) *node {
	mid := n.box.Mid()
	i := 0
	if float64(p.X) >= mid[0] {
		i |= 1
	}
	if float64(p.Y) >= mid[1] {
		i |= 2
	}
	if float64(p.Z) >= mid[2] {
		i |= 4
	}
	c := n.children[i]
	if !c.box.Contains(p) {
		return nil
	}
	return c
}

// Octree is an adaptive region tree. It is not safe for concurrent use; Index
// wraps it with a lock.
type Octree struct {
	root     *node
	maxItems int
	maxDepth int

	count        int
	subdivisions int
	loc          map[token.ID]*node
}

func NewOctree(bounds geom.Box, maxItems, maxDepth int) *Octree {
	if maxItems <= 0 {
		maxItems = 8
	}
	if maxDepth <= 0 {
		maxDepth = 8
	}
	return &Octree{
		root:     &node{box: bounds},
		maxItems: maxItems,
		maxDepth: maxDepth,
		loc:      make(map[token.ID]*node),
	}
}

func (o *Octree) Len() int { return o.count }

func (o *Octree) Bounds() geom.Box { return o.root.box }

func (o *Octree) Has(id token.ID) bool {
	_, ok := o.loc[id]
	return ok
}

// Insert fails when pos is outside the root region or t is already indexed.
func (o *Octree) Insert(t *token.Token, pos geom.Vec3i) bool {
	if t == nil || !o.root.box.Contains(pos) {
		return false
	}
	if _, ok := o.loc[t.ID]; ok {
		return false
	}
	o.insert(o.root, entry{tok: t, pos: pos})
	o.count++
	return true
}

func (o *Octree) insert(n *node, e entry) {
	for !n.leaf() {
		c := n.childFor(e.pos)
		if c == nil {
			break
		}
		n = c
	}
	n.items = append(n.items, e)
	o.loc[e.tok.ID] = n
	if n.leaf() && len(n.items) > o.maxItems && n.depth < o.maxDepth {
		o.subdivide(n)
	}
}

func (o *Octree) subdivide(n *node) {
	var kids [8]*node
	for i := range kids {
		kids[i] = &node{box: n.box.Octant(i), depth: n.depth + 1}
	}
	n.children = &kids
	o.subdivisions++

	items := n.items
	n.items = nil
	for _, e := range items {
		if c := n.childFor(e.pos); c != nil {
			o.insert(c, e)
			continue
		}
		n.items = append(n.items, e)
		o.loc[e.tok.ID] = n
	}
}

// Remove deletes the entry for id and returns the position it was indexed at.
func (o *Octree) Remove(id token.ID) (geom.Vec3i, bool) {
	n, ok := o.loc[id]
	if !ok {
		return geom.Vec3i{}, false
	}
	for i := range n.items {
		if n.items[i].tok.ID != id {
			continue
		}
		pos := n.items[i].pos
		last := len(n.items) - 1
		n.items[i] = n.items[last]
		n.items[last] = entry{}
		n.items = n.items[:last]
		delete(o.loc, id)
		o.count--
		return pos, true
	}
	return geom.Vec3i{}, false
}

// Position returns the position id is indexed at.
func (o *Octree) Position(id token.ID) (geom.Vec3i, bool) {
	n, ok := o.loc[id]
	if !ok {
		return geom.Vec3i{}, false
	}
	for _, e := range n.items {
		if e.tok.ID == id {
			return e.pos, true
		}
	}
	return geom.Vec3i{}, false
}

// QueryRange returns entries within the closed sphere, pruning subtrees whose
// region cannot intersect it.
func (o *Octree) QueryRange(center geom.Vec3i, radius float64) []*token.Token {
	if radius < 0 {
		return nil
	}
	r2 := radius * radius
	var out []*token.Token
	var visit func(n *node)
	visit = func(n *node) {
		if n.box.Dist2To(center) > r2 {
			return
		}
		for _, e := range n.items {
			if geom.Dist2(e.pos, center) <= r2 {
				out = append(out, e.tok)
			}
		}
		if n.children != nil {
			for _, c := range n.children {
				visit(c)
			}
		}
	}
	visit(o.root)
	sortByID(out)
	return out
}

// QueryBox returns entries inside the closed box [lo, hi].
func (o *Octree) QueryBox(lo, hi geom.Vec3i) []*token.Token {
	var out []*token.Token
	var visit func(n *node)
	visit = func(n *node) {
		if !n.box.IntersectsBox(lo, hi) {
			return
		}
		for _, e := range n.items {
			if geom.InBox(e.pos, lo, hi) {
				out = append(out, e.tok)
			}
		}
		if n.children != nil {
			for _, c := range n.children {
				visit(c)
			}
		}
	}
	visit(o.root)
	sortByID(out)
	return out
}

type candidate struct {
	d2  float64
	tok *token.Token
}

// farther orders candidates by distance, then id, both descending.
func farther(a, b candidate) bool {
	if a.d2 != b.d2 {
		return a.d2 > b.d2
	}
	return a.tok.ID > b.tok.ID
}

// worstHeap keeps the current k best with the worst on top.
type worstHeap []candidate

func (h worstHeap) Len() int           { return len(h) }
func (h worstHeap) Less(i, j int) bool { return farther(h[i], h[j]) }
func (h worstHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *worstHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// KNearest returns up to k entries ordered by ascending distance to p, ties
// broken by ascending id.
func (o *Octree) KNearest(p geom.Vec3i, k int) []*token.Token {
	if k <= 0 || o.count == 0 {
		return nil
	}
	h := make(worstHeap, 0, min(k, o.count))
	var visit func(n *node)
	visit = func(n *node) {
		if len(h) == k && n.box.Dist2To(p) > h[0].d2 {
			return
		}
		for _, e := range n.items {
			c := candidate{d2: geom.Dist2(e.pos, p), tok: e.tok}
			if len(h) < k {
				heap.Push(&h, c)
				continue
			}
			if farther(h[0], c) {
				h[0] = c
				heap.Fix(&h, 0)
			}
		}
		if n.children == nil {
			return
		}
		kids := make([]*node, 0, 8)
		for _, c := range n.children {
			kids = append(kids, c)
		}
		sort.SliceStable(kids, func(i, j int) bool { return kids[i].box.Dist2To(p) < kids[j].box.Dist2To(p) })
		for _, c := range kids {
			visit(c)
		}
	}
	visit(o.root)

	sort.Slice(h, func(i, j int) bool { return farther(h[j], h[i]) })
	out := make([]*token.Token, len(h))
	for i, c := range h {
		out[i] = c.tok
	}
	return out
}

type TreeStats struct {
	Nodes         int
	Leaves        int
	MaxDepth      int
	LeafOccupancy int // sum of entries held by all nodes
	Subdivisions  int
}

func (o *Octree) Stats() TreeStats {
	s := TreeStats{Subdivisions: o.subdivisions}
	var visit func(n *node)
	visit = func(n *node) {
		s.Nodes++
		s.LeafOccupancy += len(n.items)
		if n.depth > s.MaxDepth {
			s.MaxDepth = n.depth
		}
		if n.children == nil {
			s.Leaves++
			return
		}
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(o.root)
	return s
}

func (o *Octree) entries() []entry {
	out := make([]entry, 0, o.count)
	var visit func(n *node)
	visit = func(n *node) {
		out = append(out, n.items...)
		if n.children != nil {
			for _, c := range n.children {
				visit(c)
			}
		}
	}
	visit(o.root)
	sort.Slice(out, func(i, j int) bool { return out[i].tok.ID < out[j].tok.ID })
	return out
}

// Rebuild discards the node structure and reinserts every entry, compacting
// subtrees left sparse by churn.
func (o *Octree) Rebuild() {
	all := o.entries()
	o.Clear()
	for _, e := range all {
		o.insert(o.root, e)
		o.count++
	}
}

func (o *Octree) Clear() {
	o.root = &node{box: o.root.box}
	o.loc = make(map[token.ID]*node)
	o.count = 0
}

func sortByID(ts []*token.Token) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}
