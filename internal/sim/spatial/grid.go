package spatial

import (
	"sort"

	"codechem.ai/internal/sim/geom"
	"codechem.ai/internal/sim/token"
)

// Cell is one unit cube of the volume.
type Cell struct {
	Pos    geom.Vec3i
	Tokens []*token.Token
	Mass   int
}

// Grid is a sparse unit-cell partition. A cell exists only while it holds at
// least one token, so the key set is the active-cell set.
type Grid struct {
	capacity int
	cells    map[geom.Vec3i]*Cell
}

func NewGrid(capacity int) *Grid {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Grid{capacity: capacity, cells: make(map[geom.Vec3i]*Cell)}
}

func (g *Grid) Capacity() int { return g.capacity }

func (g *Grid) Add(t *token.Token, pos geom.Vec3i) {
	c := g.cells[pos]
	if c == nil {
		c = &Cell{Pos: pos}
		g.cells[pos] = c
	}
	c.Tokens = append(c.Tokens, t)
	c.Mass += t.Mass
}

func (g *Grid) Remove(t *token.Token, pos geom.Vec3i) bool {
	c := g.cells[pos]
	if c == nil {
		return false
	}
	for i, o := range c.Tokens {
		if o.ID != t.ID {
			continue
		}
		last := len(c.Tokens) - 1
		c.Tokens[i] = c.Tokens[last]
		c.Tokens[last] = nil
		c.Tokens = c.Tokens[:last]
		c.Mass -= o.Mass
		if len(c.Tokens) == 0 {
			delete(g.cells, pos)
		}
		return true
	}
	return false
}

// Tokens returns a copy of the cell's occupants ordered by id.
func (g *Grid) Tokens(pos geom.Vec3i) []*token.Token {
	c := g.cells[pos]
	if c == nil {
		return nil
	}
	out := append([]*token.Token(nil), c.Tokens...)
	sortByID(out)
	return out
}

func (g *Grid) Mass(pos geom.Vec3i) int {
	if c := g.cells[pos]; c != nil {
		return c.Mass
	}
	return 0
}

// CanAccept reports whether mass more units fit into the cell at pos.
func (g *Grid) CanAccept(pos geom.Vec3i, mass int) bool {
	return g.Mass(pos)+mass <= g.capacity
}

// ActiveCells lists occupied cells, bottom layer first.
func (g *Grid) ActiveCells() []geom.Vec3i {
	out := make([]geom.Vec3i, 0, len(g.cells))
	for p := range g.cells {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return geom.Less(out[i], out[j]) })
	return out
}

func (g *Grid) Len() int { return len(g.cells) }

func (g *Grid) Clear() { g.cells = make(map[geom.Vec3i]*Cell) }
