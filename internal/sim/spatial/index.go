// Package spatial indexes tokens by position.
//
// An Index pairs an adaptive octree, used for range and nearest-neighbor
// queries, with a sparse unit grid that tracks per-cell occupancy and mass.
// Both structures are guarded by a single lock, so every query observes a
// consistent state.
package spatial

import (
	"sync"

	"codechem.ai/internal/sim/geom"
	"codechem.ai/internal/sim/token"
)

type Config struct {
	SizeX, SizeY, SizeZ int

	MaxOccupancy int // entries per node before it subdivides
	MaxDepth     int
	RebuildEvery int // updates before NeedsRebuild reports true
	CellCapacity int // mass units per unit cell
}

func (c Config) withDefaults() Config {
	if c.SizeX <= 0 {
		c.SizeX = 100
	}
	if c.SizeY <= 0 {
		c.SizeY = 100
	}
	if c.SizeZ <= 0 {
		c.SizeZ = 100
	}
	if c.MaxOccupancy <= 0 {
		c.MaxOccupancy = 8
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 8
	}
	if c.RebuildEvery <= 0 {
		c.RebuildEvery = 1000
	}
	if c.CellCapacity <= 0 {
		c.CellCapacity = 1000
	}
	return c
}

type Index struct {
	mu   sync.RWMutex
	cfg  Config
	tree *Octree
	grid *Grid

	updates  int
	rebuilds int
}

func New(cfg Config) *Index {
	cfg = cfg.withDefaults()
	return &Index{
		cfg:  cfg,
		tree: NewOctree(geom.NewBox(cfg.SizeX, cfg.SizeY, cfg.SizeZ), cfg.MaxOccupancy, cfg.MaxDepth),
		grid: NewGrid(cfg.CellCapacity),
	}
}

func (ix *Index) Config() Config { return ix.cfg }

// InBounds reports whether p lies inside the indexed volume.
func (ix *Index) InBounds(p geom.Vec3i) bool {
	return ix.tree.Bounds().Contains(p)
}

// Insert indexes t at t.Pos. It fails when the position is out of bounds or
// t is already indexed.
func (ix *Index) Insert(t *token.Token) bool {
	if t == nil {
		return false
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.tree.Insert(t, t.Pos) {
		return false
	}
	ix.grid.Add(t, t.Pos)
	return true
}

func (ix *Index) Remove(t *token.Token) bool {
	if t == nil {
		return false
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	pos, ok := ix.tree.Remove(t.ID)
	if !ok {
		return false
	}
	ix.grid.Remove(t, pos)
	return true
}

// Update moves t from old to t.Pos. It fails, leaving the index untouched,
// when t is not indexed at old or the new position is out of bounds.
func (ix *Index) Update(t *token.Token, old geom.Vec3i) bool {
	if t == nil {
		return false
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	cur, ok := ix.tree.Position(t.ID)
	if !ok || cur != old {
		return false
	}
	if t.Pos == old {
		return true
	}
	if !ix.tree.Bounds().Contains(t.Pos) {
		return false
	}
	ix.tree.Remove(t.ID)
	ix.grid.Remove(t, old)
	ix.tree.Insert(t, t.Pos)
	ix.grid.Add(t, t.Pos)
	ix.updates++
	return true
}

func (ix *Index) Contains(id token.ID) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tree.Has(id)
}

func (ix *Index) Position(id token.ID) (geom.Vec3i, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tree.Position(id)
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tree.Len()
}

// QueryRange returns tokens within Euclidean distance radius of center
// (inclusive), ordered by id.
func (ix *Index) QueryRange(center geom.Vec3i, radius float64) []*token.Token {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tree.QueryRange(center, radius)
}

// QueryBox returns tokens inside the closed box [lo, hi], ordered by id.
func (ix *Index) QueryBox(lo, hi geom.Vec3i) []*token.Token {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tree.QueryBox(lo, hi)
}

// KNearest returns up to k tokens ordered by ascending distance to p.
func (ix *Index) KNearest(p geom.Vec3i, k int) []*token.Token {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tree.KNearest(p, k)
}

func (ix *Index) NeedsRebuild() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.updates >= ix.cfg.RebuildEvery
}

func (ix *Index) Rebuild() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.tree.Rebuild()
	ix.updates = 0
	ix.rebuilds++
}

func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.tree.Clear()
	ix.grid.Clear()
	ix.updates = 0
}

func (ix *Index) ActiveCells() []geom.Vec3i {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.grid.ActiveCells()
}

func (ix *Index) CellTokens(p geom.Vec3i) []*token.Token {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.grid.Tokens(p)
}

func (ix *Index) CellMass(p geom.Vec3i) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.grid.Mass(p)
}

// CanAccept reports whether mass more units fit into the cell at p.
func (ix *Index) CanAccept(p geom.Vec3i, mass int) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.grid.CanAccept(p, mass)
}

type Stats struct {
	Count               int `json:"count"`
	Nodes               int `json:"nodes"`
	Leaves              int `json:"leaves"`
	MaxDepth            int `json:"max_depth"`
	LeafOccupancy       int `json:"leaf_occupancy"`
	Subdivisions        int `json:"subdivisions"`
	ActiveCells         int `json:"active_cells"`
	UpdatesSinceRebuild int `json:"updates_since_rebuild"`
	Rebuilds            int `json:"rebuilds"`
}

func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ts := ix.tree.Stats()
	return Stats{
		Count:               ix.tree.Len(),
		Nodes:               ts.Nodes,
		Leaves:              ts.Leaves,
		MaxDepth:            ts.MaxDepth,
		LeafOccupancy:       ts.LeafOccupancy,
		Subdivisions:        ts.Subdivisions,
		ActiveCells:         ix.grid.Len(),
		UpdatesSinceRebuild: ix.updates,
		Rebuilds:            ix.rebuilds,
	}
}
