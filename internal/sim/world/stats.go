package world

import "codechem.ai/internal/sim/spatial"

// Stats is a point-in-time summary of the soup, computed on the loop
// goroutine after each tick.
type Stats struct {
	Tick uint64 `json:"tick"`

	Tokens      int `json:"tokens"`
	TotalMass   int `json:"total_mass"`
	TotalEnergy int `json:"total_energy"`
	Rising      int `json:"rising"`
	Sinking     int `json:"sinking"`
	Damaged     int `json:"damaged"`

	Chains       int     `json:"chains"`
	ValidChains  int     `json:"valid_chains"`
	AvgChainLen  float64 `json:"avg_chain_len"`
	MaxChainLen  int     `json:"max_chain_len"`
	AvgStability float64 `json:"avg_stability"`

	BondsFormed   uint64 `json:"bonds_formed"`
	BondsBroken   uint64 `json:"bonds_broken"`
	BondsThisTick int    `json:"bonds_this_tick"`
	Spawned       uint64 `json:"spawned"`
	Deactivated   uint64 `json:"deactivated"`

	Spatial spatial.Stats `json:"spatial"`
}

func (w *World) computeStats(nowTick uint64, formed int) Stats {
	s := Stats{
		Tick:          nowTick,
		BondsFormed:   w.manager.BondsFormed(),
		BondsBroken:   w.manager.BondsBroken(),
		BondsThisTick: formed,
		Spawned:       w.spawned,
		Deactivated:   w.deactivated,
		Spatial:       w.index.Stats(),
	}
	for _, t := range w.pool.All() {
		s.Tokens++
		s.TotalMass += t.Mass
		s.TotalEnergy += t.Energy
		if t.Energy > 0 {
			s.Rising++
		} else {
			s.Sinking++
		}
		if t.Damaged {
			s.Damaged++
		}
	}
	rs := w.registry.Statistics()
	s.Chains = rs.Chains
	s.ValidChains = rs.Valid
	s.AvgChainLen = rs.AvgLength
	s.MaxChainLen = rs.MaxLength
	s.AvgStability = rs.AvgStability
	return s
}
