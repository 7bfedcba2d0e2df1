package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int   `yaml:"tick_rate_hz"`
	Seed       int64 `yaml:"seed"`
	WorldSize  []int `yaml:"world_size"` // x, y, z

	Spatial  Spatial  `yaml:"spatial"`
	Bonding  Bonding  `yaml:"bonding"`
	Chain    Chain    `yaml:"chain"`
	Registry Registry `yaml:"registry"`
	Vent     Vent     `yaml:"vent"`
	Physics  Physics  `yaml:"physics"`
	Damage   Damage   `yaml:"damage"`

	StatsEveryTicks    int `yaml:"stats_every_ticks"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
}

type Spatial struct {
	MaxOccupancy int `yaml:"max_occupancy"`
	MaxDepth     int `yaml:"max_depth"`
	RebuildEvery int `yaml:"rebuild_every_updates"`
	CellCapacity int `yaml:"cell_mass_capacity"`
}

type Bonding struct {
	GrammarWeight   float64 `yaml:"grammar_weight"`
	ElectroWeight   float64 `yaml:"electronegativity_weight"`
	MinStrength     float64 `yaml:"min_strength"`
	ReverseFactor   float64 `yaml:"reverse_factor"`
	MinCost         int     `yaml:"min_cost"`
	MaxCost         int     `yaml:"max_cost"`
	CostCovalent    int     `yaml:"cost_covalent"`
	CostIonic       int     `yaml:"cost_ionic"`
	CostVanDerWaals int     `yaml:"cost_van_der_waals"`
	Workers         int     `yaml:"workers"`
}

type Chain struct {
	StabilityWindow int     `yaml:"stability_window_ticks"`
	WeightLength    float64 `yaml:"weight_length"`
	WeightBond      float64 `yaml:"weight_bond"`
	WeightValidity  float64 `yaml:"weight_validity"`
	WeightAge       float64 `yaml:"weight_age"`
	AgeSaturation   int     `yaml:"age_saturation_ticks"`
}

type Registry struct {
	PruneMaxAge       int  `yaml:"prune_max_age_ticks"`
	PruneEveryTicks   int  `yaml:"prune_every_ticks"`
	EnforceGrammar    bool `yaml:"enforce_grammar"`
	EnforceEveryTicks int  `yaml:"enforce_every_ticks"`

	// A literal is dropped next to every "=" followed by punctuation.
	InsertDefaults     bool `yaml:"insert_default_values"`
	DefaultsEveryTicks int  `yaml:"default_values_every_ticks"`
}

type Vent struct {
	EveryTicks int   `yaml:"every_ticks"`
	Burst      int   `yaml:"burst"`
	Energy     int   `yaml:"energy"`
	Position   []int `yaml:"position"` // defaults to the bottom center
}

type Physics struct {
	RiseCost        int     `yaml:"rise_cost"`
	CollisionCost   int     `yaml:"collision_cost"` // paid by a riser per sinking token it pushes aside
	JitterChance    float64 `yaml:"jitter_chance"`
	MaxTokens       int     `yaml:"max_tokens"`
	DeactivateBelow int     `yaml:"deactivate_below_z"`
}

type Damage struct {
	Enabled          bool    `yaml:"enabled"`
	MaxProbability   float64 `yaml:"max_probability"`
	Exponent         float64 `yaml:"exponent"`
	CorruptChance    float64 `yaml:"corrupt_chance"`
	DetachChance     float64 `yaml:"detach_chance"`
	RepairEveryTicks int     `yaml:"repair_every_ticks"`
	RepairMaxZ       int     `yaml:"repair_max_z"` // repair odds fall to zero at this altitude
	RepairChance     float64 `yaml:"repair_chance"`
}

// Defaults returns the built-in tuning used when no file is given.
func Defaults() Tuning {
	return Tuning{
		TickRateHz: 10,
		Seed:       1,
		WorldSize:  []int{100, 100, 100},
		Spatial: Spatial{
			MaxOccupancy: 8,
			MaxDepth:     8,
			RebuildEvery: 1000,
			CellCapacity: 1000,
		},
		Bonding: Bonding{
			GrammarWeight:   0.75,
			ElectroWeight:   0.25,
			MinStrength:     0.3,
			ReverseFactor:   0.8,
			MinCost:         5,
			MaxCost:         20,
			CostCovalent:    15,
			CostIonic:       10,
			CostVanDerWaals: 5,
			Workers:         4,
		},
		Chain: Chain{
			StabilityWindow: 10,
			WeightLength:    0.2,
			WeightBond:      0.4,
			WeightValidity:  0.3,
			WeightAge:       0.1,
			AgeSaturation:   100,
		},
		Registry: Registry{
			PruneMaxAge:       1000,
			PruneEveryTicks:   100,
			EnforceGrammar:    true,
			EnforceEveryTicks: 10,

			InsertDefaults:     true,
			DefaultsEveryTicks: 50,
		},
		Vent: Vent{
			EveryTicks: 5,
			Burst:      1,
			Energy:     50,
		},
		Physics: Physics{
			RiseCost:      1,
			CollisionCost: 1,
			JitterChance:  0.3,
			MaxTokens:     20000,
		},
		Damage: Damage{
			Enabled:          true,
			MaxProbability:   0.5,
			Exponent:         3,
			CorruptChance:    0.3,
			DetachChance:     0.7,
			RepairEveryTicks: 20,
			RepairMaxZ:       50,
			RepairChance:     0.1,
		},
		StatsEveryTicks:    10,
		SnapshotEveryTicks: 3000,
	}
}

// Load reads a yaml tuning file. Fields left out of the file keep their
// defaults; booleans are only overridden when present.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	applyDefaults(&t)
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// applyDefaults repairs zero values an explicit but partial file may have
// written over.
func applyDefaults(t *Tuning) {
	d := Defaults()
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if len(t.WorldSize) != 3 {
		t.WorldSize = d.WorldSize
	}
	if t.Spatial.MaxOccupancy <= 0 {
		t.Spatial.MaxOccupancy = d.Spatial.MaxOccupancy
	}
	if t.Spatial.MaxDepth <= 0 {
		t.Spatial.MaxDepth = d.Spatial.MaxDepth
	}
	if t.Spatial.RebuildEvery <= 0 {
		t.Spatial.RebuildEvery = d.Spatial.RebuildEvery
	}
	if t.Spatial.CellCapacity <= 0 {
		t.Spatial.CellCapacity = d.Spatial.CellCapacity
	}
	if t.Chain.StabilityWindow <= 0 {
		t.Chain.StabilityWindow = d.Chain.StabilityWindow
	}
	if t.Chain.AgeSaturation <= 0 {
		t.Chain.AgeSaturation = d.Chain.AgeSaturation
	}
	if t.Registry.PruneMaxAge <= 0 {
		t.Registry.PruneMaxAge = d.Registry.PruneMaxAge
	}
	if t.Registry.PruneEveryTicks <= 0 {
		t.Registry.PruneEveryTicks = d.Registry.PruneEveryTicks
	}
	if t.Registry.EnforceEveryTicks <= 0 {
		t.Registry.EnforceEveryTicks = d.Registry.EnforceEveryTicks
	}
	if t.Registry.DefaultsEveryTicks <= 0 {
		t.Registry.DefaultsEveryTicks = d.Registry.DefaultsEveryTicks
	}
	if t.Vent.EveryTicks <= 0 {
		t.Vent.EveryTicks = d.Vent.EveryTicks
	}
	if t.Vent.Burst <= 0 {
		t.Vent.Burst = d.Vent.Burst
	}
	if t.Vent.Energy <= 0 {
		t.Vent.Energy = d.Vent.Energy
	}
	if t.Physics.MaxTokens <= 0 {
		t.Physics.MaxTokens = d.Physics.MaxTokens
	}
	if t.Damage.RepairEveryTicks <= 0 {
		t.Damage.RepairEveryTicks = d.Damage.RepairEveryTicks
	}
	if t.Damage.RepairMaxZ <= 0 {
		t.Damage.RepairMaxZ = d.Damage.RepairMaxZ
	}
	if t.Damage.Exponent <= 0 {
		t.Damage.Exponent = d.Damage.Exponent
	}
	if t.StatsEveryTicks <= 0 {
		t.StatsEveryTicks = d.StatsEveryTicks
	}
	if t.SnapshotEveryTicks <= 0 {
		t.SnapshotEveryTicks = d.SnapshotEveryTicks
	}
}

// Validate rejects values no component can work with.
func (t Tuning) Validate() error {
	for i, n := range t.WorldSize {
		if n <= 0 {
			return fmt.Errorf("world_size[%d] must be positive, got %d", i, n)
		}
	}
	if t.Bonding.MinCost > t.Bonding.MaxCost {
		return fmt.Errorf("bonding.min_cost %d exceeds max_cost %d", t.Bonding.MinCost, t.Bonding.MaxCost)
	}
	if t.Bonding.MinStrength < 0 || t.Bonding.MinStrength > 1 {
		return fmt.Errorf("bonding.min_strength must be in [0,1], got %v", t.Bonding.MinStrength)
	}
	for name, p := range map[string]float64{
		"damage.max_probability": t.Damage.MaxProbability,
		"damage.corrupt_chance":  t.Damage.CorruptChance,
		"damage.detach_chance":   t.Damage.DetachChance,
		"damage.repair_chance":   t.Damage.RepairChance,
		"physics.jitter_chance":  t.Physics.JitterChance,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, p)
		}
	}
	if len(t.Vent.Position) != 0 && len(t.Vent.Position) != 3 {
		return fmt.Errorf("vent.position needs 3 coordinates, got %d", len(t.Vent.Position))
	}
	return nil
}
