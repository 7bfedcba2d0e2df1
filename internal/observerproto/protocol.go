package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// TopChains is how many chains (ranked by stability) each TICK carries.
	TopChains int `json:"top_chains"`
	// Events toggles the per-tick bond event list.
	Events bool `json:"events"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	Grammar         GrammarInfo `json:"grammar"`
}

type WorldParams struct {
	TickRateHz int    `json:"tick_rate_hz"`
	Size       [3]int `json:"size"`
	Seed       int64  `json:"seed"`
	VentPos    [3]int `json:"vent_pos"`
}

type GrammarInfo struct {
	Name   string `json:"name"`
	Digest string `json:"digest"`
	Rules  int    `json:"rules"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Stats     Stats       `json:"stats"`
	Events    []BondEvent `json:"events,omitempty"`
	TopChains []ChainInfo `json:"top_chains,omitempty"`
}

type Stats struct {
	Tokens        int     `json:"tokens"`
	TotalMass     int     `json:"total_mass"`
	TotalEnergy   int     `json:"total_energy"`
	Rising        int     `json:"rising"`
	Sinking       int     `json:"sinking"`
	Damaged       int     `json:"damaged"`
	Chains        int     `json:"chains"`
	ValidChains   int     `json:"valid_chains"`
	AvgChainLen   float64 `json:"avg_chain_len"`
	MaxChainLen   int     `json:"max_chain_len"`
	BondsFormed   uint64  `json:"bonds_formed"`
	BondsBroken   uint64  `json:"bonds_broken"`
	Spawned       uint64  `json:"spawned"`
	Deactivated   uint64  `json:"deactivated"`
	ActiveCells   int     `json:"active_cells"`
	OctreeNodes   int     `json:"octree_nodes"`
	OctreeDepth   int     `json:"octree_depth"`
	BondsThisTick int     `json:"bonds_this_tick"`
}

type BondEvent struct {
	Kind     string  `json:"kind"`
	A        uint64  `json:"a,omitempty"`
	B        uint64  `json:"b,omitempty"`
	BondType string  `json:"bond_type,omitempty"`
	Strength float64 `json:"strength,omitempty"`
	ChainID  uint64  `json:"chain_id,omitempty"`
	OtherID  uint64  `json:"other_id,omitempty"`
}

type ChainInfo struct {
	ID        uint64  `json:"id"`
	Length    int     `json:"length"`
	Mass      int     `json:"mass"`
	Energy    int     `json:"energy"`
	Stability float64 `json:"stability"`
	Valid     bool    `json:"valid"`
	Code      string  `json:"code"`
}
