package main

import (
	"fmt"
	"io"

	"codechem.ai/internal/sim/world"
)

// writeMetrics renders a minimal Prometheus exposition of the world metrics.
func writeMetrics(out io.Writer, worldID string, m world.Metrics, idx runtimeIndex) {
	gauge := func(name, help string, v any) {
		fmt.Fprintf(out, "# HELP codechem_%s %s\n", name, help)
		fmt.Fprintf(out, "# TYPE codechem_%s gauge\n", name)
		switch x := v.(type) {
		case float64:
			fmt.Fprintf(out, "codechem_%s{world=%q} %.6f\n", name, worldID, x)
		default:
			fmt.Fprintf(out, "codechem_%s{world=%q} %d\n", name, worldID, x)
		}
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(out, "# HELP codechem_%s %s\n", name, help)
		fmt.Fprintf(out, "# TYPE codechem_%s counter\n", name)
		fmt.Fprintf(out, "codechem_%s{world=%q} %d\n", name, worldID, v)
	}

	s := m.Stats
	gauge("world_tick", "Next tick to simulate.", m.Tick)
	gauge("world_step_ms", "Last tick step duration in milliseconds.", m.StepMS)
	gauge("world_observers", "Connected observers.", m.Observers)
	gauge("tokens", "Live tokens.", s.Tokens)
	gauge("tokens_damaged", "Live tokens carrying damage.", s.Damaged)
	gauge("total_mass", "Sum of token masses.", s.TotalMass)
	gauge("total_energy", "Sum of token energies.", s.TotalEnergy)
	gauge("chains", "Registered chains.", s.Chains)
	gauge("chains_valid", "Chains accepted by the grammar.", s.ValidChains)
	gauge("chain_len_avg", "Average chain length.", s.AvgChainLen)
	gauge("chain_len_max", "Longest chain.", s.MaxChainLen)
	gauge("chain_stability_avg", "Average chain stability.", s.AvgStability)
	gauge("spatial_active_cells", "Cells holding at least one token.", s.Spatial.ActiveCells)
	counter("bonds_formed_total", "Bonds formed.", s.BondsFormed)
	counter("bonds_broken_total", "Bonds broken.", s.BondsBroken)
	counter("tokens_spawned_total", "Tokens emitted by the vent.", s.Spawned)
	counter("tokens_deactivated_total", "Tokens removed from the soup.", s.Deactivated)

	if idx == nil {
		return
	}
	q := idx.Stats()
	gauge("index_queue_depth", "Index writer backlog.", q.QueueDepth)
	counter("index_drop_tick_total", "Tick entries dropped by the index.", q.DropTickTotal)
	counter("index_drop_snapshot_total", "Snapshot records dropped by the index.", q.DropSnapshotTotal)
	counter("index_write_error_total", "Index write failures.", q.WriteErrorTotal)
}
