package world

import (
	"context"
	"time"
)

func (w *World) stepInternal(ctx context.Context) {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	// Collaborators move tokens first; bonding sees the settled positions.
	w.systemVent(nowTick)
	w.systemDrift(nowTick)

	formed, err := w.manager.ProcessActiveCells(ctx, nowTick)
	if err != nil {
		// Cancelled mid-plan: nothing was committed, finish the tick without bonding.
		formed = 0
	}

	if w.tune.Registry.InsertDefaults && nowTick%uint64(w.tune.Registry.DefaultsEveryTicks) == 0 {
		w.systemDefaultValues(nowTick)
	}

	w.systemDamage(nowTick)
	if every := uint64(w.tune.Damage.RepairEveryTicks); every > 0 && nowTick%every == 0 {
		w.systemRepair(nowTick)
	}

	w.registry.UpdateAllStabilities(nowTick)
	if w.tune.Registry.EnforceGrammar && nowTick%uint64(w.tune.Registry.EnforceEveryTicks) == 0 {
		w.manager.EnforceGrammar(nowTick)
	}
	if nowTick != 0 && nowTick%uint64(w.tune.Registry.PruneEveryTicks) == 0 {
		if n := w.manager.PruneStale(nowTick, uint64(w.tune.Registry.PruneMaxAge)); n > 0 {
			w.log.Printf("tick %d: pruned %d stale chains", nowTick, n)
		}
	}
	if w.index.NeedsRebuild() {
		w.index.Rebuild()
	}

	events := w.manager.Events()
	w.pendingEvents = append(w.pendingEvents, events...)

	stats := w.computeStats(nowTick, formed)
	w.stepObservers(nowTick, stats, events)

	if nowTick%uint64(w.tune.StatsEveryTicks) == 0 {
		if w.tickLogger != nil {
			entry := TickLogEntry{
				Tick:      nowTick,
				Stats:     stats,
				Events:    w.pendingEvents,
				TopChains: w.TopChains(topChainsLogged),
			}
			if err := w.tickLogger.WriteTick(entry); err != nil {
				w.log.Printf("tick %d: tick log: %v", nowTick, err)
			}
		}
		w.pendingEvents = nil
	}

	// Snapshot every N ticks (default 3000), starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.tune.SnapshotEveryTicks > 0 {
		if nowTick%uint64(w.tune.SnapshotEveryTicks) == 0 {
			snap := w.ExportSnapshot(nowTick)
			select {
			case w.snapshotSink <- snap:
			default:
				// Drop snapshot if sink is backed up.
			}
		}
	}

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	nextTick := w.tick.Add(1)
	w.metrics.Store(Metrics{
		Tick:      nextTick,
		StepMS:    stepMS,
		Observers: len(w.observers),
		Stats:     stats,
		TopChains: w.TopChains(topChainsLogged),
	})
}
