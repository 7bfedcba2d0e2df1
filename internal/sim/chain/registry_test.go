package chain

import (
	"sync"
	"testing"

	"codechem.ai/internal/sim/geom"
	"codechem.ai/internal/sim/grammar"
	"codechem.ai/internal/sim/token"
)

func single(id int, tick uint64) *Chain {
	return New(grammar.Default(), DefaultParams(), tick, token.New(token.ID(id), "x", geom.Vec3i{}, 1))
}

func chainIDs(cs []*Chain) []uint64 {
	out := make([]uint64, len(cs))
	for i, c := range cs {
		out[i] = c.ID()
	}
	return out
}

func TestRegistry_RegisterAssignsMonotonicIDs(t *testing.T) {
	r := NewRegistry()
	a, b := single(1, 0), single(2, 0)
	ida, idb := r.Register(a), r.Register(b)
	if ida != 1 || idb != 2 {
		t.Fatalf("ids: %d %d", ida, idb)
	}
	if again := r.Register(a); again != ida || r.Len() != 2 {
		t.Fatalf("re-register must keep identity: %d len=%d", again, r.Len())
	}
	if cid, _, ok := a.Head().ChainRef(); !ok || cid != ida {
		t.Fatalf("back-reference not set: %d", cid)
	}
	if got, ok := r.Get(ida); !ok || got != a {
		t.Fatalf("get failed")
	}
	if !r.Unregister(ida) || r.Unregister(ida) {
		t.Fatalf("unregister should succeed once")
	}
	if _, ok := r.Get(ida); ok {
		t.Fatalf("unregistered chain still visible")
	}

	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("clear left %d chains", r.Len())
	}
	if id := r.Register(single(3, 0)); id != 3 {
		t.Fatalf("counter must not reset on clear, got %d", id)
	}
	if r.Register(nil) != 0 {
		t.Fatalf("nil chain must not register")
	}
}

func TestRegistry_RestoredIdentityAdvancesCounter(t *testing.T) {
	r := NewRegistry()
	ts := toks("a", "b")
	bond(t, ts[0], ts[1], 0.5)
	c, ok := FromMembers(grammar.Default(), DefaultParams(), 40, 1, 2, ts)
	if !ok {
		t.Fatalf("restore failed")
	}
	if id := r.Register(c); id != 40 {
		t.Fatalf("restored id: %d", id)
	}
	if id := r.Register(single(9, 0)); id != 41 {
		t.Fatalf("next id after restore: %d", id)
	}
	if _, ok := FromMembers(grammar.Default(), DefaultParams(), 0, 0, 0, toks("a", "b")); ok {
		t.Fatalf("unbonded members must not restore")
	}
}

func TestRegistry_RankedQueries(t *testing.T) {
	r := NewRegistry()
	long := linear(t, toks("x", "+", "y", ";"))
	mid1 := single(10, 0)
	mid2 := single(11, 0)
	r.Register(mid1)
	r.Register(long)
	r.Register(mid2)
	r.UpdateAllStabilities(0)

	got := chainIDs(r.GetByLength())
	if got[0] != long.ID() || got[1] != mid1.ID() || got[2] != mid2.ID() {
		t.Fatalf("by length: %v", got)
	}
	got = chainIDs(r.GetByStability())
	if got[0] != long.ID() || got[1] != mid1.ID() || got[2] != mid2.ID() {
		t.Fatalf("by stability: %v", got)
	}
	if all := chainIDs(r.GetAll()); all[0] != 1 || all[1] != 2 || all[2] != 3 {
		t.Fatalf("get all order: %v", all)
	}

	st := r.Statistics()
	if st.Chains != 3 || st.Members != 6 || st.MaxLength != 4 || st.Valid != 3 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestRegistry_GetByStabilityUsesLastComputedScore(t *testing.T) {
	r := NewRegistry()
	ts := toks("x", "+", "y", ";")
	long := linear(t, ts)
	short := single(10, 0)
	r.Register(long)
	r.Register(short)
	r.UpdateAllStabilities(0)
	before := long.CachedStability()

	if _, ok := long.Remove(ts[0], 1); !ok {
		t.Fatalf("remove head failed")
	}
	got := chainIDs(r.GetByStability())
	if got[0] != long.ID() || long.CachedStability() != before {
		t.Fatalf("ranking must not recompute: order=%v score=%v want %v", got, long.CachedStability(), before)
	}

	r.UpdateAllStabilities(1)
	if long.CachedStability() == before {
		t.Fatalf("refresh after mutation kept the stale score %v", before)
	}
}

func TestRegistry_PruneStale(t *testing.T) {
	r := NewRegistry()
	old := single(1, 5)
	fresh := single(2, 90)
	r.Register(old)
	r.Register(fresh)

	if pruned := r.PruneStale(100, 95); len(pruned) != 0 {
		t.Fatalf("nothing is older than 95 ticks")
	}
	pruned := r.PruneStale(100, 50)
	if len(pruned) != 1 || pruned[0] != old {
		t.Fatalf("pruned: %v", chainIDs(pruned))
	}
	if r.Len() != 1 {
		t.Fatalf("len after prune: %d", r.Len())
	}
	members := old.Release(100)
	if len(members) != 1 || members[0].InChain() {
		t.Fatalf("release must clear back-references")
	}
}

func TestRegistry_ConcurrentRegister(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	ids := make(chan uint64, 800)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c := single(w*100+i+1, 0)
				id := r.Register(c)
				ids <- id
				if i%3 == 0 {
					r.Unregister(id)
				}
				_ = r.GetByLength()
			}
		}(w)
	}
	wg.Wait()
	close(ids)
	seen := make(map[uint64]bool)
	for id := range ids {
		if id == 0 || seen[id] {
			t.Fatalf("duplicate or zero id %d", id)
		}
		seen[id] = true
	}
	if r.NextID() != 800 {
		t.Fatalf("next id: %d", r.NextID())
	}
	if r.Len() != 8*66 {
		t.Fatalf("len: %d", r.Len())
	}
}
