package token

import (
	"sync"
	"testing"

	"codechem.ai/internal/sim/geom"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		in   string
		want Type
	}{
		{"if", TypeKeyword},
		{"int", TypeKeyword},
		{"==", TypeOperator},
		{"++", TypeOperator},
		{"->", TypeOperator},
		{"(", TypePunctuation},
		{";", TypePunctuation},
		{"count", TypeIdentifier},
		{"_tmp1", TypeIdentifier},
		{"NULL", TypeIdentifier},
		{"42", TypeLiteral},
		{"3.5", TypeLiteral},
		{"0xFF", TypeLiteral},
		{"1abc", TypeUnknown},
		{"", TypeUnknown},
	}
	for _, tc := range cases {
		if got := Classify(tc.in); got != tc.want {
			t.Fatalf("Classify(%q)=%s want %s", tc.in, got, tc.want)
		}
	}
}

func TestMutuallyExclusive(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"if", "while", true},
		{"for", "if", true},
		{"int", "var", true},
		{"++", "--", true},
		{"&&", "||", true},
		{"if", "if", false},
		{"if", "int", false},
		{"x", "y", false},
	}
	for _, c := range cases {
		a := New(1, c.a, geom.Vec3i{}, 0)
		b := New(2, c.b, geom.Vec3i{}, 0)
		if got := MutuallyExclusive(a, b); got != c.want {
			t.Fatalf("MutuallyExclusive(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
		if MutuallyExclusive(b, a) != c.want {
			t.Fatalf("MutuallyExclusive is not symmetric for %q, %q", c.a, c.b)
		}
	}
	if MutuallyExclusive(nil, New(1, "if", geom.Vec3i{}, 0)) {
		t.Fatalf("nil token must not repel")
	}
}

func TestNew_DerivesMassAndMetadata(t *testing.T) {
	tok := New(1, "while", geom.Vec3i{X: 1, Y: 2, Z: 3}, 50)
	if tok.Mass != 5 {
		t.Fatalf("mass: got %d want 5", tok.Mass)
	}
	if tok.Type != TypeKeyword || tok.Meta.Semantic != "control" {
		t.Fatalf("unexpected type/semantic: %s/%s", tok.Type, tok.Meta.Semantic)
	}
	if tok.Meta.Capacity != 2 || !tok.Active {
		t.Fatalf("unexpected capacity/active: %d/%v", tok.Meta.Capacity, tok.Active)
	}
	if u := New(2, "@@", geom.Vec3i{}, 0); u.Meta.Capacity != 1 {
		t.Fatalf("unknown capacity: got %d want 1", u.Meta.Capacity)
	}
}

func TestLinkUnlink_Symmetric(t *testing.T) {
	a := New(1, "x", geom.Vec3i{}, 10)
	b := New(2, "=", geom.Vec3i{}, 10)

	if Link(a, a, Bond{}) {
		t.Fatalf("self link must fail")
	}
	if !Link(a, b, Bond{Strength: 0.7, Type: BondIonic}) {
		t.Fatalf("link failed")
	}
	if !a.Bonded(b.ID) || !b.Bonded(a.ID) {
		t.Fatalf("bond not symmetric")
	}
	if Link(b, a, Bond{}) {
		t.Fatalf("duplicate link must fail")
	}
	if bd, ok := b.BondWith(a.ID); !ok || bd.Type != BondIonic {
		t.Fatalf("bond annotation missing: %+v", bd)
	}
	if !Unlink(b, a) {
		t.Fatalf("unlink failed")
	}
	if a.Bonded(b.ID) || b.Bonded(a.ID) {
		t.Fatalf("unlink not symmetric")
	}
	if Unlink(a, b) {
		t.Fatalf("second unlink must fail")
	}
}

func TestPool_SpawnAddRemove(t *testing.T) {
	p := NewPool()
	a := p.Spawn("x", geom.Vec3i{}, 1)
	b := p.Spawn("y", geom.Vec3i{}, 1)
	if a.ID == 0 || b.ID <= a.ID {
		t.Fatalf("ids not monotonic: %d %d", a.ID, b.ID)
	}
	restored := New(10, "z", geom.Vec3i{}, 1)
	if !p.Add(restored) {
		t.Fatalf("Add restored failed")
	}
	if p.Add(restored) {
		t.Fatalf("duplicate Add must fail")
	}
	if c := p.Spawn("w", geom.Vec3i{}, 1); c.ID != 11 {
		t.Fatalf("allocator not advanced past restored id: got %d", c.ID)
	}
	if !p.Remove(a.ID) || p.Remove(a.ID) {
		t.Fatalf("Remove semantics wrong")
	}
	all := p.All()
	if len(all) != 3 || all[0].ID != b.ID {
		t.Fatalf("All not sorted or wrong size: %d", len(all))
	}
}

func TestPool_ConcurrentSpawn(t *testing.T) {
	p := NewPool()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				p.Spawn("x", geom.Vec3i{}, 1)
				_ = p.Len()
			}
		}()
	}
	wg.Wait()
	if p.Len() != 800 {
		t.Fatalf("Len=%d want 800", p.Len())
	}
}
