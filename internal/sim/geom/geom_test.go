package geom

import "testing"

func TestBox_OctantsPartitionParent(t *testing.T) {
	b := NewBox(8, 8, 8)
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			for z := 0; z < 8; z++ {
				p := Vec3i{X: x, Y: y, Z: z}
				hits := 0
				for i := 0; i < 8; i++ {
					if b.Octant(i).Contains(p) {
						hits++
					}
				}
				if hits != 1 {
					t.Fatalf("point %+v in %d octants, want 1", p, hits)
				}
			}
		}
	}
}

func TestBox_Dist2To(t *testing.T) {
	b := Box{Min: [3]float64{2, 2, 2}, Max: [3]float64{4, 4, 4}}
	if d := b.Dist2To(Vec3i{X: 3, Y: 3, Z: 3}); d != 0 {
		t.Fatalf("inside point: got %v", d)
	}
	if d := b.Dist2To(Vec3i{X: 0, Y: 3, Z: 3}); d != 4 {
		t.Fatalf("outside point: got %v want 4", d)
	}
	if d := b.Dist2To(Vec3i{X: 0, Y: 0, Z: 3}); d != 8 {
		t.Fatalf("corner point: got %v want 8", d)
	}
}

func TestDist2_NoOverflow(t *testing.T) {
	if d := Dist2(Vec3i{X: 1, Y: 2, Z: 3}, Vec3i{X: 4, Y: 6, Z: 3}); d != 25 {
		t.Fatalf("got %v want 25", d)
	}
	far := Vec3i{X: 3037000500}
	if Dist2(far, Vec3i{X: 9}) >= Dist2(far, Vec3i{}) {
		t.Fatalf("far point should be closer to x=9 than to the origin")
	}
}

func TestLess_ZMajor(t *testing.T) {
	if !Less(Vec3i{X: 9, Y: 9, Z: 0}, Vec3i{X: 0, Y: 0, Z: 1}) {
		t.Fatalf("expected lower layer first")
	}
	if Less(Vec3i{X: 1}, Vec3i{X: 1}) {
		t.Fatalf("equal positions must not be Less")
	}
}
