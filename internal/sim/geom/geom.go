package geom

import "math"

// Vec3i is an integer grid position.
type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

// Dist2 is the squared Euclidean distance between two grid positions. It is
// computed in float64 so far-off query points cannot overflow.
func Dist2(a, b Vec3i) float64 {
	dx := float64(a.X) - float64(b.X)
	dy := float64(a.Y) - float64(b.Y)
	dz := float64(a.Z) - float64(b.Z)
	return dx*dx + dy*dy + dz*dz
}

func Dist(a, b Vec3i) float64 { return math.Sqrt(Dist2(a, b)) }

// Less orders positions z-major so iteration visits layers bottom-up.
func Less(a, b Vec3i) bool {
	if a.Z != b.Z {
		return a.Z < b.Z
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

// Box is a half-open axis-aligned region [Min, Max) in continuous space.
type Box struct {
	Min [3]float64
	Max [3]float64
}

func NewBox(sx, sy, sz int) Box {
	return Box{Max: [3]float64{float64(sx), float64(sy), float64(sz)}}
}

func (b Box) Contains(p Vec3i) bool {
	c := [3]float64{float64(p.X), float64(p.Y), float64(p.Z)}
	for i := 0; i < 3; i++ {
		if c[i] < b.Min[i] || c[i] >= b.Max[i] {
			return false
		}
	}
	return true
}

func (b Box) Mid() [3]float64 {
	return [3]float64{
		(b.Min[0] + b.Max[0]) / 2,
		(b.Min[1] + b.Max[1]) / 2,
		(b.Min[2] + b.Max[2]) / 2,
	}
}

// Octant returns the i-th of the eight boxes produced by splitting b at its
// midpoint. Bit 0 selects the upper X half, bit 1 Y, bit 2 Z.
func (b Box) Octant(i int) Box {
	mid := b.Mid()
	var o Box
	for axis := 0; axis < 3; axis++ {
		if i&(1<<axis) != 0 {
			o.Min[axis] = mid[axis]
			o.Max[axis] = b.Max[axis]
		} else {
			o.Min[axis] = b.Min[axis]
			o.Max[axis] = mid[axis]
		}
	}
	return o
}

// Dist2To is the squared distance from p to the closest point of the closed box.
func (b Box) Dist2To(p Vec3i) float64 {
	c := [3]float64{float64(p.X), float64(p.Y), float64(p.Z)}
	var d float64
	for i := 0; i < 3; i++ {
		switch {
		case c[i] < b.Min[i]:
			v := b.Min[i] - c[i]
			d += v * v
		case c[i] > b.Max[i]:
			v := c[i] - b.Max[i]
			d += v * v
		}
	}
	return d
}

// IntersectsBox reports whether the closed integer box [lo, hi] overlaps b.
func (b Box) IntersectsBox(lo, hi Vec3i) bool {
	l := [3]float64{float64(lo.X), float64(lo.Y), float64(lo.Z)}
	h := [3]float64{float64(hi.X), float64(hi.Y), float64(hi.Z)}
	for i := 0; i < 3; i++ {
		if h[i] < b.Min[i] || l[i] >= b.Max[i] {
			return false
		}
	}
	return true
}

// InBox reports whether p lies inside the closed integer box [lo, hi].
func InBox(p, lo, hi Vec3i) bool {
	return p.X >= lo.X && p.X <= hi.X &&
		p.Y >= lo.Y && p.Y <= hi.Y &&
		p.Z >= lo.Z && p.Z <= hi.Z
}
