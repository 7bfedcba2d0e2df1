package chain

import "codechem.ai/internal/sim/mathx"

// Params tunes chain scoring. Weights are normalized by their sum, so the
// score stays in [0,1].
type Params struct {
	StabilityWindow uint64 // ticks a computed score stays fresh
	WeightLength    float64
	WeightBond      float64
	WeightValidity  float64
	WeightAge       float64
	AgeSaturation   uint64 // ticks unchanged for the full age term
}

func DefaultParams() Params {
	return Params{
		StabilityWindow: 10,
		WeightLength:    0.2,
		WeightBond:      0.4,
		WeightValidity:  0.3,
		WeightAge:       0.1,
		AgeSaturation:   100,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.StabilityWindow == 0 {
		p.StabilityWindow = d.StabilityWindow
	}
	if p.WeightLength < 0 || p.WeightBond < 0 || p.WeightValidity < 0 || p.WeightAge < 0 ||
		p.WeightLength+p.WeightBond+p.WeightValidity+p.WeightAge == 0 {
		p.WeightLength, p.WeightBond, p.WeightValidity, p.WeightAge = d.WeightLength, d.WeightBond, d.WeightValidity, d.WeightAge
	}
	if p.AgeSaturation == 0 {
		p.AgeSaturation = d.AgeSaturation
	}
	return p
}

// Stability returns the cached score, recomputing it when the chain changed
// or the cached value is older than the stability window.
func (c *Chain) Stability(tick uint64) float64 {
	c.mu.RLock()
	if c.stabilityOK && tick-c.stabilityAt <= c.params.StabilityWindow && tick >= c.stabilityAt {
		s := c.stability
		c.mu.RUnlock()
		return s
	}
	c.mu.RUnlock()
	return c.RefreshStability(tick)
}

// CachedStability returns the last computed score without recomputing.
func (c *Chain) CachedStability() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stability
}

// RefreshStability recomputes the score unconditionally.
func (c *Chain) RefreshStability(tick uint64) float64 {
	valid := c.Validate().Valid

	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.hi - c.lo
	if n == 0 {
		c.stability, c.stabilityAt, c.stabilityOK = 0, tick, true
		return 0
	}
	var age uint64
	if tick > c.lastModified {
		age = tick - c.lastModified
	}
	c.stability = Score(c.params, n, c.avgBondStrength(), valid, age)
	c.stabilityAt, c.stabilityOK = tick, true
	return c.stability
}

// AverageBondStrength is the mean strength across consecutive pairs; zero
// for a single member.
func (c *Chain) AverageBondStrength() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.avgBondStrength()
}

func (c *Chain) avgBondStrength() float64 {
	n := c.hi - c.lo
	if n < 2 {
		return 0
	}
	sum := 0.0
	for i := c.lo; i+1 < c.hi; i++ {
		if b, ok := c.buf[i].BondWith(c.buf[i+1].ID); ok {
			sum += b.Strength
		}
	}
	return sum / float64(n-1)
}

// Score combines length, bond strength, grammar validity and age. It is
// non-decreasing in avgBond and in valid.
func Score(p Params, length int, avgBond float64, valid bool, age uint64) float64 {
	p = p.withDefaults()
	if length <= 0 {
		return 0
	}
	lengthTerm := 1 - 1/float64(length)
	validTerm := 0.0
	if valid {
		validTerm = 1
	}
	ageTerm := float64(age) / float64(p.AgeSaturation)
	if ageTerm > 1 {
		ageTerm = 1
	}
	total := p.WeightLength + p.WeightBond + p.WeightValidity + p.WeightAge
	s := (p.WeightLength*lengthTerm +
		p.WeightBond*mathx.Clamp01(avgBond) +
		p.WeightValidity*validTerm +
		p.WeightAge*ageTerm) / total
	return mathx.Clamp01(s)
}
