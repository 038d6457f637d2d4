package service

import (
	"math"
	"math/rand/v2"
)

// newSessionRand returns the deterministic generator for a (seed, heatID) pair.
// The same pair always yields the same sequence.
func newSessionRand(seed int64, heatID int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(heatID)))
}

// between draws uniformly from [lo, hi).
func between(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// jitter draws uniformly from [-amp, amp).
func jitter(r *rand.Rand, amp float64) float64 {
	return (r.Float64()*2 - 1) * amp
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
