package planner

import "math/rand/v2"

// RandomSource yields uniform values in [0,1). All randomness in a plan is
// drawn from the source handed to New.
type RandomSource interface {
	Float64() float64
}

// LCG is the seeded linear congruential generator used for reproducible plans:
// state = state*1664525 + 1013904223 (mod 2^32), output state/2^32.
type LCG struct {
	state uint32
}

func NewLCG(seed int64) *LCG {
	return &LCG{state: uint32(seed)}
}

func (l *LCG) Float64() float64 {
	l.state = l.state*1664525 + 1013904223
	return float64(l.state) / 4294967296.0
}

type runtimeRandom struct{}

func (runtimeRandom) Float64() float64 { return rand.Float64() }

// NewRandom returns a non-deterministic source.
func NewRandom() RandomSource {
	return runtimeRandom{}
}

// SourceFor returns an LCG for a request seed, or a non-deterministic source
// when the request carries none.
func SourceFor(seed *int64) RandomSource {
	if seed == nil {
		return NewRandom()
	}
	return NewLCG(*seed)
}
