package sequence

import (
	"math/rand/v2"
	"time"
)

// Source is the randomness Shuffle and DeleteRandom draw from.
// *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
	Perm(n int) []int
}

// NewRand returns a PCG-backed generator for seed. A zero seed is replaced by
// one derived from the clock; the seed actually used is returned so the run
// can be replayed.
func NewRand(seed uint64) (*rand.Rand, uint64) {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), seed
}
