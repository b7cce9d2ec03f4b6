package isa

import (
	"math"

	"github.com/fortiblox/torland/internal/types"
)

// MaxValueLimit is the largest maxValue Random honors. Larger bounds are
// clamped to it so the doubled range stays positive.
const MaxValueLimit = math.MaxInt64 / 2

// Rand is the subset of *math/rand.Rand used for instruction generation and
// mutation decisions.
type Rand interface {
	Intn(n int) int
	Int63n(n int64) int64
	Float64() float64
}

// Random generates a uniformly chosen instruction whose operands are valid for
// a genome of genLen instructions. Values fall in [-maxValue, maxValue).
func Random(rng Rand, genLen int, maxValue int64, memSize int) Command {
	op := Opcode(rng.Intn(NumOpcodes))
	c := Command{Op: op}
	for i, k := range specs[op].Args {
		c.Args[i] = randomOperand(rng, k, genLen, maxValue, memSize)
	}
	return c
}

func randomOperand(rng Rand, k Kind, genLen int, maxValue int64, memSize int) int64 {
	switch k {
	case KindDir:
		return int64(rng.Intn(types.NumDirections))
	case KindLabel:
		if genLen <= 0 {
			return 0
		}
		return int64(rng.Intn(genLen))
	case KindReg:
		return int64(rng.Intn(NumRegisters))
	case KindRwReg:
		return int64(rng.Intn(NumRwRegisters))
	case KindVal:
		if maxValue <= 0 {
			return 0
		}
		maxValue = min(maxValue, MaxValueLimit)
		return rng.Int63n(2*maxValue) - maxValue
	case KindMem:
		if memSize <= 0 {
			return 0
		}
		return int64(rng.Intn(memSize))
	}
	return 0
}
