// Package genome provides the immutable instruction sequence executed by bots
// and its portable text encoding.
//
// A Genome is shared by pointer between every bot that descends from it
// through Split. Mutation never edits a Genome in place; it returns a new one
// with its own id.
package genome

import (
	"errors"
	"fmt"

	"github.com/fortiblox/torland/internal/types"
	"github.com/fortiblox/torland/pkg/isa"
)

var (
	// ErrEmpty is returned when a genome has no instructions.
	ErrEmpty = errors.New("genome is empty")

	// ErrInvalid is returned when a genome contains an out-of-range command.
	ErrInvalid = errors.New("invalid genome")
)

// Genome is an immutable instruction sequence with an identity.
type Genome struct {
	id   uint64
	code []isa.Command
}

// New copies code into a new genome and validates it against memSize.
func New(id uint64, code []isa.Command, memSize int) (*Genome, error) {
	if len(code) == 0 {
		return nil, ErrEmpty
	}
	for i, c := range code {
		if err := c.Validate(len(code), memSize); err != nil {
			return nil, fmt.Errorf("%w: instruction %d: %v", ErrInvalid, i, err)
		}
	}
	cp := make([]isa.Command, len(code))
	copy(cp, code)
	return &Genome{id: id, code: cp}, nil
}

// MustNew is like New but panics on error. Intended for tests and fixed
// built-in programs.
func MustNew(id uint64, code []isa.Command) *Genome {
	g, err := New(id, code, isa.MemSize)
	if err != nil {
		panic(err)
	}
	return g
}

// ID returns the genome id.
func (g *Genome) ID() uint64 { return g.id }

// Len returns the number of instructions.
func (g *Genome) Len() int { return len(g.code) }

// At returns the instruction at index i.
func (g *Genome) At(i int) isa.Command { return g.code[i] }

// Commands returns a copy of the instruction sequence.
func (g *Genome) Commands() []isa.Command {
	cp := make([]isa.Command, len(g.code))
	copy(cp, g.code)
	return cp
}

// WithID returns a genome sharing g's code under a different id.
func (g *Genome) WithID(id uint64) *Genome {
	return &Genome{id: id, code: g.code}
}

// Equal reports whether two genomes hold the same instructions. Ids are not
// compared.
func (g *Genome) Equal(o *Genome) bool {
	if len(g.code) != len(o.code) {
		return false
	}
	for i := range g.code {
		if g.code[i] != o.code[i] {
			return false
		}
	}
	return true
}

// Fingerprint returns the blake3 digest of the genome's binary encoding.
func (g *Genome) Fingerprint() types.Hash {
	return types.ComputeHash(marshal(g.code))
}

// Mutate returns a copy of g with one uniformly chosen instruction replaced by
// a different random instruction. The result carries newID.
func (g *Genome) Mutate(rng isa.Rand, newID uint64, maxValue int64, memSize int) *Genome {
	code := g.Commands()
	idx := rng.Intn(len(code))
	old := code[idx]
	for {
		c := isa.Random(rng, len(code), maxValue, memSize)
		if c != old {
			code[idx] = c
			break
		}
	}
	return &Genome{id: newID, code: code}
}
