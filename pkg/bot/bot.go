// Package bot implements the genome virtual machine that drives one agent.
//
// A bot has eight 64-bit registers (Ax-Dx writable by code, En/Ag/Sd/Md
// maintained by the VM), five flags, a program counter, a bounded call stack,
// a small RAM and a facing direction. Each tick Update executes instructions
// until the per-tick budget is spent or a terminating instruction runs, then
// charges upkeep.
//
// All interaction with the surrounding grid goes through an Accessor, which
// the world builds fresh for every turn.
package bot

import (
	"github.com/fortiblox/torland/internal/types"
	"github.com/fortiblox/torland/pkg/genome"
	"github.com/fortiblox/torland/pkg/isa"
)

// StackSize is the maximum call depth.
const StackSize = 16

// State is the complete register file of a bot. All fields are fixed size so
// the struct can be written with encoding/binary.
type State struct {
	Regs [isa.NumRegisters]int64

	Sign     bool
	Zero     bool
	Overflow bool
	Free     bool // nothing ahead at the last chk
	Colony   bool // same colony ahead at the last chk

	PC    uint32
	SP    uint32
	Stack [StackSize]uint32

	RAM    [isa.MemSize]int64
	Facing types.Direction
}

// Bot is one agent: identity, liveness and VM state.
type Bot struct {
	colony uint64
	genome *genome.Genome
	alive  bool
	state  State
}

// New creates a live bot at pc 0 facing Front.
func New(colony uint64, g *genome.Genome, energy int64) *Bot {
	b := &Bot{colony: colony, genome: g, alive: true}
	b.state.Regs[isa.En] = energy
	return b
}

// FromState rebuilds a bot from previously exported state.
func FromState(colony uint64, g *genome.Genome, alive bool, st State) *Bot {
	if st.SP > StackSize {
		st.SP = StackSize
	}
	if n := uint32(g.Len()); n > 0 {
		st.PC %= n
		for i := uint32(0); i < st.SP; i++ {
			st.Stack[i] %= n
		}
	}
	st.Facing %= types.NumDirections
	return &Bot{colony: colony, genome: g, alive: alive, state: st}
}

// Colony returns the bot's colony id.
func (b *Bot) Colony() uint64 { return b.colony }

// Genome returns the genome the bot runs.
func (b *Bot) Genome() *genome.Genome { return b.genome }

// GenomeID returns the id of the bot's genome.
func (b *Bot) GenomeID() uint64 { return b.genome.ID() }

// IsAlive reports whether the bot is alive.
func (b *Bot) IsAlive() bool { return b.alive }

// Energy returns the energy register.
func (b *Bot) Energy() int64 { return b.state.Regs[isa.En] }

// Age returns the age register.
func (b *Bot) Age() int64 { return b.state.Regs[isa.Ag] }

// Facing returns the direction the bot faces.
func (b *Bot) Facing() types.Direction { return b.state.Facing }

// State returns a copy of the register file.
func (b *Bot) State() State { return b.state }

// SetEnergy overwrites the energy register. Used by energy diffusion.
func (b *Bot) SetEnergy(e int64) {
	b.state.Regs[isa.En] = e
}

// Kill marks the bot dead and returns the energy it held.
func (b *Bot) Kill() int64 {
	b.alive = false
	return b.state.Regs[isa.En]
}

// clone copies b for reproduction. The genome pointer is shared.
func (b *Bot) clone() *Bot {
	c := *b
	return &c
}

// Info is a read-only snapshot of a bot for display.
type Info struct {
	Colony   uint64                  `json:"colony"`
	GenomeID uint64                  `json:"genomeId"`
	Genome   string                  `json:"genome"`
	Alive    bool                    `json:"alive"`
	Energy   int64                   `json:"energy"`
	Age      int64                   `json:"age"`
	Regs     [isa.NumRegisters]int64 `json:"regs"`
	Flags    Flags                   `json:"flags"`
	PC       uint32                  `json:"pc"`
	Stack    []uint32                `json:"stack"`
	RAM      []int64                 `json:"ram"`
	Facing   string                  `json:"facing"`
	Next     string                  `json:"next"`
}

// Flags mirrors the flag bits of State.
type Flags struct {
	Sign     bool `json:"sign"`
	Zero     bool `json:"zero"`
	Overflow bool `json:"overflow"`
	Free     bool `json:"free"`
	Colony   bool `json:"colony"`
}

// Info snapshots the bot.
func (b *Bot) Info() Info {
	st := &b.state
	info := Info{
		Colony:   b.colony,
		GenomeID: b.genome.ID(),
		Genome:   genome.Encode(b.genome),
		Alive:    b.alive,
		Energy:   st.Regs[isa.En],
		Age:      st.Regs[isa.Ag],
		Regs:     st.Regs,
		Flags: Flags{
			Sign:     st.Sign,
			Zero:     st.Zero,
			Overflow: st.Overflow,
			Free:     st.Free,
			Colony:   st.Colony,
		},
		PC:     st.PC,
		Stack:  append([]uint32(nil), st.Stack[:st.SP]...),
		RAM:    append([]int64(nil), st.RAM[:]...),
		Facing: st.Facing.String(),
	}
	if b.genome.Len() > 0 {
		info.Next = b.genome.At(int(st.PC)).String()
	}
	return info
}
