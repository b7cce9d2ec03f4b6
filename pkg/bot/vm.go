package bot

import (
	"github.com/fortiblox/torland/internal/types"
	"github.com/fortiblox/torland/pkg/isa"
)

// Budget counts the instructions a bot may still execute this turn.
type Budget struct {
	remaining int
}

// NewBudget creates a budget of n instructions.
func NewBudget(n int) *Budget {
	return &Budget{remaining: n}
}

// Consume takes one instruction from the budget and reports whether one was
// available.
func (b *Budget) Consume() bool {
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Remaining returns the instructions left.
func (b *Budget) Remaining() int {
	return b.remaining
}

// push saves a return address. It reports false when the stack is full.
func (s *State) push(pc uint32) bool {
	if s.SP >= StackSize {
		return false
	}
	s.Stack[s.SP] = pc
	s.SP++
	return true
}

func (s *State) pop() (uint32, bool) {
	if s.SP == 0 {
		return 0, false
	}
	s.SP--
	return s.Stack[s.SP], true
}

// Update runs one turn: instructions until the budget is spent or a
// terminating instruction executes, followed by upkeep. Dead bots are left
// untouched.
func (b *Bot) Update(acc Accessor, rules *Rules) {
	if !b.alive || b.genome.Len() == 0 {
		return
	}

	budget := NewBudget(rules.MaxCommandsPerCycle)
	for b.alive && budget.Consume() {
		if b.step(acc, rules) {
			break
		}
	}

	if !b.alive {
		return
	}
	b.upkeep(acc, rules)
}

func (b *Bot) upkeep(acc Accessor, rules *Rules) {
	st := &b.state
	st.Regs[isa.Ag]++
	energy := st.Regs[isa.En] - rules.upkeep(st.Regs[isa.Ag])
	if energy > rules.MaxEnergy {
		energy = rules.MaxEnergy
	}
	st.Regs[isa.En] = energy
	if energy <= 0 {
		b.alive = false
		return
	}
	st.Regs[isa.En] = acc.EnergyDiffusion(b.colony, energy)
}

// step executes one instruction and reports whether it ended the turn.
func (b *Bot) step(acc Accessor, rules *Rules) bool {
	st := &b.state
	cmd := b.genome.At(int(st.PC))
	st.PC = (st.PC + 1) % uint32(b.genome.Len())

	switch cmd.Op {
	case isa.OpNop:

	// World actions
	case isa.OpMov:
		acc.Move(st.Facing.Add(cmd.Dir(0)))
	case isa.OpRot:
		st.Facing = st.Facing.Add(cmd.Dir(0))
	case isa.OpChk:
		d := st.Facing.Add(cmd.Dir(0))
		st.Regs[isa.Sd] = acc.SunDiff(d)
		st.Regs[isa.Md] = acc.MineralDiff(d)
		same, occupied := acc.IsSameColony(d, b.colony)
		st.Free = !occupied
		st.Colony = occupied && same
	case isa.OpSplit:
		b.reproduce(acc, rules, cmd, false)
	case isa.OpFork:
		b.reproduce(acc, rules, cmd, true)
	case isa.OpBite:
		if energy, ok := acc.Kill(st.Facing.Add(cmd.Dir(0))); ok {
			st.Regs[isa.En] += rules.biteShare(energy)
		}
	case isa.OpEatsun:
		st.Regs[isa.En] += b.sunGain(acc, rules)
	case isa.OpAbsorb:
		st.Regs[isa.En] += acc.Mineral() * rules.EnergyPerMineral

	// Comparison
	case isa.OpCmp:
		b.compare(st.Regs[cmd.Reg(0)], st.Regs[cmd.Reg(1)])
	case isa.OpCmpv:
		b.compare(st.Regs[cmd.Reg(0)], int64(cmd.Val(1)))

	// Jumps
	case isa.OpJmp:
		b.jumpIf(true, cmd)
	case isa.OpJme:
		b.jumpIf(st.Zero, cmd)
	case isa.OpJne:
		b.jumpIf(!st.Zero, cmd)
	case isa.OpJmg:
		b.jumpIf(st.Sign && !st.Zero, cmd)
	case isa.OpJml:
		b.jumpIf(!st.Sign, cmd)
	case isa.OpJle:
		b.jumpIf(!st.Sign || st.Zero, cmd)
	case isa.OpJge:
		b.jumpIf(st.Sign, cmd)
	case isa.OpJmo:
		b.jumpIf(st.Overflow, cmd)
	case isa.OpJno:
		b.jumpIf(!st.Overflow, cmd)
	case isa.OpJmb:
		b.jumpIf(!st.Free, cmd)
	case isa.OpJnb:
		b.jumpIf(st.Free, cmd)
	case isa.OpJmc:
		b.jumpIf(st.Colony, cmd)
	case isa.OpJnc:
		b.jumpIf(!st.Colony, cmd)
	case isa.OpJmf:
		b.jumpIf(st.Free, cmd)
	case isa.OpJnf:
		b.jumpIf(!st.Free, cmd)

	// Subroutines
	case isa.OpCall:
		if st.push(st.PC) {
			st.PC = uint32(cmd.Label(0))
			st.Overflow = false
		} else {
			st.Overflow = true
		}
	case isa.OpRet:
		if pc, ok := st.pop(); ok {
			st.PC = pc
			st.Overflow = false
		} else {
			st.Overflow = true
		}

	// Transfer
	case isa.OpLd:
		st.Regs[cmd.RwReg(0).Register()] = st.Regs[cmd.Reg(1)]
	case isa.OpLdv:
		st.Regs[cmd.RwReg(0).Register()] = int64(cmd.Val(1))
	case isa.OpLdr:
		st.RAM[cmd.Mem(0)] = st.Regs[cmd.Reg(1)]
	case isa.OpLdm:
		st.Regs[cmd.RwReg(0).Register()] = st.RAM[cmd.Mem(1)]

	// Arithmetic
	case isa.OpNeg:
		dst := cmd.RwReg(0).Register()
		b.store(dst, neg(st.Regs[dst]), rules)
	case isa.OpAdd, isa.OpSub, isa.OpMul, isa.OpDiv, isa.OpMod, isa.OpPow:
		dst := cmd.RwReg(0).Register()
		b.store(dst, arith(cmd.Op, st.Regs[dst], st.Regs[cmd.Reg(1)]), rules)
	case isa.OpAddv, isa.OpSubv, isa.OpMulv, isa.OpDivv, isa.OpModv, isa.OpPowv:
		dst := cmd.RwReg(0).Register()
		b.store(dst, arith(cmd.Op, st.Regs[dst], int64(cmd.Val(1))), rules)
	}

	return cmd.Op.Terminating()
}

func (b *Bot) compare(x, y int64) {
	b.state.Zero = x == y
	b.state.Sign = x >= y
}

func (b *Bot) jumpIf(cond bool, cmd isa.Command) {
	if cond {
		b.state.PC = uint32(cmd.Label(0))
	}
}

// store writes an arithmetic result. Overflowed results are replaced by the
// MaxRandomValue sentinel.
func (b *Bot) store(dst isa.Register, r result, rules *Rules) {
	b.state.Overflow = !r.ok
	if r.ok {
		b.state.Regs[dst] = r.v
	} else {
		b.state.Regs[dst] = rules.MaxRandomValue
	}
}

// reproduce implements Split and Fork. The cost is always charged; a child is
// only attempted when the bot could afford it, and a blocked target kills the
// parent.
func (b *Bot) reproduce(acc Accessor, rules *Rules, cmd isa.Command, fork bool) {
	st := &b.state
	cost := rules.EnergyForSplit
	before := st.Regs[isa.En]
	st.Regs[isa.En] -= cost
	if before < cost {
		return
	}

	child := b.clone()
	child.state.PC = uint32(cmd.Label(1))
	child.state.Regs[isa.Ag] = 0
	child.state.Regs[isa.En] = cost
	if fork {
		child.colony = acc.NewColonyID()
		rng := acc.Rand()
		if rng.Float64() < rules.MutationVer {
			child.genome = b.genome.Mutate(rng, acc.NewGenomeID(), rules.MaxRandomValue, isa.MemSize)
		}
	}

	if !acc.Spawn(st.Facing.Add(cmd.Dir(0)), child) {
		b.alive = false
	}
}

func (b *Bot) sunGain(acc Accessor, rules *Rules) int64 {
	var free, bro, oth int64
	for d := types.Direction(0); d < types.NumDirections; d++ {
		same, occupied := acc.IsSameColony(d, b.colony)
		switch {
		case !occupied:
			free++
		case same:
			bro++
		default:
			oth++
		}
	}
	return acc.Sun()*rules.EnergyPerSun +
		free*rules.EnergyPerSunFreeBoost +
		bro*rules.EnergyPerSunBroBoost +
		oth*rules.EnergyPerSunOthBoost
}
