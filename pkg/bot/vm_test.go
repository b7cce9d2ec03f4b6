package bot

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/torland/internal/types"
	"github.com/fortiblox/torland/pkg/genome"
	"github.com/fortiblox/torland/pkg/isa"
)

// fakeWorld is a single-cell neighborhood used to drive the VM directly.
type fakeWorld struct {
	neighbors map[types.Direction]*Bot
	sun       int64
	mineral   int64
	sunAt     map[types.Direction]int64
	spawned   []*Bot
	moves     []types.Direction
	colonies  uint64
	genomes   uint64
	rng       *rand.Rand
	diffused  int
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		neighbors: make(map[types.Direction]*Bot),
		sunAt:     make(map[types.Direction]int64),
		colonies:  100,
		genomes:   500,
		rng:       rand.New(rand.NewSource(1)),
	}
}

func (f *fakeWorld) Move(d types.Direction) bool {
	if f.neighbors[d] != nil {
		return false
	}
	f.moves = append(f.moves, d)
	return true
}

func (f *fakeWorld) Spawn(d types.Direction, child *Bot) bool {
	if f.neighbors[d] != nil {
		return false
	}
	f.neighbors[d] = child
	f.spawned = append(f.spawned, child)
	return true
}

func (f *fakeWorld) Kill(d types.Direction) (int64, bool) {
	b := f.neighbors[d]
	if b == nil || !b.IsAlive() {
		return 0, false
	}
	return b.Kill(), true
}

func (f *fakeWorld) Sun() int64     { return f.sun }
func (f *fakeWorld) Mineral() int64 { return f.mineral }

func (f *fakeWorld) SunDiff(d types.Direction) int64     { return f.sun - f.sunAt[d] }
func (f *fakeWorld) MineralDiff(d types.Direction) int64 { return f.mineral }

func (f *fakeWorld) IsSameColony(d types.Direction, colony uint64) (bool, bool) {
	b := f.neighbors[d]
	if b == nil {
		return false, false
	}
	return b.Colony() == colony, true
}

func (f *fakeWorld) NewColonyID() uint64 { f.colonies++; return f.colonies }
func (f *fakeWorld) NewGenomeID() uint64 { f.genomes++; return f.genomes }

func (f *fakeWorld) EnergyDiffusion(colony uint64, energy int64) int64 {
	f.diffused++
	return energy
}

func (f *fakeWorld) Rand() isa.Rand { return f.rng }

func testRules() Rules {
	r := DefaultRules()
	r.EnergyPerStep = 1
	r.AgePerEnergyPenalty = 0
	r.EnergyForSplit = 100
	r.MaxEnergy = 10000
	return r
}

func newTestBot(t *testing.T, energy int64, code ...isa.Command) *Bot {
	t.Helper()
	g, err := genome.New(1, code, isa.MemSize)
	require.NoError(t, err)
	return New(7, g, energy)
}

func dir(d types.Direction) int64 { return int64(d) }

func TestBudget(t *testing.T) {
	b := NewBudget(2)
	assert.True(t, b.Consume())
	assert.True(t, b.Consume())
	assert.False(t, b.Consume())
	assert.Equal(t, 0, b.Remaining())
}

func TestNonTerminatingLoopUsesWholeBudget(t *testing.T) {
	rules := testRules()
	rules.MaxCommandsPerCycle = 7
	b := newTestBot(t, 1000,
		isa.New(isa.OpAddv, int64(isa.RwAx), 1),
		isa.New(isa.OpJmp, 0),
	)

	b.Update(newFakeWorld(), &rules)

	st := b.State()
	assert.Equal(t, int64(4), st.Regs[isa.Ax]) // add, jmp, add, jmp, add, jmp, add
	assert.Equal(t, uint32(1), st.PC)
}

func TestTerminatingInstructionEndsTurn(t *testing.T) {
	rules := testRules()
	b := newTestBot(t, 1000,
		isa.New(isa.OpRot, dir(types.Right)),
		isa.New(isa.OpAddv, int64(isa.RwAx), 1),
	)

	w := newFakeWorld()
	b.Update(w, &rules)

	assert.Equal(t, types.Right, b.Facing())
	assert.Equal(t, int64(0), b.State().Regs[isa.Ax])
	assert.Equal(t, uint32(1), b.State().PC)
	assert.Equal(t, 1, w.diffused)
}

func TestPCAdvancesBeforeExecution(t *testing.T) {
	rules := testRules()
	rules.MaxCommandsPerCycle = 1
	// call pushes the already advanced pc
	b := newTestBot(t, 1000,
		isa.New(isa.OpNop),
		isa.New(isa.OpCall, 3),
		isa.New(isa.OpNop),
		isa.New(isa.OpRet),
	)
	w := newFakeWorld()
	b.Update(w, &rules)
	b.Update(w, &rules)

	st := b.State()
	assert.Equal(t, uint32(3), st.PC)
	require.Equal(t, uint32(1), st.SP)
	assert.Equal(t, uint32(2), st.Stack[0])

	b.Update(w, &rules)
	assert.Equal(t, uint32(2), b.State().PC)
	assert.False(t, b.State().Overflow)
}

func TestCallStackBounds(t *testing.T) {
	rules := testRules()
	rules.MaxCommandsPerCycle = StackSize + 1

	b := newTestBot(t, 1000, isa.New(isa.OpCall, 0))
	b.Update(newFakeWorld(), &rules)

	st := b.State()
	assert.Equal(t, uint32(StackSize), st.SP)
	assert.True(t, st.Overflow)
	// the dropped call leaves pc at the advanced position
	assert.Equal(t, uint32(0), st.PC)

	rules.MaxCommandsPerCycle = 1
	r := newTestBot(t, 1000, isa.New(isa.OpRet), isa.New(isa.OpNop))
	r.Update(newFakeWorld(), &rules)
	assert.True(t, r.State().Overflow)
	assert.Equal(t, uint32(1), r.State().PC)
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		init     int64
		cmd      isa.Command
		want     int64
		overflow bool
	}{
		{"addv", 5, isa.New(isa.OpAddv, int64(isa.RwAx), 7), 12, false},
		{"subv", 5, isa.New(isa.OpSubv, int64(isa.RwAx), 7), -2, false},
		{"mulv", -6, isa.New(isa.OpMulv, int64(isa.RwAx), 7), -42, false},
		{"divv", 43, isa.New(isa.OpDivv, int64(isa.RwAx), 7), 6, false},
		{"modv", -43, isa.New(isa.OpModv, int64(isa.RwAx), 7), -1, false},
		{"powv", 3, isa.New(isa.OpPowv, int64(isa.RwAx), 4), 81, false},
		{"pow zero", 9, isa.New(isa.OpPowv, int64(isa.RwAx), 0), 1, false},
		{"add overflow", math.MaxInt64, isa.New(isa.OpAddv, int64(isa.RwAx), 1), 10000, true},
		{"sub overflow", math.MinInt64, isa.New(isa.OpSubv, int64(isa.RwAx), 1), 10000, true},
		{"mul overflow", math.MaxInt64 / 2, isa.New(isa.OpMulv, int64(isa.RwAx), 3), 10000, true},
		{"div by zero", 1, isa.New(isa.OpDivv, int64(isa.RwAx), 0), 10000, true},
		{"mod by zero", 1, isa.New(isa.OpModv, int64(isa.RwAx), 0), 10000, true},
		{"min div -1", math.MinInt64, isa.New(isa.OpDivv, int64(isa.RwAx), -1), 10000, true},
		{"pow overflow", 10, isa.New(isa.OpPowv, int64(isa.RwAx), 19), 10000, true},
		{"negative exponent", 2, isa.New(isa.OpPowv, int64(isa.RwAx), -1), 10000, true},
		{"neg", 5, isa.New(isa.OpNeg, int64(isa.RwAx)), -5, false},
		{"neg min", math.MinInt64, isa.New(isa.OpNeg, int64(isa.RwAx)), 10000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := testRules()
			rules.MaxCommandsPerCycle = 2
			b := newTestBot(t, 1000,
				isa.New(isa.OpLdv, int64(isa.RwAx), tt.init),
				tt.cmd,
			)
			b.Update(newFakeWorld(), &rules)

			st := b.State()
			assert.Equal(t, tt.want, st.Regs[isa.Ax])
			assert.Equal(t, tt.overflow, st.Overflow)
		})
	}
}

func TestRegisterArithmeticClearsOverflow(t *testing.T) {
	rules := testRules()
	rules.MaxCommandsPerCycle = 3
	b := newTestBot(t, 1000,
		isa.New(isa.OpDivv, int64(isa.RwBx), 0),
		isa.New(isa.OpLdv, int64(isa.RwCx), 4),
		isa.New(isa.OpAdd, int64(isa.RwBx), int64(isa.Cx)),
	)
	b.Update(newFakeWorld(), &rules)

	st := b.State()
	assert.False(t, st.Overflow)
	assert.Equal(t, int64(10004), st.Regs[isa.Bx])
}

func TestCompareAndJumps(t *testing.T) {
	tests := []struct {
		name  string
		a, b  int64
		jump  isa.Opcode
		taken bool
	}{
		{"jme equal", 3, 3, isa.OpJme, true},
		{"jme differ", 3, 4, isa.OpJme, false},
		{"jne differ", 3, 4, isa.OpJne, true},
		{"jmg greater", 5, 4, isa.OpJmg, true},
		{"jmg equal", 4, 4, isa.OpJmg, false},
		{"jml less", 3, 4, isa.OpJml, true},
		{"jml equal", 4, 4, isa.OpJml, false},
		{"jle equal", 4, 4, isa.OpJle, true},
		{"jle greater", 5, 4, isa.OpJle, false},
		{"jge equal", 4, 4, isa.OpJge, true},
		{"jge less", 3, 4, isa.OpJge, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := testRules()
			rules.MaxCommandsPerCycle = 4
			b := newTestBot(t, 1000,
				isa.New(isa.OpLdv, int64(isa.RwAx), tt.a),
				isa.New(isa.OpCmpv, int64(isa.Ax), tt.b),
				isa.New(tt.jump, 5),
				isa.New(isa.OpLdv, int64(isa.RwDx), 1),
				isa.New(isa.OpRot, dir(types.Front)),
				isa.New(isa.OpLdv, int64(isa.RwDx), 2),
			)
			b.Update(newFakeWorld(), &rules)

			want := int64(1)
			if tt.taken {
				want = 2
			}
			assert.Equal(t, want, b.State().Regs[isa.Dx])
			// registers are untouched by cmp
			assert.Equal(t, tt.a, b.State().Regs[isa.Ax])
		})
	}
}

func TestChkFlags(t *testing.T) {
	rules := testRules()
	rules.MaxCommandsPerCycle = 1

	t.Run("free", func(t *testing.T) {
		w := newFakeWorld()
		w.sun = 9
		w.sunAt[types.Right] = 4
		b := newTestBot(t, 1000, isa.New(isa.OpChk, dir(types.Right)))
		b.Update(w, &rules)

		st := b.State()
		assert.True(t, st.Free)
		assert.False(t, st.Colony)
		assert.Equal(t, int64(5), st.Regs[isa.Sd])
	})

	t.Run("same colony", func(t *testing.T) {
		w := newFakeWorld()
		b := newTestBot(t, 1000, isa.New(isa.OpChk, dir(types.Front)))
		w.neighbors[types.Front] = New(b.Colony(), b.Genome(), 10)
		b.Update(w, &rules)

		st := b.State()
		assert.False(t, st.Free)
		assert.True(t, st.Colony)
	})

	t.Run("other colony", func(t *testing.T) {
		w := newFakeWorld()
		b := newTestBot(t, 1000, isa.New(isa.OpChk, dir(types.Front)))
		w.neighbors[types.Front] = New(b.Colony()+1, b.Genome(), 10)
		b.Update(w, &rules)

		st := b.State()
		assert.False(t, st.Free)
		assert.False(t, st.Colony)
	})

	t.Run("relative to facing", func(t *testing.T) {
		w := newFakeWorld()
		rules := rules
		rules.MaxCommandsPerCycle = 2
		b := newTestBot(t, 1000,
			isa.New(isa.OpLdv, int64(isa.RwAx), 0),
			isa.New(isa.OpChk, dir(types.Right)),
		)
		b.state.Facing = types.Right
		w.neighbors[types.Back] = New(99, b.Genome(), 10)
		b.Update(w, &rules)
		assert.False(t, b.State().Free)
	})
}

func TestMemory(t *testing.T) {
	rules := testRules()
	rules.MaxCommandsPerCycle = 3
	b := newTestBot(t, 1000,
		isa.New(isa.OpLdv, int64(isa.RwAx), 77),
		isa.New(isa.OpLdr, 63, int64(isa.Ax)),
		isa.New(isa.OpLdm, int64(isa.RwCx), 63),
	)
	b.Update(newFakeWorld(), &rules)

	st := b.State()
	assert.Equal(t, int64(77), st.RAM[63])
	assert.Equal(t, int64(77), st.Regs[isa.Cx])
}

func TestMoveBlockedIsSilent(t *testing.T) {
	rules := testRules()
	w := newFakeWorld()
	b := newTestBot(t, 1000, isa.New(isa.OpMov, dir(types.Front)))
	w.neighbors[types.Front] = New(1, b.Genome(), 10)

	b.Update(w, &rules)
	assert.True(t, b.IsAlive())
	assert.Empty(t, w.moves)
	assert.Equal(t, int64(999), b.Energy())
}

func TestSplitEconomics(t *testing.T) {
	rules := testRules()
	rules.EnergyPerStep = 0

	t.Run("affordable", func(t *testing.T) {
		w := newFakeWorld()
		b := newTestBot(t, 250, isa.New(isa.OpSplit, dir(types.Left), 0))
		b.Update(w, &rules)

		require.Len(t, w.spawned, 1)
		child := w.spawned[0]
		assert.Equal(t, int64(150), b.Energy())
		assert.Equal(t, rules.EnergyForSplit, child.Energy())
		assert.Equal(t, b.Colony(), child.Colony())
		assert.Equal(t, b.GenomeID(), child.GenomeID())
		assert.Same(t, b.Genome(), child.Genome())
		assert.Equal(t, int64(0), child.Age())
		assert.Equal(t, uint32(0), child.State().PC)
	})

	t.Run("exact cost", func(t *testing.T) {
		w := newFakeWorld()
		b := newTestBot(t, 100, isa.New(isa.OpSplit, dir(types.Left), 0))
		b.Update(w, &rules)

		require.Len(t, w.spawned, 1)
		assert.False(t, b.IsAlive(), "parent left with zero energy dies at upkeep")
	})

	t.Run("unaffordable still debits", func(t *testing.T) {
		w := newFakeWorld()
		b := newTestBot(t, 40, isa.New(isa.OpSplit, dir(types.Left), 0))
		b.Update(w, &rules)

		assert.Empty(t, w.spawned)
		assert.Equal(t, int64(-60), b.Energy())
		assert.False(t, b.IsAlive())
	})

	t.Run("blocked kills parent", func(t *testing.T) {
		w := newFakeWorld()
		b := newTestBot(t, 500, isa.New(isa.OpSplit, dir(types.Left), 0))
		w.neighbors[types.Left] = New(3, b.Genome(), 10)
		b.Update(w, &rules)

		assert.False(t, b.IsAlive())
		assert.Equal(t, 0, w.diffused)
	})

	t.Run("child starts at label", func(t *testing.T) {
		w := newFakeWorld()
		b := newTestBot(t, 500,
			isa.New(isa.OpSplit, dir(types.Back), 2),
			isa.New(isa.OpNop),
			isa.New(isa.OpNop),
		)
		b.state.Facing = types.Right
		b.Update(w, &rules)

		require.Len(t, w.spawned, 1)
		assert.Equal(t, uint32(2), w.spawned[0].State().PC)
		assert.Same(t, w.spawned[0], w.neighbors[types.Left])
	})
}

func TestForkMutation(t *testing.T) {
	rules := testRules()
	rules.MutationVer = 1.0

	w := newFakeWorld()
	b := newTestBot(t, 500,
		isa.New(isa.OpFork, dir(types.Front), 0),
		isa.New(isa.OpEatsun),
		isa.New(isa.OpJmp, 0),
	)
	b.Update(w, &rules)

	require.Len(t, w.spawned, 1)
	child := w.spawned[0]
	assert.NotEqual(t, b.Colony(), child.Colony())
	assert.NotEqual(t, b.GenomeID(), child.GenomeID())

	diff := 0
	for i := 0; i < b.Genome().Len(); i++ {
		if b.Genome().At(i) != child.Genome().At(i) {
			diff++
		}
	}
	assert.Equal(t, 1, diff)
}

func TestForkWithoutMutationSharesGenome(t *testing.T) {
	rules := testRules()
	rules.MutationVer = 0

	w := newFakeWorld()
	b := newTestBot(t, 500, isa.New(isa.OpFork, dir(types.Front), 0))
	b.Update(w, &rules)

	require.Len(t, w.spawned, 1)
	child := w.spawned[0]
	assert.Equal(t, uint64(101), child.Colony())
	assert.Same(t, b.Genome(), child.Genome())
}

func TestBite(t *testing.T) {
	rules := testRules()
	rules.EnergyPerStep = 0

	t.Run("empty target", func(t *testing.T) {
		w := newFakeWorld()
		b := newTestBot(t, 100, isa.New(isa.OpBite, dir(types.Front)))
		b.Update(w, &rules)
		assert.True(t, b.IsAlive())
		assert.Equal(t, int64(100), b.Energy())
	})

	t.Run("victim", func(t *testing.T) {
		w := newFakeWorld()
		b := newTestBot(t, 100, isa.New(isa.OpBite, dir(types.Front)))
		victim := New(2, b.Genome(), 500)
		w.neighbors[types.Front] = victim
		b.Update(w, &rules)

		assert.False(t, victim.IsAlive())
		assert.Equal(t, int64(150), b.Energy())
	})
}

func TestEatsunAndAbsorb(t *testing.T) {
	rules := testRules()
	rules.EnergyPerStep = 0
	rules.EnergyPerSun = 10
	rules.EnergyPerSunFreeBoost = 1
	rules.EnergyPerSunBroBoost = 3
	rules.EnergyPerSunOthBoost = -5
	rules.EnergyPerMineral = 4

	w := newFakeWorld()
	w.sun = 6
	w.mineral = 5
	b := newTestBot(t, 100, isa.New(isa.OpEatsun), isa.New(isa.OpAbsorb))
	w.neighbors[types.Front] = New(b.Colony(), b.Genome(), 1)
	w.neighbors[types.Back] = New(b.Colony(), b.Genome(), 1)
	w.neighbors[types.Left] = New(b.Colony()+1, b.Genome(), 1)

	b.Update(w, &rules)
	// 6*10 + 5 free*1 + 2 bro*3 + 1 other*-5
	assert.Equal(t, int64(100+60+5+6-5), b.Energy())

	b.Update(w, &rules)
	assert.Equal(t, int64(166+20), b.Energy())
}

func TestUpkeep(t *testing.T) {
	rules := testRules()
	rules.EnergyPerStep = 10
	rules.AgePerEnergyPenalty = 2
	rules.MaxEnergy = 1000

	b := newTestBot(t, 5000, isa.New(isa.OpNop))
	b.Update(newFakeWorld(), &rules)
	assert.Equal(t, int64(1), b.Age())
	assert.Equal(t, int64(1000), b.Energy(), "clamped to max energy")

	b.Update(newFakeWorld(), &rules)
	assert.Equal(t, int64(2), b.Age())
	assert.Equal(t, int64(1000-10-1), b.Energy())
}

func TestEatsunGrowsUntilClamp(t *testing.T) {
	rules := testRules()
	rules.MaxEnergy = 400
	rules.EnergyPerStep = 5
	rules.EnergyPerSun = 10
	rules.EnergyPerSunFreeBoost = 0

	w := newFakeWorld()
	w.sun = 3
	b := newTestBot(t, 100, isa.New(isa.OpEatsun), isa.New(isa.OpJmp, 0))

	prev := b.Energy()
	for i := 0; i < 40; i++ {
		b.Update(w, &rules)
		if prev < rules.MaxEnergy {
			require.Greater(t, b.Energy(), prev, "tick %d", i)
		} else {
			require.Equal(t, rules.MaxEnergy, b.Energy(), "tick %d", i)
		}
		prev = b.Energy()
	}
	assert.Equal(t, rules.MaxEnergy, b.Energy())
}

func TestStarvation(t *testing.T) {
	rules := testRules()
	rules.EnergyPerStep = 30
	b := newTestBot(t, 50, isa.New(isa.OpNop))
	w := newFakeWorld()

	b.Update(w, &rules)
	assert.True(t, b.IsAlive())
	b.Update(w, &rules)
	assert.False(t, b.IsAlive())
	assert.Equal(t, 1, w.diffused)

	// dead bots do nothing
	b.Update(w, &rules)
	assert.Equal(t, int64(2), b.Age())
}

func TestReadOnlyRegistersAreNotWritable(t *testing.T) {
	for _, r := range []isa.Register{isa.En, isa.Ag, isa.Sd, isa.Md} {
		_, err := genome.New(0, []isa.Command{isa.New(isa.OpLdv, int64(r), 1)}, isa.MemSize)
		assert.ErrorIs(t, err, genome.ErrInvalid)
	}
}

func TestInfo(t *testing.T) {
	b := newTestBot(t, 42, isa.New(isa.OpNop), isa.New(isa.OpCall, 0))
	info := b.Info()
	assert.Equal(t, uint64(7), info.Colony)
	assert.Equal(t, int64(42), info.Energy)
	assert.Equal(t, "front", info.Facing)
	assert.Equal(t, "nop", info.Next)
	assert.Len(t, info.RAM, isa.MemSize)
	assert.Empty(t, info.Stack)

	decoded, err := genome.Decode(0, info.Genome)
	require.NoError(t, err)
	assert.True(t, decoded.Equal(b.Genome()))
}

func TestFromStateNormalizes(t *testing.T) {
	g := genome.MustNew(1, []isa.Command{isa.New(isa.OpNop), isa.New(isa.OpNop)})
	st := State{PC: 5, SP: 99, Facing: 10}
	st.Stack[0] = 7
	st.Stack[StackSize-1] = 4
	b := FromState(3, g, true, st)

	got := b.State()
	assert.Equal(t, uint32(1), got.PC)
	assert.Equal(t, uint32(StackSize), got.SP)
	assert.Equal(t, types.Right, got.Facing)
	assert.Equal(t, uint32(1), got.Stack[0])
	assert.Equal(t, uint32(0), got.Stack[StackSize-1])
}

func TestRetAfterRestoreStaysInRange(t *testing.T) {
	g := genome.MustNew(1, []isa.Command{isa.New(isa.OpRet), isa.New(isa.OpNop)})
	st := State{SP: 1}
	st.Stack[0] = 1000
	b := FromState(3, g, true, st)

	rules := testRules()
	rules.MaxCommandsPerCycle = 3
	require.NotPanics(t, func() { b.Update(newFakeWorld(), &rules) })
	assert.Less(t, b.State().PC, uint32(g.Len()))
}

func TestRulesValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Rules)
		wantErr bool
	}{
		{"defaults", func(r *Rules) {}, false},
		{"zero budget", func(r *Rules) { r.MaxCommandsPerCycle = 0 }, true},
		{"negative split cost", func(r *Rules) { r.EnergyForSplit = -1 }, true},
		{"zero max energy", func(r *Rules) { r.MaxEnergy = 0 }, true},
		{"zero bite delimiter", func(r *Rules) { r.OnBiteEnergyDelimiter = 0 }, true},
		{"negative random value", func(r *Rules) { r.MaxRandomValue = -1 }, true},
		{"largest random value", func(r *Rules) { r.MaxRandomValue = isa.MaxValueLimit }, false},
		{"random value too large", func(r *Rules) { r.MaxRandomValue = isa.MaxValueLimit + 1 }, true},
		{"random value max int", func(r *Rules) { r.MaxRandomValue = math.MaxInt64 }, true},
		{"mutation above one", func(r *Rules) { r.MutationVer = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultRules()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRules)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestForkMutationAtLargestRandomValue(t *testing.T) {
	for _, maxValue := range []int64{isa.MaxValueLimit, math.MaxInt64} {
		rules := testRules()
		rules.MutationVer = 1.0
		rules.MaxRandomValue = maxValue

		for seed := int64(0); seed < 50; seed++ {
			w := newFakeWorld()
			w.rng = rand.New(rand.NewSource(seed))
			b := newTestBot(t, 500,
				isa.New(isa.OpFork, dir(types.Front), 0),
				isa.New(isa.OpLdv, 0, 5),
				isa.New(isa.OpJmp, 0),
			)
			require.NotPanics(t, func() { b.Update(w, &rules) }, "seed %d", seed)
			require.Len(t, w.spawned, 1)
			assert.NotEqual(t, b.GenomeID(), w.spawned[0].GenomeID())
		}
	}
}
