package world

import (
	"github.com/fortiblox/torland/internal/types"
	"github.com/fortiblox/torland/pkg/bot"
	"github.com/fortiblox/torland/pkg/isa"
)

// entry is a registry slot: a bot and where it stands.
type entry struct {
	pos types.Pos
	bot *bot.Bot
}

// accessor implements bot.Accessor for one bot's turn. Every mutation keeps
// the one-occupant-per-cell invariant.
type accessor struct {
	w       *World
	self    *entry
	newborn *[]*entry
}

var _ bot.Accessor = (*accessor)(nil)

func (a *accessor) here() *Cell {
	return a.w.grid.At(a.self.pos)
}

func (a *accessor) target(d types.Direction) (types.Pos, *Cell) {
	p := a.w.grid.Neighbor(a.self.pos, d)
	return p, a.w.grid.At(p)
}

func (a *accessor) Move(d types.Direction) bool {
	p, dst := a.target(d)
	if dst.bot != nil {
		return false
	}
	a.here().bot = nil
	dst.bot = a.self.bot
	a.self.pos = p
	return true
}

func (a *accessor) Spawn(d types.Direction, child *bot.Bot) bool {
	p, dst := a.target(d)
	if dst.bot != nil {
		return false
	}
	dst.bot = child
	*a.newborn = append(*a.newborn, &entry{pos: p, bot: child})
	return true
}

// Kill leaves the victim in place; its cell is vacated at end of tick.
func (a *accessor) Kill(d types.Direction) (int64, bool) {
	_, dst := a.target(d)
	if dst.bot == nil || !dst.bot.IsAlive() {
		return 0, false
	}
	return dst.bot.Kill(), true
}

func (a *accessor) Sun() int64     { return a.here().Sun }
func (a *accessor) Mineral() int64 { return a.here().Mineral }

func (a *accessor) SunDiff(d types.Direction) int64 {
	_, dst := a.target(d)
	return a.here().Sun - dst.Sun
}

func (a *accessor) MineralDiff(d types.Direction) int64 {
	_, dst := a.target(d)
	return a.here().Mineral - dst.Mineral
}

func (a *accessor) IsSameColony(d types.Direction, colony uint64) (same, occupied bool) {
	_, dst := a.target(d)
	if dst.bot == nil {
		return false, false
	}
	return dst.bot.Colony() == colony, true
}

func (a *accessor) NewColonyID() uint64 { return a.w.nextColony.Add(1) - 1 }
func (a *accessor) NewGenomeID() uint64 { return a.w.nextGenome.Add(1) - 1 }

func (a *accessor) EnergyDiffusion(colony uint64, energy int64) int64 {
	var peers [len(types.Orthogonal)]*bot.Bot
	n := 0
	sum := energy

scan:
	for _, d := range types.Orthogonal {
		_, c := a.target(d)
		b := c.bot
		if b == nil || b == a.self.bot || !b.IsAlive() || b.Colony() != colony {
			continue
		}
		// narrow grids can reach the same neighbor from two sides
		for _, p := range peers[:n] {
			if p == b {
				continue scan
			}
		}
		peers[n] = b
		n++
		sum += b.Energy()
	}

	avg := sum / int64(n+1)
	for _, p := range peers[:n] {
		p.SetEnergy(avg)
	}
	return avg
}

func (a *accessor) Rand() isa.Rand { return a.w.rng }
