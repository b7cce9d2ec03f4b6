package world

import (
	"fmt"

	"github.com/fortiblox/torland/internal/types"
	"github.com/fortiblox/torland/pkg/bot"
	"github.com/fortiblox/torland/pkg/genome"
)

// Dump is a complete copy of a world's state, suitable for persistence.
type Dump struct {
	Tick    uint64
	Height  int
	Width   int
	Rules   bot.Rules
	Sun     []int64 // row-major
	Mineral []int64 // row-major

	NextColony uint64
	NextGenome uint64

	Bots []BotRecord
}

// BotRecord is one registry entry of a Dump.
type BotRecord struct {
	Pos    types.Pos
	Colony uint64
	Alive  bool
	Genome *genome.Genome
	State  bot.State
}

// Dump exports the world. Genome pointers are shared with the live world;
// genomes are immutable so this is safe.
func (w *World) Dump() Dump {
	w.mu.RLock()
	defer w.mu.RUnlock()

	n := len(w.grid.cells)
	d := Dump{
		Tick:       w.tick,
		Height:     w.grid.h,
		Width:      w.grid.w,
		Rules:      w.rules,
		Sun:        make([]int64, n),
		Mineral:    make([]int64, n),
		NextColony: w.nextColony.Load(),
		NextGenome: w.nextGenome.Load(),
		Bots:       make([]BotRecord, 0, len(w.bots)),
	}
	for i := range w.grid.cells {
		d.Sun[i] = w.grid.cells[i].Sun
		d.Mineral[i] = w.grid.cells[i].Mineral
	}
	for _, e := range w.bots {
		d.Bots = append(d.Bots, BotRecord{
			Pos:    e.pos,
			Colony: e.bot.Colony(),
			Alive:  e.bot.IsAlive(),
			Genome: e.bot.Genome(),
			State:  e.bot.State(),
		})
	}
	return d
}

// Restore rebuilds a world from a Dump. Mutation draws restart from seed.
func Restore(d Dump, seed int64, strategy Strategy) (*World, error) {
	n := d.Height * d.Width
	if len(d.Sun) != n || len(d.Mineral) != n {
		return nil, fmt.Errorf("%w: resource maps do not match %dx%d", ErrInvalidConfig, d.Width, d.Height)
	}

	w, err := New(Config{
		Height:   d.Height,
		Width:    d.Width,
		Sun:      func(x, y int) int64 { return d.Sun[y*d.Width+x] },
		Mineral:  func(x, y int) int64 { return d.Mineral[y*d.Width+x] },
		Rules:    d.Rules,
		Seed:     seed,
		Strategy: strategy,
	})
	if err != nil {
		return nil, err
	}

	for i, r := range d.Bots {
		if !r.Pos.In(d.Width, d.Height) {
			return nil, fmt.Errorf("%w: bot %d at %v", ErrOutOfBounds, i, r.Pos)
		}
		if r.Genome == nil {
			return nil, fmt.Errorf("%w: bot %d has no genome", ErrInvalidConfig, i)
		}
		c := w.grid.At(r.Pos)
		if c.bot != nil {
			return nil, fmt.Errorf("%w: bot %d at %v", ErrCellOccupied, i, r.Pos)
		}
		b := bot.FromState(r.Colony, r.Genome, r.Alive, r.State)
		c.bot = b
		w.bots = append(w.bots, &entry{pos: r.Pos, bot: b})
	}

	w.tick = d.Tick
	w.nextColony.Store(d.NextColony)
	w.nextGenome.Store(d.NextGenome)
	w.refreshInfo()
	return w, nil
}
