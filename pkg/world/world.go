// Package world runs the Torland simulation: a toroidal grid of cells, the
// registry of live bots and the per-tick scheduler that drives them.
//
// A World is safe for concurrent use. Update takes the write lock for the
// whole tick; queries take the read lock.
package world

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/fortiblox/torland/internal/types"
	"github.com/fortiblox/torland/pkg/bot"
	"github.com/fortiblox/torland/pkg/genome"
	"github.com/fortiblox/torland/pkg/isa"
)

var (
	// ErrInvalidConfig is returned when a world cannot be built from a Config.
	ErrInvalidConfig = errors.New("invalid world config")

	// ErrOutOfBounds is returned for positions outside the grid.
	ErrOutOfBounds = errors.New("position out of bounds")

	// ErrCellOccupied is returned when spawning onto an occupied cell.
	ErrCellOccupied = errors.New("cell occupied")

	// ErrNoBot is returned when a cell has no occupant.
	ErrNoBot = errors.New("no bot at position")

	// ErrBotFault is returned by Update when a bot's turn panicked. The bot
	// is killed and the tick completes.
	ErrBotFault = errors.New("bot fault")
)

// Strategy selects how a tick visits bots.
type Strategy string

const (
	// StrategySequential visits bots one at a time in registry order.
	StrategySequential Strategy = "sequential"

	// StrategyRows runs well-separated rows concurrently. Visit order, and
	// therefore the outcome, is not reproducible.
	StrategyRows Strategy = "rows"
)

// Config describes a new world.
type Config struct {
	Height  int
	Width   int
	Sun     CellFunc
	Mineral CellFunc
	Rules   bot.Rules

	// Seed drives mutation decisions.
	Seed int64

	// Strategy defaults to StrategySequential.
	Strategy Strategy
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.Height <= 0 || c.Width <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := newScheduler(c.Strategy); err != nil {
		return err
	}
	return nil
}

// Info aggregates the world for renderers and monitoring.
type Info struct {
	Height     int   `json:"height"`
	Width      int   `json:"width"`
	MaxSun     int64 `json:"maxSun"`
	MaxMineral int64 `json:"maxMineral"`
	MaxAge     int64 `json:"maxAge"`
	MinAge     int64 `json:"minAge"`
	MaxEnergy  int64 `json:"maxEnergy"`
	MinEnergy  int64 `json:"minEnergy"`
}

// World owns the grid, the registry and the id counters.
type World struct {
	mu sync.RWMutex

	grid  *Grid
	bots  []*entry
	rules bot.Rules
	sched scheduler
	rng   *lockedRand

	nextColony atomic.Uint64
	nextGenome atomic.Uint64

	tick uint64
	info Info
}

// New builds an empty world.
func New(cfg Config) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sched, _ := newScheduler(cfg.Strategy)

	sun, mineral := cfg.Sun, cfg.Mineral
	if sun == nil {
		sun = zero
	}
	if mineral == nil {
		mineral = zero
	}

	w := &World{
		grid:  newGrid(cfg.Width, cfg.Height, sun, mineral),
		rules: cfg.Rules,
		sched: sched,
		rng:   newLockedRand(cfg.Seed),
	}
	w.nextGenome.Store(1)
	w.refreshInfo()
	return w, nil
}

// Update advances the world by one tick: every bot registered at the start
// of the tick takes a turn, newborns join the registry, and the dead are
// removed.
func (w *World) Update() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	newborn, err := w.sched.run(w, w.bots)
	w.bots = append(w.bots, newborn...)

	live := w.bots[:0]
	for _, e := range w.bots {
		if e.bot.IsAlive() {
			live = append(live, e)
			continue
		}
		if c := w.grid.At(e.pos); c.bot == e.bot {
			c.bot = nil
		}
	}
	for i := len(live); i < len(w.bots); i++ {
		w.bots[i] = nil
	}
	w.bots = live

	w.refreshInfo()
	w.tick++
	return err
}

// turn runs one bot. A panic inside the VM kills the bot instead of the
// process.
func (w *World) turn(e *entry, newborn *[]*entry) (err error) {
	if !e.bot.IsAlive() {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			e.bot.Kill()
			err = fmt.Errorf("%w at %v: %v", ErrBotFault, e.pos, r)
		}
	}()

	acc := accessor{w: w, self: e, newborn: newborn}
	e.bot.Update(&acc, &w.rules)
	return nil
}

// Spawn decodes genome text and places a fresh bot at pos with a new colony
// and genome id.
func (w *World) Spawn(pos types.Pos, text string) error {
	g, err := genome.Decode(0, text)
	if err != nil {
		return err
	}
	return w.SpawnGenome(pos, g)
}

// SpawnGenome places a fresh bot running g's code at pos. The bot receives a
// new colony id and a new genome id.
func (w *World) SpawnGenome(pos types.Pos, g *genome.Genome) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !pos.In(w.grid.w, w.grid.h) {
		return fmt.Errorf("%w: %v", ErrOutOfBounds, pos)
	}
	c := w.grid.At(pos)
	if c.bot != nil {
		return fmt.Errorf("%w: %v", ErrCellOccupied, pos)
	}

	g = g.WithID(w.nextGenome.Add(1) - 1)
	b := bot.New(w.nextColony.Add(1)-1, g, w.rules.StartEnergy)
	c.bot = b
	w.bots = append(w.bots, &entry{pos: pos, bot: b})
	w.refreshInfo()
	return nil
}

// BotInfo snapshots the bot at pos.
func (w *World) BotInfo(pos types.Pos) (bot.Info, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !pos.In(w.grid.w, w.grid.h) {
		return bot.Info{}, fmt.Errorf("%w: %v", ErrOutOfBounds, pos)
	}
	b := w.grid.At(pos).bot
	if b == nil {
		return bot.Info{}, fmt.Errorf("%w: %v", ErrNoBot, pos)
	}
	return b.Info(), nil
}

// Cell returns a copy of the cell at pos.
func (w *World) Cell(pos types.Pos) (Cell, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !pos.In(w.grid.w, w.grid.h) {
		return Cell{}, fmt.Errorf("%w: %v", ErrOutOfBounds, pos)
	}
	return *w.grid.At(pos), nil
}

// ForEachCell calls fn for every cell in row-major order. fn must not retain
// c or call back into w.
func (w *World) ForEachCell(fn func(pos types.Pos, c *Cell)) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for y := 0; y < w.grid.h; y++ {
		for x := 0; x < w.grid.w; x++ {
			fn(types.Pos{X: x, Y: y}, &w.grid.cells[y*w.grid.w+x])
		}
	}
}

// ForEachBot calls fn for every registered bot in registry order. fn must
// not mutate b or call back into w.
func (w *World) ForEachBot(fn func(pos types.Pos, b *bot.Bot)) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, e := range w.bots {
		fn(e.pos, e.bot)
	}
}

// Info returns the aggregate computed at the end of the last tick.
func (w *World) Info() Info {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.info
}

// Tick returns the number of completed ticks.
func (w *World) Tick() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tick
}

// Population returns the number of registered bots.
func (w *World) Population() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.bots)
}

// Rules returns the world's rules.
func (w *World) Rules() bot.Rules {
	return w.rules
}

func (w *World) refreshInfo() {
	info := Info{
		Height:     w.grid.h,
		Width:      w.grid.w,
		MaxSun:     w.grid.maxSun,
		MaxMineral: w.grid.maxMineral,
	}
	for i, e := range w.bots {
		age, energy := e.bot.Age(), e.bot.Energy()
		if i == 0 {
			info.MinAge, info.MaxAge = age, age
			info.MinEnergy, info.MaxEnergy = energy, energy
			continue
		}
		info.MinAge = min(info.MinAge, age)
		info.MaxAge = max(info.MaxAge, age)
		info.MinEnergy = min(info.MinEnergy, energy)
		info.MaxEnergy = max(info.MaxEnergy, energy)
	}
	w.info = info
}

// lockedRand serializes access to a seeded source so concurrent schedulers
// can share it.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

var _ isa.Rand = (*lockedRand)(nil)

func newLockedRand(seed int64) *lockedRand {
	return &lockedRand{rng: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

func (r *lockedRand) Int63n(n int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Int63n(n)
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}
