package bot

import (
	"github.com/fortiblox/torland/internal/types"
	"github.com/fortiblox/torland/pkg/isa"
)

// Accessor is the bot's only window into the world. Directions passed to it
// are absolute; the VM adds its facing before calling.
//
// An Accessor is bound to one bot for one turn and must not be retained.
type Accessor interface {
	// Move relocates the bot one cell. It returns false if the target is
	// occupied.
	Move(d types.Direction) bool

	// Spawn places child in the neighboring cell. It returns false if the
	// target is occupied.
	Spawn(d types.Direction, child *Bot) bool

	// Kill marks the live occupant of the neighboring cell dead and returns
	// its energy. ok is false if there is no live occupant.
	Kill(d types.Direction) (energy int64, ok bool)

	Sun() int64
	Mineral() int64
	SunDiff(d types.Direction) int64
	MineralDiff(d types.Direction) int64

	// IsSameColony reports whether the neighboring cell is occupied and, if
	// so, whether its occupant belongs to colony.
	IsSameColony(d types.Direction, colony uint64) (same, occupied bool)

	NewColonyID() uint64
	NewGenomeID() uint64

	// EnergyDiffusion averages energy with the orthogonal neighbors of the
	// same colony, writes the average into them and returns it.
	EnergyDiffusion(colony uint64, energy int64) int64

	// Rand is the source for mutation decisions.
	Rand() isa.Rand
}
