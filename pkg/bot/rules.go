package bot

import (
	"errors"
	"fmt"

	"github.com/fortiblox/torland/pkg/isa"
)

// ErrInvalidRules is returned by Rules.Validate.
var ErrInvalidRules = errors.New("invalid rules")

// Rules holds the tunable constants of the simulation. Field names in JSON
// match the world configuration file.
type Rules struct {
	// MaxCommandsPerCycle is the instruction budget per bot per tick.
	MaxCommandsPerCycle int `json:"max_commands_per_cycle"`

	// EnergyForSplit is debited by every Split and Fork and handed to the child.
	EnergyForSplit int64 `json:"energy_for_split"`

	// EnergyPerMineral is the yield of one mineral unit on Absorb.
	EnergyPerMineral int64 `json:"energy_per_mineral"`

	// EnergyPerStep is the flat upkeep charged every tick.
	EnergyPerStep int64 `json:"energy_per_step"`

	// AgePerEnergyPenalty adds one unit of upkeep per this many ticks of age.
	AgePerEnergyPenalty int64 `json:"age_per_energy_penalty"`

	// StartEnergy is given to bots placed by World.Spawn.
	StartEnergy int64 `json:"start_energy"`

	// MaxEnergy caps a bot's energy after upkeep.
	MaxEnergy int64 `json:"max_energy"`

	// OnBiteEnergyDelimiter divides the victim's energy on a successful bite.
	OnBiteEnergyDelimiter int64 `json:"on_bite_energy_delimiter"`

	// MaxRandomValue bounds random immediates and is the overflow sentinel.
	MaxRandomValue int64 `json:"max_random_value"`

	// MutationVer is the probability that a Fork mutates the child's genome.
	MutationVer float64 `json:"mutation_ver"`

	EnergyPerSun          int64 `json:"energy_per_sun"`
	EnergyPerSunFreeBoost int64 `json:"energy_per_sun_free_boost"`
	EnergyPerSunBroBoost  int64 `json:"energy_per_sun_bro_boost"`
	EnergyPerSunOthBoost  int64 `json:"energy_per_sun_oth_boost"`
}

// DefaultRules returns the stock tuning.
func DefaultRules() Rules {
	return Rules{
		MaxCommandsPerCycle:   10,
		EnergyForSplit:        1000,
		EnergyPerMineral:      10,
		EnergyPerStep:         50,
		AgePerEnergyPenalty:   100,
		StartEnergy:           100,
		MaxEnergy:             10000,
		OnBiteEnergyDelimiter: 10,
		MaxRandomValue:        10000,
		MutationVer:           0.1,
		EnergyPerSun:          10,
		EnergyPerSunFreeBoost: 5,
		EnergyPerSunBroBoost:  10,
		EnergyPerSunOthBoost:  -2,
	}
}

// Validate checks the invariants the VM relies on.
func (r *Rules) Validate() error {
	if r.MaxCommandsPerCycle <= 0 {
		return fmt.Errorf("%w: max_commands_per_cycle must be positive", ErrInvalidRules)
	}
	if r.EnergyForSplit < 0 {
		return fmt.Errorf("%w: energy_for_split must not be negative", ErrInvalidRules)
	}
	if r.MaxEnergy <= 0 {
		return fmt.Errorf("%w: max_energy must be positive", ErrInvalidRules)
	}
	if r.OnBiteEnergyDelimiter <= 0 {
		return fmt.Errorf("%w: on_bite_energy_delimiter must be positive", ErrInvalidRules)
	}
	if r.MaxRandomValue < 0 || r.MaxRandomValue > isa.MaxValueLimit {
		return fmt.Errorf("%w: max_random_value must be within [0, %d]", ErrInvalidRules, int64(isa.MaxValueLimit))
	}
	if r.MutationVer < 0 || r.MutationVer > 1 {
		return fmt.Errorf("%w: mutation_ver must be within [0, 1]", ErrInvalidRules)
	}
	return nil
}

func (r *Rules) upkeep(age int64) int64 {
	cost := r.EnergyPerStep
	if r.AgePerEnergyPenalty > 0 {
		cost += age / r.AgePerEnergyPenalty
	}
	return cost
}

func (r *Rules) biteShare(energy int64) int64 {
	if r.OnBiteEnergyDelimiter <= 0 {
		return energy
	}
	return energy / r.OnBiteEnergyDelimiter
}
