package world

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/fortiblox/torland/pkg/bot"
	"github.com/fortiblox/torland/pkg/voronoi"
)

// Type selects how resources are laid out.
type Type string

const (
	// TypeUniform gives every cell the maximum levels.
	TypeUniform Type = "Uniform"

	// TypeLinear fades sun from the top row down and minerals from the
	// bottom row up.
	TypeLinear Type = "Linear"

	// TypeClustered assigns random levels per Voronoi region.
	TypeClustered Type = "Clustered"
)

// FileConfig is the JSON world description.
type FileConfig struct {
	SunMaxLvl     int64     `json:"sun_max_lvl"`
	MineralMaxLvl int64     `json:"mineral_max_lvl"`
	Height        int       `json:"height"`
	Width         int       `json:"width"`
	WorldType     Type      `json:"world_type"`
	ClusterCnt    int       `json:"cluster_cnt"`
	Seed          int64     `json:"seed"`
	Strategy      Strategy  `json:"strategy"`
	Rules         bot.Rules `json:"rules"`

	// LegacyType is the historical spelling of world_type.
	LegacyType Type `json:"word_type,omitempty"`
}

// DefaultFileConfig returns the stock 200x200 clustered world.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		SunMaxLvl:     10,
		MineralMaxLvl: 10,
		Height:        200,
		Width:         200,
		WorldType:     TypeClustered,
		ClusterCnt:    20,
		Seed:          1,
		Strategy:      StrategySequential,
		Rules:         bot.DefaultRules(),
	}
}

// LoadConfig reads a JSON world description from path.
func LoadConfig(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read world config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a JSON world description. Fields that are absent keep
// their defaults, including individual rule fields.
func ParseConfig(data []byte) (FileConfig, error) {
	cfg := DefaultFileConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.LegacyType != "" {
		cfg.WorldType = cfg.LegacyType
		cfg.LegacyType = ""
	}
	return cfg, nil
}

// Save writes the description to path as indented JSON.
func (fc FileConfig) Save(path string) error {
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode world config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write world config: %w", err)
	}
	return nil
}

// Build turns the description into a world Config.
func (fc FileConfig) Build() (Config, error) {
	if fc.Height <= 0 || fc.Width <= 0 {
		return Config{}, fmt.Errorf("%w: dimensions must be positive, got %dx%d", ErrInvalidConfig, fc.Width, fc.Height)
	}
	if fc.SunMaxLvl < 0 || fc.MineralMaxLvl < 0 {
		return Config{}, fmt.Errorf("%w: resource levels must not be negative", ErrInvalidConfig)
	}

	cfg := Config{
		Height:   fc.Height,
		Width:    fc.Width,
		Rules:    fc.Rules,
		Seed:     fc.Seed,
		Strategy: fc.Strategy,
	}

	h := int64(fc.Height)
	switch fc.WorldType {
	case TypeUniform:
		cfg.Sun = func(int, int) int64 { return fc.SunMaxLvl }
		cfg.Mineral = func(int, int) int64 { return fc.MineralMaxLvl }

	case TypeLinear:
		cfg.Sun = func(_, y int) int64 { return (h - int64(y)) * fc.SunMaxLvl / h }
		cfg.Mineral = func(_, y int) int64 { return int64(y) * fc.MineralMaxLvl / h }

	case TypeClustered:
		if fc.ClusterCnt <= 0 {
			return Config{}, fmt.Errorf("%w: cluster_cnt must be positive", ErrInvalidConfig)
		}
		rng := rand.New(rand.NewSource(fc.Seed))
		diagram := voronoi.New(rng, fc.Width, fc.Height, fc.ClusterCnt)
		levels := make([][2]int64, fc.ClusterCnt)
		for i := range levels {
			levels[i][0] = rng.Int63n(fc.SunMaxLvl + 1)
			levels[i][1] = rng.Int63n(fc.MineralMaxLvl + 1)
		}
		cfg.Sun = func(x, y int) int64 { return levels[diagram.Nearest(x, y)][0] }
		cfg.Mineral = func(x, y int) int64 { return levels[diagram.Nearest(x, y)][1] }

	default:
		return Config{}, fmt.Errorf("%w: unknown world type %q", ErrInvalidConfig, fc.WorldType)
	}

	return cfg, nil
}
