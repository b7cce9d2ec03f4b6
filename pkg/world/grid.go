package world

import (
	"github.com/fortiblox/torland/internal/types"
	"github.com/fortiblox/torland/pkg/bot"
)

// CellFunc yields a resource level for a cell.
type CellFunc func(x, y int) int64

// Cell holds static resource levels and at most one occupant.
type Cell struct {
	Sun     int64
	Mineral int64
	bot     *bot.Bot
}

// Bot returns the occupant, or nil.
func (c *Cell) Bot() *bot.Bot { return c.bot }

// Occupied reports whether a bot, live or not yet removed, is in the cell.
func (c *Cell) Occupied() bool { return c.bot != nil }

// Grid is a toroidal row-major array of cells.
type Grid struct {
	w, h  int
	cells []Cell

	maxSun     int64
	maxMineral int64
}

func newGrid(w, h int, sun, mineral CellFunc) *Grid {
	g := &Grid{w: w, h: h, cells: make([]Cell, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := &g.cells[y*w+x]
			c.Sun = sun(x, y)
			c.Mineral = mineral(x, y)
			if c.Sun > g.maxSun {
				g.maxSun = c.Sun
			}
			if c.Mineral > g.maxMineral {
				g.maxMineral = c.Mineral
			}
		}
	}
	return g
}

func (g *Grid) Width() int  { return g.w }
func (g *Grid) Height() int { return g.h }

// At returns the cell at p, wrapping coordinates onto the torus.
func (g *Grid) At(p types.Pos) *Cell {
	x := types.Wrap(p.X, g.w)
	y := types.Wrap(p.Y, g.h)
	return &g.cells[y*g.w+x]
}

// Neighbor returns the position one step from p.
func (g *Grid) Neighbor(p types.Pos, d types.Direction) types.Pos {
	return p.Step(d, g.w, g.h)
}

func zero(int, int) int64 { return 0 }
