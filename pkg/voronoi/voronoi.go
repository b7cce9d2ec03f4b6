// Package voronoi partitions a toroidal grid into cells around random sites.
package voronoi

import "github.com/fortiblox/torland/internal/types"

// Source is the randomness needed to place sites.
type Source interface {
	Intn(n int) int
}

// Diagram maps grid coordinates to the nearest of a fixed set of sites.
type Diagram struct {
	w, h  int
	sites []types.Pos
}

// New places n sites uniformly on a w×h torus.
func New(rng Source, w, h, n int) *Diagram {
	d := &Diagram{w: w, h: h, sites: make([]types.Pos, n)}
	for i := range d.sites {
		d.sites[i] = types.Pos{X: rng.Intn(w), Y: rng.Intn(h)}
	}
	return d
}

// FromSites builds a diagram over explicit sites.
func FromSites(w, h int, sites []types.Pos) *Diagram {
	cp := make([]types.Pos, len(sites))
	copy(cp, sites)
	return &Diagram{w: w, h: h, sites: cp}
}

// Sites returns a copy of the site positions.
func (d *Diagram) Sites() []types.Pos {
	cp := make([]types.Pos, len(d.sites))
	copy(cp, d.sites)
	return cp
}

// Len returns the number of sites.
func (d *Diagram) Len() int { return len(d.sites) }

// Nearest returns the index of the site closest to (x, y), measuring squared
// distance with wraparound on both axes. Ties go to the lower index. It
// returns -1 for an empty diagram.
func (d *Diagram) Nearest(x, y int) int {
	best, bestDist := -1, 0
	for i, s := range d.sites {
		dist := d.dist2(x, y, s)
		if best < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

func (d *Diagram) dist2(x, y int, s types.Pos) int {
	dx := abs(x - s.X)
	if d.w-dx < dx {
		dx = d.w - dx
	}
	dy := abs(y - s.Y)
	if d.h-dy < dy {
		dy = d.h - dy
	}
	return dx*dx + dy*dy
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
