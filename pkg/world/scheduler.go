package world

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// rowSpacing is the minimum distance between rows processed at the same
// time. A turn can reach two rows away: a move followed by energy diffusion
// at the new position.
const rowSpacing = 5

type scheduler interface {
	// run gives every live bot in bots one turn and returns the newborns.
	run(w *World, bots []*entry) ([]*entry, error)
}

func newScheduler(s Strategy) (scheduler, error) {
	switch s {
	case "", StrategySequential:
		return sequential{}, nil
	case StrategyRows:
		return rows{}, nil
	}
	return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, s)
}

type sequential struct{}

func (sequential) run(w *World, bots []*entry) ([]*entry, error) {
	var newborn []*entry
	var errs []error
	for _, e := range bots {
		if err := w.turn(e, &newborn); err != nil {
			errs = append(errs, err)
		}
	}
	return newborn, errors.Join(errs...)
}

// rows buckets bots by the row they start the tick in. Rows with the same
// index mod rowSpacing run concurrently, one goroutine per row, phase by
// phase. Rows past the last full band run sequentially afterwards so the
// wraparound never brings two active rows closer than rowSpacing.
type rows struct{}

func (rows) run(w *World, bots []*entry) ([]*entry, error) {
	h := w.grid.h
	banded := h / rowSpacing * rowSpacing
	if banded < 2*rowSpacing {
		return sequential{}.run(w, bots)
	}

	byRow := make([][]*entry, h)
	for _, e := range bots {
		byRow[e.pos.Y] = append(byRow[e.pos.Y], e)
	}

	var (
		mu      sync.Mutex
		newborn []*entry
		errs    []error
	)
	runRow := func(row []*entry) {
		var local []*entry
		var localErrs []error
		for _, e := range row {
			if err := w.turn(e, &local); err != nil {
				localErrs = append(localErrs, err)
			}
		}
		mu.Lock()
		newborn = append(newborn, local...)
		errs = append(errs, localErrs...)
		mu.Unlock()
	}

	for phase := 0; phase < rowSpacing; phase++ {
		var wg sync.WaitGroup
		for y := phase; y < banded; y += rowSpacing {
			if len(byRow[y]) == 0 {
				continue
			}
			wg.Add(1)
			go func(row []*entry) {
				defer wg.Done()
				runRow(row)
			}(byRow[y])
		}
		wg.Wait()
	}
	for y := banded; y < h; y++ {
		runRow(byRow[y])
	}

	// goroutines finish in any order; give newborns a stable order
	sort.Slice(newborn, func(i, j int) bool {
		a, b := newborn[i].pos, newborn[j].pos
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return newborn, errors.Join(errs...)
}
