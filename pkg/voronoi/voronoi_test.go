package voronoi

import (
	"math/rand"
	"testing"

	"github.com/fortiblox/torland/internal/types"
)

func TestNearestWrapsAround(t *testing.T) {
	d := FromSites(10, 10, []types.Pos{{X: 1, Y: 1}, {X: 5, Y: 5}})

	tests := []struct {
		name string
		x, y int
		want int
	}{
		{"on site 0", 1, 1, 0},
		{"on site 1", 5, 5, 1},
		{"wraps horizontally", 9, 1, 0},
		{"wraps vertically", 1, 9, 0},
		{"wraps both", 9, 9, 0},
		{"closer to center", 6, 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Nearest(tt.x, tt.y); got != tt.want {
				t.Errorf("Nearest(%d, %d) = %d, want %d", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestNearestUsesEachAxisSeparately(t *testing.T) {
	// on a wide, short torus the vertical wrap must use the height
	d := FromSites(100, 5, []types.Pos{{X: 50, Y: 0}, {X: 50, Y: 2}})
	if got := d.Nearest(50, 4); got != 0 {
		t.Errorf("Nearest(50, 4) = %d, want 0", got)
	}
}

func TestNewPlacesSitesInBounds(t *testing.T) {
	d := New(rand.New(rand.NewSource(5)), 7, 3, 20)
	if d.Len() != 20 {
		t.Fatalf("Len() = %d, want 20", d.Len())
	}
	for _, s := range d.Sites() {
		if !s.In(7, 3) {
			t.Errorf("site %v outside 7x3 grid", s)
		}
	}
	if got := New(rand.New(rand.NewSource(5)), 7, 3, 0).Nearest(1, 1); got != -1 {
		t.Errorf("empty Nearest() = %d, want -1", got)
	}
}
