package types

import (
	"testing"
)

func TestDirectionGroupLaw(t *testing.T) {
	for a := Direction(0); a < NumDirections; a++ {
		if got := a.Add(Front); got != a {
			t.Errorf("%v.Add(Front) = %v, want %v", a, got, a)
		}
		for b := Direction(0); b < NumDirections; b++ {
			for c := Direction(0); c < NumDirections; c++ {
				if a.Add(b).Add(c) != a.Add(b.Add(c)) {
					t.Errorf("(%v+%v)+%v != %v+(%v+%v)", a, b, c, a, b, c)
				}
			}
		}

		sum := a
		for i := 0; i < 7; i++ {
			sum = sum.Add(a)
		}
		if sum != Front {
			t.Errorf("8*%v = %v, want front", a, sum)
		}
		// a added to itself eight more times returns to a
		again := a
		for i := 0; i < 8; i++ {
			again = again.Add(a)
		}
		if again != a {
			t.Errorf("9*%v = %v, want %v", a, again, a)
		}
	}
}

func TestDirectionOffsets(t *testing.T) {
	tests := []struct {
		d      Direction
		dx, dy int
	}{
		{Front, 0, -1},
		{FrontRight, 1, -1},
		{Right, 1, 0},
		{BackRight, 1, 1},
		{Back, 0, 1},
		{BackLeft, -1, 1},
		{Left, -1, 0},
		{FrontLeft, -1, -1},
	}

	for _, tt := range tests {
		dx, dy := tt.d.Offset()
		if dx != tt.dx || dy != tt.dy {
			t.Errorf("%v.Offset() = (%d,%d), want (%d,%d)", tt.d, dx, dy, tt.dx, tt.dy)
		}
	}

	// opposite directions cancel
	for d := Direction(0); d < NumDirections; d++ {
		dx, dy := d.Offset()
		ox, oy := d.Add(Back).Offset()
		if dx+ox != 0 || dy+oy != 0 {
			t.Errorf("%v and its opposite do not cancel", d)
		}
	}
}

func TestParseDirection(t *testing.T) {
	for d := Direction(0); d < NumDirections; d++ {
		got, err := ParseDirection(d.String())
		if err != nil {
			t.Fatalf("ParseDirection(%q) failed: %v", d.String(), err)
		}
		if got != d {
			t.Errorf("ParseDirection(%q) = %v, want %v", d.String(), got, d)
		}
	}

	if d, err := ParseDirection("FrontLeft"); err != nil || d != FrontLeft {
		t.Errorf("ParseDirection(FrontLeft) = %v, %v", d, err)
	}
	if _, err := ParseDirection("up"); err != ErrInvalidDirection {
		t.Errorf("ParseDirection(up) error = %v, want ErrInvalidDirection", err)
	}
}

func TestPosStepWraps(t *testing.T) {
	tests := []struct {
		name string
		pos  Pos
		d    Direction
		want Pos
	}{
		{"top edge", Pos{0, 0}, Front, Pos{0, 4}},
		{"left edge", Pos{0, 2}, Left, Pos{9, 2}},
		{"corner", Pos{9, 4}, BackRight, Pos{0, 0}},
		{"interior", Pos{3, 3}, FrontLeft, Pos{2, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pos.Step(tt.d, 10, 5); got != tt.want {
				t.Errorf("Step() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHashBase58(t *testing.T) {
	h := ComputeHash([]byte("torland"))
	if h.IsZero() {
		t.Fatal("ComputeHash() returned zero hash")
	}

	parsed, err := HashFromBase58(h.String())
	if err != nil {
		t.Fatalf("HashFromBase58() failed: %v", err)
	}
	if parsed != h {
		t.Errorf("HashFromBase58() = %v, want %v", parsed, h)
	}

	if _, err := HashFromBytes([]byte{1, 2, 3}); err != ErrInvalidHash {
		t.Errorf("HashFromBytes(short) error = %v, want ErrInvalidHash", err)
	}
}
