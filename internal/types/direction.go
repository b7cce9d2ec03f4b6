package types

import (
	"errors"
	"strings"
)

// ErrInvalidDirection is returned when a direction name cannot be parsed.
var ErrInvalidDirection = errors.New("invalid direction")

// Direction is one of the eight neighbor directions, ordered clockwise.
// Directions form a cyclic group of order 8 under Add with Front as zero.
type Direction uint8

const (
	Front Direction = iota
	FrontRight
	Right
	BackRight
	Back
	BackLeft
	Left
	FrontLeft
)

// NumDirections is the number of distinct directions.
const NumDirections = 8

var directionNames = [NumDirections]string{
	"front", "frontright", "right", "backright",
	"back", "backleft", "left", "frontleft",
}

// Offsets in screen coordinates; Front points up.
var directionOffsets = [NumDirections][2]int{
	{0, -1}, {1, -1}, {1, 0}, {1, 1},
	{0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
}

// Add composes two rotations.
func (d Direction) Add(o Direction) Direction {
	return (d + o) % NumDirections
}

// Offset returns the unit grid offset of d.
func (d Direction) Offset() (dx, dy int) {
	o := directionOffsets[d%NumDirections]
	return o[0], o[1]
}

// Valid reports whether d is one of the eight directions.
func (d Direction) Valid() bool {
	return d < NumDirections
}

func (d Direction) String() string {
	if !d.Valid() {
		return "invalid"
	}
	return directionNames[d]
}

// ParseDirection parses a direction name, ignoring case.
func ParseDirection(s string) (Direction, error) {
	s = strings.ToLower(s)
	for i, name := range directionNames {
		if name == s {
			return Direction(i), nil
		}
	}
	return 0, ErrInvalidDirection
}

// Orthogonal lists the four edge-sharing directions.
var Orthogonal = [4]Direction{Front, Right, Back, Left}
