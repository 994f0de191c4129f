package geometry

import "math"

// Direction is the dominant axis and sense of a swipe.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// rotatedDirection follows the same quarter turn as RotateZone: x becomes y
// and y becomes the mirrored x.
var rotatedDirection = map[Direction]Direction{
	Right: Up,
	Left:  Down,
	Down:  Right,
	Up:    Left,
}

// ClassifySwipe buckets a swipe into one of four directions using the axis of
// larger magnitude, and reports whether it moved more than 0.3 of that axis.
func ClassifySwipe(from, to Ratio) (Direction, bool) {
	dx := to.X - from.X
	dy := to.Y - from.Y

	if math.Abs(dx) >= math.Abs(dy) {
		if dx > 0 {
			return Right, math.Abs(dx) > strongSwipe
		}
		return Left, math.Abs(dx) > strongSwipe
	}

	if dy > 0 {
		return Down, math.Abs(dy) > strongSwipe
	}
	return Up, math.Abs(dy) > strongSwipe
}

// RotateDirection converts a primary direction into the target's axes.
func RotateDirection(d Direction, orientationMismatch bool) Direction {
	if !orientationMismatch {
		return d
	}
	return rotatedDirection[d]
}

// Horizontal reports whether the direction moves along the x axis.
func (d Direction) Horizontal() bool {
	return d == Left || d == Right
}
