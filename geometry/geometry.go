// Package geometry converts positions on the primary device surface into
// positions on secondary surfaces of a different size or orientation.
//
// All cross-device reasoning happens on ratios in [0,1] rather than pixels.
// When both surfaces share an orientation the ratio is scaled linearly. When
// they differ the ratio is reduced to one of nine zones, the zone is rotated a
// quarter turn and the centre of the rotated zone is used instead.
package geometry

import (
	"math"
	"math/rand/v2"

	"github.com/mobile-next/mobilesync/types"
)

const (
	// zone thresholds on either axis
	zoneLow  = 0.33
	zoneHigh = 0.66

	// a swipe covering more than this share of the axis is "strong"
	strongSwipe = 0.3

	// share of the target axis travelled by a rotated swipe
	strongSwipeSpan = 0.5
	weakSwipeSpan   = 0.25
)

// Ratio is a position expressed as a fraction of the surface width and height.
type Ratio struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rand is the randomness source used for jitter.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int {
	return rand.IntN(n)
}

// Normalize turns a pixel position into a ratio of the given surface, clamped to [0,1].
func Normalize(p types.Point, size types.Size) Ratio {
	if !size.Valid() {
		return Ratio{}
	}
	return Ratio{
		X: clampRatio(float64(p.X) / float64(size.Width)),
		Y: clampRatio(float64(p.Y) / float64(size.Height)),
	}
}

func clampRatio(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Clamp keeps a coordinate inside [1, dimension-1].
func Clamp(v, dimension int) int {
	upper := dimension - 1
	if upper < 1 {
		return 1
	}
	if v < 1 {
		return 1
	}
	if v > upper {
		return upper
	}
	return v
}

// Zone is a cell of the 3x3 grid laid over a surface.
type Zone struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

func bucket(v float64) int {
	switch {
	case v < zoneLow:
		return 0
	case v < zoneHigh:
		return 1
	default:
		return 2
	}
}

// ZoneOf returns the grid cell containing the ratio.
func ZoneOf(r Ratio) Zone {
	return Zone{Col: bucket(r.X), Row: bucket(r.Y)}
}

// RotateZone turns a zone a quarter turn to compensate for an orientation
// flip: row and column are swapped and the row axis is mirrored.
func RotateZone(z Zone) Zone {
	return Zone{Col: z.Row, Row: 2 - z.Col}
}

// ZoneCenter is the centre pixel of the zone on a surface of the given size.
func ZoneCenter(z Zone, size types.Size) types.Point {
	return types.Point{
		X: int((float64(z.Col) + 0.5) * float64(size.Width) / 3),
		Y: int((float64(z.Row) + 0.5) * float64(size.Height) / 3),
	}
}

// Mapper maps primary ratios onto secondary geometries, adding jitter so
// retries and neighbouring devices never get bit-identical coordinates.
type Mapper struct {
	rng         Rand
	tapJitter   int
	swipeJitter int
}

// NewMapper creates a mapper. A nil rng uses the process-wide source.
func NewMapper(rng Rand, tapJitter, swipeJitter int) *Mapper {
	if rng == nil {
		rng = globalRand{}
	}
	return &Mapper{
		rng:         rng,
		tapJitter:   tapJitter,
		swipeJitter: swipeJitter,
	}
}

// MapPoint maps a tap or long-press position.
func (m *Mapper) MapPoint(r Ratio, primary types.Orientation, target types.Geometry) types.Point {
	var p types.Point
	if primary == target.Orientation {
		p = scale(r, target.Size)
	} else {
		p = ZoneCenter(RotateZone(ZoneOf(r)), target.Size)
	}
	return m.finish(p, target.Size, m.tapJitter)
}

// MapSwipe maps both ends of a swipe. With matching orientations both ends are
// scaled. Otherwise the swipe is rebuilt as a directional swipe on the
// target's own axes, starting from the rotated zone of the origin.
func (m *Mapper) MapSwipe(from, to Ratio, primary types.Orientation, target types.Geometry) (types.Point, types.Point) {
	if primary == target.Orientation {
		return m.finish(scale(from, target.Size), target.Size, m.swipeJitter),
			m.finish(scale(to, target.Size), target.Size, m.swipeJitter)
	}

	dir, strong := ClassifySwipe(from, to)
	dir = RotateDirection(dir, true)

	span := weakSwipeSpan
	if strong {
		span = strongSwipeSpan
	}

	start := ZoneCenter(RotateZone(ZoneOf(from)), target.Size)
	end := start
	switch dir {
	case Up:
		end.Y -= int(span * float64(target.Height))
	case Down:
		end.Y += int(span * float64(target.Height))
	case Left:
		end.X -= int(span * float64(target.Width))
	case Right:
		end.X += int(span * float64(target.Width))
	}

	return m.finish(start, target.Size, m.swipeJitter), m.finish(end, target.Size, m.swipeJitter)
}

func scale(r Ratio, size types.Size) types.Point {
	return types.Point{
		X: int(math.Round(r.X * float64(size.Width))),
		Y: int(math.Round(r.Y * float64(size.Height))),
	}
}

func (m *Mapper) finish(p types.Point, size types.Size, jitter int) types.Point {
	return types.Point{
		X: Clamp(p.X+m.jitter(jitter), size.Width),
		Y: Clamp(p.Y+m.jitter(jitter), size.Height),
	}
}

// jitter returns a value in [-max, max]
func (m *Mapper) jitter(max int) int {
	if max <= 0 {
		return 0
	}
	return m.rng.IntN(2*max+1) - max
}
