package types

import "fmt"

// Orientation is the current rotation of a device screen, reduced to the two
// cases that matter for coordinate mapping.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// ParseOrientation accepts "portrait" or "landscape".
func ParseOrientation(s string) (Orientation, error) {
	switch Orientation(s) {
	case Portrait, Landscape:
		return Orientation(s), nil
	default:
		return "", fmt.Errorf("invalid orientation value '%s', must be 'portrait' or 'landscape'", s)
	}
}

// Point is a pixel position on a device surface.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Size represents width and height dimensions.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Geometry is the cached screen description of a single device.
type Geometry struct {
	Size
	Orientation Orientation `json:"orientation"`
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d %s", g.Width, g.Height, g.Orientation)
}
