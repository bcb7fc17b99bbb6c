package annotation

import (
	"fmt"
	"strings"
)

// DrawingMode selects how a pointer gesture is interpreted.
type DrawingMode int

const (
	// ModePoints adds a point on pointer down.
	ModePoints DrawingMode = iota
	// ModeBox draws a box from pointer down to pointer up.
	ModeBox
)

func (m DrawingMode) String() string {
	switch m {
	case ModePoints:
		return "points"
	case ModeBox:
		return "box"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode accepts "points"/"point" and "box"/"boxes".
func ParseMode(s string) (DrawingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "points", "point":
		return ModePoints, nil
	case "box", "boxes":
		return ModeBox, nil
	}
	return 0, fmt.Errorf("invalid drawing mode: %q (must be points or box)", s)
}
