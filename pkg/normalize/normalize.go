// Package normalize rescales raw intensity grids to the 8-bit display range.
package normalize

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateFrame is returned for a grid whose samples are all equal,
// where the min-max stretch would divide by zero.
var ErrDegenerateFrame = errors.New("degenerate frame: zero intensity range")

// Policy selects how constant-valued grids are handled
type Policy int

const (
	// PolicyError reports ErrDegenerateFrame.
	PolicyError Policy = iota
	// PolicyZero maps every sample to 0.
	PolicyZero
)

func (p Policy) String() string {
	switch p {
	case PolicyError:
		return "error"
	case PolicyZero:
		return "zero"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy converts a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "error":
		return PolicyError, nil
	case "zero":
		return PolicyZero, nil
	}
	return 0, fmt.Errorf("invalid degenerate frame policy: %q (must be error or zero)", s)
}

// Normalizer applies a single min-max stretch per grid.
type Normalizer struct {
	OnDegenerate Policy
}

// Normalize maps every sample v to round((v-min)/(max-min)*255), clamped to
// [0,255]. The result is row-major, rows*cols long.
func (n Normalizer) Normalize(grid mat.Matrix) ([]uint8, error) {
	if grid == nil {
		return nil, ErrDegenerateFrame
	}
	rows, cols := grid.Dims()
	if rows == 0 || cols == 0 {
		return nil, ErrDegenerateFrame
	}

	out := make([]uint8, rows*cols)
	lo, hi := mat.Min(grid), mat.Max(grid)
	if hi == lo || math.IsNaN(hi-lo) {
		if n.OnDegenerate == PolicyZero {
			return out, nil
		}
		return nil, fmt.Errorf("%w (all samples %g)", ErrDegenerateFrame, lo)
	}

	scale := 255 / (hi - lo)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := math.Round((grid.At(y, x) - lo) * scale)
			out[y*cols+x] = uint8(math.Max(0, math.Min(255, v)))
		}
	}
	return out, nil
}

// Normalize is shorthand for a strict Normalizer.
func Normalize(grid mat.Matrix) ([]uint8, error) {
	return Normalizer{}.Normalize(grid)
}
