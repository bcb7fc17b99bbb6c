// Package cursor tracks the current slice index of each plane.
package cursor

import (
	"math"
	"sync"

	"dicomreslice/internal/models"
)

// Observer is notified after a plane's index changes.
type Observer func(plane models.Plane, index int)

// Cursors holds one clamped slice index per plane.
type Cursors struct {
	mu        sync.Mutex
	extents   [3]int
	index     [3]int
	observers []Observer
}

// New returns cursors for planes with the given extents (D, H, W order
// matching axial, sagittal, coronal). Every cursor starts at 0.
func New(axial, sagittal, coronal int) *Cursors {
	return &Cursors{extents: [3]int{axial, sagittal, coronal}}
}

// ForVolume returns cursors sized to vol's three plane extents.
func ForVolume(vol *models.Volume) *Cursors {
	return New(vol.Depth, vol.Height, vol.Width)
}

// Subscribe registers fn to be called on every index change.
func (c *Cursors) Subscribe(fn Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Extent returns the number of slices in plane.
func (c *Cursors) Extent(plane models.Plane) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.extents[plane]
}

// Current returns plane's index.
func (c *Cursors) Current(plane models.Plane) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index[plane]
}

// SetIndex moves plane to i, clamped to [0, extent-1], and returns the
// resulting index.
func (c *Cursors) SetIndex(plane models.Plane, i int) int {
	return c.move(plane, func(int) int { return i })
}

// Step moves plane by delta. At either end it stays put; there is no
// wraparound.
func (c *Cursors) Step(plane models.Plane, delta int) int {
	return c.move(plane, func(cur int) int { return addSaturating(cur, delta) })
}

// addSaturating is a + b pinned to the int range instead of wrapping.
func addSaturating(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	}
	return a + b
}

func (c *Cursors) move(plane models.Plane, target func(cur int) int) int {
	c.mu.Lock()
	cur := c.index[plane]
	next := clamp(target(cur), c.extents[plane])
	if next == cur {
		c.mu.Unlock()
		return cur
	}
	c.index[plane] = next
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()

	// notify outside the lock so observers may read the cursors
	for _, fn := range observers {
		fn(plane, next)
	}
	return next
}

func clamp(i, extent int) int {
	if extent <= 0 || i < 0 {
		return 0
	}
	if i >= extent {
		return extent - 1
	}
	return i
}
