package models

import "fmt"

// Point is a pixel coordinate in an axial slice.
type Point struct {
	X, Y int
}

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Box is an axis-aligned rectangle with X1 <= X2 and Y1 <= Y2.
type Box struct {
	X1, Y1, X2, Y2 int
}

// NormalizeBox builds a Box from two opposite corners given in any order.
func NormalizeBox(a, b Point) Box {
	box := Box{X1: a.X, Y1: a.Y, X2: b.X, Y2: b.Y}
	if box.X1 > box.X2 {
		box.X1, box.X2 = box.X2, box.X1
	}
	if box.Y1 > box.Y2 {
		box.Y1, box.Y2 = box.Y2, box.Y1
	}
	return box
}

// Width and Height return the box's extent along each axis.
func (b Box) Width() int  { return b.X2 - b.X1 }
func (b Box) Height() int { return b.Y2 - b.Y1 }
