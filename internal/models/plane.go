package models

import (
	"fmt"
	"strings"
)

// Plane identifies one of the three orthogonal views over a volume
type Plane int

const (
	// Axial is the identity permutation (D, H, W): D slices of H x W.
	Axial Plane = iota
	// Sagittal is the permutation (H, D, W): H slices of D x W.
	Sagittal
	// Coronal is the permutation (W, H, D): W slices of H x D.
	Coronal
)

// Planes lists every plane in display order.
var Planes = []Plane{Axial, Sagittal, Coronal}

func (p Plane) String() string {
	switch p {
	case Axial:
		return "axial"
	case Sagittal:
		return "sagittal"
	case Coronal:
		return "coronal"
	default:
		return fmt.Sprintf("plane(%d)", int(p))
	}
}

// Valid reports whether p is one of the three known planes.
func (p Plane) Valid() bool {
	return p >= Axial && p <= Coronal
}

// ParsePlane accepts a plane name ("axial", "sagittal", "coronal") or the
// dvid-style shape names "xy", "xz" and "yz".
func ParsePlane(s string) (Plane, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "axial", "xy", "z":
		return Axial, nil
	case "sagittal", "xz", "y":
		return Sagittal, nil
	case "coronal", "yz", "x":
		return Coronal, nil
	}
	return 0, fmt.Errorf("invalid plane: %q (must be axial, sagittal or coronal)", s)
}
