package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Frame represents a single decoded 2D scan frame with its ordering key
type Frame struct {
	// Key orders the frame within the stack (InstanceNumber for DICOM input)
	Key int

	// Grid holds the raw intensity samples, rows x columns
	Grid *mat.Dense

	// Source is the file the frame was decoded from, if any
	Source string
}

// Dims returns the row and column counts of the frame's grid
func (f Frame) Dims() (rows, cols int) {
	if f.Grid == nil {
		return 0, 0
	}
	return f.Grid.Dims()
}

// Volume represents the stack of normalized frames in axial order
type Volume struct {
	// Data is the 3D volume data as a 1D array in row-major order:
	// index = z*Height*Width + y*Width + x
	Data []uint8

	// Depth is the number of stacked frames
	Depth int

	// Height is the row count of every frame
	Height int

	// Width is the column count of every frame
	Width int
}

// NewVolume allocates a zeroed volume with the given extents.
func NewVolume(depth, height, width int) *Volume {
	return &Volume{
		Data:   make([]uint8, depth*height*width),
		Depth:  depth,
		Height: height,
		Width:  width,
	}
}

// Extents returns (D, H, W).
func (v *Volume) Extents() (depth, height, width int) {
	return v.Depth, v.Height, v.Width
}

// Len is the number of voxels.
func (v *Volume) Len() int { return len(v.Data) }

// Index maps a voxel coordinate to its offset in Data.
func (v *Volume) Index(z, y, x int) int {
	return z*v.Height*v.Width + y*v.Width + x
}

// At returns the voxel at (z, y, x). It panics on out-of-range coordinates,
// like a slice index would.
func (v *Volume) At(z, y, x int) uint8 {
	if z < 0 || z >= v.Depth || y < 0 || y >= v.Height || x < 0 || x >= v.Width {
		panic(fmt.Sprintf("models: voxel (%d,%d,%d) outside volume %dx%dx%d",
			z, y, x, v.Depth, v.Height, v.Width))
	}
	return v.Data[v.Index(z, y, x)]
}

// AxialSlice returns the backing bytes of axial slice z without copying.
func (v *Volume) AxialSlice(z int) []uint8 {
	size := v.Height * v.Width
	return v.Data[z*size : (z+1)*size]
}

// VolumeStats summarizes voxel intensities
type VolumeStats struct {
	Mean   float64
	StdDev float64
	Min    uint8
	Max    uint8
}

// Stats computes intensity statistics over every voxel.
func (v *Volume) Stats() VolumeStats {
	if len(v.Data) == 0 {
		return VolumeStats{}
	}

	values := make([]float64, len(v.Data))
	lo, hi := v.Data[0], v.Data[0]
	for i, b := range v.Data {
		values[i] = float64(b)
		if b < lo {
			lo = b
		}
		if b > hi {
			hi = b
		}
	}

	mean, std := stat.MeanStdDev(values, nil)
	return VolumeStats{Mean: mean, StdDev: std, Min: lo, Max: hi}
}
