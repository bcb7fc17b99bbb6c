// Package reslice derives the sagittal and coronal planes from an axial
// volume by axis permutation. No voxel is interpolated or resampled: every
// slice of every plane is a re-indexing of the canonical volume storage.
package reslice

import (
	"errors"
	"fmt"
	"image"

	"dicomreslice/internal/models"
)

// ErrSliceOutOfRange is returned when a slice index is outside a plane's extent.
var ErrSliceOutOfRange = errors.New("slice index out of range")

// View is a lazily evaluated plane over a volume. It owns no voxel data.
type View struct {
	vol   *models.Volume
	plane models.Plane
}

// NewView returns the view of vol along plane.
func NewView(vol *models.Volume, plane models.Plane) View {
	return View{vol: vol, plane: plane}
}

// Views returns the axial, sagittal and coronal views of vol, indexed by plane.
func Views(vol *models.Volume) [3]View {
	return [3]View{
		models.Axial:    NewView(vol, models.Axial),
		models.Sagittal: NewView(vol, models.Sagittal),
		models.Coronal:  NewView(vol, models.Coronal),
	}
}

// Plane returns the plane this view represents.
func (v View) Plane() models.Plane { return v.plane }

// Volume returns the backing volume.
func (v View) Volume() *models.Volume { return v.vol }

// Extent is the number of slices along the plane: D, H or W.
func (v View) Extent() int {
	switch v.plane {
	case models.Sagittal:
		return v.vol.Height
	case models.Coronal:
		return v.vol.Width
	default:
		return v.vol.Depth
	}
}

// Shape returns the rows and columns of each slice:
// axial (H, W), sagittal (D, W), coronal (H, D).
func (v View) Shape() (rows, cols int) {
	switch v.plane {
	case models.Sagittal:
		return v.vol.Depth, v.vol.Width
	case models.Coronal:
		return v.vol.Height, v.vol.Depth
	default:
		return v.vol.Height, v.vol.Width
	}
}

// VoxelAt maps (slice, row, col) in plane p to the canonical (z, y, x).
//
//	axial    (D,H,W): slice=z row=y col=x
//	sagittal (H,D,W): slice=y row=z col=x
//	coronal  (W,H,D): slice=x row=y col=z
func VoxelAt(p models.Plane, slice, row, col int) (z, y, x int) {
	switch p {
	case models.Sagittal:
		return row, slice, col
	case models.Coronal:
		return col, row, slice
	default:
		return slice, row, col
	}
}

// At returns the sample at (slice, row, col) of this view.
func (v View) At(slice, row, col int) uint8 {
	z, y, x := VoxelAt(v.plane, slice, row, col)
	return v.vol.At(z, y, x)
}

// Slice materializes slice i as an 8-bit grayscale image with Dx() = cols
// and Dy() = rows. Sample values are copied exactly.
func (v View) Slice(i int) (*image.Gray, error) {
	if i < 0 || i >= v.Extent() {
		return nil, fmt.Errorf("%w: %s slice %d (extent %d)", ErrSliceOutOfRange, v.plane, i, v.Extent())
	}

	rows, cols := v.Shape()
	img := image.NewGray(image.Rect(0, 0, cols, rows))

	if v.plane == models.Axial {
		// rows of an axial slice are contiguous in the volume
		copy(img.Pix, v.vol.AxialSlice(i))
		return img, nil
	}

	for r := 0; r < rows; r++ {
		line := img.Pix[r*img.Stride : r*img.Stride+cols]
		for c := range line {
			z, y, x := VoxelAt(v.plane, i, r, c)
			line[c] = v.vol.Data[v.vol.Index(z, y, x)]
		}
	}
	return img, nil
}
