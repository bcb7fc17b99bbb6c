package reslice

import (
	"errors"
	"testing"

	"dicomreslice/internal/models"
)

// patternedVolume fills every voxel with a value unique modulo 256 for small
// volumes.
func patternedVolume(d, h, w int) *models.Volume {
	vol := models.NewVolume(d, h, w)
	for i := range vol.Data {
		vol.Data[i] = uint8(i*7 + 3)
	}
	return vol
}

func TestViewExtentsAndShapes(t *testing.T) {
	d, h, w := 4, 5, 6
	views := Views(patternedVolume(d, h, w))

	tests := []struct {
		plane      models.Plane
		extent     int
		rows, cols int
	}{
		{models.Axial, d, h, w},
		{models.Sagittal, h, d, w},
		{models.Coronal, w, h, d},
	}

	for _, tt := range tests {
		v := views[tt.plane]
		if v.Plane() != tt.plane {
			t.Errorf("Views()[%v] has plane %v", tt.plane, v.Plane())
		}
		if v.Extent() != tt.extent {
			t.Errorf("%v: expected extent %d, got %d", tt.plane, tt.extent, v.Extent())
		}
		rows, cols := v.Shape()
		if rows != tt.rows || cols != tt.cols {
			t.Errorf("%v: expected shape %dx%d, got %dx%d", tt.plane, tt.rows, tt.cols, rows, cols)
		}

		for i := 0; i < v.Extent(); i++ {
			img, err := v.Slice(i)
			if err != nil {
				t.Fatalf("%v slice %d: %v", tt.plane, i, err)
			}
			if img.Bounds().Dy() != tt.rows || img.Bounds().Dx() != tt.cols {
				t.Errorf("%v slice %d: expected image %dx%d, got %dx%d",
					tt.plane, i, tt.cols, tt.rows, img.Bounds().Dx(), img.Bounds().Dy())
			}
		}
	}
}

func TestPermutationRoundTrip(t *testing.T) {
	d, h, w := 3, 4, 5
	vol := patternedVolume(d, h, w)
	views := Views(vol)

	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				want := vol.At(z, y, x)

				if got := views[models.Axial].At(z, y, x); got != want {
					t.Errorf("axial[%d][%d][%d] = %d, want %d", z, y, x, got, want)
				}
				// sagittal = transpose (1,0,2)
				if got := views[models.Sagittal].At(y, z, x); got != want {
					t.Errorf("sagittal[%d][%d][%d] = %d, want %d", y, z, x, got, want)
				}
				// coronal = transpose (2,1,0)
				if got := views[models.Coronal].At(x, y, z); got != want {
					t.Errorf("coronal[%d][%d][%d] = %d, want %d", x, y, z, got, want)
				}
			}
		}
	}
}

func TestSliceMatchesAt(t *testing.T) {
	vol := patternedVolume(3, 4, 5)
	for _, v := range Views(vol) {
		rows, cols := v.Shape()
		for i := 0; i < v.Extent(); i++ {
			img, err := v.Slice(i)
			if err != nil {
				t.Fatalf("Slice failed: %v", err)
			}
			for r := 0; r < rows; r++ {
				for c := 0; c < cols; c++ {
					if got, want := img.GrayAt(c, r).Y, v.At(i, r, c); got != want {
						t.Fatalf("%v slice %d (%d,%d): image %d, view %d", v.Plane(), i, r, c, got, want)
					}
				}
			}
		}
	}
}

func TestSliceIsACopy(t *testing.T) {
	vol := patternedVolume(2, 2, 2)
	img, err := NewView(vol, models.Axial).Slice(0)
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	before := vol.Data[0]
	img.Pix[0] = before + 1
	if vol.Data[0] != before {
		t.Error("Writing to a materialized slice changed the volume")
	}
}

func TestSliceOutOfRange(t *testing.T) {
	v := NewView(patternedVolume(2, 3, 4), models.Coronal)
	for _, i := range []int{-1, 4} {
		if _, err := v.Slice(i); !errors.Is(err, ErrSliceOutOfRange) {
			t.Errorf("Slice(%d): expected ErrSliceOutOfRange, got %v", i, err)
		}
	}
}

func TestCache(t *testing.T) {
	vol := patternedVolume(3, 4, 5)
	cache, err := NewCache(vol, 2)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	first, err := cache.Slice(models.Sagittal, 1)
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	again, _ := cache.Slice(models.Sagittal, 1)
	if first != again {
		t.Error("Expected the cached image on a hit")
	}

	cache.Slice(models.Axial, 0)
	cache.Slice(models.Coronal, 2)
	if cache.Len() != 2 {
		t.Errorf("Expected 2 cached slices, got %d", cache.Len())
	}

	if _, err := cache.Slice(models.Axial, 9); !errors.Is(err, ErrSliceOutOfRange) {
		t.Errorf("Expected ErrSliceOutOfRange, got %v", err)
	}

	if _, err := NewCache(vol, 0); err == nil {
		t.Error("Expected error for zero cache size")
	}
}
