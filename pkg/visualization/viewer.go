// Package visualization renders plane slices, with the annotation overlay,
// to image files.
package visualization

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"

	"dicomreslice/internal/models"
	"dicomreslice/pkg/annotation"
	"dicomreslice/pkg/reslice"
)

// Overlay is what gets drawn on top of one axial slice.
type Overlay struct {
	Points []models.Point
	Boxes  []models.Box

	// Active is an in-progress box drawn with a dashed outline.
	Active *models.Box
}

// OverlaySource returns the overlay for axial slice z, or nil.
type OverlaySource func(z int) *Overlay

// StoreOverlay serves overlays straight from an annotation store.
func StoreOverlay(s *annotation.Store) OverlaySource {
	return func(z int) *Overlay {
		return &Overlay{Points: s.PointsFor(z), Boxes: s.BoxesFor(z)}
	}
}

// Renderer draws slices of a view as RGBA images.
type Renderer struct {
	// Scale is the integer nearest-neighbour magnification (1 = native size)
	Scale int

	// PointRadius is the marker radius in output pixels
	PointRadius float64

	// Labels draws "<plane> <index>/<extent>" in the top-left corner
	Labels bool

	// Format is "png" or "jpeg" for SaveSliceSequence
	Format string

	// Cache, when set, supplies materialized slices
	Cache *reslice.Cache
}

// NewRenderer returns a renderer with native scale, 3px markers and PNG output.
func NewRenderer() *Renderer {
	return &Renderer{Scale: 1, PointRadius: 3, Format: "png"}
}

func (r *Renderer) scale() int {
	if r.Scale < 1 {
		return 1
	}
	return r.Scale
}

func (r *Renderer) slice(v reslice.View, index int) (*image.Gray, error) {
	if r.Cache != nil {
		return r.Cache.Slice(v.Plane(), index)
	}
	return v.Slice(index)
}

// Render draws slice index of v. The overlay is only honoured on the axial
// plane since annotations are keyed by axial slice.
func (r *Renderer) Render(v reslice.View, index int, ov *Overlay) (image.Image, error) {
	gray, err := r.slice(v, index)
	if err != nil {
		return nil, err
	}

	s := r.scale()
	var base image.Image = gray
	if s > 1 {
		b := gray.Bounds()
		scaled := image.NewGray(image.Rect(0, 0, b.Dx()*s, b.Dy()*s))
		xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), gray, b, xdraw.Src, nil)
		base = scaled
	}

	dc := gg.NewContextForImage(base)

	if ov != nil && v.Plane() == models.Axial {
		drawOverlay(dc, ov, float64(s), r.PointRadius)
	}

	if r.Labels {
		dc.SetFontFace(basicfont.Face7x13)
		dc.SetRGB(1, 1, 0)
		dc.DrawString(fmt.Sprintf("%s %d/%d", v.Plane(), index, v.Extent()-1), 2, 13)
	}

	return dc.Image(), nil
}

// pixel centre in output coordinates
func centre(v int, s float64) float64 {
	return (float64(v) + 0.5) * s
}

func drawOverlay(dc *gg.Context, ov *Overlay, s, radius float64) {
	dc.SetLineWidth(1)

	dc.SetRGB(0, 1, 0)
	for _, b := range ov.Boxes {
		x, y := centre(b.X1, s), centre(b.Y1, s)
		dc.DrawRectangle(x, y, float64(b.Width())*s, float64(b.Height())*s)
		dc.Stroke()
	}

	if ov.Active != nil {
		b := ov.Active
		dc.SetRGB(0, 1, 1)
		dc.SetDash(4, 2)
		dc.DrawRectangle(centre(b.X1, s), centre(b.Y1, s), float64(b.Width())*s, float64(b.Height())*s)
		dc.Stroke()
		dc.SetDash()
	}

	dc.SetRGB(1, 0, 0)
	for _, p := range ov.Points {
		dc.DrawCircle(centre(p.X, s), centre(p.Y, s), radius)
		dc.Fill()
	}
}

// SaveSlice saves img as PNG, or JPEG when filename ends in .jpg/.jpeg.
func (r *Renderer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(file, img)
	}
	if err != nil {
		return err
	}
	return file.Close()
}

// SaveSliceSequence renders every slice of v into outputDir as
// slice_<plane>_<index>.<format>. overlays may be nil.
func (r *Renderer) SaveSliceSequence(v reslice.View, outputDir string, overlays OverlaySource) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	ext := "png"
	if f := strings.ToLower(r.Format); f == "jpeg" || f == "jpg" {
		ext = "jpg"
	}

	for pos := 0; pos < v.Extent(); pos++ {
		var ov *Overlay
		if overlays != nil && v.Plane() == models.Axial {
			ov = overlays(pos)
		}

		img, err := r.Render(v, pos, ov)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.%s", v.Plane(), pos, ext))
		if err := r.SaveSlice(img, filename); err != nil {
			return fmt.Errorf("failed to save %s: %w", filename, err)
		}
	}
	return nil
}
