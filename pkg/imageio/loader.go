// Package imageio loads a directory of raster slice images as frames, for
// series exported from a scanner as PNG, JPEG, TIFF or BMP files.
package imageio

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	"gonum.org/v1/gonum/mat"

	"dicomreslice/internal/models"
)

// ErrNoImages is returned when a directory holds no supported images.
var ErrNoImages = errors.New("no slice images found")

// Extensions lists the file extensions LoadDir picks up.
var Extensions = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp"}

var digits = regexp.MustCompile(`\d+`)

// Loader reads every supported image in Dir.
type Loader struct {
	Dir    string
	Logger *slog.Logger
}

// Frames implements the session's frame source.
func (l *Loader) Frames(ctx context.Context) ([]models.Frame, error) {
	return LoadDir(ctx, l.Dir, l.Logger)
}

// LoadDir decodes every supported image in dir. Each frame's key is the last
// number in its file name, so "slice_007.png" gets key 7.
func LoadDir(ctx context.Context, dir string, logger *slog.Logger) ([]models.Frame, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && supported(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}
	sort.Strings(names)

	frames := make([]models.Frame, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, name)
		img, err := loadImage(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", name, err)
		}
		frames = append(frames, models.Frame{
			Key:    KeyFromName(name),
			Grid:   GridFromImage(img),
			Source: path,
		})
	}

	logger.Info("Loaded slice images", "dir", dir, "frames", len(frames))
	return frames, nil
}

// KeyFromName returns the last run of digits in the file's base name, or 0.
func KeyFromName(name string) int {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	runs := digits.FindAllString(base, -1)
	if len(runs) == 0 {
		return 0
	}
	n, err := strconv.Atoi(runs[len(runs)-1])
	if err != nil {
		return 0
	}
	return n
}

// GridFromImage converts img to a rows x cols matrix of 16-bit luminance.
func GridFromImage(img image.Image) *mat.Dense {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	grid := mat.NewDense(height, width, nil)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			grid.Set(y, x, float64(g.Y))
		}
	}
	return grid
}

func supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// loadImage loads an image from a file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}
