// Package dicomio decodes a folder of DICOM files into frames.
package dicomio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"gonum.org/v1/gonum/mat"

	"dicomreslice/internal/models"
)

var (
	// ErrNoFiles is returned when a directory holds no .dcm files.
	ErrNoFiles = errors.New("no DICOM files found")

	// ErrMissingInstanceNumber is returned for a dataset without a usable
	// InstanceNumber, which orders the stack.
	ErrMissingInstanceNumber = errors.New("missing or invalid InstanceNumber")

	// ErrUnsupportedPixelData is returned for encapsulated (compressed) or
	// absent pixel data.
	ErrUnsupportedPixelData = errors.New("unsupported pixel data")
)

// Loader reads every *.dcm file of a directory.
type Loader struct {
	Dir    string
	Logger *slog.Logger
}

// Frames implements the session's frame source.
func (l *Loader) Frames(ctx context.Context) ([]models.Frame, error) {
	return LoadDir(ctx, l.Dir, l.Logger)
}

// LoadDir parses every file ending in ".dcm" in dir. Frames are returned in
// directory listing order; ordering by key is the assembler's job.
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
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".dcm") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFiles, dir)
	}
	sort.Strings(names)

	frames := make([]models.Frame, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", name, err)
		}
		logger.Debug("Decoded DICOM frame", "file", name, "instance", f.Key)
		frames = append(frames, f)
	}

	logger.Info("Loaded DICOM series", "dir", dir, "frames", len(frames))
	return frames, nil
}

// LoadFile parses a single DICOM file.
func LoadFile(path string) (models.Frame, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return models.Frame{}, err
	}
	f, err := FrameFromDataset(ds)
	if err != nil {
		return models.Frame{}, err
	}
	f.Source = path
	return f, nil
}

// FrameFromDataset extracts the InstanceNumber and the first native frame's
// pixel grid (first sample of each pixel) from ds.
func FrameFromDataset(ds dicom.Dataset) (models.Frame, error) {
	key, err := instanceNumber(ds)
	if err != nil {
		return models.Frame{}, err
	}

	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return models.Frame{}, fmt.Errorf("%w: %v", ErrUnsupportedPixelData, err)
	}
	info, ok := elem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok || len(info.Frames) == 0 {
		return models.Frame{}, fmt.Errorf("%w: no frames", ErrUnsupportedPixelData)
	}
	fr := info.Frames[0]
	if fr.Encapsulated || fr.NativeData == nil {
		return models.Frame{}, fmt.Errorf("%w: encapsulated transfer syntax", ErrUnsupportedPixelData)
	}

	native := fr.NativeData
	rows, cols := native.Rows(), native.Cols()
	if rows == 0 || cols == 0 {
		return models.Frame{}, fmt.Errorf("%w: empty %dx%d frame", ErrUnsupportedPixelData, rows, cols)
	}

	sample := sampleDecoder(ds)
	grid := mat.NewDense(rows, cols, nil)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			px, err := native.GetPixel(x, y)
			if err != nil {
				return models.Frame{}, fmt.Errorf("%w: pixel (%d,%d): %v", ErrUnsupportedPixelData, x, y, err)
			}
			grid.Set(y, x, float64(sample(px[0])))
		}
	}

	return models.Frame{Key: key, Grid: grid}, nil
}

// sampleDecoder returns the mapping from a raw stored sample to its value.
// Native pixel data is read unsigned; with PixelRepresentation 1 the low
// BitsStored bits hold a two's complement value and are sign-extended.
func sampleDecoder(ds dicom.Dataset) func(int) int {
	if rep, ok := intValue(ds, tag.PixelRepresentation); !ok || rep != 1 {
		return func(v int) int { return v }
	}
	bits, ok := intValue(ds, tag.BitsStored)
	if !ok || bits < 1 || bits > 32 {
		bits = 16
	}
	mask := 1<<bits - 1
	sign := 1 << (bits - 1)
	return func(v int) int {
		v &= mask
		if v&sign != 0 {
			v -= mask + 1
		}
		return v
	}
}

// intValue reads the first value of a numeric element.
func intValue(ds dicom.Dataset, t tag.Tag) (int, bool) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.Trim(elem.Value.String(), " []"))
	if err != nil {
		return 0, false
	}
	return n, true
}

// instanceNumber reads the IS-valued InstanceNumber, which may be stored as
// a string list such as "[12]".
func instanceNumber(ds dicom.Dataset) (int, error) {
	elem, err := ds.FindElementByTag(tag.InstanceNumber)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMissingInstanceNumber, err)
	}
	raw := strings.Trim(elem.Value.String(), " []")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMissingInstanceNumber, raw)
	}
	return n, nil
}
