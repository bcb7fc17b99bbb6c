// Package volume stacks decoded frames into the canonical axial volume.
package volume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"dicomreslice/internal/models"
	"dicomreslice/pkg/normalize"
)

var (
	// ErrEmptyVolume is returned when no frames are supplied.
	ErrEmptyVolume = errors.New("empty volume: no frames")

	// ErrShapeMismatch is returned when frames do not share one row/column shape.
	ErrShapeMismatch = errors.New("frame shape mismatch")
)

// Assembler orders, normalizes and stacks frames.
//
// The zero value is usable: strict degenerate-frame handling, one worker per
// CPU and the default slog logger.
type Assembler struct {
	// Normalizer rescales each frame to 8 bits
	Normalizer normalize.Normalizer

	// Workers bounds how many frames are normalized concurrently
	Workers int

	// Logger receives progress messages
	Logger *slog.Logger
}

// Assemble sorts frames ascending by key (stable, so equal keys keep their
// input order), normalizes each one and stacks them along a new leading
// axis. The input slice is not modified. Either a complete volume or an
// error is returned.
func (a *Assembler) Assemble(ctx context.Context, frames []models.Frame) (*models.Volume, error) {
	if len(frames) == 0 {
		return nil, ErrEmptyVolume
	}

	ordered := SortFrames(frames)

	height, width := ordered[0].Dims()
	if height == 0 || width == 0 {
		return nil, fmt.Errorf("%w: frame %q (key %d) has no samples", ErrShapeMismatch, ordered[0].Source, ordered[0].Key)
	}
	for _, f := range ordered[1:] {
		if r, c := f.Dims(); r != height || c != width {
			return nil, fmt.Errorf("%w: frame %q (key %d) is %dx%d, expected %dx%d",
				ErrShapeMismatch, f.Source, f.Key, r, c, height, width)
		}
	}

	logger := a.logger()
	logger.Debug("Assembling volume", "frames", len(ordered), "height", height, "width", width)

	vol := models.NewVolume(len(ordered), height, width)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers())
	for z, f := range ordered {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pixels, err := a.Normalizer.Normalize(f.Grid)
			if err != nil {
				return fmt.Errorf("normalize frame %q (key %d): %w", f.Source, f.Key, err)
			}
			// each goroutine owns a disjoint axial slice
			copy(vol.AxialSlice(z), pixels)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Info("Assembled volume", "depth", vol.Depth, "height", vol.Height, "width", vol.Width)
	return vol, nil
}

// SortFrames returns a copy of frames ordered ascending by key, preserving
// the relative order of equal keys.
func SortFrames(frames []models.Frame) []models.Frame {
	ordered := make([]models.Frame, len(frames))
	copy(ordered, frames)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Key < ordered[j].Key
	})
	return ordered
}

func (a *Assembler) workers() int {
	if a.Workers > 0 {
		return a.Workers
	}
	return runtime.NumCPU()
}

func (a *Assembler) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
