// Package session wires a loaded volume to its plane views, slice cursors
// and annotation store.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"dicomreslice/internal/models"
	"dicomreslice/pkg/annotation"
	"dicomreslice/pkg/config"
	"dicomreslice/pkg/cursor"
	"dicomreslice/pkg/reslice"
	"dicomreslice/pkg/visualization"
	"dicomreslice/pkg/volume"
)

// FrameSource produces the unordered frames of one series.
type FrameSource interface {
	Frames(ctx context.Context) ([]models.Frame, error)
}

// SourceFunc adapts a function to FrameSource.
type SourceFunc func(ctx context.Context) ([]models.Frame, error)

// Frames calls f.
func (f SourceFunc) Frames(ctx context.Context) ([]models.Frame, error) { return f(ctx) }

// Session is one loaded volume and the state built around it.
type Session struct {
	Volume  *models.Volume
	Views   [3]reslice.View
	Cursors *cursor.Cursors
	Store   *annotation.Store
	Surface *Surface
	Logger  *slog.Logger
}

// New builds a session around an assembled volume. A nil cfg means
// DefaultConfig, a nil logger means slog.Default.
func New(vol *models.Volume, cfg *config.Config, logger *slog.Logger) (*Session, error) {
	if vol == nil || vol.Len() == 0 {
		return nil, volume.ErrEmptyVolume
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		Volume:  vol,
		Views:   reslice.Views(vol),
		Cursors: cursor.ForVolume(vol),
		Store:   annotation.NewStore(vol.Depth, annotation.WithMaxPerSlice(cfg.Annotation.MaxPerSlice)),
		Logger:  logger,
	}
	s.Surface = NewSurface(s.Store, s.Cursors)

	s.Cursors.Subscribe(func(plane models.Plane, index int) {
		logger.Debug("Slice changed", "plane", plane, "index", index)
	})
	return s, nil
}

// View returns the view of plane p.
func (s *Session) View(p models.Plane) reslice.View { return s.Views[p] }

// Overlay serves the stored annotations of each axial slice, plus the
// in-progress box on the slice it was started on.
func (s *Session) Overlay() visualization.OverlaySource {
	stored := visualization.StoreOverlay(s.Store)
	return func(z int) *visualization.Overlay {
		ov := stored(z)
		if gz, box, ok := s.Store.Gesture(); ok && gz == z {
			ov.Active = &box
		}
		return ov
	}
}

// Load reads frames from src, assembles them and builds a session. Only a
// fully constructed session is returned; on any error the result is nil.
func Load(ctx context.Context, src FrameSource, asm *volume.Assembler, cfg *config.Config) (*Session, error) {
	if asm == nil {
		asm = &volume.Assembler{}
	}
	logger := asm.Logger
	if logger == nil {
		logger = slog.Default()
	}

	frames, err := src.Frames(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading frames: %w", err)
	}
	vol, err := asm.Assemble(ctx, frames)
	if err != nil {
		return nil, fmt.Errorf("assembling volume: %w", err)
	}

	d, h, w := vol.Extents()
	logger.Info("Volume loaded", "frames", len(frames), "depth", d, "height", h, "width", w)
	return New(vol, cfg, logger)
}

// Result is what LoadAsync delivers.
type Result struct {
	Session *Session
	Err     error
}

// LoadAsync runs Load on its own goroutine. The channel receives exactly one
// Result and is then closed. Cancelling ctx makes the load fail early.
func LoadAsync(ctx context.Context, src FrameSource, asm *volume.Assembler, cfg *config.Config) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		s, err := Load(ctx, src, asm, cfg)
		ch <- Result{Session: s, Err: err}
	}()
	return ch
}
