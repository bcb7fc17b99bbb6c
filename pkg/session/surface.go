package session

import (
	"fmt"
	"sync"

	"dicomreslice/internal/models"
	"dicomreslice/pkg/annotation"
	"dicomreslice/pkg/cursor"
)

// Surface turns pointer gestures on the axial view into annotations on the
// current axial slice.
type Surface struct {
	mu      sync.Mutex
	mode    annotation.DrawingMode
	store   *annotation.Store
	cursors *cursor.Cursors
}

// NewSurface returns a surface in point mode.
func NewSurface(store *annotation.Store, cursors *cursor.Cursors) *Surface {
	return &Surface{mode: annotation.ModePoints, store: store, cursors: cursors}
}

// Mode returns the current drawing mode.
func (s *Surface) Mode() annotation.DrawingMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches the drawing mode and drops any in-progress box.
func (s *Surface) SetMode(m annotation.DrawingMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.CancelBox()
	s.mode = m
}

func (s *Surface) slice() int {
	return s.cursors.Current(models.Axial)
}

// PointerDown adds a point, or starts a box, at p.
func (s *Surface) PointerDown(p models.Point) error {
	switch m := s.Mode(); m {
	case annotation.ModePoints:
		return s.store.AddPoint(s.slice(), p.X, p.Y)
	case annotation.ModeBox:
		return s.store.BeginBox(s.slice(), p)
	default:
		return fmt.Errorf("unhandled drawing mode %v", m)
	}
}

// PointerMove drags the open box corner. Moves with no gesture open are
// ignored.
func (s *Surface) PointerMove(p models.Point) error {
	if s.Mode() != annotation.ModeBox {
		return nil
	}
	if _, ok := s.store.InProgress(); !ok {
		return nil
	}
	return s.store.UpdateBox(p)
}

// PointerUp commits the open box at p on the current axial slice. In point
// mode it does nothing.
func (s *Surface) PointerUp(p models.Point) error {
	switch m := s.Mode(); m {
	case annotation.ModePoints:
		return nil
	case annotation.ModeBox:
		_, err := s.store.CommitBox(s.slice(), p)
		return err
	default:
		return fmt.Errorf("unhandled drawing mode %v", m)
	}
}

// Cancel drops an in-progress box.
func (s *Surface) Cancel() {
	s.store.CancelBox()
}
