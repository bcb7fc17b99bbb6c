// Package annotation keeps a sparse overlay of point markers and boxes keyed
// by axial slice index.
package annotation

import (
	"errors"
	"fmt"
	"iter"
	"sort"
	"sync"

	"dicomreslice/internal/models"
)

var (
	// ErrNoActiveBox is returned when a box gesture is updated or committed
	// without BeginBox.
	ErrNoActiveBox = errors.New("no active box gesture")

	// ErrIndexOutOfRange is returned for an axial slice key outside [0, depth).
	ErrIndexOutOfRange = errors.New("slice index out of range")

	// ErrCapacityExceeded is returned when a slice already holds the
	// configured maximum number of annotations of one kind.
	ErrCapacityExceeded = errors.New("annotation capacity exceeded")
)

// Kind distinguishes entries produced by Store.Entries.
type Kind int

const (
	KindPoint Kind = iota
	KindBox
)

func (k Kind) String() string {
	if k == KindBox {
		return "Box"
	}
	return "Point"
}

// Entry is one annotation on slice Z. Point is set for KindPoint, Box for KindBox.
type Entry struct {
	Z     int
	Kind  Kind
	Point models.Point
	Box   models.Box
}

type slice struct {
	points []models.Point
	boxes  []models.Box
}

type gesture struct {
	z          int
	start, end models.Point
}

// Store is the annotation overlay of one viewing session. All methods are
// safe for concurrent use; mutations are serialized by a single mutex.
type Store struct {
	mu          sync.Mutex
	depth       int
	maxPerSlice int
	slices      map[int]*slice
	active      *gesture
}

// Option configures a Store.
type Option func(*Store)

// WithMaxPerSlice caps the points and the boxes stored per slice. Zero
// means unbounded.
func WithMaxPerSlice(n int) Option {
	return func(s *Store) { s.maxPerSlice = n }
}

// NewStore returns an empty store accepting slice keys in [0, depth). A
// depth of zero or less disables key validation.
func NewStore(depth int, opts ...Option) *Store {
	s := &Store{depth: depth, slices: make(map[int]*slice)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) checkKey(z int) error {
	if s.depth > 0 && (z < 0 || z >= s.depth) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, z, s.depth)
	}
	return nil
}

// entry returns the slice for z, creating it on first use.
func (s *Store) entry(z int) *slice {
	sl, ok := s.slices[z]
	if !ok {
		sl = &slice{}
		s.slices[z] = sl
	}
	return sl
}

// AddPoint appends (x, y) to slice z. Duplicates are kept.
func (s *Store) AddPoint(z, x, y int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkKey(z); err != nil {
		return err
	}
	if sl, ok := s.slices[z]; ok && s.maxPerSlice > 0 && len(sl.points) >= s.maxPerSlice {
		return fmt.Errorf("%w: slice %d has %d points", ErrCapacityExceeded, z, len(sl.points))
	}
	sl := s.entry(z)
	sl.points = append(sl.points, models.Point{X: x, Y: y})
	return nil
}

// BeginBox starts a box gesture at start. Nothing is stored until
// CommitBox. An unfinished gesture is replaced.
func (s *Store) BeginBox(z int, start models.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkKey(z); err != nil {
		return err
	}
	s.active = &gesture{z: z, start: start, end: start}
	return nil
}

// UpdateBox moves the transient end corner for live feedback.
func (s *Store) UpdateBox(end models.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return ErrNoActiveBox
	}
	s.active.end = end
	return nil
}

// InProgress returns the normalized transient box, if a gesture is active.
func (s *Store) InProgress() (models.Box, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return models.Box{}, false
	}
	return models.NormalizeBox(s.active.start, s.active.end), true
}

// Gesture is InProgress plus the slice the gesture was started on.
func (s *Store) Gesture() (z int, box models.Box, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return 0, models.Box{}, false
	}
	return s.active.z, models.NormalizeBox(s.active.start, s.active.end), true
}

// CommitBox normalizes the gesture's start and end into a box, appends it
// to slice z and clears the gesture. On error the store is unchanged; the
// gesture survives a rejected key or capacity error so the caller may retry.
func (s *Store) CommitBox(z int, end models.Point) (models.Box, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return models.Box{}, ErrNoActiveBox
	}
	if err := s.checkKey(z); err != nil {
		return models.Box{}, err
	}
	if sl, ok := s.slices[z]; ok && s.maxPerSlice > 0 && len(sl.boxes) >= s.maxPerSlice {
		return models.Box{}, fmt.Errorf("%w: slice %d has %d boxes", ErrCapacityExceeded, z, len(sl.boxes))
	}

	box := models.NormalizeBox(s.active.start, end)
	sl := s.entry(z)
	sl.boxes = append(sl.boxes, box)
	s.active = nil
	return box, nil
}

// CancelBox drops any in-progress gesture.
func (s *Store) CancelBox() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
}

// PointsFor returns a copy of slice z's points in insertion order. The
// result is empty, never nil, when z has none.
func (s *Store) PointsFor(z int) []models.Point {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slices[z]
	if !ok {
		return []models.Point{}
	}
	return append([]models.Point{}, sl.points...)
}

// BoxesFor returns a copy of slice z's boxes in insertion order.
func (s *Store) BoxesFor(z int) []models.Box {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slices[z]
	if !ok {
		return []models.Box{}
	}
	return append([]models.Box{}, sl.boxes...)
}

// Slices returns the keys with at least one annotation, ascending.
func (s *Store) Slices() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys()
}

func (s *Store) keys() []int {
	keys := make([]int, 0, len(s.slices))
	for z, sl := range s.slices {
		if len(sl.points) > 0 || len(sl.boxes) > 0 {
			keys = append(keys, z)
		}
	}
	sort.Ints(keys)
	return keys
}

// Len returns the total number of points and boxes.
func (s *Store) Len() (points, boxes int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sl := range s.slices {
		points += len(sl.points)
		boxes += len(sl.boxes)
	}
	return points, boxes
}

// Entries yields every annotation in ascending z; within a slice all points
// come before all boxes, each in insertion order. The sequence iterates a
// snapshot taken when iteration starts.
func (s *Store) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range s.snapshot() {
			if !yield(e) {
				return
			}
		}
	}
}

func (s *Store) snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for _, z := range s.keys() {
		sl := s.slices[z]
		for _, p := range sl.points {
			out = append(out, Entry{Z: z, Kind: KindPoint, Point: p})
		}
		for _, b := range sl.boxes {
			out = append(out, Entry{Z: z, Kind: KindBox, Box: b})
		}
	}
	return out
}
