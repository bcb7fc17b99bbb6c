// Package export writes an annotation store to disk.
//
// The text format has one record per line, fields separated by ", ":
//
//	Point, z, x, y
//	Box, z, x1, y1, x2, y2
//
// All points (ascending z, insertion order) are written before all boxes.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"dicomreslice/pkg/annotation"
)

// ErrIO wraps every failure to produce the destination file.
var ErrIO = errors.New("annotation export failed")

// WriteText emits the store's points, then its boxes, to w. Both passes
// read one snapshot, so the output matches a single state of the store.
func WriteText(w io.Writer, s *annotation.Store) error {
	entries := slices.Collect(s.Entries())

	bw := bufio.NewWriter(w)
	for _, kind := range []annotation.Kind{annotation.KindPoint, annotation.KindBox} {
		for _, e := range entries {
			if e.Kind != kind {
				continue
			}
			var err error
			switch e.Kind {
			case annotation.KindPoint:
				_, err = fmt.Fprintf(bw, "Point, %d, %d, %d\n", e.Z, e.Point.X, e.Point.Y)
			case annotation.KindBox:
				_, err = fmt.Fprintf(bw, "Box, %d, %d, %d, %d, %d\n", e.Z, e.Box.X1, e.Box.Y1, e.Box.X2, e.Box.Y2)
			}
			if err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// WriteFile replaces path with the text export. A reader of path sees
// either the previous file or the complete new one.
func WriteFile(path string, s *annotation.Store) error {
	return writeAtomic(path, func(w io.Writer) error {
		return WriteText(w, s)
	})
}

// Write picks the format from path's extension: ".parquet" writes columnar
// rows, anything else the text format.
func Write(path string, s *annotation.Store) error {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return WriteParquet(path, s)
	}
	return WriteFile(path, s)
}

// writeAtomic writes to a temporary file next to path and renames it into
// place once fully written and synced. An existing target keeps its
// permission bits; a new one gets 0644 less the umask.
func writeAtomic(path string, fill func(w io.Writer) error) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := createTemp(dir, base)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := fill(tmp); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrIO, path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: syncing %s: %w", ErrIO, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrIO, path, err)
	}
	if info, statErr := os.Stat(path); statErr == nil {
		if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// createTemp is os.CreateTemp with mode 0644, so the umask applies the
// same way it does to os.Create.
func createTemp(dir, base string) (*os.File, error) {
	for range 100 {
		name := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", base, rand.Uint32()))
		f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
		if os.IsExist(err) {
			continue
		}
		return f, err
	}
	return nil, fmt.Errorf("no free temporary name for %s in %s", base, dir)
}
