package export

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/parquet-go/parquet-go"

	"dicomreslice/internal/models"
	"dicomreslice/pkg/annotation"
)

// referenceStore holds points[2]=[(1,2)], boxes[2]=[(1,1,5,5)], points[7]=[(3,4)].
func referenceStore(t *testing.T) *annotation.Store {
	t.Helper()
	s := annotation.NewStore(10)
	if err := s.AddPoint(7, 3, 4); err != nil {
		t.Fatal(err)
	}
	if err := s.BeginBox(2, models.Point{X: 5, Y: 5}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CommitBox(2, models.Point{X: 1, Y: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddPoint(2, 1, 2); err != nil {
		t.Fatal(err)
	}
	return s
}

const referenceText = "Point, 2, 1, 2\nPoint, 7, 3, 4\nBox, 2, 1, 1, 5, 5\n"

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, referenceStore(t)); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	if buf.String() != referenceText {
		t.Errorf("Unexpected export:\n%s\nexpected:\n%s", buf.String(), referenceText)
	}
}

func TestWriteTextAllPointsBeforeBoxes(t *testing.T) {
	s := annotation.NewStore(0)
	s.BeginBox(1, models.Point{X: 0, Y: 0})
	s.CommitBox(1, models.Point{X: 2, Y: 2})
	s.AddPoint(9, 4, 4)
	s.BeginBox(9, models.Point{X: 3, Y: 3})
	s.CommitBox(9, models.Point{X: 1, Y: 1})

	var buf bytes.Buffer
	if err := WriteText(&buf, s); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	want := "Point, 9, 4, 4\nBox, 1, 0, 0, 2, 2\nBox, 9, 1, 1, 3, 3\n"
	if buf.String() != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, buf.String())
	}
}

func TestWriteTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, annotation.NewStore(3)); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Expected empty output, got %q", buf.String())
	}
}

func TestWriteFileOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "annotations.txt")
	if err := os.WriteFile(path, []byte("stale content that is much longer than the export\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := WriteFile(path, referenceStore(t)); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != referenceText {
		t.Errorf("Unexpected file content:\n%s", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("Expected only the export in %s, found %d entries", dir, len(entries))
	}
}

func TestWriteFileFailure(t *testing.T) {
	s := referenceStore(t)
	path := filepath.Join(t.TempDir(), "missing", "annotations.txt")

	err := WriteFile(path, s)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("Expected ErrIO, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("Failed export left a file behind")
	}

	// the store is authoritative and unaffected
	if points, boxes := s.Len(); points != 2 || boxes != 1 {
		t.Errorf("Store changed after failed export: %d points %d boxes", points, boxes)
	}
}

func TestWriteFileKeepsTargetOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "annotations.txt")
	previous := []byte("Point, 0, 9, 9\n")
	if err := os.WriteFile(path, previous, 0600); err != nil {
		t.Fatal(err)
	}

	err := writeAtomic(path, func(w io.Writer) error {
		if _, err := w.Write([]byte("Point, 1,")); err != nil {
			return err
		}
		return errors.New("disk full")
	})
	if !errors.Is(err, ErrIO) {
		t.Fatalf("Expected ErrIO, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, previous) {
		t.Errorf("Target changed by a failed export: %q", data)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("Expected only the target in %s, found %d entries", dir, len(entries))
	}
}

func TestWriteFileKeepsTargetMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Unix permission bits")
	}

	path := filepath.Join(t.TempDir(), "annotations.txt")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(path, referenceStore(t)); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("Expected mode 0600 to survive the export, got %o", perm)
	}
}

func TestWriteTextSingleSnapshot(t *testing.T) {
	s := annotation.NewStore(1)
	stop := make(chan struct{})
	var wg sync.WaitGroup

	// every point is followed by one box, so a consistent export never
	// shows more boxes than points
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5000; i++ {
			select {
			case <-stop:
				return
			default:
			}
			s.AddPoint(0, i, i)
			s.BeginBox(0, models.Point{X: i, Y: i})
			s.CommitBox(0, models.Point{X: i + 1, Y: i + 1})
		}
	}()

	for i := 0; i < 200; i++ {
		var buf bytes.Buffer
		if err := WriteText(&buf, s); err != nil {
			t.Fatal(err)
		}
		points := strings.Count(buf.String(), "Point, ")
		boxes := strings.Count(buf.String(), "Box, ")
		if boxes > points || points > boxes+1 {
			t.Errorf("Export %d mixes store states: %d points, %d boxes", i, points, boxes)
			break
		}
	}

	close(stop)
	wg.Wait()
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteTextPropagatesErrors(t *testing.T) {
	if err := WriteText(failingWriter{}, referenceStore(t)); err == nil {
		t.Error("Expected write error, got nil")
	}
}

func TestWriteParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.parquet")
	if err := Write(path, referenceStore(t)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	want := []Row{
		{Kind: "Point", Z: 2, X1: 1, Y1: 2},
		{Kind: "Point", Z: 7, X1: 3, Y1: 4},
		{Kind: "Box", Z: 2, X1: 1, Y1: 1, X2: 5, Y2: 5},
	}
	if len(rows) != len(want) {
		t.Fatalf("Expected %d rows, got %d", len(want), len(rows))
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("Row %d: expected %+v, got %+v", i, want[i], rows[i])
		}
	}
}

func TestWritePicksTextByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.csv")
	if err := Write(path, referenceStore(t)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != referenceText {
		t.Errorf("Unexpected content %q", data)
	}
}
