package export

import (
	"io"

	"github.com/parquet-go/parquet-go"

	"dicomreslice/pkg/annotation"
)

// Row is the columnar form of one annotation. Points leave X2 and Y2 at zero.
type Row struct {
	Kind string `parquet:"kind"`
	Z    int64  `parquet:"z"`
	X1   int64  `parquet:"x1"`
	Y1   int64  `parquet:"y1"`
	X2   int64  `parquet:"x2"`
	Y2   int64  `parquet:"y2"`
}

// Rows flattens the store in export order: all points, then all boxes.
func Rows(s *annotation.Store) []Row {
	var points, boxes []Row
	for e := range s.Entries() {
		switch e.Kind {
		case annotation.KindPoint:
			points = append(points, Row{
				Kind: e.Kind.String(), Z: int64(e.Z),
				X1: int64(e.Point.X), Y1: int64(e.Point.Y),
			})
		case annotation.KindBox:
			boxes = append(boxes, Row{
				Kind: e.Kind.String(), Z: int64(e.Z),
				X1: int64(e.Box.X1), Y1: int64(e.Box.Y1),
				X2: int64(e.Box.X2), Y2: int64(e.Box.Y2),
			})
		}
	}
	return append(points, boxes...)
}

// WriteParquet replaces path with a parquet file of Rows(s).
func WriteParquet(path string, s *annotation.Store) error {
	rows := Rows(s)
	return writeAtomic(path, func(w io.Writer) error {
		pw := parquet.NewGenericWriter[Row](w)
		if _, err := pw.Write(rows); err != nil {
			return err
		}
		return pw.Close()
	})
}
