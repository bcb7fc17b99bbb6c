package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"dicomreslice/internal/models"
	"dicomreslice/pkg/annotation"
)

// ErrGestureOpen is returned by the script's box command while a pointer
// gesture has a box open.
var ErrGestureOpen = errors.New("box gesture already open")

// RunScript replays a gesture script against the session, one command per
// line:
//
//	mode points|box        switch drawing mode (cancels an open box)
//	slice N                move the axial cursor to N (clamped)
//	step D                 move the axial cursor by D (clamped)
//	down X Y               pointer pressed
//	move X Y               pointer dragged
//	up X Y                 pointer released
//	point X Y              add a point on the current slice
//	box X1 Y1 X2 Y2        add a box on the current slice (fails while a
//	                       down/move/up gesture is open)
//	cancel                 drop the open box
//
// Blank lines and lines starting with # are skipped. The first failing
// command stops the script; its error names the line.
func (s *Session) RunScript(r io.Reader) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := s.exec(strings.Fields(text)); err != nil {
			return fmt.Errorf("script line %d %q: %w", line, text, err)
		}
	}
	return sc.Err()
}

func (s *Session) exec(fields []string) error {
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	s.Logger.Debug("Script command", "cmd", cmd, "args", args)

	switch cmd {
	case "mode":
		if len(args) != 1 {
			return fmt.Errorf("mode takes 1 argument, got %d", len(args))
		}
		m, err := annotation.ParseMode(args[0])
		if err != nil {
			return err
		}
		s.Surface.SetMode(m)
		return nil

	case "slice", "step":
		n, err := ints(args, 1)
		if err != nil {
			return err
		}
		if cmd == "slice" {
			s.Cursors.SetIndex(models.Axial, n[0])
		} else {
			s.Cursors.Step(models.Axial, n[0])
		}
		return nil

	case "down", "move", "up", "point":
		n, err := ints(args, 2)
		if err != nil {
			return err
		}
		p := models.Point{X: n[0], Y: n[1]}
		switch cmd {
		case "down":
			return s.Surface.PointerDown(p)
		case "move":
			return s.Surface.PointerMove(p)
		case "up":
			return s.Surface.PointerUp(p)
		}
		return s.Store.AddPoint(s.Cursors.Current(models.Axial), p.X, p.Y)

	case "box":
		n, err := ints(args, 4)
		if err != nil {
			return err
		}
		if _, open := s.Store.InProgress(); open {
			return ErrGestureOpen
		}
		z := s.Cursors.Current(models.Axial)
		if err := s.Store.BeginBox(z, models.Point{X: n[0], Y: n[1]}); err != nil {
			return err
		}
		if _, err := s.Store.CommitBox(z, models.Point{X: n[2], Y: n[3]}); err != nil {
			s.Store.CancelBox()
			return err
		}
		return nil

	case "cancel":
		s.Surface.Cancel()
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func ints(args []string, want int) ([]int, error) {
	if len(args) != want {
		return nil, fmt.Errorf("expected %d integer arguments, got %d", want, len(args))
	}
	out := make([]int, want)
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", a)
		}
		out[i] = v
	}
	return out, nil
}
