package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// writeSeries writes depth PNG frames of width x height into a temp dir,
// numbered in reverse of their intensity offset.
func writeSeries(t *testing.T, depth, width, height int) string {
	t.Helper()
	dir := t.TempDir()
	for z := 0; z < depth; z++ {
		img := image.NewGray16(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.SetGray16(x, y, color.Gray16{Y: uint16((y*width + x + z) * 100)})
			}
		}
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("frame_%02d.png", z+1)))
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}
	return dir
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv(ConfigEnv, "")

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s): %v", dir, err)
	}
	return len(entries)
}

func TestInfo(t *testing.T) {
	dir := writeSeries(t, 4, 6, 5)

	out, err := run(t, "", "info", "--source", "image", dir)
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}

	for _, want := range []string{
		"4 x 5 x 6",
		"120 B",
		"axial:     4 slices of 5x6",
		"sagittal:  5 slices of 4x6",
		"coronal:   6 slices of 5x4",
		"min 0, max 255",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("info output missing %q:\n%s", want, out)
		}
	}
}

func TestInfoMissingDir(t *testing.T) {
	if _, err := run(t, "", "info", "--source", "image", filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("Expected error for a missing directory")
	}
}

func TestInvalidSource(t *testing.T) {
	dir := writeSeries(t, 2, 2, 2)
	if _, err := run(t, "", "info", "--source", "pacs", dir); err == nil {
		t.Error("Expected error for an unknown source")
	}
}

func TestSlices(t *testing.T) {
	dir := writeSeries(t, 3, 4, 2)
	out := t.TempDir()

	if _, err := run(t, "", "slices", "--source", "image", "--plane", "sagittal", "--out", out, dir); err != nil {
		t.Fatalf("slices failed: %v", err)
	}
	if n := countFiles(t, out); n != 2 {
		t.Errorf("Expected 2 sagittal slices, got %d", n)
	}

	all := filepath.Join(t.TempDir(), "all")
	if _, err := run(t, "", "slices", "--source", "image", "--plane", "all", "--out", all, dir); err != nil {
		t.Fatalf("slices --plane all failed: %v", err)
	}
	for plane, want := range map[string]int{"axial": 3, "sagittal": 2, "coronal": 4} {
		if n := countFiles(t, filepath.Join(all, plane)); n != want {
			t.Errorf("%s: expected %d files, got %d", plane, want, n)
		}
	}

	if _, err := run(t, "", "slices", "--source", "image", "--plane", "oblique", dir); err == nil {
		t.Error("Expected error for an unknown plane")
	}
}

func TestAnnotate(t *testing.T) {
	dir := writeSeries(t, 4, 8, 8)
	work := t.TempDir()

	scriptPath := filepath.Join(work, "gestures.txt")
	script := "slice 2\npoint 1 2\nmode box\ndown 0 0\nmove 5 5\nup 3 4\n"
	if err := os.WriteFile(scriptPath, []byte(script), 0644); err != nil {
		t.Fatal(err)
	}

	outPath := filepath.Join(work, "annotations.txt")
	renderDir := filepath.Join(work, "render")
	out, err := run(t, "", "annotate", "--source", "image", "--script", scriptPath, "--out", outPath, "--render", renderDir, dir)
	if err != nil {
		t.Fatalf("annotate failed: %v", err)
	}
	if !strings.Contains(out, "Exported 1 points and 1 boxes") {
		t.Errorf("Unexpected summary: %s", out)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if want := "Point, 2, 1, 2\nBox, 2, 0, 0, 3, 4\n"; string(data) != want {
		t.Errorf("Unexpected export:\n%s\nwant:\n%s", data, want)
	}
	if n := countFiles(t, renderDir); n != 4 {
		t.Errorf("Expected 4 rendered slices, got %d", n)
	}
}

func TestAnnotateFromStdin(t *testing.T) {
	dir := writeSeries(t, 2, 4, 4)
	outPath := filepath.Join(t.TempDir(), "annotations.parquet")

	if _, err := run(t, "point 1 1\n", "annotate", "--source", "image", "--out", outPath, dir); err != nil {
		t.Fatalf("annotate failed: %v", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("Parquet export missing: %v", err)
	}

	// a failing script leaves no export behind
	failed := filepath.Join(t.TempDir(), "failed.txt")
	if _, err := run(t, "mode box\nup 1 1\n", "annotate", "--source", "image", "--out", failed, dir); err == nil {
		t.Error("Expected script error")
	}
	if _, err := os.Stat(failed); !os.IsNotExist(err) {
		t.Errorf("Export written despite script error: %v", err)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dicomreslice.toml")

	if _, err := run(t, "", "config", "init", path); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if _, err := run(t, "", "config", "init", path); err == nil {
		t.Error("Expected refusal to overwrite")
	}
	if _, err := run(t, "", "config", "init", "--force", path); err != nil {
		t.Errorf("config init --force failed: %v", err)
	}

	dir := writeSeries(t, 2, 3, 3)
	if _, err := run(t, "", "info", "--config", path, "--source", "image", dir); err != nil {
		t.Errorf("info with generated config failed: %v", err)
	}
}

type closeCounter struct {
	closed int
	err    error
}

func (c *closeCounter) Close() error {
	c.closed++
	return c.err
}

func TestRunEClosesLog(t *testing.T) {
	boom := errors.New("boom")

	log := &closeCounter{}
	a := &app{closer: log}
	err := a.runE(func(*cobra.Command, []string) error { return boom })(nil, nil)
	if !errors.Is(err, boom) {
		t.Errorf("Expected the command error, got %v", err)
	}
	if log.closed != 1 {
		t.Errorf("Expected the log closed once after a failure, got %d", log.closed)
	}
	if err := a.close(); err != nil || log.closed != 1 {
		t.Errorf("Second close reached the file: %v, %d closes", err, log.closed)
	}

	// a close failure surfaces when the command itself succeeded
	failing := &closeCounter{err: boom}
	a = &app{closer: failing}
	if err := a.runE(func(*cobra.Command, []string) error { return nil })(nil, nil); !errors.Is(err, boom) {
		t.Errorf("Expected the close error, got %v", err)
	}
}

func TestLogFileWrittenOnFailedCommand(t *testing.T) {
	work := t.TempDir()
	logPath := filepath.Join(work, "dicomreslice.log")
	cfgPath := filepath.Join(work, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("output:\n  logFile: "+logPath+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	dir := writeSeries(t, 2, 3, 3)
	script := filepath.Join(work, "bad.txt")
	if err := os.WriteFile(script, []byte("jump 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "", "annotate", "--config", cfgPath, "--source", "image", "--script", script,
		"--out", filepath.Join(work, "out.txt"), dir); err == nil {
		t.Fatal("Expected script error")
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Log file missing: %v", err)
	}
	if !strings.Contains(string(data), "Volume loaded") {
		t.Errorf("Log file lacks the load message:\n%s", data)
	}
}
