package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"dicomreslice/internal/models"
	"dicomreslice/pkg/export"
)

func newAnnotateCmd(a *app) *cobra.Command {
	var scriptPath string
	var outPath string
	var renderDir string

	cmd := &cobra.Command{
		Use:   "annotate <dir>",
		Short: "Replay a gesture script and export the annotations",
		Long: `Replays a gesture script against the loaded volume and writes the resulting
annotations. Each script line is one command:

  mode points|box     slice N     step D
  down X Y            move X Y    up X Y
  point X Y           box X1 Y1 X2 Y2
  cancel

The export is flat text ("Point, z, x, y" then "Box, z, x1, y1, x2, y2"), or
a Parquet table when --out ends in .parquet.`,
		Example: `  dicomreslice annotate ./series --script gestures.txt --out annotations.txt
  cat gestures.txt | dicomreslice annotate ./series --script - --out ann.parquet --render ./overlay`,
		Args: cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string) error {
			var script io.Reader = cmd.InOrStdin()
			if scriptPath != "-" {
				f, err := os.Open(scriptPath)
				if err != nil {
					return fmt.Errorf("failed to open script: %w", err)
				}
				defer f.Close()
				script = f
			}

			s, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			if err := s.RunScript(script); err != nil {
				return err
			}

			if err := export.Write(outPath, s.Store); err != nil {
				return err
			}
			points, boxes := s.Store.Len()
			a.logger.Info("Annotations exported", "points", points, "boxes", boxes, "path", outPath)
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d points and %d boxes to %s\n", points, boxes, outPath)

			if renderDir != "" {
				r, err := a.renderer(s.Volume)
				if err != nil {
					return err
				}
				if err := r.SaveSliceSequence(s.View(models.Axial), renderDir, s.Overlay()); err != nil {
					return fmt.Errorf("failed to render overlay: %w", err)
				}
			}
			return nil
		}),
	}

	cmd.Flags().StringVarP(&scriptPath, "script", "s", "-", "Gesture script file, - for stdin")
	cmd.Flags().StringVarP(&outPath, "out", "o", "annotations.txt", "Export file (.txt or .parquet)")
	cmd.Flags().StringVar(&renderDir, "render", "", "Also save annotated axial slices to this directory")

	return cmd
}
