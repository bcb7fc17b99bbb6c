package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"dicomreslice/internal/models"
	"dicomreslice/pkg/reslice"
	"dicomreslice/pkg/visualization"
)

func (a *app) renderer(vol *models.Volume) (*visualization.Renderer, error) {
	cache, err := reslice.NewCache(vol, a.cfg.Rendering.CacheSize)
	if err != nil {
		return nil, err
	}
	return &visualization.Renderer{
		Scale:       a.cfg.Rendering.Scale,
		PointRadius: a.cfg.Rendering.PointRadius,
		Labels:      a.cfg.Rendering.Labels,
		Format:      a.cfg.Rendering.Format,
		Cache:       cache,
	}, nil
}

func newSlicesCmd(a *app) *cobra.Command {
	var plane string
	var outDir string

	cmd := &cobra.Command{
		Use:   "slices <dir>",
		Short: "Save every slice of one or all planes as images",
		Example: `  # Save sagittal slices
  dicomreslice slices ./series --plane sagittal --out ./out

  # Save all three planes, one subdirectory each
  dicomreslice slices ./series --plane all --out ./out`,
		Args: cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string) error {
			planes := models.Planes
			if plane != "all" {
				p, err := models.ParsePlane(plane)
				if err != nil {
					return err
				}
				planes = []models.Plane{p}
			}

			s, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			r, err := a.renderer(s.Volume)
			if err != nil {
				return err
			}

			for _, p := range planes {
				dir := outDir
				if len(planes) > 1 {
					dir = filepath.Join(outDir, p.String())
				}
				if err := cmd.Context().Err(); err != nil {
					return err
				}

				a.logger.Info("Saving slices", "plane", p, "count", s.View(p).Extent(), "dir", dir)
				if err := r.SaveSliceSequence(s.View(p), dir, nil); err != nil {
					return fmt.Errorf("failed to save %s slices: %w", p, err)
				}
			}
			return nil
		}),
	}

	cmd.Flags().StringVarP(&plane, "plane", "p", "axial", "Plane to save: axial, sagittal, coronal or all")
	cmd.Flags().StringVarP(&outDir, "out", "o", "slices", "Output directory")

	return cmd
}
