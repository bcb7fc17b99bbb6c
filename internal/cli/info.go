package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dicomreslice/internal/models"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <dir>",
		Short: "Print volume extents, plane shapes and intensity statistics",
		Example: `  dicomreslice info ./series
  dicomreslice info --source image ./pngs`,
		Args: cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string) error {
			s, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			d, h, w := s.Volume.Extents()
			fmt.Fprintf(out, "Volume:    %d x %d x %d (%s voxels, %s)\n",
				d, h, w, humanize.Comma(int64(s.Volume.Len())), humanize.Bytes(uint64(s.Volume.Len())))

			for _, p := range models.Planes {
				v := s.View(p)
				rows, cols := v.Shape()
				fmt.Fprintf(out, "%-10s %d slices of %dx%d\n", p.String()+":", v.Extent(), rows, cols)
			}

			st := s.Volume.Stats()
			fmt.Fprintf(out, "Intensity: mean %.2f, stddev %.2f, min %d, max %d\n", st.Mean, st.StdDev, st.Min, st.Max)
			return nil
		}),
	}
}
