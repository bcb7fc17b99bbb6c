// Package cli holds the cobra command tree of the dicomreslice binary.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"dicomreslice/internal/logging"
	"dicomreslice/pkg/config"
	"dicomreslice/pkg/dicomio"
	"dicomreslice/pkg/imageio"
	"dicomreslice/pkg/normalize"
	"dicomreslice/pkg/session"
	"dicomreslice/pkg/volume"
)

// ConfigEnv names the config file when --config is not given.
const ConfigEnv = "DICOMRESLICE_CONFIG"

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	source     string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "dicomreslice",
		Short: "Reslice DICOM series into orthogonal planes and annotate them",
		Long: `dicomreslice assembles a folder of 2D scan frames into a volume, derives the
axial, sagittal and coronal planes by axis permutation and records point and
box annotations on axial slices.

Frames are read from DICOM files (*.dcm) or from numbered raster images.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (.yaml or .toml); defaults to $"+ConfigEnv)
	cmd.PersistentFlags().StringVar(&a.source, "source", "", "Frame source: dicom or image (overrides config)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newInfoCmd(a))
	cmd.AddCommand(newSlicesCmd(a))
	cmd.AddCommand(newAnnotateCmd(a))
	cmd.AddCommand(newConfigCmd(a))

	return cmd
}

// runE wraps a command body so the log file is closed however it returns.
// cobra skips post-run hooks when RunE fails.
func (a *app) runE(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if cerr := a.close(); err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args)
	}
}

func (a *app) close() error {
	if a.closer == nil {
		return nil
	}
	c := a.closer
	a.closer = nil
	return c.Close()
}

func (a *app) setup(cmd *cobra.Command) error {
	path := a.configPath
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}

	cfg := config.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return err
		}
	}

	if a.source != "" {
		cfg.Loading.Source = a.source
	}
	if a.verbose {
		cfg.Output.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger, a.closer = logging.NewWithWriter(cfg, cmd.ErrOrStderr())
	return nil
}

func (a *app) frameSource(dir string) (session.FrameSource, error) {
	switch a.cfg.Loading.Source {
	case "dicom":
		return &dicomio.Loader{Dir: dir, Logger: a.logger}, nil
	case "image":
		return &imageio.Loader{Dir: dir, Logger: a.logger}, nil
	}
	return nil, fmt.Errorf("unknown frame source %q", a.cfg.Loading.Source)
}

func (a *app) load(cmd *cobra.Command, dir string) (*session.Session, error) {
	src, err := a.frameSource(dir)
	if err != nil {
		return nil, err
	}

	asm := &volume.Assembler{
		Normalizer: normalize.Normalizer{OnDegenerate: a.cfg.DegeneratePolicy()},
		Workers:    a.cfg.Loading.NumCores,
		Logger:     a.logger,
	}

	res := <-session.LoadAsync(cmd.Context(), src, asm, a.cfg)
	if res.Err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", dir, res.Err)
	}
	return res.Session, nil
}
