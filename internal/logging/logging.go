// Package logging builds the process logger from the output configuration.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/natefinch/lumberjack"

	"dicomreslice/pkg/config"
)

// New returns a text logger writing to stderr, or to a rotating file when
// cfg.Output.LogFile is set. The returned closer releases the file and is
// never nil.
func New(cfg *config.Config) (*slog.Logger, io.Closer) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with the fallback writer supplied by the caller.
func NewWithWriter(cfg *config.Config, w io.Writer) (*slog.Logger, io.Closer) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	level := slog.LevelInfo
	if cfg.Output.Verbose {
		level = slog.LevelDebug
	}

	var closer io.Closer = nopCloser{}
	if cfg.Output.LogFile != "" {
		l := &lumberjack.Logger{
			Filename: cfg.Output.LogFile,
			MaxSize:  cfg.Output.MaxLogSize, // megabytes
			MaxAge:   cfg.Output.MaxLogAge,  // days
		}
		w, closer = l, l
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
