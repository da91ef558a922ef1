// Package logging builds the process-wide *slog.Logger: JSON output for
// daemon/file destinations, colorized output for interactive terminals.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Options controls how the logger is constructed.
type Options struct {
	Writer  io.Writer
	Verbose bool
	// ForceJSON bypasses TTY detection — used for daemon mode, where
	// stdout/stderr are redirected to a log file and colorized output
	// would just add ANSI noise to the file.
	ForceJSON bool
}

// New builds a *slog.Logger per Options. Interactive terminals get
// lmittmann/tint's colorized handler (TTY-detected via mattn/go-isatty);
// anything else (daemon mode, piped output, file redirection) gets
// structured JSON.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	if !opts.ForceJSON {
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			return slog.New(tint.NewHandler(w, &tint.Options{Level: level}))
		}
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
