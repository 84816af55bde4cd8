package internal

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// NewLogger builds the process logger: JSON by default, colourised text
// when the format is "text" and out is a terminal.
func NewLogger(cfg ApplicationConfig, out *os.File) *slog.Logger {
	if cfg.LogFormat != LogFormatText {
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: cfg.LogLevel,
		}))
	}

	var w io.Writer = out
	tty := isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())
	if tty {
		w = colorable.NewColorable(out)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      cfg.LogLevel,
		TimeFormat: time.TimeOnly,
		NoColor:    !tty,
	}))
}
