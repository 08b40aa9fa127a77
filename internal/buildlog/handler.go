package buildlog

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// Layout of the timestamp shown in verbose mode.
const timeLayout = "15:04:05.000"

// Configures a [Handler].
type HandlerOptions struct {
	Level   slog.Leveler // Minimum level. Defaults to [slog.LevelInfo].
	Color   bool         // Whether to style output with ANSI colours.
	Verbose bool         // Whether to prefix records with a timestamp.
}

// A [slog.Handler] writing one unbuffered line per record.
//
// Formatting is delegated to a charmbracelet logger, which styles levels and
// keys with lipgloss. The handler only adds the switches the CLI flips after
// flag parsing.
type Handler struct {
	*log.Logger
}

var _ slog.Handler = (*Handler)(nil)

// Creates a handler writing to w.
func NewHandler(w io.Writer, opts *HandlerOptions) *Handler {
	if opts == nil {
		opts = &HandlerOptions{}
	}

	level := log.InfoLevel
	if opts.Level != nil {
		level = log.Level(opts.Level.Level())
	}

	h := &Handler{Logger: log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: opts.Verbose,
		TimeFormat:      timeLayout,
	})}
	h.SetColor(opts.Color)
	return h
}

// Sets the minimum level.
func (h *Handler) SetLevel(level slog.Level) {
	h.Logger.SetLevel(log.Level(level))
}

// Enables or disables colour.
func (h *Handler) SetColor(enabled bool) {
	if enabled {
		h.SetColorProfile(termenv.ANSI256)
		return
	}
	h.SetColorProfile(termenv.Ascii)
}

// Enables or disables timestamps.
func (h *Handler) SetVerbose(enabled bool) {
	h.SetReportTimestamp(enabled)
}
