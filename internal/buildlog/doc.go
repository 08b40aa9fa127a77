// Package buildlog renders pipeline events and command output.
//
// [Handler] is a [log/slog.Handler] backed by charmbracelet/log. It formats
// each record on a single line and writes it to its stream immediately, so
// progress reaches the terminal while a stage is still running. The handler is installed once in main and reconfigured after
// flag parsing:
//
//	handler := buildlog.NewHandler(os.Stderr, nil)
//	slog.SetDefault(slog.New(handler))
//	...
//	handler.SetLevel(slog.LevelDebug)
//
// [Console] carries everything that is not an event: stage separators, the
// echoed script, and the verbatim output of commands running in the container.
package buildlog
