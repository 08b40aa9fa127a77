package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/jarvis-ci/jarvis/internal"
	"github.com/jarvis-ci/jarvis/internal/buildlog"
	"github.com/jarvis-ci/jarvis/internal/cli"
	"github.com/jarvis-ci/jarvis/internal/executor"
	"github.com/jarvis-ci/jarvis/internal/fault"
)

// The entry point for jarvis.
//
// Initializes logging, executes the root command and exits with the status
// derived from its error: 0 on success, the failing stage's exit code when a
// stage fails, 130 when interrupted and 1 otherwise.
func main() {
	slog.SetDefault(logger())

	slog.Debug("build", "version", internal.VersionString())

	slog.Debug("jarvis is running",
		"pid", os.Getpid(),
		"cwd", cwd(),
		"args", os.Args,
	)

	if err := cli.Execute(); err != nil {
		var stageErr *executor.StageError
		if !errors.As(err, &stageErr) {
			slog.Error(err.Error())
		}
		os.Exit(fault.ExitCode(err))
	}
}

// Creates a logger seeded from build-time linker flags.
//
// The handler is reconfigured after flag parsing via cli.Execute.
func logger() *slog.Logger {
	return slog.New(buildlog.NewHandler(os.Stderr, &buildlog.HandlerOptions{
		Level:   internal.LogLevel(),
		Verbose: internal.IsVerbose(),
	}))
}

// Returns the current working directory or "(unknown)".
func cwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "(unknown)"
	}
	return cwd
}
