package runtime

import (
	"errors"
	"strings"
)

var (
	ErrRuntime = errors.New("runtime error")
	ErrBuild   = errors.New("image build failed")
)

// Returned by [Runtime.BuildImage] when the engine rejected the build.
//
// Log holds every line the build produced, in order, so callers can surface
// the full context of the failure.
type BuildError struct {
	Log   []string // Build output, one entry per line.
	Cause error    // Error reported by the engine.
}

func (e *BuildError) Error() string {
	if e.Cause == nil {
		return ErrBuild.Error()
	}
	return ErrBuild.Error() + ": " + e.Cause.Error()
}

// Unwrap exposes [ErrBuild] and the engine's error.
func (e *BuildError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrBuild}
	}
	return []error{ErrBuild, e.Cause}
}

// Appends output to the log, splitting on newlines and dropping blank lines.
func (e *BuildError) AppendLog(output string) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		e.Log = append(e.Log, line)
	}
}
