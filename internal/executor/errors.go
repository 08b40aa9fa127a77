package executor

import (
	"errors"
	"fmt"
)

var (
	ErrExecution = errors.New("stage execution failed")
)

// A stage that exited with a non-zero code.
//
// Implements [fault.ExitCoder] so the process exits with the stage's code.
type StageError struct {
	Stage string // Name of the failed stage.
	Code  int    // Exit code of its script.
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed with exit code %d", e.Stage, e.Code)
}

// Returns the exit code of the failed stage's script.
func (e *StageError) ExitCode() int {
	return e.Code
}
