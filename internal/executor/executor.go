package executor

import (
	"context"
	"log/slog"

	"github.com/jarvis-ci/jarvis/internal/fault"
	"github.com/jarvis-ci/jarvis/internal/pipeline"
)

// Executes a stage's script and reports its exit code.
//
// The error is reserved for failures to run the script at all.
type Runner interface {
	Run(ctx context.Context, script string) (int, error)
}

// Echoes what is about to run.
type Echo interface {
	Rule()
	Script(script string)
}

// Controls a pipeline run.
type Options struct {
	Only []string // Restricts the run to these stages. Empty runs all.
	Echo Echo     // Receives the separator and script of each stage. Nil echoes nothing.
}

// Runs the stages of p in order through runner.
//
// Returns a [*StageError] for the first stage that exits non-zero, without
// running the rest. Failures of the runner itself are wrapped in
// [ErrExecution]. Unknown names in [Options.Only] fail before any stage runs.
func Run(ctx context.Context, p *pipeline.Pipeline, runner Runner, opts Options) error {
	p, err := p.Select(opts.Only...)
	if err != nil {
		return err
	}

	echo := opts.Echo
	if echo == nil {
		echo = silent{}
	}

	for _, stage := range p.Stages {
		slog.Info("executing stage", "stage", stage.Name)
		echo.Rule()
		echo.Script(stage.Script)

		code, err := runner.Run(ctx, stage.Script)
		if err != nil {
			return fault.Wrapf(ErrExecution, "stage %s: %w", stage.Name, err)
		}

		if code != 0 {
			slog.Error("stage failed", "stage", stage.Name, "code", code)
			return &StageError{Stage: stage.Name, Code: code}
		}

		slog.Info("stage succeeded", "stage", stage.Name)
	}

	slog.Info("as always, a great pleasure watching you work", "stages", len(p.Stages))
	return nil
}

type silent struct{}

func (silent) Rule()         {}
func (silent) Script(string) {}
