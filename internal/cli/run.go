package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/jarvis-ci/jarvis/internal/buildlog"
	"github.com/jarvis-ci/jarvis/internal/executor"
	"github.com/jarvis-ci/jarvis/internal/image"
	"github.com/jarvis-ci/jarvis/internal/pipeline"
	"github.com/jarvis-ci/jarvis/internal/runtime"
	"github.com/jarvis-ci/jarvis/internal/session"
)

// Extra time granted to teardown beyond the container's stop timeout.
const teardownSlack = 30 * time.Second

// Represents the 'jarvis run' command.
type RunCmd struct {
	Jarvisfile string       `short:"f" help:"Pipeline definition. Defaults to Jarvisfile in the workspace." placeholder:"PATH" env:"JARVIS_JARVISFILE"`
	Only       []string     `help:"Run only these stages, in pipeline order." placeholder:"STAGE"`
	Project    ProjectFlags `embed:""`
	Runtime    RuntimeFlags `embed:""`
	Session    SessionFlags `embed:""`
}

// Connects to the engine selected by the flags. Replaced in tests.
var openRuntime = func(f *RuntimeFlags) (runtime.Runtime, error) {
	return f.open()
}

// Executes the run command.
//
// Configuration problems are reported before the engine is contacted. Once a
// container has been started it is torn down on every exit path, including
// cancellation.
func (c *RunCmd) Run(ctx context.Context, console *buildlog.Console) (err error) {
	ws, err := c.Project.workspace()
	if err != nil {
		return err
	}
	slog.Info("workspace", "dir", ws.Dir, "commit", ws.ShortCommit(), "branch", ws.Branch)

	p, err := pipeline.Load(resolvePath(c.Jarvisfile, ws.Dir, pipeline.DefaultFile))
	if err != nil {
		return err
	}
	if _, err := p.Select(c.Only...); err != nil {
		return err
	}

	rt, err := openRuntime(&c.Runtime)
	if err != nil {
		return err
	}
	defer rt.Close()

	tag, err := image.NewProvisioner(rt).Ensure(ctx, c.Project.recipe(ws), c.Project.Context)
	if err != nil {
		return err
	}

	cfg, err := c.Session.config(tag, ws.Dir, console)
	if err != nil {
		return err
	}

	s := session.New(rt, cfg)
	defer func() {
		if teardownErr := teardown(ctx, s, cfg.StopTimeout); err == nil {
			err = teardownErr
		}
	}()

	return executor.Run(ctx, p, s, executor.Options{Only: c.Only, Echo: console})
}

// Tears down s on a context that survives cancellation of ctx.
//
// A teardown failure is only returned when the pipeline itself succeeded.
func teardown(ctx context.Context, s *session.Session, stopTimeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout+teardownSlack)
	defer cancel()
	return s.Teardown(ctx)
}
