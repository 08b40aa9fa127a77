package docker

import (
	"context"
	"io"
	"math"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/jarvis-ci/jarvis/internal/fault"
	"github.com/jarvis-ci/jarvis/internal/runtime"
)

// Interval between exec inspections while waiting for an exit code.
const inspectInterval = 50 * time.Millisecond

// A running Docker container.
type Container struct {
	api dockerAPI
	id  string
}

var _ runtime.Container = (*Container)(nil)

// Implements [runtime.Container].
func (c *Container) ID() string {
	return c.id
}

// Implements [runtime.Container].
//
// The exec is created without a TTY, so the engine multiplexes stdout and
// stderr on the attached connection. A goroutine demultiplexes both into one
// pipe, preserving frame order.
func (c *Container) Exec(ctx context.Context, opts runtime.ExecOptions) (runtime.Process, error) {
	created, err := c.api.ContainerExecCreate(ctx, c.id, container.ExecOptions{
		Cmd:          opts.Args,
		Env:          opts.Env,
		WorkingDir:   opts.WorkingDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fault.Wrap(runtime.ErrRuntime, err)
	}

	hijacked, err := c.api.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fault.Wrap(runtime.ErrRuntime, err)
	}

	pr, pw := io.Pipe()
	stop := context.AfterFunc(ctx, hijacked.Close)
	go func() {
		defer stop()
		defer hijacked.Close()
		_, err := stdcopy.StdCopy(pw, pw, hijacked.Reader)
		pw.CloseWithError(err)
	}()

	return &process{api: c.api, id: created.ID, output: pr}, nil
}

// Implements [runtime.Container].
//
// The engine sends SIGTERM and kills the container once timeout elapses.
func (c *Container) Stop(ctx context.Context, timeout time.Duration) error {
	seconds := int(math.Ceil(timeout.Seconds()))
	err := c.api.ContainerStop(ctx, c.id, container.StopOptions{Timeout: &seconds})
	if err != nil && !errdefs.IsNotFound(err) {
		return fault.Wrap(runtime.ErrRuntime, err)
	}
	return nil
}

// A docker exec instance.
type process struct {
	api    dockerAPI
	id     string
	output io.Reader
}

// Implements [runtime.Process].
func (p *process) Output() io.Reader {
	return p.output
}

// Implements [runtime.Process].
//
// The attached stream may close slightly before the engine records the exit,
// so the exec is inspected until it is no longer running.
func (p *process) Wait(ctx context.Context) (int, error) {
	for {
		inspect, err := p.api.ContainerExecInspect(ctx, p.id)
		if err != nil {
			return 0, fault.Wrap(runtime.ErrRuntime, err)
		}
		if !inspect.Running {
			return inspect.ExitCode, nil
		}

		select {
		case <-ctx.Done():
			return 0, fault.Wrap(runtime.ErrRuntime, ctx.Err())
		case <-time.After(inspectInterval):
		}
	}
}
