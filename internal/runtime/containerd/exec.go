package containerd

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/jarvis-ci/jarvis/internal/fault"
	"github.com/jarvis-ci/jarvis/internal/runtime"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Sequence counter for generating unique exec process identifiers.
var execSeq uint64

// Returns a unique exec process identifier.
func nextExecID() string {
	return fmt.Sprintf("jarvis-exec-%d", atomic.AddUint64(&execSeq, 1))
}

// Implements [runtime.Container].
//
// The process is attached to the running task as an additional exec. Its
// stdout and stderr are both connected to one pipe returned by
// [runtime.Process.Output]; the pipe is closed once the process has exited and
// all of its output has been copied.
func (c *Container) Exec(ctx context.Context, opts runtime.ExecOptions) (runtime.Process, error) {
	task, err := c.loadTask(ctx)
	if err != nil {
		return nil, fault.Wrap(runtime.ErrRuntime, err)
	}

	pspec, err := c.buildProcessSpec(ctx, opts)
	if err != nil {
		return nil, fault.Wrap(runtime.ErrRuntime, err)
	}

	pr, pw := io.Pipe()

	process, err := task.Exec(ctx, nextExecID(), pspec, cio.NewCreator(
		cio.WithStreams(nil, pw, pw),
	))
	if err != nil {
		pw.Close()
		return nil, fault.Wrap(runtime.ErrRuntime, err)
	}

	statusC, err := process.Wait(ctx)
	if err != nil {
		process.Delete(ctx)
		pw.Close()
		return nil, fault.Wrap(runtime.ErrRuntime, err)
	}

	if err := process.Start(ctx); err != nil {
		process.Delete(ctx)
		pw.Close()
		return nil, fault.Wrap(runtime.ErrRuntime, err)
	}

	p := &execProcess{output: pr, done: make(chan struct{})}
	go p.await(ctx, process, statusC, pw)

	return p, nil
}

// Builds an OCI process spec for running a command inside the container.
//
// The base values are copied from the container's own OCI spec, then env and
// workdir are overridden if provided.
func (c *Container) buildProcessSpec(ctx context.Context, opts runtime.ExecOptions) (*specs.Process, error) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return nil, err
	}

	spec, err := ctr.Spec(ctx)
	if err != nil {
		return nil, err
	}

	pspec := *spec.Process
	pspec.Terminal = false
	pspec.Args = opts.Args

	if len(opts.Env) > 0 {
		pspec.Env = runtime.MergeEnv(pspec.Env, opts.Env)
	}
	if opts.WorkingDir != "" {
		pspec.Cwd = opts.WorkingDir
	}

	return &pspec, nil
}

// An exec process attached to a containerd task.
type execProcess struct {
	output io.Reader
	done   chan struct{}
	code   int
	err    error
}

// Waits for the exit status, drains IO, deletes the process and closes the
// output pipe. A cancelled context kills the process.
func (p *execProcess) await(ctx context.Context, process containerd.Process, statusC <-chan containerd.ExitStatus, pw *io.PipeWriter) {
	defer close(p.done)

	cleanup := context.WithoutCancel(ctx)

	var status containerd.ExitStatus
	select {
	case status = <-statusC:
	case <-ctx.Done():
		process.Kill(cleanup, syscall.SIGKILL)
		status = <-statusC
		p.err = fault.Wrap(runtime.ErrRuntime, ctx.Err())
	}

	if pio := process.IO(); pio != nil {
		pio.Wait()
	}
	process.Delete(cleanup)
	pw.Close()

	if p.err != nil {
		return
	}

	code, _, err := status.Result()
	if err != nil {
		p.err = fault.Wrap(runtime.ErrRuntime, err)
		return
	}
	p.code = int(code)
}

// Implements [runtime.Process].
func (p *execProcess) Output() io.Reader {
	return p.output
}

// Implements [runtime.Process].
func (p *execProcess) Wait(ctx context.Context) (int, error) {
	select {
	case <-p.done:
		return p.code, p.err
	case <-ctx.Done():
		return 0, fault.Wrap(runtime.ErrRuntime, ctx.Err())
	}
}
