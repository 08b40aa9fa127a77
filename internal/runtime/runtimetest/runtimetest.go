// Package runtimetest provides an in-memory [runtime.Runtime] for tests.
//
// Images are a set of tags, containers are records, and commands are answered
// by a [Handler] instead of being executed. Every call is recorded so tests
// can assert on what the code under test asked the engine to do.
package runtimetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jarvis-ci/jarvis/internal/runtime"
)

// Canned outcome of one command.
type Result struct {
	Output   []byte // Bytes streamed as the command's output.
	ExitCode int    // Exit code reported by Wait.
	Err      error  // Error returned by Exec instead of a process.
}

// Decides the outcome of a command.
type Handler func(opts runtime.ExecOptions) Result

// Answers commands by their last argument (the script for "sh -c script").
// Unknown scripts succeed with no output.
func Scripts(results map[string]Result) Handler {
	return func(opts runtime.ExecOptions) Result {
		if len(opts.Args) == 0 {
			return Result{}
		}
		return results[opts.Args[len(opts.Args)-1]]
	}
}

// In-memory runtime. The zero value is not usable; call [New].
type Runtime struct {
	mu sync.Mutex

	images     map[string]bool
	containers []*Container
	builds     []runtime.BuildOptions
	prunes     int
	closed     bool

	Handler  Handler // Answers Exec calls. Nil succeeds silently.
	BuildErr error   // Returned by BuildImage when set; the image is not created.
	StartErr error   // Returned by StartContainer when set.
	StopErr  error   // Returned by Container.Stop when set; the container still stops.
	PruneErr error   // Returned by PruneContainers when set.
}

var _ runtime.Runtime = (*Runtime)(nil)

// Creates an empty runtime.
func New() *Runtime {
	return &Runtime{images: make(map[string]bool)}
}

// Adds an image tag as if it had been built earlier.
func (r *Runtime) AddImage(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[tag] = true
}

// Returns the builds requested so far.
func (r *Runtime) Builds() []runtime.BuildOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]runtime.BuildOptions(nil), r.builds...)
}

// Returns every container started so far.
func (r *Runtime) Containers() []*Container {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Container(nil), r.containers...)
}

// Returns the number of containers that are running and not pruned.
func (r *Runtime) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.containers {
		if c.running {
			n++
		}
	}
	return n
}

// Returns the number of PruneContainers calls.
func (r *Runtime) Prunes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prunes
}

// Reports whether Close was called.
func (r *Runtime) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Implements [runtime.Runtime].
func (r *Runtime) ImageExists(ctx context.Context, tag string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.images[tag], nil
}

// Implements [runtime.Runtime].
func (r *Runtime) BuildImage(ctx context.Context, opts runtime.BuildOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.builds = append(r.builds, opts)
	if r.BuildErr != nil {
		return r.BuildErr
	}
	r.images[opts.Tag] = true
	return nil
}

// Implements [runtime.Runtime].
func (r *Runtime) StartContainer(ctx context.Context, opts runtime.ContainerOptions) (runtime.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.StartErr != nil {
		return nil, r.StartErr
	}
	if !r.images[opts.Image] {
		return nil, fmt.Errorf("%w: image %s not found", runtime.ErrRuntime, opts.Image)
	}

	c := &Container{
		rt:      r,
		id:      fmt.Sprintf("ctr-%d", len(r.containers)+1),
		opts:    opts,
		labels:  opts.AllLabels(),
		running: true,
	}
	r.containers = append(r.containers, c)
	return c, nil
}

// Implements [runtime.Runtime].
func (r *Runtime) PruneContainers(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prunes++
	if r.PruneErr != nil {
		return r.PruneErr
	}
	for _, c := range r.containers {
		if !c.running && c.labels[runtime.ManagedLabel] == "true" {
			c.pruned = true
		}
	}
	return nil
}

// Implements [runtime.Runtime].
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// A recorded container.
type Container struct {
	rt      *Runtime
	id      string
	opts    runtime.ContainerOptions
	labels  map[string]string
	execs   []runtime.ExecOptions
	stops   []time.Duration
	running bool
	pruned  bool
}

var _ runtime.Container = (*Container)(nil)

// Implements [runtime.Container].
func (c *Container) ID() string {
	return c.id
}

// Returns the options the container was started with.
func (c *Container) Options() runtime.ContainerOptions {
	return c.opts
}

// Returns the commands executed so far.
func (c *Container) Execs() []runtime.ExecOptions {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	return append([]runtime.ExecOptions(nil), c.execs...)
}

// Returns the timeout of every Stop call.
func (c *Container) Stops() []time.Duration {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	return append([]time.Duration(nil), c.stops...)
}

// Reports whether the container is running.
func (c *Container) Running() bool {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	return c.running
}

// Reports whether the container was removed by a prune.
func (c *Container) Pruned() bool {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	return c.pruned
}

// Implements [runtime.Container].
func (c *Container) Exec(ctx context.Context, opts runtime.ExecOptions) (runtime.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.rt.mu.Lock()
	if !c.running {
		c.rt.mu.Unlock()
		return nil, fmt.Errorf("%w: container %s is not running", runtime.ErrRuntime, c.id)
	}
	c.execs = append(c.execs, opts)
	handler := c.rt.Handler
	c.rt.mu.Unlock()

	var res Result
	if handler != nil {
		res = handler(opts)
	}
	if res.Err != nil {
		return nil, res.Err
	}

	return &Process{out: bytes.NewReader(res.Output), code: res.ExitCode}, nil
}

// Implements [runtime.Container].
func (c *Container) Stop(ctx context.Context, timeout time.Duration) error {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()

	c.stops = append(c.stops, timeout)
	c.running = false
	return c.rt.StopErr
}

// A finished command with canned output.
type Process struct {
	out  io.Reader
	code int
}

var _ runtime.Process = (*Process)(nil)

// Implements [runtime.Process].
func (p *Process) Output() io.Reader {
	return p.out
}

// Implements [runtime.Process].
func (p *Process) Wait(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return p.code, nil
}
