package containerd

import (
	"context"
	"log/slog"
	"syscall"
	"time"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/errdefs"
	"github.com/jarvis-ci/jarvis/internal/fault"
	"github.com/jarvis-ci/jarvis/internal/runtime"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// A running container backed by containerd.
type Container struct {
	client   *containerd.Client // Containerd client for managing the container.
	id       string             // Containerd container ID.
	platform string             // OCI platform (e.g., "linux/amd64").
}

var _ runtime.Container = (*Container)(nil)

// Implements [runtime.Container].
func (c *Container) ID() string {
	return c.id
}

// Implements [runtime.Container].
//
// The task receives SIGTERM. If it has not exited when timeout elapses it is
// killed with SIGKILL. The task is deleted afterwards; the container record and
// its snapshot stay until pruned. Stopping a container without a task is not an
// error.
func (c *Container) Stop(ctx context.Context, timeout time.Duration) error {
	task, err := c.loadTask(ctx)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fault.Wrap(runtime.ErrRuntime, err)
	}

	statusC, err := task.Wait(ctx)
	if err != nil {
		return fault.Wrap(runtime.ErrRuntime, err)
	}

	if err := task.Kill(ctx, syscall.SIGTERM); err != nil && !errdefs.IsNotFound(err) {
		return fault.Wrap(runtime.ErrRuntime, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-statusC:
	case <-timer.C:
		slog.Debug("container did not stop in time, killing", "id", c.id, "timeout", timeout)
		if err := task.Kill(ctx, syscall.SIGKILL); err != nil && !errdefs.IsNotFound(err) {
			return fault.Wrap(runtime.ErrRuntime, err)
		}
		<-statusC
	case <-ctx.Done():
		return fault.Wrap(runtime.ErrRuntime, ctx.Err())
	}

	if _, err := task.Delete(ctx); err != nil && !errdefs.IsNotFound(err) {
		return fault.Wrap(runtime.ErrRuntime, err)
	}
	return nil
}

// Creates the containerd container with the workspace mounted.
//
// The idle command replaces the image's entrypoint so the task stays alive
// for subsequent execs.
func (c *Container) create(ctx context.Context, image containerd.Image, snapshotter string, opts runtime.ContainerOptions) (containerd.Container, error) {
	return c.client.NewContainer(ctx, c.id,
		containerd.WithImage(image),
		containerd.WithSnapshotter(snapshotter),
		containerd.WithNewSnapshot(c.id, image),
		containerd.WithRuntime(ociRuntime, nil),
		containerd.WithContainerLabels(opts.AllLabels()),
		containerd.WithNewSpec(
			oci.WithDefaultSpecForPlatform(c.platform),
			oci.WithImageConfig(image),
			oci.WithHostNamespace(specs.NetworkNamespace),
			oci.WithHostResolvconf,
			oci.WithMounts([]specs.Mount{workspaceMount(opts)}),
			oci.WithProcessCwd(opts.MountPoint),
			oci.WithProcessArgs(opts.IdleCommand()...),
		),
	)
}

// Returns the read-write bind mount of the workspace.
func workspaceMount(opts runtime.ContainerOptions) specs.Mount {
	return specs.Mount{
		Destination: opts.MountPoint,
		Type:        "bind",
		Source:      opts.Workspace,
		Options:     []string{"rbind", "rw"},
	}
}

// Starts the container's long-running task with no attached IO.
func (c *Container) startTask(ctx context.Context, ctr containerd.Container) error {
	task, err := ctr.NewTask(ctx, cio.NullIO)
	if err != nil {
		return err
	}
	if err := task.Start(ctx); err != nil {
		task.Delete(ctx)
		return err
	}
	return nil
}

// Loads the container's task.
func (c *Container) loadTask(ctx context.Context) (containerd.Task, error) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return nil, err
	}
	return ctr.Task(ctx, nil)
}

// Removes an existing container with this ID, if one exists.
//
// Any running task is killed and the container is deleted along with its
// snapshot. This is a no-op when no container with the ID is found.
func (c *Container) remove(ctx context.Context) {
	existing, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return
	}
	if task, err := existing.Task(ctx, nil); err == nil {
		task.Kill(ctx, syscall.SIGKILL)
		task.Delete(ctx, containerd.WithProcessKill)
	}
	existing.Delete(ctx, containerd.WithSnapshotCleanup)
}
