package containerd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"sort"
	"strings"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"github.com/distribution/reference"
	"github.com/google/uuid"
	"github.com/jarvis-ci/jarvis/internal/fault"
	"github.com/jarvis-ci/jarvis/internal/runtime"
)

const (

	// Default containerd socket address.
	DefaultAddress = "/run/containerd/containerd.sock"

	// Default namespace for images and containers. Matches nerdctl's default
	// so images it builds are visible without extra configuration.
	DefaultNamespace = "default"

	// Default snapshotter for container filesystems.
	DefaultSnapshotter = "overlayfs"

	// Default nerdctl binary, resolved through PATH.
	DefaultNerdctl = "nerdctl"

	// OCI runtime shim for running containers.
	ociRuntime = "io.containerd.runc.v2"
)

// Holds runtime configuration. Empty fields use the defaults above.
type Config struct {
	Address     string // Containerd socket address.
	Namespace   string // Namespace scoping images and containers.
	Snapshotter string // Snapshotter for container filesystems.
	Nerdctl     string // Path to the nerdctl binary used for builds.
}

// Fills unset fields with their defaults.
func (c Config) withDefaults() Config {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.Snapshotter == "" {
		c.Snapshotter = DefaultSnapshotter
	}
	if c.Nerdctl == "" {
		c.Nerdctl = DefaultNerdctl
	}
	return c
}

// Containerd-backed implementation of [runtime.Runtime].
type Runtime struct {
	client *containerd.Client // Containerd client for managing containers and images.
	cfg    Config
}

var _ runtime.Runtime = (*Runtime)(nil)

// Creates a runtime connected to the containerd socket.
//
// All operations are scoped to the configured namespace. The runtime must be
// closed when no longer needed.
func New(cfg Config) (*Runtime, error) {
	cfg = cfg.withDefaults()

	client, err := containerd.New(cfg.Address, containerd.WithDefaultNamespace(cfg.Namespace))
	if err != nil {
		return nil, fault.Wrap(runtime.ErrRuntime, err)
	}
	return &Runtime{client: client, cfg: cfg}, nil
}

// Closes the containerd client connection.
func (rt *Runtime) Close() error {
	return rt.client.Close()
}

// Implements [runtime.Runtime].
func (rt *Runtime) ImageExists(ctx context.Context, tag string) (bool, error) {
	ref, err := normalizeRef(tag)
	if err != nil {
		return false, fault.Wrap(runtime.ErrRuntime, err)
	}

	if _, err := rt.client.ImageService().Get(ctx, ref); err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fault.Wrap(runtime.ErrRuntime, err)
	}
	return true, nil
}

// Implements [runtime.Runtime].
//
// Runs "nerdctl build" against the same socket, namespace and snapshotter.
// Combined output is logged at debug level while the build runs and returned
// in a [*runtime.BuildError] when nerdctl exits non-zero.
func (rt *Runtime) BuildImage(ctx context.Context, opts runtime.BuildOptions) error {
	if _, err := normalizeRef(opts.Tag); err != nil {
		return fault.Wrap(runtime.ErrRuntime, err)
	}

	cmd := exec.CommandContext(ctx, rt.cfg.Nerdctl, rt.buildArgs(opts)...)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	slog.Debug("running nerdctl", "args", cmd.Args)

	if err := cmd.Start(); err != nil {
		return &runtime.BuildError{Cause: err}
	}
	go func() {
		pw.CloseWithError(cmd.Wait())
	}()

	buildErr := &runtime.BuildError{}
	br := bufio.NewReader(pr)
	for {
		line, err := br.ReadString('\n')
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			slog.Debug("build", "output", line)
			buildErr.AppendLog(line)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			buildErr.Cause = buildCause(ctx, err)
			return buildErr
		}
	}
}

// Converts the error nerdctl exited with into a build failure cause.
//
// The exit status of nerdctl is reported in the message only, so the process
// exits 1 for every failed build regardless of how nerdctl terminated.
func buildCause(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("nerdctl build: %v", err)
}

// Assembles the nerdctl command line for a build.
func (rt *Runtime) buildArgs(opts runtime.BuildOptions) []string {
	args := []string{
		"--address", rt.cfg.Address,
		"--namespace", rt.cfg.Namespace,
		"--snapshotter", rt.cfg.Snapshotter,
		"build",
		"--tag", opts.Tag,
		"--file", filepath.Join(opts.ContextDir, opts.Recipe),
	}

	keys := make([]string, 0, len(opts.Labels))
	for k := range opts.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--label", k+"="+opts.Labels[k])
	}

	return append(args, opts.ContextDir)
}

// Implements [runtime.Runtime].
//
// The image is unpacked into the snapshotter if needed, then a container is
// created with a fresh snapshot and its idle task is started. Any stale
// container with the same ID is removed first.
func (rt *Runtime) StartContainer(ctx context.Context, opts runtime.ContainerOptions) (runtime.Container, error) {
	ref, err := normalizeRef(opts.Image)
	if err != nil {
		return nil, fault.Wrap(runtime.ErrRuntime, err)
	}

	id := opts.Name
	if id == "" {
		id = "jarvis-" + uuid.NewString()
	}

	c := &Container{
		client:   rt.client,
		id:       id,
		platform: defaultPlatform(),
	}

	c.remove(ctx)

	image, err := rt.resolveImage(ctx, ref, c.platform)
	if err != nil {
		return nil, fault.Wrap(runtime.ErrRuntime, err)
	}

	unpacked, err := image.IsUnpacked(ctx, rt.cfg.Snapshotter)
	if err != nil {
		return nil, fault.Wrap(runtime.ErrRuntime, err)
	}
	if !unpacked {
		if err := image.Unpack(ctx, rt.cfg.Snapshotter); err != nil {
			return nil, fault.Wrap(runtime.ErrRuntime, err)
		}
	}

	ctr, err := c.create(ctx, image, rt.cfg.Snapshotter, opts)
	if err != nil {
		return nil, fault.Wrap(runtime.ErrRuntime, err)
	}

	if err := c.startTask(ctx, ctr); err != nil {
		ctr.Delete(context.WithoutCancel(ctx), containerd.WithSnapshotCleanup)
		return nil, fault.Wrap(runtime.ErrRuntime, err)
	}

	slog.Debug("container started", "id", id, "image", ref)
	return c, nil
}

// Implements [runtime.Runtime].
//
// containerd has no prune operation. Managed containers are listed by label
// and those without a running task are deleted with their snapshots.
func (rt *Runtime) PruneContainers(ctx context.Context) error {
	ctrs, err := rt.client.Containers(ctx, managedFilter())
	if err != nil {
		return fault.Wrap(runtime.ErrRuntime, err)
	}

	pruned := 0
	for _, ctr := range ctrs {
		if task, err := ctr.Task(ctx, nil); err == nil {
			status, err := task.Status(ctx)
			if err == nil && status.Status == containerd.Running {
				continue
			}
			task.Delete(ctx, containerd.WithProcessKill)
		}
		if err := ctr.Delete(ctx, containerd.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
			return fault.Wrap(runtime.ErrRuntime, err)
		}
		pruned++
	}

	slog.Debug("containers pruned", "count", pruned)
	return nil
}

// Looks up a tagged image and selects the manifest for the given platform.
func (rt *Runtime) resolveImage(ctx context.Context, ref, platform string) (containerd.Image, error) {
	p, err := platforms.Parse(platform)
	if err != nil {
		return nil, err
	}

	img, err := rt.client.ImageService().Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	return containerd.NewImageWithPlatform(rt.client, img, platforms.Only(p)), nil
}

// Expands a tag into the fully qualified reference nerdctl stores.
func normalizeRef(tag string) (string, error) {
	named, err := reference.ParseDockerRef(tag)
	if err != nil {
		return "", err
	}
	return named.String(), nil
}

// Returns the containerd filter selecting managed containers.
func managedFilter() string {
	return `labels."` + runtime.ManagedLabel + `"==true`
}

// Returns the default OCI platform for the host architecture.
func defaultPlatform() string {
	return "linux/" + goruntime.GOARCH
}
