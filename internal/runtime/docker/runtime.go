package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/distribution/reference"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/google/uuid"
	"github.com/jarvis-ci/jarvis/internal/fault"
	"github.com/jarvis-ci/jarvis/internal/runtime"
	archive "github.com/moby/go-archive"
	"github.com/moby/patternmatcher/ignorefile"
)

// Name of the file listing paths excluded from the build context.
const dockerignore = ".dockerignore"

// Holds client configuration.
type Config struct {
	Host string // Daemon address (e.g. "unix:///var/run/docker.sock"). Empty uses DOCKER_HOST or the platform default.
}

// Docker-backed implementation of [runtime.Runtime].
type Runtime struct {
	api dockerAPI
}

var _ runtime.Runtime = (*Runtime)(nil)

// Creates a runtime talking to the Docker daemon.
//
// The API version is negotiated with the daemon on first use.
func New(cfg Config) (*Runtime, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fault.Wrap(runtime.ErrRuntime, err)
	}
	return &Runtime{api: cli}, nil
}

// Closes the client connection.
func (rt *Runtime) Close() error {
	return rt.api.Close()
}

// Implements [runtime.Runtime].
func (rt *Runtime) ImageExists(ctx context.Context, tag string) (bool, error) {
	if _, err := rt.api.ImageInspect(ctx, tag); err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fault.Wrap(runtime.ErrRuntime, err)
	}
	return true, nil
}

// Implements [runtime.Runtime].
//
// The context directory is streamed as a tarball, excluding the entries listed
// in its .dockerignore. Intermediate containers are always removed. Build
// output is decoded from the daemon's JSON message stream and logged at debug
// level; on failure the whole log is returned in a [*runtime.BuildError].
func (rt *Runtime) BuildImage(ctx context.Context, opts runtime.BuildOptions) error {
	if _, err := reference.ParseNormalizedNamed(opts.Tag); err != nil {
		return fault.Wrap(runtime.ErrRuntime, err)
	}

	excludes, err := readIgnore(opts.ContextDir)
	if err != nil {
		return fault.Wrap(runtime.ErrRuntime, err)
	}

	tarball, err := archive.TarWithOptions(opts.ContextDir, &archive.TarOptions{
		ExcludePatterns: excludes,
	})
	if err != nil {
		return fault.Wrap(runtime.ErrRuntime, err)
	}
	defer tarball.Close()

	resp, err := rt.api.ImageBuild(ctx, tarball, types.ImageBuildOptions{
		Tags:        []string{opts.Tag},
		Dockerfile:  filepath.ToSlash(opts.Recipe),
		Labels:      opts.Labels,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return &runtime.BuildError{Cause: err}
	}
	defer resp.Body.Close()

	return readBuildOutput(resp.Body)
}

// Decodes the build's JSON message stream.
//
// Returns a [*runtime.BuildError] holding every line seen when the stream
// reports an error or cannot be decoded.
func readBuildOutput(r io.Reader) error {
	buildErr := &runtime.BuildError{}
	dec := json.NewDecoder(r)

	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			buildErr.Cause = err
			return buildErr
		}

		if msg.Stream != "" {
			for _, line := range splitLines(msg.Stream) {
				slog.Debug("build", "output", line)
			}
			buildErr.AppendLog(msg.Stream)
		}
		if msg.Status != "" {
			buildErr.AppendLog(msg.Status)
		}
		if msg.Error != nil {
			buildErr.AppendLog(msg.Error.Message)
			buildErr.Cause = msg.Error
			return buildErr
		}
	}

	return nil
}

// Reads the exclusion patterns of a context directory, if it has any.
func readIgnore(contextDir string) ([]string, error) {
	f, err := os.Open(filepath.Join(contextDir, dockerignore))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	return ignorefile.ReadAll(f)
}

// Implements [runtime.Runtime].
//
// The workspace is bind-mounted read-write at the mount point, which is also
// the working directory. The container is not auto-removed: its removal is
// left to [Runtime.PruneContainers] after it stops.
func (rt *Runtime) StartContainer(ctx context.Context, opts runtime.ContainerOptions) (runtime.Container, error) {
	name := opts.Name
	if name == "" {
		name = "jarvis-" + uuid.NewString()
	}

	created, err := rt.api.ContainerCreate(ctx,
		&container.Config{
			Image:      opts.Image,
			Cmd:        opts.IdleCommand(),
			WorkingDir: opts.MountPoint,
			Labels:     opts.AllLabels(),
		},
		&container.HostConfig{
			Binds: []string{fmt.Sprintf("%s:%s:rw", opts.Workspace, opts.MountPoint)},
		},
		nil, nil, name,
	)
	if err != nil {
		return nil, fault.Wrap(runtime.ErrRuntime, err)
	}

	for _, warning := range created.Warnings {
		slog.Warn("container created with warning", "id", shortID(created.ID), "warning", warning)
	}

	if err := rt.api.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		if rmErr := rt.api.ContainerRemove(context.WithoutCancel(ctx), created.ID, container.RemoveOptions{Force: true}); rmErr != nil && !errdefs.IsNotFound(rmErr) {
			slog.Warn("failed to remove container after failed start", "id", shortID(created.ID), "error", rmErr)
		}
		return nil, fault.Wrap(runtime.ErrRuntime, err)
	}

	slog.Debug("container started", "id", shortID(created.ID), "name", name, "image", opts.Image)

	return &Container{api: rt.api, id: created.ID}, nil
}

// Implements [runtime.Runtime].
func (rt *Runtime) PruneContainers(ctx context.Context) error {
	report, err := rt.api.ContainersPrune(ctx, filters.NewArgs(
		filters.Arg("label", runtime.ManagedLabel+"=true"),
	))
	if err != nil {
		return fault.Wrap(runtime.ErrRuntime, err)
	}

	slog.Debug("containers pruned", "count", len(report.ContainersDeleted), "reclaimed", report.SpaceReclaimed)
	return nil
}

// Splits a chunk of build output into non-empty lines.
func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Shortens a container ID for display.
func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
