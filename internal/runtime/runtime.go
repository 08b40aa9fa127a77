package runtime

import (
	"context"
	"io"
	"strings"
	"time"
)

const (

	// Label marking containers created by jarvis. Pruning is restricted to
	// containers carrying it.
	ManagedLabel = "io.jarvis.managed"

	// Label carrying the session identifier of a container.
	SessionLabel = "io.jarvis.session"

	// Label carrying the recipe digest an image was built from.
	RecipeLabel = "io.jarvis.recipe.digest"
)

// Default process run as the container's main task. It idles so that commands
// can be executed alongside it.
var DefaultIdleCommand = []string{"sleep", "infinity"}

// Image and container management offered by a container engine.
type Runtime interface {

	// Reports whether an image with the given tag is present locally.
	ImageExists(ctx context.Context, tag string) (bool, error)

	// Builds an image from a recipe inside a context directory.
	//
	// A rejected build is reported as a [*BuildError] carrying the log.
	BuildImage(ctx context.Context, opts BuildOptions) error

	// Creates and starts a detached container.
	StartContainer(ctx context.Context, opts ContainerOptions) (Container, error)

	// Removes stopped containers carrying [ManagedLabel].
	PruneContainers(ctx context.Context) error

	// Releases the client connection.
	Close() error
}

// A running container.
type Container interface {

	// Returns the engine identifier of the container.
	ID() string

	// Starts a command inside the container.
	//
	// The command runs alongside the idle task. A non-zero exit code is not an
	// error; callers inspect the value returned by [Process.Wait].
	Exec(ctx context.Context, opts ExecOptions) (Process, error)

	// Stops the container, waiting up to timeout before killing it.
	//
	// Stopping a container that is already gone is not an error.
	Stop(ctx context.Context, timeout time.Duration) error
}

// A command executing inside a container.
type Process interface {

	// Returns the merged stdout and stderr of the command, in the order the
	// engine delivered them. The stream ends when the command exits.
	Output() io.Reader

	// Waits for the command to finish and returns its exit code.
	//
	// Output should be drained first; the engine may block the command while
	// its output is not consumed.
	Wait(ctx context.Context) (int, error)
}

// Controls an image build.
type BuildOptions struct {
	ContextDir string            // Directory sent to the builder as build context.
	Recipe     string            // Recipe path relative to ContextDir.
	Tag        string            // Tag applied to the built image.
	Labels     map[string]string // Labels set on the built image.
}

// Controls container creation.
type ContainerOptions struct {
	Name       string            // Container name or ID. Backends generate one when empty.
	Image      string            // Image tag to run.
	Workspace  string            // Absolute host directory mounted read-write.
	MountPoint string            // Absolute in-container path of the workspace, also the working directory.
	Command    []string          // Main process. Defaults to [DefaultIdleCommand].
	Labels     map[string]string // Extra labels. [ManagedLabel] is always added.
}

// Returns the main process, falling back to [DefaultIdleCommand].
func (o ContainerOptions) IdleCommand() []string {
	if len(o.Command) > 0 {
		return o.Command
	}
	return DefaultIdleCommand
}

// Returns the configured labels plus [ManagedLabel].
func (o ContainerOptions) AllLabels() map[string]string {
	labels := make(map[string]string, len(o.Labels)+1)
	for k, v := range o.Labels {
		labels[k] = v
	}
	labels[ManagedLabel] = "true"
	return labels
}

// Controls a command execution.
type ExecOptions struct {
	Args       []string // Command and arguments, executed without a shell.
	Env        []string // Extra "KEY=value" entries, merged over the container's environment.
	WorkingDir string   // Overrides the container's working directory when set.
}

// Merges override env vars on top of a base env slice.
//
// Later entries win. Entries without '=' are dropped. The order of first
// appearance is preserved.
func MergeEnv(base, overrides []string) []string {
	values := make(map[string]string, len(base)+len(overrides))
	var order []string

	for _, list := range [][]string{base, overrides} {
		for _, entry := range list {
			k, v, ok := strings.Cut(entry, "=")
			if !ok {
				continue
			}
			if _, seen := values[k]; !seen {
				order = append(order, k)
			}
			values[k] = v
		}
	}

	result := make([]string, 0, len(order))
	for _, k := range order {
		result = append(result, k+"="+values[k])
	}
	return result
}
