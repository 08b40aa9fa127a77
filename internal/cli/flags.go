package cli

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jarvis-ci/jarvis/internal/fault"
	"github.com/jarvis-ci/jarvis/internal/runtime"
	"github.com/jarvis-ci/jarvis/internal/runtime/containerd"
	"github.com/jarvis-ci/jarvis/internal/runtime/docker"
	"github.com/jarvis-ci/jarvis/internal/session"
	"github.com/jarvis-ci/jarvis/internal/workspace"
)

// Name of the container recipe looked up in the workspace.
const defaultRecipe = "Dockerfile"

// Locates the workspace and the container recipe.
type ProjectFlags struct {
	Workspace  string `short:"w" help:"Directory mounted into the container. Defaults to the enclosing git repository." placeholder:"DIR" env:"JARVIS_WORKSPACE"`
	Dockerfile string `help:"Container recipe. Defaults to Dockerfile in the workspace." placeholder:"PATH" env:"JARVIS_DOCKERFILE"`
	Context    string `help:"Build context directory. Defaults to the recipe's directory." placeholder:"DIR" env:"JARVIS_CONTEXT"`
}

// Resolves the workspace directory.
func (f *ProjectFlags) workspace() (*workspace.Workspace, error) {
	return workspace.Resolve(f.Workspace)
}

// Returns the recipe path, defaulting to the workspace's Dockerfile.
func (f *ProjectFlags) recipe(ws *workspace.Workspace) string {
	return resolvePath(f.Dockerfile, ws.Dir, defaultRecipe)
}

// Selects and configures the container engine.
type RuntimeFlags struct {
	Backend             string `name:"runtime" help:"Container engine (${enum})." enum:"docker,containerd" default:"docker" env:"JARVIS_RUNTIME"`
	DockerHost          string `help:"Docker Engine address. Defaults to DOCKER_HOST." placeholder:"URL" env:"JARVIS_DOCKER_HOST"`
	ContainerdAddress   string `help:"Containerd socket." default:"/run/containerd/containerd.sock" placeholder:"PATH" env:"JARVIS_CONTAINERD_ADDRESS"`
	ContainerdNamespace string `help:"Containerd namespace." default:"default" env:"JARVIS_CONTAINERD_NAMESPACE"`
	Snapshotter         string `help:"Containerd snapshotter." default:"overlayfs" env:"JARVIS_SNAPSHOTTER"`
	Nerdctl             string `help:"nerdctl binary used to build images on containerd." default:"nerdctl" placeholder:"PATH" env:"JARVIS_NERDCTL"`
}

// Connects to the selected engine.
func (f *RuntimeFlags) open() (runtime.Runtime, error) {
	switch f.Backend {
	case "containerd":
		rt, err := containerd.New(containerd.Config{
			Address:     f.ContainerdAddress,
			Namespace:   f.ContainerdNamespace,
			Snapshotter: f.Snapshotter,
			Nerdctl:     f.Nerdctl,
		})
		if err != nil {
			return nil, err
		}
		return rt, nil
	case "docker", "":
		rt, err := docker.New(docker.Config{Host: f.DockerHost})
		if err != nil {
			return nil, err
		}
		return rt, nil
	default:
		return nil, fault.Wrapf(ErrConfig, "unknown runtime %q", f.Backend)
	}
}

// Configures the container session stages run in.
type SessionFlags struct {
	Shell       string        `help:"Shell running stage scripts with -c." default:"/bin/sh" env:"JARVIS_SHELL"`
	MountPoint  string        `help:"Workspace path inside the container." default:"/jarvis" placeholder:"PATH" env:"JARVIS_MOUNT_POINT"`
	StopTimeout time.Duration `help:"Grace period before the container is killed." default:"10s" env:"JARVIS_STOP_TIMEOUT"`
	Env         []string      `short:"e" help:"Extra environment for stage scripts." sep:"none" placeholder:"KEY=VALUE"`
}

// Returns the session configuration for an image and workspace.
func (f *SessionFlags) config(image, dir string, out session.Output) (session.Config, error) {
	for _, entry := range f.Env {
		if k, _, ok := strings.Cut(entry, "="); !ok || k == "" {
			return session.Config{}, fault.Wrapf(ErrConfig, "environment entry %q is not KEY=VALUE", entry)
		}
	}
	if !path.IsAbs(f.MountPoint) {
		return session.Config{}, fault.Wrapf(ErrConfig, "mount point %q is not absolute", f.MountPoint)
	}

	return session.Config{
		Image:       image,
		Workspace:   dir,
		MountPoint:  f.MountPoint,
		Shell:       f.Shell,
		Env:         f.Env,
		StopTimeout: f.StopTimeout,
		Output:      out,
	}, nil
}

// Returns p made absolute, or name inside dir when p is empty.
func resolvePath(p, dir, name string) string {
	if p == "" {
		return filepath.Join(dir, name)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
