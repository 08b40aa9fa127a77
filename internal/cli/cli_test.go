package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jarvis-ci/jarvis/internal/buildlog"
	"github.com/jarvis-ci/jarvis/internal/executor"
	"github.com/jarvis-ci/jarvis/internal/fault"
	"github.com/jarvis-ci/jarvis/internal/identity"
	"github.com/jarvis-ci/jarvis/internal/pipeline"
	"github.com/jarvis-ci/jarvis/internal/runtime"
	"github.com/jarvis-ci/jarvis/internal/runtime/runtimetest"
)

func silenceLogs(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	slog.SetDefault(slog.New(buildlog.NewHandler(&bytes.Buffer{}, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func parse(t *testing.T, args []string, options ...kong.Option) (*Root, *kong.Context, error) {
	t.Helper()
	var root Root
	options = append(options, kong.Exit(func(int) { t.Fatal("parser tried to exit") }))
	parser, err := newParser(&root, options...)
	if err != nil {
		t.Fatalf("newParser: %v", err)
	}
	ctx, err := parser.Parse(args)
	return &root, ctx, err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseRunDefaults(t *testing.T) {
	root, ctx, err := parse(t, []string{"run"})
	if err != nil {
		t.Fatal(err)
	}

	if ctx.Command() != "run" {
		t.Fatalf("command = %q", ctx.Command())
	}
	run := root.Run
	if run.Runtime.Backend != "docker" || run.Runtime.ContainerdNamespace != "default" || run.Runtime.Nerdctl != "nerdctl" {
		t.Fatalf("runtime flags = %+v", run.Runtime)
	}
	if run.Session.Shell != "/bin/sh" || run.Session.MountPoint != "/jarvis" || run.Session.StopTimeout != 10*time.Second {
		t.Fatalf("session flags = %+v", run.Session)
	}
}

func TestParseRunFlags(t *testing.T) {
	root, _, err := parse(t, []string{
		"-d", "run",
		"--runtime", "containerd",
		"--only", "build", "--only", "test",
		"-e", "GOFLAGS=-mod=mod,-trimpath",
		"--stop-timeout", "30s",
		"-w", "/src",
	})
	if err != nil {
		t.Fatal(err)
	}

	if !root.Debug {
		t.Fatal("debug not set")
	}
	run := root.Run
	if run.Runtime.Backend != "containerd" {
		t.Fatalf("runtime = %q", run.Runtime.Backend)
	}
	if !slices.Equal(run.Only, []string{"build", "test"}) {
		t.Fatalf("only = %q", run.Only)
	}
	if !slices.Equal(run.Session.Env, []string{"GOFLAGS=-mod=mod,-trimpath"}) {
		t.Fatalf("env = %q", run.Session.Env)
	}
	if run.Session.StopTimeout != 30*time.Second {
		t.Fatalf("stop timeout = %v", run.Session.StopTimeout)
	}
	if run.Project.Workspace != "/src" {
		t.Fatalf("workspace = %q", run.Project.Workspace)
	}
}

func TestParseRejectsUnknownRuntime(t *testing.T) {
	if _, _, err := parse(t, []string{"run", "--runtime", "podman"}); err == nil {
		t.Fatal("expected an error for an unknown runtime")
	}
}

func TestParseEnvironment(t *testing.T) {
	t.Setenv("JARVIS_RUNTIME", "containerd")
	t.Setenv("JARVIS_CONTAINERD_NAMESPACE", "ci")

	root, _, err := parse(t, []string{"image"})
	if err != nil {
		t.Fatal(err)
	}
	if root.Image.Runtime.Backend != "containerd" || root.Image.Runtime.ContainerdNamespace != "ci" {
		t.Fatalf("runtime flags = %+v", root.Image.Runtime)
	}
}

func TestParseConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "runtime: containerd\nsnapshotter: native\nstop_timeout: 45s\n")

	root, _, err := parse(t, []string{"run"}, kong.Configuration(loadConfig, path))
	if err != nil {
		t.Fatal(err)
	}

	run := root.Run
	if run.Runtime.Backend != "containerd" || run.Runtime.Snapshotter != "native" {
		t.Fatalf("runtime flags = %+v", run.Runtime)
	}
	if run.Session.StopTimeout != 45*time.Second {
		t.Fatalf("stop timeout = %v", run.Session.StopTimeout)
	}
}

func TestParseFlagOverridesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "shell: /bin/bash\n")

	root, _, err := parse(t, []string{"run", "--shell", "/bin/zsh"}, kong.Configuration(loadConfig, path))
	if err != nil {
		t.Fatal(err)
	}
	if root.Run.Session.Shell != "/bin/zsh" {
		t.Fatalf("shell = %q, want the flag value", root.Run.Session.Shell)
	}
}

func TestParseMissingConfigFileIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	if _, _, err := parse(t, []string{"run"}, kong.Configuration(loadConfig, path)); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"mapping", "runtime: docker\n", false},
		{"empty", "", false},
		{"sequence", "- docker\n", true},
		{"malformed", "runtime: [docker\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(strings.NewReader(tt.data))
			if tt.wantErr {
				if !errors.Is(err, ErrConfig) {
					t.Fatalf("err = %v, want ErrConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestSessionConfig(t *testing.T) {
	f := SessionFlags{Shell: "/bin/sh", MountPoint: "/jarvis", StopTimeout: time.Second, Env: []string{"A=1", "B="}}

	cfg, err := f.config("img", "/src", nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Image != "img" || cfg.Workspace != "/src" || cfg.StopTimeout != time.Second || len(cfg.Env) != 2 {
		t.Fatalf("config = %+v", cfg)
	}

	for _, bad := range []SessionFlags{
		{MountPoint: "/jarvis", Env: []string{"NOVALUE"}},
		{MountPoint: "/jarvis", Env: []string{"=1"}},
		{MountPoint: "jarvis"},
	} {
		if _, err := bad.config("img", "/src", nil); !errors.Is(err, ErrConfig) {
			t.Fatalf("%+v: err = %v, want ErrConfig", bad, err)
		}
	}
}

func TestResolvePath(t *testing.T) {
	if got := resolvePath("", "/src", "Jarvisfile"); got != filepath.Join("/src", "Jarvisfile") {
		t.Fatalf("default = %q", got)
	}
	if got := resolvePath("/etc/Jarvisfile", "/src", "Jarvisfile"); got != "/etc/Jarvisfile" {
		t.Fatalf("absolute = %q", got)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if got := resolvePath("ci/Jarvisfile", "/src", "Jarvisfile"); got != filepath.Join(wd, "ci", "Jarvisfile") {
		t.Fatalf("relative = %q", got)
	}
}

// Creates a workspace with a recipe and a Jarvisfile.
func project(t *testing.T, jarvisfile string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Dockerfile"), "FROM alpine:3.20\n")
	writeFile(t, filepath.Join(dir, "Jarvisfile"), jarvisfile)
	return dir
}

// Makes the run command use rt instead of a real engine.
func useRuntime(t *testing.T, rt runtime.Runtime) *int {
	t.Helper()
	opened := 0
	prev := openRuntime
	openRuntime = func(*RuntimeFlags) (runtime.Runtime, error) {
		opened++
		return rt, nil
	}
	t.Cleanup(func() { openRuntime = prev })
	return &opened
}

func runFlags(dir string) RunCmd {
	return RunCmd{
		Project: ProjectFlags{Workspace: dir},
		Session: SessionFlags{Shell: "/bin/sh", MountPoint: "/jarvis", StopTimeout: 10 * time.Second},
	}
}

func TestRunCommand(t *testing.T) {
	silenceLogs(t)
	dir := project(t, "- stage: build\n  script: make\n- stage: test\n  script: make test\n")

	rt := runtimetest.New()
	rt.Handler = runtimetest.Scripts(map[string]runtimetest.Result{
		"make":      {Output: []byte("built\n")},
		"make test": {Output: []byte("ok\n")},
	})
	useRuntime(t, rt)

	var out bytes.Buffer
	cmd := runFlags(dir)
	if err := cmd.Run(context.Background(), buildlog.NewConsole(&out, false)); err != nil {
		t.Fatal(err)
	}

	wantTag, err := identity.Tag(filepath.Join(dir, "Dockerfile"))
	if err != nil {
		t.Fatal(err)
	}
	if builds := rt.Builds(); len(builds) != 1 || builds[0].Tag != wantTag {
		t.Fatalf("builds = %+v", builds)
	}

	ctrs := rt.Containers()
	if len(ctrs) != 1 || ctrs[0].Options().Workspace != dir {
		t.Fatalf("containers = %d", len(ctrs))
	}
	if n := len(ctrs[0].Execs()); n != 2 {
		t.Fatalf("execs = %d, want 2", n)
	}
	if rt.Running() != 0 || rt.Prunes() != 1 || !rt.Closed() {
		t.Fatalf("running=%d prunes=%d closed=%v", rt.Running(), rt.Prunes(), rt.Closed())
	}

	for _, want := range []string{"make\n", "built\n", "ok\n"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("console output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunCommandStageFailure(t *testing.T) {
	silenceLogs(t)
	dir := project(t, "- stage: lint\n  script: exit 3\n- stage: test\n  script: make test\n")

	rt := runtimetest.New()
	rt.Handler = runtimetest.Scripts(map[string]runtimetest.Result{"exit 3": {ExitCode: 3}})
	useRuntime(t, rt)

	cmd := runFlags(dir)
	err := cmd.Run(context.Background(), buildlog.NewConsole(&bytes.Buffer{}, false))

	var stageErr *executor.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "lint" {
		t.Fatalf("err = %v, want lint StageError", err)
	}
	if code := fault.ExitCode(err); code != 3 {
		t.Fatalf("exit code = %d, want 3", code)
	}
	if n := len(rt.Containers()[0].Execs()); n != 1 {
		t.Fatalf("execs = %d, want 1", n)
	}
	if rt.Running() != 0 {
		t.Fatal("container left running after failure")
	}
}

func TestRunCommandInterrupted(t *testing.T) {
	silenceLogs(t)
	dir := project(t, "- stage: build\n  script: make\n- stage: test\n  script: make test\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := runtimetest.New()
	rt.Handler = func(opts runtime.ExecOptions) runtimetest.Result {
		cancel()
		return runtimetest.Result{}
	}
	useRuntime(t, rt)

	cmd := runFlags(dir)
	err := cmd.Run(ctx, buildlog.NewConsole(&bytes.Buffer{}, false))

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if code := fault.ExitCode(err); code != fault.InterruptedExitCode {
		t.Fatalf("exit code = %d, want %d", code, fault.InterruptedExitCode)
	}
	if n := len(rt.Containers()[0].Execs()); n != 1 {
		t.Fatalf("execs = %d, want 1", n)
	}
	if rt.Running() != 0 || rt.Prunes() != 1 {
		t.Fatalf("running=%d prunes=%d, want teardown after interrupt", rt.Running(), rt.Prunes())
	}
}

func TestRunCommandCachedImage(t *testing.T) {
	silenceLogs(t)
	dir := project(t, "- stage: build\n  script: make\n")

	tag, err := identity.Tag(filepath.Join(dir, "Dockerfile"))
	if err != nil {
		t.Fatal(err)
	}
	rt := runtimetest.New()
	rt.AddImage(tag)
	useRuntime(t, rt)

	cmd := runFlags(dir)
	if err := cmd.Run(context.Background(), buildlog.NewConsole(&bytes.Buffer{}, false)); err != nil {
		t.Fatal(err)
	}
	if n := len(rt.Builds()); n != 0 {
		t.Fatalf("builds = %d, want 0", n)
	}
}

func TestRunCommandTeardownFailureReported(t *testing.T) {
	silenceLogs(t)
	dir := project(t, "- stage: build\n  script: make\n")

	rt := runtimetest.New()
	rt.PruneErr = errors.New("prune refused")
	useRuntime(t, rt)

	cmd := runFlags(dir)
	err := cmd.Run(context.Background(), buildlog.NewConsole(&bytes.Buffer{}, false))
	if !errors.Is(err, rt.PruneErr) {
		t.Fatalf("err = %v, want teardown failure", err)
	}
}

func TestRunCommandConfigErrorsBeforeEngine(t *testing.T) {
	silenceLogs(t)

	tests := []struct {
		name    string
		file    string
		only    []string
		wantErr error
	}{
		{"invalid jarvisfile", "- stage: build\n", nil, pipeline.ErrDefinition},
		{"unknown stage", "- stage: build\n  script: make\n", []string{"deploy"}, pipeline.ErrStageNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := project(t, tt.file)
			opened := useRuntime(t, runtimetest.New())

			cmd := runFlags(dir)
			cmd.Only = tt.only
			err := cmd.Run(context.Background(), buildlog.NewConsole(&bytes.Buffer{}, false))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if *opened != 0 {
				t.Fatal("engine contacted despite a configuration error")
			}
		})
	}
}

func TestTagCommand(t *testing.T) {
	dir := project(t, "[]")

	var out bytes.Buffer
	cmd := TagCmd{Project: ProjectFlags{Workspace: dir}}
	if err := cmd.Run(context.Background(), &out); err != nil {
		t.Fatal(err)
	}

	want, err := identity.Tag(filepath.Join(dir, "Dockerfile"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != want {
		t.Fatalf("tag = %q, want %q", got, want)
	}
}

func TestValidateCommand(t *testing.T) {
	dir := project(t, "- stage: build\n  script: make\n- stage:\n  script: skipped\n- stage: test\n  script: make test\n")

	var out bytes.Buffer
	cmd := ValidateCmd{Workspace: dir}
	if err := cmd.Run(context.Background(), &out); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "build\ntest\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestImageCommand(t *testing.T) {
	silenceLogs(t)
	dir := project(t, "[]")
	rt := runtimetest.New()
	useRuntime(t, rt)

	var out bytes.Buffer
	cmd := ImageCmd{Project: ProjectFlags{Workspace: dir}}
	if err := cmd.Run(context.Background(), &out); err != nil {
		t.Fatal(err)
	}

	builds := rt.Builds()
	if len(builds) != 1 || strings.TrimSpace(out.String()) != builds[0].Tag {
		t.Fatalf("output = %q, builds = %+v", out.String(), builds)
	}
	if !rt.Closed() {
		t.Fatal("runtime not closed")
	}
}
