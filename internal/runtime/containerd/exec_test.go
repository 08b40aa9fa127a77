package containerd

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jarvis-ci/jarvis/internal/runtime"
)

func TestNextExecID(t *testing.T) {
	a := nextExecID()
	b := nextExecID()
	if a == b {
		t.Fatalf("nextExecID returned duplicate: %q", a)
	}
	if !strings.HasPrefix(a, "jarvis-exec-") {
		t.Fatalf("nextExecID = %q, want jarvis-exec- prefix", a)
	}
}

func TestExecProcessWait(t *testing.T) {
	p := &execProcess{output: strings.NewReader("hello\n"), done: make(chan struct{}), code: 7}
	close(p.done)

	out, err := io.ReadAll(p.Output())
	if err != nil || string(out) != "hello\n" {
		t.Fatalf("Output() = %q, %v", out, err)
	}

	code, err := p.Wait(context.Background())
	if err != nil || code != 7 {
		t.Fatalf("Wait() = %d, %v; want 7, nil", code, err)
	}
}

func TestExecProcessWaitCancelled(t *testing.T) {
	p := &execProcess{done: make(chan struct{})}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Wait(ctx)
	if !errors.Is(err, runtime.ErrRuntime) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want ErrRuntime and DeadlineExceeded", err)
	}
}

func TestWorkspaceMount(t *testing.T) {
	m := workspaceMount(runtime.ContainerOptions{Workspace: "/src", MountPoint: "/jarvis"})

	if m.Type != "bind" || m.Source != "/src" || m.Destination != "/jarvis" {
		t.Fatalf("mount = %+v", m)
	}
	if len(m.Options) != 2 || m.Options[0] != "rbind" || m.Options[1] != "rw" {
		t.Fatalf("options = %v, want [rbind rw]", m.Options)
	}
}
