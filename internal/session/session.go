package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jarvis-ci/jarvis/internal/fault"
	"github.com/jarvis-ci/jarvis/internal/runtime"
)

const (

	// In-container path of the workspace and working directory of every command.
	DefaultMountPoint = "/jarvis"

	// Shell interpreting stage scripts.
	DefaultShell = "/bin/sh"

	// Grace period given to the container before it is killed on teardown.
	DefaultStopTimeout = 10 * time.Second
)

// Environment markers telling in-container tooling it runs under CI.
var CIEnv = []string{"CI=true", "JARVIS_CI=true"}

// Lifecycle state of a [Session].
type State int

const (
	Unstarted State = iota // No container yet.
	Running                // Container started and owned by the session.
	Stopped                // Container stopped and pruned; the session is finished.
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Receives the output of commands, one line at a time.
type Output interface {
	Line(text string) // A line of valid UTF-8.
	Raw(line []byte)  // A line emitted after decoding failed.
}

// Controls a session. Zero values use the package defaults.
type Config struct {
	Image       string        // Image tag the container runs.
	Workspace   string        // Absolute host directory mounted read-write.
	MountPoint  string        // In-container mount point and working directory.
	Shell       string        // Shell executing commands with "-c".
	Env         []string      // Extra "KEY=value" entries for every command.
	StopTimeout time.Duration // Grace period before the container is killed.
	IdleCommand []string      // Main process of the container.
	Output      Output        // Receives command output. Nil discards it.
}

// A single container shared by every command of a pipeline run.
type Session struct {
	rt  runtime.Runtime
	cfg Config
	id  string

	mu        sync.Mutex
	state     State
	container runtime.Container
}

// Creates an unstarted session. No container is created until it is needed.
func New(rt runtime.Runtime, cfg Config) *Session {
	if cfg.MountPoint == "" {
		cfg.MountPoint = DefaultMountPoint
	}
	if cfg.Shell == "" {
		cfg.Shell = DefaultShell
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.Output == nil {
		cfg.Output = discard{}
	}

	return &Session{
		rt:  rt,
		cfg: cfg,
		id:  uuid.NewString(),
	}
}

// Returns the session identifier, also used to label and name the container.
func (s *Session) ID() string {
	return s.id
}

// Returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Starts the container unless it is already running.
//
// Returns [ErrSessionClosed] after teardown.
func (s *Session) EnsureStarted(ctx context.Context) error {
	_, err := s.ensureStarted(ctx)
	return err
}

func (s *Session) ensureStarted(ctx context.Context) (runtime.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Running:
		return s.container, nil
	case Stopped:
		return nil, ErrSessionClosed
	}

	ctr, err := s.rt.StartContainer(ctx, runtime.ContainerOptions{
		Name:       "jarvis-" + s.id,
		Image:      s.cfg.Image,
		Workspace:  s.cfg.Workspace,
		MountPoint: s.cfg.MountPoint,
		Command:    s.cfg.IdleCommand,
		Labels:     map[string]string{runtime.SessionLabel: s.id},
	})
	if err != nil {
		return nil, err
	}

	s.container = ctr
	s.state = Running

	slog.Debug("session started", "session", s.id, "container", ctr.ID(), "image", s.cfg.Image)
	return ctr, nil
}

// Executes a command in the container and returns its exit code.
//
// The container is started on first use. Output is relayed to the configured
// [Output] as it is produced. A non-zero exit code is returned as is; the
// error is reserved for failures to run the command at all.
func (s *Session) Run(ctx context.Context, command string) (int, error) {
	ctr, err := s.ensureStarted(ctx)
	if err != nil {
		return 0, err
	}

	proc, err := ctr.Exec(ctx, runtime.ExecOptions{
		Args:       []string{s.cfg.Shell, "-c", command},
		Env:        runtime.MergeEnv(s.cfg.Env, CIEnv),
		WorkingDir: s.cfg.MountPoint,
	})
	if err != nil {
		return 0, err
	}

	relayErr := s.relay(proc.Output())

	code, err := proc.Wait(ctx)
	if err != nil {
		return 0, err
	}
	if relayErr != nil {
		return 0, fault.Wrap(ErrSession, relayErr)
	}

	return code, nil
}

// Copies output to the session's [Output] line by line.
//
// Lines are relayed as text until the first line that is not valid UTF-8.
// From then on every line of this command is relayed raw.
func (s *Session) relay(r io.Reader) error {
	br := bufio.NewReader(r)
	raw := false

	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			line = bytes.TrimRight(line, "\r\n")

			if !raw && !utf8.Valid(line) {
				raw = true
				slog.Warn("failed to decode output as UTF-8, falling back to raw byte strings")
			}

			if raw {
				s.cfg.Output.Raw(line)
			} else {
				s.cfg.Output.Line(string(line))
			}
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Stops and prunes the container.
//
// Safe to call any number of times. Without a started container it does
// nothing. Failures are logged and returned; the session is considered
// stopped regardless.
func (s *Session) Teardown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return nil
	}
	s.state = Stopped

	var errs []error

	if err := s.container.Stop(ctx, s.cfg.StopTimeout); err != nil {
		slog.Warn("failed to stop container", "session", s.id, "container", s.container.ID(), "error", err)
		errs = append(errs, err)
	}

	if err := s.rt.PruneContainers(ctx); err != nil {
		slog.Warn("failed to prune containers", "session", s.id, "error", err)
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fault.Wrap(ErrTeardown, errors.Join(errs...))
	}

	slog.Debug("session stopped", "session", s.id, "container", s.container.ID())
	return nil
}

// Drops command output.
type discard struct{}

func (discard) Line(string) {}
func (discard) Raw([]byte) {}
