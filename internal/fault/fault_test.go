package fault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

var errCategory = errors.New("category")

type codeErr int

func (c codeErr) Error() string { return fmt.Sprintf("code %d", int(c)) }
func (c codeErr) ExitCode() int { return int(c) }

func TestWrap(t *testing.T) {
	err := Wrap(errCategory, fs.ErrNotExist)

	if !errors.Is(err, errCategory) {
		t.Fatal("category not reachable")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("cause not reachable")
	}
	if got, want := err.Error(), "category: file does not exist"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(errCategory, nil); err != nil {
		t.Fatalf("Wrap(nil) = %v, want nil", err)
	}
}

func TestWrapf(t *testing.T) {
	err := Wrapf(errCategory, "stage %q: %w", "lint", fs.ErrPermission)

	if !errors.Is(err, errCategory) || !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("chain incomplete: %v", err)
	}
	if got, want := err.Error(), `category: stage "lint": permission denied`; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"coder", codeErr(3), 3},
		{"wrapped coder", Wrap(errCategory, codeErr(42)), 42},
		{"zero coder", codeErr(0), 1},
		{"cancelled", Wrap(errCategory, context.Canceled), InterruptedExitCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Fatalf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
