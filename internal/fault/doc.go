// Package fault categorises errors and maps them to process exit codes.
//
// Every package declares its own sentinel errors in an errors.go file. Causes
// are attached to a sentinel with [Wrap] or [Wrapf], so callers can test the
// category with [errors.Is] while the original cause stays reachable through
// the chain.
//
//	if err := os.Remove(path); err != nil {
//	    return fault.Wrap(ErrWorkspace, err)
//	}
//
// The single top-level driver turns the final error into an exit status with
// [ExitCode]. Nothing below cmd/ terminates the process.
package fault
