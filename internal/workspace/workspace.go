package workspace

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/jarvis-ci/jarvis/internal/fault"
)

// A resolved workspace.
type Workspace struct {
	Dir    string // Absolute host directory.
	Commit string // HEAD commit, empty outside a repository or before the first commit.
	Branch string // Checked out branch, empty when detached or unknown.
}

// Resolves the workspace directory.
//
// An explicit dir must be an existing directory and is used as is. An empty
// dir selects the root of the git repository enclosing the working directory,
// or the working directory when there is none.
func Resolve(dir string) (*Workspace, error) {
	explicit := dir != ""
	if !explicit {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fault.Wrap(ErrWorkspace, err)
		}
		dir = wd
	}

	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fault.Wrap(ErrWorkspace, err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fault.Wrap(ErrWorkspace, err)
	}
	if !info.IsDir() {
		return nil, fault.Wrapf(ErrWorkspace, "%s is not a directory", dir)
	}

	ws := &Workspace{Dir: dir}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return ws, nil
	}
	if err != nil {
		return nil, fault.Wrap(ErrWorkspace, err)
	}

	if !explicit {
		wt, err := repo.Worktree()
		if err != nil && !errors.Is(err, git.ErrIsBareRepository) {
			return nil, fault.Wrap(ErrWorkspace, err)
		}
		if wt != nil {
			ws.Dir = wt.Filesystem.Root()
		}
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return ws, nil
	}
	if err != nil {
		return nil, fault.Wrap(ErrWorkspace, err)
	}

	ws.Commit = head.Hash().String()
	if head.Name().IsBranch() {
		ws.Branch = head.Name().Short()
	}
	return ws, nil
}

// Returns the abbreviated HEAD commit, or "" when there is none.
func (w *Workspace) ShortCommit() string {
	if len(w.Commit) > 12 {
		return w.Commit[:12]
	}
	return w.Commit
}
