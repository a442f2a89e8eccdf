// Repository discovery, state queries, and commits.
package git

import (
	"path/filepath"
	"strings"
)

// IsRepo reports whether the bound directory is inside a git repository.
// Runs "git rev-parse --git-dir"; any failure means false.
func (g *Git) IsRepo() bool {
	_, err := g.run("rev-parse", "--git-dir")
	return err == nil
}

// InitRepo creates a new repository in the bound directory. Running it on an
// existing repository reinitializes without touching history, but callers
// normally guard with IsRepo first.
func (g *Git) InitRepo() error {
	if _, err := g.run("init"); err != nil {
		return &RepoError{Op: "init repository", Err: err}
	}
	return nil
}

// Root returns the absolute path of the repository root containing the bound
// directory. Runs "git rev-parse --show-toplevel".
func (g *Git) Root() (string, error) {
	res, err := g.run("rev-parse", "--show-toplevel")
	if err != nil {
		return "", &RepoError{Op: "locate repository root", Err: err}
	}
	return filepath.Abs(strings.TrimSpace(res.Stdout))
}

// CurrentBranch returns the checked-out branch name, or "" when detached.
func (g *Git) CurrentBranch() (string, error) {
	res, err := g.run("branch", "--show-current")
	if err != nil {
		return "", &RepoError{Op: "read current branch", Err: err}
	}
	return strings.TrimSpace(res.Stdout), nil
}

// HasChanges reports whether the working tree has any uncommitted
// modification, tracked or untracked. Runs "git status --porcelain"; true
// only if output is non-empty.
func (g *Git) HasChanges() (bool, error) {
	res, err := g.run("status", "--porcelain")
	if err != nil {
		return false, &RepoError{Op: "check working tree status", Err: err}
	}
	return len(strings.TrimSpace(res.Stdout)) > 0, nil
}

// Commit records a commit with the given message. With addAll it first stages
// everything under the bound directory, issuing exactly two git commands;
// without, exactly one. Committing with nothing staged fails, so callers
// check HasChanges first.
func (g *Git) Commit(message string, addAll bool) error {
	if addAll {
		if _, err := g.run("add", "."); err != nil {
			return &RepoError{Op: "stage changes", Err: err}
		}
	}
	if _, err := g.run("commit", "-m", message); err != nil {
		return &RepoError{Op: "commit", Err: err}
	}
	return nil
}

// Diff returns the unstaged diff of the working tree, verbatim. Callers
// truncate before embedding it in a prompt.
func (g *Git) Diff() (string, error) {
	res, err := g.run("diff")
	if err != nil {
		return "", &RepoError{Op: "read diff", Err: err}
	}
	return res.Stdout, nil
}

// Status returns porcelain status output, verbatim.
func (g *Git) Status() (string, error) {
	res, err := g.run("status", "--porcelain")
	if err != nil {
		return "", &RepoError{Op: "read status", Err: err}
	}
	return res.Stdout, nil
}
