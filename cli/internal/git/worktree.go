// Worktree lifecycle: create, list, and remove session checkouts.
package git

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrWorktreeExists indicates the target path for a new worktree is already
// occupied.
var ErrWorktreeExists = errors.New("worktree path already exists")

// Worktree holds one parsed entry from "git worktree list".
type Worktree struct {
	Path   string // absolute path to the checkout
	Head   string // SHA at HEAD
	Branch string // branch name if not detached; empty if detached
}

// CreateWorktree creates branch (rooted at base, or at HEAD when base is
// empty) and checks it out at path. The path is stat-checked first: if it
// already exists the operation fails with ErrWorktreeExists without invoking
// git at all, guarding against clobbering an unrelated directory.
func (g *Git) CreateWorktree(path, branch, base string) error {
	if _, err := os.Stat(path); err == nil {
		return &RepoError{
			Op:  "create worktree",
			Err: fmt.Errorf("path %s: %w", path, ErrWorktreeExists),
		}
	}
	args := []string{"worktree", "add", "-b", branch, path}
	if base != "" {
		args = append(args, base)
	}
	if _, err := g.run(args...); err != nil {
		return &RepoError{Op: "create worktree", Err: err}
	}
	return nil
}

// RemoveWorktree removes the checkout at path. With force the removal
// succeeds even when the checkout holds uncommitted changes. The branch the
// worktree was created on stays in the repository's branch list.
func (g *Git) RemoveWorktree(path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	if _, err := g.run(args...); err != nil {
		return &RepoError{Op: "remove worktree", Err: err}
	}
	return nil
}

// ListWorktrees returns all worktrees of the repository, main checkout
// included.
func (g *Git) ListWorktrees() ([]Worktree, error) {
	res, err := g.run("worktree", "list", "--porcelain")
	if err != nil {
		return nil, &RepoError{Op: "list worktrees", Err: err}
	}
	return parseWorktreeList(res.Stdout), nil
}

func parseWorktreeList(s string) []Worktree {
	var list []Worktree
	var cur Worktree
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(line, "worktree ") {
			if cur.Path != "" {
				list = append(list, cur)
			}
			cur = Worktree{Path: strings.TrimPrefix(line, "worktree ")}
			continue
		}
		if strings.HasPrefix(line, "HEAD ") {
			cur.Head = strings.TrimPrefix(line, "HEAD ")
		} else if strings.HasPrefix(line, "branch ") {
			cur.Branch = strings.TrimPrefix(line, "branch refs/heads/")
		}
	}
	if cur.Path != "" {
		list = append(list, cur)
	}
	return list
}

// BranchName derives a session branch name from the clock:
// <prefix>/session-<YYYYMMDD-HHMMSS>. Uniqueness rests on second resolution
// alone; rapid successive sessions can collide, a documented limitation.
func (g *Git) BranchName(prefix string) string {
	return prefix + "/session-" + g.now().Format("20060102-150405")
}
