// Package git executes version-control operations for session worktrees.
// Every operation funnels through a single run primitive that invokes the
// git binary synchronously and captures stdout, stderr, and the exit code.
package git

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Result holds the captured output of one git invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandError reports a git invocation that failed to start or exited
// non-zero. Stderr is captured verbatim.
type CommandError struct {
	Args     []string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: exit %d", strings.Join(e.Args, " "), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// RepoError wraps a failed repository or worktree operation with the
// operation name. The cause is usually a *CommandError.
type RepoError struct {
	Op  string
	Err error
}

func (e *RepoError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *RepoError) Unwrap() error { return e.Err }

// execFunc is the execution seam. Tests swap it to count or fake invocations.
type execFunc func(dir string, args ...string) (Result, error)

// Git runs git commands in a fixed working directory. One instance is bound
// to the repository root, another to each session worktree.
type Git struct {
	dir  string
	exec execFunc
	now  func() time.Time
}

// New returns a Git bound to dir.
func New(dir string) *Git {
	return &Git{dir: dir, exec: execGit, now: time.Now}
}

// Dir returns the working directory the instance is bound to.
func (g *Git) Dir() string { return g.dir }

func (g *Git) run(args ...string) (Result, error) {
	return g.exec(g.dir, args...)
}

// execGit invokes the git binary in dir with a minimal environment and
// returns the captured result. A non-zero exit or a spawn failure yields a
// *CommandError; the Result is returned alongside it with whatever output
// was captured.
func execGit(dir string, args ...string) (Result, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = minimalEnv()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}
	res.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}
	return res, &CommandError{Args: args, Stderr: res.Stderr, ExitCode: res.ExitCode, Err: err}
}

func minimalEnv() []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_PAGER=cat", // prevent pager; subprocess output is captured
	}
	if home := os.Getenv("HOME"); home != "" {
		env = append(env, "HOME="+home)
	} else if runtime.GOOS == "windows" {
		if profile := os.Getenv("USERPROFILE"); profile != "" {
			env = append(env, "HOME="+profile)
		}
	}
	return env
}

// MinimalEnv returns the environment used for git subprocesses. Exported for
// tests so callers can assert HOME is included when set (e.g. to avoid
// "Author identity unknown").
func MinimalEnv() []string {
	return minimalEnv()
}
