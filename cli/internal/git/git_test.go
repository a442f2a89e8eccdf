package git

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run(t, dir, "git", "init")
	run(t, dir, "git", "config", "user.email", "test@aside.local")
	run(t, dir, "git", "config", "user.name", "Test")
	writeFile(t, dir, "f1.txt", "a\n")
	run(t, dir, "git", "add", "f1.txt")
	run(t, dir, "git", "commit", "-m", "c1")
	return dir
}

func run(t *testing.T, dir, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s %v: %v\n%s", name, args, err, out)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func runOut(t *testing.T, dir, name string, args ...string) string {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("%s %v: %v", name, args, err)
	}
	return strings.TrimSpace(string(out))
}

// fakeExec records invocations and returns canned results.
type fakeExec struct {
	calls [][]string
	res   Result
	err   error
}

func (f *fakeExec) run(dir string, args ...string) (Result, error) {
	f.calls = append(f.calls, args)
	return f.res, f.err
}

func TestExecGit_capturesOutput(t *testing.T) {
	repo := initRepo(t)
	g := New(repo)
	res, err := g.run("rev-parse", "--git-dir")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != ".git" {
		t.Errorf("stdout = %q, want .git", res.Stdout)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
}

func TestExecGit_nonZeroExit(t *testing.T) {
	repo := initRepo(t)
	g := New(repo)
	_, err := g.run("rev-parse", "--verify", "no-such-ref")
	if err == nil {
		t.Fatal("expected error for bad ref")
	}
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %T: %v", err, err)
	}
	if cmdErr.ExitCode == 0 {
		t.Error("exit code should be non-zero")
	}
	if cmdErr.Stderr == "" {
		t.Error("stderr should be captured")
	}
	if len(cmdErr.Args) == 0 || cmdErr.Args[0] != "rev-parse" {
		t.Errorf("args = %v, want rev-parse ...", cmdErr.Args)
	}
}

func TestCommandError_message(t *testing.T) {
	err := &CommandError{Args: []string{"commit", "-m", "x"}, Stderr: "nothing to commit\n", ExitCode: 1}
	msg := err.Error()
	if !strings.Contains(msg, "git commit -m x") {
		t.Errorf("message %q should name the command", msg)
	}
	if !strings.Contains(msg, "nothing to commit") {
		t.Errorf("message %q should include stderr", msg)
	}
}

func TestRepoError_unwrap(t *testing.T) {
	cause := &CommandError{Args: []string{"diff"}, ExitCode: 128}
	err := &RepoError{Op: "read diff", Err: cause}
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Error("RepoError should unwrap to *CommandError")
	}
	if !strings.HasPrefix(err.Error(), "read diff: ") {
		t.Errorf("message %q should carry the op prefix", err.Error())
	}
}

func TestMinimalEnv_includesHOMEWhenSet(t *testing.T) {
	env := MinimalEnv()
	home := os.Getenv("HOME")
	if home == "" {
		t.Skip("HOME not set; cannot assert MinimalEnv includes it")
	}
	want := "HOME=" + home
	var found bool
	for _, e := range env {
		if e == want {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("MinimalEnv() should contain %q when HOME is set; got %v", want, env)
	}
}
