package git

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsRepo(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	if !New(repo).IsRepo() {
		t.Error("initialized repository should report IsRepo")
	}
	if New(t.TempDir()).IsRepo() {
		t.Error("plain directory should not report IsRepo")
	}
}

func TestInitRepo(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	g := New(dir)
	if err := g.InitRepo(); err != nil {
		t.Fatalf("InitRepo: %v", err)
	}
	if !g.IsRepo() {
		t.Error("directory should be a repository after InitRepo")
	}
	// Reinit must not corrupt the existing repository.
	if err := g.InitRepo(); err != nil {
		t.Fatalf("second InitRepo: %v", err)
	}
	if !g.IsRepo() {
		t.Error("repository should survive reinit")
	}
}

func TestRoot_fromSubdir(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	subdir := filepath.Join(repo, "sub", "dir")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatal(err)
	}
	got, err := New(subdir).Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	wantResolved, err := filepath.EvalSymlinks(repo)
	if err != nil {
		t.Fatal(err)
	}
	gotResolved, err := filepath.EvalSymlinks(got)
	if err != nil {
		t.Fatal(err)
	}
	if gotResolved != wantResolved {
		t.Errorf("Root() = %q, want %q", got, repo)
	}
}

func TestRoot_notARepo(t *testing.T) {
	t.Parallel()
	_, err := New(t.TempDir()).Root()
	if err == nil {
		t.Fatal("Root outside a repository should fail")
	}
	var repoErr *RepoError
	if !errors.As(err, &repoErr) {
		t.Errorf("expected *RepoError, got %T", err)
	}
}

func TestCurrentBranch(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	want := runOut(t, repo, "git", "branch", "--show-current")
	got, err := New(repo).CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if got != want {
		t.Errorf("CurrentBranch() = %q, want %q", got, want)
	}
}

func TestHasChanges(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	g := New(repo)
	changed, err := g.HasChanges()
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if changed {
		t.Error("fresh commit should leave a clean tree")
	}
	writeFile(t, repo, "new.txt", "x\n")
	changed, err = g.HasChanges()
	if err != nil {
		t.Fatalf("HasChanges after write: %v", err)
	}
	if !changed {
		t.Error("untracked file should count as a change")
	}
}

func TestCommit_commandCounts(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		addAll bool
		want   int
	}{
		{"stage all then commit", true, 2},
		{"commit only", false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeExec{}
			g := New(t.TempDir())
			g.exec = fake.run
			if err := g.Commit("msg", tt.addAll); err != nil {
				t.Fatalf("Commit: %v", err)
			}
			if len(fake.calls) != tt.want {
				t.Fatalf("issued %d commands, want %d: %v", len(fake.calls), tt.want, fake.calls)
			}
			last := fake.calls[len(fake.calls)-1]
			if last[0] != "commit" {
				t.Errorf("last command %v, want commit", last)
			}
			if tt.addAll && fake.calls[0][0] != "add" {
				t.Errorf("first command %v, want add", fake.calls[0])
			}
		})
	}
}

func TestCommit_real(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	g := New(repo)
	writeFile(t, repo, "new.txt", "x\n")
	if err := g.Commit("add new file", true); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	changed, err := g.HasChanges()
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if changed {
		t.Error("tree should be clean after commit")
	}
	if msg := runOut(t, repo, "git", "log", "-1", "--format=%s"); msg != "add new file" {
		t.Errorf("commit subject = %q", msg)
	}
}

func TestCommit_nothingToCommit(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	err := New(repo).Commit("empty", true)
	if err == nil {
		t.Fatal("commit with no changes should fail")
	}
	var repoErr *RepoError
	if !errors.As(err, &repoErr) {
		t.Fatalf("expected *RepoError, got %T: %v", err, err)
	}
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Error("cause should be a *CommandError")
	}
}

func TestDiffAndStatus(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	g := New(repo)
	writeFile(t, repo, "f1.txt", "a\nchanged\n")
	diff, err := g.Diff()
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !strings.Contains(diff, "+changed") {
		t.Errorf("diff should show the added line, got:\n%s", diff)
	}
	status, err := g.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !strings.Contains(status, "f1.txt") {
		t.Errorf("status should flag f1.txt, got:\n%s", status)
	}
}
