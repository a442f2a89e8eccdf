package session

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"aside/cli/internal/config"
	"aside/cli/internal/git"
	"aside/cli/internal/logger"
	"aside/cli/internal/ollama"
	"aside/cli/internal/scan"
	"aside/cli/internal/trace"
)

// repoClient is the slice of repository operations the manager needs.
type repoClient interface {
	IsRepo() bool
	InitRepo() error
	CurrentBranch() (string, error)
	BranchName(prefix string) string
	CreateWorktree(path, branch, base string) error
	RemoveWorktree(path string, force bool) error
	ListWorktrees() ([]git.Worktree, error)
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// RepoRoot is the repository sessions branch from.
	RepoRoot string
	// Config carries merged settings; nil means defaults.
	Config *config.Config
	// Logger receives progress and cleanup diagnostics; nil discards them.
	Logger *slog.Logger
	// Tracer receives verbose dumps; nil disables tracing.
	Tracer *trace.Tracer
	// DryRun routes every session to the no-op implementation.
	DryRun bool
	// BranchOverride fixes the session branch name instead of deriving it
	// from the prefix and clock.
	BranchOverride string
}

// Manager creates sessions, hands them to callers, and tears their worktrees
// down afterwards.
type Manager struct {
	root           string
	cfg            *config.Config
	log            *slog.Logger
	tr             *trace.Tracer
	dryRun         bool
	branchOverride string

	repo        repoClient
	worktreeGit func(path string) gitClient
	newGen      func(cfg *config.Config) generator
	now         func() time.Time
}

// NewManager returns a Manager rooted at opts.RepoRoot.
func NewManager(opts ManagerOptions) *Manager {
	cfg := opts.Config
	if cfg == nil {
		def := config.DefaultConfig()
		cfg = &def
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	tr := opts.Tracer
	if tr == nil {
		tr = trace.New(nil)
	}
	m := &Manager{
		root:           opts.RepoRoot,
		cfg:            cfg,
		log:            log,
		tr:             tr,
		dryRun:         opts.DryRun,
		branchOverride: opts.BranchOverride,
		repo:           git.New(opts.RepoRoot),
		now:            time.Now,
	}
	m.worktreeGit = func(path string) gitClient { return git.New(path) }
	m.newGen = func(cfg *config.Config) generator {
		return ollama.NewClient(cfg.APIURL, cfg.Model, ollama.Options{
			Timeout:   cfg.Timeout,
			MaxTokens: cfg.MaxTokens,
		})
	}
	return m
}

// WithSession creates a disposable worktree on a fresh session branch, hands
// fn a Session bound to it, and removes the worktree on every exit path,
// fn panics included. The session branch is kept so results stay reachable
// after teardown. In dry-run mode fn gets a DryRun session and nothing else
// happens.
func (m *Manager) WithSession(ctx context.Context, fn func(Session) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.dryRun {
		m.log.Info("dry run: skipping worktree setup")
		return fn(DryRun{})
	}
	if !m.repo.IsRepo() {
		return &Error{Msg: "not a git repository (run 'aside init' first)"}
	}
	branch := m.branchOverride
	if branch == "" {
		branch = m.repo.BranchName(m.cfg.BranchPrefix)
	}
	tmp, err := os.MkdirTemp("", "aside-session-")
	if err != nil {
		return &Error{Msg: "failed to create session", Err: err}
	}
	worktree := filepath.Join(tmp, "worktree")
	// Registered before CreateWorktree: a failed creation can leave the path
	// half-built, and that registration needs removing too.
	defer func() {
		if _, statErr := os.Stat(worktree); statErr == nil {
			if err := m.repo.RemoveWorktree(worktree, true); err != nil {
				m.log.Warn("failed to remove session worktree", "path", worktree, "error", err)
			}
		}
		if err := os.RemoveAll(tmp); err != nil {
			m.log.Warn("failed to remove session directory", "path", tmp, "error", err)
		}
	}()
	if err := m.repo.CreateWorktree(worktree, branch, ""); err != nil {
		return &Error{Msg: "failed to create session", Err: err}
	}

	id := uuid.NewString()
	m.log.Info("session started", "session", id, "branch", branch)
	if m.tr.Enabled() {
		m.tr.Section("session")
		m.tr.Printf("id: %s\n", id)
		if base, err := m.repo.CurrentBranch(); err == nil && base != "" {
			m.tr.Printf("base: %s\n", base)
		}
		m.tr.Printf("branch: %s\n", branch)
		m.tr.Printf("worktree: %s\n", worktree)
	}

	logPath := m.cfg.LogFile
	if !filepath.IsAbs(logPath) {
		logPath = filepath.Join(worktree, logPath)
	}
	return fn(&liveSession{
		id:          id,
		worktree:    worktree,
		logPath:     logPath,
		git:         m.worktreeGit(worktree),
		gen:         m.newGen(m.cfg),
		scanner:     scan.New(m.cfg.MaxFileSize, m.cfg.AllowedExtensions, m.cfg.IgnorePatterns),
		log:         logger.WithSession(m.log, id),
		tr:          m.tr,
		autoCommit:  m.cfg.AutoCommit,
		commitStyle: m.cfg.CommitStyle,
		maxFileSize: m.cfg.MaxFileSize,
		now:         m.now,
	})
}

// InitProject prepares the repository for sessions: initializes git when
// needed, creates the project state directory, and writes the default project
// config once. Re-running it is safe.
func (m *Manager) InitProject(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.dryRun {
		m.log.Info("dry run: would initialize project", "root", m.root)
		return nil
	}
	if !m.repo.IsRepo() {
		if err := m.repo.InitRepo(); err != nil {
			return &Error{Msg: "failed to initialize repository", Err: err}
		}
		m.log.Info("initialized git repository", "root", m.root)
	}
	stateDir := filepath.Join(m.root, config.ProjectDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return &Error{Msg: "failed to create project directory", Err: err}
	}
	cfgPath := config.ProjectConfigPath(m.root)
	if _, err := os.Stat(cfgPath); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(cfgPath, config.DefaultProjectYAML(m.cfg.Model), 0644); err != nil {
			return &Error{Msg: "failed to write project config", Err: err}
		}
		m.log.Info("wrote project config", "path", cfgPath)
	} else if err != nil {
		return &Error{Msg: "failed to inspect project config", Err: err}
	}
	if err := m.ensureIgnoreEntry(); err != nil {
		return &Error{Msg: "failed to update .gitignore", Err: err}
	}
	return nil
}

// ensureIgnoreEntry appends the state directory to an existing .gitignore.
// A repository without a .gitignore is left alone.
func (m *Manager) ensureIgnoreEntry() error {
	path := filepath.Join(m.root, ".gitignore")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	entry := config.ProjectDir + "/"
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == entry {
			return nil
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	text := entry + "\n"
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		text = "\n" + text
	}
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// CleanSessions force-removes leftover session worktrees, the usual debris
// after a crash. Returns how many were removed, or would be in dry-run mode.
func (m *Manager) CleanSessions(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !m.repo.IsRepo() {
		return 0, &Error{Msg: "not a git repository (run 'aside init' first)"}
	}
	worktrees, err := m.repo.ListWorktrees()
	if err != nil {
		return 0, &Error{Msg: "failed to list worktrees", Err: err}
	}
	prefix := m.cfg.BranchPrefix + "/session-"
	removed := 0
	for _, wt := range worktrees {
		if !strings.HasPrefix(wt.Branch, prefix) {
			continue
		}
		if m.dryRun {
			m.log.Info("dry run: would remove session worktree", "path", wt.Path, "branch", wt.Branch)
			removed++
			continue
		}
		if err := m.repo.RemoveWorktree(wt.Path, true); err != nil {
			m.log.Warn("failed to remove session worktree", "path", wt.Path, "error", err)
			continue
		}
		m.log.Info("removed session worktree", "path", wt.Path, "branch", wt.Branch)
		removed++
	}
	return removed, nil
}
