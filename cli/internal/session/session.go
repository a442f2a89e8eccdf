// Package session runs assistant tasks inside disposable git worktrees and
// manages worktree lifecycle around them.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"aside/cli/internal/scan"
	"aside/cli/internal/tokens"
	"aside/cli/internal/trace"
)

// Session is one assistant session. Implementations run the six tasks against
// a working tree (or pretend to, for dry runs).
type Session interface {
	Explain(ctx context.Context, prompt string, opts ExplainOptions) (string, error)
	Fix(ctx context.Context, prompt string, opts FixOptions) (string, error)
	Refactor(ctx context.Context, prompt string, opts RefactorOptions) (string, error)
	GenerateTests(ctx context.Context, prompt string, opts TestOptions) (string, error)
	CreateCommit(ctx context.Context, message string, opts CommitOptions) (string, error)
	SearchCode(ctx context.Context, query string, opts SearchOptions) (string, error)
}

// ExplainOptions adjusts the explain task.
type ExplainOptions struct {
	// File names a worktree-relative file to include in the context.
	File string
}

// FixOptions adjusts the fix task.
type FixOptions struct {
	File string
	// ErrorText is the failure output the fix should address.
	ErrorText string
}

// RefactorOptions adjusts the refactor task.
type RefactorOptions struct {
	File string
	// Pattern names the refactoring to apply (e.g. "extract method").
	Pattern string
}

// TestOptions adjusts the test-generation task.
type TestOptions struct {
	File string
	// Style names the test framework or idiom to target.
	Style string
	// Coverage asks for coverage analysis alongside the tests.
	Coverage bool
}

// CommitOptions adjusts the commit-message task.
type CommitOptions struct {
	// Type hints the conventional commit type (feat, fix, chore, ...).
	Type string
}

// SearchOptions adjusts the search task.
type SearchOptions struct {
	// Regex treats the query as a regular expression.
	Regex bool
	// Kind selects what to look for: "" or "text" for line matches,
	// "function" or "class" for declarations.
	Kind string
}

// Error is a session-level failure with a task message and optional cause.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// gitClient is the slice of git operations a live session needs.
type gitClient interface {
	HasChanges() (bool, error)
	Commit(message string, addAll bool) error
	Diff() (string, error)
	Status() (string, error)
}

// generator produces a completion for an assembled prompt.
type generator interface {
	Generate(ctx context.Context, prompt, systemPrompt, contextText string) (string, error)
}

// liveSession is the real Session: it reads context from the worktree, calls
// the generation service, and records each task in the session log.
type liveSession struct {
	id          string
	worktree    string
	logPath     string
	git         gitClient
	gen         generator
	scanner     *scan.Scanner
	log         *slog.Logger
	tr          *trace.Tracer
	autoCommit  bool
	commitStyle string
	maxFileSize int64
	now         func() time.Time
}

func (s *liveSession) Explain(ctx context.Context, prompt string, opts ExplainOptions) (string, error) {
	return s.runTask(ctx, "explain", prompt, explainSystemPrompt,
		s.fileContext(opts.File), "failed to generate explanation")
}

func (s *liveSession) Fix(ctx context.Context, prompt string, opts FixOptions) (string, error) {
	blocks := []string{s.fileContext(opts.File)}
	if opts.ErrorText != "" {
		blocks = append(blocks, "Error message:\n"+opts.ErrorText)
	}
	return s.runTask(ctx, "fix", prompt, fixSystemPrompt,
		joinBlocks(blocks...), "failed to generate fix")
}

func (s *liveSession) Refactor(ctx context.Context, prompt string, opts RefactorOptions) (string, error) {
	blocks := []string{s.fileContext(opts.File)}
	if opts.Pattern != "" {
		blocks = append(blocks, "Target pattern: "+opts.Pattern)
	}
	return s.runTask(ctx, "refactor", prompt, refactorSystemPrompt,
		joinBlocks(blocks...), "failed to generate refactoring")
}

func (s *liveSession) GenerateTests(ctx context.Context, prompt string, opts TestOptions) (string, error) {
	blocks := []string{s.fileContext(opts.File)}
	if opts.Style != "" {
		blocks = append(blocks, "Test style: "+opts.Style)
	}
	if opts.Coverage {
		blocks = append(blocks, "Include coverage analysis.")
	}
	return s.runTask(ctx, "test", prompt, testSystemPrompt,
		joinBlocks(blocks...), "failed to generate tests")
}

func (s *liveSession) CreateCommit(ctx context.Context, message string, opts CommitOptions) (string, error) {
	contextText, err := s.commitContext(opts)
	if err != nil {
		return "", &Error{Msg: "failed to create commit message", Err: err}
	}
	prompt := message
	if prompt == "" {
		prompt = "Analyze the changes and create an appropriate commit message"
	}
	return s.runTask(ctx, "commit", prompt, commitSystemPrompt,
		contextText, "failed to create commit message")
}

func (s *liveSession) SearchCode(ctx context.Context, query string, opts SearchOptions) (string, error) {
	contextText, err := s.searchContext(query, opts)
	if err != nil {
		return "", &Error{Msg: "failed to perform search", Err: err}
	}
	return s.runTask(ctx, "search", query, searchSystemPrompt,
		contextText, "failed to perform search")
}

// runTask generates a response for one task and, with auto-commit on, records
// it in the session log before returning.
func (s *liveSession) runTask(ctx context.Context, task, prompt, systemPrompt, contextText, failMsg string) (string, error) {
	s.log.Debug("running task", "task", task, "context_bytes", len(contextText))
	if s.tr.Enabled() {
		s.tr.Section(task)
		s.tr.Printf("estimated prompt tokens: %d\n",
			tokens.Estimate(systemPrompt)+tokens.Estimate(prompt)+tokens.Estimate(contextText))
		if contextText != "" {
			s.tr.Dump("context", contextText)
		}
		s.tr.Dump("prompt", prompt)
	}
	response, err := s.gen.Generate(ctx, prompt, systemPrompt, contextText)
	if err != nil {
		return "", &Error{Msg: failMsg, Err: err}
	}
	if s.tr.Enabled() {
		s.tr.Printf("response: %d bytes, ~%d tokens\n", len(response), tokens.Estimate(response))
	}
	if s.autoCommit {
		if err := s.record(task, prompt, response); err != nil {
			return "", err
		}
	}
	return response, nil
}

// record appends one session-log entry and, when the worktree has changes,
// commits everything on the session branch.
func (s *liveSession) record(task, prompt, response string) error {
	entry := LogEntry{
		Session:  s.id,
		Command:  task,
		Time:     s.now().Format(time.RFC3339),
		Prompt:   prompt,
		Response: response,
	}
	if err := appendLogEntry(s.logPath, entry); err != nil {
		return &Error{Msg: "failed to record session log", Err: err}
	}
	changed, err := s.git.HasChanges()
	if err != nil {
		return &Error{Msg: "failed to commit session log", Err: err}
	}
	if !changed {
		return nil
	}
	message := commitMessage(task, prompt)
	if err := s.git.Commit(message, true); err != nil {
		return &Error{Msg: "failed to commit session log", Err: err}
	}
	if s.tr.Enabled() {
		s.tr.Printf("committed: %s\n", message)
	}
	return nil
}

// fileContext reads a worktree-relative file for inclusion in the generation
// context. Missing or unreadable files degrade to an empty context; oversized
// content is cut at the configured limit.
func (s *liveSession) fileContext(file string) string {
	if file == "" {
		return ""
	}
	path := filepath.Join(s.worktree, file)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		s.log.Debug("skipping file context", "file", file, "error", err)
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s.log.Debug("skipping file context", "file", file, "error", err)
		return ""
	}
	content := string(data)
	if s.maxFileSize > 0 && int64(len(content)) > s.maxFileSize {
		content = truncate(content, int(s.maxFileSize))
	}
	return "File: " + file + "\n" + content
}

func (s *liveSession) commitContext(opts CommitOptions) (string, error) {
	changed, err := s.git.HasChanges()
	if err != nil {
		return "", err
	}
	var blocks []string
	if changed {
		status, err := s.git.Status()
		if err != nil {
			return "", err
		}
		diff, err := s.git.Diff()
		if err != nil {
			return "", err
		}
		blocks = append(blocks,
			"Change summary (status):\n"+status,
			"Diff:\n"+truncate(diff, maxDiffBytes))
	} else {
		blocks = append(blocks, "No changes detected in working directory.")
	}
	if opts.Type != "" {
		blocks = append(blocks, "Commit type: "+opts.Type)
	}
	if s.commitStyle != "" {
		blocks = append(blocks, "Commit style: "+s.commitStyle)
	}
	return joinBlocks(blocks...), nil
}

// identQuery matches a bare identifier; such queries narrow declaration
// searches to an exact name.
var identQuery = regexp.MustCompile(`^\w+$`)

const maxSearchResults = 50

func (s *liveSession) searchContext(query string, opts SearchOptions) (string, error) {
	var lines []string
	switch opts.Kind {
	case "function", "class":
		name := ""
		if identQuery.MatchString(query) {
			name = query
		}
		var decls []scan.Declaration
		var err error
		if opts.Kind == "function" {
			decls, err = s.scanner.Functions(s.worktree, name)
		} else {
			decls, err = s.scanner.Classes(s.worktree, name)
		}
		if err != nil {
			return "", err
		}
		for _, d := range decls {
			lines = append(lines, fmt.Sprintf("%s:%d: %s", d.Path, d.Line, d.Signature))
		}
	default:
		matches, err := s.scanner.Search(s.worktree, query, opts.Regex)
		if err != nil {
			return "", err
		}
		for _, m := range matches {
			lines = append(lines, fmt.Sprintf("%s:%d: %s", m.Path, m.Line, m.Text))
		}
	}

	var blocks []string
	if opts.Kind != "" {
		blocks = append(blocks, "Search kind: "+opts.Kind)
	}
	if len(lines) == 0 {
		blocks = append(blocks, "No matches found.")
		return joinBlocks(blocks...), nil
	}
	omitted := 0
	if len(lines) > maxSearchResults {
		omitted = len(lines) - maxSearchResults
		lines = lines[:maxSearchResults]
	}
	block := "Matches:\n" + strings.Join(lines, "\n")
	if omitted > 0 {
		block += fmt.Sprintf("\n(%d more results omitted)", omitted)
	}
	blocks = append(blocks, block)
	return joinBlocks(blocks...), nil
}

// maxDiffBytes caps the diff included in commit-message context.
const maxDiffBytes = 32 * 1024

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[truncated]"
}

func joinBlocks(blocks ...string) string {
	var parts []string
	for _, b := range blocks {
		if b != "" {
			parts = append(parts, b)
		}
	}
	return strings.Join(parts, "\n\n")
}

// commitMessage builds the session-log commit subject for one task.
func commitMessage(task, prompt string) string {
	return "aside " + task + ": " + summarize(prompt)
}

// summarize reduces a prompt to a single-line subject of at most 72 runes.
func summarize(prompt string) string {
	line := prompt
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	const max = 72
	runes := []rune(line)
	if len(runes) > max {
		line = string(runes[:max-3]) + "..."
	}
	return line
}
