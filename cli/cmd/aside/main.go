package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"aside/cli/internal/config"
	"aside/cli/internal/git"
	"aside/cli/internal/logger"
	"aside/cli/internal/ollama"
	"aside/cli/internal/session"
	"aside/cli/internal/trace"
	"aside/cli/internal/version"
)

// errExit is an error that carries an exit code for the CLI. Use errors.As to detect it.
type errExit int

func (e errExit) Error() string {
	return "exit " + strconv.Itoa(int(e))
}

// responseOut is the writer for task responses. Tests may replace it to
// capture output.
var responseOut io.Writer = os.Stdout

func main() {
	os.Exit(Run())
}

// Run is the entry point for the CLI. It is exported for testing.
func Run() int {
	return runCLI(os.Args[1:])
}

func runCLI(args []string) int {
	rootCmd := &cobra.Command{
		Use:     "aside",
		Short:   "Local AI code assistant that works in disposable git worktrees",
		Version: version.String(),
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Print progress and prompt dumps to stderr")
	rootCmd.PersistentFlags().String("model", "", "Model to use (overrides config and env)")
	rootCmd.PersistentFlags().String("branch", "", "Session branch name (default <prefix>/session-<timestamp>)")
	rootCmd.PersistentFlags().Bool("no-commit", false, "Skip the session log commit after each task")
	rootCmd.PersistentFlags().Bool("dry-run", false, "Describe what would happen without touching anything")
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newExplainCmd())
	rootCmd.AddCommand(newFixCmd())
	rootCmd.AddCommand(newRefactorCmd())
	rootCmd.AddCommand(newTestCmd())
	rootCmd.AddCommand(newCommitCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newModelsCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		var exitErr errExit
		if errors.As(err, &exitErr) {
			return int(exitErr)
		}
		printError(err)
		return 1
	}
	return 0
}

// printError writes "error: <msg>" plus a Details line when a cause is known.
func printError(err error) {
	var se *session.Error
	if errors.As(err, &se) {
		fmt.Fprintf(os.Stderr, "error: %s\n", se.Msg)
		if se.Err != nil {
			fmt.Fprintf(os.Stderr, "Details: %v\n", se.Err)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	if u := errors.Unwrap(err); u != nil {
		fmt.Fprintf(os.Stderr, "Details: %v\n", u)
	}
}

// cliEnv is the per-invocation wiring shared by all commands.
type cliEnv struct {
	root   string
	cfg    *config.Config
	log    *slog.Logger
	tr     *trace.Tracer
	dryRun bool
	branch string
}

func setup(cmd *cobra.Command) (*cliEnv, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determine current directory: %w", err)
	}
	root := cwd
	if r, rootErr := git.New(cwd).Root(); rootErr == nil {
		root = r
	}
	cfg, err := config.Load(config.LoadOptions{RepoRoot: root, Overrides: overridesFromFlags(cmd)})
	if err != nil {
		return nil, err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	level := cfg.LogLevel
	var traceOut io.Writer
	if verbose {
		level = "debug"
		traceOut = os.Stderr
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	branch, _ := cmd.Flags().GetString("branch")
	tr := trace.New(traceOut)
	if tr.Enabled() {
		tr.Section("config")
		tr.Printf("model: %s\n", cfg.Model)
		tr.Printf("api url: %s\n", cfg.APIURL)
		tr.Printf("timeout: %s\n", cfg.Timeout)
		tr.Printf("branch prefix: %s\n", cfg.BranchPrefix)
		tr.Printf("auto commit: %t\n", cfg.AutoCommit)
	}
	return &cliEnv{
		root:   root,
		cfg:    cfg,
		log:    logger.New(os.Stderr, level),
		tr:     tr,
		dryRun: dryRun,
		branch: branch,
	}, nil
}

func (e *cliEnv) manager() *session.Manager {
	return session.NewManager(session.ManagerOptions{
		RepoRoot:       e.root,
		Config:         e.cfg,
		Logger:         e.log,
		Tracer:         e.tr,
		DryRun:         e.dryRun,
		BranchOverride: e.branch,
	})
}

// overridesFromFlags maps the persistent flags onto config overrides when set.
func overridesFromFlags(cmd *cobra.Command) *config.Overrides {
	modelChanged := cmd.Flags().Lookup("model") != nil && cmd.Flags().Lookup("model").Changed
	noCommitChanged := cmd.Flags().Lookup("no-commit") != nil && cmd.Flags().Lookup("no-commit").Changed
	if !modelChanged && !noCommitChanged {
		return nil
	}
	o := &config.Overrides{}
	if modelChanged {
		v, _ := cmd.Flags().GetString("model")
		o.Model = &v
	}
	if noCommitChanged {
		v, _ := cmd.Flags().GetBool("no-commit")
		commit := !v
		o.AutoCommit = &commit
	}
	return o
}

// runTask runs one assistant task inside a managed session and prints the
// response.
func runTask(cmd *cobra.Command, task string, fn func(ctx context.Context, s session.Session) (string, error)) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	var response string
	err = env.manager().WithSession(cmd.Context(), func(s session.Session) error {
		var taskErr error
		response, taskErr = fn(cmd.Context(), s)
		return taskErr
	})
	if err != nil {
		if errors.Is(err, ollama.ErrUnreachable) {
			fmt.Fprintf(os.Stderr, "Generation service unreachable at %s. Is the server running? For local: ollama serve.\n", env.cfg.APIURL)
			fmt.Fprintf(os.Stderr, "Details: %v\n", err)
			return errExit(2)
		}
		return err
	}
	printResponse(task, response)
	return nil
}

func printResponse(task, body string) {
	fmt.Fprintf(responseOut, "--- %s ---\n%s\n", task, strings.TrimRight(body, "\n"))
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Prepare the repository for assistant sessions",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := env.manager().InitProject(cmd.Context()); err != nil {
		return err
	}
	if env.dryRun {
		fmt.Fprintf(responseOut, "dry run: would initialize project in %s\n", env.root)
		return nil
	}
	fmt.Fprintf(responseOut, "Initialized project in %s\n", env.root)
	fmt.Fprintf(responseOut, "Model: %s\n", env.cfg.Model)
	checkService(cmd.Context(), env.cfg)
	return nil
}

// checkService warns, without failing, when the generation service or the
// configured model is unavailable.
func checkService(ctx context.Context, cfg *config.Config) {
	client := ollama.NewClient(cfg.APIURL, cfg.Model, ollama.Options{Timeout: cfg.Timeout})
	res, err := client.Check(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: generation service unreachable at %s\n", cfg.APIURL)
		return
	}
	if !res.ModelPresent {
		fmt.Fprintf(os.Stderr, "warning: model %q not found. Pull it with: ollama pull %s\n", client.Model(), client.Model())
	}
}

func newExplainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain PROMPT",
		Short: "Explain code or concepts",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runExplain,
	}
	cmd.Flags().StringP("file", "f", "", "File to include as context")
	return cmd
}

func runExplain(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	prompt := strings.Join(args, " ")
	return runTask(cmd, "explain", func(ctx context.Context, s session.Session) (string, error) {
		return s.Explain(ctx, prompt, session.ExplainOptions{File: file})
	})
}

func newFixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix PROMPT",
		Short: "Diagnose and fix a code issue",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runFix,
	}
	cmd.Flags().StringP("file", "f", "", "File to include as context")
	cmd.Flags().StringP("error", "e", "", "Error message the fix should address")
	return cmd
}

func runFix(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	errorText, _ := cmd.Flags().GetString("error")
	prompt := strings.Join(args, " ")
	return runTask(cmd, "fix", func(ctx context.Context, s session.Session) (string, error) {
		return s.Fix(ctx, prompt, session.FixOptions{File: file, ErrorText: errorText})
	})
}

func newRefactorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refactor PROMPT",
		Short: "Refactor code while preserving behavior",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRefactor,
	}
	cmd.Flags().StringP("file", "f", "", "File to include as context")
	cmd.Flags().StringP("pattern", "p", "", "Refactoring pattern to apply (e.g. \"extract method\")")
	return cmd
}

func runRefactor(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	pattern, _ := cmd.Flags().GetString("pattern")
	prompt := strings.Join(args, " ")
	return runTask(cmd, "refactor", func(ctx context.Context, s session.Session) (string, error) {
		return s.Refactor(ctx, prompt, session.RefactorOptions{File: file, Pattern: pattern})
	})
}

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test PROMPT",
		Short: "Generate tests for existing code",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runTest,
	}
	cmd.Flags().StringP("file", "f", "", "File to include as context")
	cmd.Flags().StringP("style", "s", "", "Test style or framework to target")
	cmd.Flags().Bool("coverage", false, "Ask for coverage analysis alongside the tests")
	return cmd
}

func runTest(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	style, _ := cmd.Flags().GetString("style")
	coverage, _ := cmd.Flags().GetBool("coverage")
	prompt := strings.Join(args, " ")
	return runTask(cmd, "test", func(ctx context.Context, s session.Session) (string, error) {
		return s.GenerateTests(ctx, prompt, session.TestOptions{File: file, Style: style, Coverage: coverage})
	})
}

func newCommitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit [MESSAGE]",
		Short: "Generate a commit message from working tree changes",
		Args:  cobra.ArbitraryArgs,
		RunE:  runCommit,
	}
	cmd.Flags().StringP("type", "t", "", "Conventional commit type hint (feat, fix, chore, ...)")
	return cmd
}

func runCommit(cmd *cobra.Command, args []string) error {
	commitType, _ := cmd.Flags().GetString("type")
	message := strings.Join(args, " ")
	return runTask(cmd, "commit", func(ctx context.Context, s session.Session) (string, error) {
		return s.CreateCommit(ctx, message, session.CommitOptions{Type: commitType})
	})
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search the codebase and summarize what turns up",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}
	cmd.Flags().BoolP("regex", "r", false, "Treat the query as a regular expression")
	cmd.Flags().String("type", "", "What to look for: text (default), function, or class")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	regex, _ := cmd.Flags().GetBool("regex")
	kind, _ := cmd.Flags().GetString("type")
	switch kind {
	case "", "text", "function", "class":
	default:
		return errors.New("invalid search type; use text, function, or class")
	}
	query := strings.Join(args, " ")
	return runTask(cmd, "search", func(ctx context.Context, s session.Session) (string, error) {
		return s.SearchCode(ctx, query, session.SearchOptions{Regex: regex, Kind: kind})
	})
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models available on the generation service",
		Args:  cobra.NoArgs,
		RunE:  runModels,
	}
}

func runModels(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	client := ollama.NewClient(env.cfg.APIURL, env.cfg.Model, ollama.Options{Timeout: env.cfg.Timeout})
	res, err := client.Check(cmd.Context())
	if err != nil {
		if errors.Is(err, ollama.ErrUnreachable) {
			fmt.Fprintf(os.Stderr, "Generation service unreachable at %s. Is the server running? For local: ollama serve.\n", env.cfg.APIURL)
			fmt.Fprintf(os.Stderr, "Details: %v\n", err)
			return errExit(2)
		}
		return err
	}
	if len(res.ModelNames) == 0 {
		fmt.Fprintln(responseOut, "No models installed.")
	} else {
		fmt.Fprintln(responseOut, "Available models:")
		for _, name := range res.ModelNames {
			fmt.Fprintf(responseOut, "  %s\n", name)
		}
	}
	if !res.ModelPresent {
		fmt.Fprintf(os.Stderr, "Configured model %q not found. Pull it with: ollama pull %s\n", client.Model(), client.Model())
		return errExit(1)
	}
	fmt.Fprintf(responseOut, "Configured model: %s\n", client.Model())
	return nil
}

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove leftover session worktrees",
		Args:  cobra.NoArgs,
		RunE:  runClean,
	}
}

func runClean(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	n, err := env.manager().CleanSessions(cmd.Context())
	if err != nil {
		return err
	}
	if env.dryRun {
		fmt.Fprintf(responseOut, "Would remove %d session worktree(s).\n", n)
		return nil
	}
	fmt.Fprintf(responseOut, "Removed %d session worktree(s).\n", n)
	return nil
}
