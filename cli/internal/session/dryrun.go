package session

import "context"

// DryRun is a Session that touches nothing: no filesystem, no network, no
// git. Every task reports what a live session would have done.
type DryRun struct{}

var _ Session = DryRun{}

func (DryRun) Explain(_ context.Context, prompt string, _ ExplainOptions) (string, error) {
	return dryRunMessage("explain code", prompt), nil
}

func (DryRun) Fix(_ context.Context, prompt string, _ FixOptions) (string, error) {
	return dryRunMessage("generate a fix", prompt), nil
}

func (DryRun) Refactor(_ context.Context, prompt string, _ RefactorOptions) (string, error) {
	return dryRunMessage("refactor code", prompt), nil
}

func (DryRun) GenerateTests(_ context.Context, prompt string, _ TestOptions) (string, error) {
	return dryRunMessage("generate tests", prompt), nil
}

func (DryRun) CreateCommit(_ context.Context, message string, _ CommitOptions) (string, error) {
	return dryRunMessage("create a commit message", message), nil
}

func (DryRun) SearchCode(_ context.Context, query string, _ SearchOptions) (string, error) {
	return dryRunMessage("search the codebase", query), nil
}

func dryRunMessage(action, prompt string) string {
	msg := "dry run: would " + action
	if s := summarize(prompt); s != "" {
		msg += ": " + s
	}
	return msg
}
