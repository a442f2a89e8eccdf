// Package ollama provides an HTTP client for the Ollama API: single-shot text
// generation, model listing, and availability checks.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	_defaultTimeout     = 60 * time.Second
	_defaultMaxTokens   = 4096
	_defaultTemperature = 0.7
)

// ErrUnreachable indicates the Ollama server could not be reached (connection
// refused, timeout, or non-2xx).
var ErrUnreachable = errors.New("ollama server unreachable")

// Error reports a failed client operation. The cause may wrap ErrUnreachable.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "ollama " + e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Options fixes generation behavior for one client instance; nothing varies
// per call.
type Options struct {
	Timeout     time.Duration // HTTP timeout; 0 means 60s
	MaxTokens   int           // num_predict budget; 0 means 4096
	Temperature float64       // 0 means 0.7
	HTTPClient  *http.Client  // overrides Timeout when set
}

// Client calls the Ollama API with a fixed model. Zero value is not valid;
// use NewClient.
type Client struct {
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// CheckResult is the result of a health/model check.
type CheckResult struct {
	Reachable    bool     // Server responded with 200.
	ModelPresent bool     // Configured model name appears in the tags list.
	ModelNames   []string // All model names from /api/tags (for diagnostics).
}

// NewClient builds an Ollama client. baseURL is the API root
// (e.g. http://localhost:11434); a trailing slash is trimmed.
func NewClient(baseURL, model string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = _defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = _defaultMaxTokens
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = _defaultTemperature
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		httpClient:  httpClient,
	}
}

// Model returns the model identifier the client is bound to.
func (c *Client) Model() string { return c.model }

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response *string `json:"response"`
}

// assemblePrompt layers optional context and system framing around the user
// prompt: context first, then "System: ...\n\nUser: ..." when a system prompt
// is present, otherwise the bare prompt.
func assemblePrompt(prompt, systemPrompt, contextText string) string {
	full := prompt
	if systemPrompt != "" {
		full = "System: " + systemPrompt + "\n\nUser: " + prompt
	}
	if contextText != "" {
		full = contextText + "\n\n" + full
	}
	return full
}

// Generate POSTs a single non-streaming completion request to /api/generate
// and returns the response text. A success payload that lacks the response
// field yields an empty string, not an error. Transport failures, non-2xx
// statuses, and undecodable bodies return *Error.
func (c *Client) Generate(ctx context.Context, prompt, systemPrompt, contextText string) (string, error) {
	payload := generateRequest{
		Model:  c.model,
		Prompt: assemblePrompt(prompt, systemPrompt, contextText),
		Stream: false,
		Options: generateOptions{
			NumPredict:  c.maxTokens,
			Temperature: c.temperature,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Op: "encode request", Err: err}
	}
	url := c.baseURL + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Op: "generate", Err: errors.Join(ErrUnreachable, err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Op: "generate", Err: fmt.Errorf("%w: HTTP %d", ErrUnreachable, resp.StatusCode)}
	}
	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &Error{Op: "parse response", Err: err}
	}
	if out.Response == nil {
		return "", nil
	}
	return *out.Response, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels GETs /api/tags and returns the available model names.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	url := c.baseURL + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Op: "build tags request", Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: "list models", Err: errors.Join(ErrUnreachable, err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Op: "list models", Err: fmt.Errorf("%w: HTTP %d", ErrUnreachable, resp.StatusCode)}
	}
	var body tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &Error{Op: "parse tags response", Err: err}
	}
	names := make([]string, 0, len(body.Models))
	for _, m := range body.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Check verifies the server is reachable and whether the configured model is
// present in the tags list.
func (c *Client) Check(ctx context.Context) (*CheckResult, error) {
	names, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	modelPresent := false
	for _, n := range names {
		if n == c.model {
			modelPresent = true
			break
		}
	}
	return &CheckResult{
		Reachable:    true,
		ModelPresent: modelPresent,
		ModelNames:   names,
	}, nil
}
