// Package config provides aside configuration with a defined load order:
// CLI flags > environment variables > project config > global config > defaults.
//
// Paths:
//   - Project: .aside/config.yaml (relative to repo root, written by aside init)
//   - Global: XDG config dir, e.g. ~/.config/aside/config.toml (see os.UserConfigDir)
//
// Environment variables (override config files when set):
//   - ASIDE_MODEL, ASIDE_API_URL, ASIDE_MAX_TOKENS,
//   - ASIDE_TIMEOUT (Go duration string or integer seconds),
//   - ASIDE_BRANCH_PREFIX, ASIDE_COMMIT_STYLE,
//   - ASIDE_AUTO_COMMIT (1/true/yes/on = true, 0/false/no/off = false),
//   - ASIDE_MAX_FILE_SIZE (bytes, or with KB/MB/GB suffix),
//   - ASIDE_LOG_LEVEL (debug, info, warn, error), ASIDE_LOG_FILE.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ProjectDir is the per-repository state directory.
const ProjectDir = ".aside"

// ProjectConfigName is the project config file name inside ProjectDir.
const ProjectConfigName = "config.yaml"

// ProjectConfigPath returns the project config path under repoRoot.
func ProjectConfigPath(repoRoot string) string {
	return filepath.Join(repoRoot, ProjectDir, ProjectConfigName)
}

// Config holds all aside configuration.
type Config struct {
	// Generation service.
	Model     string
	APIURL    string
	Timeout   time.Duration
	MaxTokens int

	// Session branches and commits.
	BranchPrefix string
	AutoCommit   bool
	CommitStyle  string

	// File scanning limits.
	MaxFileSize       int64 // bytes
	AllowedExtensions []string
	IgnorePatterns    []string

	// Diagnostics and the per-session task log (path relative to the worktree).
	LogLevel string
	LogFile  string
}

// Overrides represents optional CLI flag overrides. Non-nil pointer means
// "override with this value".
type Overrides struct {
	Model        *string
	APIURL       *string
	Timeout      *time.Duration
	MaxTokens    *int
	BranchPrefix *string
	AutoCommit   *bool
	CommitStyle  *string
	LogLevel     *string
}

// LoadOptions configures Load. All fields are optional.
type LoadOptions struct {
	// RepoRoot is the repository root; if set, the project config is
	// RepoRoot/.aside/config.yaml.
	RepoRoot string
	// GlobalConfigPath is the global config file path; if empty, the XDG path
	// is used.
	GlobalConfigPath string
	// Env is the environment key=value slice; if nil, os.Environ() is used.
	Env []string
	// Overrides are applied last (highest precedence).
	Overrides *Overrides
}

const (
	_defaultModel       = "llama3.2"
	_defaultAPIURL      = "http://localhost:11434"
	_defaultTimeout     = 60 * time.Second
	_defaultMaxTokens   = 4096
	_defaultPrefix      = "aside"
	_defaultCommitStyle = "conventional"
	_defaultMaxFileSize = 10 * 1024 * 1024
	_defaultLogLevel    = "info"
	_defaultLogFile     = ".aside/session.log"
)

func defaultExtensions() []string {
	return []string{".go", ".py", ".js", ".ts", ".md"}
}

func defaultIgnores() []string {
	return []string{"*.pyc", "__pycache__", ".git", "node_modules", ".aside"}
}

// DefaultConfig returns the default configuration (no I/O).
func DefaultConfig() Config {
	return Config{
		Model:             _defaultModel,
		APIURL:            _defaultAPIURL,
		Timeout:           _defaultTimeout,
		MaxTokens:         _defaultMaxTokens,
		BranchPrefix:      _defaultPrefix,
		AutoCommit:        true,
		CommitStyle:       _defaultCommitStyle,
		MaxFileSize:       _defaultMaxFileSize,
		AllowedExtensions: defaultExtensions(),
		IgnorePatterns:    defaultIgnores(),
		LogLevel:          _defaultLogLevel,
		LogFile:           _defaultLogFile,
	}
}

// Load loads configuration with precedence: defaults < global file < project
// file < env < overrides. Missing config files are ignored. Invalid TOML,
// YAML, or env values return an error.
func Load(opts LoadOptions) (*Config, error) {
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	cfg := DefaultConfig()

	globalPath := opts.GlobalConfigPath
	if globalPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("determine config directory: %w", err)
		}
		globalPath = filepath.Join(dir, "aside", "config.toml")
	}
	if err := mergeGlobal(&cfg, globalPath); err != nil {
		return nil, err
	}

	if opts.RepoRoot != "" {
		if err := mergeProject(&cfg, ProjectConfigPath(opts.RepoRoot)); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, opts.Env); err != nil {
		return nil, err
	}

	applyOverrides(&cfg, opts.Overrides)
	return &cfg, nil
}

// globalFile mirrors Config with pointer fields so absent keys keep the
// previous layer's value.
type globalFile struct {
	Model             *string  `toml:"model"`
	APIURL            *string  `toml:"api_url"`
	Timeout           *string  `toml:"timeout"`
	MaxTokens         *int     `toml:"max_tokens"`
	BranchPrefix      *string  `toml:"branch_prefix"`
	AutoCommit        *bool    `toml:"auto_commit"`
	CommitStyle       *string  `toml:"commit_style"`
	MaxFileSize       *string  `toml:"max_file_size"`
	AllowedExtensions []string `toml:"allowed_extensions"`
	IgnorePatterns    []string `toml:"ignore_patterns"`
	LogLevel          *string  `toml:"log_level"`
	LogFile           *string  `toml:"log_file"`
}

// mergeGlobal reads a flat TOML file and merges present keys into cfg.
// Missing file is skipped without error.
func mergeGlobal(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read global config: %w", err)
	}
	var file globalFile
	if _, err := toml.Decode(string(data), &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return mergeKeys(cfg, &file, path)
}

// projectFile is the nested YAML document aside init writes.
type projectFile struct {
	Ollama struct {
		Model     *string `yaml:"model"`
		APIURL    *string `yaml:"api_url"`
		Timeout   *string `yaml:"timeout"`
		MaxTokens *int    `yaml:"max_tokens"`
	} `yaml:"ollama"`
	Git struct {
		BranchPrefix *string `yaml:"branch_prefix"`
		AutoCommit   *bool   `yaml:"auto_commit"`
		CommitStyle  *string `yaml:"commit_style"`
	} `yaml:"git"`
	Safety struct {
		MaxFileSize       *string  `yaml:"max_file_size"`
		AllowedExtensions []string `yaml:"allowed_extensions"`
		IgnorePatterns    []string `yaml:"ignore_patterns"`
	} `yaml:"safety"`
	Logging struct {
		Level *string `yaml:"level"`
		File  *string `yaml:"file"`
	} `yaml:"logging"`
}

// mergeProject reads the nested YAML project file and merges present keys
// into cfg. Missing file is skipped without error.
func mergeProject(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read project config: %w", err)
	}
	var file projectFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	flat := globalFile{
		Model:             file.Ollama.Model,
		APIURL:            file.Ollama.APIURL,
		Timeout:           file.Ollama.Timeout,
		MaxTokens:         file.Ollama.MaxTokens,
		BranchPrefix:      file.Git.BranchPrefix,
		AutoCommit:        file.Git.AutoCommit,
		CommitStyle:       file.Git.CommitStyle,
		MaxFileSize:       file.Safety.MaxFileSize,
		AllowedExtensions: file.Safety.AllowedExtensions,
		IgnorePatterns:    file.Safety.IgnorePatterns,
		LogLevel:          file.Logging.Level,
		LogFile:           file.Logging.File,
	}
	return mergeKeys(cfg, &flat, path)
}

func mergeKeys(cfg *Config, file *globalFile, path string) error {
	if file.Model != nil && *file.Model != "" {
		cfg.Model = *file.Model
	}
	if file.APIURL != nil && *file.APIURL != "" {
		cfg.APIURL = *file.APIURL
	}
	if file.Timeout != nil && *file.Timeout != "" {
		d, err := parseDuration(*file.Timeout)
		if err != nil {
			return fmt.Errorf("%s: timeout: %w", path, err)
		}
		cfg.Timeout = d
	}
	if file.MaxTokens != nil && *file.MaxTokens > 0 {
		cfg.MaxTokens = *file.MaxTokens
	}
	if file.BranchPrefix != nil && *file.BranchPrefix != "" {
		cfg.BranchPrefix = *file.BranchPrefix
	}
	if file.AutoCommit != nil {
		cfg.AutoCommit = *file.AutoCommit
	}
	if file.CommitStyle != nil && *file.CommitStyle != "" {
		cfg.CommitStyle = *file.CommitStyle
	}
	if file.MaxFileSize != nil && *file.MaxFileSize != "" {
		n, err := parseSize(*file.MaxFileSize)
		if err != nil {
			return fmt.Errorf("%s: max_file_size: %w", path, err)
		}
		cfg.MaxFileSize = n
	}
	if file.AllowedExtensions != nil {
		cfg.AllowedExtensions = file.AllowedExtensions
	}
	if file.IgnorePatterns != nil {
		cfg.IgnorePatterns = file.IgnorePatterns
	}
	if file.LogLevel != nil && *file.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(*file.LogLevel)
	}
	if file.LogFile != nil && *file.LogFile != "" {
		cfg.LogFile = *file.LogFile
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	// Try Go duration first (e.g. "5m", "30s")
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}
	// Try integer seconds
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return time.Duration(n) * time.Second, nil
}

// parseSize parses a byte count with an optional KB/MB/GB suffix
// (case-insensitive), e.g. "10MB", "512kb", "1048576".
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "GB"):
		mult, s = 1024*1024*1024, strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		mult, s = 1024*1024, strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		mult, s = 1024, strings.TrimSuffix(s, "KB")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}

// env key names for config
const (
	envModel        = "ASIDE_MODEL"
	envAPIURL       = "ASIDE_API_URL"
	envTimeout      = "ASIDE_TIMEOUT"
	envMaxTokens    = "ASIDE_MAX_TOKENS"
	envBranchPrefix = "ASIDE_BRANCH_PREFIX"
	envAutoCommit   = "ASIDE_AUTO_COMMIT"
	envCommitStyle  = "ASIDE_COMMIT_STYLE"
	envMaxFileSize  = "ASIDE_MAX_FILE_SIZE"
	envLogLevel     = "ASIDE_LOG_LEVEL"
	envLogFile      = "ASIDE_LOG_FILE"
)

func applyEnv(cfg *Config, env []string) error {
	vals := make(map[string]string)
	for _, e := range env {
		idx := strings.Index(e, "=")
		if idx <= 0 {
			continue
		}
		vals[strings.TrimSpace(e[:idx])] = strings.TrimSpace(e[idx+1:])
	}
	if v, ok := vals[envModel]; ok && v != "" {
		cfg.Model = v
	}
	if v, ok := vals[envAPIURL]; ok && v != "" {
		cfg.APIURL = v
	}
	if v, ok := vals[envTimeout]; ok && v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s must be a valid duration: %w", envTimeout, err)
		}
		cfg.Timeout = d
	}
	if v, ok := vals[envMaxTokens]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive number", envMaxTokens)
		}
		cfg.MaxTokens = n
	}
	if v, ok := vals[envBranchPrefix]; ok && v != "" {
		cfg.BranchPrefix = v
	}
	if v, ok := vals[envAutoCommit]; ok && v != "" {
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("%s must be 1/true/yes/on or 0/false/no/off", envAutoCommit)
		}
		cfg.AutoCommit = b
	}
	if v, ok := vals[envCommitStyle]; ok && v != "" {
		cfg.CommitStyle = v
	}
	if v, ok := vals[envMaxFileSize]; ok && v != "" {
		n, err := parseSize(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envMaxFileSize, err)
		}
		cfg.MaxFileSize = n
	}
	if v, ok := vals[envLogLevel]; ok && v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := vals[envLogFile]; ok && v != "" {
		cfg.LogFile = v
	}
	return nil
}

// parseBool parses common boolean env values: 1/true/yes/on = true,
// 0/false/no/off = false (case-insensitive).
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o == nil {
		return
	}
	if o.Model != nil && *o.Model != "" {
		cfg.Model = *o.Model
	}
	if o.APIURL != nil && *o.APIURL != "" {
		cfg.APIURL = *o.APIURL
	}
	if o.Timeout != nil {
		cfg.Timeout = *o.Timeout
	}
	if o.MaxTokens != nil && *o.MaxTokens > 0 {
		cfg.MaxTokens = *o.MaxTokens
	}
	if o.BranchPrefix != nil && *o.BranchPrefix != "" {
		cfg.BranchPrefix = *o.BranchPrefix
	}
	if o.AutoCommit != nil {
		cfg.AutoCommit = *o.AutoCommit
	}
	if o.CommitStyle != nil && *o.CommitStyle != "" {
		cfg.CommitStyle = *o.CommitStyle
	}
	if o.LogLevel != nil && *o.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(*o.LogLevel)
	}
}
