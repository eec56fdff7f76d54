// Package config loads application configuration from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// EnvPrefix is prepended to every variable name Load reads.
const EnvPrefix = "ELVAGENT_"

// LLM providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Git backends.
const (
	GitBackendGoGit = "gogit"
	GitBackendCLI   = "cli"
)

// defaultModels are the fix, describe and review models per provider.
var defaultModels = map[string][3]string{
	ProviderAnthropic: {"claude-sonnet-4-6", "claude-haiku-4-5-20251001", "claude-sonnet-4-6"},
	ProviderGemini:    {"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.5-pro"},
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken   string        `env:"GITHUB_TOKEN"`
	GitHubRepo    string        `env:"GITHUB_REPO"`
	GitHubTimeout time.Duration `env:"GITHUB_TIMEOUT,default=30s"`
	LogTimeout    time.Duration `env:"LOG_TIMEOUT,default=60s"`
	GitHubRPS     float64       `env:"GITHUB_RPS,default=5"`

	RepoPath       string        `env:"REPO_PATH,default=."`
	PollInterval   time.Duration `env:"POLL_INTERVAL,default=60s"`
	MaxFixAttempts int           `env:"MAX_FIX_ATTEMPTS,default=3"`
	MaxCycles      int           `env:"MAX_CYCLES,default=0"`
	DBPath         string        `env:"DB_PATH"`
	ListenAddr     string        `env:"LISTEN_ADDR,default=127.0.0.1:8080"`

	LLMProvider     string        `env:"LLM_PROVIDER,default=anthropic"`
	LLMTimeout      time.Duration `env:"LLM_TIMEOUT,default=120s"`
	AnthropicAPIKey string        `env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey    string        `env:"GEMINI_API_KEY"`
	FixModel        string        `env:"FIX_MODEL"`
	DescribeModel   string        `env:"DESCRIBE_MODEL"`
	ReviewModel     string        `env:"REVIEW_MODEL"`

	GitBackend     string        `env:"GIT_BACKEND,default=gogit"`
	GitTimeout     time.Duration `env:"GIT_TIMEOUT,default=5m"`
	GitAuthorName  string        `env:"GIT_AUTHOR_NAME,default=ElvAgent"`
	GitAuthorEmail string        `env:"GIT_AUTHOR_EMAIL,default=elvagent@noreply"`

	RuffBin   string `env:"RUFF_BIN,default=ruff"`
	RuffPaths string `env:"RUFF_PATHS,default=src/ tests/"`

	MaxLogChars     int `env:"MAX_LOG_CHARS,default=4000"`
	MaxFileBytes    int `env:"MAX_FILE_BYTES,default=20000"`
	MaxContextBytes int `env:"MAX_CONTEXT_BYTES,default=60000"`
}

// ledgerFile is the ledger's name under the state directory.
const ledgerFile = "elvagent.db"

// Owner returns the owner half of GitHubRepo.
func (c *Config) Owner() string {
	owner, _, _ := strings.Cut(c.GitHubRepo, "/")
	return owner
}

// Repo returns the repository half of GitHubRepo.
func (c *Config) Repo() string {
	_, repo, _ := strings.Cut(c.GitHubRepo, "/")
	return repo
}

// RuffTargets returns the whitespace-separated formatter paths.
func (c *Config) RuffTargets() []string {
	return strings.Fields(c.RuffPaths)
}

// Load reads configuration from ELVAGENT_-prefixed environment variables and
// returns a validated Config. ELVAGENT_GITHUB_REPO is required. A missing
// ELVAGENT_GITHUB_TOKEN only logs a warning. Provider API keys fall back to
// the unprefixed ANTHROPIC_API_KEY and GEMINI_API_KEY.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith is Load with an explicit variable source.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, l),
	}); err != nil {
		return nil, fmt.Errorf("process %s environment: %w", EnvPrefix, err)
	}

	if cfg.AnthropicAPIKey == "" {
		cfg.AnthropicAPIKey, _ = l.Lookup("ANTHROPIC_API_KEY")
	}
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey, _ = l.Lookup("GEMINI_API_KEY")
	}
	if cfg.DBPath == "" {
		dir, err := stateDir(l)
		if err != nil {
			return nil, fmt.Errorf("%sDB_PATH is not set: %w", EnvPrefix, err)
		}
		cfg.DBPath = filepath.Join(dir, ledgerFile)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyModelDefaults()

	if cfg.GitHubToken == "" {
		slog.Warn(EnvPrefix + "GITHUB_TOKEN is not set; API calls are unauthenticated and pushes will fail")
	}
	return &cfg, nil
}

// stateDir is $XDG_STATE_HOME/elvagent, falling back to ~/.local/state/elvagent.
func stateDir(l envconfig.Lookuper) (string, error) {
	if dir, ok := l.Lookup("XDG_STATE_HOME"); ok && filepath.IsAbs(dir) {
		return filepath.Join(dir, "elvagent"), nil
	}
	home, ok := l.Lookup("HOME")
	if !ok || home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return "", err
		}
	}
	return filepath.Join(home, ".local", "state", "elvagent"), nil
}

// pathWithin reports whether p names root itself or something beneath it.
func pathWithin(root, p string) (bool, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false, err
	}
	absP, err := filepath.Abs(p)
	if err != nil {
		return false, err
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}
	if resolved, err := filepath.EvalSymlinks(filepath.Dir(absP)); err == nil {
		absP = filepath.Join(resolved, filepath.Base(absP))
	}
	rel, err := filepath.Rel(absRoot, absP)
	if err != nil {
		return false, nil
	}
	return filepath.IsLocal(rel), nil
}

func (c *Config) applyModelDefaults() {
	d := defaultModels[c.LLMProvider]
	if c.FixModel == "" {
		c.FixModel = d[0]
	}
	if c.DescribeModel == "" {
		c.DescribeModel = d[1]
	}
	if c.ReviewModel == "" {
		c.ReviewModel = d[2]
	}
}

func (c *Config) validate() error {
	var errs []error

	owner, repo, ok := strings.Cut(c.GitHubRepo, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		errs = append(errs, fmt.Errorf("%sGITHUB_REPO must be owner/repo, got %q", EnvPrefix, c.GitHubRepo))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%sPOLL_INTERVAL must be positive, got %s", EnvPrefix, c.PollInterval))
	}
	if c.MaxFixAttempts < 1 {
		errs = append(errs, fmt.Errorf("%sMAX_FIX_ATTEMPTS must be at least 1, got %d", EnvPrefix, c.MaxFixAttempts))
	}
	if c.MaxCycles < 0 {
		errs = append(errs, fmt.Errorf("%sMAX_CYCLES must not be negative, got %d", EnvPrefix, c.MaxCycles))
	}
	if c.GitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%sGIT_TIMEOUT must be positive, got %s", EnvPrefix, c.GitTimeout))
	}
	if c.GitHubRPS <= 0 {
		errs = append(errs, fmt.Errorf("%sGITHUB_RPS must be positive, got %v", EnvPrefix, c.GitHubRPS))
	}
	switch c.LLMProvider {
	case ProviderAnthropic, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("%sLLM_PROVIDER must be %q or %q, got %q", EnvPrefix, ProviderAnthropic, ProviderGemini, c.LLMProvider))
	}
	switch c.GitBackend {
	case GitBackendGoGit, GitBackendCLI:
	default:
		errs = append(errs, fmt.Errorf("%sGIT_BACKEND must be %q or %q, got %q", EnvPrefix, GitBackendGoGit, GitBackendCLI, c.GitBackend))
	}
	// The working copy is hard-reset and cleaned before every fix, which
	// would delete a ledger stored inside it.
	if inside, err := pathWithin(c.RepoPath, c.DBPath); err != nil {
		errs = append(errs, fmt.Errorf("%sDB_PATH: %w", EnvPrefix, err))
	} else if inside {
		errs = append(errs, fmt.Errorf("%sDB_PATH %q must be outside %sREPO_PATH %q", EnvPrefix, c.DBPath, EnvPrefix, c.RepoPath))
	}
	if len(c.RuffTargets()) == 0 {
		errs = append(errs, fmt.Errorf("%sRUFF_PATHS must name at least one path", EnvPrefix))
	}

	return errors.Join(errs...)
}
