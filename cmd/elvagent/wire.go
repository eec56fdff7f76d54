package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/oauth2"

	githubadapter "github.com/ericfisherdev/elvagent/internal/adapter/driven/github"
	"github.com/ericfisherdev/elvagent/internal/adapter/driven/gitrepo"
	"github.com/ericfisherdev/elvagent/internal/adapter/driven/llm"
	"github.com/ericfisherdev/elvagent/internal/adapter/driven/shell"
	sqliteadapter "github.com/ericfisherdev/elvagent/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/elvagent/internal/application"
	"github.com/ericfisherdev/elvagent/internal/config"
	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

const (
	fixMaxTokens      = 4096
	describeMaxTokens = 1024
	reviewMaxTokens   = 1024
)

// agent is the fully wired application.
type agent struct {
	cfg      *config.Config
	db       *sqliteadapter.DB
	store    *sqliteadapter.EventRepo
	github   *githubadapter.Client
	registry *prometheus.Registry
	monitor  *application.CIMonitor
	loop     *application.CILoop
}

// openLedger opens the database and applies migrations.
func openLedger(cfg *config.Config) (*sqliteadapter.DB, error) {
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "path", cfg.DBPath)

	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("ledger schema ready", "version", version)
	return db, nil
}

// newGitHubClient creates the GitHub transport for the configured repository.
func newGitHubClient(cfg *config.Config) (*githubadapter.Client, error) {
	return githubadapter.NewClient(cfg.GitHubToken, cfg.GitHubRepo, cfg.GitHubRPS, githubadapter.Timeouts{
		Metadata: cfg.GitHubTimeout,
		Logs:     cfg.LogTimeout,
	})
}

// wire builds every adapter and service. The caller owns a.close.
func wire(ctx context.Context, cfg *config.Config) (*agent, error) {
	// 1. Ledger.
	db, err := openLedger(cfg)
	if err != nil {
		return nil, err
	}
	store := sqliteadapter.NewEventRepo(db)

	fail := func(err error) (*agent, error) {
		_ = db.Close()
		return nil, err
	}

	// 2. GitHub transport (reads and writes share one rate-limited client).
	ghClient, err := newGitHubClient(cfg)
	if err != nil {
		return fail(err)
	}

	// 3. Completion provider.
	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	slog.Info("completion provider ready", "provider", cfg.LLMProvider)

	// 4. Local working copy and formatter.
	runner := shell.NewExecRunner()
	wc, err := newWorkingCopy(cfg, runner)
	if err != nil {
		return fail(err)
	}
	formatter := shell.NewRuffFormatter(runner, cfg.RuffBin, cfg.RuffTargets())
	slog.Info("working copy opened", "path", wc.Dir(), "backend", cfg.GitBackend)

	// 5. Metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := application.NewMetrics(registry)

	// 6. Workers, dispatcher and recorder.
	fixer := application.NewCIFixer(ghClient, ghClient, store, wc, formatter, completer, application.FixerConfig{
		MaxAttempts: cfg.MaxFixAttempts,
		GitTimeout:  cfg.GitTimeout,
		LLM:         application.LLMSettings{Model: cfg.FixModel, MaxTokens: fixMaxTokens, Timeout: cfg.LLMTimeout},
		Limits: application.InvestigationLimits{
			MaxLogChars:     cfg.MaxLogChars,
			MaxFileBytes:    cfg.MaxFileBytes,
			MaxContextBytes: cfg.MaxContextBytes,
		},
	})
	describer := application.NewDescriber(ghClient, completer, application.LLMSettings{
		Model: cfg.DescribeModel, MaxTokens: describeMaxTokens, Timeout: cfg.LLMTimeout,
	})
	reviewer := application.NewReviewer(ghClient, ghClient, completer, application.LLMSettings{
		Model: cfg.ReviewModel, MaxTokens: reviewMaxTokens, Timeout: cfg.LLMTimeout,
	})
	dispatcher := application.NewDispatcher(describer, fixer, reviewer, metrics)
	recorder := application.NewRecorder(store, metrics)

	// 7. Monitor and scheduling loop.
	monitor := application.NewCIMonitor(ghClient, store, dispatcher, recorder, metrics)
	loop := application.NewCILoop(monitor, cfg.PollInterval, cfg.MaxCycles, metrics)

	return &agent{
		cfg:      cfg,
		db:       db,
		store:    store,
		github:   ghClient,
		registry: registry,
		monitor:  monitor,
		loop:     loop,
	}, nil
}

func (a *agent) close() {
	if err := a.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

func newCompleter(ctx context.Context, cfg *config.Config) (driven.Completer, error) {
	retry := llm.DefaultRetryPolicy()

	switch cfg.LLMProvider {
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, errors.New("gemini provider selected but no API key is configured")
		}
		c, err := llm.NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.FixModel, retry)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("anthropic provider selected but no API key is configured")
		}
		return llm.NewAnthropicCompleter(cfg.AnthropicAPIKey, cfg.FixModel, retry), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

func newWorkingCopy(cfg *config.Config, runner driven.CommandRunner) (driven.WorkingCopy, error) {
	author := gitrepo.Author{Name: cfg.GitAuthorName, Email: cfg.GitAuthorEmail}

	if cfg.GitBackend == config.GitBackendCLI {
		return gitrepo.NewCLIRepo(cfg.RepoPath, runner, author)
	}

	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHubToken})
	return gitrepo.OpenGoGit(cfg.RepoPath, tokens, author)
}
