package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bkyoung/covgate/internal/adapter/cli"
	"github.com/bkyoung/covgate/internal/adapter/git"
	"github.com/bkyoung/covgate/internal/adapter/gitlab"
	"github.com/bkyoung/covgate/internal/adapter/httpx"
	"github.com/bkyoung/covgate/internal/config"
	"github.com/bkyoung/covgate/internal/coverage"
	"github.com/bkyoung/covgate/internal/render"
	"github.com/bkyoung/covgate/internal/usecase/gate"
	"github.com/bkyoung/covgate/internal/version"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, cli.ErrGateFailed) {
			// The gate already wrote its report; the exit code is the verdict.
			os.Exit(1)
		}
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	// Create cancellable context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "covgate",
		EnvPrefix:   "COVGATE",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	repoDir := cfg.Git.RepositoryDir
	if repoDir == "" {
		repoDir = "."
	}
	gitEngine := git.NewEngine(repoDir)

	var logger httpx.Logger
	if cfg.Logging.Enabled {
		logger = httpx.NewDefaultLogger(
			httpx.ParseLogLevel(cfg.Logging.Level),
			httpx.ParseLogFormat(cfg.Logging.Format),
			cfg.Logging.RedactTokens,
		)
	}

	retryConf := buildRetryConfig(cfg.HTTP)

	covCfg := coverage.Config{
		IgnoredPrefixes: cfg.Report.IgnoredPrefixes,
		PackageRoots:    cfg.Report.PackageRoots,
	}

	policy := gate.DefaultPolicy()
	if cfg.Gate.LeniencyFloor > 0 {
		policy.LeniencyFloor = cfg.Gate.LeniencyFloor
	}
	if cfg.Gate.UncoveredLimit > 0 {
		policy.UncoveredLimit = cfg.Gate.UncoveredLimit
	}
	if cfg.Gate.MaxAggregateDrop > 0 {
		policy.MaxAggregateDrop = cfg.Gate.MaxAggregateDrop
	}

	renderer := render.NewRenderer(cfg.Render.ContextPadding)
	if cfg.Render.Emoji != nil {
		renderer.SetEmoji(*cfg.Render.Emoji)
	}
	evaluator := gate.NewEvaluator(policy, renderer)

	newChecker := func(statuses gate.StatusClient) *gate.Checker {
		return gate.NewChecker(gate.CheckerDeps{
			Git:            gitEngine,
			Statuses:       statuses,
			Evaluator:      evaluator,
			Policy:         policy,
			CoverageConfig: covCfg,
			Progress:       os.Stdout,
		})
	}

	newGateRunner := func(projectID, token string) cli.GateRunner {
		client := gitlab.NewClient(projectID, token)
		if cfg.GitLab.BaseURL != "" {
			client.SetBaseURL(cfg.GitLab.BaseURL)
		}
		client.SetStage(cfg.GitLab.Stage)
		if interval, err := time.ParseDuration(cfg.GitLab.PollInterval); err == nil {
			client.SetPollInterval(interval)
		} else if cfg.GitLab.PollInterval != "" {
			log.Printf("warning: invalid poll interval %q, using default", cfg.GitLab.PollInterval)
		}
		if timeout, err := time.ParseDuration(cfg.HTTP.Timeout); err == nil {
			client.SetTimeout(timeout)
		}
		client.SetRetryConfig(retryConf)
		if logger != nil {
			client.SetLogger(logger)
		}
		client.SetProgress(os.Stdout)
		return newChecker(client)
	}

	root := cli.NewRootCommand(cli.Dependencies{
		NewGateRunner:  newGateRunner,
		CurrentBranch:  gitEngine.CurrentBranch,
		DiffEvaluator:  newChecker(nil),
		DefaultDialect: cfg.Report.Dialect,
		Version:        version.Value(),
	})

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return nil
		}
		if errors.Is(err, cli.ErrGateFailed) {
			return err
		}
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "covgate"))
	}
	return paths
}

func buildRetryConfig(cfg config.HTTPConfig) httpx.RetryConfig {
	conf := httpx.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		conf.MaxRetries = cfg.MaxRetries
	}
	if d, err := time.ParseDuration(cfg.InitialBackoff); err == nil && d > 0 {
		conf.InitialBackoff = d
	}
	if d, err := time.ParseDuration(cfg.MaxBackoff); err == nil && d > 0 {
		conf.MaxBackoff = d
	}
	if cfg.BackoffMultiplier > 0 {
		conf.Multiplier = cfg.BackoffMultiplier
	}
	return conf
}
