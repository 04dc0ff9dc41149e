// Package app wires configuration into providers, agents and the runner.
// Both binaries build their evaluation pipeline through it.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/johnayoung/req-analyzer/internal/agent"
	"github.com/johnayoung/req-analyzer/internal/config"
	"github.com/johnayoung/req-analyzer/internal/logging"
	"github.com/johnayoung/req-analyzer/internal/provider"
	"github.com/johnayoung/req-analyzer/internal/runner"
)

// NewLogger builds the process logger from the log section of the config.
func NewLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Output = w
	if cfg.Format != "" {
		lc.Format = cfg.Format
	}
	return logging.New(lc), nil
}

var constructors = map[string]func() (provider.Provider, error){
	"openai":    func() (provider.Provider, error) { return provider.NewOpenAI() },
	"anthropic": func() (provider.Provider, error) { return provider.NewAnthropic() },
	"google":    func() (provider.Provider, error) { return provider.NewGoogle() },
}

// NewRegistry registers every provider whose credentials are present in the
// environment. Each client is rate limited and logged.
func NewRegistry(cfg config.Config, logger *slog.Logger) *provider.Registry {
	reg := provider.NewRegistry()
	for _, name := range config.Providers {
		p, err := constructors[name]()
		if err != nil {
			logger.Debug("provider not available", slog.String("provider", name), slog.Any("error", err))
			continue
		}
		reg.Register(name, wrap(p, name, cfg, logger))
	}
	return reg
}

func wrap(p provider.Provider, name string, cfg config.Config, logger *slog.Logger) provider.Provider {
	limited := provider.NewLimited(p, name, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	return provider.NewLogged(limited, name, logger)
}

// NewProvider returns the configured provider from reg.
func NewProvider(cfg config.Config, reg *provider.Registry) (provider.Provider, error) {
	p, err := reg.Get(cfg.Provider)
	if err != nil {
		available := reg.Names()
		if len(available) == 0 {
			return nil, fmt.Errorf("%w; no provider credentials found (set GOOGLE_API_KEY, OPENAI_API_KEY or ANTHROPIC_API_KEY)", err)
		}
		return nil, fmt.Errorf("%w; providers with credentials: %s", err, strings.Join(available, ", "))
	}
	return p, nil
}

// NewAgents creates the enabled agents in configuration order.
func NewAgents(cfg config.Config, p provider.Provider) ([]agent.Agent, error) {
	gen := generation(cfg)
	retry := agent.RetryPolicy{Attempts: cfg.Retry.Attempts, Backoff: cfg.Retry.Backoff}

	var agents []agent.Agent
	for _, ac := range cfg.EnabledAgents() {
		opts := []agent.Option{agent.WithGeneration(gen), agent.WithRetry(retry)}
		if ac.Template != nil {
			opts = append(opts, agent.WithTemplate(mergeTemplate(ac.Dimension, *ac.Template)))
		}
		a, err := agent.New(ac.Dimension, p, opts...)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, nil
}

// mergeTemplate fills fields left empty in t from the built-in template.
func mergeTemplate(dimension string, t agent.Template) agent.Template {
	base, _ := agent.DefaultTemplate(dimension)
	if strings.TrimSpace(t.Instructions) != "" {
		base.Instructions = t.Instructions
	}
	if strings.TrimSpace(t.Example) != "" {
		base.Example = t.Example
	}
	return base
}

func generation(cfg config.Config) agent.Generation {
	return agent.Generation{Model: cfg.Model, MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}
}

// NewRunner builds the evaluation runner for cfg on top of p.
func NewRunner(cfg config.Config, p provider.Provider, logger *slog.Logger, opts ...runner.Option) (*runner.Runner, error) {
	agents, err := NewAgents(cfg, p)
	if err != nil {
		return nil, err
	}

	all := []runner.Option{runner.WithLogger(logger)}
	if cfg.Refine {
		retry := agent.RetryPolicy{Attempts: cfg.Retry.Attempts, Backoff: cfg.Retry.Backoff}
		all = append(all, runner.WithRefiner(agent.NewRefiner(p, generation(cfg), retry)))
	}
	all = append(all, opts...)

	return runner.New(agents, runner.Config{
		Timeout:     cfg.Timeout,
		MaxLength:   cfg.MaxRequirementLength,
		Concurrency: cfg.Concurrency,
	}, all...)
}
