package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/johnayoung/req-analyzer/internal/agent"
	"github.com/johnayoung/req-analyzer/internal/app"
	"github.com/johnayoung/req-analyzer/internal/config"
	"github.com/johnayoung/req-analyzer/internal/consensus"
	"github.com/johnayoung/req-analyzer/internal/output"
	"github.com/johnayoung/req-analyzer/internal/runner"
	"github.com/johnayoung/req-analyzer/internal/ui"
)

// Version information set via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type options struct {
	configPath  string
	file        string
	id          string
	context     string
	provider    string
	model       string
	timeout     time.Duration
	refine      bool
	quiet       bool
	json        bool
	requirement string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes bad input (2) from evaluation failures (1).
func exitCode(err error) int {
	if errors.Is(err, runner.ErrValidation) {
		return 2
	}
	return 1
}

func run() error {
	opts, err := parseFlags()
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(&cfg, opts)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Progress and the pretty result go to stderr; JSON goes to stdout.
	showUI := ui.IsTerminal(os.Stderr) && !opts.quiet && !opts.json
	startTime := time.Now()

	// Only errors are logged while the progress display is active.
	logCfg := cfg.Log
	if showUI {
		logCfg.Level = "error"
	}
	logger, err := app.NewLogger(logCfg, os.Stderr)
	if err != nil {
		return err
	}

	p, err := app.NewProvider(cfg, app.NewRegistry(cfg, logger))
	if err != nil {
		return err
	}

	dimensions := make([]string, 0, len(cfg.Agents))
	for _, a := range cfg.EnabledAgents() {
		dimensions = append(dimensions, a.Dimension)
	}
	progress := ui.NewProgress(os.Stderr, dimensions, !showUI)

	r, err := app.NewRunner(cfg, p, logger, runner.WithCallbacks(&runner.Callbacks{
		OnAgentStart: progress.AgentStarted,
		OnAgentComplete: func(dimension string, j agent.Judgment, _ time.Duration) {
			progress.AgentCompleted(dimension, j.Score)
		},
		OnAgentError: progress.AgentFailed,
	}))
	if err != nil {
		return err
	}

	if showUI {
		ui.PrintHeader(os.Stderr, opts.requirement)
		ui.PrintPhase(os.Stderr, fmt.Sprintf("Evaluating with %s (%s)...", cfg.Provider, cfg.Model))
		fmt.Fprintln(os.Stderr)
	}

	progress.Start()
	res, err := r.EvaluateRequirement(ctx, agent.Requirement{
		ID:      opts.id,
		Text:    opts.requirement,
		Context: opts.context,
	})
	progress.Stop()

	if err != nil {
		return fmt.Errorf("evaluating requirement: %w", err)
	}

	if !showUI {
		return writeJSON(os.Stdout, output.FromResult(res))
	}
	printResult(os.Stderr, res, len(dimensions), time.Since(startTime))
	return nil
}

func applyFlags(cfg *config.Config, opts *options) {
	if p := strings.ToLower(opts.provider); p != "" && p != cfg.Provider {
		cfg.Provider = p
		cfg.Model, _ = config.DefaultModel(p)
	}
	if opts.model != "" {
		cfg.Model = opts.model
	}
	if opts.timeout > 0 {
		cfg.Timeout = opts.timeout
	}
	if opts.refine {
		cfg.Refine = true
	}
}

func printResult(w io.Writer, res consensus.Result, total int, elapsed time.Duration) {
	ui.PrintSuccess(w, fmt.Sprintf("Received judgments for %d of %d dimensions", len(res.Breakdown), total))
	fmt.Fprintln(w)

	for _, j := range res.Breakdown {
		issues := make([]string, 0, len(j.Issues))
		for _, i := range j.Issues {
			issues = append(issues, fmt.Sprintf("[%s] %s", i.Severity, i.Description))
		}
		ui.PrintDimension(w, j.Dimension, j.Score, j.Rationale, issues, j.Suggestions)
	}

	ui.PrintVerdict(w, res.OverallScore, string(res.Verdict))
	ui.PrintList(w, "Suggestions", res.Suggestions)
	if res.RefinedRequirement != "" {
		ui.PrintList(w, "Refined requirement", []string{res.RefinedRequirement})
	}

	ui.PrintSummary(w, total, len(res.Breakdown), len(res.Missing), elapsed)

	if len(res.Missing) > 0 {
		fmt.Fprintln(w)
		for _, m := range res.Missing {
			ui.PrintError(w, fmt.Sprintf("%s: %s", m.Dimension, m.Reason))
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// getVersion returns the version string, using build info as fallback.
func getVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "(devel)" && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func parseFlags() (*options, error) {
	var (
		opts        options
		showVersion bool
	)

	flag.StringVar(&opts.configPath, "config", "", "YAML configuration file (default $"+config.EnvConfigPath+")")
	flag.StringVar(&opts.file, "file", "", "Read the requirement from file")
	flag.StringVar(&opts.id, "id", "", "Requirement identifier (default: random UUID)")
	flag.StringVar(&opts.context, "context", "", "Additional context for the requirement")
	flag.StringVar(&opts.provider, "provider", "", "Generation service: "+strings.Join(config.Providers, ", "))
	flag.StringVar(&opts.model, "model", "", "Model name (default depends on provider)")
	flag.DurationVar(&opts.timeout, "timeout", 0, "Deadline for the whole evaluation, e.g. 45s")
	flag.BoolVar(&opts.refine, "refine", false, "Ask for a rewritten requirement when the score is very low")
	flag.BoolVar(&opts.quiet, "quiet", false, "Suppress progress output")
	flag.BoolVar(&opts.quiet, "q", false, "Suppress progress output (shorthand)")
	flag.BoolVar(&opts.json, "json", false, "Output JSON to stdout")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("req-analyzer %s\n", getVersion())
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		os.Exit(0)
	}

	requirement, err := getRequirement(flag.Args(), opts.file, os.Stdin)
	if err != nil {
		return nil, err
	}
	opts.requirement = requirement
	return &opts, nil
}

// getRequirement reads the requirement from positional args, then -file, then piped stdin.
func getRequirement(args []string, file string, stdin *os.File) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading requirement file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if stat, err := stdin.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		scanner := bufio.NewScanner(stdin)
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return strings.TrimSpace(strings.Join(lines, "\n")), nil
	}

	return "", fmt.Errorf("no requirement provided: use positional argument, -file, or pipe to stdin")
}
