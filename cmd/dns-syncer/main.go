// dns-syncer keeps a declarative set of DNS records in sync across
// hosting providers. It periodically resolves the desired record set
// (filling in the current public IP where configured), diffs it
// against live provider state, and applies the minimal changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gitlab.bluewillows.net/root/dns-syncer/fetchers/httpfetch"
	"gitlab.bluewillows.net/root/dns-syncer/internal/config"
	"gitlab.bluewillows.net/root/dns-syncer/internal/engine"
	"gitlab.bluewillows.net/root/dns-syncer/internal/health"
	"gitlab.bluewillows.net/root/dns-syncer/internal/metrics"
	"gitlab.bluewillows.net/root/dns-syncer/internal/resolver"
	"gitlab.bluewillows.net/root/dns-syncer/internal/scheduler"
	"gitlab.bluewillows.net/root/dns-syncer/pkg/fetcher"
	"gitlab.bluewillows.net/root/dns-syncer/pkg/provider"
	"gitlab.bluewillows.net/root/dns-syncer/providers/cloudflare"
	"gitlab.bluewillows.net/root/dns-syncer/providers/dnsmasq"
	"gitlab.bluewillows.net/root/dns-syncer/providers/rfc2136"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-08-23"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

// exitError carries the process exit code alongside the error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type options struct {
	configPath string
	once       bool
	dryRun     bool
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		code := exitFailed
		var xerr *exitError
		if errors.As(err, &xerr) {
			code = xerr.code
		}
		slog.Error("exiting", slog.String("error", err.Error()), slog.Int("code", code))
		os.Exit(code)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "dns-syncer",
		Short: "Declarative DNS record synchronization across providers",
		Long: "dns-syncer reads a declarative record set from a configuration file,\n" +
			"diffs it against live provider state and applies the minimal\n" +
			"create/update/delete operations, either once or on a fixed interval.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to the configuration file (required)")
	cmd.Flags().BoolVar(&opts.once, "once", false, "run exactly one cycle and exit")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report intended changes without writing")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "", "override the configured log format")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func run(opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return &exitError{code: exitConfig, err: fmt.Errorf("loading configuration: %w", err)}
	}

	if opts.once {
		cfg.CheckInterval = 0
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.LogFormat = opts.logFormat
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	metrics.SetBuildInfo(Version, runtime.Version())

	logger.Info("dns-syncer starting",
		slog.String("version", Version),
		slog.String("build_date", BuildDate),
		slog.String("go_version", runtime.Version()),
		slog.Duration("check_interval", cfg.CheckInterval),
		slog.Bool("dry_run", opts.dryRun),
	)

	ips, err := buildFetchers(cfg, logger)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}

	registry := provider.NewRegistry()
	registerProviderFactories(registry, logger)
	for _, p := range cfg.Providers {
		err := registry.CreateInstance(p.Type, provider.Config{
			Name:   p.Name,
			Auth:   p.Auth,
			Params: p.Params,
		})
		if err != nil {
			return &exitError{code: exitConfig, err: err}
		}
	}

	res := resolver.New(registry, ips, cfg.DefaultFetcher, resolver.WithLogger(logger))
	eng := engine.New(registry,
		engine.WithWorkers(cfg.Workers),
		engine.WithDryRun(opts.dryRun),
		engine.WithLogger(logger),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycle := func(ctx context.Context) scheduler.CycleOutcome {
		targets, issues := res.Resolve(ctx, cfg.Records)
		for _, issue := range issues {
			logger.Warn("record skipped", slog.String("issue", issue))
		}

		result := eng.RunCycle(ctx, targets)
		logCycleSummary(logger, result)

		return scheduler.CycleOutcome{
			Failed: len(result.Failed()),
			Fatal:  result.HasFatal(),
		}
	}

	sched := scheduler.New(cfg.CheckInterval, cycle, scheduler.WithLogger(logger))

	// The health server only makes sense for long-running processes.
	if cfg.HealthPort > 0 && cfg.CheckInterval > 0 {
		healthServer := health.New(cfg.HealthPort, health.WithLogger(logger))
		for _, inst := range registry.All() {
			healthServer.RegisterChecker("provider:"+inst.Name(), inst.Authenticate)
		}
		if err := healthServer.Start(); err != nil {
			return fmt.Errorf("starting health server: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := healthServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("health server shutdown error", slog.String("error", err.Error()))
			}
		}()
	}

	// First signal stops gracefully after the current cycle; a second
	// one aborts in-flight provider calls.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal, finishing current cycle",
			slog.String("signal", sig.String()))
		sched.Stop()

		sig = <-sigCh
		logger.Warn("received second signal, aborting",
			slog.String("signal", sig.String()))
		cancel()
	}()

	outcome := sched.Run(ctx)

	if outcome.Fatal {
		return &exitError{code: exitFailed, err: errors.New("cycle finished with auth or permanent failures")}
	}
	if cfg.CheckInterval == 0 && outcome.Failed > 0 {
		return &exitError{code: exitFailed, err: fmt.Errorf("cycle finished with %d failed targets", outcome.Failed)}
	}

	logger.Info("dns-syncer shutdown complete")
	return nil
}

// buildFetchers instantiates the configured public-IP fetchers and
// wraps them in the caching resolver.
func buildFetchers(cfg *config.Config, logger *slog.Logger) (*fetcher.Resolver, error) {
	fetchers := make([]fetcher.Fetcher, 0, len(cfg.Fetchers))
	for _, fc := range cfg.Fetchers {
		switch fc.Type {
		case httpfetch.TypeName:
			f, err := httpfetch.New(httpfetch.Config{
				Name:  fc.Name,
				URLv4: fc.Params["url_v4"],
				URLv6: fc.Params["url_v6"],
				Alive: fc.Alive,
			})
			if err != nil {
				return nil, fmt.Errorf("creating fetcher %s: %w", fc.Name, err)
			}
			fetchers = append(fetchers, f)
		default:
			return nil, fmt.Errorf("unknown fetcher type %q for %s", fc.Type, fc.Name)
		}
	}

	return fetcher.NewResolver(fetchers, fetcher.WithLogger(logger)), nil
}

func registerProviderFactories(registry *provider.Registry, logger *slog.Logger) {
	registry.RegisterFactory(cloudflare.TypeName, cloudflare.Factory(logger))
	registry.RegisterFactory(rfc2136.TypeName, rfc2136.Factory(logger))
	registry.RegisterFactory(dnsmasq.TypeName, dnsmasq.Factory(logger))
}

// logCycleSummary emits the per-cycle counts plus one line per failed
// target with its error class.
func logCycleSummary(logger *slog.Logger, result *engine.CycleResult) {
	counts := result.Counts()
	logger.Info("cycle complete",
		slog.Int("targets", len(result.Results)),
		slog.Int("no_op", counts[engine.OutcomeNoop]),
		slog.Int("created", counts[engine.OutcomeCreated]),
		slog.Int("updated", counts[engine.OutcomeUpdated]),
		slog.Int("deleted", counts[engine.OutcomeDeleted]),
		slog.Int("failed", counts[engine.OutcomeFailed]),
	)

	for _, failure := range result.Failed() {
		logger.Error("target failed",
			slog.String("target", failure.Target.Key()),
			slog.String("class", string(failure.Class)),
			slog.String("error", failure.Err.Error()),
		)
	}
}

func setupLogger(level, format string) *slog.Logger {
	logLevel := parseLogLevel(level)

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
