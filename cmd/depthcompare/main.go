// Package main is the entry point for the order book depth comparator.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/fd1az/depth-compare/business/execution"
	execApp "github.com/fd1az/depth-compare/business/execution/app"
	execDI "github.com/fd1az/depth-compare/business/execution/di"
	"github.com/fd1az/depth-compare/business/fees"
	"github.com/fd1az/depth-compare/business/market"
	"github.com/fd1az/depth-compare/business/pricing"
	"github.com/fd1az/depth-compare/internal/apm"
	"github.com/fd1az/depth-compare/internal/config"
	"github.com/fd1az/depth-compare/internal/health"
	"github.com/fd1az/depth-compare/internal/logger"
	"github.com/fd1az/depth-compare/internal/metrics"
	"github.com/fd1az/depth-compare/internal/monolith"
	"github.com/fd1az/depth-compare/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("depth-compare %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// TUI is the default, CLI is for debugging
	tuiMode := !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, *configPath, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.App.TUIMode = tuiMode

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	var log *logger.Logger
	if tuiMode {
		// The TUI owns the terminal
		log = logger.New(io.Discard, logLevel, cfg.App.Name, nil)
	} else {
		log = logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
		log.Info(ctx, "starting depth comparator",
			"version", version,
			"environment", cfg.App.Environment,
		)
	}

	stopTelemetry, err := setupTelemetry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stopTelemetry()

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	if cfg.Health.Enabled {
		hs := health.NewServer(cfg.Health.Port, version)
		mono.Container().Register("health", hs)
		hs.Start(func(err error) {
			log.Warn(ctx, "health server stopped", "error", err)
		})
		log.Info(ctx, "health server started", "port", cfg.Health.Port)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			hs.Stop(stopCtx)
		}()
	}

	marketModule := &market.Module{}
	modules := []monolith.Module{
		marketModule,        // order books, first so the pair is watched early
		&fees.Module{},      // fee schedules
		&pricing.Module{},   // USD conversion
		&execution.Module{}, // depends on all of the above
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	defer marketModule.Shutdown(mono)

	if tuiMode {
		request, err := execution.Request(cfg.Compare)
		if err != nil {
			return err
		}
		startFunc := func() error {
			if err := mono.StartModules(ctx, modules...); err != nil {
				return fmt.Errorf("failed to start modules: %w", err)
			}
			return execDI.GetComparator(mono.Services()).Start(ctx)
		}
		stopFunc := func() {
			if err := execDI.GetComparator(mono.Services()).Stop(); err != nil {
				log.Error(ctx, "error stopping comparator", "error", err)
			}
		}
		return runTUI(ctx, ui.New(request.String(), cfg.EnabledExchanges()), startFunc, stopFunc)
	}

	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	return runCLI(ctx, execDI.GetComparator(mono.Services()), log)
}

// setupTelemetry installs tracing and metrics when enabled. The returned
// func flushes exporters and stops the scrape server.
func setupTelemetry(ctx context.Context, cfg *config.Config, log *logger.Logger) (func(), error) {
	if !cfg.Telemetry.Enabled {
		return func() {}, nil
	}

	tp, err := apm.NewTraceProvider(ctx, apm.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Provider:    apm.Provider(cfg.Telemetry.TraceProvider),
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Headers:     cfg.Telemetry.OTLPHeaders,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	opts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
	}
	if cfg.Telemetry.TraceProvider == string(apm.OTLPGRPCProvider) && cfg.Telemetry.OTLPEndpoint != "" {
		opts = append(opts, metrics.WithProviderConfig(metrics.NewOtelCollectorConfig(
			cfg.Telemetry.OTLPEndpoint, parseHeaders(cfg.Telemetry.OTLPHeaders), true)))
	}
	mp, err := metrics.NewMetricProvider(opts...)
	if err != nil {
		tp.Stop()
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	port := cfg.Telemetry.PrometheusPort
	if port == 0 {
		port = 9090
	}
	prom := metrics.NewPromServer(metrics.WithPort(port))
	prom.Start(func(err error) {
		log.Warn(ctx, "prometheus server stopped", "error", err)
	})
	log.Info(ctx, "prometheus metrics server started", "port", port)

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		prom.Stop(stopCtx)
		mp.Shutdown(stopCtx)
		tp.Stop()
	}, nil
}

func parseHeaders(s string) map[string]string {
	headers := map[string]string{}
	for _, kv := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if ok && k != "" {
			headers[k] = v
		}
	}
	return headers
}

func runCLI(ctx context.Context, cmp *execApp.Comparator, log *logger.Logger) error {
	log.Info(ctx, "all modules started, comparing", "request", cmp.Request().String())

	if err := cmp.Start(ctx); err != nil {
		return fmt.Errorf("failed to start comparator: %w", err)
	}

	<-ctx.Done()

	log.Info(ctx, "shutting down")
	if err := cmp.Stop(); err != nil {
		log.Error(ctx, "error stopping comparator", "error", err)
	}
	return nil
}

func runTUI(ctx context.Context, model ui.Model, startFunc func() error, stopFunc func()) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	// Show the welcome screen right away, connections happen behind it
	p := tea.NewProgram(model, tea.WithAltScreen())
	ui.Program = p

	errCh := make(chan error, 1)
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		if err := startFunc(); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}

		<-ctx.Done()
		stopFunc()
		errCh <- nil
	}()

	_, runErr := p.Run()

	// Quitting the TUI stops the comparator too
	cancel()
	if err := <-errCh; err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}
