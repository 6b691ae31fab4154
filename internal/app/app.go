// Package app builds and holds the long-lived services shared by the CLI
// commands: logger, search backends, resolver, and the progress hub.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/urlfinder/internal/config"
	"github.com/JakeFAU/urlfinder/internal/executor"
	"github.com/JakeFAU/urlfinder/internal/policy/ratelimit"
	"github.com/JakeFAU/urlfinder/internal/progress"
	"github.com/JakeFAU/urlfinder/internal/progress/sinks"
	"github.com/JakeFAU/urlfinder/internal/resolver"
	"github.com/JakeFAU/urlfinder/internal/search"
)

// Options customizes how an App is assembled.
type Options struct {
	// DomainMode searches for the raw input instead of the query template.
	DomainMode bool
	// Registerer receives the progress collectors; nil means the default registry.
	Registerer prometheus.Registerer
	// Transport overrides the HTTP transport of every search backend.
	Transport http.RoundTripper
}

// App is the dependency container handed to commands.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	resolver *resolver.Resolver
	hub      *progress.Hub
	tracker  *sinks.TrackerSink
}

// New wires every service from cfg. It fails fast on the first broken piece.
func New(cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("initializing application services",
		zap.Strings("backends", cfg.Resolver.Backends),
		zap.Bool("domain_mode", opts.DomainMode),
	)

	limiter := ratelimit.New(ratelimit.Config{
		RPS:   cfg.Search.RateLimitRPS,
		Burst: cfg.Search.RateLimitBurst,
	})
	backends, err := search.NewBackends(cfg.Resolver.Backends, cfg.Search.Endpoints, search.Config{
		UserAgent:      cfg.Search.UserAgent,
		AcceptLanguage: cfg.Search.AcceptLanguage,
		Timeout:        cfg.SearchTimeout(),
		Limiter:        limiter,
		Transport:      opts.Transport,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build search backends: %w", err)
	}

	resolverOpts, err := cfg.ResolverOptions(opts.DomainMode)
	if err != nil {
		return nil, err
	}

	promSink, err := sinks.NewPrometheusSink(opts.Registerer)
	if err != nil {
		return nil, err
	}
	tracker := sinks.NewTrackerSink(0)
	progressSinks := []progress.Sink{promSink, tracker}
	if cfg.Progress.LogEvents {
		progressSinks = append(progressSinks, sinks.NewLogSink(logger, false))
	}
	hub := progress.NewHub(progress.Config{
		BufferSize:   cfg.Progress.BufferSize,
		MaxBatchWait: cfg.ProgressWait(),
		Logger:       logger,
	}, progressSinks...)

	return &App{
		cfg:      cfg,
		logger:   logger,
		resolver: resolver.New(backends, resolverOpts, logger),
		hub:      hub,
		tracker:  tracker,
	}, nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Resolver returns the fallback resolver over the configured backends.
func (a *App) Resolver() *resolver.Resolver {
	return a.resolver
}

// Executor returns a batch executor; parallelism <= 0 uses the configured value.
func (a *App) Executor(parallelism int) *executor.Executor {
	if parallelism <= 0 {
		parallelism = a.cfg.Executor.MaxParallelism
	}
	return executor.New(a.resolver, executor.Config{MaxParallelism: parallelism}, a.logger)
}

// Progress returns the hub that batch reporters emit into.
func (a *App) Progress() progress.Emitter {
	return a.hub
}

// Tracker answers batch status queries.
func (a *App) Tracker() *sinks.TrackerSink {
	return a.tracker
}

// Close flushes the progress hub and syncs the logger.
func (a *App) Close(ctx context.Context) {
	a.logger.Info("shutting down application services")
	if err := a.hub.Close(ctx); err != nil {
		a.logger.Warn("progress hub close failed", zap.Error(err))
	}
	// Sync on a stderr-backed logger can fail with ENOTTY; nothing to do about it.
	_ = a.logger.Sync()
}
