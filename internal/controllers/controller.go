package controllers

import (
	"context"
	"log/slog"

	"github.com/equinix-labs/otel-init-go/otelinit"
	"github.com/google/uuid"
	"github.com/metal-toolbox/goldencfg/internal/backup"
	"github.com/metal-toolbox/goldencfg/internal/compliance"
	"github.com/metal-toolbox/goldencfg/internal/configuration"
	"github.com/metal-toolbox/goldencfg/internal/controllers/kind"
	"github.com/metal-toolbox/goldencfg/internal/diff"
	"github.com/metal-toolbox/goldencfg/internal/handlers"
	"github.com/metal-toolbox/goldencfg/internal/log"
	"github.com/metal-toolbox/goldencfg/internal/metrics"
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/metal-toolbox/goldencfg/internal/profiling"
	"github.com/metal-toolbox/goldencfg/internal/store"
	"github.com/metal-toolbox/goldencfg/internal/store/device"
	"github.com/metal-toolbox/goldencfg/internal/tasks"
	"github.com/metal-toolbox/goldencfg/internal/version"
	"github.com/pkg/errors"
)

var (
	pkgName = "internal/controllers"
)

// Options are per invocation settings that are not part of the configuration file.
type Options struct {
	// FromLatest promotes the latest running snapshot instead of fetching from the device.
	FromLatest bool
}

// Run loads the configuration, initializes the process wide services and runs
// a task of kind controllerKind against every configured device.
func Run(ctx context.Context, controllerKind kind.Controller, args *model.Args, opts Options) ([]*model.Result, error) {
	cfg, err := configuration.Load(args)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return nil, err
	}

	log.SetLevel(cfg.LogLevel)
	slog.Debug("Configuration loaded", cfg.AsLogFields()...)

	logger := log.NewLogrusLogger(cfg.LogLevel)
	log.SetOtelLogger(logger)

	metrics.ListenAndServe(cfg.Metrics.ListenAddress)
	version.ExportBuildInfoMetric()

	if cfg.EnableProfiling {
		profiling.Enable()
	}

	ctx, otelShutdown := otelinit.InitOpenTelemetry(ctx, model.AppName)
	defer otelShutdown(ctx)

	v, err := version.Current().AsMap()
	if err != nil {
		return nil, err
	}

	logger.WithFields(v).Infof("Initializing %s", controllerKind.String())

	return run(ctx, cfg, controllerKind, opts)
}

func run(ctx context.Context, cfg *configuration.Configuration, controllerKind kind.Controller, opts Options) ([]*model.Result, error) {
	if len(cfg.Devices) == 0 {
		return nil, errors.Wrap(model.ErrConfig, "no devices configured")
	}

	patterns, err := cfg.LoadPatterns()
	if err != nil {
		slog.Error("Failed to load ignore patterns", "error", err)
		return nil, err
	}

	repository, err := store.NewRepository(ctx, cfg)
	if err != nil {
		slog.Error("Failed to create repository", "error", err)
		return nil, err
	}

	fetcher, err := device.NewFetcher(ctx, cfg.Fetcher)
	if err != nil {
		slog.Error("Failed to create fetcher", "error", err)
		return nil, err
	}

	return newDispatcher(cfg, repository, fetcher, patterns, opts).
		Dispatch(ctx, controllerKind, devices(cfg)), nil
}

func newDispatcher(
	cfg *configuration.Configuration,
	repository store.Repository,
	fetcher device.Fetcher,
	patterns *configuration.Patterns,
	opts Options,
) *Dispatcher {
	runID := uuid.New()
	slog.Info("Starting run", "runID", runID.String(), "devices", len(cfg.Devices))

	engine := diff.New()
	engine.Context = cfg.DiffContext

	evaluator := compliance.New(
		repository,
		repository,
		compliance.WithRunID(runID),
		compliance.WithDiffEngine(engine),
	)

	handler := handlers.NewHandlerFactory(
		repository,
		fetcher,
		patterns,
		evaluator,
		backup.New(repository, nil),
		tasks.LogPublisher{},
	)
	handler.FromLatest = opts.FromLatest

	return NewDispatcher(handler, cfg)
}

func devices(cfg *configuration.Configuration) []model.Device {
	out := make([]model.Device, 0, len(cfg.Devices))
	for _, d := range cfg.Devices {
		out = append(out, model.Device(d))
	}

	return out
}
