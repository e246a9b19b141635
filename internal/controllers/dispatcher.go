package controllers

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/metal-toolbox/goldencfg/internal/configuration"
	"github.com/metal-toolbox/goldencfg/internal/controllers/kind"
	"github.com/metal-toolbox/goldencfg/internal/keylock"
	"github.com/metal-toolbox/goldencfg/internal/metrics"
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Handler runs one kind of task against one device.
type Handler interface {
	Handle(ctx context.Context, k kind.Controller, dev model.Device) (*model.Result, error)
}

// Dispatcher runs device pipelines on a bounded pool. Pipelines of the same device
// are serialized, unrelated devices proceed in parallel.
type Dispatcher struct {
	handler     Handler
	locks       *keylock.Locker
	retry       configuration.RetryOptions
	concurrency int
	timeout     time.Duration
}

func NewDispatcher(handler Handler, cfg *configuration.Configuration) *Dispatcher {
	d := &Dispatcher{
		handler:     handler,
		locks:       keylock.New(),
		concurrency: cfg.Concurrency,
		timeout:     cfg.DeviceTimeout,
	}

	if cfg.Retry != nil {
		d.retry = *cfg.Retry
	}

	if d.concurrency <= 0 {
		d.concurrency = 1
	}

	if d.retry.MaxAttempts <= 0 {
		d.retry.MaxAttempts = 1
	}

	return d
}

// Dispatch runs a task of kind k for every device and returns one result per device,
// in inventory order. A failing device never stops the others.
func (d *Dispatcher) Dispatch(ctx context.Context, k kind.Controller, devices []model.Device) []*model.Result {
	ctx, span := otel.Tracer(pkgName).Start(
		ctx,
		"Dispatcher.Dispatch",
		trace.WithAttributes(
			attribute.String("kind", k.String()),
			attribute.Int("devices", len(devices)),
		),
	)
	defer span.End()

	results := make([]*model.Result, len(devices))

	p := pool.New().WithMaxGoroutines(d.concurrency)
	for i, dev := range devices {
		i, dev := i, dev
		p.Go(func() {
			results[i] = d.runDevice(ctx, k, dev)
		})
	}

	p.Wait()

	return results
}

func (d *Dispatcher) runDevice(ctx context.Context, k kind.Controller, dev model.Device) *model.Result {
	if d.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	result := &model.Result{Device: dev}

	unlock, err := d.locks.LockContext(ctx, dev.String())
	if err != nil {
		result.Status = model.StatusError
		result.Err = errors.Wrap(err, "timed out waiting for device lock")

		return d.record(k, result)
	}
	defer unlock()

	var attempts int

	operation := func() error {
		attempts++

		res, err := d.handler.Handle(ctx, k, dev)
		if res == nil {
			res = &model.Result{Device: dev}
		}

		if err != nil && res.Err == nil {
			res.Status = model.StatusFromError(err)
			res.Err = err
		}

		res.Attempts = attempts
		result = res

		if err == nil {
			return nil
		}

		// a repeated evaluation would write a second diff artifact
		if res.Verdict != nil || !retryable(err) {
			return backoff.Permanent(err)
		}

		slog.Warn("Device attempt failed", "device", dev.String(), "kind", k.String(), "attempt", attempts, "error", err)

		return err
	}

	_ = backoff.Retry(operation, d.backoff(ctx))

	return d.record(k, result)
}

func (d *Dispatcher) backoff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.retry.InitialInterval
	b.MaxInterval = d.retry.MaxInterval
	b.MaxElapsedTime = 0

	// #nosec G115 -- MaxAttempts is validated positive
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.retry.MaxAttempts-1)), ctx)
}

// retryable reports whether a failed attempt may succeed when repeated.
// A missing baseline needs an operator and is never retried.
func retryable(err error) bool {
	if errors.Is(err, model.ErrBaselineMissing) {
		return false
	}

	return errors.Is(err, model.ErrFetchFailure) || errors.Is(err, model.ErrStorageFailure)
}

func (d *Dispatcher) record(k kind.Controller, result *model.Result) *model.Result {
	metrics.ResultsCounter.WithLabelValues(k.String(), string(result.Status)).Inc()

	if result.Status.Failure() {
		slog.Warn("Device result", result.AsLogFields()...)
	} else {
		slog.Info("Device result", result.AsLogFields()...)
	}

	return result
}
