package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/metal-toolbox/goldencfg/internal/backup"
	"github.com/metal-toolbox/goldencfg/internal/compliance"
	"github.com/metal-toolbox/goldencfg/internal/configuration"
	"github.com/metal-toolbox/goldencfg/internal/controllers/kind"
	"github.com/metal-toolbox/goldencfg/internal/metrics"
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/metal-toolbox/goldencfg/internal/store"
	"github.com/metal-toolbox/goldencfg/internal/store/device"
	"github.com/metal-toolbox/goldencfg/internal/tasks"
	"github.com/pkg/errors"
)

// HandlerFactory has the data and business logic for the application
type HandlerFactory struct {
	repository store.Repository
	fetcher    device.Fetcher
	patterns   *configuration.Patterns
	evaluator  *compliance.Evaluator
	scheduler  *backup.Scheduler
	publisher  tasks.StatusPublisher

	// FromLatest makes promotion use the latest running snapshot instead of fetching.
	FromLatest bool
}

// NewHandlerFactory returns a new instance of the Handler
func NewHandlerFactory(
	repository store.Repository,
	fetcher device.Fetcher,
	patterns *configuration.Patterns,
	evaluator *compliance.Evaluator,
	scheduler *backup.Scheduler,
	publisher tasks.StatusPublisher,
) *HandlerFactory {
	return &HandlerFactory{
		repository: repository,
		fetcher:    fetcher,
		patterns:   patterns,
		evaluator:  evaluator,
		scheduler:  scheduler,
		publisher:  publisher,
	}
}

func (h *HandlerFactory) newTask(k kind.Controller, dev model.Device) (tasks.Task, error) {
	switch k {
	case kind.Compliance:
		slog.Debug("Ignore patterns", "device", dev.String(), "patterns", []string(h.patterns.For(dev)))

		return tasks.NewComplianceTask(dev, h.fetcher, h.repository, h.evaluator, h.patterns.MatcherFor(dev)), nil
	case kind.Backup:
		return tasks.NewBackupTask(dev, h.fetcher, h.scheduler), nil
	case kind.Promote:
		return tasks.NewPromoteTask(dev, h.fetcher, h.repository, h.FromLatest), nil
	default:
		return nil, errors.Wrap(model.ErrInvalidAction, k.String())
	}
}

// Handle runs one task of kind k against dev and returns its result row.
// Non compliance is a result, errors are recorded in the result and returned.
// A failed result may still carry the verdict when the failure came after the evaluation.
func (h *HandlerFactory) Handle(ctx context.Context, k kind.Controller, dev model.Device) (*model.Result, error) {
	slog.Debug("Handling device", "device", dev.String(), "kind", k.String())

	result := &model.Result{Device: dev}

	task, err := h.newTask(k, dev)
	if err != nil {
		slog.Error("Invalid action", "device", dev.String(), "kind", k.String())
		result.Status = model.StatusFromError(err)
		result.Err = err

		return result, err
	}

	startTS := time.Now()
	runner := tasks.NewTaskRunner(h.publisher, task)

	err = runner.Run(ctx)

	state := model.Succeeded
	if err != nil {
		state = model.Failed
	}

	metrics.TaskRunTimeSummary.WithLabelValues(k.String(), string(state)).Observe(time.Since(startTS).Seconds())

	outcome := runner.Outcome()

	if err != nil {
		slog.Error("Failed running task", "error", err, "task", task.Name(), "device", dev.String())
		result.Status = model.StatusFromError(err)
		result.Err = err

		// a verdict reached before a later step failed is still reported
		result.Verdict = outcome.Verdict

		return result, err
	}

	switch k {
	case kind.Compliance:
		result.Verdict = outcome.Verdict
		result.Status = model.StatusNonCompliant

		if outcome.Verdict != nil && outcome.Verdict.Compliant {
			result.Status = model.StatusCompliant
		}
	case kind.Backup:
		result.Status = model.StatusBackedUp
	case kind.Promote:
		result.Status = model.StatusPromoted
	}

	return result, nil
}
