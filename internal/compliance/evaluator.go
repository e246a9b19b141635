// Package compliance decides whether a device's running configuration matches its golden baseline.
package compliance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/metal-toolbox/goldencfg/internal/diff"
	"github.com/metal-toolbox/goldencfg/internal/filter"
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/metal-toolbox/goldencfg/internal/store"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	pkgName = "internal/compliance"
)

// BaselineReader is the read side of store.BaselineStore, the evaluator is never handed a writer.
type BaselineReader interface {
	LoadBaseline(ctx context.Context, device model.Device) (model.ConfigText, error)
}

// Evaluator compares filtered running configurations against filtered golden baselines.
// It reads baselines and writes diff artifacts, it never writes a baseline.
type Evaluator struct {
	baselines BaselineReader
	artifacts store.ArtifactStore
	engine    *diff.Engine
	now       func() time.Time
	runID     uuid.UUID
}

type Option func(*Evaluator)

// WithClock sets the clock stamping verdicts and artifact names.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

func WithDiffEngine(engine *diff.Engine) Option {
	return func(e *Evaluator) {
		e.engine = engine
	}
}

// WithRunID tags every verdict with the id of the surrounding run.
func WithRunID(id uuid.UUID) Option {
	return func(e *Evaluator) {
		e.runID = id
	}
}

func New(baselines BaselineReader, artifacts store.ArtifactStore, opts ...Option) *Evaluator {
	e := &Evaluator{
		baselines: baselines,
		artifacts: artifacts,
		engine:    diff.New(),
		now:       time.Now,
		runID:     uuid.New(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Evaluate filters the golden baseline and running text with matcher, diffs them and
// returns the verdict. A non compliant verdict always carries the path of the persisted
// diff artifact. A missing baseline is returned as model.ErrBaselineMissing, never as a verdict.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	device model.Device,
	running model.ConfigText,
	matcher *filter.Matcher,
) (*model.Verdict, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "compliance.Evaluate")
	defer span.End()

	span.SetAttributes(attribute.String("device", device.String()))

	verdict, err := e.evaluate(ctx, device, running, matcher)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	span.SetAttributes(attribute.Bool("compliant", verdict.Compliant))

	return verdict, nil
}

func (e *Evaluator) evaluate(
	ctx context.Context,
	device model.Device,
	running model.ConfigText,
	matcher *filter.Matcher,
) (*model.Verdict, error) {
	golden, err := e.baselines.LoadBaseline(ctx, device)
	if err != nil {
		if errors.Is(err, model.ErrBaselineMissing) {
			return nil, err
		}

		return nil, errors.Wrap(err, "failed to load golden baseline")
	}

	filteredGolden := matcher.Filter(golden)
	filteredRunning := matcher.Filter(running)

	engine := e.engine.WithLabels("golden/"+device.String(), "running/"+device.String())

	result, err := engine.Diff(filteredGolden, filteredRunning)
	if err != nil {
		return nil, err
	}

	verdict := &model.Verdict{
		Device:    device,
		Compliant: result.IsEmpty,
		RunID:     e.runID,
		Timestamp: e.now().UTC(),
	}

	if result.IsEmpty {
		return verdict, nil
	}

	path, err := e.artifacts.WriteArtifact(ctx, device, result.Rendered, verdict.Timestamp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to persist diff artifact")
	}

	verdict.ArtifactPath = path
	verdict.Diff = result.Rendered

	return verdict, nil
}
