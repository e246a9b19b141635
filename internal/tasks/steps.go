package tasks

import (
	"context"
	"log/slog"

	"github.com/metal-toolbox/goldencfg/internal/backup"
	"github.com/metal-toolbox/goldencfg/internal/compliance"
	"github.com/metal-toolbox/goldencfg/internal/filter"
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/metal-toolbox/goldencfg/internal/store"
	"github.com/metal-toolbox/goldencfg/internal/store/device"
	"github.com/pkg/errors"
)

var (
	errMissingRunningConfig = errors.New("missing running configuration")
)

// StepStatus has status about a step, to be reported as part of the overall task.
type StepStatus struct {
	Step    string `json:"step"`
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewStepStatus will create a new step status struct
func NewStepStatus(stepName string, state model.State, details string, err error) *StepStatus {
	status := &StepStatus{
		Step:    stepName,
		Status:  string(state),
		Details: details,
	}

	if err != nil {
		status.Error = err.Error()
	}

	return status
}

func (s *StepStatus) AsLogFields() []any {
	return []any{
		"step", s.Step,
		"status", s.Status,
		"details", s.Details,
		"error", s.Error,
	}
}

// Step is a unit of work. Multiple steps accomplish a task.
type Step interface {
	// Name of this step
	Name() string
	// Run will execute the code to accomplish this step for the device
	Run(ctx context.Context, dev model.Device, data sharedData) (string, error)
}

// bestEffortStep is implemented by steps whose failure does not stop the steps after them.
// The task still fails with the first such error once every other step has run.
type bestEffortStep interface {
	BestEffort() bool
}

func isBestEffort(step Step) bool {
	be, ok := step.(bestEffortStep)
	return ok && be.BestEffort()
}

func runningConfig(data sharedData) (model.ConfigText, error) {
	running, ok := data[runningConfigKey].(model.ConfigText)
	if !ok {
		return nil, errMissingRunningConfig
	}

	return running, nil
}

type fetchRunningStep struct {
	name    string
	fetcher device.Fetcher
}

// FetchRunningStep obtains the running configuration from the device and stores it in sharedData.
func FetchRunningStep(fetcher device.Fetcher) Step {
	return &fetchRunningStep{
		name:    "FetchRunningConfig",
		fetcher: fetcher,
	}
}

func (t *fetchRunningStep) Name() string {
	return t.name
}

func (t *fetchRunningStep) Run(ctx context.Context, dev model.Device, data sharedData) (string, error) {
	running, err := t.fetcher.Fetch(ctx, dev)
	if err != nil {
		return "Failed to fetch running configuration", err
	}

	data[runningConfigKey] = running

	return "Fetched running configuration", nil
}

type loadLatestStep struct {
	name      string
	snapshots store.SnapshotStore
}

// LoadLatestStep reads the latest running snapshot instead of contacting the device.
func LoadLatestStep(snapshots store.SnapshotStore) Step {
	return &loadLatestStep{
		name:      "LoadLatestSnapshot",
		snapshots: snapshots,
	}
}

func (t *loadLatestStep) Name() string {
	return t.name
}

func (t *loadLatestStep) Run(ctx context.Context, dev model.Device, data sharedData) (string, error) {
	running, err := t.snapshots.LoadLatest(ctx, dev)
	if err != nil {
		return "Failed to load latest snapshot", err
	}

	data[runningConfigKey] = running

	return "Loaded latest snapshot", nil
}

type writeLatestStep struct {
	name      string
	snapshots store.SnapshotStore
}

// WriteLatestStep overwrites the latest running snapshot with the fetched configuration.
// It is best effort, the steps after it run even when the write fails.
func WriteLatestStep(snapshots store.SnapshotStore) Step {
	return &writeLatestStep{
		name:      "WriteLatestSnapshot",
		snapshots: snapshots,
	}
}

func (t *writeLatestStep) Name() string {
	return t.name
}

func (t *writeLatestStep) BestEffort() bool {
	return true
}

func (t *writeLatestStep) Run(ctx context.Context, dev model.Device, data sharedData) (string, error) {
	running, err := runningConfig(data)
	if err != nil {
		return "Nothing to write", err
	}

	path, err := t.snapshots.WriteLatest(ctx, dev, running)
	if err != nil {
		return "Failed to write latest snapshot", err
	}

	return "Latest snapshot written to " + path, nil
}

type evaluateStep struct {
	name      string
	evaluator *compliance.Evaluator
	matcher   *filter.Matcher
}

// EvaluateStep compares the running configuration against the golden baseline
// and stores the verdict in sharedData.
func EvaluateStep(evaluator *compliance.Evaluator, matcher *filter.Matcher) Step {
	return &evaluateStep{
		name:      "EvaluateCompliance",
		evaluator: evaluator,
		matcher:   matcher,
	}
}

func (t *evaluateStep) Name() string {
	return t.name
}

func (t *evaluateStep) Run(ctx context.Context, dev model.Device, data sharedData) (string, error) {
	running, err := runningConfig(data)
	if err != nil {
		return "Nothing to evaluate", err
	}

	verdict, err := t.evaluator.Evaluate(ctx, dev, running, t.matcher)
	if err != nil {
		return "Failed to evaluate compliance", err
	}

	data[verdictKey] = verdict

	if !verdict.Compliant {
		slog.Warn("Device is not compliant", verdict.AsLogFields()...)
		return "Not compliant, diff written to " + verdict.ArtifactPath, nil
	}

	return "Compliant", nil
}

type backupStep struct {
	name      string
	scheduler *backup.Scheduler
}

// BackupStep writes the latest snapshot and a timestamped archive copy.
func BackupStep(scheduler *backup.Scheduler) Step {
	return &backupStep{
		name:      "BackupSnapshot",
		scheduler: scheduler,
	}
}

func (t *backupStep) Name() string {
	return t.name
}

func (t *backupStep) Run(ctx context.Context, dev model.Device, data sharedData) (string, error) {
	running, err := runningConfig(data)
	if err != nil {
		return "Nothing to back up", err
	}

	snap, err := t.scheduler.Backup(ctx, dev, running)
	if err != nil {
		return "Failed to back up running configuration", err
	}

	data[snapshotKey] = snap

	return "Archived to " + snap.ArchivePath, nil
}

type saveBaselineStep struct {
	name      string
	baselines store.BaselineStore
}

// SaveBaselineStep promotes the running configuration in sharedData to golden baseline.
func SaveBaselineStep(baselines store.BaselineStore) Step {
	return &saveBaselineStep{
		name:      "SaveBaseline",
		baselines: baselines,
	}
}

func (t *saveBaselineStep) Name() string {
	return t.name
}

func (t *saveBaselineStep) Run(ctx context.Context, dev model.Device, data sharedData) (string, error) {
	running, err := runningConfig(data)
	if err != nil {
		return "Nothing to promote", err
	}

	if len(running) == 0 {
		return "Refusing to promote an empty configuration", errors.Wrap(model.ErrInvalidAction, "empty running configuration")
	}

	path, err := t.baselines.SaveBaseline(ctx, dev, running)
	if err != nil {
		return "Failed to save golden baseline", err
	}

	data[baselinePathKey] = path

	return "Golden baseline saved to " + path, nil
}
