package tasks

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/metal-toolbox/goldencfg/internal/backup"
	"github.com/metal-toolbox/goldencfg/internal/compliance"
	"github.com/metal-toolbox/goldencfg/internal/filter"
	"github.com/metal-toolbox/goldencfg/internal/metrics"
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/metal-toolbox/goldencfg/internal/store"
	"github.com/metal-toolbox/goldencfg/internal/store/device"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	pkgName = "internal/tasks"

	runningConfigKey = "runningConfig"
	verdictKey       = "verdict"
	snapshotKey      = "snapshot"
	baselinePathKey  = "baselinePath"
)

// Miscellaneous
type sharedData map[string]interface{}

// StatusPublisher receives task status updates as they happen.
type StatusPublisher interface {
	Publish(ctx context.Context, device string, state model.State, status []byte)
}

// TaskStatus has status about a task, and it's steps.
type TaskStatus struct {
	Task       string        `json:"task"`
	Device     string        `json:"device"`
	Status     string        `json:"status"`
	Details    string        `json:"details,omitempty"`
	Error      string        `json:"error,omitempty"`
	ActiveStep string        `json:"active_step,omitempty"`
	Steps      []*StepStatus `json:"steps"`
}

// NewTaskStatus will generate a new task status struct
func NewTaskStatus(taskName string, dev model.Device, state model.State) *TaskStatus {
	return &TaskStatus{
		Task:   taskName,
		Device: dev.String(),
		Status: string(state),
	}
}

func (r *TaskStatus) AsLogFields() []any {
	return []any{
		"task", r.Task,
		"device", r.Device,
		"status", r.Status,
		"details", r.Details,
		"error", r.Error,
	}
}

func (r *TaskStatus) Marshal() ([]byte, error) {
	respBytes, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal response to json")
	}

	return respBytes, nil
}

// Task is a unit of work against one device.
// The task runs multiple steps to accomplish the task.
type Task interface {
	// Name of the task
	Name() string
	// Device is the network device this task runs against
	Device() model.Device
	// Steps is the multiple units of work that will accomplish this task
	Steps() []Step
}

type deviceTask struct {
	name   string
	device model.Device
	steps  []Step
}

func (j *deviceTask) Name() string {
	return j.name
}

func (j *deviceTask) Steps() []Step {
	return j.steps
}

func (j *deviceTask) Device() model.Device {
	return j.device
}

// NewComplianceTask fetches the running configuration, records it as the latest snapshot
// and evaluates it against the golden baseline. A failed snapshot write does not prevent
// the evaluation, the task then fails with the storage error and keeps the verdict.
func NewComplianceTask(
	dev model.Device,
	fetcher device.Fetcher,
	snapshots store.SnapshotStore,
	evaluator *compliance.Evaluator,
	matcher *filter.Matcher,
) Task {
	return &deviceTask{
		name:   "ComplianceCheck",
		device: dev,
		steps: []Step{
			FetchRunningStep(fetcher),
			WriteLatestStep(snapshots),
			EvaluateStep(evaluator, matcher),
		},
	}
}

// NewBackupTask fetches the running configuration and archives it.
func NewBackupTask(dev model.Device, fetcher device.Fetcher, scheduler *backup.Scheduler) Task {
	return &deviceTask{
		name:   "Backup",
		device: dev,
		steps: []Step{
			FetchRunningStep(fetcher),
			BackupStep(scheduler),
		},
	}
}

// NewPromoteTask saves a running configuration as the device golden baseline.
// With fromLatest the latest stored snapshot is promoted and the device is not contacted.
func NewPromoteTask(dev model.Device, fetcher device.Fetcher, repository store.Repository, fromLatest bool) Task {
	source := FetchRunningStep(fetcher)
	if fromLatest {
		source = LoadLatestStep(repository)
	}

	return &deviceTask{
		name:   "PromoteGolden",
		device: dev,
		steps: []Step{
			source,
			SaveBaselineStep(repository),
		},
	}
}

// Outcome is what a finished task produced.
type Outcome struct {
	Verdict      *model.Verdict
	Snapshot     *backup.Snapshot
	BaselinePath string
}

// TaskRunner Will run the task by executing the individual steps in the task,
// and reports task status using the publisher.
type TaskRunner struct {
	publisher  StatusPublisher
	task       Task
	taskStatus *TaskStatus
	data       sharedData
}

// NewTaskRunner creates a TaskRunner to run a specific Task
func NewTaskRunner(publisher StatusPublisher, task Task) *TaskRunner {
	return &TaskRunner{
		publisher:  publisher,
		task:       task,
		taskStatus: NewTaskStatus(task.Name(), task.Device(), model.Pending),
		data:       sharedData{},
	}
}

// Status returns the last published task status.
func (r *TaskRunner) Status() *TaskStatus {
	return r.taskStatus
}

// Outcome returns what the steps produced, fields are nil when the task did not get that far.
func (r *TaskRunner) Outcome() *Outcome {
	o := &Outcome{}

	if v, ok := r.data[verdictKey].(*model.Verdict); ok {
		o.Verdict = v
	}

	if s, ok := r.data[snapshotKey].(*backup.Snapshot); ok {
		o.Snapshot = s
	}

	if p, ok := r.data[baselinePathKey].(string); ok {
		o.BaselinePath = p
	}

	return o
}

func (r *TaskRunner) logger() *slog.Logger {
	return slog.With("device", r.task.Device().String(), "task", r.task.Name())
}

func (r *TaskRunner) Run(ctx context.Context) (err error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "TaskRunner.Run")
	defer span.End()

	span.SetAttributes(
		attribute.String("device", r.task.Device().String()),
		attribute.String("task", r.task.Name()),
	)

	r.logger().Info("Running task")

	r.initTaskLog()

	defer func() {
		if rec := recover(); rec != nil {
			err = r.handlePanic(ctx, rec)
		}

		if err != nil {
			span.RecordError(err)
		}
	}()

	r.publishTaskUpdate(ctx, model.Active, "Running steps", nil)

	var (
		deferredErr  error
		deferredStep int
	)

	for stepID, step := range r.task.Steps() {
		r.publishStepUpdate(ctx, stepID, "Running step")

		startTS := time.Now()

		details, err := step.Run(ctx, r.task.Device(), r.data)
		if err != nil {
			observeStep(step.Name(), model.Failed, startTS)

			if isBestEffort(step) {
				r.logger().Warn("Step failed, continuing", "step", step.Name(), "error", err)
				r.publish(ctx, stepID, model.Failed, model.Active, details, err)

				if deferredErr == nil {
					deferredErr, deferredStep = err, stepID
				}

				continue
			}

			r.publishFailed(ctx, stepID, details, err)

			return err
		}

		observeStep(step.Name(), model.Succeeded, startTS)
		r.publishStepSuccess(ctx, stepID, details)
	}

	if deferredErr != nil {
		r.logger().Error("Task failed", "error", deferredErr)
		r.publishTaskUpdate(ctx, model.Failed, "Task failed at step "+r.task.Steps()[deferredStep].Name(), deferredErr)

		return deferredErr
	}

	r.publishTaskSuccess(ctx)

	return nil
}

func observeStep(name string, state model.State, startTS time.Time) {
	metrics.StepRunTimeSummary.WithLabelValues(name, string(state)).Observe(time.Since(startTS).Seconds())
}

func (r *TaskRunner) initTaskLog() {
	steps := r.task.Steps()
	r.taskStatus.Steps = make([]*StepStatus, len(steps))

	for i, step := range steps {
		r.taskStatus.Steps[i] = NewStepStatus(step.Name(), model.Pending, "", nil)
	}
}

func (r *TaskRunner) handlePanic(ctx context.Context, rec any) error {
	msg := "Panic occurred while running task"
	slog.Error("!!panic occurred", "rec", rec, "stack", string(debug.Stack()))
	r.logger().Error(msg)
	err := errors.New("Task fatal error, check logs for details")

	r.publishTaskUpdate(ctx, model.Failed, msg, err)

	return err
}

func (r *TaskRunner) publishStepUpdate(ctx context.Context, stepID int, details string) {
	r.taskStatus.ActiveStep = r.task.Steps()[stepID].Name()
	r.publish(ctx, stepID, model.Active, model.Active, details, nil)
}

func (r *TaskRunner) publishStepSuccess(ctx context.Context, stepID int, details string) {
	r.publish(ctx, stepID, model.Succeeded, model.Active, details, nil)
}

func (r *TaskRunner) publishFailed(ctx context.Context, stepID int, details string, err error) {
	r.logger().Error("Task failed", "error", err)
	r.publish(ctx, stepID, model.Failed, model.Failed, details, err)
}

func (r *TaskRunner) publishTaskSuccess(ctx context.Context) {
	r.taskStatus.ActiveStep = ""
	r.logger().Info("Task completed successfully")
	r.publishTaskUpdate(ctx, model.Succeeded, "Task completed successfully", nil)
}

func (r *TaskRunner) publish(ctx context.Context, stepID int, stepState, taskState model.State, details string, err error) {
	step := r.task.Steps()[stepID]
	stepStatus := NewStepStatus(step.Name(), stepState, details, err)

	r.logger().With(stepStatus.AsLogFields()...).Debug(details)

	r.taskStatus.Steps[stepID] = stepStatus

	var taskDetails string
	if err != nil {
		taskDetails = "Task failed at step " + step.Name()
	}

	r.publishTaskUpdate(ctx, taskState, taskDetails, err)
}

func (r *TaskRunner) publishTaskUpdate(ctx context.Context, state model.State, details string, err error) {
	r.taskStatus.Status = string(state)
	r.taskStatus.Details = details

	if err != nil {
		r.taskStatus.Error = err.Error()
	}

	if r.publisher == nil {
		return
	}

	respBytes, err := r.taskStatus.Marshal()
	if err != nil {
		slog.Error("Failed to marshal task update", "error", err)
		return
	}

	r.publisher.Publish(ctx, r.task.Device().String(), state, respBytes)
}

// LogPublisher writes task status updates to the default logger.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, dev string, state model.State, status []byte) {
	slog.Debug("Task update", "device", dev, "state", string(state), "status", string(status))
}
