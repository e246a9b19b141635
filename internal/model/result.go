package model

import (
	"github.com/pkg/errors"
)

// State is the lifecycle state of a device task.
type State string

const (
	Pending   State = "pending"
	Active    State = "active"
	Failed    State = "failed"
	Succeeded State = "succeeded"
)

// Status classifies the per-device outcome of a run.
type Status string

const (
	StatusCompliant       Status = "compliant"
	StatusNonCompliant    Status = "non-compliant"
	StatusBaselineMissing Status = "baseline-missing"
	StatusFetchFailure    Status = "fetch-failure"
	StatusStorageFailure  Status = "storage-failure"
	StatusBackedUp        Status = "backed-up"
	StatusPromoted        Status = "promoted"
	StatusError           Status = "error"
)

// Failure reports whether the status must halt or alert the calling automation.
func (s Status) Failure() bool {
	switch s {
	case StatusCompliant, StatusBackedUp, StatusPromoted:
		return false
	default:
		return true
	}
}

// StatusFromError maps an error kind to its result status.
func StatusFromError(err error) Status {
	switch {
	case errors.Is(err, ErrBaselineMissing):
		return StatusBaselineMissing
	case errors.Is(err, ErrFetchFailure):
		return StatusFetchFailure
	case errors.Is(err, ErrStorageFailure):
		return StatusStorageFailure
	default:
		return StatusError
	}
}

// Result is one row of the per-device run table.
type Result struct {
	Device   Device
	Status   Status
	Attempts int
	Verdict  *Verdict
	Err      error
}

func (r *Result) AsLogFields() []any {
	fields := []any{
		"device", r.Device.String(),
		"status", string(r.Status),
		"attempts", r.Attempts,
	}

	if r.Verdict != nil && r.Verdict.ArtifactPath != "" {
		fields = append(fields, "artifact", r.Verdict.ArtifactPath)
	}

	if r.Err != nil {
		fields = append(fields, "error", r.Err.Error())
	}

	return fields
}
