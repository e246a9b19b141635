package model

import (
	"github.com/pkg/errors"
)

var (
	ErrConfig        = errors.New("configuration error")
	ErrInvalidAction = errors.New("invalid action")

	// ErrBaselineMissing is returned when no golden baseline is stored for a device.
	// Compliance evaluation cannot proceed without one.
	ErrBaselineMissing = errors.New("golden baseline missing")

	// ErrFetchFailure is returned when the running configuration could not be obtained.
	ErrFetchFailure = errors.New("running configuration fetch failed")

	// ErrStorageFailure is returned when a baseline, snapshot or artifact write fails.
	ErrStorageFailure = errors.New("storage failure")
)

var (
	// ErrSnapshotMissing is returned when no running snapshot was captured for a device yet.
	ErrSnapshotMissing = errors.New("running snapshot missing")

	// ErrArtifactExists is returned when an archive or diff artifact name is already taken.
	ErrArtifactExists = errors.New("artifact already exists")
)
