package store

import (
	"context"
	"time"

	"github.com/metal-toolbox/goldencfg/internal/configuration"
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/metal-toolbox/goldencfg/internal/store/filesystem"
)

// BaselineStore holds one golden configuration per device.
type BaselineStore interface {
	// LoadBaseline returns the golden configuration, or model.ErrBaselineMissing.
	LoadBaseline(ctx context.Context, device model.Device) (model.ConfigText, error)
	// SaveBaseline replaces the golden configuration, used by promotion only.
	SaveBaseline(ctx context.Context, device model.Device, text model.ConfigText) (string, error)
}

// SnapshotStore holds the latest running configuration and its archived copies.
type SnapshotStore interface {
	// WriteLatest overwrites the latest running configuration slot.
	WriteLatest(ctx context.Context, device model.Device, text model.ConfigText) (string, error)
	// LoadLatest returns the latest running configuration, or model.ErrSnapshotMissing.
	LoadLatest(ctx context.Context, device model.Device) (model.ConfigText, error)
	// Archive writes a new timestamped copy, never overwriting an existing one.
	Archive(ctx context.Context, device model.Device, text model.ConfigText, ts time.Time) (string, error)
}

// ArtifactStore persists diff artifacts of non compliant runs.
type ArtifactStore interface {
	// WriteArtifact writes a new timestamped diff, never overwriting an existing one.
	WriteArtifact(ctx context.Context, device model.Device, rendered string, ts time.Time) (string, error)
}

type Repository interface {
	BaselineStore
	SnapshotStore
	ArtifactStore
}

func NewRepository(_ context.Context, config *configuration.Configuration) (Repository, error) {
	return filesystem.New(config.Storage)
}
