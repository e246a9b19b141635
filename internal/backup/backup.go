// Package backup captures timestamped running configuration snapshots, independent of compliance checks.
package backup

import (
	"context"
	"time"

	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/metal-toolbox/goldencfg/internal/store"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	pkgName = "internal/backup"
)

// Snapshot records where one backup was written.
type Snapshot struct {
	Device      model.Device
	LatestPath  string
	ArchivePath string
	Timestamp   time.Time
}

func (s *Snapshot) AsLogFields() []any {
	return []any{
		"device", s.Device.String(),
		"latest", s.LatestPath,
		"archive", s.ArchivePath,
		"timestamp", model.FormatTimestamp(s.Timestamp),
	}
}

// Scheduler writes running configurations to the snapshot store.
type Scheduler struct {
	snapshots store.SnapshotStore
	now       func() time.Time
}

func New(snapshots store.SnapshotStore, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		snapshots: snapshots,
		now:       now,
	}
}

// Backup overwrites the latest snapshot of device and archives a timestamped copy.
// Errors are model.ErrStorageFailure and safe to retry.
func (s *Scheduler) Backup(ctx context.Context, device model.Device, running model.ConfigText) (*Snapshot, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "backup.Backup")
	defer span.End()

	span.SetAttributes(attribute.String("device", device.String()))

	snap := &Snapshot{
		Device:    device,
		Timestamp: s.now().UTC(),
	}

	var err error

	snap.LatestPath, err = s.snapshots.WriteLatest(ctx, device, running)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to write latest snapshot")
	}

	snap.ArchivePath, err = s.snapshots.Archive(ctx, device, running, snap.Timestamp)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to archive snapshot")
	}

	return snap, nil
}
