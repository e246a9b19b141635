package backup

import (
	"context"
	"testing"
	"time"

	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/metal-toolbox/goldencfg/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackup(t *testing.T) {
	repo := memory.New()
	now := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)

	s := New(repo, func() time.Time { return now })

	snap, err := s.Backup(context.Background(), "R1", model.ConfigText{"hostname R1"})
	require.NoError(t, err)

	assert.Equal(t, "memory://running/R1.cfg", snap.LatestPath)
	assert.Equal(t, "memory://backups/R1_20261018T080000.000Z.cfg", snap.ArchivePath)

	latest, err := repo.LoadLatest(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, model.ConfigText{"hostname R1"}, latest)

	now = now.Add(time.Hour)

	_, err = s.Backup(context.Background(), "R1", model.ConfigText{"hostname R1", "ntp server 1.1.1.1"})
	require.NoError(t, err)

	latest, err = repo.LoadLatest(context.Background(), "R1")
	require.NoError(t, err)
	assert.Len(t, latest, 2)
	assert.Len(t, repo.ArchivePaths(), 2)
}

func TestBackupStorageFailure(t *testing.T) {
	repo := memory.New()
	repo.FailWrites = true

	_, err := New(repo, nil).Backup(context.Background(), "R1", model.ConfigText{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrStorageFailure)
	assert.Equal(t, model.StatusStorageFailure, model.StatusFromError(err))
}

func TestBackupDoesNotNeedBaseline(t *testing.T) {
	repo := memory.New()

	_, err := New(repo, nil).Backup(context.Background(), "R9", model.ConfigText{"hostname R9"})
	require.NoError(t, err)

	_, err = repo.LoadBaseline(context.Background(), "R9")
	assert.ErrorIs(t, err, model.ErrBaselineMissing)
}
