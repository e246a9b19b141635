package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/metal-toolbox/goldencfg/internal/backup"
	"github.com/metal-toolbox/goldencfg/internal/compliance"
	"github.com/metal-toolbox/goldencfg/internal/configuration"
	"github.com/metal-toolbox/goldencfg/internal/controllers/kind"
	"github.com/metal-toolbox/goldencfg/internal/filter"
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/metal-toolbox/goldencfg/internal/store/device"
	"github.com/metal-toolbox/goldencfg/internal/store/memory"
	"github.com/metal-toolbox/goldencfg/internal/tasks"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFactory(t *testing.T) (*HandlerFactory, *memory.Store) {
	t.Helper()

	repo := memory.New()
	_, err := repo.SaveBaseline(context.Background(), "R1-LAB", model.ConfigText{"hostname R1-LAB", "license udi pid ISR4331"})
	require.NoError(t, err)

	_, err = repo.SaveBaseline(context.Background(), "R2-LAB", model.ConfigText{"hostname R2-LAB"})
	require.NoError(t, err)

	fetcher := device.NewDryRunFetcher(map[model.Device]model.ConfigText{
		"R1-LAB": {"hostname R1-LAB", "license udi pid ISR4451"},
		"R2-LAB": {"hostname R2-LAB-NEW"},
		"R9-LAB": {"hostname R9-LAB"},
	})

	patterns, err := configuration.NewPatterns(
		filter.PatternSet{"uptime is"},
		map[model.Device]filter.PatternSet{"R1-LAB": {"^license udi"}},
	)
	require.NoError(t, err)

	now := func() time.Time { return time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC) }

	h := NewHandlerFactory(
		repo,
		fetcher,
		patterns,
		compliance.New(repo, repo, compliance.WithClock(now)),
		backup.New(repo, now),
		tasks.LogPublisher{},
	)

	return h, repo
}

func TestHandle(t *testing.T) {
	testcases := []struct {
		name       string
		kind       kind.Controller
		device     model.Device
		wantStatus model.Status
		wantErr    error
	}{
		{
			name:       "per device patterns make R1 compliant",
			kind:       kind.Compliance,
			device:     "R1-LAB",
			wantStatus: model.StatusCompliant,
		},
		{
			name:       "hostname drift",
			kind:       kind.Compliance,
			device:     "R2-LAB",
			wantStatus: model.StatusNonCompliant,
		},
		{
			name:       "no baseline",
			kind:       kind.Compliance,
			device:     "R9-LAB",
			wantStatus: model.StatusBaselineMissing,
			wantErr:    model.ErrBaselineMissing,
		},
		{
			name:       "unreachable device",
			kind:       kind.Backup,
			device:     "R404",
			wantStatus: model.StatusFetchFailure,
			wantErr:    model.ErrFetchFailure,
		},
		{
			name:       "backup",
			kind:       kind.Backup,
			device:     "R9-LAB",
			wantStatus: model.StatusBackedUp,
		},
		{
			name:       "unknown kind",
			kind:       kind.Controller(42),
			device:     "R1-LAB",
			wantStatus: model.StatusError,
			wantErr:    model.ErrInvalidAction,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestFactory(t)

			result, err := h.Handle(context.Background(), tc.kind, tc.device)
			require.NotNil(t, result)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.ErrorIs(t, result.Err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tc.device, result.Device)
			assert.Equal(t, tc.wantStatus, result.Status)
		})
	}
}

func TestHandleNonCompliantCarriesArtifact(t *testing.T) {
	h, repo := newTestFactory(t)

	result, err := h.Handle(context.Background(), kind.Compliance, "R2-LAB")
	require.NoError(t, err)
	require.NotNil(t, result.Verdict)

	rendered, ok := repo.Artifact(result.Verdict.ArtifactPath)
	require.True(t, ok)
	assert.Contains(t, rendered, "-hostname R2-LAB\n")
	assert.Contains(t, rendered, "+hostname R2-LAB-NEW\n")
}

func TestHandlePromoteThenComply(t *testing.T) {
	h, _ := newTestFactory(t)

	result, err := h.Handle(context.Background(), kind.Promote, "R2-LAB")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPromoted, result.Status)

	result, err = h.Handle(context.Background(), kind.Compliance, "R2-LAB")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompliant, result.Status)
}

type readOnlySnapshots struct {
	*memory.Store
}

func (readOnlySnapshots) WriteLatest(context.Context, model.Device, model.ConfigText) (string, error) {
	return "", errors.Wrap(model.ErrStorageFailure, "running_dir is read-only")
}

func TestHandleSnapshotFailureKeepsVerdict(t *testing.T) {
	repo := memory.New()
	_, err := repo.SaveBaseline(context.Background(), "R1", model.ConfigText{"hostname R1"})
	require.NoError(t, err)

	broken := readOnlySnapshots{repo}
	patterns, err := configuration.NewPatterns(nil, nil)
	require.NoError(t, err)

	h := NewHandlerFactory(
		broken,
		device.NewDryRunFetcher(map[model.Device]model.ConfigText{"R1": {"hostname R2"}}),
		patterns,
		compliance.New(broken, broken),
		backup.New(broken, nil),
		nil,
	)

	result, err := h.Handle(context.Background(), kind.Compliance, "R1")
	assert.ErrorIs(t, err, model.ErrStorageFailure)

	assert.Equal(t, model.StatusStorageFailure, result.Status)
	require.NotNil(t, result.Verdict)
	assert.False(t, result.Verdict.Compliant)

	rendered, ok := repo.Artifact(result.Verdict.ArtifactPath)
	require.True(t, ok)
	assert.Contains(t, rendered, "+hostname R2\n")
}
