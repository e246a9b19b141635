package compliance

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/metal-toolbox/goldencfg/internal/filter"
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/metal-toolbox/goldencfg/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func newEvaluator(t *testing.T, baselines map[model.Device]model.ConfigText) (*Evaluator, *memory.Store) {
	t.Helper()

	repo := memory.New()
	for device, text := range baselines {
		_, err := repo.SaveBaseline(context.Background(), device, text)
		require.NoError(t, err)
	}

	tick := fixedNow
	clock := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	return New(repo, repo, WithClock(clock)), repo
}

// Scenario A
func TestEvaluateCompliantAfterFiltering(t *testing.T) {
	e, repo := newEvaluator(t, map[model.Device]model.ConfigText{
		"R1-LAB": {"hostname R1-LAB", "ntp server 1.1.1.1"},
	})

	running := model.ConfigText{"hostname R1-LAB", "ntp server 1.1.1.1", "! uptime is 3 days"}

	verdict, err := e.Evaluate(context.Background(), "R1-LAB", running, filter.MustCompile(filter.PatternSet{"uptime is"}))
	require.NoError(t, err)

	assert.True(t, verdict.Compliant)
	assert.Empty(t, verdict.ArtifactPath)
	assert.Empty(t, verdict.Diff)
	assert.Equal(t, model.Device("R1-LAB"), verdict.Device)
	assert.Empty(t, repo.ArtifactPaths())
}

// Scenario B
func TestEvaluateNonCompliantWritesArtifact(t *testing.T) {
	e, repo := newEvaluator(t, map[model.Device]model.ConfigText{
		"R1-LAB": {"hostname R1-LAB"},
	})

	verdict, err := e.Evaluate(context.Background(), "R1-LAB", model.ConfigText{"hostname R2-LAB"}, filter.MustCompile(nil))
	require.NoError(t, err)

	assert.False(t, verdict.Compliant)
	require.NotEmpty(t, verdict.ArtifactPath)
	assert.Equal(t, "memory://diffs/R1-LAB_20261018T093001.000Z.patch", verdict.ArtifactPath)

	artifact, ok := repo.Artifact(verdict.ArtifactPath)
	require.True(t, ok)
	assert.Equal(t, verdict.Diff, artifact)
	assert.Contains(t, artifact, "\n-hostname R1-LAB\n")
	assert.Contains(t, artifact, "\n+hostname R2-LAB\n")
	assert.True(t, strings.HasPrefix(artifact, "--- golden/R1-LAB\n+++ running/R1-LAB\n"))
}

// Scenario C
func TestEvaluateOnlyGenuineChangesInArtifact(t *testing.T) {
	e, repo := newEvaluator(t, map[model.Device]model.ConfigText{
		"R1-LAB": {"hostname R1-LAB", "crypto key generate rsa modulus 1024", "ip domain-name lab.local"},
	})

	running := model.ConfigText{
		"hostname R1-LAB",
		"crypto key generate rsa modulus 2048",
		"license udi pid CSR1000V sn 9ABC",
		"ip domain-name prod.local",
	}

	patterns := filter.MustCompile(filter.PatternSet{"crypto key generate rsa", "license udi"})

	verdict, err := e.Evaluate(context.Background(), "R1-LAB", running, patterns)
	require.NoError(t, err)
	assert.False(t, verdict.Compliant)

	artifact, ok := repo.Artifact(verdict.ArtifactPath)
	require.True(t, ok)

	assert.Contains(t, artifact, "-ip domain-name lab.local")
	assert.Contains(t, artifact, "+ip domain-name prod.local")
	assert.NotContains(t, artifact, "crypto key")
	assert.NotContains(t, artifact, "license udi")
}

// Scenario D
func TestEvaluateBaselineMissing(t *testing.T) {
	e, repo := newEvaluator(t, nil)

	verdict, err := e.Evaluate(context.Background(), "R9", model.ConfigText{"hostname R9"}, filter.MustCompile(nil))
	require.Error(t, err)
	assert.Nil(t, verdict)
	assert.ErrorIs(t, err, model.ErrBaselineMissing)
	assert.Contains(t, err.Error(), "R9")
	assert.Equal(t, model.StatusBaselineMissing, model.StatusFromError(err))
	assert.Empty(t, repo.ArtifactPaths())
}

func TestEvaluateDeterministic(t *testing.T) {
	e, repo := newEvaluator(t, map[model.Device]model.ConfigText{
		"R1": {"hostname R1", "ntp server 1.1.1.1"},
		"R2": {"hostname R2"},
	})

	patterns := filter.MustCompile(filter.PatternSet{"uptime"})

	for i := 0; i < 3; i++ {
		v1, err := e.Evaluate(context.Background(), "R1", model.ConfigText{"hostname R1", "ntp server 1.1.1.1", "uptime 1"}, patterns)
		require.NoError(t, err)
		assert.True(t, v1.Compliant)

		v2, err := e.Evaluate(context.Background(), "R2", model.ConfigText{"hostname R2-changed"}, patterns)
		require.NoError(t, err)
		assert.False(t, v2.Compliant)
	}

	// one distinctly named artifact per non compliant run
	assert.Len(t, repo.ArtifactPaths(), 3)
}

func TestEvaluateDoesNotTouchBaseline(t *testing.T) {
	golden := model.ConfigText{"hostname R1"}
	e, repo := newEvaluator(t, map[model.Device]model.ConfigText{"R1": golden})

	_, err := e.Evaluate(context.Background(), "R1", model.ConfigText{"hostname R1-new"}, filter.MustCompile(nil))
	require.NoError(t, err)

	stored, err := repo.LoadBaseline(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, golden, stored)
}

func TestEvaluateStorageFailureIsNotAVerdict(t *testing.T) {
	e, repo := newEvaluator(t, map[model.Device]model.ConfigText{"R1": {"hostname R1"}})
	repo.FailWrites = true

	verdict, err := e.Evaluate(context.Background(), "R1", model.ConfigText{"hostname R2"}, filter.MustCompile(nil))
	require.Error(t, err)
	assert.Nil(t, verdict)
	assert.ErrorIs(t, err, model.ErrStorageFailure)
	assert.Equal(t, model.StatusStorageFailure, model.StatusFromError(err))

	// compliant runs write nothing, so they are unaffected
	verdict, err = e.Evaluate(context.Background(), "R1", model.ConfigText{"hostname R1"}, filter.MustCompile(nil))
	require.NoError(t, err)
	assert.True(t, verdict.Compliant)
}

func TestEvaluateRunID(t *testing.T) {
	repo := memory.New()
	_, err := repo.SaveBaseline(context.Background(), "R1", model.ConfigText{"a"})
	require.NoError(t, err)

	id := uuid.New()
	e := New(repo, repo, WithRunID(id))

	verdict, err := e.Evaluate(context.Background(), "R1", model.ConfigText{"a"}, nil)
	require.NoError(t, err)
	assert.Equal(t, id, verdict.RunID)
	assert.False(t, verdict.Timestamp.IsZero())
}
