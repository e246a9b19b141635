package memory

import (
	"context"
	"testing"
	"time"

	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaselineCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	text := model.ConfigText{"hostname R1"}

	_, err := s.SaveBaseline(ctx, "R1", text)
	require.NoError(t, err)

	text[0] = "mutated"

	loaded, err := s.LoadBaseline(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, model.ConfigText{"hostname R1"}, loaded)

	loaded[0] = "mutated again"

	again, err := s.LoadBaseline(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, model.ConfigText{"hostname R1"}, again)
}

func TestMissingEntities(t *testing.T) {
	s := New()

	_, err := s.LoadBaseline(context.Background(), "R9")
	assert.ErrorIs(t, err, model.ErrBaselineMissing)

	_, err = s.LoadLatest(context.Background(), "R9")
	assert.ErrorIs(t, err, model.ErrSnapshotMissing)
}

func TestArchiveAndArtifactsAppendOnly(t *testing.T) {
	s := New()
	ctx := context.Background()
	ts := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

	path, err := s.Archive(ctx, "R1", model.ConfigText{"a"}, ts)
	require.NoError(t, err)
	assert.Equal(t, "memory://backups/R1_20261018T100000.000Z.cfg", path)

	_, err = s.Archive(ctx, "R1", model.ConfigText{"b"}, ts)
	assert.ErrorIs(t, err, model.ErrStorageFailure)

	diffPath, err := s.WriteArtifact(ctx, "R1", "diff", ts)
	require.NoError(t, err)

	_, err = s.WriteArtifact(ctx, "R1", "diff", ts)
	assert.ErrorIs(t, err, model.ErrStorageFailure)

	rendered, ok := s.Artifact(diffPath)
	assert.True(t, ok)
	assert.Equal(t, "diff", rendered)

	assert.Equal(t, []string{path}, s.ArchivePaths())
	assert.Equal(t, []string{diffPath}, s.ArtifactPaths())
}

func TestFailWrites(t *testing.T) {
	s := New()
	s.FailWrites = true

	_, err := s.WriteLatest(context.Background(), "R1", model.ConfigText{"a"})
	assert.ErrorIs(t, err, model.ErrStorageFailure)

	_, err = s.LoadLatest(context.Background(), "R1")
	assert.ErrorIs(t, err, model.ErrSnapshotMissing)
}
