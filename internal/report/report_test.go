package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	color.NoColor = true

	results := []*model.Result{
		{Device: "R1-LAB", Status: model.StatusCompliant, Attempts: 1},
		{Device: "R2-LAB", Status: model.StatusNonCompliant, Attempts: 1, Verdict: &model.Verdict{ArtifactPath: "data/diffs/R2-LAB_20261018T093000.000Z.patch"}},
		{Device: "R9-LAB", Status: model.StatusBaselineMissing, Attempts: 1, Err: errors.Wrap(model.ErrBaselineMissing, "R9-LAB")},
	}

	buf := &bytes.Buffer{}
	require.NoError(t, Write(buf, results))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)

	assert.Equal(t, []string{"DEVICE", "STATUS", "ATTEMPTS", "DETAIL"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"R1-LAB", "compliant", "1", "-"}, strings.Fields(lines[1]))
	assert.Contains(t, lines[2], "data/diffs/R2-LAB_20261018T093000.000Z.patch")
	assert.Contains(t, lines[3], "R9-LAB: golden baseline missing")

	buf.Reset()
	require.NoError(t, Write(buf, []*model.Result{{
		Device:   "R2-LAB",
		Status:   model.StatusStorageFailure,
		Attempts: 1,
		Verdict:  &model.Verdict{ArtifactPath: "data/diffs/R2-LAB_20261018T093000.000Z.patch"},
		Err:      errors.Wrap(model.ErrStorageFailure, "running_dir is read-only"),
	}}))
	assert.Contains(t, buf.String(), "running_dir is read-only: storage failure (diff: data/diffs/R2-LAB_20261018T093000.000Z.patch)")
}

func TestExitCode(t *testing.T) {
	testcases := []struct {
		name    string
		results []*model.Result
		want    int
	}{
		{
			name: "all compliant",
			results: []*model.Result{
				{Device: "R1", Status: model.StatusCompliant},
				{Device: "R2", Status: model.StatusBackedUp},
			},
			want: 0,
		},
		{
			name:    "no devices",
			results: nil,
			want:    0,
		},
		{
			name: "non compliant",
			results: []*model.Result{
				{Device: "R1", Status: model.StatusCompliant},
				{Device: "R2", Status: model.StatusNonCompliant},
			},
			want: 1,
		},
		{
			name: "fetch failure",
			results: []*model.Result{
				{Device: "R1", Status: model.StatusFetchFailure},
			},
			want: 1,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCode(tc.results))
		})
	}
}

func TestSummary(t *testing.T) {
	got := Summary([]*model.Result{
		{Status: model.StatusCompliant},
		{Status: model.StatusCompliant},
		{Status: model.StatusNonCompliant},
	})

	assert.Equal(t, map[model.Status]int{model.StatusCompliant: 2, model.StatusNonCompliant: 1}, got)
}
