package diff

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffIdentical(t *testing.T) {
	text := model.ConfigText{"hostname R1-LAB", "ntp server 1.1.1.1"}

	got, err := New().Diff(text, append(model.ConfigText(nil), text...))
	require.NoError(t, err)
	assert.True(t, got.IsEmpty)
	assert.Empty(t, got.Rendered)
}

func TestDiffEmptyInputs(t *testing.T) {
	got, err := New().Diff(model.ConfigText{}, nil)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty)
}

func TestDiffChangedLine(t *testing.T) {
	got, err := New().Diff(model.ConfigText{"hostname R1-LAB"}, model.ConfigText{"hostname R2-LAB"})
	require.NoError(t, err)

	expected := "--- golden\n" +
		"+++ running\n" +
		"@@ -1 +1 @@\n" +
		"-hostname R1-LAB\n" +
		"+hostname R2-LAB\n"

	assert.False(t, got.IsEmpty)
	assert.Equal(t, expected, got.Rendered)
}

func TestDiffInsertAndDelete(t *testing.T) {
	tests := []struct {
		name     string
		expected model.ConfigText
		actual   model.ConfigText
		contains []string
	}{
		{
			name:     "insertion",
			expected: model.ConfigText{"a", "b"},
			actual:   model.ConfigText{"a", "b", "c"},
			contains: []string{"+c\n", " a\n", " b\n"},
		},
		{
			name:     "deletion",
			expected: model.ConfigText{"a", "b", "c"},
			actual:   model.ConfigText{"a", "c"},
			contains: []string{"-b\n"},
		},
		{
			name:     "trailing empty line is a difference",
			expected: model.ConfigText{"a"},
			actual:   model.ConfigText{"a", ""},
			contains: []string{"+\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().Diff(tt.expected, tt.actual)
			require.NoError(t, err)
			assert.False(t, got.IsEmpty)

			for _, c := range tt.contains {
				assert.Contains(t, got.Rendered, c)
			}
		})
	}
}

func TestDiffNoLabels(t *testing.T) {
	e := &Engine{}

	got, err := e.Diff(model.ConfigText{"a"}, model.ConfigText{"b"})
	require.NoError(t, err)
	assert.Equal(t, "@@ -1 +1 @@\n-a\n+b\n", got.Rendered)
}

func TestDiffZeroContext(t *testing.T) {
	e := New()
	e.Context = 0

	got, err := e.Diff(
		model.ConfigText{"hostname R1", "ntp server 10.0.0.1", "logging host 10.0.0.2"},
		model.ConfigText{"hostname R1", "ntp server 10.0.0.9", "logging host 10.0.0.2"},
	)
	require.NoError(t, err)
	assert.Equal(t, "--- golden\n+++ running\n@@ -2 +2 @@\n-ntp server 10.0.0.1\n+ntp server 10.0.0.9\n", got.Rendered)
}

func TestWithLabels(t *testing.T) {
	e := New()
	labelled := e.WithLabels("golden/R1.cfg", "running/R1.cfg")

	assert.Equal(t, DefaultFromLabel, e.FromLabel)

	got, err := labelled.Diff(model.ConfigText{"a"}, model.ConfigText{"b"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.Rendered, "--- golden/R1.cfg\n+++ running/R1.cfg\n"))
}

// reconstruct rebuilds both sides from a diff rendered with full context.
func reconstruct(rendered string) (model.ConfigText, model.ConfigText) {
	from, to := model.ConfigText{}, model.ConfigText{}

	lines := strings.Split(strings.TrimSuffix(rendered, "\n"), "\n")
	for i, line := range lines {
		if i < 2 || strings.HasPrefix(line, "@@") {
			continue
		}

		switch line[0] {
		case ' ':
			from = append(from, line[1:])
			to = append(to, line[1:])
		case '-':
			from = append(from, line[1:])
		case '+':
			to = append(to, line[1:])
		}
	}

	return from, to
}

func TestDiffProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	lineGen := gen.OneConstOf(
		"hostname R1-LAB",
		"hostname R2-LAB",
		"ntp server 1.1.1.1",
		"interface GigabitEthernet1",
		" ip address 10.0.0.1 255.255.255.0",
		"!",
		"",
	)
	textGen := gen.SliceOf(lineGen, reflect.TypeOf(""))

	properties.Property("diff(X, X) is empty", prop.ForAll(
		func(x []string) bool {
			got, err := New().Diff(x, x)
			return err == nil && got.IsEmpty && got.Rendered == ""
		},
		textGen,
	))

	properties.Property("diff(X, Y) is not empty when X != Y", prop.ForAll(
		func(x, y []string) bool {
			got, err := New().Diff(x, y)
			if err != nil {
				return false
			}

			if model.ConfigText(x).Equal(y) {
				return got.IsEmpty
			}

			return !got.IsEmpty && got.Rendered != ""
		},
		textGen,
		textGen,
	))

	properties.Property("full context rendering reconstructs both sides", prop.ForAll(
		func(x, y []string) bool {
			if model.ConfigText(x).Equal(y) {
				return true
			}

			e := New()
			e.Context = len(x) + len(y) + 1

			got, err := e.Diff(x, y)
			if err != nil {
				return false
			}

			from, to := reconstruct(got.Rendered)

			return from.Equal(x) && to.Equal(y)
		},
		textGen,
		textGen,
	))

	properties.TestingRun(t)
}
