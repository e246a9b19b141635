// Package diff renders line based unified differences between configuration texts.
package diff

import (
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
)

const (
	DefaultContext = 3

	DefaultFromLabel = "golden"
	DefaultToLabel   = "running"
)

// Result is the outcome of comparing two configuration texts.
type Result struct {
	IsEmpty  bool
	Rendered string
}

// Engine computes unified diffs. The zero value uses no context lines and no file labels.
//
// Matching is go-difflib's Ratcliff/Obershelp algorithm (the one Python's difflib uses),
// not a longest common subsequence. Hunks can differ from GNU diff output for the same
// inputs, though the result is always a valid and deterministic diff. Lines that appear
// in more than 1% of a text of 200 or more lines are treated as junk when looking for
// matches.
type Engine struct {
	// Context is the number of unchanged lines shown around each hunk.
	Context   int
	FromLabel string
	ToLabel   string
}

// New returns an Engine with the default context and labels.
func New() *Engine {
	return &Engine{
		Context:   DefaultContext,
		FromLabel: DefaultFromLabel,
		ToLabel:   DefaultToLabel,
	}
}

// WithLabels returns a copy of e using the given file labels in the diff header.
func (e *Engine) WithLabels(from, to string) *Engine {
	c := *e
	c.FromLabel = from
	c.ToLabel = to

	return &c
}

// Diff compares expected against actual. Removed lines are prefixed with "-",
// added lines with "+". Identical inputs give an empty Result.
func (e *Engine) Diff(expected, actual model.ConfigText) (Result, error) {
	if expected.Equal(actual) {
		return Result{IsEmpty: true}, nil
	}

	ud := difflib.UnifiedDiff{
		A:        terminate(expected),
		B:        terminate(actual),
		FromFile: e.FromLabel,
		ToFile:   e.ToLabel,
		Context:  e.Context,
	}

	rendered, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to render unified diff")
	}

	return Result{
		IsEmpty:  rendered == "",
		Rendered: rendered,
	}, nil
}

func terminate(text model.ConfigText) []string {
	lines := make([]string, len(text))
	for i, line := range text {
		lines[i] = line + "\n"
	}

	return lines
}
