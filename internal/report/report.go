// Package report prints the per device result table of a run.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/metal-toolbox/goldencfg/internal/model"
)

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
)

func colorize(status model.Status) string {
	switch status {
	case model.StatusCompliant, model.StatusBackedUp, model.StatusPromoted:
		return okColor.Sprint(status)
	case model.StatusNonCompliant:
		return warnColor.Sprint(status)
	default:
		return failColor.Sprint(status)
	}
}

// Write renders results as an aligned table, one row per device.
func Write(w io.Writer, results []*model.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintln(tw, "DEVICE\tSTATUS\tATTEMPTS\tDETAIL"); err != nil {
		return err
	}

	for _, r := range results {
		if r == nil {
			continue
		}

		if _, err := fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Device, colorize(r.Status), r.Attempts, detail(r)); err != nil {
			return err
		}
	}

	return tw.Flush()
}

func detail(r *model.Result) string {
	switch {
	case r.Err != nil && r.Verdict != nil && r.Verdict.ArtifactPath != "":
		return r.Err.Error() + " (diff: " + r.Verdict.ArtifactPath + ")"
	case r.Err != nil:
		return r.Err.Error()
	case r.Verdict != nil && r.Verdict.ArtifactPath != "":
		return r.Verdict.ArtifactPath
	default:
		return "-"
	}
}

// Summary counts results per status.
func Summary(results []*model.Result) map[model.Status]int {
	counts := map[model.Status]int{}

	for _, r := range results {
		if r != nil {
			counts[r.Status]++
		}
	}

	return counts
}

// ExitCode is 1 when any device is non compliant or failed, 0 otherwise.
func ExitCode(results []*model.Result) int {
	for _, r := range results {
		if r == nil || r.Status.Failure() {
			return 1
		}
	}

	return 0
}
