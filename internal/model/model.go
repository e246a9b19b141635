package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	AppName = "goldencfg"

	// TimestampLayout names archived snapshots and diff artifacts.
	TimestampLayout = "20060102T150405.000Z"
)

// Device identifies one managed network device, usually its inventory hostname.
type Device string

func (d Device) String() string {
	return string(d)
}

// ConfigText is a device configuration as an ordered list of lines.
type ConfigText []string

// ParseConfigText splits raw configuration text into lines.
// A single trailing newline is not treated as an extra empty line.
func ParseConfigText(raw string) ConfigText {
	if raw == "" {
		return ConfigText{}
	}

	raw = strings.TrimSuffix(raw, "\n")

	return strings.Split(raw, "\n")
}

// String renders the text with every line newline terminated.
func (c ConfigText) String() string {
	if len(c) == 0 {
		return ""
	}

	return strings.Join(c, "\n") + "\n"
}

// Equal reports whether both texts hold the same lines in the same order.
func (c ConfigText) Equal(other ConfigText) bool {
	if len(c) != len(other) {
		return false
	}

	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}

	return true
}

// FormatTimestamp renders t in the layout used for archive and artifact names.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Verdict is the outcome of one compliance evaluation.
// nolint:govet // prefer to keep field ordering as is
type Verdict struct {
	Device    Device
	Compliant bool

	// ArtifactPath references the persisted diff, set only when not compliant.
	ArtifactPath string

	// Diff holds the rendered unified diff, empty when compliant.
	Diff string

	RunID     uuid.UUID
	Timestamp time.Time
}

func (v *Verdict) AsLogFields() []any {
	return []any{
		"device", v.Device.String(),
		"compliant", v.Compliant,
		"artifact", v.ArtifactPath,
		"runID", v.RunID.String(),
		"timestamp", FormatTimestamp(v.Timestamp),
	}
}

type Args struct {
	LogLevel        string
	ConfigFile      string
	EnableProfiling bool
	Devices         []string
	Concurrency     int
}
