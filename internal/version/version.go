package version

import (
	"encoding/json"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// populated by ldflags at build time
var (
	GitCommit  string
	GitBranch  string
	GitSummary string
	BuildDate  string
	AppVersion string
	GoVersion  = runtime.Version()
)

type Version struct {
	GitCommit  string `json:"git_commit"`
	GitBranch  string `json:"git_branch"`
	GitSummary string `json:"git_summary"`
	BuildDate  string `json:"build_date"`
	AppVersion string `json:"app_version"`
	GoVersion  string `json:"go_version"`
}

func Current() *Version {
	return &Version{
		GitBranch:  GitBranch,
		GitCommit:  GitCommit,
		GitSummary: GitSummary,
		BuildDate:  BuildDate,
		AppVersion: AppVersion,
		GoVersion:  GoVersion,
	}
}

// AsMap returns the version fields keyed by their json names, for log fields.
func (v *Version) AsMap() (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	m := map[string]any{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}

	return m, nil
}

func (v *Version) AsLogFields() []any {
	return []any{
		"commit", v.GitCommit,
		"branch", v.GitBranch,
		"summary", v.GitSummary,
		"buildDate", v.BuildDate,
		"version", v.AppVersion,
		"goVersion", v.GoVersion,
	}
}

// ExportBuildInfoMetric publishes the build information as a constant gauge.
func ExportBuildInfoMetric() {
	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "goldencfg_build_info",
			Help: "A metric with a constant '1' value, labeled by version, commit and go version",
		},
		[]string{"branch", "commit", "summary", "date", "version", "goversion"},
	)

	if err := prometheus.Register(buildInfo); err != nil {
		return
	}

	buildInfo.WithLabelValues(GitBranch, GitCommit, GitSummary, BuildDate, AppVersion, GoVersion).Set(1)
}
