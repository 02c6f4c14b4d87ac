// Package version holds build-time version information for the routerd and
// routerctl binaries. Release builds inject the variables via -ldflags:
//
//	-X github.com/ferro-labs/policy-router/internal/version.Version=v0.1.0
//	-X github.com/ferro-labs/policy-router/internal/version.Commit=abc1234
//	-X github.com/ferro-labs/policy-router/internal/version.Date=2026-10-01T00:00:00Z
//
// A plain `go build` leaves them at their dev defaults; Get then fills the
// commit and date from the VCS stamp Go embeds in the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Variables set at link time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is the resolved build metadata.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

// Get returns the build metadata, preferring link-time values.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date, GoVersion: runtime.Version()}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildSettings(&info, bi.Settings)
	}
	return info
}

func fillFromBuildSettings(info *Info, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "none" && s.Value != "" {
				info.Commit = s.Value
				if len(info.Commit) > 12 {
					info.Commit = info.Commit[:12]
				}
			}
		case "vcs.time":
			if info.Date == "unknown" && s.Value != "" {
				info.Date = s.Value
			}
		}
	}
}

// String returns a single-line version string, e.g.
// "v0.1.0 (commit abc1234, built 2026-10-01T12:00:00Z)".
func String() string {
	i := Get()
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Date)
}

// Short returns just the version tag, e.g. "v0.1.0" or "dev".
func Short() string {
	return Version
}
