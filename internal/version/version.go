// Package version reports the build identity of signctl.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/signctl/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/signctl/internal/version.Commit=abc123"
//
// Unset values are filled from the VCS stamp in the build info, then from
// "dev" and "unknown".
var (
	Version = ""
	Commit  = ""
	// BuildTime is RFC 3339 when set.
	BuildTime = ""
)

func init() {
	if Version == "" || Commit == "" || BuildTime == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			fromSettings(info.Settings)
		}
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func fromSettings(settings []debug.BuildSetting) {
	var revision, modified, vcsTime string
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value
		case "vcs.time":
			vcsTime = s.Value
		}
	}

	if Commit == "" && revision != "" {
		Commit = revision[:min(7, len(revision))]
		if modified == "true" {
			Commit += "-dirty"
		}
	}
	if BuildTime == "" {
		BuildTime = vcsTime
	}
	// Build info carries no tags, so untagged builds are dated dev versions.
	if Version == "" && vcsTime != "" {
		if t, err := time.Parse(time.RFC3339, vcsTime); err == nil {
			Version = "dev-" + t.Format("20060102")
		}
	}
}

// Full returns the version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// Detailed is the multi-line form printed by "signctl version".
func Detailed() string {
	built := BuildTime
	if built == "" {
		built = "unknown"
	}
	return fmt.Sprintf("signctl %s\n  commit:   %s\n  built:    %s\n  go:       %s\n  platform: %s/%s\n",
		Version, Commit, built, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
