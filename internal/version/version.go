// Package version carries build metadata, set with -ldflags -X at link time
// or read from the embedded VCS stamp.
package version

import "runtime/debug"

var (
	// Version is the release name, "dev" for local builds.
	Version = "dev"
	// GitCommit is the short commit hash, or empty when unknown.
	GitCommit = ""
)

func init() {
	if GitCommit != "" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		GitCommit = commitFrom(info.Settings)
	}
}

func commitFrom(settings []debug.BuildSetting) string {
	var rev string
	dirty := false
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if rev != "" && dirty {
		rev += "-dirty"
	}
	return rev
}

// String returns a concise version string for logs and /health.
func String() string {
	if GitCommit == "" {
		return Version
	}
	return Version + " (" + GitCommit + ")"
}
