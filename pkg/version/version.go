// Package version reports the build revision of the chatbi binary.
//
// The revision comes from -ldflags when set, otherwise from the VCS
// stamp in debug.BuildInfo, otherwise "dev".
package version

import "runtime/debug"

// AppName prefixes version strings.
const AppName = "chatbi"

// revisionOverride is set with -ldflags "-X .../version.revisionOverride=<sha>"
// for builds without a .git directory.
var revisionOverride string

// GitCommit is the short (8 char) revision, or "dev".
var GitCommit = resolveRevision(revisionOverride, readBuildInfo)

func readBuildInfo() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}

func resolveRevision(override string, buildInfo func() (*debug.BuildInfo, bool)) string {
	if override != "" {
		return short(override)
	}
	info, ok := buildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return short(s.Value)
		}
	}
	return "dev"
}

func short(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns "chatbi/<revision>".
func Full() string {
	return AppName + "/" + GitCommit
}
