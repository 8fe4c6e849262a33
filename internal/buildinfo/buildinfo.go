// Package buildinfo reports the version stamped at link time, falling back
// to the VCS settings the Go toolchain embeds.
package buildinfo

import "runtime/debug"

// Set with -ldflags "-X routeopt/internal/buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	info := map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info["go"] = bi.GoVersion
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info["commit"] == "":
				info["commit"] = s.Value
			case s.Key == "vcs.time" && info["builtAt"] == "":
				info["builtAt"] = s.Value
			}
		}
	}
	return info
}
