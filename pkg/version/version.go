// Package version exposes build metadata for the rulesmith binary.
package version

import "runtime/debug"

// Build metadata, overridable at link time via -ldflags.
var (
	// Version is the semantic version of the binary.
	Version = "dev"

	// Commit is the VCS revision the binary was built from.
	Commit = "<unknown>"

	// Date is the build timestamp.
	Date = "<unknown>"
)

// InitBinaryVersion fills in Commit from embedded VCS build info when it was
// not injected at link time.
func InitBinaryVersion() {
	if Commit != "<unknown>" {
		return
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			Commit = setting.Value

			return
		}
	}
}
