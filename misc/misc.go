// Package misc keeps program identity used across command line processing,
// logging and generated document properties.
package misc

import (
	"runtime/debug"
)

const appName = "rptc"

// Overwritten by the linker during release builds.
var (
	version string
	gitHash string
)

// GetAppName returns short program name.
func GetAppName() string {
	return appName
}

// GetVersion returns program version, either stamped by the linker or
// derived from the module build information.
func GetVersion() string {
	if len(version) > 0 {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		if len(bi.Main.Version) > 0 && bi.Main.Version != "(devel)" {
			return bi.Main.Version
		}
	}
	return "development"
}

// GetGitHash returns source revision program was built from.
func GetGitHash() string {
	if len(gitHash) > 0 {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
