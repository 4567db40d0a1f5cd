// Package misc keeps build time information.
package misc

// Set at build time with -ldflags "-X mwh/misc.version=... -X mwh/misc.gitHash=...".
var (
	version = "dev"
	gitHash = "unknown"
)

const appName = "mwh"

// GetVersion returns program version.
func GetVersion() string {
	return version
}

// GetGitHash returns git commit hash the program was built from.
func GetGitHash() string {
	return gitHash
}

// GetAppName returns program name used for logs, reports and temporary files.
func GetAppName() string {
	return appName
}
