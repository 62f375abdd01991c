// Package buildinfo provides build version information.
package buildinfo

import "runtime"

// Product is the name reported in version strings and user agents.
const Product = "usagemesh"

// Build-time variables (set via ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info contains build information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build information.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns a formatted version string.
func String() string {
	return Product + " " + Version + " (" + Commit + ") built at " + BuildTime
}

// UserAgent returns the User-Agent for outgoing requests of component,
// e.g. "usagemesh-cli/v1.2.0".
func UserAgent(component string) string {
	return component + "/" + Version
}
