package version

import (
	"runtime"
	"runtime/debug"
)

var version = "dev"

// Version returns the current version string, including the short VCS
// revision for development builds.
func Version() string {
	info := GetInfo()
	if version == "dev" && info.Commit != "" {
		return version + " (" + info.Commit + ")"
	}
	return version
}

// RawVersion returns the version without decorations.
func RawVersion() string {
	return version
}

// Info is the build information printed by `tsumiki-ls version --json`.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// GetInfo collects build information from the running binary.
func GetInfo() Info {
	info := Info{
		Version:   version,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
			if len(info.Commit) > 12 {
				info.Commit = info.Commit[:12]
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}
