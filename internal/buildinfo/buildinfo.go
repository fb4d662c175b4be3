package buildinfo

import "runtime/debug"

// Version, Commit and Date are set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info is the resolved build identity.
type Info struct {
	Version string
	Commit  string
	Date    string
	// Modified reports a dirty work tree at build time.
	Modified bool
}

// Read returns the ldflags values, filling the commit and date from the VCS
// stamp of the Go toolchain when they were not set.
func Read() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == "unknown" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// Short returns a compact build identifier for logs and the CLI.
func Short() string {
	info := Read()
	switch {
	case info.Version != "" && info.Version != "dev":
		return info.Version
	case info.Commit != "" && info.Commit != "unknown":
		if len(info.Commit) > 12 {
			return info.Commit[:12]
		}
		return info.Commit
	}
	return "dev"
}
