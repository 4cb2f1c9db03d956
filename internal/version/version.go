// Package version identifies a csvdash build. Release builds stamp Version
// and BuildTime through ldflags; the VCS fields come from the Go toolchain.
package version

import (
	"runtime/debug"
	"strings"
)

// Name is the program name reported by /api/version
const Name = "csvdash"

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Info is the payload of /api/version
type Info struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	BuildTime   string `json:"buildTime"`
	GoVersion   string `json:"goVersion"`
	VCSRevision string `json:"vcsRevision,omitempty"`
	VCSTime     string `json:"vcsTime,omitempty"`
	VCSModified bool   `json:"vcsModified"`
}

func Get() Info {
	info := Info{Name: Name, Version: Version, BuildTime: BuildTime}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.VCSRevision = s.Value
		case "vcs.time":
			info.VCSTime = s.Value
		case "vcs.modified":
			info.VCSModified = s.Value == "true"
		}
	}
	return info
}

// ShortRevision is the abbreviated commit, suffixed "+dirty" for builds
// from an uncommitted tree
func (i Info) ShortRevision() string {
	rev := i.VCSRevision
	if len(rev) > 8 {
		rev = rev[:8]
	}
	if rev != "" && i.VCSModified {
		rev += "+dirty"
	}
	return rev
}

// String renders the startup banner, e.g.
// "csvdash 1.2.0 (go1.24.0, rev 1a2b3c4d+dirty, built 2026-01-02)"
func (i Info) String() string {
	var details []string
	if i.GoVersion != "" {
		details = append(details, i.GoVersion)
	}
	if rev := i.ShortRevision(); rev != "" {
		details = append(details, "rev "+rev)
	}
	if i.BuildTime != "" && i.BuildTime != "unknown" {
		details = append(details, "built "+i.BuildTime)
	}
	if i.VCSTime != "" {
		details = append(details, "committed "+i.VCSTime)
	}

	banner := i.Name + " " + i.Version
	if len(details) == 0 {
		return banner
	}
	return banner + " (" + strings.Join(details, ", ") + ")"
}

// Check returns a startup warning for builds that cannot be traced to a
// commit, or "" for a clean build
func (i Info) Check() string {
	switch {
	case i.VCSModified:
		return "WARNING: built from a modified source tree"
	case i.VCSRevision == "" && i.Version == "dev":
		return "WARNING: development build without version control information"
	}
	return ""
}

// UserAgent identifies outgoing requests, e.g. "csvdash/1.2.0"
func (i Info) UserAgent() string {
	return i.Name + "/" + i.Version
}
