package version

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Name != Name || info.Version != Version {
		t.Errorf("info = %+v", info)
	}
	if !strings.HasPrefix(info.String(), "csvdash "+Version) {
		t.Errorf("String() = %q", info.String())
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{
			"bare",
			Info{Name: Name, Version: "dev", BuildTime: "unknown"},
			"csvdash dev",
		},
		{
			"release",
			Info{Name: Name, Version: "1.2.0", BuildTime: "2026-01-02", GoVersion: "go1.24.0", VCSRevision: "1a2b3c4d5e6f"},
			"csvdash 1.2.0 (go1.24.0, rev 1a2b3c4d, built 2026-01-02)",
		},
		{
			"dirty tree",
			Info{Name: Name, Version: "dev", GoVersion: "go1.24.0", VCSRevision: "abc", VCSModified: true, VCSTime: "2026-01-01T00:00:00Z"},
			"csvdash dev (go1.24.0, rev abc+dirty, committed 2026-01-01T00:00:00Z)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "1.0.0", VCSRevision: "abc", VCSModified: true}, "modified source tree"},
		{Info{Version: "dev"}, "development build"},
		{Info{Version: "1.0.0", VCSRevision: "abc"}, ""},
	}

	for _, tt := range tests {
		got := tt.info.Check()
		if tt.want == "" && got != "" || !strings.Contains(got, tt.want) {
			t.Errorf("Check() = %q, want it to contain %q", got, tt.want)
		}
	}
}

func TestUserAgent(t *testing.T) {
	info := Info{Name: Name, Version: "1.2.0"}
	if got := info.UserAgent(); got != "csvdash/1.2.0" {
		t.Errorf("UserAgent() = %q", got)
	}
}
