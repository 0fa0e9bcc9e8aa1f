package version

import (
	"strings"
	"testing"
)

func stamp(t *testing.T, version, commit, branch, built string) {
	t.Helper()
	ov, oc, ob, obt := Version, GitCommit, GitBranch, BuildTime
	t.Cleanup(func() { Version, GitCommit, GitBranch, BuildTime = ov, oc, ob, obt })
	Version, GitCommit, GitBranch, BuildTime = version, commit, branch, built
}

func TestGetStamped(t *testing.T) {
	stamp(t, "1.4.0", "abc1234", "main", "2026-03-01T10:30:00Z")

	info := Get()
	if info.Version != "1.4.0" || info.GitCommit != "abc1234" {
		t.Errorf("unexpected info %+v", info)
	}
	if !info.IsRelease {
		t.Error("1.4.0 should be a release")
	}
	if info.BuildDate.Year() != 2026 {
		t.Errorf("build date not parsed: %v", info.BuildDate)
	}
}

func TestReleaseDetection(t *testing.T) {
	tests := []struct {
		version string
		release bool
	}{
		{"dev", false},
		{"1.0.0-dirty", false},
		{"2.1.0", true},
	}
	for _, tc := range tests {
		stamp(t, tc.version, "", "", "")
		if got := Get().IsRelease; got != tc.release {
			t.Errorf("%s: IsRelease = %v", tc.version, got)
		}
	}
}

func TestShortAndString(t *testing.T) {
	info := Info{Version: "1.0.0", GitCommit: "abc1234"}
	if got := info.Short(); got != "1.0.0-abc1234" {
		t.Errorf("Short = %q", got)
	}
	info.IsDirty = true
	if got := info.Short(); got != "1.0.0-abc1234-dirty" {
		t.Errorf("dirty Short = %q", got)
	}

	stamp(t, "1.0.0", "abc1234", "feature/canvas", "2026-01-15T10:30:00Z")
	s := Get().String()
	for _, want := range []string{"1.0.0", "abc1234", "(feature/canvas)", "built 2026-01-15T10:30:00Z"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}

	if got := (Info{Version: "dev", GitBranch: "main"}).String(); got != "dev" {
		t.Errorf("main branch should be omitted, got %q", got)
	}
}

func TestShortCommit(t *testing.T) {
	if got := shortCommit("0123456789abcdef"); got != "0123456" {
		t.Errorf("shortCommit = %q", got)
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Errorf("short input should pass through, got %q", got)
	}
}
