package version

import "testing"

func TestString(t *testing.T) {
	defer func(v, b, c string) { Version, BuildTime, GitCommit = v, b, c }(Version, BuildTime, GitCommit)

	Version, GitCommit = "1.2.0", "unknown"
	if got := String(); got != "v1.2.0" {
		t.Errorf("String() = %q", got)
	}
	GitCommit, BuildTime = "0123456789abcdef", "2026-01-02T03:04:05Z"
	if got, want := String(), "v1.2.0 (0123456, built 2026-01-02T03:04:05Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
