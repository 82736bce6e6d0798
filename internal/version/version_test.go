package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestColoredPlain(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	orig := Version
	t.Cleanup(func() { Version = orig })

	for in, want := range map[string]string{
		"1.2.3":     "1.2.3",
		"0.1.0-dev": "0.1.0-dev",
		"nightly":   "nightly",
		"2.0-rc1":   "2.0-rc1",
	} {
		Version = in
		if got := Colored(); got != want {
			t.Fatalf("Colored(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCurrent(t *testing.T) {
	orig := GitCommit
	t.Cleanup(func() { GitCommit = orig })
	GitCommit = "abc123"
	if info := Current(); info.Commit != "abc123" || info.Version != Version {
		t.Fatalf("Current() = %+v", info)
	}
}
