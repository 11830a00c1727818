package buildinfo

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version == "" || info.Commit == "" || info.BuildTime == "" {
		t.Errorf("Get() has empty fields: %+v", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}

func TestGet_LdflagsWin(t *testing.T) {
	oldV, oldC, oldT := Version, Commit, BuildTime
	t.Cleanup(func() { Version, Commit, BuildTime = oldV, oldC, oldT })

	Version, Commit, BuildTime = "v1.2.3", "abc123", "2026-01-02T03:04:05Z"
	info := Get()
	if info.Version != "v1.2.3" || info.Commit != "abc123" || info.BuildTime != "2026-01-02T03:04:05Z" {
		t.Errorf("Get() = %+v", info)
	}
	if s := String(); s != "v1.2.3 (abc123) built at 2026-01-02T03:04:05Z" {
		t.Errorf("String() = %q", s)
	}
}

func TestUserAgent(t *testing.T) {
	if ua := UserAgent("canvasmesh-cli"); !strings.HasPrefix(ua, "canvasmesh-cli/") {
		t.Errorf("UserAgent() = %q", ua)
	}
}

func TestShortCommit(t *testing.T) {
	if got := shortCommit("0123456789abcdef"); got != "0123456789ab" {
		t.Errorf("shortCommit() = %q", got)
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Errorf("shortCommit() = %q", got)
	}
}
