package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoString(t *testing.T) {
	orig := [3]string{Version, GitSHA, BuildTime}
	defer func() { Version, GitSHA, BuildTime = orig[0], orig[1], orig[2] }()

	Version, GitSHA, BuildTime = "1.2.0", "0123456789abcdef0123", "2026-03-01T09:00:00Z"
	info := Get()
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, "formcoach 1.2.0 (0123456789ab, built 2026-03-01T09:00:00Z, "+runtime.Version()+")", info.String())

	GitSHA = "unknown"
	assert.Contains(t, Get().String(), "(unknown,")
}
