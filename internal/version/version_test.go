package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withBuildVars(t *testing.T, v, commit, built string) {
	t.Helper()
	oldV, oldC, oldB := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = v, commit, built
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldV, oldC, oldB })
}

func TestGetWithLdflags(t *testing.T) {
	withBuildVars(t, "v1.4.0", "0123456789abcdef", "2024-03-01T10:00:00Z")

	info := Get()
	assert.Equal(t, "v1.4.0", info.Version)
	assert.Equal(t, "0123456789abcdef", info.GitCommit)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), info.BuildTime)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
	assert.True(t, info.IsRelease())
	assert.Equal(t, "v1.4.0 (0123456)", info.Short())
	assert.Contains(t, info.Detailed(), "Commit: 0123456789abcdef")
	assert.Contains(t, info.Detailed(), "Built: 2024-03-01T10:00:00Z")
}

func TestShortWithoutCommit(t *testing.T) {
	b := BuildInfo{Version: "dev", GitCommit: "unknown"}
	assert.Equal(t, "dev", b.Short())
	assert.False(t, b.IsRelease())
	assert.NotContains(t, b.Detailed(), "Commit")
}

func TestParseTime(t *testing.T) {
	assert.True(t, parseTime("unknown").IsZero())
	assert.True(t, parseTime("yesterday").IsZero())
	assert.False(t, parseTime("2024-01-02 03:04:05").IsZero())
}
