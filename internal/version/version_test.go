package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommitFrom(t *testing.T) {
	assert.Equal(t, "", commitFrom(nil))
	assert.Equal(t, "0123456", commitFrom([]debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
	}))
	assert.Equal(t, "abc-dirty", commitFrom([]debug.BuildSetting{
		{Key: "vcs.modified", Value: "true"},
		{Key: "vcs.revision", Value: "abc"},
	}))
}

func TestString(t *testing.T) {
	v, c := Version, GitCommit
	defer func() { Version, GitCommit = v, c }()

	Version, GitCommit = "1.2.0", ""
	assert.Equal(t, "1.2.0", String())
	GitCommit = "abc1234"
	assert.Equal(t, "1.2.0 (abc1234)", String())
}
