package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortPrefersVersion(t *testing.T) {
	defer func(v string) { Version = v }(Version)

	Version = "v1.2.3"
	assert.Equal(t, "v1.2.3", Short())
}

func TestShortTruncatesCommit(t *testing.T) {
	defer func(v, c string) { Version, Commit = v, c }(Version, Commit)

	Version = "dev"
	Commit = "0123456789abcdef"
	assert.Equal(t, "0123456789ab", Short())
}

func TestReadKeepsLinkerValues(t *testing.T) {
	defer func(c, d string) { Commit, Date = c, d }(Commit, Date)

	Commit = "abc"
	Date = "2026-01-02"
	info := Read()
	assert.Equal(t, "abc", info.Commit)
	assert.Equal(t, "2026-01-02", info.Date)
}
