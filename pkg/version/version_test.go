package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "v1.2.3"
	s := String()
	assert.Contains(t, s, "v1.2.3")
	assert.Contains(t, s, GitCommit)
	assert.Contains(t, s, GoVersion)
}
