package identity

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_Override(t *testing.T) {
	id := Resolve("  desk-42 ")

	assert.Equal(t, "desk-42", id.ID)
	assert.Equal(t, runtime.GOOS, id.Platform)
	assert.NotEmpty(t, id.HostName)
	assert.NotEmpty(t, id.UserName)
}

func TestResolve_GeneratedIsHostPrefixedAndUnique(t *testing.T) {
	a := Resolve("")
	b := Resolve("")

	assert.True(t, strings.HasPrefix(a.ID, a.HostName+"-"))
	assert.NotEqual(t, a.ID, b.ID)
}
