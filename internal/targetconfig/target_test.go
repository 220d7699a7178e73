package targetconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTargetIsEmpty(t *testing.T) {
	snap := New().Read()
	assert.False(t, snap.HasExecutable)
	assert.False(t, snap.HasWorkingDir)
	assert.Empty(t, snap.Arguments)
}

func TestSetExecutableMarksHasExecutable(t *testing.T) {
	target := New()
	target.SetExecutable("/bin/true")
	snap := target.Read()
	assert.True(t, snap.HasExecutable)
	assert.Equal(t, "/bin/true", snap.ExecutablePath)
}

func TestSetArgumentsReplacesPreviousList(t *testing.T) {
	target := New()
	target.SetArguments([]string{"a", "b"})
	target.SetArguments([]string{"c"})
	snap := target.Read()
	assert.Equal(t, []string{"c"}, snap.Arguments)
}

func TestReadReturnsIndependentCopy(t *testing.T) {
	target := New()
	target.SetArguments([]string{"a"})
	snap := target.Read()
	snap.Arguments[0] = "mutated"

	again := target.Read()
	assert.Equal(t, "a", again.Arguments[0])
}

func TestSetWorkingDirectoryMarksHasWorkingDir(t *testing.T) {
	target := New()
	target.SetWorkingDirectory("/tmp")
	snap := target.Read()
	assert.True(t, snap.HasWorkingDir)
	assert.Equal(t, "/tmp", snap.WorkingDir)
}
