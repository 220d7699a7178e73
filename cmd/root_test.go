package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKnownAdapter(t *testing.T) {
	for _, name := range []string{"dap", "mi", "mi2", "mi3", "mi4"} {
		assert.True(t, isKnownAdapter(name), "expected %q to be known", name)
	}
	assert.False(t, isKnownAdapter("gdbserver"))
}

func TestParseMIVersionSuffix(t *testing.T) {
	cases := map[string]int{
		"mi":      1,
		"mi2":     2,
		"mi3":     3,
		"mi4":     4,
		"mibogus": 1,
	}
	for name, want := range cases {
		assert.Equal(t, want, parseMIVersionSuffix(name), "name=%q", name)
	}
}
