package cstring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapePassesPlainTextThrough(t *testing.T) {
	assert.Equal(t, "hello world", Escape("hello world"))
}

func TestEscapeQuotesAndNewlines(t *testing.T) {
	got := Escape("line one\nsays \"hi\"")
	assert.Equal(t, `line one\nsays \"hi\"`, got)
}

func TestEscapeEmptyString(t *testing.T) {
	assert.Equal(t, "", Escape(""))
}
