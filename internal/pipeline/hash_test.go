package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLineEndings(t *testing.T) {
	assert.Equal(t, "a\nb\nc", normalizeLineEndings("a\r\nb\rc"))
}

func TestContentHash_StableAcrossLineEndingStyle(t *testing.T) {
	a := contentHash("line one\nline two")
	b := contentHash("line one\r\nline two")
	c := contentHash("line one\rline two")
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
}

func TestContentHash_DiffersOnContentChange(t *testing.T) {
	a := contentHash("hello")
	b := contentHash("hello.")
	assert.NotEqual(t, a, b)
}
