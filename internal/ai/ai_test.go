package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEcho(t *testing.T) {
	var p Provider = Echo{}
	assert.Equal(t, "echo", p.Name())

	got, err := p.Generate(t.Context(), Prompt{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	got, err = p.Generate(t.Context(), Prompt{Text: "hello", Tone: "calm"})
	require.NoError(t, err)
	assert.Equal(t, "[calm] hello", got)
}

func TestSystemInstruction(t *testing.T) {
	assert.NotContains(t, systemInstruction(""), "tone")
	assert.True(t, strings.Contains(systemInstruction(" playful "), "a playful tone"))
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(t.Context(), "", "")
	require.Error(t, err)
}
