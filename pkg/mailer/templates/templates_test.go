package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderWelcome(t *testing.T) {
	subject, text, html, err := Render(Welcome, map[string]any{
		"Name":    "Jamie Lanister",
		"AppName": "usergate",
	})
	require.NoError(t, err)

	assert.Equal(t, "Welcome to usergate!", subject)
	assert.Contains(t, text, "Hi Jamie Lanister,")
	assert.Contains(t, html, "<p>Hi Jamie Lanister,</p>")
}

func TestRenderWelcomeDefaults(t *testing.T) {
	subject, text, _, err := Render(Welcome, map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, "Welcome to our service!", subject)
	assert.Contains(t, text, "Hi there,")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, _, _, err := Render("ransom_note", nil)
	require.Error(t, err)
}
