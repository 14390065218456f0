package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindPlaceholders(t *testing.T) {
	names := FindPlaceholders("Hi {{name}}", "<p>{{ company }} / {{name}}</p>", "")
	assert.Equal(t, []string{"name", "company"}, names)
	assert.Empty(t, FindPlaceholders("no variables here"))
}

func TestRenderPlaceholders(t *testing.T) {
	out := RenderPlaceholders("Hi {{name}}, {{ company }} has {{count}} seats. {{missing}}", map[string]any{
		"name":    "Ana",
		"company": "Acme",
		"count":   12,
	})
	assert.Equal(t, "Hi Ana, Acme has 12 seats. {{missing}}", out)
}
