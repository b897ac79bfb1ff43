package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get("analysis.json", "legal-compliance-system")
	require.NoError(t, err)
	assert.NotEmpty(t, prompt)
	assert.Contains(t, prompt, "imprint")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get("analysis.json", "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMustGet_Panics(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() {
		MustGet("nonexistent.json", "some-key")
	})
}

func TestMustGet_ValidPrompt(t *testing.T) {
	ClearCache()

	assert.NotPanics(t, func() {
		prompt := MustGet("report.json", "consolidate-system")
		assert.NotEmpty(t, prompt)
	})
}

func TestFormat(t *testing.T) {
	template := "Audit {{.SiteURL}} with topic {{.Topic}}"
	data := map[string]string{
		"SiteURL": "https://example.de",
		"Topic":   "candles",
	}

	result := Format(template, data)
	assert.Equal(t, "Audit https://example.de with topic candles", result)
}

func TestFormat_NoPlaceholders(t *testing.T) {
	template := "No placeholders here"
	data := map[string]string{"Key": "Value"}

	result := Format(template, data)
	assert.Equal(t, template, result)
}

func TestFormat_EmptyData(t *testing.T) {
	template := "Hello {{.Name}}"
	data := map[string]string{}

	result := Format(template, data)
	assert.Equal(t, template, result) // Placeholder remains
}

func TestList(t *testing.T) {
	ClearCache()

	keys, err := List("analysis.json")
	require.NoError(t, err)
	assert.Contains(t, keys, "legal-compliance-system")
	assert.Contains(t, keys, "translation-quality-system")
}

func TestAllTaskPromptsPresent(t *testing.T) {
	ClearCache()

	for _, key := range []string{
		"analysis-context",
		"legal-compliance-system",
		"consumer-rights-system",
		"privacy-system",
		"company-profile-system",
		"localization-structure-system",
		"translation-quality-system",
	} {
		prompt, err := Get("analysis.json", key)
		require.NoErrorf(t, err, "prompt %s must exist", key)
		assert.NotEmpty(t, prompt)
	}
}
