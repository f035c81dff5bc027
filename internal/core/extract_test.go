package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_ObjectSurroundedByText(t *testing.T) {
	text := `Here is my analysis: {"likely_causes":["loose heat shield"],"severity":"low","recommended_actions":["inspect heat shield"],"diagnostic_codes":[],"explanation":"..."} Hope this helps!`

	obj, ok := ExtractJSON(text)
	require.True(t, ok)
	assert.Equal(t, "low", obj["severity"])
	assert.Equal(t, []any{"loose heat shield"}, obj["likely_causes"])
	assert.Equal(t, []any{}, obj["diagnostic_codes"])
}

func TestExtractJSON_BracesInsideStrings(t *testing.T) {
	// The naive first-{ / last-} heuristic breaks on this input.
	text := `prefix {"explanation":"use a {10mm} socket","severity":"high"} trailing } brace`

	obj, ok := ExtractJSON(text)
	require.True(t, ok)
	assert.Equal(t, "use a {10mm} socket", obj["explanation"])
	assert.Equal(t, "high", obj["severity"])
}

func TestExtractJSON_NestedObjects(t *testing.T) {
	text := `{"outer":{"inner":{"deep":true}},"severity":"low"}`

	obj, ok := ExtractJSON(text)
	require.True(t, ok)
	assert.Equal(t, "low", obj["severity"])
}

func TestExtractJSON_SkipsUnparseableCandidates(t *testing.T) {
	text := `{not json} but then {"severity":"critical"}`

	obj, ok := ExtractJSON(text)
	require.True(t, ok)
	assert.Equal(t, "critical", obj["severity"])
}

func TestExtractJSON_NoBraces(t *testing.T) {
	obj, ok := ExtractJSON("the engine seems fine to me")
	assert.False(t, ok)
	assert.Nil(t, obj)
}

func TestExtractJSON_UnterminatedObject(t *testing.T) {
	_, ok := ExtractJSON(`{"severity":"low"`)
	assert.False(t, ok)
}

func TestFallbackDiagnosis_Shape(t *testing.T) {
	raw := "the engine seems fine to me"
	fallback := FallbackDiagnosis(raw)

	assert.Equal(t, "unknown", fallback["severity"])
	assert.Equal(t, []any{"Unable to parse diagnosis"}, fallback["likely_causes"])
	assert.Equal(t, raw, fallback["explanation"])
}

func TestFallbackDiagnosis_Idempotent(t *testing.T) {
	raw := "no json here at all"

	// Parsing the fallback's explanation again must yield the same shape.
	first := FallbackDiagnosis(raw)
	_, ok := ExtractJSON(first["explanation"].(string))
	require.False(t, ok)

	second := FallbackDiagnosis(first["explanation"].(string))
	assert.Equal(t, first, second)
}
