package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// P5: confidence below the floor always loses, even with is_valid true;
// at or above the floor with is_valid true always wins.
func TestValidateJSONConfidenceFloor(t *testing.T) {
	v := NewValidator(60)

	low := v.ValidateJSON(`{"observation":"x","confidence":59,"is_valid":true}`, "")
	assert.False(t, low.IsValid)
	assert.Contains(t, low.Diagnostic, "confidence")

	ok := v.ValidateJSON(`{"observation":"x","confidence":60,"is_valid":true}`, "")
	assert.True(t, ok.IsValid)
	assert.Equal(t, 60.0, ok.Confidence)
}

func TestValidateJSONExplicitInvalidFlag(t *testing.T) {
	v := NewValidator(60)
	res := v.ValidateJSON(`{"observation":"too blurry","confidence":80,"is_valid":false}`, "")
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Diagnostic, "invalid")
}

func TestValidateJSONWithoutConfidenceIsAccepted(t *testing.T) {
	v := NewValidator(60)
	res := v.ValidateJSON(`{"summary":"ok"}`, "")
	assert.True(t, res.IsValid)
	assert.Equal(t, -1.0, res.Confidence)
}

func TestValidateTextRefusal(t *testing.T) {
	v := NewValidator(60)
	res := v.ValidateText("As an AI language model, I cannot assist with diagnosis.")
	assert.False(t, res.IsValid)
}

func TestValidateTextMinimumLength(t *testing.T) {
	v := NewValidator(60)
	assert.False(t, v.ValidateText("").IsValid)
	assert.False(t, v.ValidateText(" ").IsValid)
	assert.True(t, v.ValidateText("脉滑").IsValid)
}

// P4: repair is a no-op on valid input — ParseJSON equals direct parsing.
func TestParseJSONIdempotentOnValidInput(t *testing.T) {
	raw := `{"observation":"thin white coating","confidence":72,"nested":{"a":[1,2]}}`

	var direct map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &direct))

	parsed, ok := ParseJSON(raw)
	require.True(t, ok)
	assert.Equal(t, direct, parsed)
}

// Scenario B: the trailing orphan fragment is discarded and the rest
// parses.
func TestParseJSONDropsTrailingFragment(t *testing.T) {
	parsed, ok := ParseJSON(`{"key": "value", "summary": "text", "orphan text"}`)
	require.True(t, ok)
	assert.Equal(t, "value", parsed["key"])
	assert.Equal(t, "text", parsed["summary"])
	_, hasOrphan := parsed["orphan text"]
	assert.False(t, hasOrphan)
}

func TestParseJSONClosesMissingBrace(t *testing.T) {
	parsed, ok := ParseJSON(`{"observation":"red","detail":{"coating":"yellow"`)
	require.True(t, ok)
	assert.Equal(t, "red", parsed["observation"])
}

func TestParseJSONTruncatesTrailingGarbage(t *testing.T) {
	parsed, ok := ParseJSON(`{"observation":"red"} and some commentary the model added`)
	require.True(t, ok)
	assert.Equal(t, "red", parsed["observation"])
}

// Stray closers after the object must not defeat the truncation repair.
func TestParseJSONTruncatesGarbageContainingBraces(t *testing.T) {
	for _, raw := range []string{
		`{"observation":"red"}}`,
		`{"observation":"red"} }`,
		`{"observation":"red"} Hope this helps! }`,
		`{"observation":"red"}]`,
	} {
		parsed, ok := ParseJSON(raw)
		require.True(t, ok, "input: %s", raw)
		assert.Equal(t, "red", parsed["observation"], "input: %s", raw)
	}
}

func TestParseJSONStripsCodeFences(t *testing.T) {
	parsed, ok := ParseJSON("```json\n{\"observation\":\"pale\"}\n```")
	require.True(t, ok)
	assert.Equal(t, "pale", parsed["observation"])
}

func TestParseJSONGivesUpOnGarbage(t *testing.T) {
	_, ok := ParseJSON("totally not json")
	assert.False(t, ok)
}

func TestStripFencesPlainTextUntouched(t *testing.T) {
	assert.Equal(t, "hola", StripFences("hola"))
}
