package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMatchResult(t *testing.T) {
	mr, err := ValidateMatchResult(validMatchJSON)
	require.NoError(t, err)
	assert.Equal(t, 82.5, mr.OverallScore)
	assert.Equal(t, []string{"No Japanese"}, mr.Cons)
}

func TestValidateMatchResult_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantMsg string
	}{
		{name: "not JSON", raw: `{"overallScore": `},
		{name: "missing fields", raw: `{"overallScore": 50}`, wantMsg: "scoreBreakdown"},
		{
			name: "negative sub-score",
			raw: `{"overallScore": 50, "scoreBreakdown": {"experienceAndSkills": -1, "cultureFit": 1, "conditions": 1, "keywords": 1},
				"matchingKeywords": [], "pros": [], "cons": [], "summary": ""}`,
			wantMsg: "scoreBreakdown.experienceAndSkills",
		},
		{
			name: "list of numbers",
			raw: `{"overallScore": 50, "scoreBreakdown": {"experienceAndSkills": 1, "cultureFit": 1, "conditions": 1, "keywords": 1},
				"matchingKeywords": [1, 2], "pros": [], "cons": [], "summary": ""}`,
			wantMsg: "matchingKeywords",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateMatchResult(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedResponse))
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	got, ok := ExtractJSONObject("```json\n{\"a\": {\"b\": 1}}\n```")
	assert.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}}`, got)

	_, ok = ExtractJSONObject("no braces here")
	assert.False(t, ok)

	_, ok = ExtractJSONObject("} backwards {")
	assert.False(t, ok)
}

func TestMatchResultGenaiSchema_RequiresAllFields(t *testing.T) {
	schema := matchResultGenaiSchema()
	assert.ElementsMatch(t,
		[]string{"overallScore", "scoreBreakdown", "matchingKeywords", "pros", "cons", "summary"},
		schema.Required)
	assert.Len(t, schema.Properties["scoreBreakdown"].Required, 4)
}
