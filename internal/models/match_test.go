package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichedJobRecord_JSONShape(t *testing.T) {
	rec := EnrichedJobRecord{
		Index: 3,
		Job:   JobRecord{"企業名": "Acme", "position": "SRE"},
		MatchResult: MatchResult{
			OverallScore:     77,
			ScoreBreakdown:   ScoreBreakdown{ExperienceAndSkills: 80, CultureFit: 70, Conditions: 75, Keywords: 90},
			MatchingKeywords: []string{"Go"},
			Pros:             []string{"p"},
			Cons:             []string{"c"},
			Summary:          "s",
		},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "Acme", flat["企業名"])
	assert.Equal(t, "SRE", flat["position"])
	mr, ok := flat["matchResult"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 77.0, mr["overallScore"])
	assert.NotContains(t, flat, "Index")

	var back EnrichedJobRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec.Job, back.Job)
	assert.Equal(t, rec.MatchResult, back.MatchResult)
}

func TestEnrichedJobRecord_UnmarshalRequiresMatchResult(t *testing.T) {
	var rec EnrichedJobRecord
	assert.Error(t, json.Unmarshal([]byte(`{"position": "SRE"}`), &rec))

	require.NoError(t, json.Unmarshal([]byte(`{"count": 3, "matchResult": {"overallScore": 1}}`), &rec))
	assert.Equal(t, "3", rec.Job["count"])
}

func TestEnrichedJobRecord_Clone(t *testing.T) {
	rec := EnrichedJobRecord{
		Job:         JobRecord{"position": "SRE"},
		MatchResult: MatchResult{Pros: []string{"a"}},
	}
	clone := rec.Clone()
	clone.Job["position"] = "x"
	clone.MatchResult.Pros[0] = "x"

	assert.Equal(t, "SRE", rec.Job["position"])
	assert.Equal(t, "a", rec.MatchResult.Pros[0])
}

func TestRunStatusAndProgress(t *testing.T) {
	assert.False(t, RunStatusQueued.Finished())
	assert.False(t, RunStatusRunning.Finished())
	assert.True(t, RunStatusCompletedWithWarnings.Finished())
	assert.True(t, RunStatusCancelled.Finished())

	assert.Equal(t, "", Progress{}.String())
	assert.Equal(t, "2 of 5", Progress{Current: 2, Total: 5}.String())
	assert.Equal(t, "job 2 (timed out)", Failure{Identifier: "job 2", Message: "timed out"}.String())
}
