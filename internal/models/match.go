package models

import (
	"encoding/json"
	"fmt"
)

// ScoreBreakdown holds the four weighted sub-scores, each in [0,100].
type ScoreBreakdown struct {
	ExperienceAndSkills float64 `json:"experienceAndSkills"`
	CultureFit          float64 `json:"cultureFit"`
	Conditions          float64 `json:"conditions"`
	Keywords            float64 `json:"keywords"`
}

// MatchResult is the scored outcome of one candidate/job analysis.
type MatchResult struct {
	OverallScore     float64        `json:"overallScore"`
	ScoreBreakdown   ScoreBreakdown `json:"scoreBreakdown"`
	MatchingKeywords []string       `json:"matchingKeywords"`
	Pros             []string       `json:"pros"`
	Cons             []string       `json:"cons"`
	Summary          string         `json:"summary"`
}

// Clone deep-copies the list fields.
func (m MatchResult) Clone() MatchResult {
	m.MatchingKeywords = append([]string(nil), m.MatchingKeywords...)
	m.Pros = append([]string(nil), m.Pros...)
	m.Cons = append([]string(nil), m.Cons...)
	return m
}

// EnrichedJobRecord pairs a job with its successful MatchResult.
type EnrichedJobRecord struct {
	Index       int         `json:"-"`
	Job         JobRecord   `json:"-"`
	MatchResult MatchResult `json:"-"`
}

// MatchResultField is the key the match result is flattened under. Job
// records must not use it as a column name.
const MatchResultField = "matchResult"

// MarshalJSON flattens the job fields next to a "matchResult" object so the
// browser sees the same shape as the uploaded CSV row.
func (e EnrichedJobRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Job)+1)
	for k, v := range e.Job {
		out[k] = v
	}
	out[MatchResultField] = e.MatchResult
	return json.Marshal(out)
}

func (e *EnrichedJobRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	mr, ok := raw[MatchResultField]
	if !ok {
		return fmt.Errorf("enriched job record is missing %q", MatchResultField)
	}
	if err := json.Unmarshal(mr, &e.MatchResult); err != nil {
		return fmt.Errorf("failed to decode %s: %w", MatchResultField, err)
	}
	delete(raw, MatchResultField)

	e.Job = make(JobRecord, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			// non-string cells are kept in their JSON form
			s = string(v)
		}
		e.Job[k] = s
	}
	return nil
}

// Clone returns a copy that shares no maps or slices with e.
func (e EnrichedJobRecord) Clone() EnrichedJobRecord {
	return EnrichedJobRecord{
		Index:       e.Index,
		Job:         e.Job.Clone(),
		MatchResult: e.MatchResult.Clone(),
	}
}
