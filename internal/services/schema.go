package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"google.golang.org/genai"

	"alfredoptarigan/job-matcher/internal/models"
)

// matchResultJSONSchema is the shape every analyzer response must satisfy
// before it becomes a MatchResult.
const matchResultJSONSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["overallScore", "scoreBreakdown", "matchingKeywords", "pros", "cons", "summary"],
  "properties": {
    "overallScore": {"$ref": "#/definitions/score"},
    "scoreBreakdown": {
      "type": "object",
      "required": ["experienceAndSkills", "cultureFit", "conditions", "keywords"],
      "properties": {
        "experienceAndSkills": {"$ref": "#/definitions/score"},
        "cultureFit": {"$ref": "#/definitions/score"},
        "conditions": {"$ref": "#/definitions/score"},
        "keywords": {"$ref": "#/definitions/score"}
      }
    },
    "matchingKeywords": {"$ref": "#/definitions/strings"},
    "pros": {"$ref": "#/definitions/strings"},
    "cons": {"$ref": "#/definitions/strings"},
    "summary": {"type": "string"}
  },
  "definitions": {
    "score": {"type": "number", "minimum": 0, "maximum": 100},
    "strings": {"type": "array", "items": {"type": "string"}}
  }
}`

var matchResultSchemaLoader = gojsonschema.NewStringLoader(matchResultJSONSchema)

// ValidateMatchResult checks raw JSON against the MatchResult schema and
// decodes it. Every failure is a malformed-response error.
func ValidateMatchResult(raw string) (*models.MatchResult, error) {
	result, err := gojsonschema.Validate(matchResultSchemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, newMalformedError("response is not valid JSON", err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			problems = append(problems, fmt.Sprintf("%s: %s", field, desc.Description()))
		}
		return nil, newMalformedError("response does not match the expected shape: "+strings.Join(problems, "; "), nil)
	}

	var mr models.MatchResult
	if err := json.Unmarshal([]byte(raw), &mr); err != nil {
		return nil, newMalformedError("failed to decode match result", err)
	}
	return &mr, nil
}

// ExtractJSONObject returns the text between the first '{' and the last '}'.
// Models sometimes wrap JSON in prose or code fences.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// matchResultGenaiSchema mirrors matchResultJSONSchema for Gemini's
// structured output.
func matchResultGenaiSchema() *genai.Schema {
	score := func(desc string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeNumber,
			Description: desc,
			Minimum:     genai.Ptr(0.0),
			Maximum:     genai.Ptr(100.0),
		}
	}
	stringList := func(desc string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: desc,
		}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"overallScore": score("Overall match score (0-100)"),
			"scoreBreakdown": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"experienceAndSkills": score("Work experience and skill fit (0-100)"),
					"cultureFit":          score("Culture and orientation fit (0-100)"),
					"conditions":          score("Salary, location and other conditions (0-100)"),
					"keywords":            score("Keyword match (0-100)"),
				},
				Required: []string{"experienceAndSkills", "cultureFit", "conditions", "keywords"},
			},
			"matchingKeywords": stringList("Keywords that contributed to the match"),
			"pros":             stringList("Matching points (2-3 items)"),
			"cons":             stringList("Concerns about the match (1-2 items)"),
			"summary": {
				Type:        genai.TypeString,
				Description: "Catchy one-line summary of the match",
			},
		},
		Required: []string{"overallScore", "scoreBreakdown", "matchingKeywords", "pros", "cons", "summary"},
	}
}
