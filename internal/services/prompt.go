package services

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"alfredoptarigan/job-matcher/internal/models"
)

//go:embed prompts/*.yaml
var promptFiles embed.FS

const matchPromptFile = "prompts/match.yaml"

type PromptTemplate struct {
	System    string      `yaml:"system"`
	Task      string      `yaml:"task"`
	Missing   string      `yaml:"missing"`
	Criteria  []Criterion `yaml:"criteria"`
	JobFields []JobField  `yaml:"job_fields"`
}

type Criterion struct {
	Key    string `yaml:"key"`
	Label  string `yaml:"label"`
	Weight int    `yaml:"weight"`
}

type JobField struct {
	Label string      `yaml:"label"`
	Keys  []string    `yaml:"keys"`
	Range *RangeField `yaml:"range"`
}

type RangeField struct {
	Min    []string `yaml:"min"`
	Max    []string `yaml:"max"`
	Format string   `yaml:"format"`
}

// LoadPromptTemplate parses a prompt template and checks the criteria
// weights add up to 100.
func LoadPromptTemplate(data []byte) (*PromptTemplate, error) {
	var tpl PromptTemplate
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	if strings.TrimSpace(tpl.Task) == "" {
		return nil, fmt.Errorf("prompt template has no task")
	}
	if tpl.Missing == "" {
		tpl.Missing = "N/A"
	}

	total := 0
	for _, c := range tpl.Criteria {
		total += c.Weight
	}
	if total != 100 {
		return nil, fmt.Errorf("prompt criteria weights sum to %d, want 100", total)
	}

	return &tpl, nil
}

type PromptBuilder struct {
	template *PromptTemplate
	cleaner  HTMLCleaner
}

// NewPromptBuilder loads the embedded match template.
func NewPromptBuilder(cleaner HTMLCleaner) (*PromptBuilder, error) {
	data, err := promptFiles.ReadFile(matchPromptFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", matchPromptFile, err)
	}

	tpl, err := LoadPromptTemplate(data)
	if err != nil {
		return nil, err
	}

	return &PromptBuilder{template: tpl, cleaner: cleaner}, nil
}

func (pb *PromptBuilder) SystemInstruction() string {
	return strings.TrimSpace(pb.template.System)
}

// BuildMatchPrompt renders the user prompt for one candidate/job pair.
// Fields missing from the job render as the template's placeholder.
func (pb *PromptBuilder) BuildMatchPrompt(candidate string, job models.JobRecord) string {
	return formatPrompt(pb.template.Task, map[string]string{
		"Criteria":  pb.criteriaBlock(),
		"Candidate": strings.TrimSpace(candidate),
		"Job":       pb.jobBlock(job),
	})
}

func (pb *PromptBuilder) criteriaBlock() string {
	var b strings.Builder
	for i, c := range pb.template.Criteria {
		fmt.Fprintf(&b, "%c. %s (weight: %d%%)\n", 'A'+i, c.Label, c.Weight)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (pb *PromptBuilder) jobBlock(job models.JobRecord) string {
	id := job.Get(models.IDFields...)
	if id == "" {
		id = "unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- Job Details (ID: %s) ---\n", id)
	for _, field := range pb.template.JobFields {
		fmt.Fprintf(&b, "- %s: %s\n", field.Label, pb.fieldValue(job, field))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (pb *PromptBuilder) fieldValue(job models.JobRecord, field JobField) string {
	if field.Range != nil {
		lo, hi := pb.clean(job.Get(field.Range.Min...)), pb.clean(job.Get(field.Range.Max...))
		if lo == "" && hi == "" {
			return pb.template.Missing
		}
		return formatPrompt(field.Range.Format, map[string]string{
			"Min": pb.orMissing(lo),
			"Max": pb.orMissing(hi),
		})
	}
	return pb.orMissing(pb.clean(job.Get(field.Keys...)))
}

func (pb *PromptBuilder) clean(v string) string {
	if pb.cleaner == nil {
		return v
	}
	return pb.cleaner.Clean(v)
}

func (pb *PromptBuilder) orMissing(v string) string {
	if strings.TrimSpace(v) == "" {
		return pb.template.Missing
	}
	return v
}

// formatPrompt replaces {{.Key}} placeholders with values from data in a
// single pass, so values are never re-expanded.
func formatPrompt(template string, data map[string]string) string {
	pairs := make([]string, 0, len(data)*2)
	for key, value := range data {
		pairs = append(pairs, "{{."+key+"}}", value)
	}
	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(template))
}
