package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobRecord_Get(t *testing.T) {
	job := JobRecord{
		"Title":    "  Staff Engineer ",
		"company":  "",
		"Employer": "Initech",
	}

	assert.Equal(t, "Staff Engineer", job.Get("title"))
	assert.Equal(t, "Initech", job.Company())
	assert.Equal(t, "", job.Get("missing"))
}

func TestJobRecord_LabelAndKey(t *testing.T) {
	tests := []struct {
		name      string
		job       JobRecord
		wantLabel string
		wantKey   string
	}{
		{
			name:      "all fields",
			job:       JobRecord{"JOB ID": "J-7", "企業名": "Acme", "ポジション": "SRE"},
			wantLabel: "SRE",
			wantKey:   "J-7",
		},
		{
			name:      "company and position",
			job:       JobRecord{"company": "Acme", "position": "SRE"},
			wantLabel: "SRE",
			wantKey:   "Acme / SRE",
		},
		{
			name:      "company only",
			job:       JobRecord{"company": "Acme"},
			wantLabel: "Acme",
			wantKey:   "Acme",
		},
		{
			name:      "position only",
			job:       JobRecord{"job title": "Designer"},
			wantLabel: "Designer",
			wantKey:   "Designer",
		},
		{
			name:      "nothing identifying",
			job:       JobRecord{"salary": "800"},
			wantLabel: "job 3",
			wantKey:   "job-3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantLabel, tt.job.Label(2))
			assert.Equal(t, tt.wantKey, tt.job.Key(2))
		})
	}
}

func TestJobRecord_Clone(t *testing.T) {
	job := JobRecord{"position": "SRE"}
	clone := job.Clone()
	clone["position"] = "changed"

	assert.Equal(t, "SRE", job["position"])
	assert.Nil(t, JobRecord(nil).Clone())
}

func TestJobRecord_GetCaseCollisionIsStable(t *testing.T) {
	job := JobRecord{"Company": "Acme", "COMPANY": "Initech", "company ": "Globex"}

	for i := 0; i < 20; i++ {
		assert.Equal(t, "Initech", job.Get("company"))
	}

	job["company"] = "Exact"
	assert.Equal(t, "Exact", job.Get("company"))
}
