package models

import (
	"fmt"
	"strings"
)

// JobRecord is one job listing keyed by CSV header. Columns the matcher does
// not know about are kept as-is.
type JobRecord map[string]string

// Header aliases used to pull identifying fields out of a JobRecord.
// Lookups are case-insensitive and the first non-empty alias wins.
var (
	PositionFields = []string{"position", "ポジション", "title", "job title", "job_title", "role", "職種"}
	CompanyFields  = []string{"company", "企業名", "company name", "company_name", "employer"}
	IDFields       = []string{"JOB ID", "job id", "job_id", "id", "企業 ID"}
)

// Get returns the first non-empty value stored under any of the given keys.
// An exact key wins over a case-insensitive one; among case-insensitive
// matches the lowest key in byte order wins.
func (j JobRecord) Get(keys ...string) string {
	for _, key := range keys {
		if v, ok := j[key]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}

		var best, value string
		for k, v := range j {
			if !strings.EqualFold(strings.TrimSpace(k), key) || strings.TrimSpace(v) == "" {
				continue
			}
			if best == "" || k < best {
				best, value = k, v
			}
		}
		if best != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func (j JobRecord) Position() string {
	return j.Get(PositionFields...)
}

func (j JobRecord) Company() string {
	return j.Get(CompanyFields...)
}

// Label is the human-readable name used in failure notes:
// position, then company, then "job {index+1}".
func (j JobRecord) Label(index int) string {
	if p := j.Position(); p != "" {
		return p
	}
	if c := j.Company(); c != "" {
		return c
	}
	return fmt.Sprintf("job %d", index+1)
}

// Key identifies a row for export and archiving. It is not guaranteed to be
// unique across a CSV.
func (j JobRecord) Key(index int) string {
	if id := j.Get(IDFields...); id != "" {
		return id
	}

	company, position := j.Company(), j.Position()
	switch {
	case company != "" && position != "":
		return company + " / " + position
	case company != "":
		return company
	case position != "":
		return position
	}
	return fmt.Sprintf("job-%d", index+1)
}

// Clone returns a copy that can be handed to consumers without sharing the map.
func (j JobRecord) Clone() JobRecord {
	if j == nil {
		return nil
	}
	out := make(JobRecord, len(j))
	for k, v := range j {
		out[k] = v
	}
	return out
}
