package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusIdle                  RunStatus = "idle"
	RunStatusQueued                RunStatus = "queued"
	RunStatusRunning               RunStatus = "running"
	RunStatusCompleted             RunStatus = "completed"
	RunStatusCompletedWithWarnings RunStatus = "completed_with_warnings"
	RunStatusCancelled             RunStatus = "cancelled"
	RunStatusFailed                RunStatus = "failed"
)

// Finished reports whether the run has reached a terminal status.
func (s RunStatus) Finished() bool {
	switch s {
	case RunStatusCompleted, RunStatusCompletedWithWarnings, RunStatusCancelled, RunStatusFailed:
		return true
	}
	return false
}

// ErrorSeverity tells the UI how to present a run's aggregate message.
type ErrorSeverity string

const (
	SeverityNone     ErrorSeverity = ""
	SeverityAdvisory ErrorSeverity = "advisory"
	SeverityBlocking ErrorSeverity = "blocking"
)

// Progress marks the job currently being analyzed. The zero value means no
// run is in progress.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

func (p Progress) IsZero() bool {
	return p.Current == 0 && p.Total == 0
}

func (p Progress) String() string {
	if p.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d of %d", p.Current, p.Total)
}

// Failure records one job that could not be analyzed.
type Failure struct {
	Index      int    `json:"index"`
	Identifier string `json:"identifier"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

func (f Failure) String() string {
	return fmt.Sprintf("%s (%s)", f.Identifier, f.Message)
}

// RunSnapshot is the read-only view of a run served to the browser.
type RunSnapshot struct {
	ID            string              `json:"id"`
	Status        RunStatus           `json:"status"`
	Progress      Progress            `json:"progress"`
	ProgressText  string              `json:"progressText"`
	Total         int                 `json:"total"`
	Results       []EnrichedJobRecord `json:"results"`
	Failures      []Failure           `json:"failures"`
	Error         string              `json:"error,omitempty"`
	ErrorSeverity ErrorSeverity       `json:"errorSeverity,omitempty"`
	ExportURL     string              `json:"exportUrl,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	FinishedAt    *time.Time          `json:"finishedAt,omitempty"`
}

// MatchRun is the archived record of a finished run.
type MatchRun struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Status         RunStatus `gorm:"type:text;not null" json:"status"`
	CandidateChars int       `gorm:"not null;default:0" json:"candidate_chars"`
	TotalJobs      int       `gorm:"not null;default:0" json:"total_jobs"`
	SucceededJobs  int       `gorm:"not null;default:0" json:"succeeded_jobs"`
	FailedJobs     int       `gorm:"not null;default:0" json:"failed_jobs"`
	Results        string    `gorm:"type:jsonb" json:"results"`
	Failures       string    `gorm:"type:jsonb" json:"failures"`
	ErrorMessage   *string   `gorm:"type:text" json:"error_message,omitempty"`
	ExportLocation string    `gorm:"type:text" json:"export_location,omitempty"`
	StartedAt      time.Time `gorm:"type:timestamp" json:"started_at"`
	FinishedAt     time.Time `gorm:"type:timestamp" json:"finished_at"`
	CreatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (MatchRun) TableName() string {
	return "match_runs"
}
