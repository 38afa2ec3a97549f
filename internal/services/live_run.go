package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"alfredoptarigan/job-matcher/internal/models"
)

// liveRun is the in-memory view of one run. The orchestrator's sinks write
// into it and HTTP readers take snapshots.
type liveRun struct {
	id        uuid.UUID
	candidate string
	jobs      []models.JobRecord

	mu             sync.RWMutex
	status         models.RunStatus
	progress       models.Progress
	results        []models.EnrichedJobRecord
	failures       []models.Failure
	message        string
	exportLocation string
	createdAt      time.Time
	finishedAt     *time.Time
	cancel         context.CancelFunc
	cancelled      bool
}

func newLiveRun(candidate string, jobs []models.JobRecord) *liveRun {
	owned := make([]models.JobRecord, len(jobs))
	for i, j := range jobs {
		owned[i] = j.Clone()
	}
	return &liveRun{
		id:        uuid.New(),
		candidate: candidate,
		jobs:      owned,
		status:    models.RunStatusQueued,
		results:   []models.EnrichedJobRecord{},
		failures:  []models.Failure{},
		createdAt: time.Now(),
	}
}

// begin moves a queued run to running. It returns false if the run was
// cancelled before a worker picked it up.
func (r *liveRun) begin(cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancelled {
		return false
	}
	r.status = models.RunStatusRunning
	r.cancel = cancel
	return true
}

// requestCancel reports whether the run was still queued.
func (r *liveRun) requestCancel() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.Finished() {
		return false, ErrRunFinished
	}
	if r.cancelled {
		return false, nil
	}
	r.cancelled = true

	if r.status == models.RunStatusQueued {
		now := time.Now()
		r.status = models.RunStatusCancelled
		r.finishedAt = &now
		return true, nil
	}
	if r.cancel != nil {
		r.cancel()
	}
	return false, nil
}

func (r *liveRun) setProgress(p models.Progress) {
	r.mu.Lock()
	r.progress = p
	r.mu.Unlock()
}

func (r *liveRun) setResults(results []models.EnrichedJobRecord) {
	r.mu.Lock()
	r.results = results
	r.mu.Unlock()
}

func (r *liveRun) setMessage(msg string) {
	r.mu.Lock()
	r.message = msg
	r.mu.Unlock()
}

func (r *liveRun) setExportLocation(loc string) {
	r.mu.Lock()
	r.exportLocation = loc
	r.mu.Unlock()
}

func (r *liveRun) finish(state *RunState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status = state.Status
	r.progress = models.Progress{}
	r.results = state.SnapshotResults()
	r.failures = append([]models.Failure(nil), state.Failures...)
	r.message = state.Message
	finished := state.FinishedAt
	r.finishedAt = &finished
}

func (r *liveRun) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.status = models.RunStatusFailed
	r.progress = models.Progress{}
	if err != nil {
		r.message = err.Error()
	}
	r.finishedAt = &now
}

func (r *liveRun) expired(now time.Time, ttl time.Duration) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.finishedAt != nil && now.Sub(*r.finishedAt) > ttl
}

func (r *liveRun) snapshot() models.RunSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]models.EnrichedJobRecord, len(r.results))
	for i, rec := range r.results {
		results[i] = rec.Clone()
	}

	snap := models.RunSnapshot{
		ID:            r.id.String(),
		Status:        r.status,
		Progress:      r.progress,
		ProgressText:  r.progress.String(),
		Total:         len(r.jobs),
		Results:       results,
		Failures:      append([]models.Failure{}, r.failures...),
		Error:         r.message,
		ErrorSeverity: errorSeverity(len(r.results), len(r.failures), r.message),
		CreatedAt:     r.createdAt,
	}
	if r.status == models.RunStatusFailed {
		snap.ErrorSeverity = models.SeverityBlocking
	}
	if r.exportLocation != "" || (r.status.Finished() && len(r.results) > 0) {
		snap.ExportURL = "/api/v1/runs/" + r.id.String() + "/export"
	}
	if r.finishedAt != nil {
		finished := *r.finishedAt
		snap.FinishedAt = &finished
	}
	return snap
}
