package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"alfredoptarigan/job-matcher/internal/models"
)

// Sinks receive a run's observable state. Any of them may be nil. Calls are
// never concurrent with each other.
type Sinks struct {
	Progress func(models.Progress)
	Results  func([]models.EnrichedJobRecord)
	Error    func(string)
}

func (s Sinks) progress(p models.Progress) {
	if s.Progress != nil {
		s.Progress(p)
	}
}

func (s Sinks) results(r []models.EnrichedJobRecord) {
	if s.Results != nil {
		s.Results(r)
	}
}

func (s Sinks) error(msg string) {
	if s.Error != nil {
		s.Error(msg)
	}
}

// RunState is owned by a single RunBatch call. Results are kept sorted by
// overall score, highest first.
type RunState struct {
	Status     models.RunStatus
	Total      int
	Results    []models.EnrichedJobRecord
	Failures   []models.Failure
	Progress   models.Progress
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Severity reports how the aggregate message should be presented.
func (s *RunState) Severity() models.ErrorSeverity {
	return errorSeverity(len(s.Results), len(s.Failures), s.Message)
}

// errorSeverity is blocking when nothing succeeded and advisory when some
// jobs did.
func errorSeverity(results, failures int, msg string) models.ErrorSeverity {
	switch {
	case failures == 0 && msg == "":
		return models.SeverityNone
	case results == 0:
		return models.SeverityBlocking
	default:
		return models.SeverityAdvisory
	}
}

// SnapshotResults returns a deep copy of the current results.
func (s *RunState) SnapshotResults() []models.EnrichedJobRecord {
	out := make([]models.EnrichedJobRecord, len(s.Results))
	for i, r := range s.Results {
		out[i] = r.Clone()
	}
	return out
}

func (s *RunState) insert(rec models.EnrichedJobRecord) {
	score := rec.MatchResult.OverallScore
	// equal scores land after the existing ones
	i := sort.Search(len(s.Results), func(i int) bool {
		return s.Results[i].MatchResult.OverallScore < score
	})
	s.Results = append(s.Results, models.EnrichedJobRecord{})
	copy(s.Results[i+1:], s.Results[i:])
	s.Results[i] = rec
}

type Orchestrator struct {
	analyzer    Analyzer
	concurrency int
}

// NewOrchestrator returns an orchestrator that analyzes at most concurrency
// jobs at once. Values below 2 run strictly one job at a time.
func NewOrchestrator(analyzer Analyzer, concurrency int) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ValidateBatchInput rejects a run that could not analyze anything.
func ValidateBatchInput(candidate string, jobs []models.JobRecord) error {
	if strings.TrimSpace(candidate) == "" {
		return newValidationError("candidate text is required")
	}
	if len(jobs) == 0 {
		return newValidationError("at least one job is required")
	}
	for i, job := range jobs {
		if _, ok := job[models.MatchResultField]; ok {
			return newValidationError("job %d uses reserved field %q", i+1, models.MatchResultField)
		}
	}
	return nil
}

// AggregateMessage summarizes per-job failures into one advisory line. It
// returns "" when there are none.
func AggregateMessage(failures []models.Failure) string {
	if len(failures) == 0 {
		return ""
	}
	details := make([]string, len(failures))
	for i, f := range failures {
		details[i] = f.String()
	}
	return fmt.Sprintf("%d job(s) failed to analyze; showing successful results only. Details: %s",
		len(failures), strings.Join(details, ", "))
}

// RunBatch analyzes every job against candidate and reports through sinks.
// Per-job failures never abort the batch and are not returned; only invalid
// input or cancellation produce an error. On cancellation the partial state
// is returned together with ctx.Err().
func (o *Orchestrator) RunBatch(ctx context.Context, candidate string, jobs []models.JobRecord, sinks Sinks) (*RunState, error) {
	if err := ValidateBatchInput(candidate, jobs); err != nil {
		return nil, err
	}

	state := &RunState{
		Status:    models.RunStatusRunning,
		Total:     len(jobs),
		Results:   []models.EnrichedJobRecord{},
		Failures:  []models.Failure{},
		StartedAt: time.Now(),
	}

	sinks.error("")
	sinks.progress(models.Progress{})

	if o.concurrency > 1 {
		o.runPool(ctx, candidate, jobs, state, sinks)
	} else {
		o.runSequential(ctx, candidate, jobs, state, sinks)
	}

	if msg := AggregateMessage(state.Failures); msg != "" {
		state.Message = msg
		sinks.error(msg)
	}

	state.Progress = models.Progress{}
	sinks.progress(state.Progress)
	state.FinishedAt = time.Now()

	if err := ctx.Err(); err != nil {
		state.Status = models.RunStatusCancelled
		log.Printf("🛑 Run cancelled after %d of %d jobs\n", len(state.Results)+len(state.Failures), state.Total)
		return state, err
	}

	if len(state.Failures) > 0 {
		state.Status = models.RunStatusCompletedWithWarnings
	} else {
		state.Status = models.RunStatusCompleted
	}
	return state, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, candidate string, jobs []models.JobRecord, state *RunState, sinks Sinks) {
	for i, job := range jobs {
		if ctx.Err() != nil {
			return
		}

		state.Progress = models.Progress{Current: i + 1, Total: len(jobs)}
		sinks.progress(state.Progress)

		result, err := o.analyze(ctx, candidate, job)
		if err != nil {
			state.Failures = append(state.Failures, newFailure(i, job, err))
			continue
		}

		state.insert(models.EnrichedJobRecord{Index: i, Job: job.Clone(), MatchResult: result.Clone()})
		sinks.results(state.SnapshotResults())
	}
}

// runPool dispatches jobs in input order to at most o.concurrency workers.
// Sink calls and state changes happen under mu.
func (o *Orchestrator) runPool(ctx context.Context, candidate string, jobs []models.JobRecord, state *RunState, sinks Sinks) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(o.concurrency)

	for i, job := range jobs {
		if ctx.Err() != nil {
			break
		}

		mu.Lock()
		state.Progress = models.Progress{Current: i + 1, Total: len(jobs)}
		sinks.progress(state.Progress)
		mu.Unlock()

		g.Go(func() error {
			result, err := o.analyze(ctx, candidate, job)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				state.Failures = append(state.Failures, newFailure(i, job, err))
				return nil
			}
			state.insert(models.EnrichedJobRecord{Index: i, Job: job.Clone(), MatchResult: result.Clone()})
			sinks.results(state.SnapshotResults())
			return nil
		})
	}

	_ = g.Wait()

	sort.Slice(state.Failures, func(a, b int) bool {
		return state.Failures[a].Index < state.Failures[b].Index
	})
}

// analyze never returns a nil result without an error.
func (o *Orchestrator) analyze(ctx context.Context, candidate string, job models.JobRecord) (*models.MatchResult, error) {
	result, err := o.analyzer.Analyze(ctx, candidate, job)
	if err == nil && result == nil {
		return nil, newMalformedError("analyzer returned no result", nil)
	}
	return result, err
}

func newFailure(index int, job models.JobRecord, err error) models.Failure {
	f := models.Failure{
		Index:      index,
		Identifier: job.Label(index),
		Kind:       string(KindOf(err)),
		Message:    err.Error(),
	}
	var me *MatchError
	if errors.As(err, &me) && me.Message != "" {
		f.Message = me.Message
	}
	log.Printf("⚠️ Job %d (%s) failed: [%s] %s\n", index+1, f.Identifier, f.Kind, f.Message)
	return f
}
