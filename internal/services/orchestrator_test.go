package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/job-matcher/internal/models"
)

// fakeAnalyzer answers from a per-position table keyed by the job's
// position. Unknown positions score 50.
type fakeAnalyzer struct {
	mu     sync.Mutex
	calls  int
	scores map[string]float64
	errs   map[string]error
	delay  time.Duration
	onCall func(job models.JobRecord)
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, candidate string, job models.JobRecord) (*models.MatchResult, error) {
	f.mu.Lock()
	f.calls++
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall(job)
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, classifyCallError(ctx, ctx.Err(), f.delay)
		}
	}

	pos := job.Position()
	if err, ok := f.errs[pos]; ok {
		return nil, err
	}
	score, ok := f.scores[pos]
	if !ok {
		score = 50
	}
	return &models.MatchResult{
		OverallScore:     score,
		ScoreBreakdown:   models.ScoreBreakdown{ExperienceAndSkills: score},
		MatchingKeywords: []string{"go"},
		Pros:             []string{"fit"},
		Cons:             []string{},
		Summary:          pos + " summary",
	}, nil
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func jobsWithPositions(positions ...string) []models.JobRecord {
	jobs := make([]models.JobRecord, len(positions))
	for i, p := range positions {
		jobs[i] = models.JobRecord{"position": p, "company": "Acme"}
	}
	return jobs
}

func overallScores(results []models.EnrichedJobRecord) []float64 {
	out := make([]float64, len(results))
	for i, r := range results {
		out[i] = r.MatchResult.OverallScore
	}
	return out
}

type sinkRecorder struct {
	mu       sync.Mutex
	progress []models.Progress
	results  [][]models.EnrichedJobRecord
	errors   []string
}

func (r *sinkRecorder) sinks() Sinks {
	return Sinks{
		Progress: func(p models.Progress) {
			r.mu.Lock()
			r.progress = append(r.progress, p)
			r.mu.Unlock()
		},
		Results: func(res []models.EnrichedJobRecord) {
			r.mu.Lock()
			r.results = append(r.results, res)
			r.mu.Unlock()
		},
		Error: func(msg string) {
			r.mu.Lock()
			r.errors = append(r.errors, msg)
			r.mu.Unlock()
		},
	}
}

func TestRunBatch_ResultsSortedByScore(t *testing.T) {
	analyzer := &fakeAnalyzer{scores: map[string]float64{"A": 40, "B": 90, "C": 70}}
	rec := &sinkRecorder{}

	state, err := NewOrchestrator(analyzer, 1).RunBatch(context.Background(), "Go engineer", jobsWithPositions("A", "B", "C"), rec.sinks())
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, state.Status)
	assert.Equal(t, []float64{90, 70, 40}, overallScores(state.Results))
	assert.Empty(t, state.Failures)
	assert.Empty(t, state.Message)
	assert.Equal(t, models.SeverityNone, state.Severity())

	// every published snapshot is sorted and grows by one
	require.Len(t, rec.results, 3)
	assert.Equal(t, []float64{40}, overallScores(rec.results[0]))
	assert.Equal(t, []float64{90, 40}, overallScores(rec.results[1]))
	assert.Equal(t, []float64{90, 70, 40}, overallScores(rec.results[2]))
}

func TestRunBatch_EqualScores(t *testing.T) {
	analyzer := &fakeAnalyzer{scores: map[string]float64{"A": 80, "B": 80, "C": 95}}

	state, err := NewOrchestrator(analyzer, 1).RunBatch(context.Background(), "cv", jobsWithPositions("A", "B", "C"), Sinks{})
	require.NoError(t, err)

	assert.Equal(t, []float64{95, 80, 80}, overallScores(state.Results))
	assert.ElementsMatch(t, []int{0, 1}, []int{state.Results[1].Index, state.Results[2].Index})
}

func TestRunBatch_PartialFailure(t *testing.T) {
	analyzer := &fakeAnalyzer{
		scores: map[string]float64{"Backend": 85, "Frontend": 60},
		errs: map[string]error{
			"SRE": &MatchError{Kind: KindService, Message: "gemini API error (503): overloaded", StatusCode: 503},
		},
	}
	rec := &sinkRecorder{}

	state, err := NewOrchestrator(analyzer, 1).RunBatch(context.Background(), "cv", jobsWithPositions("Backend", "SRE", "Frontend"), rec.sinks())
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompletedWithWarnings, state.Status)
	assert.Equal(t, []float64{85, 60}, overallScores(state.Results))

	require.Len(t, state.Failures, 1)
	f := state.Failures[0]
	assert.Equal(t, 1, f.Index)
	assert.Equal(t, "SRE", f.Identifier)
	assert.Equal(t, string(KindService), f.Kind)

	assert.Equal(t,
		"1 job(s) failed to analyze; showing successful results only. Details: SRE (gemini API error (503): overloaded)",
		state.Message)
	assert.Equal(t, models.SeverityAdvisory, state.Severity())

	// cleared at start, set once at the end
	require.Len(t, rec.errors, 2)
	assert.Equal(t, "", rec.errors[0])
	assert.Equal(t, state.Message, rec.errors[1])
}

func TestRunBatch_AllFailedIsBlocking(t *testing.T) {
	timeout := &MatchError{Kind: KindTimeout, Message: "analysis timed out after 30s"}
	analyzer := &fakeAnalyzer{errs: map[string]error{"A": timeout, "B": timeout}}

	state, err := NewOrchestrator(analyzer, 1).RunBatch(context.Background(), "cv", jobsWithPositions("A", "B"), Sinks{})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompletedWithWarnings, state.Status)
	assert.Empty(t, state.Results)
	assert.Len(t, state.Failures, 2)
	assert.Equal(t, models.SeverityBlocking, state.Severity())
	assert.Contains(t, state.Message, "2 job(s) failed")
	assert.Contains(t, state.Message, "A (analysis timed out after 30s), B (analysis timed out after 30s)")
}

func TestRunBatch_InvalidInputMakesNoCalls(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		jobs      []models.JobRecord
	}{
		{name: "blank candidate", candidate: "  \n", jobs: jobsWithPositions("A")},
		{name: "no jobs", candidate: "cv", jobs: nil},
		{
			name:      "reserved column",
			candidate: "cv",
			jobs:      []models.JobRecord{{"position": "A"}, {"position": "B", models.MatchResultField: "x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &fakeAnalyzer{}
			rec := &sinkRecorder{}

			state, err := NewOrchestrator(analyzer, 1).RunBatch(context.Background(), tt.candidate, tt.jobs, rec.sinks())
			require.Error(t, err)
			assert.Nil(t, state)
			assert.True(t, errors.Is(err, ErrValidation))
			assert.Equal(t, 0, analyzer.callCount())
			assert.Empty(t, rec.progress)
			assert.Empty(t, rec.errors)
		})
	}
}

func TestRunBatch_ProgressCountsUpThenClears(t *testing.T) {
	analyzer := &fakeAnalyzer{errs: map[string]error{"B": ErrTransport}}
	rec := &sinkRecorder{}

	_, err := NewOrchestrator(analyzer, 1).RunBatch(context.Background(), "cv", jobsWithPositions("A", "B", "C"), rec.sinks())
	require.NoError(t, err)

	assert.Equal(t, []models.Progress{
		{},
		{Current: 1, Total: 3},
		{Current: 2, Total: 3},
		{Current: 3, Total: 3},
		{},
	}, rec.progress)
}

func TestRunBatch_ProgressPublishedBeforeAnalysis(t *testing.T) {
	rec := &sinkRecorder{}
	var seen []models.Progress
	analyzer := &fakeAnalyzer{}
	analyzer.onCall = func(models.JobRecord) {
		rec.mu.Lock()
		seen = append(seen, rec.progress[len(rec.progress)-1])
		rec.mu.Unlock()
	}

	_, err := NewOrchestrator(analyzer, 1).RunBatch(context.Background(), "cv", jobsWithPositions("A", "B"), rec.sinks())
	require.NoError(t, err)

	assert.Equal(t, []models.Progress{{Current: 1, Total: 2}, {Current: 2, Total: 2}}, seen)
}

func TestRunBatch_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	analyzer := &fakeAnalyzer{}
	analyzer.onCall = func(job models.JobRecord) {
		if job.Position() == "B" {
			cancel()
		}
	}
	analyzer.delay = 10 * time.Millisecond

	state, err := NewOrchestrator(analyzer, 1).RunBatch(ctx, "cv", jobsWithPositions("A", "B", "C", "D"), Sinks{})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, state)

	assert.Equal(t, models.RunStatusCancelled, state.Status)
	assert.Equal(t, 2, analyzer.callCount())
	assert.Len(t, state.Results, 1)
	require.Len(t, state.Failures, 1)
	assert.Equal(t, "B", state.Failures[0].Identifier)
	assert.Equal(t, string(KindTransport), state.Failures[0].Kind)
	assert.True(t, state.Progress.IsZero())
}

func TestRunBatch_SnapshotsAreIndependent(t *testing.T) {
	analyzer := &fakeAnalyzer{scores: map[string]float64{"A": 10, "B": 20}}
	rec := &sinkRecorder{}

	state, err := NewOrchestrator(analyzer, 1).RunBatch(context.Background(), "cv", jobsWithPositions("A", "B"), rec.sinks())
	require.NoError(t, err)

	rec.results[0][0].Job["position"] = "mutated"
	rec.results[0][0].MatchResult.Pros[0] = "mutated"

	assert.Equal(t, "A", state.Results[1].Job["position"])
	assert.Equal(t, "fit", state.Results[1].MatchResult.Pros[0])
}

// peakAnalyzer records the highest number of concurrent Analyze calls.
type peakAnalyzer struct {
	Analyzer
	inFlight int32
	peak     int32
}

func (p *peakAnalyzer) Analyze(ctx context.Context, candidate string, job models.JobRecord) (*models.MatchResult, error) {
	n := atomic.AddInt32(&p.inFlight, 1)
	defer atomic.AddInt32(&p.inFlight, -1)
	for {
		cur := atomic.LoadInt32(&p.peak)
		if n <= cur || atomic.CompareAndSwapInt32(&p.peak, cur, n) {
			break
		}
	}
	return p.Analyzer.Analyze(ctx, candidate, job)
}

func TestRunBatch_PoolMatchesSequentialOutcome(t *testing.T) {
	analyzer := &peakAnalyzer{Analyzer: &fakeAnalyzer{
		scores: map[string]float64{"A": 10, "B": 95, "C": 30, "D": 70, "E": 55},
		errs:   map[string]error{"C": ErrMalformedResponse},
		delay:  5 * time.Millisecond,
	}}
	rec := &sinkRecorder{}

	state, err := NewOrchestrator(analyzer, 2).RunBatch(context.Background(), "cv", jobsWithPositions("A", "B", "C", "D", "E"), rec.sinks())
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompletedWithWarnings, state.Status)
	assert.Equal(t, []float64{95, 70, 55, 10}, overallScores(state.Results))
	require.Len(t, state.Failures, 1)
	assert.Equal(t, 2, state.Failures[0].Index)
	assert.Equal(t, string(KindMalformedResponse), state.Failures[0].Kind)
	assert.LessOrEqual(t, atomic.LoadInt32(&analyzer.peak), int32(2))
	assert.Len(t, rec.results, 4)
}

func TestAggregateMessage(t *testing.T) {
	assert.Equal(t, "", AggregateMessage(nil))

	msg := AggregateMessage([]models.Failure{
		{Identifier: "Backend", Message: "timed out"},
		{Identifier: "job 3", Message: "bad json"},
	})
	assert.Equal(t,
		"2 job(s) failed to analyze; showing successful results only. Details: Backend (timed out), job 3 (bad json)",
		msg)
}

func TestNewFailure_UsesLabelFallback(t *testing.T) {
	f := newFailure(4, models.JobRecord{"salary": "800"}, &MatchError{Kind: KindTimeout, Message: "slow"})
	assert.Equal(t, "job 5", f.Identifier)
	assert.Equal(t, "timeout", f.Kind)
	assert.Equal(t, "slow", f.Message)

	f = newFailure(0, models.JobRecord{"company": "Acme"}, errors.New("boom"))
	assert.Equal(t, "Acme", f.Identifier)
	assert.Equal(t, "transport", f.Kind)
	assert.Equal(t, "boom", f.Message)
}

// emptyAnalyzer returns no result and no error for the "Ghost" position.
type emptyAnalyzer struct {
	fakeAnalyzer
}

func (e *emptyAnalyzer) Analyze(ctx context.Context, candidate string, job models.JobRecord) (*models.MatchResult, error) {
	if job.Position() == "Ghost" {
		return nil, nil
	}
	return e.fakeAnalyzer.Analyze(ctx, candidate, job)
}

func TestRunBatch_NilResultIsMalformed(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		state, err := NewOrchestrator(&emptyAnalyzer{}, concurrency).
			RunBatch(context.Background(), "cv", jobsWithPositions("A", "Ghost", "B"), Sinks{})
		require.NoError(t, err)

		assert.Len(t, state.Results, 2)
		require.Len(t, state.Failures, 1)
		assert.Equal(t, "Ghost", state.Failures[0].Identifier)
		assert.Equal(t, string(KindMalformedResponse), state.Failures[0].Kind)
		assert.Equal(t, models.RunStatusCompletedWithWarnings, state.Status)
	}
}
