package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"alfredoptarigan/job-matcher/internal/models"
	"alfredoptarigan/job-matcher/internal/repositories"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrRunFinished = errors.New("run already finished")
	ErrQueueFull   = errors.New("run queue is full")
	ErrNoResults   = errors.New("run has no results to export")
)

// Worker owns the live runs: it queues them, executes them with the
// orchestrator, and archives them once they finish.
type Worker interface {
	Start(ctx context.Context)
	Stop()
	CreateRun(candidate string, jobs []models.JobRecord) (models.RunSnapshot, error)
	EnqueueJob(runID uuid.UUID) error
	Snapshot(runID uuid.UUID) (models.RunSnapshot, error)
	Cancel(runID uuid.UUID) error
	Export(ctx context.Context, runID uuid.UUID) ([]byte, error)
	Events() *EventHub
}

type WorkerOptions struct {
	Concurrency int
	QueueSize   int
	RunTTL      time.Duration
	SweepEvery  time.Duration
}

type worker struct {
	orchestrator *Orchestrator
	runRepo      repositories.RunRepository
	exportStore  ExportStore
	hub          *EventHub
	opts         WorkerOptions

	mu   sync.RWMutex
	runs map[uuid.UUID]*liveRun

	jobQueue chan uuid.UUID
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
}

func NewWorker(
	orchestrator *Orchestrator,
	runRepo repositories.RunRepository,
	exportStore ExportStore,
	hub *EventHub,
	opts WorkerOptions,
) Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 100
	}
	if opts.RunTTL <= 0 {
		opts.RunTTL = time.Hour
	}
	if opts.SweepEvery <= 0 {
		opts.SweepEvery = time.Minute
	}
	if hub == nil {
		hub = NewEventHub(nil)
	}

	return &worker{
		orchestrator: orchestrator,
		runRepo:      runRepo,
		exportStore:  exportStore,
		hub:          hub,
		opts:         opts,
		runs:         make(map[uuid.UUID]*liveRun),
		jobQueue:     make(chan uuid.UUID, opts.QueueSize),
		stopChan:     make(chan struct{}),
	}
}

// Start implements Worker.
func (w *worker) Start(ctx context.Context) {
	log.Printf("🚀 Starting worker with %d concurrent workers\n", w.opts.Concurrency)

	ctx, w.cancel = context.WithCancel(ctx)

	for i := 0; i < w.opts.Concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(ctx, i+1)
	}

	w.wg.Add(1)
	go w.sweepFinishedRuns()

	log.Println("✅ Worker started successfully")
}

// Stop implements Worker. In-flight and queued runs are cancelled and still
// archived.
func (w *worker) Stop() {
	w.stopOnce.Do(func() {
		log.Println("🛑 Stopping worker...")
		close(w.stopChan)
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()
		w.drainQueue()
		log.Println("✅ Worker stopped")
	})
}

// drainQueue cancels and archives runs no worker picked up before Stop.
func (w *worker) drainQueue() {
	for {
		select {
		case runID := <-w.jobQueue:
			run := w.lookup(runID)
			if run == nil {
				continue
			}
			queued, err := run.requestCancel()
			if err != nil && !errors.Is(err, ErrRunFinished) {
				log.Printf("⚠️  Failed to cancel queued run %s: %v\n", runID, err)
				continue
			}
			if queued {
				w.publishComplete(run)
			}
			if err := w.archive(context.Background(), run); err != nil {
				log.Printf("❌ Failed to archive queued run %s: %v\n", runID, err)
			}
		default:
			return
		}
	}
}

func (w *worker) Events() *EventHub {
	return w.hub
}

// CreateRun implements Worker.
func (w *worker) CreateRun(candidate string, jobs []models.JobRecord) (models.RunSnapshot, error) {
	if err := ValidateBatchInput(candidate, jobs); err != nil {
		return models.RunSnapshot{}, err
	}

	run := newLiveRun(candidate, jobs)

	w.mu.Lock()
	w.runs[run.id] = run
	w.mu.Unlock()

	if err := w.EnqueueJob(run.id); err != nil {
		w.mu.Lock()
		delete(w.runs, run.id)
		w.mu.Unlock()
		return models.RunSnapshot{}, err
	}

	return run.snapshot(), nil
}

// EnqueueJob implements Worker.
func (w *worker) EnqueueJob(runID uuid.UUID) error {
	select {
	case <-w.stopChan:
		log.Printf("⚠️  Worker stopped, cannot enqueue run %s\n", runID)
		return fmt.Errorf("worker stopped: %w", ErrQueueFull)
	default:
	}

	select {
	case w.jobQueue <- runID:
		log.Printf("📥 Run %s enqueued\n", runID)
		return nil
	default:
		log.Printf("⚠️  Queue full, cannot enqueue run %s\n", runID)
		return ErrQueueFull
	}
}

// Snapshot implements Worker. Runs no longer held in memory are served
// from the archive.
func (w *worker) Snapshot(runID uuid.UUID) (models.RunSnapshot, error) {
	if run := w.lookup(runID); run != nil {
		return run.snapshot(), nil
	}

	archived, err := w.runRepo.FindByID(runID)
	if err != nil {
		if errors.Is(err, repositories.ErrRunNotFound) {
			return models.RunSnapshot{}, ErrRunNotFound
		}
		return models.RunSnapshot{}, err
	}
	return snapshotFromArchive(archived)
}

// Cancel implements Worker.
func (w *worker) Cancel(runID uuid.UUID) error {
	run := w.lookup(runID)
	if run == nil {
		if _, err := w.runRepo.FindByID(runID); err == nil {
			return ErrRunFinished
		}
		return ErrRunNotFound
	}

	queued, err := run.requestCancel()
	if err != nil {
		return err
	}
	if queued {
		// the worker skips it when dequeued; report the terminal state now
		w.publishComplete(run)
	}
	log.Printf("🛑 Run %s cancellation requested\n", runID)
	return nil
}

// Export implements Worker.
func (w *worker) Export(ctx context.Context, runID uuid.UUID) ([]byte, error) {
	if run := w.lookup(runID); run != nil {
		snap := run.snapshot()
		if len(snap.Results) == 0 {
			return nil, ErrNoResults
		}
		return ExportCSV(snap.Results)
	}

	archived, err := w.runRepo.FindByID(runID)
	if err != nil {
		if errors.Is(err, repositories.ErrRunNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	if archived.ExportLocation == "" || w.exportStore == nil {
		return nil, ErrNoResults
	}

	rc, err := w.exportStore.Open(ctx, exportName(runID))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	if _, err := ParseExport(bytes.NewReader(buf.Bytes())); err != nil {
		return nil, fmt.Errorf("archived export for run %s is invalid: %w", runID, err)
	}
	return buf.Bytes(), nil
}

func (w *worker) lookup(runID uuid.UUID) *liveRun {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.runs[runID]
}

func (w *worker) processJobs(ctx context.Context, workerID int) {
	defer w.wg.Done()
	log.Printf("🚀 Worker %d started processing runs\n", workerID)

	for {
		select {
		case <-w.stopChan:
			log.Printf("👷 Worker #%d stopped\n", workerID)
			return
		case runID := <-w.jobQueue:
			log.Printf("👷 Worker #%d processing run %s\n", workerID, runID)
			if err := w.execute(ctx, runID); err != nil {
				log.Printf("❌ Worker #%d failed to process run %s: %v\n", workerID, runID, err)
			} else {
				log.Printf("✅ Worker #%d completed run %s\n", workerID, runID)
			}
		}
	}
}

func (w *worker) execute(ctx context.Context, runID uuid.UUID) error {
	run := w.lookup(runID)
	if run == nil {
		return ErrRunNotFound
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !run.begin(cancel) {
		// cancelled while queued
		return w.archive(ctx, run)
	}
	w.hub.Publish(RunEvent{RunID: run.id.String(), Type: EventStatus, Data: statusPayload(models.RunStatusRunning)})

	sinks := Sinks{
		Progress: func(p models.Progress) {
			run.setProgress(p)
			w.hub.Publish(RunEvent{RunID: run.id.String(), Type: EventProgress, Data: progressPayload(p)})
		},
		Results: func(results []models.EnrichedJobRecord) {
			run.setResults(results)
			w.hub.Publish(RunEvent{RunID: run.id.String(), Type: EventResults, Data: results})
		},
		Error: func(msg string) {
			run.setMessage(msg)
			if msg != "" {
				w.hub.Publish(RunEvent{RunID: run.id.String(), Type: EventWarning, Data: map[string]string{"message": msg}})
			}
		},
	}

	state, err := w.orchestrator.RunBatch(runCtx, run.candidate, run.jobs, sinks)
	if state == nil {
		run.fail(err)
		w.publishComplete(run)
		return errors.Join(err, w.archive(context.WithoutCancel(ctx), run))
	}

	run.finish(state)

	// the run context may already be cancelled; archiving must still happen
	archiveErr := w.archive(context.WithoutCancel(ctx), run)
	w.publishComplete(run)

	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Join(err, archiveErr)
	}
	return archiveErr
}

// archive writes the export and the run record. Both are write-only: later
// runs never read them.
func (w *worker) archive(ctx context.Context, run *liveRun) error {
	snap := run.snapshot()

	var exportLocation string
	if w.exportStore != nil && len(snap.Results) > 0 {
		data, err := ExportCSV(snap.Results)
		if err != nil {
			return err
		}
		exportLocation, err = w.exportStore.Save(ctx, exportName(run.id), data)
		if err != nil {
			log.Printf("⚠️  Failed to store export for run %s: %v\n", run.id, err)
		} else {
			run.setExportLocation(exportLocation)
		}
	}

	record, err := archiveRecord(run.id, len(run.candidate), snap, exportLocation)
	if err != nil {
		return err
	}
	if err := w.runRepo.Create(record); err != nil {
		return err
	}
	log.Printf("🗄️  Run %s archived (%s)\n", run.id, snap.Status)
	return nil
}

// publishComplete sends the terminal snapshot and returns how many live
// listeners it reached.
func (w *worker) publishComplete(run *liveRun) int {
	listeners := w.hub.Subscribers(run.id.String())
	if listeners == 0 {
		log.Printf("📭 Run %s finished with no live listeners\n", run.id)
	}
	w.hub.Publish(RunEvent{RunID: run.id.String(), Type: EventComplete, Data: run.snapshot()})
	return listeners
}

// sweepFinishedRuns drops finished runs from memory once they outlive
// RunTTL. They stay readable through the archive.
func (w *worker) sweepFinishedRuns() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.opts.SweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.sweep(time.Now())
		}
	}
}

func (w *worker) sweep(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	removed := 0
	for id, run := range w.runs {
		if run.expired(now, w.opts.RunTTL) {
			delete(w.runs, id)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("🧹 Released %d finished runs from memory\n", removed)
	}
	return removed
}

func exportName(runID uuid.UUID) string {
	return runID.String() + ".csv"
}

func progressPayload(p models.Progress) map[string]any {
	return map[string]any{
		"current": p.Current,
		"total":   p.Total,
		"text":    p.String(),
	}
}

func statusPayload(status models.RunStatus) map[string]string {
	return map[string]string{"status": string(status)}
}

func archiveRecord(id uuid.UUID, candidateChars int, snap models.RunSnapshot, exportLocation string) (*models.MatchRun, error) {
	results, err := json.Marshal(snap.Results)
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}
	failures, err := json.Marshal(snap.Failures)
	if err != nil {
		return nil, fmt.Errorf("failed to encode failures: %w", err)
	}

	finishedAt := time.Now()
	if snap.FinishedAt != nil {
		finishedAt = *snap.FinishedAt
	}

	record := &models.MatchRun{
		ID:             id,
		Status:         snap.Status,
		CandidateChars: candidateChars,
		TotalJobs:      snap.Total,
		SucceededJobs:  len(snap.Results),
		FailedJobs:     len(snap.Failures),
		Results:        string(results),
		Failures:       string(failures),
		ExportLocation: exportLocation,
		StartedAt:      snap.CreatedAt,
		FinishedAt:     finishedAt,
	}
	if snap.Error != "" {
		msg := snap.Error
		record.ErrorMessage = &msg
	}
	return record, nil
}

func snapshotFromArchive(run *models.MatchRun) (models.RunSnapshot, error) {
	snap := models.RunSnapshot{
		ID:        run.ID.String(),
		Status:    run.Status,
		Total:     run.TotalJobs,
		Results:   []models.EnrichedJobRecord{},
		Failures:  []models.Failure{},
		CreatedAt: run.StartedAt,
	}
	finished := run.FinishedAt
	snap.FinishedAt = &finished

	if run.Results != "" {
		if err := json.Unmarshal([]byte(run.Results), &snap.Results); err != nil {
			return models.RunSnapshot{}, fmt.Errorf("failed to decode archived results: %w", err)
		}
	}
	if run.Failures != "" {
		if err := json.Unmarshal([]byte(run.Failures), &snap.Failures); err != nil {
			return models.RunSnapshot{}, fmt.Errorf("failed to decode archived failures: %w", err)
		}
	}
	if run.ErrorMessage != nil {
		snap.Error = *run.ErrorMessage
		snap.ErrorSeverity = errorSeverity(len(snap.Results), len(snap.Failures), snap.Error)
	}
	return snap, nil
}
