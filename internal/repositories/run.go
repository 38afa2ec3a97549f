package repositories

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/job-matcher/internal/models"
)

var ErrRunNotFound = errors.New("run not found")

type RunRepository interface {
	Create(run *models.MatchRun) error
	FindByID(id uuid.UUID) (*models.MatchRun, error)
	FindRecent(limit int) ([]models.MatchRun, error)
}

type runRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

// Create implements RunRepository.
func (r *runRepository) Create(run *models.MatchRun) error {
	if err := r.db.Create(run).Error; err != nil {
		return fmt.Errorf("failed to archive run: %w", err)
	}
	return nil
}

// FindByID implements RunRepository.
func (r *runRepository) FindByID(id uuid.UUID) (*models.MatchRun, error) {
	var run models.MatchRun
	if err := r.db.Where("id = ?", id).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to find run: %w", err)
	}
	return &run, nil
}

// FindRecent implements RunRepository.
func (r *runRepository) FindRecent(limit int) ([]models.MatchRun, error) {
	var runs []models.MatchRun
	err := r.db.
		Order("finished_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

type memoryRunRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]models.MatchRun
}

// NewMemoryRunRepository keeps archived runs in process memory. It is used
// when no database is configured and in tests.
func NewMemoryRunRepository() RunRepository {
	return &memoryRunRepository{runs: make(map[uuid.UUID]models.MatchRun)}
}

func (r *memoryRunRepository) Create(run *models.MatchRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.ID]; exists {
		return fmt.Errorf("failed to archive run: duplicate id %s", run.ID)
	}
	now := time.Now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	r.runs[run.ID] = *run
	return nil
}

func (r *memoryRunRepository) FindByID(id uuid.UUID) (*models.MatchRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &run, nil
}

func (r *memoryRunRepository) FindRecent(limit int) ([]models.MatchRun, error) {
	r.mu.RLock()
	runs := make([]models.MatchRun, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run)
	}
	r.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].FinishedAt.After(runs[j].FinishedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
