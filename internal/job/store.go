package job

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/resdiihd/puppeteer-glb-renderer/internal/model"
)

var (
	// ErrNotFound means no job exists with the given id.
	ErrNotFound = errors.New("job not found")

	// ErrIllegalTransition means a caller attempted a status change the
	// state machine forbids. This is a programming error, not a
	// user-facing condition.
	ErrIllegalTransition = errors.New("illegal job state transition")

	// ErrNotCancellable means the job was already dequeued: only
	// pending jobs can be cancelled.
	ErrNotCancellable = errors.New("job is not cancellable")
)

// Store owns every Job for its entire lifetime. It is the only
// structure mutated by both the dispatch loop and job execution tasks,
// so all access goes through the lock. Jobs live in process memory
// only; a restart loses everything.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*model.Job)}
}

// Create registers a new pending job and returns it.
func (s *Store) Create(modelID string, opts model.RenderOptions) *model.Job {
	j := &model.Job{
		ID:        uuid.New().String(),
		ModelID:   modelID,
		Status:    model.JobStatusPending,
		Options:   opts,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()
	return j
}

// Get returns a copy of the job so callers never observe concurrent
// mutation.
func (s *Store) Get(id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	return *j, nil
}

// MarkProcessing transitions pending → processing and stamps StartedAt.
// Only the scheduler calls this, at the moment a concurrency slot is
// acquired.
func (s *Store) MarkProcessing(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != model.JobStatusPending {
		return transitionError(j.Status, model.JobStatusProcessing)
	}
	now := time.Now()
	j.Status = model.JobStatusProcessing
	j.StartedAt = &now
	return nil
}

// Complete transitions processing → completed, attaches the result and
// snaps progress to 100.
func (s *Store) Complete(id string, result *model.RenderResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != model.JobStatusProcessing {
		return transitionError(j.Status, model.JobStatusCompleted)
	}
	now := time.Now()
	j.Status = model.JobStatusCompleted
	j.Progress = 100
	j.Result = result
	j.CompletedAt = &now
	return nil
}

// Fail transitions processing → failed, attaches the top-level error
// and snaps progress to 100.
func (s *Store) Fail(id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != model.JobStatusProcessing {
		return transitionError(j.Status, model.JobStatusFailed)
	}
	now := time.Now()
	j.Status = model.JobStatusFailed
	j.Progress = 100
	j.Error = &message
	j.CompletedAt = &now
	return nil
}

// Cancel transitions pending → cancelled. A job that has already been
// dequeued (or finished) reports ErrNotCancellable.
func (s *Store) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != model.JobStatusPending {
		return ErrNotCancellable
	}
	now := time.Now()
	j.Status = model.JobStatusCancelled
	j.CompletedAt = &now
	return nil
}

// SetProgress records monotonically non-decreasing progress for a
// processing job. Updates against non-processing jobs or regressions
// are dropped silently: progress is advisory, never authoritative.
func (s *Store) SetProgress(id string, progress int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != model.JobStatusProcessing {
		return
	}
	if progress > 100 {
		progress = 100
	}
	if progress > j.Progress {
		j.Progress = progress
	}
}

// CountByStatus returns per-status job counts.
func (s *Store) CountByStatus() map[model.JobStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[model.JobStatus]int)
	for _, j := range s.jobs {
		counts[j.Status]++
	}
	return counts
}

func transitionError(from, to model.JobStatus) error {
	return fmt.Errorf("%w: %s → %s", ErrIllegalTransition, from, to)
}
