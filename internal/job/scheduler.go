package job

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/resdiihd/puppeteer-glb-renderer/internal/model"
)

// DefaultConcurrency is the number of jobs allowed in flight when no
// limit is configured.
const DefaultConcurrency = 2

// Runner executes one dispatched job to its terminal state.
type Runner func(ctx context.Context, j model.Job)

// Scheduler owns the FIFO queue of pending job ids and dispatches them
// under a fixed concurrency bound. The queue holds identifiers only —
// Job state lives exclusively in the Store. Nothing is persisted and
// nothing is retried: a failed job stays failed.
type Scheduler struct {
	store  *Store
	logger *zap.Logger
	sem    *semaphore.Weighted
	limit  int64
	active atomic.Int64

	mu    sync.Mutex
	queue []string

	// wake nudges the dispatch loop after an enqueue; buffered so a
	// burst of submissions collapses into one signal.
	wake chan struct{}

	wg sync.WaitGroup
}

func NewScheduler(store *Store, logger *zap.Logger, concurrency int) *Scheduler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Scheduler{
		store:  store,
		logger: logger,
		sem:    semaphore.NewWeighted(int64(concurrency)),
		limit:  int64(concurrency),
		wake:   make(chan struct{}, 1),
	}
}

// Enqueue appends a pending job id to the tail of the queue.
func (s *Scheduler) Enqueue(id string) {
	s.mu.Lock()
	s.queue = append(s.queue, id)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// CancelPending cancels a job that has not yet been dequeued, removing
// it from the queue. Jobs already dispatched (or finished) report
// ErrNotCancellable; there is no in-flight cancellation primitive.
func (s *Scheduler) CancelPending(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, queued := range s.queue {
		if queued != id {
			continue
		}
		if err := s.store.Cancel(id); err != nil {
			return err
		}
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
		return nil
	}

	if _, err := s.store.Get(id); err != nil {
		return err
	}
	return ErrNotCancellable
}

// Start launches the dispatch loop. Whenever a concurrency slot is
// free and the queue is non-empty, the head of the queue (strict FIFO,
// no priority) is transitioned to processing and handed to the runner
// asynchronously. The loop exits when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context, runner Runner) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("scheduler started", zap.Int64("concurrency", s.limit))
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler stopping")
				return
			case <-s.wake:
			}
			s.drain(ctx, runner)
		}
	}()
}

// Wait blocks until the dispatch loop and all in-flight jobs return.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Stats reports aggregate counts for health reporting. Accessors only;
// Job mutation stays behind the Store.
func (s *Scheduler) Stats() model.Stats {
	counts := s.store.CountByStatus()

	s.mu.Lock()
	depth := len(s.queue)
	s.mu.Unlock()

	return model.Stats{
		Pending:     counts[model.JobStatusPending],
		Processing:  counts[model.JobStatusProcessing],
		Completed:   counts[model.JobStatusCompleted],
		Failed:      counts[model.JobStatusFailed],
		Cancelled:   counts[model.JobStatusCancelled],
		ActiveCount: int(s.active.Load()),
		QueueDepth:  depth,
	}
}

// drain dispatches queued jobs until the queue empties. Acquiring the
// semaphore before popping keeps the head of the queue intact while
// all slots are busy.
func (s *Scheduler) drain(ctx context.Context, runner Runner) {
	for {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return
		}
		id, ok := s.pop()
		if !ok {
			s.sem.Release(1)
			return
		}
		s.dispatch(ctx, id, runner)
	}
}

func (s *Scheduler) pop() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return "", false
	}
	id := s.queue[0]
	s.queue = s.queue[1:]
	return id, true
}

func (s *Scheduler) dispatch(ctx context.Context, id string, runner Runner) {
	if err := s.store.MarkProcessing(id); err != nil {
		// Invariant violation: a queued id must be pending. Abandon the
		// job rather than let it corrupt shared state.
		s.logger.Error("dispatch rejected", zap.String("job_id", id), zap.Error(err))
		s.sem.Release(1)
		return
	}

	j, err := s.store.Get(id)
	if err != nil {
		s.logger.Error("dispatched job vanished", zap.String("job_id", id), zap.Error(err))
		s.sem.Release(1)
		return
	}

	s.active.Add(1)
	s.wg.Add(1)
	go func() {
		defer func() {
			s.active.Add(-1)
			s.sem.Release(1)
			s.wg.Done()
		}()
		runner(ctx, j)
	}()
}
