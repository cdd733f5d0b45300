package job

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/resdiihd/puppeteer-glb-renderer/internal/model"
)

func TestScheduler_FIFOOrder(t *testing.T) {
	store := NewStore()
	sched := NewScheduler(store, zaptest.NewLogger(t), 1)

	var mu sync.Mutex
	var order []string
	runner := func(_ context.Context, j model.Job) {
		mu.Lock()
		order = append(order, j.ID)
		mu.Unlock()
		require.NoError(t, store.Complete(j.ID, &model.RenderResult{}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx, runner)

	var ids []string
	for i := 0; i < 5; i++ {
		j := store.Create("m", testOptions())
		ids = append(ids, j.ID)
		sched.Enqueue(j.ID)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 5
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, ids, order)
}

func TestScheduler_ConcurrencyBound(t *testing.T) {
	store := NewStore()
	const limit = 2
	sched := NewScheduler(store, zaptest.NewLogger(t), limit)

	var active, peak, done atomic.Int64
	runner := func(_ context.Context, j model.Job) {
		cur := active.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		require.NoError(t, store.Complete(j.ID, &model.RenderResult{}))
		done.Add(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx, runner)

	for i := 0; i < 8; i++ {
		j := store.Create("m", testOptions())
		sched.Enqueue(j.ID)
	}

	require.Eventually(t, func() bool { return done.Load() == 8 }, 5*time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, peak.Load(), int64(limit))

	stats := sched.Stats()
	assert.Equal(t, 8, stats.Completed)
	assert.Zero(t, stats.QueueDepth)
	assert.Zero(t, stats.ActiveCount)
}

func TestScheduler_CancelPending(t *testing.T) {
	store := NewStore()
	sched := NewScheduler(store, zaptest.NewLogger(t), 1)

	// Scheduler not started: the job stays queued.
	j := store.Create("m", testOptions())
	sched.Enqueue(j.ID)
	require.Equal(t, 1, sched.Stats().QueueDepth)

	require.NoError(t, sched.CancelPending(j.ID))

	got, err := store.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, got.Status)
	assert.Zero(t, sched.Stats().QueueDepth)

	// Second cancel: no longer in the queue.
	assert.ErrorIs(t, sched.CancelPending(j.ID), ErrNotCancellable)
}

func TestScheduler_CancelUnknownJob(t *testing.T) {
	store := NewStore()
	sched := NewScheduler(store, zaptest.NewLogger(t), 1)

	assert.ErrorIs(t, sched.CancelPending("nope"), ErrNotFound)
}

func TestScheduler_CancelProcessingRejected(t *testing.T) {
	store := NewStore()
	sched := NewScheduler(store, zaptest.NewLogger(t), 1)

	started := make(chan struct{})
	release := make(chan struct{})
	runner := func(_ context.Context, j model.Job) {
		close(started)
		<-release
		require.NoError(t, store.Complete(j.ID, &model.RenderResult{}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx, runner)

	j := store.Create("m", testOptions())
	sched.Enqueue(j.ID)
	<-started

	assert.ErrorIs(t, sched.CancelPending(j.ID), ErrNotCancellable)
	close(release)
}

func TestScheduler_AbandonsJobWithIllegalState(t *testing.T) {
	store := NewStore()
	sched := NewScheduler(store, zaptest.NewLogger(t), 1)

	// A queued id whose job was cancelled out of band must be abandoned
	// without wedging the dispatch loop.
	bad := store.Create("m", testOptions())
	sched.Enqueue(bad.ID)
	require.NoError(t, store.Cancel(bad.ID))

	var ran atomic.Int64
	runner := func(_ context.Context, j model.Job) {
		ran.Add(1)
		require.NoError(t, store.Complete(j.ID, &model.RenderResult{}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx, runner)

	good := store.Create("m", testOptions())
	sched.Enqueue(good.ID)

	require.Eventually(t, func() bool {
		got, err := store.Get(good.ID)
		return err == nil && got.Status == model.JobStatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(1), ran.Load())
	got, _ := store.Get(bad.ID)
	assert.Equal(t, model.JobStatusCancelled, got.Status)
}

func TestScheduler_StartedJobGetsStartedAt(t *testing.T) {
	store := NewStore()
	sched := NewScheduler(store, zaptest.NewLogger(t), 1)

	runner := func(_ context.Context, j model.Job) {
		// The scheduler transitioned the job before handing it over.
		assert.Equal(t, model.JobStatusProcessing, j.Status)
		assert.NotNil(t, j.StartedAt)
		require.NoError(t, store.Complete(j.ID, &model.RenderResult{}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx, runner)

	j := store.Create("m", testOptions())
	sched.Enqueue(j.ID)

	require.Eventually(t, func() bool {
		got, err := store.Get(j.ID)
		return err == nil && got.Status == model.JobStatusCompleted
	}, 2*time.Second, 5*time.Millisecond)
}
