package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resdiihd/puppeteer-glb-renderer/internal/model"
)

func testOptions() model.RenderOptions {
	return model.RenderOptions{Format: model.FormatPNG, Width: 64, Height: 64, Views: []string{"front"}}
}

func TestStore_HappyPathToCompleted(t *testing.T) {
	s := NewStore()
	j := s.Create("model-1", testOptions())

	assert.Equal(t, model.JobStatusPending, j.Status)
	assert.Zero(t, j.Progress)

	require.NoError(t, s.MarkProcessing(j.ID))
	require.NoError(t, s.Complete(j.ID, &model.RenderResult{
		Artifacts: []model.Artifact{{Label: "front", Path: "x", Size: 1}},
	}))

	got, err := s.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Result)
	assert.Nil(t, got.Error)

	// Timestamps are ordered: createdAt <= startedAt <= completedAt.
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)
	assert.False(t, got.StartedAt.Before(got.CreatedAt))
	assert.False(t, got.CompletedAt.Before(*got.StartedAt))
}

func TestStore_FailPopulatesErrorOnly(t *testing.T) {
	s := NewStore()
	j := s.Create("model-1", testOptions())
	require.NoError(t, s.MarkProcessing(j.ID))
	require.NoError(t, s.Fail(j.ID, "driver exploded"))

	got, err := s.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Nil(t, got.Result)
	require.NotNil(t, got.Error)
	assert.Equal(t, "driver exploded", *got.Error)
	require.NotNil(t, got.CompletedAt)
}

func TestStore_IllegalTransitionsRejected(t *testing.T) {
	s := NewStore()
	j := s.Create("model-1", testOptions())

	// pending → completed / failed are illegal.
	assert.ErrorIs(t, s.Complete(j.ID, &model.RenderResult{}), ErrIllegalTransition)
	assert.ErrorIs(t, s.Fail(j.ID, "boom"), ErrIllegalTransition)

	require.NoError(t, s.MarkProcessing(j.ID))
	// processing → processing is illegal.
	assert.ErrorIs(t, s.MarkProcessing(j.ID), ErrIllegalTransition)

	require.NoError(t, s.Complete(j.ID, &model.RenderResult{}))
	// Terminal state is write-once.
	assert.ErrorIs(t, s.Fail(j.ID, "boom"), ErrIllegalTransition)
	assert.ErrorIs(t, s.Complete(j.ID, &model.RenderResult{}), ErrIllegalTransition)
	assert.ErrorIs(t, s.MarkProcessing(j.ID), ErrIllegalTransition)
}

func TestStore_CancelOnlyWhilePending(t *testing.T) {
	s := NewStore()
	j := s.Create("model-1", testOptions())

	require.NoError(t, s.Cancel(j.ID))
	got, _ := s.Get(j.ID)
	assert.Equal(t, model.JobStatusCancelled, got.Status)
	require.NotNil(t, got.CompletedAt)
	// Cancellation does not force progress to 100.
	assert.Zero(t, got.Progress)

	k := s.Create("model-1", testOptions())
	require.NoError(t, s.MarkProcessing(k.ID))
	assert.ErrorIs(t, s.Cancel(k.ID), ErrNotCancellable)
}

func TestStore_ProgressMonotonicAndAdvisory(t *testing.T) {
	s := NewStore()
	j := s.Create("model-1", testOptions())

	// Ignored while pending.
	s.SetProgress(j.ID, 50)
	got, _ := s.Get(j.ID)
	assert.Zero(t, got.Progress)

	require.NoError(t, s.MarkProcessing(j.ID))
	s.SetProgress(j.ID, 40)
	s.SetProgress(j.ID, 20) // regression dropped
	s.SetProgress(j.ID, 200)

	got, _ = s.Get(j.ID)
	assert.Equal(t, 100, got.Progress)

	require.NoError(t, s.Complete(j.ID, &model.RenderResult{}))
	s.SetProgress(j.ID, 10)
	got, _ = s.Get(j.ID)
	assert.Equal(t, 100, got.Progress)
}

func TestStore_UnknownJob(t *testing.T) {
	s := NewStore()

	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.MarkProcessing("nope"), ErrNotFound)
	assert.ErrorIs(t, s.Cancel("nope"), ErrNotFound)
}

func TestStore_CountByStatus(t *testing.T) {
	s := NewStore()
	a := s.Create("m", testOptions())
	b := s.Create("m", testOptions())
	s.Create("m", testOptions())

	require.NoError(t, s.MarkProcessing(a.ID))
	require.NoError(t, s.Cancel(b.ID))

	counts := s.CountByStatus()
	assert.Equal(t, 1, counts[model.JobStatusPending])
	assert.Equal(t, 1, counts[model.JobStatusProcessing])
	assert.Equal(t, 1, counts[model.JobStatusCancelled])
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore()
	j := s.Create("model-1", testOptions())

	got, err := s.Get(j.ID)
	require.NoError(t, err)
	got.Status = model.JobStatusFailed

	again, err := s.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, again.Status)
}
