package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/resdiihd/puppeteer-glb-renderer/internal/model"
)

// fakeSession fails positioning or capture for configured labels and
// otherwise returns a fixed frame payload.
type fakeSession struct {
	mu          sync.Mutex
	current     string
	failCapture map[string]bool
	captured    []string
	closed      bool
}

func (s *fakeSession) PositionCamera(_ context.Context, v ViewDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = v.Label
	return nil
}

func (s *fakeSession) CaptureFrame(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCapture[s.current] {
		return nil, errors.New("driver exploded")
	}
	s.captured = append(s.captured, s.current)
	return []byte("frame-bytes"), nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// fakeEncoder records its invocation and writes the output file so the
// loop can stat it.
type fakeEncoder struct {
	pattern string
	fps     int
	err     error
	calls   int
}

func (e *fakeEncoder) Encode(_ context.Context, framePattern string, fps int, outputPath string, _ model.RenderOptions) error {
	e.calls++
	e.pattern = framePattern
	e.fps = fps
	if e.err != nil {
		return e.err
	}
	return os.WriteFile(outputPath, []byte("encoded-video"), 0o644)
}

func newTestLoop(t *testing.T, enc Encoder) (*Loop, LoopConfig) {
	t.Helper()
	cfg := LoopConfig{
		OutputRoot:    filepath.Join(t.TempDir(), "outputs"),
		TempRoot:      filepath.Join(t.TempDir(), "tmp"),
		ViewSettle:    time.Microsecond,
		FrameSettle:   time.Microsecond,
		ProgressEvery: 1,
	}
	return NewLoop(enc, zaptest.NewLogger(t), cfg), cfg
}

func stillOptions(views ...string) model.RenderOptions {
	return model.RenderOptions{
		Format: model.FormatPNG,
		Width:  64,
		Height: 64,
		Views:  views,
	}
}

func turntableOptions(duration float64, fps int) model.RenderOptions {
	return model.RenderOptions{
		Format:   model.FormatMP4,
		Width:    64,
		Height:   64,
		Duration: duration,
		FPS:      fps,
	}
}

func TestRunStills_PartialFailureStillCompletes(t *testing.T) {
	loop, _ := newTestLoop(t, nil)
	sess := &fakeSession{failCapture: map[string]bool{"left": true, "top": true}}

	outcome, err := loop.Run(context.Background(), sess, "job-1", stillOptions("all"), nil)

	require.NoError(t, err)
	assert.Len(t, outcome.Artifacts, 4)
	assert.Len(t, outcome.ViewErrors, 2)

	// Output files exist for the surviving views, in canonical order.
	wantLabels := []string{"front", "back", "right", "bottom"}
	for i, a := range outcome.Artifacts {
		assert.Equal(t, wantLabels[i], a.Label)
		assert.FileExists(t, a.Path)
	}
	failed := []string{outcome.ViewErrors[0].Label, outcome.ViewErrors[1].Label}
	assert.ElementsMatch(t, []string{"left", "top"}, failed)
}

func TestRunStills_AllViewsFailed(t *testing.T) {
	loop, _ := newTestLoop(t, nil)
	sess := &fakeSession{failCapture: map[string]bool{
		"front": true, "back": true, "left": true,
		"right": true, "top": true, "bottom": true,
	}}

	outcome, err := loop.Run(context.Background(), sess, "job-2", stillOptions("all"), nil)

	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.Contains(t, err.Error(), "all 6 views failed")
}

func TestRunStills_ProgressReachesCaptureShare(t *testing.T) {
	loop, _ := newTestLoop(t, nil)
	sess := &fakeSession{}

	var updates []int
	_, err := loop.Run(context.Background(), sess, "job-3", stillOptions("front", "back"), func(p int) {
		updates = append(updates, p)
	})

	require.NoError(t, err)
	require.NotEmpty(t, updates)
	assert.Equal(t, 95, updates[len(updates)-1])
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t, updates[i], updates[i-1])
	}
}

func TestRunTurntable_Success(t *testing.T) {
	enc := &fakeEncoder{}
	loop, cfg := newTestLoop(t, enc)
	sess := &fakeSession{}

	outcome, err := loop.Run(context.Background(), sess, "job-4", turntableOptions(1, 5), nil)

	require.NoError(t, err)
	require.Len(t, outcome.Artifacts, 1)
	assert.Equal(t, "turntable", outcome.Artifacts[0].Label)
	assert.FileExists(t, outcome.Artifacts[0].Path)
	assert.Equal(t, 1, enc.calls)
	assert.Equal(t, 5, enc.fps)
	assert.Len(t, sess.captured, 5)

	// Temp frames are gone on the success path too.
	assert.NoDirExists(t, filepath.Join(cfg.TempRoot, "job-4"))
}

func TestRunTurntable_FrameFailureAbortsAndCleansUp(t *testing.T) {
	enc := &fakeEncoder{}
	loop, cfg := newTestLoop(t, enc)
	sess := &fakeSession{failCapture: map[string]bool{"frame_0005": true}}

	outcome, err := loop.Run(context.Background(), sess, "job-5", turntableOptions(2, 10), nil)

	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.Contains(t, err.Error(), "frame 5/20")
	assert.Equal(t, 0, enc.calls)
	assert.NoDirExists(t, filepath.Join(cfg.TempRoot, "job-5"))
}

func TestRunTurntable_EncoderFailureCleansUp(t *testing.T) {
	enc := &fakeEncoder{err: errors.New("codec blew up")}
	loop, cfg := newTestLoop(t, enc)
	sess := &fakeSession{}

	outcome, err := loop.Run(context.Background(), sess, "job-6", turntableOptions(1, 4), nil)

	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.Contains(t, err.Error(), "encode mp4")
	assert.NoDirExists(t, filepath.Join(cfg.TempRoot, "job-6"))
}

func TestRunTurntable_ProgressCadence(t *testing.T) {
	enc := &fakeEncoder{}
	logger := zaptest.NewLogger(t)
	loop := NewLoop(enc, logger, LoopConfig{
		OutputRoot:    filepath.Join(t.TempDir(), "outputs"),
		TempRoot:      filepath.Join(t.TempDir(), "tmp"),
		ViewSettle:    time.Microsecond,
		FrameSettle:   time.Microsecond,
		ProgressEvery: 5,
	})
	sess := &fakeSession{}

	var updates []int
	_, err := loop.Run(context.Background(), sess, "job-7", turntableOptions(2, 10), func(p int) {
		updates = append(updates, p)
	})

	require.NoError(t, err)
	// 20 frames reported every 5: four updates, capped at 95.
	assert.Equal(t, []int{23, 47, 71, 95}, updates)
}

func TestRunStills_UnknownViewRecordedNotFatal(t *testing.T) {
	loop, _ := newTestLoop(t, nil)
	sess := &fakeSession{failCapture: map[string]bool{"sideways": true}}

	outcome, err := loop.Run(context.Background(), sess, "job-8", stillOptions("front", "sideways"), nil)

	require.NoError(t, err)
	assert.Len(t, outcome.Artifacts, 1)
	require.Len(t, outcome.ViewErrors, 1)
	assert.Equal(t, "sideways", outcome.ViewErrors[0].Label)
}

func TestRunStills_WritesIntoJobScopedDir(t *testing.T) {
	loop, cfg := newTestLoop(t, nil)
	sess := &fakeSession{}

	outcome, err := loop.Run(context.Background(), sess, "job-9", stillOptions("front"), nil)

	require.NoError(t, err)
	require.Len(t, outcome.Artifacts, 1)
	assert.Equal(t, filepath.Join(cfg.OutputRoot, "job-9", "front.png"), outcome.Artifacts[0].Path)
	data, err := os.ReadFile(outcome.Artifacts[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "frame-bytes", string(data))
	assert.Equal(t, int64(len(data)), outcome.Artifacts[0].Size)
}

func TestWait_RespectsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := wait(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunStills_ErrorMessagesCarryCause(t *testing.T) {
	loop, _ := newTestLoop(t, nil)
	sess := &fakeSession{failCapture: map[string]bool{"front": true}}

	outcome, err := loop.Run(context.Background(), sess, "job-10", stillOptions("front", "back"), nil)

	require.NoError(t, err)
	require.Len(t, outcome.ViewErrors, 1)
	assert.Equal(t, fmt.Sprintf("capture frame: %s", "driver exploded"), outcome.ViewErrors[0].Message)
}
