package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/resdiihd/puppeteer-glb-renderer/internal/model"
)

// LoopConfig tunes the capture loop. Zero values fall back to the
// defaults below.
type LoopConfig struct {
	// OutputRoot is the directory under which per-job output
	// directories are created.
	OutputRoot string

	// TempRoot is the directory under which per-job frame directories
	// are created for turntable capture. A job's temp directory is
	// removed on every exit path.
	TempRoot string

	// ViewSettle is how long to wait after positioning a named-view
	// camera before capturing; camera transitions are not instantaneous.
	ViewSettle time.Duration

	// FrameSettle is the shorter settle interval used between
	// turntable frames.
	FrameSettle time.Duration

	// ProgressEvery bounds progress reporting overhead in turntable
	// mode: progress is emitted every N frames rather than every frame.
	ProgressEvery int
}

const (
	defaultViewSettle    = 500 * time.Millisecond
	defaultFrameSettle   = 50 * time.Millisecond
	defaultProgressEvery = 5

	// captureShare is the portion of progress spent on capture; the
	// remaining 5% is reserved for encode and assembly.
	captureShare = 95
)

// Outcome is what one capture run produced: the ordered artifacts plus
// any per-view errors recovered in still mode.
type Outcome struct {
	Artifacts  []model.Artifact
	ViewErrors []model.ArtifactError
}

// Loop drives a rendering session through a sequence of camera
// placements, producing frame artifacts or per-view errors.
type Loop struct {
	encoder Encoder
	logger  *zap.Logger
	cfg     LoopConfig
}

// NewLoop creates a capture loop. encoder may only be nil if the loop
// is never run in turntable mode.
func NewLoop(encoder Encoder, logger *zap.Logger, cfg LoopConfig) *Loop {
	if cfg.ViewSettle <= 0 {
		cfg.ViewSettle = defaultViewSettle
	}
	if cfg.FrameSettle <= 0 {
		cfg.FrameSettle = defaultFrameSettle
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = defaultProgressEvery
	}
	return &Loop{encoder: encoder, logger: logger, cfg: cfg}
}

// Run executes the capture for one job against an exclusively owned
// session. progress receives values in [0,95]; the caller snaps to 100
// on terminal success. The returned error means the whole job failed
// and no usable output exists.
func (l *Loop) Run(ctx context.Context, sess Session, jobID string, opts model.RenderOptions, progress func(int)) (*Outcome, error) {
	if progress == nil {
		progress = func(int) {}
	}
	if opts.Format.Animated() {
		return l.runTurntable(ctx, sess, jobID, opts, progress)
	}
	return l.runStills(ctx, sess, jobID, opts, progress)
}

// runStills captures each requested view in order. A failure on one
// view is recorded and the loop continues; the job only fails when
// zero views succeed.
func (l *Loop) runStills(ctx context.Context, sess Session, jobID string, opts model.RenderOptions, progress func(int)) (*Outcome, error) {
	views := ExpandViews(opts.Views)
	outDir, err := l.ensureOutputDir(jobID)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{}
	var lastErr error
	for i, view := range views {
		data, err := l.captureOne(ctx, sess, view, l.cfg.ViewSettle)
		if err != nil {
			lastErr = err
			l.logger.Warn("view capture failed",
				zap.String("job_id", jobID),
				zap.String("view", view.Label),
				zap.Error(err),
			)
			outcome.ViewErrors = append(outcome.ViewErrors, model.ArtifactError{
				Label:   view.Label,
				Message: err.Error(),
			})
		} else {
			path := filepath.Join(outDir, fmt.Sprintf("%s.%s", view.Label, opts.Format))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				lastErr = err
				outcome.ViewErrors = append(outcome.ViewErrors, model.ArtifactError{
					Label:   view.Label,
					Message: fmt.Sprintf("write frame: %v", err),
				})
			} else {
				outcome.Artifacts = append(outcome.Artifacts, model.Artifact{
					Label: view.Label,
					Path:  path,
					Size:  int64(len(data)),
				})
			}
		}
		progress((i + 1) * captureShare / len(views))
	}

	if len(outcome.Artifacts) == 0 {
		return nil, fmt.Errorf("all %d views failed: %w", len(views), lastErr)
	}
	return outcome, nil
}

// runTurntable captures the computed rotation sequence into a
// job-scoped temp directory and hands it to the encoder. Unlike still
// mode, any single frame failure aborts the whole sequence: video and
// GIF output requires a complete, contiguous frame set. The temp
// directory is removed on every exit path.
func (l *Loop) runTurntable(ctx context.Context, sess Session, jobID string, opts model.RenderOptions, progress func(int)) (*Outcome, error) {
	frames := TurntableFrames(opts.Duration, opts.FPS)

	tempDir := filepath.Join(l.cfg.TempRoot, jobID)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			l.logger.Warn("frame dir cleanup failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}()

	for i, frame := range frames {
		data, err := l.captureOne(ctx, sess, frame, l.cfg.FrameSettle)
		if err != nil {
			return nil, fmt.Errorf("frame %d/%d: %w", frame.Frame, len(frames), err)
		}
		path := filepath.Join(tempDir, fmt.Sprintf("frame_%04d.png", frame.Frame))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("write frame %d: %w", frame.Frame, err)
		}
		if (i+1)%l.cfg.ProgressEvery == 0 || i+1 == len(frames) {
			progress((i + 1) * captureShare / len(frames))
		}
	}

	outDir, err := l.ensureOutputDir(jobID)
	if err != nil {
		return nil, err
	}
	outputPath := filepath.Join(outDir, fmt.Sprintf("turntable.%s", opts.Format))
	pattern := filepath.Join(tempDir, "frame_%04d.png")
	if err := l.encoder.Encode(ctx, pattern, opts.FPS, outputPath, opts); err != nil {
		return nil, fmt.Errorf("encode %s: %w", opts.Format, err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("stat output: %w", err)
	}

	l.logger.Info("turntable encoded",
		zap.String("job_id", jobID),
		zap.Int("frames", len(frames)),
		zap.String("output", outputPath),
	)
	return &Outcome{
		Artifacts: []model.Artifact{{
			Label: "turntable",
			Path:  outputPath,
			Size:  info.Size(),
		}},
	}, nil
}

// captureOne positions the camera, waits out the settle interval and
// rasterizes a single frame.
func (l *Loop) captureOne(ctx context.Context, sess Session, view ViewDescriptor, settle time.Duration) ([]byte, error) {
	if err := sess.PositionCamera(ctx, view); err != nil {
		return nil, fmt.Errorf("position camera: %w", err)
	}
	if err := wait(ctx, settle); err != nil {
		return nil, err
	}
	data, err := sess.CaptureFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}
	return data, nil
}

func (l *Loop) ensureOutputDir(jobID string) (string, error) {
	dir := filepath.Join(l.cfg.OutputRoot, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return dir, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
