package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/resdiihd/puppeteer-glb-renderer/internal/job"
	"github.com/resdiihd/puppeteer-glb-renderer/internal/model"
	"github.com/resdiihd/puppeteer-glb-renderer/internal/render"
)

// ErrNotCompleted means a result was requested for a job that has not
// reached the completed state.
var ErrNotCompleted = errors.New("job not completed")

// ProgressSink receives job lifecycle events for live observers. The
// websocket hub implements it; tests substitute a recorder.
type ProgressSink interface {
	BroadcastProgress(jobID string, progress int, status model.JobStatus)
	BroadcastComplete(jobID string, result *model.RenderResult)
	BroadcastError(jobID, code, message string)
}

// ArtifactStore mirrors finished artifacts to object storage. Optional.
type ArtifactStore interface {
	UploadFile(ctx context.Context, key, path, contentType string) (string, error)
}

// RenderService is the submission/query facade over the job store and
// scheduler, and owns the runner that executes dispatched jobs.
type RenderService struct {
	store     *job.Store
	scheduler *job.Scheduler
	loop      *render.Loop
	driver    render.Driver
	models    *UploadService
	sink      ProgressSink
	artifacts ArtifactStore
	logger    *zap.Logger

	outputRoot string
}

func NewRenderService(
	store *job.Store,
	scheduler *job.Scheduler,
	loop *render.Loop,
	driver render.Driver,
	models *UploadService,
	sink ProgressSink,
	artifacts ArtifactStore,
	logger *zap.Logger,
	outputRoot string,
) *RenderService {
	return &RenderService{
		store:      store,
		scheduler:  scheduler,
		loop:       loop,
		driver:     driver,
		models:     models,
		sink:       sink,
		artifacts:  artifacts,
		logger:     logger,
		outputRoot: outputRoot,
	}
}

// StartRender validates the asset reference, creates a pending job and
// enqueues it. It never blocks on rendering.
func (s *RenderService) StartRender(ctx context.Context, req *model.RenderStartRequest) (*model.RenderStartResponse, error) {
	if _, err := s.models.ModelPath(req.ModelID); err != nil {
		return nil, err
	}

	opts := resolveOptions(req)
	j := s.store.Create(req.ModelID, opts)
	s.scheduler.Enqueue(j.ID)

	s.logger.Info("render job queued",
		zap.String("job_id", j.ID),
		zap.String("model_id", j.ModelID),
		zap.String("format", string(opts.Format)),
	)

	return &model.RenderStartResponse{
		JobID:     j.ID,
		Status:    j.Status,
		CreatedAt: j.CreatedAt,
	}, nil
}

// GetStatus returns the current state of a job.
func (s *RenderService) GetStatus(jobID string) (*model.RenderStatusResponse, error) {
	j, err := s.store.Get(jobID)
	if err != nil {
		return nil, err
	}
	return &model.RenderStatusResponse{
		JobID:       j.ID,
		Status:      j.Status,
		Progress:    j.Progress,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}, nil
}

// GetResult returns the output manifest of a completed job.
func (s *RenderService) GetResult(jobID string) (*model.RenderResult, error) {
	j, err := s.store.Get(jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != model.JobStatusCompleted {
		return nil, ErrNotCompleted
	}
	return j.Result, nil
}

// CancelRender cancels a still-pending job. Processing and terminal
// jobs report job.ErrNotCancellable.
func (s *RenderService) CancelRender(jobID string) (*model.RenderCancelResponse, error) {
	if err := s.scheduler.CancelPending(jobID); err != nil {
		return nil, err
	}
	return &model.RenderCancelResponse{
		JobID:  jobID,
		Status: model.JobStatusCancelled,
	}, nil
}

// Stats returns aggregate counters for the stats endpoint.
func (s *RenderService) Stats() model.Stats {
	return s.scheduler.Stats()
}

// Run is the scheduler runner: it executes one dispatched job to its
// terminal state. The session and the temp frame directory are owned
// exclusively by this job.
func (s *RenderService) Run(ctx context.Context, j model.Job) {
	s.logger.Info("render job started", zap.String("job_id", j.ID))

	sess, err := s.driver.OpenSession(ctx, j.ModelID, j.Options)
	if err != nil {
		s.failJob(j.ID, fmt.Sprintf("open render session: %v", err))
		return
	}
	defer func() {
		if err := sess.Close(); err != nil {
			s.logger.Warn("session close failed", zap.String("job_id", j.ID), zap.Error(err))
		}
	}()

	progress := func(p int) {
		s.store.SetProgress(j.ID, p)
		if s.sink != nil {
			s.sink.BroadcastProgress(j.ID, p, model.JobStatusProcessing)
		}
	}

	outcome, err := s.loop.Run(ctx, sess, j.ID, j.Options, progress)
	if err != nil {
		s.failJob(j.ID, err.Error())
		return
	}

	if j.Options.Thumbnail && !j.Options.Format.Animated() {
		s.attachThumbnail(j.ID, outcome)
	}

	result := &model.RenderResult{
		Artifacts: outcome.Artifacts,
		Errors:    outcome.ViewErrors,
	}
	for i := range result.Artifacts {
		result.Artifacts[i].URL = s.artifactURL(j.ID, result.Artifacts[i].Path)
	}
	s.mirrorArtifacts(ctx, j.ID, result)

	if err := s.store.Complete(j.ID, result); err != nil {
		s.logger.Error("complete transition rejected", zap.String("job_id", j.ID), zap.Error(err))
		return
	}
	if s.sink != nil {
		s.sink.BroadcastProgress(j.ID, 100, model.JobStatusCompleted)
		s.sink.BroadcastComplete(j.ID, result)
	}
	s.logger.Info("render job completed",
		zap.String("job_id", j.ID),
		zap.Int("artifacts", len(result.Artifacts)),
		zap.Int("view_errors", len(result.Errors)),
	)
}

func (s *RenderService) failJob(jobID, message string) {
	if err := s.store.Fail(jobID, message); err != nil {
		s.logger.Error("fail transition rejected", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	if s.sink != nil {
		s.sink.BroadcastError(jobID, "RENDER_FAILED", message)
	}
	s.logger.Warn("render job failed", zap.String("job_id", jobID), zap.String("reason", message))
}

// attachThumbnail downscales the first successful artifact into a
// poster image. Thumbnail failure is a per-artifact error, never fatal.
func (s *RenderService) attachThumbnail(jobID string, outcome *render.Outcome) {
	if len(outcome.Artifacts) == 0 {
		return
	}
	src, err := imaging.Open(outcome.Artifacts[0].Path)
	if err != nil {
		outcome.ViewErrors = append(outcome.ViewErrors, model.ArtifactError{
			Label:   "thumbnail",
			Message: fmt.Sprintf("open source frame: %v", err),
		})
		return
	}
	thumb := imaging.Resize(src, 320, 0, imaging.Lanczos)
	path := filepath.Join(s.outputRoot, jobID, "thumbnail.png")
	if err := imaging.Save(thumb, path); err != nil {
		outcome.ViewErrors = append(outcome.ViewErrors, model.ArtifactError{
			Label:   "thumbnail",
			Message: fmt.Sprintf("save thumbnail: %v", err),
		})
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	outcome.Artifacts = append(outcome.Artifacts, model.Artifact{
		Label: "thumbnail",
		Path:  path,
		Size:  info.Size(),
	})
}

// mirrorArtifacts uploads finished artifacts to object storage when
// configured. Mirror failure keeps the local URL and is never fatal.
func (s *RenderService) mirrorArtifacts(ctx context.Context, jobID string, result *model.RenderResult) {
	if s.artifacts == nil {
		return
	}
	for i, a := range result.Artifacts {
		key := fmt.Sprintf("renders/%s/%s", jobID, filepath.Base(a.Path))
		url, err := s.artifacts.UploadFile(ctx, key, a.Path, contentTypeFor(a.Path))
		if err != nil {
			s.logger.Warn("artifact mirror failed",
				zap.String("job_id", jobID),
				zap.String("key", key),
				zap.Error(err),
			)
			continue
		}
		result.Artifacts[i].URL = url
	}
}

func (s *RenderService) artifactURL(jobID, path string) string {
	return fmt.Sprintf("/outputs/%s/%s", jobID, filepath.Base(path))
}

func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".png":
		return "image/png"
	case ".jpeg", ".jpg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}

// resolveOptions fills request defaults into the immutable job options.
func resolveOptions(req *model.RenderStartRequest) model.RenderOptions {
	opts := model.RenderOptions{
		Format:    model.OutputFormat(req.Format),
		Width:     req.Width,
		Height:    req.Height,
		Quality:   model.QualityPreset(req.Quality),
		Thumbnail: req.Thumbnail,
	}
	if opts.Width == 0 {
		opts.Width = 1024
	}
	if opts.Height == 0 {
		opts.Height = 1024
	}
	if opts.Quality == "" {
		opts.Quality = model.QualityMedium
	}
	if opts.Format.Animated() {
		opts.Duration = req.Duration
		if opts.Duration == 0 {
			opts.Duration = 4
		}
		opts.FPS = req.FPS
		if opts.FPS == 0 {
			opts.FPS = 15
		}
	} else {
		opts.Views = req.Views
		if len(opts.Views) == 0 {
			opts.Views = []string{"front"}
		}
	}
	return opts
}
