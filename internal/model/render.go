package model

import "time"

// OutputFormat selects what the job produces.
type OutputFormat string

const (
	FormatPNG  OutputFormat = "png"
	FormatJPEG OutputFormat = "jpeg"
	FormatMP4  OutputFormat = "mp4"
	FormatWebM OutputFormat = "webm"
	FormatGIF  OutputFormat = "gif"
)

var ValidFormats = []OutputFormat{
	FormatPNG, FormatJPEG, FormatMP4, FormatWebM, FormatGIF,
}

// Animated reports whether the format requires a turntable frame
// sequence instead of named views.
func (f OutputFormat) Animated() bool {
	return f == FormatMP4 || f == FormatWebM || f == FormatGIF
}

// QualityPreset is interpreted only by the driver and encoder
// adapters, never by the capture core.
type QualityPreset string

const (
	QualityLow    QualityPreset = "low"
	QualityMedium QualityPreset = "medium"
	QualityHigh   QualityPreset = "high"
)

// RenderOptions is the resolved render configuration of a job.
type RenderOptions struct {
	Format    OutputFormat  `json:"format"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Views     []string      `json:"views,omitempty"`
	Duration  float64       `json:"duration,omitempty"`
	FPS       int           `json:"fps,omitempty"`
	Quality   QualityPreset `json:"quality"`
	Thumbnail bool          `json:"thumbnail,omitempty"`
}

// RenderStartRequest is the body of POST /api/render.
type RenderStartRequest struct {
	ModelID   string   `json:"modelId" validate:"required,uuid4"`
	Format    string   `json:"format" validate:"required,oneof=png jpeg mp4 webm gif"`
	Width     int      `json:"width" validate:"omitempty,min=16,max=4096"`
	Height    int      `json:"height" validate:"omitempty,min=16,max=4096"`
	Views     []string `json:"views" validate:"omitempty,max=32,dive,min=1,max=64"`
	Duration  float64  `json:"duration" validate:"omitempty,min=1,max=60"`
	FPS       int      `json:"fps" validate:"omitempty,min=1,max=60"`
	Quality   string   `json:"quality" validate:"omitempty,oneof=low medium high"`
	Thumbnail bool     `json:"thumbnail"`
}

// RenderStartResponse acknowledges an accepted job.
type RenderStartResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// RenderStatusResponse reports the current state of a job.
type RenderStatusResponse struct {
	JobID       string     `json:"jobId"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// RenderCancelResponse acknowledges a cancellation.
type RenderCancelResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// UploadModelResponse acknowledges a stored model file.
type UploadModelResponse struct {
	ModelID  string `json:"modelId"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
}
