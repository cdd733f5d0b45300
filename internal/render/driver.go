package render

import (
	"context"

	"github.com/resdiihd/puppeteer-glb-renderer/internal/model"
)

// Driver is the external rendering capability. A Driver owns a browser
// (or equivalent) that can load a model into a session, position a
// camera and rasterize single frames. All calls are fallible; the
// capture loop converts per-call failures according to mode policy.
type Driver interface {
	// OpenSession loads the referenced model and returns an exclusive
	// rendering session sized to the requested dimensions.
	OpenSession(ctx context.Context, modelID string, opts model.RenderOptions) (Session, error)
}

// Session is a single-job rendering context. Sessions are never shared
// between concurrently processing jobs.
type Session interface {
	// PositionCamera moves the camera to the given placement. For named
	// views an unknown name is an error.
	PositionCamera(ctx context.Context, view ViewDescriptor) error

	// CaptureFrame rasterizes the current camera placement and returns
	// the encoded image bytes.
	CaptureFrame(ctx context.Context) ([]byte, error)

	Close() error
}

// Encoder turns an ordered frame sequence into a video or GIF file.
// framePattern is a printf-style path (e.g. ".../frame_%04d.png").
// Encoder-specific flags and formats never leak into the capture core.
type Encoder interface {
	Encode(ctx context.Context, framePattern string, fps int, outputPath string, opts model.RenderOptions) error
}
