package chrome

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/resdiihd/puppeteer-glb-renderer/internal/model"
	"github.com/resdiihd/puppeteer-glb-renderer/internal/render"
)

// Config tunes the headless Chrome driver.
type Config struct {
	// ViewerBaseURL is where the built-in viewer page is served,
	// e.g. http://127.0.0.1:8000.
	ViewerBaseURL string

	// ExecPath points at a Chrome/Chromium binary; empty means let
	// chromedp find one.
	ExecPath string

	// ReadyTimeout bounds how long to wait for the viewer page to
	// finish loading the model.
	ReadyTimeout time.Duration

	// SessionTimeout, when non-zero, puts a hard deadline on the whole
	// session so a hung Chrome call cannot hold a concurrency slot
	// forever. Off by default.
	SessionTimeout time.Duration

	// JPEGQuality is used when the job requests jpeg stills.
	JPEGQuality int
}

// Driver implements render.Driver on a shared headless Chrome
// allocator. Each session gets its own tab; tabs are never shared
// between jobs.
type Driver struct {
	cfg         Config
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func NewDriver(cfg Config, logger *zap.Logger) *Driver {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 30 * time.Second
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 90
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("force-color-profile", "srgb"),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Driver{
		cfg:         cfg,
		logger:      logger,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
	}
}

// Close tears down the browser allocator.
func (d *Driver) Close() {
	d.allocCancel()
}

// OpenSession opens a tab on the viewer page for the given model and
// waits until the scene reports ready.
func (d *Driver) OpenSession(ctx context.Context, modelID string, opts model.RenderOptions) (render.Session, error) {
	tabCtx, tabCancel := chromedp.NewContext(d.allocCtx)
	cancel := tabCancel
	if d.cfg.SessionTimeout > 0 {
		var timeoutCancel context.CancelFunc
		tabCtx, timeoutCancel = context.WithTimeout(tabCtx, d.cfg.SessionTimeout)
		cancel = func() {
			timeoutCancel()
			tabCancel()
		}
	}

	url := fmt.Sprintf("%s/viewer/%s", d.cfg.ViewerBaseURL, modelID)
	err := chromedp.Run(tabCtx,
		chromedp.ActionFunc(func(c context.Context) error {
			return emulation.SetDeviceMetricsOverride(int64(opts.Width), int64(opts.Height), 1, false).Do(c)
		}),
		chromedp.Navigate(url),
		chromedp.Poll("window.__viewerReady === true || window.__viewerError !== undefined", nil,
			chromedp.WithPollingTimeout(d.cfg.ReadyTimeout)),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("load viewer for model %s: %w", modelID, err)
	}

	var viewerErr string
	if err := chromedp.Run(tabCtx,
		chromedp.Evaluate("window.__viewerError || ''", &viewerErr),
	); err != nil {
		cancel()
		return nil, fmt.Errorf("query viewer state: %w", err)
	}
	if viewerErr != "" {
		cancel()
		return nil, fmt.Errorf("viewer failed to load model %s: %s", modelID, viewerErr)
	}

	d.logger.Debug("render session opened", zap.String("model_id", modelID), zap.String("url", url))
	return &session{
		ctx:     tabCtx,
		cancel:  cancel,
		format:  opts.Format,
		quality: int64(d.cfg.JPEGQuality),
	}, nil
}

type session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	format  model.OutputFormat
	quality int64
}

func (s *session) PositionCamera(ctx context.Context, view render.ViewDescriptor) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var expr string
	if view.Turntable() {
		expr = fmt.Sprintf("window.setAngle(%g)", view.Angle)
	} else {
		expr = fmt.Sprintf("window.setView(%q)", view.Name)
	}

	var ok bool
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(expr, &ok)); err != nil {
		return fmt.Errorf("evaluate %s: %w", expr, err)
	}
	if !ok {
		return fmt.Errorf("viewer rejected placement %q", view.Label)
	}
	return nil
}

func (s *session) CaptureFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf []byte
	err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(c context.Context) error {
		p := page.CaptureScreenshot()
		if s.format == model.FormatJPEG {
			p = p.WithFormat(page.CaptureScreenshotFormatJpeg).WithQuality(s.quality)
		} else {
			p = p.WithFormat(page.CaptureScreenshotFormatPng)
		}
		var err error
		buf, err = p.Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

func (s *session) Close() error {
	s.cancel()
	return nil
}
